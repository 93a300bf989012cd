package models

// Profile step names accepted by the profile service.
const (
	ProfileStepBasic      = "basic"
	ProfileStepContact    = "contact"
	ProfileStepEmployment = "employment"
)

type ProfileStepRequest struct {
	Step      string                 `json:"step"`
	ProfileID string                 `json:"profile_id,omitempty"`
	Email     string                 `json:"email,omitempty"`
	Data      map[string]interface{} `json:"data"`
}

type ProfileStepResponse struct {
	Status    string `json:"status"`
	ProfileID string `json:"profile_id,omitempty"`
}
