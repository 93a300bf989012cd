package models

import "time"

// EngagementEvent records one interaction with a catalog question or a search.
// Every field except Timestamp is optional.
type EngagementEvent struct {
	UserID       string    `json:"user_id,omitempty" bson:"user_id,omitempty"`
	QuestionText string    `json:"question_clicked,omitempty" bson:"question_clicked,omitempty"`
	Service      string    `json:"service,omitempty" bson:"service,omitempty"`
	Age          string    `json:"age,omitempty" bson:"age,omitempty"`
	Job          string    `json:"job,omitempty" bson:"job,omitempty"`
	Desires      []string  `json:"desires,omitempty" bson:"desires,omitempty"`
	Ad           string    `json:"ad,omitempty" bson:"ad,omitempty"`
	Source       string    `json:"source,omitempty" bson:"source,omitempty"`
	Timestamp    time.Time `json:"timestamp" bson:"timestamp"`
}

type RecommendationEntry struct {
	Service      string `json:"service"`
	Count        int    `json:"count"`
	ServiceID    string `json:"service_id,omitempty"`
	SubserviceID string `json:"subservice_id,omitempty"`
}
