package gateway

import (
	"errors"
	"net/http"

	"github.com/example/citizenportal/pkg/models"
	"github.com/example/citizenportal/pkg/repository"
	"github.com/gin-gonic/gin"
)

// profileStep creates a profile on the basic step and updates it on later
// steps. The basic step needs an email, either in data or at the top level.
func (g *Gateway) profileStep(c *gin.Context) {
	var req models.ProfileStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	data := req.Data
	if data == nil {
		data = map[string]interface{}{}
	}

	switch {
	case req.Step == models.ProfileStepBasic:
		email, _ := data["email"].(string)
		if email == "" {
			email = req.Email
		}
		if email == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Email required"})
			return
		}
		data["email"] = email

		id, err := g.store.CreateProfile(c.Request.Context(), data)
		if err != nil {
			g.internalError(c, "failed to create profile", err)
			return
		}
		c.JSON(http.StatusOK, models.ProfileStepResponse{Status: "ok", ProfileID: id})

	case req.ProfileID != "":
		err := g.store.UpdateProfile(c.Request.Context(), req.ProfileID, data)
		switch {
		case errors.Is(err, repository.ErrInvalidID):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid profile_id"})
		case errors.Is(err, repository.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "profile not found"})
		case err != nil:
			g.internalError(c, "failed to update profile", err)
		default:
			c.JSON(http.StatusOK, models.ProfileStepResponse{Status: "ok", ProfileID: req.ProfileID})
		}

	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
	}
}
