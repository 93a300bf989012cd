package gateway

import (
	"errors"
	"net/http"

	"github.com/example/citizenportal/pkg/models"
	"github.com/example/citizenportal/pkg/repository"
	"github.com/gin-gonic/gin"
)

type createCategoryRequest struct {
	ID          string               `json:"id" binding:"required"`
	Name        models.LocalizedText `json:"name" binding:"required"`
	MinistryIDs []string             `json:"ministry_ids"`
}

func (g *Gateway) listCategories(c *gin.Context) {
	categories, err := g.store.ListCategories(c.Request.Context())
	if err != nil {
		g.internalError(c, "failed to list categories", err)
		return
	}
	c.JSON(http.StatusOK, categories)
}

func (g *Gateway) listServices(c *gin.Context) {
	services, err := g.store.ListServices(c.Request.Context(), c.Query("category"))
	if err != nil {
		g.internalError(c, "failed to list services", err)
		return
	}
	c.JSON(http.StatusOK, services)
}

func (g *Gateway) getService(c *gin.Context) {
	svc, err := g.store.GetService(c.Request.Context(), c.Param("id"))
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "service not found"})
		return
	}
	if err != nil {
		g.internalError(c, "failed to get service", err)
		return
	}
	c.JSON(http.StatusOK, svc)
}

func (g *Gateway) listAds(c *gin.Context) {
	ads, err := g.store.ListAds(c.Request.Context())
	if err != nil {
		g.internalError(c, "failed to list ads", err)
		return
	}
	c.JSON(http.StatusOK, ads)
}

func (g *Gateway) createCategory(c *gin.Context) {
	var req createCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Name) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
		return
	}

	err := g.store.CreateCategory(c.Request.Context(), &models.Category{
		ID:          req.ID,
		Name:        req.Name,
		MinistryIDs: req.MinistryIDs,
	})
	if errors.Is(err, repository.ErrDuplicate) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Category id already exists"})
		return
	}
	if err != nil {
		g.internalError(c, "failed to create category", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "ok", "id": req.ID})
}
