package gateway

import (
	"net/http"
	"strings"

	"github.com/example/citizenportal/pkg/models"
	"github.com/gin-gonic/gin"
)

const (
	defaultTopK   = 5
	noAnswerFound = "No answer found."
)

type searchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

// Search matches query case-insensitively against each question together
// with its sub-service and service names, in English. At most topK hits are
// returned; the answer is the first hit's.
func Search(services []models.Service, query string, topK int) models.SearchResult {
	if topK <= 0 {
		topK = defaultTopK
	}
	needle := strings.ToLower(strings.TrimSpace(query))

	hits := []models.SearchHit{}
	for _, svc := range services {
		svcName := svc.Name.In("en")
		for _, sub := range svc.Subservices {
			subName := sub.Name.In("en")
			for _, q := range sub.Questions {
				question := q.Q.In("en")
				haystack := strings.ToLower(question + subName + svcName)
				if !strings.Contains(haystack, needle) {
					continue
				}
				hits = append(hits, models.SearchHit{
					Service:    svcName,
					Subservice: subName,
					Question:   question,
					Answer:     q.Answer.In("en"),
				})
				if len(hits) == topK {
					return models.SearchResult{Answer: hits[0].Answer, Results: hits}
				}
			}
		}
	}

	answer := noAnswerFound
	if len(hits) > 0 {
		answer = hits[0].Answer
	}
	return models.SearchResult{Answer: answer, Results: hits}
}

func (g *Gateway) search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Query) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty query"})
		return
	}

	services, err := g.store.ListServices(c.Request.Context(), "")
	if err != nil {
		g.internalError(c, "failed to search", err)
		return
	}
	c.JSON(http.StatusOK, Search(services, req.Query, req.TopK))
}
