package gateway

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/example/citizenportal/pkg/metrics"
	"github.com/example/citizenportal/pkg/models"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// flexString accepts a JSON string or number. Clients send age both ways.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	if string(data) == "null" {
		*f = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

type engagementRequest struct {
	UserID       string     `json:"user_id"`
	QuestionText string     `json:"question_clicked"`
	Service      string     `json:"service"`
	Age          flexString `json:"age"`
	Job          string     `json:"job"`
	Desires      []string   `json:"desires"`
	Ad           string     `json:"ad"`
	Source       string     `json:"source"`
	ConsentAds   *bool      `json:"consent_ads"`
}

func (r *engagementRequest) event(now time.Time) *models.EngagementEvent {
	return &models.EngagementEvent{
		UserID:       r.UserID,
		QuestionText: r.QuestionText,
		Service:      r.Service,
		Age:          string(r.Age),
		Job:          r.Job,
		Desires:      r.Desires,
		Ad:           r.Ad,
		Source:       r.Source,
		Timestamp:    now.UTC(),
	}
}

type deleteUserRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

var engagementCSVHeader = []string{"user_id", "age", "job", "desires", "question_clicked", "service", "ad", "source", "timestamp"}

func (g *Gateway) appendEngagement(c *gin.Context) {
	var req engagementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	g.storeEngagement(c, req.event(g.now()), "engagement")
}

// appendEngagementWithConsent stores the event without the advertising
// fields unless the user consented to ads. Consent defaults to true.
func (g *Gateway) appendEngagementWithConsent(c *gin.Context) {
	var req engagementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ev := req.event(g.now())
	if req.ConsentAds != nil && !*req.ConsentAds {
		ev.Desires = nil
		ev.Ad = ""
	}
	g.storeEngagement(c, ev, "consent")
}

func (g *Gateway) storeEngagement(c *gin.Context, ev *models.EngagementEvent, kind string) {
	if err := g.store.AppendEngagement(c.Request.Context(), ev); err != nil {
		g.internalError(c, "failed to store engagement", err)
		return
	}
	metrics.EngagementsTotal.WithLabelValues(kind).Inc()
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (g *Gateway) listEngagements(c *gin.Context) {
	events, err := g.store.ListEngagements(c.Request.Context(), c.Query("user_id"))
	if err != nil {
		g.internalError(c, "failed to list engagements", err)
		return
	}
	c.JSON(http.StatusOK, events)
}

func (g *Gateway) deleteUserData(c *gin.Context) {
	var req deleteUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id required"})
		return
	}

	n, err := g.store.DeleteUserEngagements(c.Request.Context(), req.UserID)
	if err != nil {
		g.internalError(c, "failed to delete user data", err)
		return
	}

	g.logger.Info("Deleted user engagement data", zap.String("user_id", req.UserID), zap.Int64("deleted", n))
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (g *Gateway) exportEngagementCSV(c *gin.Context) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(engagementCSVHeader); err != nil {
		g.internalError(c, "failed to export engagements", err)
		return
	}

	err := g.store.EachEngagement(c.Request.Context(), func(ev models.EngagementEvent) error {
		return w.Write(engagementRow(ev))
	})
	w.Flush()
	if err == nil {
		err = w.Error()
	}
	if err != nil {
		g.internalError(c, "failed to export engagements", err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="engagements.csv"`)
	c.Data(http.StatusOK, "text/csv", buf.Bytes())
}

func engagementRow(ev models.EngagementEvent) []string {
	ts := ""
	if !ev.Timestamp.IsZero() {
		ts = ev.Timestamp.UTC().Format(time.RFC3339)
	}
	return []string{
		ev.UserID,
		ev.Age,
		ev.Job,
		strings.Join(ev.Desires, ","),
		ev.QuestionText,
		ev.Service,
		ev.Ad,
		ev.Source,
		ts,
	}
}
