package clients

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/example/citizenportal/pkg/config"
	"github.com/example/citizenportal/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testBreaker() *config.BreakerConfig {
	return &config.BreakerConfig{
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      time.Minute,
		MinRequests:  2,
		FailureRatio: 0.5,
	}
}

func TestListEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/engagement", r.URL.Path)
		assert.Equal(t, "u1", r.URL.Query().Get("user_id"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"user_id":"u1","service":"Health","timestamp":"2024-01-02T03:04:05Z"},{"user_id":"u1","service":"Tax","timestamp":"2024-01-02T03:04:06Z"}]`))
	}))
	defer srv.Close()

	client := NewPortalClient(srv.URL, time.Second, testBreaker(), zap.NewNop())
	events, err := client.ListEvents(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "Health", events[0].Service)
	assert.Equal(t, "Tax", events[1].Service)
}

func TestListServices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/services", r.URL.Path)
		_, _ = w.Write([]byte(`[{"id":"svc_health","category":"cat_1","name":{"en":"Health"},"subservices":[{"id":"sub_1","name":{"en":"Clinic"}}]}]`))
	}))
	defer srv.Close()

	client := NewPortalClient(srv.URL, time.Second, testBreaker(), zap.NewNop())
	services, err := client.ListServices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.Service{{
		ID:          "svc_health",
		Category:    "cat_1",
		Name:        models.LocalizedText{"en": "Health"},
		Subservices: []models.Subservice{{ID: "sub_1", Name: models.LocalizedText{"en": "Clinic"}}},
	}}, services)
}

func TestCircuitOpensAfterFailures(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewPortalClient(srv.URL, time.Second, testBreaker(), zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := client.ListEvents(ctx, "u1")
		require.Error(t, err)
	}

	_, err := client.ListEvents(ctx, "u1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is open")
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}
