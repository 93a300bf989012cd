package recommend

import (
	"context"
	"errors"
	"testing"

	"github.com/example/citizenportal/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func events(services ...string) []models.EngagementEvent {
	out := make([]models.EngagementEvent, len(services))
	for i, s := range services {
		out[i] = models.EngagementEvent{UserID: "u1", Service: s}
	}
	return out
}

func TestRankCountsAndOrders(t *testing.T) {
	got := Rank(events("A", "B", "A", "C", "B", "A"), DefaultLimit)
	assert.Equal(t, []models.RecommendationEntry{
		{Service: "A", Count: 3},
		{Service: "B", Count: 2},
		{Service: "C", Count: 1},
	}, got)
}

func TestRankEmptyLog(t *testing.T) {
	got := Rank(nil, DefaultLimit)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestRankSkipsEventsWithoutService(t *testing.T) {
	log := events("", "A", "")
	log = append(log, models.EngagementEvent{QuestionText: "how do I renew a passport?"})
	assert.Equal(t, []models.RecommendationEntry{{Service: "A", Count: 1}}, Rank(log, DefaultLimit))
}

func TestRankTruncatesWithFirstSeenTiebreak(t *testing.T) {
	log := events("F", "E", "D", "C", "B", "A", "G", "A", "D", "G")
	got := Rank(log, DefaultLimit)

	require.Len(t, got, 5)
	assert.Equal(t, []models.RecommendationEntry{
		{Service: "D", Count: 2},
		{Service: "A", Count: 2},
		{Service: "G", Count: 2},
		{Service: "F", Count: 1},
		{Service: "E", Count: 1},
	}, got)
}

func TestRankIgnoresDemographics(t *testing.T) {
	log := []models.EngagementEvent{
		{Service: "Health", Age: "34", Job: "nurse", Desires: []string{"jobs"}},
		{Service: "Health"},
	}
	assert.Equal(t, []models.RecommendationEntry{{Service: "Health", Count: 2}}, Rank(log, 0))
}

func TestResolve(t *testing.T) {
	services := []models.Service{
		{ID: "svc_health", Name: models.LocalizedText{"en": "Health", "si": "සෞඛ්‍ය"},
			Subservices: []models.Subservice{{ID: "sub_clinic"}, {ID: "sub_other"}}},
		{ID: "svc_empty", Name: models.LocalizedText{"en": "Empty"}},
	}
	got := Resolve([]models.RecommendationEntry{
		{Service: "Health", Count: 2},
		{Service: "Empty", Count: 1},
		{Service: "Unknown", Count: 1},
	}, services)

	assert.Equal(t, []models.RecommendationEntry{
		{Service: "Health", Count: 2, ServiceID: "svc_health", SubserviceID: "sub_clinic"},
		{Service: "Empty", Count: 1, ServiceID: "svc_empty"},
		{Service: "Unknown", Count: 1},
	}, got)
}

type stubEvents struct {
	calls  int
	events []models.EngagementEvent
	err    error
}

func (s *stubEvents) ListEvents(context.Context, string) ([]models.EngagementEvent, error) {
	s.calls++
	return s.events, s.err
}

type stubCatalog struct {
	services []models.Service
	err      error
}

func (s *stubCatalog) ListServices(context.Context) ([]models.Service, error) {
	return s.services, s.err
}

func TestRecommenderWithoutUserSkipsFetch(t *testing.T) {
	src := &stubEvents{events: events("A")}
	r := NewRecommender(src, nil, DefaultLimit, zap.NewNop())

	assert.Empty(t, r.Recommend(context.Background(), ""))
	assert.Zero(t, src.calls)
}

func TestRecommenderDegradesOnFetchError(t *testing.T) {
	r := NewRecommender(&stubEvents{err: errors.New("timeout")}, nil, DefaultLimit, zap.NewNop())
	got := r.Recommend(context.Background(), "u1")
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestRecommenderResolvesAgainstCatalog(t *testing.T) {
	catalog := &stubCatalog{services: []models.Service{
		{ID: "svc_a", Name: models.LocalizedText{"en": "A"}, Subservices: []models.Subservice{{ID: "sub_a1"}}},
	}}
	r := NewRecommender(&stubEvents{events: events("B", "A", "A")}, catalog, DefaultLimit, zap.NewNop())

	got := r.Recommend(context.Background(), "u1")
	assert.Equal(t, []models.RecommendationEntry{
		{Service: "A", Count: 2, ServiceID: "svc_a", SubserviceID: "sub_a1"},
		{Service: "B", Count: 1},
	}, got)

	catalog.err = errors.New("catalog down")
	got = r.Recommend(context.Background(), "u1")
	assert.Equal(t, []models.RecommendationEntry{{Service: "A", Count: 2}, {Service: "B", Count: 1}}, got)
}
