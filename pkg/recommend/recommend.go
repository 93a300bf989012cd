// Package recommend ranks catalog services by how often one user engaged with them.
package recommend

import (
	"context"
	"sort"

	"github.com/example/citizenportal/pkg/models"
	"go.uber.org/zap"
)

const DefaultLimit = 5

// Rank counts events per service and returns the most frequent services.
// Events without a service are ignored. Ties keep the order in which services
// first appear in events. limit <= 0 means DefaultLimit.
func Rank(events []models.EngagementEvent, limit int) []models.RecommendationEntry {
	if limit <= 0 {
		limit = DefaultLimit
	}

	entries := []models.RecommendationEntry{}
	index := make(map[string]int)
	for _, ev := range events {
		if ev.Service == "" {
			continue
		}
		if i, ok := index[ev.Service]; ok {
			entries[i].Count++
			continue
		}
		index[ev.Service] = len(entries)
		entries = append(entries, models.RecommendationEntry{Service: ev.Service, Count: 1})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Count > entries[j].Count
	})

	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

// Resolve points each entry at the first sub-service of the catalog service
// with the same English name. Entries without a match are left unresolved.
func Resolve(entries []models.RecommendationEntry, services []models.Service) []models.RecommendationEntry {
	byName := make(map[string]*models.Service, len(services))
	for i := range services {
		name := services[i].Name.In("en")
		if _, seen := byName[name]; !seen {
			byName[name] = &services[i]
		}
	}

	out := make([]models.RecommendationEntry, len(entries))
	for i, e := range entries {
		out[i] = e
		svc, ok := byName[e.Service]
		if !ok {
			continue
		}
		out[i].ServiceID = svc.ID
		if len(svc.Subservices) > 0 {
			out[i].SubserviceID = svc.Subservices[0].ID
		}
	}
	return out
}

// EventSource is the engagement-log collaborator.
type EventSource interface {
	ListEvents(ctx context.Context, userID string) ([]models.EngagementEvent, error)
}

// Catalog lists services for Resolve.
type Catalog interface {
	ListServices(ctx context.Context) ([]models.Service, error)
}

type Recommender struct {
	events  EventSource
	catalog Catalog
	limit   int
	logger  *zap.Logger
}

// NewRecommender builds a Recommender. catalog may be nil, in which case
// entries are returned unresolved.
func NewRecommender(events EventSource, catalog Catalog, limit int, logger *zap.Logger) *Recommender {
	return &Recommender{
		events:  events,
		catalog: catalog,
		limit:   limit,
		logger:  logger,
	}
}

// Recommend never fails: an unknown user or any fetch error yields an empty list.
func (r *Recommender) Recommend(ctx context.Context, userID string) []models.RecommendationEntry {
	if userID == "" {
		return []models.RecommendationEntry{}
	}

	events, err := r.events.ListEvents(ctx, userID)
	if err != nil {
		r.logger.Warn("Failed to fetch engagement log", zap.String("user_id", userID), zap.Error(err))
		return []models.RecommendationEntry{}
	}

	entries := Rank(events, r.limit)
	if len(entries) == 0 || r.catalog == nil {
		return entries
	}

	services, err := r.catalog.ListServices(ctx)
	if err != nil {
		r.logger.Warn("Failed to fetch catalog, recommendations left unresolved", zap.Error(err))
		return entries
	}
	return Resolve(entries, services)
}
