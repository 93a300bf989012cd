package gateway

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/example/citizenportal/pkg/config"
	"github.com/example/citizenportal/pkg/models"
	"github.com/example/citizenportal/pkg/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeStore struct {
	mu          sync.Mutex
	categories  []models.Category
	services    []models.Service
	ads         []models.Ad
	engagements []models.EngagementEvent
	profiles    map[string]map[string]interface{}
}

func newFakeStore() *fakeStore {
	return &fakeStore{profiles: map[string]map[string]interface{}{}}
}

func (f *fakeStore) ListCategories(context.Context) ([]models.Category, error) {
	return append([]models.Category{}, f.categories...), nil
}

func (f *fakeStore) CreateCategory(_ context.Context, c *models.Category) error {
	for _, existing := range f.categories {
		if existing.ID == c.ID {
			return repository.ErrDuplicate
		}
	}
	f.categories = append(f.categories, *c)
	return nil
}

func (f *fakeStore) ListServices(_ context.Context, category string) ([]models.Service, error) {
	out := []models.Service{}
	for _, s := range f.services {
		if category == "" || s.Category == category {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) GetService(_ context.Context, id string) (*models.Service, error) {
	for _, s := range f.services {
		if s.ID == id {
			return &s, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeStore) ListAds(context.Context) ([]models.Ad, error) {
	return append([]models.Ad{}, f.ads...), nil
}

func (f *fakeStore) AppendEngagement(_ context.Context, ev *models.EngagementEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.engagements = append(f.engagements, *ev)
	return nil
}

func (f *fakeStore) ListEngagements(_ context.Context, userID string) ([]models.EngagementEvent, error) {
	out := []models.EngagementEvent{}
	for _, ev := range f.engagements {
		if userID == "" || ev.UserID == userID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (f *fakeStore) EachEngagement(_ context.Context, fn func(models.EngagementEvent) error) error {
	for _, ev := range f.engagements {
		if err := fn(ev); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeStore) DeleteUserEngagements(_ context.Context, userID string) (int64, error) {
	return f.deleteWhere(func(ev models.EngagementEvent) bool { return ev.UserID == userID }), nil
}

func (f *fakeStore) DeleteEngagementsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	return f.deleteWhere(func(ev models.EngagementEvent) bool { return ev.Timestamp.Before(cutoff) }), nil
}

func (f *fakeStore) deleteWhere(match func(models.EngagementEvent) bool) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.engagements[:0]
	var n int64
	for _, ev := range f.engagements {
		if match(ev) {
			n++
			continue
		}
		kept = append(kept, ev)
	}
	f.engagements = kept
	return n
}

func (f *fakeStore) CreateProfile(_ context.Context, data map[string]interface{}) (string, error) {
	id := fmt.Sprintf("%024d", len(f.profiles)+1)
	f.profiles[id] = data
	return id, nil
}

func (f *fakeStore) UpdateProfile(_ context.Context, id string, data map[string]interface{}) error {
	if len(id) != 24 {
		return repository.ErrInvalidID
	}
	p, ok := f.profiles[id]
	if !ok {
		return repository.ErrNotFound
	}
	for k, v := range data {
		p[k] = v
	}
	return nil
}

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func sampleServices() []models.Service {
	return []models.Service{
		{
			ID:       "svc_immigration",
			Category: "cat_travel",
			Name:     models.LocalizedText{"en": "Immigration"},
			Subservices: []models.Subservice{{
				ID:   "sub_passport",
				Name: models.LocalizedText{"en": "Passport"},
				Questions: []models.Question{
					{Q: models.LocalizedText{"en": "How do I renew my passport?"}, Answer: models.LocalizedText{"en": "Apply online."}},
					{Q: models.LocalizedText{"en": "What documents are needed?"}, Answer: models.LocalizedText{"en": "Birth certificate."}},
				},
			}},
		},
		{
			ID:       "svc_health",
			Category: "cat_health",
			Name:     models.LocalizedText{"en": "Health"},
			Subservices: []models.Subservice{{
				ID:        "sub_clinic",
				Name:      models.LocalizedText{"en": "Clinics"},
				Questions: []models.Question{{Q: models.LocalizedText{"en": "Where is the nearest clinic?"}, Answer: models.LocalizedText{"en": "See the map."}}},
			}},
		},
	}
}

func newTestGateway(t *testing.T) (*Gateway, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	store.services = sampleServices()
	store.categories = []models.Category{{ID: "cat_travel", Name: models.LocalizedText{"en": "Travel"}}}
	store.ads = []models.Ad{{Title: "Renew early"}}

	cfg := &config.Config{Gateway: config.GatewayConfig{AdminToken: "secret"}}
	gw := NewGateway(cfg, store, zap.NewNop())
	gw.now = func() time.Time { return fixedNow }
	gw.SetupRoutes()
	return gw, store
}

func do(t *testing.T, gw *Gateway, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	gw.Handler().ServeHTTP(w, req)
	return w
}

func TestCatalogEndpoints(t *testing.T) {
	gw, _ := newTestGateway(t)

	w := do(t, gw, http.MethodGet, "/api/services?category=cat_health", "")
	require.Equal(t, http.StatusOK, w.Code)
	var services []models.Service
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &services))
	require.Len(t, services, 1)
	assert.Equal(t, "svc_health", services[0].ID)

	w = do(t, gw, http.MethodGet, "/api/service/svc_immigration", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"Passport"`)

	w = do(t, gw, http.MethodGet, "/api/service/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, gw, http.MethodGet, "/api/categories", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "cat_travel")

	w = do(t, gw, http.MethodGet, "/api/ads", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Renew early")
}

func TestEngagementAppendAndList(t *testing.T) {
	gw, store := newTestGateway(t)

	w := do(t, gw, http.MethodPost, "/api/engagement", `{"user_id":"u1","service":"Health","question_clicked":"Where is the nearest clinic?","age":34}`)
	require.Equal(t, http.StatusOK, w.Code)
	w = do(t, gw, http.MethodPost, "/api/engagement", `{"user_id":"u2","service":"Immigration","age":"41"}`)
	require.Equal(t, http.StatusOK, w.Code)

	require.Len(t, store.engagements, 2)
	assert.Equal(t, "34", store.engagements[0].Age)
	assert.Equal(t, fixedNow, store.engagements[0].Timestamp)

	w = do(t, gw, http.MethodGet, "/api/engagement?user_id=u1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var events []models.EngagementEvent
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &events))
	require.Len(t, events, 1)
	assert.Equal(t, "Health", events[0].Service)
}

func TestConsentDropsAdvertisingFields(t *testing.T) {
	gw, store := newTestGateway(t)

	w := do(t, gw, http.MethodPost, "/api/engagement/consent", `{"user_id":"u1","desires":["jobs"],"ad":"banner-1","consent_ads":false}`)
	require.Equal(t, http.StatusOK, w.Code)
	w = do(t, gw, http.MethodPost, "/api/engagement/consent", `{"user_id":"u2","desires":["jobs"],"ad":"banner-1"}`)
	require.Equal(t, http.StatusOK, w.Code)

	require.Len(t, store.engagements, 2)
	assert.Empty(t, store.engagements[0].Desires)
	assert.Empty(t, store.engagements[0].Ad)
	assert.Equal(t, []string{"jobs"}, store.engagements[1].Desires)
	assert.Equal(t, "banner-1", store.engagements[1].Ad)
}

func TestDeleteUserData(t *testing.T) {
	gw, store := newTestGateway(t)
	store.engagements = []models.EngagementEvent{{UserID: "u1"}, {UserID: "u2"}, {UserID: "u1"}}

	w := do(t, gw, http.MethodPost, "/api/user/delete", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, gw, http.MethodPost, "/api/user/delete", `{"user_id":"u1"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"deleted"}`, w.Body.String())
	assert.Equal(t, []models.EngagementEvent{{UserID: "u2"}}, store.engagements)
}

func TestProfileSteps(t *testing.T) {
	gw, store := newTestGateway(t)

	w := do(t, gw, http.MethodPost, "/api/profile/step", `{"step":"basic","data":{"name":"Nimal"}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Email required")

	w = do(t, gw, http.MethodPost, "/api/profile/step", `{"step":"basic","data":{"name":"Nimal","email":"nimal@example.lk"}}`)
	require.Equal(t, http.StatusOK, w.Code)
	var resp models.ProfileStepResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.ProfileID)

	w = do(t, gw, http.MethodPost, "/api/profile/step", fmt.Sprintf(`{"step":"contact","profile_id":%q,"data":{"phone":"0771234567"}}`, resp.ProfileID))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0771234567", store.profiles[resp.ProfileID]["phone"])

	w = do(t, gw, http.MethodPost, "/api/profile/step", `{"step":"contact","profile_id":"bad","data":{}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, gw, http.MethodPost, "/api/profile/step", `{"step":"contact","data":{}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSearch(t *testing.T) {
	res := Search(sampleServices(), "PASSPORT", 0)
	require.Len(t, res.Results, 2)
	assert.Equal(t, "Apply online.", res.Answer)
	assert.Equal(t, "Passport", res.Results[0].Subservice)

	res = Search(sampleServices(), "passport", 1)
	assert.Len(t, res.Results, 1)

	res = Search(sampleServices(), "tax refund", 5)
	assert.Empty(t, res.Results)
	assert.NotNil(t, res.Results)
	assert.Equal(t, "No answer found.", res.Answer)
}

func TestSearchEndpoint(t *testing.T) {
	gw, _ := newTestGateway(t)

	w := do(t, gw, http.MethodPost, "/api/ai/search", `{"query":"  "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, gw, http.MethodPost, "/api/ai/search", `{"query":"clinic"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var res models.SearchResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "See the map.", res.Answer)
}

func TestAdminRoutesRequireToken(t *testing.T) {
	gw, store := newTestGateway(t)

	w := do(t, gw, http.MethodPost, "/api/admin/categories", `{"id":"cat_tax","name":{"en":"Tax"}}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, gw, http.MethodPost, "/api/admin/categories", `{"id":"cat_tax","name":{"en":"Tax"}}`, adminTokenHeader, "secret")
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Len(t, store.categories, 2)

	w = do(t, gw, http.MethodPost, "/api/admin/categories", `{"id":"cat_tax","name":{"en":"Tax"}}`, adminTokenHeader, "secret")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "already exists")

	w = do(t, gw, http.MethodPost, "/api/admin/categories", `{"id":"cat_x"}`, adminTokenHeader, "secret")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExportEngagementCSV(t *testing.T) {
	gw, store := newTestGateway(t)
	store.engagements = []models.EngagementEvent{
		{UserID: "u1", Age: "34", Job: "nurse", Desires: []string{"jobs", "housing"}, Service: "Health", Timestamp: fixedNow},
		{UserID: "u2", QuestionText: "How do I renew my passport?"},
	}

	w := do(t, gw, http.MethodGet, "/api/admin/export_engagement_csv", "", adminTokenHeader, "secret")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))

	rows, err := csv.NewReader(strings.NewReader(w.Body.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, engagementCSVHeader, rows[0])
	assert.Equal(t, []string{"u1", "34", "nurse", "jobs,housing", "", "Health", "", "", "2024-05-01T12:00:00Z"}, rows[1])
	assert.Equal(t, "How do I renew my passport?", rows[2][4])
}

func TestRetentionSweep(t *testing.T) {
	store := newFakeStore()
	store.engagements = []models.EngagementEvent{
		{UserID: "old", Timestamp: fixedNow.AddDate(-2, 0, 0)},
		{UserID: "recent", Timestamp: fixedNow.AddDate(0, -1, 0)},
	}

	sweeper := NewRetentionSweeper(store, 365*24*time.Hour, time.Hour, zap.NewNop())
	sweeper.now = func() time.Time { return fixedNow }

	n, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	require.Len(t, store.engagements, 1)
	assert.Equal(t, "recent", store.engagements[0].UserID)
}

func TestRetentionRunStopsWithContext(t *testing.T) {
	store := newFakeStore()
	sweeper := NewRetentionSweeper(store, time.Hour, time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
