package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/example/citizenportal/pkg/config"
	"github.com/example/citizenportal/pkg/models"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// PortalClient reads the engagement log and the service catalog from the
// portal gateway. It satisfies recommend.EventSource and recommend.Catalog.
type PortalClient struct {
	baseURL string
	http    *resty.Client
	circuit *CircuitBreaker
	logger  *zap.Logger
}

func NewPortalClient(baseURL string, timeout time.Duration, breaker *config.BreakerConfig, logger *zap.Logger) *PortalClient {
	return &PortalClient{
		baseURL: baseURL,
		http: resty.New().
			SetTimeout(timeout).
			SetRetryCount(0), // the circuit breaker decides when to stop calling
		circuit: NewCircuitBreaker("portal-gateway", "storefront", breaker, logger),
		logger:  logger,
	}
}

// ListEvents returns the engagement events of userID in insertion order.
func (p *PortalClient) ListEvents(ctx context.Context, userID string) ([]models.EngagementEvent, error) {
	var events []models.EngagementEvent
	err := p.get(ctx, "/api/engagement", map[string]string{"user_id": userID}, &events)
	if err != nil {
		return nil, err
	}
	return events, nil
}

// ListServices returns the whole service catalog.
func (p *PortalClient) ListServices(ctx context.Context) ([]models.Service, error) {
	var services []models.Service
	if err := p.get(ctx, "/api/services", nil, &services); err != nil {
		return nil, err
	}
	return services, nil
}

func (p *PortalClient) get(ctx context.Context, path string, query map[string]string, dest interface{}) error {
	_, err := p.circuit.Execute(func() (interface{}, error) {
		resp, httpErr := p.http.R().
			SetContext(ctx).
			SetHeader("Accept", "application/json").
			SetQueryParams(query).
			Get(p.baseURL + path)

		if httpErr != nil {
			return nil, fmt.Errorf("HTTP error: %w", httpErr)
		}

		if resp.StatusCode() != http.StatusOK {
			return nil, fmt.Errorf("portal gateway returned status %d: %s", resp.StatusCode(), resp.String())
		}

		if err := json.Unmarshal(resp.Body(), dest); err != nil {
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}
		return nil, nil
	})
	if err != nil {
		p.logger.Warn("Portal gateway call failed", zap.String("path", path), zap.Error(err))
	}
	return err
}
