package endpoints

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sitecraft/webhook-outbox/delivery"
	"github.com/sitecraft/webhook-outbox/delivery/event"
	"github.com/sitecraft/webhook-outbox/delivery/signature"
	"gopkg.in/yaml.v3"
)

/* Loader seeds webhook endpoints from endpoints.yaml into the store at
 * boot. Endpoints that already exist are left untouched so their health
 * counters and active flag survive restarts.
 */

// Config represents the structure of endpoints.yaml
type Config struct {
	Endpoints []EndpointConfig `yaml:"endpoints"`
}

// EndpointConfig represents a single endpoint in the YAML file
type EndpointConfig struct {
	EndpointID       string            `yaml:"endpoint_id"`
	URL              string            `yaml:"url"`
	Secret           string            `yaml:"secret"` // Optional: generated when omitted
	SubscribedEvents []string          `yaml:"subscribed_events"`
	CustomHeaders    map[string]string `yaml:"custom_headers"`
}

// Loader holds the parsed endpoint definitions
type Loader struct {
	endpoints []delivery.Endpoint
}

// NewLoader creates a new endpoint loader
func NewLoader() *Loader {
	return &Loader{}
}

// Load reads and parses the endpoints.yaml file
func (l *Loader) Load(filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("reading endpoints file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("parsing endpoints YAML: %w", err)
	}

	now := time.Now()
	for _, ec := range config.Endpoints {
		for _, pattern := range ec.SubscribedEvents {
			if err := event.ValidatePattern(pattern); err != nil {
				return fmt.Errorf("endpoint %s: %w", ec.EndpointID, err)
			}
		}

		secret := ec.Secret
		if secret == "" {
			secret, err = signature.GenerateSecret()
			if err != nil {
				return fmt.Errorf("generating secret for %s: %w", ec.EndpointID, err)
			}
		}

		ep := delivery.Endpoint{
			ID:               ec.EndpointID,
			URL:              ec.URL,
			Secret:           secret,
			IsActive:         true,
			SubscribedEvents: ec.SubscribedEvents,
			CustomHeaders:    ec.CustomHeaders,
			CreatedAt:        now,
			UpdatedAt:        now,
		}

		if err := ep.Validate(); err != nil {
			return fmt.Errorf("validating endpoint %s: %w", ec.EndpointID, err)
		}

		l.endpoints = append(l.endpoints, ep)
	}

	return nil
}

// List returns the parsed endpoint definitions
func (l *Loader) List() []delivery.Endpoint {
	return l.endpoints
}

// Seed upserts the loaded endpoints into the store, skipping ids that
// already exist
func (l *Loader) Seed(ctx context.Context, repo delivery.Repository) error {
	for _, ep := range l.endpoints {
		_, err := repo.GetEndpoint(ctx, ep.ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, delivery.ErrNotFound) {
			return fmt.Errorf("checking endpoint %s: %w", ep.ID, err)
		}

		if _, err := repo.StoreEndpoint(ctx, ep); err != nil {
			return fmt.Errorf("seeding endpoint %s: %w", ep.ID, err)
		}
	}

	return nil
}
