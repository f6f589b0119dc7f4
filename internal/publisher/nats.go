// Package publisher emits scrape lifecycle events over NATS.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/fenrik/chanvault/internal/scraper"
)

// SubjectScrapeCompleted is the subject scrape completion events go to.
const SubjectScrapeCompleted = "scrapes.completed"

// NATSClient interface to allow mocking
type NATSClient interface {
	Publish(subject string, data []byte) error
}

// NATSPublisher implements scraper.EventPublisher
type NATSPublisher struct {
	nc NATSClient
}

// NewNATSPublisher creates a new publisher
func NewNATSPublisher(conn *nats.Conn) *NATSPublisher {
	return &NATSPublisher{nc: conn}
}

// PublishScrapeCompleted publishes a scrape completion event
func (p *NATSPublisher) PublishScrapeCompleted(_ context.Context, event scraper.ScrapeCompletedEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := p.nc.Publish(SubjectScrapeCompleted, data); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}

	return nil
}
