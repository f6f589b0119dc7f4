package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fenrik/chanvault/internal/logger"
	"github.com/fenrik/chanvault/internal/models"
	"github.com/fenrik/chanvault/internal/platform"
)

// platform page size ceiling
const pageSize = 100

// PlatformClient is the platform API surface the scraper needs.
type PlatformClient interface {
	ListMessages(ctx context.Context, token, channelID, before string, limit int) ([]platform.RawMessage, error)
	GetMessage(ctx context.Context, token, channelID, messageID string) (*platform.RawMessage, error)
}

// EventPublisher publishes scrape lifecycle events.
type EventPublisher interface {
	PublishScrapeCompleted(ctx context.Context, event ScrapeCompletedEvent) error
}

// ScrapeCompletedEvent is emitted after a successful scrape.
type ScrapeCompletedEvent struct {
	ScrapeID     uuid.UUID `json:"scrape_id"`
	ChannelID    string    `json:"channel_id"`
	MessageCount int       `json:"message_count"`
	StartDate    string    `json:"start_date"`
	CompletedAt  time.Time `json:"completed_at"`
}

// pageSource produces ordered batches of raw messages, newest first.
// Decoupled from the date-filter policy so termination is testable without
// the network.
type pageSource func(ctx context.Context, before string) ([]platform.RawMessage, error)

// Service orchestrates the fetch-paginate-normalize pipeline. One scrape is
// a single sequential unit of work; pages and referenced messages are
// fetched one at a time.
type Service struct {
	client    PlatformClient
	pageDelay time.Duration
	sessions  *SessionCache
	publisher EventPublisher
	log       *logger.Logger
}

// NewService creates a new scraper service. publisher may be nil, which
// disables event publishing.
func NewService(client PlatformClient, pageDelay time.Duration, sessions *SessionCache, publisher EventPublisher, log *logger.Logger) *Service {
	return &Service{
		client:    client,
		pageDelay: pageDelay,
		sessions:  sessions,
		publisher: publisher,
		log:       log,
	}
}

// Scrape fetches channel history newer than the request's start date,
// newest first, truncated to the request limit, and caches the result for
// the download endpoints. A page-fetch failure aborts the whole scrape;
// nothing partial is cached or returned.
func (s *Service) Scrape(ctx context.Context, req ScrapeRequest) ([]models.Message, error) {
	startTs, err := parseStartDate(req.StartDate)
	if err != nil {
		return nil, err
	}

	scrapeID := uuid.New()
	s.log.Info().
		Str("scrape_id", scrapeID.String()).
		Str("channel_id", req.ChannelID).
		Str("start_date", req.StartDate).
		Int("limit", req.Limit()).
		Msg("starting scrape")

	src := func(ctx context.Context, before string) ([]platform.RawMessage, error) {
		return s.client.ListMessages(ctx, req.Token, req.ChannelID, before, pageSize)
	}
	fetchRef := func(ctx context.Context, channelID, messageID string) (*platform.RawMessage, error) {
		return s.client.GetMessage(ctx, req.Token, channelID, messageID)
	}

	messages, err := s.paginate(ctx, src, fetchRef, req.ChannelID, startTs, req.Limit())
	if err != nil {
		return nil, err
	}

	s.sessions.Put(req.ChannelID, messages)

	if s.publisher != nil {
		event := ScrapeCompletedEvent{
			ScrapeID:     scrapeID,
			ChannelID:    req.ChannelID,
			MessageCount: len(messages),
			StartDate:    req.StartDate,
			CompletedAt:  time.Now().UTC(),
		}
		if err := s.publisher.PublishScrapeCompleted(ctx, event); err != nil {
			s.log.Warn().Err(err).Msg("failed to publish scrape event")
		}
	}

	s.log.Info().
		Str("scrape_id", scrapeID.String()).
		Int("messages", len(messages)).
		Msg("scrape completed")

	return messages, nil
}

// paginate walks history pages with a "before" cursor until the limit is
// reached, history is exhausted, or the date boundary is crossed.
//
// Scanning a page stops at the first message strictly older than startTs
// and discards the remainder of that page. This assumes the upstream keeps
// each page strictly newest-first (which it does); an out-of-order page
// would silently drop valid trailing messages.
func (s *Service) paginate(ctx context.Context, src pageSource, fetchRef RefFetcher, channelID string, startTs int64, limit int) ([]models.Message, error) {
	messages := []models.Message{}
	before := ""

	// a non-positive limit means no upstream calls and an empty result
	if limit < 0 {
		limit = 0
	}

	// each scrape paces itself; pipelines share no limiter state
	pacer := platform.NewPacer(s.pageDelay)

	for len(messages) < limit {
		if err := pacer.Wait(ctx); err != nil {
			return nil, err
		}

		page, err := src(ctx, before)
		if err != nil {
			return nil, fmt.Errorf("fetch page: %w", err)
		}
		if len(page) == 0 {
			// exhausted history
			break
		}

		survivors := 0
		for _, raw := range page {
			ts, err := models.ParseTimestamp(raw.Timestamp)
			if err != nil {
				s.log.Warn().
					Err(err).
					Str("message_id", raw.ID).
					Msg("skipping message with unparseable timestamp")
				continue
			}
			if ts.UnixMilli() < startTs {
				// boundary crossed, rest of this page is older
				break
			}
			messages = append(messages, normalizeMessage(ctx, raw, channelID, fetchRef, s.log))
			survivors++
		}

		if survivors == 0 {
			// whole page is past the boundary
			break
		}

		// cursor is the oldest message of the raw page, not of the survivors
		before = page[len(page)-1].ID
	}

	if len(messages) > limit {
		messages = messages[:limit]
	}
	return messages, nil
}

// parseStartDate interprets YYYY-MM-DD at local midnight as epoch millis.
func parseStartDate(s string) (int64, error) {
	t, err := time.ParseInLocation("2006-01-02", s, time.Local)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidStartDate, s)
	}
	return t.UnixMilli(), nil
}
