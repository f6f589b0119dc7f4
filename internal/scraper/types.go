// Package scraper drives paginated history fetching and exposes the HTTP API.
package scraper

import (
	"errors"

	"github.com/fenrik/chanvault/internal/models"
)

// ScrapeRequest is the body of POST /api/scrape.
// MessageLimit is a pointer so an explicit 0 is distinguishable from an
// omitted field, which defaults to 1000.
type ScrapeRequest struct {
	Token        string `json:"token"`
	ChannelID    string `json:"channel_id"`
	StartDate    string `json:"start_date"`
	MessageLimit *int   `json:"message_limit"`
}

const defaultMessageLimit = 1000

// Limit returns the effective message limit.
func (r *ScrapeRequest) Limit() int {
	if r.MessageLimit == nil {
		return defaultMessageLimit
	}
	return *r.MessageLimit
}

// Validate checks required fields.
func (r *ScrapeRequest) Validate() error {
	if r.Token == "" {
		return errors.New("token is required")
	}
	if r.ChannelID == "" {
		return errors.New("channel_id is required")
	}
	if r.StartDate == "" {
		return errors.New("start_date is required")
	}
	return nil
}

// ScrapeResponse is the body returned by POST /api/scrape.
type ScrapeResponse struct {
	Messages     []models.Message  `json:"messages"`
	MessageCount int               `json:"message_count"`
	DownloadURLs map[string]string `json:"download_urls"`
}

// ErrInvalidStartDate marks a start_date that does not parse as YYYY-MM-DD.
// Handlers translate it to a 400 response.
var ErrInvalidStartDate = errors.New("invalid start_date, expected YYYY-MM-DD")
