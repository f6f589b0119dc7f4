package scraper

import (
	"sync"

	"github.com/fenrik/chanvault/internal/models"
)

// SessionCache maps a channel id to the most recent list of messages
// scraped for it. One entry per channel, overwritten on each scrape,
// lifetime bound to the process. Writes are last-writer-wins: a scrape of a
// channel racing with a download for the same channel may observe either
// the old or the new result.
type SessionCache struct {
	mu      sync.RWMutex
	results map[string][]models.Message
}

// NewSessionCache creates an empty session cache.
func NewSessionCache() *SessionCache {
	return &SessionCache{
		results: make(map[string][]models.Message),
	}
}

// Put stores the scrape result for a channel, replacing any previous one.
func (c *SessionCache) Put(channelID string, messages []models.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results[channelID] = messages
}

// Get returns the stored result for a channel. The second return is false
// when no scrape has completed for the channel in this process.
func (c *SessionCache) Get(channelID string) ([]models.Message, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	messages, ok := c.results[channelID]
	return messages, ok
}
