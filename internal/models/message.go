// Package models holds the canonical message shapes produced by scraping.
package models

import (
	"strings"
	"time"
)

// Author identifies the account that posted a message.
type Author struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Attachment is a downloadable file referenced by a message. Filenames are
// not unique across messages; archive paths disambiguate by message id.
type Attachment struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
}

// ReferencedMessage is the reduced record embedded for replies and
// forwards. It never nests another reference.
type ReferencedMessage struct {
	ID          string       `json:"id"`
	Content     string       `json:"content"`
	Timestamp   string       `json:"timestamp"`
	ChannelID   string       `json:"channel_id"`
	Author      Author       `json:"author"`
	Attachments []Attachment `json:"attachments"`
}

// Message is one normalized channel message. Immutable once constructed.
// Timestamps are carried as the platform's ISO-8601 strings.
type Message struct {
	ID                string             `json:"id"`
	Content           string             `json:"content"`
	Timestamp         string             `json:"timestamp"`
	ChannelID         string             `json:"channel_id"`
	Author            Author             `json:"author"`
	Attachments       []Attachment       `json:"attachments"`
	ReferencedMessage *ReferencedMessage `json:"referenced_message"`
}

// Date returns the calendar-date portion (YYYY-MM-DD) of the timestamp.
func (m Message) Date() string {
	if i := strings.IndexByte(m.Timestamp, 'T'); i >= 0 {
		return m.Timestamp[:i]
	}
	return m.Timestamp
}

// timestamp layouts accepted from the platform. RFC3339 covers the usual
// offset-carrying form; the offset-less form is interpreted in local time,
// consistent with the local-midnight start-date rule.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
}

// ParseTimestamp parses a platform ISO-8601 timestamp.
func ParseTimestamp(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range timestampLayouts {
		if layout == time.RFC3339Nano {
			t, err := time.Parse(layout, s)
			if err == nil {
				return t, nil
			}
			lastErr = err
			continue
		}
		t, err := time.ParseInLocation(layout, s, time.Local)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
