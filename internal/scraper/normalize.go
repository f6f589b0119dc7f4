package scraper

import (
	"context"

	"github.com/fenrik/chanvault/internal/logger"
	"github.com/fenrik/chanvault/internal/models"
	"github.com/fenrik/chanvault/internal/platform"
)

// RefFetcher resolves a referenced message by channel and message id. It is
// injected so tests can substitute a stub.
type RefFetcher func(ctx context.Context, channelID, messageID string) (*platform.RawMessage, error)

// normalizeMessage projects a raw platform record into the canonical
// Message shape. Extra platform fields are dropped. A referenced message
// with empty content posted in a different channel (cross-channel forward)
// triggers one best-effort secondary fetch; its failure is logged and
// tolerated, never propagated.
func normalizeMessage(ctx context.Context, raw platform.RawMessage, requestChannelID string, fetchRef RefFetcher, log *logger.Logger) models.Message {
	channelID := raw.ChannelID
	if channelID == "" {
		channelID = requestChannelID
	}

	msg := models.Message{
		ID:          raw.ID,
		Content:     raw.Content,
		Timestamp:   raw.Timestamp,
		ChannelID:   channelID,
		Author:      models.Author{ID: raw.Author.ID, Username: raw.Author.Username},
		Attachments: normalizeAttachments(raw.Attachments),
	}

	if raw.ReferencedMessage != nil {
		msg.ReferencedMessage = normalizeReference(ctx, raw.ReferencedMessage, requestChannelID, fetchRef, log)
	}

	return msg
}

func normalizeReference(ctx context.Context, ref *platform.RawMessage, requestChannelID string, fetchRef RefFetcher, log *logger.Logger) *models.ReferencedMessage {
	content := ref.Content
	attachments := ref.Attachments

	if content == "" && ref.ChannelID != requestChannelID && fetchRef != nil {
		full, err := fetchRef(ctx, ref.ChannelID, ref.ID)
		if err != nil {
			log.Warn().
				Err(err).
				Str("message_id", ref.ID).
				Str("channel_id", ref.ChannelID).
				Msg("failed to resolve referenced message")
		} else {
			content = full.Content
			attachments = full.Attachments
		}
	}

	return &models.ReferencedMessage{
		ID:          ref.ID,
		Content:     content,
		Timestamp:   ref.Timestamp,
		ChannelID:   ref.ChannelID,
		Author:      models.Author{ID: ref.Author.ID, Username: ref.Author.Username},
		Attachments: normalizeAttachments(attachments),
	}
}

// normalizeAttachments always returns a non-nil slice so the JSON shape
// stays a list.
func normalizeAttachments(raw []platform.RawAttachment) []models.Attachment {
	attachments := make([]models.Attachment, 0, len(raw))
	for _, att := range raw {
		attachments = append(attachments, models.Attachment{
			URL:      att.URL,
			Filename: att.Filename,
		})
	}
	return attachments
}
