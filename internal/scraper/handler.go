package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fenrik/chanvault/internal/logger"
	"github.com/fenrik/chanvault/internal/models"
	"github.com/fenrik/chanvault/internal/platform"
	"github.com/fenrik/chanvault/internal/store"
)

// Scraper runs the fetch-paginate-normalize pipeline.
type Scraper interface {
	Scrape(ctx context.Context, req ScrapeRequest) ([]models.Message, error)
}

// ArchiveBuilder produces the download archive modes.
type ArchiveBuilder interface {
	BuildJSON(channelID string, messages []models.Message) ([]byte, error)
	WriteAttachmentsZip(ctx context.Context, w io.Writer, channelID string, messages []models.Message) error
	BuildDataset(ctx context.Context, channelID string, messages []models.Message) (io.ReadCloser, string, error)
}

// TokenValidator checks a token against the platform before it is saved.
type TokenValidator interface {
	CurrentUser(ctx context.Context, token string) (*platform.RawAuthor, error)
}

// CredentialsStore persists tokens.
type CredentialsStore interface {
	Save(ctx context.Context, token string) error
	Latest(ctx context.Context) (*store.SavedCredential, error)
}

// ChannelsStore persists channel identifiers.
type ChannelsStore interface {
	Save(ctx context.Context, channelID, name string) error
	List(ctx context.Context) ([]store.SavedChannel, error)
}

// Handler handles HTTP requests for the scraping service.
type Handler struct {
	svc            Scraper
	sessions       *SessionCache
	builder        ArchiveBuilder
	validator      TokenValidator
	credentials    CredentialsStore
	channels       ChannelsStore
	datasetTimeout time.Duration
	log            *logger.Logger
}

// NewHandler creates a new handler.
func NewHandler(
	svc Scraper,
	sessions *SessionCache,
	builder ArchiveBuilder,
	validator TokenValidator,
	credentials CredentialsStore,
	channels ChannelsStore,
	datasetTimeout time.Duration,
	log *logger.Logger,
) *Handler {
	return &Handler{
		svc:            svc,
		sessions:       sessions,
		builder:        builder,
		validator:      validator,
		credentials:    credentials,
		channels:       channels,
		datasetTimeout: datasetTimeout,
		log:            log,
	}
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// Scrape handles POST /api/scrape
func (h *Handler) Scrape(w http.ResponseWriter, r *http.Request) {
	var req ScrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}

	if err := req.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	messages, err := h.svc.Scrape(r.Context(), req)
	if err != nil {
		h.respondScrapeError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, ScrapeResponse{
		Messages:     messages,
		MessageCount: len(messages),
		DownloadURLs: map[string]string{
			"json":        "/api/download/json/" + req.ChannelID,
			"attachments": "/api/download/attachments/" + req.ChannelID,
			"dataset":     "/api/download/dataset/" + req.ChannelID,
		},
	})
}

// respondScrapeError maps pipeline failures to HTTP responses. Upstream
// platform errors keep their original status code and body; internal
// failures are logged and answered with a generic message.
func (h *Handler) respondScrapeError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrInvalidStartDate) {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var apiErr *platform.APIError
	if errors.As(err, &apiErr) {
		respondError(w, apiErr.StatusCode, "platform api error: "+apiErr.Body)
		return
	}

	h.log.Error().Err(err).Msg("scrape failed")
	respondError(w, http.StatusInternalServerError, "scrape failed")
}

// DownloadJSON handles GET /api/download/json/{channelID}
func (h *Handler) DownloadJSON(w http.ResponseWriter, r *http.Request) {
	channelID := chi.URLParam(r, "channelID")
	messages, ok := h.sessions.Get(channelID)
	if !ok {
		respondError(w, http.StatusNotFound, "no data found for this channel")
		return
	}

	data, err := h.builder.BuildJSON(channelID, messages)
	if err != nil {
		h.log.Error().Err(err).Str("channel_id", channelID).Msg("json export failed")
		respondError(w, http.StatusInternalServerError, "failed to build export")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "messages_"+channelID+".json"))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.log.Warn().Err(err).Msg("client aborted json download")
	}
}

// DownloadAttachments handles GET /api/download/attachments/{channelID}
func (h *Handler) DownloadAttachments(w http.ResponseWriter, r *http.Request) {
	channelID := chi.URLParam(r, "channelID")
	messages, ok := h.sessions.Get(channelID)
	if !ok {
		respondError(w, http.StatusNotFound, "no data found for this channel")
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "attachments_"+channelID+".zip"))
	w.WriteHeader(http.StatusOK)

	// status is already written; a mid-stream failure can only be logged
	if err := h.builder.WriteAttachmentsZip(r.Context(), w, channelID, messages); err != nil {
		h.log.Error().Err(err).Str("channel_id", channelID).Msg("attachments archive failed mid-stream")
	}
}

// DownloadDataset handles GET /api/download/dataset/{channelID}
func (h *Handler) DownloadDataset(w http.ResponseWriter, r *http.Request) {
	channelID := chi.URLParam(r, "channelID")
	messages, ok := h.sessions.Get(channelID)
	if !ok {
		respondError(w, http.StatusNotFound, "no data found for this channel")
		return
	}

	// large attachment sets get a generous build budget
	ctx, cancel := context.WithTimeout(r.Context(), h.datasetTimeout)
	defer cancel()

	rc, filename, err := h.builder.BuildDataset(ctx, channelID, messages)
	if err != nil {
		h.log.Error().Err(err).Str("channel_id", channelID).Msg("dataset build failed")
		respondError(w, http.StatusInternalServerError, "failed to build dataset")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.log.Warn().Err(err).Msg("client aborted dataset download")
	}
}

// SaveCredentialRequest is the body of POST /api/credentials/save
type SaveCredentialRequest struct {
	Token string `json:"token"`
}

// SaveCredential handles POST /api/credentials/save
func (h *Handler) SaveCredential(w http.ResponseWriter, r *http.Request) {
	var req SaveCredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Token == "" {
		respondError(w, http.StatusBadRequest, "token is required")
		return
	}

	// check the token against the platform before persisting
	if _, err := h.validator.CurrentUser(r.Context(), req.Token); err != nil {
		var apiErr *platform.APIError
		if errors.As(err, &apiErr) {
			respondError(w, http.StatusBadRequest, "invalid token")
			return
		}
		h.log.Error().Err(err).Msg("token validation failed")
		respondError(w, http.StatusInternalServerError, "failed to validate token")
		return
	}

	if err := h.credentials.Save(r.Context(), req.Token); err != nil {
		h.log.Error().Err(err).Msg("failed to save credential")
		respondError(w, http.StatusInternalServerError, "failed to save token")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "token saved"})
}

// LatestCredential handles GET /api/credentials/latest
func (h *Handler) LatestCredential(w http.ResponseWriter, r *http.Request) {
	cred, err := h.credentials.Latest(r.Context())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "no saved credentials found")
			return
		}
		h.log.Error().Err(err).Msg("failed to load latest credential")
		respondError(w, http.StatusInternalServerError, "failed to load credential")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"token": cred.Token})
}

// SaveChannelRequest is the body of POST /api/channels/save
type SaveChannelRequest struct {
	ChannelID string `json:"channel_id"`
	Name      string `json:"name"`
}

// SaveChannel handles POST /api/channels/save
func (h *Handler) SaveChannel(w http.ResponseWriter, r *http.Request) {
	var req SaveChannelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.ChannelID == "" {
		respondError(w, http.StatusBadRequest, "channel_id is required")
		return
	}

	if err := h.channels.Save(r.Context(), req.ChannelID, req.Name); err != nil {
		h.log.Error().Err(err).Str("channel_id", req.ChannelID).Msg("failed to save channel")
		respondError(w, http.StatusInternalServerError, "failed to save channel")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "channel saved"})
}

// ListChannels handles GET /api/channels
func (h *Handler) ListChannels(w http.ResponseWriter, r *http.Request) {
	channels, err := h.channels.List(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list channels")
		respondError(w, http.StatusInternalServerError, "failed to list channels")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"channels": channels})
}

// helper functions

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
