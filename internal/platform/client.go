// Package platform is a thin client for the chat platform's HTTP API.
package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Default timeouts for small API requests. Attachment downloads share the
// same per-request budget; dataset builds bound the whole session through
// the caller's context deadline.
const (
	dialTimeout    = 10 * time.Second
	requestTimeout = 30 * time.Second
)

// APIError is a non-2xx response from the platform. Callers decide whether
// it is fatal; the client never retries.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("platform api error: status %d: %s", e.StatusCode, e.Body)
}

// RawAuthor is the author object as the platform returns it.
type RawAuthor struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// RawAttachment is the attachment object as the platform returns it.
type RawAttachment struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
}

// RawMessage is a platform message record. Fields the system does not use
// are dropped at decode time.
type RawMessage struct {
	ID                string          `json:"id"`
	Content           string          `json:"content"`
	Timestamp         string          `json:"timestamp"`
	ChannelID         string          `json:"channel_id"`
	Author            RawAuthor       `json:"author"`
	Attachments       []RawAttachment `json:"attachments"`
	ReferencedMessage *RawMessage     `json:"referenced_message,omitempty"`
}

// Client issues single HTTP requests against the platform API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the given API base URL,
// e.g. "https://discord.com/api/v9".
func NewClient(baseURL string) *Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{Timeout: dialTimeout}).DialContext,
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   requestTimeout,
			Transport: transport,
		},
	}
}

// Fetch performs a GET against an API path and returns the raw JSON body.
// Non-2xx responses become *APIError; transport failures are returned as-is.
func (c *Client) Fetch(ctx context.Context, path, token string, query url.Values) (json.RawMessage, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return body, nil
}

// ListMessages fetches up to limit (max 100) messages from a channel,
// newest first, optionally starting before a cursor message id.
func (c *Client) ListMessages(ctx context.Context, token, channelID, before string, limit int) ([]RawMessage, error) {
	query := url.Values{"limit": {strconv.Itoa(limit)}}
	if before != "" {
		query.Set("before", before)
	}

	body, err := c.Fetch(ctx, "/channels/"+channelID+"/messages", token, query)
	if err != nil {
		return nil, err
	}

	var messages []RawMessage
	if err := json.Unmarshal(body, &messages); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}
	return messages, nil
}

// GetMessage fetches a single message by channel and message id.
func (c *Client) GetMessage(ctx context.Context, token, channelID, messageID string) (*RawMessage, error) {
	body, err := c.Fetch(ctx, "/channels/"+channelID+"/messages/"+messageID, token, nil)
	if err != nil {
		return nil, err
	}

	var msg RawMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	return &msg, nil
}

// CurrentUser fetches the account behind a token. Used to validate tokens
// before persisting them.
func (c *Client) CurrentUser(ctx context.Context, token string) (*RawAuthor, error) {
	body, err := c.Fetch(ctx, "/users/@me", token, nil)
	if err != nil {
		return nil, err
	}

	var user RawAuthor
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	return &user, nil
}

// Download opens a binary stream for an attachment URL. The caller must
// close the returned reader. Attachment URLs are absolute (CDN hosts), so
// no Authorization header is sent.
func (c *Client) Download(ctx context.Context, fileURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", fileURL, err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return resp.Body, nil
}
