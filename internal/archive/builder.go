// Package archive packages scraped messages and attachments for download.
package archive

import (
	"archive/zip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fenrik/chanvault/internal/logger"
	"github.com/fenrik/chanvault/internal/models"
)

// Downloader fetches attachment binaries.
type Downloader interface {
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}

// Builder produces the three archive modes: json-only, attachments-only,
// and full-dataset. Individual attachment failures are skipped and logged,
// never fatal to an archive.
type Builder struct {
	downloader Downloader
	log        *logger.Logger
}

// NewBuilder creates a new archive builder.
func NewBuilder(downloader Downloader, log *logger.Logger) *Builder {
	return &Builder{downloader: downloader, log: log}
}

// jsonExport is the json-only download payload.
type jsonExport struct {
	ChannelID    string           `json:"channel_id"`
	MessageCount int              `json:"message_count"`
	Messages     []models.Message `json:"messages"`
}

// archiveMetadata is the metadata.json entry. The dataset-only fields are
// omitted in attachments-only mode.
type archiveMetadata struct {
	ChannelID        string  `json:"channel_id"`
	MessageCount     int     `json:"message_count"`
	DownloadDate     string  `json:"download_date"`
	FirstMessageDate *string `json:"first_message_date,omitempty"`
	LastMessageDate  *string `json:"last_message_date,omitempty"`
	UniqueAuthors    *int    `json:"unique_authors,omitempty"`
	AttachmentCount  *int    `json:"attachment_count,omitempty"`
}

// BuildJSON serializes messages as an indented JSON document.
func (b *Builder) BuildJSON(channelID string, messages []models.Message) ([]byte, error) {
	payload := jsonExport{
		ChannelID:    channelID,
		MessageCount: len(messages),
		Messages:     messages,
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal messages: %w", err)
	}
	return data, nil
}

// WriteAttachmentsZip streams a ZIP of all attachments to w, one entry per
// attachment at channel_id/message_id/filename.
func (b *Builder) WriteAttachmentsZip(ctx context.Context, w io.Writer, channelID string, messages []models.Message) error {
	zw := zip.NewWriter(w)

	metadata := archiveMetadata{
		ChannelID:    channelID,
		MessageCount: len(messages),
		DownloadDate: time.Now().Format(time.RFC3339),
	}
	if err := writeZipJSON(zw, "metadata.json", metadata); err != nil {
		return err
	}

	for _, msg := range messages {
		for _, att := range msg.Attachments {
			entryPath := path.Join(channelID, msg.ID, att.Filename)
			if err := b.addAttachment(ctx, zw, entryPath, att); err != nil {
				return err
			}
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize zip: %w", err)
	}
	return nil
}

// BuildDataset assembles the full dataset ZIP on disk under a per-request
// temp directory and returns a reader that removes that directory when
// closed. The directory is also removed on every error path, so aborted
// builds never leak temp files.
func (b *Builder) BuildDataset(ctx context.Context, channelID string, messages []models.Message) (rc io.ReadCloser, filename string, err error) {
	dir := filepath.Join(os.TempDir(), "chanvault-dataset-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, "", fmt.Errorf("create temp dir: %w", err)
	}
	defer func() {
		if err != nil {
			os.RemoveAll(dir)
		}
	}()

	stamp := time.Now().Format("20060102_150405")
	filename = fmt.Sprintf("dataset_%s_%s.zip", channelID, stamp)
	zipPath := filepath.Join(dir, filename)

	if err = b.writeDatasetZip(ctx, zipPath, channelID, messages); err != nil {
		return nil, "", err
	}

	f, err := os.Open(zipPath)
	if err != nil {
		return nil, "", fmt.Errorf("open dataset zip: %w", err)
	}

	return &tempFileReader{file: f, dir: dir}, filename, nil
}

func (b *Builder) writeDatasetZip(ctx context.Context, zipPath, channelID string, messages []models.Message) (err error) {
	f, err := os.Create(zipPath)
	if err != nil {
		return fmt.Errorf("create dataset zip: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close dataset zip: %w", cerr)
		}
	}()

	zw := zip.NewWriter(f)

	if err := writeZipJSON(zw, "metadata.json", datasetMetadata(channelID, messages)); err != nil {
		return err
	}

	// one JSON file per calendar date, in first-seen order
	byDate := make(map[string][]models.Message)
	var dates []string
	for _, msg := range messages {
		date := msg.Date()
		if _, ok := byDate[date]; !ok {
			dates = append(dates, date)
		}
		byDate[date] = append(byDate[date], msg)
	}
	for _, date := range dates {
		if err := writeZipJSON(zw, "messages/"+date+".json", byDate[date]); err != nil {
			return err
		}
	}

	if err := writeZipJSON(zw, "messages/all_messages.json", messages); err != nil {
		return err
	}

	for _, msg := range messages {
		date := msg.Date()
		for _, att := range msg.Attachments {
			entryPath := path.Join("attachments", date, msg.ID, att.Filename)
			if err := b.addAttachment(ctx, zw, entryPath, att); err != nil {
				return err
			}
		}
	}

	if err := writeZipEntry(zw, "summary.csv", []byte(summaryCSV(messages))); err != nil {
		return err
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize zip: %w", err)
	}
	return nil
}

// addAttachment downloads one attachment into a temp file and, on success,
// copies it into the archive. Download failures are logged and skipped.
// Spooling through a temp file keeps a failed download from corrupting an
// already-opened zip entry.
func (b *Builder) addAttachment(ctx context.Context, zw *zip.Writer, entryPath string, att models.Attachment) error {
	tmp, err := b.downloadToTemp(ctx, att.URL)
	if err != nil {
		b.log.Warn().
			Err(err).
			Str("filename", att.Filename).
			Msg("skipping attachment")
		return nil
	}
	defer os.Remove(tmp)

	src, err := os.Open(tmp)
	if err != nil {
		return fmt.Errorf("open temp attachment: %w", err)
	}
	defer src.Close()

	entry, err := zw.Create(entryPath)
	if err != nil {
		return fmt.Errorf("create zip entry %s: %w", entryPath, err)
	}
	if _, err := io.Copy(entry, src); err != nil {
		return fmt.Errorf("write zip entry %s: %w", entryPath, err)
	}
	return nil
}

// downloadToTemp fetches a URL into a temp file and returns its path. The
// caller removes the file.
func (b *Builder) downloadToTemp(ctx context.Context, url string) (string, error) {
	rc, err := b.downloader.Download(ctx, url)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	tmp, err := os.CreateTemp("", "chanvault-att-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	if _, err := io.Copy(tmp, rc); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("download attachment: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

// datasetMetadata computes the dataset metadata entry. Messages are held
// newest first, so the chronologically first message sits at the tail and
// the last at the head.
func datasetMetadata(channelID string, messages []models.Message) archiveMetadata {
	metadata := archiveMetadata{
		ChannelID:    channelID,
		MessageCount: len(messages),
		DownloadDate: time.Now().Format(time.RFC3339),
	}

	authors := make(map[string]struct{})
	attachments := 0
	for _, msg := range messages {
		authors[msg.Author.ID] = struct{}{}
		attachments += len(msg.Attachments)
	}
	uniqueAuthors := len(authors)
	metadata.UniqueAuthors = &uniqueAuthors
	metadata.AttachmentCount = &attachments

	if len(messages) > 0 {
		first := messages[len(messages)-1].Timestamp
		last := messages[0].Timestamp
		metadata.FirstMessageDate = &first
		metadata.LastMessageDate = &last
	}
	return metadata
}

// summaryCSV renders one row per message. Only the content column is
// quoted; embedded quotes are doubled.
func summaryCSV(messages []models.Message) string {
	var sb strings.Builder
	sb.WriteString("Date,Time,Author,Content,Attachment Count\n")
	for _, msg := range messages {
		date := msg.Date()
		clock := ""
		if i := strings.IndexByte(msg.Timestamp, 'T'); i >= 0 {
			clock = msg.Timestamp[i+1:]
			if j := strings.IndexAny(clock, ".+Z"); j >= 0 {
				clock = clock[:j]
			}
		}
		content := strings.ReplaceAll(msg.Content, `"`, `""`)
		fmt.Fprintf(&sb, "%s,%s,%s,\"%s\",%d\n", date, clock, msg.Author.Username, content, len(msg.Attachments))
	}
	return sb.String()
}

func writeZipJSON(zw *zip.Writer, name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	return writeZipEntry(zw, name, data)
}

func writeZipEntry(zw *zip.Writer, name string, data []byte) error {
	entry, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("create zip entry %s: %w", name, err)
	}
	if _, err := entry.Write(data); err != nil {
		return fmt.Errorf("write zip entry %s: %w", name, err)
	}
	return nil
}

// tempFileReader streams the finished dataset zip and removes its temp
// directory on Close.
type tempFileReader struct {
	file *os.File
	dir  string
}

func (r *tempFileReader) Read(p []byte) (int, error) {
	return r.file.Read(p)
}

func (r *tempFileReader) Close() error {
	err := r.file.Close()
	if rmErr := os.RemoveAll(r.dir); rmErr != nil && err == nil {
		err = rmErr
	}
	return err
}
