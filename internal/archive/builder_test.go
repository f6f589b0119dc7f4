package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenrik/chanvault/internal/logger"
	"github.com/fenrik/chanvault/internal/models"
)

// fakeDownloader serves per-URL bodies and can fail selected URLs.
type fakeDownloader struct {
	bodies  map[string]string
	failing map[string]bool
	calls   int
}

func (d *fakeDownloader) Download(_ context.Context, url string) (io.ReadCloser, error) {
	d.calls++
	if d.failing[url] {
		return nil, errors.New("download failed")
	}
	body, ok := d.bodies[url]
	if !ok {
		body = "default-bytes"
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

func newTestBuilder(d Downloader) *Builder {
	return NewBuilder(d, logger.Get())
}

func sampleMessages() []models.Message {
	// newest first, two calendar dates
	return []models.Message{
		{
			ID: "3", Content: `say "hi"`, Timestamp: "2024-01-02T15:30:45.123000+00:00",
			ChannelID: "42", Author: models.Author{ID: "u1", Username: "alice"},
			Attachments: []models.Attachment{{URL: "http://cdn/a.png", Filename: "a.png"}},
		},
		{
			ID: "2", Content: "plain", Timestamp: "2024-01-02T10:00:00+00:00",
			ChannelID: "42", Author: models.Author{ID: "u2", Username: "bob"},
			Attachments: []models.Attachment{},
		},
		{
			ID: "1", Content: "first", Timestamp: "2024-01-01T09:00:00+00:00",
			ChannelID: "42", Author: models.Author{ID: "u1", Username: "alice"},
			Attachments: []models.Attachment{{URL: "http://cdn/b.png", Filename: "b.png"}},
		},
	}
}

func readZip(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	entries := make(map[string][]byte, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		content, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		entries[f.Name] = content
	}
	return entries
}

func TestBuildJSON(t *testing.T) {
	builder := newTestBuilder(&fakeDownloader{})

	data, err := builder.BuildJSON("42", sampleMessages())
	require.NoError(t, err)

	var payload jsonExport
	require.NoError(t, json.Unmarshal(data, &payload))
	assert.Equal(t, "42", payload.ChannelID)
	assert.Equal(t, 3, payload.MessageCount)
	require.Len(t, payload.Messages, 3)
	assert.Equal(t, "3", payload.Messages[0].ID)
}

func TestBuildJSON_Empty(t *testing.T) {
	builder := newTestBuilder(&fakeDownloader{})

	data, err := builder.BuildJSON("42", []models.Message{})
	require.NoError(t, err)

	var payload jsonExport
	require.NoError(t, json.Unmarshal(data, &payload))
	assert.Zero(t, payload.MessageCount)
}

func TestWriteAttachmentsZip(t *testing.T) {
	dl := &fakeDownloader{bodies: map[string]string{
		"http://cdn/a.png": "aaa",
		"http://cdn/b.png": "bbb",
	}}
	builder := newTestBuilder(dl)

	var buf bytes.Buffer
	require.NoError(t, builder.WriteAttachmentsZip(context.Background(), &buf, "42", sampleMessages()))

	entries := readZip(t, buf.Bytes())
	assert.Equal(t, []byte("aaa"), entries["42/3/a.png"])
	assert.Equal(t, []byte("bbb"), entries["42/1/b.png"])

	var metadata archiveMetadata
	require.NoError(t, json.Unmarshal(entries["metadata.json"], &metadata))
	assert.Equal(t, "42", metadata.ChannelID)
	assert.Equal(t, 3, metadata.MessageCount)
	assert.Nil(t, metadata.UniqueAuthors, "dataset-only fields stay out of attachments mode")
}

func TestWriteAttachmentsZip_SkipsFailedDownloads(t *testing.T) {
	dl := &fakeDownloader{
		bodies:  map[string]string{"http://cdn/b.png": "bbb"},
		failing: map[string]bool{"http://cdn/a.png": true},
	}
	builder := newTestBuilder(dl)

	var buf bytes.Buffer
	require.NoError(t, builder.WriteAttachmentsZip(context.Background(), &buf, "42", sampleMessages()))

	entries := readZip(t, buf.Bytes())
	_, ok := entries["42/3/a.png"]
	assert.False(t, ok, "failed download must be skipped, not fatal")
	assert.Equal(t, []byte("bbb"), entries["42/1/b.png"])
}

func TestBuildDataset(t *testing.T) {
	builder := newTestBuilder(&fakeDownloader{bodies: map[string]string{
		"http://cdn/a.png": "aaa",
		"http://cdn/b.png": "bbb",
	}})
	messages := sampleMessages()

	rc, filename, err := builder.BuildDataset(context.Background(), "42", messages)
	require.NoError(t, err)
	defer rc.Close()

	assert.True(t, strings.HasPrefix(filename, "dataset_42_"))
	assert.True(t, strings.HasSuffix(filename, ".zip"))

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	entries := readZip(t, data)

	// metadata
	var metadata archiveMetadata
	require.NoError(t, json.Unmarshal(entries["metadata.json"], &metadata))
	assert.Equal(t, 3, metadata.MessageCount)
	require.NotNil(t, metadata.UniqueAuthors)
	assert.Equal(t, 2, *metadata.UniqueAuthors)
	require.NotNil(t, metadata.AttachmentCount)
	assert.Equal(t, 2, *metadata.AttachmentCount)
	require.NotNil(t, metadata.FirstMessageDate)
	assert.Equal(t, "2024-01-01T09:00:00+00:00", *metadata.FirstMessageDate)
	require.NotNil(t, metadata.LastMessageDate)
	assert.Equal(t, "2024-01-02T15:30:45.123000+00:00", *metadata.LastMessageDate)

	// per-date partition plus the combined file
	var day1, day2, all []models.Message
	require.NoError(t, json.Unmarshal(entries["messages/2024-01-02.json"], &day2))
	require.NoError(t, json.Unmarshal(entries["messages/2024-01-01.json"], &day1))
	require.NoError(t, json.Unmarshal(entries["messages/all_messages.json"], &all))
	assert.Len(t, day2, 2)
	assert.Len(t, day1, 1)
	assert.Equal(t, messages, all)

	// attachments are partitioned by date
	assert.Equal(t, []byte("aaa"), entries["attachments/2024-01-02/3/a.png"])
	assert.Equal(t, []byte("bbb"), entries["attachments/2024-01-01/1/b.png"])
}

func TestBuildDataset_SummaryCSV(t *testing.T) {
	builder := newTestBuilder(&fakeDownloader{})

	rc, _, err := builder.BuildDataset(context.Background(), "42", sampleMessages())
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	entries := readZip(t, data)

	lines := strings.Split(strings.TrimRight(string(entries["summary.csv"]), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Date,Time,Author,Content,Attachment Count", lines[0])
	assert.Equal(t, `2024-01-02,15:30:45,alice,"say ""hi""",1`, lines[1])
	assert.Equal(t, `2024-01-02,10:00:00,bob,"plain",0`, lines[2])
	assert.Equal(t, `2024-01-01,09:00:00,alice,"first",1`, lines[3])
}

func TestBuildDataset_CleansUpTempDirOnClose(t *testing.T) {
	builder := newTestBuilder(&fakeDownloader{})

	rc, _, err := builder.BuildDataset(context.Background(), "42", sampleMessages())
	require.NoError(t, err)

	tfr, ok := rc.(*tempFileReader)
	require.True(t, ok)

	_, err = os.Stat(tfr.dir)
	require.NoError(t, err, "temp dir exists while the reader is open")

	require.NoError(t, rc.Close())

	_, err = os.Stat(tfr.dir)
	assert.True(t, os.IsNotExist(err), "temp dir removed on close")
}

func TestBuildDataset_Empty(t *testing.T) {
	builder := newTestBuilder(&fakeDownloader{})

	rc, _, err := builder.BuildDataset(context.Background(), "42", []models.Message{})
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	entries := readZip(t, data)

	var metadata archiveMetadata
	require.NoError(t, json.Unmarshal(entries["metadata.json"], &metadata))
	assert.Zero(t, metadata.MessageCount)
	assert.Nil(t, metadata.FirstMessageDate)

	var all []models.Message
	require.NoError(t, json.Unmarshal(entries["messages/all_messages.json"], &all))
	assert.Empty(t, all)

	assert.Equal(t, "Date,Time,Author,Content,Attachment Count\n", string(entries["summary.csv"]))
}
