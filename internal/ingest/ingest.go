// Package ingest validates uploaded avatar images and hands them to storage.
package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/bobarin/auctioneer/internal/metrics"
	"github.com/bobarin/auctioneer/internal/services"
	"github.com/bobarin/auctioneer/internal/storage"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// MaxSize is the upload ceiling (10 MiB).
const MaxSize = 10 * 1024 * 1024

// The declared MIME type is trusted; file contents are not sniffed.
var allowedTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/webp": true,
}

// Upload is one image as received from the client.
type Upload struct {
	Data     []byte
	MIMEType string
	Size     int64  // declared size
	Filename string // original name, used only for its extension
}

type Result struct {
	Filename string
	URL      string
}

type Ingestor struct {
	store storage.Store
	now   func() time.Time
	log   zerolog.Logger
}

func New(store storage.Store, log zerolog.Logger) *Ingestor {
	return &Ingestor{
		store: store,
		now:   time.Now,
		log:   log.With().Str("component", "ingest").Logger(),
	}
}

// Validate checks the declared type and size.
func Validate(mimeType string, size int64) error {
	if !allowedTypes[strings.ToLower(mimeType)] {
		return &services.ValidationError{Message: "Invalid file type. Please upload JPG, PNG, or WebP images."}
	}
	if size > MaxSize {
		return &services.ValidationError{Message: "File too large. Maximum size is 10MB."}
	}
	return nil
}

// Ingest validates the upload, stores it under a unique name and returns
// where it is served from.
func (i *Ingestor) Ingest(ctx context.Context, up Upload) (*Result, error) {
	size := up.Size
	if n := int64(len(up.Data)); n > size {
		size = n
	}

	if err := Validate(up.MIMEType, size); err != nil {
		metrics.Uploads.WithLabelValues("rejected").Inc()
		return nil, err
	}

	filename := i.filename(up.Filename)

	url, err := i.store.Put(ctx, filename, up.Data, strings.ToLower(up.MIMEType))
	if err != nil {
		metrics.Uploads.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to store avatar: %w", err)
	}

	metrics.Uploads.WithLabelValues("ok").Inc()
	i.log.Info().
		Str("filename", filename).
		Str("url", url).
		Str("backend", i.store.Name()).
		Int("bytes", len(up.Data)).
		Msg("avatar uploaded")

	return &Result{Filename: filename, URL: url}, nil
}

// filename is avatar-<unix ms>-<random><ext>; the random part keeps two
// uploads in the same millisecond apart.
func (i *Ingestor) filename(original string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(original)))
	if strings.ContainsAny(ext, `/\`) {
		ext = ""
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("avatar-%d-%s%s", i.now().UnixMilli(), suffix, ext)
}
