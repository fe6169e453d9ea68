package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

const supabaseAttemptTimeout = 60 * time.Second

// Backoff is an exponential retry schedule with up to 25% jitter.
type Backoff struct {
	Retries int
	Base    time.Duration
	Max     time.Duration
}

// DefaultBackoff retries four times starting at one second.
var DefaultBackoff = Backoff{Retries: 4, Base: time.Second, Max: 30 * time.Second}

// Delay is the wait before retry number attempt (1-based).
func (b Backoff) Delay(attempt int) time.Duration {
	d := b.Base << (attempt - 1)
	if d <= 0 || d > b.Max {
		d = b.Max
	}
	return d + time.Duration(rand.Int63n(int64(d)/4+1))
}

// Supabase stores avatars in a public Supabase Storage bucket.
type Supabase struct {
	baseURL    string
	serviceKey string
	bucket     string
	folder     string
	http       *http.Client
	log        zerolog.Logger

	Backoff Backoff
}

func NewSupabase(url, serviceKey, bucket, folder string, log zerolog.Logger) *Supabase {
	return &Supabase{
		baseURL:    strings.TrimRight(url, "/"),
		serviceKey: serviceKey,
		bucket:     bucket,
		folder:     strings.Trim(folder, "/"),
		http:       &http.Client{Timeout: supabaseAttemptTimeout},
		log:        log.With().Str("component", "storage").Str("backend", "supabase").Logger(),
		Backoff:    DefaultBackoff,
	}
}

func (s *Supabase) Name() string { return "supabase" }

// Put upserts the object, retrying transient failures, and returns its
// public URL.
func (s *Supabase) Put(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	object := s.objectPath(name)

	var err error
	for attempt := 0; attempt <= s.Backoff.Retries; attempt++ {
		if attempt > 0 {
			wait := s.Backoff.Delay(attempt)
			s.log.Warn().Err(err).Int("attempt", attempt).Str("object", object).Dur("wait", wait).Msg("Retrying avatar upload")

			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return "", fmt.Errorf("upload cancelled: %w", ctx.Err())
			case <-t.C:
			}
		}

		var retry bool
		retry, err = s.putOnce(ctx, object, data, contentType)
		if err == nil {
			return s.PublicURL(object), nil
		}
		if !retry {
			return "", err
		}
	}
	return "", fmt.Errorf("upload failed after %d attempts: %w", s.Backoff.Retries+1, err)
}

// putOnce performs one upload and reports whether a failure is worth retrying.
func (s *Supabase) putOnce(ctx context.Context, object string, data []byte, contentType string) (bool, error) {
	endpoint := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.baseURL, s.bucket, object)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(data))
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Content-Length", strconv.Itoa(len(data)))
	req.Header.Set("x-upsert", "true")

	resp, err := s.http.Do(req)
	if err != nil {
		return isRetryableError(err) && ctx.Err() == nil, fmt.Errorf("failed to upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated {
		return false, nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return isRetryableStatus(resp.StatusCode),
		fmt.Errorf("upload failed with status %d: %s", resp.StatusCode, truncate(string(body), 200))
}

// PublicURL is where a stored object is served from.
func (s *Supabase) PublicURL(object string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, s.bucket, object)
}

func (s *Supabase) objectPath(name string) string {
	if s.folder == "" {
		return name
	}
	return s.folder + "/" + name
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE)
}

func isRetryableStatus(status int) bool {
	switch status {
	case http.StatusRequestTimeout, http.StatusTooManyRequests,
		http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
