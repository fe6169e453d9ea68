// Package client talks to the auction API the way the page does.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/bobarin/auctioneer/internal/models"
)

// ErrNoVideoID is returned when a submission succeeds without a job id.
var ErrNoVideoID = errors.New("no video ID returned")

// APIError is a non-2xx answer from the auction API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New builds a client for the API at baseURL (e.g. http://localhost:8080/api).
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// Submit posts a generation request to the endpoint for the avatar's mode
// and returns the vendor job id.
func (c *Client) Submit(ctx context.Context, avatar models.AvatarDescriptor, text string) (string, error) {
	var (
		path string
		body any
	)
	if avatar.Mode() == models.ModeCustom {
		path = "/upload-custom-avatar"
		body = models.CustomAvatarRequest{
			Text:           text,
			ImageURL:       avatar.ImageURL,
			VoiceID:        avatar.VoiceID,
			Gender:         avatar.Gender,
			HasCustomVoice: avatar.HasClonedVoice,
		}
	} else {
		path = "/generate-video"
		body = models.GenerateVideoRequest{
			Text:        text,
			AvatarImage: avatar.ID,
			VoiceID:     avatar.VoiceID,
			Gender:      avatar.Gender,
		}
	}

	var resp models.VideoResponse
	if err := c.do(ctx, http.MethodPost, path, body, &resp, "Failed to create video"); err != nil {
		return "", err
	}
	if resp.VideoID == "" {
		return "", ErrNoVideoID
	}
	return resp.VideoID, nil
}

// Status queries the status endpoint matching mode.
func (c *Client) Status(ctx context.Context, jobID string, mode models.Mode) (*models.Job, error) {
	path := "/check-video-status"
	if mode == models.ModeCustom {
		path = "/check-custom-video-status"
	}
	path += "?videoId=" + url.QueryEscape(jobID)

	var resp models.VideoStatusResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp, "Failed to check video status"); err != nil {
		return nil, err
	}

	job := &models.Job{
		ID:        jobID,
		Mode:      mode,
		State:     models.ParseJobState(resp.Status),
		RawStatus: resp.Status,
	}
	if resp.ResultURL != nil {
		job.ResultURL = *resp.ResultURL
	}
	return job, nil
}

func (c *Client) Avatars(ctx context.Context) ([]models.AvatarDescriptor, error) {
	var resp models.AvatarsResponse
	if err := c.do(ctx, http.MethodGet, "/get-avatars", nil, &resp, "Failed to fetch avatars"); err != nil {
		return nil, err
	}
	return resp.Avatars, nil
}

// UploadImage sends an avatar image as the multipart field "avatar".
func (c *Client) UploadImage(ctx context.Context, filename, contentType string, data io.Reader) (*models.UploadResponse, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="avatar"; filename="%s"`, filepath.Base(filename)))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, data); err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload-avatar-image", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var resp models.UploadResponse
	if err := c.send(req, &resp, "Failed to upload image"); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any, fallback string) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out, fallback)
}

func (c *Client) send(req *http.Request, out any, fallback string) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e models.ErrorResponse
		msg := fallback
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
