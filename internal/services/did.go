package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bobarin/auctioneer/internal/metrics"
	"github.com/bobarin/auctioneer/internal/models"
	"github.com/bobarin/auctioneer/internal/voice"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// ---------------------------------------------------------------------------
// D-ID Talking Avatar Service
// Registered presenters go through the Clips API, arbitrary images through
// the Talks API. Both follow the same deferred pattern: submit → id → poll.
// The two resource families are separate and must never be cross-queried.
// ---------------------------------------------------------------------------

const (
	DefaultDIDBaseURL = "https://api.d-id.com"

	didClipsPath      = "/clips"
	didTalksPath      = "/talks"
	didPresentersPath = "/clips/presenters"

	didBackgroundColor = "#FFFFFF"
	didResultFormat    = "mp4"
	maxPresenters      = 4

	didRequestTimeout = 30 * time.Second
)

// DIDConfig is everything the gateway needs; nothing is read from the
// process environment.
type DIDConfig struct {
	APIKey string

	// BaseURL defaults to DefaultDIDBaseURL.
	BaseURL string

	// PublicBaseURL is prefixed onto local /avatars/... paths so the vendor
	// can fetch uploaded images.
	PublicBaseURL string

	HTTPClient *http.Client  // nil = 30s timeout client
	Limiter    *rate.Limiter // nil = unlimited
	Logger     zerolog.Logger
}

// DIDService translates generic generation requests into D-ID calls.
// It keeps no state between calls.
type DIDService struct {
	apiKey        string
	baseURL       string
	publicBaseURL string
	httpClient    *http.Client
	limiter       *rate.Limiter
	log           zerolog.Logger
}

func NewDIDService(cfg DIDConfig) *DIDService {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultDIDBaseURL
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: didRequestTimeout}
	}

	return &DIDService{
		apiKey:        cfg.APIKey,
		baseURL:       strings.TrimRight(baseURL, "/"),
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		httpClient:    client,
		limiter:       cfg.Limiter,
		log:           cfg.Logger.With().Str("component", "did").Logger(),
	}
}

// Configured reports whether an API key is present.
func (s *DIDService) Configured() bool {
	return s.apiKey != ""
}

// ---------------------------------------------------------------------------
// Request / Response types
// ---------------------------------------------------------------------------

type didVoiceConfig struct {
	Rate  string `json:"rate"`
	Pitch string `json:"pitch"`
}

type didProvider struct {
	Type        string         `json:"type"`
	VoiceID     string         `json:"voice_id"`
	VoiceConfig didVoiceConfig `json:"voice_config"`
}

type didScript struct {
	Type     string      `json:"type"`
	Input    string      `json:"input"`
	Provider didProvider `json:"provider"`
}

type didBackground struct {
	Color string `json:"color"`
}

// didClipRequest is the body for POST /clips
type didClipRequest struct {
	PresenterID string        `json:"presenter_id"`
	Script      didScript     `json:"script"`
	Background  didBackground `json:"background"`
}

type didTalkConfig struct {
	Fluent       bool    `json:"fluent"`
	PadAudio     float64 `json:"pad_audio"`
	Stitch       bool    `json:"stitch"`
	ResultFormat string  `json:"result_format"`
}

// didTalkRequest is the body for POST /talks
type didTalkRequest struct {
	SourceURL string        `json:"source_url"`
	Script    didScript     `json:"script"`
	Config    didTalkConfig `json:"config"`
}

type didCreateResponse struct {
	ID string `json:"id"`
}

// didStatusResponse is the subset of GET /clips/{id} and GET /talks/{id} we use.
// Status is one of created, started, done, error, rejected.
type didStatusResponse struct {
	Status    string `json:"status"`
	ResultURL string `json:"result_url"`
}

// didErrorResponse covers both {"message": "..."} and {"error": ...} bodies.
type didErrorResponse struct {
	Message string          `json:"message"`
	Error   json.RawMessage `json:"error"`
}

type didPresenter struct {
	PresenterID  string `json:"presenter_id"`
	Name         string `json:"name"`
	ImageURL     string `json:"image_url"`
	ThumbnailURL string `json:"thumbnail_url"`
	Gender       string `json:"gender"`
	IsStreamable bool   `json:"is_streamable"`
	Voice        *struct {
		Type    string `json:"type"`
		VoiceID string `json:"voice_id"`
	} `json:"voice"`
}

// ---------------------------------------------------------------------------
// Operations
// ---------------------------------------------------------------------------

// SubmitClip creates a video for a registered presenter and returns the job id.
func (s *DIDService) SubmitClip(ctx context.Context, req models.GenerationRequest) (string, error) {
	if !s.Configured() {
		return "", ErrNotConfigured
	}
	if req.Text == "" || req.PresenterRef == "" || req.VoiceID == "" {
		return "", &ValidationError{Message: "Missing required parameters"}
	}

	mapped := voice.Map(req.VoiceID, req.Gender)
	s.log.Debug().
		Str("source_voice", req.VoiceID).
		Str("gender", string(req.Gender)).
		Str("voice", mapped).
		Msg("voice mapped")

	body := didClipRequest{
		PresenterID: req.PresenterRef,
		Script:      buildScript(req, voice.ProviderAmazon, mapped),
		Background:  didBackground{Color: didBackgroundColor},
	}

	var resp didCreateResponse
	if err := s.do(ctx, "submit_clip", http.MethodPost, didClipsPath, body, &resp, "Failed to create video"); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", &TransportError{Op: "submit_clip", Err: fmt.Errorf("no id in response")}
	}

	s.log.Info().Str("job_id", resp.ID).Str("presenter", req.PresenterRef).Msg("clip submitted")
	return resp.ID, nil
}

// SubmitTalk creates a video from an arbitrary image and returns the job id.
func (s *DIDService) SubmitTalk(ctx context.Context, req models.GenerationRequest) (string, error) {
	if !s.Configured() {
		return "", ErrNotConfigured
	}
	if req.Text == "" || req.ImageURL == "" {
		return "", &ValidationError{Message: "Missing required parameters: text and imageUrl"}
	}

	sourceURL := s.ResolveImageURL(req.ImageURL)
	resolved := voice.ResolveForCustomAvatar(req.VoiceID, req.Gender, req.HasCustomVoice)
	s.log.Debug().
		Str("source_url", sourceURL).
		Str("voice", resolved.VoiceID).
		Str("provider", resolved.Provider).
		Bool("cloned", resolved.Cloned).
		Msg("custom avatar voice resolved")

	body := didTalkRequest{
		SourceURL: sourceURL,
		Script:    buildScript(req, resolved.Provider, resolved.VoiceID),
		Config: didTalkConfig{
			Fluent:       true,
			PadAudio:     0,
			Stitch:       true,
			ResultFormat: didResultFormat,
		},
	}

	var resp didCreateResponse
	if err := s.do(ctx, "submit_talk", http.MethodPost, didTalksPath, body, &resp, "Failed to create custom avatar video"); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", &TransportError{Op: "submit_talk", Err: fmt.Errorf("no id in response")}
	}

	s.log.Info().Str("job_id", resp.ID).Bool("cloned_voice", resolved.Cloned).Msg("talk submitted")
	return resp.ID, nil
}

// GetJobStatus reads the job from the resource family it was created in.
func (s *DIDService) GetJobStatus(ctx context.Context, jobID string, mode models.Mode) (*models.Job, error) {
	if !s.Configured() {
		return nil, ErrNotConfigured
	}
	if jobID == "" {
		return nil, &ValidationError{Message: "Video ID is required"}
	}
	// Ids are a single path segment; anything that could climb into the
	// other resource family is refused.
	if jobID == "." || jobID == ".." || strings.ContainsAny(jobID, "/\\?#") {
		return nil, &ValidationError{Message: "Invalid video ID"}
	}

	path, fallback := didClipsPath, "Failed to check video status"
	op := "clip_status"
	if mode == models.ModeCustom {
		path, fallback = didTalksPath, "Failed to check custom video status"
		op = "talk_status"
	}

	var resp didStatusResponse
	if err := s.do(ctx, op, http.MethodGet, path+"/"+url.PathEscape(jobID), nil, &resp, fallback); err != nil {
		return nil, err
	}

	job := &models.Job{
		ID:        jobID,
		Mode:      mode,
		State:     models.ParseJobState(resp.Status),
		RawStatus: resp.Status,
	}
	if resp.ResultURL != "" {
		job.ResultURL = resp.ResultURL
	}

	s.log.Debug().Str("job_id", jobID).Str("mode", string(mode)).Str("status", resp.Status).Msg("job status")
	return job, nil
}

// ListPresenters fetches the vendor's premium presenters, reshaped for the page.
// At most four are returned; entries without id, name or image are dropped.
func (s *DIDService) ListPresenters(ctx context.Context) ([]models.AvatarDescriptor, error) {
	if !s.Configured() {
		return nil, ErrNotConfigured
	}

	var raw json.RawMessage
	if err := s.do(ctx, "list_presenters", http.MethodGet, didPresentersPath, nil, &raw, "Failed to fetch avatars"); err != nil {
		return nil, err
	}

	presenters, err := decodePresenters(raw)
	if err != nil {
		return nil, &TransportError{Op: "list_presenters", Err: err}
	}

	if len(presenters) > maxPresenters {
		presenters = presenters[:maxPresenters]
	}

	avatars := make([]models.AvatarDescriptor, 0, len(presenters))
	for _, p := range presenters {
		a := toAvatar(p)
		if a.ID == "" || a.Name == "" || a.ImageURL == "" {
			continue
		}
		avatars = append(avatars, a)
	}

	return avatars, nil
}

// ResolveImageURL turns a local path into an absolute URL the vendor can fetch.
func (s *DIDService) ResolveImageURL(imageURL string) string {
	if strings.HasPrefix(imageURL, "/avatars/") {
		return s.publicBaseURL + imageURL
	}
	return imageURL
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func buildScript(req models.GenerationRequest, provider, voiceID string) didScript {
	return didScript{
		Type:  "text",
		Input: req.Text,
		Provider: didProvider{
			Type:    provider,
			VoiceID: voiceID,
			VoiceConfig: didVoiceConfig{
				Rate:  strconv.FormatFloat(req.Rate(), 'f', -1, 64),
				Pitch: strconv.FormatFloat(req.Pitch(), 'f', -1, 64),
			},
		},
	}
}

// do sends one request and decodes a 2xx body into out. Non-2xx responses
// become *VendorRejected; anything else that goes wrong is a *TransportError.
func (s *DIDService) do(ctx context.Context, op, method, path string, in, out any, fallback string) (err error) {
	start := time.Now()
	defer func() {
		metrics.VendorLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
		metrics.VendorRequests.WithLabelValues(op, outcome(err)).Inc()
	}()

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return &TransportError{Op: op, Err: fmt.Errorf("rate limiter: %w", err)}
		}
	}

	var reader io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return &TransportError{Op: op, Err: fmt.Errorf("failed to marshal request: %w", err)}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("failed to create request: %w", err)}
	}

	req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(s.apiKey)))
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := vendorMessage(body, fallback)
		s.log.Warn().
			Str("op", op).
			Int("status", resp.StatusCode).
			Str("body", truncate(string(body), 200)).
			Msg("vendor rejected request")
		return &VendorRejected{Status: resp.StatusCode, Message: msg}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("failed to parse response: %w (body: %s)", err, truncate(string(body), 200))}
	}

	return nil
}

func vendorMessage(body []byte, fallback string) string {
	var e didErrorResponse
	if err := json.Unmarshal(body, &e); err != nil {
		return fallback
	}
	if e.Message != "" {
		return e.Message
	}

	var s string
	if len(e.Error) > 0 && json.Unmarshal(e.Error, &s) == nil && s != "" {
		return s
	}
	return fallback
}

// decodePresenters accepts a bare array, {"presenters": [...]}, {"result": [...]}
// or an object keyed by presenter.
func decodePresenters(raw json.RawMessage) ([]didPresenter, error) {
	var list []didPresenter
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}

	var wrapped struct {
		Presenters []didPresenter `json:"presenters"`
		Result     []didPresenter `json:"result"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil {
		if wrapped.Presenters != nil {
			return wrapped.Presenters, nil
		}
		if wrapped.Result != nil {
			return wrapped.Result, nil
		}
	}

	var keyed map[string]json.RawMessage
	if err := json.Unmarshal(raw, &keyed); err != nil {
		return nil, fmt.Errorf("unrecognised presenters payload: %w", err)
	}

	for _, v := range keyed {
		var p didPresenter
		if json.Unmarshal(v, &p) == nil {
			list = append(list, p)
		}
	}
	return list, nil
}

func toAvatar(p didPresenter) models.AvatarDescriptor {
	gender := models.Gender(p.Gender)

	name := p.Name
	if name == "" && p.PresenterID != "" {
		name = "Avatar " + p.PresenterID
	}

	image := p.ImageURL
	if image == "" {
		image = p.ThumbnailURL
	}

	voiceDesc := "Professional, AI-generated"
	voiceID := voice.DefaultSourceVoice(gender)
	if p.Voice != nil {
		voiceDesc = fmt.Sprintf("%s (%s)", p.Voice.Type, p.Voice.VoiceID)
		if p.Voice.VoiceID != "" {
			voiceID = p.Voice.VoiceID
		}
	}

	kind := "high-quality"
	if p.IsStreamable {
		kind = "streamable"
	}

	return models.AvatarDescriptor{
		ID:           p.PresenterID,
		Name:         name,
		ImageURL:     image,
		Voice:        voiceDesc,
		Specialty:    fmt.Sprintf("%s presenter, %s", p.Gender, kind),
		VoiceID:      voiceID,
		Gender:       gender,
		IsStreamable: p.IsStreamable,
	}
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	switch err.(type) {
	case *VendorRejected:
		return "rejected"
	case *ValidationError:
		return "invalid"
	default:
		return "error"
	}
}

// truncate limits a string to maxLen characters for log output
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
