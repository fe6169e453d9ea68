package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bobarin/auctioneer/internal/config"
	"github.com/bobarin/auctioneer/internal/ingest"
	"github.com/bobarin/auctioneer/internal/jobs"
	"github.com/bobarin/auctioneer/internal/models"
	"github.com/bobarin/auctioneer/internal/services"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const (
	// uploadOverhead is room for multipart headers on top of the image itself.
	uploadOverhead = 1 << 20

	presenterTimeout = 30 * time.Second
)

type Handler struct {
	did     *services.DIDService
	ingest  *ingest.Ingestor
	ledger  jobs.Ledger
	roster  *config.Roster
	log     zerolog.Logger
	avatars singleflight.Group
}

func NewHandler(did *services.DIDService, ing *ingest.Ingestor, ledger jobs.Ledger, roster *config.Roster, log zerolog.Logger) *Handler {
	if roster == nil {
		roster = config.DefaultRoster()
	}
	return &Handler{
		did:    did,
		ingest: ing,
		ledger: ledger,
		roster: roster,
		log:    log.With().Str("component", "api").Logger(),
	}
}

// GenerateVideo handles POST /generate-video
func (h *Handler) GenerateVideo(w http.ResponseWriter, r *http.Request) {
	if !h.did.Configured() {
		h.respondGatewayError(w, r, services.ErrNotConfigured)
		return
	}

	var req models.GenerateVideoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	jobID, err := h.did.SubmitClip(r.Context(), models.GenerationRequest{
		Text:         req.Text,
		PresenterRef: req.AvatarImage,
		VoiceID:      req.VoiceID,
		Gender:       req.Gender,
		SpeechRate:   req.SpeechRate,
		SpeechPitch:  req.SpeechPitch,
		Mode:         models.ModeRegistered,
	})
	if err != nil {
		h.respondGatewayError(w, r, err)
		return
	}

	h.record(r.Context(), jobID, models.ModeRegistered)
	respondJSON(w, http.StatusOK, models.VideoResponse{VideoID: jobID})
}

// UploadCustomAvatar handles POST /upload-custom-avatar
func (h *Handler) UploadCustomAvatar(w http.ResponseWriter, r *http.Request) {
	if !h.did.Configured() {
		h.respondGatewayError(w, r, services.ErrNotConfigured)
		return
	}

	var req models.CustomAvatarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	jobID, err := h.did.SubmitTalk(r.Context(), models.GenerationRequest{
		Text:           req.Text,
		ImageURL:       req.ImageURL,
		VoiceID:        req.VoiceID,
		Gender:         req.Gender,
		HasCustomVoice: req.HasCustomVoice,
		SpeechRate:     req.SpeechRate,
		SpeechPitch:    req.SpeechPitch,
		Mode:           models.ModeCustom,
	})
	if err != nil {
		h.respondGatewayError(w, r, err)
		return
	}

	h.record(r.Context(), jobID, models.ModeCustom)
	respondJSON(w, http.StatusOK, models.VideoResponse{VideoID: jobID})
}

// CheckVideoStatus handles GET /check-video-status?videoId=
func (h *Handler) CheckVideoStatus(w http.ResponseWriter, r *http.Request) {
	h.checkStatus(w, r, models.ModeRegistered)
}

// CheckCustomVideoStatus handles GET /check-custom-video-status?videoId=
func (h *Handler) CheckCustomVideoStatus(w http.ResponseWriter, r *http.Request) {
	h.checkStatus(w, r, models.ModeCustom)
}

func (h *Handler) checkStatus(w http.ResponseWriter, r *http.Request, mode models.Mode) {
	jobID := r.URL.Query().Get("videoId")

	if entry, err := h.ledger.Get(r.Context(), jobID); err == nil && entry.Mode != mode {
		// The vendor keeps the families apart; this query will most likely 404.
		h.log.Warn().
			Str("job_id", jobID).
			Str("submitted_as", string(entry.Mode)).
			Str("queried_as", string(mode)).
			Msg("Status checked against the wrong endpoint family")
	}

	job, err := h.did.GetJobStatus(r.Context(), jobID, mode)
	if err != nil {
		h.respondGatewayError(w, r, err)
		return
	}

	if err := h.ledger.Observe(r.Context(), jobID, job.RawStatus); err != nil && !errors.Is(err, jobs.ErrNotFound) {
		h.log.Warn().Err(err).Str("job_id", jobID).Msg("Failed to update job ledger")
	}

	resp := models.VideoStatusResponse{Status: job.RawStatus}
	if job.ResultURL != "" {
		resp.ResultURL = &job.ResultURL
	}
	respondJSON(w, http.StatusOK, resp)
}

// GetAvatars handles GET /get-avatars
// Concurrent callers share one vendor request.
func (h *Handler) GetAvatars(w http.ResponseWriter, r *http.Request) {
	if !h.did.Configured() {
		h.respondGatewayError(w, r, services.ErrNotConfigured)
		return
	}

	v, err, shared := h.avatars.Do("presenters", func() (any, error) {
		// Detached so one caller hanging up does not fail the others.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), presenterTimeout)
		defer cancel()
		return h.did.ListPresenters(ctx)
	})
	if err != nil {
		h.respondGatewayError(w, r, err)
		return
	}

	avatars := v.([]models.AvatarDescriptor)
	if len(avatars) == 0 {
		h.log.Info().Msg("Vendor returned no presenters, serving fallback avatars")
		avatars = h.roster.Fallbacks
	}

	h.log.Debug().Int("count", len(avatars)).Bool("shared", shared).Msg("Avatars listed")
	respondJSON(w, http.StatusOK, models.AvatarsResponse{Avatars: avatars})
}

// UploadAvatarImage handles POST /upload-avatar-image (multipart, field "avatar")
func (h *Handler) UploadAvatarImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, ingest.MaxSize+uploadOverhead)

	if err := r.ParseMultipartForm(ingest.MaxSize + uploadOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			respondError(w, http.StatusBadRequest, "File too large. Maximum size is 10MB.")
			return
		}
		respondError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("avatar")
	if err != nil {
		respondError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()

	mimeType := header.Header.Get("Content-Type")
	if err := ingest.Validate(mimeType, header.Size); err != nil {
		h.respondGatewayError(w, r, err)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to read upload")
		respondError(w, http.StatusInternalServerError, "Failed to upload avatar")
		return
	}

	res, err := h.ingest.Ingest(r.Context(), ingest.Upload{
		Data:     data,
		MIMEType: mimeType,
		Size:     header.Size,
		Filename: header.Filename,
	})
	if err != nil {
		var validation *services.ValidationError
		if errors.As(err, &validation) {
			respondError(w, http.StatusBadRequest, validation.Message)
			return
		}
		h.log.Error().Err(err).Msg("Failed to store avatar")
		respondError(w, http.StatusInternalServerError, "Failed to upload avatar")
		return
	}

	respondJSON(w, http.StatusOK, models.UploadResponse{
		Success:  true,
		Filename: res.Filename,
		URL:      res.URL,
	})
}

// GetJob handles GET /debug/jobs/{id}
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	entry, err := h.ledger.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Job not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to get job")
		return
	}
	respondJSON(w, http.StatusOK, entry)
}

// Health check
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":            "ok",
		"vendor_configured": h.did.Configured(),
	})
}

// Helper methods

func (h *Handler) record(ctx context.Context, jobID string, mode models.Mode) {
	if err := h.ledger.Record(ctx, jobID, mode); err != nil {
		h.log.Warn().Err(err).Str("job_id", jobID).Msg("Failed to record job")
	}
}

// respondGatewayError logs and answers with the status HTTPStatus assigns.
func (h *Handler) respondGatewayError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := services.HTTPStatus(err)

	ev := h.log.Warn()
	if status >= http.StatusInternalServerError {
		ev = h.log.Error()
	}
	ev.Err(err).Str("path", r.URL.Path).Int("status", status).Msg("Request failed")

	respondError(w, status, msg)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, models.ErrorResponse{Error: message})
}
