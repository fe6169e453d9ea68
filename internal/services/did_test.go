package services_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/bobarin/auctioneer/internal/models"
	"github.com/bobarin/auctioneer/internal/services"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAPIKey = "user:secret"

// newVendorStub serves the given handlers keyed by "METHOD /path" and counts calls.
func newVendorStub(t *testing.T, routes map[string]http.HandlerFunc) (*httptest.Server, *int32) {
	t.Helper()

	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)

		h, ok := routes[r.Method+" "+r.URL.Path]
		if !ok {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h(w, r)
	}))
	t.Cleanup(server.Close)

	return server, &calls
}

func newService(baseURL string) *services.DIDService {
	return services.NewDIDService(services.DIDConfig{
		APIKey:        testAPIKey,
		BaseURL:       baseURL,
		PublicBaseURL: "https://auction.example.com",
		Logger:        zerolog.Nop(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestSubmitClipEndToEnd(t *testing.T) {
	t.Parallel()

	var body map[string]any
	server, _ := newVendorStub(t, map[string]http.HandlerFunc{
		"POST /clips": func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Basic "+base64.StdEncoding.EncodeToString([]byte(testAPIKey)), r.Header.Get("Authorization"))
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			writeJSON(w, http.StatusCreated, map[string]string{"id": "job123"})
		},
		"GET /clips/job123": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "done", "result_url": "https://x/y.mp4"})
		},
	})

	svc := newService(server.URL)

	id, err := svc.SubmitClip(context.Background(), models.GenerationRequest{
		Text:         "Lot 1",
		PresenterRef: "p1",
		VoiceID:      "en-US-AriaNeural",
	})
	require.NoError(t, err)
	assert.Equal(t, "job123", id)

	assert.Equal(t, "p1", body["presenter_id"])
	script := body["script"].(map[string]any)
	assert.Equal(t, "text", script["type"])
	assert.Equal(t, "Lot 1", script["input"])
	provider := script["provider"].(map[string]any)
	assert.Equal(t, "amazon", provider["type"])
	assert.Equal(t, "Aria", provider["voice_id"])
	assert.Equal(t, map[string]any{"rate": "1", "pitch": "1"}, provider["voice_config"])
	assert.Equal(t, map[string]any{"color": "#FFFFFF"}, body["background"])

	job, err := svc.GetJobStatus(context.Background(), id, models.ModeRegistered)
	require.NoError(t, err)
	assert.Equal(t, models.JobStateDone, job.State)
	assert.Equal(t, "https://x/y.mp4", job.ResultURL)
}

func TestSubmitClipValidationNeverCallsVendor(t *testing.T) {
	t.Parallel()

	server, calls := newVendorStub(t, map[string]http.HandlerFunc{})
	svc := newService(server.URL)

	full := models.GenerationRequest{Text: "Lot 1", PresenterRef: "p1", VoiceID: "en-US-AriaNeural"}
	missing := []func(r *models.GenerationRequest){
		func(r *models.GenerationRequest) { r.Text = "" },
		func(r *models.GenerationRequest) { r.PresenterRef = "" },
		func(r *models.GenerationRequest) { r.VoiceID = "" },
	}

	for _, drop := range missing {
		req := full
		drop(&req)

		_, err := svc.SubmitClip(context.Background(), req)
		var ve *services.ValidationError
		require.ErrorAs(t, err, &ve)
	}

	assert.Equal(t, int32(0), atomic.LoadInt32(calls))
}

func TestVendorRejectedCarriesStatusAndMessage(t *testing.T) {
	t.Parallel()

	server, _ := newVendorStub(t, map[string]http.HandlerFunc{
		"POST /clips": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "bad key"})
		},
	})
	svc := newService(server.URL)

	_, err := svc.SubmitClip(context.Background(), models.GenerationRequest{Text: "Lot 1", PresenterRef: "p1", VoiceID: "v"})

	var rejected *services.VendorRejected
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, http.StatusUnauthorized, rejected.Status)
	assert.Equal(t, "bad key", rejected.Message)

	status, msg := services.HTTPStatus(err)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "bad key", msg)
}

func TestVendorRejectedMessageFallbacks(t *testing.T) {
	t.Parallel()

	server, _ := newVendorStub(t, map[string]http.HandlerFunc{
		"POST /talks": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "source_url unreachable"})
		},
		"GET /talks/t1": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte("not json"))
		},
	})
	svc := newService(server.URL)

	_, err := svc.SubmitTalk(context.Background(), models.GenerationRequest{Text: "hi", ImageURL: "https://img/x.png"})
	var rejected *services.VendorRejected
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, "source_url unreachable", rejected.Message)

	_, err = svc.GetJobStatus(context.Background(), "t1", models.ModeCustom)
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, http.StatusNotFound, rejected.Status)
	assert.Equal(t, "Failed to check custom video status", rejected.Message)
}

func TestSubmitTalkResolvesLocalImageAndClonedVoice(t *testing.T) {
	t.Parallel()

	var body map[string]any
	server, _ := newVendorStub(t, map[string]http.HandlerFunc{
		"POST /talks": func(w http.ResponseWriter, r *http.Request) {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			writeJSON(w, http.StatusCreated, map[string]string{"id": "tlk_1"})
		},
	})
	svc := newService(server.URL)

	id, err := svc.SubmitTalk(context.Background(), models.GenerationRequest{
		Text:        "Bidding begins at $5,000.",
		ImageURL:    "/avatars/avatar-1.png",
		VoiceID:     "cloned_abc",
		SpeechRate:  1.5,
		SpeechPitch: 0.9,
	})
	require.NoError(t, err)
	assert.Equal(t, "tlk_1", id)

	assert.Equal(t, "https://auction.example.com/avatars/avatar-1.png", body["source_url"])
	provider := body["script"].(map[string]any)["provider"].(map[string]any)
	assert.Equal(t, "microsoft", provider["type"])
	assert.Equal(t, "cloned_abc", provider["voice_id"])
	assert.Equal(t, map[string]any{"rate": "1.5", "pitch": "0.9"}, provider["voice_config"])
	assert.Equal(t, map[string]any{
		"fluent":        true,
		"pad_audio":     float64(0),
		"stitch":        true,
		"result_format": "mp4",
	}, body["config"])
}

func TestSubmitTalkValidation(t *testing.T) {
	t.Parallel()

	server, calls := newVendorStub(t, map[string]http.HandlerFunc{})
	svc := newService(server.URL)

	_, err := svc.SubmitTalk(context.Background(), models.GenerationRequest{Text: "hi"})
	var ve *services.ValidationError
	require.ErrorAs(t, err, &ve)

	_, err = svc.SubmitTalk(context.Background(), models.GenerationRequest{ImageURL: "https://x/y.png"})
	require.ErrorAs(t, err, &ve)

	assert.Equal(t, int32(0), atomic.LoadInt32(calls))
}

func TestStatusQueriesMatchMode(t *testing.T) {
	t.Parallel()

	server, _ := newVendorStub(t, map[string]http.HandlerFunc{
		"GET /clips/abc": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "started"})
		},
		"GET /talks/abc": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "error"})
		},
	})
	svc := newService(server.URL)

	clip, err := svc.GetJobStatus(context.Background(), "abc", models.ModeRegistered)
	require.NoError(t, err)
	assert.Equal(t, models.JobStateProcessing, clip.State)
	assert.Equal(t, "started", clip.RawStatus)
	assert.Empty(t, clip.ResultURL)

	talk, err := svc.GetJobStatus(context.Background(), "abc", models.ModeCustom)
	require.NoError(t, err)
	assert.Equal(t, models.JobStateError, talk.State)
}

func TestStatusRejectsIDsLeavingTheFamily(t *testing.T) {
	t.Parallel()

	server, calls := newVendorStub(t, map[string]http.HandlerFunc{})
	svc := newService(server.URL)

	for _, id := range []string{"../talks/tlk_1", "abc?x=1", "abc#frag", "a/b", `a\b`, ".", ".."} {
		for _, mode := range []models.Mode{models.ModeRegistered, models.ModeCustom} {
			_, err := svc.GetJobStatus(context.Background(), id, mode)
			var ve *services.ValidationError
			require.ErrorAs(t, err, &ve, "%s %s", mode, id)
		}
	}

	assert.Equal(t, int32(0), atomic.LoadInt32(calls))
}

func TestStatusEscapesID(t *testing.T) {
	t.Parallel()

	var escaped, query string
	server, _ := newVendorStub(t, map[string]http.HandlerFunc{
		"GET /clips/clp 1%x": func(w http.ResponseWriter, r *http.Request) {
			escaped, query = r.URL.EscapedPath(), r.URL.RawQuery
			writeJSON(w, http.StatusOK, map[string]string{"status": "started"})
		},
	})
	svc := newService(server.URL)

	job, err := svc.GetJobStatus(context.Background(), "clp 1%x", models.ModeRegistered)
	require.NoError(t, err)
	assert.Equal(t, models.JobStateProcessing, job.State)
	assert.Equal(t, "/clips/clp%201%25x", escaped)
	assert.Empty(t, query)
}

func TestNotConfigured(t *testing.T) {
	t.Parallel()

	server, calls := newVendorStub(t, map[string]http.HandlerFunc{})
	svc := services.NewDIDService(services.DIDConfig{BaseURL: server.URL, Logger: zerolog.Nop()})

	_, err := svc.SubmitClip(context.Background(), models.GenerationRequest{Text: "a", PresenterRef: "b", VoiceID: "c"})
	assert.ErrorIs(t, err, services.ErrNotConfigured)

	_, err = svc.SubmitTalk(context.Background(), models.GenerationRequest{Text: "a", ImageURL: "b"})
	assert.ErrorIs(t, err, services.ErrNotConfigured)

	_, err = svc.GetJobStatus(context.Background(), "id", models.ModeCustom)
	assert.ErrorIs(t, err, services.ErrNotConfigured)

	_, err = svc.ListPresenters(context.Background())
	assert.ErrorIs(t, err, services.ErrNotConfigured)

	status, msg := services.HTTPStatus(err)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "D-ID API key not configured", msg)
	assert.Equal(t, int32(0), atomic.LoadInt32(calls))
}

func TestTransportErrors(t *testing.T) {
	t.Parallel()

	server, _ := newVendorStub(t, map[string]http.HandlerFunc{
		"GET /clips/bad": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("{not json"))
		},
	})
	svc := newService(server.URL)

	_, err := svc.GetJobStatus(context.Background(), "bad", models.ModeRegistered)
	var te *services.TransportError
	require.ErrorAs(t, err, &te)

	status, msg := services.HTTPStatus(err)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "Internal server error", msg)

	// Unreachable vendor.
	dead := newService("http://127.0.0.1:1")
	_, err = dead.SubmitClip(context.Background(), models.GenerationRequest{Text: "a", PresenterRef: "b", VoiceID: "c"})
	require.ErrorAs(t, err, &te)
	assert.False(t, errors.Is(err, services.ErrNotConfigured))
}

func TestListPresentersShapes(t *testing.T) {
	t.Parallel()

	presenters := []map[string]any{
		{"presenter_id": "p1", "name": "Alex", "image_url": "https://img/1.png", "gender": "male", "is_streamable": true},
		{"presenter_id": "p2", "thumbnail_url": "https://img/2.png", "gender": "female",
			"voice": map[string]string{"type": "microsoft", "voice_id": "en-US-JennyNeural"}},
		{"presenter_id": "", "name": "No Id", "image_url": "https://img/3.png"},
		{"presenter_id": "p4", "name": "No Image"},
		{"presenter_id": "p5", "name": "Fifth", "image_url": "https://img/5.png"},
	}

	shapes := map[string]any{
		"array":      presenters,
		"presenters": map[string]any{"presenters": presenters},
		"result":     map[string]any{"result": presenters},
	}

	for name, payload := range shapes {
		t.Run(name, func(t *testing.T) {
			server, _ := newVendorStub(t, map[string]http.HandlerFunc{
				"GET /clips/presenters": func(w http.ResponseWriter, r *http.Request) {
					writeJSON(w, http.StatusOK, payload)
				},
			})

			avatars, err := newService(server.URL).ListPresenters(context.Background())
			require.NoError(t, err)

			// First four considered, two survive filtering, the fifth is never seen.
			require.Len(t, avatars, 2)

			assert.Equal(t, "p1", avatars[0].ID)
			assert.Equal(t, "Alex", avatars[0].Name)
			assert.Equal(t, "en-US-DavisNeural", avatars[0].VoiceID)
			assert.Equal(t, "male presenter, streamable", avatars[0].Specialty)
			assert.Equal(t, "Professional, AI-generated", avatars[0].Voice)
			assert.True(t, avatars[0].IsStreamable)

			assert.Equal(t, "Avatar p2", avatars[1].Name)
			assert.Equal(t, "https://img/2.png", avatars[1].ImageURL)
			assert.Equal(t, "en-US-JennyNeural", avatars[1].VoiceID)
			assert.Equal(t, "microsoft (en-US-JennyNeural)", avatars[1].Voice)
			assert.Equal(t, "female presenter, high-quality", avatars[1].Specialty)
		})
	}
}

func TestResolveImageURL(t *testing.T) {
	t.Parallel()

	svc := newService("http://unused")
	assert.Equal(t, "https://auction.example.com/avatars/a.png", svc.ResolveImageURL("/avatars/a.png"))
	assert.Equal(t, "https://i.ibb.co/x.png", svc.ResolveImageURL("https://i.ibb.co/x.png"))
	assert.Equal(t, "//cdn/x.png", svc.ResolveImageURL("//cdn/x.png"))
	assert.Equal(t, "/images/x.png", svc.ResolveImageURL("/images/x.png"))
}
