package client

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bobarin/auctioneer/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitRoutesByMode(t *testing.T) {
	t.Parallel()

	var gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(`{"videoId":"job123"}`))
	}))
	defer srv.Close()

	c := New(srv.URL+"/api", srv.Client())

	id, err := c.Submit(t.Context(), models.AvatarDescriptor{ID: "p1", VoiceID: "en-US-AriaNeural"}, "Lot 1")
	require.NoError(t, err)
	assert.Equal(t, "job123", id)
	assert.Equal(t, "/api/generate-video", gotPath)
	assert.Equal(t, "p1", gotBody["avatarImage"])

	custom := models.AvatarDescriptor{
		ID: "custom-avatar", ImageURL: "/avatars/a.png", VoiceID: "cloned_x",
		IsCustomImage: true, HasClonedVoice: true,
	}
	_, err = c.Submit(t.Context(), custom, "Lot 1")
	require.NoError(t, err)
	assert.Equal(t, "/api/upload-custom-avatar", gotPath)
	assert.Equal(t, "/avatars/a.png", gotBody["imageUrl"])
	assert.Equal(t, true, gotBody["hasCustomVoice"])
}

func TestSubmitErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/generate-video":
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"D-ID API key not configured"}`))
		case "/upload-custom-avatar":
			_, _ = w.Write([]byte(`{}`))
		}
	}))
	defer srv.Close()

	c := New(srv.URL, nil)

	_, err := c.Submit(t.Context(), models.AvatarDescriptor{ID: "p1"}, "x")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.Equal(t, "D-ID API key not configured", apiErr.Message)

	_, err = c.Submit(t.Context(), models.AvatarDescriptor{IsCustomImage: true}, "x")
	assert.ErrorIs(t, err, ErrNoVideoID)
}

func TestStatusUsesModeEndpoint(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tlk_1", r.URL.Query().Get("videoId"))
		switch r.URL.Path {
		case "/check-custom-video-status":
			_, _ = w.Write([]byte(`{"status":"done","result_url":"https://x/y.mp4"}`))
		case "/check-video-status":
			_, _ = w.Write([]byte(`{"status":"started","result_url":null}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, nil)

	job, err := c.Status(t.Context(), "tlk_1", models.ModeCustom)
	require.NoError(t, err)
	assert.Equal(t, models.JobStateDone, job.State)
	assert.Equal(t, "https://x/y.mp4", job.ResultURL)

	job, err = c.Status(t.Context(), "tlk_1", models.ModeRegistered)
	require.NoError(t, err)
	assert.Equal(t, models.JobStateProcessing, job.State)
	assert.Equal(t, "started", job.RawStatus)
	assert.Empty(t, job.ResultURL)
}

func TestStatusFallbackMessage(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, nil).Status(t.Context(), "x", models.ModeRegistered)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Failed to check video status", apiErr.Message)
}

func TestUploadImage(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/upload-avatar-image", r.URL.Path)
		file, header, err := r.FormFile("avatar")
		if !assert.NoError(t, err) {
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Equal(t, "png-bytes", string(data))
		assert.Equal(t, "image/png", header.Header.Get("Content-Type"))
		assert.Equal(t, "face.png", header.Filename)
		_, _ = w.Write([]byte(`{"success":true,"filename":"avatar-1-abcd1234.png","url":"/avatars/avatar-1-abcd1234.png"}`))
	}))
	defer srv.Close()

	resp, err := New(srv.URL, nil).UploadImage(t.Context(), "/tmp/face.png", "image/png", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "/avatars/avatar-1-abcd1234.png", resp.URL)
}

func TestAvatars(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"avatars":[{"id":"a","name":"Alex","image":"https://i/a.png","voiceId":"","isStreamable":true,"isCustom":false,"hasCustomVoice":false}]}`))
	}))
	defer srv.Close()

	avatars, err := New(srv.URL, nil).Avatars(t.Context())
	require.NoError(t, err)
	require.Len(t, avatars, 1)
	assert.Equal(t, "Alex", avatars[0].Name)
	assert.True(t, avatars[0].IsStreamable)
}
