package models

import "time"

// Enums
type Mode string

const (
	ModeRegistered Mode = "registered" // vendor-hosted presenter (D-ID clips)
	ModeCustom     Mode = "custom"     // arbitrary uploaded image (D-ID talks)
)

type JobState string

const (
	JobStatePending    JobState = "pending"
	JobStateProcessing JobState = "processing"
	JobStateDone       JobState = "done"
	JobStateError      JobState = "error"
)

// Terminal reports whether no further polling is needed.
func (s JobState) Terminal() bool {
	return s == JobStateDone || s == JobStateError
}

// ParseJobState collapses a vendor status label into the canonical state.
// Only "done" and "error" are meaningful; every other label means the
// vendor is still working on it.
func ParseJobState(raw string) JobState {
	switch raw {
	case "done":
		return JobStateDone
	case "error":
		return JobStateError
	default:
		return JobStateProcessing
	}
}

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// Models

// GenerationRequest is the vendor-neutral description of one talking-avatar video.
type GenerationRequest struct {
	Text           string
	PresenterRef   string // registered presenter id (ModeRegistered)
	ImageURL       string // absolute URL or local /avatars/ path (ModeCustom)
	VoiceID        string
	Gender         Gender
	HasCustomVoice bool
	SpeechRate     float64 // 0 = default (1)
	SpeechPitch    float64 // 0 = default (1)
	Mode           Mode
}

// Rate returns the effective speech rate.
func (r GenerationRequest) Rate() float64 {
	if r.SpeechRate <= 0 {
		return 1
	}
	return r.SpeechRate
}

// Pitch returns the effective speech pitch.
func (r GenerationRequest) Pitch() float64 {
	if r.SpeechPitch <= 0 {
		return 1
	}
	return r.SpeechPitch
}

// Job is the client's read-only view of one vendor generation job.
type Job struct {
	ID        string   `json:"id"`
	Mode      Mode     `json:"mode"`
	State     JobState `json:"state"`
	RawStatus string   `json:"raw_status"`
	ResultURL string   `json:"result_url,omitempty"`
}

type AvatarDescriptor struct {
	ID             string `json:"id" toml:"id"`
	Name           string `json:"name" toml:"name"`
	ImageURL       string `json:"image" toml:"image"`
	Voice          string `json:"voice,omitempty" toml:"voice"`         // human-readable voice description
	Specialty      string `json:"specialty,omitempty" toml:"specialty"` // display tagline
	VoiceID        string `json:"voiceId" toml:"voice_id"`
	Gender         Gender `json:"gender,omitempty" toml:"gender"`
	IsStreamable   bool   `json:"isStreamable" toml:"streamable"`
	IsCustomImage  bool   `json:"isCustom" toml:"custom"`
	HasClonedVoice bool   `json:"hasCustomVoice" toml:"cloned_voice"`
}

// Mode returns the vendor resource family the avatar is generated through.
func (a AvatarDescriptor) Mode() Mode {
	if a.IsCustomImage {
		return ModeCustom
	}
	return ModeRegistered
}

// LedgerEntry records a submitted job for the debug endpoint.
type LedgerEntry struct {
	JobID       string     `json:"job_id"`
	Mode        Mode       `json:"mode"`
	SubmittedAt time.Time  `json:"submitted_at"`
	LastStatus  string     `json:"last_status,omitempty"`
	CheckedAt   *time.Time `json:"checked_at,omitempty"`
	Polls       int        `json:"polls"`
}

// API request/response types

// GenerateVideoRequest is the body of POST /generate-video.
type GenerateVideoRequest struct {
	Text        string  `json:"text"`
	AvatarImage string  `json:"avatarImage"` // presenter id, despite the name
	VoiceID     string  `json:"voiceId"`
	Gender      Gender  `json:"gender,omitempty"`
	SpeechRate  float64 `json:"speechRate,omitempty"`
	SpeechPitch float64 `json:"speechPitch,omitempty"`
}

// CustomAvatarRequest is the body of POST /upload-custom-avatar.
type CustomAvatarRequest struct {
	Text           string  `json:"text"`
	ImageURL       string  `json:"imageUrl"`
	VoiceID        string  `json:"voiceId"`
	Gender         Gender  `json:"gender,omitempty"`
	HasCustomVoice bool    `json:"hasCustomVoice,omitempty"`
	SpeechRate     float64 `json:"speechRate,omitempty"`
	SpeechPitch    float64 `json:"speechPitch,omitempty"`
}

type VideoResponse struct {
	VideoID string `json:"videoId"`
}

type VideoStatusResponse struct {
	Status    string  `json:"status"`
	ResultURL *string `json:"result_url"`
}

type AvatarsResponse struct {
	Avatars []AvatarDescriptor `json:"avatars"`
}

type UploadResponse struct {
	Success  bool   `json:"success"`
	Filename string `json:"filename"`
	URL      string `json:"url"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
