// Package voice maps Microsoft neural voice names onto the Amazon Polly voices
// the avatar vendor accepts.
package voice

import (
	"strings"

	"github.com/bobarin/auctioneer/internal/models"
)

const (
	DefaultMaleVoice   = "Matthew"
	DefaultFemaleVoice = "Aria"

	ProviderAmazon    = "amazon"
	ProviderMicrosoft = "microsoft"
)

// clonedPrefixes mark vendor-side cloned voices, which are passed through untouched.
var clonedPrefixes = []string{"custom_", "cloned_"}

// presenterVoices is used for registered presenters.
var presenterVoices = map[string]string{
	"en-US-AriaNeural":                   "Aria",
	"en-US-JennyNeural":                  "Joanna",
	"en-US-DavisNeural":                  "Matthew",
	"en-US-BrianMultilingualNeural":      "Brian",
	"en-US-EmmaMultilingualNeural":       "Emma",
	"en-US-AndrewMultilingualNeural":     "Matthew",
	"en-US-AshleyNeural":                 "Aria",
	"en-US-GuyNeural":                    "Joey",
	"en-US-SaraNeural":                   "Aria",
	"en-US-NovaTurboMultilingualNeural":  "Aria",
	"en-US-AlloyTurboMultilingualNeural": "Matthew",
	"en-US-OnyxTurboMultilingualNeural":  "Matthew",
	"en-US-SteffanMultilingualNeural":    "Matthew",
	"en-US-RyanMultilingualNeural":       "Matthew",
	"en-GB-AdaMultilingualNeural":        "Amy",
	"en-GB-OliverNeural":                 "Brian",
	"en-GB-OllieMultilingualNeural":      "Brian",
	"en-AU-WilliamNeural":                "Matthew",
	"es-US-PalomaNeural":                 "Lucia",
}

// customAvatarVoices is the narrower table used on the custom image path.
var customAvatarVoices = map[string]string{
	"en-US-AriaNeural":               "Aria",
	"en-US-JennyNeural":              "Joanna",
	"en-US-DavisNeural":              "Matthew",
	"en-US-BrianMultilingualNeural":  "Brian",
	"en-US-EmmaMultilingualNeural":   "Emma",
	"en-US-AndrewMultilingualNeural": "Matthew",
}

// Map returns the vendor voice for a source voice id. Unknown ids fall back
// to a default picked by gender, so the result is always usable.
func Map(sourceVoiceID string, gender models.Gender) string {
	return lookup(presenterVoices, sourceVoiceID, gender)
}

// Resolution is the outcome of resolving a voice for a custom image avatar.
type Resolution struct {
	VoiceID  string
	Provider string
	Cloned   bool
}

// IsCloned reports whether the voice id refers to a cloned voice.
func IsCloned(voiceID string, hasCustomVoice bool) bool {
	if hasCustomVoice {
		return true
	}
	for _, p := range clonedPrefixes {
		if strings.HasPrefix(voiceID, p) {
			return true
		}
	}
	return false
}

// ResolveForCustomAvatar is Map for the custom image path. Cloned voices are
// returned unchanged and must be sent with the microsoft provider tag.
func ResolveForCustomAvatar(sourceVoiceID string, gender models.Gender, hasCustomVoice bool) Resolution {
	if IsCloned(sourceVoiceID, hasCustomVoice) {
		return Resolution{VoiceID: sourceVoiceID, Provider: ProviderMicrosoft, Cloned: true}
	}
	return Resolution{
		VoiceID:  lookup(customAvatarVoices, sourceVoiceID, gender),
		Provider: ProviderAmazon,
	}
}

// DefaultSourceVoice is the source voice assumed for a presenter the vendor
// lists without one.
func DefaultSourceVoice(gender models.Gender) string {
	if gender == models.GenderMale {
		return "en-US-DavisNeural"
	}
	return "en-US-AriaNeural"
}

func lookup(table map[string]string, id string, gender models.Gender) string {
	if v, ok := table[id]; ok {
		return v
	}
	if gender == models.GenderMale {
		return DefaultMaleVoice
	}
	return DefaultFemaleVoice
}
