package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/bobarin/auctioneer/internal/models"
	"github.com/pelletier/go-toml/v2"
)

// DefaultSelectedAvatar is "<kind>/<name>" of the avatar the page starts with.
const DefaultSelectedAvatar = "custom-avatar/John Wick"

// Roster is the set of avatars the page can select from, plus the fallback
// list served when the vendor lists no presenters. Vendor errors are not
// replaced by it.
type Roster struct {
	Custom    []models.AvatarDescriptor `toml:"custom"`
	Fallbacks []models.AvatarDescriptor `toml:"fallback"`
}

// DefaultRoster is used when no AVATARS_FILE is configured.
func DefaultRoster() *Roster {
	return &Roster{
		Custom: []models.AvatarDescriptor{
			{
				ID:             "custom-avatar",
				Name:           "John Wick",
				ImageURL:       "https://i.ibb.co/m5rrScPL/john-wick-2.png",
				Voice:          "Matthew (Amazon)",
				Specialty:      "Professional Auctioneer",
				VoiceID:        "en-US-DavisNeural",
				Gender:         models.GenderMale,
				IsCustomImage:  true,
				HasClonedVoice: false,
			},
		},
		Fallbacks: []models.AvatarDescriptor{
			{
				ID:        "fallback-1",
				Name:      "Professional Avatar",
				ImageURL:  "https://images.pexels.com/photos/2379004/pexels-photo-2379004.jpeg?auto=compress&cs=tinysrgb&w=800",
				Voice:     "Authoritative, confident, corporate",
				Specialty: "Business presentations, auctions",
				VoiceID:   "en-US-DavisNeural",
			},
			{
				ID:        "fallback-2",
				Name:      "Friendly Avatar",
				ImageURL:  "https://images.pexels.com/photos/1516680/pexels-photo-1516680.jpeg?auto=compress&cs=tinysrgb&w=800",
				Voice:     "Analytical, calm, methodical",
				Specialty: "Investigations, analysis",
				VoiceID:   "en-US-AriaNeural",
			},
		},
	}
}

// LoadRoster reads a TOML roster. An empty path yields DefaultRoster; a file
// that omits a section keeps the default for it.
func LoadRoster(path string) (*Roster, error) {
	roster := DefaultRoster()
	if path == "" {
		return roster, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read avatar roster: %w", err)
	}

	var parsed Roster
	if err := toml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse avatar roster %s: %w", path, err)
	}

	if len(parsed.Custom) > 0 {
		roster.Custom = parsed.Custom
	}
	if len(parsed.Fallbacks) > 0 {
		roster.Fallbacks = parsed.Fallbacks
	}

	for i, a := range roster.Custom {
		if a.Name == "" || a.ImageURL == "" {
			return nil, fmt.Errorf("custom avatar %d in %s needs a name and image", i, path)
		}
		roster.Custom[i].IsCustomImage = true
	}

	return roster, nil
}

// Select resolves a "<kind>/<name>" key. Kind "custom-avatar" looks in
// Custom by name; kind "presenter" builds a registered-mode descriptor
// whose ID is the presenter id. A bare name is treated as a custom avatar.
func (r *Roster) Select(key string) (models.AvatarDescriptor, error) {
	kind, name, ok := strings.Cut(key, "/")
	if !ok {
		kind, name = "custom-avatar", key
	}

	switch kind {
	case "custom-avatar":
		for _, a := range r.Custom {
			if strings.EqualFold(a.Name, name) || a.ID == name {
				return a, nil
			}
		}
		return models.AvatarDescriptor{}, fmt.Errorf("custom avatar %q not in roster", name)
	case "presenter":
		if name == "" {
			return models.AvatarDescriptor{}, fmt.Errorf("presenter id is empty")
		}
		return models.AvatarDescriptor{
			ID:       name,
			Name:     "Avatar " + name,
			ImageURL: name,
		}, nil
	default:
		return models.AvatarDescriptor{}, fmt.Errorf("unknown avatar kind %q", kind)
	}
}
