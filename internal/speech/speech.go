// Package speech is the local fallback narrator used when no vendor video
// can be produced.
package speech

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrUnavailable means the speaker cannot run on this host.
var ErrUnavailable = errors.New("speech synthesis not available")

// Speaker reads text aloud. Speak blocks until the utterance ends;
// cancelling ctx cuts the utterance short.
type Speaker interface {
	Speak(ctx context.Context, text string) error
	Name() string
}

// Options tune the delivery. Zero values mean the engine default.
type Options struct {
	Voice string
	Rate  float64 // 1 = normal
}

// First returns the first available speaker, or a Silent one.
func First(candidates ...Speaker) Speaker {
	for _, s := range candidates {
		if a, ok := s.(interface{ Available() bool }); ok && !a.Available() {
			continue
		}
		if s != nil {
			return s
		}
	}
	return Silent{}
}

// Silent waits as long as the text would take to read at about 150 words
// per minute. Used on hosts without audio.
type Silent struct {
	WordsPerMinute int
}

func (Silent) Name() string { return "silent" }

func (s Silent) Speak(ctx context.Context, text string) error {
	d := s.Duration(text)
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Duration estimates reading time for text.
func (s Silent) Duration(text string) time.Duration {
	wpm := s.WordsPerMinute
	if wpm <= 0 {
		wpm = 150
	}
	words := len(strings.Fields(text))
	return time.Duration(words) * time.Minute / time.Duration(wpm)
}
