// Package playback runs one auction narration at a time: a vendor video when
// one can be generated, local speech otherwise.
package playback

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/bobarin/auctioneer/internal/client"
	"github.com/bobarin/auctioneer/internal/metrics"
	"github.com/bobarin/auctioneer/internal/models"
	"github.com/bobarin/auctioneer/internal/poller"
	"github.com/bobarin/auctioneer/internal/services"
	"github.com/bobarin/auctioneer/internal/speech"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseGenerating Phase = "generating"
	PhaseVideo      Phase = "video"
	PhaseSpeaking   Phase = "speaking"
)

const (
	StatusPreparing = "Auctioneer preparing..."
	StatusLive      = "Auction Live!"
	StatusFailed    = "Error starting auction"
	StatusNoAvatar  = "Please select an auctioneer first"
)

// Fallback reasons recorded on the fallback counter.
const (
	FallbackExpected = "expected" // vendor credential not configured
	FallbackDegraded = "degraded" // vendor or network failure
)

// ProgressStep is added to the progress bar on every animation frame while
// speaking.
const ProgressStep = 0.5

// Backend submits jobs and reports their status. *client.Client satisfies it.
type Backend interface {
	Submit(ctx context.Context, avatar models.AvatarDescriptor, text string) (string, error)
	Status(ctx context.Context, jobID string, mode models.Mode) (*models.Job, error)
}

// Player shows a finished video. Play blocks until the video ends;
// cancelling ctx pauses it.
type Player interface {
	Play(ctx context.Context, url string) error
}

// Snapshot is what the presentation layer renders.
type Snapshot struct {
	Session  string
	Phase    Phase
	Status   string
	Progress float64
	VideoURL string
	Fallback string
}

type Config struct {
	Backend       Backend
	Speaker       speech.Speaker
	Player        Player
	Poller        *poller.Poller // template; Status is replaced with Backend.Status
	FrameInterval time.Duration  // default ~60 fps
	OnUpdate      func(Snapshot) // called with the orchestrator locked
	Logger        zerolog.Logger
}

type Orchestrator struct {
	cfg Config

	mu     sync.Mutex
	state  Snapshot
	cancel context.CancelFunc
	done   chan struct{}
}

func New(cfg Config) *Orchestrator {
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = time.Second / 60
	}
	if cfg.Speaker == nil {
		cfg.Speaker = speech.Silent{}
	}
	if cfg.Poller == nil {
		cfg.Poller = poller.New(nil, cfg.Logger)
	}
	return &Orchestrator{cfg: cfg, state: Snapshot{Phase: PhaseIdle}}
}

// Snapshot returns the current state.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Toggle starts narrating script with avatar, or stops the active narration
// if one is running.
func (o *Orchestrator) Toggle(ctx context.Context, avatar *models.AvatarDescriptor, script string) {
	o.mu.Lock()
	if o.state.Phase != PhaseIdle {
		o.stopLocked()
		o.mu.Unlock()
		return
	}

	if avatar == nil {
		o.setLocked(func(s *Snapshot) { s.Status = StatusNoAvatar })
		o.mu.Unlock()
		return
	}
	if strings.TrimSpace(script) == "" {
		o.mu.Unlock()
		return
	}

	sessCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	o.cancel = cancel
	o.done = done
	session := uuid.NewString()
	o.setLocked(func(s *Snapshot) {
		*s = Snapshot{Session: session, Phase: PhaseGenerating, Status: StatusPreparing}
	})
	o.mu.Unlock()

	log := o.cfg.Logger.With().Str("session", session).Str("avatar", avatar.Name).Logger()
	go func() {
		defer close(done)
		defer cancel()
		o.run(sessCtx, session, *avatar, script, log)
	}()
}

// Stop ends the active narration, if any.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stopLocked()
}

// Wait blocks until the current narration goroutine has exited.
func (o *Orchestrator) Wait() {
	o.mu.Lock()
	done := o.done
	o.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (o *Orchestrator) stopLocked() {
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
	o.setLocked(func(s *Snapshot) {
		s.Phase = PhaseIdle
		s.Progress = 0
	})
}

func (o *Orchestrator) run(ctx context.Context, session string, avatar models.AvatarDescriptor, script string, log zerolog.Logger) {
	mode := avatar.Mode()

	jobID, err := o.cfg.Backend.Submit(ctx, avatar, script)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		o.fallback(ctx, session, script, err, log)
		return
	}
	log.Info().Str("job_id", jobID).Str("mode", string(mode)).Msg("Video job submitted")

	p := *o.cfg.Poller
	p.Status = o.cfg.Backend.Status
	p.Logger = log

	out := p.Run(ctx, jobID, mode, func(e poller.Event) {
		if e.State == poller.StatePolling {
			o.update(session, func(s *Snapshot) { s.Status = e.Notice })
		}
	})

	switch out.State {
	case poller.StateCancelled:
		return
	case poller.StateFailed:
		status := StatusFailed
		if !errors.Is(out.Err, poller.ErrJobFailed) {
			status = "Error: " + out.Err.Error()
		}
		log.Warn().Err(out.Err).Msg("Video generation failed")
		o.update(session, func(s *Snapshot) {
			s.Phase = PhaseIdle
			s.Status = status
		})
		return
	}

	o.update(session, func(s *Snapshot) {
		s.Phase = PhaseVideo
		s.Status = StatusLive
		s.VideoURL = out.ResultURL
	})

	// Without a player the URL in the snapshot is the whole presentation.
	if o.cfg.Player != nil {
		if err := o.cfg.Player.Play(ctx, out.ResultURL); err != nil && ctx.Err() == nil {
			log.Warn().Err(err).Msg("Video playback failed")
		}
	}
	if ctx.Err() == nil {
		o.update(session, func(s *Snapshot) {
			s.Phase = PhaseIdle
			s.Progress = 100
		})
	}
}

// fallback speaks script locally, advancing progress on a fixed frame rate
// that is unrelated to the audio.
func (o *Orchestrator) fallback(ctx context.Context, session, script string, cause error, log zerolog.Logger) {
	reason := Classify(cause)
	metrics.Fallbacks.WithLabelValues(reason).Inc()

	ev := log.Warn()
	if reason == FallbackExpected {
		ev = log.Info()
	}
	ev.Err(cause).Str("reason", reason).Str("speaker", o.cfg.Speaker.Name()).Msg("Falling back to local speech")

	o.update(session, func(s *Snapshot) {
		s.Phase = PhaseSpeaking
		s.Status = "Error: " + cause.Error()
		s.Fallback = reason
		s.Progress = 0
	})

	animCtx, stopAnim := context.WithCancel(ctx)
	animDone := make(chan struct{})
	go func() {
		defer close(animDone)
		o.animate(animCtx, session)
	}()

	err := o.cfg.Speaker.Speak(ctx, script)
	stopAnim()
	<-animDone

	if ctx.Err() != nil {
		return
	}
	if err != nil {
		log.Warn().Err(err).Msg("Local speech failed")
	}
	o.update(session, func(s *Snapshot) {
		s.Phase = PhaseIdle
		s.Progress = 0
	})
}

func (o *Orchestrator) animate(ctx context.Context, session string) {
	ticker := time.NewTicker(o.cfg.FrameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		finished := false
		o.update(session, func(s *Snapshot) {
			if s.Progress >= 100 {
				s.Progress = 0
				finished = true
				return
			}
			s.Progress += ProgressStep
		})
		if finished {
			return
		}
	}
}

// update applies fn if session is still the active one.
func (o *Orchestrator) update(session string, fn func(*Snapshot)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.Session != session || o.cancel == nil {
		return
	}
	o.setLocked(fn)
}

func (o *Orchestrator) setLocked(fn func(*Snapshot)) {
	fn(&o.state)
	if o.state.Phase == PhaseIdle {
		o.cancel = nil
	}
	if o.cfg.OnUpdate != nil {
		o.cfg.OnUpdate(o.state)
	}
}

// Classify separates the expected fallback (no vendor credential) from a
// degraded one.
func Classify(err error) string {
	if errors.Is(err, services.ErrNotConfigured) {
		return FallbackExpected
	}
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.Message == services.ErrNotConfigured.Error() {
		return FallbackExpected
	}
	return FallbackDegraded
}
