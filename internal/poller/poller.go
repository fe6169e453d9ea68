// Package poller follows one submitted vendor job until it reaches a
// terminal state.
package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bobarin/auctioneer/internal/metrics"
	"github.com/bobarin/auctioneer/internal/models"
	"github.com/rs/zerolog"
)

// DefaultInterval is the delay between a non-terminal answer and the next query.
const DefaultInterval = 2 * time.Second

var (
	// ErrJobFailed means the vendor reported the job as errored.
	ErrJobFailed = errors.New("job failed at vendor")
	// ErrPollLimit means MaxAttempts or Timeout ran out before a terminal state.
	ErrPollLimit = errors.New("polling limit reached")
)

type State string

const (
	StatePolling   State = "polling"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// StatusFunc queries the job once. It must use the endpoint family that
// matches mode.
type StatusFunc func(ctx context.Context, jobID string, mode models.Mode) (*models.Job, error)

// Event is emitted on every transition and on every "still preparing" answer.
type Event struct {
	State     State
	Notice    string
	ResultURL string
	Err       error
}

type Observer func(Event)

// Outcome is the final result of Run.
type Outcome struct {
	State     State
	ResultURL string
	Attempts  int
	Err       error
}

type Poller struct {
	Status      StatusFunc
	Clock       Clock
	Interval    time.Duration
	MaxAttempts int           // 0 = no cap
	Timeout     time.Duration // 0 = no cap
	Logger      zerolog.Logger
}

func New(status StatusFunc, log zerolog.Logger) *Poller {
	return &Poller{
		Status:   status,
		Clock:    RealClock{},
		Interval: DefaultInterval,
		Logger:   log,
	}
}

// Run queries immediately, then once per Interval after every non-terminal
// answer. A query error ends polling at once; only "still processing" is
// retried. Cancelling ctx stops the pending timer and returns StateCancelled.
func (p *Poller) Run(ctx context.Context, jobID string, mode models.Mode, observe Observer) Outcome {
	if observe == nil {
		observe = func(Event) {}
	}
	clock := p.Clock
	if clock == nil {
		clock = RealClock{}
	}
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	metrics.ActivePolls.Inc()
	defer metrics.ActivePolls.Dec()

	log := p.Logger.With().Str("job_id", jobID).Str("mode", string(mode)).Logger()
	started := clock.Now()
	attempts := 0

	for {
		if err := ctx.Err(); err != nil {
			return p.finish(observe, Outcome{State: StateCancelled, Attempts: attempts, Err: err})
		}

		attempts++
		job, err := p.Status(ctx, jobID, mode)
		if err != nil {
			if ctx.Err() != nil {
				return p.finish(observe, Outcome{State: StateCancelled, Attempts: attempts, Err: ctx.Err()})
			}
			log.Warn().Err(err).Int("attempt", attempts).Msg("Status query failed")
			return p.finish(observe, Outcome{State: StateFailed, Attempts: attempts, Err: err})
		}

		if job.State.Terminal() {
			switch {
			case job.State == models.JobStateError:
				log.Warn().Int("attempts", attempts).Msg("Job failed at vendor")
				return p.finish(observe, Outcome{State: StateFailed, Attempts: attempts, Err: ErrJobFailed})
			case job.ResultURL != "":
				log.Info().Int("attempts", attempts).Str("result_url", job.ResultURL).Msg("Job completed")
				return p.finish(observe, Outcome{State: StateCompleted, ResultURL: job.ResultURL, Attempts: attempts})
			}
			log.Debug().Int("attempts", attempts).Msg("Job done without a result URL yet")
		}

		observe(Event{State: StatePolling, Notice: "Preparing: " + job.RawStatus})

		if p.MaxAttempts > 0 && attempts >= p.MaxAttempts {
			return p.finish(observe, Outcome{State: StateFailed, Attempts: attempts,
				Err: fmt.Errorf("%w: %d attempts", ErrPollLimit, attempts)})
		}
		if p.Timeout > 0 && clock.Now().Sub(started)+interval > p.Timeout {
			return p.finish(observe, Outcome{State: StateFailed, Attempts: attempts,
				Err: fmt.Errorf("%w: %s elapsed", ErrPollLimit, p.Timeout)})
		}

		timer := clock.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return p.finish(observe, Outcome{State: StateCancelled, Attempts: attempts, Err: ctx.Err()})
		case <-timer.C():
		}
	}
}

func (p *Poller) finish(observe Observer, out Outcome) Outcome {
	observe(Event{State: out.State, ResultURL: out.ResultURL, Err: out.Err})
	return out
}
