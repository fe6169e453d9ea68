package speech

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strconv"

	"github.com/rs/zerolog"
)

// Command speaks through the host's speech binary: say on macOS, espeak
// elsewhere.
type Command struct {
	binary string
	opts   Options
	logger zerolog.Logger
}

func NewCommand(opts Options, log zerolog.Logger) *Command {
	binary := "espeak"
	if runtime.GOOS == "darwin" {
		binary = "say"
	}
	return &Command{
		binary: binary,
		opts:   opts,
		logger: log.With().Str("speaker", binary).Logger(),
	}
}

func (c *Command) Name() string { return c.binary }

// Available checks the binary is on PATH.
func (c *Command) Available() bool {
	_, err := exec.LookPath(c.binary)
	return err == nil
}

func (c *Command) Speak(ctx context.Context, text string) error {
	if !c.Available() {
		return fmt.Errorf("%w: %s not found", ErrUnavailable, c.binary)
	}

	args := c.args(text)

	c.logger.Debug().
		Str("voice", c.opts.Voice).
		Int("textLen", len(text)).
		Msg("Speaking with system TTS")

	cmd := exec.CommandContext(ctx, c.binary, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Error().
			Err(err).
			Str("output", string(output)).
			Msg("System TTS failed")
		return fmt.Errorf("%s command failed: %w", c.binary, err)
	}
	return nil
}

// args builds the argument list. Both binaries take -v for the voice; rate
// is words per minute for say (-r) and espeak (-s), 175 being normal.
func (c *Command) args(text string) []string {
	var args []string
	if c.opts.Voice != "" {
		args = append(args, "-v", c.opts.Voice)
	}
	if c.opts.Rate > 0 && c.opts.Rate != 1 {
		wpm := strconv.Itoa(int(175 * c.opts.Rate))
		if c.binary == "say" {
			args = append(args, "-r", wpm)
		} else {
			args = append(args, "-s", wpm)
		}
	}
	return append(args, text)
}
