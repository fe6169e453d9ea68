package playback

import (
	"context"
	"fmt"
	"io"
	"os/exec"
)

// CommandPlayer plays a video URL with an external player (ffplay by
// default). When the binary is missing it only announces the URL.
type CommandPlayer struct {
	Binary string
	Args   []string
	Out    io.Writer
}

func NewCommandPlayer(out io.Writer) *CommandPlayer {
	return &CommandPlayer{
		Binary: "ffplay",
		Args:   []string{"-autoexit", "-loglevel", "quiet"},
		Out:    out,
	}
}

func (p *CommandPlayer) Play(ctx context.Context, url string) error {
	if p.Out != nil {
		fmt.Fprintf(p.Out, "Video: %s\n", url)
	}
	if _, err := exec.LookPath(p.Binary); err != nil {
		return nil
	}

	args := append(append([]string{}, p.Args...), url)
	if err := exec.CommandContext(ctx, p.Binary, args...).Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%s failed: %w", p.Binary, err)
	}
	return nil
}
