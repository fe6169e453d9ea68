package speech

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type unavailable struct{ Silent }

func (unavailable) Available() bool { return false }
func (unavailable) Name() string    { return "unavailable" }

func TestSilentDuration(t *testing.T) {
	t.Parallel()

	s := Silent{WordsPerMinute: 60}
	assert.Equal(t, 3*time.Second, s.Duration("one two three"))
	assert.Zero(t, s.Duration("   "))
	assert.Equal(t, 400*time.Millisecond, Silent{}.Duration("a"))
}

func TestSilentCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Silent{WordsPerMinute: 1}.Speak(ctx, "this would take minutes")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFirstSkipsUnavailable(t *testing.T) {
	t.Parallel()

	s := First(unavailable{}, Silent{WordsPerMinute: 10})
	assert.Equal(t, "silent", s.Name())

	assert.Equal(t, "silent", First(unavailable{}).Name())
}

func TestCommandArgs(t *testing.T) {
	t.Parallel()

	c := NewCommand(Options{Voice: "Daniel", Rate: 1.2}, zerolog.Nop())
	args := c.args("Lot 59557")

	assert.Equal(t, []string{"-v", "Daniel"}, args[:2])
	assert.Equal(t, "210", args[3])
	assert.Equal(t, "Lot 59557", args[len(args)-1])

	plain := NewCommand(Options{}, zerolog.Nop())
	assert.Equal(t, []string{"hello"}, plain.args("hello"))
}
