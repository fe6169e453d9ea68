package speech

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAI synthesizes the narration with OpenAI TTS and plays the mp3 through
// a local audio player (afplay on macOS, ffplay elsewhere).
type OpenAI struct {
	client *openai.Client
	voice  openai.SpeechVoice
	speed  float64
	player []string
	logger zerolog.Logger
}

func NewOpenAI(apiKey string, opts Options, log zerolog.Logger) *OpenAI {
	voice := openai.VoiceOnyx
	if opts.Voice != "" {
		voice = openai.SpeechVoice(opts.Voice)
	}
	speed := opts.Rate
	if speed <= 0 {
		speed = 1
	}

	player := []string{"ffplay", "-nodisp", "-autoexit", "-loglevel", "quiet"}
	if runtime.GOOS == "darwin" {
		player = []string{"afplay"}
	}

	return &OpenAI{
		client: openai.NewClient(apiKey),
		voice:  voice,
		speed:  speed,
		player: player,
		logger: log.With().Str("speaker", "openai").Logger(),
	}
}

func (o *OpenAI) Name() string { return "openai" }

// Available checks the audio player is on PATH.
func (o *OpenAI) Available() bool {
	_, err := exec.LookPath(o.player[0])
	return err == nil
}

func (o *OpenAI) Speak(ctx context.Context, text string) error {
	path, err := o.Synthesize(ctx, text)
	if err != nil {
		return err
	}
	defer os.Remove(path)

	args := append(append([]string{}, o.player[1:]...), path)
	cmd := exec.CommandContext(ctx, o.player[0], args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%s failed: %w (%s)", o.player[0], err, out)
	}
	return nil
}

// Synthesize writes the narration to a temporary mp3 and returns its path.
func (o *OpenAI) Synthesize(ctx context.Context, text string) (string, error) {
	resp, err := o.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.TTSModel1,
		Input:          text,
		Voice:          o.voice,
		ResponseFormat: openai.SpeechResponseFormatMp3,
		Speed:          o.speed,
	})
	if err != nil {
		return "", fmt.Errorf("openai speech request failed: %w", err)
	}
	defer resp.Close()

	f, err := os.CreateTemp("", "auction-*.mp3")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	n, err := io.Copy(f, resp)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("write speech audio: %w", err)
	}

	o.logger.Debug().Int64("audioBytes", n).Str("voice", string(o.voice)).Msg("OpenAI speech synthesized")
	return f.Name(), nil
}
