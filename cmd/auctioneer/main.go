// Package main is a terminal stand-in for the auction page: it drives one
// session against a running auction API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/bobarin/auctioneer/internal/auction"
	"github.com/bobarin/auctioneer/internal/client"
	"github.com/bobarin/auctioneer/internal/config"
	"github.com/bobarin/auctioneer/internal/logging"
	"github.com/bobarin/auctioneer/internal/models"
	"github.com/bobarin/auctioneer/internal/playback"
	"github.com/bobarin/auctioneer/internal/poller"
	"github.com/bobarin/auctioneer/internal/speech"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	var apiURL string

	rootCmd := &cobra.Command{
		Use:     "auctioneer",
		Short:   "Drive a live auction session against the auction API",
		Version: version,
	}
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", "http://localhost:8080/api", "auction API base URL")

	// start command - run the auctioneer once
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the auction and narrate the lot; Ctrl-C stops it",
		RunE: func(cmd *cobra.Command, args []string) error {
			avatarKey, _ := cmd.Flags().GetString("avatar")
			script, _ := cmd.Flags().GetString("script")
			bids, _ := cmd.Flags().GetInt("bids")
			return runStart(cmd.Context(), apiURL, avatarKey, script, bids)
		},
	}
	startCmd.Flags().String("avatar", "", "avatar key, e.g. custom-avatar/John Wick or presenter/<id> (default SELECTED_AVATAR)")
	startCmd.Flags().String("script", "", "text for the auctioneer (default lot description)")
	startCmd.Flags().Int("bids", 0, "decorative bids to place before starting")

	// avatars command - list vendor presenters
	avatarsCmd := &cobra.Command{
		Use:   "avatars",
		Short: "List available presenters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			avatars, err := client.New(apiURL, nil).Avatars(cmd.Context())
			if err != nil {
				return err
			}
			for _, a := range avatars {
				fmt.Printf("%-24s %-24s %s\n", a.ID, a.Name, a.Specialty)
			}
			return nil
		},
	}

	// upload command - upload a custom avatar image
	uploadCmd := &cobra.Command{
		Use:   "upload [image]",
		Short: "Upload an avatar image (JPG, PNG or WebP, max 10MB)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			resp, err := client.New(apiURL, nil).UploadImage(cmd.Context(), args[0], contentTypeFor(args[0]), f)
			if err != nil {
				return err
			}
			fmt.Printf("Uploaded %s -> %s\n", resp.Filename, resp.URL)
			return nil
		},
	}

	// status command - poll one job until it finishes
	statusCmd := &cobra.Command{
		Use:   "status [video-id]",
		Short: "Poll a video job until it completes or fails",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			custom, _ := cmd.Flags().GetBool("custom")
			mode := models.ModeRegistered
			if custom {
				mode = models.ModeCustom
			}

			cfg, log, err := load()
			if err != nil {
				return err
			}
			p := newPoller(cfg, client.New(apiURL, nil), log)
			out := p.Run(cmd.Context(), args[0], mode, func(e poller.Event) {
				if e.Notice != "" {
					fmt.Println(e.Notice)
				}
			})
			if out.State != poller.StateCompleted {
				return fmt.Errorf("job %s %s: %v", args[0], out.State, out.Err)
			}
			fmt.Println(out.ResultURL)
			return nil
		},
	}
	statusCmd.Flags().Bool("custom", false, "job was created from a custom image")

	rootCmd.AddCommand(startCmd, avatarsCmd, uploadCmd, statusCmd)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func load() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, logging.New(cfg.LogLevel, true), nil
}

func newPoller(cfg *config.Config, c *client.Client, log zerolog.Logger) *poller.Poller {
	p := poller.New(c.Status, log)
	p.Interval = cfg.PollInterval
	p.MaxAttempts = cfg.PollMaxAttempts
	p.Timeout = cfg.PollTimeout
	return p
}

func runStart(ctx context.Context, apiURL, avatarKey, script string, bids int) error {
	cfg, log, err := load()
	if err != nil {
		return err
	}

	roster, err := config.LoadRoster(cfg.AvatarsFile)
	if err != nil {
		return err
	}
	if avatarKey == "" {
		avatarKey = cfg.SelectedAvatar
	}
	avatar, err := roster.Select(avatarKey)
	if err != nil {
		return err
	}

	c := client.New(apiURL, nil)

	opts := speech.Options{Voice: cfg.OpenAIVoice}
	var openAISpeaker speech.Speaker
	if cfg.OpenAIKey != "" {
		openAISpeaker = speech.NewOpenAI(cfg.OpenAIKey, opts, log)
	}
	speaker := speech.First(openAISpeaker, speech.NewCommand(speech.Options{}, log))

	var last string
	orch := playback.New(playback.Config{
		Backend: c,
		Speaker: speaker,
		Player:  playback.NewCommandPlayer(os.Stdout),
		Poller:  newPoller(cfg, c, log),
		Logger:  logging.Component(log, "playback"),
		OnUpdate: func(s playback.Snapshot) {
			if s.Status != "" && s.Status != last {
				fmt.Println(s.Status)
				last = s.Status
			}
		},
	})

	shell := auction.New(auction.DefaultLot(), script, orch, log)
	shell.Select(avatar)
	for i := 0; i < bids; i++ {
		shell.PlaceBid()
	}

	v := shell.View()
	fmt.Printf("Lot %s: %s\nCurrent bid $%d, %d bidders, %s remaining\n",
		v.Lot.Number, v.Lot.Title, v.CurrentBid, v.Bidders, v.TimeRemaining)

	// The session outlives ctx; Ctrl-C stops it explicitly.
	shell.Press(context.WithoutCancel(ctx))

	done := make(chan struct{})
	go func() {
		orch.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		orch.Stop()
		orch.Wait()
		fmt.Println("Auction stopped")
	}

	fmt.Println(shell.View().Hint)
	return nil
}

func contentTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
