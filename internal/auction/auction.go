// Package auction is the presentation shell around one live lot: the lot
// card, the bid counter and the auctioneer avatar with its start button.
package auction

import (
	"context"
	"sync"

	"github.com/bobarin/auctioneer/internal/models"
	"github.com/bobarin/auctioneer/internal/playback"
	"github.com/rs/zerolog"
)

// BidIncrement is added to the current bid on every bid.
const BidIncrement = 250

type Lot struct {
	Number         string
	Title          string
	Description    string
	StartingBid    int
	AskingPrice    int
	EstimatedValue string
	Condition      string
	Era            string
	ImageURL       string
}

// DefaultLot is the demo lot.
func DefaultLot() Lot {
	return Lot{
		Number:         "59557",
		Title:          "Pristine 1911 Pistol",
		Description:    DefaultScript,
		StartingBid:    5000,
		AskingPrice:    5500,
		EstimatedValue: "5,000 - 7,500",
		Condition:      "Excellent",
		Era:            "WWI Era",
		ImageURL:       "https://images.unsplash.com/photo-1595590424283-b8f17842773f?w=400&h=300&fit=crop",
	}
}

// DefaultScript is what the auctioneer reads when the auction starts.
const DefaultScript = "Welcome to tonight's exclusive firearms auction. Up first is a pristine 1911 pistol, known for its historical value and expert craftsmanship. Bidding begins at $5,000."

// Narrator is the playback side of the shell.
type Narrator interface {
	Toggle(ctx context.Context, avatar *models.AvatarDescriptor, script string)
	Snapshot() playback.Snapshot
}

// View is everything the page renders at one instant.
type View struct {
	Lot           Lot
	CurrentBid    int
	Bidders       int
	TimeRemaining string
	Avatar        *models.AvatarDescriptor
	Button        string
	Hint          string
	Playback      playback.Snapshot
}

type Shell struct {
	lot      Lot
	script   string
	narrator Narrator
	logger   zerolog.Logger

	mu         sync.Mutex
	avatar     *models.AvatarDescriptor
	currentBid int
	bidders    int
}

func New(lot Lot, script string, narrator Narrator, log zerolog.Logger) *Shell {
	if script == "" {
		script = DefaultScript
	}
	return &Shell{
		lot:        lot,
		script:     script,
		narrator:   narrator,
		logger:     log,
		currentBid: lot.StartingBid,
		bidders:    47,
	}
}

// Select sets the auctioneer avatar.
func (s *Shell) Select(avatar models.AvatarDescriptor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.avatar = &avatar
	s.logger.Info().Str("avatar", avatar.Name).Str("mode", string(avatar.Mode())).Msg("Auctioneer selected")
}

// Press is the start/stop button.
func (s *Shell) Press(ctx context.Context) {
	s.mu.Lock()
	avatar := s.avatar
	s.mu.Unlock()

	s.narrator.Toggle(ctx, avatar, s.script)
}

// PlaceBid raises the bid by BidIncrement and counts one more bidder.
func (s *Shell) PlaceBid() (bid, bidders int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentBid += BidIncrement
	s.bidders++
	return s.currentBid, s.bidders
}

func (s *Shell) View() View {
	snap := s.narrator.Snapshot()

	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		Lot:           s.lot,
		CurrentBid:    s.currentBid,
		Bidders:       s.bidders,
		TimeRemaining: "5:24",
		Avatar:        s.avatar,
		Playback:      snap,
	}

	switch snap.Phase {
	case playback.PhaseGenerating:
		v.Button, v.Hint = "Starting...", "Preparing auctioneer..."
	case playback.PhaseVideo, playback.PhaseSpeaking:
		v.Button, v.Hint = "Stop Auction", "Auction in progress..."
	default:
		v.Button, v.Hint = "Start Auction", "Ready to start auction"
	}
	return v
}
