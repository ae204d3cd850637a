package mgc

import (
	"context"
	"time"

	"sgassist/lib/scrapers/steamgifts/games"
)

// Prompter is whatever the user answers questions through.
type Prompter interface {
	Confirm(ctx context.Context, message string) (bool, error)
	// Choose returns the index of the picked game or -1 when none was.
	Choose(ctx context.Context, title string, options []games.Game) (int, error)
	// Review shows the giveaways about to be created and asks to go ahead.
	Review(ctx context.Context, rows []SummaryRow) (bool, error)
	// Countdown blocks for d, showing message, unless ctx is done first.
	Countdown(ctx context.Context, message string, d time.Duration) error
}

// Options mirror the creator's toggles.
type Options struct {
	CreateTrain bool `json:"create_train"`
	// RemoveLinks drops the previous or next text on the first and last
	// wagon instead of leaving it unlinked.
	RemoveLinks     bool `json:"remove_links"`
	BumpLast        bool `json:"bump_last"`
	GroupKeys       bool `json:"group_keys"`
	GroupAllKeys    bool `json:"group_all_keys"`
	ReversePosition bool `json:"reverse_position"`
}
