package endless

import (
	"context"

	"sgassist/lib/kvstore"
)

// Settings persists the pause state across sessions.
type Settings interface {
	Paused(ctx context.Context) (bool, error)
	SetPaused(ctx context.Context, paused bool) error
}

const pausedKey = "es_paused"

type StoreSettings struct {
	Store kvstore.Store
}

func (s StoreSettings) Paused(ctx context.Context) (bool, error) {
	paused, _, err := kvstore.GetJSON[bool](ctx, s.Store, pausedKey)
	return paused, err
}

func (s StoreSettings) SetPaused(ctx context.Context, paused bool) error {
	return kvstore.SetJSON(ctx, s.Store, pausedKey, paused)
}

type SortOptions struct {
	// Selector picks the cell inside each row holding the sort key, the row
	// itself is used when empty.
	Selector string `json:"selector"`
	// Attribute is read instead of the text when set.
	Attribute  string `json:"attribute"`
	Descending bool   `json:"descending"`
}

type Options struct {
	// Reverse loads discussion pages in descending order, starting from
	// the last page when a discussion is opened on its first page.
	Reverse          bool `json:"reverse"`
	Dividers         bool `json:"dividers"`
	ModifyUrl        bool `json:"modify_url"`
	ContinuousOnLoad bool `json:"continuous_on_load"`
	// Pages caps continuous loads when ContinuousOnLoad is set, at most 10.
	Pages        int          `json:"pages"`
	LastPageLink bool         `json:"last_page_link"`
	AdSelector   string       `json:"ad_selector"`
	Sort         *SortOptions `json:"sort"`
	// Root is the listing a bare "/" stands for.
	Root string `json:"root"`
}

const maxContinuousPages = 10

func (o Options) root() string {
	if o.Root == "" {
		return "giveaways"
	}
	return o.Root
}

func (o Options) pageLimit() int {
	return max(0, min(maxContinuousPages, o.Pages))
}
