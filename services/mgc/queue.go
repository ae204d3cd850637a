package mgc

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"regexp"
	"slices"

	"sgassist/lib/kvstore"

	"github.com/google/uuid"
)

const (
	cacheKey      = "mgcCache"
	createdKey    = "mgcCreated"
	discussionKey = "mgcDiscussion"
)

var (
	linkPlaceholder = regexp.MustCompile(`\[ESGST-P\]|\[ESGST-N\]`)
	bumpPlaceholder = regexp.MustCompile(`\[ESGST-B\]`)
)

// Queue is the ordered list of giveaways waiting to be created. Every
// change is written through to the store so a queue survives restarts.
type Queue struct {
	store kvstore.Store
	opts  Options

	entries    []Entry
	created    []CreatedGiveaway
	discussion string
}

func LoadQueue(ctx context.Context, store kvstore.Store, opts Options) (*Queue, error) {
	ctx, span := tracer.Start(ctx, "LoadQueue")
	defer span.End()

	entries, _, err := kvstore.GetJSON[[]Entry](ctx, store, cacheKey)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", cacheKey, err)
	}
	created, _, err := kvstore.GetJSON[[]CreatedGiveaway](ctx, store, createdKey)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", createdKey, err)
	}
	discussion, _, err := store.Get(ctx, discussionKey)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", discussionKey, err)
	}
	return &Queue{
		store:      store,
		opts:       opts,
		entries:    entries,
		created:    created,
		discussion: discussion,
	}, nil
}

func (q *Queue) Entries() []Entry {
	return slices.Clone(q.entries)
}

func (q *Queue) Len() int {
	return len(q.entries)
}

func (q *Queue) index(id uuid.UUID) int {
	return slices.IndexFunc(q.entries, func(e Entry) bool {
		return e.Id == id
	})
}

func (q *Queue) Get(id uuid.UUID) (Entry, bool) {
	i := q.index(id)
	if i < 0 {
		return Entry{}, false
	}
	return q.entries[i], true
}

// Created lists the giveaways the last creation run made.
func (q *Queue) Created() []CreatedGiveaway {
	return slices.Clone(q.created)
}

// Discussion is the code of the attached discussion, empty when none is.
func (q *Queue) Discussion() string {
	return q.discussion
}

func (q *Queue) AttachDiscussion(ctx context.Context, code string) error {
	q.discussion = code
	return q.store.Set(ctx, discussionKey, code)
}

func (q *Queue) DetachDiscussion(ctx context.Context) error {
	q.discussion = ""
	return q.store.Delete(ctx, discussionKey)
}

func (q *Queue) validate(v Values) error {
	switch {
	case v.GameId == "":
		return errMissingDetails
	case v.GameType == Gift && v.Copies <= 0:
		return errMissingDetails
	case v.GameType == Key && len(v.Keys) == 0:
		return errMissingDetails
	case v.GameType != Gift && v.GameType != Key:
		return errMissingDetails
	}
	return q.validateDescription(v.Description)
}

func (q *Queue) validateDescription(desc string) error {
	if q.opts.CreateTrain && !linkPlaceholder.MatchString(desc) {
		return errMissingLinks
	}
	if q.discussion != "" && !bumpPlaceholder.MatchString(desc) {
		return errMissingBump
	}
	return nil
}

// AddOrEdit queues v, or replaces the entry with id edit when edit is
// not uuid.Nil. Nothing changes when v is not valid.
func (q *Queue) AddOrEdit(ctx context.Context, v Values, edit uuid.UUID) (Entry, error) {
	ctx, span := tracer.Start(ctx, "AddOrEdit")
	defer span.End()

	v = v.normalize()
	err := q.validate(v)
	if err != nil {
		return Entry{}, err
	}

	entry := Entry{Values: v.substitute()}
	if edit == uuid.Nil {
		entry.Id = uuid.New()
		q.entries = append(q.entries, entry)
	} else {
		i := q.index(edit)
		if i < 0 {
			return Entry{}, fmt.Errorf("no queued giveaway %s", edit)
		}
		entry.Id = edit
		q.entries[i] = entry
	}
	slog.DebugContext(ctx, "queued giveaway", "id", entry.Id, "game", v.GameName, "position", q.index(entry.Id)+1)
	return entry, q.sync(ctx)
}

// Reorder moves the entry at from so it ends up at position to.
func (q *Queue) Reorder(ctx context.Context, from, to int) error {
	if from < 0 || from >= len(q.entries) || to < 0 || to >= len(q.entries) {
		return fmt.Errorf("position out of range")
	}
	entry := q.entries[from]
	q.entries = slices.Delete(q.entries, from, from+1)
	q.entries = slices.Insert(q.entries, to, entry)
	return q.sync(ctx)
}

func (q *Queue) Remove(ctx context.Context, prompter Prompter, id uuid.UUID) error {
	i := q.index(id)
	if i < 0 {
		return fmt.Errorf("no queued giveaway %s", id)
	}
	ok, err := prompter.Confirm(ctx, "Are you sure you want to remove this giveaway?")
	if err != nil {
		return err
	}
	if !ok {
		return ErrCancelled
	}
	q.entries = slices.Delete(q.entries, i, i+1)
	return q.sync(ctx)
}

// Empty clears the queue and what the last creation run left behind.
func (q *Queue) Empty(ctx context.Context, prompter Prompter) error {
	ok, err := prompter.Confirm(ctx, "Are you sure you want to empty the creator?")
	if err != nil {
		return err
	}
	if !ok {
		return ErrCancelled
	}
	q.entries = nil
	q.created = nil
	return q.store.Delete(ctx, cacheKey, createdKey)
}

func (q *Queue) Shuffle(ctx context.Context) error {
	if len(q.entries) == 0 {
		return ErrEmptyQueue
	}
	for i := len(q.entries) - 1; i > 0; i-- {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return err
		}
		j := int(n.Int64())
		q.entries[i], q.entries[j] = q.entries[j], q.entries[i]
	}
	return q.sync(ctx)
}

func (q *Queue) sync(ctx context.Context) error {
	err := kvstore.SetJSON(ctx, q.store, cacheKey, q.entries)
	if err != nil {
		return fmt.Errorf("write %s: %w", cacheKey, err)
	}
	return nil
}

func (q *Queue) setStatus(id uuid.UUID, status Status, errs []string) {
	i := q.index(id)
	if i < 0 {
		return
	}
	q.entries[i].Status = status
	q.entries[i].Errors = errs
}

func (q *Queue) setCreated(ctx context.Context, created []CreatedGiveaway) error {
	q.created = created
	return kvstore.SetJSON(ctx, q.store, createdKey, created)
}

// finish drops the cache once every entry has been created, otherwise the
// statuses are kept so the next run skips what was created.
func (q *Queue) finish(ctx context.Context) error {
	for _, e := range q.entries {
		if !e.Done() {
			return q.sync(ctx)
		}
	}
	return q.store.Delete(ctx, cacheKey)
}
