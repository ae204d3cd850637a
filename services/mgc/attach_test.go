package mgc

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestAttachNewAndFinish(t *testing.T) {
	f, ctx, cleanup := setup(t)
	defer cleanup()
	addGames(f.site, "Portal", "Portal 2")

	opts := Options{CreateTrain: true, BumpLast: true}
	q := f.queue(t, ctx, opts)
	attacher := NewAttacher(f.client, q)

	code, err := attacher.AttachNew(ctx, "Portal Train", "### [ESGST-T]Choo choo![/ESGST-T]")
	require.NoError(t, err)
	require.Equal(t, code, q.Discussion())
	discussion, ok := f.site.Discussion(code)
	require.True(t, ok)
	require.True(t, discussion.Closed)
	step, _, err := attacher.Pending(ctx)
	require.NoError(t, err)
	require.Zero(t, step)

	const desc = "[ESGST-P]Previous[/ESGST-P] | [ESGST-N]Next[/ESGST-N] [ESGST-B]Bump[/ESGST-B]"
	for i, name := range []string{"Portal", "Portal 2"} {
		_, err = q.AddOrEdit(ctx, gift(fmt.Sprint(i+1), name, desc), uuid.Nil)
		require.NoError(t, err)
	}
	result, err := NewCreator(f.client, q, f.form(t, ctx), f.prompt, fixedClock, opts).CreateAll(ctx)
	require.NoError(t, err)
	require.Len(t, result.Created, 2)
	first, second := result.Created[0].Url, result.Created[1].Url

	created := f.site.Giveaways()
	require.Equal(t, fmt.Sprintf("Previous | [Next](%s)", second), created[0].Description)
	require.Equal(t, fmt.Sprintf("[Previous](%s) | Next [Bump](/discussion/%s/)", first, code), created[1].Description)

	discussion, ok = f.site.Discussion(code)
	require.True(t, ok)
	require.False(t, discussion.Closed)
	require.Equal(t, "Portal Train", discussion.Title)
	require.Equal(t, fmt.Sprintf("### [Choo choo!](%s)", first), discussion.Description)

	step, _, err = attacher.Pending(ctx)
	require.NoError(t, err)
	require.Zero(t, step)
	require.Empty(t, q.Discussion())
}

func TestAttachResumes(t *testing.T) {
	f, ctx, cleanup := setup(t)
	defer cleanup()

	d := f.site.AddDiscussion("Resumed", "[ESGST-T]Here[/ESGST-T]")
	q := f.queue(t, ctx, Options{})
	attacher := NewAttacher(f.client, q)

	// interrupted right after the discussion was created
	require.NoError(t, f.store.Set(ctx, attachStepKey(2), d.Code))
	step, value, err := attacher.Pending(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, step)
	require.Equal(t, d.Code, value)

	require.NoError(t, attacher.Resume(ctx))
	closed, _ := f.site.Discussion(d.Code)
	require.True(t, closed.Closed)
	require.Equal(t, d.Code, f.queue(t, ctx, Options{}).Discussion())

	require.NoError(t, attacher.Finish(ctx, "/giveaway/aaaaa/"))
	reopened, _ := f.site.Discussion(d.Code)
	require.False(t, reopened.Closed)
	require.Equal(t, "[Here](/giveaway/aaaaa/)", reopened.Description)
	require.Equal(t, 1, f.site.Count("POST", "/discussions/edit"))

	for i := 1; i <= attachSteps; i++ {
		_, ok, err := f.store.Get(ctx, attachStepKey(i))
		require.NoError(t, err)
		require.False(t, ok, "step %d left behind", i)
	}
}

func TestAttachExisting(t *testing.T) {
	f, ctx, cleanup := setup(t)
	defer cleanup()

	d := f.site.AddDiscussion("Existing", "")
	q := f.queue(t, ctx, Options{})
	attacher := NewAttacher(f.client, q)

	code, err := attacher.AttachExisting(ctx, fmt.Sprintf("%s/discussion/%s/existing", f.site.URL(), d.Code))
	require.NoError(t, err)
	require.Equal(t, d.Code, code)
	require.Equal(t, d.Code, q.Discussion())

	require.NoError(t, q.DetachDiscussion(ctx))
	code, err = attacher.AttachExisting(ctx, d.Code)
	require.NoError(t, err)
	require.Equal(t, d.Code, code)

	_, err = attacher.AttachExisting(ctx, "not a discussion")
	require.Error(t, err)

	require.NoError(t, q.DetachDiscussion(ctx))
	_, err = attacher.AttachExisting(ctx, "zzzz9")
	require.Error(t, err)
	require.Empty(t, q.Discussion())

	// nothing to link without an attached discussion
	require.NoError(t, attacher.Finish(ctx, "/giveaway/aaaaa/"))
	require.Zero(t, f.site.Count("POST", "/discussions/edit"))
}
