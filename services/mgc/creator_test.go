package mgc

import (
	"context"
	"fmt"
	"net/url"
	"testing"
	"time"

	"sgassist/lib/scrapers/steamgifts/core"
	"sgassist/lib/testutil"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func addGames(site *testutil.Site, names ...string) {
	for i, name := range names {
		site.AddGame(testutil.SiteGame{
			Id:        fmt.Sprint(i + 1),
			Name:      name,
			SteamType: "app",
			SteamId:   fmt.Sprint(100 * (i + 1)),
		})
	}
}

func postedCreations(site *testutil.Site) []testutil.Request {
	var out []testutil.Request
	for _, req := range site.Requests() {
		if req.Method == "POST" && req.Path == "/giveaways/new" {
			out = append(out, req)
		}
	}
	return out
}

func TestCreateAllLinksTrain(t *testing.T) {
	f, ctx, cleanup := setup(t)
	defer cleanup()
	addGames(f.site, "Portal", "Portal 2", "Half-Life")

	opts := Options{CreateTrain: true}
	q := f.queue(t, ctx, opts)
	const desc = "[ESGST-P]Previous[/ESGST-P] | [ESGST-N]Next[/ESGST-N] [ESGST-C] of [/ESGST-C]"
	for i, name := range []string{"Portal", "Portal 2", "Half-Life"} {
		_, err := q.AddOrEdit(ctx, gift(fmt.Sprint(i+1), name, desc), uuid.Nil)
		require.NoError(t, err)
	}

	creator := NewCreator(f.client, q, f.form(t, ctx), f.prompt, fixedClock, opts)
	result, err := creator.CreateAll(ctx)
	require.NoError(t, err)
	require.Empty(t, result.Rejected)
	require.Len(t, result.Created, 3)
	require.Len(t, f.prompt.reviewed, 1)
	require.Len(t, f.prompt.reviewed[0], 3)

	urls := make([]string, len(result.Created))
	for i, created := range result.Created {
		urls[i] = created.Url
		require.Contains(t, created.Html, "featured__heading")
	}
	require.Equal(t, "Portal", result.Created[0].Game)

	var descriptions []string
	for _, g := range f.site.Giveaways() {
		descriptions = append(descriptions, g.Description)
	}
	want := []string{
		fmt.Sprintf("Previous | [Next](%s) 1 of 3", urls[1]),
		fmt.Sprintf("[Previous](%s) | [Next](%s) 2 of 3", urls[0], urls[2]),
		fmt.Sprintf("[Previous](%s) | Next 3 of 3", urls[1]),
	}
	if diff := cmp.Diff(want, descriptions); diff != "" {
		t.Fatalf("descriptions (-want +got):\n%s", diff)
	}

	// every entry was created, so the queue is gone while the results stay
	reloaded := f.queue(t, ctx, opts)
	require.Empty(t, reloaded.Entries())
	require.Equal(t, result.Created, reloaded.Created())
}

func TestCreateAllWaitsOutDuplicates(t *testing.T) {
	f, ctx, cleanup := setup(t)
	defer cleanup()
	addGames(f.site, "Portal")
	f.site.FailWithDuplicate(1)

	q := f.queue(t, ctx, Options{})
	_, err := q.AddOrEdit(ctx, gift("1", "Portal", "Enjoy"), uuid.Nil)
	require.NoError(t, err)

	result, err := NewCreator(f.client, q, f.form(t, ctx), f.prompt, fixedClock, Options{}).CreateAll(ctx)
	require.NoError(t, err)
	require.Len(t, result.Created, 1)
	require.Equal(t, []time.Duration{DuplicateWait}, f.prompt.countdowns)

	posted := postedCreations(f.site)
	require.Len(t, posted, 2)
	require.Equal(t, posted[0].Form, posted[1].Form)
}

func TestDuplicateGuardAcrossLines(t *testing.T) {
	require.True(t, duplicateGuard.MatchString("Error. You already posted an identical\n\t\tgiveaway within the past 2 minutes. To prevent double posts, it's been blocked."))
	require.False(t, duplicateGuard.MatchString("You already posted an identical giveaway yesterday."))
}

// lostRedirect drops the url a creation post ended up at.
type lostRedirect struct {
	*core.Client
}

func (s lostRedirect) PostForm(ctx context.Context, path string, form url.Values) (core.Page, error) {
	page, err := s.Client.PostForm(ctx, path, form)
	page.FinalUrl = nil
	return page, err
}

func TestCreateAllNeedsFinalUrl(t *testing.T) {
	f, ctx, cleanup := setup(t)
	defer cleanup()
	addGames(f.site, "Portal")

	q := f.queue(t, ctx, Options{})
	entry, err := q.AddOrEdit(ctx, gift("1", "Portal", ""), uuid.Nil)
	require.NoError(t, err)

	result, err := NewCreator(lostRedirect{f.client}, q, f.form(t, ctx), f.prompt, fixedClock, Options{}).CreateAll(ctx)
	require.NoError(t, err)
	require.Empty(t, result.Created)
	require.Len(t, result.Rejected, 1)

	entry, ok := f.queue(t, ctx, Options{}).Get(entry.Id)
	require.True(t, ok)
	require.Equal(t, Failed, entry.Status)
}

func TestCreateAllRecordsRejections(t *testing.T) {
	f, ctx, cleanup := setup(t)
	defer cleanup()
	addGames(f.site, "Portal", "Portal 2")
	f.site.RejectGame("1", "You do not have permission to create a giveaway for this game.")

	q := f.queue(t, ctx, Options{})
	rejected, err := q.AddOrEdit(ctx, gift("1", "Portal", ""), uuid.Nil)
	require.NoError(t, err)
	accepted, err := q.AddOrEdit(ctx, gift("2", "Portal 2", ""), uuid.Nil)
	require.NoError(t, err)

	creator := NewCreator(f.client, q, f.form(t, ctx), f.prompt, fixedClock, Options{})
	result, err := creator.CreateAll(ctx)
	require.NoError(t, err)
	require.Len(t, result.Created, 1)
	require.Equal(t, accepted.Id, result.Created[0].EntryId)
	require.Len(t, result.Rejected, 1)
	require.Equal(t, []string{"You do not have permission to create a giveaway for this game."}, result.Rejected[0].Errors)

	reloaded := f.queue(t, ctx, Options{})
	entry, ok := reloaded.Get(rejected.Id)
	require.True(t, ok)
	require.Equal(t, Failed, entry.Status)
	require.Contains(t, entry.Details(), "Errors:\nYou do not have permission")
	entry, ok = reloaded.Get(accepted.Id)
	require.True(t, ok)
	require.Equal(t, Created, entry.Status)

	// a second run only retries what was not created
	_, err = creator.CreateAll(ctx)
	require.NoError(t, err)
	require.Len(t, postedCreations(f.site), 3)
	require.Len(t, f.site.Giveaways(), 1)
}

func TestCreateAllCorrectsPastStart(t *testing.T) {
	f, ctx, cleanup := setup(t)
	defer cleanup()
	addGames(f.site, "Portal")

	now := time.Date(2030, time.January, 2, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	q := f.queue(t, ctx, Options{})
	_, err := q.AddOrEdit(ctx, gift("1", "Portal", ""), uuid.Nil)
	require.NoError(t, err)
	future := gift("1", "Portal", "")
	future.StartTime = "Jan 3, 2030 12:00 am"
	_, err = q.AddOrEdit(ctx, future, uuid.Nil)
	require.NoError(t, err)

	_, err = NewCreator(f.client, q, f.form(t, ctx), f.prompt, clock, Options{}).CreateAll(ctx)
	require.NoError(t, err)

	created := f.site.Giveaways()
	require.Len(t, created, 2)
	require.Equal(t, "Jan 2, 2030 12:00 am", created[0].Form.Get("start_time"))
	require.Equal(t, "Jan 3, 2030 12:00 am", created[1].Form.Get("start_time"))
	require.Equal(t, "0", created[0].Form.Get("timezone"))
}

func TestCreateAllNeedsApproval(t *testing.T) {
	f, ctx, cleanup := setup(t)
	defer cleanup()
	addGames(f.site, "Portal")

	q := f.queue(t, ctx, Options{})
	creator := NewCreator(f.client, q, f.form(t, ctx), f.prompt, fixedClock, Options{})
	_, err := creator.CreateAll(ctx)
	require.ErrorIs(t, err, ErrEmptyQueue)
	require.Empty(t, f.prompt.reviewed)

	_, err = q.AddOrEdit(ctx, gift("1", "Portal", ""), uuid.Nil)
	require.NoError(t, err)
	f.prompt.review = false
	_, err = creator.CreateAll(ctx)
	require.ErrorIs(t, err, ErrCancelled)
	require.Empty(t, postedCreations(f.site))
	require.Equal(t, 1, f.queue(t, ctx, Options{}).Len())
}
