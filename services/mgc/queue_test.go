package mgc

import (
	"context"
	"strings"
	"testing"
	"time"

	"sgassist/lib/kvstore"
	"sgassist/lib/scrapers/steamgifts/core"
	"sgassist/lib/scrapers/steamgifts/games"
	"sgassist/lib/testutil"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fakePrompter struct {
	confirm bool
	choice  int
	review  bool

	confirmed  []string
	choices    [][]games.Game
	reviewed   [][]SummaryRow
	countdowns []time.Duration
}

func newPrompter() *fakePrompter {
	return &fakePrompter{confirm: true, review: true}
}

func (p *fakePrompter) Confirm(ctx context.Context, message string) (bool, error) {
	p.confirmed = append(p.confirmed, message)
	return p.confirm, nil
}

func (p *fakePrompter) Choose(ctx context.Context, title string, options []games.Game) (int, error) {
	p.choices = append(p.choices, options)
	return p.choice, nil
}

func (p *fakePrompter) Review(ctx context.Context, rows []SummaryRow) (bool, error) {
	p.reviewed = append(p.reviewed, rows)
	return p.review, nil
}

func (p *fakePrompter) Countdown(ctx context.Context, message string, d time.Duration) error {
	p.countdowns = append(p.countdowns, d)
	return ctx.Err()
}

var testNow = time.Date(2029, time.December, 31, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time {
	return testNow
}

type fixture struct {
	site   *testutil.Site
	store  kvstore.Store
	client *core.Client
	prompt *fakePrompter
}

func setup(t *testing.T) (fixture, context.Context, func()) {
	res, cleanup := testutil.SetupService(t, testutil.ServiceParams{Name: "mgc"})
	client, err := core.NewClient(core.ClientOptions{
		BaseUrl:                 res.Site.URL(),
		DisableCloudflareBypass: true,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
	return fixture{
			site:   res.Site,
			store:  res.Store,
			client: client,
			prompt: newPrompter(),
		}, ctx, func() {
			cancel()
			cleanup()
		}
}

func (f fixture) queue(t *testing.T, ctx context.Context, opts Options) *Queue {
	q, err := LoadQueue(ctx, f.store, opts)
	require.NoError(t, err)
	return q
}

func (f fixture) form(t *testing.T, ctx context.Context) Form {
	form, err := LoadForm(ctx, f.client, fixedClock)
	require.NoError(t, err)
	return form
}

func gift(gameId, name, description string) Values {
	return Values{
		GameId:      gameId,
		GameName:    name,
		GameType:    Gift,
		Copies:      1,
		StartTime:   "Jan 1, 2030 12:00 am",
		EndTime:     "Jan 8, 2030 12:00 am",
		WhoCanEnter: Everyone,
		Description: description,
	}
}

func ids(entries []Entry) []uuid.UUID {
	out := make([]uuid.UUID, len(entries))
	for i, e := range entries {
		out[i] = e.Id
	}
	return out
}

func TestQueuePersists(t *testing.T) {
	f, ctx, cleanup := setup(t)
	defer cleanup()

	q := f.queue(t, ctx, Options{})
	_, err := q.AddOrEdit(ctx, gift("1", "Portal", "Have fun"), uuid.Nil)
	require.NoError(t, err)

	keys := gift("2", "Half-Life 2", "[ESGST-NAME] for level [esgst-level] ([ESGST-STEAM-URL])")
	keys.GameType = Key
	keys.Keys = []string{"AAAAA-BBBBB-CCCCC", " ", "DDDDD-EEEEE-FFFFF"}
	keys.Level = 3
	keys.Steam = &games.Steam{Type: games.SteamApp, Id: "220"}
	second, err := q.AddOrEdit(ctx, keys, uuid.Nil)
	require.NoError(t, err)

	require.Equal(t, []string{"AAAAA-BBBBB-CCCCC", "DDDDD-EEEEE-FFFFF"}, second.Values.Keys)
	require.Equal(t, 0, second.Values.Copies)
	require.Equal(t, "Half-Life 2 for level 3 (http://store.steampowered.com/app/220)", second.Values.Description)

	reloaded := f.queue(t, ctx, Options{})
	if diff := cmp.Diff(q.Entries(), reloaded.Entries()); diff != "" {
		t.Fatalf("reloaded queue differs (-want +got):\n%s", diff)
	}

	edited := gift("3", "Portal 2", "Edited")
	_, err = q.AddOrEdit(ctx, edited, second.Id)
	require.NoError(t, err)
	entry, ok := q.Get(second.Id)
	require.True(t, ok)
	require.Equal(t, "Portal 2", entry.Values.GameName)
	require.Equal(t, 1, q.index(second.Id))
	require.Equal(t, 2, q.Len())

	_, err = q.AddOrEdit(ctx, edited, uuid.New())
	require.Error(t, err)
}

func TestQueueValidation(t *testing.T) {
	f, ctx, cleanup := setup(t)
	defer cleanup()

	q := f.queue(t, ctx, Options{})

	_, err := q.AddOrEdit(ctx, gift("", "Portal", ""), uuid.Nil)
	require.ErrorIs(t, err, errMissingDetails)

	noCopies := gift("1", "Portal", "")
	noCopies.Copies = 0
	_, err = q.AddOrEdit(ctx, noCopies, uuid.Nil)
	require.ErrorIs(t, err, errMissingDetails)

	noKeys := gift("1", "Portal", "")
	noKeys.GameType = Key
	noKeys.Keys = []string{"", " "}
	_, err = q.AddOrEdit(ctx, noKeys, uuid.Nil)
	require.ErrorIs(t, err, errMissingDetails)

	train := f.queue(t, ctx, Options{CreateTrain: true})
	_, err = train.AddOrEdit(ctx, gift("1", "Portal", "No links"), uuid.Nil)
	require.ErrorIs(t, err, errMissingLinks)
	_, err = train.AddOrEdit(ctx, gift("1", "Portal", "[ESGST-N]Next[/ESGST-N]"), uuid.Nil)
	require.NoError(t, err)

	require.NoError(t, q.AttachDiscussion(ctx, "abcde"))
	_, err = q.AddOrEdit(ctx, gift("1", "Portal", "No bump"), uuid.Nil)
	require.ErrorIs(t, err, errMissingBump)

	var validation *ValidationError
	require.ErrorAs(t, err, &validation)
	require.Equal(t, "The bump link format is missing from the description.", validation.Message)

	require.Equal(t, 0, q.Len())
	reloaded := f.queue(t, ctx, Options{})
	require.Len(t, reloaded.Entries(), 1)
	require.Equal(t, "abcde", reloaded.Discussion())
}

func TestReorderRemoveEmpty(t *testing.T) {
	f, ctx, cleanup := setup(t)
	defer cleanup()

	q := f.queue(t, ctx, Options{})
	var added []Entry
	for _, name := range []string{"A", "B", "C"} {
		entry, err := q.AddOrEdit(ctx, gift(name, name, ""), uuid.Nil)
		require.NoError(t, err)
		added = append(added, entry)
	}

	require.NoError(t, q.Reorder(ctx, 0, 2))
	require.Equal(t, []uuid.UUID{added[1].Id, added[2].Id, added[0].Id}, ids(q.Entries()))
	require.Error(t, q.Reorder(ctx, 0, 3))

	f.prompt.confirm = false
	require.ErrorIs(t, q.Remove(ctx, f.prompt, added[1].Id), ErrCancelled)
	require.Equal(t, 3, q.Len())

	f.prompt.confirm = true
	require.NoError(t, q.Remove(ctx, f.prompt, added[1].Id))
	require.Equal(t, []uuid.UUID{added[2].Id, added[0].Id}, ids(f.queue(t, ctx, Options{}).Entries()))

	require.NoError(t, q.Empty(ctx, f.prompt))
	require.Equal(t, 0, q.Len())
	require.Empty(t, f.queue(t, ctx, Options{}).Entries())
	require.Len(t, f.prompt.confirmed, 3)
}

func TestShuffle(t *testing.T) {
	f, ctx, cleanup := setup(t)
	defer cleanup()

	q := f.queue(t, ctx, Options{})
	require.ErrorIs(t, q.Shuffle(ctx), ErrEmptyQueue)

	for i := 0; i < 10; i++ {
		_, err := q.AddOrEdit(ctx, gift("1", "Portal", ""), uuid.Nil)
		require.NoError(t, err)
	}
	before := ids(q.Entries())
	require.NoError(t, q.Shuffle(ctx))
	require.ElementsMatch(t, before, ids(q.Entries()))
	require.Equal(t, ids(q.Entries()), ids(f.queue(t, ctx, Options{}).Entries()))
}

func TestPayload(t *testing.T) {
	v := gift("7", "Portal", "Enjoy")
	v.GameType = Key
	v.Keys = []string{"AAAAA-BBBBB-CCCCC", "DDDDD-EEEEE-FFFFF"}
	v.Region = true
	v.Countries = []string{"1", "2"}
	v.WhoCanEnter = Groups
	v.Whitelist = true
	v.Groups = []string{"g1", "g2"}
	v.Level = 4
	v = v.normalize()

	payload := v.Payload("token", -120)
	require.Equal(t, "token", payload.Get("xsrf_token"))
	require.Equal(t, "3", payload.Get("next_step"))
	require.Equal(t, "key", payload.Get("type"))
	require.Equal(t, "1", payload.Get("copies"))
	require.Equal(t, "AAAAA-BBBBB-CCCCC\nDDDDD-EEEEE-FFFFF", payload.Get("key_string"))
	require.Equal(t, "-120", payload.Get("timezone"))
	require.Equal(t, "1", payload.Get("region_restricted"))
	require.Equal(t, "1 2", payload.Get("country_item_string"))
	require.Equal(t, "groups", payload.Get("who_can_enter"))
	require.Equal(t, "1", payload.Get("whitelist"))
	require.Equal(t, "g1 g2", payload.Get("group_item_string"))
	require.Equal(t, "4", payload.Get("contributor_level"))
}

func TestDetails(t *testing.T) {
	v := gift("7", "Portal", "Enjoy")
	v.GameType = Key
	v.Keys = []string{"AAAAA-BBBBB-CCCCC", "DDDDD-EEEEE-FFFFF"}
	v.Region = true
	entry := Entry{Values: v, Errors: []string{"You do not own this game."}}

	require.Equal(t, "Errors:\nYou do not own this game.\n\n"+
		"Portal\nKeys\nAAAAA-BBBBB-CCCCC\nDDDDD-EEEEE-FFFFF\n\n"+
		"Jan 1, 2030 12:00 am - Jan 8, 2030 12:00 am\n"+
		"Region Restricted\nPublic\nLevel 0\n\nEnjoy", entry.Details())
}

func TestSummary(t *testing.T) {
	f, ctx, cleanup := setup(t)
	defer cleanup()

	form := f.form(t, ctx)
	v := gift("7", "Portal", strings.Repeat("é", 120))
	v.Copies = 2
	v.Region = true
	v.Countries = []string{"1", "2"}
	v.WhoCanEnter = Groups
	v.Whitelist = true
	v.Groups = []string{"g1"}
	v.Steam = &games.Steam{Type: games.SteamSub, Id: "42"}

	rows := summarize([]Entry{{Values: v}}, form)
	require.Len(t, rows, 1)
	row := rows[0]
	require.Equal(t, 1, row.No)
	require.Equal(t, "https://store.steampowered.com/sub/42", row.StoreUrl)
	require.Equal(t, "2 Copies", row.Amount)
	require.Equal(t, "Yes (United States, Germany)", row.Region)
	require.Equal(t, "Groups (Whitelist, Train Conductors)", row.WhoCanEnter)
	require.Equal(t, strings.Repeat("é", 100)+"...", row.Description)
}
