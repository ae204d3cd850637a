package endless

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"sgassist/lib/kvstore"
	"sgassist/lib/scrapers/steamgifts/core"
	"sgassist/lib/scrapers/steamgifts/pagination"
	"sgassist/lib/testutil"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	loaded    []int
	locations []string
}

type fixture struct {
	engine *Engine
	site   *testutil.Site
	store  kvstore.Store
	rec    *recorder
}

func setup(t *testing.T, listingPath string, listing testutil.Listing, location string, opts Options) (fixture, context.Context, func()) {
	res, cleanup := testutil.SetupService(t, testutil.ServiceParams{Name: "endless"})
	res.Site.SetListing(listingPath, listing)

	client, err := core.NewClient(core.ClientOptions{
		BaseUrl:                 res.Site.URL(),
		DisableCloudflareBypass: true,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
	page, err := client.Get(ctx, location)
	require.NoError(t, err)

	rec := &recorder{}
	engine := New(client, page, StoreSettings{Store: res.Store}, opts, Hooks{
		PageLoaded: func(page, rows int) {
			rec.loaded = append(rec.loaded, page)
		},
		NavigationChanged: func(page int, location string) {
			rec.locations = append(rec.locations, location)
		},
	})
	return fixture{engine: engine, site: res.Site, store: res.Store, rec: rec}, ctx, func() {
		cancel()
		cleanup()
	}
}

func (f fixture) results(t *testing.T) pagination.Results {
	var results pagination.Results
	f.engine.View(func(doc *goquery.Document) {
		pag, err := pagination.Find(doc)
		require.NoError(t, err)
		results, err = pagination.ReadResults(pag)
		require.NoError(t, err)
	})
	return results
}

func (f fixture) rowsOf(page int) []string {
	var rows []string
	f.engine.View(func(doc *goquery.Document) {
		doc.Find("." + pageClass(page)).Each(func(_ int, row *goquery.Selection) {
			rows = append(rows, strings.TrimSpace(row.Find(".table__column__heading").Text()))
		})
	})
	return rows
}

func TestForwardLoadsUntilLastPage(t *testing.T) {
	f, ctx, cleanup := setup(t, "/giveaways", testutil.Listing{Total: 125}, "/giveaways", Options{})
	defer cleanup()
	require.NoError(t, f.engine.Start(ctx))

	state := f.engine.State()
	require.Equal(t, 2, state.NextPage)
	require.False(t, state.Ended)

	var nextPages []int
	for !f.engine.State().Ended {
		nextPages = append(nextPages, f.engine.State().NextPage)
		require.NoError(t, f.engine.Step(ctx))
	}
	require.Equal(t, []int{2, 3, 4, 5}, nextPages)
	require.Equal(t, []int{2, 3, 4, 5}, f.rec.loaded)
	require.Equal(t, []int{1, 2, 3, 4, 5}, f.engine.State().Pages)
	require.Equal(t, pagination.Results{From: 1, To: 125, Total: 125}, f.results(t))
	require.Len(t, f.rowsOf(5), 25)

	require.ErrorIs(t, f.engine.Step(ctx), ErrEnded)
}

func TestBoundaryAutoLoads(t *testing.T) {
	f, ctx, cleanup := setup(t, "/giveaways", testutil.Listing{Total: 60}, "/", Options{})
	defer cleanup()
	require.NoError(t, f.engine.Start(ctx))
	require.Equal(t, "/giveaways/search?page=", f.engine.SearchUrl())

	f.site.ResetRequests()
	// the first report only says where the boundary was
	require.NoError(t, f.engine.Observe(ctx, Entry{Kind: Boundary, Intersecting: false}))
	require.Empty(t, f.site.Requests())

	// the boundary stays in view so loading goes on to the last page
	require.NoError(t, f.engine.Observe(ctx, Entry{Kind: Boundary, Intersecting: true}))
	require.Equal(t, []int{2, 3}, f.rec.loaded)
	require.True(t, f.engine.State().Ended)
	require.Equal(t, pagination.Results{From: 1, To: 60, Total: 60}, f.results(t))
}

func TestGuardRefusesWithoutSideEffects(t *testing.T) {
	f, ctx, cleanup := setup(t, "/giveaways", testutil.Listing{Total: 125}, "/giveaways", Options{})
	defer cleanup()
	require.NoError(t, f.engine.Start(ctx))

	f.engine.mu.Lock()
	f.engine.busy = true
	f.engine.mu.Unlock()
	before := f.engine.State()
	f.site.ResetRequests()

	require.NoError(t, f.engine.Observe(ctx, Entry{Kind: Boundary, Intersecting: true}))
	require.Empty(t, f.site.Requests())
	if diff := cmp.Diff(before, f.engine.State()); diff != "" {
		t.Fatal(diff)
	}

	f.engine.mu.Lock()
	f.engine.busy = false
	f.engine.intersecting = false
	f.engine.mu.Unlock()

	require.NoError(t, f.engine.Pause(ctx))
	before = f.engine.State()
	require.NoError(t, f.engine.Observe(ctx, Entry{Kind: Boundary, Intersecting: true}))
	require.Empty(t, f.site.Requests())
	if diff := cmp.Diff(before, f.engine.State()); diff != "" {
		t.Fatal(diff)
	}

	_, err := f.engine.loadOnce(ctx, triggerAuto)
	require.ErrorIs(t, err, ErrPaused)
}

func TestStepWhilePaused(t *testing.T) {
	f, ctx, cleanup := setup(t, "/giveaways", testutil.Listing{Total: 125}, "/giveaways", Options{})
	defer cleanup()
	require.NoError(t, StoreSettings{Store: f.store}.SetPaused(ctx, true))
	require.NoError(t, f.engine.Start(ctx))
	require.True(t, f.engine.State().Paused)

	require.NoError(t, f.engine.Step(ctx))
	state := f.engine.State()
	require.Equal(t, []int{2}, f.rec.loaded)
	require.True(t, state.Paused)
	require.False(t, state.Step)

	paused, err := StoreSettings{Store: f.store}.Paused(ctx)
	require.NoError(t, err)
	require.True(t, paused)
}

func TestContinuous(t *testing.T) {
	f, ctx, cleanup := setup(t, "/giveaways", testutil.Listing{Total: 125}, "/giveaways", Options{})
	defer cleanup()
	require.NoError(t, f.engine.Start(ctx))

	require.NoError(t, f.engine.Continuous(ctx))
	state := f.engine.State()
	require.Equal(t, []int{2, 3, 4, 5}, f.rec.loaded)
	require.True(t, state.Ended)
	require.False(t, state.Continuous)
	require.False(t, state.Paused)
}

func TestContinuousOnLoadIsLimited(t *testing.T) {
	f, ctx, cleanup := setup(t, "/giveaways", testutil.Listing{Total: 250}, "/giveaways", Options{
		ContinuousOnLoad: true,
		Pages:            2,
	})
	defer cleanup()
	require.NoError(t, f.engine.Start(ctx))

	state := f.engine.State()
	require.Equal(t, []int{2, 3}, f.rec.loaded)
	require.False(t, state.Ended)
	require.False(t, state.Limited)
	require.Equal(t, 0, state.LimitCount)
	require.Equal(t, 4, state.NextPage)
}

func TestReversePriming(t *testing.T) {
	path := "/discussion/abc12/portal-train"
	f, ctx, cleanup := setup(t, path, testutil.Listing{Total: 60, Comments: true}, path, Options{
		Reverse:   true,
		ModifyUrl: true,
	})
	defer cleanup()
	require.NoError(t, f.engine.Start(ctx))

	state := f.engine.State()
	require.True(t, state.Reverse)
	require.Equal(t, 3, state.CurrentPage)
	require.Equal(t, 4, state.PageBase)
	require.Equal(t, 2, state.NextPage)
	require.Equal(t, []int{3}, f.rec.loaded)
	require.Len(t, f.rowsOf(3), 10)
	require.Equal(t, "Row 51", f.rowsOf(3)[0])
	require.Empty(t, f.rowsOf(1))
	require.Equal(t, pagination.Results{From: 51, To: 60, Total: 60}, f.results(t))
	require.Equal(t, f.site.URL()+path+"/search?page=3", f.engine.Location())

	nextPages := []int{state.NextPage}
	for !f.engine.State().Ended {
		require.NoError(t, f.engine.Step(ctx))
		nextPages = append(nextPages, f.engine.State().NextPage)
	}
	require.Equal(t, []int{2, 1, 0}, nextPages)
	require.Equal(t, []int{3, 2, 1}, f.engine.State().Pages)
	require.Equal(t, pagination.Results{From: 1, To: 60, Total: 60}, f.results(t))
}

func TestReverseFromExplicitPage(t *testing.T) {
	path := "/discussion/abc12/portal-train"
	f, ctx, cleanup := setup(t, path, testutil.Listing{Total: 60, Comments: true}, path+"/search?page=2", Options{Reverse: true})
	defer cleanup()
	require.NoError(t, f.engine.Start(ctx))

	state := f.engine.State()
	require.Equal(t, 2, state.CurrentPage)
	require.Equal(t, 1, state.NextPage)
	require.False(t, state.Ended)
	require.Empty(t, f.rec.loaded)

	require.NoError(t, f.engine.Step(ctx))
	require.True(t, f.engine.State().Ended)
	require.Equal(t, pagination.Results{From: 1, To: 50, Total: 60}, f.results(t))
}

func TestReverseOnlyForDiscussions(t *testing.T) {
	f, ctx, cleanup := setup(t, "/giveaways", testutil.Listing{Total: 60}, "/giveaways", Options{Reverse: true})
	defer cleanup()
	require.NoError(t, f.engine.Start(ctx))
	require.False(t, f.engine.State().Reverse)
	require.Equal(t, 2, f.engine.State().NextPage)
}

func TestPaginationFollowsViewport(t *testing.T) {
	f, ctx, cleanup := setup(t, "/giveaways", testutil.Listing{Total: 125}, "/giveaways", Options{ModifyUrl: true})
	defer cleanup()
	require.NoError(t, f.engine.Start(ctx))
	require.NoError(t, f.engine.Step(ctx))
	require.NoError(t, f.engine.Step(ctx))

	selected := func() string {
		var page string
		f.engine.View(func(doc *goquery.Document) {
			page = doc.Find(".pagination__navigation .is-selected").AttrOr("data-page-number", "")
		})
		return page
	}
	require.Equal(t, "1", selected())

	require.NoError(t, f.engine.Observe(ctx, Entry{Kind: PageGroup, Page: 2, Intersecting: true}))
	require.Equal(t, "2", selected())
	require.Equal(t, 2, f.engine.State().PageIndex)
	require.Equal(t, f.site.URL()+"/giveaways/search?page=2", f.engine.Location())

	// leaving page 2 upwards means page 3 is in view
	require.NoError(t, f.engine.Observe(ctx, Entry{Kind: PageGroup, Page: 2, ScrolledPast: true}))
	require.Equal(t, "3", selected())

	require.NoError(t, f.engine.Observe(ctx, Entry{Kind: PageGroup, Page: 1, Intersecting: true}))
	require.Equal(t, "1", selected())
	require.Equal(t, f.site.URL()+"/giveaways", f.engine.Location())
	require.Len(t, f.rec.locations, 3)

	// first page links point at the explicit search route
	f.engine.View(func(doc *goquery.Document) {
		href := doc.Find(`.pagination__navigation [data-page-number="1"]`).AttrOr("href", "")
		require.Equal(t, "/giveaways/search?page=1", href)
	})

	shown, href := f.engine.GoToPage(2)
	require.True(t, shown)
	require.Empty(t, href)
	require.Equal(t, "2", selected())

	shown, href = f.engine.GoToPage(5)
	require.False(t, shown)
	require.Equal(t, "/giveaways/search?page=5", href)
}

func TestDividers(t *testing.T) {
	f, ctx, cleanup := setup(t, "/giveaways", testutil.Listing{Total: 60}, "/giveaways", Options{Dividers: true})
	defer cleanup()
	require.NoError(t, f.engine.Start(ctx))
	require.NoError(t, f.engine.Step(ctx))

	f.engine.View(func(doc *goquery.Document) {
		divider := doc.Find("." + dividerClass)
		require.Equal(t, 1, divider.Length())
		require.Equal(t, "Page 2", divider.Find("a").Text())
		require.Equal(t, "/giveaways/search?page=2", divider.Find("a").AttrOr("href", ""))
		require.True(t, divider.Next().HasClass(pageClass(2)))
	})
}

func TestRemoveEntry(t *testing.T) {
	f, ctx, cleanup := setup(t, "/giveaways", testutil.Listing{Total: 30}, "/giveaways", Options{})
	defer cleanup()
	require.NoError(t, f.engine.Start(ctx))

	ids := f.engine.Removable()
	require.Len(t, ids, 25)

	require.NoError(t, f.engine.RemoveEntry(ctx, ids[0]))
	f.engine.View(func(doc *goquery.Document) {
		row := doc.Find(fmt.Sprintf(`[%s="%s"]`, rowIdAttr, ids[0]))
		require.True(t, row.HasClass("is-faded"))
		require.False(t, row.Find(".table__remove-complete").HasClass("is-hidden"))
		require.Equal(t, "101", doc.Find(".nav__points").Text())
	})
	require.Len(t, f.engine.Removable(), 24)

	f.site.FailRemoval("r2")
	require.Error(t, f.engine.RemoveEntry(ctx, ids[1]))
	f.engine.View(func(doc *goquery.Document) {
		row := doc.Find(fmt.Sprintf(`[%s="%s"]`, rowIdAttr, ids[1]))
		require.False(t, row.HasClass("is-faded"))
		require.False(t, row.Find(".table__remove-default").HasClass("is-hidden"))
	})

	// rows spliced in later are removable too
	require.NoError(t, f.engine.Step(ctx))
	require.Len(t, f.engine.Removable(), 29)
}

func TestNoResults(t *testing.T) {
	f, ctx, cleanup := setup(t, "/giveaways", testutil.Listing{Total: 0}, "/giveaways", Options{})
	defer cleanup()
	require.NoError(t, f.engine.Start(ctx))
	require.ErrorIs(t, f.engine.Step(ctx), ErrNoResults)
}
