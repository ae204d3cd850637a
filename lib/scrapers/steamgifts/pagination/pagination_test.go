package pagination

import (
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

const listing = `<html><body>
<div class="page__heading"></div>
<div class="table">
	<div class="table__rows">
		<div class="table__row-outer-wrap">a</div>
		<div class="table__row-outer-wrap">b</div>
	</div>
</div>
<div class="pagination">
	<div class="pagination__results">Displaying <strong>1,001</strong> to <strong>1,025</strong> of <strong>2,000</strong> results</div>
	<div class="pagination__navigation">
		<a href="/discussions" data-page-number="1"><span>1</span></a>
		<a href="/discussions/search?page=41" data-page-number="41" class="is-selected"><span>41</span></a>
		<a href="/discussions/search?page=80" data-page-number="80"><span>Last</span> <i class="fa fa-angle-double-right"></i></a>
	</div>
</div>
</body></html>`

func load(t *testing.T, src string) *goquery.Document {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	require.NoError(t, err)
	return doc
}

func TestReadListing(t *testing.T) {
	doc := load(t, listing)
	pag, err := Find(doc)
	require.NoError(t, err)
	require.False(t, NoResults(pag))

	results, err := ReadResults(pag)
	require.NoError(t, err)
	require.Equal(t, Results{From: 1001, To: 1025, Total: 2000}, results)

	rows := RowContainer(pag)
	require.True(t, rows.HasClass("table__rows"))
	require.Equal(t, 2, rows.Children().Length())

	nav := Navigation(pag)
	require.False(t, LastLinkSelected(nav))
	last, ok := LastPageLink(nav)
	require.True(t, ok)
	n, ok := PageNumber(last)
	require.True(t, ok)
	require.Equal(t, 80, n)
	require.Contains(t, Snapshot(pag), `data-page-number="41"`)
}

func TestCounterUpdates(t *testing.T) {
	doc := load(t, listing)
	pag, err := Find(doc)
	require.NoError(t, err)

	require.NoError(t, AddTo(pag, 25))
	require.NoError(t, AddFrom(pag, -25))
	results, err := ReadResults(pag)
	require.NoError(t, err)
	require.Equal(t, Results{From: 976, To: 1050, Total: 2000}, results)
	require.Contains(t, pag.Text(), "1,050")

	SetTo(pag, 0)
	SetFrom(pag, 1)
	results, err = ReadResults(pag)
	require.NoError(t, err)
	require.Equal(t, Results{From: 1, To: 0, Total: 2000}, results)
}

func TestSynthesizeResults(t *testing.T) {
	doc := load(t, `<div class="pagination"><div class="pagination__results">No results were found.</div></div>`)
	pag, err := Find(doc)
	require.NoError(t, err)
	require.True(t, SaysNoResults(pag))

	SynthesizeResults(pag, 3)
	require.False(t, SaysNoResults(pag))
	results, err := ReadResults(pag)
	require.NoError(t, err)
	require.Equal(t, Results{From: 1, To: 3, Total: 3}, results)
	require.Contains(t, pag.Text(), "results")
}

func TestFixFirstPageLinks(t *testing.T) {
	doc := load(t, listing)
	pag, err := Find(doc)
	require.NoError(t, err)
	nav := Navigation(pag)

	FixFirstPageLinks(nav)
	FixFirstPageLinks(nav)
	require.Equal(t, "/discussions/search?page=1", nav.Find(`[data-page-number="1"]`).AttrOr("href", ""))
}

func TestMissingPagination(t *testing.T) {
	_, err := Find(load(t, `<div></div>`))
	require.ErrorIs(t, err, ErrNoPagination)
}

func TestSearchURL(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{"https://example.com/", "/giveaways/search?page="},
		{"https://example.com/giveaways/search?type=wishlist&page=3", "/giveaways/search?type=wishlist&page="},
		{"https://example.com/discussions", "/discussions/search?page="},
		{"https://example.com/discussions/search?page=2", "/discussions/search?page="},
	}
	for _, c := range cases {
		u, err := url.Parse(c.in)
		require.NoError(t, err)
		require.Equal(t, c.expected, SearchURL(u, "giveaways"), c.in)
	}
}

func TestRewriteURL(t *testing.T) {
	cases := []struct {
		in       string
		page     int
		expected string
	}{
		{"https://example.com/", 3, "https://example.com/giveaways/search?page=3"},
		{"https://example.com/", 1, "https://example.com/"},
		{"https://example.com/discussions", 2, "https://example.com/discussions/search?page=2"},
		{"https://example.com/giveaways/search?type=wishlist&page=2", 5, "https://example.com/giveaways/search?type=wishlist&page=5"},
		{"https://example.com/giveaways/search?page=2&type=wishlist", 1, "https://example.com/giveaways/search?type=wishlist"},
		{"https://example.com/discussions/search?page=4#top", 7, "https://example.com/discussions/search?page=7#top"},
	}
	for _, c := range cases {
		u, err := url.Parse(c.in)
		require.NoError(t, err)
		require.Equal(t, c.expected, RewriteURL(u, c.page, "giveaways"), c.in)
	}
}
