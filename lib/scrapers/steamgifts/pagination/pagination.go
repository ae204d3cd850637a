// Package pagination reads and rewrites the pagination widget that sits
// under every listing on the site: the "Displaying X to Y of Z" counter,
// the page navigation links and the row container right before it.
package pagination

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"sgassist/lib/textutil"

	"github.com/PuerkitoBio/goquery"
	"github.com/PuerkitoBio/purell"
)

const (
	SelectedClass  = "is-selected"
	NoResultsClass = "pagination--no-results"
)

var ErrNoPagination = fmt.Errorf("page has no pagination")

// Find returns the first pagination element of doc.
func Find(doc *goquery.Document) (*goquery.Selection, error) {
	sel := doc.Find(".pagination").First()
	if sel.Length() == 0 {
		return nil, ErrNoPagination
	}
	return sel, nil
}

func NoResults(pag *goquery.Selection) bool {
	return pag.HasClass(NoResultsClass)
}

var noResultsText = regexp.MustCompile(`No\sresults\swere\sfound\.`)

// SaysNoResults is true when the counter text is the "no results" sentence,
// which happens on pages that render a pagination without a counter.
func SaysNoResults(pag *goquery.Selection) bool {
	return noResultsText.MatchString(pag.Text())
}

func Navigation(pag *goquery.Selection) *goquery.Selection {
	return pag.Find(".pagination__navigation").First()
}

// Snapshot serializes the navigation links, it is the value cached per page.
func Snapshot(pag *goquery.Selection) string {
	nav := Navigation(pag)
	if nav.Length() == 0 {
		return ""
	}
	inner, err := nav.Html()
	if err != nil {
		return ""
	}
	return inner
}

// LastLinkSelected reports whether the final navigation link is the
// selected one, which is how the site marks the last page.
func LastLinkSelected(nav *goquery.Selection) bool {
	if nav.Length() == 0 {
		return true
	}
	return nav.Children().Last().HasClass(SelectedClass)
}

// LastPageLink returns the "Last" link when the navigation has one.
func LastPageLink(nav *goquery.Selection) (*goquery.Selection, bool) {
	last := nav.Children().Last()
	if last.Length() == 0 || last.Find(".fa-angle-double-right").Length() == 0 {
		return nil, false
	}
	return last, true
}

func PageNumber(link *goquery.Selection) (int, bool) {
	n, err := strconv.Atoi(link.AttrOr("data-page-number", ""))
	if err != nil {
		return 0, false
	}
	return n, true
}

// RowContainer is the element holding the listing rows, the sibling right
// before the pagination or its .table__rows child for table listings.
func RowContainer(pag *goquery.Selection) *goquery.Selection {
	context := pag.Prev()
	rows := context.Find(".table__rows").First()
	if rows.Length() > 0 {
		return rows
	}
	return context
}

// FixFirstPageLinks points page 1 links at the explicit search route so
// following them never lands on a redirecting bare path.
func FixFirstPageLinks(nav *goquery.Selection) {
	nav.Find(`[data-page-number="1"]`).Each(func(_ int, link *goquery.Selection) {
		href := link.AttrOr("href", "")
		if strings.Contains(href, "/search?page=1") {
			return
		}
		link.SetAttr("href", href+"/search?page=1")
	})
}

// Results is the "Displaying From to To of Total" counter.
type Results struct {
	From  int
	To    int
	Total int
}

func counterStrongs(pag *goquery.Selection) *goquery.Selection {
	return pag.Find(".pagination__results").First().Children().Filter("strong")
}

func ReadResults(pag *goquery.Selection) (Results, error) {
	strongs := counterStrongs(pag)
	if strongs.Length() < 3 {
		return Results{}, fmt.Errorf("pagination counter has %d values", strongs.Length())
	}
	var values [3]int
	for i := range values {
		n, err := textutil.ParseCount(strongs.Eq(i).Text())
		if err != nil {
			return Results{}, err
		}
		values[i] = n
	}
	return Results{From: values[0], To: values[1], Total: values[2]}, nil
}

// SetFrom and SetTo overwrite one counter value, keeping the separators.
func SetFrom(pag *goquery.Selection, n int) {
	counterStrongs(pag).Eq(0).SetText(textutil.FormatCount(n))
}

func SetTo(pag *goquery.Selection, n int) {
	counterStrongs(pag).Eq(1).SetText(textutil.FormatCount(n))
}

// AddFrom and AddTo shift one counter value by delta.
func AddFrom(pag *goquery.Selection, delta int) error {
	return addAt(pag, 0, delta)
}

func AddTo(pag *goquery.Selection, delta int) error {
	return addAt(pag, 1, delta)
}

func addAt(pag *goquery.Selection, idx, delta int) error {
	strong := counterStrongs(pag).Eq(idx)
	if strong.Length() == 0 {
		return fmt.Errorf("pagination counter has no value %d", idx)
	}
	n, err := textutil.ParseCount(strong.Text())
	if err != nil {
		return err
	}
	strong.SetText(textutil.FormatCount(n + delta))
	return nil
}

// SynthesizeResults replaces a "no results" sentence with a counter for n rows.
func SynthesizeResults(pag *goquery.Selection, n int) {
	plural := ""
	if n > 1 {
		plural = "s"
	}
	count := textutil.FormatCount(n)
	results := pag.Find(".pagination__results").First()
	if results.Length() == 0 {
		pag.PrependHtml(`<div class="pagination__results"></div>`)
		results = pag.Find(".pagination__results").First()
	}
	results.SetHtml(fmt.Sprintf(
		"Displaying <strong>1</strong> to <strong>%s</strong> of <strong>%s</strong> result%s",
		count, count, plural,
	))
}

// SearchURL is the prefix every page number is appended to, for
// "/giveaways?type=wishlist" it is "/giveaways/search?type=wishlist&page=".
func SearchURL(u *url.URL, root string) string {
	path := strings.TrimSuffix(u.Path, "/")
	if i := strings.Index(path, "/search"); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		path = "/" + root
	}
	query := u.Query()
	query.Del("page")
	encoded := query.Encode()
	if encoded != "" {
		return path + "/search?" + encoded + "&page="
	}
	return path + "/search?page="
}

var pageParam = regexp.MustCompile(`&page=(\d+)|page=(\d+)&|page=(\d+)`)

// RewriteURL is the address bar value for page, without navigating: the
// page parameter is dropped for page 1 and a bare "/" maps to root.
func RewriteURL(current *url.URL, page int, root string) string {
	isFirstPage := page == 1
	queryParams := pageParam.ReplaceAllString(current.RawQuery, "")

	path := ""
	if current.Path == "/" || current.Path == "" {
		path = root
	}
	search := ""
	if queryParams != "" {
		search = fmt.Sprintf("%s/search?%s", path, queryParams)
		if !isFirstPage {
			search += fmt.Sprintf("&page=%d", page)
		}
	} else if !isFirstPage {
		search = fmt.Sprintf("%s/search?page=%d", path, page)
	}

	pathname := current.Path
	if pathname == "" {
		pathname = "/"
	}
	out := fmt.Sprintf("%s://%s%s%s", current.Scheme, current.Host, strings.Replace(pathname, "/search", "", 1), search)
	if current.Fragment != "" {
		out += "#" + current.Fragment
	}

	normalized, err := purell.NormalizeURLString(out, purell.FlagsSafe|purell.FlagRemoveDuplicateSlashes)
	if err != nil {
		return out
	}
	return normalized
}
