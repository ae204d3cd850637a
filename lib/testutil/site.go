package testutil

import (
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	random "github.com/mazen160/go-random"
)

const DuplicateSentence = "Error. You already posted an identical giveaway within the past 2 minutes. To prevent double posts, it's been blocked."

// Listing is a paginated list served under a base path, rows are numbered
// from 1 across all pages.
type Listing struct {
	Title   string
	Total   int
	PerPage int
	Pinned  string
	// Comments renders the rows directly inside a .comments container
	// instead of a table.
	Comments bool

	revision int
}

type SiteGame struct {
	Id        string
	Name      string
	SteamType string
	SteamId   string
}

type Giveaway struct {
	Id          string
	Code        string
	Url         string
	Form        url.Values
	Description string
}

type Discussion struct {
	Code        string
	Title       string
	Description string
	Closed      bool
}

type Request struct {
	Method string
	Path   string
	Query  url.Values
	Form   url.Values
}

// Site is an in-process stand-in for the giveaway site serving the pages
// and endpoints the client drives.
type Site struct {
	Server *httptest.Server
	Token  string

	mu          sync.Mutex
	t           testing.TB
	points      int
	signedOut   bool
	listings    map[string]*Listing
	games       []SiteGame
	countries   map[string]string
	groups      map[string]string
	duplicates  int
	rejected    map[string]string
	failRemoval map[string]bool
	giveaways   []*Giveaway
	discussions map[string]*Discussion
	requests    []Request
	nextId      int

	fallbackCodes int
}

func NewSite(t testing.TB) *Site {
	s := &Site{
		Token:       RandomString(t, 32),
		t:           t,
		points:      100,
		listings:    map[string]*Listing{},
		countries:   map[string]string{"1": "United States", "2": "Germany", "3": "United Kingdom"},
		groups:      map[string]string{"g1": "Train Conductors", "g2": "Bundle Hunters"},
		rejected:    map[string]string{},
		failRemoval: map[string]bool{},
		discussions: map[string]*Discussion{},
		nextId:      1000,
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	return s
}

func (s *Site) Close() {
	s.Server.Close()
}

func (s *Site) URL() string {
	return s.Server.URL
}

func (s *Site) SetListing(path string, listing Listing) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if listing.PerPage == 0 {
		listing.PerPage = 25
	}
	s.listings[path] = &listing
}

// Revise changes the rows and total of a listing, as if entries were
// added or edited on the site.
func (s *Site) Revise(path string, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	listing := s.listings[path]
	listing.revision++
	listing.Total = total
}

func (s *Site) SetPinned(path, pinned string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listings[path].Pinned = pinned
}

func (s *Site) SetSignedOut(signedOut bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signedOut = signedOut
}

func (s *Site) AddGame(game SiteGame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.games = append(s.games, game)
}

// FailWithDuplicate makes the next n creation posts answer with the
// duplicate giveaway guard.
func (s *Site) FailWithDuplicate(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.duplicates = n
}

func (s *Site) RejectGame(gameId, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejected[gameId] = message
}

func (s *Site) FailRemoval(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failRemoval[code] = true
}

func (s *Site) Points() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.points
}

func (s *Site) Giveaways() []Giveaway {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Giveaway, len(s.giveaways))
	for i, g := range s.giveaways {
		out[i] = *g
	}
	return out
}

func (s *Site) AddDiscussion(title, description string) Discussion {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := &Discussion{Code: s.code(), Title: title, Description: description}
	s.discussions[d.Code] = d
	return *d
}

func (s *Site) Discussion(code string) (Discussion, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.discussions[code]
	if !ok {
		return Discussion{}, false
	}
	return *d, true
}

func (s *Site) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Count returns how many requests matched method and path. An empty path
// matches any path and ajax requests match on their "do" value.
func (s *Site) Count(method, path string) int {
	count := 0
	for _, req := range s.Requests() {
		if req.Method != method {
			continue
		}
		if path == "" || req.Path == path || (req.Path == "/ajax.php" && req.Form.Get("do") == path) {
			count++
		}
	}
	return count
}

func (s *Site) ResetRequests() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = nil
}

// code hands out a fresh five character code for a giveaway or discussion.
// Callers hold s.mu.
func (s *Site) code() string {
	for {
		code, err := random.String(5)
		if err != nil {
			s.fallbackCodes++
			code = fmt.Sprintf("c%04d", s.fallbackCodes)
		}
		if !s.codeTaken(code) {
			return code
		}
	}
}

func (s *Site) codeTaken(code string) bool {
	if _, ok := s.discussions[code]; ok {
		return true
	}
	for _, g := range s.giveaways {
		if g.Code == code {
			return true
		}
	}
	return false
}

var slugRegex = regexp.MustCompile(`[^a-z0-9]+`)

func slug(name string) string {
	return strings.Trim(slugRegex.ReplaceAllString(strings.ToLower(name), "-"), "-")
}

func (s *Site) serve(w http.ResponseWriter, r *http.Request) {
	err := r.ParseForm()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	form := url.Values{}
	if r.Method == http.MethodPost {
		form = r.PostForm
	}
	s.requests = append(s.requests, Request{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.Query(),
		Form:   form,
	})

	path := r.URL.Path
	switch {
	case path == "/ajax.php" && r.Method == http.MethodPost:
		s.serveAjax(w, form)
	case path == "/giveaways/new" && r.Method == http.MethodGet:
		s.writePage(w, "Create a New Giveaway", s.renderCreateForm(""))
	case path == "/giveaways/new" && r.Method == http.MethodPost:
		s.serveCreate(w, r, form)
	case strings.HasPrefix(path, "/giveaway/") && r.Method == http.MethodGet:
		s.serveGiveaway(w, path)
	case path == "/discussions/new" && r.Method == http.MethodPost:
		d := &Discussion{Code: s.code(), Title: form.Get("title"), Description: form.Get("description")}
		s.discussions[d.Code] = d
		http.Redirect(w, r, discussionPath(d), http.StatusFound)
	case path == "/discussions/edit" && r.Method == http.MethodPost:
		d, ok := s.discussions[form.Get("code")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		d.Title = form.Get("title")
		d.Description = form.Get("description")
		http.Redirect(w, r, discussionPath(d), http.StatusFound)
	default:
		if listing, base, ok := s.findListing(path); ok {
			s.serveListing(w, r, listing, base)
			return
		}
		if strings.HasPrefix(path, "/discussion/") {
			s.serveDiscussion(w, r, form)
			return
		}
		if path == "/" {
			s.writePage(w, "Home", "")
			return
		}
		http.NotFound(w, r)
	}
}

func (s *Site) findListing(path string) (*Listing, string, bool) {
	base := path
	if i := strings.Index(base, "/search"); i >= 0 {
		base = base[:i]
	}
	base = strings.TrimSuffix(base, "/")
	if base == "" {
		base = "/giveaways"
	}
	listing, ok := s.listings[base]
	return listing, base, ok
}

func (s *Site) header() string {
	if s.signedOut {
		return `<header><nav><a class="nav__sits" href="/?login">Sign in through STEAM</a></nav></header>`
	}
	return fmt.Sprintf(
		`<header><nav><a class="nav__button" href="/account"><span class="nav__points">%d</span>P</a></nav>`+
			`<form action="/logout"><input type="hidden" name="xsrf_token" value="%s"></form></header>`,
		s.points, s.Token,
	)
}

func (s *Site) writePage(w http.ResponseWriter, title, body string) {
	w.Header().Set("content-type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<!DOCTYPE html><html><head><title>%s</title></head><body>%s`+
		`<div class="page__outer-wrap"><div class="page__inner-wrap">`+
		`<div class="page__heading"><div class="page__heading__breadcrumbs"><a>%s</a></div></div>%s</div></div></body></html>`,
		html.EscapeString(title), s.header(), html.EscapeString(title), body)
}

func (s *Site) writeJSON(w http.ResponseWriter, value any) {
	w.Header().Set("content-type", "application/json")
	err := json.NewEncoder(w).Encode(value)
	if err != nil {
		s.t.Error(err)
	}
}

func (s *Site) serveListing(w http.ResponseWriter, r *http.Request, listing *Listing, base string) {
	lastPage := (listing.Total + listing.PerPage - 1) / listing.PerPage
	if lastPage < 1 {
		lastPage = 1
	}
	page := 1
	switch raw := r.URL.Query().Get("page"); raw {
	case "":
	case "last":
		page = lastPage
	default:
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			http.Error(w, "invalid page", http.StatusBadRequest)
			return
		}
		page = min(n, lastPage)
	}

	var body strings.Builder
	if listing.Pinned != "" {
		fmt.Fprintf(&body, `<div class="pinned-giveaways__outer-wrap"><div class="pinned-giveaways__inner-wrap">%s</div></div>`, listing.Pinned)
	}

	from := (page-1)*listing.PerPage + 1
	to := min(page*listing.PerPage, listing.Total)
	var rows strings.Builder
	for i := from; i <= to; i++ {
		rows.WriteString(s.renderRow(base, i, listing.revision))
	}
	if listing.Comments {
		fmt.Fprintf(&body, `<div class="comments">%s</div>`, rows.String())
	} else {
		fmt.Fprintf(&body, `<div class="table"><div class="table__heading"></div><div class="table__rows">%s</div></div>`, rows.String())
	}

	if listing.Total == 0 {
		body.WriteString(`<div class="pagination pagination--no-results"><div class="pagination__results">No results were found.</div></div>`)
	} else {
		fmt.Fprintf(&body,
			`<div class="pagination"><div class="pagination__results">Displaying <strong>%s</strong> to <strong>%s</strong> of <strong>%s</strong> results</div>%s</div>`,
			formatCount(from), formatCount(to), formatCount(listing.Total), renderNavigation(base, page, lastPage),
		)
	}
	s.writePage(w, listing.Title, body.String())
}

func (s *Site) renderRow(base string, i, revision int) string {
	label := fmt.Sprintf("Row %d", i)
	if revision > 0 {
		label = fmt.Sprintf("Row %d (revision %d)", i, revision)
	}
	return fmt.Sprintf(
		`<div class="table__row-outer-wrap" data-row="%d"><div class="table__row-inner-wrap">`+
			`<a class="table__column__heading" href="%s/row/%d/">%s</a>`+
			`<div class="table__remove-default"><i class="fa fa-eye-slash"></i></div>`+
			`<div class="table__remove-loading is-hidden"><i class="fa fa-circle-o-notch fa-spin"></i></div>`+
			`<div class="table__remove-complete is-hidden"><i class="fa fa-check-circle"></i></div>`+
			`<input type="hidden" name="xsrf_token" value="%s"><input type="hidden" name="do" value="entry_delete">`+
			`<input type="hidden" name="code" value="r%d"></div></div>`,
		i, base, i, label, s.Token, i,
	)
}

func renderNavigation(base string, page, lastPage int) string {
	if lastPage <= 1 {
		return ""
	}
	var nav strings.Builder
	nav.WriteString(`<div class="pagination__navigation">`)
	for i := 1; i <= lastPage; i++ {
		href := fmt.Sprintf("%s/search?page=%d", base, i)
		if i == 1 {
			href = base
		}
		selected := ""
		if i == page {
			selected = ` class="is-selected"`
		}
		fmt.Fprintf(&nav, `<a href="%s" data-page-number="%d"%s><span>%d</span></a>`, href, i, selected, i)
	}
	if page < lastPage {
		fmt.Fprintf(&nav, `<a href="%s/search?page=%d" data-page-number="%d"><span>Next</span><i class="fa fa-angle-right"></i></a>`, base, page+1, page+1)
		fmt.Fprintf(&nav, `<a href="%s/search?page=%d" data-page-number="%d"><span>Last</span><i class="fa fa-angle-double-right"></i></a>`, base, lastPage, lastPage)
	}
	nav.WriteString(`</div>`)
	return nav.String()
}

func formatCount(n int) string {
	digits := strconv.Itoa(n)
	var out []string
	for len(digits) > 3 {
		out = append([]string{digits[len(digits)-3:]}, out...)
		digits = digits[:len(digits)-3]
	}
	out = append([]string{digits}, out...)
	return strings.Join(out, ",")
}

func (s *Site) serveAjax(w http.ResponseWriter, form url.Values) {
	switch form.Get("do") {
	case "autocomplete_giveaway_game":
		s.writeJSON(w, map[string]any{"type": "success", "html": s.renderAutocomplete(form.Get("search_query"))})
	case "edit_giveaway_description":
		for _, g := range s.giveaways {
			if g.Id == form.Get("giveaway_id") {
				g.Description = form.Get("description")
				s.writeJSON(w, map[string]any{"type": "success"})
				return
			}
		}
		s.writeJSON(w, map[string]any{"type": "error", "msg": "Giveaway not found."})
	case "entry_delete":
		if s.failRemoval[form.Get("code")] {
			s.writeJSON(w, map[string]any{"type": "error", "msg": "Could not remove the entry."})
			return
		}
		s.points++
		s.writeJSON(w, map[string]any{"type": "success", "points": strconv.Itoa(s.points)})
	default:
		s.writeJSON(w, map[string]any{"type": "error", "msg": "Unknown action."})
	}
}

func (s *Site) renderAutocomplete(query string) string {
	query = strings.ToLower(strings.TrimSpace(query))
	var out strings.Builder
	for _, game := range s.games {
		if game.SteamId != query && !strings.Contains(strings.ToLower(game.Name), query) {
			continue
		}
		store := ""
		if game.SteamId != "" {
			store = fmt.Sprintf(`<a class="table__column__secondary-link" href="https://store.steampowered.com/%s/%s/">https://store.steampowered.com/%s/%s/</a>`,
				game.SteamType, game.SteamId, game.SteamType, game.SteamId)
		}
		fmt.Fprintf(&out,
			`<div class="table__row-outer-wrap is-clickable" data-autocomplete-id="%s" data-autocomplete-name="%s">`+
				`<div class="table__row-inner-wrap"><div class="table__column--width-fill"><p class="table__column__heading">%s</p>%s</div></div></div>`,
			html.EscapeString(game.Id), html.EscapeString(game.Name), html.EscapeString(game.Name), store,
		)
	}
	return out.String()
}

func (s *Site) renderCreateForm(notice string) string {
	var countries, groups strings.Builder
	for _, id := range sortedKeys(s.countries) {
		fmt.Fprintf(&countries, `<div class="form__multiselect__item" data-item-id="%s" data-name="%s">%s</div>`,
			id, html.EscapeString(s.countries[id]), html.EscapeString(s.countries[id]))
	}
	for _, id := range sortedKeys(s.groups) {
		fmt.Fprintf(&groups, `<div class="form__multiselect__item" data-item-id="%s" data-name="%s">%s</div>`,
			id, html.EscapeString(s.groups[id]), html.EscapeString(s.groups[id]))
	}
	return fmt.Sprintf(`%s<form method="post" action="/giveaways/new"><div class="form__rows">
<input type="hidden" name="xsrf_token" value="%s">
<input type="hidden" name="next_step" value="3">
<input type="hidden" name="game_id" value="">
<input type="hidden" name="type" value="gift">
<input type="text" name="copies" value="1">
<textarea name="key_string"></textarea>
<input type="text" name="start_time" value="Jan 1, 2030 12:00 am">
<input type="text" name="end_time" value="Jan 8, 2030 12:00 am">
<input type="hidden" name="region_restricted" value="0">
<input type="hidden" name="country_item_string" value="">
<div data-input="country_item_string">%s</div>
<input type="hidden" name="who_can_enter" value="everyone">
<input type="hidden" name="whitelist" value="0">
<input type="hidden" name="group_item_string" value="">
<div data-input="group_item_string">%s</div>
<input type="hidden" name="contributor_level" value="0">
<textarea name="description"></textarea>
</div></form>`, notice, s.Token, countries.String(), groups.String())
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *Site) gameName(id string) string {
	for _, game := range s.games {
		if game.Id == id {
			return game.Name
		}
	}
	return "Unknown Game"
}

func (s *Site) serveCreate(w http.ResponseWriter, r *http.Request, form url.Values) {
	if s.duplicates > 0 {
		s.duplicates--
		s.writePage(w, "Create a New Giveaway", s.renderCreateForm(
			fmt.Sprintf(`<div class="notification notification--warning">%s</div>`, strings.Replace(html.EscapeString(DuplicateSentence), " giveaway ", "\n\t\t\tgiveaway ", 1)),
		))
		return
	}

	var errors []string
	gameId := form.Get("game_id")
	if gameId == "" {
		errors = append(errors, "Please select a game.")
	}
	if msg, ok := s.rejected[gameId]; ok {
		errors = append(errors, msg)
	}
	if len(errors) > 0 {
		var notice strings.Builder
		for _, msg := range errors {
			fmt.Fprintf(&notice, `<div class="form__row__error"><i class="fa fa-exclamation-circle"></i> %s</div>`, html.EscapeString(msg))
		}
		s.writePage(w, "Create a New Giveaway", s.renderCreateForm(notice.String()))
		return
	}

	s.nextId++
	g := &Giveaway{
		Id:          strconv.Itoa(s.nextId),
		Code:        s.code(),
		Form:        form,
		Description: form.Get("description"),
	}
	g.Url = fmt.Sprintf("/giveaway/%s/%s", g.Code, slug(s.gameName(gameId)))
	s.giveaways = append(s.giveaways, g)
	http.Redirect(w, r, g.Url, http.StatusFound)
}

func (s *Site) serveGiveaway(w http.ResponseWriter, path string) {
	for _, g := range s.giveaways {
		if !strings.HasPrefix(path, "/giveaway/"+g.Code+"/") {
			continue
		}
		body := fmt.Sprintf(
			`<div class="featured__heading"><div class="featured__heading__medium">%s</div></div>`+
				`<form><input type="hidden" name="giveaway_id" value="%s"><textarea name="description">%s</textarea></form>`+
				`<div class="page__description">%s</div>`,
			html.EscapeString(s.gameName(g.Form.Get("game_id"))), g.Id,
			html.EscapeString(g.Description), html.EscapeString(g.Description),
		)
		s.writePage(w, "Giveaway", body)
		return
	}
	http.Error(w, "not found", http.StatusNotFound)
}

func discussionPath(d *Discussion) string {
	return fmt.Sprintf("/discussion/%s/%s", d.Code, slug(d.Title))
}

func (s *Site) serveDiscussion(w http.ResponseWriter, r *http.Request, form url.Values) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/discussion/"), "/")
	d, ok := s.discussions[parts[0]]
	if !ok {
		http.NotFound(w, r)
		return
	}

	if r.Method == http.MethodPost {
		switch form.Get("do") {
		case "close_discussion":
			d.Closed = true
		case "reopen_discussion":
			d.Closed = false
		default:
			http.Error(w, "unknown action", http.StatusBadRequest)
			return
		}
		http.Redirect(w, r, discussionPath(d), http.StatusFound)
		return
	}

	state := ""
	if d.Closed {
		state = `<div class="notification notification--warning is-closed">This discussion has been closed.</div>`
	}
	body := fmt.Sprintf(`%s<div class="comment__description">%s</div>`+
		`<form action="/discussions/edit" method="post">`+
		`<input type="hidden" name="xsrf_token" value="%s"><input type="hidden" name="do" value="edit_discussion">`+
		`<input type="hidden" name="code" value="%s"><input type="text" name="title" value="%s">`+
		`<textarea name="description">%s</textarea></form>`,
		state, html.EscapeString(d.Description), s.Token, d.Code,
		html.EscapeString(d.Title), html.EscapeString(d.Description),
	)
	s.writePage(w, d.Title, body)
}
