package endless

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"sgassist/lib/scrapers/steamgifts/core"
	"sgassist/lib/scrapers/steamgifts/pagination"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNoResults    = fmt.Errorf("listing has no results")
	ErrStopped      = fmt.Errorf("endless scrolling was stopped")
	ErrBusy         = fmt.Errorf("a page is already loading")
	ErrPaused       = fmt.Errorf("endless scrolling is paused")
	ErrEnded        = fmt.Errorf("there are no more pages to load")
	ErrModeActive   = fmt.Errorf("a step or continuous load is in progress")
	ErrNoMode       = fmt.Errorf("no step or continuous load is in progress")
	ErrLimitReached = fmt.Errorf("continuous load limit reached")
)

// refused reports whether err is a guard refusing to start a load, as
// opposed to a failed load.
func refused(err error) bool {
	for _, target := range []error{
		ErrNoResults, ErrStopped, ErrBusy, ErrPaused,
		ErrEnded, ErrModeActive, ErrNoMode, ErrLimitReached,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Site is the subset of the site client the engine needs.
type Site interface {
	GetDocument(ctx context.Context, path string) (*goquery.Document, error)
	PostAjax(ctx context.Context, form url.Values) (core.AjaxResponse, error)
}

// Hooks let a presentation layer follow the engine. They run with the
// engine locked and must not call back into it.
type Hooks struct {
	Loading           func(loading bool)
	PageLoaded        func(page, rows int)
	NavigationChanged func(page int, location string)
}

type trigger int

const (
	// boundary marker became visible
	triggerAuto trigger = iota
	// a step or continuous load drives the engine
	triggerMode
	// first load of a reversed listing
	triggerPrime
)

type after int

const (
	afterStop after = iota
	afterContinue
	afterAuto
)

const (
	pageClassPrefix = "es-page-"
	dividerClass    = "es-page-divider"
	rowIdAttr       = "data-es-row"
)

func pageClass(page int) string {
	return pageClassPrefix + strconv.Itoa(page)
}

// Engine splices listing pages into a live document as the reader scrolls.
type Engine struct {
	site     Site
	settings Settings
	opts     Options
	hooks    Hooks

	mu         sync.Mutex
	doc        *goquery.Document
	location   *url.URL
	searchUrl  string
	pagination *goquery.Selection
	rows       *goquery.Selection

	currentPage int
	nextPage    int
	pageBase    int
	pageIndex   int
	paginations []string
	pages       []int

	reverse      bool
	reversePages bool
	ended        bool
	paused       bool
	continuous   bool
	step         bool
	busy         bool
	stopped      bool
	limited      bool
	limitCount   int
	intersecting bool

	seen   map[string]bool
	rowSeq int
}

func New(site Site, page core.Page, settings Settings, opts Options, hooks Hooks) *Engine {
	location := page.FinalUrl
	if location == nil {
		location = &url.URL{Path: "/"}
	}
	return &Engine{
		site:     site,
		settings: settings,
		opts:     opts,
		hooks:    hooks,
		doc:      page.Doc,
		location: location,
		seen:     map[string]bool{},
	}
}

// State is a point in time copy of the engine's pagination state.
type State struct {
	CurrentPage int
	NextPage    int
	PageBase    int
	PageIndex   int
	Reverse     bool
	Ended       bool
	Paused      bool
	Continuous  bool
	Step        bool
	Busy        bool
	Limited     bool
	LimitCount  int
	Pages       []int
	Snapshots   []string
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return State{
		CurrentPage: e.currentPage,
		NextPage:    e.nextPage,
		PageBase:    e.pageBase,
		PageIndex:   e.pageIndex,
		Reverse:     e.reverse,
		Ended:       e.ended,
		Paused:      e.paused,
		Continuous:  e.continuous,
		Step:        e.step,
		Busy:        e.busy,
		Limited:     e.limited,
		LimitCount:  e.limitCount,
		Pages:       append([]int(nil), e.pages...),
		Snapshots:   append([]string(nil), e.paginations...),
	}
}

// View runs fn against the live document.
func (e *Engine) View(fn func(doc *goquery.Document)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.doc)
}

func (e *Engine) Location() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.location.String()
}

func (e *Engine) SearchUrl() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.searchUrl
}

// Stop disables all further loads.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopped = true
}

func isDiscussionPath(path string) bool {
	return strings.HasPrefix(path, "/discussion/")
}

func requestedPage(u *url.URL) (int, bool) {
	n, err := strconv.Atoi(u.Query().Get("page"))
	if err != nil || n < 1 {
		return 1, false
	}
	return n, true
}

// Start reads the live document's pagination and sets up the initial
// state. Reversed discussions opened on their first page are primed with
// the last page before returning.
func (e *Engine) Start(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Start")
	defer span.End()

	paused, err := e.settings.Paused(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read pause setting")
		return err
	}

	e.mu.Lock()
	needsLastPage, err := e.initLocked(paused)
	e.mu.Unlock()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read pagination")
		return err
	}

	if needsLastPage {
		err = e.findLastPage(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to find last page")
			return err
		}
	}

	e.mu.Lock()
	e.activateLocked(ctx)
	priming := e.reversePages
	state := fmt.Sprintf("current=%d next=%d base=%d reverse=%v ended=%v", e.currentPage, e.nextPage, e.pageBase, e.reverse, e.ended)
	e.mu.Unlock()
	slog.DebugContext(ctx, "endless scrolling started", "state", state)

	if priming {
		return e.load(ctx, triggerPrime)
	}
	if e.opts.ContinuousOnLoad {
		return e.Continuous(ctx)
	}
	return nil
}

func (e *Engine) initLocked(paused bool) (needsLastPage bool, err error) {
	e.pagination, err = pagination.Find(e.doc)
	if err != nil {
		return false, err
	}
	e.searchUrl = pagination.SearchURL(e.location, e.opts.root())
	e.rows = pagination.RowContainer(e.pagination)
	if e.rows.Length() == 0 {
		return false, fmt.Errorf("listing has no row container")
	}

	e.paginations = []string{pagination.Snapshot(e.pagination)}
	e.paused = paused
	e.reverse = e.opts.Reverse && isDiscussionPath(e.location.Path)

	nav := pagination.Navigation(e.pagination)
	current, explicit := requestedPage(e.location)
	switch {
	case !e.reverse:
		e.currentPage = current
		e.nextPage = current + 1
		e.pageBase = current - 1
		e.ended = nav.Length() == 0 || pagination.LastLinkSelected(nav)
	case current == 1 && nav.Length() > 0 && !explicit:
		e.rows.Children().Remove()
		pagination.SetTo(e.pagination, 0)

		lastLink := nav.Children().Last()
		_, hasDoubleRight := pagination.LastPageLink(nav)
		if lastLink.HasClass(pagination.SelectedClass) && hasDoubleRight && !e.opts.LastPageLink {
			e.currentPage, _ = pagination.PageNumber(lastLink)
		} else {
			needsLastPage = true
		}
		e.pageBase = e.currentPage + 1
		e.nextPage = e.currentPage
		e.reversePages = true
		e.ended = false
		// nothing may load until the last page is known
		e.busy = needsLastPage
	default:
		e.currentPage = current
		e.nextPage = current - 1
		e.pageBase = current + 1
		e.ended = e.nextPage == 0
	}
	return needsLastPage, nil
}

// findLastPage reads the true last page from the "last" route and copies
// its counter into the live one.
func (e *Engine) findLastPage(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "findLastPage")
	defer span.End()

	doc, err := e.site.GetDocument(ctx, e.searchUrl+"last")

	e.mu.Lock()
	defer e.mu.Unlock()
	e.busy = false
	if err != nil {
		return err
	}

	lastPag, err := pagination.Find(doc)
	if err != nil {
		return err
	}
	results, err := pagination.ReadResults(lastPag)
	if err != nil {
		return err
	}
	pagination.SetFrom(e.pagination, results.From)
	pagination.SetTo(e.pagination, results.To)

	perPage := 25
	e.currentPage = int(math.Ceil(float64(results.From) / float64(perPage)))
	e.pageBase = e.currentPage + 1
	e.nextPage = e.currentPage
	span.SetAttributes(attribute.Int("last_page", e.currentPage))
	return nil
}

func (e *Engine) activateLocked(ctx context.Context) {
	initial := e.rows.Children()
	if initial.Length() > 0 {
		initial.AddClass(pageClass(e.currentPage))
		e.pages = append(e.pages, e.currentPage)
	}
	nav := pagination.Navigation(e.pagination)
	if nav.Length() > 0 {
		pagination.FixFirstPageLinks(nav)
		e.appendLastPageLinkLocked(nav)
	}
	e.pageIndex = e.currentPage
	e.decorateLocked(ctx)
}

// lastPage is derived from the counter since listings show 25 rows a page.
func (e *Engine) lastPageLocked() (int, bool) {
	results, err := pagination.ReadResults(e.pagination)
	if err != nil || results.Total == 0 {
		return 0, false
	}
	return (results.Total + 24) / 25, true
}

func (e *Engine) appendLastPageLinkLocked(nav *goquery.Selection) {
	if !e.opts.LastPageLink {
		return
	}
	lastPage, ok := e.lastPageLocked()
	if !ok || lastPage == e.pageIndex {
		return
	}
	lastLink := nav.Children().Last()
	if lastLink.HasClass(pagination.SelectedClass) {
		return
	}
	if _, ok := pagination.LastPageLink(nav); ok {
		return
	}
	nav.AppendHtml(fmt.Sprintf(
		`<a href="%s%d" data-page-number="%d"><span>Last</span><i class="fa fa-angle-double-right"></i></a>`,
		e.searchUrl, lastPage, lastPage,
	))
}

func (e *Engine) guardLocked(t trigger) error {
	switch {
	case pagination.NoResults(e.pagination):
		return ErrNoResults
	case e.stopped:
		return ErrStopped
	case e.busy:
		return ErrBusy
	case e.paused && !e.reversePages:
		return ErrPaused
	case e.ended:
		return ErrEnded
	}
	switch t {
	case triggerAuto:
		if e.continuous || e.step {
			return ErrModeActive
		}
	case triggerMode:
		if !e.continuous && !e.step {
			return ErrNoMode
		}
	}
	if e.limited && e.limitCount <= 0 {
		return ErrLimitReached
	}
	return nil
}

// load runs load cycles until the state machine says to stop. Refusals
// after the first cycle end the run quietly.
func (e *Engine) load(ctx context.Context, t trigger) error {
	first := true
	for {
		next, err := e.loadOnce(ctx, t)
		if err != nil {
			if !first && refused(err) {
				return nil
			}
			return err
		}
		first = false

		switch next {
		case afterContinue:
			t = triggerMode
		case afterAuto:
			t = triggerAuto
		default:
			return nil
		}
	}
}

func (e *Engine) setBusyLocked(busy bool) {
	e.busy = busy
	if e.hooks.Loading != nil {
		e.hooks.Loading(busy)
	}
}

func (e *Engine) loadOnce(ctx context.Context, t trigger) (after, error) {
	e.mu.Lock()
	err := e.guardLocked(t)
	if err != nil {
		e.mu.Unlock()
		return afterStop, err
	}
	if e.limited {
		e.limitCount--
	}
	e.setBusyLocked(true)
	page := e.nextPage
	path := e.searchUrl + strconv.Itoa(page)
	e.mu.Unlock()

	ctx, span := tracer.Start(ctx, "loadNext")
	defer span.End()
	span.SetAttributes(attribute.Int("page", page))

	slog.DebugContext(ctx, "loading page", "page", page, "path", path)
	doc, err := e.site.GetDocument(ctx, path)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.setBusyLocked(false)
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch page")
		return afterStop, err
	}

	n, lastSelected, err := e.spliceLocked(ctx, doc, page)
	if err != nil {
		e.setBusyLocked(false)
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to splice page")
		return afterStop, err
	}
	pagesLoaded.Add(ctx, 1)
	rowsSpliced.Add(ctx, int64(n), metric.WithAttributes(attribute.Bool("reverse", e.reverse)))
	if e.hooks.PageLoaded != nil {
		e.hooks.PageLoaded(page, n)
	}

	next := e.advanceLocked(t, lastSelected)
	slog.DebugContext(ctx, "loaded page", "page", page, "rows", n, "next_page", e.nextPage, "ended", e.ended)
	return next, nil
}

// spliceLocked moves the fetched page's rows to the end of the live list.
func (e *Engine) spliceLocked(ctx context.Context, doc *goquery.Document, page int) (n int, lastSelected bool, err error) {
	fetched, err := pagination.Find(doc)
	if err != nil {
		return 0, false, fmt.Errorf("page %d: %w", page, err)
	}
	source := pagination.RowContainer(fetched)
	fetchedNav := pagination.Navigation(fetched)
	snapshot := pagination.Snapshot(fetched)

	if e.reversePages {
		e.paginations[0] = snapshot
		e.swapNavigationLocked(snapshot)
		e.reversePages = false
		if e.opts.ModifyUrl {
			e.rewriteLocationLocked(e.currentPage)
		}
		// the counter counts down from one past the last row
		results, err := pagination.ReadResults(e.pagination)
		if err == nil {
			pagination.SetFrom(e.pagination, results.To+1)
		}
	} else {
		e.paginations = append(e.paginations, snapshot)
	}

	rows := source.Children()
	n = rows.Length()
	rows.AddClass(pageClass(page))
	if e.opts.Dividers {
		e.rows.AppendHtml(fmt.Sprintf(
			`<div class="page__heading %s"><div class="page__heading__breadcrumbs"><a href="%s%d">Page %d</a></div></div>`,
			dividerClass, e.searchUrl, page, page,
		))
	}
	e.rows.AppendSelection(rows)
	e.pages = append(e.pages, page)

	e.decorateLocked(ctx)
	e.updateCounterLocked(ctx, n, 0, false)
	return n, pagination.LastLinkSelected(fetchedNav), nil
}

func (e *Engine) advanceLocked(t trigger, lastSelected bool) after {
	if e.reverse {
		e.nextPage--
		e.setBusyLocked(false)
		if e.nextPage <= 0 {
			e.ended = true
			return afterStop
		}
	} else {
		e.nextPage++
		e.setBusyLocked(false)
		if lastSelected {
			e.ended = true
			return afterStop
		}
	}

	switch {
	case e.paused || e.step:
		return afterStop
	case e.continuous:
		return afterContinue
	case t == triggerMode:
		return afterStop
	case e.intersecting:
		return afterAuto
	}
	return afterStop
}

// updateCounterLocked keeps "Displaying X to Y of Z" in line with the rows
// on screen. Reversed listings grow upwards so X moves instead of Y.
func (e *Engine) updateCounterLocked(ctx context.Context, n, oldN int, refresh bool) {
	if pagination.SaysNoResults(e.pagination) {
		pagination.SynthesizeResults(e.pagination, n)
		return
	}
	var err error
	if e.reverse && !refresh {
		err = pagination.AddFrom(e.pagination, -n)
	} else {
		err = pagination.AddTo(e.pagination, n-oldN)
	}
	if err != nil {
		slog.WarnContext(ctx, "failed to update result counter", "err", err)
	}
}

func (e *Engine) swapNavigationLocked(snapshot string) {
	nav := pagination.Navigation(e.pagination)
	if nav.Length() == 0 {
		e.pagination.AppendHtml(`<div class="pagination__navigation"></div>`)
		nav = pagination.Navigation(e.pagination)
	}
	nav.SetHtml(snapshot)
	pagination.FixFirstPageLinks(nav)
	e.appendLastPageLinkLocked(nav)
}

func (e *Engine) rewriteLocationLocked(page int) {
	rewritten := pagination.RewriteURL(e.location, page, e.opts.root())
	u, err := url.Parse(rewritten)
	if err != nil {
		slog.Warn("failed to parse rewritten url", "url", rewritten, "err", err)
		return
	}
	e.location = u
	if e.hooks.NavigationChanged != nil {
		e.hooks.NavigationChanged(page, rewritten)
	}
}
