package endless

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"

	"sgassist/lib/scrapers/steamgifts/pagination"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

const pinnedSelector = ".pinned-giveaways__outer-wrap"

func (e *Engine) claimLocked() error {
	if e.busy {
		return ErrBusy
	}
	e.setBusyLocked(true)
	return nil
}

// Refresh re-fetches the page currently in view and replaces its rows.
func (e *Engine) Refresh(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Refresh")
	defer span.End()

	e.mu.Lock()
	err := e.claimLocked()
	page := e.pageIndex
	path := e.searchUrl + strconv.Itoa(page)
	e.mu.Unlock()
	if err != nil {
		return err
	}
	span.SetAttributes(attribute.Int("page", page))

	doc, err := e.site.GetDocument(ctx, path)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.setBusyLocked(false)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch page")
		return err
	}

	err = e.replacePageLocked(ctx, doc, page)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to replace page")
		return err
	}
	e.decorateLocked(ctx)
	e.refreshPinnedLocked(doc)
	return nil
}

// RefreshAll re-fetches every loaded page. The first loaded page is
// fetched first and the rest concurrently after it.
func (e *Engine) RefreshAll(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "RefreshAll")
	defer span.End()

	e.mu.Lock()
	err := e.claimLocked()
	anchor := e.pageBase + 1
	if e.reverse {
		anchor = e.pageBase - 1
	}
	var pages []int
	for i := 1; i < len(e.paginations); i++ {
		if e.reverse {
			pages = append(pages, e.pageBase-(i+1))
		} else {
			pages = append(pages, e.pageBase+(i+1))
		}
	}
	searchUrl := e.searchUrl
	e.mu.Unlock()
	if err != nil {
		return err
	}
	defer func() {
		e.mu.Lock()
		e.setBusyLocked(false)
		e.mu.Unlock()
	}()

	anchorDoc, err := e.site.GetDocument(ctx, searchUrl+strconv.Itoa(anchor))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch first page")
		return err
	}
	e.mu.Lock()
	err = e.replacePageLocked(ctx, anchorDoc, anchor)
	e.mu.Unlock()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to replace first page")
		return err
	}

	docs := make([]*goquery.Document, len(pages))
	group, groupCtx := errgroup.WithContext(ctx)
	for i, page := range pages {
		group.Go(func() error {
			doc, err := e.site.GetDocument(groupCtx, searchUrl+strconv.Itoa(page))
			if err != nil {
				return fmt.Errorf("page %d: %w", page, err)
			}
			docs[i] = doc
			return nil
		})
	}
	fetchErr := group.Wait()

	e.mu.Lock()
	defer e.mu.Unlock()
	for i, doc := range docs {
		if doc == nil {
			continue
		}
		err = e.replacePageLocked(ctx, doc, pages[i])
		if err != nil {
			slog.WarnContext(ctx, "failed to replace page", "page", pages[i], "err", err)
		}
	}
	e.decorateLocked(ctx)
	e.refreshPinnedLocked(anchorDoc)

	if fetchErr != nil {
		span.RecordError(fetchErr)
		span.SetStatus(codes.Error, "failed to fetch some pages")
	}
	return fetchErr
}

// replacePageLocked swaps the rows tagged with page for the fetched ones,
// in place, and updates the cached navigation when it changed.
func (e *Engine) replacePageLocked(ctx context.Context, doc *goquery.Document, page int) error {
	fetched, err := pagination.Find(doc)
	if err != nil {
		return fmt.Errorf("page %d: %w", page, err)
	}

	corrected := page - e.pageBase
	if e.reverse {
		corrected = e.pageBase - page
	}
	snapshot := pagination.Snapshot(fetched)
	if corrected >= 1 && corrected <= len(e.paginations) && snapshot != "" && e.paginations[corrected-1] != snapshot {
		e.paginations[corrected-1] = snapshot
		e.ended = false
	}

	rows := pagination.RowContainer(fetched).Children()
	n := rows.Length()
	rows.AddClass(pageClass(page))

	old := e.rows.ChildrenFiltered("." + pageClass(page))
	oldN := old.Length()
	if oldN > 0 {
		old.First().BeforeSelection(rows)
		old.Remove()
	} else {
		e.rows.AppendSelection(rows)
		if !slices.Contains(e.pages, page) {
			e.pages = append(e.pages, page)
		}
	}

	e.updateCounterLocked(ctx, n, oldN, true)
	slog.DebugContext(ctx, "replaced page", "page", page, "rows", n, "old_rows", oldN)
	return nil
}

func (e *Engine) refreshPinnedLocked(doc *goquery.Document) {
	live := e.doc.Find(pinnedSelector).First()
	fetched := doc.Find(pinnedSelector).First()
	if live.Length() == 0 || fetched.Length() == 0 {
		return
	}
	inner, err := fetched.Html()
	if err != nil {
		return
	}
	live.SetHtml(inner)
}
