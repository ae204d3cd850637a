package endless

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"sgassist/lib/scrapers/steamgifts/pagination"
)

type TargetKind int

const (
	// Boundary is the native pagination element under the list.
	Boundary TargetKind = iota
	// PageGroup is the last row of a loaded page.
	PageGroup
)

// Entry is one visibility change reported by the presentation layer.
type Entry struct {
	Kind TargetKind
	// Page is the page a PageGroup target belongs to.
	Page         int
	Intersecting bool
	// ScrolledPast is set when a target stopped intersecting because it
	// moved above the viewport.
	ScrolledPast bool
}

func (e Entry) key() string {
	if e.Kind == Boundary {
		return "boundary"
	}
	return "page-" + strconv.Itoa(e.Page)
}

// Observe feeds visibility changes to the engine. The first report for a
// target is ignored unless it is intersecting, since it only describes
// where the target was when observation began.
func (e *Engine) Observe(ctx context.Context, entries ...Entry) error {
	var errs []error
	for _, entry := range entries {
		e.mu.Lock()
		if !e.seen[entry.key()] {
			e.seen[entry.key()] = true
			if !entry.Intersecting {
				e.mu.Unlock()
				continue
			}
		}

		if entry.Kind == Boundary {
			e.intersecting = entry.Intersecting
			e.mu.Unlock()
			if entry.Intersecting {
				err := e.load(ctx, triggerAuto)
				if err != nil && !refused(err) {
					errs = append(errs, err)
				}
			}
			continue
		}

		switch {
		case entry.Intersecting:
			e.changePaginationLocked(entry.Page)
		case entry.ScrolledPast:
			if e.reverse {
				e.changePaginationLocked(entry.Page - 1)
			} else {
				e.changePaginationLocked(entry.Page + 1)
			}
		}
		e.mu.Unlock()
	}
	return errors.Join(errs...)
}

// changePaginationLocked shows the navigation captured when page was
// loaded and makes it the page a refresh targets.
func (e *Engine) changePaginationLocked(page int) bool {
	corrected := page - e.pageBase
	if e.reverse {
		corrected = e.pageBase - page
	}
	if corrected < 1 || corrected > len(e.paginations) {
		return false
	}
	snapshot := e.paginations[corrected-1]
	if snapshot == "" {
		return false
	}
	e.pageIndex = page

	current, _ := pagination.Navigation(e.pagination).Html()
	if current == snapshot {
		return true
	}
	e.swapNavigationLocked(snapshot)
	if e.opts.ModifyUrl {
		e.rewriteLocationLocked(page)
	} else if e.hooks.NavigationChanged != nil {
		e.hooks.NavigationChanged(page, e.location.String())
	}
	return true
}

// GoToPage handles a click on a navigation link. Pages already spliced
// into the list are shown in place, for any other page the link's href
// is returned to navigate to.
func (e *Engine) GoToPage(page int) (shown bool, href string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	group := e.rows.ChildrenFiltered("." + pageClass(page)).Not(".is-hidden")
	if group.Length() > 0 {
		e.changePaginationLocked(page)
		return true, ""
	}

	link := pagination.Navigation(e.pagination).Find(fmt.Sprintf(`[data-page-number="%d"]`, page)).First()
	if href, ok := link.Attr("href"); ok {
		return false, href
	}
	return false, e.searchUrl + strconv.Itoa(page)
}
