package endless

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"sgassist/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// decorateLocked prepares newly inserted rows: removable rows get an id,
// ads are pushed below the list and the table is sorted.
func (e *Engine) decorateLocked(ctx context.Context) {
	e.rows.Find(".table__row-inner-wrap").Each(func(_ int, row *goquery.Selection) {
		if _, ok := row.Attr(rowIdAttr); ok {
			return
		}
		if row.ChildrenFiltered(".table__remove-default").Length() == 0 {
			return
		}
		e.rowSeq++
		row.SetAttr(rowIdAttr, strconv.Itoa(e.rowSeq))
	})

	if e.opts.AdSelector != "" {
		ads := e.rows.Find(e.opts.AdSelector)
		if ads.Length() > 0 {
			e.rows.AppendSelection(ads)
		}
	}

	if e.opts.Sort != nil && !e.opts.Dividers {
		e.sortLocked()
	}
	slog.DebugContext(ctx, "decorated rows", "removable", e.rowSeq)
}

type sortKey struct {
	text   string
	number float64
	isNum  bool
}

func (e *Engine) sortKeyOf(row *goquery.Selection) sortKey {
	cell := row
	if e.opts.Sort.Selector != "" {
		cell = row.Find(e.opts.Sort.Selector).First()
	}
	text := strings.TrimSpace(cell.Text())
	if e.opts.Sort.Attribute != "" {
		text = cell.AttrOr(e.opts.Sort.Attribute, "")
	}
	number, err := strconv.ParseFloat(strings.ReplaceAll(text, ",", ""), 64)
	return sortKey{text: text, number: number, isNum: err == nil}
}

func (e *Engine) sortLocked() {
	rows := e.rows.Children()
	keys := make(map[int]sortKey, rows.Length())
	order := make([]int, rows.Length())
	rows.Each(func(i int, row *goquery.Selection) {
		keys[i] = e.sortKeyOf(row)
		order[i] = i
	})

	sort.SliceStable(order, func(a, b int) bool {
		ka, kb := keys[order[a]], keys[order[b]]
		if e.opts.Sort.Descending {
			ka, kb = kb, ka
		}
		if ka.isNum && kb.isNum {
			return ka.number < kb.number
		}
		return ka.text < kb.text
	})

	for _, i := range order {
		e.rows.AppendNodes(rows.Get(i))
	}
}

// Removable lists the ids of rows that can be removed with RemoveEntry.
func (e *Engine) Removable() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var ids []string
	e.rows.Find("[" + rowIdAttr + "]").Each(func(_ int, row *goquery.Selection) {
		if row.HasClass("is-faded") {
			return
		}
		ids = append(ids, row.AttrOr(rowIdAttr, ""))
	})
	return ids
}

// RemoveEntry submits the hidden inputs of a row to hide it from the
// listing. On success the row is faded and the points indicator updated.
func (e *Engine) RemoveEntry(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "RemoveEntry")
	defer span.End()
	span.SetAttributes(attribute.String("row", id))

	e.mu.Lock()
	row := e.rows.Find(fmt.Sprintf(`[%s="%s"]`, rowIdAttr, id)).First()
	if row.Length() == 0 {
		e.mu.Unlock()
		return fmt.Errorf("no removable row %q", id)
	}
	buttons := removalButtons(row)
	buttons.normal.AddClass("is-hidden")
	buttons.loading.RemoveClass("is-hidden")
	form := htmlutil.FormValues(row)
	e.mu.Unlock()

	res, err := e.site.PostAjax(ctx, form)

	e.mu.Lock()
	defer e.mu.Unlock()
	buttons.loading.AddClass("is-hidden")
	if err != nil {
		buttons.normal.RemoveClass("is-hidden")
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to remove entry")
		return err
	}
	if !res.Success() {
		buttons.normal.RemoveClass("is-hidden")
		err = fmt.Errorf("entry was not removed: %s", res.Msg)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	row.AddClass("is-faded")
	buttons.complete.RemoveClass("is-hidden")
	if res.Points != "" {
		e.doc.Find(".nav__points").SetText(string(res.Points))
	}
	return nil
}

type removal struct {
	normal   *goquery.Selection
	loading  *goquery.Selection
	complete *goquery.Selection
}

func removalButtons(row *goquery.Selection) removal {
	normal := row.ChildrenFiltered(".table__remove-default").First()
	loading := normal.Next()
	return removal{
		normal:   normal,
		loading:  loading,
		complete: loading.Next(),
	}
}
