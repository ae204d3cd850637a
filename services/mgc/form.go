package mgc

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"sgassist/lib/scrapers/steamgifts/core"
	"sgassist/lib/timezone"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/codes"
)

const newGiveawayPath = "/giveaways/new"

// Site is the subset of the site client the creator drives.
type Site interface {
	Get(ctx context.Context, path string) (core.Page, error)
	PostForm(ctx context.Context, path string, form url.Values) (core.Page, error)
	PostAjax(ctx context.Context, form url.Values) (core.AjaxResponse, error)
}

// Form is the giveaway creation form as the site rendered it: the values
// it is prefilled with and the names behind its country and group ids.
type Form struct {
	XsrfToken string
	Defaults  Values
	Countries map[string]string
	Groups    map[string]string
	// Timezone is the offset submitted with every giveaway, in minutes
	// behind UTC.
	Timezone int
}

func LoadForm(ctx context.Context, site Site, clock timezone.Clock) (Form, error) {
	ctx, span := tracer.Start(ctx, "LoadForm")
	defer span.End()

	page, err := site.Get(ctx, newGiveawayPath)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch creation form")
		return Form{}, err
	}
	form, err := ParseForm(page.Doc)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read creation form")
		return Form{}, err
	}
	form.Timezone = timezone.OffsetMinutes(clock())
	return form, nil
}

func ParseForm(doc *goquery.Document) (Form, error) {
	rows := doc.Find(".form__rows").First()
	if rows.Length() == 0 {
		return Form{}, fmt.Errorf("page has no giveaway creation form")
	}
	field := func(name string) string {
		sel := rows.Find(fmt.Sprintf(`[name="%s"]`, name)).First()
		if goquery.NodeName(sel) == "textarea" {
			return sel.Text()
		}
		return strings.TrimSpace(sel.AttrOr("value", ""))
	}

	copies, _ := strconv.Atoi(field("copies"))
	level, _ := strconv.Atoi(field("contributor_level"))
	form := Form{
		XsrfToken: doc.Find(`[name="xsrf_token"]`).First().AttrOr("value", ""),
		Defaults: Values{
			GameId:      field("game_id"),
			GameType:    GameType(field("type")),
			Copies:      copies,
			Keys:        strings.Split(field("key_string"), "\n"),
			Countries:   strings.Fields(field("country_item_string")),
			Region:      field("region_restricted") == "1",
			StartTime:   field("start_time"),
			EndTime:     field("end_time"),
			WhoCanEnter: WhoCanEnter(field("who_can_enter")),
			Whitelist:   field("whitelist") == "1",
			Groups:      strings.Fields(field("group_item_string")),
			Level:       level,
			Description: field("description"),
		},
		Countries: itemNames(rows, "country_item_string"),
		Groups:    itemNames(rows, "group_item_string"),
	}
	if form.Defaults.GameType == "" {
		form.Defaults.GameType = Gift
	}
	form.Defaults = form.Defaults.normalize()
	return form, nil
}

func itemNames(rows *goquery.Selection, input string) map[string]string {
	names := map[string]string{}
	rows.Find(fmt.Sprintf(`[data-input="%s"] [data-item-id]`, input)).Each(func(_ int, item *goquery.Selection) {
		names[item.AttrOr("data-item-id", "")] = item.AttrOr("data-name", "")
	})
	return names
}

func sortedIds(names map[string]string) []string {
	ids := make([]string, 0, len(names))
	for id := range names {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// idsBySuffix maps each wanted name to the first item whose name ends
// with it, names matching nothing are dropped.
func idsBySuffix(names map[string]string, wanted []string) []string {
	ids := sortedIds(names)
	var out []string
	for _, want := range wanted {
		for _, id := range ids {
			if strings.HasSuffix(names[id], want) {
				out = append(out, id)
				break
			}
		}
	}
	return out
}

func namesOf(names map[string]string, ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		name, ok := names[id]
		if !ok {
			name = id
		}
		out = append(out, name)
	}
	return out
}

func (f Form) countryNames(ids []string) []string {
	return namesOf(f.Countries, ids)
}

func (f Form) groupNames(ids []string) []string {
	return namesOf(f.Groups, ids)
}
