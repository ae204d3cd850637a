package games

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"sgassist/lib/scrapers/steamgifts/core"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("sgassist.scrapers.steamgifts.games")

type SteamType string

const (
	SteamApp SteamType = "apps"
	SteamSub SteamType = "subs"
)

// Singular is the form used in store urls, "app" or "sub".
func (t SteamType) Singular() string {
	return strings.TrimSuffix(string(t), "s")
}

type Steam struct {
	Type SteamType `json:"type"`
	Id   string    `json:"id"`
}

func (s Steam) Valid() bool {
	return s.Type != "" && s.Id != ""
}

func (s Steam) StoreUrl() string {
	return fmt.Sprintf("http://store.steampowered.com/%s/%s", s.Type.Singular(), s.Id)
}

// Game is a single autocomplete match. Id is the site's own game id which
// is what the creation form expects.
type Game struct {
	Id    string
	Name  string
	Steam Steam
}

var storeLinkRegex = regexp.MustCompile(`https?://.*?store\.steampowered\.com/(app|sub)/(\d+)`)

// ParseStoreLink extracts the steam type and id from any text containing
// a store link.
func ParseStoreLink(text string) (Steam, bool) {
	match := storeLinkRegex.FindStringSubmatch(text)
	if match == nil {
		return Steam{}, false
	}
	return Steam{Type: SteamType(match[1] + "s"), Id: match[2]}, true
}

type Ajax interface {
	PostAjax(ctx context.Context, form url.Values) (core.AjaxResponse, error)
}

// Search queries the creation form's game autocomplete with the steam id
// when one is known and the name otherwise.
func Search(ctx context.Context, client Ajax, name, steamId string) ([]Game, error) {
	ctx, span := tracer.Start(ctx, "Search")
	defer span.End()

	query := steamId
	if query == "" {
		query = name
	}
	span.SetAttributes(attribute.String("query", query))

	res, err := client.PostAjax(ctx, url.Values{
		"do":           {"autocomplete_giveaway_game"},
		"page_number":  {"1"},
		"search_query": {query},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "autocomplete request failed")
		return nil, err
	}

	games, err := ParseAutocomplete(res.Html)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse autocomplete")
		return nil, err
	}
	slog.DebugContext(ctx, "autocomplete", "query", query, "matches", len(games))
	return games, nil
}

func ParseAutocomplete(fragment string) ([]Game, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return nil, err
	}

	var games []Game
	doc.Find(".table__row-outer-wrap").Each(func(_ int, row *goquery.Selection) {
		game := Game{
			Id:   row.AttrOr("data-autocomplete-id", ""),
			Name: row.AttrOr("data-autocomplete-name", ""),
		}
		if game.Id == "" {
			return
		}
		row.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
			steam, ok := ParseStoreLink(a.AttrOr("href", ""))
			if ok {
				game.Steam = steam
			}
			return !ok
		})
		games = append(games, game)
	})
	return games, nil
}
