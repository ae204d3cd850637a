package mgc

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var (
	pairFormat    = regexp.MustCompile(`\[ESGST-P\](.+?)\[/ESGST-P\](.+?)\[ESGST-N\](.+?)\[/ESGST-N\]`)
	singleFormat  = regexp.MustCompile(`\[ESGST-P\](.+?)\[/ESGST-P\]|\[ESGST-N\](.+?)\[/ESGST-N\]`)
	counterFormat = regexp.MustCompile(`\[ESGST-C\](.+?)\[/ESGST-C\]`)
	bumpFormat    = regexp.MustCompile(`\[ESGST-B\](.+?)\[/ESGST-B\]`)
	previousText  = regexp.MustCompile(`^(.*?)\[P\](.+?)\[/P\](.*?)$`)
	nextText      = regexp.MustCompile(`^(.*?)\[N\](.+?)\[/N\](.*?)$`)
	linkMarkers   = regexp.MustCompile(`\[/?[PN]\]`)
)

// replaceGroups is ReplaceAllStringFunc with the submatches passed in,
// groups that did not take part are empty.
func replaceGroups(re *regexp.Regexp, s string, fn func(groups []string) string) string {
	var b strings.Builder
	last := 0
	for _, loc := range re.FindAllStringSubmatchIndex(s, -1) {
		b.WriteString(s[last:loc[0]])
		groups := make([]string, len(loc)/2)
		for g := range groups {
			if loc[2*g] >= 0 {
				groups[g] = s[loc[2*g]:loc[2*g+1]]
			}
		}
		b.WriteString(fn(groups))
		last = loc[1]
	}
	b.WriteString(s[last:])
	return b.String()
}

// markdownLink links the [P]/[N] delimited part of text, or all of it.
func markdownLink(inner *regexp.Regexp, text, target string) string {
	if m := inner.FindStringSubmatch(text); m != nil {
		return fmt.Sprintf("%s[%s](%s)%s", m[1], m[2], target, m[3])
	}
	return fmt.Sprintf("[%s](%s)", text, target)
}

// LinkDescription fills the train formats of the description of wagon i
// out of the wagon urls: previous and next links, the counter and the
// bump link to discussion when there is one.
func LinkDescription(desc string, urls []string, i int, discussion string, opts Options) string {
	n := len(urls)
	hasPrevious := i > 0
	hasNext := i < n-1
	previous := func(text string) string {
		return markdownLink(previousText, text, urls[i-1])
	}
	next := func(text string) string {
		return markdownLink(nextText, text, urls[i+1])
	}

	desc = replaceGroups(pairFormat, desc, func(g []string) string {
		switch {
		case hasPrevious && hasNext:
			return previous(g[1]) + g[2] + next(g[3])
		case hasNext && opts.RemoveLinks:
			return next(g[3])
		case hasNext:
			return linkMarkers.ReplaceAllString(g[1], "") + g[2] + next(g[3])
		case hasPrevious && opts.RemoveLinks:
			return previous(g[1])
		case hasPrevious:
			return previous(g[1]) + g[2] + linkMarkers.ReplaceAllString(g[3], "")
		}
		return ""
	})
	desc = replaceGroups(singleFormat, desc, func(g []string) string {
		switch {
		case g[1] != "" && hasPrevious:
			return previous(g[1])
		case g[2] != "" && hasNext:
			return next(g[2])
		}
		return ""
	})
	desc = replaceGroups(counterFormat, desc, func(g []string) string {
		return fmt.Sprintf("%d%s%d", i+1, g[1], n)
	})
	desc = replaceGroups(bumpFormat, desc, func(g []string) string {
		if discussion == "" || (opts.BumpLast && i != n-1) {
			return ""
		}
		return fmt.Sprintf("[%s](/discussion/%s/)", g[1], discussion)
	})
	return desc
}

// LinkTrain rewrites the description of every created giveaway in turn,
// each one read back from the site right before it is edited. A single
// giveaway is not a train and is left alone.
func LinkTrain(ctx context.Context, site Site, queue *Queue, created []CreatedGiveaway, opts Options) error {
	ctx, span := tracer.Start(ctx, "LinkTrain")
	defer span.End()
	span.SetAttributes(attribute.Int("wagons", len(created)))

	if len(created) <= 1 {
		return nil
	}
	urls := make([]string, len(created))
	for i, wagon := range created {
		urls[i] = wagon.Url
	}

	for i, wagon := range created {
		page, err := site.Get(ctx, wagon.Url)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to fetch wagon")
			return fmt.Errorf("wagon %d: %w", i+1, err)
		}
		id := page.Doc.Find(`[name="giveaway_id"]`).First().AttrOr("value", "")
		if id == "" {
			return fmt.Errorf("wagon %d: page has no giveaway id", i+1)
		}
		desc := page.Doc.Find(`[name="description"]`).First().Text()

		linked := LinkDescription(desc, urls, i, queue.Discussion(), opts)
		res, err := site.PostAjax(ctx, url.Values{
			"do":          {"edit_giveaway_description"},
			"giveaway_id": {id},
			"description": {strings.TrimSpace(linked)},
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to edit wagon")
			return fmt.Errorf("wagon %d: %w", i+1, err)
		}
		if !res.Success() {
			err = fmt.Errorf("wagon %d: description was not saved: %s", i+1, res.Msg)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		queue.setStatus(wagon.EntryId, Connected, nil)
		slog.DebugContext(ctx, "linked wagon", "position", i+1, "of", len(created), "url", wagon.Url)
	}
	return nil
}
