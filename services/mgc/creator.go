package mgc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"sgassist/lib/htmlutil"
	"sgassist/lib/scrapers/steamgifts/core"
	"sgassist/lib/timezone"

	"github.com/PuerkitoBio/goquery"
	"github.com/PuerkitoBio/purell"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// DuplicateWait is how long the site blocks an identical giveaway.
const DuplicateWait = 120 * time.Second

// duplicateGuard matches the sentence the site blocks an identical
// giveaway with, however its markup wraps the words.
var duplicateGuard = regexp.MustCompile(strings.Join(strings.Fields(regexp.QuoteMeta(
	"Error. You already posted an identical giveaway within the past 2 minutes. To prevent double posts, it's been blocked.",
)), `\s+`))

// startSlack is how far in the future a start time must be to be kept.
const startSlack = 5 * time.Second

// CreatedGiveaway is a giveaway a creation run made.
type CreatedGiveaway struct {
	EntryId uuid.UUID `json:"entryId"`
	Game    string    `json:"game"`
	Url     string    `json:"url"`
	// Html is the giveaway heading as the site rendered it.
	Html string `json:"html"`
}

type CreateResult struct {
	Created  []CreatedGiveaway
	Rejected []*RemoteRejectionError
}

type Creator struct {
	site     Site
	queue    *Queue
	form     Form
	prompter Prompter
	clock    timezone.Clock
	opts     Options
}

func NewCreator(site Site, queue *Queue, form Form, prompter Prompter, clock timezone.Clock, opts Options) *Creator {
	if clock == nil {
		clock = time.Now
	}
	return &Creator{
		site:     site,
		queue:    queue,
		form:     form,
		prompter: prompter,
		clock:    clock,
		opts:     opts,
	}
}

func (c *Creator) Summary() []SummaryRow {
	return summarize(c.queue.entries, c.form)
}

// CreateAll creates every queued giveaway in order once the user approved
// the summary. A rejected giveaway is recorded on its entry and the run
// goes on with the next one. With trains enabled the created giveaways
// are linked afterwards.
func (c *Creator) CreateAll(ctx context.Context) (CreateResult, error) {
	ctx, span := tracer.Start(ctx, "CreateAll")
	defer span.End()

	if c.queue.Len() == 0 {
		return CreateResult{}, ErrEmptyQueue
	}
	ok, err := c.prompter.Review(ctx, c.Summary())
	if err != nil {
		return CreateResult{}, err
	}
	if !ok {
		return CreateResult{}, ErrCancelled
	}

	result := CreateResult{}
	for _, entry := range c.queue.Entries() {
		if entry.Done() {
			continue
		}
		created, err := c.create(ctx, entry)
		var rejection *RemoteRejectionError
		switch {
		case errors.As(err, &rejection):
			giveawaysFailed.Add(ctx, 1)
			slog.WarnContext(ctx, "giveaway was rejected", "game", entry.Values.GameName, "errors", rejection.Errors)
			c.queue.setStatus(entry.Id, Failed, rejection.Errors)
			result.Rejected = append(result.Rejected, rejection)
		case err != nil && ctx.Err() != nil:
			span.RecordError(err)
			span.SetStatus(codes.Error, "creation interrupted")
			return result, errors.Join(err, c.queue.sync(ctx))
		case err != nil:
			// a failed request is recorded like a rejection
			giveawaysFailed.Add(ctx, 1)
			slog.WarnContext(ctx, "failed to create giveaway", "game", entry.Values.GameName, "err", err)
			rejection = &RemoteRejectionError{Game: entry.Values.GameName, Errors: []string{err.Error()}}
			c.queue.setStatus(entry.Id, Failed, rejection.Errors)
			result.Rejected = append(result.Rejected, rejection)
		default:
			giveawaysCreated.Add(ctx, 1)
			c.queue.setStatus(entry.Id, Created, nil)
			result.Created = append(result.Created, created)
		}
	}
	span.SetAttributes(
		attribute.Int("created", len(result.Created)),
		attribute.Int("rejected", len(result.Rejected)),
	)

	err = c.queue.setCreated(ctx, result.Created)
	if err != nil {
		return result, err
	}
	if c.opts.CreateTrain {
		err = LinkTrain(ctx, c.site, c.queue, result.Created, c.opts)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to link train")
			return result, errors.Join(err, c.queue.sync(ctx))
		}
	}
	err = c.queue.finish(ctx)
	if err != nil {
		return result, err
	}
	if c.queue.Discussion() != "" && len(result.Created) > 0 {
		err = NewAttacher(c.site, c.queue).Finish(ctx, result.Created[0].Url)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to link discussion")
			return result, err
		}
	}
	return result, nil
}

// create posts one entry, waiting out the duplicate guard as often as the
// site answers with it.
func (c *Creator) create(ctx context.Context, entry Entry) (CreatedGiveaway, error) {
	ctx, span := tracer.Start(ctx, "create")
	defer span.End()
	span.SetAttributes(attribute.String("game", entry.Values.GameName))

	for {
		payload := entry.Values.Payload(c.form.XsrfToken, c.form.Timezone)
		payload.Set("start_time", c.correctStart(entry.Values.StartTime))

		page, err := c.site.PostForm(ctx, newGiveawayPath, payload)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "creation request failed")
			return CreatedGiveaway{}, err
		}

		if page.FinalUrl != nil && page.Path() != newGiveawayPath {
			return c.created(entry, page), nil
		}

		if duplicateGuard.MatchString(page.Doc.Text()) {
			duplicateWaits.Add(ctx, 1)
			slog.InfoContext(ctx, "waiting out the duplicate giveaway guard", "game", entry.Values.GameName)
			err = c.prompter.Countdown(ctx, fmt.Sprintf(
				"Waiting %s to create another identical giveaway. Create a single multiple-copy giveaway for the game to skip this.",
				DuplicateWait,
			), DuplicateWait)
			if err != nil {
				return CreatedGiveaway{}, err
			}
			continue
		}

		rejection := &RemoteRejectionError{Game: entry.Values.GameName}
		page.Doc.Find(".form__row__error").Each(func(_ int, sel *goquery.Selection) {
			rejection.Errors = append(rejection.Errors, htmlutil.CleanText(sel))
		})
		if len(rejection.Errors) == 0 {
			rejection.Errors = []string{"the site did not create the giveaway"}
		}
		span.SetStatus(codes.Error, rejection.Error())
		return CreatedGiveaway{}, rejection
	}
}

func (c *Creator) created(entry Entry, page core.Page) CreatedGiveaway {
	location := ""
	if page.FinalUrl != nil {
		location = page.FinalUrl.String()
	}
	normalized, err := purell.NormalizeURLString(location, purell.FlagsSafe|purell.FlagRemoveDuplicateSlashes)
	if err == nil {
		location = normalized
	}
	return CreatedGiveaway{
		EntryId: entry.Id,
		Game:    entry.Values.GameName,
		Url:     location,
		Html:    htmlutil.OuterHtml(page.Doc.Find(".featured__heading").First()),
	}
}

// correctStart moves a start time that has already passed, give or take
// a few seconds, to a few seconds from now.
func (c *Creator) correctStart(start string) string {
	now := c.clock()
	t, err := timezone.Parse(start, now.Location())
	if err != nil {
		return start
	}
	earliest := now.Add(startSlack)
	if t.Before(earliest) {
		return timezone.Format(earliest)
	}
	return start
}
