package mgc

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strconv"

	"sgassist/lib/htmlutil"
	"sgassist/lib/kvstore"

	"go.opentelemetry.io/otel/codes"
)

// The attach flow spans several requests, each step leaves a flag behind
// for the next one so an interrupted flow picks up where it stopped.
//
//	1: the discussion is about to be created (title and description)
//	2: the discussion was created and must be closed (code)
//	3: the discussion was closed and must be attached (code)
//	4: giveaways were created, the train link must be written (first wagon)
//	5: the train link was written, the discussion must be reopened (code)
//	6: the discussion was reopened
const attachSteps = 6

var (
	discussionCode = regexp.MustCompile(`^(?:.*/discussion/)?([A-Za-z0-9]{5})(?:/.*)?$`)
	trainFormat    = regexp.MustCompile(`\[ESGST-T\](.+?)\[/ESGST-T\]`)
)

func attachStepKey(step int) string {
	return "mgcAttach_step" + strconv.Itoa(step)
}

func discussionPath(code string) string {
	return fmt.Sprintf("/discussion/%s/", code)
}

type newDiscussion struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Attacher ties a discussion to the queue so every wagon can link back to
// it, and points the discussion at the train once it exists.
type Attacher struct {
	site  Site
	queue *Queue
}

func NewAttacher(site Site, queue *Queue) *Attacher {
	return &Attacher{site: site, queue: queue}
}

func (a *Attacher) store() kvstore.Store {
	return a.queue.store
}

// AttachExisting attaches a discussion given by its code or url. The
// discussion must exist.
func (a *Attacher) AttachExisting(ctx context.Context, ref string) (string, error) {
	ctx, span := tracer.Start(ctx, "AttachExisting")
	defer span.End()

	m := discussionCode.FindStringSubmatch(ref)
	if m == nil {
		return "", fmt.Errorf("%q is not a discussion code or url", ref)
	}
	code := m[1]
	_, err := a.site.Get(ctx, discussionPath(code))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch discussion")
		return "", fmt.Errorf("discussion %s: %w", code, err)
	}
	return code, a.queue.AttachDiscussion(ctx, code)
}

// AttachNew creates a discussion, closes it until the train is ready and
// attaches it.
func (a *Attacher) AttachNew(ctx context.Context, title, description string) (string, error) {
	ctx, span := tracer.Start(ctx, "AttachNew")
	defer span.End()

	err := kvstore.SetJSON(ctx, a.store(), attachStepKey(1), newDiscussion{
		Title:       title,
		Description: description,
	})
	if err != nil {
		return "", err
	}
	err = a.Resume(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to attach new discussion")
		return "", err
	}
	return a.queue.Discussion(), nil
}

// Finish writes the link to the first wagon into the attached discussion
// and reopens it.
func (a *Attacher) Finish(ctx context.Context, firstWagon string) error {
	ctx, span := tracer.Start(ctx, "Finish")
	defer span.End()

	if a.queue.Discussion() == "" {
		return nil
	}
	err := a.store().Set(ctx, attachStepKey(4), firstWagon)
	if err != nil {
		return err
	}
	err = a.Resume(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to finish discussion")
	}
	return err
}

// Pending is the step the flow stopped at, 0 when nothing is pending.
func (a *Attacher) Pending(ctx context.Context) (int, string, error) {
	for step := 1; step <= attachSteps; step++ {
		value, ok, err := a.store().Get(ctx, attachStepKey(step))
		if err != nil {
			return 0, "", err
		}
		if ok {
			return step, value, nil
		}
	}
	return 0, "", nil
}

// Resume runs the pending steps until none is left.
func (a *Attacher) Resume(ctx context.Context) error {
	for {
		step, value, err := a.Pending(ctx)
		if err != nil {
			return err
		}
		if step == 0 {
			return nil
		}
		slog.DebugContext(ctx, "attach step", "step", step)

		switch step {
		case 1:
			err = a.create(ctx)
		case 2:
			err = a.close(ctx, value)
		case 3:
			err = a.attach(ctx, value)
		case 4:
			err = a.link(ctx, value)
		case 5:
			err = a.reopen(ctx, value)
		case 6:
			err = a.done(ctx)
		}
		if err != nil {
			return fmt.Errorf("attach step %d: %w", step, err)
		}
	}
}

// advance consumes step and leaves value behind for the next one.
func (a *Attacher) advance(ctx context.Context, step int, value string) error {
	err := a.store().Set(ctx, attachStepKey(step+1), value)
	if err != nil {
		return err
	}
	return a.store().Delete(ctx, attachStepKey(step))
}

func (a *Attacher) create(ctx context.Context) error {
	d, _, err := kvstore.GetJSON[newDiscussion](ctx, a.store(), attachStepKey(1))
	if err != nil {
		return err
	}
	page, err := a.site.PostForm(ctx, "/discussions/new", url.Values{
		"do":          {"edit_discussion"},
		"title":       {d.Title},
		"description": {d.Description},
	})
	if err != nil {
		return err
	}
	m := discussionCode.FindStringSubmatch(page.Path())
	if m == nil {
		return fmt.Errorf("the site did not create the discussion")
	}
	return a.advance(ctx, 1, m[1])
}

func (a *Attacher) close(ctx context.Context, code string) error {
	_, err := a.site.PostForm(ctx, discussionPath(code), url.Values{"do": {"close_discussion"}})
	if err != nil {
		return err
	}
	return a.advance(ctx, 2, code)
}

func (a *Attacher) attach(ctx context.Context, code string) error {
	err := a.queue.AttachDiscussion(ctx, code)
	if err != nil {
		return err
	}
	return a.store().Delete(ctx, attachStepKey(3))
}

func (a *Attacher) link(ctx context.Context, firstWagon string) error {
	code := a.queue.Discussion()
	if code == "" {
		return fmt.Errorf("no discussion is attached")
	}
	page, err := a.site.Get(ctx, discussionPath(code))
	if err != nil {
		return err
	}
	form := page.Doc.Find(`form[action="/discussions/edit"]`).First()
	if form.Length() == 0 {
		return fmt.Errorf("discussion %s cannot be edited", code)
	}
	values := htmlutil.FormValues(form)
	values.Set("description", trainFormat.ReplaceAllString(
		values.Get("description"),
		fmt.Sprintf("[$1](%s)", firstWagon),
	))
	_, err = a.site.PostForm(ctx, "/discussions/edit", values)
	if err != nil {
		return err
	}
	return a.advance(ctx, 4, code)
}

func (a *Attacher) reopen(ctx context.Context, code string) error {
	_, err := a.site.PostForm(ctx, discussionPath(code), url.Values{"do": {"reopen_discussion"}})
	if err != nil {
		return err
	}
	return a.advance(ctx, 5, code)
}

func (a *Attacher) done(ctx context.Context) error {
	slog.InfoContext(ctx, "train created with success", "discussion", a.queue.Discussion())
	err := a.store().Delete(ctx, attachStepKey(6))
	if err != nil {
		return err
	}
	return a.queue.DetachDiscussion(ctx)
}
