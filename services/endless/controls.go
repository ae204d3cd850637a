package endless

import (
	"context"
	"errors"
	"log/slog"
)

// Step loads exactly one page regardless of visibility, then restores the
// previous pause state.
func (e *Engine) Step(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Step")
	defer span.End()

	e.mu.Lock()
	if e.step {
		e.mu.Unlock()
		return nil
	}
	e.step = true
	wasPaused := e.paused
	e.mu.Unlock()

	resumeErr := e.resume(ctx, true)
	loadErr := e.load(ctx, triggerMode)

	e.mu.Lock()
	e.step = false
	e.mu.Unlock()
	return errors.Join(resumeErr, loadErr, e.restore(ctx, wasPaused))
}

// Continuous loads pages back to back until the last page, a pause or the
// configured page cap.
func (e *Engine) Continuous(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Continuous")
	defer span.End()

	e.mu.Lock()
	if e.continuous {
		e.mu.Unlock()
		return nil
	}
	e.continuous = true
	wasPaused := e.paused
	e.mu.Unlock()

	resumeErr := e.resume(ctx, true)

	e.mu.Lock()
	if e.opts.ContinuousOnLoad {
		e.limited = true
		e.limitCount = e.opts.pageLimit()
	}
	e.mu.Unlock()

	loadErr := e.load(ctx, triggerMode)

	e.mu.Lock()
	e.limited = false
	e.limitCount = 0
	e.continuous = false
	e.mu.Unlock()
	return errors.Join(resumeErr, loadErr, e.restore(ctx, wasPaused))
}

func (e *Engine) restore(ctx context.Context, paused bool) error {
	if paused {
		return e.pause(ctx, true)
	}
	return e.resume(ctx, true)
}

func (e *Engine) Pause(ctx context.Context) error {
	return e.pause(ctx, true)
}

func (e *Engine) Resume(ctx context.Context) error {
	return e.resume(ctx, true)
}

func (e *Engine) pause(ctx context.Context, persist bool) error {
	e.mu.Lock()
	e.paused = true
	e.continuous = false
	e.mu.Unlock()

	if persist {
		err := e.settings.SetPaused(ctx, true)
		if err != nil {
			slog.WarnContext(ctx, "failed to persist pause state", "err", err)
			return err
		}
	}
	return nil
}

// resume unpauses and loads right away when the boundary is in view.
func (e *Engine) resume(ctx context.Context, persist bool) error {
	e.mu.Lock()
	e.paused = false
	intersecting := e.intersecting
	e.mu.Unlock()

	if persist {
		err := e.settings.SetPaused(ctx, false)
		if err != nil {
			slog.WarnContext(ctx, "failed to persist pause state", "err", err)
			return err
		}
	}
	if intersecting {
		err := e.load(ctx, triggerAuto)
		if err != nil && !refused(err) {
			return err
		}
	}
	return nil
}
