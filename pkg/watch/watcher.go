// Package watch re-evaluates the drop collection on an interval and tells
// the user, once per drop, when a drop becomes playable.
package watch

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/kass/echo-trails/pkg/metrics"
	"github.com/kass/echo-trails/pkg/models"
	"github.com/kass/echo-trails/pkg/unlock"
)

// DefaultInterval is the time between two ticks
const DefaultInterval = 5 * time.Second

// ErrTickInProgress is returned by Tick while another tick is running
var ErrTickInProgress = errors.New("previous tick still running")

// Source supplies the drop collection for each tick
type Source interface {
	FetchDrops(ctx context.Context) ([]models.RawDrop, error)
}

// Options tune a Watcher. Zero values select defaults.
type Options struct {
	Interval  time.Duration
	Evaluator unlock.Evaluator
	Logger    log.FieldLogger
	Metrics   *metrics.Recorder
	Now       func() time.Time
}

// TickResult describes one completed tick
type TickResult struct {
	ID       string
	Located  bool
	Report   unlock.Report
	Unlocked []unlock.Evaluation
	Notified []string
}

// Watcher runs ticks. At most one tick is in flight at a time.
type Watcher struct {
	source   Source
	locator  Locator
	notifier Notifier
	opts     Options

	running atomic.Bool
	wg      sync.WaitGroup

	mu       sync.Mutex
	notified map[string]struct{}
}

// New creates a Watcher
func New(source Source, locator Locator, notifier Notifier, opts Options) *Watcher {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Logger == nil {
		opts.Logger = log.StandardLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Watcher{
		source:   source,
		locator:  locator,
		notifier: notifier,
		opts:     opts,
		notified: make(map[string]struct{}),
	}
}

// Run ticks immediately and then every interval until ctx is cancelled.
// A tick that comes due while the previous one is still running is skipped.
func (w *Watcher) Run(ctx context.Context) error {
	w.opts.Logger.WithField("interval", w.opts.Interval).Info("Watching for unlocked drops")

	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	w.launch(ctx)
	for {
		select {
		case <-ctx.Done():
			w.wg.Wait()
			w.opts.Logger.Info("Watcher stopped")
			return nil
		case <-ticker.C:
			w.launch(ctx)
		}
	}
}

func (w *Watcher) launch(ctx context.Context) {
	if !w.running.CompareAndSwap(false, true) {
		w.opts.Logger.Debug("Previous tick still running, skipping")
		w.opts.Metrics.Tick("skipped", 0)
		return
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer w.running.Store(false)
		_, _ = w.tick(ctx)
	}()
}

// Tick runs one evaluation synchronously
func (w *Watcher) Tick(ctx context.Context) (TickResult, error) {
	if !w.running.CompareAndSwap(false, true) {
		return TickResult{}, ErrTickInProgress
	}
	defer w.running.Store(false)
	return w.tick(ctx)
}

// Reset forgets which drops were already announced
func (w *Watcher) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.notified = make(map[string]struct{})
}

func (w *Watcher) tick(ctx context.Context) (TickResult, error) {
	start := time.Now()
	res := TickResult{ID: uuid.NewString()}
	logger := w.opts.Logger.WithField("tick_id", res.ID)

	err := w.evaluate(ctx, logger, &res)

	outcome := "ok"
	if err != nil {
		outcome = "error"
		logger.WithError(err).Warn("Tick failed")
	} else {
		logger.WithFields(log.Fields{
			"total":    res.Report.Total,
			"unlocked": len(res.Unlocked),
			"notified": len(res.Notified),
			"duration": time.Since(start),
		}).Debug("Tick completed")
	}
	w.opts.Metrics.Tick(outcome, time.Since(start))
	return res, err
}

func (w *Watcher) evaluate(ctx context.Context, logger log.FieldLogger, res *TickResult) error {
	raws, err := w.source.FetchDrops(ctx)
	if err != nil {
		w.opts.Metrics.FetchFailed()
		return errors.Wrap(err, "failed to fetch drops")
	}

	now := w.opts.Now()

	// The location is only needed once some drop is past its time-lock
	if !anyReleased(raws, now) {
		res.Report = unlock.Report{Total: len(raws)}
		logger.WithField("total", len(raws)).Debug("No drop past its time-lock")
		return nil
	}

	user, err := w.locator.Locate(ctx)
	if err != nil {
		if !errors.Is(err, ErrLocationUnavailable) {
			err = errors.Wrap(ErrLocationUnavailable, err.Error())
		}
		return err
	}
	res.Located = true

	evals, report, err := w.opts.Evaluator.Annotate(user, now, raws)
	if err != nil {
		return err
	}
	res.Report = report
	w.opts.Metrics.ObserveReport(report)

	for _, s := range report.Skipped {
		logger.WithFields(log.Fields{
			"drop_id": s.ID,
			"reason":  s.Reason,
		}).WithError(s.Err).Warn("Skipping drop")
	}

	for _, ev := range evals {
		if !ev.Result.Unlocked {
			continue
		}
		res.Unlocked = append(res.Unlocked, ev)

		if !w.markNotified(ev.Drop.ID) {
			continue
		}
		n := Notification{TickID: res.ID, Drop: ev.Drop, Distance: ev.Result.Distance, At: now}
		if err := w.notifier.Notify(ctx, n); err != nil {
			w.unmarkNotified(ev.Drop.ID)
			logger.WithError(err).WithField("drop_id", ev.Drop.ID).Error("Failed to notify")
			continue
		}
		w.opts.Metrics.Notified()
		res.Notified = append(res.Notified, ev.Drop.ID)
	}

	return nil
}

// markNotified records id and reports whether it was new
func (w *Watcher) markNotified(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.notified[id]; ok {
		return false
	}
	w.notified[id] = struct{}{}
	return true
}

func (w *Watcher) unmarkNotified(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.notified, id)
}

func anyReleased(raws []models.RawDrop, now time.Time) bool {
	for _, raw := range raws {
		drop, err := unlock.Decode(raw)
		if err != nil {
			// Let the evaluator report it
			return true
		}
		if now.After(drop.HiddenUntil) {
			return true
		}
	}
	return false
}
