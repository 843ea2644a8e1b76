package scheduling

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/clinic/booking/internal/platform/lock"
)

// reminderLeaderKey elects one instance per tick to run the sweep.
const reminderLeaderKey = "booking:reminders:leader"

// ReminderWorker runs SweepReminders on a cron schedule. Instances share a
// leader lock so a tick fires the sweep at most once across the fleet.
type ReminderWorker struct {
	svc      *Service
	locker   lock.Locker
	recorder Recorder
	logger   zerolog.Logger
	lockTTL  time.Duration
	now      func() time.Time

	mu     sync.Mutex
	cron   *cron.Cron
	cancel context.CancelFunc
}

func NewReminderWorker(svc *Service, locker lock.Locker, recorder Recorder, logger zerolog.Logger) *ReminderWorker {
	if locker == nil {
		locker = lock.Noop{}
	}
	return &ReminderWorker{
		svc:      svc,
		locker:   locker,
		recorder: recorder,
		logger:   logger.With().Str("component", "reminder_worker").Logger(),
		lockTTL:  2 * time.Minute,
		now:      time.Now,
	}
}

// Start schedules the sweep with a standard five-field cron spec or a
// descriptor such as "@every 15m".
func (w *ReminderWorker) Start(ctx context.Context, spec string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(spec, func() { w.RunOnce(runCtx) }); err != nil {
		cancel()
		return err
	}
	c.Start()
	w.cron, w.cancel = c, cancel
	w.logger.Info().Str("spec", spec).Msg("reminder worker started")
	return nil
}

// Stop cancels an in-flight sweep and waits for it to return.
func (w *ReminderWorker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancel != nil {
		w.cancel()
	}
	if w.cron != nil {
		<-w.cron.Stop().Done()
		w.cron = nil
	}
}

// RunOnce performs a single leader-elected sweep. It reports whether this
// instance ran the sweep.
func (w *ReminderWorker) RunOnce(ctx context.Context) bool {
	acquired, token, err := w.locker.TryLock(ctx, reminderLeaderKey, w.lockTTL)
	if err != nil {
		w.logger.Warn().Err(err).Msg("leader lock attempt failed")
		return false
	}
	if !acquired {
		w.logger.Debug().Msg("leader lock held by another instance")
		return false
	}
	defer func() {
		if err := w.locker.Unlock(context.WithoutCancel(ctx), reminderLeaderKey, token); err != nil {
			w.logger.Warn().Err(err).Msg("leader lock release failed")
		}
	}()

	refreshCtx, stopRefresh := context.WithCancel(ctx)
	defer stopRefresh()
	go w.keepAlive(refreshCtx, token)

	res, err := w.svc.SweepReminders(ctx, w.now())
	if err != nil {
		w.logger.Error().Err(err).Msg("reminder sweep failed")
	}
	if res != nil && w.recorder != nil {
		w.recorder.RecordSweep(res.Due, res.Sent, res.Failed)
	}
	return true
}

func (w *ReminderWorker) keepAlive(ctx context.Context, token string) {
	tick := time.NewTicker(w.lockTTL / 2)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			if err := w.locker.Refresh(ctx, reminderLeaderKey, token, w.lockTTL); err != nil {
				w.logger.Warn().Err(err).Msg("leader lock refresh failed")
			}
		}
	}
}
