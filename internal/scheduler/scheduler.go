// Package scheduler batches local edits into debounced background syncs.
//
// Every local write marks its shard dirty. One process-wide timer fires after
// a quiet window and syncs the dirty shards one after another. The dirty set
// and the time of the last edit are persisted, so a restart resumes the
// countdown instead of losing pending work.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/listenupapp/tagsync/internal/domain"
	"github.com/listenupapp/tagsync/internal/kv"
	"github.com/listenupapp/tagsync/internal/shard"
	"github.com/listenupapp/tagsync/internal/store"
	"github.com/listenupapp/tagsync/internal/syncer"
)

// StateKey is where the pending state lives in the key-value store.
const StateKey = "sync:pending"

// DefaultWindow is the quiet period before a sync pass.
const DefaultWindow = 5 * time.Second

// State is the persisted scheduling record.
type State struct {
	Shards []int `json:"shards"`
	// LastActivity is epoch milliseconds of the most recent edit.
	LastActivity int64 `json:"last_activity"`
}

// Syncer syncs one shard.
type Syncer interface {
	SyncShard(ctx context.Context, idx int, local map[string]*domain.PostTagRecord, silent bool) (*syncer.ShardResult, error)
}

// ShardSource reads the current local records of a shard.
type ShardSource interface {
	ScanShard(ctx context.Context, idx int) (map[string]*domain.PostTagRecord, error)
}

// Config holds configuration for the scheduler.
type Config struct {
	// Window is how long edits must pause before a pass runs.
	Window time.Duration

	// RetryFailed keeps shards whose sync failed in the dirty set. They are
	// retried with the next pass, which the next edit or restart triggers.
	RetryFailed bool

	Logger *slog.Logger
}

// DefaultConfig returns the defaults.
func DefaultConfig() Config {
	return Config{
		Window: DefaultWindow,
		Logger: slog.Default(),
	}
}

// PassSummary describes a finished pass.
type PassSummary struct {
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Attempted []int         `json:"attempted"`
	Uploaded  []int         `json:"uploaded"`
	Failed    []int         `json:"failed"`
}

// Status is a snapshot of the scheduler.
type Status struct {
	Pending      []int        `json:"pending"`
	LastActivity time.Time    `json:"last_activity,omitzero"`
	NextRun      time.Time    `json:"next_run,omitzero"`
	Running      bool         `json:"running"`
	LastPass     *PassSummary `json:"last_pass,omitempty"`
}

// ErrStopped is returned by operations on a stopped scheduler.
var ErrStopped = errors.New("scheduler stopped")

// Scheduler owns the debounce timer.
type Scheduler struct {
	kv     kv.Store
	syncer Syncer
	source ShardSource
	config Config
	logger *slog.Logger

	// mu guards the persisted state and the fields below.
	mu        sync.Mutex
	timer     *time.Timer
	gen       uint64
	fireAt    time.Time
	stopped   bool
	running   bool
	lastPass  *PassSummary
	// redirtied holds shards edited while a pass was running.
	redirtied map[int]struct{}

	// passMu keeps passes from overlapping.
	passMu sync.Mutex

	ctx       context.Context
	cancel    context.CancelFunc
	stopAfter func() bool
	wg        sync.WaitGroup

	now func() time.Time
}

// New creates a scheduler. Attach it to the store with store.SetEventEmitter
// and call Start.
func New(backend kv.Store, s Syncer, source ShardSource, config Config) *Scheduler {
	if config.Window <= 0 {
		config.Window = DefaultWindow
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		kv:     backend,
		syncer: s,
		source: source,
		config: config,
		logger: config.Logger,
		ctx:    ctx,
		cancel: cancel,
		now:    time.Now,
	}
}

// Emit implements store.EventEmitter. Local and import writes mark their
// shard dirty; records pulled from the remote do not.
func (s *Scheduler) Emit(event any) {
	ev, ok := event.(store.RecordChanged)
	if !ok || !ev.Origin.IsLocalWrite() {
		return
	}
	if err := s.NotifyChange(context.Background(), ev.PostID); err != nil {
		s.logger.Error("failed to mark shard dirty", "post_id", ev.PostID, "shard", ev.Shard, "error", err)
	}
}

// NotifyChange marks the shard of postID dirty, records the edit time and
// restarts the debounce window.
func (s *Scheduler) NotifyChange(ctx context.Context, postID string) error {
	idx := shard.Of(postID)

	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load(ctx)
	if err != nil {
		return err
	}
	if !slices.Contains(st.Shards, idx) {
		st.Shards = append(st.Shards, idx)
		slices.Sort(st.Shards)
	}
	st.LastActivity = s.now().UnixMilli()
	if err := s.save(ctx, st); err != nil {
		return err
	}
	if s.running {
		s.redirtied[idx] = struct{}{}
	}

	if s.stopped {
		return nil
	}
	s.arm(s.config.Window)
	return nil
}

// Init resumes pending work after a restart. If the window since the last
// edit has already passed, the pass runs before Init returns; otherwise the
// timer is armed for the remaining time.
func (s *Scheduler) Init(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrStopped
	}
	st, err := s.load(ctx)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if len(st.Shards) == 0 {
		s.mu.Unlock()
		return nil
	}

	remaining := s.config.Window - s.now().Sub(time.UnixMilli(st.LastActivity))
	if remaining > 0 {
		s.arm(remaining)
		s.mu.Unlock()
		s.logger.Info("pending sync resumed", "shards", st.Shards, "delay", remaining)
		return nil
	}
	s.mu.Unlock()

	s.logger.Info("pending sync overdue, running now", "shards", st.Shards)
	s.runPass(ctx)
	return nil
}

// Start runs Init in the background. Cancelling ctx stops pending passes.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.stopAfter = context.AfterFunc(ctx, s.cancel)
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.Init(s.ctx); err != nil && !errors.Is(err, ErrStopped) {
			s.logger.Error("failed to resume pending sync", "error", err)
		}
	}()
}

// Stop disarms the timer and waits for a running pass to finish. Pending
// shards stay persisted.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.fireAt = time.Time{}
	stopAfter := s.stopAfter
	s.mu.Unlock()

	s.cancel()
	if stopAfter != nil {
		stopAfter()
	}
	s.wg.Wait()
}

// Flush runs the pending pass now.
func (s *Scheduler) Flush(ctx context.Context) (*PassSummary, error) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil, ErrStopped
	}
	s.disarm()
	s.mu.Unlock()

	return s.runPass(ctx), nil
}

// Status returns the current pending state.
func (s *Scheduler) Status(ctx context.Context) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load(ctx)
	if err != nil {
		return Status{}, err
	}
	out := Status{
		Pending:  st.Shards,
		NextRun:  s.fireAt,
		Running:  s.running,
		LastPass: s.lastPass,
	}
	if out.Pending == nil {
		out.Pending = []int{}
	}
	if st.LastActivity > 0 {
		out.LastActivity = time.UnixMilli(st.LastActivity)
	}
	return out, nil
}

// arm (re)starts the timer. Caller holds mu.
func (s *Scheduler) arm(d time.Duration) {
	s.disarm()
	gen := s.gen
	s.fireAt = s.now().Add(d)
	s.timer = time.AfterFunc(d, func() { s.fire(gen) })
}

// disarm stops the timer and invalidates callbacks already in flight.
// Caller holds mu.
func (s *Scheduler) disarm() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
	s.fireAt = time.Time{}
}

func (s *Scheduler) fire(gen uint64) {
	s.mu.Lock()
	if s.stopped || gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.fireAt = time.Time{}
	s.wg.Add(1)
	s.mu.Unlock()

	defer s.wg.Done()
	s.runPass(s.ctx)
}

// runPass syncs every shard that is dirty when the pass starts, in order,
// silently. Afterwards those shards leave the dirty set (failed ones stay
// when RetryFailed is set). Shards edited while the pass ran stay dirty,
// since their scan may predate the edit.
func (s *Scheduler) runPass(ctx context.Context) *PassSummary {
	s.passMu.Lock()
	defer s.passMu.Unlock()

	s.mu.Lock()
	st, err := s.load(ctx)
	if err != nil {
		s.mu.Unlock()
		s.logger.Error("failed to read pending shards", "error", err)
		return nil
	}
	s.running = true
	s.redirtied = make(map[int]struct{})
	s.mu.Unlock()

	summary := &PassSummary{StartedAt: s.now()}
	for _, idx := range st.Shards {
		if ctx.Err() != nil {
			break
		}
		summary.Attempted = append(summary.Attempted, idx)

		local, err := s.source.ScanShard(ctx, idx)
		if err != nil {
			s.logger.Error("failed to read local shard", "shard", idx, "error", err)
			summary.Failed = append(summary.Failed, idx)
			continue
		}
		res, err := s.syncer.SyncShard(ctx, idx, local, true)
		switch {
		case err != nil:
			s.logger.Error("shard sync failed", "shard", idx, "error", err)
			summary.Failed = append(summary.Failed, idx)
		case res.Failed():
			summary.Failed = append(summary.Failed, idx)
		case res != nil && res.Uploaded:
			summary.Uploaded = append(summary.Uploaded, idx)
		}
	}
	summary.Duration = s.now().Sub(summary.StartedAt)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.lastPass = summary
	defer func() { s.redirtied = nil }()

	// The context may be cancelled by now; clearing must still happen.
	saveCtx := context.WithoutCancel(ctx)
	latest, err := s.load(saveCtx)
	if err != nil {
		s.logger.Error("failed to reload pending shards", "error", err)
		return summary
	}
	latest.Shards = slices.DeleteFunc(latest.Shards, func(idx int) bool {
		if !slices.Contains(summary.Attempted, idx) {
			return false
		}
		if _, again := s.redirtied[idx]; again {
			return false
		}
		return !(s.config.RetryFailed && slices.Contains(summary.Failed, idx))
	})
	if err := s.save(saveCtx, latest); err != nil {
		s.logger.Error("failed to clear pending shards", "error", err)
	}

	s.logger.Info("sync pass finished",
		"attempted", summary.Attempted,
		"uploaded", summary.Uploaded,
		"failed", summary.Failed,
		"still_pending", latest.Shards,
		"duration", summary.Duration,
	)
	return summary
}

func (s *Scheduler) load(ctx context.Context) (State, error) {
	var st State
	if _, err := kv.GetJSON(ctx, s.kv, StateKey, &st); err != nil {
		return State{}, fmt.Errorf("load sync state: %w", err)
	}
	return st, nil
}

func (s *Scheduler) save(ctx context.Context, st State) error {
	if err := kv.SetJSON(ctx, s.kv, StateKey, st); err != nil {
		return fmt.Errorf("save sync state: %w", err)
	}
	return nil
}
