package services

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/robfig/cron/v3"

	"aiassist/internal/config"
	"aiassist/internal/database"
	"aiassist/internal/llm"
	"aiassist/internal/models"
	"aiassist/internal/tools"
)

// TodoOrchestrator runs the periodic pickup loop: wake snoozed todos, reclaim
// orphaned agent_working todos after a crash, then spawn agent workers for
// eligible todos up to the tracker's capacity.
type TodoOrchestrator struct {
	cfg      *config.Config
	todos    *TodoService
	store    *database.TodoStore
	activity *database.ActivityStore
	provider llm.Provider
	registry *tools.Registry
	bus      *EventBus
	tracker  *ActiveAgentTracker
	metrics  *Metrics
	logger   *slog.Logger

	scheduler gocron.Scheduler

	// cooldown tracks the last attempt per todo so a failing todo does not
	// burn an agent slot every tick
	cooldownMu  sync.Mutex
	lastAttempt map[string]time.Time

	wg sync.WaitGroup
}

// NewTodoOrchestrator wires the orchestrator. Call Start to begin scheduling.
func NewTodoOrchestrator(cfg *config.Config, todos *TodoService, store *database.TodoStore, activity *database.ActivityStore, provider llm.Provider, registry *tools.Registry, bus *EventBus, tracker *ActiveAgentTracker, metrics *Metrics) *TodoOrchestrator {
	return &TodoOrchestrator{
		cfg:         cfg,
		todos:       todos,
		store:       store,
		activity:    activity,
		provider:    provider,
		registry:    registry,
		bus:         bus,
		tracker:     tracker,
		metrics:     metrics,
		logger:      slog.Default(),
		lastAttempt: make(map[string]time.Time),
	}
}

// Start runs the crash-recovery sweep, then schedules the pickup loop.
// The sweep runs before any traffic is served so clients never observe a
// stale agent_working todo from a previous process.
func (o *TodoOrchestrator) Start(ctx context.Context) error {
	reclaimed := o.RecoverOrphans(ctx)
	if reclaimed > 0 {
		log.Printf("🔁 [ORCHESTRATOR] Reclaimed %d orphaned agent_working todos", reclaimed)
	}

	if !o.cfg.RoutinesEnabled {
		log.Printf("⏸️  [ORCHESTRATOR] Routines disabled, pickup loop not scheduled")
		return nil
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}
	o.scheduler = scheduler

	jobDef, err := o.pickupJobDefinition()
	if err != nil {
		return err
	}
	if _, err := scheduler.NewJob(jobDef, gocron.NewTask(func() { o.Tick(ctx) })); err != nil {
		return fmt.Errorf("schedule pickup loop: %w", err)
	}

	scheduler.Start()
	log.Printf("🚀 [ORCHESTRATOR] Pickup loop scheduled (interval=%s, cron=%q, max_concurrent=%d)",
		o.cfg.RoutinesCronInterval, o.cfg.TodoPickupCron, o.tracker.Limit())
	return nil
}

// pickupJobDefinition prefers the cron expression when one is configured,
// falling back to the plain interval
func (o *TodoOrchestrator) pickupJobDefinition() (gocron.JobDefinition, error) {
	if o.cfg.TodoPickupCron == "" {
		return gocron.DurationJob(o.cfg.RoutinesCronInterval), nil
	}
	if _, err := cron.ParseStandard(o.cfg.TodoPickupCron); err != nil {
		return nil, fmt.Errorf("invalid TODO_PICKUP_CRON %q: %w", o.cfg.TodoPickupCron, err)
	}
	return gocron.CronJob(o.cfg.TodoPickupCron, false), nil
}

// Stop shuts the scheduler down and waits for in-flight workers
func (o *TodoOrchestrator) Stop() {
	if o.scheduler != nil {
		if err := o.scheduler.Shutdown(); err != nil {
			o.logger.Error("scheduler shutdown failed", "error", err)
		}
	}
	o.wg.Wait()
	log.Printf("👋 [ORCHESTRATOR] Stopped, all workers drained")
}

// RecoverOrphans resets every agent_working todo to created. No agent
// survives a restart, so any todo found working belongs to a dead process.
func (o *TodoOrchestrator) RecoverOrphans(ctx context.Context) int {
	working, err := o.store.ListAllByStatus(ctx, models.TodoStatusAgentWorking)
	if err != nil {
		o.logger.Error("orphan sweep failed to list todos", "error", err)
		return 0
	}

	reclaimed := 0
	for _, todo := range working {
		if _, err := o.todos.Transition(ctx, todo.ID, models.TodoStatusAgentWorking, models.TodoStatusCreated); err != nil {
			if err != database.ErrNotFound {
				o.logger.Error("failed to reclaim orphaned todo", "todo_id", todo.ID, "error", err)
			}
			continue
		}
		reclaimed++
	}
	return reclaimed
}

// Tick is one pickup pass: wake snoozed todos, then spawn workers for
// eligible created todos until the fleet is full.
func (o *TodoOrchestrator) Tick(ctx context.Context) {
	if woken := o.todos.WakeSnoozed(ctx); woken > 0 {
		o.logger.Info("woke snoozed todos", "count", woken)
	}

	created, err := o.store.ListAllByStatus(ctx, models.TodoStatusCreated)
	if err != nil {
		o.logger.Error("pickup failed to list todos", "error", err)
		return
	}

	eligible := make([]*models.TodoItem, 0, len(created))
	for _, todo := range created {
		if todo.Eligible() && !o.inCooldown(todo.ID) {
			eligible = append(eligible, todo)
		}
	}
	sort.Slice(eligible, func(i, j int) bool {
		if eligible[i].Priority != eligible[j].Priority {
			return eligible[i].Priority < eligible[j].Priority
		}
		return eligible[i].CreatedAt.Before(eligible[j].CreatedAt)
	})

	for i, todo := range eligible {
		if !o.tracker.TryAcquire() {
			o.logger.Info("agent fleet at capacity, deferring remaining todos",
				"active", o.tracker.Active(), "deferred", len(eligible)-i)
			return
		}
		if !o.spawn(ctx, todo) {
			o.tracker.Release()
		}
	}
}

// spawn claims a todo and launches its worker. Returns false when the claim
// fails (someone else transitioned it first) so the caller releases the slot.
func (o *TodoOrchestrator) spawn(ctx context.Context, todo *models.TodoItem) bool {
	o.markAttempt(todo.ID)

	claimed, err := o.todos.Transition(ctx, todo.ID, models.TodoStatusCreated, models.TodoStatusAgentWorking)
	if err != nil {
		if err != database.ErrNotFound {
			o.logger.Error("failed to claim todo", "todo_id", todo.ID, "error", err)
		}
		return false
	}

	worker := NewTodoAgentWorker(claimed, o.provider, o.registry, o.activity, o.todos, o.bus, o.metrics,
		o.cfg.MaxAgentIterations, o.cfg.JobTimeout)

	log.Printf("🤖 [ORCHESTRATOR] Spawning agent job=%s todo=%s (%d/%d slots)",
		worker.JobID(), todo.ID, o.tracker.Active(), o.tracker.Limit())

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer o.tracker.Release()
		worker.Run(ctx)
	}()
	return true
}

func (o *TodoOrchestrator) inCooldown(todoID string) bool {
	o.cooldownMu.Lock()
	defer o.cooldownMu.Unlock()
	last, ok := o.lastAttempt[todoID]
	return ok && time.Since(last) < o.cfg.RoutinesDefaultCooldown
}

func (o *TodoOrchestrator) markAttempt(todoID string) {
	o.cooldownMu.Lock()
	defer o.cooldownMu.Unlock()
	o.lastAttempt[todoID] = time.Now()
}
