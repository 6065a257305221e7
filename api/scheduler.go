/*
scheduler.go - Tag-driven automatic statement generation

PURPOSE:
  Runs a daily check in the configured timezone and, for each cadence tag
  (WEEKLY, BI-WEEKLY A/B, MONTHLY) that is due on the current date,
  generates draft statements for every tagged group and every tagged
  ungrouped listing.

DESIGN:
  - One background goroutine sleeping until the next wall-clock trigger
  - Due-period derivation is pure (statement.DuePeriodFor); the scheduler
    only fans out targets and records an audit run per tag
  - Duplicate prevention: a target that already has a statement for the
    exact period is skipped, so a restarted server never double-generates
  - Per-target failures are isolated; the run record carries them

CLOCK:
  The scheduler reads time through the Clock interface so tests can drive
  it to any date without sleeping.

USAGE:
  scheduler := NewTagScheduler(store, fees, cfg)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - statement/period.go: Cadence tags and due-period arithmetic
  - handlers.go: TriggerSchedule endpoint (manual run)
*/
package api

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dnovakovic099/owner-statements-app-complete-sub009/config"
	"github.com/dnovakovic099/owner-statements-app-complete-sub009/metrics"
	"github.com/dnovakovic099/owner-statements-app-complete-sub009/statement"
)

// Clock abstracts wall-clock reads for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// TagScheduler generates statements on the cadence encoded in listing and
// group tags.
type TagScheduler struct {
	Store   statement.Store
	Builder *statement.Builder
	Guard   *statement.DuplicateGuard
	Clock   Clock

	Enabled     bool
	Location    *time.Location
	TriggerHour int

	stop chan struct{}
	wg   sync.WaitGroup
	mu   sync.Mutex
	// Guards against double Start.
	running bool
}

// NewTagScheduler creates a scheduler from the service configuration. An
// unknown timezone falls back to UTC.
func NewTagScheduler(store statement.Store, fees statement.FeeConfig, cfg config.SchedulerConfig) *TagScheduler {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		slog.Warn("scheduler: unknown timezone, using UTC", "timezone", cfg.Timezone)
		loc = time.UTC
	}
	return &TagScheduler{
		Store:       store,
		Builder:     statement.NewBuilder(store, fees),
		Guard:       &statement.DuplicateGuard{Store: store},
		Clock:       realClock{},
		Enabled:     cfg.Enabled,
		Location:    loc,
		TriggerHour: cfg.TriggerHour,
		stop:        make(chan struct{}),
	}
}

// Start begins the daily trigger loop.
func (ts *TagScheduler) Start() {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if !ts.Enabled {
		slog.Info("scheduler disabled, not starting")
		return
	}
	if ts.running {
		return
	}
	ts.running = true
	ts.wg.Add(1)
	go ts.loop()

	slog.Info("scheduler started",
		"timezone", ts.Location.String(), "trigger_hour", ts.TriggerHour)
}

// Stop stops the scheduler and waits for an in-flight run to finish.
func (ts *TagScheduler) Stop() {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if !ts.running {
		return
	}
	close(ts.stop)
	ts.wg.Wait()
	ts.running = false
	slog.Info("scheduler stopped")
}

func (ts *TagScheduler) loop() {
	defer ts.wg.Done()

	for {
		next := ts.nextTrigger(ts.Clock.Now())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-timer.C:
			ts.RunOnce(context.Background(), statement.DateOf(ts.Clock.Now().In(ts.Location)))
		case <-ts.stop:
			timer.Stop()
			return
		}
	}
}

// nextTrigger returns the next occurrence of TriggerHour in the configured
// timezone strictly after now.
func (ts *TagScheduler) nextTrigger(now time.Time) time.Time {
	local := now.In(ts.Location)
	next := time.Date(local.Year(), local.Month(), local.Day(), ts.TriggerHour, 0, 0, 0, ts.Location)
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// RunOnce evaluates every cadence tag against asOf and generates whatever
// is due. Exposed for the manual trigger endpoint and tests.
func (ts *TagScheduler) RunOnce(ctx context.Context, asOf statement.Date) {
	for _, tag := range statement.ScheduleTags() {
		period := statement.DuePeriodFor(tag, asOf)
		if period == nil {
			continue
		}
		if err := ts.runTag(ctx, tag, *period); err != nil {
			slog.Error("scheduler tag run failed", "tag", tag, "error", err)
			metrics.SchedulerRuns.WithLabelValues("failed").Inc()
		} else {
			metrics.SchedulerRuns.WithLabelValues("completed").Inc()
		}
	}
}

// target is one schedulable unit: a tagged group or a tagged ungrouped
// listing.
type target struct {
	listings []statement.Listing
	groupID  string
	name     string
	tags     []string
	mode     statement.CalculationType
}

func (ts *TagScheduler) runTag(ctx context.Context, tag string, period statement.Period) error {
	run := statement.GenerationRun{
		ID:          uuid.NewString(),
		Tag:         tag,
		PeriodStart: period.Start,
		PeriodEnd:   period.End,
		Status:      "running",
		StartedAt:   ts.Clock.Now(),
	}
	if err := ts.Store.SaveGenerationRun(ctx, run); err != nil {
		return fmt.Errorf("save run record: %w", err)
	}

	targets, err := ts.collectTargets(ctx, tag)
	if err != nil {
		run.Status = "failed"
		run.Errors = append(run.Errors, err.Error())
		ts.finishRun(ctx, run)
		return err
	}

	slog.Info("scheduler run", "tag", tag, "period", period.String(), "targets", len(targets))

	for _, t := range targets {
		generated, err := ts.generateTarget(ctx, t, period)
		switch {
		case err != nil:
			run.Errors = append(run.Errors, fmt.Sprintf("%s: %v", t.name, err))
			metrics.GenerationErrors.WithLabelValues("schedule").Inc()
		case generated:
			run.Generated++
			metrics.StatementsGenerated.WithLabelValues("schedule").Inc()
		default:
			run.Skipped++
			metrics.StatementsSkipped.WithLabelValues("schedule").Inc()
		}
	}

	run.Status = "completed"
	if len(run.Errors) > 0 && run.Generated == 0 && run.Skipped == 0 {
		run.Status = "failed"
	}
	ts.finishRun(ctx, run)

	slog.Info("scheduler run finished", "tag", tag,
		"generated", run.Generated, "skipped", run.Skipped, "errors", len(run.Errors))
	return nil
}

func (ts *TagScheduler) finishRun(ctx context.Context, run statement.GenerationRun) {
	now := ts.Clock.Now()
	run.CompletedAt = &now
	if err := ts.Store.SaveGenerationRun(ctx, run); err != nil {
		slog.Error("scheduler: save run record", "tag", run.Tag, "error", err)
	}
}

// collectTargets resolves the fan-out for one tag: tagged groups first,
// then tagged active listings that belong to no group. A listing inside a
// tagged group is covered by the group statement only.
func (ts *TagScheduler) collectTargets(ctx context.Context, tag string) ([]target, error) {
	groups, err := ts.Store.ListGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	listings, err := ts.Store.ListListings(ctx)
	if err != nil {
		return nil, fmt.Errorf("list listings: %w", err)
	}

	byID := make(map[string]statement.Listing, len(listings))
	for _, l := range listings {
		byID[l.ID] = l
	}

	var targets []target
	for _, g := range groups {
		if !statement.HasScheduleTag(g.Tags, tag) {
			continue
		}
		var members []statement.Listing
		for _, id := range g.ListingIDs {
			l, ok := byID[id]
			if !ok || !l.Active {
				continue
			}
			members = append(members, l)
		}
		if len(members) == 0 {
			continue
		}
		mode := g.CalculationType
		if !mode.Valid() {
			mode = statement.CalcCheckout
		}
		targets = append(targets, target{
			listings: members,
			groupID:  g.ID,
			name:     g.Name,
			tags:     g.Tags,
			mode:     mode,
		})
	}

	for _, l := range listings {
		if l.GroupID != "" || !l.Active {
			continue
		}
		if !statement.HasScheduleTag(l.Tags, tag) {
			continue
		}
		targets = append(targets, target{
			listings: []statement.Listing{l},
			name:     l.Name,
			mode:     statement.CalcCheckout,
		})
	}
	return targets, nil
}

// generateTarget builds one draft statement unless one already exists for
// the exact target and period. Returns whether a statement was generated.
func (ts *TagScheduler) generateTarget(ctx context.Context, t target, period statement.Period) (bool, error) {
	propertyIDs := make([]string, 0, len(t.listings))
	for _, l := range t.listings {
		propertyIDs = append(propertyIDs, l.ID)
	}

	exists, err := ts.Guard.HasStatementFor(ctx, propertyIDs, period)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	_, err = ts.Builder.Build(ctx, statement.BuildRequest{
		Listings:        t.listings,
		GroupID:         t.groupID,
		GroupName:       groupNameFor(t),
		GroupTags:       t.tags,
		Period:          period,
		CalculationType: t.mode,
		CreatedBy:       statement.CreatedBySystem,
		SkipIfEmpty:     true,
		Persist:         true,
	})
	if statement.IsSkip(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func groupNameFor(t target) string {
	if t.groupID == "" {
		return ""
	}
	return t.name
}
