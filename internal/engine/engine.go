package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/ledgerd/ledgerd/internal/ledger"
	"github.com/ledgerd/ledgerd/internal/store"
)

// DefaultMaxPerRun is the default maximum number of occurrences a single
// run may insert. Generous for normal operation: a weekly rule backfills
// only 52 rows per year of gap.
const DefaultMaxPerRun = 10000

// Engine materializes the transactions that active recurrence rules owe.
//
// Thread-safety model:
//   - Apply, ApplyAt, Plan: safe from any goroutine; concurrent runs
//     serialize on an internal mutex
//   - Each run executes inside one store transaction, so a failed run
//     leaves no partial window behind
//
// INVARIANTS:
//   - At most one transaction per (rule, period key), enforced by the
//     store's unique index and checked before insert
//   - The watermark advances to today on every completed run, even when
//     nothing was inserted
//   - Generated amounts are always negative regardless of the sign the
//     rule was stored with
type Engine struct {
	store  *store.Store
	clock  Clock
	tokens RunTokenGenerator

	mu        sync.Mutex
	maxPerRun int
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithClock substitutes the source of "today".
// Tests and the --as-of flag use this to run against a fixed date.
func WithClock(c Clock) EngineOption {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithMaxPerRun sets the occurrence quota per run.
//
// Default: 10000 (DefaultMaxPerRun)
// Use WithMaxPerRun(5) for testing quota enforcement.
func WithMaxPerRun(limit int) EngineOption {
	return func(e *Engine) {
		e.maxPerRun = limit
	}
}

// New creates an Engine over the given store and run token generator.
//
// Options can be passed to configure the engine (e.g., WithClock).
func New(s *store.Store, tokens RunTokenGenerator, opts ...EngineOption) *Engine {
	e := &Engine{
		store:     s,
		clock:     SystemClock{},
		tokens:    tokens,
		maxPerRun: DefaultMaxPerRun,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Report summarizes one generation run.
type Report struct {
	RunToken string    `json:"run_token"`
	Today    time.Time `json:"today"`
	Inserted int       `json:"inserted"`
	Existing int       `json:"existing"`
	Skipped  int       `json:"skipped"`
	Rules    int       `json:"rules"`

	// Invalid lists rules left out of the run because their stored
	// dates could not be parsed.
	Invalid []RuleWarning `json:"invalid,omitempty"`
}

// RuleWarning identifies a rule a run could not use.
type RuleWarning struct {
	RuleID int64  `json:"rule_id"`
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Apply runs a generation sweep up to the clock's current day.
func (e *Engine) Apply(ctx context.Context) (Report, error) {
	return e.ApplyAt(ctx, e.clock.Now())
}

// ApplyAt runs a generation sweep up to the given day. The instant is
// truncated to a UTC calendar day first.
//
// Every completed run advances the watermark to today, inserts or not,
// so the next run starts from here. A failed run rolls everything back,
// watermark included.
func (e *Engine) ApplyAt(ctx context.Context, today time.Time) (Report, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	today = ledger.DateOf(today)
	token := e.tokens.Generate()
	report := Report{RunToken: token, Today: today}

	slog.Info("generation run starting",
		"run_token", token,
		"today", ledger.FormatDate(today),
	)

	sweep, err := e.store.BeginSweep(ctx)
	if err != nil {
		return report, fmt.Errorf("run %s: %w", token, err)
	}
	defer sweep.Rollback() // No-op if committed

	watermark, err := resolveWatermark(ctx, sweep, today)
	if err != nil {
		return report, fmt.Errorf("run %s: %w", token, err)
	}

	rules, invalid, err := sweep.ActiveRules(ctx)
	if err != nil {
		return report, fmt.Errorf("run %s: %w", token, err)
	}
	report.Rules = len(rules)
	report.Invalid = warnInvalidRules(token, invalid)

	for _, rule := range rules {
		if err := e.applyRule(ctx, sweep, rule, watermark, today, &report); err != nil {
			return report, err
		}
	}

	if err := sweep.SetWatermark(ctx, today); err != nil {
		return report, fmt.Errorf("run %s: advance watermark: %w", token, err)
	}
	if err := sweep.Commit(); err != nil {
		return report, fmt.Errorf("run %s: %w", token, err)
	}

	slog.Info("generation run complete",
		"run_token", token,
		"today", ledger.FormatDate(today),
		"inserted", report.Inserted,
		"existing", report.Existing,
		"skipped", report.Skipped,
		"rules", report.Rules,
	)

	return report, nil
}

// applyRule inserts the occurrences one rule owes within this run.
func (e *Engine) applyRule(ctx context.Context, sweep *store.Sweep, rule ledger.Rule, watermark, today time.Time, report *Report) error {
	if !rule.Cadence.Supported() {
		slog.Debug("skipping rule with unsupported cadence",
			"run_token", report.RunToken,
			"rule_id", rule.ID,
			"frequency", string(rule.Cadence),
		)
		return nil
	}

	from, to, ok := runWindow(rule, watermark, today)
	if !ok {
		return nil
	}

	for _, occ := range dueOccurrences(rule, from, to) {
		exists, err := sweep.HasOccurrence(ctx, rule.ID, occ.Key)
		if err != nil {
			return fmt.Errorf("run %s: rule %d: %w", report.RunToken, rule.ID, err)
		}
		if exists {
			report.Existing++
			continue
		}

		skipped, err := sweep.IsSkipped(ctx, rule.ID, occ.Key)
		if err != nil {
			return fmt.Errorf("run %s: rule %d: %w", report.RunToken, rule.ID, err)
		}
		if skipped {
			report.Skipped++
			continue
		}

		if report.Inserted >= e.maxPerRun {
			return &QuotaExceededError{RunToken: report.RunToken, Limit: e.maxPerRun}
		}

		inserted, err := sweep.InsertOccurrence(ctx, occurrenceTransaction(rule, occ))
		if err != nil {
			return fmt.Errorf("run %s: rule %d period %s: %w", report.RunToken, rule.ID, occ.Key, err)
		}
		if !inserted {
			// Another writer claimed the slot between check and insert
			report.Existing++
			continue
		}
		report.Inserted++

		slog.Debug("occurrence generated",
			"run_token", report.RunToken,
			"rule_id", rule.ID,
			"period_key", occ.Key,
			"date", ledger.FormatDate(occ.Due),
		)
	}

	return nil
}

// occurrenceTransaction builds the transaction row for one due period.
// The amount is forced negative: rules describe charges, whichever sign
// they were stored with.
func occurrenceTransaction(rule ledger.Rule, occ dueOccurrence) ledger.Transaction {
	return ledger.Transaction{
		Date:       occ.Due,
		Amount:     -math.Abs(rule.Amount),
		CategoryID: rule.CategoryID,
		UserID:     rule.UserID,
		AccountID:  rule.AccountID,
		RuleID:     &rule.ID,
		PeriodKey:  occ.Key,
	}
}

// resolveWatermark reads the watermark inside the sweep. Absent means
// the engine has never run: the zero time stands in, which lets each
// rule's own start date bound its window. A watermark ahead of today
// (clock rolled back, restored backup) is clamped so the run window
// never inverts.
func resolveWatermark(ctx context.Context, sweep *store.Sweep, today time.Time) (time.Time, error) {
	watermark, found, err := sweep.Watermark(ctx)
	if err != nil {
		return time.Time{}, err
	}
	if !found {
		return time.Time{}, nil
	}
	if watermark.After(today) {
		slog.Warn("watermark ahead of today, clamping",
			"watermark", ledger.FormatDate(watermark),
			"today", ledger.FormatDate(today),
		)
		return today, nil
	}
	return watermark, nil
}

// warnInvalidRules logs each unusable rule and converts them for the report.
func warnInvalidRules(token string, invalid []store.InvalidRule) []RuleWarning {
	if len(invalid) == 0 {
		return nil
	}
	warnings := make([]RuleWarning, 0, len(invalid))
	for _, in := range invalid {
		slog.Warn("skipping rule with unusable dates",
			"run_token", token,
			"rule_id", in.ID,
			"name", in.Name,
			"error", in.Err,
		)
		warnings = append(warnings, RuleWarning{
			RuleID: in.ID,
			Name:   in.Name,
			Reason: in.Err.Error(),
		})
	}
	return warnings
}
