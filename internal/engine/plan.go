package engine

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/ledgerd/ledgerd/internal/ledger"
)

// PlanAction says what a run would do with one due occurrence.
type PlanAction string

const (
	// PlanInsert means the occurrence would be generated.
	PlanInsert PlanAction = "insert"
	// PlanExists means a transaction already holds the (rule, period) slot.
	PlanExists PlanAction = "exists"
	// PlanSkip means a user deleted this occurrence; it stays deleted.
	PlanSkip PlanAction = "skip"
)

// PlanEntry is one due occurrence and the action a run would take.
// Dates are pre-rendered so plans serialize stably.
type PlanEntry struct {
	RuleID    int64      `json:"rule_id"`
	RuleName  string     `json:"rule_name"`
	PeriodKey string     `json:"period_key"`
	Due       string     `json:"due"`
	Amount    float64    `json:"amount"`
	Action    PlanAction `json:"action"`
}

// Plan is a dry run: everything ApplyAt would do, written down instead
// of written to the database.
type Plan struct {
	Today     string        `json:"today"`
	Watermark string        `json:"watermark"`
	Entries   []PlanEntry   `json:"entries"`
	Invalid   []RuleWarning `json:"invalid,omitempty"`
}

// Inserts counts the entries a run would actually generate.
func (p *Plan) Inserts() int {
	n := 0
	for _, e := range p.Entries {
		if e.Action == PlanInsert {
			n++
		}
	}
	return n
}

// Plan computes the run plan for the clock's current day.
func (e *Engine) Plan(ctx context.Context) (*Plan, error) {
	return e.PlanAt(ctx, e.clock.Now())
}

// PlanAt computes the run plan for the given day without changing
// anything: no inserts, no watermark advance. The read happens inside a
// transaction that is always rolled back.
func (e *Engine) PlanAt(ctx context.Context, today time.Time) (*Plan, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	today = ledger.DateOf(today)

	sweep, err := e.store.BeginSweep(ctx)
	if err != nil {
		return nil, fmt.Errorf("plan: %w", err)
	}
	defer sweep.Rollback()

	watermark, err := resolveWatermark(ctx, sweep, today)
	if err != nil {
		return nil, fmt.Errorf("plan: %w", err)
	}

	rules, invalid, err := sweep.ActiveRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("plan: %w", err)
	}

	plan := &Plan{
		Today:     ledger.FormatDate(today),
		Watermark: watermarkLabel(watermark),
		Entries:   []PlanEntry{},
	}
	for _, in := range invalid {
		plan.Invalid = append(plan.Invalid, RuleWarning{
			RuleID: in.ID,
			Name:   in.Name,
			Reason: in.Err.Error(),
		})
	}

	for _, rule := range rules {
		if !rule.Cadence.Supported() {
			continue
		}
		from, to, ok := runWindow(rule, watermark, today)
		if !ok {
			continue
		}

		for _, occ := range dueOccurrences(rule, from, to) {
			action := PlanInsert
			if exists, err := sweep.HasOccurrence(ctx, rule.ID, occ.Key); err != nil {
				return nil, fmt.Errorf("plan: rule %d: %w", rule.ID, err)
			} else if exists {
				action = PlanExists
			} else if skipped, err := sweep.IsSkipped(ctx, rule.ID, occ.Key); err != nil {
				return nil, fmt.Errorf("plan: rule %d: %w", rule.ID, err)
			} else if skipped {
				action = PlanSkip
			}

			plan.Entries = append(plan.Entries, PlanEntry{
				RuleID:    rule.ID,
				RuleName:  rule.Name,
				PeriodKey: occ.Key,
				Due:       ledger.FormatDate(occ.Due),
				Amount:    -math.Abs(rule.Amount),
				Action:    action,
			})
		}
	}

	return plan, nil
}

// watermarkLabel renders the watermark, or "never" before the first run.
func watermarkLabel(watermark time.Time) string {
	if watermark.IsZero() {
		return "never"
	}
	return ledger.FormatDate(watermark)
}
