package server

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ledgerd/ledgerd/internal/engine"
	"github.com/ledgerd/ledgerd/internal/ledger"
)

// ruleResponse is the wire form of a rule. Dates are plain date
// strings; next_charge_date is computed from the rule, never stored.
type ruleResponse struct {
	ID             int64   `json:"id"`
	Name           string  `json:"name"`
	Amount         float64 `json:"amount"`
	CategoryID     int64   `json:"category_id"`
	UserID         int64   `json:"user_id"`
	AccountID      *int64  `json:"account_id"`
	StartDate      string  `json:"start_date"`
	EndDate        *string `json:"end_date"`
	Frequency      string  `json:"frequency"`
	DayOfMonth     *int    `json:"day_of_month"`
	Weekday        *int    `json:"weekday"`
	Active         bool    `json:"active"`
	NextChargeDate *string `json:"next_charge_date"`
}

func ruleResponseFrom(r ledger.Rule, today time.Time) ruleResponse {
	resp := ruleResponse{
		ID:         r.ID,
		Name:       r.Name,
		Amount:     r.Amount,
		CategoryID: r.CategoryID,
		UserID:     r.UserID,
		AccountID:  r.AccountID,
		StartDate:  ledger.FormatDate(r.Start),
		Frequency:  string(r.Cadence),
		Weekday:    r.Weekday,
		Active:     r.Active,
	}
	if r.End != nil {
		end := ledger.FormatDate(*r.End)
		resp.EndDate = &end
	}
	if r.DayOfMonth != 0 {
		day := r.DayOfMonth
		resp.DayOfMonth = &day
	}
	if due, ok := engine.NextCharge(r, today); ok {
		next := ledger.FormatDate(due)
		resp.NextChargeDate = &next
	}
	return resp
}

// rulePayload is the create/patch body for a rule. Every field is a
// pointer so a patch can tell absent from zero.
type rulePayload struct {
	Name       *string  `json:"name"`
	Amount     *float64 `json:"amount"`
	CategoryID *int64   `json:"category_id"`
	UserID     *int64   `json:"user_id"`
	AccountID  *int64   `json:"account_id"`
	StartDate  *string  `json:"start_date"`
	EndDate    *string  `json:"end_date"`
	Frequency  *string  `json:"frequency"`
	DayOfMonth *int     `json:"day_of_month"`
	Weekday    *int     `json:"weekday"`
	Active     *bool    `json:"active"`
}

// validForCreate checks the fields a new rule must carry.
func (p rulePayload) validForCreate() error {
	var missing []string
	if p.Name == nil {
		missing = append(missing, "name")
	}
	if p.Amount == nil {
		missing = append(missing, "amount")
	}
	if p.CategoryID == nil {
		missing = append(missing, "category_id")
	}
	if p.UserID == nil {
		missing = append(missing, "user_id")
	}
	if p.StartDate == nil {
		missing = append(missing, "start_date")
	}
	if p.Frequency == nil {
		missing = append(missing, "frequency")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

// applyTo merges the set fields into r. An empty end_date clears the
// end; a zero account_id clears the account (SQLite ids start at 1).
func (p rulePayload) applyTo(r *ledger.Rule) error {
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return errors.New("name must not be empty")
		}
		r.Name = name
	}
	if p.Amount != nil {
		if *p.Amount == 0 {
			return errors.New("amount must not be zero")
		}
		r.Amount = *p.Amount
	}
	if p.CategoryID != nil {
		r.CategoryID = *p.CategoryID
	}
	if p.UserID != nil {
		r.UserID = *p.UserID
	}
	if p.AccountID != nil {
		if *p.AccountID == 0 {
			r.AccountID = nil
		} else {
			id := *p.AccountID
			r.AccountID = &id
		}
	}
	if p.StartDate != nil {
		start, err := ledger.ParseDate(*p.StartDate)
		if err != nil {
			return fmt.Errorf("start_date: %w", err)
		}
		r.Start = start
	}
	if p.EndDate != nil {
		if *p.EndDate == "" {
			r.End = nil
		} else {
			end, err := ledger.ParseDate(*p.EndDate)
			if err != nil {
				return fmt.Errorf("end_date: %w", err)
			}
			r.End = &end
		}
	}
	if p.Frequency != nil {
		if *p.Frequency == "" {
			return errors.New("frequency must not be empty")
		}
		r.Cadence = ledger.Cadence(*p.Frequency)
	}
	if p.DayOfMonth != nil {
		if *p.DayOfMonth < 0 || *p.DayOfMonth > 31 {
			return errors.New("day_of_month must be between 1 and 31")
		}
		r.DayOfMonth = *p.DayOfMonth
	}
	if p.Weekday != nil {
		if *p.Weekday < ledger.WeekdayMonday || *p.Weekday > ledger.WeekdaySunday {
			return errors.New("weekday must be between 0 (Monday) and 6 (Sunday)")
		}
		weekday := *p.Weekday
		r.Weekday = &weekday
	}
	if p.Active != nil {
		r.Active = *p.Active
	}
	return nil
}

// transactionResponse is the wire form of a transaction.
type transactionResponse struct {
	ID           int64   `json:"id"`
	Date         string  `json:"date"`
	Amount       float64 `json:"amount"`
	CategoryID   int64   `json:"category_id"`
	UserID       int64   `json:"user_id"`
	AccountID    *int64  `json:"account_id"`
	Notes        string  `json:"notes"`
	Tags         string  `json:"tags"`
	RecurrenceID *int64  `json:"recurrence_id"`
	PeriodKey    string  `json:"period_key"`
}

func transactionResponseFrom(t ledger.Transaction) transactionResponse {
	return transactionResponse{
		ID:           t.ID,
		Date:         ledger.FormatDate(t.Date),
		Amount:       t.Amount,
		CategoryID:   t.CategoryID,
		UserID:       t.UserID,
		AccountID:    t.AccountID,
		Notes:        t.Notes,
		Tags:         t.Tags,
		RecurrenceID: t.RuleID,
		PeriodKey:    t.PeriodKey,
	}
}

// transactionPayload is the create/update body for a transaction.
type transactionPayload struct {
	Date         *string  `json:"date"`
	Amount       *float64 `json:"amount"`
	CategoryID   *int64   `json:"category_id"`
	UserID       *int64   `json:"user_id"`
	AccountID    *int64   `json:"account_id"`
	Notes        *string  `json:"notes"`
	Tags         *string  `json:"tags"`
	RecurrenceID *int64   `json:"recurrence_id"`
	PeriodKey    *string  `json:"period_key"`
}

func (p transactionPayload) validForCreate() error {
	var missing []string
	if p.Date == nil {
		missing = append(missing, "date")
	}
	if p.Amount == nil {
		missing = append(missing, "amount")
	}
	if p.CategoryID == nil {
		missing = append(missing, "category_id")
	}
	if p.UserID == nil {
		missing = append(missing, "user_id")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (p transactionPayload) applyTo(t *ledger.Transaction) error {
	if p.Date != nil {
		date, err := ledger.ParseDate(*p.Date)
		if err != nil {
			return fmt.Errorf("date: %w", err)
		}
		t.Date = date
	}
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.CategoryID != nil {
		t.CategoryID = *p.CategoryID
	}
	if p.UserID != nil {
		t.UserID = *p.UserID
	}
	if p.AccountID != nil {
		if *p.AccountID == 0 {
			t.AccountID = nil
		} else {
			id := *p.AccountID
			t.AccountID = &id
		}
	}
	if p.Notes != nil {
		t.Notes = *p.Notes
	}
	if p.Tags != nil {
		t.Tags = *p.Tags
	}
	if p.RecurrenceID != nil {
		id := *p.RecurrenceID
		t.RuleID = &id
	}
	if p.PeriodKey != nil {
		t.PeriodKey = *p.PeriodKey
	}
	return nil
}

// applyOncePayload is the body of an apply-once request. All fields
// are optional; date defaults to today and amount to the negative
// magnitude of the rule's amount.
type applyOncePayload struct {
	Date   *string  `json:"date"`
	Amount *float64 `json:"amount"`
	Notes  *string  `json:"notes"`
}
