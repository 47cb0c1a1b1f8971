package ledger

import "time"

// Cadence is the repetition frequency of a recurrence rule.
type Cadence string

const (
	CadenceMonthly Cadence = "monthly"
	CadenceWeekly  Cadence = "weekly"
	CadenceYearly  Cadence = "yearly"
)

// Supported reports whether the cadence is one the generation engine
// knows how to expand. Rules with unsupported cadences are valid data;
// they simply never produce occurrences.
func (c Cadence) Supported() bool {
	switch c {
	case CadenceMonthly, CadenceWeekly, CadenceYearly:
		return true
	}
	return false
}

// Weekday numbering for weekly rules: Monday=0 .. Sunday=6.
const (
	WeekdayMonday = 0
	WeekdaySunday = 6

	// DefaultWeekday is used when a weekly rule has no weekday set.
	DefaultWeekday = WeekdaySunday

	// DefaultDayOfMonth is used when a monthly rule has no day set.
	DefaultDayOfMonth = 1
)

// ClampWeekday clamps a weekday selector into [Monday, Sunday].
func ClampWeekday(d int) int {
	if d < WeekdayMonday {
		return WeekdayMonday
	}
	if d > WeekdaySunday {
		return WeekdaySunday
	}
	return d
}

// Rule is a recurring-charge definition. The engine only ever reads
// rules; they are created and edited through the store by users.
type Rule struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	Amount     float64    `json:"amount"` // positive magnitude
	CategoryID int64      `json:"category_id"`
	UserID     int64      `json:"user_id"`
	AccountID  *int64     `json:"account_id,omitempty"`
	Start      time.Time  `json:"start_date"`
	End        *time.Time `json:"end_date,omitempty"`
	Cadence    Cadence    `json:"frequency"`
	DayOfMonth int        `json:"day_of_month,omitempty"` // 1-31; 0 = unset
	Weekday    *int       `json:"weekday,omitempty"`      // Monday=0..Sunday=6; nil = unset
	Active     bool       `json:"active"`
}

// Transaction is a single ledger entry. Generated entries carry the
// originating rule id and a period key; manual entries leave both unset.
type Transaction struct {
	ID         int64     `json:"id"`
	Date       time.Time `json:"date"`
	Amount     float64   `json:"amount"` // signed; expenses are negative
	CategoryID int64     `json:"category_id"`
	UserID     int64     `json:"user_id"`
	AccountID  *int64    `json:"account_id,omitempty"`
	Notes      string    `json:"notes,omitempty"`
	Tags       string    `json:"tags,omitempty"`
	RuleID     *int64    `json:"recurrence_id,omitempty"`
	PeriodKey  string    `json:"period_key,omitempty"`
}

// Generated reports whether the transaction was materialized from a rule.
func (t Transaction) Generated() bool {
	return t.RuleID != nil && t.PeriodKey != ""
}

// Skip suppresses one (rule, period) occurrence. Skips are written by
// the transaction deletion path and only ever read by the engine.
type Skip struct {
	RuleID    int64  `json:"recurrence_id"`
	PeriodKey string `json:"period_key"`
}

// CategoryType partitions categories into spending and income.
type CategoryType string

const (
	CategoryExpense CategoryType = "expense"
	CategoryIncome  CategoryType = "income"
)

// Category labels transactions and rules.
type Category struct {
	ID    int64        `json:"id"`
	Name  string       `json:"name"`
	Type  CategoryType `json:"type"`
	Color string       `json:"color,omitempty"`
}

// Account is an optional money source (cash, card, ...).
type Account struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// User is a ledger participant.
type User struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"is_active"`
}
