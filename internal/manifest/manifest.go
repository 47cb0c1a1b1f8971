// Package manifest loads CUE seed manifests describing the users,
// categories, accounts and recurrence rules a ledger database should
// contain. Manifests are validated against an embedded schema before
// they are converted into a seed payload for the store.
package manifest

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/ledgerd/ledgerd/internal/ledger"
	"github.com/ledgerd/ledgerd/internal/store"
)

//go:embed schema.cue
var schemaCUE string

// Manifest is a decoded seed manifest. Field names mirror the CUE
// schema; rules reference their category, user and account by name.
type Manifest struct {
	Users      []User     `json:"users"`
	Categories []Category `json:"categories"`
	Accounts   []Account  `json:"accounts"`
	Rules      []Rule     `json:"rules"`
}

type User struct {
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

type Category struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Color string `json:"color"`
}

type Account struct {
	Name string `json:"name"`
}

type Rule struct {
	Name       string  `json:"name"`
	Amount     float64 `json:"amount"` // positive magnitude
	Category   string  `json:"category"`
	User       string  `json:"user"`
	Account    string  `json:"account"`
	Start      string  `json:"start"`
	End        string  `json:"end"`
	Cadence    string  `json:"frequency"`
	DayOfMonth int     `json:"day_of_month"` // 1-31; 0 = unset
	Weekday    *int    `json:"weekday"`      // Monday=0..Sunday=6; nil = unset
	Active     bool    `json:"active"`
}

// Error is a manifest that failed to load or validate. Pos points into
// the offending CUE source when the evaluator could attribute one.
type Error struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// Load reads a seed manifest from path, which may be a single .cue file
// or a directory containing a CUE package. The manifest is unified with
// the embedded schema, so unknown fields, bad enum values and
// out-of-range numbers are all rejected here.
func Load(path string) (*Manifest, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve manifest path: %w", err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat manifest: %w", err)
	}

	args := []string{filepath.Base(abs)}
	dir := filepath.Dir(abs)
	if info.IsDir() {
		args = []string{"."}
		dir = abs
	}

	ctx := cuecontext.New()
	instances := load.Instances(args, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances found in %s", path)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, formatCUEError(inst.Err)
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	return decode(ctx, value)
}

// decode unifies value with the embedded #Manifest schema and decodes
// the result. The schema must compile in the same context as value.
func decode(ctx *cue.Context, value cue.Value) (*Manifest, error) {
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile embedded schema: %w", err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Manifest")).Unify(value)
	if err := unified.Validate(cue.Final(), cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	var m Manifest
	if err := unified.Decode(&m); err != nil {
		return nil, formatCUEError(err)
	}
	return &m, nil
}

// SeedData converts the manifest into a store seed payload. Date
// strings passed the schema's shape check but may still name an
// impossible day, so they are parsed here and rejected with the rule
// name attached.
func (m *Manifest) SeedData() (store.SeedData, error) {
	var data store.SeedData

	for _, u := range m.Users {
		data.Users = append(data.Users, store.SeedUser{Name: u.Name, Active: u.Active})
	}
	for _, c := range m.Categories {
		data.Categories = append(data.Categories, store.SeedCategory{
			Name:  c.Name,
			Type:  ledger.CategoryType(c.Type),
			Color: c.Color,
		})
	}
	for _, a := range m.Accounts {
		data.Accounts = append(data.Accounts, store.SeedAccount{Name: a.Name})
	}

	for _, r := range m.Rules {
		start, err := ledger.ParseDate(r.Start)
		if err != nil {
			return store.SeedData{}, fmt.Errorf("rule %q: start date: %w", r.Name, err)
		}

		seed := store.SeedRule{
			Name:       r.Name,
			Amount:     r.Amount,
			Category:   r.Category,
			User:       r.User,
			Account:    r.Account,
			Start:      start,
			Cadence:    ledger.Cadence(r.Cadence),
			DayOfMonth: r.DayOfMonth,
			Weekday:    r.Weekday,
			Active:     r.Active,
		}
		if r.End != "" {
			end, err := ledger.ParseDate(r.End)
			if err != nil {
				return store.SeedData{}, fmt.Errorf("rule %q: end date: %w", r.Name, err)
			}
			seed.End = &end
		}
		data.Rules = append(data.Rules, seed)
	}

	return data, nil
}

// formatCUEError extracts path and position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	e := &Error{Message: first.Error()}
	if path := first.Path(); len(path) > 0 {
		e.Field = strings.Join(path, ".")
	}
	if positions := errors.Positions(first); len(positions) > 0 {
		e.Pos = positions[0]
	}
	return e
}
