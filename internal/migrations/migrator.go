package migrations

import (
	"fmt"
	"sort"

	"livepage/internal/dom"
	"livepage/internal/models"
)

// State is what a rule transforms: the document and its metadata at one
// schema version.
type State struct {
	Document *dom.Document
	Metadata models.PageMetadata
}

func (s State) clone() State {
	meta := s.Metadata
	meta.Categories = append([]string(nil), s.Metadata.Categories...)
	return State{Document: s.Document.Clone(), Metadata: meta}
}

// Rule moves a page from schema version From to From+1. Rules receive a copy
// and may mutate it freely; the migrator sets SchemaVersion itself.
type Rule struct {
	From    int
	Name    string
	Migrate func(State) (State, error)
}

// MigrationError means stored data could not be brought forward. For valid
// stored pages this is a configuration bug, not a user error.
type MigrationError struct {
	From int
	Rule string
	Err  error
}

func (e *MigrationError) Error() string {
	if e.Rule == "" {
		return fmt.Sprintf("migrate from schema version %d: %v", e.From, e.Err)
	}
	return fmt.Sprintf("migrate from schema version %d (%s): %v", e.From, e.Rule, e.Err)
}

func (e *MigrationError) Unwrap() error {
	return e.Err
}

// Migrator applies an ordered, gap-free chain of rules.
type Migrator struct {
	rules []Rule
}

// New validates that rules cover versions 0..n-1 exactly once.
func New(rules ...Rule) (*Migrator, error) {
	sorted := append([]Rule(nil), rules...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].From < sorted[j].From })
	for i, r := range sorted {
		if r.From != i {
			return nil, fmt.Errorf("migration chain: expected rule from version %d, got %d (%s)", i, r.From, r.Name)
		}
		if r.Migrate == nil {
			return nil, fmt.Errorf("migration chain: rule %d (%s) has no migrate func", r.From, r.Name)
		}
	}
	return &Migrator{rules: sorted}, nil
}

// Current is the schema version every page is migrated to.
func (m *Migrator) Current() int {
	return len(m.rules)
}

// Migrate brings state up to Current. The input is never modified; a page
// that is already current comes back as-is with migrated=false.
func (m *Migrator) Migrate(state State) (State, bool, error) {
	from := state.Metadata.SchemaVersion
	if from == m.Current() {
		return state, false, nil
	}
	if from < 0 || from > m.Current() {
		return state, false, &MigrationError{From: from, Err: fmt.Errorf("unknown schema version (current is %d)", m.Current())}
	}

	next := state.clone()
	for _, rule := range m.rules[from:] {
		out, err := rule.Migrate(next)
		if err != nil {
			return state, false, &MigrationError{From: rule.From, Rule: rule.Name, Err: err}
		}
		if out.Document == nil {
			return state, false, &MigrationError{From: rule.From, Rule: rule.Name, Err: fmt.Errorf("rule returned no document")}
		}
		out.Metadata.SchemaVersion = rule.From + 1
		next = out
	}
	return next, true, nil
}
