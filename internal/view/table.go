package view

import (
	"slices"
	"sync"
	"time"

	"github.com/couchcryptid/pollution-reports/internal/domain"
	"github.com/jonboulle/clockwork"
)

// Transition marks a row that is animating in or out.
type Transition string

const (
	TransitionNone     Transition = ""
	TransitionEntering Transition = "entering"
	TransitionExiting  Transition = "exiting"
)

// Row is one display row of the report table.
type Row struct {
	ID         string     `json:"id"`
	Place      string     `json:"place"`
	Type       string     `json:"type"`
	Level      int        `json:"level"`
	LevelClass string     `json:"level_class"`
	Date       string     `json:"date"`
	Comment    string     `json:"comment"`
	Transition Transition `json:"transition,omitempty"`
}

// NewRow projects a report into a display row.
func NewRow(r domain.Report) Row {
	return Row{
		ID:         r.ID,
		Place:      r.Place,
		Type:       r.Type,
		Level:      r.Level,
		LevelClass: r.Bucket().LevelClass(),
		Date:       r.Date,
		Comment:    r.Comment,
	}
}

// ChangeKind says what caused a re-render.
type ChangeKind int

const (
	// ChangeRefresh re-reads the collection without animating anything new.
	ChangeRefresh ChangeKind = iota
	// ChangeFilter is a filter selection change. It never animates and
	// discards rows that were still exiting.
	ChangeFilter
	// ChangeAdd follows a store add of Change.ID.
	ChangeAdd
	// ChangeRemove follows a store removal of Change.ID.
	ChangeRemove
)

// Change describes the mutation behind a render.
type Change struct {
	Kind ChangeKind
	ID   string
}

// Reconcile diffs the previously rendered rows against the new filtered
// reports by id. Rows follow the order of next. The row for a just-added
// report is marked entering if it was not shown before. The row for a
// just-removed report stays in its previous slot marked exiting, as do rows
// still exiting from earlier removals, unless the change is a filter change.
func Reconcile(prev []Row, next []domain.Report, change Change) []Row {
	shown := make(map[string]bool, len(prev))
	for _, r := range prev {
		if r.Transition != TransitionExiting {
			shown[r.ID] = true
		}
	}
	present := make(map[string]bool, len(next))
	for _, r := range next {
		present[r.ID] = true
	}

	rows := make([]Row, 0, len(next)+1)
	for _, r := range next {
		row := NewRow(r)
		if change.Kind == ChangeAdd && r.ID == change.ID && !shown[r.ID] {
			row.Transition = TransitionEntering
		}
		rows = append(rows, row)
	}

	if change.Kind == ChangeFilter {
		return rows
	}

	// Re-insert exiting rows after the nearest earlier row that is still on screen.
	anchor := ""
	for _, p := range prev {
		exiting := !present[p.ID] &&
			(p.Transition == TransitionExiting || (change.Kind == ChangeRemove && p.ID == change.ID))
		switch {
		case exiting:
			p.Transition = TransitionExiting
			rows = slices.Insert(rows, indexAfter(rows, anchor), p)
			anchor = p.ID
		case present[p.ID]:
			anchor = p.ID
		}
	}
	return rows
}

func indexAfter(rows []Row, id string) int {
	if id == "" {
		return 0
	}
	for i, r := range rows {
		if r.ID == id {
			return i + 1
		}
	}
	return 0
}

// Table keeps the last rendered rows so each render can be diffed against
// the previous one. Exiting rows linger for the exit duration and are then
// discarded. Safe for concurrent use.
type Table struct {
	mu           sync.Mutex
	clock        clockwork.Clock
	exitDuration time.Duration
	rows         []Row
	exitAt       map[string]time.Time
}

// NewTable creates an empty Table. A nil clock uses real time.
func NewTable(clock clockwork.Clock, exitDuration time.Duration) *Table {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Table{
		clock:        clock,
		exitDuration: exitDuration,
		exitAt:       make(map[string]time.Time),
	}
}

// Render reconciles next against the current rows and returns the new rows.
func (t *Table) Render(next []domain.Report, change Change) []Row {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.prune()
	rows := Reconcile(t.rows, next, change)

	now := t.clock.Now()
	exiting := make(map[string]time.Time)
	for _, r := range rows {
		if r.Transition != TransitionExiting {
			continue
		}
		if at, ok := t.exitAt[r.ID]; ok {
			exiting[r.ID] = at
		} else {
			exiting[r.ID] = now.Add(t.exitDuration)
		}
	}
	t.exitAt = exiting
	t.rows = rows
	return slices.Clone(rows)
}

// Rows returns the current rows after discarding finished exits.
func (t *Table) Rows() []Row {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.prune()
	return slices.Clone(t.rows)
}

// prune drops exiting rows whose transition has completed. Callers hold t.mu.
func (t *Table) prune() {
	now := t.clock.Now()
	t.rows = slices.DeleteFunc(t.rows, func(r Row) bool {
		if r.Transition != TransitionExiting {
			return false
		}
		at, ok := t.exitAt[r.ID]
		if !ok || !now.Before(at) {
			delete(t.exitAt, r.ID)
			return true
		}
		return false
	})
}
