package view

import (
	"sync"

	"github.com/couchcryptid/pollution-reports/internal/domain"
)

// Source supplies the full, unfiltered report collection.
type Source interface {
	List() []domain.Report
}

// View is everything a client needs to draw the report tab and the summary.
type View struct {
	Filter  domain.Filter `json:"filter"`
	Summary Summary       `json:"summary"`
	Rows    []Row         `json:"rows"`
}

// Renderer tracks one viewing session: the filter selection and the rows
// last shown for it.
type Renderer struct {
	mu     sync.Mutex
	source Source
	table  *Table
	filter domain.Filter
}

// NewRenderer creates a Renderer that starts with no filter applied.
func NewRenderer(source Source, table *Table) *Renderer {
	return &Renderer{source: source, table: table, filter: domain.AllReports}
}

// SetFilter switches the filter selection. Nothing animates.
func (r *Renderer) SetFilter(f domain.Filter) View {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.filter = f
	return r.render(Change{Kind: ChangeFilter})
}

// Added re-renders after id was added to the store.
func (r *Renderer) Added(id string) View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.render(Change{Kind: ChangeAdd, ID: id})
}

// Removed re-renders after id was removed from the store. The row lingers
// as exiting; the report itself is already gone from the collection.
func (r *Renderer) Removed(id string) View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.render(Change{Kind: ChangeRemove, ID: id})
}

// Current re-reads the collection with the current filter.
func (r *Renderer) Current() View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.render(Change{Kind: ChangeRefresh})
}

// Filter returns the current filter selection.
func (r *Renderer) Filter() domain.Filter {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filter
}

func (r *Renderer) render(change Change) View {
	all := r.source.List()
	return View{
		Filter:  r.filter,
		Summary: RenderSummary(domain.Aggregate(all)),
		Rows:    r.table.Render(domain.FilterReports(all, r.filter), change),
	}
}
