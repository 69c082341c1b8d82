package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"

	"github.com/couchcryptid/pollution-reports/internal/domain"
	"github.com/couchcryptid/pollution-reports/internal/observability"
	"github.com/couchcryptid/pollution-reports/internal/store"
	"github.com/couchcryptid/pollution-reports/internal/view"
	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 64 << 10

// Reports is the report collection the API mutates and reads.
type Reports interface {
	Add(ctx context.Context, in domain.ReportInput) (domain.Report, error)
	Remove(ctx context.Context, id string) (bool, error)
	Filtered(f domain.Filter) []domain.Report
	Summary() domain.Aggregation
}

// Views renders the table and summary for the viewing session.
type Views interface {
	SetFilter(f domain.Filter) view.View
	Added(id string) view.View
	Removed(id string) view.View
	Current() view.View
}

type reportAPI struct {
	reports Reports
	views    Views
	validate func(domain.RawInput) (domain.ReportInput, error)
	metrics  *observability.Metrics
	logger   *slog.Logger
}

type listResponse struct {
	Filter  domain.Filter   `json:"filter"`
	Reports []domain.Report `json:"reports"`
}

type createResponse struct {
	Report domain.Report `json:"report"`
	View   view.View     `json:"view"`
}

type deleteResponse struct {
	Removed bool      `json:"removed"`
	View    view.View `json:"view"`
}

type summaryResponse struct {
	Aggregate domain.Aggregation `json:"aggregate"`
	Summary   view.Summary       `json:"summary"`
}

type errorResponse struct {
	Field string `json:"field,omitempty"`
	Error string `json:"error"`
}

func (a *reportAPI) listReports(w http.ResponseWriter, r *http.Request) {
	f, ok := a.parseFilter(w, r)
	if !ok {
		return
	}
	reports := a.reports.Filtered(f)
	if reports == nil {
		reports = []domain.Report{}
	}
	writeJSON(w, http.StatusOK, listResponse{Filter: f, Reports: reports})
}

func (a *reportAPI) createReport(w http.ResponseWriter, r *http.Request) {
	raw, err := decodeSubmission(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	in, err := a.validate(raw)
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			a.metrics.ValidationErrors.WithLabelValues(verr.Field).Inc()
			writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Field: verr.Field, Error: verr.Reason})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	report, err := a.reports.Add(r.Context(), in)
	if err != nil {
		a.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, createResponse{Report: report, View: a.views.Added(report.ID)})
}

func (a *reportAPI) deleteReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	removed, err := a.reports.Remove(r.Context(), id)
	if err != nil {
		a.writeStoreError(w, err)
		return
	}

	var v view.View
	if removed {
		v = a.views.Removed(id)
	} else {
		v = a.views.Current()
	}
	writeJSON(w, http.StatusOK, deleteResponse{Removed: removed, View: v})
}

func (a *reportAPI) summary(w http.ResponseWriter, _ *http.Request) {
	agg := a.reports.Summary()
	writeJSON(w, http.StatusOK, summaryResponse{Aggregate: agg, Summary: view.RenderSummary(agg)})
}

func (a *reportAPI) view(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if !q.Has("type") && !q.Has("level") {
		writeJSON(w, http.StatusOK, a.views.Current())
		return
	}
	f, ok := a.parseFilter(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, a.views.SetFilter(f))
}

func (a *reportAPI) parseFilter(w http.ResponseWriter, r *http.Request) (domain.Filter, bool) {
	q := r.URL.Query()
	f, err := domain.ParseFilter(q.Get("type"), q.Get("level"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Field: "level", Error: err.Error()})
		return domain.Filter{}, false
	}
	return f, true
}

func (a *reportAPI) writeStoreError(w http.ResponseWriter, err error) {
	var perr *store.PersistError
	if errors.As(err, &perr) {
		a.logger.Error("report change not saved", "op", perr.Op, "error", perr.Err)
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "could not save reports, the change was not applied"})
		return
	}
	a.logger.Error("report store failed", "error", err)
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
}

// decodeSubmission reads a JSON body or a urlencoded/multipart form.
func decodeSubmission(w http.ResponseWriter, r *http.Request) (domain.RawInput, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var raw domain.RawInput
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			return domain.RawInput{}, errors.New("malformed JSON body")
		}
		return raw, nil
	}

	if err := r.ParseForm(); err != nil {
		return domain.RawInput{}, errors.New("malformed form body")
	}
	return domain.RawInput{
		Place:   r.PostFormValue("place"),
		Type:    r.PostFormValue("type"),
		Level:   r.PostFormValue("level"),
		Date:    r.PostFormValue("date"),
		Comment: r.PostFormValue("comment"),
	}, nil
}
