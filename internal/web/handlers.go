package web

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/ecoledger/carbon-dashboard/internal/carbon"
	"github.com/ecoledger/carbon-dashboard/internal/consumption"
	"github.com/ecoledger/carbon-dashboard/internal/dashboard"
	"github.com/ecoledger/carbon-dashboard/internal/importer"
	"github.com/ecoledger/carbon-dashboard/internal/report"
)

// importConcurrency bounds concurrent saves during a spreadsheet import.
const importConcurrency = 4

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) handleFactors(w http.ResponseWriter, r *http.Request) {
	writeData(w, r, http.StatusOK, s.records.Table())
}

type calculateRequest struct {
	carbon.EmissionData
	Activities []carbon.ActivityEntry `json:"activities"`
}

type calculateResponse struct {
	Result        carbon.EmissionResult `json:"result"`
	Activities    carbon.ActivityResult `json:"activities"`
	Scopes        carbon.ScopeTotals    `json:"scopes"`
	Equivalencies []carbon.Equivalency  `json:"equivalencies"`
}

func (s *Server) handleCalculate(w http.ResponseWriter, r *http.Request) {
	var req calculateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	result := s.calc.Calculate(req.EmissionData)
	activities, err := carbon.CalculateActivities(req.Activities, s.calc.Table())
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.metrics.Calculation()

	scopes := carbon.ScopeBreakdown(result).Merge(activities.Scopes)
	writeData(w, r, http.StatusOK, calculateResponse{
		Result:        result,
		Activities:    activities,
		Scopes:        scopes,
		Equivalencies: carbon.Equivalencies(scopes.Total),
	})
}

// recordRequest is the editable part of a record. Period dates are ISO days.
type recordRequest struct {
	EntityID    string                 `json:"entityId"`
	PeriodStart string                 `json:"periodStart"`
	PeriodEnd   string                 `json:"periodEnd"`
	Data        carbon.EmissionData    `json:"data"`
	Activities  []carbon.ActivityEntry `json:"activities"`
	Notes       string                 `json:"notes"`
}

func (req recordRequest) record() (consumption.Record, error) {
	start, err := parseDay("periodStart", req.PeriodStart)
	if err != nil {
		return consumption.Record{}, err
	}
	end, err := parseDay("periodEnd", req.PeriodEnd)
	if err != nil {
		return consumption.Record{}, err
	}
	return consumption.Record{
		EntityID:    req.EntityID,
		PeriodStart: start,
		PeriodEnd:   end,
		Data:        req.Data,
		Activities:  req.Activities,
		Notes:       req.Notes,
	}, nil
}

func (s *Server) decodeRecord(w http.ResponseWriter, r *http.Request) (consumption.Record, bool) {
	var req recordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return consumption.Record{}, false
	}
	rec, err := req.record()
	if err != nil {
		writeError(w, r, err)
		return consumption.Record{}, false
	}
	return rec, true
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	records, err := s.records.List(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if records == nil {
		records = []consumption.Record{}
	}
	writeData(w, r, http.StatusOK, records)
}

func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.decodeRecord(w, r)
	if !ok {
		return
	}
	a, err := s.records.Create(r.Context(), rec)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/records/"+a.Record.ID)
	writeData(w, r, http.StatusCreated, a)
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	a, err := s.records.Assess(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, a)
}

func (s *Server) handleUpdateRecord(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.decodeRecord(w, r)
	if !ok {
		return
	}
	rec.ID = r.PathValue("id")
	a, err := s.records.Update(r.Context(), rec)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, a)
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	if err := s.records.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type importResponse struct {
	Imported int                      `json:"imported"`
	Records  []consumption.Assessment `json:"records"`
	Errors   []importer.RowError      `json:"errors"`
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, bodyError(err, "multipart field \"file\" is required: %v", err))
		return
	}
	defer file.Close()

	res, err := importer.Read(file, header.Filename, s.records.Table())
	if err != nil {
		writeError(w, r, err)
		return
	}
	saved, failures, err := importer.Save(r.Context(), s.records, res, importConcurrency)
	if err != nil {
		writeError(w, r, err)
		return
	}

	rowErrors := append(append([]importer.RowError{}, res.Errors...), failures...)
	if saved == nil {
		saved = []consumption.Assessment{}
	}
	writeData(w, r, http.StatusOK, importResponse{Imported: len(saved), Records: saved, Errors: rowErrors})
}

func (s *Server) handleDashboardNames(w http.ResponseWriter, r *http.Request) {
	writeData(w, r, http.StatusOK, dashboard.Names())
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	f.Limit = 0
	summary, err := s.records.Summary(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	d, err := dashboard.Build(r.PathValue("name"), summary)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, d)
}

func (s *Server) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	schedules, err := s.schedules.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if schedules == nil {
		schedules = []report.Schedule{}
	}
	writeData(w, r, http.StatusOK, schedules)
}

func (s *Server) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	var sch report.Schedule
	if err := decodeJSON(w, r, &sch); err != nil {
		writeError(w, r, err)
		return
	}
	created, err := s.schedules.Create(r.Context(), sch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/schedules/"+created.ID)
	writeData(w, r, http.StatusCreated, created)
}

func (s *Server) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	sch, err := s.schedules.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, sch)
}

func (s *Server) handleUpdateSchedule(w http.ResponseWriter, r *http.Request) {
	var sch report.Schedule
	if err := decodeJSON(w, r, &sch); err != nil {
		writeError(w, r, err)
		return
	}
	sch.ID = r.PathValue("id")
	updated, err := s.schedules.Update(r.Context(), sch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, updated)
}

func (s *Server) handleDeleteSchedule(w http.ResponseWriter, r *http.Request) {
	if err := s.schedules.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeliveries(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.schedules.Get(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, r, badRequest("limit: expected a non-negative integer, got %q", v))
			return
		}
		limit = n
	}
	deliveries, err := s.schedules.Deliveries(r.Context(), id, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if deliveries == nil {
		deliveries = []report.Delivery{}
	}
	writeData(w, r, http.StatusOK, deliveries)
}

// handleReport renders an on-demand report. The body is the rendered report
// itself rather than an envelope.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	f.Limit = 0
	format := report.FormatJSON
	if v := r.URL.Query().Get("format"); v != "" {
		format = report.Format(v)
	}
	if !format.Valid() {
		writeError(w, r, badRequest("unknown format %q", format))
		return
	}

	summary, err := s.records.Summary(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	now := s.now().UTC()
	rep := report.Build(r.URL.Query().Get("title"), summary,
		report.Period{EntityID: f.EntityID, From: f.From, To: f.To}, s.records.Table(), now)

	var body bytes.Buffer
	if err := report.Render(&body, rep, format); err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+report.Filename(rep.Title, now, format)+`"`)
	_, _ = w.Write(body.Bytes())
}
