package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/marcus/brand-radar/internal/orchestrator"
	"github.com/marcus/brand-radar/internal/pipeline"
)

var validate = validator.New()

// MarketRequest is one market in a report request.
type MarketRequest struct {
	Code       string   `json:"code" validate:"required,min=2,max=8"`
	Name       string   `json:"name" validate:"required"`
	Categories []string `json:"categories" validate:"dive,min=1"`
}

// CreateReportRequest is the body of POST /reports.
type CreateReportRequest struct {
	Entity    string          `json:"entity" validate:"required,min=1"`
	Markets   []MarketRequest `json:"markets" validate:"required,min=1,dive"`
	BatchSize int             `json:"batch_size" validate:"gte=0,lte=500"`
}

// CreateReportResponse is returned once the run is accepted.
type CreateReportResponse struct {
	ReportID  string `json:"report_id"`
	Status    string `json:"status"`
	EventsURL string `json:"events_url"`
}

// handleCreateReport accepts an analysis request and starts the run in the
// background. Progress is observable on the report's event stream.
func (s *Server) handleCreateReport(w http.ResponseWriter, r *http.Request) {
	var req CreateReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := validate.Struct(req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}

	reportID := uuid.New()
	reporter := s.broker.NewReporter(reportID.String())

	markets := make([]orchestrator.Market, len(req.Markets))
	for i, m := range req.Markets {
		markets[i] = orchestrator.Market{Code: m.Code, Name: m.Name, Categories: m.Categories}
	}

	opts := pipeline.RunOptions{
		Entity:       req.Entity,
		Markets:      markets,
		ReportID:     reportID,
		GeminiAPIKey: s.cfg.GeminiAPIKey,
		GeminiModel:  s.cfg.GeminiModel,
		OpenAIAPIKey: s.cfg.OpenAIAPIKey,
		OpenAIModel:  s.cfg.OpenAIModel,
		BatchSize:    batchSize(req.BatchSize, s.cfg.BatchSize),
		DatabaseURL:  s.cfg.DatabaseURL,
		Verbose:      s.cfg.Verbose,
		Reporter:     reporter,
	}

	// The run outlives the HTTP request; it reports its end through the
	// event stream and the report row.
	go func() {
		if _, err := s.run(context.Background(), opts); err != nil {
			log.Printf("[SERVER] report %s failed: %v", reportID, err)
		}
	}()

	s.jsonResponse(w, http.StatusAccepted, CreateReportResponse{
		ReportID:  reportID.String(),
		Status:    "running",
		EventsURL: fmt.Sprintf("/reports/%s/events", reportID),
	})
}

// handleListReports returns recent reports
func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		err := &ErrNoDatabase{}
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	reports, err := s.db.ListReports(r.Context(), 50)
	if err != nil {
		log.Printf("[SERVER] failed to list reports: %v", err)
		s.errorResponse(w, http.StatusInternalServerError, "failed to list reports")
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"reports": reports})
}

// handleGetReport returns one stored report with its market analyses
func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		err := &ErrNoDatabase{}
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	reportID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid report id")
		return
	}

	report, err := s.db.GetReport(r.Context(), reportID)
	if err != nil {
		log.Printf("[SERVER] failed to get report %s: %v", reportID, err)
		s.errorResponse(w, http.StatusInternalServerError, "failed to get report")
		return
	}
	if report == nil {
		nf := &ErrReportNotFound{ReportID: reportID}
		s.errorResponse(w, HTTPStatus(nf), nf.Error())
		return
	}

	analyses, err := s.db.GetMarketAnalyses(r.Context(), reportID)
	if err != nil {
		log.Printf("[SERVER] failed to get market analyses %s: %v", reportID, err)
		s.errorResponse(w, http.StatusInternalServerError, "failed to get market analyses")
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"report":   report,
		"analyses": analyses,
	})
}

// handleReportEvents streams a report's progress as Server-Sent Events
// until the terminal event or until the client disconnects. Subscribing to
// a finished report yields an immediately closed stream.
func (s *Server) handleReportEvents(w http.ResponseWriter, r *http.Request) {
	reportID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid report id")
		return
	}

	stream, err := newEventStream(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	events, unsubscribe := s.broker.Subscribe(reportID.String())
	defer unsubscribe()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, open := <-events:
			if !open {
				return
			}
			if err := stream.send(string(ev.Type), ev); err != nil {
				return
			}
			if ev.Terminal() {
				return
			}
		}
	}
}

// batchSize picks the request's batch size, then the server's, then the
// orchestrator default.
func batchSize(requested, configured int) int {
	if requested > 0 {
		return requested
	}
	if configured > 0 {
		return configured
	}
	return 0
}
