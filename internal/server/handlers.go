package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/plantops/kotae/internal/models"
	"github.com/plantops/kotae/internal/retrieval"
	"github.com/plantops/kotae/internal/vecindex"
)

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req models.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("query request", zap.String("question", req.Question))

	outcome, err := s.retriever.Retrieve(r.Context(), req.Question)
	if err != nil {
		if errors.Is(err, retrieval.ErrEmptyQuestion) {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("retrieval failed", zap.Error(err))
		if errors.Is(err, context.DeadlineExceeded) {
			s.respondError(w, http.StatusGatewayTimeout, "embedding service timed out")
			return
		}
		s.respondError(w, http.StatusBadGateway, "embedding service unavailable")
		return
	}

	draft := s.synthesizer.Synthesize(r.Context(), req.Question, outcome.Evidence)
	s.respondJSON(w, http.StatusOK, models.QueryResponse{
		Answer:            draft.Narrative,
		RelevantLogs:      models.ToRelevantLogs(outcome.Top(s.topN)),
		SuggestedFollowup: draft.Followup,
	})
}

type ingestRequest struct {
	Records []models.RecordInput `json:"records"`
}

func (s *Server) handleIngestRecords(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Records) == 0 {
		s.respondError(w, http.StatusBadRequest, "records are required")
		return
	}
	s.logger.Debug("ingest request", zap.Int("count", len(req.Records)))

	records, err := s.ingester.IngestRecords(r.Context(), req.Records)
	if err != nil {
		s.logger.Error("ingestion failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	ids := make([]string, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.LogID)
	}
	s.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"ingested": len(records),
		"log_ids":  ids,
	})
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := s.records.Get(r.Context(), id)
	if err != nil {
		s.respondError(w, http.StatusNotFound, "record not found")
		return
	}
	s.respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	count, err := s.records.Count(r.Context())
	if err != nil {
		s.logger.Error("status: count records failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	state := "uninitialized"
	switch s.index.State() {
	case vecindex.StateInitialized:
		state = "initialized"
	case vecindex.StatePopulated:
		state = "populated"
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"records":              count,
		"vector_index_size":    s.index.Size(),
		"vector_index_state":   state,
		"embedding_dimensions": s.index.Dimensions(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
