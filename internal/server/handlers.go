package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/genbatech/chie/internal/blob"
	"github.com/genbatech/chie/internal/models"
)

// maxUploadBytes bounds a single knowledge upload.
const maxUploadBytes = 100 << 20

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()
	content, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "failed to read upload")
		return
	}
	retainOriginal := r.FormValue("retain_original") == "true"

	s.logger.Debug("upload request",
		zap.String("filename", header.Filename),
		zap.Int("bytes", len(content)),
		zap.Bool("retain_original", retainOriginal))

	doc, err := s.ingester.IngestBytes(r.Context(), header.Filename, content, retainOriginal)
	if err != nil {
		s.logger.Error("ingestion failed", zap.String("filename", header.Filename), zap.Error(err))
		s.respondError(w, statusForError(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, doc)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	offset := queryInt(r, "offset", 0)
	limit := queryInt(r, "limit", s.config.Search.DefaultLimit)
	if limit > s.config.Search.MaxLimit {
		limit = s.config.Search.MaxLimit
	}

	var (
		docs []*models.DocumentSummary
		err  error
	)
	if q := r.URL.Query().Get("q"); q != "" {
		docs, err = s.store.SearchDocuments(r.Context(), q, limit)
	} else {
		docs, err = s.store.ListDocuments(r.Context(), offset, limit)
	}
	if err != nil {
		s.logger.Error("list documents failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"documents": docs,
		"offset":    offset,
		"limit":     limit,
	})
}

// handleSearchDocuments is the cheap metadata lookup: substring match over
// title and description, no embedding involved.
func (s *Server) handleSearchDocuments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		s.respondError(w, http.StatusBadRequest, "q parameter is required")
		return
	}
	limit := queryInt(r, "limit", s.config.Search.DefaultLimit)
	if limit > s.config.Search.MaxLimit {
		limit = s.config.Search.MaxLimit
	}
	docs, err := s.store.SearchDocuments(r.Context(), q, limit)
	if err != nil {
		s.logger.Error("document search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"query":     q,
		"documents": docs,
	})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, err := s.store.GetDocument(r.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "document not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, doc)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("delete document request", zap.String("id", id))
	if err := s.ingester.Delete(r.Context(), id); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "document not found")
			return
		}
		s.logger.Error("deletion failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}

func (s *Server) handleListDiffs(w http.ResponseWriter, r *http.Request) {
	logicalType := chi.URLParam(r, "logicalType")
	diffs, err := s.store.ListDiffsByType(r.Context(), logicalType)
	if err != nil {
		s.logger.Error("list diffs failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"logical_type": logicalType,
		"diffs":        diffs,
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var query models.SearchQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if query.Limit > s.config.Search.MaxLimit {
		query.Limit = s.config.Search.MaxLimit
	}
	s.logger.Debug("search request", zap.String("query", query.Text), zap.Int("limit", query.Limit))
	response, err := s.engine.Search(r.Context(), &query)
	if err != nil {
		s.logger.Error("search failed", zap.Error(err))
		s.respondError(w, statusForError(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

type analyzeRequest struct {
	Report models.FailureReport `json:"report"`
	// CandidateIDs restricts correlation to specific documents. When empty,
	// candidates come from a hybrid search over the symptom text.
	CandidateIDs []string `json:"candidate_ids,omitempty"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("analyze request",
		zap.String("failure_id", req.Report.ID),
		zap.String("machine_id", req.Report.MachineID))

	candidates := req.CandidateIDs
	if len(candidates) == 0 {
		symptom := req.Report.SymptomText
		if symptom == "" {
			symptom = req.Report.Diagnostics.PrimaryProblem
		}
		resp, err := s.engine.Search(r.Context(), &models.SearchQuery{Text: symptom})
		if err != nil {
			s.logger.Error("candidate search failed", zap.Error(err))
			s.respondError(w, statusForError(err), err.Error())
			return
		}
		for _, res := range resp.Results {
			candidates = append(candidates, res.Document.ID)
		}
	}

	result, err := s.correlator.Correlate(r.Context(), &req.Report, candidates)
	if err != nil {
		s.logger.Error("analysis failed", zap.Error(err))
		s.respondError(w, statusForError(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docCount, err := s.store.CountDocuments(ctx)
	if err != nil {
		s.logger.Error("status: count documents failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	chunkCount, err := s.store.CountChunks(ctx)
	if err != nil {
		s.logger.Error("status: count chunks failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := map[string]interface{}{
		"documents":         docCount,
		"chunks":            chunkCount,
		"vector_index_size": s.vectorIndex.Size(),
		"ingest_halted":     s.ingester.Halted(),
	}
	if kwCount, err := s.keywordIndex.DocCount(); err == nil {
		resp["keyword_doc_count"] = kwCount
	}
	diskBytes, err := blob.DiskUsageBytes(
		s.config.Storage.DatabasePath,
		s.config.Storage.BleveIndexPath,
		s.config.Storage.BlobDir,
	)
	if err == nil {
		resp["disk_usage_bytes"] = diskBytes
	}
	resp["config"] = map[string]interface{}{
		"vector_index_type":    s.config.Vector.Type,
		"embedding_provider":   s.config.Embedding.Provider,
		"embedding_dimensions": s.config.Embedding.Dimensions,
		"chunk_size":           s.config.Search.ChunkSize,
		"chunk_overlap":        s.config.Search.ChunkOverlap,
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// statusForError maps the error taxonomy onto HTTP status codes. Bad input is
// the caller's fault; a provider outage or halted pipeline is not.
func statusForError(err error) int {
	var unsupported *models.UnsupportedFormatError
	switch {
	case errors.As(err, &unsupported),
		errors.Is(err, models.ErrMalformedInput),
		errors.Is(err, models.ErrEncoding):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrEmbeddingUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, models.ErrIngestHalted),
		errors.Is(err, models.ErrDimensionMismatch):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
