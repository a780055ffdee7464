package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/genbatech/chie/internal/analyze"
	"github.com/genbatech/chie/internal/blob"
	"github.com/genbatech/chie/internal/config"
	"github.com/genbatech/chie/internal/embedding"
	"github.com/genbatech/chie/internal/ingest"
	"github.com/genbatech/chie/internal/keyword"
	"github.com/genbatech/chie/internal/models"
	"github.com/genbatech/chie/internal/search"
	"github.com/genbatech/chie/internal/store"
	"github.com/genbatech/chie/internal/vector"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()

	st, err := store.NewSQLiteStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	blobs, err := blob.NewDiskStore(filepath.Join(dir, "blobs"))
	if err != nil {
		t.Fatal(err)
	}
	embedder := embedding.NewMockEmbedder(8)
	t.Cleanup(func() { embedder.Close() })
	vecIdx, err := vector.NewMemoryIndex(8)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { vecIdx.Close() })
	kwIdx, err := keyword.NewMemoryBleveIndex()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { kwIdx.Close() })

	chunker := ingest.NewChunker(100, 20)
	ingester := ingest.NewIngester(st, blobs, embedder, vecIdx, kwIdx, chunker)
	engine := search.NewEngine(st, embedder, vecIdx, kwIdx, search.DefaultConfig())
	correlator := analyze.NewCorrelator(st, embedder)

	cfg := &config.Config{
		Storage: config.StorageConfig{
			DatabasePath:   filepath.Join(dir, "test.db"),
			BleveIndexPath: filepath.Join(dir, "bleve"),
			BlobDir:        filepath.Join(dir, "blobs"),
		},
	}
	config.ApplyDefaults(cfg)

	return NewServer(ingester, engine, correlator, st, vecIdx, kwIdx, cfg, zap.NewNop())
}

func multipartUpload(t *testing.T, filename, content string, retainOriginal bool) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	fw, err := w.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if retainOriginal {
		if err := w.WriteField("retain_original", "true"); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return &body, w.FormDataContentType()
}

func uploadDocument(t *testing.T, router http.Handler, filename, content string) models.ProcessedDocument {
	t.Helper()
	body, contentType := multipartUpload(t, filename, content, false)
	r := httptest.NewRequest(http.MethodPost, "/api/v1/knowledge", body)
	r.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)
	if w.Code != http.StatusCreated {
		t.Fatalf("upload status: got %d, body %s", w.Code, w.Body.String())
	}
	var doc models.ProcessedDocument
	if err := json.NewDecoder(w.Body).Decode(&doc); err != nil {
		t.Fatal(err)
	}
	return doc
}

func TestHandleUpload_createsDocument(t *testing.T) {
	srv := newTestServer(t)
	router := srv.Router()

	doc := uploadDocument(t, router, "maintenance_manual.txt", "Replace brake pads every 500 hours.")
	if doc.ID == "" {
		t.Error("document ID should be set")
	}
	if doc.LogicalType != "txt" {
		t.Errorf("logical type = %q", doc.LogicalType)
	}

	r := httptest.NewRequest(http.MethodGet, "/api/v1/knowledge/"+doc.ID, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Errorf("get status: got %d", w.Code)
	}
}

func TestHandleUpload_unsupportedFormat(t *testing.T) {
	srv := newTestServer(t)
	router := srv.Router()

	body, contentType := multipartUpload(t, "binary.exe", "MZ", false)
	r := httptest.NewRequest(http.MethodPost, "/api/v1/knowledge", body)
	r.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", w.Code)
	}
}

func TestHandleUpload_missingFile(t *testing.T) {
	srv := newTestServer(t)
	r := httptest.NewRequest(http.MethodPost, "/api/v1/knowledge", strings.NewReader("not multipart"))
	r.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, r)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", w.Code)
	}
}

func TestHandleListDocuments(t *testing.T) {
	srv := newTestServer(t)
	router := srv.Router()
	uploadDocument(t, router, "manual_a.txt", "pump seal replacement steps")
	uploadDocument(t, router, "manual_b.txt", "conveyor belt tensioning")

	r := httptest.NewRequest(http.MethodGet, "/api/v1/knowledge", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out struct {
		Documents []models.DocumentSummary `json:"documents"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out.Documents) != 2 {
		t.Errorf("documents: got %d", len(out.Documents))
	}
}

func TestHandleGetDocument_notFound(t *testing.T) {
	srv := newTestServer(t)
	r := httptest.NewRequest(http.MethodGet, "/api/v1/knowledge/no-such-id", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, r)
	if w.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", w.Code)
	}
}

func TestHandleDeleteDocument_clearsIndexes(t *testing.T) {
	srv := newTestServer(t)
	router := srv.Router()
	doc := uploadDocument(t, router, "stale.txt", "stale pump notes kept too long")

	r := httptest.NewRequest(http.MethodDelete, "/api/v1/knowledge/"+doc.ID, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("delete status: got %d, body %s", w.Code, w.Body.String())
	}

	if size := srv.vectorIndex.Size(); size != 0 {
		t.Errorf("vector index still holds %d entries for deleted document", size)
	}
	if n, err := srv.keywordIndex.DocCount(); err != nil || n != 0 {
		t.Errorf("keyword index still holds %d documents after delete (err %v)", n, err)
	}
	r = httptest.NewRequest(http.MethodGet, "/api/v1/knowledge/"+doc.ID, nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, r)
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete: got %d, want 404", w.Code)
	}
}

func TestHandleDeleteDocument_missing(t *testing.T) {
	srv := newTestServer(t)
	router := srv.Router()
	r := httptest.NewRequest(http.MethodDelete, "/api/v1/knowledge/no-such-id", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)
	if w.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", w.Code)
	}
}

func TestHandleListDiffs(t *testing.T) {
	srv := newTestServer(t)
	router := srv.Router()
	uploadDocument(t, router, "inspection_sheet.txt", "check oil level\ncheck belts")
	uploadDocument(t, router, "inspection_sheet.txt", "check oil level\ncheck belts\ncheck coolant")

	r := httptest.NewRequest(http.MethodGet, "/api/v1/diffs/txt", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out struct {
		LogicalType string               `json:"logical_type"`
		Diffs       []models.VersionDiff `json:"diffs"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out.Diffs) != 1 {
		t.Fatalf("diffs: got %d, want 1", len(out.Diffs))
	}
	if out.Diffs[0].AddedCount() == 0 {
		t.Error("second upload should record added segments")
	}
}

func TestHandleSearch(t *testing.T) {
	srv := newTestServer(t)
	router := srv.Router()
	uploadDocument(t, router, "brake_manual.txt", "brake pad wear inspection and replacement procedure")

	query, _ := json.Marshal(models.SearchQuery{Text: "brake pad wear"})
	r := httptest.NewRequest(http.MethodPost, "/api/v1/search", bytes.NewReader(query))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}
	var resp models.SearchResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Query != "brake pad wear" {
		t.Errorf("echoed query = %q", resp.Query)
	}
}

func TestHandleSearch_emptyQuery(t *testing.T) {
	srv := newTestServer(t)
	r := httptest.NewRequest(http.MethodPost, "/api/v1/search", strings.NewReader(`{"text":"  "}`))
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, r)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", w.Code)
	}
}

func TestHandleAnalyze(t *testing.T) {
	srv := newTestServer(t)
	router := srv.Router()
	doc := uploadDocument(t, router, "brake_manual.txt", "brake pad wear inspection and replacement procedure")

	req, _ := json.Marshal(analyzeRequest{
		Report: models.FailureReport{
			ID:          "f-1",
			MachineID:   "press-01",
			SymptomText: "ブレーキから発煙、緊急停止した",
			Diagnostics: models.Diagnostics{Components: []string{"brake"}},
		},
		CandidateIDs: []string{doc.ID},
	})
	r := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", bytes.NewReader(req))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}
	var result models.AnalysisResult
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if result.FailureID != "f-1" {
		t.Errorf("failure id = %q", result.FailureID)
	}
	if result.RiskLevel != models.RiskHigh {
		t.Errorf("risk = %q, want high", result.RiskLevel)
	}
	if len(result.RankedDocuments) != 1 {
		t.Errorf("ranked documents: got %d", len(result.RankedDocuments))
	}
}

func TestHandleAnalyze_emptyReport(t *testing.T) {
	srv := newTestServer(t)
	r := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", strings.NewReader(`{"report":{"id":"f"}}`))
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, r)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", w.Code)
	}
}

func TestHandleStatus(t *testing.T) {
	srv := newTestServer(t)
	router := srv.Router()
	uploadDocument(t, router, "manual.txt", "some maintenance content")

	r := httptest.NewRequest(http.MethodGet, "/status", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out["documents"].(float64) != 1 {
		t.Errorf("documents = %v", out["documents"])
	}
	if out["ingest_halted"].(bool) {
		t.Error("ingest should not be halted")
	}
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t)
	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Errorf("status: got %d", w.Code)
	}
}

func TestStatusForError(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{&models.UnsupportedFormatError{Ext: ".exe"}, http.StatusBadRequest},
		{models.ErrMalformedInput, http.StatusBadRequest},
		{models.ErrEncoding, http.StatusBadRequest},
		{models.ErrNotFound, http.StatusNotFound},
		{models.ErrEmbeddingUnavailable, http.StatusServiceUnavailable},
		{models.ErrIngestHalted, http.StatusConflict},
		{context.DeadlineExceeded, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusForError(tc.err); got != tc.want {
			t.Errorf("statusForError(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
