package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/personaldrive/semidx/internal/blob"
	"github.com/personaldrive/semidx/internal/config"
	"github.com/personaldrive/semidx/internal/embedding"
	"github.com/personaldrive/semidx/internal/files"
	"github.com/personaldrive/semidx/internal/index"
	"github.com/personaldrive/semidx/internal/models"
	"github.com/personaldrive/semidx/internal/storage"
	"github.com/personaldrive/semidx/internal/vector"
)

const testAPIKey = "test-key"

type testEnv struct {
	handler http.Handler
	blobs   *blob.MemoryStore
	manager *index.Manager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()

	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "files.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	mgr, err := index.NewManager(embedding.NewMockEmbedder(16), vector.NewSnapshot(filepath.Join(dir, "index")))
	if err != nil {
		t.Fatal(err)
	}
	blobs := blob.NewMemoryStore()

	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Server.APIKey = testAPIKey

	svc := files.NewService(store, blobs, mgr, files.Limits{
		MaxSizeBytes:     cfg.Files.MaxSizeBytes,
		AllowedMimeTypes: cfg.Files.AllowedMimeTypes,
		UploadExpiry:     time.Duration(cfg.Files.UploadExpirySecs) * time.Second,
		DownloadExpiry:   time.Duration(cfg.Files.DownloadExpirySecs) * time.Second,
	}, zap.NewNop())

	srv := NewServer(mgr, svc, store, cfg, zap.NewNop())
	return &testEnv{handler: srv.Routes(), blobs: blobs, manager: mgr}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("X-API-Key", testAPIKey)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

// uploadText presigns, stores, and completes a plain-text file for user,
// returning the file ID.
func (e *testEnv) uploadText(t *testing.T, user, name, folderID, content string) string {
	t.Helper()
	headers := map[string]string{"X-User-Id": user}
	rec := e.do(t, http.MethodPost, "/api/v1/upload/presign", models.PresignUploadRequest{
		Name: name, Size: int64(len(content)), MimeType: "text/plain", FolderID: folderID,
	}, headers)
	if rec.Code != http.StatusCreated {
		t.Fatalf("presign status=%d body=%s", rec.Code, rec.Body.String())
	}
	var pr models.PresignUploadResponse
	decode(t, rec, &pr)
	e.blobs.Put("documents/"+user+"/"+pr.FileID+"_"+name, []byte(content))
	rec = e.do(t, http.MethodPost, "/api/v1/upload/complete", models.CompleteUploadRequest{FileID: pr.FileID}, headers)
	if rec.Code != http.StatusOK {
		t.Fatalf("complete status=%d body=%s", rec.Code, rec.Body.String())
	}
	return pr.FileID
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v (body=%s)", err, rec.Body.String())
	}
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status=%d", rec.Code)
	}
}

func TestIndexAndSearch(t *testing.T) {
	e := newTestEnv(t)
	user := map[string]string{"X-User-Id": "alice"}

	rec := e.do(t, http.MethodPost, "/api/v1/documents", models.IndexRequest{
		Identifier: "doc-1",
		Text:       "annual tax filing instructions",
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("index status=%d body=%s", rec.Code, rec.Body.String())
	}
	var ir models.IndexResponse
	decode(t, rec, &ir)
	if ir.Outcome != "indexed" {
		t.Errorf("outcome=%s", ir.Outcome)
	}

	// Re-indexing the same identifier is a no-op and returns 200.
	rec = e.do(t, http.MethodPost, "/api/v1/documents", models.IndexRequest{
		Identifier: "doc-1",
		Text:       "different text",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("reindex status=%d", rec.Code)
	}

	rec = e.do(t, http.MethodPost, "/api/v1/search", models.SearchRequest{
		Query: "annual tax filing instructions",
		Limit: 5,
	}, user)
	if rec.Code != http.StatusOK {
		t.Fatalf("search status=%d body=%s", rec.Code, rec.Body.String())
	}
	var sr models.SearchResponse
	decode(t, rec, &sr)
	if sr.Total != 1 || sr.Results[0].Identifier != "doc-1" {
		t.Errorf("response=%+v", sr)
	}
	if sr.Results[0].Rank != 1 {
		t.Errorf("rank=%d", sr.Results[0].Rank)
	}
}

func TestSearch_BadRequests(t *testing.T) {
	e := newTestEnv(t)
	user := map[string]string{"X-User-Id": "alice"}

	rec := e.do(t, http.MethodPost, "/api/v1/search", models.SearchRequest{Query: ""}, user)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty query status=%d", rec.Code)
	}
	rec = e.do(t, http.MethodPost, "/api/v1/search", models.SearchRequest{Query: "q", Limit: 9999}, user)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("huge limit status=%d", rec.Code)
	}
	rec = e.do(t, http.MethodPost, "/api/v1/search", models.SearchRequest{Query: "q"}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing user status=%d", rec.Code)
	}
}

func TestStats(t *testing.T) {
	e := newTestEnv(t)
	e.do(t, http.MethodPost, "/api/v1/documents", models.IndexRequest{Identifier: "d1", Text: "hello"}, nil)

	rec := e.do(t, http.MethodGet, "/api/v1/stats", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	var st map[string]interface{}
	decode(t, rec, &st)
	if st["dimensions"].(float64) != 16 {
		t.Errorf("dimensions=%v", st["dimensions"])
	}
	if st["document_count"].(float64) != 1 {
		t.Errorf("document_count=%v", st["document_count"])
	}
}

func TestFileLifecycleOverHTTP(t *testing.T) {
	e := newTestEnv(t)
	user := map[string]string{"X-User-Id": "alice"}

	rec := e.do(t, http.MethodPost, "/api/v1/upload/presign", models.PresignUploadRequest{
		Name: "notes.txt", Size: 64, MimeType: "text/plain",
	}, user)
	if rec.Code != http.StatusCreated {
		t.Fatalf("presign status=%d body=%s", rec.Code, rec.Body.String())
	}
	var pr models.PresignUploadResponse
	decode(t, rec, &pr)

	// Simulate the client PUT.
	e.blobs.Put("documents/alice/"+pr.FileID+"_notes.txt", []byte("team offsite planning and agenda"))

	rec = e.do(t, http.MethodPost, "/api/v1/upload/complete", models.CompleteUploadRequest{FileID: pr.FileID}, user)
	if rec.Code != http.StatusOK {
		t.Fatalf("complete status=%d body=%s", rec.Code, rec.Body.String())
	}
	var f models.File
	decode(t, rec, &f)
	if f.Status != models.StatusCompleted || !f.Indexed {
		t.Errorf("file=%+v", f)
	}

	// Search finds the file and joins its metadata.
	rec = e.do(t, http.MethodPost, "/api/v1/search", models.SearchRequest{
		Query: "team offsite planning and agenda",
	}, user)
	var sr models.SearchResponse
	decode(t, rec, &sr)
	if sr.Total < 1 || sr.Results[0].Identifier != pr.FileID {
		t.Fatalf("search response=%+v", sr)
	}
	if sr.Results[0].File == nil || sr.Results[0].File.Name != "notes.txt" {
		t.Errorf("metadata not joined: %+v", sr.Results[0])
	}

	rec = e.do(t, http.MethodGet, "/api/v1/files", nil, user)
	var list models.ListResponse
	decode(t, rec, &list)
	if list.Total != 1 {
		t.Errorf("list=%+v", list)
	}

	rec = e.do(t, http.MethodGet, "/api/v1/files/"+pr.FileID+"/download", nil, user)
	if rec.Code != http.StatusOK {
		t.Fatalf("download status=%d body=%s", rec.Code, rec.Body.String())
	}

	rec = e.do(t, http.MethodDelete, "/api/v1/files/"+pr.FileID, nil, user)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status=%d", rec.Code)
	}
	rec = e.do(t, http.MethodGet, "/api/v1/files/"+pr.FileID, nil, user)
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete status=%d", rec.Code)
	}
}

func TestFileOwnershipOverHTTP(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodPost, "/api/v1/upload/presign", models.PresignUploadRequest{
		Name: "secret.txt", Size: 10, MimeType: "text/plain",
	}, map[string]string{"X-User-Id": "alice"})
	var pr models.PresignUploadResponse
	decode(t, rec, &pr)

	rec = e.do(t, http.MethodGet, "/api/v1/files/"+pr.FileID, nil, map[string]string{"X-User-Id": "bob"})
	if rec.Code != http.StatusForbidden {
		t.Errorf("cross-user get status=%d, want 403", rec.Code)
	}
}

func TestUpdateFileOverHTTP(t *testing.T) {
	e := newTestEnv(t)
	user := map[string]string{"X-User-Id": "alice"}

	rec := e.do(t, http.MethodPost, "/api/v1/upload/presign", models.PresignUploadRequest{
		Name: "draft.txt", Size: 10, MimeType: "text/plain",
	}, user)
	var pr models.PresignUploadResponse
	decode(t, rec, &pr)

	rec = e.do(t, http.MethodPatch, "/api/v1/files/"+pr.FileID, map[string]interface{}{
		"description": "final version",
		"tags":        []string{"work"},
	}, user)
	if rec.Code != http.StatusOK {
		t.Fatalf("patch status=%d body=%s", rec.Code, rec.Body.String())
	}
	var f models.File
	decode(t, rec, &f)
	if f.Description != "final version" || len(f.Tags) != 1 {
		t.Errorf("file=%+v", f)
	}
}

func TestSearchScopedToOwner(t *testing.T) {
	e := newTestEnv(t)
	id := e.uploadText(t, "alice", "secret-report.txt", "", "quarterly revenue projections")

	rec := e.do(t, http.MethodPost, "/api/v1/search", models.SearchRequest{
		Query: "quarterly revenue projections",
	}, map[string]string{"X-User-Id": "bob"})
	if rec.Code != http.StatusOK {
		t.Fatalf("search status=%d body=%s", rec.Code, rec.Body.String())
	}
	var sr models.SearchResponse
	decode(t, rec, &sr)
	for _, hit := range sr.Results {
		if hit.Identifier == id {
			t.Fatalf("another user's file surfaced in search results: %+v", hit)
		}
	}

	rec = e.do(t, http.MethodPost, "/api/v1/search", models.SearchRequest{
		Query: "quarterly revenue projections",
	}, map[string]string{"X-User-Id": "alice"})
	decode(t, rec, &sr)
	if sr.Total != 1 || sr.Results[0].Identifier != id {
		t.Fatalf("owner should see their own file: %+v", sr)
	}
	if sr.Results[0].File == nil || sr.Results[0].File.Name != "secret-report.txt" {
		t.Errorf("metadata not joined for owner: %+v", sr.Results[0])
	}
}

func TestSearchFolderFilter(t *testing.T) {
	e := newTestEnv(t)
	user := map[string]string{"X-User-Id": "alice"}
	inFolder := e.uploadText(t, "alice", "plan.txt", "projects", "roadmap planning for next quarter")
	e.uploadText(t, "alice", "misc.txt", "", "grocery list for the weekend")

	rec := e.do(t, http.MethodPost, "/api/v1/search", models.SearchRequest{
		Query:    "roadmap planning",
		FolderID: "projects",
	}, user)
	if rec.Code != http.StatusOK {
		t.Fatalf("search status=%d body=%s", rec.Code, rec.Body.String())
	}
	var sr models.SearchResponse
	decode(t, rec, &sr)
	if sr.Total != 1 || sr.Results[0].Identifier != inFolder {
		t.Errorf("folder filter response=%+v", sr)
	}
	if sr.Results[0].Rank != 1 {
		t.Errorf("rank=%d after filtering", sr.Results[0].Rank)
	}
}

func TestMissingUserHeader(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, http.MethodGet, "/api/v1/files", nil, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing user header status=%d, want 400", rec.Code)
	}
}
