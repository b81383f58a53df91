package files

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/personaldrive/semidx/internal/blob"
	"github.com/personaldrive/semidx/internal/embedding"
	"github.com/personaldrive/semidx/internal/index"
	"github.com/personaldrive/semidx/internal/models"
	"github.com/personaldrive/semidx/internal/semerr"
	"github.com/personaldrive/semidx/internal/storage"
	"github.com/personaldrive/semidx/internal/vector"
)

func testLimits() Limits {
	return Limits{
		MaxSizeBytes:     1 << 20,
		AllowedMimeTypes: []string{"application/pdf", "text/plain", "image/png"},
		UploadExpiry:     15 * time.Minute,
		DownloadExpiry:   time.Hour,
	}
}

func newTestService(t *testing.T) (*Service, *blob.MemoryStore, *index.Manager) {
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
	return NewService(store, blobs, mgr, testLimits(), nil), blobs, mgr
}

func presign(t *testing.T, svc *Service, owner, name, mime string, size int64) *models.PresignUploadResponse {
	t.Helper()
	resp, err := svc.PresignUpload(context.Background(), owner, models.PresignUploadRequest{
		Name: name, Size: size, MimeType: mime,
	})
	if err != nil {
		t.Fatalf("PresignUpload: %v", err)
	}
	return resp
}

func TestPresignUpload(t *testing.T) {
	svc, _, _ := newTestService(t)
	resp := presign(t, svc, "alice", "notes.txt", "text/plain", 100)

	if resp.FileID == "" || resp.UploadURL == "" {
		t.Errorf("resp=%+v", resp)
	}
	if resp.ExpiresIn != 900 {
		t.Errorf("expires_in=%d, want 900", resp.ExpiresIn)
	}
	f, err := svc.Get(context.Background(), "alice", resp.FileID)
	if err != nil {
		t.Fatal(err)
	}
	if f.Status != models.StatusPending {
		t.Errorf("status=%s, want pending", f.Status)
	}
}

func TestPresignUpload_Validation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		name string
		req  models.PresignUploadRequest
	}{
		{"empty name", models.PresignUploadRequest{Name: "", Size: 1, MimeType: "text/plain"}},
		{"zero size", models.PresignUploadRequest{Name: "a.txt", Size: 0, MimeType: "text/plain"}},
		{"too big", models.PresignUploadRequest{Name: "a.txt", Size: 2 << 20, MimeType: "text/plain"}},
		{"bad mime", models.PresignUploadRequest{Name: "a.zip", Size: 1, MimeType: "application/zip"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.PresignUpload(ctx, "alice", tc.req)
			if !semerr.IsKind(err, semerr.KindInvalidArgument) {
				t.Errorf("err=%v, want invalid_argument", err)
			}
		})
	}

	if _, err := svc.PresignUpload(ctx, "bad user!", models.PresignUploadRequest{Name: "a.txt", Size: 1, MimeType: "text/plain"}); err == nil {
		t.Error("invalid user id should fail")
	}
}

func TestCompleteUpload_IndexesText(t *testing.T) {
	svc, blobs, mgr := newTestService(t)
	ctx := context.Background()

	resp := presign(t, svc, "alice", "notes.txt", "text/plain", 100)
	blobs.Put("documents/alice/"+resp.FileID+"_notes.txt", []byte("quarterly revenue projections for the finance team"))

	f, err := svc.CompleteUpload(ctx, "alice", resp.FileID)
	if err != nil {
		t.Fatalf("CompleteUpload: %v", err)
	}
	if f.Status != models.StatusCompleted || !f.Indexed {
		t.Errorf("file=%+v", f)
	}
	if f.Hash == "" {
		t.Error("hash not computed")
	}
	if !mgr.Contains(resp.FileID) {
		t.Error("file should be in the search index")
	}
	matches, err := mgr.Search(ctx, "quarterly revenue projections for the finance team", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 || matches[0].Identifier != resp.FileID {
		t.Errorf("matches=%v", matches)
	}
}

func TestCompleteUpload_UnsupportedFormatStoredUnindexed(t *testing.T) {
	svc, blobs, mgr := newTestService(t)
	ctx := context.Background()

	resp := presign(t, svc, "alice", "photo.png", "image/png", 4)
	blobs.Put("documents/alice/"+resp.FileID+"_photo.png", []byte{0x89, 'P', 'N', 'G'})

	f, err := svc.CompleteUpload(ctx, "alice", resp.FileID)
	if err != nil {
		t.Fatalf("CompleteUpload: %v", err)
	}
	if f.Status != models.StatusCompleted {
		t.Errorf("status=%s", f.Status)
	}
	if f.Indexed || mgr.Contains(resp.FileID) {
		t.Error("unsupported format should not be indexed")
	}
}

func TestCompleteUpload_NoContent(t *testing.T) {
	svc, _, _ := newTestService(t)
	resp := presign(t, svc, "alice", "notes.txt", "text/plain", 100)

	_, err := svc.CompleteUpload(context.Background(), "alice", resp.FileID)
	if !semerr.IsKind(err, semerr.KindInvalidArgument) {
		t.Errorf("err=%v, want invalid_argument", err)
	}
}

func TestCompleteUpload_Idempotent(t *testing.T) {
	svc, blobs, _ := newTestService(t)
	ctx := context.Background()

	resp := presign(t, svc, "alice", "notes.txt", "text/plain", 100)
	blobs.Put("documents/alice/"+resp.FileID+"_notes.txt", []byte("some text"))

	if _, err := svc.CompleteUpload(ctx, "alice", resp.FileID); err != nil {
		t.Fatal(err)
	}
	f, err := svc.CompleteUpload(ctx, "alice", resp.FileID)
	if err != nil {
		t.Fatalf("second complete should be a no-op: %v", err)
	}
	if f.Status != models.StatusCompleted {
		t.Errorf("status=%s", f.Status)
	}
}

func TestOwnership(t *testing.T) {
	svc, blobs, _ := newTestService(t)
	ctx := context.Background()

	resp := presign(t, svc, "alice", "notes.txt", "text/plain", 100)
	blobs.Put("documents/alice/"+resp.FileID+"_notes.txt", []byte("text"))

	if _, err := svc.Get(ctx, "bob", resp.FileID); !semerr.IsKind(err, semerr.KindPermissionDenied) {
		t.Errorf("Get err=%v, want permission_denied", err)
	}
	if err := svc.Delete(ctx, "bob", resp.FileID); !semerr.IsKind(err, semerr.KindPermissionDenied) {
		t.Errorf("Delete err=%v, want permission_denied", err)
	}
	if _, err := svc.CompleteUpload(ctx, "bob", resp.FileID); !semerr.IsKind(err, semerr.KindPermissionDenied) {
		t.Errorf("CompleteUpload err=%v, want permission_denied", err)
	}
}

func TestListAndUpdate(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	a := presign(t, svc, "alice", "one.txt", "text/plain", 10)
	presign(t, svc, "alice", "two.txt", "text/plain", 10)
	presign(t, svc, "bob", "three.txt", "text/plain", 10)

	list, err := svc.List(ctx, "alice", models.ListFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(list.Files) != 2 || list.Total != 2 {
		t.Errorf("list=%+v", list)
	}

	newName := "renamed.txt"
	desc := "important"
	f, err := svc.Update(ctx, "alice", a.FileID, models.FileUpdate{Name: &newName, Description: &desc})
	if err != nil {
		t.Fatal(err)
	}
	if f.Name != "renamed.txt" || f.Description != "important" {
		t.Errorf("file=%+v", f)
	}

	bad := "///"
	if _, err := svc.Update(ctx, "alice", a.FileID, models.FileUpdate{Name: &bad}); err == nil {
		t.Error("unusable name should fail")
	}
}

func TestDelete_RemovesBlobKeepsIndexSlot(t *testing.T) {
	svc, blobs, mgr := newTestService(t)
	ctx := context.Background()

	resp := presign(t, svc, "alice", "notes.txt", "text/plain", 100)
	key := "documents/alice/" + resp.FileID + "_notes.txt"
	blobs.Put(key, []byte("delete me later"))
	if _, err := svc.CompleteUpload(ctx, "alice", resp.FileID); err != nil {
		t.Fatal(err)
	}

	if err := svc.Delete(ctx, "alice", resp.FileID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if blobs.Len() != 0 {
		t.Error("blob should be removed")
	}
	if _, err := svc.Get(ctx, "alice", resp.FileID); !semerr.IsKind(err, semerr.KindNotFound) {
		t.Errorf("metadata should be gone, err=%v", err)
	}
	// The index is append-only; the slot survives deletion.
	if !mgr.Contains(resp.FileID) {
		t.Error("index slot should remain after delete")
	}
}

func TestPresignDownload(t *testing.T) {
	svc, blobs, _ := newTestService(t)
	ctx := context.Background()

	resp := presign(t, svc, "alice", "notes.txt", "text/plain", 100)

	// Pending file cannot be downloaded.
	if _, err := svc.PresignDownload(ctx, "alice", resp.FileID); !semerr.IsKind(err, semerr.KindInvalidArgument) {
		t.Errorf("err=%v, want invalid_argument", err)
	}

	blobs.Put("documents/alice/"+resp.FileID+"_notes.txt", []byte("text"))
	if _, err := svc.CompleteUpload(ctx, "alice", resp.FileID); err != nil {
		t.Fatal(err)
	}
	dl, err := svc.PresignDownload(ctx, "alice", resp.FileID)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(dl.DownloadURL, resp.FileID) {
		t.Errorf("url=%s", dl.DownloadURL)
	}
	if dl.ExpiresIn != 3600 {
		t.Errorf("expires_in=%d", dl.ExpiresIn)
	}
}
