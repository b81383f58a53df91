// Package files implements the file lifecycle: presigned upload, completion
// with text extraction and indexing, metadata CRUD, and presigned download.
package files

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/personaldrive/semidx/internal/blob"
	"github.com/personaldrive/semidx/internal/extract"
	"github.com/personaldrive/semidx/internal/index"
	"github.com/personaldrive/semidx/internal/models"
	"github.com/personaldrive/semidx/internal/semerr"
	"github.com/personaldrive/semidx/internal/storage"
	"github.com/personaldrive/semidx/internal/validate"
)

// Limits holds upload constraints and presign lifetimes.
type Limits struct {
	MaxSizeBytes     int64
	AllowedMimeTypes []string
	UploadExpiry     time.Duration
	DownloadExpiry   time.Duration
}

// Service coordinates metadata storage, object storage, text extraction, and
// the search index.
type Service struct {
	store     storage.Storage
	blobs     blob.Store
	extractor *extract.Extractor
	manager   *index.Manager
	limits    Limits
	logger    *zap.Logger
}

// NewService builds a file service.
func NewService(store storage.Storage, blobs blob.Store, manager *index.Manager, limits Limits, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:     store,
		blobs:     blobs,
		extractor: extract.NewExtractor(),
		manager:   manager,
		limits:    limits,
		logger:    logger,
	}
}

// PresignUpload validates the request, creates a pending metadata record, and
// returns a presigned PUT URL. If presigning fails the pending record is
// removed so no orphan metadata is left behind.
func (s *Service) PresignUpload(ctx context.Context, ownerID string, req models.PresignUploadRequest) (*models.PresignUploadResponse, error) {
	if err := validate.UserID(ownerID); err != nil {
		return nil, err
	}
	name, err := validate.FileName(req.Name)
	if err != nil {
		return nil, err
	}
	if err := validate.FileSize(req.Size, s.limits.MaxSizeBytes); err != nil {
		return nil, err
	}
	if err := validate.MimeType(req.MimeType, s.limits.AllowedMimeTypes); err != nil {
		return nil, err
	}
	if req.FolderID != "" {
		if err := validate.FileID(req.FolderID); err != nil {
			return nil, err
		}
	}

	fileID := uuid.NewString()
	f := &models.File{
		ID:          fileID,
		OwnerID:     ownerID,
		Name:        name,
		Size:        req.Size,
		MimeType:    req.MimeType,
		StoragePath: storagePath(ownerID, fileID, name),
		FolderID:    req.FolderID,
		Status:      models.StatusPending,
	}
	if err := s.store.CreateFile(ctx, f); err != nil {
		return nil, semerr.Wrap(semerr.KindInternal, "failed to create file record", err)
	}

	url, err := s.blobs.PresignPut(ctx, f.StoragePath, f.MimeType, s.limits.UploadExpiry)
	if err != nil {
		if derr := s.store.DeleteFile(ctx, fileID); derr != nil {
			s.logger.Error("failed to clean up pending record", zap.String("file_id", fileID), zap.Error(derr))
		}
		return nil, err
	}

	s.logger.Info("upload presigned",
		zap.String("file_id", fileID),
		zap.String("owner_id", ownerID),
		zap.String("name", name))
	return &models.PresignUploadResponse{
		FileID:    fileID,
		UploadURL: url,
		ExpiresIn: int(s.limits.UploadExpiry.Seconds()),
	}, nil
}

// CompleteUpload finalizes an upload after the client has PUT the object:
// it hashes the content for duplicate detection, extracts text when the
// format supports it, indexes the text, and marks the record completed.
// Extraction or indexing failures do not fail the upload; the file is simply
// stored unindexed.
func (s *Service) CompleteUpload(ctx context.Context, ownerID, fileID string) (*models.File, error) {
	f, err := s.ownedFile(ctx, ownerID, fileID)
	if err != nil {
		return nil, err
	}
	if f.Status == models.StatusCompleted {
		return f, nil
	}

	rc, err := s.blobs.Download(ctx, f.StoragePath)
	if err != nil {
		if semerr.IsKind(err, semerr.KindNotFound) {
			return nil, semerr.Newf(semerr.KindInvalidArgument, "no uploaded content for file %s", fileID)
		}
		return nil, err
	}
	content, err := io.ReadAll(rc)
	_ = rc.Close()
	if err != nil {
		return nil, semerr.Wrap(semerr.KindInternal, "failed to read uploaded content", err)
	}

	sum := sha256.Sum256(content)
	f.Hash = hex.EncodeToString(sum[:])
	f.Size = int64(len(content))

	if dup, err := s.store.FindByHash(ctx, ownerID, f.Hash); err != nil {
		return nil, err
	} else if dup != nil && dup.ID != fileID {
		s.logger.Info("duplicate content detected",
			zap.String("file_id", fileID),
			zap.String("duplicate_of", dup.ID))
	}

	if s.extractor.IsSupported(f.MimeType) {
		text, err := s.extractor.Extract(content, f.MimeType)
		if err != nil {
			s.logger.Warn("text extraction failed, storing unindexed",
				zap.String("file_id", fileID), zap.Error(err))
		} else if text != "" {
			outcome, err := s.manager.IndexDocument(ctx, fileID, text)
			if err != nil {
				s.logger.Warn("indexing failed, storing unindexed",
					zap.String("file_id", fileID), zap.Error(err))
			} else {
				f.Indexed = true
				s.logger.Debug("file indexed",
					zap.String("file_id", fileID),
					zap.String("outcome", string(outcome)))
			}
		}
	}

	f.Status = models.StatusCompleted
	if err := s.store.UpdateFile(ctx, f); err != nil {
		return nil, err
	}
	s.logger.Info("upload completed",
		zap.String("file_id", fileID),
		zap.Bool("indexed", f.Indexed),
		zap.Int64("size", f.Size))
	return f, nil
}

// Get returns file metadata after an ownership check.
func (s *Service) Get(ctx context.Context, ownerID, fileID string) (*models.File, error) {
	return s.ownedFile(ctx, ownerID, fileID)
}

// List returns the owner's files, optionally filtered by folder and MIME type.
func (s *Service) List(ctx context.Context, ownerID string, filter models.ListFilter) (*models.ListResponse, error) {
	if err := validate.UserID(ownerID); err != nil {
		return nil, err
	}
	filter.OwnerID = ownerID
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 100
	}
	fs, err := s.store.ListFiles(ctx, filter)
	if err != nil {
		return nil, err
	}
	total, err := s.store.CountFiles(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if fs == nil {
		fs = []*models.File{}
	}
	return &models.ListResponse{
		Files:  fs,
		Total:  int(total),
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}, nil
}

// Update applies metadata changes. Content and the index entry are untouched.
func (s *Service) Update(ctx context.Context, ownerID, fileID string, upd models.FileUpdate) (*models.File, error) {
	f, err := s.ownedFile(ctx, ownerID, fileID)
	if err != nil {
		return nil, err
	}
	if upd.Name != nil {
		name, err := validate.FileName(*upd.Name)
		if err != nil {
			return nil, err
		}
		f.Name = name
	}
	if upd.FolderID != nil {
		f.FolderID = *upd.FolderID
	}
	if upd.Description != nil {
		f.Description = *upd.Description
	}
	if upd.Tags != nil {
		f.Tags = *upd.Tags
	}
	if err := s.store.UpdateFile(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

// Delete removes the blob and the metadata record. The vector index is
// append-only; the slot stays behind, and search hits for it surface without
// file metadata once the row is gone.
func (s *Service) Delete(ctx context.Context, ownerID, fileID string) error {
	f, err := s.ownedFile(ctx, ownerID, fileID)
	if err != nil {
		return err
	}
	if err := s.blobs.Delete(ctx, f.StoragePath); err != nil {
		return err
	}
	if err := s.store.DeleteFile(ctx, fileID); err != nil {
		return err
	}
	s.logger.Info("file deleted", zap.String("file_id", fileID), zap.String("owner_id", ownerID))
	return nil
}

// PresignDownload returns a presigned GET URL for a completed file.
func (s *Service) PresignDownload(ctx context.Context, ownerID, fileID string) (*models.DownloadResponse, error) {
	f, err := s.ownedFile(ctx, ownerID, fileID)
	if err != nil {
		return nil, err
	}
	if f.Status != models.StatusCompleted {
		return nil, semerr.Newf(semerr.KindInvalidArgument, "file %s upload is not complete", fileID)
	}
	url, err := s.blobs.PresignGet(ctx, f.StoragePath, s.limits.DownloadExpiry)
	if err != nil {
		return nil, err
	}
	return &models.DownloadResponse{
		FileID:      fileID,
		DownloadURL: url,
		ExpiresIn:   int(s.limits.DownloadExpiry.Seconds()),
	}, nil
}

// ownedFile loads a file and verifies ownership. A file owned by someone else
// is reported as permission denied, not as missing, matching the header-based
// trust model where user identity is asserted by the gateway.
func (s *Service) ownedFile(ctx context.Context, ownerID, fileID string) (*models.File, error) {
	if err := validate.UserID(ownerID); err != nil {
		return nil, err
	}
	if err := validate.FileID(fileID); err != nil {
		return nil, err
	}
	f, err := s.store.GetFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if f.OwnerID != ownerID {
		return nil, semerr.Newf(semerr.KindPermissionDenied, "file %s does not belong to user", fileID)
	}
	return f, nil
}

// storagePath builds the object key for a document upload.
func storagePath(ownerID, fileID, name string) string {
	return fmt.Sprintf("documents/%s/%s_%s", ownerID, fileID, name)
}
