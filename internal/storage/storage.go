// Package storage provides file metadata persistence.
package storage

import (
	"context"

	"github.com/personaldrive/semidx/internal/models"
)

// Storage persists file metadata. The blob contents live in object storage;
// the vector index is managed separately.
type Storage interface {
	CreateFile(ctx context.Context, f *models.File) error
	GetFile(ctx context.Context, id string) (*models.File, error)
	UpdateFile(ctx context.Context, f *models.File) error
	DeleteFile(ctx context.Context, id string) error
	ListFiles(ctx context.Context, filter models.ListFilter) ([]*models.File, error)
	FindByHash(ctx context.Context, ownerID, hash string) (*models.File, error)
	CountFiles(ctx context.Context, ownerID string) (int64, error)
	Close() error
}
