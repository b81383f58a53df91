// Package models defines core data structures for files, search requests, and responses.
package models

import "time"

// File status values.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
)

// File represents stored file metadata. The blob itself lives in object
// storage under StoragePath.
type File struct {
	ID          string    `json:"id" db:"id"`
	OwnerID     string    `json:"owner_id" db:"owner_id"`
	Name        string    `json:"name" db:"name"`
	Size        int64     `json:"size" db:"size"`
	MimeType    string    `json:"mime_type" db:"mime_type"`
	StoragePath string    `json:"-" db:"storage_path"`
	Hash        string    `json:"hash,omitempty" db:"hash"`
	FolderID    string    `json:"folder_id,omitempty" db:"folder_id"`
	Description string    `json:"description,omitempty" db:"description"`
	Tags        []string  `json:"tags,omitempty" db:"tags"`
	Status      string    `json:"status" db:"status"`
	Indexed     bool      `json:"indexed" db:"indexed"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// FileUpdate carries the mutable metadata fields. Nil means "leave unchanged".
type FileUpdate struct {
	Name        *string   `json:"name,omitempty"`
	FolderID    *string   `json:"folder_id,omitempty"`
	Description *string   `json:"description,omitempty"`
	Tags        *[]string `json:"tags,omitempty"`
}

// ListFilter narrows file listings.
type ListFilter struct {
	OwnerID  string
	FolderID string
	MimeType string
	Limit    int
	Offset   int
}
