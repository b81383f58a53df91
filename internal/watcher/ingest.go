package watcher

import (
	"context"
	"mime"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/personaldrive/semidx/internal/extract"
	"github.com/personaldrive/semidx/internal/fileid"
	"github.com/personaldrive/semidx/internal/index"
)

// Ingestor turns watched file changes into index inserts: read the file,
// extract text by extension-derived MIME type, and index it under a
// path-derived identifier. Because the index dedupes on identifier,
// re-ingesting an unchanged path is a cheap no-op.
type Ingestor struct {
	manager   *index.Manager
	extractor *extract.Extractor
	logger    *zap.Logger
}

// NewIngestor builds an ingestor feeding the given manager.
func NewIngestor(manager *index.Manager, logger *zap.Logger) *Ingestor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingestor{
		manager:   manager,
		extractor: extract.NewExtractor(),
		logger:    logger,
	}
}

// IngestFile reads and indexes a single local file. Failures are logged and
// swallowed; a bad file must not stop the watch loop.
func (in *Ingestor) IngestFile(ctx context.Context, path string) {
	content, err := os.ReadFile(path)
	if err != nil {
		in.logger.Warn("failed to read watched file", zap.String("path", path), zap.Error(err))
		return
	}

	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		mimeType = "text/plain"
	}
	if !in.extractor.IsSupported(mimeType) {
		in.logger.Debug("skipping unsupported file", zap.String("path", path), zap.String("mime_type", mimeType))
		return
	}
	text, err := in.extractor.Extract(content, mimeType)
	if err != nil {
		in.logger.Warn("failed to extract watched file", zap.String("path", path), zap.Error(err))
		return
	}
	if text == "" {
		return
	}

	id := fileid.FileDocID(path)
	outcome, err := in.manager.IndexDocument(ctx, id, text)
	if err != nil {
		in.logger.Warn("failed to index watched file", zap.String("path", path), zap.Error(err))
		return
	}
	in.logger.Info("watched file ingested",
		zap.String("path", path),
		zap.String("outcome", string(outcome)))
}

// OnChange adapts IngestFile to the watcher callback signature.
func (in *Ingestor) OnChange(ctx context.Context) func(path string) {
	return func(path string) {
		in.IngestFile(ctx, path)
	}
}
