// Package index provides the Manager, the single owner of the vector index,
// identifier table, and persistence layer.
package index

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/personaldrive/semidx/internal/embedding"
	"github.com/personaldrive/semidx/internal/semerr"
	"github.com/personaldrive/semidx/internal/vector"
)

const (
	defaultMaxQueryLength = 500
	defaultMaxK           = 100
)

// Outcome reports what an index operation did.
type Outcome string

const (
	// OutcomeIndexed means the document was embedded, inserted, and saved.
	OutcomeIndexed Outcome = "indexed"
	// OutcomeAlreadyIndexed means the identifier was seen before; nothing changed.
	OutcomeAlreadyIndexed Outcome = "already_indexed"
)

// Match is a single search hit: the caller-supplied identifier and the
// squared L2 distance from the query embedding (lower is closer).
type Match struct {
	Identifier string  `json:"identifier"`
	Distance   float64 `json:"distance"`
}

// Stats reports read-only index statistics.
type Stats struct {
	Dimensions    int `json:"dimensions"`
	DocumentCount int `json:"document_count"`
}

// Manager owns the vector index and its identifier table for the process
// lifetime. All access goes through its methods; one RWMutex guards the pair,
// so an insert and its persistence save are atomic with respect to other
// inserts and searches. The identifier table always has exactly one entry per
// stored vector.
type Manager struct {
	embedder embedding.Embedder
	snapshot *vector.Snapshot
	logger   *zap.Logger

	maxQueryLength int
	maxK           int

	mu    sync.RWMutex
	index *vector.FlatIndex
	ids   []string
	seen  map[string]struct{}
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets a logger for operational events.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithLimits sets the maximum accepted query length and k. Zero values keep
// the defaults.
func WithLimits(maxQueryLength, maxK int) Option {
	return func(m *Manager) {
		if maxQueryLength > 0 {
			m.maxQueryLength = maxQueryLength
		}
		if maxK > 0 {
			m.maxK = maxK
		}
	}
}

// NewManager restores prior state from snap (or starts empty when no state
// exists) and returns a Manager ready to serve. Fails with
// CorruptPersistedState when the artifacts disagree, and with
// DimensionMismatch when persisted vectors do not match the embedder's
// dimension (model swapped without rebuilding the index).
func NewManager(embedder embedding.Embedder, snap *vector.Snapshot, opts ...Option) (*Manager, error) {
	m := &Manager{
		embedder:       embedder,
		snapshot:       snap,
		logger:         zap.NewNop(),
		maxQueryLength: defaultMaxQueryLength,
		maxK:           defaultMaxK,
		seen:           make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}

	idx, ids, err := snap.Load()
	if err != nil {
		return nil, err
	}
	if idx == nil {
		idx, err = vector.NewFlatIndex(embedder.Dimensions())
		if err != nil {
			return nil, err
		}
		m.logger.Info("index initialized empty", zap.Int("dimensions", embedder.Dimensions()))
	} else {
		if idx.Dimensions() != embedder.Dimensions() {
			return nil, semerr.Newf(semerr.KindDimensionMismatch,
				"persisted index has dimension %d but embedder produces %d; rebuild the index",
				idx.Dimensions(), embedder.Dimensions())
		}
		m.logger.Info("index restored from disk", zap.Int("documents", idx.Size()))
	}
	for _, id := range ids {
		if _, dup := m.seen[id]; dup {
			return nil, semerr.Newf(semerr.KindCorruptState, "duplicate identifier %q in persisted table", id)
		}
		m.seen[id] = struct{}{}
	}
	m.index = idx
	m.ids = ids
	return m, nil
}

// IndexDocument embeds text and appends it to the index under identifier.
// Re-indexing a seen identifier is an idempotent no-op (AlreadyIndexed).
// A failed save is reported as PersistenceFailed even though the in-memory
// state has already advanced: the entry is searchable in-process but may be
// lost on crash. That single-insert risk window is the documented durability
// model.
func (m *Manager) IndexDocument(ctx context.Context, identifier, text string) (Outcome, error) {
	if strings.TrimSpace(identifier) == "" {
		return "", semerr.New(semerr.KindInvalidArgument, "identifier cannot be empty")
	}
	if strings.TrimSpace(text) == "" {
		return "", semerr.New(semerr.KindInvalidArgument, "text cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.seen[identifier]; ok {
		m.logger.Debug("document already indexed", zap.String("identifier", identifier))
		return OutcomeAlreadyIndexed, nil
	}

	emb, err := m.embedder.Embed(ctx, text)
	if err != nil {
		return "", err
	}
	slot, err := m.index.Insert(emb)
	if err != nil {
		return "", err
	}
	m.ids = append(m.ids, identifier)
	m.seen[identifier] = struct{}{}

	if err := m.snapshot.Save(m.index, m.ids); err != nil {
		m.logger.Error("index save failed; entry is in memory but not durable",
			zap.String("identifier", identifier), zap.Error(err))
		return "", err
	}
	m.logger.Debug("document indexed", zap.String("identifier", identifier), zap.Int("slot", slot))
	return OutcomeIndexed, nil
}

// Search embeds query and returns the identifiers of the min(k, size) closest
// documents, ascending by distance.
func (m *Manager) Search(ctx context.Context, query string, k int) ([]Match, error) {
	if strings.TrimSpace(query) == "" {
		return nil, semerr.New(semerr.KindInvalidArgument, "query cannot be empty")
	}
	if len(query) > m.maxQueryLength {
		return nil, semerr.Newf(semerr.KindInvalidArgument,
			"query exceeds maximum length (%d characters)", m.maxQueryLength)
	}
	if k <= 0 {
		return nil, semerr.Newf(semerr.KindInvalidArgument, "k must be positive, got %d", k)
	}
	if k > m.maxK {
		return nil, semerr.Newf(semerr.KindInvalidArgument, "k exceeds maximum (%d)", m.maxK)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	emb, err := m.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	neighbors, err := m.index.Search(emb, k)
	if err != nil {
		return nil, err
	}
	matches := make([]Match, len(neighbors))
	for i, n := range neighbors {
		matches[i] = Match{Identifier: m.ids[n.Slot], Distance: n.Distance}
	}
	return matches, nil
}

// Contains reports whether identifier is present in the index.
func (m *Manager) Contains(identifier string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.seen[identifier]
	return ok
}

// Stats returns the embedding dimension and current document count.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Stats{
		Dimensions:    m.index.Dimensions(),
		DocumentCount: m.index.Size(),
	}
}

// Save persists the current state. Used at shutdown; inserts already save
// after every mutation, so this is a safety net, not a requirement.
func (m *Manager) Save() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot.Save(m.index, m.ids)
}
