package workflow

import (
	"context"
	"strings"
	"sync"

	"github.com/RoaringBitmap/roaring"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Indexer upserts workflows and maintains in-memory roaring bitmap
// postings per tag. Each workflow gets a stable ordinal for its
// lifetime in the process; bitmaps intersect over ordinals.
type Indexer struct {
	store  WorkflowStore
	logger zerolog.Logger

	mu      sync.RWMutex
	tagBits map[string]*roaring.Bitmap
	ords    map[uuid.UUID]uint32
	byOrd   []uuid.UUID
	ordTags map[uint32][]string
}

func NewIndexer(store WorkflowStore, logger zerolog.Logger) *Indexer {
	return &Indexer{
		store:   store,
		logger:  logger.With().Str("component", "workflow_indexer").Logger(),
		tagBits: make(map[string]*roaring.Bitmap),
		ords:    make(map[uuid.UUID]uint32),
		ordTags: make(map[uint32][]string),
	}
}

// Upsert writes the workflow and refreshes its tag postings.
func (ix *Indexer) Upsert(ctx context.Context, w *Workflow) error {
	if err := ix.store.UpsertWorkflow(ctx, w); err != nil {
		return err
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	ord, ok := ix.ords[w.ID]
	if !ok {
		ord = uint32(len(ix.byOrd))
		ix.ords[w.ID] = ord
		ix.byOrd = append(ix.byOrd, w.ID)
	}

	// Drop stale postings before re-adding; tags may have changed.
	for _, tag := range ix.ordTags[ord] {
		if bits := ix.tagBits[tag]; bits != nil {
			bits.Remove(ord)
		}
	}

	tags := make([]string, 0, len(w.Tags))
	for _, tag := range w.Tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		bits, ok := ix.tagBits[tag]
		if !ok {
			bits = roaring.New()
			ix.tagBits[tag] = bits
		}
		bits.Add(ord)
		tags = append(tags, tag)
	}
	ix.ordTags[ord] = tags

	ix.logger.Debug().Str("id", w.ID.String()).Strs("tags", tags).Msg("workflow indexed")
	return nil
}

// TaggedWith returns the IDs of workflows carrying every given tag.
// The second return is false when a tag has no postings at all, which
// makes the intersection empty.
func (ix *Indexer) TaggedWith(tags []string) (map[uuid.UUID]struct{}, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var acc *roaring.Bitmap
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		bits, ok := ix.tagBits[tag]
		if !ok {
			return nil, false
		}
		if acc == nil {
			acc = bits.Clone()
		} else {
			acc.And(bits)
		}
	}
	if acc == nil {
		return nil, false
	}

	ids := make(map[uuid.UUID]struct{}, acc.GetCardinality())
	it := acc.Iterator()
	for it.HasNext() {
		ids[ix.byOrd[it.Next()]] = struct{}{}
	}
	return ids, true
}

// Size reports the number of indexed workflows.
func (ix *Indexer) Size() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.byOrd)
}
