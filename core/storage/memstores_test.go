package storage

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/siherrmann/docgrapher/helper"
	"github.com/siherrmann/docgrapher/model"
)

// opLog records store operations in call order across all fakes.
type opLog struct {
	mu  sync.Mutex
	ops []string
}

func (l *opLog) add(op string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ops = append(l.ops, op)
}

func (l *opLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string{}, l.ops...)
}

type memMetadata struct {
	mu        sync.Mutex
	records   map[uuid.UUID]*model.DocumentRecord
	log       *opLog
	beginErr  error
	upsertErr error
	commitErr error
	commits   int
	rollbacks int
}

func newMemMetadata(log *opLog) *memMetadata {
	return &memMetadata{records: map[uuid.UUID]*model.DocumentRecord{}, log: log}
}

func (m *memMetadata) Begin(ctx context.Context) (MetadataTx, error) {
	m.log.add("metadata.begin")
	if m.beginErr != nil {
		return nil, m.beginErr
	}
	return &memTx{store: m}, nil
}

func (m *memMetadata) SelectRecord(ctx context.Context, documentID uuid.UUID) (*model.DocumentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[documentID]
	if !ok {
		return nil, helper.NewError("select record", helper.ErrNotFound)
	}
	return record, nil
}

func (m *memMetadata) FilterCommitted(ctx context.Context, documentIDs []uuid.UUID) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := []uuid.UUID{}
	for _, id := range documentIDs {
		if _, ok := m.records[id]; ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *memMetadata) ListDocumentIDs(ctx context.Context) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := []uuid.UUID{}
	for id := range m.records {
		ids = append(ids, id)
	}
	return sortIDs(ids), nil
}

func (m *memMetadata) DeleteRecord(ctx context.Context, documentID uuid.UUID) (bool, error) {
	m.log.add("metadata.delete")
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.records[documentID]
	delete(m.records, documentID)
	return ok, nil
}

func (m *memMetadata) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

type memTx struct {
	store   *memMetadata
	pending *model.DocumentRecord
	done    bool
}

func (t *memTx) UpsertRecord(ctx context.Context, record *model.DocumentRecord) error {
	t.store.log.add("metadata.upsert")
	if t.store.upsertErr != nil {
		return t.store.upsertErr
	}
	c := *record
	t.pending = &c
	return nil
}

func (t *memTx) Commit() error {
	t.store.log.add("metadata.commit")
	if t.store.commitErr != nil {
		return t.store.commitErr
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if t.pending != nil {
		t.store.records[t.pending.DocumentID] = t.pending
	}
	t.store.commits++
	t.done = true
	return nil
}

func (t *memTx) Rollback() error {
	if t.done {
		return nil
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	t.store.rollbacks++
	t.done = true
	return nil
}

type memContent struct {
	mu        sync.Mutex
	docs      map[uuid.UUID]*model.Document
	chunks    map[uuid.UUID][]*model.Chunk
	log       *opLog
	upsertErr error
}

func newMemContent(log *opLog) *memContent {
	return &memContent{docs: map[uuid.UUID]*model.Document{}, chunks: map[uuid.UUID][]*model.Chunk{}, log: log}
}

func (m *memContent) UpsertContent(ctx context.Context, doc *model.Document) error {
	m.log.add("content.upsert")
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[doc.ID] = doc
	return nil
}

func (m *memContent) UpsertChunks(ctx context.Context, documentID uuid.UUID, chunks []*model.Chunk) error {
	m.log.add("content.chunks")
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks[documentID] = append([]*model.Chunk{}, chunks...)
	return nil
}

func (m *memContent) SelectContent(ctx context.Context, documentID uuid.UUID) (*model.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[documentID]
	if !ok {
		return nil, helper.ErrNotFound
	}
	return doc, nil
}

func (m *memContent) SelectChunks(ctx context.Context, documentID uuid.UUID) ([]*model.Chunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.chunks[documentID], nil
}

func (m *memContent) DeleteDocument(ctx context.Context, documentID uuid.UUID) (int, error) {
	m.log.add("content.delete")
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := len(m.chunks[documentID])
	if _, ok := m.docs[documentID]; ok {
		removed++
	}
	delete(m.docs, documentID)
	delete(m.chunks, documentID)
	return removed, nil
}

func (m *memContent) ListDocumentIDs(ctx context.Context) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := map[uuid.UUID]bool{}
	for id := range m.docs {
		seen[id] = true
	}
	for id := range m.chunks {
		seen[id] = true
	}
	return keys(seen), nil
}

type memGraph struct {
	mu      sync.Mutex
	nodes   map[uuid.UUID]*model.Node
	edges   map[uuid.UUID]*model.Edge
	log     *opLog
	edgeErr error
}

func newMemGraph(log *opLog) *memGraph {
	return &memGraph{nodes: map[uuid.UUID]*model.Node{}, edges: map[uuid.UUID]*model.Edge{}, log: log}
}

func (m *memGraph) UpsertNode(ctx context.Context, node *model.Node) (*model.Node, error) {
	m.log.add("graph.node")
	m.mu.Lock()
	defer m.mu.Unlock()

	if node.Kind != model.CategoryDocument {
		for _, existing := range m.nodes {
			if existing.Kind == node.Kind && model.NormalizeName(existing.Name) == model.NormalizeName(node.Name) {
				existing.Metadata = model.MergeEntityNodeMetadata(existing.Metadata, node.Metadata)
				c := *existing
				return &c, nil
			}
		}
	}

	c := *node
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	m.nodes[c.ID] = &c
	return &c, nil
}

func (m *memGraph) UpsertEdge(ctx context.Context, edge *model.Edge) error {
	m.log.add("graph.edge")
	if m.edgeErr != nil {
		return m.edgeErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *edge
	c.ID = model.EdgeID(edge.DocumentID, edge.SourceID, edge.TargetID, edge.Type)
	m.edges[c.ID] = &c
	return nil
}

func (m *memGraph) DeleteEdgesByDocument(ctx context.Context, documentID uuid.UUID) (int, error) {
	m.log.add("graph.clear")
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, e := range m.edges {
		if e.DocumentID == documentID {
			delete(m.edges, id)
			removed++
		}
	}
	return removed, nil
}

func (m *memGraph) DeleteDocument(ctx context.Context, documentID uuid.UUID) (int, error) {
	m.log.add("graph.delete")
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	deleted := map[uuid.UUID]bool{}
	for id, n := range m.nodes {
		if n.DocumentID != nil && *n.DocumentID == documentID {
			delete(m.nodes, id)
			deleted[id] = true
			removed++
		}
	}
	for id, e := range m.edges {
		if e.DocumentID == documentID || deleted[e.SourceID] || deleted[e.TargetID] {
			delete(m.edges, id)
			removed++
		}
	}
	return removed, nil
}

func (m *memGraph) ListDocumentIDs(ctx context.Context) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := map[uuid.UUID]bool{}
	for _, n := range m.nodes {
		if n.DocumentID != nil {
			seen[*n.DocumentID] = true
		}
	}
	for _, e := range m.edges {
		seen[e.DocumentID] = true
	}
	return keys(seen), nil
}

func (m *memGraph) counts() (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.nodes), len(m.edges)
}

type memVectors struct {
	mu        sync.Mutex
	entries   map[string]*model.VectorEntry
	log       *opLog
	upsertErr error
}

func newMemVectors(log *opLog) *memVectors {
	return &memVectors{entries: map[string]*model.VectorEntry{}, log: log}
}

func (m *memVectors) UpsertVectors(ctx context.Context, entries []*model.VectorEntry) error {
	m.log.add("vector.upsert")
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		m.entries[e.ID] = e
	}
	return nil
}

func (m *memVectors) Query(ctx context.Context, vector []float32, topK int, minScore float64, exclude *uuid.UUID) ([]*model.VectorHit, error) {
	return []*model.VectorHit{}, nil
}

func (m *memVectors) DeleteDocument(ctx context.Context, documentID uuid.UUID) (int, error) {
	m.log.add("vector.delete")
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, e := range m.entries {
		if e.DocumentID == documentID {
			delete(m.entries, id)
			removed++
		}
	}
	return removed, nil
}

func (m *memVectors) ListDocumentIDs(ctx context.Context) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := map[uuid.UUID]bool{}
	for _, e := range m.entries {
		seen[e.DocumentID] = true
	}
	return keys(seen), nil
}

func (m *memVectors) ids() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := []string{}
	for id := range m.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func keys(set map[uuid.UUID]bool) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return sortIDs(ids)
}

func sortIDs(ids []uuid.UUID) []uuid.UUID {
	sort.Slice(ids, func(i, j int) bool {
		return strings.Compare(ids[i].String(), ids[j].String()) < 0
	})
	return ids
}

type memStores struct {
	log      *opLog
	metadata *memMetadata
	content  *memContent
	graph    *memGraph
	vectors  *memVectors
}

func newMemStores() *memStores {
	log := &opLog{}
	return &memStores{
		log:      log,
		metadata: newMemMetadata(log),
		content:  newMemContent(log),
		graph:    newMemGraph(log),
		vectors:  newMemVectors(log),
	}
}
