package novelty

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jengzang/lorg-backend-go/internal/spatial"
)

// CellInserter is the persistent side of the ledger.
//
// InsertCells must add every (userID, cell) pair with set semantics and
// return only the pairs this call actually created. An existing pair is a
// silent no-op, never an error. Implementations are scoped to the caller's
// transaction so a failed activity rolls its claims back.
type CellInserter interface {
	InsertCells(ctx context.Context, userID string, cells []spatial.Cell) ([]spatial.Cell, error)
}

// CellSet is a set of grid cells
type CellSet map[spatial.Cell]struct{}

// Add inserts c into the set
func (s CellSet) Add(c spatial.Cell) {
	s[c] = struct{}{}
}

// Has reports whether c is in the set
func (s CellSet) Has(c spatial.Cell) bool {
	_, ok := s[c]
	return ok
}

// Sorted returns the members in row-major order
func (s CellSet) Sorted() []spatial.Cell {
	cells := make([]spatial.Cell, 0, len(s))
	for c := range s {
		cells = append(cells, c)
	}
	sort.Slice(cells, func(i, j int) bool { return cells[i].Less(cells[j]) })
	return cells
}

// Ledger registers visited cells with neighbor buffering
type Ledger struct {
	batchSize int
}

// NewLedger creates a ledger that inserts at most batchSize rows per call
func NewLedger(batchSize int) *Ledger {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Ledger{batchSize: batchSize}
}

// RegisterVisited claims every cell plus its (2r+1)² halo for userID and
// returns the cells that were claimed for the first time by this call.
func (l *Ledger) RegisterVisited(ctx context.Context, store CellInserter, userID string, cells []spatial.Cell, radius int) (CellSet, error) {
	newCells := make(CellSet)
	candidates := expandHalo(cells, radius)

	for start := 0; start < len(candidates); start += l.batchSize {
		end := start + l.batchSize
		if end > len(candidates) {
			end = len(candidates)
		}

		inserted, err := store.InsertCells(ctx, userID, candidates[start:end])
		if err != nil {
			return nil, fmt.Errorf("failed to register visited cells: %w", err)
		}
		for _, c := range inserted {
			newCells.Add(c)
		}
	}

	return newCells, nil
}

// expandHalo returns the deduplicated, row-major sorted neighborhood of cells
func expandHalo(cells []spatial.Cell, radius int) []spatial.Cell {
	if radius < 0 {
		radius = 0
	}
	r := int64(radius)

	set := make(CellSet, len(cells)*int((2*r+1)*(2*r+1)))
	for _, c := range cells {
		for dx := -r; dx <= r; dx++ {
			for dy := -r; dy <= r; dy++ {
				set.Add(c.Offset(dx, dy))
			}
		}
	}
	return set.Sorted()
}

// MemoryStore is an in-process CellInserter. It backs offline replays and
// tests; it has no transactions, so claims are never rolled back.
type MemoryStore struct {
	mu    sync.Mutex
	users map[string]CellSet
}

// NewMemoryStore creates an empty in-memory ledger store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]CellSet)}
}

// InsertCells implements CellInserter
func (m *MemoryStore) InsertCells(ctx context.Context, userID string, cells []spatial.Cell) ([]spatial.Cell, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	visited, ok := m.users[userID]
	if !ok {
		visited = make(CellSet)
		m.users[userID] = visited
	}

	var inserted []spatial.Cell
	for _, c := range cells {
		if visited.Has(c) {
			continue
		}
		visited.Add(c)
		inserted = append(inserted, c)
	}
	return inserted, nil
}

// Count returns how many cells userID has visited
func (m *MemoryStore) Count(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users[userID])
}
