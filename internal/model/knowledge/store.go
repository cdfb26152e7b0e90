package knowledge

import "sync"

// Source exposes the current knowledge base to readers.
type Source interface {
	List() []Item
}

// MemoryStore implements Source with an in-memory slice that can be swapped
// atomically when the knowledge base changes.
type MemoryStore struct {
	mu    sync.RWMutex
	items []Item
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied items.
func NewMemoryStore(items []Item) *MemoryStore {
	return &MemoryStore{items: append([]Item(nil), items...)}
}

// List returns a copy of the knowledge base in admin order.
func (s *MemoryStore) List() []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Item(nil), s.items...)
}

// Replace swaps the whole knowledge base.
func (s *MemoryStore) Replace(items []Item) {
	copied := append([]Item(nil), items...)
	s.mu.Lock()
	s.items = copied
	s.mu.Unlock()
}

// FindByID looks up an item by identifier.
func (s *MemoryStore) FindByID(id string) (Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, item := range s.items {
		if item.ID == id {
			return item, true
		}
	}
	return Item{}, false
}
