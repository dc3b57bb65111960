package store

import "sync"

// BatchedStore buffers extraction inserts in memory using fake (negative)
// IDs. It implements DataStore so extraction scripts can write to it
// without knowing whether they're hitting SQLite or an in-memory buffer —
// this is what lets the Batch Pipeline's worker pool run extraction off
// the single writer lock (SPEC_FULL §4.4.1).
//
// Thread safety: the mutex protects fake ID allocation and slice appends.
// Read queries (SymbolsByName, SymbolsByFile) are passed through to the
// underlying Store, which is safe for concurrent reads under WAL.
type BatchedStore struct {
	store *Store // for read passthrough
	mu    sync.Mutex

	Symbols    []Symbol
	References []Reference
	Opens      []Open
	Subclasses []Subclass
	Members    []Member

	nextFakeID int64 // starts at -1, decrements
}

// Compile-time check: *BatchedStore satisfies DataStore.
var _ DataStore = (*BatchedStore)(nil)

// NewBatchedStore creates a BatchedStore backed by the given Store for read queries.
func NewBatchedStore(s *Store) *BatchedStore {
	return &BatchedStore{
		store:      s,
		nextFakeID: -1,
	}
}

func (b *BatchedStore) allocFakeID() int64 {
	id := b.nextFakeID
	b.nextFakeID--
	return id
}

func (b *BatchedStore) InsertSymbol(sym *Symbol) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	sym.ID = fakeID
	b.Symbols = append(b.Symbols, *sym)
	return fakeID, nil
}

func (b *BatchedStore) InsertReference(ref *Reference) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	ref.ID = fakeID
	b.References = append(b.References, *ref)
	return fakeID, nil
}

func (b *BatchedStore) InsertOpen(o *Open) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	o.ID = fakeID
	b.Opens = append(b.Opens, *o)
	return fakeID, nil
}

func (b *BatchedStore) InsertSubclass(sc *Subclass) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	sc.ID = fakeID
	b.Subclasses = append(b.Subclasses, *sc)
	return fakeID, nil
}

func (b *BatchedStore) InsertMember(m *Member) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	m.ID = fakeID
	b.Members = append(b.Members, *m)
	return fakeID, nil
}

// SymbolsByName passes through to the underlying Store for cross-file lookups.
func (b *BatchedStore) SymbolsByName(name string) ([]*Symbol, error) {
	return b.store.SymbolsByName(name)
}

// SymbolsByFile returns symbols for a file, merging any buffered (not yet
// committed) symbols with those already in the database.
func (b *BatchedStore) SymbolsByFile(fileID int64) ([]*Symbol, error) {
	dbSyms, err := b.store.SymbolsByFile(fileID)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.Symbols {
		if b.Symbols[i].FileID == fileID {
			dbSyms = append(dbSyms, &b.Symbols[i])
		}
	}
	return dbSyms, nil
}
