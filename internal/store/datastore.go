package store

// DataStore is the interface for extraction-phase data access. Both Store
// (direct SQLite) and BatchedStore (in-memory buffering for parallel
// extraction) implement it, so the Runtime can be built against either the
// live database or a per-worker batch without a type switch (SPEC_FULL
// §4.4.1 fixes the teacher's mismatched constructor by typing against this
// interface instead of a concrete *Store).
type DataStore interface {
	InsertSymbol(sym *Symbol) (int64, error)
	InsertReference(ref *Reference) (int64, error)
	InsertOpen(o *Open) (int64, error)
	InsertSubclass(sc *Subclass) (int64, error)
	InsertMember(m *Member) (int64, error)

	// Cross-file lookups extraction scripts need (e.g. resolving a named
	// enclosing module's own symbol row to attach members to it).
	SymbolsByName(name string) ([]*Symbol, error)
	SymbolsByFile(fileID int64) ([]*Symbol, error)
}

// Compile-time check: *Store satisfies DataStore.
var _ DataStore = (*Store)(nil)
