// Package resolver implements the query-time name resolution algorithm
// (SPEC_FULL §4.2). It never persists anything: a Snapshot is a read-only,
// in-memory view built once per query session from the Store, and Resolve
// is a pure function over that view.
package resolver

import "github.com/rocket-tycoon/rocketindex/internal/store"

// Snapshot is an in-memory view over a workspace's extracted symbol graph,
// indexed the ways the resolver's rules need: by qualified name, by short
// name, by owning file, plus each file's opens and inferred module path.
// Building one takes a single read-only pass over the Store; Resolve takes
// none.
type Snapshot struct {
	files       map[int64]*store.File
	byQualified map[string][]*store.Symbol
	byShortName map[string][]*store.Symbol
	byFile      map[int64][]*store.Symbol
	opensByFile map[int64][]*store.Open
	modulePath  map[int64]string
}

func newSnapshot() *Snapshot {
	return &Snapshot{
		files:       make(map[int64]*store.File),
		byQualified: make(map[string][]*store.Symbol),
		byShortName: make(map[string][]*store.Symbol),
		byFile:      make(map[int64][]*store.Symbol),
		opensByFile: make(map[int64][]*store.Open),
		modulePath:  make(map[int64]string),
	}
}

// BuildSnapshot loads every file, symbol, and open directive from s into a
// Snapshot ready for Resolve.
func BuildSnapshot(s *store.Store) (*Snapshot, error) {
	files, err := s.AllFiles()
	if err != nil {
		return nil, err
	}
	opens, err := s.AllOpens()
	if err != nil {
		return nil, err
	}

	snap := newSnapshot()
	for _, f := range files {
		snap.files[f.ID] = f
	}
	for _, o := range opens {
		snap.opensByFile[o.FileID] = append(snap.opensByFile[o.FileID], o)
	}
	for _, f := range files {
		syms, err := s.SymbolsByFile(f.ID)
		if err != nil {
			return nil, err
		}
		for _, sym := range syms {
			snap.addSymbol(sym)
		}
	}
	snap.computeModulePaths()
	return snap, nil
}

// NewSnapshot builds a Snapshot directly from in-memory slices, bypassing
// the Store. Used by tests; the query layer loads its snapshots through
// BuildSnapshot.
func NewSnapshot(files []*store.File, symbols []*store.Symbol, opens []*store.Open) *Snapshot {
	snap := newSnapshot()
	for _, f := range files {
		snap.files[f.ID] = f
	}
	for _, o := range opens {
		snap.opensByFile[o.FileID] = append(snap.opensByFile[o.FileID], o)
	}
	for _, sym := range symbols {
		snap.addSymbol(sym)
	}
	snap.computeModulePaths()
	return snap
}

func (s *Snapshot) addSymbol(sym *store.Symbol) {
	s.byQualified[sym.QualifiedName] = append(s.byQualified[sym.QualifiedName], sym)
	s.byShortName[sym.Name] = append(s.byShortName[sym.Name], sym)
	s.byFile[sym.FileID] = append(s.byFile[sym.FileID], sym)
}

// computeModulePaths picks, for each file, the longest qualified name among
// its own Module/Namespace symbols as that file's enclosing module path.
// The schema has no dedicated module-path column (Data Model §3 lists none
// for File); a file's widest declared module/namespace symbol stands in for
// it, which is what a language's extractor would emit that symbol for in
// the first place.
func (s *Snapshot) computeModulePaths() {
	for fileID, syms := range s.byFile {
		var longest string
		for _, sym := range syms {
			if sym.Kind != store.KindModule && sym.Kind != store.KindNamespace {
				continue
			}
			if len(sym.QualifiedName) > len(longest) {
				longest = sym.QualifiedName
			}
		}
		if longest != "" {
			s.modulePath[fileID] = longest
		}
	}
}

// SymbolsByFile returns every symbol the snapshot loaded for fileID.
func (s *Snapshot) SymbolsByFile(fileID int64) []*store.Symbol {
	return s.byFile[fileID]
}

// File returns the File record for fileID, if the snapshot loaded one.
func (s *Snapshot) File(fileID int64) (*store.File, bool) {
	f, ok := s.files[fileID]
	return f, ok
}
