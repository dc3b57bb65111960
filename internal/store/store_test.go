package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { s.Close() })
	return s
}

// insertTestFile is a helper that inserts a file and returns it with ID set.
func insertTestFile(t *testing.T, s *Store, path, lang string) *File {
	t.Helper()
	f := &File{Path: path, Language: lang, ContentHash: ComputeContentHash([]byte(path)), LastIndexed: time.Now().Truncate(time.Second)}
	id, err := s.InsertFile(f)
	require.NoError(t, err)
	require.Positive(t, id)
	return f
}

// insertTestSymbol inserts a symbol with minimal required fields.
func insertTestSymbol(t *testing.T, s *Store, fileID int64, name string, kind SymbolKind) *Symbol {
	t.Helper()
	sym := &Symbol{
		FileID:        fileID,
		Name:          name,
		QualifiedName: name,
		Kind:          kind,
		Visibility:    VisibilityPublic,
		Source:        SourceSyntactic,
		StartLine:     0, StartCol: 0, EndLine: 9, EndCol: 0,
	}
	id, err := s.InsertSymbol(sym)
	require.NoError(t, err)
	require.Positive(t, id)
	return sym
}

// =============================================================================
// Schema & Lifecycle
// =============================================================================

func TestMigrate_AllTablesExist(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	expectedTables := []string{
		"files", "symbols", "refs", "opens", "subclasses", "members", "metadata", "file_blame", "symbols_fts",
	}

	for _, table := range expectedTables {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
		assert.Equal(t, table, name)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	require.NoError(t, s.Migrate())
}

func TestMigrate_WALMode(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	var mode string
	err := s.db.QueryRow("PRAGMA journal_mode").Scan(&mode)
	require.NoError(t, err)
	assert.Equal(t, "wal", mode)
}

// =============================================================================
// File operations
// =============================================================================

func TestFile_InsertAndRetrieve(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	now := time.Now().Truncate(time.Second)
	f := &File{Path: "/src/main.go", Language: "go", ContentHash: 0xabc123, LastIndexed: now}
	id, err := s.InsertFile(f)
	require.NoError(t, err)
	require.Positive(t, id)

	got, err := s.FileByPath("/src/main.go")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "/src/main.go", got.Path)
	assert.Equal(t, "go", got.Language)
	assert.Equal(t, uint64(0xabc123), got.ContentHash)
}

func TestFile_ByPathNotFound(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	got, err := s.FileByPath("/nonexistent")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFile_ByLanguage(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	insertTestFile(t, s, "/a.go", "go")
	insertTestFile(t, s, "/b.go", "go")
	insertTestFile(t, s, "/c.py", "python")

	goFiles, err := s.FilesByLanguage("go")
	require.NoError(t, err)
	assert.Len(t, goFiles, 2)

	pyFiles, err := s.FilesByLanguage("python")
	require.NoError(t, err)
	assert.Len(t, pyFiles, 1)
}

func TestFile_DistinctLanguages(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	insertTestFile(t, s, "/a.go", "go")
	insertTestFile(t, s, "/b.py", "python")
	insertTestFile(t, s, "/c.go", "go")

	langs, err := s.DistinctLanguages()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"go", "python"}, langs)
}

// =============================================================================
// Symbol operations
// =============================================================================

func TestSymbol_InsertAndQueryByFile(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/main.go", "go")

	sym := &Symbol{
		FileID: f.ID, Name: "Foo", QualifiedName: "pkg.Foo", Kind: KindFunction, Visibility: VisibilityPublic,
		Source: SourceSyntactic, SignatureHash: 42,
		StartLine: 4, StartCol: 0, EndLine: 19, EndCol: 1,
	}
	id, err := s.InsertSymbol(sym)
	require.NoError(t, err)
	require.Positive(t, id)

	symbols, err := s.SymbolsByFile(f.ID)
	require.NoError(t, err)
	require.Len(t, symbols, 1)
	assert.Equal(t, "Foo", symbols[0].Name)
	assert.Equal(t, KindFunction, symbols[0].Kind)
	assert.Equal(t, 4, symbols[0].StartLine)
}

func TestSymbol_QueryByName(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/main.go", "go")
	insertTestSymbol(t, s, f.ID, "Foo", KindFunction)
	insertTestSymbol(t, s, f.ID, "Bar", KindFunction)

	syms, err := s.SymbolsByName("Foo")
	require.NoError(t, err)
	require.Len(t, syms, 1)
	assert.Equal(t, "Foo", syms[0].Name)
}

func TestSymbol_QueryByQualifiedName(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/main.go", "go")
	s.InsertSymbol(&Symbol{FileID: f.ID, Name: "Foo", QualifiedName: "pkg.Foo", Kind: KindFunction})
	s.InsertSymbol(&Symbol{FileID: f.ID, Name: "Foo", QualifiedName: "other.Foo", Kind: KindFunction})

	syms, err := s.SymbolsByQualifiedName("pkg.Foo")
	require.NoError(t, err)
	require.Len(t, syms, 1)
	assert.Equal(t, "pkg.Foo", syms[0].QualifiedName)
}

func TestSymbol_QueryByKind(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/main.go", "go")
	insertTestSymbol(t, s, f.ID, "Foo", KindFunction)
	insertTestSymbol(t, s, f.ID, "MyStruct", KindRecord)

	syms, err := s.SymbolsByKind(KindRecord)
	require.NoError(t, err)
	require.Len(t, syms, 1)
	assert.Equal(t, "MyStruct", syms[0].Name)
}

func TestSymbol_Children(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/main.go", "go")
	parent := insertTestSymbol(t, s, f.ID, "MyClass", KindClass)

	child := &Symbol{
		FileID: f.ID, Name: "myMethod", QualifiedName: "MyClass.myMethod", Kind: KindMethod,
		ParentSymbolID: &parent.ID,
		StartLine:      2, StartCol: 0, EndLine: 7, EndCol: 0,
	}
	_, err := s.InsertSymbol(child)
	require.NoError(t, err)

	children, err := s.SymbolChildren(parent.ID)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, "myMethod", children[0].Name)
}

func TestSymbol_LikeQualified(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/main.go", "go")
	s.InsertSymbol(&Symbol{FileID: f.ID, Name: "Foo", QualifiedName: "pkg.Foo", Kind: KindFunction})
	s.InsertSymbol(&Symbol{FileID: f.ID, Name: "Bar", QualifiedName: "pkg.Bar", Kind: KindFunction})
	s.InsertSymbol(&Symbol{FileID: f.ID, Name: "Baz", QualifiedName: "other.Baz", Kind: KindFunction})

	got, err := s.SymbolsLikeQualified("pkg.%", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
}

func TestSymbol_FTS(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/main.go", "go")
	s.InsertSymbol(&Symbol{FileID: f.ID, Name: "HandleRequest", QualifiedName: "server.HandleRequest", Kind: KindFunction})
	s.InsertSymbol(&Symbol{FileID: f.ID, Name: "Close", QualifiedName: "server.Close", Kind: KindMethod})

	got, err := s.SymbolsByFTS("HandleRequest", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "HandleRequest", got[0].Name)
}

// =============================================================================
// Reference operations
// =============================================================================

func TestReference_InsertAndQuery(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/main.go", "go")
	sym := insertTestSymbol(t, s, f.ID, "Foo", KindFunction)

	ref := &Reference{
		FileID: f.ID, Identifier: "Bar", ContainerSymbolID: &sym.ID,
		StartLine: 9, StartCol: 5, EndLine: 9, EndCol: 8,
	}
	id, err := s.InsertReference(ref)
	require.NoError(t, err)
	require.Positive(t, id)

	refs, err := s.ReferencesByFile(f.ID)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "Bar", refs[0].Identifier)
	assert.Equal(t, 9, refs[0].StartLine)
	assert.Equal(t, 5, refs[0].StartCol)
}

func TestReference_ByIdentifier_OrderedByFileThenLine(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	fb := insertTestFile(t, s, "/b.go", "go")
	fa := insertTestFile(t, s, "/a.go", "go")

	s.InsertReference(&Reference{FileID: fb.ID, Identifier: "Foo", StartLine: 1})
	s.InsertReference(&Reference{FileID: fa.ID, Identifier: "Foo", StartLine: 5})
	s.InsertReference(&Reference{FileID: fa.ID, Identifier: "Foo", StartLine: 2})

	refs, err := s.ReferencesByIdentifier("Foo")
	require.NoError(t, err)
	require.Len(t, refs, 3)
	// /a.go sorts before /b.go, and within /a.go line 2 before line 5.
	assert.Equal(t, fa.ID, refs[0].FileID)
	assert.Equal(t, 2, refs[0].StartLine)
	assert.Equal(t, fa.ID, refs[1].FileID)
	assert.Equal(t, 5, refs[1].StartLine)
	assert.Equal(t, fb.ID, refs[2].FileID)
}

func TestReference_ByContainer(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/main.go", "go")
	sym := insertTestSymbol(t, s, f.ID, "Foo", KindFunction)

	s.InsertReference(&Reference{FileID: f.ID, Identifier: "x", ContainerSymbolID: &sym.ID, StartLine: 4})
	s.InsertReference(&Reference{FileID: f.ID, Identifier: "y", StartLine: 24}) // no container

	refs, err := s.ReferencesByContainer(sym.ID)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "x", refs[0].Identifier)
}

func TestReference_InRange(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/main.go", "go")

	s.InsertReference(&Reference{FileID: f.ID, Identifier: "x", StartLine: 5})
	s.InsertReference(&Reference{FileID: f.ID, Identifier: "y", StartLine: 15})
	s.InsertReference(&Reference{FileID: f.ID, Identifier: "z", StartLine: 25})

	refs, err := s.ReferencesInRange(f.ID, 1, 20)
	require.NoError(t, err)
	require.Len(t, refs, 2)
}

// =============================================================================
// Open operations
// =============================================================================

func TestOpen_InsertAndQuery(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/main.go", "go")

	_, err := s.InsertOpen(&Open{FileID: f.ID, ModulePath: "fmt", Line: 3})
	require.NoError(t, err)

	opens, err := s.OpensByFile(f.ID)
	require.NoError(t, err)
	require.Len(t, opens, 1)
	assert.Equal(t, "fmt", opens[0].ModulePath)
}

func TestOpen_All(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	fa := insertTestFile(t, s, "/a.go", "go")
	fb := insertTestFile(t, s, "/b.go", "go")
	s.InsertOpen(&Open{FileID: fa.ID, ModulePath: "fmt", Line: 1})
	s.InsertOpen(&Open{FileID: fb.ID, ModulePath: "os", Line: 1})

	opens, err := s.AllOpens()
	require.NoError(t, err)
	require.Len(t, opens, 2)
}

// =============================================================================
// Subclass operations
// =============================================================================

func TestSubclass_InsertAndQuery(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/main.go", "go")

	_, err := s.InsertSubclass(&Subclass{FileID: f.ID, ChildQualified: "pkg.Dog", ParentWritten: "Animal", Line: 10})
	require.NoError(t, err)

	got, err := s.SubclassesByParent("Animal")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "pkg.Dog", got[0].ChildQualified)
}

// =============================================================================
// Member operations
// =============================================================================

func TestMember_InsertAndQuery(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/types.go", "go")
	sym := insertTestSymbol(t, s, f.ID, "MyStruct", KindRecord)

	members := []*Member{
		{SymbolID: sym.ID, Name: "Name", Kind: KindField, Visibility: VisibilityPublic},
		{SymbolID: sym.ID, Name: "age", Kind: KindField, Visibility: VisibilityPrivate},
	}
	for _, m := range members {
		id, err := s.InsertMember(m)
		require.NoError(t, err)
		require.Positive(t, id)
	}

	got, err := s.MembersBySymbol(sym.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
}

// =============================================================================
// Metadata operations
// =============================================================================

func TestMetadata_SetAndGet(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	_, found, err := s.GetMetadata("scripts_hash")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.SetMetadata("scripts_hash", "abc"))
	val, found, err := s.GetMetadata("scripts_hash")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "abc", val)

	require.NoError(t, s.SetMetadata("scripts_hash", "def"))
	val, _, err = s.GetMetadata("scripts_hash")
	require.NoError(t, err)
	assert.Equal(t, "def", val)
}

// =============================================================================
// FileBlame operations
// =============================================================================

func TestFileBlame_UpsertAndGet(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/main.go", "go")

	require.NoError(t, s.UpsertFileBlame(&FileBlame{FileID: f.ID, LastCommit: "abc123", LastAuthor: "ada"}))

	got, err := s.FileBlameByFile(f.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "ada", got.LastAuthor)

	require.NoError(t, s.UpsertFileBlame(&FileBlame{FileID: f.ID, LastCommit: "def456", LastAuthor: "grace"}))
	got, err = s.FileBlameByFile(f.ID)
	require.NoError(t, err)
	assert.Equal(t, "grace", got.LastAuthor)
}

// =============================================================================
// DeleteFileData (transactional re-index)
// =============================================================================

func TestDeleteFileData(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/main.go", "go")

	sym := insertTestSymbol(t, s, f.ID, "Foo", KindFunction)
	s.InsertReference(&Reference{FileID: f.ID, Identifier: "Bar", StartLine: 9})
	s.InsertOpen(&Open{FileID: f.ID, ModulePath: "fmt", Line: 1})
	s.InsertSubclass(&Subclass{FileID: f.ID, ChildQualified: "Foo", ParentWritten: "Base", Line: 1})
	s.InsertMember(&Member{SymbolID: sym.ID, Name: "X", Kind: KindField})
	s.UpsertFileBlame(&FileBlame{FileID: f.ID, LastCommit: "abc", LastAuthor: "ada"})

	require.NoError(t, s.DeleteFileData(f.ID))

	syms, _ := s.SymbolsByFile(f.ID)
	assert.Empty(t, syms)

	refs, _ := s.ReferencesByFile(f.ID)
	assert.Empty(t, refs)

	opens, _ := s.OpensByFile(f.ID)
	assert.Empty(t, opens)

	blame, _ := s.FileBlameByFile(f.ID)
	assert.Nil(t, blame)
}

func TestDeleteFileData_ReindexWithNewData(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/main.go", "go")

	insertTestSymbol(t, s, f.ID, "OldFunc", KindFunction)
	syms, _ := s.SymbolsByFile(f.ID)
	require.Len(t, syms, 1)

	require.NoError(t, s.DeleteFileData(f.ID))
	insertTestSymbol(t, s, f.ID, "NewFunc", KindFunction)

	syms, err := s.SymbolsByFile(f.ID)
	require.NoError(t, err)
	require.Len(t, syms, 1)
	assert.Equal(t, "NewFunc", syms[0].Name)
}

// =============================================================================
// Signature Hash
// =============================================================================

func TestSignatureHash_Deterministic(t *testing.T) {
	t.Parallel()
	members := []Member{{Name: "x", Kind: KindField, Visibility: VisibilityPublic}}

	h1 := ComputeSignatureHash("Foo", KindFunction, VisibilityPublic, "func()", members)
	h2 := ComputeSignatureHash("Foo", KindFunction, VisibilityPublic, "func()", members)
	assert.Equal(t, h1, h2)
	assert.NotZero(t, h1)
}

func TestSignatureHash_ChangeName(t *testing.T) {
	t.Parallel()
	h1 := ComputeSignatureHash("Foo", KindFunction, VisibilityPublic, "", nil)
	h2 := ComputeSignatureHash("Bar", KindFunction, VisibilityPublic, "", nil)
	assert.NotEqual(t, h1, h2)
}

func TestSignatureHash_ChangeVisibility(t *testing.T) {
	t.Parallel()
	h1 := ComputeSignatureHash("Foo", KindFunction, VisibilityPublic, "", nil)
	h2 := ComputeSignatureHash("Foo", KindFunction, VisibilityPrivate, "", nil)
	assert.NotEqual(t, h1, h2)
}

func TestSignatureHash_ChangeTypeSignature(t *testing.T) {
	t.Parallel()
	h1 := ComputeSignatureHash("Foo", KindFunction, VisibilityPublic, "func()", nil)
	h2 := ComputeSignatureHash("Foo", KindFunction, VisibilityPublic, "func() error", nil)
	assert.NotEqual(t, h1, h2)
}

func TestSignatureHash_AddMember(t *testing.T) {
	t.Parallel()
	h1 := ComputeSignatureHash("MyStruct", KindRecord, VisibilityPublic, "", nil)
	h2 := ComputeSignatureHash("MyStruct", KindRecord, VisibilityPublic, "",
		[]Member{{Name: "x", Kind: KindField}})
	assert.NotEqual(t, h1, h2)
}

func TestSignatureHash_MemberOrderIndependent(t *testing.T) {
	t.Parallel()
	a := []Member{{Name: "x", Kind: KindField}, {Name: "y", Kind: KindField}}
	b := []Member{{Name: "y", Kind: KindField}, {Name: "x", Kind: KindField}}

	h1 := ComputeSignatureHash("Foo", KindRecord, VisibilityPublic, "", a)
	h2 := ComputeSignatureHash("Foo", KindRecord, VisibilityPublic, "", b)
	assert.Equal(t, h1, h2)
}

func TestContentHash_Deterministic(t *testing.T) {
	t.Parallel()
	h1 := ComputeContentHash([]byte("package main"))
	h2 := ComputeContentHash([]byte("package main"))
	assert.Equal(t, h1, h2)

	h3 := ComputeContentHash([]byte("package other"))
	assert.NotEqual(t, h1, h3)
}

// =============================================================================
// Blast radius methods
// =============================================================================

func TestFilesReferencingSymbols(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	fC := insertTestFile(t, s, "/c.go", "go")
	symC := insertTestSymbol(t, s, fC.ID, "Helper", KindFunction)

	fA := insertTestFile(t, s, "/a.go", "go")
	s.InsertReference(&Reference{FileID: fA.ID, Identifier: "Helper", StartLine: 4})

	fB := insertTestFile(t, s, "/b.go", "go")
	s.InsertReference(&Reference{FileID: fB.ID, Identifier: "Helper", StartLine: 7})

	fileIDs, err := s.FilesReferencingSymbols([]int64{symC.ID})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{fA.ID, fB.ID}, fileIDs)
}

func TestFilesReferencingSymbols_NoReferences(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/lonely.go", "go")
	sym := insertTestSymbol(t, s, f.ID, "Unused", KindFunction)

	fileIDs, err := s.FilesReferencingSymbols([]int64{sym.ID})
	require.NoError(t, err)
	assert.Empty(t, fileIDs)
}

func TestFilesOpeningModule(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	fA := insertTestFile(t, s, "/a.go", "go")
	fB := insertTestFile(t, s, "/b.go", "go")
	insertTestFile(t, s, "/c.go", "go")

	s.InsertOpen(&Open{FileID: fA.ID, ModulePath: "pkg/foo", Line: 1})
	s.InsertOpen(&Open{FileID: fB.ID, ModulePath: "pkg/foo", Line: 1})

	fileIDs, err := s.FilesOpeningModule("pkg/foo")
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{fA.ID, fB.ID}, fileIDs)
}
