package query

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocket-tycoon/rocketindex/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.NewStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { s.Close() })
	return s
}

func mustFile(t *testing.T, s *store.Store, path, lang string) int64 {
	t.Helper()
	id, err := s.InsertFile(&store.File{Path: path, Language: lang})
	require.NoError(t, err)
	return id
}

func mustSymbol(t *testing.T, s *store.Store, sym *store.Symbol) int64 {
	t.Helper()
	id, err := s.InsertSymbol(sym)
	require.NoError(t, err)
	return id
}

func ptr(id int64) *int64 { return &id }

func TestFindDefinition_SameFile(t *testing.T) {
	s := newTestStore(t)
	f := mustFile(t, s, "main.go", "go")
	mustSymbol(t, s, &store.Symbol{FileID: f, Name: "main", QualifiedName: "main.main", Kind: store.KindFunction, Visibility: store.VisibilityPrivate})
	mustSymbol(t, s, &store.Symbol{FileID: f, Name: "helper", QualifiedName: "main.helper", Kind: store.KindFunction, Visibility: store.VisibilityPrivate})

	e := New(s)
	res, err := e.FindDefinition("helper", "main.go")
	require.NoError(t, err)
	require.Equal(t, OutcomeFound, res.Outcome)
	assert.Equal(t, "main.helper", res.Symbol.QualifiedName)
}

func TestFindDefinition_NotFound(t *testing.T) {
	s := newTestStore(t)
	mustFile(t, s, "main.go", "go")

	e := New(s)
	res, err := e.FindDefinition("nope", "")
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotFound, res.Outcome)
}

func TestFindDefinition_Ambiguous(t *testing.T) {
	s := newTestStore(t)
	f1 := mustFile(t, s, "billing.go", "go")
	f2 := mustFile(t, s, "payroll.go", "go")
	f3 := mustFile(t, s, "caller.go", "go")
	mustSymbol(t, s, &store.Symbol{FileID: f1, Name: "process", QualifiedName: "billing.process", Kind: store.KindFunction, Visibility: store.VisibilityPublic})
	mustSymbol(t, s, &store.Symbol{FileID: f2, Name: "process", QualifiedName: "payroll.process", Kind: store.KindFunction, Visibility: store.VisibilityPublic})
	_ = f3

	e := New(s)
	res, err := e.FindDefinition("process", "caller.go")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAmbiguous, res.Outcome)
	assert.Len(t, res.Candidates, 2)
}

func TestFindCallers(t *testing.T) {
	s := newTestStore(t)
	f := mustFile(t, s, "main.go", "go")
	helperID := mustSymbol(t, s, &store.Symbol{FileID: f, Name: "helper", QualifiedName: "main.helper", Kind: store.KindFunction, Visibility: store.VisibilityPrivate})
	mainID := mustSymbol(t, s, &store.Symbol{FileID: f, Name: "main", QualifiedName: "main.main", Kind: store.KindFunction, Visibility: store.VisibilityPrivate})

	_, err := s.InsertReference(&store.Reference{FileID: f, Identifier: "helper", StartLine: 5, ContainerSymbolID: ptr(mainID)})
	require.NoError(t, err)

	e := New(s)
	callers, err := e.FindCallers("helper")
	require.NoError(t, err)
	require.Len(t, callers, 1)
	assert.Equal(t, mainID, callers[0].ID)
	_ = helperID
}

func TestFindCallers_DeduplicatesMultipleCallSites(t *testing.T) {
	s := newTestStore(t)
	f := mustFile(t, s, "main.go", "go")
	mustSymbol(t, s, &store.Symbol{FileID: f, Name: "helper", QualifiedName: "main.helper", Kind: store.KindFunction, Visibility: store.VisibilityPrivate})
	mainID := mustSymbol(t, s, &store.Symbol{FileID: f, Name: "main", QualifiedName: "main.main", Kind: store.KindFunction, Visibility: store.VisibilityPrivate})

	_, err := s.InsertReference(&store.Reference{FileID: f, Identifier: "helper", StartLine: 5, ContainerSymbolID: ptr(mainID)})
	require.NoError(t, err)
	_, err = s.InsertReference(&store.Reference{FileID: f, Identifier: "helper", StartLine: 6, ContainerSymbolID: ptr(mainID)})
	require.NoError(t, err)

	e := New(s)
	callers, err := e.FindCallers("helper")
	require.NoError(t, err)
	require.Len(t, callers, 1)
}

func TestFindReferences_OrderedByLocation(t *testing.T) {
	s := newTestStore(t)
	fa := mustFile(t, s, "a.go", "go")
	fb := mustFile(t, s, "b.go", "go")
	mustSymbol(t, s, &store.Symbol{FileID: fa, Name: "helper", QualifiedName: "main.helper", Kind: store.KindFunction, Visibility: store.VisibilityPrivate})

	_, err := s.InsertReference(&store.Reference{FileID: fb, Identifier: "helper", StartLine: 3})
	require.NoError(t, err)
	_, err = s.InsertReference(&store.Reference{FileID: fa, Identifier: "helper", StartLine: 9})
	require.NoError(t, err)
	_, err = s.InsertReference(&store.Reference{FileID: fa, Identifier: "helper", StartLine: 2})
	require.NoError(t, err)

	e := New(s)
	refs, err := e.FindReferences("helper")
	require.NoError(t, err)
	require.Len(t, refs, 3)
	assert.Equal(t, fa, refs[0].FileID)
	assert.Equal(t, 2, refs[0].StartLine)
	assert.Equal(t, fa, refs[1].FileID)
	assert.Equal(t, 9, refs[1].StartLine)
	assert.Equal(t, fb, refs[2].FileID)
}

func TestSearchSymbols_Wildcard(t *testing.T) {
	s := newTestStore(t)
	f := mustFile(t, s, "main.go", "go")
	mustSymbol(t, s, &store.Symbol{FileID: f, Name: "NewServer", QualifiedName: "main.NewServer", Kind: store.KindFunction, Visibility: store.VisibilityPublic})
	mustSymbol(t, s, &store.Symbol{FileID: f, Name: "NewClient", QualifiedName: "main.NewClient", Kind: store.KindFunction, Visibility: store.VisibilityPublic})
	mustSymbol(t, s, &store.Symbol{FileID: f, Name: "Close", QualifiedName: "main.Close", Kind: store.KindFunction, Visibility: store.VisibilityPublic})

	e := New(s)
	results, err := e.SearchSymbols("main.New*", 0)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestFindSubclasses(t *testing.T) {
	s := newTestStore(t)
	f := mustFile(t, s, "main.go", "go")
	mustSymbol(t, s, &store.Symbol{FileID: f, Name: "Base", QualifiedName: "main.Base", Kind: store.KindRecord, Visibility: store.VisibilityPublic})
	mustSymbol(t, s, &store.Symbol{FileID: f, Name: "Derived", QualifiedName: "main.Derived", Kind: store.KindRecord, Visibility: store.VisibilityPublic})
	_, err := s.InsertSubclass(&store.Subclass{FileID: f, ChildQualified: "main.Derived", ParentWritten: "Base", Line: 4})
	require.NoError(t, err)

	e := New(s)
	subs, err := e.FindSubclasses("Base", false)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "main.Derived", subs[0].QualifiedName)
}

func TestSpider_ForwardWalk(t *testing.T) {
	s := newTestStore(t)
	f := mustFile(t, s, "main.go", "go")
	mainID := mustSymbol(t, s, &store.Symbol{FileID: f, Name: "main", QualifiedName: "main.main", Kind: store.KindFunction, Visibility: store.VisibilityPrivate})
	helperID := mustSymbol(t, s, &store.Symbol{FileID: f, Name: "helper", QualifiedName: "main.helper", Kind: store.KindFunction, Visibility: store.VisibilityPrivate})
	mustSymbol(t, s, &store.Symbol{FileID: f, Name: "leaf", QualifiedName: "main.leaf", Kind: store.KindFunction, Visibility: store.VisibilityPrivate})

	_, err := s.InsertReference(&store.Reference{FileID: f, Identifier: "helper", StartLine: 5, ContainerSymbolID: ptr(mainID)})
	require.NoError(t, err)
	_, err = s.InsertReference(&store.Reference{FileID: f, Identifier: "leaf", StartLine: 9, ContainerSymbolID: ptr(helperID)})
	require.NoError(t, err)
	_, err = s.InsertReference(&store.Reference{FileID: f, Identifier: "unknown_fn", StartLine: 10, ContainerSymbolID: ptr(helperID)})
	require.NoError(t, err)

	e := New(s)
	result, err := e.Spider("main.main", SpiderForward, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"main.main", "main.helper", "main.leaf"}, nodeNames(result.Nodes))
	assert.Equal(t, []string{"unknown_fn"}, result.Unresolved)
	require.Len(t, result.Nodes, 3)
	assert.Equal(t, 0, result.Nodes[0].Depth)
	assert.Equal(t, 1, result.Nodes[1].Depth)
	assert.Equal(t, 2, result.Nodes[2].Depth)
	assert.Equal(t, "main.go", result.Nodes[0].File)
}

func TestSpider_ReverseWalk(t *testing.T) {
	s := newTestStore(t)
	f := mustFile(t, s, "main.go", "go")
	mainID := mustSymbol(t, s, &store.Symbol{FileID: f, Name: "main", QualifiedName: "main.main", Kind: store.KindFunction, Visibility: store.VisibilityPrivate})
	mustSymbol(t, s, &store.Symbol{FileID: f, Name: "helper", QualifiedName: "main.helper", Kind: store.KindFunction, Visibility: store.VisibilityPrivate})

	_, err := s.InsertReference(&store.Reference{FileID: f, Identifier: "helper", StartLine: 5, ContainerSymbolID: ptr(mainID)})
	require.NoError(t, err)

	e := New(s)
	result, err := e.Spider("helper", SpiderReverse, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"main.helper", "main.main"}, nodeNames(result.Nodes))
}

func TestSpider_MaxDepth(t *testing.T) {
	s := newTestStore(t)
	f := mustFile(t, s, "main.go", "go")
	mainID := mustSymbol(t, s, &store.Symbol{FileID: f, Name: "main", QualifiedName: "main.main", Kind: store.KindFunction, Visibility: store.VisibilityPrivate})
	helperID := mustSymbol(t, s, &store.Symbol{FileID: f, Name: "helper", QualifiedName: "main.helper", Kind: store.KindFunction, Visibility: store.VisibilityPrivate})
	mustSymbol(t, s, &store.Symbol{FileID: f, Name: "leaf", QualifiedName: "main.leaf", Kind: store.KindFunction, Visibility: store.VisibilityPrivate})

	_, err := s.InsertReference(&store.Reference{FileID: f, Identifier: "helper", StartLine: 5, ContainerSymbolID: ptr(mainID)})
	require.NoError(t, err)
	_, err = s.InsertReference(&store.Reference{FileID: f, Identifier: "leaf", StartLine: 9, ContainerSymbolID: ptr(helperID)})
	require.NoError(t, err)

	e := New(s)
	result, err := e.Spider("main.main", SpiderForward, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"main.main", "main.helper"}, nodeNames(result.Nodes))
}

func nodeNames(nodes []SpiderNode) []string {
	names := make([]string, len(nodes))
	for i, n := range nodes {
		names[i] = n.Qualified
	}
	return names
}

func TestProjectSummary(t *testing.T) {
	s := newTestStore(t)
	f1 := mustFile(t, s, "main.go", "go")
	f2 := mustFile(t, s, "lib.py", "python")
	mustSymbol(t, s, &store.Symbol{FileID: f1, Name: "main", QualifiedName: "main.main", Kind: store.KindFunction, Visibility: store.VisibilityPrivate})
	mustSymbol(t, s, &store.Symbol{FileID: f2, Name: "helper", QualifiedName: "lib.helper", Kind: store.KindFunction, Visibility: store.VisibilityPublic})

	e := New(s)
	summary, err := e.ProjectSummary()
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Files)
	assert.Equal(t, 2, summary.Symbols)
	assert.Equal(t, 1, summary.Languages["go"])
	assert.Equal(t, 1, summary.Languages["python"])
}

func TestDependenciesAndDependents(t *testing.T) {
	s := newTestStore(t)
	f := mustFile(t, s, "main.go", "go")
	_, err := s.InsertOpen(&store.Open{FileID: f, ModulePath: "fmt", Line: 3})
	require.NoError(t, err)

	e := New(s)
	deps, err := e.Dependencies("main.go")
	require.NoError(t, err)
	assert.Equal(t, []string{"fmt"}, deps)

	dependents, err := e.Dependents("fmt")
	require.NoError(t, err)
	assert.Equal(t, []string{"main.go"}, dependents)
}
