// Package query answers the name-based questions rocketindex's CLI and MCP
// adapter expose (SPEC_FULL §4.6): find_definition, find_references,
// find_callers, search_symbols, find_subclasses, plus the additive
// conveniences §4.6.1 carries over (symbol_at, dependencies/dependents,
// project_summary). Every operation here is read-only: resolution happens
// fresh, over a Snapshot built from the Store's current state, never from a
// persisted resolved-edge table.
package query

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/rocket-tycoon/rocketindex/internal/resolver"
	"github.com/rocket-tycoon/rocketindex/internal/store"
)

// Engine composes the Store and Resolver to answer name-based queries.
// A new Snapshot is built for every call, not cached across calls, since
// the Store may have changed between queries (a watcher rebuild, another
// CLI invocation) and the whole point of query-time resolution is that it
// never goes stale (SPEC_FULL §2, §4.2).
type Engine struct {
	store *store.Store
	group singleflight.Group
}

// New returns a query Engine backed by s.
func New(s *store.Store) *Engine {
	return &Engine{store: s}
}

// Outcome mirrors resolver.Outcome for the query layer's JSON-facing results.
type Outcome string

const (
	OutcomeFound     Outcome = "found"
	OutcomeAmbiguous Outcome = "ambiguous"
	OutcomeNotFound  Outcome = "not_found"
)

// DefinitionResult is find_definition's result (SPEC_FULL §4.6).
type DefinitionResult struct {
	Outcome    Outcome         `json:"outcome"`
	Symbol     *store.Symbol   `json:"symbol,omitempty"`
	Path       resolver.Path   `json:"resolution_path,omitempty"`
	Candidates []*store.Symbol `json:"candidates,omitempty"`
}

func (e *Engine) snapshot() (*resolver.Snapshot, error) {
	return resolver.BuildSnapshot(e.store)
}

func (e *Engine) fileIDForPath(path string) (int64, error) {
	if path == "" {
		return 0, nil
	}
	f, err := e.store.FileByPath(path)
	if err != nil {
		return 0, fmt.Errorf("query: %w", err)
	}
	if f == nil {
		return 0, fmt.Errorf("query: file not indexed: %s", path)
	}
	return f.ID, nil
}

// FindDefinition resolves name as if written in fromPath ("" for an
// unscoped, workspace-wide lookup).
func (e *Engine) FindDefinition(name, fromPath string) (DefinitionResult, error) {
	snap, err := e.snapshot()
	if err != nil {
		return DefinitionResult{}, err
	}
	fromFileID, err := e.fileIDForPath(fromPath)
	if err != nil {
		return DefinitionResult{}, err
	}
	return toDefinitionResult(resolver.Resolve(snap, name, fromFileID)), nil
}

func toDefinitionResult(res resolver.Result) DefinitionResult {
	switch res.Outcome {
	case resolver.Resolved:
		return DefinitionResult{Outcome: OutcomeFound, Symbol: res.Symbol, Path: res.Path}
	case resolver.Ambiguous:
		return DefinitionResult{Outcome: OutcomeAmbiguous, Candidates: res.Candidates, Path: res.Path}
	default:
		return DefinitionResult{Outcome: OutcomeNotFound}
	}
}

// resolveTarget finds the single symbol name refers to: an exact qualified
// match if unambiguous, else a short-name match if unambiguous. Used by
// find_callers/find_subclasses, which need one concrete target rather than
// a resolution relative to a caller file.
func (e *Engine) resolveTarget(name string) (*store.Symbol, error) {
	exact, err := e.store.SymbolsByQualifiedName(name)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	if len(exact) == 1 {
		return exact[0], nil
	}
	if len(exact) > 1 {
		return nil, fmt.Errorf("query: %d symbols qualified %q", len(exact), name)
	}

	byName, err := e.store.SymbolsByName(name)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	if len(byName) == 0 {
		return nil, nil
	}
	if len(byName) > 1 {
		return nil, fmt.Errorf("query: %d symbols named %q, use a qualified name", len(byName), name)
	}
	return byName[0], nil
}

// FindReferences returns every Reference textually matching name's short or
// qualified form, ordered by file path then start line (SPEC_FULL §4.6).
func (e *Engine) FindReferences(name string) ([]*store.Reference, error) {
	target, err := e.resolveTarget(name)
	if err != nil {
		return nil, err
	}

	var refs []*store.Reference
	if target != nil {
		short, err := e.store.ReferencesByIdentifier(target.Name)
		if err != nil {
			return nil, fmt.Errorf("query: %w", err)
		}
		refs = append(refs, short...)
		if target.QualifiedName != target.Name {
			qualified, err := e.store.ReferencesByIdentifier(target.QualifiedName)
			if err != nil {
				return nil, fmt.Errorf("query: %w", err)
			}
			refs = append(refs, qualified...)
		}
	} else {
		refs, err = e.store.ReferencesByIdentifier(name)
		if err != nil {
			return nil, fmt.Errorf("query: %w", err)
		}
	}

	return e.sortReferencesByLocation(refs)
}

func (e *Engine) sortReferencesByLocation(refs []*store.Reference) ([]*store.Reference, error) {
	paths := make(map[int64]string, len(refs))
	for _, r := range refs {
		if _, ok := paths[r.FileID]; ok {
			continue
		}
		f, err := e.store.FileByID(r.FileID)
		if err != nil {
			return nil, fmt.Errorf("query: %w", err)
		}
		if f != nil {
			paths[r.FileID] = f.Path
		}
	}
	sort.Slice(refs, func(i, j int) bool {
		pi, pj := paths[refs[i].FileID], paths[refs[j].FileID]
		if pi != pj {
			return pi < pj
		}
		if refs[i].StartLine != refs[j].StartLine {
			return refs[i].StartLine < refs[j].StartLine
		}
		return refs[i].StartCol < refs[j].StartCol
	})
	return refs, nil
}

// FindCallers returns the distinct enclosing Symbols of every Reference that
// resolves to name, unresolved references dropped (SPEC_FULL §4.6).
// Candidate references are narrowed with Store.ReferencesByIdentifier (a
// cheap textual superset) then confirmed with the Resolver, deduplicating
// identical (identifier, file) resolve calls with singleflight since a
// reference set commonly repeats the same text across many call sites in
// one file (SPEC_FULL §4.2.1, §10.1).
func (e *Engine) FindCallers(name string) ([]*store.Symbol, error) {
	target, err := e.resolveTarget(name)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, nil
	}

	snap, err := e.snapshot()
	if err != nil {
		return nil, err
	}
	return e.callersOf(snap, target)
}

// callersOf finds every distinct Symbol enclosing a Reference that resolves
// to target, against the given (already built) Snapshot. Factored out of
// FindCallers so Spider's reverse direction can reuse it per-node without
// rebuilding the Snapshot on every hop.
func (e *Engine) callersOf(snap *resolver.Snapshot, target *store.Symbol) ([]*store.Symbol, error) {
	candidates, err := e.store.ReferencesByIdentifier(target.Name)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	if target.QualifiedName != target.Name {
		qualified, err := e.store.ReferencesByIdentifier(target.QualifiedName)
		if err != nil {
			return nil, fmt.Errorf("query: %w", err)
		}
		candidates = append(candidates, qualified...)
	}

	seen := make(map[int64]bool)
	var callers []*store.Symbol
	for _, ref := range candidates {
		if ref.ContainerSymbolID == nil {
			continue
		}
		key := fmt.Sprintf("%d\x00%s", ref.FileID, ref.Identifier)
		v, err, _ := e.group.Do(key, func() (any, error) {
			return resolver.Resolve(snap, ref.Identifier, ref.FileID), nil
		})
		if err != nil {
			return nil, err
		}
		res := v.(resolver.Result)
		if res.Outcome != resolver.Resolved || res.Symbol.ID != target.ID {
			continue
		}
		if seen[*ref.ContainerSymbolID] {
			continue
		}
		seen[*ref.ContainerSymbolID] = true
		caller, err := e.store.SymbolByID(*ref.ContainerSymbolID)
		if err != nil {
			return nil, fmt.Errorf("query: %w", err)
		}
		if caller != nil {
			callers = append(callers, caller)
		}
	}

	sort.Slice(callers, func(i, j int) bool { return callers[i].QualifiedName < callers[j].QualifiedName })
	return callers, nil
}

// SpiderDirection selects which edge Spider walks: Forward follows the
// references a symbol's own body makes (its callees); Reverse follows the
// references that resolve back to it (its callers).
type SpiderDirection string

const (
	SpiderForward SpiderDirection = "forward"
	SpiderReverse SpiderDirection = "reverse"
)

// SpiderResult is spider's result (SPEC_FULL §4.7, §6): nodes in
// deterministic BFS insertion order, and the distinct identifiers that a
// forward walk hit but could not resolve (always empty for a reverse walk,
// since find_callers only ever reports resolved edges).
type SpiderResult struct {
	Nodes      []SpiderNode `json:"nodes"`
	Unresolved []string     `json:"unresolved"`
}

// SpiderNode is one visited symbol: its qualified name, BFS depth from the
// entry point, and definition location.
type SpiderNode struct {
	Qualified string `json:"qualified"`
	Depth     int    `json:"depth"`
	File      string `json:"file"`
	Line      int    `json:"line"`
}

type frontierNode struct {
	qualified string
	depth     int
}

// Spider performs a breadth-first walk outward from entry, up to maxDepth
// hops (maxDepth < 0 means unbounded). Each level's fan-out runs concurrently
// through a bounded errgroup with singleflight-deduped resolve calls, but
// results are folded back in fixed frontier order after the level
// completes — wall-clock benefits from the concurrency, the emitted node
// order and unresolved set never do (SPEC_FULL §4.7).
func (e *Engine) Spider(entry string, direction SpiderDirection, maxDepth int) (SpiderResult, error) {
	target, err := e.resolveTarget(entry)
	if err != nil {
		return SpiderResult{}, err
	}
	if target == nil {
		return SpiderResult{}, fmt.Errorf("query: no symbol named %q", entry)
	}

	snap, err := e.snapshot()
	if err != nil {
		return SpiderResult{}, err
	}

	visited := map[string]bool{target.QualifiedName: true}
	order := []SpiderNode{e.spiderNode(target, 0)}
	unresolvedSeen := map[string]bool{}
	var unresolvedOrder []string
	frontier := []frontierNode{{target.QualifiedName, 0}}

	for len(frontier) > 0 {
		if maxDepth >= 0 && frontier[0].depth >= maxDepth {
			break
		}

		children := make([][]*store.Symbol, len(frontier))
		unresolved := make([][]string, len(frontier))
		g, _ := errgroup.WithContext(context.Background())
		g.SetLimit(runtime.NumCPU())
		var mu sync.Mutex
		for i, node := range frontier {
			i, node := i, node
			g.Go(func() error {
				c, u, err := e.expand(snap, node.qualified, direction)
				if err != nil {
					return err
				}
				mu.Lock()
				children[i] = c
				unresolved[i] = u
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return SpiderResult{}, err
		}

		var next []frontierNode
		for i, node := range frontier {
			for _, u := range unresolved[i] {
				if !unresolvedSeen[u] {
					unresolvedSeen[u] = true
					unresolvedOrder = append(unresolvedOrder, u)
				}
			}
			for _, c := range children[i] {
				if visited[c.QualifiedName] {
					continue
				}
				visited[c.QualifiedName] = true
				order = append(order, e.spiderNode(c, node.depth+1))
				next = append(next, frontierNode{c.QualifiedName, node.depth + 1})
			}
		}
		frontier = next
	}

	return SpiderResult{Nodes: order, Unresolved: unresolvedOrder}, nil
}

// spiderNode reports sym's qualified name, depth and definition location as
// a SpiderNode; a file lookup
// failure (shouldn't happen against a consistent Store) just leaves File
// blank rather than failing the whole walk.
func (e *Engine) spiderNode(sym *store.Symbol, depth int) SpiderNode {
	path := ""
	if f, err := e.store.FileByID(sym.FileID); err == nil && f != nil {
		path = f.Path
	}
	return SpiderNode{Qualified: sym.QualifiedName, Depth: depth, File: path, Line: sym.StartLine}
}

// expand returns qualified's outward edges in direction: the resolved
// targets of its own references (forward) or the callers that resolve to it
// (reverse), plus any identifiers a forward walk could not resolve.
func (e *Engine) expand(snap *resolver.Snapshot, qualified string, direction SpiderDirection) ([]*store.Symbol, []string, error) {
	syms, err := e.store.SymbolsByQualifiedName(qualified)
	if err != nil {
		return nil, nil, fmt.Errorf("query: %w", err)
	}
	if len(syms) == 0 {
		return nil, nil, nil
	}
	sym := syms[0]

	if direction == SpiderReverse {
		callers, err := e.callersOf(snap, sym)
		if err != nil {
			return nil, nil, err
		}
		return callers, nil, nil
	}

	refs, err := e.store.ReferencesByContainer(sym.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("query: %w", err)
	}

	var children []*store.Symbol
	var unresolved []string
	for _, ref := range refs {
		key := fmt.Sprintf("%d\x00%s", ref.FileID, ref.Identifier)
		v, err, _ := e.group.Do(key, func() (any, error) {
			return resolver.Resolve(snap, ref.Identifier, ref.FileID), nil
		})
		if err != nil {
			return nil, nil, err
		}
		res := v.(resolver.Result)
		if res.Outcome == resolver.Resolved {
			children = append(children, res.Symbol)
		} else {
			unresolved = append(unresolved, ref.Identifier)
		}
	}
	return children, unresolved, nil
}

// SearchSymbols matches pattern against qualified names: "*" wildcards and
// bare prefixes become a SQL LIKE; anything else falls back to the FTS5
// shadow table for token-style queries (SPEC_FULL §4.6).
func (e *Engine) SearchSymbols(pattern string, limit int) ([]*store.Symbol, error) {
	if limit <= 0 {
		limit = 100
	}
	if strings.Contains(pattern, "*") || !strings.ContainsAny(pattern, " \t") {
		like := strings.ReplaceAll(pattern, "*", "%")
		if !strings.Contains(like, "%") {
			like += "%"
		}
		syms, err := e.store.SymbolsLikeQualified(like, limit)
		if err != nil {
			return nil, fmt.Errorf("query: %w", err)
		}
		if len(syms) > 0 {
			return syms, nil
		}
	}
	syms, err := e.store.SymbolsByFTS(pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	return syms, nil
}

// FindSubclasses returns every Symbol whose written parent resolves to
// typeName, one level by default, transitively when transitive is true
// (SPEC_FULL §4.6).
func (e *Engine) FindSubclasses(typeName string, transitive bool) ([]*store.Symbol, error) {
	target, err := e.resolveTarget(typeName)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, nil
	}

	var out []*store.Symbol
	seen := make(map[string]bool)
	frontier := []string{target.QualifiedName, target.Name}

	for len(frontier) > 0 {
		var next []string
		for _, parentName := range frontier {
			edges, err := e.store.SubclassesByParent(parentName)
			if err != nil {
				return nil, fmt.Errorf("query: %w", err)
			}
			for _, edge := range edges {
				if seen[edge.ChildQualified] {
					continue
				}
				seen[edge.ChildQualified] = true
				syms, err := e.store.SymbolsByQualifiedName(edge.ChildQualified)
				if err != nil {
					return nil, fmt.Errorf("query: %w", err)
				}
				out = append(out, syms...)
				if transitive {
					next = append(next, edge.ChildQualified)
				}
			}
		}
		frontier = next
	}

	sort.Slice(out, func(i, j int) bool { return out[i].QualifiedName < out[j].QualifiedName })
	return out, nil
}

// SymbolAt returns the narrowest Symbol in path containing (line, col),
// used internally to resolve a cursor position into a name for `def`/`refs
// --from` (SPEC_FULL §4.6.1).
func (e *Engine) SymbolAt(path string, line, col int) (*store.Symbol, error) {
	f, err := e.store.FileByPath(path)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	if f == nil {
		return nil, fmt.Errorf("query: file not indexed: %s", path)
	}
	syms, err := e.store.SymbolsByFile(f.ID)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	var best *store.Symbol
	for _, s := range syms {
		if !withinRange(s, line, col) {
			continue
		}
		if best == nil || narrower(s, best) {
			best = s
		}
	}
	return best, nil
}

func withinRange(s *store.Symbol, line, col int) bool {
	if line < s.StartLine || line > s.EndLine {
		return false
	}
	if line == s.StartLine && col < s.StartCol {
		return false
	}
	if line == s.EndLine && col > s.EndCol {
		return false
	}
	return true
}

func narrower(a, b *store.Symbol) bool {
	aSpan := a.EndLine - a.StartLine
	bSpan := b.EndLine - b.StartLine
	return aSpan < bSpan
}

// Dependencies returns the module paths path's Open directives name
// (SPEC_FULL §4.6.1: a read of the opens table only).
func (e *Engine) Dependencies(path string) ([]string, error) {
	f, err := e.store.FileByPath(path)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	if f == nil {
		return nil, fmt.Errorf("query: file not indexed: %s", path)
	}
	opens, err := e.store.OpensByFile(f.ID)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	out := make([]string, len(opens))
	for i, o := range opens {
		out[i] = o.ModulePath
	}
	return out, nil
}

// Dependents returns every indexed file path that opens modulePath.
func (e *Engine) Dependents(modulePath string) ([]string, error) {
	ids, err := e.store.FilesOpeningModule(modulePath)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	var paths []string
	for _, id := range ids {
		f, err := e.store.FileByID(id)
		if err != nil {
			return nil, fmt.Errorf("query: %w", err)
		}
		if f != nil {
			paths = append(paths, f.Path)
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// ProjectSummary reports aggregate counts over the whole workspace
// (SPEC_FULL §4.6.1) — never a new persisted entity, just counts over the
// existing tables.
type ProjectSummary struct {
	Files     int            `json:"files"`
	Symbols   int            `json:"symbols"`
	Languages map[string]int `json:"languages"`
}

func (e *Engine) ProjectSummary() (ProjectSummary, error) {
	files, err := e.store.AllFiles()
	if err != nil {
		return ProjectSummary{}, fmt.Errorf("query: %w", err)
	}
	summary := ProjectSummary{Files: len(files), Languages: make(map[string]int)}
	for _, f := range files {
		summary.Languages[f.Language]++
		syms, err := e.store.SymbolsByFile(f.ID)
		if err != nil {
			return ProjectSummary{}, fmt.Errorf("query: %w", err)
		}
		summary.Symbols += len(syms)
	}
	return summary, nil
}
