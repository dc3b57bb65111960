package resolver

import (
	"strings"

	"github.com/rocket-tycoon/rocketindex/internal/store"
)

// separators covers the qualifier syntax seen across the languages
// rocketindex indexes: Rust/C++ "::", method-qualified "#", and the
// dotted form almost everything else uses. Checked in this order so "::"
// is never mistaken for two "."s.
var separators = []string{"::", "#", "."}

// Path records which of the six rules produced a Resolved result.
type Path string

const (
	PathQualified    Path = "Qualified"
	PathViaMember    Path = "ViaMember"
	PathSameFile     Path = "SameFile"
	PathViaOpen      Path = "ViaOpen"
	PathParentModule Path = "ParentModule"
	PathGlobal       Path = "Global"
)

// Outcome is the three-way result of a resolution attempt.
type Outcome int

const (
	Unresolved Outcome = iota
	Resolved
	Ambiguous
)

// Result is what Resolve returns for one identifier occurrence.
type Result struct {
	Outcome    Outcome
	Symbol     *store.Symbol // set when Outcome == Resolved
	Candidates []*store.Symbol
	Path       Path
}

// Resolve maps identifier, as written in fromFileID, to a definition using
// the six ordered rules of SPEC_FULL §4.2: exact qualified match, dotted
// split, same-file scope, via-open, enclosing-module walk, global
// short-name fallback. The first rule to produce any candidates wins; the
// compilation-order gate and tie-break rules then apply to that rule's
// candidate set alone. Resolve has no side effects and never touches the
// Store — it only reads snap.
func Resolve(snap *Snapshot, identifier string, fromFileID int64) Result {
	rules := []rule{
		resolveExactQualified,
		resolveDottedSplit,
		resolveSameFile,
		resolveViaOpen,
		resolveEnclosingModule,
		resolveGlobalShortName,
	}
	for _, r := range rules {
		candidates, path := r(snap, identifier, fromFileID)
		candidates = gateCompilationOrder(snap, candidates, fromFileID)
		if len(candidates) == 0 {
			continue
		}
		return tieBreak(candidates, path, fromFileID)
	}
	return Result{Outcome: Unresolved}
}

type rule func(snap *Snapshot, identifier string, fromFileID int64) ([]*store.Symbol, Path)

// resolveExactQualified is rule 1: the identifier may already be a
// qualified name (or happen to coincide with one); look it up verbatim.
func resolveExactQualified(snap *Snapshot, identifier string, _ int64) ([]*store.Symbol, Path) {
	return snap.byQualified[identifier], PathQualified
}

// resolveDottedSplit is rule 2: split the identifier at its last separator
// and resolve the prefix as a type/module in the current file's scope,
// then look up "<prefix's qualified name><sep><member>".
func resolveDottedSplit(snap *Snapshot, identifier string, fromFileID int64) ([]*store.Symbol, Path) {
	prefix, member, _, ok := splitQualified(identifier)
	if !ok {
		return nil, ""
	}
	prefixSym := resolveSimple(snap, prefix, fromFileID)
	if prefixSym == nil {
		return nil, ""
	}
	var results []*store.Symbol
	for _, sep := range separators {
		results = append(results, snap.byQualified[prefixSym.QualifiedName+sep+member]...)
	}
	return results, PathViaMember
}

// resolveSameFile is rule 3: match symbols declared in fromFileID whose
// short name, or whose qualified name's trailing component, equals
// identifier.
func resolveSameFile(snap *Snapshot, identifier string, fromFileID int64) ([]*store.Symbol, Path) {
	var results []*store.Symbol
	for _, sym := range snap.byFile[fromFileID] {
		if sym.Name == identifier || trailingComponent(sym.QualifiedName) == identifier {
			results = append(results, sym)
		}
	}
	return results, PathSameFile
}

// resolveViaOpen is rule 4: for each open/import/using directive in
// fromFileID, try "<module path><sep>identifier".
func resolveViaOpen(snap *Snapshot, identifier string, fromFileID int64) ([]*store.Symbol, Path) {
	var results []*store.Symbol
	for _, o := range snap.opensByFile[fromFileID] {
		for _, sep := range separators {
			results = append(results, snap.byQualified[o.ModulePath+sep+identifier]...)
		}
	}
	return results, PathViaOpen
}

// resolveEnclosingModule is rule 5: walk the file's own module path
// outward (A.B.C -> A.B -> A), trying each prefix qualified with identifier.
func resolveEnclosingModule(snap *Snapshot, identifier string, fromFileID int64) ([]*store.Symbol, Path) {
	modPath, ok := snap.modulePath[fromFileID]
	if !ok {
		return nil, ""
	}
	sep := detectSeparator(modPath)
	if sep == "" {
		return nil, ""
	}
	parts := strings.Split(modPath, sep)
	var results []*store.Symbol
	for i := len(parts); i >= 1; i-- {
		prefix := strings.Join(parts[:i], sep)
		results = append(results, snap.byQualified[prefix+sep+identifier]...)
	}
	return results, PathParentModule
}

// resolveGlobalShortName is rule 6: fall back to every symbol anywhere in
// the workspace sharing this short name. Ambiguity here is expected and
// left to the tie-break/Ambiguous machinery, never silently guessed.
func resolveGlobalShortName(snap *Snapshot, identifier string, _ int64) ([]*store.Symbol, Path) {
	return snap.byShortName[identifier], PathGlobal
}

// resolveSimple resolves identifier using only the rules that make sense
// for a bare prefix lookup (qualified, same-file, via-open, enclosing
// module) — used by resolveDottedSplit to resolve the type/module prefix
// without recursing into dotted-split or global fallback.
func resolveSimple(snap *Snapshot, identifier string, fromFileID int64) *store.Symbol {
	rules := []rule{
		resolveExactQualified,
		resolveSameFile,
		resolveViaOpen,
		resolveEnclosingModule,
	}
	for _, r := range rules {
		candidates, _ := r(snap, identifier, fromFileID)
		candidates = gateCompilationOrder(snap, candidates, fromFileID)
		if len(candidates) > 0 {
			return candidates[0]
		}
	}
	return nil
}

// gateCompilationOrder drops candidates declared in a file that compiles
// after fromFileID, when both files carry a known compilation order.
// Symbols with no known order, or from a file with no known order, are
// never excluded by this gate.
func gateCompilationOrder(snap *Snapshot, candidates []*store.Symbol, fromFileID int64) []*store.Symbol {
	fromFile, ok := snap.File(fromFileID)
	if !ok || fromFile.CompilationOrder == nil {
		return candidates
	}
	kept := candidates[:0:0]
	for _, c := range candidates {
		cf, ok := snap.File(c.FileID)
		if !ok || cf.CompilationOrder == nil || *cf.CompilationOrder <= *fromFile.CompilationOrder {
			kept = append(kept, c)
		}
	}
	return kept
}

// tieBreak narrows a winning rule's candidate set by: same file as the
// reference, then longest qualified name, then highest visibility rank.
// A single survivor resolves; more than one stays Ambiguous, reporting the
// rule's full original candidate list.
func tieBreak(candidates []*store.Symbol, path Path, fromFileID int64) Result {
	best := candidates

	if sameFile := filterSymbols(best, func(s *store.Symbol) bool { return s.FileID == fromFileID }); len(sameFile) > 0 {
		best = sameFile
	}

	maxLen := 0
	for _, s := range best {
		if len(s.QualifiedName) > maxLen {
			maxLen = len(s.QualifiedName)
		}
	}
	best = filterSymbols(best, func(s *store.Symbol) bool { return len(s.QualifiedName) == maxLen })

	maxRank := -1
	for _, s := range best {
		if r := s.Visibility.Rank(); r > maxRank {
			maxRank = r
		}
	}
	best = filterSymbols(best, func(s *store.Symbol) bool { return s.Visibility.Rank() == maxRank })

	if len(best) == 1 {
		return Result{Outcome: Resolved, Symbol: best[0], Path: path}
	}
	return Result{Outcome: Ambiguous, Candidates: candidates, Path: path}
}

func filterSymbols(syms []*store.Symbol, keep func(*store.Symbol) bool) []*store.Symbol {
	var out []*store.Symbol
	for _, s := range syms {
		if keep(s) {
			out = append(out, s)
		}
	}
	return out
}

// splitQualified finds the last occurrence of any known separator and
// splits identifier there.
func splitQualified(identifier string) (prefix, member, sep string, ok bool) {
	for _, s := range separators {
		if idx := strings.LastIndex(identifier, s); idx > 0 {
			return identifier[:idx], identifier[idx+len(s):], s, true
		}
	}
	return "", "", "", false
}

// detectSeparator reports which separator a qualified name uses.
func detectSeparator(qualified string) string {
	for _, s := range separators {
		if strings.Contains(qualified, s) {
			return s
		}
	}
	return ""
}

// trailingComponent returns the last separator-delimited component of a
// qualified name, or the name itself when it has no separator.
func trailingComponent(qualified string) string {
	_, member, _, ok := splitQualified(qualified)
	if !ok {
		return qualified
	}
	return member
}
