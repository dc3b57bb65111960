// Package store owns the single embedded SQLite database that persists
// the symbol graph. All reads and writes in rocketindex go through it.
package store

import "time"

// Visibility mirrors the language-agnostic visibility lattice used for
// tie-breaking in the resolver: Public > Internal > Protected > Private.
type Visibility string

const (
	VisibilityPublic    Visibility = "Public"
	VisibilityInternal  Visibility = "Internal"
	VisibilityProtected Visibility = "Protected"
	VisibilityPrivate   Visibility = "Private"
)

// Rank orders visibility for resolver tie-breaking (higher wins).
func (v Visibility) Rank() int {
	switch v {
	case VisibilityPublic:
		return 3
	case VisibilityInternal:
		return 2
	case VisibilityProtected:
		return 1
	default:
		return 0
	}
}

// SymbolKind enumerates the definition kinds the Parser/Extractor can emit.
type SymbolKind string

const (
	KindModule      SymbolKind = "Module"
	KindNamespace   SymbolKind = "Namespace"
	KindFunction    SymbolKind = "Function"
	KindValue       SymbolKind = "Value"
	KindType        SymbolKind = "Type"
	KindRecord      SymbolKind = "Record"
	KindUnion       SymbolKind = "Union"
	KindInterface   SymbolKind = "Interface"
	KindClass       SymbolKind = "Class"
	KindMember      SymbolKind = "Member"
	KindProperty    SymbolKind = "Property"
	KindField       SymbolKind = "Field"
	KindEnum        SymbolKind = "Enum"
	KindEnumCase    SymbolKind = "EnumCase"
	KindTrait       SymbolKind = "Trait"
	KindMethod      SymbolKind = "Method"
	KindConstructor SymbolKind = "Constructor"
)

// SymbolSource distinguishes syntactically-extracted symbols from ones an
// external (semantic) type extractor could enrich. rocketindex's core never
// populates Semantic itself; the column exists because the Data Model (§3)
// names it as a Symbol attribute.
type SymbolSource string

const (
	SourceSyntactic SymbolSource = "syntactic"
	SourceSemantic  SymbolSource = "semantic"
)

// File is a single indexed source file (Data Model §3: File).
type File struct {
	ID               int64
	Path             string // as given to the pipeline, not normalized to the workspace root; unique (I3)
	Language         string
	ContentHash      uint64 // xxhash.Sum64 of the file bytes
	LineCount        int
	LastModified     time.Time
	CompilationOrder *int // nil when no compilation order is known
	LastIndexed      time.Time
}

// Symbol is a single definition (Data Model §3: Symbol).
type Symbol struct {
	ID             int64
	FileID         int64
	Name           string // short name
	QualifiedName  string // language-specific, e.g. A.B.C / A::B::C / Mod.Cls#meth
	Kind           SymbolKind
	StartLine      int // 1-indexed (I5)
	StartCol       int
	EndLine        int
	EndCol         int
	Visibility     Visibility
	DocComment     string // empty when absent
	TypeSignature  string // empty unless populated by an external extractor
	Source         SymbolSource
	SignatureHash  uint64 // xxhash.Sum64, location-independent (I4)
	ParentSymbolID *int64 // enclosing definition, if any
}

// Reference is a single non-defining identifier occurrence (Data Model §3: Reference).
type Reference struct {
	ID                int64
	FileID            int64
	Identifier        string // as written, possibly dotted/qualified
	StartLine         int
	StartCol          int
	EndLine           int
	EndCol            int
	ContainerSymbolID *int64 // closest enclosing named definition, for caller attribution
}

// Open is a single open/import/using/include directive (Data Model §3: Open).
type Open struct {
	ID         int64
	FileID     int64
	ModulePath string
	Line       int
}

// Subclass is a syntactic child/parent-as-written edge (Data Model §3: Subclass edge).
// The parent is recorded exactly as written in source; resolving it to an
// actual Symbol, when possible, happens at query time, not here.
type Subclass struct {
	ID             int64
	FileID         int64
	ChildQualified string
	ParentWritten  string
	Line           int
}

// Member is a nested definition (record field, enum case, class member)
// attached to an owning Symbol, kept separate from Symbol so one type
// doesn't repeat a row per member.
type Member struct {
	ID         int64
	SymbolID   int64
	Name       string
	Kind       SymbolKind
	StartLine  int
	StartCol   int
	EndLine    int
	EndCol     int
	Visibility Visibility
}

// FileBlame is the optional git-blame enrichment side-table (SPEC_FULL §3.1,
// §10.3). Never read by the Resolver, Query Layer, or Spider.
type FileBlame struct {
	FileID         int64
	LastCommit     string
	LastAuthor     string
	LastAuthorTime time.Time
}
