package store

import (
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"
)

// ComputeContentHash hashes raw file bytes for the Store's per-file refresh
// change-detection (SPEC_FULL §4.3: "compare its new hash against the
// stored hash, and skip the transaction if unchanged").
func ComputeContentHash(content []byte) uint64 {
	return xxhash.Sum64(content)
}

// ComputeSignatureHash computes a deterministic hash from a symbol's
// semantic identity: name, kind, visibility, type signature, and member
// set. Location changes do NOT affect the hash — this is what lets the
// Batch Pipeline tell "moved" from "changed" when computing blast radius
// (I4: qualified names, and by extension signature hashes, are stable
// under re-indexing when the source is unchanged).
func ComputeSignatureHash(name string, kind SymbolKind, visibility Visibility, typeSignature string, members []Member) uint64 {
	h := xxhash.New()

	fmt.Fprintf(h, "name:%s\n", name)
	fmt.Fprintf(h, "kind:%s\n", kind)
	fmt.Fprintf(h, "visibility:%s\n", visibility)
	fmt.Fprintf(h, "type:%s\n", typeSignature)

	sorted := make([]Member, len(members))
	copy(sorted, members)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Name != sorted[j].Name {
			return sorted[i].Name < sorted[j].Name
		}
		return sorted[i].Kind < sorted[j].Kind
	})
	for _, m := range sorted {
		fmt.Fprintf(h, "member:%s:%s:%s\n", m.Name, m.Kind, m.Visibility)
	}

	return h.Sum64()
}
