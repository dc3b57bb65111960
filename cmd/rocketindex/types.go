package main

import "github.com/rocket-tycoon/rocketindex/internal/store"

// symbolJSON is the CLI's flat, stable JSON shape for a symbol, independent
// of store.Symbol's internal field set (SPEC_FULL §6).
type symbolJSON struct {
	Name       string `json:"name"`
	Qualified  string `json:"qualified"`
	Kind       string `json:"kind"`
	Visibility string `json:"visibility"`
	File       string `json:"file"`
	Line       int    `json:"line"`
	Column     int    `json:"column"`
}

// refJSON is one reference location (SPEC_FULL §6: `refs` output shape).
type refJSON struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

// callersJSON wraps a caller list under the "callers" key (SPEC_FULL §6).
type callersJSON struct {
	Callers []symbolJSON `json:"callers"`
}

func symbolDTO(sym *store.Symbol, path string) symbolJSON {
	return symbolJSON{
		Name:       sym.Name,
		Qualified:  sym.QualifiedName,
		Kind:       string(sym.Kind),
		Visibility: string(sym.Visibility),
		File:       path,
		Line:       sym.StartLine,
		Column:     sym.StartCol,
	}
}
