package runtime

import (
	"context"
	"fmt"
	"strings"

	"github.com/risor-io/risor/object"

	"github.com/rocket-tycoon/rocketindex/internal/store"
)

// The make*Fn constructors below create host functions that wrap DataStore
// methods. Risor scripts cannot construct Go struct pointers, so these
// functions accept Risor maps with primitive values and build the structs
// on the Go side. They're typed against store.DataStore rather than
// *store.Store so the same extraction script runs unmodified whether it's
// writing straight to SQLite or into a per-worker BatchedStore.

func makeInsertSymbolFn(s store.DataStore) *object.Builtin {
	return object.NewBuiltin("insert_symbol", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("insert_symbol", 1, len(args))
		}
		m, err := extractMap(args[0])
		if err != nil {
			return object.Errorf("insert_symbol: %v", err)
		}

		sym := &store.Symbol{
			FileID:        getInt64(m, "file_id"),
			Name:          getString(m, "name"),
			QualifiedName: getString(m, "qualified_name"),
			Kind:          store.SymbolKind(getString(m, "kind")),
			Visibility:    store.Visibility(getStringDefault(m, "visibility", string(store.VisibilityPublic))),
			DocComment:    getString(m, "doc_comment"),
			TypeSignature: getString(m, "type_signature"),
			Source:        store.SymbolSource(getStringDefault(m, "source", string(store.SourceSyntactic))),
			StartLine:     getInt(m, "start_line"),
			StartCol:      getInt(m, "start_col"),
			EndLine:       getInt(m, "end_line"),
			EndCol:        getInt(m, "end_col"),
		}
		if v, ok := getOptionalInt64(m, "parent_symbol_id"); ok {
			sym.ParentSymbolID = &v
		}
		sym.SignatureHash = store.ComputeSignatureHash(sym.Name, sym.Kind, sym.Visibility, sym.TypeSignature, nil)

		id, insertErr := s.InsertSymbol(sym)
		if insertErr != nil {
			return object.Errorf("insert_symbol: %v", insertErr)
		}
		return object.NewInt(id)
	})
}

func makeInsertReferenceFn(s store.DataStore) *object.Builtin {
	return object.NewBuiltin("insert_reference", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("insert_reference", 1, len(args))
		}
		m, err := extractMap(args[0])
		if err != nil {
			return object.Errorf("insert_reference: %v", err)
		}

		ref := &store.Reference{
			FileID:     getInt64(m, "file_id"),
			Identifier: getString(m, "identifier"),
			StartLine:  getInt(m, "start_line"),
			StartCol:   getInt(m, "start_col"),
			EndLine:    getInt(m, "end_line"),
			EndCol:     getInt(m, "end_col"),
		}
		if v, ok := getOptionalInt64(m, "container_symbol_id"); ok {
			ref.ContainerSymbolID = &v
		}

		id, insertErr := s.InsertReference(ref)
		if insertErr != nil {
			return object.Errorf("insert_reference: %v", insertErr)
		}
		return object.NewInt(id)
	})
}

func makeInsertOpenFn(s store.DataStore) *object.Builtin {
	return object.NewBuiltin("insert_open", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("insert_open", 1, len(args))
		}
		m, err := extractMap(args[0])
		if err != nil {
			return object.Errorf("insert_open: %v", err)
		}

		o := &store.Open{
			FileID:     getInt64(m, "file_id"),
			ModulePath: getString(m, "module_path"),
			Line:       getInt(m, "line"),
		}

		id, insertErr := s.InsertOpen(o)
		if insertErr != nil {
			return object.Errorf("insert_open: %v", insertErr)
		}
		return object.NewInt(id)
	})
}

func makeInsertSubclassFn(s store.DataStore) *object.Builtin {
	return object.NewBuiltin("insert_subclass", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("insert_subclass", 1, len(args))
		}
		m, err := extractMap(args[0])
		if err != nil {
			return object.Errorf("insert_subclass: %v", err)
		}

		sc := &store.Subclass{
			FileID:         getInt64(m, "file_id"),
			ChildQualified: getString(m, "child_qualified"),
			ParentWritten:  getString(m, "parent_written"),
			Line:           getInt(m, "line"),
		}

		id, insertErr := s.InsertSubclass(sc)
		if insertErr != nil {
			return object.Errorf("insert_subclass: %v", insertErr)
		}
		return object.NewInt(id)
	})
}

func makeInsertMemberFn(s store.DataStore) *object.Builtin {
	return object.NewBuiltin("insert_member", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("insert_member", 1, len(args))
		}
		m, err := extractMap(args[0])
		if err != nil {
			return object.Errorf("insert_member: %v", err)
		}

		mem := &store.Member{
			SymbolID:   getInt64(m, "symbol_id"),
			Name:       getString(m, "name"),
			Kind:       store.SymbolKind(getString(m, "kind")),
			Visibility: store.Visibility(getStringDefault(m, "visibility", string(store.VisibilityPublic))),
			StartLine:  getInt(m, "start_line"),
			StartCol:   getInt(m, "start_col"),
			EndLine:    getInt(m, "end_line"),
			EndCol:     getInt(m, "end_col"),
		}

		id, insertErr := s.InsertMember(mem)
		if insertErr != nil {
			return object.Errorf("insert_member: %v", insertErr)
		}
		return object.NewInt(id)
	})
}

// Helper to query symbols by name, needed by extraction scripts for
// cross-symbol lookups (e.g. linking a method to its receiver's own row).
func makeSymbolsByNameFn(s store.DataStore) *object.Builtin {
	return object.NewBuiltin("symbols_by_name", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("symbols_by_name", 1, len(args))
		}
		nameStr, ok := args[0].(*object.String)
		if !ok {
			return object.Errorf("symbols_by_name: expected string, got %s", args[0].Type())
		}

		syms, err := s.SymbolsByName(nameStr.Value())
		if err != nil {
			return object.Errorf("symbols_by_name: %v", err)
		}

		return symbolsToList(syms)
	})
}

// Helper to query symbols by file, needed so an extraction script can see
// symbols already extracted earlier in the same file (e.g. attaching a
// method to the struct declared above it).
func makeSymbolsByFileFn(s store.DataStore) *object.Builtin {
	return object.NewBuiltin("symbols_by_file", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("symbols_by_file", 1, len(args))
		}
		fileID, err := toInt64(args[0])
		if err != nil {
			return object.Errorf("symbols_by_file: %v", err)
		}

		syms, queryErr := s.SymbolsByFile(fileID)
		if queryErr != nil {
			return object.Errorf("symbols_by_file: %v", queryErr)
		}

		return symbolsToList(syms)
	})
}

// --- Map extraction helpers ---

func extractMap(obj object.Object) (map[string]object.Object, error) {
	m, ok := obj.(*object.Map)
	if !ok {
		return nil, fmt.Errorf("expected map, got %s", obj.Type())
	}
	return m.Value(), nil
}

func getString(m map[string]object.Object, key string) string {
	v, ok := m[key]
	if !ok {
		return ""
	}
	if s, ok := v.(*object.String); ok {
		return s.Value()
	}
	return ""
}

func getStringDefault(m map[string]object.Object, key, def string) string {
	v := getString(m, key)
	if v == "" {
		return def
	}
	return v
}

func getInt(m map[string]object.Object, key string) int {
	v, ok := m[key]
	if !ok {
		return 0
	}
	if i, ok := v.(*object.Int); ok {
		return int(i.Value())
	}
	if f, ok := v.(*object.Float); ok {
		return int(f.Value())
	}
	return 0
}

func getInt64(m map[string]object.Object, key string) int64 {
	v, ok := m[key]
	if !ok {
		return 0
	}
	if i, ok := v.(*object.Int); ok {
		return i.Value()
	}
	if f, ok := v.(*object.Float); ok {
		return int64(f.Value())
	}
	return 0
}

func getOptionalInt64(m map[string]object.Object, key string) (int64, bool) {
	v, ok := m[key]
	if !ok || v == nil || v == object.Nil {
		return 0, false
	}
	if i, ok := v.(*object.Int); ok {
		return i.Value(), true
	}
	if f, ok := v.(*object.Float); ok {
		return int64(f.Value()), true
	}
	return 0, false
}

func toInt64(obj object.Object) (int64, error) {
	if i, ok := obj.(*object.Int); ok {
		return i.Value(), nil
	}
	if f, ok := obj.(*object.Float); ok {
		return int64(f.Value()), nil
	}
	return 0, fmt.Errorf("expected int, got %s", obj.Type())
}

func toString(obj object.Object) (string, error) {
	if s, ok := obj.(*object.String); ok {
		return s.Value(), nil
	}
	return "", fmt.Errorf("expected string, got %s", obj.Type())
}

// --- Read bridge functions used by extraction scripts ---

func makeOpensByFileFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("opens_by_file", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("opens_by_file", 1, len(args))
		}
		fileID, err := toInt64(args[0])
		if err != nil {
			return object.Errorf("opens_by_file: %v", err)
		}

		opens, queryErr := s.OpensByFile(fileID)
		if queryErr != nil {
			return object.Errorf("opens_by_file: %v", queryErr)
		}

		var results []object.Object
		for _, o := range opens {
			results = append(results, object.NewMap(map[string]object.Object{
				"id":          object.NewInt(o.ID),
				"module_path": object.NewString(o.ModulePath),
				"line":        object.NewInt(int64(o.Line)),
			}))
		}
		if results == nil {
			results = []object.Object{}
		}
		return object.NewList(results)
	})
}

func makeFilesByLanguageFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("files_by_language", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("files_by_language", 1, len(args))
		}
		lang, err := toString(args[0])
		if err != nil {
			return object.Errorf("files_by_language: %v", err)
		}

		files, queryErr := s.FilesByLanguage(lang)
		if queryErr != nil {
			return object.Errorf("files_by_language: %v", queryErr)
		}

		var results []object.Object
		for _, f := range files {
			results = append(results, object.NewMap(map[string]object.Object{
				"id":       object.NewInt(f.ID),
				"path":     object.NewString(f.Path),
				"language": object.NewString(f.Language),
			}))
		}
		if results == nil {
			results = []object.Object{}
		}
		return object.NewList(results)
	})
}

func makeSymbolsByKindFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("symbols_by_kind", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("symbols_by_kind", 1, len(args))
		}
		kind, err := toString(args[0])
		if err != nil {
			return object.Errorf("symbols_by_kind: %v", err)
		}

		syms, queryErr := s.SymbolsByKind(store.SymbolKind(kind))
		if queryErr != nil {
			return object.Errorf("symbols_by_kind: %v", queryErr)
		}

		return symbolsToList(syms)
	})
}

// makeDBQueryFn creates a db_query bridge that executes arbitrary read-only
// SQL, an escape hatch for extraction scripts that need a join the typed
// bridges above don't cover. Returns a list of maps (column name -> value).
func makeDBQueryFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("db_query", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) < 1 {
			return object.Errorf("db_query: expected at least 1 argument (sql), got %d", len(args))
		}
		sqlStr, err := toString(args[0])
		if err != nil {
			return object.Errorf("db_query: %v", err)
		}

		// Only allow SELECT statements.
		trimmed := strings.TrimSpace(strings.ToUpper(sqlStr))
		if !strings.HasPrefix(trimmed, "SELECT") {
			return object.Errorf("db_query: only SELECT queries are allowed")
		}

		// Convert remaining args to query parameters.
		var queryArgs []any
		for _, arg := range args[1:] {
			switch v := arg.(type) {
			case *object.Int:
				queryArgs = append(queryArgs, v.Value())
			case *object.Float:
				queryArgs = append(queryArgs, v.Value())
			case *object.String:
				queryArgs = append(queryArgs, v.Value())
			default:
				if arg == object.Nil {
					queryArgs = append(queryArgs, nil)
				} else {
					queryArgs = append(queryArgs, fmt.Sprintf("%v", arg))
				}
			}
		}

		rows, queryErr := s.DB().QueryContext(ctx, sqlStr, queryArgs...)
		if queryErr != nil {
			return object.Errorf("db_query: %v", queryErr)
		}
		defer rows.Close()

		cols, colErr := rows.Columns()
		if colErr != nil {
			return object.Errorf("db_query: columns: %v", colErr)
		}

		var results []object.Object
		for rows.Next() {
			values := make([]any, len(cols))
			ptrs := make([]any, len(cols))
			for i := range values {
				ptrs[i] = &values[i]
			}
			if err := rows.Scan(ptrs...); err != nil {
				return object.Errorf("db_query: scan: %v", err)
			}
			row := make(map[string]object.Object, len(cols))
			for i, col := range cols {
				row[col] = sqlValueToObject(values[i])
			}
			results = append(results, object.NewMap(row))
		}
		if err := rows.Err(); err != nil {
			return object.Errorf("db_query: rows: %v", err)
		}
		if results == nil {
			results = []object.Object{}
		}
		return object.NewList(results)
	})
}

// sqlValueToObject converts a database value to a Risor object.
func sqlValueToObject(v any) object.Object {
	if v == nil {
		return object.Nil
	}
	switch val := v.(type) {
	case int64:
		return object.NewInt(val)
	case float64:
		return object.NewFloat(val)
	case string:
		return object.NewString(val)
	case bool:
		return object.NewBool(val)
	case []byte:
		return object.NewString(string(val))
	default:
		return object.NewString(fmt.Sprintf("%v", val))
	}
}

// symbolsToList converts a slice of store.Symbol to a Risor list of maps.
func symbolsToList(syms []*store.Symbol) object.Object {
	var results []object.Object
	for _, sym := range syms {
		m := map[string]object.Object{
			"id":             object.NewInt(sym.ID),
			"file_id":        object.NewInt(sym.FileID),
			"name":           object.NewString(sym.Name),
			"qualified_name": object.NewString(sym.QualifiedName),
			"kind":           object.NewString(string(sym.Kind)),
			"visibility":     object.NewString(string(sym.Visibility)),
			"start_line":     object.NewInt(int64(sym.StartLine)),
			"start_col":      object.NewInt(int64(sym.StartCol)),
			"end_line":       object.NewInt(int64(sym.EndLine)),
			"end_col":        object.NewInt(int64(sym.EndCol)),
		}
		if sym.ParentSymbolID != nil {
			m["parent_symbol_id"] = object.NewInt(*sym.ParentSymbolID)
		}
		results = append(results, object.NewMap(m))
	}
	if results == nil {
		results = []object.Object{}
	}
	return object.NewList(results)
}
