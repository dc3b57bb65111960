package store

import (
	"database/sql"
	"fmt"
)

// CommitBatch inserts all buffered data from a BatchedStore into SQLite
// within a single transaction. Fake (negative) IDs are remapped to real
// (positive, AUTOINCREMENT) IDs, and all FK references within the batch
// are rewritten using the fakeToReal mapping.
//
// Insert order respects FK dependencies:
//  1. Symbols (file_id is already real; parent_symbol_id may be fake when
//     the parent was extracted in the same batch)
//  2. Members (symbol_id)
//  3. References (container_symbol_id)
//  4. Opens (file_id only, already real)
//  5. Subclasses (file_id only, already real)
func (s *Store) CommitBatch(batch *BatchedStore) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("commit batch: begin: %w", err)
	}
	defer tx.Rollback()

	fakeToReal := make(map[int64]int64)

	// 1. Symbols
	for _, sym := range batch.Symbols {
		if sym.ParentSymbolID != nil && *sym.ParentSymbolID < 0 {
			realID := fakeToReal[*sym.ParentSymbolID]
			sym.ParentSymbolID = &realID
		}
		realID, err := insertSymbolTx(tx, &sym)
		if err != nil {
			return fmt.Errorf("commit batch: symbol %q: %w", sym.Name, err)
		}
		fakeToReal[sym.ID] = realID
	}

	// 2. Members
	for _, m := range batch.Members {
		if m.SymbolID < 0 {
			realID, ok := fakeToReal[m.SymbolID]
			if !ok {
				return fmt.Errorf("commit batch: member %q has symbol_id=%d not in fakeToReal map (have %d symbols)", m.Name, m.SymbolID, len(batch.Symbols))
			}
			m.SymbolID = realID
		}
		if _, err := insertMemberTx(tx, &m); err != nil {
			return fmt.Errorf("commit batch: member %q: %w", m.Name, err)
		}
	}

	// 3. References
	for _, ref := range batch.References {
		if ref.ContainerSymbolID != nil && *ref.ContainerSymbolID < 0 {
			realID := fakeToReal[*ref.ContainerSymbolID]
			ref.ContainerSymbolID = &realID
		}
		if _, err := insertReferenceTx(tx, &ref); err != nil {
			return fmt.Errorf("commit batch: reference %q: %w", ref.Identifier, err)
		}
	}

	// 4. Opens
	for _, o := range batch.Opens {
		if _, err := insertOpenTx(tx, &o); err != nil {
			return fmt.Errorf("commit batch: open %q: %w", o.ModulePath, err)
		}
	}

	// 5. Subclasses
	for _, sc := range batch.Subclasses {
		if _, err := insertSubclassTx(tx, &sc); err != nil {
			return fmt.Errorf("commit batch: subclass %q: %w", sc.ChildQualified, err)
		}
	}

	return tx.Commit()
}

// --- Transaction-scoped insert helpers ---
// These mirror the Store insert methods but accept *sql.Tx instead of using s.db.

func insertSymbolTx(tx *sql.Tx, sym *Symbol) (int64, error) {
	res, err := tx.Exec(
		`INSERT INTO symbols (file_id, name, qualified_name, kind, start_line, start_col, end_line, end_col,
			visibility, doc_comment, type_signature, source, signature_hash, parent_symbol_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sym.FileID, sym.Name, sym.QualifiedName, sym.Kind, sym.StartLine, sym.StartCol, sym.EndLine, sym.EndCol,
		sym.Visibility, sym.DocComment, sym.TypeSignature, sym.Source, sym.SignatureHash, sym.ParentSymbolID,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func insertMemberTx(tx *sql.Tx, m *Member) (int64, error) {
	res, err := tx.Exec(
		`INSERT INTO members (symbol_id, name, kind, start_line, start_col, end_line, end_col, visibility)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.SymbolID, m.Name, m.Kind, m.StartLine, m.StartCol, m.EndLine, m.EndCol, m.Visibility,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func insertReferenceTx(tx *sql.Tx, ref *Reference) (int64, error) {
	res, err := tx.Exec(
		`INSERT INTO refs (file_id, identifier, start_line, start_col, end_line, end_col, container_symbol_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ref.FileID, ref.Identifier, ref.StartLine, ref.StartCol, ref.EndLine, ref.EndCol, ref.ContainerSymbolID,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func insertOpenTx(tx *sql.Tx, o *Open) (int64, error) {
	res, err := tx.Exec(
		`INSERT INTO opens (file_id, module_path, line) VALUES (?, ?, ?)`,
		o.FileID, o.ModulePath, o.Line,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func insertSubclassTx(tx *sql.Tx, sc *Subclass) (int64, error) {
	res, err := tx.Exec(
		`INSERT INTO subclasses (file_id, child_qualified, parent_written, line) VALUES (?, ?, ?, ?)`,
		sc.FileID, sc.ChildQualified, sc.ParentWritten, sc.Line,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
