package store

import "fmt"

// FilesReferencingSymbols returns file IDs containing a reference whose
// identifier matches the short or qualified name of any of the given
// symbols. Because reference resolution happens only at query time
// (SPEC_FULL §4.2.1), there is no persisted resolved_references table to
// join against — this is necessarily a superset of the true blast radius
// (an identifier match doesn't guarantee the Resolver would actually bind
// to this symbol). The Batch Pipeline re-runs extraction, not resolution,
// on this candidate set; the Resolver re-derives bindings fresh on the
// next query.
func (s *Store) FilesReferencingSymbols(symbolIDs []int64) ([]int64, error) {
	if len(symbolIDs) == 0 {
		return nil, nil
	}
	placeholders := placeholderList(len(symbolIDs))
	query := `SELECT DISTINCT r.file_id
		FROM refs r
		WHERE r.identifier IN (
			SELECT name FROM symbols WHERE id IN (` + placeholders + `)
			UNION
			SELECT qualified_name FROM symbols WHERE id IN (` + placeholders + `)
		)`
	args := append(int64sToArgs(symbolIDs), int64sToArgs(symbolIDs)...)
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("files referencing symbols: %w", err)
	}
	defer rows.Close()
	var fileIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan file id: %w", err)
		}
		fileIDs = append(fileIDs, id)
	}
	return fileIDs, rows.Err()
}

// FilesOpeningModule returns file IDs that open/import the given module
// path, seeding the re-extraction set when a file's exported symbols
// change and a dependent's opens row may now resolve differently.
func (s *Store) FilesOpeningModule(modulePath string) ([]int64, error) {
	rows, err := s.db.Query("SELECT DISTINCT file_id FROM opens WHERE module_path = ?", modulePath)
	if err != nil {
		return nil, fmt.Errorf("files opening module: %w", err)
	}
	defer rows.Close()
	var fileIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan file id: %w", err)
		}
		fileIDs = append(fileIDs, id)
	}
	return fileIDs, rows.Err()
}
