package store

import (
	"database/sql"
	"fmt"
)

// --- File operations ---

func (s *Store) InsertFile(f *File) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO files (path, language, content_hash, line_count, last_modified, compilation_order, last_indexed)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		f.Path, f.Language, f.ContentHash, f.LineCount, f.LastModified, f.CompilationOrder, f.LastIndexed,
	)
	if err != nil {
		return 0, fmt.Errorf("insert file: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	f.ID = id
	return id, nil
}

const fileCols = `id, path, language, content_hash, line_count, last_modified, compilation_order, last_indexed`

func scanFile(scanner interface{ Scan(...any) error }) (*File, error) {
	f := &File{}
	err := scanner.Scan(&f.ID, &f.Path, &f.Language, &f.ContentHash, &f.LineCount,
		&f.LastModified, &f.CompilationOrder, &f.LastIndexed)
	return f, err
}

func (s *Store) FileByPath(path string) (*File, error) {
	f, err := scanFile(s.db.QueryRow("SELECT "+fileCols+" FROM files WHERE path = ?", path))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file by path: %w", err)
	}
	return f, nil
}

func (s *Store) FileByID(id int64) (*File, error) {
	f, err := scanFile(s.db.QueryRow("SELECT "+fileCols+" FROM files WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file by id: %w", err)
	}
	return f, nil
}

func (s *Store) FilesByLanguage(language string) ([]*File, error) {
	rows, err := s.db.Query("SELECT "+fileCols+" FROM files WHERE language = ?", language)
	if err != nil {
		return nil, fmt.Errorf("files by language: %w", err)
	}
	defer rows.Close()
	var files []*File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

func (s *Store) AllFiles() ([]*File, error) {
	rows, err := s.db.Query("SELECT " + fileCols + " FROM files")
	if err != nil {
		return nil, fmt.Errorf("all files: %w", err)
	}
	defer rows.Close()
	var files []*File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

func (s *Store) DistinctLanguages() ([]string, error) {
	rows, err := s.db.Query("SELECT DISTINCT language FROM files")
	if err != nil {
		return nil, fmt.Errorf("distinct languages: %w", err)
	}
	defer rows.Close()
	var langs []string
	for rows.Next() {
		var l string
		if err := rows.Scan(&l); err != nil {
			return nil, fmt.Errorf("scan language: %w", err)
		}
		langs = append(langs, l)
	}
	return langs, rows.Err()
}

func (s *Store) DeleteFile(fileID int64) error {
	_, err := s.db.Exec("DELETE FROM files WHERE id = ?", fileID)
	if err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

// --- Symbol operations ---

// SymbolCols is the column list for symbol queries, exported for the Query Layer.
const SymbolCols = `id, file_id, name, qualified_name, kind, start_line, start_col, end_line, end_col,
	visibility, doc_comment, type_signature, source, signature_hash, parent_symbol_id`

func (s *Store) InsertSymbol(sym *Symbol) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO symbols (file_id, name, qualified_name, kind, start_line, start_col, end_line, end_col,
			visibility, doc_comment, type_signature, source, signature_hash, parent_symbol_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sym.FileID, sym.Name, sym.QualifiedName, sym.Kind, sym.StartLine, sym.StartCol, sym.EndLine, sym.EndCol,
		sym.Visibility, sym.DocComment, sym.TypeSignature, sym.Source, sym.SignatureHash, sym.ParentSymbolID,
	)
	if err != nil {
		return 0, fmt.Errorf("insert symbol: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	sym.ID = id
	return id, nil
}

// ScanSymbolRow scans a single row into a Symbol. Exported for the Query Layer.
func ScanSymbolRow(scanner interface{ Scan(...any) error }) (*Symbol, error) {
	sym := &Symbol{}
	err := scanner.Scan(
		&sym.ID, &sym.FileID, &sym.Name, &sym.QualifiedName, &sym.Kind,
		&sym.StartLine, &sym.StartCol, &sym.EndLine, &sym.EndCol,
		&sym.Visibility, &sym.DocComment, &sym.TypeSignature, &sym.Source,
		&sym.SignatureHash, &sym.ParentSymbolID,
	)
	return sym, err
}

func (s *Store) querySymbols(query string, args ...any) ([]*Symbol, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var symbols []*Symbol
	for rows.Next() {
		sym, err := ScanSymbolRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan symbol: %w", err)
		}
		symbols = append(symbols, sym)
	}
	return symbols, rows.Err()
}

func (s *Store) SymbolByID(id int64) (*Symbol, error) {
	syms, err := s.querySymbols("SELECT "+SymbolCols+" FROM symbols WHERE id = ?", id)
	if err != nil || len(syms) == 0 {
		return nil, err
	}
	return syms[0], nil
}

func (s *Store) SymbolsByFile(fileID int64) ([]*Symbol, error) {
	return s.querySymbols("SELECT "+SymbolCols+" FROM symbols WHERE file_id = ?", fileID)
}

func (s *Store) SymbolsByName(name string) ([]*Symbol, error) {
	return s.querySymbols("SELECT "+SymbolCols+" FROM symbols WHERE name = ?", name)
}

func (s *Store) SymbolsByQualifiedName(qualified string) ([]*Symbol, error) {
	return s.querySymbols("SELECT "+SymbolCols+" FROM symbols WHERE qualified_name = ?", qualified)
}

func (s *Store) SymbolsByKind(kind SymbolKind) ([]*Symbol, error) {
	return s.querySymbols("SELECT "+SymbolCols+" FROM symbols WHERE kind = ?", kind)
}

func (s *Store) SymbolChildren(symbolID int64) ([]*Symbol, error) {
	return s.querySymbols("SELECT "+SymbolCols+" FROM symbols WHERE parent_symbol_id = ?", symbolID)
}

// SymbolsLikeQualified returns symbols whose qualified name matches a SQL
// LIKE pattern, used by search_symbols for "*"-wildcard / prefix queries.
func (s *Store) SymbolsLikeQualified(pattern string, limit int) ([]*Symbol, error) {
	return s.querySymbols("SELECT "+SymbolCols+" FROM symbols WHERE qualified_name LIKE ? ORDER BY qualified_name LIMIT ?", pattern, limit)
}

// SymbolsByFTS runs a full-text query over symbol short/qualified names.
func (s *Store) SymbolsByFTS(query string, limit int) ([]*Symbol, error) {
	return s.querySymbols(
		`SELECT `+prefixedSymbolCols("s")+` FROM symbols_fts
		 JOIN symbols s ON s.id = symbols_fts.rowid
		 WHERE symbols_fts MATCH ? ORDER BY rank LIMIT ?`,
		query, limit,
	)
}

func prefixedSymbolCols(prefix string) string {
	cols := []string{"id", "file_id", "name", "qualified_name", "kind", "start_line", "start_col",
		"end_line", "end_col", "visibility", "doc_comment", "type_signature", "source",
		"signature_hash", "parent_symbol_id"}
	out := ""
	for i, c := range cols {
		if i > 0 {
			out += ", "
		}
		out += prefix + "." + c
	}
	return out
}

// --- Reference operations ---

const refCols = `id, file_id, identifier, start_line, start_col, end_line, end_col, container_symbol_id`

func (s *Store) InsertReference(ref *Reference) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO refs (file_id, identifier, start_line, start_col, end_line, end_col, container_symbol_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ref.FileID, ref.Identifier, ref.StartLine, ref.StartCol, ref.EndLine, ref.EndCol, ref.ContainerSymbolID,
	)
	if err != nil {
		return 0, fmt.Errorf("insert reference: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	ref.ID = id
	return id, nil
}

func scanReference(scanner interface{ Scan(...any) error }) (*Reference, error) {
	r := &Reference{}
	err := scanner.Scan(&r.ID, &r.FileID, &r.Identifier, &r.StartLine, &r.StartCol, &r.EndLine, &r.EndCol, &r.ContainerSymbolID)
	return r, err
}

func (s *Store) queryReferences(query string, args ...any) ([]*Reference, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var refs []*Reference
	for rows.Next() {
		r, err := scanReference(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reference: %w", err)
		}
		refs = append(refs, r)
	}
	return refs, rows.Err()
}

func (s *Store) ReferenceByID(id int64) (*Reference, error) {
	r, err := scanReference(s.db.QueryRow("SELECT "+refCols+" FROM refs WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reference by id: %w", err)
	}
	return r, nil
}

func (s *Store) ReferencesByFile(fileID int64) ([]*Reference, error) {
	return s.queryReferences("SELECT "+refCols+" FROM refs WHERE file_id = ? ORDER BY start_line, start_col", fileID)
}

// ReferencesByIdentifier returns references ordered by file then line, as
// find_references requires.
func (s *Store) ReferencesByIdentifier(identifier string) ([]*Reference, error) {
	return s.queryReferences(
		`SELECT r.id, r.file_id, r.identifier, r.start_line, r.start_col, r.end_line, r.end_col, r.container_symbol_id
		 FROM refs r JOIN files f ON f.id = r.file_id
		 WHERE r.identifier = ? ORDER BY f.path, r.start_line`,
		identifier,
	)
}

func (s *Store) ReferencesByContainer(symbolID int64) ([]*Reference, error) {
	return s.queryReferences("SELECT "+refCols+" FROM refs WHERE container_symbol_id = ?", symbolID)
}

// ReferencesInRange returns references inside [startLine,endLine] of a file
// — used by spider's forward traversal to enumerate a node's outgoing refs.
func (s *Store) ReferencesInRange(fileID int64, startLine, endLine int) ([]*Reference, error) {
	return s.queryReferences(
		"SELECT "+refCols+" FROM refs WHERE file_id = ? AND start_line >= ? AND start_line <= ?",
		fileID, startLine, endLine,
	)
}

// --- Open operations ---

func (s *Store) InsertOpen(o *Open) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO opens (file_id, module_path, line) VALUES (?, ?, ?)`,
		o.FileID, o.ModulePath, o.Line,
	)
	if err != nil {
		return 0, fmt.Errorf("insert open: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	o.ID = id
	return id, nil
}

func (s *Store) OpensByFile(fileID int64) ([]*Open, error) {
	rows, err := s.db.Query("SELECT id, file_id, module_path, line FROM opens WHERE file_id = ?", fileID)
	if err != nil {
		return nil, fmt.Errorf("opens by file: %w", err)
	}
	defer rows.Close()
	var opens []*Open
	for rows.Next() {
		o := &Open{}
		if err := rows.Scan(&o.ID, &o.FileID, &o.ModulePath, &o.Line); err != nil {
			return nil, fmt.Errorf("scan open: %w", err)
		}
		opens = append(opens, o)
	}
	return opens, rows.Err()
}

func (s *Store) AllOpens() ([]*Open, error) {
	rows, err := s.db.Query("SELECT id, file_id, module_path, line FROM opens")
	if err != nil {
		return nil, fmt.Errorf("all opens: %w", err)
	}
	defer rows.Close()
	var opens []*Open
	for rows.Next() {
		o := &Open{}
		if err := rows.Scan(&o.ID, &o.FileID, &o.ModulePath, &o.Line); err != nil {
			return nil, fmt.Errorf("scan open: %w", err)
		}
		opens = append(opens, o)
	}
	return opens, rows.Err()
}

// --- Subclass operations ---

func (s *Store) InsertSubclass(sc *Subclass) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO subclasses (file_id, child_qualified, parent_written, line) VALUES (?, ?, ?, ?)`,
		sc.FileID, sc.ChildQualified, sc.ParentWritten, sc.Line,
	)
	if err != nil {
		return 0, fmt.Errorf("insert subclass: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	sc.ID = id
	return id, nil
}

func (s *Store) SubclassesByParent(parentWritten string) ([]*Subclass, error) {
	rows, err := s.db.Query(
		"SELECT id, file_id, child_qualified, parent_written, line FROM subclasses WHERE parent_written = ?",
		parentWritten,
	)
	if err != nil {
		return nil, fmt.Errorf("subclasses by parent: %w", err)
	}
	defer rows.Close()
	var out []*Subclass
	for rows.Next() {
		sc := &Subclass{}
		if err := rows.Scan(&sc.ID, &sc.FileID, &sc.ChildQualified, &sc.ParentWritten, &sc.Line); err != nil {
			return nil, fmt.Errorf("scan subclass: %w", err)
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func (s *Store) AllSubclasses() ([]*Subclass, error) {
	rows, err := s.db.Query("SELECT id, file_id, child_qualified, parent_written, line FROM subclasses")
	if err != nil {
		return nil, fmt.Errorf("all subclasses: %w", err)
	}
	defer rows.Close()
	var out []*Subclass
	for rows.Next() {
		sc := &Subclass{}
		if err := rows.Scan(&sc.ID, &sc.FileID, &sc.ChildQualified, &sc.ParentWritten, &sc.Line); err != nil {
			return nil, fmt.Errorf("scan subclass: %w", err)
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

// --- Member operations ---

func (s *Store) InsertMember(m *Member) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO members (symbol_id, name, kind, start_line, start_col, end_line, end_col, visibility)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.SymbolID, m.Name, m.Kind, m.StartLine, m.StartCol, m.EndLine, m.EndCol, m.Visibility,
	)
	if err != nil {
		return 0, fmt.Errorf("insert member: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	m.ID = id
	return id, nil
}

func (s *Store) MembersBySymbol(symbolID int64) ([]Member, error) {
	rows, err := s.db.Query(
		`SELECT id, symbol_id, name, kind, start_line, start_col, end_line, end_col, visibility
		 FROM members WHERE symbol_id = ?`,
		symbolID,
	)
	if err != nil {
		return nil, fmt.Errorf("members by symbol: %w", err)
	}
	defer rows.Close()
	var out []Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.ID, &m.SymbolID, &m.Name, &m.Kind, &m.StartLine, &m.StartCol, &m.EndLine, &m.EndCol, &m.Visibility); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// --- Metadata operations ---

func (s *Store) SetMetadata(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO metadata (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set metadata %q: %w", key, err)
	}
	return nil
}

func (s *Store) GetMetadata(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get metadata %q: %w", key, err)
	}
	return value, true, nil
}

// --- FileBlame operations ---

func (s *Store) UpsertFileBlame(b *FileBlame) error {
	_, err := s.db.Exec(
		`INSERT INTO file_blame (file_id, last_commit, last_author, last_author_time) VALUES (?, ?, ?, ?)
		 ON CONFLICT(file_id) DO UPDATE SET last_commit = excluded.last_commit,
		   last_author = excluded.last_author, last_author_time = excluded.last_author_time`,
		b.FileID, b.LastCommit, b.LastAuthor, b.LastAuthorTime,
	)
	if err != nil {
		return fmt.Errorf("upsert file blame: %w", err)
	}
	return nil
}

func (s *Store) FileBlameByFile(fileID int64) (*FileBlame, error) {
	b := &FileBlame{}
	err := s.db.QueryRow(
		"SELECT file_id, last_commit, last_author, last_author_time FROM file_blame WHERE file_id = ?", fileID,
	).Scan(&b.FileID, &b.LastCommit, &b.LastAuthor, &b.LastAuthorTime)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file blame by file: %w", err)
	}
	return b, nil
}
