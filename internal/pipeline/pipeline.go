// Package pipeline builds and incrementally rebuilds the symbol graph: it
// walks a workspace, runs the per-language extraction scripts, and writes
// files/symbols/refs/opens/subclasses/members into the Store. It never
// resolves a reference to its target — that's internal/resolver's job, run
// fresh at query time (SPEC_FULL §2 item 2, §4.4).
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	canopyrt "github.com/rocket-tycoon/rocketindex/internal/runtime"
	"github.com/rocket-tycoon/rocketindex/internal/store"
)

var logger = log.New(os.Stderr, "[pipeline] ", log.LstdFlags)

// skipDirs are never descended into during a filesystem walk.
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	"__pycache__":  true,
	"target":       true,
	"dist":         true,
	"build":        true,
}

// Pipeline owns the Store and Runtime used to (re)build the symbol graph
// for a workspace.
type Pipeline struct {
	store        *store.Store
	scriptsDir   string
	scriptsFS    fs.FS
	languages    map[string]bool
	parallel     bool
	excludeDirs  map[string]bool
	maxRecursion int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLanguages restricts extraction to the given set of language names.
// With no languages configured, every language LanguageForFile recognizes
// is indexed.
func WithLanguages(langs ...string) Option {
	return func(p *Pipeline) {
		p.languages = make(map[string]bool, len(langs))
		for _, l := range langs {
			p.languages[l] = true
		}
	}
}

// WithParallel enables the worker-pool extraction path for multi-file
// batches (SPEC_FULL §4.4, §5: bounded worker pool, one BatchedStore per
// worker, committed serially).
func WithParallel(on bool) Option {
	return func(p *Pipeline) { p.parallel = on }
}

// WithScriptsFS loads extraction scripts from an embedded fs.FS instead of
// scriptsDir on disk.
func WithScriptsFS(fsys fs.FS) Option {
	return func(p *Pipeline) { p.scriptsFS = fsys }
}

// WithExcludeDirs adds directory names to skip during discover, on top of
// skipDirs — the `.rocketindex.toml` exclude_dirs list plus the build-
// artifact sniffer's findings (SPEC_FULL §6.2, §10.2).
func WithExcludeDirs(dirs []string) Option {
	return func(p *Pipeline) {
		if p.excludeDirs == nil {
			p.excludeDirs = make(map[string]bool)
		}
		for _, d := range dirs {
			p.excludeDirs[d] = true
		}
	}
}

// WithMaxRecursionDepth caps how many directory levels discover descends
// below root; 0 means unbounded (SPEC_FULL §6: `max_recursion_depth`).
func WithMaxRecursionDepth(depth int) Option {
	return func(p *Pipeline) { p.maxRecursion = depth }
}

// New opens (creating if needed) the SQLite database at dbPath, migrates
// its schema, and returns a Pipeline ready to index files into it.
func New(dbPath, scriptsDir string, opts ...Option) (*Pipeline, error) {
	s, err := store.NewStore(dbPath)
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, err
	}
	p := &Pipeline{store: s, scriptsDir: scriptsDir}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Close releases the underlying database connection.
func (p *Pipeline) Close() error { return p.store.Close() }

// Store returns the Pipeline's Store, for the query layer and CLI.
func (p *Pipeline) Store() *store.Store { return p.store }

// Result summarizes one Build call: files, symbols, refs and opens written
// (SPEC_FULL §4.4). It does not record the call's duration.
type Result struct {
	Files    int
	Symbols  int
	Refs     int
	Opens    int
	Skipped  []string // paths not indexed: unrecognized or unscripted language, unreadable, content unchanged, or extraction failed
}

// Build walks root, indexing every recognized source file not under a
// skipped directory. Files whose content hash hasn't changed since the
// last index are left untouched.
func (p *Pipeline) Build(ctx context.Context, root string) (Result, error) {
	paths, err := p.discover(root)
	if err != nil {
		return Result{}, err
	}
	return p.IndexFiles(ctx, paths)
}

// discover walks root collecting recognized source files, skipping
// directories in skipDirs.
func (p *Pipeline) discover(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if skipDirs[d.Name()] || p.excludeDirs[d.Name()] {
				return filepath.SkipDir
			}
			if p.maxRecursion > 0 && depthBelow(root, path) > p.maxRecursion {
				return filepath.SkipDir
			}
			return nil
		}
		lang, ok := canopyrt.LanguageForFile(path)
		if !ok {
			return nil
		}
		if len(p.languages) > 0 && !p.languages[lang] {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline: walk %s: %w", root, err)
	}
	sort.Strings(paths)
	return paths, nil
}

// IndexFiles (re)indexes an explicit list of file paths, dispatching to the
// parallel or serial extraction path depending on WithParallel and the
// batch size.
func (p *Pipeline) IndexFiles(ctx context.Context, paths []string) (Result, error) {
	if p.parallel && len(paths) > 1 {
		return p.indexFilesParallel(ctx, paths)
	}
	return p.indexFilesSerial(ctx, paths)
}

func (p *Pipeline) indexFilesSerial(ctx context.Context, paths []string) (Result, error) {
	var res Result
	rt := canopyrt.NewRuntime(p.store, p.scriptsDir, p.runtimeOpts()...)
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		n, skipped, err := p.indexFile(ctx, rt, path)
		if err != nil {
			return res, fmt.Errorf("pipeline: index %s: %w", path, err)
		}
		if skipped {
			res.Skipped = append(res.Skipped, path)
			continue
		}
		res.Files++
		res.Symbols += n.Symbols
		res.Refs += n.Refs
		res.Opens += n.Opens
	}
	return res, nil
}

type counts struct {
	Symbols, Refs, Opens int
}

// indexFile indexes a single file against the live Store: hash-check,
// clear_file, insert file row, run the language's extraction script.
// Returns skipped=true when the file's content hasn't changed since the
// last index.
func (p *Pipeline) indexFile(ctx context.Context, rt *canopyrt.Runtime, path string) (counts, bool, error) {
	lang, ok := canopyrt.LanguageForFile(path)
	if !ok || !p.hasExtractionScript(lang) {
		return counts{}, true, nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return counts{}, true, nil
	}
	hash := store.ComputeContentHash(content)

	existing, err := p.store.FileByPath(path)
	if err != nil {
		return counts{}, false, err
	}
	if existing != nil && existing.ContentHash == hash {
		return counts{}, true, nil
	}
	if existing != nil {
		if err := p.store.DeleteFileData(existing.ID); err != nil {
			return counts{}, false, err
		}
	}

	f := &store.File{
		Path:        path,
		Language:    lang,
		ContentHash: hash,
		LineCount:   countLines(content),
	}
	fileID, err := p.store.InsertFile(f)
	if err != nil {
		return counts{}, false, err
	}

	before, err := p.store.SymbolsByFile(fileID)
	if err != nil {
		return counts{}, false, err
	}

	scriptPath := canopyrt.ExtractionScriptPath(lang)
	if err := rt.RunScript(ctx, scriptPath, map[string]any{
		"file_id":   fileID,
		"file_path": path,
	}); err != nil {
		// Per-file extraction errors don't fail the build: the file row
		// stays, recorded empty, and indexing moves on (SPEC_FULL §7).
		logger.Printf("extract %s: %v", path, err)
		return counts{}, true, nil
	}

	after, err := p.store.SymbolsByFile(fileID)
	if err != nil {
		return counts{}, false, err
	}
	refs, err := p.store.ReferencesByFile(fileID)
	if err != nil {
		return counts{}, false, err
	}
	opens, err := p.store.OpensByFile(fileID)
	if err != nil {
		return counts{}, false, err
	}
	return counts{Symbols: len(after) - len(before), Refs: len(refs), Opens: len(opens)}, false, nil
}

// depthBelow counts the path components between root and path, used to enforce
// WithMaxRecursionDepth.
func depthBelow(root, path string) int {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return 0
	}
	depth := 1
	for _, r := range rel {
		if r == filepath.Separator {
			depth++
		}
	}
	return depth
}

func countLines(content []byte) int {
	n := 1
	for _, b := range content {
		if b == '\n' {
			n++
		}
	}
	return n
}

func (p *Pipeline) runtimeOpts() []canopyrt.RuntimeOption {
	var opts []canopyrt.RuntimeOption
	if p.scriptsFS != nil {
		opts = append(opts, canopyrt.WithRuntimeFS(p.scriptsFS))
	}
	return opts
}

// ScriptsHash fingerprints the contents of every file in the scripts tree
// (scriptsDir on disk, or the WithScriptsFS filesystem), so callers can
// detect a stale database after a script change and force a full reindex
// (the scripts_hash metadata of SPEC_FULL §3.1).
func (p *Pipeline) ScriptsHash() (string, error) {
	var all []byte
	err := fs.WalkDir(p.scriptFS(), ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, rerr := fs.ReadFile(p.scriptFS(), path)
		if rerr != nil {
			return rerr
		}
		all = append(all, data...)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("pipeline: scripts hash: %w", err)
	}
	sum := sha256.Sum256(all)
	return hex.EncodeToString(sum[:]), nil
}

func (p *Pipeline) scriptFS() fs.FS {
	if p.scriptsFS != nil {
		return p.scriptsFS
	}
	return os.DirFS(p.scriptsDir)
}

// hasExtractionScript reports whether an extraction script is shipped for a
// language LanguageForFile recognizes. Tree-sitter grammars can outnumber
// the extraction scripts actually written for them; files in a recognized
// but unscripted language are skipped rather than failing the build.
func (p *Pipeline) hasExtractionScript(lang string) bool {
	_, err := fs.Stat(p.scriptFS(), canopyrt.ExtractionScriptPath(lang))
	return err == nil
}

// ScriptsChanged compares the current ScriptsHash against the last one
// recorded in the Store's metadata table.
func (p *Pipeline) ScriptsChanged() (bool, error) {
	current, err := p.ScriptsHash()
	if err != nil {
		return false, err
	}
	stored, found, err := p.store.GetMetadata("scripts_hash")
	if err != nil {
		return false, err
	}
	return !found || stored != current, nil
}

// RecordScriptsHash persists the current extraction scripts' fingerprint.
func (p *Pipeline) RecordScriptsHash() error {
	hash, err := p.ScriptsHash()
	if err != nil {
		return err
	}
	return p.store.SetMetadata("scripts_hash", hash)
}

// AffectedFiles computes which additional files should be re-extracted
// after a file's symbols changed: files whose references textually match
// an added, removed, or changed symbol's name (a superset the Resolver
// narrows at query time, per Store.FilesReferencingSymbols), plus files
// that open the changed file's own module path. The Watcher calls this
// after a single-file re-extraction to decide what else needs
// re-extracting; this repurposes the teacher's incremental-resolution-
// invalidation step as a re-extraction candidate set, since resolution
// itself is no longer persisted (SPEC_FULL §4.4, §4.5).
func (p *Pipeline) AffectedFiles(changedSymbolIDs []int64, modulePaths []string) ([]string, error) {
	var affected []int64
	if len(changedSymbolIDs) > 0 {
		ids, err := p.store.FilesReferencingSymbols(changedSymbolIDs)
		if err != nil {
			return nil, err
		}
		affected = append(affected, ids...)
	}
	for _, mp := range modulePaths {
		ids, err := p.store.FilesOpeningModule(mp)
		if err != nil {
			return nil, err
		}
		affected = append(affected, ids...)
	}

	seen := make(map[int64]bool)
	var paths []string
	for _, id := range affected {
		if seen[id] {
			continue
		}
		seen[id] = true
		f, err := p.store.FileByID(id)
		if err != nil {
			return nil, err
		}
		if f != nil {
			paths = append(paths, f.Path)
		}
	}
	return paths, nil
}

// workItem is one file ready for parallel extraction: its file row already
// exists in the real Store (so FK references from the batch are real IDs),
// but its symbols/refs/opens have not been extracted yet.
type workItem struct {
	path   string
	lang   string
	fileID int64
}

// indexFilesParallel mirrors the teacher's three-phase shape — serial
// prepare, parallel extract into per-worker BatchedStores, serial commit —
// but drives the worker pool with errgroup instead of a raw channel/
// WaitGroup pool. File rows are inserted serially first (CommitBatch
// requires each batch's file_id to already be real, not a fake ID), then
// each worker extracts into its own BatchedStore, then batches are
// committed serially in file order.
func (p *Pipeline) indexFilesParallel(ctx context.Context, paths []string) (Result, error) {
	var res Result
	var items []workItem

	// Phase A: serial prepare.
	for _, path := range paths {
		lang, ok := canopyrt.LanguageForFile(path)
		if !ok || !p.hasExtractionScript(lang) {
			res.Skipped = append(res.Skipped, path)
			continue
		}
		content, err := os.ReadFile(path)
		if err != nil {
			res.Skipped = append(res.Skipped, path)
			continue
		}
		hash := store.ComputeContentHash(content)
		existing, err := p.store.FileByPath(path)
		if err != nil {
			return res, err
		}
		if existing != nil && existing.ContentHash == hash {
			res.Skipped = append(res.Skipped, path)
			continue
		}
		if existing != nil {
			if err := p.store.DeleteFileData(existing.ID); err != nil {
				return res, err
			}
		}
		f := &store.File{Path: path, Language: lang, ContentHash: hash, LineCount: countLines(content)}
		fileID, err := p.store.InsertFile(f)
		if err != nil {
			return res, err
		}
		items = append(items, workItem{path: path, lang: lang, fileID: fileID})
	}

	// Phase B: parallel extract, one BatchedStore per worker. A per-file
	// extraction error is logged and leaves batches[i] nil rather than
	// failing the group: the file row inserted in Phase A stays, recorded
	// empty (SPEC_FULL §7). Only context cancellation or a genuine worker
	// panic aborts the whole build.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	batches := make([]*store.BatchedStore, len(items))
	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			batch := store.NewBatchedStore(p.store)
			rt := canopyrt.NewRuntime(batch, p.scriptsDir, p.runtimeOpts()...)
			scriptPath := canopyrt.ExtractionScriptPath(item.lang)
			if err := rt.RunScript(gctx, scriptPath, map[string]any{
				"file_id":   item.fileID,
				"file_path": item.path,
			}); err != nil {
				logger.Printf("extract %s: %v", item.path, err)
				return nil
			}
			batches[i] = batch
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}

	// Phase C: serial commit, in file order for deterministic IDs.
	for i, batch := range batches {
		if batch == nil {
			res.Skipped = append(res.Skipped, items[i].path)
			continue
		}
		if err := p.store.CommitBatch(batch); err != nil {
			return res, fmt.Errorf("commit batch: %w", err)
		}
		res.Files++
		res.Symbols += len(batch.Symbols)
		res.Refs += len(batch.References)
		res.Opens += len(batch.Opens)
	}
	return res, nil
}
