package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/rocket-tycoon/rocketindex/internal/query"
	"github.com/rocket-tycoon/rocketindex/internal/render"
	"github.com/rocket-tycoon/rocketindex/internal/store"
)

// openEngine opens the Store at the resolved --db path and wraps it in a
// query Engine. Returns a clear error when the workspace hasn't been
// indexed yet, mirroring the teacher's openStore.
func openEngine() (*store.Store, *query.Engine, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, nil, fmt.Errorf("getting cwd: %w", err)
	}
	repoRoot := findRepoRoot(cwd)
	dbPath := resolveDBPath(repoRoot)

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, nil, fmt.Errorf("database not found: %s (run 'rocketindex index' first)", dbPath)
	}

	s, err := store.NewStore(dbPath)
	if err != nil {
		return nil, nil, err
	}
	return s, query.New(s), nil
}

// pathCache resolves a file ID to its path, memoized per command
// invocation since the same file shows up across many results.
func pathCache(s *store.Store) func(fileID int64) string {
	cache := make(map[int64]string)
	return func(fileID int64) string {
		if p, ok := cache[fileID]; ok {
			return p
		}
		f, err := s.FileByID(fileID)
		path := ""
		if err == nil && f != nil {
			path = f.Path
		}
		cache[fileID] = path
		return path
	}
}

func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError writes a JSON error envelope to stderr (SPEC_FULL §6: "errors
// as JSON to stderr") and marks errorHandled so main doesn't print again.
func outputError(command string, err error) error {
	errorHandled = true
	enc := json.NewEncoder(os.Stderr)
	enc.SetIndent("", "  ")
	_ = enc.Encode(map[string]string{"command": command, "error": err.Error()})
	return err
}

var flagDefFrom string

var defCmd = &cobra.Command{
	Use:   "def NAME",
	Short: "Find a symbol's definition",
	Args:  cobra.ExactArgs(1),
	RunE:  runDef,
}

func init() {
	defCmd.Flags().StringVar(&flagDefFrom, "from", "", "file path to resolve NAME relative to")
}

func runDef(cmd *cobra.Command, args []string) error {
	s, eng, err := openEngine()
	if err != nil {
		return outputError("def", err)
	}
	defer s.Close()

	from := flagDefFrom
	if from != "" {
		if from, err = resolveFilePath(from); err != nil {
			return outputError("def", err)
		}
	}

	res, err := eng.FindDefinition(args[0], from)
	if err != nil {
		return outputError("def", err)
	}

	if flagFormat == "pretty" {
		render.Definition(os.Stdout, args[0], res)
	} else if err := outputJSON(defResultJSON(s, res)); err != nil {
		return outputError("def", err)
	}

	if res.Outcome == query.OutcomeNotFound {
		resultExitCode = 1
	}
	return nil
}

func defResultJSON(s *store.Store, res query.DefinitionResult) any {
	pathOf := pathCache(s)
	switch res.Outcome {
	case query.OutcomeFound:
		return symbolDTO(res.Symbol, pathOf(res.Symbol.FileID))
	case query.OutcomeAmbiguous:
		candidates := make([]symbolJSON, len(res.Candidates))
		for i, c := range res.Candidates {
			candidates[i] = symbolDTO(c, pathOf(c.FileID))
		}
		return map[string]any{"ambiguous": true, "candidates": candidates}
	default:
		return nil
	}
}

var refsCmd = &cobra.Command{
	Use:   "refs NAME",
	Short: "List every reference to a name",
	Args:  cobra.ExactArgs(1),
	RunE:  runRefs,
}

func runRefs(cmd *cobra.Command, args []string) error {
	s, eng, err := openEngine()
	if err != nil {
		return outputError("refs", err)
	}
	defer s.Close()

	refs, err := eng.FindReferences(args[0])
	if err != nil {
		return outputError("refs", err)
	}

	pathOf := pathCache(s)
	if flagFormat == "pretty" {
		render.References(os.Stdout, refs, pathOf)
	} else {
		out := make([]refJSON, len(refs))
		for i, r := range refs {
			out[i] = refJSON{File: pathOf(r.FileID), Line: r.StartLine, Column: r.StartCol}
		}
		if err := outputJSON(out); err != nil {
			return outputError("refs", err)
		}
	}

	if len(refs) == 0 {
		resultExitCode = 1
	}
	return nil
}

var callersCmd = &cobra.Command{
	Use:   "callers NAME",
	Short: "Find symbols containing a reference that resolves to NAME",
	Args:  cobra.ExactArgs(1),
	RunE:  runCallers,
}

func runCallers(cmd *cobra.Command, args []string) error {
	s, eng, err := openEngine()
	if err != nil {
		return outputError("callers", err)
	}
	defer s.Close()

	callers, err := eng.FindCallers(args[0])
	if err != nil {
		return outputError("callers", err)
	}

	pathOf := pathCache(s)
	if flagFormat == "pretty" {
		render.Symbols(os.Stdout, "callers", callers, pathOf)
	} else {
		out := callersJSON{Callers: make([]symbolJSON, len(callers))}
		for i, c := range callers {
			out.Callers[i] = symbolDTO(c, pathOf(c.FileID))
		}
		if err := outputJSON(out); err != nil {
			return outputError("callers", err)
		}
	}

	if len(callers) == 0 {
		resultExitCode = 1
	}
	return nil
}

var (
	flagSymbolsConcise bool
	flagSymbolsLimit   int
)

var symbolsCmd = &cobra.Command{
	Use:   "symbols PATTERN",
	Short: "Search symbols by qualified-name pattern or token query",
	Args:  cobra.ExactArgs(1),
	RunE:  runSymbols,
}

func init() {
	symbolsCmd.Flags().BoolVar(&flagSymbolsConcise, "concise", false, "print only qualified names as a JSON string array")
	symbolsCmd.Flags().IntVar(&flagSymbolsLimit, "limit", 100, "maximum results")
}

func runSymbols(cmd *cobra.Command, args []string) error {
	s, eng, err := openEngine()
	if err != nil {
		return outputError("symbols", err)
	}
	defer s.Close()

	syms, err := eng.SearchSymbols(args[0], flagSymbolsLimit)
	if err != nil {
		return outputError("symbols", err)
	}

	pathOf := pathCache(s)
	if flagFormat == "pretty" {
		render.Symbols(os.Stdout, "symbols", syms, pathOf)
	} else if flagSymbolsConcise {
		names := make([]string, len(syms))
		for i, sym := range syms {
			names[i] = sym.QualifiedName
		}
		if err := outputJSON(names); err != nil {
			return outputError("symbols", err)
		}
	} else {
		out := make([]symbolJSON, len(syms))
		for i, sym := range syms {
			out[i] = symbolDTO(sym, pathOf(sym.FileID))
		}
		if err := outputJSON(out); err != nil {
			return outputError("symbols", err)
		}
	}

	if len(syms) == 0 {
		resultExitCode = 1
	}
	return nil
}

var (
	flagSpiderDepth   int
	flagSpiderReverse bool
)

var spiderCmd = &cobra.Command{
	Use:   "spider NAME",
	Short: "Breadth-first walk over the resolved call graph from NAME",
	Args:  cobra.ExactArgs(1),
	RunE:  runSpider,
}

func init() {
	spiderCmd.Flags().IntVar(&flagSpiderDepth, "depth", -1, "maximum depth to walk (-1 = unbounded)")
	spiderCmd.Flags().BoolVar(&flagSpiderReverse, "reverse", false, "walk callers instead of callees")
}

func runSpider(cmd *cobra.Command, args []string) error {
	s, eng, err := openEngine()
	if err != nil {
		return outputError("spider", err)
	}
	defer s.Close()

	direction := query.SpiderForward
	if flagSpiderReverse {
		direction = query.SpiderReverse
	}

	res, err := eng.Spider(args[0], direction, flagSpiderDepth)
	if err != nil {
		return outputError("spider", err)
	}

	if flagFormat == "pretty" {
		render.Spider(os.Stdout, res)
	} else if err := outputJSON(res); err != nil {
		return outputError("spider", err)
	}
	return nil
}

var flagSubclassesTransitive bool

var subclassesCmd = &cobra.Command{
	Use:   "subclasses NAME",
	Short: "List symbols that declare NAME as a parent",
	Args:  cobra.ExactArgs(1),
	RunE:  runSubclasses,
}

func init() {
	subclassesCmd.Flags().BoolVar(&flagSubclassesTransitive, "transitive", false, "include the whole subtree, not just direct subclasses")
}

func runSubclasses(cmd *cobra.Command, args []string) error {
	s, eng, err := openEngine()
	if err != nil {
		return outputError("subclasses", err)
	}
	defer s.Close()

	subs, err := eng.FindSubclasses(args[0], flagSubclassesTransitive)
	if err != nil {
		return outputError("subclasses", err)
	}

	pathOf := pathCache(s)
	if flagFormat == "pretty" {
		render.Symbols(os.Stdout, "subclasses", subs, pathOf)
	} else {
		out := make([]symbolJSON, len(subs))
		for i, sym := range subs {
			out[i] = symbolDTO(sym, pathOf(sym.FileID))
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Qualified < out[j].Qualified })
		if err := outputJSON(out); err != nil {
			return outputError("subclasses", err)
		}
	}

	if len(subs) == 0 {
		resultExitCode = 1
	}
	return nil
}
