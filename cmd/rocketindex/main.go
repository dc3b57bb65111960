// Command rocketindex parses source files with tree-sitter-backed
// extraction scripts and answers definition/reference/caller/spider
// queries from a SQLite index (SPEC_FULL §6). Grounded on the teacher
// canopy CLI's cobra bootstrap: persistent --db/--format flags, a
// findRepoRoot/resolveDBPath pair that locates the workspace root by
// walking up for .git, and a JSON-envelope/errorHandled error path.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	flagDB     string
	flagFormat string
)

// errorHandled is set once a command has already written its own error
// output, so main doesn't print it a second time.
var errorHandled bool

// resultExitCode lets a command signal the spec's "empty, but valid"
// exit code (1) without returning an error Cobra would treat as a failure.
var resultExitCode int

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(2)
	}
	os.Exit(resultExitCode)
}

var rootCmd = &cobra.Command{
	Use:           "rocketindex",
	Short:         "Deterministic, polyglot code navigation index",
	Long:          "rocketindex parses source with tree-sitter-backed extraction scripts and answers definition/reference/caller/spider queries from a SQLite index.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return validateFormat(flagFormat)
	},
}

func validateFormat(f string) error {
	switch f {
	case "json", "pretty":
		return nil
	default:
		return fmt.Errorf("invalid --format %q: must be json or pretty", f)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "database path (default: .rocketindex/index.db relative to workspace root)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "json", "output format: json|pretty")

	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(defCmd)
	rootCmd.AddCommand(refsCmd)
	rootCmd.AddCommand(callersCmd)
	rootCmd.AddCommand(symbolsCmd)
	rootCmd.AddCommand(spiderCmd)
	rootCmd.AddCommand(subclassesCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(serveCmd)
}

// resolveTargetDir returns the absolute path of the directory an `index`
// invocation should walk; "." when no positional arg is given.
func resolveTargetDir(args []string) (string, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving path %q: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("directory not found: %s", abs)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", abs)
	}
	return abs, nil
}

// findRepoRoot walks up from startDir looking for a .git directory,
// falling back to startDir itself if none is found.
func findRepoRoot(startDir string) string {
	dir := startDir
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return startDir
		}
		dir = parent
	}
}

// resolveDBPath returns the database path from --db, or the default
// persisted layout (SPEC_FULL §6): <repoRoot>/.rocketindex/index.db.
func resolveDBPath(repoRoot string) string {
	if flagDB != "" {
		if filepath.IsAbs(flagDB) {
			return flagDB
		}
		return filepath.Join(repoRoot, flagDB)
	}
	return filepath.Join(repoRoot, ".rocketindex", "index.db")
}

// resolveFilePath converts a file argument to an absolute path, relative
// to the current working directory when not already absolute.
func resolveFilePath(file string) (string, error) {
	if filepath.IsAbs(file) {
		return file, nil
	}
	abs, err := filepath.Abs(file)
	if err != nil {
		return "", fmt.Errorf("resolving file path %q: %w", file, err)
	}
	return abs, nil
}
