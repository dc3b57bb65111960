package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// DetectBuildArtifactExcludes sniffs package.json, tsconfig.json, and
// Cargo.toml at root for a declared output directory, returning extra
// directory names to exclude beyond defaultExcludeDirs. A workspace that
// renames its dist/target directory (package.json's `build.outDir`,
// tsconfig's `compilerOptions.outDir`, Cargo's `profile.release.target-dir`)
// would otherwise have that directory walked and indexed as source
// (SPEC_FULL §10.2).
func DetectBuildArtifactExcludes(root string) []string {
	var out []string
	out = append(out, detectNodeOutputs(root)...)
	out = append(out, detectRustOutputs(root)...)
	return out
}

func detectNodeOutputs(root string) []string {
	var out []string

	if data, err := os.ReadFile(filepath.Join(root, "package.json")); err == nil {
		var pkg map[string]any
		if json.Unmarshal(data, &pkg) == nil {
			if build, ok := pkg["build"].(map[string]any); ok {
				if outDir, ok := build["outDir"].(string); ok && outDir != "" {
					out = append(out, outDir)
				}
			}
		}
	}

	if data, err := os.ReadFile(filepath.Join(root, "tsconfig.json")); err == nil {
		var tsconfig map[string]any
		if json.Unmarshal(data, &tsconfig) == nil {
			if opts, ok := tsconfig["compilerOptions"].(map[string]any); ok {
				if outDir, ok := opts["outDir"].(string); ok && outDir != "" {
					out = append(out, outDir)
				}
			}
		}
	}

	return out
}

func detectRustOutputs(root string) []string {
	data, err := os.ReadFile(filepath.Join(root, "Cargo.toml"))
	if err != nil {
		return nil
	}
	var cargo map[string]any
	if toml.Unmarshal(data, &cargo) != nil {
		return nil
	}
	profile, ok := cargo["profile"].(map[string]any)
	if !ok {
		return nil
	}
	release, ok := profile["release"].(map[string]any)
	if !ok {
		return nil
	}
	if targetDir, ok := release["target-dir"].(string); ok && targetDir != "" {
		return []string{targetDir}
	}
	return nil
}
