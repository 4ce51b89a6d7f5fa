package packages

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ImportResolver turns an import/require path into a concrete source
// file and (for remote packages) the fetched module providing it.
// Grounded on sentra's own ImportResolver; local/remote resolution
// kept, the fabricated per-module "stdlib" export tables dropped —
// this language's standard library is global natives (builtins.go),
// not namespaced submodules, so there is nothing for a stdlib resolver
// branch to resolve.
type ImportResolver struct {
	cache       *ModuleCache
	currentMod  *Module
	searchPaths []string
	imports     map[string]*ResolvedImport
}

type ResolvedImport struct {
	Path       string
	Alias      string
	SourceFile string
	Module     *CachedModule
}

func NewImportResolver(cache *ModuleCache) *ImportResolver {
	return &ImportResolver{
		cache:       cache,
		searchPaths: getDefaultSearchPaths(),
		imports:     make(map[string]*ResolvedImport),
	}
}

func getDefaultSearchPaths() []string {
	var paths []string
	paths = append(paths, ".", "lattice_modules")
	if homeDir, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(homeDir, ".lattice", "pkg", "mod"))
	}
	return paths
}

func (r *ImportResolver) SetCurrentModule(mod *Module) {
	r.currentMod = mod
}

// ResolveImport locates the source file behind an import/require path
// (local, or a remote package already listed in lattice.toml), caching
// the result for repeat lookups within one compile/run.
func (r *ImportResolver) ResolveImport(importPath string, alias string) (*ResolvedImport, error) {
	if resolved, ok := r.imports[importPath]; ok {
		if alias != "" {
			resolved.Alias = alias
		}
		return resolved, nil
	}

	var resolved *ResolvedImport
	var err error
	switch {
	case strings.HasPrefix(importPath, "./") || strings.HasPrefix(importPath, "../"):
		resolved, err = r.resolveLocalImport(importPath, alias)
	case strings.Contains(importPath, "/"):
		resolved, err = r.resolveRemoteImport(importPath, alias)
	default:
		err = fmt.Errorf("cannot resolve import: %s (not a local path or a package listed in %s)", importPath, ManifestFile)
	}
	if err != nil {
		return nil, err
	}
	r.imports[importPath] = resolved
	return resolved, nil
}

func (r *ImportResolver) resolveLocalImport(importPath string, alias string) (*ResolvedImport, error) {
	candidates := []string{
		importPath + ".lc",
		filepath.Join(importPath, "mod.lc"),
		filepath.Join(importPath, "main.lc"),
	}
	for _, path := range candidates {
		absPath, err := filepath.Abs(path)
		if err != nil {
			continue
		}
		if _, err := os.Stat(absPath); err == nil {
			return &ResolvedImport{Path: importPath, Alias: alias, SourceFile: absPath}, nil
		}
	}
	return nil, fmt.Errorf("cannot resolve local import: %s", importPath)
}

func (r *ImportResolver) resolveRemoteImport(importPath string, alias string) (*ResolvedImport, error) {
	version := "latest"
	if r.currentMod != nil {
		for _, req := range r.currentMod.Require {
			if req.Path == importPath {
				version = req.Version
				break
			}
		}
	}

	cached, err := r.cache.FetchModule(importPath, version)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch module %s@%s: %w", importPath, version, err)
	}

	mainFile := r.findMainFile(cached.SourceDir)
	if mainFile == "" {
		return nil, fmt.Errorf("no main file found in module %s", importPath)
	}
	return &ResolvedImport{Path: importPath, Alias: alias, SourceFile: mainFile, Module: cached}, nil
}

func (r *ImportResolver) findMainFile(dir string) string {
	for _, candidate := range []string{"main.lc", "mod.lc", "src/main.lc"} {
		path := filepath.Join(dir, candidate)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".lc") {
			return filepath.Join(dir, entry.Name())
		}
	}
	return ""
}

// LoadSourceFile returns the raw source behind a previously resolved
// import path, for the compiler/VM's own lex-parse-compile pipeline to
// consume (resolution here only locates the file; it never parses it).
func (r *ImportResolver) LoadSourceFile(importPath string) (string, error) {
	resolved, ok := r.imports[importPath]
	if !ok {
		return "", fmt.Errorf("import not resolved: %s", importPath)
	}
	content, err := os.ReadFile(resolved.SourceFile)
	if err != nil {
		return "", fmt.Errorf("failed to read source file: %w", err)
	}
	return string(content), nil
}
