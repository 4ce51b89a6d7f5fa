package packages

import (
	"fmt"
	"os"
	"path/filepath"
)

// PackageManager drives lattice.toml/lattice.lock operations for a
// single project directory, grounded on sentra's own PackageManager
// (same cache+resolver shape, TOML manifest instead of a hand-rolled
// go.mod-style format).
type PackageManager struct {
	cache    *ModuleCache
	resolver *ImportResolver
	workDir  string
}

func NewPackageManager(workDir string) *PackageManager {
	cache := NewModuleCache("")
	resolver := NewImportResolver(cache)
	if workDir == "" {
		workDir, _ = os.Getwd()
	}
	return &PackageManager{cache: cache, resolver: resolver, workDir: workDir}
}

func (pm *PackageManager) manifestPath() string { return filepath.Join(pm.workDir, ManifestFile) }
func (pm *PackageManager) lockPath() string     { return filepath.Join(pm.workDir, LockFile) }

// InitModule writes a fresh lattice.toml for a new project.
func (pm *PackageManager) InitModule(modulePath string) error {
	if modulePath == "" {
		return fmt.Errorf("module path is required")
	}
	manifest := pm.manifestPath()
	if _, err := os.Stat(manifest); err == nil {
		return fmt.Errorf("%s already exists", ManifestFile)
	}
	mod := &Module{Module: modulePath, Lattice: "1.0"}
	if err := WriteManifest(manifest, mod); err != nil {
		return fmt.Errorf("failed to write %s: %w", ManifestFile, err)
	}
	fmt.Printf("Module initialized: %s\n", modulePath)
	return nil
}

// AddPackage records a new dependency in lattice.toml, fetches it, and
// pins the fetched version/checksum into lattice.lock.
func (pm *PackageManager) AddPackage(packagePath string, version string) error {
	if version == "" {
		version = "latest"
	}
	mod, err := ParseManifest(pm.manifestPath())
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", ManifestFile, err)
	}

	found := false
	for i, req := range mod.Require {
		if req.Path == packagePath {
			mod.Require[i].Version = version
			found = true
			break
		}
	}
	if !found {
		mod.Require = append(mod.Require, Requirement{Path: packagePath, Version: version})
	}

	cached, err := pm.cache.FetchModule(packagePath, version)
	if err != nil {
		return fmt.Errorf("failed to fetch package: %w", err)
	}

	if err := WriteManifest(pm.manifestPath(), mod); err != nil {
		return fmt.Errorf("failed to update %s: %w", ManifestFile, err)
	}
	if err := pm.lockOne(packagePath, cached); err != nil {
		return err
	}

	fmt.Printf("Added %s %s\n", packagePath, version)
	fmt.Printf("Downloaded to: %s\n", cached.SourceDir)

	deps, err := pm.cache.ResolveDependencies(cached.Module)
	if err != nil {
		return fmt.Errorf("failed to resolve dependencies: %w", err)
	}
	if len(deps) > 0 {
		fmt.Printf("Downloaded %d transitive dependencies\n", len(deps))
	}
	return nil
}

// RemovePackage drops a dependency from lattice.toml and lattice.lock.
func (pm *PackageManager) RemovePackage(packagePath string) error {
	mod, err := ParseManifest(pm.manifestPath())
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", ManifestFile, err)
	}
	var kept []Requirement
	removed := false
	for _, req := range mod.Require {
		if req.Path == packagePath {
			removed = true
			continue
		}
		kept = append(kept, req)
	}
	if !removed {
		return fmt.Errorf("%s is not a dependency", packagePath)
	}
	mod.Require = kept
	if err := WriteManifest(pm.manifestPath(), mod); err != nil {
		return fmt.Errorf("failed to update %s: %w", ManifestFile, err)
	}

	lock, err := ParseLockfile(pm.lockPath())
	if err == nil {
		var keptPkgs []LockedPackage
		for _, p := range lock.Package {
			if p.Name != packagePath {
				keptPkgs = append(keptPkgs, p)
			}
		}
		lock.Package = keptPkgs
		_ = WriteLockfile(pm.lockPath(), lock)
	}

	fmt.Printf("Removed %s\n", packagePath)
	return nil
}

// InstallDependencies fetches every dependency named in lattice.toml
// and (re)writes lattice.lock with the exact versions resolved.
func (pm *PackageManager) InstallDependencies() error {
	mod, err := ParseManifest(pm.manifestPath())
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", ManifestFile, err)
	}

	lock, err := ParseLockfile(pm.lockPath())
	if err != nil {
		return err
	}

	for _, req := range mod.Require {
		cached, err := pm.cache.FetchModule(req.Path, req.Version)
		if err != nil {
			return fmt.Errorf("failed to fetch %s: %w", req.Path, err)
		}
		lock.Put(LockedPackage{Name: req.Path, Version: req.Version, Source: req.Path, Checksum: cached.Checksum})
	}

	deps, err := pm.cache.ResolveDependencies(mod)
	if err != nil {
		return fmt.Errorf("failed to resolve dependencies: %w", err)
	}
	for _, dep := range deps {
		lock.Put(LockedPackage{Name: dep.Path, Version: dep.Version, Source: dep.Path, Checksum: dep.Checksum})
	}

	if err := WriteLockfile(pm.lockPath(), lock); err != nil {
		return fmt.Errorf("failed to write %s: %w", LockFile, err)
	}

	fmt.Printf("Installed %d direct and %d transitive dependencies\n", len(mod.Require), len(deps))
	return nil
}

func (pm *PackageManager) lockOne(name string, cached *CachedModule) error {
	lock, err := ParseLockfile(pm.lockPath())
	if err != nil {
		return err
	}
	lock.Put(LockedPackage{Name: name, Version: cached.Version, Source: name, Checksum: cached.Checksum})
	if err := WriteLockfile(pm.lockPath(), lock); err != nil {
		return fmt.Errorf("failed to update %s: %w", LockFile, err)
	}
	return nil
}

// ListPackages prints the project's manifest and lock state.
func (pm *PackageManager) ListPackages() error {
	mod, err := ParseManifest(pm.manifestPath())
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", ManifestFile, err)
	}
	lock, _ := ParseLockfile(pm.lockPath())

	fmt.Printf("Module: %s\n", mod.Module)
	fmt.Printf("Lattice: %s\n", mod.Lattice)
	fmt.Println("\nDependencies:")
	for _, req := range mod.Require {
		status := "not installed"
		if lock != nil {
			if _, ok := lock.Get(req.Path); ok {
				status = "locked"
			}
		}
		fmt.Printf("  %s %s [%s]\n", req.Path, req.Version, status)
	}
	return nil
}
