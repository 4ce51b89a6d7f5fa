// Package packages implements Lattice's project manifest, lockfile,
// and remote-import resolution (§10.5). Grounded on sentra's own
// internal/packages — a hand-rolled go.mod-style text format plus a
// GitHub-archive module cache — kept for the fetch/cache shape but
// switched from a line-by-line parser to a TOML manifest (lattice.toml)
// and lockfile (lattice.lock) read/written with go-toml/v2, the
// ecosystem's own encode/decode library.
package packages

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const ManifestFile = "lattice.toml"
const LockFile = "lattice.lock"

// Module is a project's lattice.toml manifest: its own path and the
// packages it directly depends on.
type Module struct {
	Module  string        `toml:"module"`
	Lattice string        `toml:"lattice"`
	Require []Requirement `toml:"require,omitempty"`
}

type Requirement struct {
	Path    string `toml:"path"`
	Version string `toml:"version"`
}

// Lockfile is lattice.lock: one [[package]] table per resolved
// dependency, pinning the exact version/source/checksum actually
// fetched (§10.5) — distinct from Module's looser version ranges.
type Lockfile struct {
	Package []LockedPackage `toml:"package"`
}

type LockedPackage struct {
	Name     string `toml:"name"`
	Version  string `toml:"version"`
	Source   string `toml:"source"`
	Checksum string `toml:"checksum"`
}

func (lf *Lockfile) Put(pkg LockedPackage) {
	for i, p := range lf.Package {
		if p.Name == pkg.Name {
			lf.Package[i] = pkg
			return
		}
	}
	lf.Package = append(lf.Package, pkg)
}

func (lf *Lockfile) Get(name string) (LockedPackage, bool) {
	for _, p := range lf.Package {
		if p.Name == name {
			return p, true
		}
	}
	return LockedPackage{}, false
}

func ParseManifest(path string) (*Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	mod := &Module{}
	if err := toml.Unmarshal(data, mod); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return mod, nil
}

func WriteManifest(path string, mod *Module) error {
	data, err := toml.Marshal(mod)
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

func ParseLockfile(path string) (*Lockfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Lockfile{}, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	lock := &Lockfile{}
	if err := toml.Unmarshal(data, lock); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return lock, nil
}

func WriteLockfile(path string, lock *Lockfile) error {
	data, err := toml.Marshal(lock)
	if err != nil {
		return fmt.Errorf("failed to encode lockfile: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// ModuleCache manages packages fetched from remote sources, mirroring
// sentra's own ModuleCache.
type ModuleCache struct {
	BaseDir string
	modules map[string]*CachedModule
}

// CachedModule is a fetched-and-extracted dependency.
type CachedModule struct {
	Path      string
	Version   string
	Checksum  string
	Module    *Module
	LoadTime  time.Time
	SourceDir string
}

func NewModuleCache(baseDir string) *ModuleCache {
	if baseDir == "" {
		homeDir, _ := os.UserHomeDir()
		baseDir = filepath.Join(homeDir, ".lattice", "pkg", "mod")
	}
	return &ModuleCache{BaseDir: baseDir, modules: make(map[string]*CachedModule)}
}

// FetchModule downloads (or locates locally) a dependency and returns
// its cached source directory plus a content checksum suitable for a
// lockfile entry.
func (mc *ModuleCache) FetchModule(path, version string) (*CachedModule, error) {
	cacheKey := fmt.Sprintf("%s@%s", path, version)
	if cached, ok := mc.modules[cacheKey]; ok {
		return cached, nil
	}

	if !strings.Contains(path, "/") || strings.HasPrefix(path, ".") {
		return mc.loadLocalModule(path, version)
	}

	sourceURL := ""
	switch {
	case strings.HasPrefix(path, "github.com/"):
		parts := strings.SplitN(strings.TrimPrefix(path, "github.com/"), "/", 2)
		if len(parts) == 2 {
			if version == "" || version == "latest" {
				sourceURL = fmt.Sprintf("https://github.com/%s/%s/archive/refs/heads/main.zip", parts[0], parts[1])
			} else {
				sourceURL = fmt.Sprintf("https://github.com/%s/%s/archive/refs/tags/%s.zip", parts[0], parts[1], version)
			}
		}
	case strings.HasPrefix(path, "http://"), strings.HasPrefix(path, "https://"):
		sourceURL = path
	}
	if sourceURL == "" {
		return nil, fmt.Errorf("unable to determine source for %s", path)
	}

	destDir := filepath.Join(mc.BaseDir, strings.ReplaceAll(path, "/", "_"), version)
	checksum, err := mc.downloadAndExtract(sourceURL, destDir)
	if err != nil {
		return nil, fmt.Errorf("failed to download module: %w", err)
	}

	mod, err := ParseManifest(filepath.Join(destDir, ManifestFile))
	if err != nil {
		mod = &Module{Module: path, Lattice: "1.0"}
	}

	cached := &CachedModule{
		Path: path, Version: version, Checksum: checksum,
		Module: mod, LoadTime: time.Now(), SourceDir: destDir,
	}
	mc.modules[cacheKey] = cached
	return cached, nil
}

func (mc *ModuleCache) loadLocalModule(path, version string) (*CachedModule, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(absPath); err != nil {
		return nil, fmt.Errorf("local module not found: %s", path)
	}

	mod, err := ParseManifest(filepath.Join(absPath, ManifestFile))
	if err != nil {
		mod = &Module{Module: path, Lattice: "1.0"}
	}

	cached := &CachedModule{Path: path, Version: version, Module: mod, LoadTime: time.Now(), SourceDir: absPath}
	mc.modules[fmt.Sprintf("%s@%s", path, version)] = cached
	return cached, nil
}

// downloadAndExtract fetches sourceURL into destDir and returns a
// "sha256:<hex>" checksum of the raw archive bytes, the value stored
// in a lattice.lock [[package]] entry.
func (mc *ModuleCache) downloadAndExtract(url, destDir string) (string, error) {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", err
	}

	resp, err := http.Get(url)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to download: HTTP %d", resp.StatusCode)
	}

	tempFile := filepath.Join(destDir, "download.tmp")
	out, err := os.Create(tempFile)
	if err != nil {
		return "", err
	}
	hasher := sha256.New()
	_, err = io.Copy(io.MultiWriter(out, hasher), resp.Body)
	out.Close()
	if err != nil {
		return "", err
	}
	defer os.Remove(tempFile)

	switch {
	case strings.HasSuffix(url, ".zip"):
		err = extractZip(tempFile, destDir)
	case strings.HasSuffix(url, ".tar.gz"), strings.HasSuffix(url, ".tgz"):
		err = extractTarGz(tempFile, destDir)
	default:
		err = fmt.Errorf("unsupported archive format: %s", url)
	}
	if err != nil {
		return "", err
	}
	return "sha256:" + hex.EncodeToString(hasher.Sum(nil)), nil
}

// ResolveDependencies walks a module's require graph, fetching every
// transitive dependency exactly once.
func (mc *ModuleCache) ResolveDependencies(mod *Module) ([]*CachedModule, error) {
	var resolved []*CachedModule
	visited := make(map[string]bool)

	var resolve func(*Module) error
	resolve = func(m *Module) error {
		for _, req := range m.Require {
			key := fmt.Sprintf("%s@%s", req.Path, req.Version)
			if visited[key] {
				continue
			}
			visited[key] = true

			cached, err := mc.FetchModule(req.Path, req.Version)
			if err != nil {
				return fmt.Errorf("failed to fetch %s@%s: %w", req.Path, req.Version, err)
			}
			resolved = append(resolved, cached)
			if err := resolve(cached.Module); err != nil {
				return err
			}
		}
		return nil
	}

	if err := resolve(mod); err != nil {
		return nil, err
	}
	return resolved, nil
}

func (mc *ModuleCache) GetModulePath(path, version string) string {
	if cached, ok := mc.modules[fmt.Sprintf("%s@%s", path, version)]; ok {
		return cached.SourceDir
	}
	return ""
}

func extractZip(src, dest string) error {
	reader, err := zip.OpenReader(src)
	if err != nil {
		return err
	}
	defer reader.Close()

	for _, file := range reader.File {
		path := filepath.Join(dest, file.Name)
		if file.FileInfo().IsDir() {
			os.MkdirAll(path, file.Mode())
			continue
		}
		fileReader, err := file.Open()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			fileReader.Close()
			return err
		}
		targetFile, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, file.Mode())
		if err != nil {
			fileReader.Close()
			return err
		}
		_, err = io.Copy(targetFile, fileReader)
		fileReader.Close()
		targetFile.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func extractTarGz(src, dest string) error {
	file, err := os.Open(src)
	if err != nil {
		return err
	}
	defer file.Close()

	gzReader, err := gzip.NewReader(file)
	if err != nil {
		return err
	}
	defer gzReader.Close()

	tarReader := tar.NewReader(gzReader)
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		path := filepath.Join(dest, header.Name)
		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(path, 0755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return err
			}
			outFile, err := os.Create(path)
			if err != nil {
				return err
			}
			if _, err := io.Copy(outFile, tarReader); err != nil {
				outFile.Close()
				return err
			}
			outFile.Close()
		}
	}
	return nil
}
