// Package buildcache implements the Build Cache from spec.md §4.I: it
// content-hashes a project's sources and caches the bundler's output
// under a filename derived from that hash, so repeated builds of an
// unchanged project are a single stat call instead of a re-bundle.
package buildcache

import (
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/scriptedge/scriptedge/internal/bundler"
)

// sourceExtensions are the file kinds that participate in the project
// hash, per spec.md §4.I step 1.
var sourceExtensions = map[string]bool{
	".ts":   true,
	".js":   true,
	".json": true,
	".yml":  true,
}

// Result describes one build cache resolution.
type Result struct {
	Hash       string
	BundlePath string // <builddir>/<hash>.mjs
	ConfigPath string // <builddir>/<hash>.yml
	Hit        bool   // true if BundlePath already existed and was not rewritten
}

// Build resolves (and, on a miss, produces) the cached bundle for the
// project rooted at projectDir, entry-pointed at entryFile (conventionally
// "main.ts"), whose descriptor lives at configFile. buildDir defaults to
// ".build" when empty, matching the CLI's default (spec.md §6).
func Build(projectDir, entryFile, configFile, buildDir string) (*Result, error) {
	if buildDir == "" {
		buildDir = ".build"
	}

	hash, err := ProjectHash(projectDir)
	if err != nil {
		return nil, fmt.Errorf("buildcache: hashing project: %w", err)
	}

	bundlePath := filepath.Join(buildDir, hash+".mjs")
	configPath := filepath.Join(buildDir, hash+".yml")

	if info, err := os.Stat(bundlePath); err == nil && !info.IsDir() {
		return &Result{Hash: hash, BundlePath: bundlePath, ConfigPath: configPath, Hit: true}, nil
	}

	if err := os.RemoveAll(buildDir); err != nil {
		return nil, fmt.Errorf("buildcache: clearing %s: %w", buildDir, err)
	}
	if err := os.MkdirAll(buildDir, 0o755); err != nil {
		return nil, fmt.Errorf("buildcache: creating %s: %w", buildDir, err)
	}

	loader := bundler.NewFSLoader(projectDir)
	code, err := bundler.Bundle(entryFile, loader)
	if err != nil {
		return nil, fmt.Errorf("buildcache: bundling: %w", err)
	}
	minified, err := bundler.Minify(code)
	if err != nil {
		return nil, fmt.Errorf("buildcache: minifying: %w", err)
	}
	if err := os.WriteFile(bundlePath, []byte(minified), 0o644); err != nil {
		return nil, fmt.Errorf("buildcache: writing bundle: %w", err)
	}

	configData, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("buildcache: reading config: %w", err)
	}
	if err := os.WriteFile(configPath, configData, 0o644); err != nil {
		return nil, fmt.Errorf("buildcache: writing config copy: %w", err)
	}

	return &Result{Hash: hash, BundlePath: bundlePath, ConfigPath: configPath, Hit: false}, nil
}

// ProjectHash enumerates every *.ts, *.js, *.json, *.yml file under dir,
// streams their contents in sorted-path order into BLAKE3, and returns
// the first 16 hex characters of the digest (spec.md §4.I, §8). Hidden
// directories below dir (such as .build and .git) are skipped, so the
// build cache's own output never feeds back into the hash.
func ProjectHash(dir string) (string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if sourceExtensions[strings.ToLower(filepath.Ext(p))] {
			paths = append(paths, p)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	// filepath.WalkDir already descends in lexical order; sorting again is
	// cheap insurance against that guarantee changing per directory.
	sort.Strings(paths)

	h := blake3.New()
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return "", err
		}
		if _, err := h.Write(data); err != nil {
			return "", err
		}
	}

	sum := h.Sum(nil)
	return hex.EncodeToString(sum)[:16], nil
}
