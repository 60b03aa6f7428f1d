// Package store is the archive cache path policy: where each artifact's
// tarball and staging directory live under one cache directory. Staleness
// checking over these paths is make's job, not ours.
package store

import (
	"os"
	"path"
)

// Cache maps archive names to output and staging paths under Dir. The zero
// value is not usable; construct with NewCache.
type Cache struct {
	dir string
}

// NewCache returns a cache rooted at dir. The directory is not created
// until the generated build file runs.
func NewCache(dir string) Cache { return Cache{dir: path.Clean(dir)} }

// Dir returns the cache root.
func (c Cache) Dir() string { return c.dir }

// ArchivePath returns the output tarball path for an archive name. This is
// the target path emitted into the build file, so it is stable across runs.
func (c Cache) ArchivePath(name string) string {
	return path.Join(c.dir, name+".tar.gz")
}

// StagePath returns the staging directory for an archive name. One staging
// directory per target name keeps concurrent builds of distinct targets
// apart.
func (c Cache) StagePath(name string) string {
	return path.Join(c.dir, "stage", name)
}

// Exists reports whether the named archive has been built.
func (c Cache) Exists(name string) bool {
	_, err := os.Stat(c.ArchivePath(name))
	return err == nil
}

// Clean removes the whole cache directory, archives and staging included.
func (c Cache) Clean() error { return os.RemoveAll(c.dir) }
