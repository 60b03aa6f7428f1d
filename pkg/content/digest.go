// Package content provides stable sha256 digests over strings, files and
// directory trees.
package content

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// DigestStrings digests a set of strings irrespective of their order.
func DigestStrings(strs ...string) string {
	h := sha256.New()
	sorted := append([]string(nil), strs...)
	sort.Strings(sorted)
	for _, str := range sorted {
		h.Write([]byte(str))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ShortDigest returns a 12 character digest of the inputs, suitable as a
// path segment.
func ShortDigest(strs ...string) string {
	return DigestStrings(strs...)[:12]
}

// DigestDir digests a directory tree: relative paths plus regular file
// contents. Symlinks and directories contribute their path only.
func DigestDir(root string) (string, error) {
	h := sha256.New()
	err := filepath.WalkDir(root, func(file string, entry fs.DirEntry, pathErr error) error {
		local, err := filepath.Rel(root, file)
		if err != nil {
			return err
		}
		if _, err := h.Write([]byte(local)); err != nil {
			return err
		}
		if pathErr != nil {
			return pathErr
		}
		if entry.IsDir() || entry.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		defer f.Close()
		if _, err := io.Copy(h, f); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed digest for dir (%s): %v", root, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// DigestPaths digests a mixed set of files and directories. Missing paths
// contribute a marker instead of failing, so a watch loop can notice a
// dependency appearing later.
func DigestPaths(paths []string) (string, error) {
	parts := make([]string, 0, len(paths))
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			parts = append(parts, p+"=missing")
			continue
		}
		if info.IsDir() {
			d, err := DigestDir(p)
			if err != nil {
				return "", err
			}
			parts = append(parts, p+"="+d)
			continue
		}
		d, err := digestFile(p)
		if err != nil {
			return "", err
		}
		parts = append(parts, p+"="+d)
	}
	return DigestStrings(parts...), nil
}

func digestFile(file string) (string, error) {
	f, err := os.Open(file)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
