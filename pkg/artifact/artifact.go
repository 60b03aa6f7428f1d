// Package artifact defines the descriptor for one buildable unit: a named
// tarball assembled from mounted inputs by a sequence of shell commands.
package artifact

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/vsajip/teleport/pkg/content"
)

// ErrInvalidConfig is wrapped by every descriptor validation failure.
var ErrInvalidConfig = errors.New("invalid artifact config")

// Node is anything that can be mounted into a staging directory. An
// *Artifact is a Node; fetch directives are Nodes that synthesize a
// zero-dependency Artifact from their own literal parameters.
type Node interface {
	Resolve() (*Artifact, error)
}

// Config describes an artifact to Define. Mount keys are staging sub-paths
// and are normalized (leading slash stripped, cleaned) before use.
type Config struct {
	ArchiveName string
	Mounts      map[string]Node
	FileDeps    []string
	ResultDir   string
	Commands    []string
}

// Mount is a declared input: the node staged at Path. Nodes resolve to
// their artifact during compilation, not at definition time, so mounts may
// reference artifacts defined later.
type Mount struct {
	Path string
	Node Node
}

// Artifact is an immutable descriptor. Construct with Define.
type Artifact struct {
	name      string
	resultDir string
	fileDeps  []string
	commands  []string
	mounts    []Mount
}

func invalidf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// Define validates a Config and returns an immutable descriptor. Definition
// has no side effects; shell commands only run when the emitted build file
// is later executed.
func Define(c Config) (*Artifact, error) {
	if c.ArchiveName == "" {
		return nil, invalidf("archive name is required")
	}
	if !safeName(c.ArchiveName) {
		return nil, invalidf("archive name %q contains filesystem-unsafe characters", c.ArchiveName)
	}
	if len(c.Commands) == 0 {
		return nil, invalidf("artifact %q: commands are required", c.ArchiveName)
	}

	mounts := make([]Mount, 0, len(c.Mounts))
	seen := map[string]string{}
	for key, node := range c.Mounts {
		sub, err := normalizeSubPath(key)
		if err != nil {
			return nil, invalidf("artifact %q: mount %q: %v", c.ArchiveName, key, err)
		}
		if prev, ok := seen[sub]; ok {
			return nil, invalidf("artifact %q: mounts %q and %q collide at %q", c.ArchiveName, prev, key, sub)
		}
		seen[sub] = key
		if node == nil {
			return nil, invalidf("artifact %q: mount %q has no source", c.ArchiveName, key)
		}
		mounts = append(mounts, Mount{Path: sub, Node: node})
	}
	sort.Slice(mounts, func(i, j int) bool { return mounts[i].Path < mounts[j].Path })

	resultDir := ""
	if c.ResultDir != "" {
		sub, err := normalizeSubPath(c.ResultDir)
		if err != nil {
			return nil, invalidf("artifact %q: result dir %q: %v", c.ArchiveName, c.ResultDir, err)
		}
		resultDir = sub
	}

	return &Artifact{
		name:      c.ArchiveName,
		resultDir: resultDir,
		fileDeps:  append([]string(nil), c.FileDeps...),
		commands:  append([]string(nil), c.Commands...),
		mounts:    mounts,
	}, nil
}

// Resolve makes *Artifact satisfy Node.
func (a *Artifact) Resolve() (*Artifact, error) { return a, nil }

// Name returns the archive name, the node identity in a compiled graph.
func (a *Artifact) Name() string { return a.name }

// ResultDir returns the normalized sub-path archived as the tarball root,
// or "" when the whole staging directory is archived.
func (a *Artifact) ResultDir() string { return a.resultDir }

// FileDeps returns the file paths whose changes retrigger this artifact.
func (a *Artifact) FileDeps() []string { return append([]string(nil), a.fileDeps...) }

// Commands returns the command template lines.
func (a *Artifact) Commands() []string { return append([]string(nil), a.commands...) }

// Mounts returns the declared mounts in stable (lexicographic path) order.
func (a *Artifact) Mounts() []Mount { return append([]Mount(nil), a.mounts...) }

// Fingerprint is a stable digest of the descriptor's own content plus the
// archive names of its direct mounts. Two descriptors sharing a name but
// not a fingerprint are a definition conflict. Mount nodes are resolved one
// level deep, so fingerprinting terminates even on a cyclic graph.
func (a *Artifact) Fingerprint() (string, error) {
	parts := []string{
		"name=" + a.name,
		"result=" + a.resultDir,
	}
	for i, cmd := range a.commands {
		parts = append(parts, fmt.Sprintf("cmd=%d=%s", i, cmd))
	}
	for i, dep := range a.fileDeps {
		parts = append(parts, fmt.Sprintf("dep=%d=%s", i, dep))
	}
	for _, m := range a.mounts {
		child, err := m.Node.Resolve()
		if err != nil {
			return "", err
		}
		if child == nil {
			return "", invalidf("artifact %q: mount %q resolved to nothing", a.name, m.Path)
		}
		parts = append(parts, "mount="+m.Path+"="+child.name)
	}
	return content.DigestStrings(parts...), nil
}

// normalizeSubPath turns a declared mount key or result dir into a clean
// staging-relative path. Keys are written with or without a leading slash;
// both forms name the same sub-path.
func normalizeSubPath(key string) (string, error) {
	sub := path.Clean(strings.TrimLeft(key, "/"))
	if sub == "" || sub == "." {
		return "", errors.New("resolves to the staging root")
	}
	if sub == ".." || strings.HasPrefix(sub, "../") {
		return "", errors.New("escapes the staging directory")
	}
	return sub, nil
}

func safeName(name string) bool {
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.':
		default:
			return false
		}
	}
	return !strings.HasPrefix(name, ".")
}
