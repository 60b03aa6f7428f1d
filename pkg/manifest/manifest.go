// Package manifest reads a declarative YAML description of artifacts and
// convenience tasks and turns it into descriptor values for compilation.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/ghodss/yaml"

	"github.com/vsajip/teleport/pkg/artifact"
	"github.com/vsajip/teleport/pkg/fetch"
	"github.com/vsajip/teleport/pkg/graph"
	"github.com/vsajip/teleport/pkg/makefile"
)

// Manifest is the on-disk build description.
type Manifest struct {
	CacheDir  string          `json:"cacheDir"`
	Makefile  string          `json:"makefile"`
	Roots     []string        `json:"roots"`
	Artifacts []ArtifactSpec  `json:"artifacts"`
	Tasks     []makefile.Task `json:"tasks"`
}

// ArtifactSpec mirrors artifact.Config with mounts written either as a
// reference to another artifact in the same manifest or as an inline fetch
// directive.
type ArtifactSpec struct {
	ArchiveName      string               `json:"archiveName"`
	Mounts           map[string]MountSpec `json:"mounts"`
	FileDependencies []string             `json:"fileDependencies"`
	ResultDir        string               `json:"resultDir"`
	Commands         []string             `json:"commands"`
}

// MountSpec is either a bare string (a reference by archive name) or a
// single-key object naming a fetch directive kind.
type MountSpec struct {
	Ref      string
	Download *fetch.Download
	Zip      *fetch.ZipArchive
	Package  *fetch.Package
	Checkout *fetch.Checkout
	WebFonts *fetch.WebFonts
}

// UnmarshalJSON accepts the two mount forms. The manifest is YAML on disk;
// ghodss/yaml routes it through JSON, so this is the single decode hook.
func (m *MountSpec) UnmarshalJSON(data []byte) error {
	var ref string
	if err := json.Unmarshal(data, &ref); err == nil {
		if ref == "" {
			return fmt.Errorf("%w: empty mount reference", artifact.ErrInvalidConfig)
		}
		m.Ref = ref
		return nil
	}

	var raw struct {
		Download *fetch.Download   `json:"download"`
		Zip      *fetch.ZipArchive `json:"zip"`
		Package  *fetch.Package    `json:"package"`
		Checkout *fetch.Checkout   `json:"checkout"`
		WebFonts *fetch.WebFonts   `json:"webfonts"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	count := 0
	for _, set := range []bool{
		raw.Download != nil, raw.Zip != nil, raw.Package != nil,
		raw.Checkout != nil, raw.WebFonts != nil,
	} {
		if set {
			count++
		}
	}
	if count != 1 {
		return fmt.Errorf("%w: a mount must be a reference or exactly one fetch directive", artifact.ErrInvalidConfig)
	}

	m.Download = raw.Download
	m.Zip = raw.Zip
	m.Package = raw.Package
	m.Checkout = raw.Checkout
	m.WebFonts = raw.WebFonts
	return nil
}

func (m MountSpec) node() artifact.Node {
	switch {
	case m.Download != nil:
		return *m.Download
	case m.Zip != nil:
		return *m.Zip
	case m.Package != nil:
		return *m.Package
	case m.Checkout != nil:
		return *m.Checkout
	case m.WebFonts != nil:
		return *m.WebFonts
	}
	return nil
}

// Read loads and decodes a manifest file.
func Read(filename string) (*Manifest, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	m := &Manifest{}
	if err := yaml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("failed to decode manifest (%s): %v", filename, err)
	}
	if m.CacheDir == "" {
		m.CacheDir = "cache"
	}
	if m.Makefile == "" {
		m.Makefile = "Makefile"
	}
	return m, nil
}

// FileDependencies aggregates every artifact's file dependencies, for watch
// loops.
func (m *Manifest) FileDependencies() []string {
	var deps []string
	for _, spec := range m.Artifacts {
		deps = append(deps, spec.FileDependencies...)
	}
	return deps
}

// Build resolves references and returns the root descriptors plus the
// declared tasks. When the manifest names no roots, every artifact not
// mounted by another one is a root, in declaration order.
func (m *Manifest) Build() ([]*artifact.Artifact, []makefile.Task, error) {
	b := &builder{
		specs:    map[string]ArtifactSpec{},
		built:    map[string]*artifact.Artifact{},
		visiting: map[string]bool{},
	}
	for _, spec := range m.Artifacts {
		if _, ok := b.specs[spec.ArchiveName]; ok {
			return nil, nil, fmt.Errorf("%w: %q declared twice in manifest", graph.ErrDuplicateName, spec.ArchiveName)
		}
		b.specs[spec.ArchiveName] = spec
	}

	rootNames := m.Roots
	if len(rootNames) == 0 {
		rootNames = m.defaultRoots()
	}

	roots := make([]*artifact.Artifact, 0, len(rootNames))
	for _, name := range rootNames {
		a, err := b.build(name)
		if err != nil {
			return nil, nil, err
		}
		roots = append(roots, a)
	}
	return roots, m.Tasks, nil
}

func (m *Manifest) defaultRoots() []string {
	mounted := map[string]bool{}
	for _, spec := range m.Artifacts {
		for _, mnt := range spec.Mounts {
			if mnt.Ref != "" {
				mounted[mnt.Ref] = true
			}
		}
	}
	var roots []string
	for _, spec := range m.Artifacts {
		if !mounted[spec.ArchiveName] {
			roots = append(roots, spec.ArchiveName)
		}
	}
	return roots
}

type builder struct {
	specs    map[string]ArtifactSpec
	built    map[string]*artifact.Artifact
	visiting map[string]bool
	path     []string
}

func (b *builder) build(name string) (*artifact.Artifact, error) {
	if a, ok := b.built[name]; ok {
		return a, nil
	}
	spec, ok := b.specs[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown artifact reference %q", artifact.ErrInvalidConfig, name)
	}
	if b.visiting[name] {
		return nil, &graph.CycleError{Path: b.cycleFrom(name)}
	}
	b.visiting[name] = true
	b.path = append(b.path, name)
	defer func() {
		delete(b.visiting, name)
		b.path = b.path[:len(b.path)-1]
	}()

	keys := make([]string, 0, len(spec.Mounts))
	for key := range spec.Mounts {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	mounts := map[string]artifact.Node{}
	for _, key := range keys {
		mnt := spec.Mounts[key]
		if mnt.Ref != "" {
			child, err := b.build(mnt.Ref)
			if err != nil {
				return nil, err
			}
			mounts[key] = child
			continue
		}
		node := mnt.node()
		if node == nil {
			return nil, fmt.Errorf("%w: artifact %q: mount %q has no source", artifact.ErrInvalidConfig, name, key)
		}
		mounts[key] = node
	}

	a, err := artifact.Define(artifact.Config{
		ArchiveName: spec.ArchiveName,
		Mounts:      mounts,
		FileDeps:    spec.FileDependencies,
		ResultDir:   spec.ResultDir,
		Commands:    spec.Commands,
	})
	if err != nil {
		return nil, err
	}
	b.built[name] = a
	return a, nil
}

func (b *builder) cycleFrom(name string) []string {
	for i, n := range b.path {
		if n == name {
			cycle := append([]string(nil), b.path[i:]...)
			return append(cycle, name)
		}
	}
	return []string{name, name}
}
