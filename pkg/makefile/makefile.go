// Package makefile renders a compiled plan as a Makefile: one target per
// artifact, prerequisite edges for direct dependencies, recipe lines that
// stage mounts, run the artifact's commands and pack the result. Rebuild
// skipping is make's file-timestamp check over these targets; the emitter's
// whole contribution is correct, minimal prerequisite lists.
package makefile

import (
	"bytes"
	"fmt"
	"path"
	"strings"

	"github.com/vsajip/teleport/pkg/artifact"
	"github.com/vsajip/teleport/pkg/graph"
	"github.com/vsajip/teleport/pkg/store"
	"github.com/vsajip/teleport/pkg/template"
)

const header = "# Generated by sitebuild. Do not edit by hand.\n"

// Task is a phony convenience target. Tasks are appended after all artifact
// targets in registration order, commands verbatim, no prerequisite
// tracking.
type Task struct {
	Name     string   `json:"name"`
	Commands []string `json:"commands"`
}

// Generate compiles roots and renders the result in one call.
func Generate(roots []*artifact.Artifact, tasks []Task, cache store.Cache) ([]byte, error) {
	plan, err := graph.Compile(roots)
	if err != nil {
		return nil, err
	}
	return Render(plan, tasks, cache)
}

// Render emits the Makefile text for a compiled plan. Output is
// byte-identical across runs over the same plan, tasks and environment.
func Render(plan *graph.Plan, tasks []Task, cache store.Cache) ([]byte, error) {
	data := template.NewData()

	buf := bytes.NewBuffer(nil)
	buf.WriteString(header)

	for _, node := range plan.Nodes {
		buf.WriteString("\n")
		if err := renderTarget(buf, node, cache, data); err != nil {
			return nil, err
		}
	}

	if len(tasks) > 0 {
		seen := map[string]bool{}
		names := make([]string, 0, len(tasks))
		for _, t := range tasks {
			if t.Name == "" {
				return nil, fmt.Errorf("%w: task name is required", artifact.ErrInvalidConfig)
			}
			if seen[t.Name] {
				return nil, fmt.Errorf("%w: task %q registered twice", artifact.ErrInvalidConfig, t.Name)
			}
			seen[t.Name] = true
			names = append(names, t.Name)
		}
		buf.WriteString("\n.PHONY: " + strings.Join(names, " ") + "\n")
		for _, t := range tasks {
			buf.WriteString("\n" + t.Name + ":\n")
			for _, cmd := range t.Commands {
				buf.WriteString("\t" + cmd + "\n")
			}
		}
	}

	return buf.Bytes(), nil
}

func renderTarget(buf *bytes.Buffer, node graph.Node, cache store.Cache, data template.Data) error {
	a := node.Artifact
	out := cache.ArchivePath(a.Name())
	stage := cache.StagePath(a.Name())

	prereqs := make([]string, 0, len(node.Prereqs))
	for _, dep := range node.Prereqs {
		prereqs = append(prereqs, cache.ArchivePath(dep))
	}
	prereqs = append(prereqs, a.FileDeps()...)

	buf.WriteString(out + ":")
	for _, p := range prereqs {
		buf.WriteString(" " + p)
	}
	buf.WriteString("\n")

	recipe := []string{
		"rm -rf " + stage,
		"mkdir -p " + stage,
	}
	for _, m := range a.Mounts() {
		child, err := m.Node.Resolve()
		if err != nil {
			return err
		}
		dir := path.Join(stage, m.Path)
		recipe = append(recipe,
			"mkdir -p "+dir,
			"tar -zxf "+cache.ArchivePath(child.Name())+" -C "+dir,
		)
	}

	data.Stage = stage
	data.Name = a.Name()
	commands, err := template.Render(a.Commands(), data)
	if err != nil {
		return fmt.Errorf("artifact %q: %v", a.Name(), err)
	}
	recipe = append(recipe, commands...)

	packDir := stage
	if a.ResultDir() != "" {
		packDir = path.Join(stage, a.ResultDir())
	}
	recipe = append(recipe,
		"tar -zcf "+out+" -C "+packDir+" .",
		"rm -rf "+stage,
	)

	for _, line := range recipe {
		buf.WriteString("\t" + line + "\n")
	}
	return nil
}
