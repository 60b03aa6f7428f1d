package makefile

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vsajip/teleport/pkg/artifact"
	"github.com/vsajip/teleport/pkg/store"
)

func define(t *testing.T, c artifact.Config) *artifact.Artifact {
	t.Helper()
	a, err := artifact.Define(c)
	require.NoError(t, err)
	return a
}

// stanzas splits rendered output into blocks separated by blank lines,
// skipping the header comment.
func stanzas(out []byte) []string {
	blocks := strings.Split(strings.TrimSpace(string(out)), "\n\n")
	if len(blocks) > 0 && strings.HasPrefix(blocks[0], "#") {
		blocks = blocks[1:]
	}
	return blocks
}

func TestGenerate_EndToEnd(t *testing.T) {
	leaf := define(t, artifact.Config{
		ArchiveName: "leaf",
		Commands:    []string{"echo hi > {{.Stage}}/f.txt"},
	})
	root := define(t, artifact.Config{
		ArchiveName: "root",
		Mounts:      map[string]artifact.Node{"/x": leaf},
		Commands:    []string{"cat {{.Stage}}/x/f.txt"},
	})

	cache := store.NewCache("cache")
	out, err := Generate([]*artifact.Artifact{root}, nil, cache)
	require.NoError(t, err)

	blocks := stanzas(out)
	require.Len(t, blocks, 2)

	t.Run("LeafTarget", func(t *testing.T) {
		lines := strings.Split(blocks[0], "\n")
		require.Equal(t, "cache/leaf.tar.gz:", lines[0])
		require.Contains(t, lines, "\trm -rf cache/stage/leaf")
		require.Contains(t, lines, "\tmkdir -p cache/stage/leaf")
		require.Contains(t, lines, "\techo hi > cache/stage/leaf/f.txt")
		require.Contains(t, lines, "\ttar -zcf cache/leaf.tar.gz -C cache/stage/leaf .")
		require.Equal(t, "\trm -rf cache/stage/leaf", lines[len(lines)-1])
	})

	t.Run("RootTarget", func(t *testing.T) {
		lines := strings.Split(blocks[1], "\n")
		require.Equal(t, "cache/root.tar.gz: cache/leaf.tar.gz", lines[0])
		require.Contains(t, lines, "\tmkdir -p cache/stage/root/x")
		require.Contains(t, lines, "\ttar -zxf cache/leaf.tar.gz -C cache/stage/root/x")
		require.Contains(t, lines, "\tcat cache/stage/root/x/f.txt")
	})
}

func TestGenerate_NoForwardReferences(t *testing.T) {
	shared := define(t, artifact.Config{ArchiveName: "shared", Commands: []string{"true"}})
	left := define(t, artifact.Config{
		ArchiveName: "left",
		Mounts:      map[string]artifact.Node{"/s": shared},
		Commands:    []string{"true"},
	})
	right := define(t, artifact.Config{
		ArchiveName: "right",
		Mounts:      map[string]artifact.Node{"/s": shared},
		Commands:    []string{"true"},
	})
	top := define(t, artifact.Config{
		ArchiveName: "top",
		Mounts:      map[string]artifact.Node{"/l": left, "/r": right},
		Commands:    []string{"true"},
	})

	cache := store.NewCache("cache")
	out, err := Generate([]*artifact.Artifact{top}, nil, cache)
	require.NoError(t, err)

	defined := map[string]bool{}
	for _, block := range stanzas(out) {
		head := strings.SplitN(block, "\n", 2)[0]
		parts := strings.SplitN(head, ":", 2)
		target := parts[0]
		for _, prereq := range strings.Fields(parts[1]) {
			require.True(t, defined[prereq], "prereq %s referenced before its target", prereq)
		}
		defined[target] = true
	}
	require.Len(t, defined, 4)
}

func TestGenerate_ResultDir(t *testing.T) {
	site := define(t, artifact.Config{
		ArchiveName: "site",
		ResultDir:   "/out",
		Commands: []string{
			"mkdir -p {{.Stage}}/out",
			"echo hi > {{.Stage}}/out/index.html",
			"echo scratch > {{.Stage}}/notes.txt",
		},
	})

	out, err := Generate([]*artifact.Artifact{site}, nil, store.NewCache("cache"))
	require.NoError(t, err)
	require.Contains(t, string(out), "\ttar -zcf cache/site.tar.gz -C cache/stage/site/out .\n")
}

func TestGenerate_FileDeps(t *testing.T) {
	spec := define(t, artifact.Config{
		ArchiveName: "spec-html",
		FileDeps:    []string{"spec/draft.txt", "spec/appendix.txt"},
		Commands:    []string{"true"},
	})

	out, err := Generate([]*artifact.Artifact{spec}, nil, store.NewCache("cache"))
	require.NoError(t, err)
	require.Contains(t, string(out), "cache/spec-html.tar.gz: spec/draft.txt spec/appendix.txt\n")
}

func TestGenerate_Tasks(t *testing.T) {
	leaf := define(t, artifact.Config{ArchiveName: "leaf", Commands: []string{"true"}})
	tasks := []Task{
		{Name: "clean", Commands: []string{"rm -rf cache"}},
		{Name: "deploy", Commands: []string{"rsync -a deploy/ remote:/srv/www"}},
	}

	out, err := Generate([]*artifact.Artifact{leaf}, tasks, store.NewCache("cache"))
	require.NoError(t, err)

	text := string(out)
	require.Contains(t, text, "\n.PHONY: clean deploy\n")
	require.Contains(t, text, "\nclean:\n\trm -rf cache\n")
	require.Contains(t, text, "\ndeploy:\n\trsync -a deploy/ remote:/srv/www\n")
	require.Less(t, strings.Index(text, "cache/leaf.tar.gz:"), strings.Index(text, "clean:"),
		"tasks come after all targets")

	t.Run("DuplicateTask", func(t *testing.T) {
		_, err := Generate([]*artifact.Artifact{leaf}, []Task{
			{Name: "clean"}, {Name: "clean"},
		}, store.NewCache("cache"))
		require.ErrorIs(t, err, artifact.ErrInvalidConfig)
	})

	t.Run("UnnamedTask", func(t *testing.T) {
		_, err := Generate([]*artifact.Artifact{leaf}, []Task{{}}, store.NewCache("cache"))
		require.ErrorIs(t, err, artifact.ErrInvalidConfig)
	})
}

func TestGenerate_Deterministic(t *testing.T) {
	build := func() *artifact.Artifact {
		shared := define(t, artifact.Config{ArchiveName: "shared", Commands: []string{"true"}})
		return define(t, artifact.Config{
			ArchiveName: "top",
			Mounts: map[string]artifact.Node{
				"/c": shared, "/a": shared, "/b": shared,
			},
			Commands: []string{"echo {{.Name}}"},
		})
	}

	cache := store.NewCache("cache")
	first, err := Generate([]*artifact.Artifact{build()}, []Task{{Name: "clean", Commands: []string{"rm -rf cache"}}}, cache)
	require.NoError(t, err)
	second, err := Generate([]*artifact.Artifact{build()}, []Task{{Name: "clean", Commands: []string{"rm -rf cache"}}}, cache)
	require.NoError(t, err)
	require.Equal(t, string(first), string(second))
}

func TestRender_BadTemplate(t *testing.T) {
	bad := define(t, artifact.Config{
		ArchiveName: "bad",
		Commands:    []string{"echo {{.Stage"},
	})
	_, err := Generate([]*artifact.Artifact{bad}, nil, store.NewCache("cache"))
	require.Error(t, err)
}
