package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"github.com/vsajip/teleport/pkg/fileutils"
	"github.com/vsajip/teleport/pkg/log"
	"github.com/vsajip/teleport/pkg/makefile"
	"github.com/vsajip/teleport/pkg/manifest"
	"github.com/vsajip/teleport/pkg/runner"
	"github.com/vsajip/teleport/pkg/store"
)

func exitErr(msg string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, msg+"\n", args...)
	os.Exit(1)
}

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	// Optional .env supplies defaults for the SITEBUILD_* variables.
	godotenv.Load()

	var (
		manifestFile string
		makefileOut  string
		cacheDir     string
		deployDir    string
		interval     time.Duration
		level        uint
	)
	flag.StringVar(&manifestFile, "manifest", envDefault("SITEBUILD_MANIFEST", "site.yaml"), "build manifest file")
	flag.StringVar(&makefileOut, "makefile", envDefault("SITEBUILD_MAKEFILE", ""), "override the generated build file path")
	flag.StringVar(&cacheDir, "cache-dir", envDefault("SITEBUILD_CACHE_DIR", ""), "override the archive cache directory")
	flag.StringVar(&deployDir, "deploy-dir", envDefault("SITEBUILD_DEPLOY_DIR", "deploy"), "directory artifacts deploy into")
	flag.DurationVar(&interval, "interval", 2*time.Second, "watch poll interval")
	flag.UintVar(&level, "v", 0, "log verbosity")
	flag.Parse()

	log.Level(uint32(level))
	logger := log.Logger{}.Prefix("sitebuild")

	m, err := manifest.Read(manifestFile)
	if err != nil {
		exitErr("Failed to read manifest: %v", err)
	}
	if makefileOut != "" {
		m.Makefile = makefileOut
	}
	if cacheDir != "" {
		m.CacheDir = cacheDir
	}
	cache := store.NewCache(m.CacheDir)

	generate := func() error {
		roots, tasks, err := m.Build()
		if err != nil {
			return err
		}
		out, err := makefile.Generate(roots, tasks, store.NewCache(m.CacheDir))
		if err != nil {
			return err
		}
		logger.V(1).Printf("writing %s (%d bytes)", m.Makefile, len(out))
		return os.WriteFile(m.Makefile, out, fileutils.Regular)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	r := &runner.Runner{Makefile: m.Makefile, Logger: logger}

	command := flag.Arg(0)
	if command == "" {
		command = "gen"
	}

	switch command {
	case "gen":
		if err := generate(); err != nil {
			exitErr("Failed to generate: %v", err)
		}

	case "build":
		if err := generate(); err != nil {
			exitErr("Failed to generate: %v", err)
		}
		target := resolveTarget(m, cache, flag.Arg(1))
		if err := r.Build(ctx, target); err != nil {
			exitErr("Build failed: %v", err)
		}

	case "watch":
		rawTarget := flag.Arg(1)
		paths := func() []string {
			watched := []string{manifestFile}
			if fresh, err := manifest.Read(manifestFile); err == nil {
				watched = append(watched, fresh.FileDependencies()...)
			} else {
				watched = append(watched, m.FileDependencies()...)
			}
			return watched
		}
		step := func(ctx context.Context) error {
			fresh, err := manifest.Read(manifestFile)
			if err != nil {
				return err
			}
			if makefileOut != "" {
				fresh.Makefile = makefileOut
			}
			if cacheDir != "" {
				fresh.CacheDir = cacheDir
			}
			m = fresh
			r.Makefile = m.Makefile
			if err := generate(); err != nil {
				return err
			}
			// Resolve against the manifest just read: a renamed
			// artifact or task must map to its current archive path.
			return r.Build(ctx, resolveTarget(m, store.NewCache(m.CacheDir), rawTarget))
		}
		if err := r.Watch(ctx, interval, paths, step); err != nil && ctx.Err() == nil {
			exitErr("Watch failed: %v", err)
		}

	case "clean":
		if err := cache.Clean(); err != nil {
			exitErr("Failed to clean cache: %v", err)
		}
		logger.Printf("cleaned %s", cache.Dir())

	case "deploy":
		name := flag.Arg(1)
		if name == "" {
			exitErr("Usage: sitebuild deploy <artifact>")
		}
		if !cache.Exists(name) {
			exitErr("Artifact %q has not been built", name)
		}
		if err := fileutils.Untar(cache.ArchivePath(name), deployDir); err != nil {
			exitErr("Deploy failed: %v", err)
		}
		logger.Printf("deployed %s to %s", name, deployDir)

	default:
		exitErr("Unknown command %q", command)
	}
}

// resolveTarget maps a bare artifact name to its archive path; task names
// and explicit paths pass through to make unchanged.
func resolveTarget(m *manifest.Manifest, cache store.Cache, target string) string {
	if target == "" {
		return ""
	}
	for _, t := range m.Tasks {
		if t.Name == target {
			return target
		}
	}
	for _, spec := range m.Artifacts {
		if spec.ArchiveName == target {
			return cache.ArchivePath(target)
		}
	}
	return target
}
