// Package fetch provides the leaf mount kinds: deterministic external
// resource acquisitions (downloads, checkouts, package copies). Each
// directive synthesizes an ordinary zero-dependency artifact, so the graph
// compiler only ever deals in one node kind.
//
// A directive's archive name is derived from its literal parameters, which
// makes identical directives reached from different artifacts collapse to a
// single cache entry. Digest parts carry a role key (url=, file=, ...)
// because the digest itself is order-insensitive. Cached entries are never revalidated against the
// remote; a stale resource is refreshed only by cleaning the cache.
package fetch

import (
	"fmt"
	"path"
	"strings"

	"github.com/vsajip/teleport/pkg/artifact"
	"github.com/vsajip/teleport/pkg/content"
)

func invalidf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", artifact.ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// Download fetches a single remote file into the staging root.
type Download struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
}

// Resolve synthesizes the download as an artifact.
func (d Download) Resolve() (*artifact.Artifact, error) {
	if d.URL == "" {
		return nil, invalidf("download: url is required")
	}
	filename := d.Filename
	if filename == "" {
		filename = path.Base(d.URL)
	}
	return artifact.Define(artifact.Config{
		ArchiveName: "download-" + content.ShortDigest("url="+d.URL, "file="+filename),
		Commands: []string{
			fmt.Sprintf("curl -fsSL -o {{.Stage}}/%s %s", filename, d.URL),
		},
	})
}

// ZipArchive fetches a remote zip and unpacks it into the staging
// directory; the generic packaging step turns it into a tarball. ResultDir
// unwraps one level of nesting, the usual shape of release zips.
type ZipArchive struct {
	URL       string `json:"url"`
	ResultDir string `json:"resultDir"`
}

// Resolve synthesizes the zip conversion as an artifact.
func (z ZipArchive) Resolve() (*artifact.Artifact, error) {
	if z.URL == "" {
		return nil, invalidf("zip: url is required")
	}
	return artifact.Define(artifact.Config{
		ArchiveName: "zip-" + content.ShortDigest("url="+z.URL, "result="+z.ResultDir),
		ResultDir:   z.ResultDir,
		Commands: []string{
			fmt.Sprintf("curl -fsSL -o {{.Stage}}/.bundle.zip %s", z.URL),
			"unzip -q {{.Stage}}/.bundle.zip -d {{.Stage}}",
			"rm {{.Stage}}/.bundle.zip",
		},
	})
}

// Package copies a locally installed node package out of node_modules.
type Package struct {
	Name string `json:"name"`
}

// Resolve synthesizes the package copy as an artifact.
func (p Package) Resolve() (*artifact.Artifact, error) {
	if p.Name == "" {
		return nil, invalidf("package: name is required")
	}
	return artifact.Define(artifact.Config{
		ArchiveName: "package-" + content.ShortDigest("pkg="+p.Name),
		Commands: []string{
			fmt.Sprintf("cp -R node_modules/%s/. {{.Stage}}/", p.Name),
		},
	})
}

// Checkout clones one branch of a git repository at depth 1.
type Checkout struct {
	URL    string `json:"url"`
	Branch string `json:"branch"`
}

// Resolve synthesizes the checkout as an artifact.
func (c Checkout) Resolve() (*artifact.Artifact, error) {
	if c.URL == "" {
		return nil, invalidf("checkout: url is required")
	}
	branch := c.Branch
	if branch == "" {
		branch = "master"
	}
	return artifact.Define(artifact.Config{
		ArchiveName: "checkout-" + content.ShortDigest("url="+c.URL, "branch="+branch),
		Commands: []string{
			fmt.Sprintf("git clone --quiet --depth 1 --branch %s %s {{.Stage}}", branch, c.URL),
			"rm -rf {{.Stage}}/.git",
		},
	})
}

// WebFonts fetches a generated Google WebFonts CSS bundle for a set of font
// families.
type WebFonts struct {
	Families []string `json:"families"`
}

// Resolve synthesizes the font bundle as an artifact.
func (w WebFonts) Resolve() (*artifact.Artifact, error) {
	if len(w.Families) == 0 {
		return nil, invalidf("webfonts: at least one family is required")
	}
	families := strings.Join(w.Families, "|")
	url := "https://fonts.googleapis.com/css?family=" + strings.ReplaceAll(families, " ", "+")
	parts := make([]string, len(w.Families))
	for i, f := range w.Families {
		parts[i] = "family=" + f
	}
	return artifact.Define(artifact.Config{
		ArchiveName: "webfonts-" + content.ShortDigest(parts...),
		Commands: []string{
			fmt.Sprintf("curl -fsSL -o {{.Stage}}/fonts.css '%s'", url),
		},
	})
}
