// Package template renders artifact command lines. Commands are written as
// text/template lines over an explicit Data record instead of closures, so
// a descriptor stays plain, comparable data.
package template

import (
	"bytes"
	"os"
	"os/exec"
	"strings"
	gotemplate "text/template"
)

// Data is the full set of values a command line may reference.
type Data struct {
	// Stage is the staging directory the commands run against.
	Stage string
	// Name is the artifact's archive name.
	Name string
	// Git carries ShaShort, Sha and Branch of the working tree, nil-valued
	// when not in a repository.
	Git map[string]*string
	// Environ is the process environment.
	Environ map[string]string
}

// NewData captures git and environment state once for a render pass.
func NewData() Data {
	return Data{Git: gitMap(), Environ: environMap()}
}

// Render evaluates each command line against data.
func Render(lines []string, data Data) ([]string, error) {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		tpl, err := gotemplate.New("").Parse(line)
		if err != nil {
			return nil, err
		}
		buf := bytes.NewBuffer(nil)
		if err := tpl.Execute(buf, data); err != nil {
			return nil, err
		}
		out = append(out, buf.String())
	}
	return out, nil
}

func sh(arg string, args ...string) *string {
	out, err := exec.Command(arg, args...).CombinedOutput()
	if err != nil {
		return nil
	}
	s := strings.TrimSpace(string(out))
	return &s
}

func gitMap() map[string]*string {
	return map[string]*string{
		"ShaShort": sh("git", "rev-parse", "--short", "HEAD"),
		"Sha":      sh("git", "rev-parse", "HEAD"),
		"Branch":   sh("git", "rev-parse", "--abbrev-ref", "HEAD"),
	}
}

func environMap() map[string]string {
	m := map[string]string{}
	for _, val := range os.Environ() {
		spl := strings.SplitN(val, "=", 2)
		if len(spl) != 2 {
			continue
		}
		m[spl[0]] = spl[1]
	}
	return m
}
