// Package fileutils shells out to system tools for archive handling.
package fileutils

import (
	"os"
	"os/exec"
)

// Tar shells out to GNU tar to pack a directory into a gzipped archive.
func Tar(src, dest string) error {
	cmd := exec.Command("tar", "-zcf", dest, "-C", src, ".")
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// Untar shells out to GNU tar to unpack a gzipped archive into dest, which
// is created if missing.
func Untar(src, dest string) error {
	if err := os.MkdirAll(dest, Directory); err != nil {
		return err
	}
	cmd := exec.Command("tar", "-zxf", src, "-C", dest)
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
