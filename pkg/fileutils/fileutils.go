package fileutils

import "os"

// Safe defaults for file permissions.
const (
	Regular   os.FileMode = 0644
	Directory os.FileMode = 0755
)
