package pwm

import "os"

// FS is the filesystem capability a Channel needs.
//
// WriteText must write content in a single open/write/close cycle.
type FS interface {
	WriteText(path, content string) error
	Exists(path string) bool
}

// OSFS implements FS on the real filesystem.
type OSFS struct{}

// Exists follows symlinks; pwmchipN entries in sysfs are usually links.
func (OSFS) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
