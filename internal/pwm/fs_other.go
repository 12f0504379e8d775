//go:build !linux

package pwm

import "os"

// WriteText keeps the single-write, no-truncate semantics of the linux
// implementation so tests against a temp tree behave the same everywhere.
func (OSFS) WriteText(path, content string) error {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	_, werr := f.WriteString(content)
	cerr := f.Close()
	if werr != nil {
		return werr
	}
	return cerr
}
