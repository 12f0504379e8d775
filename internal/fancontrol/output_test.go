package fancontrol

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pwmctl/internal/pwm"
)

func makeSysfsChannel(t *testing.T, root string) string {
	t.Helper()
	chip := filepath.Join(root, "pwmchip0")
	dir := filepath.Join(chip, "pwm1")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	files := []string{
		filepath.Join(chip, "export"), filepath.Join(chip, "unexport"),
		filepath.Join(dir, "period"), filepath.Join(dir, "duty_cycle"), filepath.Join(dir, "enable"),
	}
	for _, f := range files {
		if err := os.WriteFile(f, nil, 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}
	return chip
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	return string(b)
}

func TestOpenChannel_ConfiguresAndReleases(t *testing.T) {
	root := t.TempDir()
	chip := makeSysfsChannel(t, root)

	out, err := openOutput(Config{Backend: "pwm", Root: root, Chip: 0, Channel: 1, PeriodNS: 40000})
	if err != nil {
		t.Fatalf("openOutput: %v", err)
	}
	// Already exported: export must not be written.
	if got := readFile(t, filepath.Join(chip, "export")); got != "" {
		t.Fatalf("export=%q want empty", got)
	}
	if got := readFile(t, filepath.Join(chip, "pwm1", "period")); got != "40000" {
		t.Fatalf("period=%q want 40000", got)
	}
	if got := readFile(t, filepath.Join(chip, "pwm1", "enable")); got != "1" {
		t.Fatalf("enable=%q want 1", got)
	}

	if err := out.SetDutyPercent(50); err != nil {
		t.Fatalf("SetDutyPercent: %v", err)
	}
	if got := readFile(t, filepath.Join(chip, "pwm1", "duty_cycle")); got != "20000" {
		t.Fatalf("duty_cycle=%q want 20000", got)
	}

	if err := out.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := readFile(t, filepath.Join(chip, "pwm1", "enable")); got != "0" {
		t.Fatalf("enable=%q want 0", got)
	}
	if got := readFile(t, filepath.Join(chip, "unexport")); got != "1" {
		t.Fatalf("unexport=%q want 1", got)
	}
}

func TestOpenChannel_MissingDirAfterExport(t *testing.T) {
	old := exportSettle
	exportSettle = 20 * time.Millisecond
	t.Cleanup(func() { exportSettle = old })

	root := t.TempDir()
	chip := filepath.Join(root, "pwmchip0")
	if err := os.MkdirAll(chip, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(chip, "export"), nil, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := openOutput(Config{Root: root, Chip: 0, Channel: 3, PeriodNS: 1000}); err == nil {
		t.Fatalf("expected error when pwm3 never appears")
	}
	if got := readFile(t, filepath.Join(chip, "export")); got != "3" {
		t.Fatalf("export=%q want 3", got)
	}
}

func TestOpenOutput_UnknownBackend(t *testing.T) {
	if _, err := openOutput(Config{Backend: "rpio"}); err == nil {
		t.Fatalf("expected error")
	}
}

// exportingFS creates pwmN on export like the kernel does and fails writes
// to one attribute.
type exportingFS struct {
	dirs   map[string]bool
	writes []string
	failOn string
}

func (f *exportingFS) WriteText(path, content string) error {
	f.writes = append(f.writes, path+"="+content)
	switch filepath.Base(path) {
	case f.failOn:
		return errors.New("invalid argument")
	case "export":
		f.dirs[filepath.Join(filepath.Dir(path), "pwm"+content)] = true
	case "unexport":
		delete(f.dirs, filepath.Join(filepath.Dir(path), "pwm"+content))
	}
	return nil
}

func (f *exportingFS) Exists(path string) bool { return f.dirs[path] }

func TestOpenChannel_FailedSetupUnexports(t *testing.T) {
	fsys := &exportingFS{dirs: map[string]bool{}, failOn: "period"}

	_, err := openChannel(Config{Chip: 0, Channel: 2, PeriodNS: 40000}, pwm.WithRoot("/sys/class/pwm"), pwm.WithFS(fsys))
	if err == nil {
		t.Fatalf("expected error")
	}
	last := fsys.writes[len(fsys.writes)-1]
	if last != "/sys/class/pwm/pwmchip0/unexport=2" {
		t.Fatalf("last write=%q want unexport; writes=%v", last, fsys.writes)
	}
	if fsys.dirs["/sys/class/pwm/pwmchip0/pwm2"] {
		t.Fatalf("pwm2 still exported")
	}
}

func TestOpenChannel_FailedSetupKeepsPreexistingExport(t *testing.T) {
	fsys := &exportingFS{
		dirs:   map[string]bool{"/sys/class/pwm/pwmchip0/pwm2": true},
		failOn: "period",
	}

	if _, err := openChannel(Config{Chip: 0, Channel: 2, PeriodNS: 40000}, pwm.WithRoot("/sys/class/pwm"), pwm.WithFS(fsys)); err == nil {
		t.Fatalf("expected error")
	}
	for _, w := range fsys.writes {
		if strings.Contains(w, "/unexport=") {
			t.Fatalf("unexpected unexport: %v", fsys.writes)
		}
	}
}
