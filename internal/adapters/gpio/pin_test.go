package gpio

import (
	"os"
	"path/filepath"
	"testing"
)

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func TestPin_ExportedLine(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "gpio17")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatal(err)
	}

	p, err := Open(root, 17, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := readFile(t, filepath.Join(dir, "direction")); got != "out" {
		t.Errorf("direction = %q, want out", got)
	}
	if got := readFile(t, filepath.Join(dir, "value")); got != "0" {
		t.Errorf("initial value = %q, want 0", got)
	}

	p.Set(true)
	if got := readFile(t, filepath.Join(dir, "value")); got != "1" {
		t.Errorf("value = %q, want 1", got)
	}
	p.Set(false)
	if got := readFile(t, filepath.Join(dir, "value")); got != "0" {
		t.Errorf("value = %q, want 0", got)
	}
}

func TestPin_ExportFails(t *testing.T) {
	root := filepath.Join(t.TempDir(), "missing")
	if _, err := Open(root, 4, nil); err == nil {
		t.Fatal("expected export error")
	}
}

func TestOpenAll(t *testing.T) {
	root := t.TempDir()
	for _, n := range []string{"gpio5", "gpio6"} {
		if err := os.Mkdir(filepath.Join(root, n), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	pins, err := OpenAll(root, []int{5, 6}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(pins) != 2 {
		t.Fatalf("got %d pins, want 2", len(pins))
	}
	if _, err := OpenAll(root, []int{5, 7}, nil); err == nil {
		t.Error("expected error for missing line")
	}
}
