package memfs

import (
	"errors"
	"testing"

	"github.com/bft-labs/fieldlog/internal/domain"
)

func TestVolume_Faults(t *testing.T) {
	v := New("primary", 1000)
	if err := v.SetDataDir("d"); err != nil {
		t.Fatal(err)
	}

	f, err := v.Create("a.wav")
	if err != nil {
		t.Fatal(err)
	}
	if n, _ := f.Write(make([]byte, 100)); n != 100 {
		t.Fatalf("Write() = %d, want 100", n)
	}
	if v.Free() != 900 {
		t.Errorf("Free() = %d, want 900", v.Free())
	}

	v.ZeroWrites(true)
	if n, err := f.Write([]byte("x")); n != 0 || err != nil {
		t.Errorf("Write() = %d, %v with zero writes", n, err)
	}
	if v.OpenFiles() != 1 {
		t.Errorf("OpenFiles() = %d, want 1", v.OpenFiles())
	}
	f.Close()
	if v.OpenFiles() != 0 {
		t.Errorf("OpenFiles() = %d after Close", v.OpenFiles())
	}

	v.FailCreate(true)
	if _, err := v.Create("b.wav"); err == nil {
		t.Error("Create() succeeded with injected failure")
	}

	v.Remove()
	if _, err := v.NextFilename("c.wav"); !errors.Is(err, domain.ErrDeviceUnavailable) {
		t.Errorf("NextFilename() error = %v, want ErrDeviceUnavailable", err)
	}
	if v.CheckCapacity(1) {
		t.Error("CheckCapacity() = true on removed volume")
	}
}

func TestVolume_CleanDir(t *testing.T) {
	v := New("primary", 1<<20)
	v.Put("old", "x.wav", nil)
	v.Put("new", "x.wav", make([]byte, 10))
	v.Put("new", "y.wav", make([]byte, 2000))

	n, err := v.CleanDir(1024, ".wav")
	if err != nil || n != 1 {
		t.Fatalf("CleanDir() = %d, %v", n, err)
	}
	if got := v.Files("new"); len(got) != 1 || got[0] != "y.wav" {
		t.Errorf("Files(new) = %v", got)
	}
	if got := v.Files("old"); len(got) != 1 {
		t.Errorf("Files(old) = %v", got)
	}
}
