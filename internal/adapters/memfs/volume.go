// Package memfs implements an in-memory storage device with fault injection.
// It backs the engine tests and bench runs without a card.
package memfs

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/bft-labs/fieldlog/internal/domain"
	"github.com/bft-labs/fieldlog/internal/naming"
	"github.com/bft-labs/fieldlog/internal/ports"
)

var errClosed = errors.New("memfs: file already closed")

// Volume is an in-memory ports.StorageDevice.
type Volume struct {
	mu      sync.Mutex
	name    string
	dir     string
	dirs    []string
	files   map[string]*entry
	size    uint64
	ended   bool
	counter int

	failCreate bool
	zeroWrites bool
	creates    int
	open       int
}

type entry struct {
	data []byte
}

// New creates a volume of the given size in bytes.
func New(name string, size uint64) *Volume {
	return &Volume{
		name:  name,
		files: make(map[string]*entry),
		size:  size,
	}
}

// Name implements ports.StorageDevice.
func (v *Volume) Name() string { return v.name }

// Available implements ports.StorageDevice.
func (v *Volume) Available() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return !v.ended
}

// End implements ports.StorageDevice.
func (v *Volume) End() {
	v.mu.Lock()
	v.ended = true
	v.mu.Unlock()
}

// CheckCapacity implements ports.StorageDevice.
func (v *Volume) CheckCapacity(minBytes uint64) bool {
	if v.Free() < minBytes {
		v.End()
		return false
	}
	return v.Available()
}

// Free implements ports.StorageDevice.
func (v *Volume) Free() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	var used uint64
	for _, e := range v.files {
		used += uint64(len(e.data))
	}
	if used >= v.size {
		return 0
	}
	return v.size - used
}

// SetDataDir implements ports.StorageDevice.
func (v *Volume) SetDataDir(dir string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.ended {
		return domain.ErrDeviceUnavailable
	}
	v.dir = dir
	for _, d := range v.dirs {
		if d == dir {
			return nil
		}
	}
	v.dirs = append(v.dirs, dir)
	return nil
}

// DataDir implements ports.StorageDevice.
func (v *Volume) DataDir() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.dir
}

// NextFilename implements ports.StorageDevice.
func (v *Volume) NextFilename(name string) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.ended {
		return "", fmt.Errorf("%s: %w", v.name, domain.ErrDeviceUnavailable)
	}
	return naming.NextFree(name, &v.counter, func(n string) bool {
		_, ok := v.files[path.Join(v.dir, n)]
		return ok
	})
}

// ResetFileCounter implements ports.StorageDevice.
func (v *Volume) ResetFileCounter() {
	v.mu.Lock()
	v.counter = 0
	v.mu.Unlock()
}

// Create implements ports.StorageDevice.
func (v *Volume) Create(name string) (ports.File, error) {
	return v.openFile(name, true)
}

// Append implements ports.StorageDevice.
func (v *Volume) Append(name string) (ports.File, error) {
	return v.openFile(name, false)
}

func (v *Volume) openFile(name string, truncate bool) (ports.File, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.ended {
		return nil, fmt.Errorf("%s: %w", v.name, domain.ErrDeviceUnavailable)
	}
	if v.failCreate {
		return nil, fmt.Errorf("create %s on %s: injected failure", name, v.name)
	}
	p := path.Join(v.dir, name)
	e, ok := v.files[p]
	if !ok || truncate {
		e = &entry{}
		v.files[p] = e
	}
	v.creates++
	v.open++
	return &file{vol: v, e: e, name: name}, nil
}

// CleanDir implements ports.StorageDevice.
func (v *Volume) CleanDir(minSize int64, ext string) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.dirs) == 0 {
		return 0, nil
	}
	newest := v.dirs[len(v.dirs)-1]
	removed := 0
	for p, e := range v.files {
		if path.Dir(p) == newest && strings.HasSuffix(p, ext) && int64(len(e.data)) < minSize {
			delete(v.files, p)
			removed++
		}
	}
	return removed, nil
}

// Remove simulates pulling the card out.
func (v *Volume) Remove() { v.End() }

// SetSize changes the capacity of the volume.
func (v *Volume) SetSize(size uint64) {
	v.mu.Lock()
	v.size = size
	v.mu.Unlock()
}

// FailCreate makes every following Create and Append fail.
func (v *Volume) FailCreate(fail bool) {
	v.mu.Lock()
	v.failCreate = fail
	v.mu.Unlock()
}

// ZeroWrites makes every following write accept zero bytes.
func (v *Volume) ZeroWrites(zero bool) {
	v.mu.Lock()
	v.zeroWrites = zero
	v.mu.Unlock()
}

// Files lists the file paths in dir, sorted.
func (v *Volume) Files(dir string) []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	var out []string
	for p := range v.files {
		if path.Dir(p) == path.Clean(dir) {
			out = append(out, path.Base(p))
		}
	}
	sort.Strings(out)
	return out
}

// Data returns a copy of the contents of the file at dir/name.
func (v *Volume) Data(dir, name string) ([]byte, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	e, ok := v.files[path.Join(dir, name)]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), e.data...), true
}

// Put stores a file directly, for example a leftover of an earlier run.
func (v *Volume) Put(dir, name string, data []byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.files[path.Join(dir, name)] = &entry{data: append([]byte(nil), data...)}
	for _, d := range v.dirs {
		if d == dir {
			return
		}
	}
	v.dirs = append(v.dirs, dir)
}

// OpenFiles returns the number of files not closed yet.
func (v *Volume) OpenFiles() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.open
}

// Creates returns the number of successful Create and Append calls.
func (v *Volume) Creates() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.creates
}

type file struct {
	vol    *Volume
	e      *entry
	name   string
	closed bool
}

func (f *file) Write(p []byte) (int, error) {
	f.vol.mu.Lock()
	defer f.vol.mu.Unlock()
	if f.closed {
		return 0, errClosed
	}
	if f.vol.zeroWrites || f.vol.ended {
		return 0, nil
	}
	f.e.data = append(f.e.data, p...)
	return len(p), nil
}

func (f *file) WriteAt(p []byte, off int64) (int, error) {
	f.vol.mu.Lock()
	defer f.vol.mu.Unlock()
	if f.closed {
		return 0, errClosed
	}
	if end := int(off) + len(p); end > len(f.e.data) {
		f.e.data = append(f.e.data, make([]byte, end-len(f.e.data))...)
	}
	copy(f.e.data[off:], p)
	return len(p), nil
}

func (f *file) Sync() error { return nil }

func (f *file) Close() error {
	f.vol.mu.Lock()
	defer f.vol.mu.Unlock()
	if f.closed {
		return errClosed
	}
	f.closed = true
	f.vol.open--
	return nil
}

func (f *file) Name() string { return f.name }
