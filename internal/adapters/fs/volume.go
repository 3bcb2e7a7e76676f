// Package fs implements storage devices on a mounted file system, typically
// the mount point of an SD card.
package fs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/fieldlog/internal/domain"
	"github.com/bft-labs/fieldlog/internal/naming"
	"github.com/bft-labs/fieldlog/internal/ports"
	"github.com/bft-labs/fieldlog/pkg/log"
)

// Volume implements ports.StorageDevice on a directory tree rooted at a mount point.
type Volume struct {
	mu      sync.Mutex
	name    string
	root    string
	dir     string
	ended   bool
	counter int
	watcher *fsnotify.Watcher
	logger  log.Logger
}

// Option configures a Volume.
type Option func(*Volume)

// WithLogger sets the logger used for watcher and cleanup messages.
func WithLogger(l log.Logger) Option {
	return func(v *Volume) {
		v.logger = l
	}
}

// Open creates a volume rooted at root. The volume starts unavailable when
// root does not exist.
func Open(name, root string, opts ...Option) *Volume {
	v := &Volume{
		name:   name,
		root:   root,
		logger: log.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(v)
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		v.logger.Warn("storage root not found", log.Device(name), log.String("root", root))
		v.ended = true
		return v
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		v.logger.Warn("removal watcher unavailable", log.Device(name), log.Err(err))
		return v
	}
	if err := w.Add(root); err != nil {
		v.logger.Warn("cannot watch storage root", log.Device(name), log.Err(err))
	}
	v.watcher = w
	return v
}

// Close stops the removal watcher.
func (v *Volume) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.watcher == nil {
		return nil
	}
	err := v.watcher.Close()
	v.watcher = nil
	return err
}

// Name implements ports.StorageDevice.
func (v *Volume) Name() string { return v.name }

// Root returns the mount point.
func (v *Volume) Root() string { return v.root }

// Available implements ports.StorageDevice. Pending watcher events are
// consumed without blocking; removal of the data directory or of the
// mount point ends the volume.
func (v *Volume) Available() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.drainEventsLocked()
	return !v.ended
}

func (v *Volume) drainEventsLocked() {
	if v.watcher == nil {
		return
	}
	for {
		select {
		case ev, ok := <-v.watcher.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
				continue
			}
			name := filepath.Clean(ev.Name)
			if name == filepath.Clean(v.root) || (v.dir != "" && name == v.dataPath()) {
				if !v.ended {
					v.logger.Error("storage removed", log.Device(v.name), log.String("path", name))
				}
				v.ended = true
			}
		case err, ok := <-v.watcher.Errors:
			if !ok {
				return
			}
			v.logger.Warn("removal watcher error", log.Device(v.name), log.Err(err))
		default:
			return
		}
	}
}

// End implements ports.StorageDevice.
func (v *Volume) End() {
	v.mu.Lock()
	v.ended = true
	v.mu.Unlock()
}

// CheckCapacity implements ports.StorageDevice.
func (v *Volume) CheckCapacity(minBytes uint64) bool {
	if !v.Available() {
		return false
	}
	free := v.Free()
	if free < minBytes {
		v.logger.Warn("not enough free space",
			log.Device(v.name),
			log.Uint64("free", free),
			log.Uint64("required", minBytes),
		)
		v.End()
		return false
	}
	return true
}

// Free implements ports.StorageDevice.
func (v *Volume) Free() uint64 {
	free, err := freeSpace(v.root)
	if err != nil {
		v.logger.Warn("free space query failed", log.Device(v.name), log.Err(err))
		return 0
	}
	return free
}

func (v *Volume) dataPath() string {
	return filepath.Join(v.root, v.dir)
}

// SetDataDir implements ports.StorageDevice.
func (v *Volume) SetDataDir(dir string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.ended {
		return fmt.Errorf("%s: %w", v.name, domain.ErrDeviceUnavailable)
	}
	if v.watcher != nil && v.dir != "" {
		_ = v.watcher.Remove(v.dataPath())
	}
	v.dir = dir
	if err := os.MkdirAll(v.dataPath(), 0o755); err != nil {
		return fmt.Errorf("create data directory on %s: %w", v.name, err)
	}
	if v.watcher != nil {
		if err := v.watcher.Add(v.dataPath()); err != nil {
			v.logger.Warn("cannot watch data directory", log.Device(v.name), log.Err(err))
		}
	}
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
	dir := v.dataPath()
	return naming.NextFree(name, &v.counter, func(n string) bool {
		_, err := os.Lstat(filepath.Join(dir, n))
		return !errors.Is(err, os.ErrNotExist)
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
	return v.open(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC)
}

// Append implements ports.StorageDevice.
func (v *Volume) Append(name string) (ports.File, error) {
	return v.open(name, os.O_WRONLY|os.O_CREATE|os.O_APPEND)
}

func (v *Volume) open(name string, flag int) (ports.File, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.ended {
		return nil, fmt.Errorf("%s: %w", v.name, domain.ErrDeviceUnavailable)
	}
	f, err := os.OpenFile(filepath.Join(v.dataPath(), name), flag, 0o644)
	if err != nil {
		return nil, err
	}
	return &file{File: f, name: name}, nil
}

// CleanDir implements ports.StorageDevice. The newest directory below the
// mount point is the one modified last.
func (v *Volume) CleanDir(minSize int64, ext string) (int, error) {
	if !v.Available() {
		return 0, fmt.Errorf("%s: %w", v.name, domain.ErrDeviceUnavailable)
	}
	newest, err := newestDir(v.root)
	if err != nil || newest == "" {
		return 0, err
	}
	ents, err := os.ReadDir(newest)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, e := range ents {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ext) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return removed, err
		}
		if info.Size() >= minSize {
			continue
		}
		p := filepath.Join(newest, e.Name())
		if err := os.Remove(p); err != nil {
			v.logger.Error("clean: remove failed", log.Device(v.name), log.String("file", p), log.Err(err))
			continue
		}
		v.logger.Info("removed incomplete recording",
			log.Device(v.name),
			log.String("file", p),
			log.Int64("size", info.Size()),
		)
		removed++
	}
	return removed, nil
}

func newestDir(root string) (string, error) {
	ents, err := os.ReadDir(root)
	if err != nil {
		return "", err
	}
	type dir struct {
		path string
		mod  int64
	}
	var dirs []dir
	for _, e := range ents {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return "", err
		}
		dirs = append(dirs, dir{filepath.Join(root, e.Name()), info.ModTime().UnixNano()})
	}
	if len(dirs) == 0 {
		return "", nil
	}
	sort.Slice(dirs, func(i, j int) bool {
		if dirs[i].mod != dirs[j].mod {
			return dirs[i].mod < dirs[j].mod
		}
		return dirs[i].path < dirs[j].path
	})
	return dirs[len(dirs)-1].path, nil
}

type file struct {
	*os.File
	name string
}

// Name returns the name relative to the data directory.
func (f *file) Name() string { return f.name }
