// Package stream moves bytes from the acquisition ring into capped-duration
// WAV files on one storage device.
//
// A Writer is polled: every call to Step performs at most one bounded read
// and write so that a tick never blocks on the medium.
package stream

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bft-labs/fieldlog/internal/domain"
	"github.com/bft-labs/fieldlog/internal/ports"
	"github.com/bft-labs/fieldlog/pkg/log"
	"github.com/bft-labs/fieldlog/pkg/wav"
)

// Writer binds a storage device to the data source. It owns at most one open
// file and a private read cursor into the source ring.
//
// A Writer is not safe for concurrent use.
type Writer struct {
	source ports.DataSource
	device ports.StorageDevice
	clock  ports.Clock
	format wav.Format
	logger log.Logger

	starveTimeout time.Duration
	chunk         int

	maxFileTime   time.Duration
	writeInterval time.Duration
	capBytes      int64
	intervalBytes uint64

	file     ports.File
	header   *wav.Header
	written  int64
	pos      uint64
	lastHead uint64
	lastData time.Time
	counter  int
	session  domain.FileSession
	buf      []byte
}

// Option configures a Writer.
type Option func(*Writer)

// WithLogger sets the logger. The device name is added to every line.
func WithLogger(l log.Logger) Option {
	return func(w *Writer) {
		w.logger = l
	}
}

// WithStarveTimeout reports ErrSourceStarved when a running source produced
// nothing for d. Zero disables the check.
func WithStarveTimeout(d time.Duration) Option {
	return func(w *Writer) {
		w.starveTimeout = d
	}
}

// WithChunkSize limits the bytes moved by one Step. The default is half the
// source ring.
func WithChunkSize(n int) Option {
	return func(w *Writer) {
		w.chunk = n
	}
}

// New creates a writer for device.
func New(source ports.DataSource, device ports.StorageDevice, clock ports.Clock, format wav.Format, opts ...Option) *Writer {
	w := &Writer{
		source: source,
		device: device,
		clock:  clock,
		format: format,
		logger: log.NewNoopLogger(),
		chunk:  source.Capacity() / 2,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = log.With(w.logger, log.Device(device.Name()))
	if w.chunk < w.format.BlockAlign() {
		w.chunk = w.format.BlockAlign()
	}
	w.chunk -= w.chunk % w.format.BlockAlign()
	w.buf = make([]byte, w.chunk)
	return w
}

// Device returns the storage device of the writer.
func (w *Writer) Device() ports.StorageDevice { return w.device }

// Begin configures the file duration cap and the minimum amount of signal
// time collected before a write. The read cursor starts at the source head.
// No file is opened.
func (w *Writer) Begin(maxFileTime, writeInterval time.Duration) {
	w.maxFileTime = maxFileTime
	w.writeInterval = writeInterval
	w.capBytes = w.format.Bytes(maxFileTime)
	w.intervalBytes = uint64(w.format.Bytes(writeInterval))
	w.pos = w.source.Head()
	w.lastHead = w.pos
	w.lastData = w.clock.Now()
	w.counter = 0
}

// SyncTo moves the read cursor to the one of other so that both writers
// store the same bytes.
func (w *Writer) SyncTo(other *Writer) {
	w.pos = other.pos
	w.lastHead = other.lastHead
	w.lastData = other.lastData
}

// Open creates name on the device, writes a header announcing the full
// duration cap and performs one write pass. A previously open file is
// finalised first. The error of the write pass is returned with the number
// of bytes it wrote; the file stays open in that case.
func (w *Writer) Open(name string, header *wav.Header) (int, error) {
	if w.file != nil {
		if err := w.Finish(domain.CloseRotated); err != nil {
			w.logger.Warn("finalising previous file failed", log.Err(err))
		}
	}
	f, err := w.device.Create(name)
	if err != nil {
		return 0, fmt.Errorf("%w: %s on %s: %v", domain.ErrOpenFailed, name, w.device.Name(), err)
	}
	if err := header.Write(f, uint32(w.capBytes)); err != nil {
		f.Close()
		return 0, fmt.Errorf("%w: header of %s: %v", domain.ErrOpenFailed, name, err)
	}
	w.counter++
	w.file = f
	w.header = header
	w.written = 0
	w.session = domain.FileSession{
		ID:          uuid.NewString(),
		Device:      w.device.Name(),
		Name:        name,
		Counter:     w.counter,
		Start:       w.clock.Now(),
		MaxDuration: w.maxFileTime,
	}
	w.logger.Debug("file opened", log.String("file", name), log.Int("counter", w.counter))
	return w.Step()
}

// IsOpen reports whether a file is open.
func (w *Writer) IsOpen() bool { return w.file != nil }

// Full reports whether the open file reached its duration cap.
func (w *Writer) Full() bool { return w.file != nil && w.written >= w.capBytes }

// Session returns the current or last session.
func (w *Writer) Session() domain.FileSession { return w.session }

// Position returns the monotonic index of the next byte to store.
func (w *Writer) Position() uint64 { return w.pos }

// Available returns the number of unconsumed bytes in the source ring.
func (w *Writer) Available() uint64 {
	head := w.source.Head()
	if head < w.pos {
		return 0
	}
	return head - w.pos
}

// Pending reports whether Step has work: the source stopped, a write
// interval worth of data is buffered, or the rest of the file is buffered.
func (w *Writer) Pending() bool {
	if !w.source.Running() {
		return true
	}
	avail := w.Available()
	if avail >= w.intervalBytes {
		return true
	}
	if w.file != nil {
		remaining := w.capBytes - w.written
		return remaining > 0 && avail >= uint64(remaining)
	}
	return false
}

// Step moves at most one chunk of buffered data into the open file.
// It returns (0, nil) when nothing is pending.
func (w *Writer) Step() (int, error) {
	if w.file == nil {
		return 0, domain.ErrNotOpen
	}
	if w.written >= w.capBytes {
		return 0, domain.ErrAlreadyFull
	}
	if !w.source.Running() {
		return 0, domain.ErrSourceStarved
	}
	now := w.clock.Now()
	head := w.source.Head()
	if head != w.lastHead {
		w.lastHead = head
		w.lastData = now
	} else if w.starveTimeout > 0 && now.Sub(w.lastData) > w.starveTimeout {
		return 0, fmt.Errorf("%w: no data for %v", domain.ErrSourceStarved, now.Sub(w.lastData))
	}
	avail := w.Available()
	if avail > uint64(w.source.Capacity()) {
		return 0, fmt.Errorf("%w: %d bytes behind, ring holds %d", domain.ErrOverrun, avail, w.source.Capacity())
	}
	if !w.Pending() {
		return 0, nil
	}

	n := min(avail, uint64(w.chunk), uint64(w.capBytes-w.written))
	rn, err := w.source.ReadAt(w.buf[:n], w.pos)
	if errors.Is(err, ports.ErrDataLost) {
		return 0, fmt.Errorf("%w: %v", domain.ErrOverrun, err)
	}
	if err != nil {
		return 0, fmt.Errorf("read source: %w", err)
	}
	if rn == 0 {
		return 0, nil
	}

	wn, err := w.file.Write(w.buf[:rn])
	if wn <= 0 {
		if err != nil {
			return 0, fmt.Errorf("%w: %v", domain.ErrNothingWritten, err)
		}
		return 0, domain.ErrNothingWritten
	}
	if err != nil {
		w.logger.Warn("short write", log.Int("requested", rn), log.Int("written", wn), log.Err(err))
	}
	w.pos += uint64(wn)
	w.written += int64(wn)
	w.session.Bytes = w.written
	w.session.Duration = w.format.Duration(w.written)
	return wn, nil
}

// Resync moves a cursor that was lapped by the producer to half a ring
// behind the head and returns the number of still-buffered bytes it skipped.
// The result is always between 0 and half the ring capacity.
func (w *Writer) Resync() int {
	head := w.source.Head()
	capacity := uint64(w.source.Capacity())
	half := capacity / 2
	half -= half % uint64(w.format.BlockAlign())

	var oldest, target uint64
	if head > capacity {
		oldest = head - capacity
	}
	if head > half {
		target = head - half
	}
	if w.pos >= target {
		return 0
	}
	from := max(w.pos, oldest)
	w.pos = target
	w.lastHead = head
	w.lastData = w.clock.Now()
	return int(target - from)
}

// EndSession finalises and closes the file once its duration cap is reached.
// It returns true exactly once per file.
func (w *Writer) EndSession() bool {
	if w.file == nil || w.written < w.capBytes {
		return false
	}
	if err := w.Finish(domain.CloseRotated); err != nil {
		w.logger.Warn("closing full file failed", log.Err(err))
	}
	return true
}

// Finish finalises the open file now. The header is patched when fewer bytes
// than announced were written.
func (w *Writer) Finish(reason string) error {
	if w.file == nil {
		return nil
	}
	f := w.file
	w.file = nil
	w.session.CloseReason = reason

	var errs []error
	if w.written < w.capBytes {
		if err := w.header.Patch(f, uint32(w.written)); err != nil {
			errs = append(errs, err)
		}
	}
	if err := f.Sync(); err != nil {
		errs = append(errs, err)
	}
	if err := f.Close(); err != nil {
		errs = append(errs, err)
	}
	w.logger.Debug("file closed",
		log.String("file", w.session.Name),
		log.String("reason", reason),
		log.Int64("bytes", w.written),
	)
	return errors.Join(errs...)
}

// Close finalises the open file at shutdown.
func (w *Writer) Close() error {
	return w.Finish(domain.CloseShutdown)
}
