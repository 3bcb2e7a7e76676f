// Package wav encodes the RIFF/WAVE header of recorder files.
//
// Files are written for a known maximum duration: the header announces the
// full size up front and is patched in place with WriteAt when a file ends early.
package wav

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"
)

// Format describes interleaved integer PCM samples.
type Format struct {
	SampleRate int
	Channels   int
	Bits       int
}

// BlockAlign returns the size of one frame in bytes.
func (f Format) BlockAlign() int {
	return f.Channels * ((f.Bits + 7) / 8)
}

// ByteRate returns the number of bytes per second of signal.
func (f Format) ByteRate() int {
	return f.SampleRate * f.BlockAlign()
}

// Bytes returns the frame-aligned number of bytes covering d.
func (f Format) Bytes(d time.Duration) int64 {
	frames := int64(d) * int64(f.SampleRate) / int64(time.Second)
	return frames * int64(f.BlockAlign())
}

// Duration returns the signal time covered by n bytes.
func (f Format) Duration(n int64) time.Duration {
	if f.ByteRate() == 0 {
		return 0
	}
	return time.Duration(n * int64(time.Second) / int64(f.ByteRate()))
}

// Validate checks that the format can be encoded.
func (f Format) Validate() error {
	switch {
	case f.SampleRate <= 0:
		return errors.New("wav: sample rate must be positive")
	case f.Channels <= 0 || f.Channels > 0xffff:
		return errors.New("wav: invalid channel count")
	case f.Bits != 8 && f.Bits != 16 && f.Bits != 24 && f.Bits != 32:
		return fmt.Errorf("wav: unsupported sample resolution %d bits", f.Bits)
	}
	return nil
}

// INFO tag identifiers.
const (
	TagSoftware = "ISFT"
	TagDateTime = "IDIT"
	TagCPU      = "ICPU"
	TagChannels = "ICHN"
	TagGain     = "IGAN"
	TagDeviceID = "IDID"
)

// Tag is one entry of the LIST/INFO chunk.
type Tag struct {
	ID    string
	Value string
}

// Header is the header of one WAVE file.
type Header struct {
	Format Format
	Tags   []Tag
}

// SetTag sets or replaces the value of a tag.
func (h *Header) SetTag(id, value string) {
	for i := range h.Tags {
		if h.Tags[i].ID == id {
			h.Tags[i].Value = value
			return
		}
	}
	h.Tags = append(h.Tags, Tag{ID: id, Value: value})
}

// Tag returns the value of a tag.
func (h *Header) Tag(id string) string {
	for _, t := range h.Tags {
		if t.ID == id {
			return t.Value
		}
	}
	return ""
}

func tagSize(v string) int {
	n := len(v) + 1
	return n + n%2
}

func (h *Header) listSize() int {
	if len(h.Tags) == 0 {
		return 0
	}
	n := 4
	for _, t := range h.Tags {
		n += 8 + tagSize(t.Value)
	}
	return n
}

// Size returns the encoded header length in bytes.
func (h *Header) Size() int {
	n := 12 + 8 + 16 + 8
	if l := h.listSize(); l > 0 {
		n += 8 + l
	}
	return n
}

// Encode returns the header announcing dataSize bytes of samples.
func (h *Header) Encode(dataSize uint32) []byte {
	le := binary.LittleEndian
	buf := make([]byte, 0, h.Size())
	f := h.Format

	buf = append(buf, "RIFF"...)
	buf = le.AppendUint32(buf, uint32(h.Size()-8)+dataSize)
	buf = append(buf, "WAVE"...)

	buf = append(buf, "fmt "...)
	buf = le.AppendUint32(buf, 16)
	buf = le.AppendUint16(buf, 1)
	buf = le.AppendUint16(buf, uint16(f.Channels))
	buf = le.AppendUint32(buf, uint32(f.SampleRate))
	buf = le.AppendUint32(buf, uint32(f.ByteRate()))
	buf = le.AppendUint16(buf, uint16(f.BlockAlign()))
	buf = le.AppendUint16(buf, uint16(f.Bits))

	if l := h.listSize(); l > 0 {
		buf = append(buf, "LIST"...)
		buf = le.AppendUint32(buf, uint32(l))
		buf = append(buf, "INFO"...)
		for _, t := range h.Tags {
			id := (t.ID + "    ")[:4]
			n := tagSize(t.Value)
			buf = append(buf, id...)
			buf = le.AppendUint32(buf, uint32(n))
			buf = append(buf, t.Value...)
			buf = append(buf, make([]byte, n-len(t.Value))...)
		}
	}

	buf = append(buf, "data"...)
	buf = le.AppendUint32(buf, dataSize)
	return buf
}

// Write writes the header announcing dataSize bytes of samples.
func (h *Header) Write(w io.Writer, dataSize uint32) error {
	_, err := w.Write(h.Encode(dataSize))
	return err
}

// Patch rewrites the RIFF and data size fields of a written header in place.
func (h *Header) Patch(w io.WriterAt, dataSize uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(h.Size()-8)+dataSize)
	if _, err := w.WriteAt(b[:], 4); err != nil {
		return fmt.Errorf("patch riff size: %w", err)
	}
	binary.LittleEndian.PutUint32(b[:], dataSize)
	if _, err := w.WriteAt(b[:], int64(h.Size()-4)); err != nil {
		return fmt.Errorf("patch data size: %w", err)
	}
	return nil
}
