package stream

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bft-labs/fieldlog/internal/adapters/memfs"
	"github.com/bft-labs/fieldlog/internal/adapters/sim"
	"github.com/bft-labs/fieldlog/internal/domain"
	"github.com/bft-labs/fieldlog/pkg/wav"
)

// testFormat produces 2000 bytes per second.
var testFormat = wav.Format{SampleRate: 1000, Channels: 1, Bits: 16}

type fixture struct {
	clock  *sim.ManualClock
	source *sim.Source
	vol    *memfs.Volume
	w      *Writer
	header *wav.Header
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	clock := sim.NewManualClock(time.Date(2024, 8, 28, 10, 0, 0, 0, time.UTC))
	src, err := sim.NewSource(clock, testFormat, 4096)
	require.NoError(t, err)
	require.NoError(t, src.Start())
	vol := memfs.New("primary", 1<<30)
	require.NoError(t, vol.SetDataDir("d"))

	w := New(src, vol, clock, testFormat, opts...)
	w.Begin(time.Second, 100*time.Millisecond)
	return &fixture{
		clock:  clock,
		source: src,
		vol:    vol,
		w:      w,
		header: &wav.Header{Format: testFormat},
	}
}

func (f *fixture) dataSize(t *testing.T, name string) (uint32, int) {
	t.Helper()
	data, ok := f.vol.Data("d", name)
	require.True(t, ok, "file %s missing", name)
	return binary.LittleEndian.Uint32(data[f.header.Size()-4:]), len(data) - f.header.Size()
}

func TestWriter_FillsFileToCap(t *testing.T) {
	f := newFixture(t)

	f.clock.Advance(500 * time.Millisecond)
	n, err := f.w.Open("a.wav", f.header)
	require.NoError(t, err)
	require.Equal(t, 1000, n, "open performs one write pass")

	f.clock.Advance(600 * time.Millisecond)
	n, err = f.w.Step()
	require.NoError(t, err)
	require.Equal(t, 1000, n, "write is capped at the file size")
	require.True(t, f.w.Full())

	_, err = f.w.Step()
	require.ErrorIs(t, err, domain.ErrAlreadyFull)

	require.True(t, f.w.EndSession())
	require.False(t, f.w.EndSession(), "EndSession must be true once")
	require.False(t, f.w.EndSession())
	require.Equal(t, 0, f.vol.OpenFiles())

	s := f.w.Session()
	require.Equal(t, domain.CloseRotated, s.CloseReason)
	require.Equal(t, time.Second, s.Duration)
	require.Equal(t, int64(2000), s.Bytes)
	require.NotEmpty(t, s.ID)

	size, payload := f.dataSize(t, "a.wav")
	require.Equal(t, uint32(2000), size)
	require.Equal(t, 2000, payload)

	_, err = f.w.Step()
	require.ErrorIs(t, err, domain.ErrNotOpen)
}

func TestWriter_NothingPending(t *testing.T) {
	f := newFixture(t)
	_, err := f.w.Open("a.wav", f.header)
	require.NoError(t, err)

	f.clock.Advance(50 * time.Millisecond)
	require.False(t, f.w.Pending())
	n, err := f.w.Step()
	require.NoError(t, err)
	require.Zero(t, n)

	f.clock.Advance(50 * time.Millisecond)
	require.True(t, f.w.Pending())
}

func TestWriter_StepErrors(t *testing.T) {
	t.Run("not open", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.w.Step()
		require.ErrorIs(t, err, domain.ErrNotOpen)
	})

	t.Run("source stopped", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.w.Open("a.wav", f.header)
		require.NoError(t, err)
		f.source.Stop()
		_, err = f.w.Step()
		require.ErrorIs(t, err, domain.ErrSourceStarved)
		require.Equal(t, domain.FaultSourceStarved, domain.FaultKindOf(err))
	})

	t.Run("source stalled", func(t *testing.T) {
		f := newFixture(t, WithStarveTimeout(500*time.Millisecond))
		_, err := f.w.Open("a.wav", f.header)
		require.NoError(t, err)
		f.source.Stall(true)
		f.clock.Advance(400 * time.Millisecond)
		_, err = f.w.Step()
		require.NoError(t, err)
		f.clock.Advance(200 * time.Millisecond)
		_, err = f.w.Step()
		require.ErrorIs(t, err, domain.ErrSourceStarved)
	})

	t.Run("overrun", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.w.Open("a.wav", f.header)
		require.NoError(t, err)
		f.clock.Advance(3 * time.Second)
		_, err = f.w.Step()
		require.ErrorIs(t, err, domain.ErrOverrun)
	})

	t.Run("nothing written", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.w.Open("a.wav", f.header)
		require.NoError(t, err)
		f.vol.ZeroWrites(true)
		f.clock.Advance(200 * time.Millisecond)
		_, err = f.w.Step()
		require.ErrorIs(t, err, domain.ErrNothingWritten)
	})

	t.Run("open failed", func(t *testing.T) {
		f := newFixture(t)
		f.vol.FailCreate(true)
		_, err := f.w.Open("a.wav", f.header)
		require.ErrorIs(t, err, domain.ErrOpenFailed)
		require.False(t, f.w.IsOpen())
	})
}

func TestWriter_ResyncAfterOverrun(t *testing.T) {
	f := newFixture(t)
	_, err := f.w.Open("a.wav", f.header)
	require.NoError(t, err)

	f.clock.Advance(3 * time.Second)
	_, err = f.w.Step()
	require.ErrorIs(t, err, domain.ErrOverrun)

	skipped := f.w.Resync()
	require.Equal(t, 2048, skipped)
	require.Equal(t, uint64(2048), f.w.Available())

	n, err := f.w.Step()
	require.NoError(t, err)
	require.Equal(t, 2000, n)
}

func TestWriter_ResyncBounds(t *testing.T) {
	for _, lag := range []time.Duration{
		0,
		100 * time.Millisecond,
		1500 * time.Millisecond,
		2100 * time.Millisecond,
		5 * time.Second,
		time.Minute,
	} {
		f := newFixture(t)
		f.clock.Advance(lag)
		skipped := f.w.Resync()
		require.GreaterOrEqual(t, skipped, 0, "lag %v", lag)
		require.LessOrEqual(t, skipped, f.source.Capacity()/2, "lag %v", lag)
		require.LessOrEqual(t, f.w.Available(), uint64(f.source.Capacity()), "lag %v", lag)
	}
}

func TestWriter_SingleOpenFile(t *testing.T) {
	f := newFixture(t)
	for _, name := range []string{"a.wav", "b.wav", "c.wav"} {
		f.clock.Advance(300 * time.Millisecond)
		_, err := f.w.Open(name, f.header)
		require.NoError(t, err)
		require.Equal(t, 1, f.vol.OpenFiles())
	}
	require.NoError(t, f.w.Close())
	require.Equal(t, 0, f.vol.OpenFiles())
	require.NoError(t, f.w.Close(), "Close without an open file is a no-op")
}

func TestWriter_CloseEarlyPatchesHeader(t *testing.T) {
	f := newFixture(t)
	f.clock.Advance(300 * time.Millisecond)
	_, err := f.w.Open("a.wav", f.header)
	require.NoError(t, err)
	require.NoError(t, f.w.Close())

	size, payload := f.dataSize(t, "a.wav")
	require.Equal(t, uint32(600), size)
	require.Equal(t, 600, payload)
	require.Equal(t, domain.CloseShutdown, f.w.Session().CloseReason)
}

func TestWriter_SyncTo(t *testing.T) {
	f := newFixture(t)
	f.clock.Advance(300 * time.Millisecond)
	_, err := f.w.Open("a.wav", f.header)
	require.NoError(t, err)

	f.clock.Advance(100 * time.Millisecond)
	backupVol := memfs.New("backup", 1<<30)
	require.NoError(t, backupVol.SetDataDir("d"))
	b := New(f.source, backupVol, f.clock, testFormat)
	b.Begin(time.Second, 100*time.Millisecond)
	require.NotEqual(t, f.w.Position(), b.Position())

	b.SyncTo(f.w)
	require.Equal(t, f.w.Position(), b.Position())
}
