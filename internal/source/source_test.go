package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/inertial_stream/internal/config"
	"github.com/relabs-tech/inertial_stream/internal/imu"
)

// drain reads events until the source closes its channel.
func drain(t *testing.T, src Source, timeout time.Duration) []Event {
	t.Helper()
	var events []Event
	deadline := time.After(timeout)
	for {
		select {
		case ev, ok := <-src.Events():
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-deadline:
			t.Fatalf("timed out waiting for %s to stop", src.Name())
			return nil
		}
	}
}

// next reads one event or fails.
func next(t *testing.T, src Source) Event {
	t.Helper()
	select {
	case ev, ok := <-src.Events():
		require.True(t, ok, "event channel closed early")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("no event from %s", src.Name())
		return Event{}
	}
}

// samples flattens the data events, checking the started/stopped framing.
func samples(t *testing.T, events []Event) []imu.Sample {
	t.Helper()
	require.GreaterOrEqual(t, len(events), 2)
	assert.Equal(t, EventStarted, events[0].Kind)
	assert.Equal(t, EventStopped, events[len(events)-1].Kind)
	var out []imu.Sample
	for _, ev := range events[1 : len(events)-1] {
		require.Equal(t, EventData, ev.Kind)
		out = append(out, ev.Samples...)
	}
	return out
}

func writeRecording(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "recording.csv")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const twoRows = "t,ax,ay,az,gx,gy,gz,mx,my,mz\n" +
	"0,1,2,3,4,5,6,7,8,9\n" +
	"1,10,20,30,40,50,60,70,80,90\n"

func TestParseMode(t *testing.T) {
	m, err := ParseMode("OneShot")
	require.NoError(t, err)
	assert.Equal(t, OneShot, m)
	m, err = ParseMode("live")
	require.NoError(t, err)
	assert.Equal(t, Live, m)
	_, err = ParseMode("burst")
	assert.Error(t, err)
}

func TestParseLine(t *testing.T) {
	s, ok := parseLine("42,1,2,3,4,5,6,7,8,9\r\n")
	require.True(t, ok)
	assert.Equal(t, imu.Sample{1, 2, 3, 4, 5, 6, 7, 8, 9}, s)

	for _, line := range []string{
		"1,2,3",
		"a,1,2,3,4,5,6,7,8,9",
		"0,1,2,3,4,5,6,7,8,x",
		"0,1,2,3,4,5,6,7,8,9,10",
		"",
		"0,1.5,2,3,4,5,6,7,8,9",
	} {
		_, ok := parseLine(line)
		assert.False(t, ok, "line %q should be dropped", line)
	}
}

func TestDummyRandomWalk(t *testing.T) {
	d := NewDummy(DummyOptions{Interval: time.Millisecond, Seed: 7})
	assert.Equal(t, "dummy", d.Name())
	assert.Equal(t, Live, d.Mode())
	assert.Equal(t, Idle, d.State())
	assert.False(t, d.Stop(), "stop on an idle source must be refused")

	done := make(chan error, 1)
	go func() { done <- d.Run(context.Background()) }()

	require.Equal(t, EventStarted, next(t, d).Kind)
	assert.True(t, d.IsRunning())

	var got []imu.Sample
	for len(got) < 20 {
		ev := next(t, d)
		require.Equal(t, EventData, ev.Kind)
		require.Len(t, ev.Samples, 1, "live mode delivers one sample per event")
		got = append(got, ev.Samples[0])
	}
	require.True(t, d.Stop())

	rest := drain(t, d, 2*time.Second)
	require.NotEmpty(t, rest)
	assert.Equal(t, EventStopped, rest[len(rest)-1].Kind)
	require.NoError(t, <-done)
	assert.Equal(t, Stopped, d.State())
	assert.NoError(t, d.Err())

	assert.Equal(t, imu.Sample{}, got[0], "first sample is all zeros")
	for i := 1; i < len(got); i++ {
		for axis := range got[i] {
			delta := got[i][axis] - got[i-1][axis]
			assert.True(t, delta >= -10 && delta <= 10, "sample %d axis %d moved by %d", i, axis, delta)
		}
	}

	assert.False(t, d.Stop(), "stop on a stopped source must be refused")
	err := d.Run(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyStarted)
}

func TestDummyStopsWhenContextCanceled(t *testing.T) {
	d := NewDummy(DummyOptions{Interval: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	go d.Run(ctx)

	require.Equal(t, EventStarted, next(t, d).Kind)
	cancel()
	events := drain(t, d, 2*time.Second)
	assert.Equal(t, EventStopped, events[len(events)-1].Kind)
}

func TestFileOneShot(t *testing.T) {
	f, err := NewFile(FileOptions{Path: writeRecording(t, twoRows), Mode: OneShot})
	require.NoError(t, err)
	assert.Equal(t, OneShot, f.Mode())

	go f.Run(context.Background())
	events := drain(t, f, 2*time.Second)
	require.Len(t, events, 3, "started, one batch, stopped")
	assert.Equal(t, []imu.Sample{
		{1, 2, 3, 4, 5, 6, 7, 8, 9},
		{10, 20, 30, 40, 50, 60, 70, 80, 90},
	}, events[1].Samples)
	assert.NoError(t, f.Err())
}

func TestFileLiveMatchesOneShot(t *testing.T) {
	var b strings.Builder
	b.WriteString("index,ax,ay,az,gx,gy,gz,mx,my,mz\n")
	for i := 0; i < 50; i++ {
		fmt.Fprintf(&b, "%d,%d,%d,%d,%d,%d,%d,%d,%d,%d\n", i, i, -i, 2*i, 3, -3, i%7, 100+i, 0, -100)
	}
	path := writeRecording(t, b.String())

	batchSrc, err := NewFile(FileOptions{Path: path, Mode: OneShot})
	require.NoError(t, err)
	go batchSrc.Run(context.Background())
	batch := samples(t, drain(t, batchSrc, 2*time.Second))
	require.Len(t, batch, 50)

	for _, delay := range []time.Duration{0, time.Millisecond} {
		liveSrc, err := NewFile(FileOptions{Path: path, Mode: Live, RowDelay: delay})
		require.NoError(t, err)
		go liveSrc.Run(context.Background())
		events := drain(t, liveSrc, 5*time.Second)
		assert.Len(t, events, 52, "one event per row plus started/stopped")
		assert.Equal(t, batch, samples(t, events), "delay %v", delay)
	}
}

func TestFileMalformedRowEndsRun(t *testing.T) {
	body := twoRows + "2,1,2,3,oops,5,6,7,8,9\n" + "3,1,1,1,1,1,1,1,1,1\n"
	for _, mode := range []Mode{Live, OneShot} {
		t.Run(mode.String(), func(t *testing.T) {
			f, err := NewFile(FileOptions{Path: writeRecording(t, body), Mode: mode})
			require.NoError(t, err)
			go f.Run(context.Background())

			got := samples(t, drain(t, f, 2*time.Second))
			assert.Len(t, got, 2, "rows before the bad one are kept, rows after are not read")

			var rowErr *RowError
			require.True(t, errors.As(f.Err(), &rowErr))
			assert.Equal(t, 4, rowErr.Line)
		})
	}
}

func TestFileWrongColumnCount(t *testing.T) {
	body := "h\n0,1,2,3\n"
	f, err := NewFile(FileOptions{Path: writeRecording(t, body), Mode: OneShot})
	require.NoError(t, err)
	go f.Run(context.Background())

	events := drain(t, f, 2*time.Second)
	assert.Len(t, events, 2, "no batch when nothing parsed")
	var rowErr *RowError
	assert.ErrorAs(t, f.Err(), &rowErr)
}

func TestFileHeaderOnly(t *testing.T) {
	f, err := NewFile(FileOptions{Path: writeRecording(t, "t,ax,ay,az,gx,gy,gz,mx,my,mz\n"), Mode: OneShot})
	require.NoError(t, err)
	go f.Run(context.Background())
	events := drain(t, f, 2*time.Second)
	assert.Len(t, events, 2)
	assert.NoError(t, f.Err())
}

func TestFileLiveStop(t *testing.T) {
	f, err := NewFile(FileOptions{Path: writeRecording(t, twoRows), Mode: Live, RowDelay: time.Hour})
	require.NoError(t, err)
	go f.Run(context.Background())

	require.Equal(t, EventStarted, next(t, f).Kind)
	require.Equal(t, EventData, next(t, f).Kind)
	require.True(t, f.Stop())

	events := drain(t, f, 2*time.Second)
	require.Len(t, events, 1)
	assert.Equal(t, EventStopped, events[0].Kind)
	assert.False(t, f.IsRunning())
}

func TestNewFileMissing(t *testing.T) {
	_, err := NewFile(FileOptions{Path: filepath.Join(t.TempDir(), "missing.csv")})
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFromConfig(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	src, err := FromConfig(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &Dummy{}, src)

	cfg.SourceKind = config.KindFile
	cfg.SourceMode = "oneshot"
	cfg.FilePath = writeRecording(t, twoRows)
	src, err = FromConfig(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &File{}, src)
	assert.Equal(t, OneShot, src.Mode())

	cfg.SourceKind = config.KindSerial
	cfg.SourceMode = "live"
	cfg.SerialPort = filepath.Join(t.TempDir(), "ttyNothing")
	_, err = FromConfig(cfg, nil)
	assert.Error(t, err, "opening a missing port must fail at construction")
}
