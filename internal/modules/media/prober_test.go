package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeFFprobe writes an executable script that prints the given output,
// standing in for the real ffprobe binary
func fakeFFprobe(t *testing.T, output string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake ffprobe script requires a unix shell")
	}

	path := filepath.Join(t.TempDir(), "ffprobe")
	script := "#!/bin/sh\ncat <<'JSON'\n" + output + "\nJSON\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestProbeDuration(t *testing.T) {
	t.Run("parses duration from ffprobe output", func(t *testing.T) {
		bin := fakeFFprobe(t, `{"format":{"format_name":"mov,mp4,m4a","duration":"42.500000"}}`)
		p := NewProber(bin, 10*time.Second, zap.NewNop(), nil)

		duration, err := p.ProbeDuration(context.Background(), "memorial.mp4")
		require.NoError(t, err)
		assert.InDelta(t, 42.5, duration, 0.001)
	})

	t.Run("missing binary returns DurationProbeError", func(t *testing.T) {
		p := NewProber("/nonexistent/ffprobe", 10*time.Second, zap.NewNop(), nil)

		_, err := p.ProbeDuration(context.Background(), "memorial.mp4")
		require.Error(t, err)

		var probeErr *DurationProbeError
		assert.True(t, errors.As(err, &probeErr))
		assert.Equal(t, "memorial.mp4", probeErr.Path)
	})

	t.Run("unparseable output returns DurationProbeError", func(t *testing.T) {
		bin := fakeFFprobe(t, "not json at all")
		p := NewProber(bin, 10*time.Second, zap.NewNop(), nil)

		_, err := p.ProbeDuration(context.Background(), "clip.mp4")
		var probeErr *DurationProbeError
		assert.True(t, errors.As(err, &probeErr))
	})

	t.Run("missing duration field returns DurationProbeError", func(t *testing.T) {
		bin := fakeFFprobe(t, `{"format":{"format_name":"mov,mp4,m4a"}}`)
		p := NewProber(bin, 10*time.Second, zap.NewNop(), nil)

		_, err := p.ProbeDuration(context.Background(), "clip.mp4")
		var probeErr *DurationProbeError
		assert.True(t, errors.As(err, &probeErr))
	})

	t.Run("unusable duration values return DurationProbeError", func(t *testing.T) {
		for _, reported := range []string{"0.000000", "-3.5", "inf", "nan"} {
			bin := fakeFFprobe(t, `{"format":{"duration":"`+reported+`"}}`)
			p := NewProber(bin, 10*time.Second, zap.NewNop(), nil)

			_, err := p.ProbeDuration(context.Background(), "clip.mp4")
			require.Error(t, err, "duration %q should not probe successfully", reported)

			var probeErr *DurationProbeError
			assert.True(t, errors.As(err, &probeErr))
		}
	})
}

func TestResolveDuration(t *testing.T) {
	t.Run("returns probed duration when probe succeeds", func(t *testing.T) {
		bin := fakeFFprobe(t, `{"format":{"duration":"95.2"}}`)
		p := NewProber(bin, 10*time.Second, zap.NewNop(), nil)

		duration, fellBack := p.ResolveDuration(context.Background(), "clip.mp4")
		assert.InDelta(t, 95.2, duration, 0.001)
		assert.False(t, fellBack)
	})

	t.Run("falls back when probe fails", func(t *testing.T) {
		p := NewProber("/nonexistent/ffprobe", 10*time.Second, zap.NewNop(), nil)

		duration, fellBack := p.ResolveDuration(context.Background(), "clip.mp4")
		assert.Equal(t, float64(FallbackDurationSeconds), duration)
		assert.True(t, fellBack)
	})

	t.Run("falls back when ffprobe reports a zero duration", func(t *testing.T) {
		bin := fakeFFprobe(t, `{"format":{"duration":"0.000000"}}`)
		p := NewProber(bin, 10*time.Second, zap.NewNop(), nil)

		duration, fellBack := p.ResolveDuration(context.Background(), "clip.mp4")
		assert.Equal(t, float64(FallbackDurationSeconds), duration)
		assert.True(t, fellBack)
	})
}

func TestResolveDurations(t *testing.T) {
	t.Run("resolves every path even when all probes fail", func(t *testing.T) {
		p := NewProber("/nonexistent/ffprobe", 10*time.Second, zap.NewNop(), nil)

		paths := []string{"a.mp4", "b.mov", "c.webm"}
		results := p.ResolveDurations(context.Background(), paths)

		assert.Len(t, results, len(paths))
		for _, path := range paths {
			assert.Equal(t, float64(FallbackDurationSeconds), results[path])
		}
	})

	t.Run("empty batch yields empty map", func(t *testing.T) {
		p := NewProber("ffprobe", 10*time.Second, zap.NewNop(), nil)
		results := p.ResolveDurations(context.Background(), nil)
		assert.Empty(t, results)
	})
}

func TestNewProberDefaults(t *testing.T) {
	p := NewProber("", 0, zap.NewNop(), nil)
	assert.Equal(t, "ffprobe", p.ffprobePath)
	assert.Equal(t, 10*time.Second, p.timeout)
}
