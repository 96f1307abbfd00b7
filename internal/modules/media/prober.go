package media

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/memoria-app/backend/internal/shared/metrics"
)

// FallbackDurationSeconds is assumed for a video whose duration could
// not be probed. Validation then runs against this value instead of
// rejecting the upload.
const FallbackDurationSeconds = 30

// DurationProbeError reports a failed duration probe. Callers are
// expected to fall back to FallbackDurationSeconds rather than treat
// the file as invalid.
type DurationProbeError struct {
	Path string
	Err  error
}

func (e *DurationProbeError) Error() string {
	return fmt.Sprintf("failed to probe duration of %s: %v", e.Path, e.Err)
}

func (e *DurationProbeError) Unwrap() error {
	return e.Err
}

// Prober extracts video metadata using ffprobe
type Prober struct {
	ffprobePath string
	timeout     time.Duration
	logger      *zap.Logger
	metrics     *metrics.Metrics
}

// NewProber creates a new duration prober
func NewProber(ffprobePath string, timeout time.Duration, logger *zap.Logger, m *metrics.Metrics) *Prober {
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Prober{
		ffprobePath: ffprobePath,
		timeout:     timeout,
		logger:      logger,
		metrics:     m,
	}
}

// ffprobeOutput represents the JSON output from ffprobe
type ffprobeOutput struct {
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
	} `json:"format"`
}

// ProbeDuration returns the duration of the video at path in seconds.
// The probe is bounded by the prober's timeout. Every failure mode
// (missing binary, timeout, unparseable output) is returned as a
// *DurationProbeError.
func (p *Prober) ProbeDuration(ctx context.Context, path string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		path,
	}

	start := time.Now()
	cmd := exec.CommandContext(ctx, p.ffprobePath, args...)
	output, err := cmd.Output()
	elapsed := time.Since(start)

	if err != nil {
		p.recordProbe(elapsed, true)
		p.logger.Warn("ffprobe failed",
			zap.Error(err),
			zap.String("path", path),
			zap.Duration("elapsed", elapsed))
		return 0, &DurationProbeError{Path: path, Err: err}
	}

	var probeData ffprobeOutput
	if err := json.Unmarshal(output, &probeData); err != nil {
		p.recordProbe(elapsed, true)
		p.logger.Warn("failed to parse ffprobe output", zap.Error(err), zap.String("path", path))
		return 0, &DurationProbeError{Path: path, Err: err}
	}

	if probeData.Format.Duration == "" {
		p.recordProbe(elapsed, true)
		return 0, &DurationProbeError{Path: path, Err: fmt.Errorf("no duration in ffprobe output")}
	}

	duration, err := strconv.ParseFloat(probeData.Format.Duration, 64)
	if err != nil {
		p.recordProbe(elapsed, true)
		return 0, &DurationProbeError{Path: path, Err: err}
	}
	if math.IsNaN(duration) || math.IsInf(duration, 0) || duration <= 0 {
		p.recordProbe(elapsed, true)
		return 0, &DurationProbeError{Path: path, Err: fmt.Errorf("unusable duration %q in ffprobe output", probeData.Format.Duration)}
	}

	p.recordProbe(elapsed, false)
	return duration, nil
}

// ResolveDuration probes a video and substitutes the fallback duration
// when the probe fails. The second return reports whether the fallback
// was used.
func (p *Prober) ResolveDuration(ctx context.Context, path string) (float64, bool) {
	duration, err := p.ProbeDuration(ctx, path)
	if err != nil {
		p.logger.Info("using fallback duration after probe failure",
			zap.String("path", path),
			zap.Int("fallback_seconds", FallbackDurationSeconds))
		return FallbackDurationSeconds, true
	}
	return duration, false
}

// ResolveDurations probes a batch of videos concurrently and returns
// the resolved duration per path. A failed probe yields the fallback
// duration for that path, never an error for the batch.
func (p *Prober) ResolveDurations(ctx context.Context, paths []string) map[string]float64 {
	results := make(map[string]float64, len(paths))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	for _, path := range paths {
		path := path
		g.Go(func() error {
			duration, _ := p.ResolveDuration(ctx, path)
			mu.Lock()
			results[path] = duration
			mu.Unlock()
			return nil
		})
	}

	g.Wait()
	return results
}

func (p *Prober) recordProbe(elapsed time.Duration, fellBack bool) {
	if p.metrics != nil {
		p.metrics.RecordProbe(elapsed, fellBack)
	}
}
