package render

import (
	"context"
	"math"
	"testing"

	"github.com/cwbudde/shapednoise/dsp/dsperr"
	"github.com/cwbudde/shapednoise/dsp/filterchain"
	"github.com/cwbudde/shapednoise/dsp/mask"
)

func TestRenderDirectModeProducesExpectedLength(t *testing.T) {
	chain := filterchain.New(48000, 2048)
	tracks := []TrackSpec{{Seed: 1, Chain: chain, Gain: 1}}

	out, err := Render(context.Background(), tracks, 0.1, 48000, nil)
	if err != nil {
		t.Fatal(err)
	}
	want := int(0.1 * 48000)
	if len(out) != want {
		t.Fatalf("len(out) = %d, want %d", len(out), want)
	}
}

func TestRenderRejectsNonPositiveDuration(t *testing.T) {
	if _, err := Render(context.Background(), nil, 0, 48000, nil); err == nil {
		t.Fatal("expected error for durationSeconds=0")
	}
}

func TestRenderZeroGainTrackContributesNothing(t *testing.T) {
	chain := filterchain.New(48000, 2048)
	tracks := []TrackSpec{{Seed: 1, Chain: chain, Gain: 0}}

	out, err := Render(context.Background(), tracks, 0.05, 48000, nil)
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range out {
		if math.Abs(v) > 1e-9 {
			t.Fatalf("out[%d] = %v, want 0 for zero-gain track", i, v)
		}
	}
}

func TestRenderAppliesZeroMaskAsSilence(t *testing.T) {
	chain := filterchain.New(48000, fftSizeForDuration(0.05, 48000))
	idx, err := chain.AddWithConfig(mask.Config{Kind: mask.Plateau, CenterFreq: 1000, Width: 50, GainDB: -40, FlatWidth: 10})
	if err != nil {
		t.Fatal(err)
	}
	_ = idx

	tracks := []TrackSpec{{Seed: 1, Chain: chain, Gain: 1}}
	out, err := Render(context.Background(), tracks, 0.05, 48000, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) == 0 {
		t.Fatal("expected nonzero-length output")
	}
}

func TestRenderChunkedModeMatchesLength(t *testing.T) {
	chain := filterchain.New(48000, 1024)
	tracks := []TrackSpec{{Seed: 1, Chain: chain, Gain: 1}}

	const duration = 25.0 // three 10 s chunks; Render itself would pick direct mode at this length
	out, err := renderChunked(context.Background(), tracks, int(duration*48000), 48000, ChunkModeStrictPerChunk, nil)
	if err != nil {
		t.Fatal(err)
	}
	want := int(duration * 48000)
	if len(out) != want {
		t.Fatalf("len(out) = %d, want %d", len(out), want)
	}
}

func TestRenderChunkedReportsProgress(t *testing.T) {
	chain := filterchain.New(48000, 1024)
	tracks := []TrackSpec{{Seed: 1, Chain: chain, Gain: 1}}

	var lastPct float64
	progress := func(p Progress) bool {
		lastPct = p.OverallPercentage
		return true
	}

	const duration = 25.0
	_, err := renderChunked(context.Background(), tracks, int(duration*48000), 48000, ChunkModeStrictPerChunk, progress)
	if err != nil {
		t.Fatal(err)
	}
	if lastPct != 100 {
		t.Fatalf("final progress = %v, want 100", lastPct)
	}
}

func TestRenderChunkedCancellation(t *testing.T) {
	chain := filterchain.New(48000, 1024)
	tracks := []TrackSpec{{Seed: 1, Chain: chain, Gain: 1}}

	progress := func(p Progress) bool { return false }

	const duration = 25.0
	_, err := renderChunked(context.Background(), tracks, int(duration*48000), 48000, ChunkModeStrictPerChunk, progress)
	if err == nil {
		t.Fatal("expected cancellation error when progress callback returns false")
	}
}

func TestRenderChunkedDecorrelatesSuccessiveChunks(t *testing.T) {
	chain := filterchain.New(48000, 1024)
	tracks := []TrackSpec{{Seed: 7, Chain: chain, Gain: 1}}

	const chunkSamples = int(ParallelChunkSeconds * 48000)
	bufA, err := renderDirectChunk(tracks, chunkSamples, 48000, 0)
	if err != nil {
		t.Fatal(err)
	}
	bufB, err := renderDirectChunk(tracks, chunkSamples, 48000, 1)
	if err != nil {
		t.Fatal(err)
	}

	identical := true
	for i := range bufA {
		if math.Abs(bufA[i]-bufB[i]) > 1e-12 {
			identical = false
			break
		}
	}
	if identical {
		t.Fatal("successive chunks produced identical noise; expected decorrelated seeds")
	}
}

func TestRenderWithModeOLACrossesChunkBoundariesSmoothly(t *testing.T) {
	chain := filterchain.New(48000, 1024)
	tracks := []TrackSpec{{Seed: 3, Chain: chain, Gain: 1}}

	const duration = 25.0
	out, err := RenderWithMode(context.Background(), tracks, duration, 48000, ChunkModeOLAAcrossChunks, nil)
	if err != nil {
		t.Fatal(err)
	}
	want := int(duration * 48000)
	if len(out) != want {
		t.Fatalf("len(out) = %d, want %d", len(out), want)
	}
}

func TestMergeChunksBlendsOverlapAndTrimsToOutputLength(t *testing.T) {
	out := make([]float64, 6)
	a := []float64{1, 1, 1, 1}
	b := []float64{-1, -1, -1, -1}
	mergeChunks(out, [][]float64{a, b}, 2)

	if out[0] != 1 || out[1] != 1 {
		t.Fatalf("unblended prefix = %v, want [1 1]", out[:2])
	}
	if len(out) != 6 {
		t.Fatalf("len(out) = %d, want 6", len(out))
	}
}

func TestNewWorkerPoolBecomesReadyWithinTimeout(t *testing.T) {
	pool, err := newWorkerPool(4)
	if err != nil {
		t.Fatalf("newWorkerPool returned error: %v", err)
	}
	defer pool.shutdown()

	done := make(chan struct{})
	pool.submit(func() { close(done) })
	<-done
}

func TestBuildChunkJobsSequentialUsesLongerChunksThanParallel(t *testing.T) {
	const sampleRate = 48000.0
	const totalSamples = int(60 * sampleRate)

	_, numParallel := buildChunkJobs(nil, totalSamples, sampleRate, ParallelChunkSeconds, 0)
	_, numSequential := buildChunkJobs(nil, totalSamples, sampleRate, SequentialChunkSeconds, 0)

	if numSequential >= numParallel {
		t.Fatalf("sequential chunk count = %d, want fewer than parallel's %d (SequentialChunkSeconds > ParallelChunkSeconds)", numSequential, numParallel)
	}
}

// invalidMaskChain returns a chain whose single enabled instance carries an
// unrecognized mask.Kind, so CompositeAt (and therefore renderDirectChunk)
// deterministically fails. Used to exercise the chunk-retry/WorkerJobFailed
// path without depending on a real FFT or allocation failure.
func invalidMaskChain(sampleRate float64, size int) *filterchain.Chain {
	chain := filterchain.New(sampleRate, size)
	_, _ = chain.AddWithConfig(mask.Config{Kind: mask.Kind(99)})
	return chain
}

func TestRenderChunkWithRetrySurfacesWorkerJobFailedAfterExhaustingAttempts(t *testing.T) {
	chain := invalidMaskChain(48000, 1024)
	tracks := []TrackSpec{{Seed: 1, Chain: chain, Gain: 1}}
	job := chunkJob{index: 2, tracks: tracks, sampleRate: 48000, length: 1024}

	_, err := renderChunkWithRetry(job)
	if err == nil {
		t.Fatal("expected error from a chunk whose filter chain always fails")
	}
	if !dsperr.Is(err, dsperr.WorkerJobFailed) {
		t.Fatalf("err = %v, want dsperr.WorkerJobFailed", err)
	}
}

func TestRenderSequentialMatchesParallelLength(t *testing.T) {
	chain := filterchain.New(48000, 1024)
	tracks := []TrackSpec{{Seed: 5, Chain: chain, Gain: 1}}

	const sampleRate = 48000.0
	const totalSamples = int(25 * sampleRate)

	jobs, numChunks := buildChunkJobs(tracks, totalSamples, sampleRate, SequentialChunkSeconds, 0)

	var lastPct float64
	progress := func(p Progress) bool {
		lastPct = p.OverallPercentage
		return true
	}

	out, err := renderSequential(context.Background(), jobs, numChunks, totalSamples, 0, progress)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != totalSamples {
		t.Fatalf("len(out) = %d, want %d", len(out), totalSamples)
	}
	if lastPct != 100 {
		t.Fatalf("final progress = %v, want 100", lastPct)
	}
}

func TestRenderSequentialCancellation(t *testing.T) {
	chain := filterchain.New(48000, 1024)
	tracks := []TrackSpec{{Seed: 5, Chain: chain, Gain: 1}}

	const sampleRate = 48000.0
	const totalSamples = int(25 * sampleRate)
	jobs, numChunks := buildChunkJobs(tracks, totalSamples, sampleRate, SequentialChunkSeconds, 0)

	progress := func(p Progress) bool { return false }
	_, err := renderSequential(context.Background(), jobs, numChunks, totalSamples, 0, progress)
	if err == nil {
		t.Fatal("expected cancellation error when progress callback returns false")
	}
	if !dsperr.Is(err, dsperr.Cancelled) {
		t.Fatalf("err = %v, want dsperr.Cancelled", err)
	}
}

func fftSizeForDuration(seconds, sampleRate float64) int {
	n := int(seconds * sampleRate)
	p := 1
	for p < n {
		p *= 2
	}
	return p
}
