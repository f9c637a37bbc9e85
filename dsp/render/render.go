// Package render implements the offline renderer: it produces T seconds
// of a track set's mix at sample rate sr into a dense buffer, choosing
// between a single bulk-FFT direct mode and a chunked, optionally
// parallel, mode based on an estimated memory footprint.
package render

import (
	"context"
	"fmt"
	"log"
	"runtime"
	"sync"
	"time"

	"github.com/cwbudde/shapednoise/dsp/buffer"
	"github.com/cwbudde/shapednoise/dsp/core"
	"github.com/cwbudde/shapednoise/dsp/dsperr"
	"github.com/cwbudde/shapednoise/dsp/fftkernel"
	"github.com/cwbudde/shapednoise/dsp/filterchain"
	"github.com/cwbudde/shapednoise/dsp/noise"
)

// fftBufferPool recycles the real/imaginary scratch buffers used by each
// bulk FFT so that chunked, concurrently-dispatched renders don't churn
// the allocator on every chunk/track combination.
var fftBufferPool = buffer.NewPool()

// chunkedModeThresholdBytes is the memory estimate above which chunked
// mode is used instead of direct mode.
const chunkedModeThresholdBytes = 500 * 1024 * 1024

// SequentialChunkSeconds and ParallelChunkSeconds are the two supported
// chunk durations for chunked mode.
const (
	SequentialChunkSeconds = 30.0
	ParallelChunkSeconds   = 10.0
)

// olaCrossfadeSeconds is the crossfade window applied at chunk boundaries
// in ChunkModeOLAAcrossChunks.
const olaCrossfadeSeconds = 0.005

// chunkSeedMixConstant decorrelates consecutive chunks' noise: without it,
// every chunk would regenerate the same prefix of its track's noise stream
// instead of a continuation, since each chunk is rendered independently
// from sample 0 of its own bulk FFT buffer.
const chunkSeedMixConstant = 0x9E3779B97F4A7C15

func chunkSeed(seed int64, chunkIndex int) int64 {
	return seed ^ int64(uint64(chunkIndex)*chunkSeedMixConstant)
}

// ChunkMode selects how chunked-mode render handles the boundary between
// adjacent chunks (see Open Question 1: chunked mode applies each chunk's
// filter as an independent bulk FFT, so naive concatenation can click at
// boundaries for narrow-bandwidth filters).
type ChunkMode int

const (
	// ChunkModeStrictPerChunk concatenates chunks with no blending. Matches
	// the source behavior exactly; narrow filters may click at boundaries.
	ChunkModeStrictPerChunk ChunkMode = iota
	// ChunkModeOLAAcrossChunks renders a short lookahead past each chunk
	// boundary and linearly crossfades it against the next chunk's head,
	// trading a small amount of extra computation for click-free seams.
	ChunkModeOLAAcrossChunks
)

// maxWorkers caps the worker pool regardless of detected hardware
// concurrency.
const maxWorkers = 8

// maxRetriesPerChunk is the total number of attempts (including the first)
// a chunk job gets before the renderer gives up on it and propagates a
// dsperr.WorkerJobFailed.
const maxRetriesPerChunk = 3

// workerInitTimeout bounds how long newWorkerPool waits for every spawned
// worker goroutine to report readiness before giving up on parallel
// dispatch entirely.
const workerInitTimeout = 5 * time.Second

// TrackSpec is an immutable snapshot of one track's render-relevant state:
// its noise seed, filter chain, and linear gain. The renderer never
// mutates live track state directly; callers snapshot it before Render.
type TrackSpec struct {
	Seed  int64
	Chain *filterchain.Chain
	Gain  float64
}

// Phase identifies the renderer's current progress phase.
type Phase int

const (
	PhaseStarting Phase = iota
	PhaseProcessing
	PhaseFinalizing
)

func (p Phase) String() string {
	switch p {
	case PhaseStarting:
		return "starting"
	case PhaseProcessing:
		return "processing"
	case PhaseFinalizing:
		return "finalizing"
	default:
		return "unknown"
	}
}

// Progress is the advisory progress report emitted during chunked-mode
// rendering. ProgressFunc may return false to request cancellation; the
// contract is advisory, not immediate.
type Progress struct {
	Phase             Phase
	ChunksCompleted   int
	ChunksTotal       int
	OverallPercentage float64
}

// ProgressFunc is invoked as chunks complete. Returning false requests
// cancellation.
type ProgressFunc func(Progress) bool

// Render renders durationSeconds of the given tracks' mix at sampleRate,
// selecting direct or chunked mode per the estimated-memory rule. progress
// may be nil. Chunked mode (when selected) uses ChunkModeStrictPerChunk,
// matching the source's behavior; use RenderWithMode to request
// ChunkModeOLAAcrossChunks instead.
func Render(ctx context.Context, tracks []TrackSpec, durationSeconds, sampleRate float64, progress ProgressFunc) ([]float64, error) {
	return RenderWithMode(ctx, tracks, durationSeconds, sampleRate, ChunkModeStrictPerChunk, progress)
}

// RenderWithMode is Render with an explicit ChunkMode for the boundary
// between chunks when chunked mode is selected. Direct-mode renders are
// unaffected by mode since they have no chunk boundaries.
func RenderWithMode(ctx context.Context, tracks []TrackSpec, durationSeconds, sampleRate float64, mode ChunkMode, progress ProgressFunc) ([]float64, error) {
	if durationSeconds <= 0 {
		return nil, fmt.Errorf("render: durationSeconds must be > 0: %f", durationSeconds)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("render: sampleRate must be > 0: %f", sampleRate)
	}

	totalSamples := int(durationSeconds * sampleRate)
	estimatedBytes := 5.0 * durationSeconds * sampleRate * 4

	if progress != nil {
		progress(Progress{Phase: PhaseStarting, ChunksTotal: 1})
	}

	if estimatedBytes <= chunkedModeThresholdBytes {
		out, err := renderDirect(tracks, totalSamples, sampleRate)
		if err != nil {
			return nil, err
		}
		if progress != nil {
			progress(Progress{Phase: PhaseFinalizing, ChunksCompleted: 1, ChunksTotal: 1, OverallPercentage: 100})
		}
		return out, nil
	}

	return renderChunked(ctx, tracks, totalSamples, sampleRate, mode, progress)
}

// renderDirect generates a T*sr-sample noise buffer per track, applies
// each track's filter chain via a single bulk FFT, applies track gain,
// and sums into the mix.
func renderDirect(tracks []TrackSpec, totalSamples int, sampleRate float64) ([]float64, error) {
	return renderDirectChunk(tracks, totalSamples, sampleRate, 0)
}

// renderDirectChunk is renderDirect with an explicit chunkIndex, used by
// chunked mode to derive a per-chunk noise seed (chunkIndex 0 reduces to
// each track's own spec.Seed unchanged).
func renderDirectChunk(tracks []TrackSpec, totalSamples int, sampleRate float64, chunkIndex int) ([]float64, error) {
	mix := make([]float64, totalSamples)
	if totalSamples == 0 {
		return mix, nil
	}

	fftSize := fftkernel.NextPowerOfTwo(totalSamples)
	plan, err := fftkernel.NewPlan(fftSize)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}

	for _, spec := range tracks {
		buf, err := filterTrackBuffer(spec, chunkSeed(spec.Seed, chunkIndex), plan, fftSize, totalSamples, sampleRate)
		if err != nil {
			return nil, err
		}
		for i := 0; i < totalSamples; i++ {
			mix[i] += buf[i] * spec.Gain
		}
	}

	return mix, nil
}

// filterTrackBuffer generates totalSamples of noise for spec using seed,
// applies its filter chain's pre-filter and composite mask via a single
// bulk FFT of size fftSize (zero-padding the tail), and trims back to
// totalSamples. seed is threaded separately from spec.Seed so chunked
// rendering can decorrelate successive chunks of the same track.
func filterTrackBuffer(spec TrackSpec, seed int64, plan *fftkernel.Plan, fftSize, totalSamples int, sampleRate float64) ([]float64, error) {
	gen := noise.NewGeneratorSeeded(uint64(seed), uint64(seed)^0x9E3779B97F4A7C15)
	samples, err := gen.WhiteNoise(totalSamples)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}

	if spec.Chain != nil {
		spec.Chain.ApplyPreFilter(samples)
	}

	reBuf := fftBufferPool.Get(fftSize)
	imBuf := fftBufferPool.Get(fftSize)
	defer fftBufferPool.Put(reBuf)
	defer fftBufferPool.Put(imBuf)

	re := reBuf.Samples()
	im := imBuf.Samples()
	copy(re, samples)

	if err := plan.Forward(re, im); err != nil {
		return nil, fmt.Errorf("render: forward FFT failed: %w", err)
	}

	if spec.Chain != nil {
		mask, err := spec.Chain.CompositeAt(fftSize)
		if err != nil {
			return nil, fmt.Errorf("render: %w", err)
		}
		for i := range re {
			re[i] *= mask[i]
			im[i] *= mask[i]
		}
	}

	if err := plan.Inverse(re, im); err != nil {
		return nil, fmt.Errorf("render: inverse FFT failed: %w", err)
	}

	out := make([]float64, totalSamples)
	core.CopyInto(out, re[:totalSamples])
	return out, nil
}

// renderChunked partitions the timeline into fixed-duration chunks, running
// the direct-mode pipeline independently on each. When ≥ 2 chunks are
// needed and a worker pool comes online within workerInitTimeout, chunks
// are dispatched in parallel using ParallelChunkSeconds-sized chunks;
// otherwise (the pool fails to initialize in time) rendering logs a
// warning and degrades to sequential dispatch using the longer
// SequentialChunkSeconds chunks, run one at a time on the calling
// goroutine instead of a worker pool. Each chunk derives its own noise
// seed via chunkSeed so successive chunks of a track continue rather than
// repeat its noise stream, and each chunk job is retried up to
// maxRetriesPerChunk times before its error is reported as a
// dsperr.WorkerJobFailed. mode controls how adjacent chunks are stitched
// together: see ChunkMode.
func renderChunked(ctx context.Context, tracks []TrackSpec, totalSamples int, sampleRate float64, mode ChunkMode, progress ProgressFunc) ([]float64, error) {
	overlap := 0
	if mode == ChunkModeOLAAcrossChunks {
		overlap = int(olaCrossfadeSeconds * sampleRate)
		if overlap < 1 {
			overlap = 1
		}
	}

	jobs, numChunks := buildChunkJobs(tracks, totalSamples, sampleRate, ParallelChunkSeconds, overlap)
	if numChunks < 2 {
		buf, err := renderDirect(tracks, totalSamples, sampleRate)
		if err != nil {
			return nil, err
		}
		out := make([]float64, totalSamples)
		copy(out, buf)
		return out, nil
	}

	pool, err := newWorkerPool(numChunks)
	if err != nil {
		pool.shutdown()
		log.Printf("render: %v; degrading to sequential chunk dispatch", err)
		jobs, numChunks = buildChunkJobs(tracks, totalSamples, sampleRate, SequentialChunkSeconds, overlap)
		return renderSequential(ctx, jobs, numChunks, totalSamples, overlap, progress)
	}
	defer pool.shutdown()

	return renderParallel(ctx, pool, jobs, numChunks, totalSamples, overlap, progress)
}

// buildChunkJobs partitions totalSamples into chunks of chunkSeconds (the
// final chunk may be shorter), over-rendering each by overlap samples of
// lookahead when OLA blending is in effect.
func buildChunkJobs(tracks []TrackSpec, totalSamples int, sampleRate, chunkSeconds float64, overlap int) ([]chunkJob, int) {
	chunkSamples := int(chunkSeconds * sampleRate)
	if chunkSamples <= 0 {
		chunkSamples = totalSamples
	}

	numChunks := (totalSamples + chunkSamples - 1) / chunkSamples
	if numChunks < 1 {
		numChunks = 1
	}

	jobs := make([]chunkJob, numChunks)
	for i := 0; i < numChunks; i++ {
		start := i * chunkSamples
		end := start + chunkSamples
		if end > totalSamples {
			end = totalSamples
		}
		length := end - start
		if overlap > 0 {
			// Over-render every chunk by the crossfade window so the merge
			// step has lookahead to blend against the next chunk's head.
			length += overlap
		}
		jobs[i] = chunkJob{index: i, tracks: tracks, sampleRate: sampleRate, length: length}
	}
	return jobs, numChunks
}

// renderChunkWithRetry runs one chunk job, retrying up to maxRetriesPerChunk
// total attempts before giving up per §4.9 ("retrying failed chunks up to 3
// times before propagating the error"). The final failure is reported as a
// dsperr.WorkerJobFailed wrapping the last attempt's error.
func renderChunkWithRetry(job chunkJob) ([]float64, error) {
	var lastErr error
	for attempt := 0; attempt < maxRetriesPerChunk; attempt++ {
		buf, err := renderDirectChunk(job.tracks, job.length, job.sampleRate, job.index)
		if err == nil {
			return buf, nil
		}
		lastErr = err
	}
	return nil, dsperr.Wrap(dsperr.WorkerJobFailed, "render",
		fmt.Errorf("chunk %d failed after %d attempts: %w", job.index, maxRetriesPerChunk, lastErr))
}

// renderParallel dispatches jobs across pool, assembling results in
// chunk-index order once every job has settled.
func renderParallel(ctx context.Context, pool *workerPool, jobs []chunkJob, numChunks, totalSamples, overlap int, progress ProgressFunc) ([]float64, error) {
	out := make([]float64, totalSamples)

	var (
		mu        sync.Mutex
		completed int
		cancelled bool
	)

	results := make([][]float64, numChunks)
	errs := make([]error, numChunks)

	var wg sync.WaitGroup
	for _, job := range jobs {
		job := job
		wg.Add(1)
		pool.submit(func() {
			defer wg.Done()

			mu.Lock()
			if cancelled {
				mu.Unlock()
				errs[job.index] = dsperr.New(dsperr.Cancelled, "render", "cancelled before chunk started")
				return
			}
			mu.Unlock()

			buf, err := renderChunkWithRetry(job)

			mu.Lock()
			results[job.index] = buf
			errs[job.index] = err
			completed++
			n := completed
			mu.Unlock()

			if progress != nil {
				keepGoing := progress(Progress{
					Phase:             PhaseProcessing,
					ChunksCompleted:   n,
					ChunksTotal:       numChunks,
					OverallPercentage: 100 * float64(n) / float64(numChunks),
				})
				if !keepGoing {
					mu.Lock()
					cancelled = true
					mu.Unlock()
				}
			}

			select {
			case <-ctx.Done():
				mu.Lock()
				cancelled = true
				mu.Unlock()
			default:
			}
		})
	}
	wg.Wait()

	if cancelled {
		return nil, dsperr.New(dsperr.Cancelled, "render", "render cancelled")
	}

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	mergeChunks(out, results, overlap)

	if progress != nil {
		progress(Progress{Phase: PhaseFinalizing, ChunksCompleted: numChunks, ChunksTotal: numChunks, OverallPercentage: 100})
	}

	return out, nil
}

// renderSequential runs chunk jobs one at a time on the calling goroutine,
// used when the worker pool fails to come online within
// workerInitTimeout. It applies the same bounded per-chunk retry as
// renderParallel.
func renderSequential(ctx context.Context, jobs []chunkJob, numChunks, totalSamples, overlap int, progress ProgressFunc) ([]float64, error) {
	out := make([]float64, totalSamples)
	results := make([][]float64, numChunks)

	for _, job := range jobs {
		select {
		case <-ctx.Done():
			return nil, dsperr.New(dsperr.Cancelled, "render", "render cancelled")
		default:
		}

		buf, err := renderChunkWithRetry(job)
		if err != nil {
			return nil, err
		}
		results[job.index] = buf

		if progress != nil {
			n := job.index + 1
			keepGoing := progress(Progress{
				Phase:             PhaseProcessing,
				ChunksCompleted:   n,
				ChunksTotal:       numChunks,
				OverallPercentage: 100 * float64(n) / float64(numChunks),
			})
			if !keepGoing {
				return nil, dsperr.New(dsperr.Cancelled, "render", "render cancelled")
			}
		}
	}

	mergeChunks(out, results, overlap)

	if progress != nil {
		progress(Progress{Phase: PhaseFinalizing, ChunksCompleted: numChunks, ChunksTotal: numChunks, OverallPercentage: 100})
	}

	return out, nil
}

// mergeChunks concatenates results into out. When overlap > 0, each
// result past the first has its leading overlap samples linearly
// crossfaded against out's existing tail instead of being copied flat,
// smoothing the boundary the independent per-chunk bulk FFTs would
// otherwise leave. Writes past len(out) (the final chunk's unused
// lookahead) are discarded.
func mergeChunks(out []float64, results [][]float64, overlap int) {
	pos := 0
	for i, buf := range results {
		if overlap > 0 && i > 0 {
			ov := overlap
			if ov > pos {
				ov = pos
			}
			if ov > len(buf) {
				ov = len(buf)
			}
			for k := 0; k < ov; k++ {
				t := float64(k+1) / float64(ov+1)
				out[pos-ov+k] = out[pos-ov+k]*(1-t) + buf[k]*t
			}
			buf = buf[ov:]
		}
		end := pos + len(buf)
		if end > len(out) {
			end = len(out)
		}
		copy(out[pos:end], buf[:end-pos])
		pos = end
	}
}

type chunkJob struct {
	index      int
	tracks     []TrackSpec
	sampleRate float64
	length     int
}

// workerPool is a fixed-size FIFO job queue.
type workerPool struct {
	jobs chan func()
	wg   sync.WaitGroup
}

// newWorkerPool spawns workers immediately and waits up to
// workerInitTimeout for all of them to report readiness. If the deadline
// elapses first, it returns a non-nil pool (so the caller can still shut it
// down cleanly) alongside a dsperr.WorkerInitTimeout; callers should treat
// that as a signal to degrade to sequential dispatch rather than using the
// pool.
func newWorkerPool(hintedJobs int) (*workerPool, error) {
	n := runtime.GOMAXPROCS(0)
	if n < 1 {
		n = 1
	}
	if n > maxWorkers {
		n = maxWorkers
	}
	if hintedJobs > 0 && hintedJobs < n {
		n = hintedJobs
	}

	p := &workerPool{jobs: make(chan func(), hintedJobs+1)}
	ready := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go p.worker(ready)
	}

	deadline := time.NewTimer(workerInitTimeout)
	defer deadline.Stop()
	for i := 0; i < n; i++ {
		select {
		case <-ready:
		case <-deadline.C:
			return p, dsperr.New(dsperr.WorkerInitTimeout, "render.newWorkerPool",
				fmt.Sprintf("only %d/%d workers came online within %s", i, n, workerInitTimeout))
		}
	}
	return p, nil
}

// worker reports readiness on ready as soon as it starts, then drains jobs
// until the queue is closed. A worker that panics on maxRetriesPerChunk
// consecutive jobs terminates and is not replaced, matching the §4.9
// worker error threshold; this is distinct from renderChunkWithRetry's
// per-job retry, which handles jobs that return an error rather than
// panic.
func (p *workerPool) worker(ready chan<- struct{}) {
	defer p.wg.Done()
	ready <- struct{}{}

	failures := 0
	for job := range p.jobs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					failures++
				} else {
					failures = 0
				}
			}()
			job()
		}()
		if failures >= maxRetriesPerChunk {
			return
		}
	}
}

func (p *workerPool) submit(job func()) {
	p.jobs <- job
}

func (p *workerPool) shutdown() {
	close(p.jobs)
	p.wg.Wait()
}
