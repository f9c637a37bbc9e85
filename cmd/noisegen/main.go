// Command noisegen renders shaped noise offline and writes it to a WAV
// file, optionally alongside a C-header array for firmware embedding.
//
// Usage:
//
//	noisegen [flags]
//
// Examples:
//
//	noisegen -out noise.wav -duration 5
//	noisegen -kind gaussian -center 2000 -width 800 -kurtosis 2 -out bell.wav
//	noisegen -out noise.wav -cheader noise_data.h
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/cwbudde/shapednoise/dsp/dither"
	"github.com/cwbudde/shapednoise/dsp/filterchain"
	"github.com/cwbudde/shapednoise/dsp/mask"
	"github.com/cwbudde/shapednoise/dsp/postprocess"
	"github.com/cwbudde/shapednoise/dsp/render"
	"github.com/cwbudde/shapednoise/dsp/serialize"
	"github.com/cwbudde/shapednoise/dsp/stft"
)

var kindNames = map[string]mask.Kind{
	"plateau":   mask.Plateau,
	"gaussian":  mask.Gaussian,
	"parabolic": mask.Parabolic,
}

func main() {
	out := flag.String("out", "noise.wav", "output WAV path")
	cheader := flag.String("cheader", "", "optional C-header output path")
	duration := flag.Float64("duration", 5.0, "render duration in seconds")
	sampleRate := flag.Int("rate", 48000, "sample rate (44100 or 48000)")
	seed := flag.Int64("seed", 1, "noise source seed")

	kindFlag := flag.String("kind", "plateau", "mask kind: plateau, gaussian, parabolic")
	center := flag.Float64("center", 1000, "center frequency in Hz")
	width := flag.Float64("width", 400, "band width in Hz")
	gainDB := flag.Float64("gain", 0, "band gain in dB")
	flatWidth := flag.Float64("flat-width", 200, "plateau flat-top width in Hz")
	skew := flag.Float64("skew", 0, "gaussian/parabolic skew")
	kurtosis := flag.Float64("kurtosis", 1, "gaussian kurtosis")
	flatness := flag.Float64("flatness", 1, "parabolic flatness")

	fadeInMS := flag.Float64("fade-in-ms", 10, "fade-in duration in milliseconds")
	fadeOutMS := flag.Float64("fade-out-ms", 10, "fade-out duration in milliseconds")
	normalizeTarget := flag.Float64("normalize", 0.98, "peak normalize target, 0 disables")
	fadeFirst := flag.Bool("fade-then-normalize", true, "apply fade before normalize (false = normalize first)")
	useDither := flag.Bool("dither", false, "quantize with triangular dither and sharp noise shaping instead of plain rounding")
	olaChunks := flag.Bool("ola-chunks", false, "crossfade across chunk boundaries in chunked mode instead of concatenating strictly")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: noisegen [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Renders shaped noise offline to a WAV file.\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if err := run(runConfig{
		out: *out, cheader: *cheader,
		duration: *duration, sampleRate: *sampleRate, seed: *seed,
		kind: *kindFlag, center: *center, width: *width, gainDB: *gainDB,
		flatWidth: *flatWidth, skew: *skew, kurtosis: *kurtosis, flatness: *flatness,
		fadeInMS: *fadeInMS, fadeOutMS: *fadeOutMS,
		normalizeTarget: *normalizeTarget, fadeFirst: *fadeFirst,
		useDither: *useDither, olaChunks: *olaChunks,
	}); err != nil {
		fmt.Fprintln(os.Stderr, "noisegen:", err)
		os.Exit(1)
	}
}

type runConfig struct {
	out, cheader              string
	duration                  float64
	sampleRate                int
	seed                      int64
	kind                      string
	center, width, gainDB     float64
	flatWidth, skew, kurtosis float64
	flatness                  float64
	fadeInMS, fadeOutMS       float64
	normalizeTarget           float64
	fadeFirst                 bool
	useDither                 bool
	olaChunks                 bool
}

func run(cfg runConfig) error {
	kind, ok := kindNames[strings.ToLower(cfg.kind)]
	if !ok {
		return fmt.Errorf("unknown -kind %q (want plateau, gaussian, or parabolic)", cfg.kind)
	}

	maskCfg := mask.Config{
		Kind:       kind,
		CenterFreq: cfg.center,
		Width:      cfg.width,
		GainDB:     cfg.gainDB,
		FlatWidth:  cfg.flatWidth,
		Skew:       cfg.skew,
		Kurtosis:   cfg.kurtosis,
		Flatness:   cfg.flatness,
	}.Clamp()

	chain := filterchain.New(float64(cfg.sampleRate), stft.AnalysisSize)
	if _, err := chain.AddWithConfig(maskCfg); err != nil {
		return fmt.Errorf("configuring filter chain: %w", err)
	}

	tracks := []render.TrackSpec{{Seed: cfg.seed, Chain: chain, Gain: 1.0}}

	progress := func(p render.Progress) bool {
		fmt.Fprintf(os.Stderr, "\r%s: %5.1f%%", p.Phase, p.OverallPercentage)
		return true
	}

	chunkMode := render.ChunkModeStrictPerChunk
	if cfg.olaChunks {
		chunkMode = render.ChunkModeOLAAcrossChunks
	}
	samples, err := render.RenderWithMode(context.Background(), tracks, cfg.duration, float64(cfg.sampleRate), chunkMode, progress)
	if err != nil {
		return fmt.Errorf("rendering: %w", err)
	}
	fmt.Fprintln(os.Stderr)

	fade := postprocess.FadeConfig{
		FadeInSamples:  int(cfg.fadeInMS * float64(cfg.sampleRate) / 1000),
		FadeOutSamples: int(cfg.fadeOutMS * float64(cfg.sampleRate) / 1000),
		PowerIn:        1,
		PowerOut:       1,
	}
	order := postprocess.FadeThenNormalize
	if !cfg.fadeFirst {
		order = postprocess.NormalizeThenFade
	}
	if cfg.normalizeTarget > 0 {
		postprocess.Process(samples, fade, cfg.normalizeTarget, order)
	} else {
		postprocess.ApplyFade(samples, fade)
	}

	var quantized []int16
	if cfg.useDither {
		q, err := dither.NewQuantizer(float64(cfg.sampleRate), dither.WithSharpPreset())
		if err != nil {
			return fmt.Errorf("configuring dithered quantizer: %w", err)
		}
		quantized = serialize.QuantizeWithDither(q, samples)
	} else {
		quantized = make([]int16, len(samples))
		for i, s := range samples {
			quantized[i] = serialize.QuantizeSample(s)
		}
	}

	wavFile, err := os.Create(cfg.out)
	if err != nil {
		return fmt.Errorf("creating %s: %w", cfg.out, err)
	}
	defer wavFile.Close()
	if err := serialize.WriteWAVQuantized(wavFile, quantized, cfg.sampleRate); err != nil {
		return fmt.Errorf("writing WAV: %w", err)
	}
	fmt.Fprintf(os.Stderr, "wrote %s (%d samples, %.2fs)\n", cfg.out, len(samples), float64(len(samples))/float64(cfg.sampleRate))

	if cfg.cheader != "" {
		headerFile, err := os.Create(cfg.cheader)
		if err != nil {
			return fmt.Errorf("creating %s: %w", cfg.cheader, err)
		}
		defer headerFile.Close()
		hcfg := serialize.CHeaderConfig{
			SampleRate:     cfg.sampleRate,
			MonoSamples:    len(quantized),
			SilenceMS:      100,
			Buffers:        [][]int16{quantized},
			HeaderFilename: cfg.cheader,
		}
		if err := serialize.WriteCHeader(headerFile, hcfg); err != nil {
			return fmt.Errorf("writing C header: %w", err)
		}
		fmt.Fprintf(os.Stderr, "wrote %s\n", cfg.cheader)
	}

	return nil
}
