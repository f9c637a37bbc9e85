package serialize

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode"
)

// CHeaderConfig configures the firmware C-header emitter.
type CHeaderConfig struct {
	SampleRate     int
	MonoSamples    int     // samples per mono buffer
	SilenceMS      float64 // used to derive SilenceSamples
	Buffers        [][]int16
	HeaderFilename string // used to derive the include guard
}

// WriteCHeader emits a text C header containing sample-rate/buffer-size
// defines, one int16_t array per buffer, a zeroed stereo silence buffer,
// and a pointer table, wrapped in an include guard derived from
// HeaderFilename.
func WriteCHeader(w io.Writer, cfg CHeaderConfig) error {
	if cfg.SampleRate <= 0 {
		return fmt.Errorf("serialize: SampleRate must be > 0: %d", cfg.SampleRate)
	}
	if cfg.MonoSamples <= 0 {
		return fmt.Errorf("serialize: MonoSamples must be > 0: %d", cfg.MonoSamples)
	}

	stereoSamples := cfg.MonoSamples * 2
	silenceSamples := int(cfg.SilenceMS * float64(cfg.SampleRate) / 1000)
	guard := includeGuard(cfg.HeaderFilename)

	fmt.Fprintf(w, "#ifndef %s\n#define %s\n\n", guard, guard)
	fmt.Fprintf(w, "#define SAMPLE_RATE %d\n", cfg.SampleRate)
	fmt.Fprintf(w, "#define NUM_BUFFERS %d\n", len(cfg.Buffers))
	fmt.Fprintf(w, "#define MONO_SAMPLES %d\n", cfg.MonoSamples)
	fmt.Fprintf(w, "#define STEREO_SAMPLES %d\n", stereoSamples)
	fmt.Fprintf(w, "#define SILENCE_SAMPLES %d\n\n", silenceSamples)

	for i, buf := range cfg.Buffers {
		name := fmt.Sprintf("buffer%d", i+1)
		if err := writeInt16Array(w, name, buf); err != nil {
			return err
		}
	}

	if err := writeInt16Array(w, "silenceBuffer", make([]int16, silenceSamples*2)); err != nil {
		return err
	}

	fmt.Fprintf(w, "static const int16_t *const noiseBuffers[NUM_BUFFERS] = {\n")
	for i := range cfg.Buffers {
		fmt.Fprintf(w, "    buffer%d,\n", i+1)
	}
	fmt.Fprintf(w, "};\n\n")

	fmt.Fprintf(w, "#endif /* %s */\n", guard)
	return nil
}

func writeInt16Array(w io.Writer, name string, values []int16) error {
	fmt.Fprintf(w, "static const int16_t %s[%d] = {\n", name, len(values))
	for i, v := range values {
		if i%8 == 0 {
			fmt.Fprint(w, "   ")
		}
		if i == len(values)-1 {
			fmt.Fprintf(w, " %6d", v)
		} else {
			fmt.Fprintf(w, " %6d,", v)
		}
		if i%8 == 7 || i == len(values)-1 {
			fmt.Fprint(w, "\n")
		}
	}
	fmt.Fprintf(w, "};\n\n")
	return nil
}

func includeGuard(filename string) string {
	base := filepath.Base(filename)
	base = strings.TrimSuffix(base, filepath.Ext(base))

	var b strings.Builder
	for _, r := range strings.ToUpper(base) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	b.WriteString("_H")
	return b.String()
}
