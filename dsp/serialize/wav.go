// Package serialize writes rendered buffers to disk in the two output
// formats the offline export pipeline supports: a standard PCM16 WAV file
// and a C-header array suitable for embedding in firmware.
package serialize

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/cwbudde/shapednoise/dsp/dither"
)

const (
	wavHeaderBytes   = 44
	wavBitsPerSample = 16
	wavChannels      = 1
	wavFormatPCM     = 1
)

// WriteWAV writes samples as a mono, 16-bit PCM WAV file at sampleRate.
// Samples are clamped to [-1, 1] before conversion to int16 via
// round(x * 32767).
func WriteWAV(w io.Writer, samples []float64, sampleRate int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("serialize: sampleRate must be > 0: %d", sampleRate)
	}
	if err := writeWAVHeader(w, len(samples), sampleRate); err != nil {
		return err
	}

	buf := make([]byte, 2)
	for _, s := range samples {
		v := QuantizeSample(s)
		binary.LittleEndian.PutUint16(buf, uint16(v))
		if _, err := w.Write(buf); err != nil {
			return fmt.Errorf("serialize: writing WAV sample data: %w", err)
		}
	}

	return nil
}

// WriteWAVQuantized writes already-quantized 16-bit PCM samples as a mono
// WAV file, for callers that quantize through QuantizeWithDither instead of
// WriteWAV's default round-only path.
func WriteWAVQuantized(w io.Writer, samples []int16, sampleRate int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("serialize: sampleRate must be > 0: %d", sampleRate)
	}
	if err := writeWAVHeader(w, len(samples), sampleRate); err != nil {
		return err
	}

	buf := make([]byte, 2)
	for _, v := range samples {
		binary.LittleEndian.PutUint16(buf, uint16(v))
		if _, err := w.Write(buf); err != nil {
			return fmt.Errorf("serialize: writing WAV sample data: %w", err)
		}
	}

	return nil
}

func writeWAVHeader(w io.Writer, numSamples, sampleRate int) error {
	dataBytes := numSamples * 2
	byteRate := sampleRate * wavChannels * wavBitsPerSample / 8
	blockAlign := wavChannels * wavBitsPerSample / 8

	header := make([]byte, wavHeaderBytes)
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+dataBytes))
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], wavFormatPCM)
	binary.LittleEndian.PutUint16(header[22:24], wavChannels)
	binary.LittleEndian.PutUint32(header[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(header[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(header[34:36], wavBitsPerSample)
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(dataBytes))

	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("serialize: writing WAV header: %w", err)
	}
	return nil
}

// QuantizeSample clamps x to [-1, 1] and converts it to a 16-bit PCM
// sample via round(x * 32767), the default serialization path.
func QuantizeSample(x float64) int16 {
	if x < -1 {
		x = -1
	} else if x > 1 {
		x = 1
	}
	return int16(math.Round(x * 32767))
}

// QuantizeWithDither converts samples to 16-bit PCM through a
// dither.Quantizer, an enhanced alternative to the default round-only
// path above for callers that want triangular dither and noise shaping
// ahead of truncation.
func QuantizeWithDither(q *dither.Quantizer, samples []float64) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		out[i] = int16(q.ProcessInteger(s))
	}
	return out
}
