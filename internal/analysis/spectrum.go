// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math"
	"math/bits"
	"math/cmplx"
	"strings"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"

	"viz/internal/log"
)

// WindowFunc defines the type for selecting an FFT window function.
type WindowFunc int

// Enum for available window functions.
const (
	BartlettHann WindowFunc = iota
	Blackman
	BlackmanNuttall
	Hann
	Hamming
	Lanczos
	Nuttall
)

// Decibel range mapped onto the byte snapshot. Magnitudes at or below
// minDecibels become 0, at or above maxDecibels become 255. These match the
// defaults of the browser analyser the snapshot format was lifted from.
const (
	minDecibels = -100.0
	maxDecibels = -30.0
)

// Pre-allocated buffers for the spectrum hot path.
type spectrumWorkspace struct {
	input    []float64    // Windowed, scaled input signal.
	coeffs   []complex128 // FFT complex output.
	snapshot []byte       // Byte magnitudes, fftSize/2 bins.
	window   []float64    // Pre-calculated window coefficients.
	mu       sync.RWMutex // Protects concurrent access to the snapshot buffer.
}

// Spectrum converts raw int32 capture buffers into byte frequency snapshots.
// Process runs inside the real-time capture callback and must not allocate;
// all buffers are pre-allocated at construction. Readers copy the latest
// snapshot out under a read lock via SnapshotInto.
type Spectrum struct {
	fft        *fourier.FFT
	fftSize    int
	sampleRate float64
	workspace  spectrumWorkspace
}

// NewSpectrum creates a spectrum stage for the given FFT size and sample rate.
// The FFT size must be a power of 2; the resulting snapshot has fftSize/2 bins.
func NewSpectrum(fftSize int, sampleRate float64, windowType WindowFunc) (*Spectrum, error) {
	if fftSize <= 0 || fftSize&(fftSize-1) != 0 {
		return nil, fmt.Errorf("fft size must be a power of 2, got %d", fftSize)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %f", sampleRate)
	}

	windowCoeffs := make([]float64, fftSize)
	applyWindow(windowCoeffs, windowType)

	log.Debugf("Analysis: Initializing Spectrum (Size: %d, SampleRate: %.1f Hz, Window: %v)",
		fftSize, sampleRate, windowType)

	return &Spectrum{
		fft:        fourier.NewFFT(fftSize),
		fftSize:    fftSize,
		sampleRate: sampleRate,
		workspace: spectrumWorkspace{
			input:    make([]float64, fftSize),
			coeffs:   make([]complex128, fftSize/2+1),
			snapshot: make([]byte, fftSize/2),
			window:   windowCoeffs,
		},
	}, nil
}

// Process applies windowing, performs the FFT and writes the byte snapshot.
// The input is zero-padded if shorter than the FFT size.
func (s *Spectrum) Process(inputBuffer []int32) {
	s.workspace.mu.Lock()

	const normFactor = 1.0 / float64(0x80000000) // int32 to [-1.0, 1.0)
	inputLen := len(inputBuffer)
	for i := range s.fftSize {
		if i < inputLen {
			s.workspace.input[i] = float64(inputBuffer[i]) * normFactor * s.workspace.window[i]
		} else {
			s.workspace.input[i] = 0
		}
	}

	s.fft.Coefficients(s.workspace.coeffs, s.workspace.input)

	// Map magnitudes to bytes through the decibel range. The Nyquist bin is
	// dropped so the snapshot is exactly fftSize/2 bins.
	scale := 2.0 / float64(s.fftSize)
	for i := range s.workspace.snapshot {
		mag := cmplx.Abs(s.workspace.coeffs[i]) * scale
		db := 20 * math.Log10(mag+1e-12)
		v := (db - minDecibels) / (maxDecibels - minDecibels) * 255
		if v < 0 {
			v = 0
		} else if v > 255 {
			v = 255
		}
		s.workspace.snapshot[i] = byte(v)
	}

	s.workspace.mu.Unlock()
}

// SnapshotInto copies the latest byte snapshot into dst without allocating.
// dst must have exactly Bins() elements.
func (s *Spectrum) SnapshotInto(dst []byte) error {
	s.workspace.mu.RLock()
	defer s.workspace.mu.RUnlock()

	if len(dst) != len(s.workspace.snapshot) {
		return fmt.Errorf("destination length %d does not match snapshot length %d",
			len(dst), len(s.workspace.snapshot))
	}
	copy(dst, s.workspace.snapshot)
	return nil
}

// Bins returns the number of frequency bins in a snapshot (fftSize/2).
func (s *Spectrum) Bins() int {
	return s.fftSize / 2
}

// FrequencyForBin returns the center frequency (Hz) for a given bin index.
func (s *Spectrum) FrequencyForBin(binIndex int) float64 {
	if binIndex < 0 || binIndex >= s.fftSize/2 {
		return 0
	}
	return float64(binIndex) * (s.sampleRate / float64(s.fftSize))
}

// SampleRate returns the configured sample rate (Hz).
func (s *Spectrum) SampleRate() float64 {
	return s.sampleRate
}

// NextPowerOfTwo returns the next power of 2 >= size, used to round capture
// buffer sizes up to a valid FFT size.
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	return 1 << bits.Len64(uint64(size-1))
}

// ParseWindowFunc converts a string name (case-insensitive) to a WindowFunc.
// Returns Hann and an error if the name is unknown.
func ParseWindowFunc(name string) (WindowFunc, error) {
	switch strings.ToLower(name) {
	case "bartletthann":
		return BartlettHann, nil
	case "blackman":
		return Blackman, nil
	case "blackmannuttall":
		return BlackmanNuttall, nil
	case "hann", "hanning":
		return Hann, nil
	case "hamming":
		return Hamming, nil
	case "lanczos":
		return Lanczos, nil
	case "nuttall":
		return Nuttall, nil
	default:
		return Hann, fmt.Errorf("unknown FFT window function name: '%s'", name)
	}
}

// applyWindow fills coeffs with the coefficients of the selected window
// function. Unknown types fall back to Hann.
func applyWindow(coeffs []float64, windowType WindowFunc) {
	// The gonum window functions multiply in place, so initialize to 1.0 first.
	for i := range coeffs {
		coeffs[i] = 1.0
	}
	switch windowType {
	case BartlettHann:
		window.BartlettHann(coeffs)
	case Blackman:
		window.Blackman(coeffs)
	case BlackmanNuttall:
		window.BlackmanNuttall(coeffs)
	case Hann:
		window.Hann(coeffs)
	case Hamming:
		window.Hamming(coeffs)
	case Lanczos:
		window.Lanczos(coeffs)
	case Nuttall:
		window.Nuttall(coeffs)
	default:
		log.Warnf("Analysis: Unknown window function type %d, defaulting to Hann", windowType)
		window.Hann(coeffs)
	}
}
