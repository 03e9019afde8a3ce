// Package filterbank applies the zero-phase band-pass prefilter that runs
// before the deconvolution core. Filtering happens in the frequency domain:
// the channel is transformed once, bins outside the pass band are zeroed
// symmetrically, and the signal is transformed back, so no phase shift is
// introduced into the event-locked responses.
package filterbank

import (
	"fmt"

	"github.com/mjibson/go-dsp/fft"
)

// #region bandpass

// BandPass filters one channel in place semantics-wise: it returns a new
// slice with frequency content outside [low, high] Hz removed. A low cutoff
// of 0 disables the high-pass side; a high cutoff of 0 disables the
// low-pass side.
func BandPass(x []float64, rate, low, high float64) ([]float64, error) {
	if rate <= 0 {
		return nil, fmt.Errorf("sampling rate %v not positive", rate)
	}
	if low < 0 || high < 0 {
		return nil, fmt.Errorf("negative cutoff (low=%v high=%v)", low, high)
	}
	if high > 0 && high <= low {
		return nil, fmt.Errorf("high cutoff %v not above low cutoff %v", high, low)
	}
	if high > rate/2 {
		return nil, fmt.Errorf("high cutoff %v above Nyquist %v", high, rate/2)
	}
	if len(x) == 0 {
		return nil, nil
	}

	spec := fft.FFTReal(x)
	n := len(spec)
	binHz := rate / float64(n)
	for k := 1; k < n; k++ {
		// two-sided spectrum: bin k and bin n-k carry the same frequency
		f := float64(k)
		if k > n/2 {
			f = float64(n - k)
		}
		f *= binHz
		if (low > 0 && f < low) || (high > 0 && f > high) {
			spec[k] = 0
		}
	}
	if low > 0 {
		spec[0] = 0 // remove DC with the high-pass side
	}

	inv := fft.IFFT(spec)
	out := make([]float64, len(x))
	for i, c := range inv {
		out[i] = real(c)
	}
	return out, nil
}

// Apply band-pass filters every channel of a recording in place. Cutoffs of
// (0, 0) leave the data untouched.
func Apply(data [][]float64, rate, low, high float64) error {
	if low == 0 && high == 0 {
		return nil
	}
	for ch := range data {
		filtered, err := BandPass(data[ch], rate, low, high)
		if err != nil {
			return fmt.Errorf("channel %d: %w", ch, err)
		}
		data[ch] = filtered
	}
	return nil
}

// #endregion bandpass
