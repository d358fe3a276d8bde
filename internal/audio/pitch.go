package audio

import (
	"math"
	"sort"

	"github.com/mjibson/go-dsp/fft"
)

// PitchConfig holds the YIN pitch tracker parameters.
type PitchConfig struct {
	FMin       float64 // lowest trackable fundamental, Hz
	FMax       float64 // highest trackable fundamental, Hz
	FrameLen   int     // analysis frame, samples
	HopLen     int     // frame advance, samples
	Threshold  float64 // YIN absolute threshold on the normalized difference
	MedianWin  int     // width of the median smoother on the f0 track
	VoicingPct float64 // RMS percentile below which a frame is unvoiced
}

// DefaultPitchConfig covers the hummed/sung range.
func DefaultPitchConfig() PitchConfig {
	return PitchConfig{
		FMin:       80.0,
		FMax:       500.0,
		FrameLen:   2048,
		HopLen:     256,
		Threshold:  0.1,
		MedianWin:  7,
		VoicingPct: 35.0,
	}
}

// PitchTrack is a framewise fundamental-frequency estimate. F0 is in Hz
// with 0 marking unvoiced frames.
type PitchTrack struct {
	Times []float64
	F0    []float64
}

// EstimateF0 runs YIN over the samples: per frame, the squared difference
// function (computed via FFT autocorrelation), cumulative mean
// normalization, absolute-threshold lag picking with parabolic refinement.
// Frames whose RMS falls below the configured percentile are zeroed as
// unvoiced, and the final track is median-smoothed to kill octave spikes.
func EstimateF0(samples []float64, sampleRate int, cfg PitchConfig) PitchTrack {
	if len(samples) < cfg.FrameLen {
		return PitchTrack{}
	}

	tauMin := int(float64(sampleRate) / cfg.FMax)
	tauMax := int(float64(sampleRate) / cfg.FMin)
	if tauMax >= cfg.FrameLen {
		tauMax = cfg.FrameLen - 1
	}
	if tauMin < 2 {
		tauMin = 2
	}

	nFrames := (len(samples)-cfg.FrameLen)/cfg.HopLen + 1
	times := make([]float64, nFrames)
	f0 := make([]float64, nFrames)
	rms := make([]float64, nFrames)

	for fi := 0; fi < nFrames; fi++ {
		start := fi * cfg.HopLen
		frame := samples[start : start+cfg.FrameLen]
		times[fi] = float64(start) / float64(sampleRate)
		rms[fi] = frameRMS(frame)
		f0[fi] = yinFrame(frame, sampleRate, tauMin, tauMax, cfg.Threshold)
	}

	// Voicing gate: quiet frames are breaths and gaps, not pitch.
	thr := percentile(rms, cfg.VoicingPct)
	for i := range f0 {
		if rms[i] <= thr {
			f0[i] = 0
		}
	}

	return PitchTrack{Times: times, F0: medianFilter(f0, cfg.MedianWin)}
}

// yinFrame returns the YIN f0 estimate for one frame, or 0 when no lag in
// range dips convincingly.
func yinFrame(frame []float64, sampleRate, tauMin, tauMax int, threshold float64) float64 {
	w := len(frame)
	r := autocorrelate(frame)

	// Prefix energies for the difference function:
	// d(tau) = e[w-tau] + (e[w]-e[tau]) - 2*r[tau]
	e := make([]float64, w+1)
	for i, x := range frame {
		e[i+1] = e[i] + x*x
	}

	d := make([]float64, tauMax+1)
	for tau := 1; tau <= tauMax; tau++ {
		d[tau] = e[w-tau] + (e[w] - e[tau]) - 2*r[tau]
		if d[tau] < 0 {
			d[tau] = 0 // float cancellation
		}
	}

	// Cumulative mean normalized difference.
	cmnd := make([]float64, tauMax+1)
	cmnd[0] = 1
	var running float64
	for tau := 1; tau <= tauMax; tau++ {
		running += d[tau]
		if running <= 0 {
			cmnd[tau] = 1
		} else {
			cmnd[tau] = d[tau] * float64(tau) / running
		}
	}

	// First lag under the threshold wins; slide to the local minimum.
	tau := -1
	for t := tauMin; t <= tauMax; t++ {
		if cmnd[t] < threshold {
			for t+1 <= tauMax && cmnd[t+1] < cmnd[t] {
				t++
			}
			tau = t
			break
		}
	}
	if tau == -1 {
		// No confident dip: fall back to the global minimum if it is at
		// least a weak dip, otherwise call the frame pitchless.
		best := tauMin
		for t := tauMin + 1; t <= tauMax; t++ {
			if cmnd[t] < cmnd[best] {
				best = t
			}
		}
		if cmnd[best] >= 0.5 {
			return 0
		}
		tau = best
	}

	return float64(sampleRate) / refineLag(cmnd, tau)
}

// refineLag interpolates a parabola through the minimum and its neighbors
// for sub-sample lag precision.
func refineLag(cmnd []float64, tau int) float64 {
	if tau <= 0 || tau+1 >= len(cmnd) {
		return float64(tau)
	}
	a, b, c := cmnd[tau-1], cmnd[tau], cmnd[tau+1]
	denom := a - 2*b + c
	if denom == 0 {
		return float64(tau)
	}
	shift := 0.5 * (a - c) / denom
	if shift > 1 || shift < -1 {
		return float64(tau)
	}
	return float64(tau) + shift
}

// autocorrelate computes the linear autocorrelation r[tau] of the frame
// via FFT on a zero-padded copy.
func autocorrelate(frame []float64) []float64 {
	n := 1
	for n < 2*len(frame) {
		n <<= 1
	}
	padded := make([]float64, n)
	copy(padded, frame)

	spec := fft.FFTReal(padded)
	for i, v := range spec {
		re := real(v)
		im := imag(v)
		spec[i] = complex(re*re+im*im, 0)
	}
	inv := fft.IFFT(spec)

	r := make([]float64, len(frame))
	for i := range r {
		r[i] = real(inv[i])
	}
	return r
}

func frameRMS(frame []float64) float64 {
	var sum float64
	for _, x := range frame {
		sum += x * x
	}
	return math.Sqrt(sum / float64(len(frame)))
}

// percentile returns the p-th linear-interpolated percentile of xs.
func percentile(xs []float64, p float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)

	pos := p / 100.0 * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// medianFilter smooths xs with a centered window, shrinking the window at
// the edges.
func medianFilter(xs []float64, width int) []float64 {
	if width <= 1 || len(xs) == 0 {
		return xs
	}
	half := width / 2
	out := make([]float64, len(xs))
	win := make([]float64, 0, width)
	for i := range xs {
		lo := i - half
		if lo < 0 {
			lo = 0
		}
		hi := i + half
		if hi >= len(xs) {
			hi = len(xs) - 1
		}
		win = append(win[:0], xs[lo:hi+1]...)
		sort.Float64s(win)
		out[i] = win[len(win)/2]
	}
	return out
}
