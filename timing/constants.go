// Package timing holds the fixed resolution constants and the sample-accurate
// master clock that drives everything else in the engine.
package timing

// Resolution and capacity limits shared by every package.
const (
	PPQN        = 24 // pulses per quarter note
	MaxStages   = 8
	MaxRatchets = 8
	MaxPulses   = 8
	MaxVoices   = 64
	MaxTracks   = 8
)

// Transport defaults and limits.
const (
	DefaultTempo       = 120.0
	MaxTempo           = 999.0
	DefaultSampleRate  = 48000
	DefaultBeatsPerBar = 4
	MaxBeatsPerBar     = 16
)

// SamplesPerPulse returns the (generally fractional) number of samples in one
// pulse at the given tempo and sample rate.
func SamplesPerPulse(bpm, sampleRate float64) float64 {
	if bpm <= 0 || sampleRate <= 0 {
		return 0
	}
	return sampleRate * 60 / (bpm * PPQN)
}
