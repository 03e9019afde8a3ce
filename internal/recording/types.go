package recording

// #region event

// Event is one discrete stimulus marker in a continuous recording.
// FactorA/FactorB are filled in by the labeling pass: 0 means the event's
// label is not a member of that factor's label set, otherwise the 1-based
// position of the matching label within the set.
type Event struct {
	Latency int    // sample index into the continuous signal
	Type    string // marker string as recorded; rewritten by labeling
	FactorA int
	FactorB int
}

// #endregion event

// #region recording

// Recording holds a continuous multichannel signal together with its
// event stream and the metadata the pipeline needs downstream.
type Recording struct {
	Data     [][]float64 // [channel][sample], physical units (uV)
	Rate     float64     // sampling rate in Hz
	Channels []string    // channel labels, len(Channels) == len(Data)
	Events   []Event
	Source   string // base name of the originating file, used for artifact naming
}

// Samples returns the per-channel sample count of the continuous signal.
func (r *Recording) Samples() int {
	if len(r.Data) == 0 {
		return 0
	}
	return len(r.Data[0])
}

// NumChannels returns the channel count.
func (r *Recording) NumChannels() int {
	return len(r.Data)
}

// #endregion recording
