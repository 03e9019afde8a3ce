// Package artifacts detects amplitude artifacts in the continuous signal
// and masks the affected time-expanded rows out of the fit.
//
// Detection scans fixed-length windows across the whole recording; any
// channel exceeding the threshold anywhere in a window flags the window's
// full sample interval. Exclusion is purely a fit-time row mask: the
// underlying signal and the expanded matrix keep their dimensions.
package artifacts

import "fmt"

// #region detect

// Interval is a flagged [Start, End] sample range, inclusive on both ends.
type Interval struct {
	Start int
	End   int
}

// Detect scans the continuous signal in fixed windows of winSamples and
// returns the merged intervals where any channel's magnitude exceeds the
// threshold. The scan is deterministic: the same signal and threshold
// always produce the same interval set.
func Detect(data [][]float64, threshold float64, winSamples int) ([]Interval, error) {
	if threshold <= 0 {
		return nil, fmt.Errorf("threshold %v not positive", threshold)
	}
	if winSamples <= 0 {
		return nil, fmt.Errorf("window length %d not positive", winSamples)
	}
	if len(data) == 0 {
		return nil, nil
	}

	n := len(data[0])
	var intervals []Interval
	for start := 0; start < n; start += winSamples {
		end := start + winSamples - 1
		if end > n-1 {
			end = n - 1
		}
		if !windowExceeds(data, start, end, threshold) {
			continue
		}
		// merge with the previous interval when windows touch
		if len(intervals) > 0 && intervals[len(intervals)-1].End+1 == start {
			intervals[len(intervals)-1].End = end
		} else {
			intervals = append(intervals, Interval{Start: start, End: end})
		}
	}
	return intervals, nil
}

func windowExceeds(data [][]float64, start, end int, threshold float64) bool {
	for _, ch := range data {
		for s := start; s <= end; s++ {
			v := ch[s]
			if v > threshold || v < -threshold {
				return true
			}
		}
	}
	return false
}

// #endregion detect

// #region mask

// Mask flags time-expanded sample rows excluded from the fit.
type Mask struct {
	excluded []bool
	count    int
}

// NewMask returns an all-included mask over nSamples rows.
func NewMask(nSamples int) *Mask {
	return &Mask{excluded: make([]bool, nSamples)}
}

// Exclude flags every sample inside the given intervals. Re-applying the
// same intervals is a no-op.
func (m *Mask) Exclude(intervals []Interval) {
	for _, iv := range intervals {
		start, end := iv.Start, iv.End
		if start < 0 {
			start = 0
		}
		if end > len(m.excluded)-1 {
			end = len(m.excluded) - 1
		}
		for s := start; s <= end; s++ {
			if !m.excluded[s] {
				m.excluded[s] = true
				m.count++
			}
		}
	}
}

// Excluded reports whether a sample row is masked out of the fit.
func (m *Mask) Excluded(sample int) bool {
	return m.excluded[sample]
}

// Count returns the number of excluded sample rows.
func (m *Mask) Count() int { return m.count }

// Len returns the total row count the mask covers.
func (m *Mask) Len() int { return len(m.excluded) }

// #endregion mask
