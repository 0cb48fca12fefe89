/*
Copyright © 2024 the Meshdata authors.
This file is part of Meshdata.

Meshdata is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

Meshdata is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with Meshdata.  If not, see <http://www.gnu.org/licenses/>.
*/

package meshdata

import (
	"fmt"
	"time"
)

// TimeAxis is the time dimension shared by all arrays in a Dataset. It is
// either equidistant (start, step, count) or an explicit ascending sequence
// of instants.
type TimeAxis struct {
	start time.Time
	dt    float64 // seconds; 0 means non-equidistant
	n     int
	times []time.Time // nil when equidistant
}

// NewEquidistantTimeAxis creates a time axis with n steps of dt seconds
// starting at start. dt must be positive and n non-negative.
func NewEquidistantTimeAxis(start time.Time, dt float64, n int) (TimeAxis, error) {
	if dt <= 0 {
		return TimeAxis{}, fmt.Errorf("meshdata: time step must be positive, got %g", dt)
	}
	if n < 0 {
		return TimeAxis{}, fmt.Errorf("meshdata: number of time steps must be non-negative, got %d", n)
	}
	return TimeAxis{start: start, dt: dt, n: n}, nil
}

// NewTimeAxis creates a non-equidistant time axis from an ascending
// sequence of instants.
func NewTimeAxis(times []time.Time) (TimeAxis, error) {
	if len(times) == 0 {
		return TimeAxis{}, fmt.Errorf("meshdata: time axis must have at least one step")
	}
	for i := 1; i < len(times); i++ {
		if times[i].Before(times[i-1]) {
			return TimeAxis{}, fmt.Errorf("meshdata: time axis must be non-decreasing (step %d is before step %d)", i, i-1)
		}
	}
	t := make([]time.Time, len(times))
	copy(t, times)
	return TimeAxis{start: t[0], n: len(t), times: t}, nil
}

// IsEquidistant reports whether the axis has a constant step.
func (a TimeAxis) IsEquidistant() bool { return a.times == nil }

// Len returns the number of time steps.
func (a TimeAxis) Len() int { return a.n }

// Start returns the first instant on the axis.
func (a TimeAxis) Start() time.Time { return a.start }

// End returns the last instant on the axis.
func (a TimeAxis) End() time.Time { return a.Time(a.n - 1) }

// DT returns the step length in seconds, or 0 for a non-equidistant axis.
func (a TimeAxis) DT() float64 { return a.dt }

// Time returns the instant of step i.
func (a TimeAxis) Time(i int) time.Time {
	if a.times != nil {
		return a.times[i]
	}
	return a.start.Add(time.Duration(float64(i) * a.dt * float64(time.Second)))
}

// OffsetSeconds returns the elapsed seconds of step i relative to the start
// of the axis.
func (a TimeAxis) OffsetSeconds(i int) float64 {
	if a.times != nil {
		return a.times[i].Sub(a.start).Seconds()
	}
	return float64(i) * a.dt
}

// Subset returns a new axis containing only the given steps, which must be
// valid indices in ascending order.
func (a TimeAxis) Subset(steps []int) (TimeAxis, error) {
	times := make([]time.Time, len(steps))
	for i, s := range steps {
		if s < 0 || s >= a.n {
			return TimeAxis{}, fmt.Errorf("meshdata: time step %d out of range [0,%d)", s, a.n)
		}
		times[i] = a.Time(s)
	}
	if a.IsEquidistant() && len(steps) > 1 {
		uniform := true
		for i := 1; i < len(steps); i++ {
			if steps[i]-steps[i-1] != steps[1]-steps[0] {
				uniform = false
				break
			}
		}
		if uniform && steps[1] > steps[0] {
			return TimeAxis{start: times[0], dt: a.dt * float64(steps[1]-steps[0]), n: len(steps)}, nil
		}
	}
	if len(times) == 1 && a.IsEquidistant() {
		return TimeAxis{start: times[0], dt: a.dt, n: 1}, nil
	}
	return NewTimeAxis(times)
}

// TimeSelection selects a subset of the steps on a time axis. The zero
// value selects all steps.
type TimeSelection struct {
	steps    []int
	hasRange bool
	from, to time.Time
}

// SelectSteps selects explicit step indices. Negative indices count back
// from the end of the axis.
func SelectSteps(steps ...int) TimeSelection {
	return TimeSelection{steps: steps}
}

// SelectRange selects all steps with from <= t <= to.
func SelectRange(from, to time.Time) TimeSelection {
	return TimeSelection{hasRange: true, from: from, to: to}
}

// Steps resolves sel against the axis, returning the selected step indices
// and whether the selection names exactly one step (as opposed to a range
// that happens to contain one).
func (a TimeAxis) Steps(sel TimeSelection) (steps []int, single bool, err error) {
	switch {
	case sel.steps != nil:
		steps = make([]int, len(sel.steps))
		for i, s := range sel.steps {
			if s < 0 {
				s += a.n
			}
			if s < 0 || s >= a.n {
				return nil, false, fmt.Errorf("meshdata: time step %d out of range [0,%d)", sel.steps[i], a.n)
			}
			steps[i] = s
		}
		return steps, len(steps) == 1, nil
	case sel.hasRange:
		for i := 0; i < a.n; i++ {
			t := a.Time(i)
			if !t.Before(sel.from) && !t.After(sel.to) {
				steps = append(steps, i)
			}
		}
		if len(steps) == 0 {
			return nil, false, fmt.Errorf("meshdata: no time steps between %v and %v", sel.from, sel.to)
		}
		return steps, false, nil
	default:
		steps = make([]int, a.n)
		for i := range steps {
			steps[i] = i
		}
		return steps, false, nil
	}
}
