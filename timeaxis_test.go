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
	"testing"
	"time"
)

func TestEquidistantTimeAxis(t *testing.T) {
	start := time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)
	a, err := NewEquidistantTimeAxis(start, 3600, 4)
	if err != nil {
		t.Fatal(err)
	}
	if !a.IsEquidistant() {
		t.Error("axis should be equidistant")
	}
	if a.Len() != 4 {
		t.Errorf("want 4 steps, got %d", a.Len())
	}
	if got := a.Time(2); !got.Equal(start.Add(2 * time.Hour)) {
		t.Errorf("step 2 at %v", got)
	}
	if got := a.OffsetSeconds(3); got != 10800 {
		t.Errorf("step 3 offset %g s", got)
	}
	if got := a.End(); !got.Equal(start.Add(3 * time.Hour)) {
		t.Errorf("end at %v", got)
	}

	if _, err := NewEquidistantTimeAxis(start, 0, 4); err == nil {
		t.Error("zero time step should fail")
	}
}

func TestTimeAxisNonEquidistant(t *testing.T) {
	start := time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)
	times := []time.Time{start, start.Add(time.Hour), start.Add(5 * time.Hour)}
	a, err := NewTimeAxis(times)
	if err != nil {
		t.Fatal(err)
	}
	if a.IsEquidistant() {
		t.Error("axis should not be equidistant")
	}
	if got := a.OffsetSeconds(2); got != 18000 {
		t.Errorf("step 2 offset %g s", got)
	}

	backwards := []time.Time{start.Add(time.Hour), start}
	if _, err := NewTimeAxis(backwards); err == nil {
		t.Error("decreasing times should fail")
	}
}

func TestTimeAxisSubset(t *testing.T) {
	start := time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)
	a, err := NewEquidistantTimeAxis(start, 3600, 6)
	if err != nil {
		t.Fatal(err)
	}

	// a uniform stride stays equidistant with a larger step
	sub, err := a.Subset([]int{1, 3, 5})
	if err != nil {
		t.Fatal(err)
	}
	if !sub.IsEquidistant() {
		t.Error("uniform-stride subset should stay equidistant")
	}
	if sub.DT() != 7200 {
		t.Errorf("subset dt %g s", sub.DT())
	}
	if !sub.Start().Equal(start.Add(time.Hour)) {
		t.Errorf("subset starts at %v", sub.Start())
	}

	irr, err := a.Subset([]int{0, 1, 5})
	if err != nil {
		t.Fatal(err)
	}
	if irr.IsEquidistant() {
		t.Error("irregular subset should not be equidistant")
	}

	if _, err := a.Subset([]int{7}); err == nil {
		t.Error("out-of-range step should fail")
	}
}

func TestTimeSelection(t *testing.T) {
	start := time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)
	a, err := NewEquidistantTimeAxis(start, 3600, 5)
	if err != nil {
		t.Fatal(err)
	}

	steps, single, err := a.Steps(TimeSelection{})
	if err != nil {
		t.Fatal(err)
	}
	if len(steps) != 5 || single {
		t.Errorf("zero selection: %d steps, single=%v", len(steps), single)
	}

	steps, single, err = a.Steps(SelectSteps(-1))
	if err != nil {
		t.Fatal(err)
	}
	if len(steps) != 1 || steps[0] != 4 || !single {
		t.Errorf("step -1 resolved to %v, single=%v", steps, single)
	}

	if _, _, err := a.Steps(SelectSteps(5)); err == nil {
		t.Error("out-of-range step should fail")
	}

	steps, _, err = a.Steps(SelectRange(start.Add(time.Hour), start.Add(3*time.Hour)))
	if err != nil {
		t.Fatal(err)
	}
	if len(steps) != 3 || steps[0] != 1 || steps[2] != 3 {
		t.Errorf("range resolved to %v", steps)
	}

	if _, _, err := a.Steps(SelectRange(start.Add(100*time.Hour), start.Add(200*time.Hour))); err == nil {
		t.Error("empty range should fail")
	}
}
