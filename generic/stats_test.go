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

package generic

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/spatialmodel/meshdata/dfs"
)

func TestAvgTime(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.dfsu")
	del := dfs.DefaultDeleteValue
	// element 1 is missing in one of the four steps
	writeTestFile(t, in, testStart, 4, 2, func(item, step, elem int) float32 {
		if elem == 1 && step == 2 {
			return del
		}
		return float32(10 * (step + 1))
	})

	// skipna: an element with any missing step is missing in the average
	out := filepath.Join(dir, "avg.dfsu")
	if err := AvgTime(in, out, true); err != nil {
		t.Fatal(err)
	}
	d, err := dfs.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	if d.NSteps() != 1 {
		t.Errorf("%d steps", d.NSteps())
	}
	_, vals, err := d.ReadItemTimeStep(1, 0)
	if err != nil {
		t.Fatal(err)
	}
	if vals[0] != 25 {
		t.Errorf("average = %g, want 25", vals[0])
	}
	if vals[1] != del {
		t.Errorf("partially missing element averaged to %g", vals[1])
	}
	d.Close()

	// without skipna the valid steps are averaged
	out = filepath.Join(dir, "avg2.dfsu")
	if err := AvgTime(in, out, false); err != nil {
		t.Fatal(err)
	}
	if d, err = dfs.Open(out); err != nil {
		t.Fatal(err)
	}
	defer d.Close()
	if _, vals, err = d.ReadItemTimeStep(1, 0); err != nil {
		t.Fatal(err)
	}
	// (10 + 20 + 40) / 3
	if math.Abs(float64(vals[1])-70.0/3) > 1e-4 {
		t.Errorf("average over valid steps = %g, want %g", vals[1], 70.0/3)
	}
}

func TestQuantile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.dfsu")
	del := dfs.DefaultDeleteValue
	// element 0 cycles 10..40; element 1 is entirely missing
	writeTestFile(t, in, testStart, 4, 2, func(item, step, elem int) float32 {
		if elem == 1 {
			return del
		}
		return float32(10 * (step + 1))
	})

	out := filepath.Join(dir, "q.dfsu")
	if err := Quantile(in, out, []float64{0.25, 0.5}, 0); err != nil {
		t.Fatal(err)
	}
	d, err := dfs.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	items := d.Items()
	if len(items) != 4 {
		t.Fatalf("%d output items", len(items))
	}
	if items[0].Name != "Quantile 0.25, Surface elevation" ||
		items[3].Name != "Quantile 0.5, Current speed" {
		t.Errorf("item names %v, %v", items[0].Name, items[3].Name)
	}
	if d.NSteps() != 1 {
		t.Errorf("%d steps", d.NSteps())
	}

	// linear interpolation between order statistics
	_, q25, err := d.ReadItemTimeStep(1, 0)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(float64(q25[0])-17.5) > 1e-4 {
		t.Errorf("q25 = %g, want 17.5", q25[0])
	}
	_, q50, err := d.ReadItemTimeStep(2, 0)
	if err != nil {
		t.Fatal(err)
	}
	if q50[0] != 25 {
		t.Errorf("median = %g, want 25", q50[0])
	}
	// an all-missing element yields NaN, not the delete value
	if !math.IsNaN(float64(q50[1])) {
		t.Errorf("all-missing element quantile = %g, want NaN", q50[1])
	}

	if err := Quantile(in, filepath.Join(dir, "bad.dfsu"), []float64{1.5}, 0); err == nil {
		t.Error("quantile outside [0, 1] should fail")
	}
}

func TestQuantileChunked(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.dfsu")
	writeTestFile(t, in, testStart, 3, 5, func(item, step, elem int) float32 {
		return float32(step + elem)
	})

	// a tiny buffer forces the element range to be processed in chunks
	out := filepath.Join(dir, "q.dfsu")
	if err := Quantile(in, out, []float64{0.5}, 64); err != nil {
		t.Fatal(err)
	}
	d, err := dfs.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()
	_, vals, err := d.ReadItemTimeStep(1, 0)
	if err != nil {
		t.Fatal(err)
	}
	for e := 0; e < 5; e++ {
		if want := float32(e + 1); vals[e] != want {
			t.Errorf("median of element %d = %g, want %g", e, vals[e], want)
		}
	}
}
