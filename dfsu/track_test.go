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

package dfsu

import (
	"math"
	"path/filepath"
	"testing"
	"time"
)

func TestExtractTrack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "square.dfsu")
	// the field is uniform in space and grows by 10 per step
	newTest2DFile(t, path, 3, func(step, elem int) float32 { return float32(10 * step) })
	f, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}

	track := Track{
		Times: []time.Time{
			testStart.Add(30 * time.Minute), // halfway between steps 0 and 1
			testStart.Add(time.Hour),        // exactly step 1
			testStart.Add(30 * time.Minute), // outside the mesh
			testStart.Add(-time.Hour),       // before the file starts
		},
		X: []float64{0.7, 0.3, 9, 0.5},
		Y: []float64{0.2, 0.8, 9, 0.4},
	}
	// ExtractTrack requires non-decreasing times
	if _, err := f.ExtractTrack(track, TrackOptions{}); err == nil {
		t.Fatal("decreasing track times should fail")
	}
	track.Times[2] = testStart.Add(90 * time.Minute)
	track.Times[3] = testStart.Add(5 * time.Hour)

	ds, err := f.ExtractTrack(track, TrackOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(ds.Items) != 3 {
		t.Fatalf("%d items", len(ds.Items))
	}
	if ds.Items[0].Name != "Longitude" || ds.Items[1].Name != "Latitude" {
		t.Errorf("coordinate items %v, %v", ds.Items[0], ds.Items[1])
	}
	if ds.Data[0].Get(0) != 0.7 || ds.Data[1].Get(1) != 0.8 {
		t.Errorf("track coordinates %v, %v", ds.Data[0].Elements, ds.Data[1].Elements)
	}
	v := ds.Data[2]
	if v.Get(0) != 5 {
		t.Errorf("halfway sample = %g, want 5", v.Get(0))
	}
	if v.Get(1) != 10 {
		t.Errorf("on-step sample = %g, want 10", v.Get(1))
	}
	if !math.IsNaN(v.Get(2)) {
		t.Errorf("outside-mesh sample = %g, want NaN", v.Get(2))
	}
	if !math.IsNaN(v.Get(3)) {
		t.Errorf("outside-span sample = %g, want NaN", v.Get(3))
	}
	if ds.Time.Len() != 4 || !ds.Time.Time(0).Equal(track.Times[0]) {
		t.Errorf("track time axis %v", ds.Time)
	}

	// inverse-distance blending of a uniform field gives the same values
	ds, err = f.ExtractTrack(track, TrackOptions{Method: TrackInverseDistance, NNearest: 2})
	if err != nil {
		t.Fatal(err)
	}
	if got := ds.Data[2].Get(0); got != 5 {
		t.Errorf("inverse-distance halfway sample = %g, want 5", got)
	}
}
