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

package dfs

import (
	"math"
	"path/filepath"
	"testing"
	"time"
)

var testStart = time.Date(2018, 3, 7, 12, 0, 0, 0, time.UTC)

// newTestFile creates a small two-item unstructured file and fills it
// with steps*f(item, step, value-index) data.
func newTestFile(t *testing.T, path string, nSteps int, f func(item, step, i int) float32) {
	t.Helper()
	b := NewBuilder("test data", "LONG/LAT")
	b.SetType("dfsu_2d")
	b.SetTimeAxis(testStart, 3600)
	b.SetNodes(NodeTable{
		X:    []float64{0, 1, 1, 0},
		Y:    []float64{0, 0, 1, 1},
		Z:    []float64{-2, -4, -6, -8},
		Code: []int32{1, 1, 1, 1},
		ID:   []int32{1, 2, 3, 4},
	})
	b.SetElements(ElementTable{
		Connectivity: [][]int32{{1, 2, 3}, {1, 3, 4}},
		ID:           []int32{1, 2},
	})
	b.AddItem(ItemInfo{Name: "Surface elevation", Quantity: "Surface Elevation", Unit: "meter", ElementCount: 2})
	b.AddItem(ItemInfo{Name: "Current speed", Quantity: "Current Speed", Unit: "meter per sec", ElementCount: 2})
	b.AddCustomBlock("MIKE_FM", []float64{4, 2, 2, 0, 0})

	out, err := b.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	for step := 0; step < nSteps; step++ {
		for item := 0; item < 2; item++ {
			data := []float32{f(item, step, 0), f(item, step, 1)}
			if err := out.WriteItemTimeStepNext(float64(step)*3600, data); err != nil {
				t.Fatal(err)
			}
		}
	}
	if err := out.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.dfsu")
	newTestFile(t, path, 3, func(item, step, i int) float32 {
		return float32(100*item + 10*step + i)
	})

	f, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	info := f.FileInfo()
	if info.Title != "test data" {
		t.Errorf("title %q", info.Title)
	}
	if info.Type != "dfsu_2d" {
		t.Errorf("type %q", info.Type)
	}
	if info.Projection != "LONG/LAT" {
		t.Errorf("projection %q", info.Projection)
	}
	if !info.StartTime.Equal(testStart) {
		t.Errorf("start time %v", info.StartTime)
	}
	if info.TimeStep != 3600 {
		t.Errorf("time step %g", info.TimeStep)
	}
	if info.DeleteValue != DefaultDeleteValue {
		t.Errorf("delete value %g", info.DeleteValue)
	}
	if got := info.CustomBlocks["MIKE_FM"]; len(got) != 5 || got[0] != 4 {
		t.Errorf("custom block %v", got)
	}

	items := f.Items()
	if len(items) != 2 {
		t.Fatalf("%d items", len(items))
	}
	if items[0].Name != "Surface elevation" || items[0].ElementCount != 2 {
		t.Errorf("item 0: %+v", items[0])
	}
	if items[1].Unit != "meter per sec" {
		t.Errorf("item 1: %+v", items[1])
	}

	if f.NSteps() != 3 {
		t.Errorf("%d time steps", f.NSteps())
	}
	offsets := f.TimeOffsets()
	if offsets[2] != 7200 {
		t.Errorf("step 2 offset %g", offsets[2])
	}

	offset, data, err := f.ReadItemTimeStep(2, 1)
	if err != nil {
		t.Fatal(err)
	}
	if offset != 3600 {
		t.Errorf("step offset %g", offset)
	}
	if data[0] != 110 || data[1] != 111 {
		t.Errorf("item 2 step 1 data %v", data)
	}

	if _, _, err := f.ReadItemTimeStep(3, 0); err == nil {
		t.Error("out-of-range item number should fail")
	}
	if _, _, err := f.ReadItemTimeStep(1, 3); err == nil {
		t.Error("out-of-range time step should fail")
	}
}

func TestStaticTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.dfsu")
	newTestFile(t, path, 1, func(item, step, i int) float32 { return 0 })

	f, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	nodes, err := f.NodeTable()
	if err != nil {
		t.Fatal(err)
	}
	if len(nodes.X) != 4 {
		t.Fatalf("%d nodes", len(nodes.X))
	}
	if nodes.Z[3] != -8 || nodes.Code[0] != 1 || nodes.ID[1] != 2 {
		t.Errorf("node table %+v", nodes)
	}

	elems, err := f.ElementTable()
	if err != nil {
		t.Fatal(err)
	}
	if len(elems.Connectivity) != 2 {
		t.Fatalf("%d elements", len(elems.Connectivity))
	}
	if elems.Connectivity[1][2] != 4 {
		t.Errorf("element table %v", elems.Connectivity)
	}

	// no spectral axes in this file
	freq, err := f.Frequencies()
	if err != nil {
		t.Fatal(err)
	}
	if freq != nil {
		t.Errorf("frequencies %v", freq)
	}
}

func TestOpenEdit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.dfsu")
	newTestFile(t, path, 2, func(item, step, i int) float32 { return 1 })

	f, err := OpenEdit(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.WriteItemTimeStep(1, 0, 0, []float32{42, 43}); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	f, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	_, data, err := f.ReadItemTimeStep(1, 0)
	if err != nil {
		t.Fatal(err)
	}
	if data[0] != 42 || data[1] != 43 {
		t.Errorf("rewritten data %v", data)
	}
	// the other item is untouched
	_, data, err = f.ReadItemTimeStep(2, 0)
	if err != nil {
		t.Fatal(err)
	}
	if data[0] != 1 {
		t.Errorf("item 2 data %v", data)
	}

	// read-only handles reject writes
	if err := f.WriteItemTimeStep(1, 0, 0, []float32{0, 0}); err == nil {
		t.Error("writing through a read-only handle should fail")
	}
}

func TestCloneBuilder(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.dfsu")
	newTestFile(t, src, 2, func(item, step, i int) float32 { return float32(step) })

	f, err := Open(src)
	if err != nil {
		t.Fatal(err)
	}
	b, err := CloneBuilder(f)
	if err != nil {
		t.Fatal(err)
	}
	f.Close()

	// keep only the second item and move the start
	newStart := testStart.Add(24 * time.Hour)
	b.SetItems(b.Items()[1:]).SetStartTime(newStart)

	dst := filepath.Join(dir, "dst.dfsu")
	out, err := b.Create(dst)
	if err != nil {
		t.Fatal(err)
	}
	if err := out.WriteItemTimeStepNext(0, []float32{7, 8}); err != nil {
		t.Fatal(err)
	}
	if err := out.Close(); err != nil {
		t.Fatal(err)
	}

	g, err := Open(dst)
	if err != nil {
		t.Fatal(err)
	}
	defer g.Close()
	if len(g.Items()) != 1 || g.Items()[0].Name != "Current speed" {
		t.Errorf("cloned items %+v", g.Items())
	}
	if !g.FileInfo().StartTime.Equal(newStart) {
		t.Errorf("cloned start time %v", g.FileInfo().StartTime)
	}
	if g.NSteps() != 1 {
		t.Errorf("%d steps in clone", g.NSteps())
	}
	nodes, err := g.NodeTable()
	if err != nil {
		t.Fatal(err)
	}
	if len(nodes.X) != 4 {
		t.Errorf("clone did not carry the node table")
	}
	if got := g.FileInfo().CustomBlocks["MIKE_FM"]; len(got) != 5 {
		t.Errorf("clone custom block %v", got)
	}
}

func TestDeleteValueStorage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.dfsu")
	newTestFile(t, path, 1, func(item, step, i int) float32 {
		if i == 1 {
			return DefaultDeleteValue
		}
		return 3
	})

	f, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	_, data, err := f.ReadItemTimeStep(1, 0)
	if err != nil {
		t.Fatal(err)
	}
	if data[1] != DefaultDeleteValue {
		t.Errorf("delete value read back as %g", data[1])
	}
	if math.IsNaN(float64(data[0])) {
		t.Error("valid value read back as NaN")
	}
}
