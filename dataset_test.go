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

	"github.com/ctessum/sparse"

	"github.com/spatialmodel/meshdata/spatial"
)

func TestNewDataset(t *testing.T) {
	axis, err := NewEquidistantTimeAxis(time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC), 3600, 3)
	if err != nil {
		t.Fatal(err)
	}
	items := []Item{
		{Name: "Salinity", Quantity: "Salinity", Unit: "PSU"},
		{Name: "Temperature", Quantity: "Temperature", Unit: "degree Celsius"},
	}
	data := []*sparse.DenseArray{
		sparse.ZerosDense(3, 4),
		sparse.ZerosDense(3, 4),
	}

	ds, err := NewDataset(items, data, axis, spatial.GeometryUndefined{}, []string{"time", "element"})
	if err != nil {
		t.Fatal(err)
	}
	if ds.NItems() != 2 {
		t.Errorf("want 2 items, got %d", ds.NItems())
	}
	i, err := ds.ItemIndex("Temperature")
	if err != nil {
		t.Fatal(err)
	}
	if i != 1 {
		t.Errorf("Temperature at index %d", i)
	}
	if _, err := ds.ItemIndex("Density"); err == nil {
		t.Error("unknown item name should fail")
	}
}

func TestNewDatasetShapeErrors(t *testing.T) {
	axis, err := NewEquidistantTimeAxis(time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC), 3600, 3)
	if err != nil {
		t.Fatal(err)
	}
	items := []Item{{Name: "Salinity"}}

	// time dimension mismatch
	_, err = NewDataset(items, []*sparse.DenseArray{sparse.ZerosDense(2, 4)},
		axis, spatial.GeometryUndefined{}, []string{"time", "element"})
	if err == nil {
		t.Error("time-shape mismatch should fail")
	}

	// item count mismatch
	_, err = NewDataset(items, nil, axis, spatial.GeometryUndefined{}, []string{"time", "element"})
	if err == nil {
		t.Error("item/data count mismatch should fail")
	}

	// arrays must agree with each other
	_, err = NewDataset([]Item{{Name: "a"}, {Name: "b"}},
		[]*sparse.DenseArray{sparse.ZerosDense(3, 4), sparse.ZerosDense(3, 5)},
		axis, spatial.GeometryUndefined{}, []string{"time", "element"})
	if err == nil {
		t.Error("inter-item shape mismatch should fail")
	}
}
