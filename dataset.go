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

// Package meshdata holds the in-memory data model for time-varying spatial
// datasets: items, time axes and datasets. File access lives in the dfs,
// dfsu and generic packages; geometry lives in the spatial package.
package meshdata

import (
	"fmt"

	"github.com/ctessum/sparse"

	"github.com/spatialmodel/meshdata/spatial"
)

// Item describes one physical variable tracked across time steps:
// its name, quantity type and unit. Items are immutable once read from a
// file header.
type Item struct {
	Name     string
	Quantity string
	Unit     string
}

func (it Item) String() string {
	return fmt.Sprintf("%s <%s> (%s)", it.Name, it.Quantity, it.Unit)
}

// Dataset is an ordered collection of item-labeled numeric arrays sharing
// one time axis and one geometry. Arrays are dense float64 blocks with NaN
// marking missing values; the dimension names in Dims describe the array
// shape (a subset of "time", "element" in that order).
type Dataset struct {
	Items    []Item
	Data     []*sparse.DenseArray
	Time     TimeAxis
	Geometry spatial.Geometry
	Dims     []string

	// ZN holds per-step vertical node positions for layered geometries,
	// shaped (time, node). It is nil for non-layered data.
	ZN *sparse.DenseArray
}

// NewDataset creates a Dataset and validates that every array's shape is
// consistent with the time axis and the declared dimensions.
func NewDataset(items []Item, data []*sparse.DenseArray, ta TimeAxis, g spatial.Geometry, dims []string) (*Dataset, error) {
	if len(items) != len(data) {
		return nil, fmt.Errorf("meshdata: %d items but %d data arrays", len(items), len(data))
	}
	ds := &Dataset{Items: items, Data: data, Time: ta, Geometry: g, Dims: dims}
	if err := ds.validate(); err != nil {
		return nil, err
	}
	return ds, nil
}

func (ds *Dataset) validate() error {
	hasTime := false
	for _, d := range ds.Dims {
		if d == "time" {
			hasTime = true
		}
	}
	for i, a := range ds.Data {
		if a == nil {
			return fmt.Errorf("meshdata: item %q has no data", ds.Items[i].Name)
		}
		if len(a.Shape) != len(ds.Dims) {
			return fmt.Errorf("meshdata: item %q has %d dimensions, want %d", ds.Items[i].Name, len(a.Shape), len(ds.Dims))
		}
		if hasTime && a.Shape[0] != ds.Time.Len() {
			return fmt.Errorf("meshdata: item %q has %d time steps, axis has %d", ds.Items[i].Name, a.Shape[0], ds.Time.Len())
		}
		if i > 0 {
			for j, n := range a.Shape {
				if n != ds.Data[0].Shape[j] {
					return fmt.Errorf("meshdata: item %q shape differs from item %q", ds.Items[i].Name, ds.Items[0].Name)
				}
			}
		}
	}
	return nil
}

// NItems returns the number of items in the dataset.
func (ds *Dataset) NItems() int { return len(ds.Items) }

// ItemIndex returns the index of the item with the given name, or an error
// if no such item exists.
func (ds *Dataset) ItemIndex(name string) (int, error) {
	for i, it := range ds.Items {
		if it.Name == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("meshdata: no item named %q", name)
}
