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
	"fmt"
	"math"

	"github.com/spatialmodel/meshdata"
	"github.com/spatialmodel/meshdata/dfs"
	"github.com/spatialmodel/meshdata/spatial"
)

// WriteOptions configures Write. The zero value is usable.
type WriteOptions struct {
	Title       string
	DeleteValue float32 // 0 means the default delete value
}

// Write stores a Dataset as a new unstructured file. The dataset must
// have an equidistant time axis and a writable geometry (mesh or
// spectral); NaN values are stored as the delete value. For layered
// geometries Dataset.ZN supplies the per-step vertical node positions
// and is written as the leading item.
func Write(path string, ds *meshdata.Dataset, opts WriteOptions) error {
	if !ds.Time.IsEquidistant() {
		return fmt.Errorf("dfsu: writing %s: time axis must be equidistant", path)
	}
	if len(ds.Dims) != 2 || ds.Dims[0] != "time" {
		return fmt.Errorf("dfsu: writing %s: dataset must be (time, element) dimensioned, got %v", path, ds.Dims)
	}
	if ds.NItems() == 0 {
		return fmt.Errorf("dfsu: writing %s: dataset has no items", path)
	}

	b := dfs.NewBuilder(opts.Title, ds.Geometry.Projection())
	if opts.DeleteValue != 0 {
		b.SetDeleteValue(opts.DeleteValue)
	}
	if ds.Time.Len() > 0 {
		b.SetTimeAxis(ds.Time.Start(), ds.Time.DT())
	}

	ftype, err := configureGeometry(b, ds.Geometry)
	if err != nil {
		return fmt.Errorf("dfsu: writing %s: %w", path, err)
	}
	b.SetType(string(ftype))

	layered := ftype.IsLayered()
	if layered {
		if ds.ZN == nil {
			return fmt.Errorf("dfsu: writing %s: layered dataset is missing vertical node positions", path)
		}
		if len(ds.ZN.Shape) != 2 || ds.ZN.Shape[0] != ds.Time.Len() {
			return fmt.Errorf("dfsu: writing %s: vertical node positions must be (time, node) shaped", path)
		}
		b.AddItem(dfs.ItemInfo{
			Name:         ZNItemName,
			Quantity:     ZNItemName,
			Unit:         "meter",
			ElementCount: ds.ZN.Shape[1],
		})
	}
	for i, it := range ds.Items {
		b.AddItem(dfs.ItemInfo{
			Name:         it.Name,
			Quantity:     it.Quantity,
			Unit:         it.Unit,
			ElementCount: ds.Data[i].Shape[1],
		})
	}

	out, err := b.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()

	del := out.FileInfo().DeleteValue
	for step := 0; step < ds.Time.Len(); step++ {
		offset := ds.Time.OffsetSeconds(step)
		if layered {
			n := ds.ZN.Shape[1]
			if err := out.WriteItemTimeStepNext(offset, toFloat32(ds.ZN.Elements[step*n:(step+1)*n], del)); err != nil {
				return err
			}
		}
		for i := range ds.Items {
			n := ds.Data[i].Shape[1]
			row := ds.Data[i].Elements[step*n : (step+1)*n]
			if err := out.WriteItemTimeStepNext(offset, toFloat32(row, del)); err != nil {
				return err
			}
		}
	}
	return nil
}

func toFloat32(row []float64, del float32) []float32 {
	out := make([]float32, len(row))
	for i, v := range row {
		if math.IsNaN(v) {
			out[i] = del
		} else {
			out[i] = float32(v)
		}
	}
	return out
}

// configureGeometry sets the builder's static tables from the geometry
// and returns the matching file type.
func configureGeometry(b *dfs.Builder, g spatial.Geometry) (FileType, error) {
	setMesh := func(nodes spatial.NodeData, elems spatial.ElementData) {
		b.SetNodes(dfs.NodeTable{X: nodes.X, Y: nodes.Y, Z: nodes.Z, Code: nodes.Code, ID: nodes.ID})
		conn := make([][]int32, len(elems.Table))
		for i, el := range elems.Table {
			row := make([]int32, len(el))
			for j, ni := range el {
				row[j] = int32(ni) + 1
			}
			conn[i] = row
		}
		b.SetElements(dfs.ElementTable{Connectivity: conn, ID: elems.ID})
	}
	setSpectrum := func(sp spatial.Spectrum) {
		rad := make([]float64, len(sp.Directions))
		for i, d := range sp.Directions {
			rad[i] = d * math.Pi / 180
		}
		b.SetSpectralAxes(sp.Frequencies, rad)
	}

	switch m := g.(type) {
	case *spatial.Mesh2D:
		setMesh(m.Nodes(), m.Elements())
		return Type2D, nil
	case *spatial.Mesh3D:
		setMesh(m.Nodes(), m.Elements())
		b.SetLayers(m.NLayers(), m.NSigmaLayers())
		if m.NSigmaLayers() < m.NLayers() {
			return Type3DSigmaZ, nil
		}
		return Type3DSigma, nil
	case *spatial.MeshVerticalProfile:
		setMesh(m.Nodes(), m.Elements())
		b.SetLayers(m.NLayers(), m.NSigmaLayers())
		if m.NSigmaLayers() < m.NLayers() {
			return TypeVerticalProfileSigmaZ, nil
		}
		return TypeVerticalProfileSigma, nil
	case spatial.SpectralPoint:
		setSpectrum(m.Spectrum)
		return TypeSpectral0D, nil
	case *spatial.SpectralLine:
		setMesh(m.Nodes(), m.Elements())
		setSpectrum(m.Spectrum)
		return TypeSpectral1D, nil
	case *spatial.SpectralArea:
		setMesh(m.Nodes(), m.Elements())
		setSpectrum(m.Spectrum)
		return TypeSpectral2D, nil
	}
	return "", fmt.Errorf("geometry %T cannot be written to an unstructured file", g)
}
