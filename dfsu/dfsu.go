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

// Package dfsu reads and writes unstructured flexible-mesh files: a
// horizontal mesh of triangles and quadrilaterals, optionally extruded
// into vertical layers or carrying wave spectra, with one or more items
// stored per time step.
package dfsu

import (
	"fmt"
	"math"
	"time"

	"github.com/ctessum/geom"
	"github.com/ctessum/sparse"
	log "github.com/sirupsen/logrus"

	"github.com/spatialmodel/meshdata"
	"github.com/spatialmodel/meshdata/dfs"
	"github.com/spatialmodel/meshdata/spatial"
)

// FileType is the sub-type tag of an unstructured file, determining how
// its geometry tables are interpreted.
type FileType string

const (
	Type2D                    FileType = "dfsu_2d"
	Type3DSigma               FileType = "dfsu_3d_sigma"
	Type3DSigmaZ              FileType = "dfsu_3d_sigma_z"
	TypeVerticalProfileSigma  FileType = "dfsu_vertical_profile_sigma"
	TypeVerticalProfileSigmaZ FileType = "dfsu_vertical_profile_sigma_z"
	TypeSpectral0D            FileType = "dfsu_spectral_0d"
	TypeSpectral1D            FileType = "dfsu_spectral_1d"
	TypeSpectral2D            FileType = "dfsu_spectral_2d"
)

// IsLayered reports whether files of this type carry vertical layers and
// a per-step vertical node-position item.
func (t FileType) IsLayered() bool {
	switch t {
	case Type3DSigma, Type3DSigmaZ, TypeVerticalProfileSigma, TypeVerticalProfileSigmaZ:
		return true
	}
	return false
}

// IsSpectral reports whether files of this type carry wave spectra.
func (t FileType) IsSpectral() bool {
	switch t {
	case TypeSpectral0D, TypeSpectral1D, TypeSpectral2D:
		return true
	}
	return false
}

// ZNItemName is the conventional name of the vertical node-position item
// of layered files.
const ZNItemName = "Z coordinate"

// File is an unstructured-file header: metadata, item list, geometry and
// time axis, read once at Open. Data access (Read, ExtractTrack) opens
// its own backend handle per call, so a File can outlive many reads.
type File struct {
	path  string
	info  dfs.FileInfo
	ftype FileType

	// visible items, with the vertical node-position item of layered
	// files already hidden
	items  []meshdata.Item
	counts []int // values per step, parallel to items

	geometry spatial.Geometry
	axis     meshdata.TimeAxis

	nNodes, nElements int
	znCount           int // values per step of the hidden item, 0 if none
}

// Open reads the header of an unstructured file and builds its geometry.
// The backend handle is released before Open returns.
func Open(path string) (*File, error) {
	d, err := dfs.Open(path)
	if err != nil {
		return nil, err
	}
	defer d.Close()

	f := &File{path: path, info: d.FileInfo()}
	f.ftype = FileType(f.info.Type)
	if f.ftype == "" {
		f.ftype = Type2D
	}

	nodes, err := d.NodeTable()
	if err != nil {
		return nil, err
	}
	elems, err := d.ElementTable()
	if err != nil {
		return nil, err
	}
	if f.geometry, err = buildGeometry(d, f.ftype, nodes, elems); err != nil {
		return nil, fmt.Errorf("dfsu: %s: %w", path, err)
	}
	if nodes != nil {
		f.nNodes = len(nodes.X)
	}
	if elems != nil {
		f.nElements = len(elems.Connectivity)
	}

	backendItems := d.Items()
	if f.ftype.IsLayered() {
		if len(backendItems) < 2 {
			return nil, fmt.Errorf("dfsu: %s: layered file must carry a vertical node-position item plus at least one data item", path)
		}
		f.znCount = backendItems[0].ElementCount
		backendItems = backendItems[1:]
	}
	for _, it := range backendItems {
		f.items = append(f.items, meshdata.Item{Name: it.Name, Quantity: it.Quantity, Unit: it.Unit})
		f.counts = append(f.counts, it.ElementCount)
	}

	if f.axis, err = buildTimeAxis(d); err != nil {
		return nil, fmt.Errorf("dfsu: %s: %w", path, err)
	}
	return f, nil
}

func buildTimeAxis(d *dfs.File) (meshdata.TimeAxis, error) {
	info := d.FileInfo()
	n := d.NSteps()
	if info.TimeStep > 0 {
		return meshdata.NewEquidistantTimeAxis(info.StartTime, info.TimeStep, n)
	}
	offsets := d.TimeOffsets()
	times := make([]time.Time, len(offsets))
	for i, s := range offsets {
		times[i] = info.StartTime.Add(time.Duration(s * float64(time.Second)))
	}
	return meshdata.NewTimeAxis(times)
}

func buildGeometry(d *dfs.File, t FileType, nodes *dfs.NodeTable, elems *dfs.ElementTable) (spatial.Geometry, error) {
	info := d.FileInfo()

	var sp spatial.Spectrum
	if t.IsSpectral() {
		freq, err := d.Frequencies()
		if err != nil {
			return nil, err
		}
		dir, err := d.Directions()
		if err != nil {
			return nil, err
		}
		sp = spatial.Spectrum{Frequencies: freq, Directions: spatial.DirectionsFromRadians(dir)}
	}
	if t == TypeSpectral0D {
		return spatial.SpectralPoint{Spectrum: sp, Proj: info.Projection}, nil
	}

	if nodes == nil || elems == nil {
		return nil, fmt.Errorf("file type %s requires node and element tables", t)
	}
	nd := spatial.NodeData{X: nodes.X, Y: nodes.Y, Z: nodes.Z, Code: nodes.Code, ID: nodes.ID}
	ed := spatial.ElementData{
		Table: make([][]int, len(elems.Connectivity)),
		ID:    elems.ID,
	}
	for i, row := range elems.Connectivity {
		el := make([]int, len(row))
		for j, ni := range row {
			el[j] = int(ni) - 1 // connectivity is 1-based on disk
		}
		ed.Table[i] = el
	}

	switch t {
	case Type2D:
		return spatial.NewMesh2D(nd, ed, info.Projection)
	case Type3DSigma, Type3DSigmaZ:
		return spatial.NewMesh3D(nd, ed, info.Projection, info.NLayers, info.NSigma)
	case TypeVerticalProfileSigma, TypeVerticalProfileSigmaZ:
		return spatial.NewMeshVerticalProfile(nd, ed, info.Projection, info.NLayers, info.NSigma)
	case TypeSpectral1D:
		return spatial.NewSpectralLine(nd, ed, info.Projection, sp)
	case TypeSpectral2D:
		return spatial.NewSpectralArea(nd, ed, info.Projection, sp)
	}
	return nil, fmt.Errorf("unknown file type %q", t)
}

// Path returns the file path.
func (f *File) Path() string { return f.path }

// Type returns the file sub-type.
func (f *File) Type() FileType { return f.ftype }

// Items returns the dynamic items of the file. For layered files the
// vertical node-position item is hidden; its data surfaces as
// Dataset.ZN.
func (f *File) Items() []meshdata.Item { return f.items }

// Geometry returns the file geometry.
func (f *File) Geometry() spatial.Geometry { return f.geometry }

// TimeAxis returns the file time axis as of Open.
func (f *File) TimeAxis() meshdata.TimeAxis { return f.axis }

// NSteps returns the number of time steps as of Open.
func (f *File) NSteps() int { return f.axis.Len() }

// DeleteValue returns the on-disk missing-data sentinel.
func (f *File) DeleteValue() float32 { return f.info.DeleteValue }

// Projection returns the spatial reference of the file.
func (f *File) Projection() string { return f.info.Projection }

// NNodes returns the number of mesh nodes, or 0 for point spectra.
func (f *File) NNodes() int { return f.nNodes }

// NElements returns the number of mesh elements, or 0 for point spectra.
func (f *File) NElements() int { return f.nElements }

// IsLayered reports whether the file carries vertical layers.
func (f *File) IsLayered() bool { return f.ftype.IsLayered() }

// IsSpectral reports whether the file carries wave spectra.
func (f *File) IsSpectral() bool { return f.ftype.IsSpectral() }

// NLayers returns the number of vertical layers, or 0.
func (f *File) NLayers() int { return f.info.NLayers }

// NSigmaLayers returns the number of sigma layers, or 0.
func (f *File) NSigmaLayers() int { return f.info.NSigma }

// NZLayers returns the number of z (fixed-level) layers, or 0.
func (f *File) NZLayers() int { return f.info.NLayers - f.info.NSigma }

// NFrequencies returns the number of spectral frequencies, or 0.
func (f *File) NFrequencies() int {
	if s, ok := f.spectrum(); ok {
		return s.NFrequencies()
	}
	return 0
}

// NDirections returns the number of spectral directions, or 0.
func (f *File) NDirections() int {
	if s, ok := f.spectrum(); ok {
		return s.NDirections()
	}
	return 0
}

func (f *File) spectrum() (spatial.Spectrum, bool) {
	switch g := f.geometry.(type) {
	case spatial.SpectralPoint:
		return g.Spectrum, true
	case *spatial.SpectralLine:
		return g.Spectrum, true
	case *spatial.SpectralArea:
		return g.Spectrum, true
	}
	return spatial.Spectrum{}, false
}

// BoundaryCodes returns the distinct non-zero node codes of the mesh.
func (f *File) BoundaryCodes() []int32 {
	if g, ok := f.geometry.(interface{ BoundaryCodes() []int32 }); ok {
		return g.BoundaryCodes()
	}
	return nil
}

// ReadOptions selects what Read returns. The zero value reads every item
// at every time step over the full geometry. At most one of Elements,
// Area and Points may be set.
type ReadOptions struct {
	// Items selects items by index, ItemNames by name. At most one of
	// the two may be set; nil means all items.
	Items     []int
	ItemNames []string

	// Time selects time steps; the zero value selects all.
	Time meshdata.TimeSelection

	// Elements selects elements by index. Area selects the elements
	// whose centers fall inside it. Points selects the element under
	// each point.
	Elements []int
	Area     *spatial.Area
	Points   []geom.Point

	// KeepDims suppresses dropping the element dimension when a single
	// element is selected.
	KeepDims bool

	// FillBadData replaces unreadable time steps with NaN and a logged
	// warning instead of failing the read.
	FillBadData bool
}

func (f *File) resolveItems(o ReadOptions) ([]int, error) {
	if o.Items != nil && o.ItemNames != nil {
		return nil, fmt.Errorf("dfsu: %s: Items and ItemNames are mutually exclusive", f.path)
	}
	if o.ItemNames != nil {
		idx := make([]int, len(o.ItemNames))
		for i, name := range o.ItemNames {
			found := -1
			for j, it := range f.items {
				if it.Name == name {
					found = j
					break
				}
			}
			if found < 0 {
				return nil, fmt.Errorf("dfsu: %s: no item named %q", f.path, name)
			}
			idx[i] = found
		}
		return idx, nil
	}
	if o.Items != nil {
		for _, i := range o.Items {
			if i < 0 || i >= len(f.items) {
				return nil, fmt.Errorf("dfsu: %s: item index %d out of range [0,%d)", f.path, i, len(f.items))
			}
		}
		return append([]int(nil), o.Items...), nil
	}
	idx := make([]int, len(f.items))
	for i := range idx {
		idx[i] = i
	}
	return idx, nil
}

func (f *File) resolveElements(o ReadOptions) ([]int, error) {
	nsel := 0
	if o.Elements != nil {
		nsel++
	}
	if o.Area != nil {
		nsel++
	}
	if o.Points != nil {
		nsel++
	}
	if nsel == 0 {
		return nil, nil
	}
	if nsel > 1 {
		return nil, fmt.Errorf("dfsu: %s: Elements, Area and Points are mutually exclusive", f.path)
	}
	if f.IsSpectral() {
		return nil, fmt.Errorf("dfsu: %s: element selection is not supported for spectral files", f.path)
	}
	eg, ok := f.geometry.(spatial.ElementGeometry)
	if !ok {
		return nil, fmt.Errorf("dfsu: %s: geometry has no elements to select", f.path)
	}

	switch {
	case o.Elements != nil:
		for _, e := range o.Elements {
			if e < 0 || e >= eg.NElements() {
				return nil, fmt.Errorf("dfsu: %s: element index %d out of range [0,%d)", f.path, e, eg.NElements())
			}
		}
		return append([]int(nil), o.Elements...), nil
	case o.Area != nil:
		elems := eg.ElementsInArea(*o.Area)
		if len(elems) == 0 {
			return nil, fmt.Errorf("dfsu: %s: no elements inside the selection area", f.path)
		}
		return elems, nil
	default:
		pq, ok := f.geometry.(spatial.PointQuerier)
		if !ok {
			return nil, fmt.Errorf("dfsu: %s: geometry does not support point queries", f.path)
		}
		elems := pq.FindElements(o.Points)
		for i, e := range elems {
			if e < 0 {
				return nil, fmt.Errorf("dfsu: %s: point (%g, %g) is outside the mesh", f.path, o.Points[i].X, o.Points[i].Y)
			}
		}
		return elems, nil
	}
}

// Read loads the selected items, time steps and elements into memory. On
// disk the delete value marks missing data; in the returned Dataset it
// becomes NaN.
func (f *File) Read(opts ReadOptions) (*meshdata.Dataset, error) {
	itemIdx, err := f.resolveItems(opts)
	if err != nil {
		return nil, err
	}
	elements, err := f.resolveElements(opts)
	if err != nil {
		return nil, err
	}

	d, err := dfs.Open(f.path)
	if err != nil {
		return nil, err
	}
	defer d.Close()

	// The axis is rebuilt from the open handle so that steps appended
	// since Open are visible.
	axis, err := buildTimeAxis(d)
	if err != nil {
		return nil, fmt.Errorf("dfsu: %s: %w", f.path, err)
	}
	steps, _, err := axis.Steps(opts.Time)
	if err != nil {
		return nil, fmt.Errorf("dfsu: %s: %w", f.path, err)
	}
	outAxis, err := axis.Subset(steps)
	if err != nil {
		return nil, fmt.Errorf("dfsu: %s: %w", f.path, err)
	}

	outGeom := f.geometry
	if elements != nil {
		eg := f.geometry.(spatial.ElementGeometry)
		if outGeom, err = eg.Subset(elements); err != nil {
			return nil, fmt.Errorf("dfsu: %s: %w", f.path, err)
		}
	}

	znOffset := 0
	if f.ftype.IsLayered() {
		znOffset = 1
	}
	squeeze := len(elements) == 1 && !opts.KeepDims

	items := make([]meshdata.Item, len(itemIdx))
	data := make([]*sparse.DenseArray, len(itemIdx))
	for i, idx := range itemIdx {
		items[i] = f.items[idx]
		n := f.counts[idx]
		if elements != nil {
			n = len(elements)
		}
		var arr *sparse.DenseArray
		if squeeze {
			arr = sparse.ZerosDense(len(steps))
		} else {
			arr = sparse.ZerosDense(len(steps), n)
		}
		for si, step := range steps {
			vals, err := f.readStep(d, idx+znOffset+1, step, opts.FillBadData)
			if err != nil {
				return nil, err
			}
			row := arr.Elements[si*n : (si+1)*n]
			if elements != nil {
				for j, e := range elements {
					row[j] = vals[e]
				}
			} else {
				copy(row, vals)
			}
		}
		data[i] = arr
	}

	dims := []string{"time", "element"}
	if squeeze {
		dims = []string{"time"}
	}
	ds, err := meshdata.NewDataset(items, data, outAxis, outGeom, dims)
	if err != nil {
		return nil, fmt.Errorf("dfsu: %s: %w", f.path, err)
	}

	if f.ftype.IsLayered() {
		if ds.ZN, err = f.readZN(d, steps, elements, opts.FillBadData); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

// readStep reads one step of one backend item, mapping the delete value
// to NaN. item1 is the 1-based backend item number.
func (f *File) readStep(d *dfs.File, item1, step int, fillBad bool) ([]float64, error) {
	_, raw, err := d.ReadItemTimeStep(item1, step)
	if err != nil {
		if !fillBad {
			return nil, err
		}
		log.WithFields(log.Fields{
			"file": f.path,
			"item": item1,
			"step": step,
		}).Warnf("unreadable time step filled with NaN: %v", err)
		n := d.Items()[item1-1].ElementCount
		vals := make([]float64, n)
		for i := range vals {
			vals[i] = math.NaN()
		}
		return vals, nil
	}
	del := f.info.DeleteValue
	vals := make([]float64, len(raw))
	for i, v := range raw {
		if v == del {
			vals[i] = math.NaN()
		} else {
			vals[i] = float64(v)
		}
	}
	return vals, nil
}

func (f *File) readZN(d *dfs.File, steps, elements []int, fillBad bool) (*sparse.DenseArray, error) {
	var nodeIdx []int
	if elements != nil {
		sn, ok := f.geometry.(interface {
			SubsetNodes(elements []int) ([]int, error)
		})
		if !ok {
			return nil, fmt.Errorf("dfsu: %s: geometry cannot subset nodes", f.path)
		}
		var err error
		if nodeIdx, err = sn.SubsetNodes(elements); err != nil {
			return nil, fmt.Errorf("dfsu: %s: %w", f.path, err)
		}
	}
	n := f.znCount
	if nodeIdx != nil {
		n = len(nodeIdx)
	}
	zn := sparse.ZerosDense(len(steps), n)
	for si, step := range steps {
		vals, err := f.readStep(d, 1, step, fillBad)
		if err != nil {
			return nil, err
		}
		row := zn.Elements[si*n : (si+1)*n]
		if nodeIdx != nil {
			for j, ni := range nodeIdx {
				row[j] = vals[ni]
			}
		} else {
			copy(row, vals)
		}
	}
	return zn, nil
}

// ToMesh exports the horizontal mesh geometry to an ASCII mesh file.
// Only 2D geometries can be exported.
func (f *File) ToMesh(path string) error {
	m, ok := f.geometry.(*spatial.Mesh2D)
	if !ok {
		return fmt.Errorf("dfsu: %s: only 2D files can be exported to a mesh, geometry is %T", f.path, f.geometry)
	}
	return spatial.WriteMeshFile(path, m)
}
