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
	"fmt"
	"os"
	"time"

	"github.com/ctessum/cdf"
)

// Builder assembles a new container header and creates the file. The
// header is written once; dynamic item data is appended afterwards
// through the returned File.
type Builder struct {
	info        FileInfo
	nodes       *NodeTable
	elements    *ElementTable
	frequencies []float64
	directions  []float64
	items       []ItemInfo
}

// NewBuilder starts a builder with the given title and projection and the
// default delete value.
func NewBuilder(title, projection string) *Builder {
	return &Builder{info: FileInfo{
		Title:        title,
		Projection:   projection,
		DeleteValue:  DefaultDeleteValue,
		CustomBlocks: make(map[string][]float64),
	}}
}

// CloneBuilder starts a builder replicating the header metadata, static
// tables and dynamic item list of src. No time-step data is copied; the
// caller writes steps into the created file afterwards.
func CloneBuilder(src *File) (*Builder, error) {
	b := &Builder{info: src.FileInfo()}
	if b.info.CustomBlocks == nil {
		b.info.CustomBlocks = make(map[string][]float64)
	}
	var err error
	if b.nodes, err = src.NodeTable(); err != nil {
		return nil, err
	}
	if b.elements, err = src.ElementTable(); err != nil {
		return nil, err
	}
	if b.frequencies, err = src.Frequencies(); err != nil {
		return nil, err
	}
	if b.directions, err = src.Directions(); err != nil {
		return nil, err
	}
	b.items = append([]ItemInfo(nil), src.Items()...)
	return b, nil
}

// SetType sets the file sub-type tag.
func (b *Builder) SetType(t string) *Builder { b.info.Type = t; return b }

// SetDeleteValue sets the on-disk missing-data sentinel.
func (b *Builder) SetDeleteValue(v float32) *Builder { b.info.DeleteValue = v; return b }

// SetTimeAxis sets an equidistant time axis: start instant and step
// length in seconds. A zero dt declares a non-equidistant axis whose step
// instants are given by the per-step offsets written with the data.
func (b *Builder) SetTimeAxis(start time.Time, dtSeconds float64) *Builder {
	b.info.StartTime = start
	b.info.TimeStep = dtSeconds
	return b
}

// SetStartTime moves the axis start, keeping the step length.
func (b *Builder) SetStartTime(start time.Time) *Builder { b.info.StartTime = start; return b }

// SetLayers declares a layered file.
func (b *Builder) SetLayers(nLayers, nSigma int) *Builder {
	b.info.NLayers = nLayers
	b.info.NSigma = nSigma
	return b
}

// SetNodes sets the static node table.
func (b *Builder) SetNodes(t NodeTable) *Builder { b.nodes = &t; return b }

// SetElements sets the static element table (1-based connectivity).
func (b *Builder) SetElements(t ElementTable) *Builder { b.elements = &t; return b }

// SetSpectralAxes sets the frequency axis (Hz) and direction axis
// (radians, as stored on disk).
func (b *Builder) SetSpectralAxes(frequencies, directions []float64) *Builder {
	b.frequencies = frequencies
	b.directions = directions
	return b
}

// AddItem appends a dynamic item.
func (b *Builder) AddItem(it ItemInfo) *Builder { b.items = append(b.items, it); return b }

// SetItems replaces the dynamic item list.
func (b *Builder) SetItems(items []ItemInfo) *Builder {
	b.items = append([]ItemInfo(nil), items...)
	return b
}

// Items returns the dynamic item list currently configured.
func (b *Builder) Items() []ItemInfo { return append([]ItemInfo(nil), b.items...) }

// AddCustomBlock attaches a named numeric block copied verbatim into the
// header.
func (b *Builder) AddCustomBlock(name string, values []float64) *Builder {
	b.info.CustomBlocks[name] = values
	return b
}

func shapeDim(n int) string { return fmt.Sprintf("shape_%d", n) }

// Create writes the header and returns an open, writable File positioned
// at step 0 of the first item.
func (b *Builder) Create(path string) (*File, error) {
	if len(b.items) == 0 {
		return nil, fmt.Errorf("dfs: creating %s: no dynamic items defined", path)
	}

	dimNames := []string{dimTime}
	dimLens := []int{0} // record dimension
	addDim := func(name string, n int) {
		for _, d := range dimNames {
			if d == name {
				return
			}
		}
		dimNames = append(dimNames, name)
		dimLens = append(dimLens, n)
	}
	if b.nodes != nil {
		addDim(dimNode, len(b.nodes.X))
	}
	if b.elements != nil {
		addDim(dimElement, len(b.elements.Connectivity))
		maxNodes := 0
		for _, el := range b.elements.Connectivity {
			if len(el) > maxNodes {
				maxNodes = len(el)
			}
		}
		addDim(dimElementNode, maxNodes)
	}
	if len(b.frequencies) > 0 {
		addDim(dimFrequency, len(b.frequencies))
	}
	if len(b.directions) > 0 {
		addDim(dimDirection, len(b.directions))
	}
	for _, it := range b.items {
		addDim(shapeDim(it.ElementCount), it.ElementCount)
	}

	h := cdf.NewHeader(dimNames, dimLens)

	h.AddVariable(varTime, []string{dimTime}, []float64{0.})
	h.AddAttribute(varTime, "units", "seconds since start_time")
	if b.nodes != nil {
		h.AddVariable(varNodeX, []string{dimNode}, []float64{0.})
		h.AddVariable(varNodeY, []string{dimNode}, []float64{0.})
		h.AddVariable(varNodeZ, []string{dimNode}, []float64{0.})
		h.AddVariable(varNodeCode, []string{dimNode}, []int32{0})
		h.AddVariable(varNodeID, []string{dimNode}, []int32{0})
	}
	if b.elements != nil {
		h.AddVariable(varElementTable, []string{dimElement, dimElementNode}, []int32{0})
		h.AddVariable(varElementID, []string{dimElement}, []int32{0})
	}
	if len(b.frequencies) > 0 {
		h.AddVariable(varFrequency, []string{dimFrequency}, []float64{0.})
		h.AddAttribute(varFrequency, "units", "Hz")
	}
	if len(b.directions) > 0 {
		h.AddVariable(varDirection, []string{dimDirection}, []float64{0.})
		h.AddAttribute(varDirection, "units", "radians")
	}
	for i, it := range b.items {
		v := itemVarName(i)
		h.AddVariable(v, []string{dimTime, shapeDim(it.ElementCount)}, []float32{0})
		h.AddAttribute(v, "name", it.Name)
		h.AddAttribute(v, "quantity", it.Quantity)
		h.AddAttribute(v, "unit", it.Unit)
		h.AddAttribute(v, "item", []int32{int32(i)})
	}

	h.AddAttribute("", "title", b.info.Title)
	h.AddAttribute("", "type", b.info.Type)
	h.AddAttribute("", "projection", b.info.Projection)
	h.AddAttribute("", "delete_value", []float32{b.info.DeleteValue})
	h.AddAttribute("", "start_time", b.info.StartTime.Format(time.RFC3339Nano))
	h.AddAttribute("", "timestep", []float64{b.info.TimeStep})
	if b.info.NLayers > 0 {
		h.AddAttribute("", "n_layers", []int32{int32(b.info.NLayers)})
		h.AddAttribute("", "n_sigma_layers", []int32{int32(b.info.NSigma)})
	}
	for name, vals := range b.info.CustomBlocks {
		h.AddAttribute("", customAttrPrefix+name, vals)
	}

	h.Define()
	for _, err := range h.Check() {
		return nil, fmt.Errorf("dfs: creating %s: %v", path, err)
	}

	ff, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("dfs: creating %s: %w", path, err)
	}
	cf, err := cdf.Create(ff, h)
	if err != nil {
		ff.Close()
		return nil, fmt.Errorf("dfs: creating %s: %v", path, err)
	}

	f := &File{
		path:     path,
		ff:       ff,
		cf:       cf,
		info:     b.info,
		items:    append([]ItemInfo(nil), b.items...),
		writable: true,
	}
	if err := f.writeStatic(b); err != nil {
		ff.Close()
		os.Remove(path)
		return nil, err
	}
	return f, nil
}

func (f *File) writeStatic(b *Builder) error {
	writeF64 := func(v string, data []float64) error {
		w := f.cf.Writer(v, []int{0}, []int{len(data)})
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("dfs: %s: writing %s: %v", f.path, v, err)
		}
		return nil
	}
	writeI32 := func(v string, data []int32) error {
		w := f.cf.Writer(v, []int{0}, []int{len(data)})
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("dfs: %s: writing %s: %v", f.path, v, err)
		}
		return nil
	}

	if b.nodes != nil {
		n := len(b.nodes.X)
		code := b.nodes.Code
		if code == nil {
			code = make([]int32, n)
		}
		id := b.nodes.ID
		if id == nil {
			id = make([]int32, n)
			for i := range id {
				id[i] = int32(i + 1)
			}
		}
		if err := writeF64(varNodeX, b.nodes.X); err != nil {
			return err
		}
		if err := writeF64(varNodeY, b.nodes.Y); err != nil {
			return err
		}
		if err := writeF64(varNodeZ, b.nodes.Z); err != nil {
			return err
		}
		if err := writeI32(varNodeCode, code); err != nil {
			return err
		}
		if err := writeI32(varNodeID, id); err != nil {
			return err
		}
	}
	if b.elements != nil {
		nElem := len(b.elements.Connectivity)
		maxNodes := 0
		for _, el := range b.elements.Connectivity {
			if len(el) > maxNodes {
				maxNodes = len(el)
			}
		}
		flat := make([]int32, nElem*maxNodes)
		for i, el := range b.elements.Connectivity {
			copy(flat[i*maxNodes:], el)
		}
		w := f.cf.Writer(varElementTable, []int{0, 0}, []int{nElem, maxNodes})
		if _, err := w.Write(flat); err != nil {
			return fmt.Errorf("dfs: %s: writing element table: %v", f.path, err)
		}
		id := b.elements.ID
		if id == nil {
			id = make([]int32, nElem)
			for i := range id {
				id[i] = int32(i + 1)
			}
		}
		if err := writeI32(varElementID, id); err != nil {
			return err
		}
	}
	if len(b.frequencies) > 0 {
		if err := writeF64(varFrequency, b.frequencies); err != nil {
			return err
		}
	}
	if len(b.directions) > 0 {
		if err := writeF64(varDirection, b.directions); err != nil {
			return err
		}
	}
	return nil
}
