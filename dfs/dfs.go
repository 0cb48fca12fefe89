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

// Package dfs is the file backend for meshdata containers. A container is
// a NetCDF-classic file (read and written through github.com/ctessum/cdf)
// holding a record time dimension, static geometry tables and one float32
// record variable per dynamic item. Handles are scoped resources: every
// operation opens, drains its work and closes; the time axis is re-read on
// every open.
package dfs

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/ctessum/cdf"
)

// DefaultDeleteValue is the on-disk sentinel marking missing data when a
// file does not declare its own.
const DefaultDeleteValue float32 = -1e-35

// Dimension and variable names of the container layout.
const (
	dimTime        = "time"
	dimNode        = "node"
	dimElement     = "element"
	dimElementNode = "element_node"
	dimFrequency   = "frequency"
	dimDirection   = "direction"

	varTime         = "time"
	varNodeX        = "node_x"
	varNodeY        = "node_y"
	varNodeZ        = "node_z"
	varNodeCode     = "node_code"
	varNodeID       = "node_id"
	varElementID    = "element_id"
	varElementTable = "element_table"
	varFrequency    = "frequency"
	varDirection    = "direction"
)

const customAttrPrefix = "custom_"

// ItemInfo describes one dynamic item: name, quantity type, unit, and the
// number of values per time step.
type ItemInfo struct {
	Name         string
	Quantity     string
	Unit         string
	ElementCount int
}

// FileInfo is the header metadata of an open container.
type FileInfo struct {
	Title       string
	Type        string // file sub-type tag, carried opaquely
	Projection  string
	DeleteValue float32
	StartTime   time.Time
	TimeStep    float64 // seconds; 0 means non-equidistant
	NLayers     int
	NSigma      int
	// CustomBlocks carries named numeric blocks copied verbatim between
	// files.
	CustomBlocks map[string][]float64
}

// NodeTable is the static node table of an unstructured file.
type NodeTable struct {
	X, Y, Z []float64
	Code    []int32
	ID      []int32
}

// ElementTable is the static element table: per-element 1-based node
// numbers (0-padded rows) and external ids.
type ElementTable struct {
	Connectivity [][]int32
	ID           []int32
}

// File is an open container handle.
type File struct {
	path     string
	ff       *os.File
	cf       *cdf.File
	info     FileInfo
	items    []ItemInfo
	times    []float64 // offset seconds per step, read at open
	writable bool

	// sequential-append cursor for WriteItemTimeStepNext
	nextItem, nextStep int
}

// Open opens a container for reading. It fails if the path does not exist.
func Open(path string) (*File, error) {
	return open(path, false)
}

// OpenEdit opens a container for reading and in-place writing.
func OpenEdit(path string) (*File, error) {
	return open(path, true)
}

func open(path string, writable bool) (*File, error) {
	flag := os.O_RDONLY
	if writable {
		flag = os.O_RDWR
	}
	ff, err := os.OpenFile(path, flag, os.ModePerm)
	if err != nil {
		return nil, fmt.Errorf("dfs: opening %s: %w", path, err)
	}
	cf, err := cdf.Open(ff)
	if err != nil {
		ff.Close()
		return nil, fmt.Errorf("dfs: reading header of %s: %v", path, err)
	}
	f := &File{path: path, ff: ff, cf: cf, writable: writable}
	if err := f.readHeader(); err != nil {
		ff.Close()
		return nil, err
	}
	return f, nil
}

func (f *File) attrString(v, name string) string {
	a := f.cf.Header.GetAttribute(v, name)
	if a == nil {
		return ""
	}
	s, _ := a.(string)
	return s
}

func (f *File) attrFloat(v, name string) (float64, bool) {
	switch a := f.cf.Header.GetAttribute(v, name).(type) {
	case []float64:
		if len(a) > 0 {
			return a[0], true
		}
	case []float32:
		if len(a) > 0 {
			return float64(a[0]), true
		}
	case []int32:
		if len(a) > 0 {
			return float64(a[0]), true
		}
	}
	return 0, false
}

func (f *File) readHeader() error {
	info := FileInfo{
		Title:       f.attrString("", "title"),
		Type:        f.attrString("", "type"),
		Projection:  f.attrString("", "projection"),
		DeleteValue: DefaultDeleteValue,
	}
	if dv, ok := f.attrFloat("", "delete_value"); ok {
		info.DeleteValue = float32(dv)
	}
	if s := f.attrString("", "start_time"); s != "" {
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("dfs: %s: invalid start_time attribute %q: %v", f.path, s, err)
		}
		info.StartTime = t
	}
	if dt, ok := f.attrFloat("", "timestep"); ok {
		info.TimeStep = dt
	}
	if n, ok := f.attrFloat("", "n_layers"); ok {
		info.NLayers = int(n)
	}
	if n, ok := f.attrFloat("", "n_sigma_layers"); ok {
		info.NSigma = int(n)
	}
	info.CustomBlocks = make(map[string][]float64)
	for _, a := range f.cf.Header.Attributes("") {
		if strings.HasPrefix(a, customAttrPrefix) {
			if v, ok := f.cf.Header.GetAttribute("", a).([]float64); ok {
				info.CustomBlocks[strings.TrimPrefix(a, customAttrPrefix)] = v
			}
		}
	}
	f.info = info

	// Dynamic items are the variables tagged with an item index.
	type indexedItem struct {
		item ItemInfo
		idx  int
	}
	var items []indexedItem
	for _, v := range f.cf.Header.Variables() {
		idx, ok := f.attrFloat(v, "item")
		if !ok {
			continue
		}
		lens := f.cf.Header.Lengths(v)
		n := 1
		if len(lens) > 1 {
			n = lens[len(lens)-1]
		}
		items = append(items, indexedItem{
			item: ItemInfo{
				Name:         f.attrString(v, "name"),
				Quantity:     f.attrString(v, "quantity"),
				Unit:         f.attrString(v, "unit"),
				ElementCount: n,
			},
			idx: int(idx),
		})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].idx < items[j].idx })
	f.items = make([]ItemInfo, len(items))
	for i, it := range items {
		f.items[i] = it.item
	}

	// The time axis is re-read on every open so that a file being
	// appended to by another process is seen with its current length.
	times, err := f.readFloat64Var(varTime)
	if err != nil {
		return fmt.Errorf("dfs: %s: reading time axis: %v", f.path, err)
	}
	f.times = times
	f.nextStep = len(times)
	return nil
}

// Path returns the file path.
func (f *File) Path() string { return f.path }

// FileInfo returns the header metadata.
func (f *File) FileInfo() FileInfo { return f.info }

// Items returns the ordered dynamic item list, including any reserved
// items; interpretation is up to the caller.
func (f *File) Items() []ItemInfo { return f.items }

// NSteps returns the number of time steps currently in the file.
func (f *File) NSteps() int { return len(f.times) }

// TimeOffsets returns the offset seconds of each step relative to the
// file start time.
func (f *File) TimeOffsets() []float64 { return f.times }

func (f *File) hasVariable(name string) bool {
	for _, v := range f.cf.Header.Variables() {
		if v == name {
			return true
		}
	}
	return false
}

// numRecs returns the current number of records in the file, computed
// from the file size as the cdf library prescribes.
func (f *File) numRecs() (int, error) {
	fi, err := f.ff.Stat()
	if err != nil {
		return 0, err
	}
	return int(f.cf.Header.NumRecs(fi.Size())), nil
}

// readVar reads the full contents of a variable. Record variables need
// explicit bounds sized from the record count: the cdf strider's Zero(-1)
// covers only one record, and an open-ended reader reports io.EOF after
// every record stripe.
func (f *File) readVar(name string) (interface{}, error) {
	lens := f.cf.Header.Lengths(name)
	if len(lens) > 0 && lens[0] == 0 {
		nrec, err := f.numRecs()
		if err != nil {
			return nil, err
		}
		n := nrec
		begin := make([]int, len(lens))
		end := make([]int, len(lens))
		if nrec > 0 {
			end[0] = nrec - 1
		}
		for i, l := range lens[1:] {
			n *= l
			end[i+1] = l - 1
		}
		r := f.cf.Reader(name, begin, end)
		buf := r.Zero(n)
		if n == 0 {
			return buf, nil
		}
		if nr, err := r.Read(buf); err != nil && (err != io.EOF || nr != n) {
			return nil, err
		}
		return buf, nil
	}
	r := f.cf.Reader(name, nil, nil)
	buf := r.Zero(-1)
	if _, err := r.Read(buf); err != nil && err != io.EOF {
		return nil, err
	}
	return buf, nil
}

func (f *File) readFloat64Var(name string) ([]float64, error) {
	if !f.hasVariable(name) {
		return nil, nil
	}
	buf, err := f.readVar(name)
	if err != nil {
		return nil, err
	}
	switch b := buf.(type) {
	case []float64:
		return b, nil
	case []float32:
		out := make([]float64, len(b))
		for i, v := range b {
			out[i] = float64(v)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("variable %s has unexpected type %T", name, buf)
	}
}

func (f *File) readInt32Var(name string) ([]int32, error) {
	if !f.hasVariable(name) {
		return nil, nil
	}
	buf, err := f.readVar(name)
	if err != nil {
		return nil, err
	}
	b, ok := buf.([]int32)
	if !ok {
		return nil, fmt.Errorf("variable %s has unexpected type %T", name, buf)
	}
	return b, nil
}

// NodeTable reads the static node table, or returns nil if the file has
// none (e.g. a point-spectrum file).
func (f *File) NodeTable() (*NodeTable, error) {
	if !f.hasVariable(varNodeX) {
		return nil, nil
	}
	var t NodeTable
	var err error
	if t.X, err = f.readFloat64Var(varNodeX); err != nil {
		return nil, fmt.Errorf("dfs: %s: reading node table: %v", f.path, err)
	}
	if t.Y, err = f.readFloat64Var(varNodeY); err != nil {
		return nil, fmt.Errorf("dfs: %s: reading node table: %v", f.path, err)
	}
	if t.Z, err = f.readFloat64Var(varNodeZ); err != nil {
		return nil, fmt.Errorf("dfs: %s: reading node table: %v", f.path, err)
	}
	if t.Code, err = f.readInt32Var(varNodeCode); err != nil {
		return nil, fmt.Errorf("dfs: %s: reading node table: %v", f.path, err)
	}
	if t.ID, err = f.readInt32Var(varNodeID); err != nil {
		return nil, fmt.Errorf("dfs: %s: reading node table: %v", f.path, err)
	}
	return &t, nil
}

// ElementTable reads the static element table, or returns nil if the file
// has none.
func (f *File) ElementTable() (*ElementTable, error) {
	if !f.hasVariable(varElementTable) {
		return nil, nil
	}
	lens := f.cf.Header.Lengths(varElementTable)
	if len(lens) != 2 {
		return nil, fmt.Errorf("dfs: %s: element table must have 2 dimensions, has %d", f.path, len(lens))
	}
	nElem, maxNodes := lens[0], lens[1]
	flat, err := f.readInt32Var(varElementTable)
	if err != nil {
		return nil, fmt.Errorf("dfs: %s: reading element table: %v", f.path, err)
	}
	var t ElementTable
	t.Connectivity = make([][]int32, nElem)
	for i := 0; i < nElem; i++ {
		row := flat[i*maxNodes : (i+1)*maxNodes]
		// rows are 0-padded for elements with fewer nodes
		n := maxNodes
		for n > 0 && row[n-1] == 0 {
			n--
		}
		t.Connectivity[i] = row[:n]
	}
	if t.ID, err = f.readInt32Var(varElementID); err != nil {
		return nil, fmt.Errorf("dfs: %s: reading element ids: %v", f.path, err)
	}
	return &t, nil
}

// Frequencies reads the spectral frequency axis, or nil when absent.
func (f *File) Frequencies() ([]float64, error) {
	return f.readFloat64Var(varFrequency)
}

// Directions reads the spectral direction axis in radians as stored on
// disk, or nil when absent.
func (f *File) Directions() ([]float64, error) {
	return f.readFloat64Var(varDirection)
}

func itemVarName(idx int) string { return fmt.Sprintf("item_%d", idx) }

func (f *File) checkItemStep(item1, step int) error {
	if item1 < 1 || item1 > len(f.items) {
		return fmt.Errorf("dfs: %s: item number %d out of range [1,%d]", f.path, item1, len(f.items))
	}
	if step < 0 {
		return fmt.Errorf("dfs: %s: time step %d out of range", f.path, step)
	}
	return nil
}

// ReadItemTimeStep reads one time step of one item. item1 is 1-based. It
// returns the step's time offset in seconds and the float32 data.
func (f *File) ReadItemTimeStep(item1, step int) (float64, []float32, error) {
	if err := f.checkItemStep(item1, step); err != nil {
		return 0, nil, err
	}
	if step >= len(f.times) {
		return 0, nil, fmt.Errorf("dfs: %s: time step %d out of range [0,%d)", f.path, step, len(f.times))
	}
	n := f.items[item1-1].ElementCount
	r := f.cf.Reader(itemVarName(item1-1), []int{step, 0}, []int{step, n - 1})
	buf := r.Zero(-1)
	if _, err := r.Read(buf); err != nil {
		return 0, nil, fmt.Errorf("dfs: %s: reading item %d step %d: %v", f.path, item1, step, err)
	}
	data, ok := buf.([]float32)
	if !ok {
		return 0, nil, fmt.Errorf("dfs: %s: item %d has unexpected type %T", f.path, item1, buf)
	}
	if len(data) != n {
		return 0, nil, fmt.Errorf("dfs: %s: item %d step %d: short read (%d of %d values)", f.path, item1, step, len(data), n)
	}
	return f.times[step], data, nil
}

// WriteItemTimeStep writes one time step of one item at an explicit step
// index and time offset. item1 is 1-based.
func (f *File) WriteItemTimeStep(item1, step int, offsetSec float64, data []float32) error {
	if !f.writable {
		return fmt.Errorf("dfs: %s: file not open for writing", f.path)
	}
	if err := f.checkItemStep(item1, step); err != nil {
		return err
	}
	n := f.items[item1-1].ElementCount
	if len(data) != n {
		return fmt.Errorf("dfs: %s: item %d expects %d values per step, got %d", f.path, item1, n, len(data))
	}
	w := f.cf.Writer(itemVarName(item1-1), []int{step, 0}, []int{step, n})
	// The cdf strider returns io.EOF even when a write that reaches its end
	// corner succeeds; only a short write is a real failure.
	if nw, err := w.Write(data); err != nil && (err != io.EOF || nw != n) {
		return fmt.Errorf("dfs: %s: writing item %d step %d: %v", f.path, item1, step, err)
	}
	if err := f.writeTime(step, offsetSec); err != nil {
		return err
	}
	return nil
}

func (f *File) writeTime(step int, offsetSec float64) error {
	w := f.cf.Writer(varTime, []int{step}, []int{step + 1})
	if _, err := w.Write([]float64{offsetSec}); err != nil {
		return fmt.Errorf("dfs: %s: writing time of step %d: %v", f.path, step, err)
	}
	if step >= len(f.times) {
		grown := make([]float64, step+1)
		copy(grown, f.times)
		f.times = grown
	}
	f.times[step] = offsetSec
	return nil
}

// WriteItemTimeStepNext appends one time step of the next item in
// sequence: items cycle in order, and the step index advances when the
// cycle wraps. The first item of each step records the step's time
// offset.
func (f *File) WriteItemTimeStepNext(offsetSec float64, data []float32) error {
	item1 := f.nextItem + 1
	step := f.nextStep
	if err := f.WriteItemTimeStep(item1, step, offsetSec, data); err != nil {
		return err
	}
	f.nextItem++
	if f.nextItem == len(f.items) {
		f.nextItem = 0
		f.nextStep++
	}
	return nil
}

// Close releases the handle, flushing the record count for writable
// files.
func (f *File) Close() error {
	var err error
	if f.writable {
		if uerr := cdf.UpdateNumRecs(f.ff); uerr != nil {
			err = fmt.Errorf("dfs: %s: updating record count: %v", f.path, uerr)
		}
	}
	if cerr := f.ff.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("dfs: closing %s: %w", f.path, cerr)
	}
	return err
}
