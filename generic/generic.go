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

// Package generic transforms container files of any geometry without
// interpreting their spatial layout: scaling, arithmetic between files,
// concatenation, time-step extraction and temporal statistics. All
// operations stream one time step at a time, so files larger than
// memory are fine.
package generic

import (
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/spatialmodel/meshdata/dfs"
)

// ItemSelection picks dynamic items by 0-based number or by name. The
// zero value selects all items. Numbers and Names are mutually
// exclusive.
type ItemSelection struct {
	Numbers []int
	Names   []string
}

func (s ItemSelection) isZero() bool { return s.Numbers == nil && s.Names == nil }

func (s ItemSelection) resolve(d *dfs.File) ([]int, error) {
	items := d.Items()
	if s.Numbers != nil && s.Names != nil {
		return nil, fmt.Errorf("generic: item numbers and names are mutually exclusive")
	}
	if s.Names != nil {
		idx := make([]int, len(s.Names))
		for i, name := range s.Names {
			found := -1
			for j, it := range items {
				if it.Name == name {
					found = j
					break
				}
			}
			if found < 0 {
				return nil, fmt.Errorf("generic: %s: no item named %q", d.Path(), name)
			}
			idx[i] = found
		}
		return idx, nil
	}
	if s.Numbers != nil {
		for _, i := range s.Numbers {
			if i < 0 || i >= len(items) {
				return nil, fmt.Errorf("generic: %s: item number %d out of range [0,%d)", d.Path(), i, len(items))
			}
		}
		return append([]int(nil), s.Numbers...), nil
	}
	idx := make([]int, len(items))
	for i := range idx {
		idx[i] = i
	}
	return idx, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("generic: copying %s: %w", src, err)
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("generic: copying to %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("generic: copying %s to %s: %w", src, dst, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("generic: copying %s to %s: %w", src, dst, err)
	}
	return nil
}

// toNaN converts raw float32 step data to float64, mapping the delete
// value to NaN.
func toNaN(raw []float32, del float32) []float64 {
	out := make([]float64, len(raw))
	for i, v := range raw {
		if v == del {
			out[i] = math.NaN()
		} else {
			out[i] = float64(v)
		}
	}
	return out
}

// fromNaN converts float64 data back to float32, mapping NaN to the
// delete value.
func fromNaN(vals []float64, del float32) []float32 {
	out := make([]float32, len(vals))
	for i, v := range vals {
		if math.IsNaN(v) {
			out[i] = del
		} else {
			out[i] = float32(v)
		}
	}
	return out
}

// toFloat32 converts without delete-value mapping; NaN stays NaN.
func toFloat32(vals []float64) []float32 {
	out := make([]float32, len(vals))
	for i, v := range vals {
		out[i] = float32(v)
	}
	return out
}

// CloneOptions configures Clone. The zero value replicates every item.
type CloneOptions struct {
	// Items re-selects items of the source file. NewItems instead
	// replaces the item list entirely (element counts included). The
	// two are mutually exclusive.
	Items    ItemSelection
	NewItems []dfs.ItemInfo

	// StartTime moves the time axis start of the new file.
	StartTime *time.Time
}

// Clone creates a new file replicating the header and static tables of
// infile, with no time-step data. Items can be re-selected or replaced
// and the start time moved.
func Clone(infile, outfile string, opts CloneOptions) error {
	out, err := cloneOpen(infile, outfile, opts)
	if err != nil {
		return err
	}
	return out.Close()
}

func cloneOpen(infile, outfile string, opts CloneOptions) (*dfs.File, error) {
	src, err := dfs.Open(infile)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	if opts.NewItems != nil && !opts.Items.isZero() {
		return nil, fmt.Errorf("generic: item selection and replacement items are mutually exclusive")
	}
	b, err := dfs.CloneBuilder(src)
	if err != nil {
		return nil, err
	}
	switch {
	case opts.NewItems != nil:
		b.SetItems(opts.NewItems)
	case !opts.Items.isZero():
		idx, err := opts.Items.resolve(src)
		if err != nil {
			return nil, err
		}
		all := src.Items()
		sel := make([]dfs.ItemInfo, len(idx))
		for i, j := range idx {
			sel[i] = all[j]
		}
		b.SetItems(sel)
	}
	if opts.StartTime != nil {
		b.SetStartTime(*opts.StartTime)
	}
	return b.Create(outfile)
}

// Scale copies infile to outfile and rewrites the selected items as
// value*factor + offset. Missing values stay missing.
func Scale(infile, outfile string, offset, factor float64, items ItemSelection) error {
	if err := copyFile(infile, outfile); err != nil {
		return err
	}
	d, err := dfs.OpenEdit(outfile)
	if err != nil {
		return err
	}
	defer d.Close()

	idx, err := items.resolve(d)
	if err != nil {
		return err
	}
	del := d.FileInfo().DeleteValue
	for step := 0; step < d.NSteps(); step++ {
		for _, item := range idx {
			offsetSec, raw, err := d.ReadItemTimeStep(item+1, step)
			if err != nil {
				return err
			}
			vals := toNaN(raw, del)
			floats.Scale(factor, vals)
			floats.AddConst(offset, vals)
			if err := d.WriteItemTimeStep(item+1, step, offsetSec, fromNaN(vals, del)); err != nil {
				return err
			}
		}
	}
	return nil
}

// Sum writes a+b to outfile. The two files must have the same items,
// value counts and number of time steps; the output inherits the header
// of a.
func Sum(infileA, infileB, outfile string) error {
	return combine(infileA, infileB, outfile, floats.Add)
}

// Diff writes a-b to outfile. The two files must have the same items,
// value counts and number of time steps; the output inherits the header
// of a.
func Diff(infileA, infileB, outfile string) error {
	return combine(infileA, infileB, outfile, floats.Sub)
}

func combine(infileA, infileB, outfile string, op func(dst, s []float64)) error {
	if err := copyFile(infileA, outfile); err != nil {
		return err
	}
	a, err := dfs.Open(infileA)
	if err != nil {
		return err
	}
	defer a.Close()
	b, err := dfs.Open(infileB)
	if err != nil {
		return err
	}
	defer b.Close()
	if err := checkCompatible(a, b); err != nil {
		os.Remove(outfile)
		return err
	}
	out, err := dfs.OpenEdit(outfile)
	if err != nil {
		return err
	}
	defer out.Close()

	del := a.FileInfo().DeleteValue
	delB := b.FileInfo().DeleteValue
	nItems := len(a.Items())
	for step := 0; step < a.NSteps(); step++ {
		for item := 1; item <= nItems; item++ {
			offsetSec, rawA, err := a.ReadItemTimeStep(item, step)
			if err != nil {
				return err
			}
			_, rawB, err := b.ReadItemTimeStep(item, step)
			if err != nil {
				return err
			}
			da := toNaN(rawA, del)
			db := toNaN(rawB, delB)
			op(da, db)
			if err := out.WriteItemTimeStep(item, step, offsetSec, fromNaN(da, del)); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkCompatible verifies that two files can be combined item by item.
func checkCompatible(a, b *dfs.File) error {
	ia, ib := a.Items(), b.Items()
	if len(ia) != len(ib) {
		return fmt.Errorf("generic: %s has %d items but %s has %d", a.Path(), len(ia), b.Path(), len(ib))
	}
	for i := range ia {
		if ia[i].ElementCount != ib[i].ElementCount {
			return fmt.Errorf("generic: item %d has %d values in %s but %d in %s",
				i, ia[i].ElementCount, a.Path(), ib[i].ElementCount, b.Path())
		}
	}
	if a.NSteps() != b.NSteps() {
		return fmt.Errorf("generic: %s has %d time steps but %s has %d", a.Path(), a.NSteps(), b.Path(), b.NSteps())
	}
	return nil
}

// Concat concatenates files along the time axis into outfile. The
// inputs must be in chronological order, have identical items and
// equidistant time axes. Where files overlap, the later file wins. A
// gap longer than one time step is an error; the partial output is
// removed.
func Concat(infiles []string, outfile string) error {
	if len(infiles) == 0 {
		return fmt.Errorf("generic: no input files to concatenate")
	}
	first, err := dfs.Open(infiles[0])
	if err != nil {
		return err
	}
	nItems := len(first.Items())
	outStart := first.FileInfo().StartTime
	first.Close()

	out, err := cloneOpen(infiles[0], outfile, CloneOptions{})
	if err != nil {
		return err
	}
	closed := false
	defer func() {
		if !closed {
			out.Close()
		}
	}()

	var currentTime time.Time
	for i, infile := range infiles {
		d, err := dfs.Open(infile)
		if err != nil {
			return err
		}
		info := d.FileInfo()
		if info.TimeStep <= 0 {
			d.Close()
			return fmt.Errorf("generic: %s: concatenation requires an equidistant time axis", infile)
		}
		if len(d.Items()) != nItems {
			d.Close()
			return fmt.Errorf("generic: %s has %d items, %s has %d", infile, len(d.Items()), infiles[0], nItems)
		}
		dt := time.Duration(info.TimeStep * float64(time.Second))
		start := info.StartTime

		if i > 0 && start.After(currentTime.Add(dt)) {
			d.Close()
			out.Close()
			closed = true
			os.Remove(outfile)
			return fmt.Errorf("generic: gap in time axis between %s and %s", infiles[i-1], infile)
		}

		var nextStart time.Time
		if i < len(infiles)-1 {
			next, err := dfs.Open(infiles[i+1])
			if err != nil {
				d.Close()
				return err
			}
			nextStart = next.FileInfo().StartTime
			next.Close()
		}

		for step := 0; step < d.NSteps(); step++ {
			currentTime = start.Add(time.Duration(step) * dt)
			// on overlap the later file takes over at its start
			if i < len(infiles)-1 && !currentTime.Before(nextStart) {
				break
			}
			offsetSec := currentTime.Sub(outStart).Seconds()
			for item := 1; item <= nItems; item++ {
				_, raw, err := d.ReadItemTimeStep(item, step)
				if err != nil {
					d.Close()
					return err
				}
				if err := out.WriteItemTimeStepNext(offsetSec, raw); err != nil {
					d.Close()
					return err
				}
			}
		}
		d.Close()
	}
	closed = true
	return out.Close()
}
