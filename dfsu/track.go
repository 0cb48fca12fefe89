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
	"sort"
	"time"

	"github.com/ctessum/geom"
	"github.com/ctessum/sparse"

	"github.com/spatialmodel/meshdata"
	"github.com/spatialmodel/meshdata/dfs"
	"github.com/spatialmodel/meshdata/spatial"
)

// Track is a moving observation path: one position per instant. Times
// must be non-decreasing.
type Track struct {
	Times []time.Time
	X, Y  []float64
}

// TrackMethod selects how a track position samples the mesh.
type TrackMethod int

const (
	// TrackNearest samples the element containing the position.
	TrackNearest TrackMethod = iota
	// TrackInverseDistance blends the nearest element centers with
	// inverse-distance-squared weights.
	TrackInverseDistance
)

// TrackOptions configures ExtractTrack. The zero value samples every
// item with containing-element lookup.
type TrackOptions struct {
	Items     []int
	ItemNames []string
	Method    TrackMethod
	// NNearest is the number of element centers blended by
	// TrackInverseDistance; 0 means 5.
	NNearest int
}

// ExtractTrack samples the file along a moving track: linear
// interpolation in time between the bracketing steps, and nearest or
// inverse-distance sampling in space. Positions outside the mesh or the
// file time span yield NaN. The returned Dataset is time-dimensioned
// with the track longitude and latitude as its first two items.
func (f *File) ExtractTrack(track Track, opts TrackOptions) (*meshdata.Dataset, error) {
	if f.IsSpectral() {
		return nil, fmt.Errorf("dfsu: %s: track extraction is not supported for spectral files", f.path)
	}
	if len(track.Times) != len(track.X) || len(track.Times) != len(track.Y) {
		return nil, fmt.Errorf("dfsu: track times, x and y must have equal length (%d, %d, %d)",
			len(track.Times), len(track.X), len(track.Y))
	}
	for i := 1; i < len(track.Times); i++ {
		if track.Times[i].Before(track.Times[i-1]) {
			return nil, fmt.Errorf("dfsu: track times must be non-decreasing (position %d)", i)
		}
	}
	itemIdx, err := f.resolveItems(ReadOptions{Items: opts.Items, ItemNames: opts.ItemNames})
	if err != nil {
		return nil, err
	}

	weights, err := f.trackWeights(track, opts)
	if err != nil {
		return nil, err
	}

	d, err := dfs.Open(f.path)
	if err != nil {
		return nil, err
	}
	defer d.Close()
	axis, err := buildTimeAxis(d)
	if err != nil {
		return nil, fmt.Errorf("dfsu: %s: %w", f.path, err)
	}

	// Bracket each track instant between two file steps: values are
	// blended as (1-w)*step + w*(step+1). Positions outside the span
	// keep bracket -1 and stay NaN.
	np := len(track.Times)
	bracket := make([]int, np)
	tw := make([]float64, np)
	for p := range track.Times {
		bracket[p] = -1
		t := track.Times[p]
		for i := 0; i < axis.Len()-1; i++ {
			t0, t1 := axis.Time(i), axis.Time(i+1)
			if t.Before(t0) || t.After(t1) {
				continue
			}
			bracket[p] = i
			if dt := t1.Sub(t0).Seconds(); dt > 0 {
				tw[p] = t.Sub(t0).Seconds() / dt
			}
			break
		}
		if bracket[p] < 0 && axis.Len() == 1 && t.Equal(axis.Time(0)) {
			bracket[p] = 0
			tw[p] = 0
		}
	}

	znOffset := 0
	if f.ftype.IsLayered() {
		znOffset = 1
	}
	out := make([]*sparse.DenseArray, len(itemIdx))
	for i := range out {
		out[i] = sparse.ZerosDense(np)
		for p := range out[i].Elements {
			out[i].Elements[p] = math.NaN()
		}
	}

	// Walk the file once; each step contributes to the track positions
	// whose bracket touches it.
	needed := make(map[int][]int) // step -> track positions
	for p, b := range bracket {
		if b < 0 || weights[p] == nil {
			continue
		}
		needed[b] = append(needed[b], p)
		if b+1 < axis.Len() && tw[p] > 0 {
			needed[b+1] = append(needed[b+1], p)
		}
	}
	steps := make([]int, 0, len(needed))
	for s := range needed {
		steps = append(steps, s)
	}
	sort.Ints(steps)

	for i, idx := range itemIdx {
		for p := range out[i].Elements {
			if bracket[p] >= 0 && weights[p] != nil {
				out[i].Elements[p] = 0
			}
		}
		for _, step := range steps {
			vals, err := f.readStep(d, idx+znOffset+1, step, false)
			if err != nil {
				return nil, err
			}
			for _, p := range needed[step] {
				w := 1 - tw[p]
				if step == bracket[p]+1 {
					w = tw[p]
				}
				out[i].Elements[p] += w * weights[p].sample(vals)
			}
		}
	}

	axisOut, err := meshdata.NewTimeAxis(track.Times)
	if err != nil {
		return nil, err
	}
	items := make([]meshdata.Item, 0, len(itemIdx)+2)
	data := make([]*sparse.DenseArray, 0, len(itemIdx)+2)
	items = append(items,
		meshdata.Item{Name: "Longitude", Quantity: "Longitude", Unit: "degree"},
		meshdata.Item{Name: "Latitude", Quantity: "Latitude", Unit: "degree"})
	xs := sparse.ZerosDense(np)
	copy(xs.Elements, track.X)
	ys := sparse.ZerosDense(np)
	copy(ys.Elements, track.Y)
	data = append(data, xs, ys)
	for i, idx := range itemIdx {
		items = append(items, f.items[idx])
		data = append(data, out[i])
	}
	return meshdata.NewDataset(items, data, axisOut, spatial.GeometryUndefined{}, []string{"time"})
}

// spatialWeights blends per-element values into one sample.
type spatialWeights struct {
	elems   []int
	weights []float64
}

func (w *spatialWeights) sample(vals []float64) float64 {
	s := 0.0
	for i, e := range w.elems {
		s += w.weights[i] * vals[e]
	}
	return s
}

// trackWeights resolves each track position to element weights, or nil
// for positions outside the mesh.
func (f *File) trackWeights(track Track, opts TrackOptions) ([]*spatialWeights, error) {
	eg, ok := f.geometry.(spatial.ElementGeometry)
	if !ok {
		return nil, fmt.Errorf("dfsu: %s: geometry has no elements to sample", f.path)
	}
	points := make([]geom.Point, len(track.X))
	for i := range points {
		points[i] = geom.Point{X: track.X[i], Y: track.Y[i]}
	}

	out := make([]*spatialWeights, len(points))
	switch opts.Method {
	case TrackNearest:
		pq, ok := f.geometry.(spatial.PointQuerier)
		if !ok {
			return nil, fmt.Errorf("dfsu: %s: geometry does not support point queries", f.path)
		}
		for p, e := range pq.FindElements(points) {
			if e >= 0 {
				out[p] = &spatialWeights{elems: []int{e}, weights: []float64{1}}
			}
		}
	case TrackInverseDistance:
		n := opts.NNearest
		if n <= 0 {
			n = 5
		}
		if n > eg.NElements() {
			n = eg.NElements()
		}
		ecx, ecy, _ := eg.ElementCoordinates()
		for p, pt := range points {
			out[p] = idwWeights(pt, ecx, ecy, n)
		}
	default:
		return nil, fmt.Errorf("dfsu: unknown track method %d", opts.Method)
	}
	return out, nil
}

func idwWeights(pt geom.Point, ecx, ecy []float64, n int) *spatialWeights {
	type cand struct {
		e int
		d float64
	}
	cands := make([]cand, len(ecx))
	for e := range ecx {
		dx, dy := ecx[e]-pt.X, ecy[e]-pt.Y
		cands[e] = cand{e: e, d: dx*dx + dy*dy}
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].d < cands[j].d })
	cands = cands[:n]
	if cands[0].d == 0 {
		return &spatialWeights{elems: []int{cands[0].e}, weights: []float64{1}}
	}
	w := &spatialWeights{elems: make([]int, n), weights: make([]float64, n)}
	sum := 0.0
	for i, c := range cands {
		w.elems[i] = c.e
		w.weights[i] = 1 / c.d
		sum += w.weights[i]
	}
	for i := range w.weights {
		w.weights[i] /= sum
	}
	return w
}
