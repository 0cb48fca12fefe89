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

package generic

import (
	"fmt"
	"math"
	"sort"

	"github.com/spatialmodel/meshdata/dfs"
)

// AvgTime writes the temporal average of every item to a single-step
// file. With skipna, values missing at any step make the whole element
// missing; without it, the average runs over the steps where a value is
// present.
func AvgTime(infile, outfile string, skipna bool) error {
	d, err := dfs.Open(infile)
	if err != nil {
		return err
	}
	defer d.Close()
	out, err := cloneOpen(infile, outfile, CloneOptions{})
	if err != nil {
		return err
	}
	defer out.Close()

	del := d.FileInfo().DeleteValue
	items := d.Items()
	nSteps := d.NSteps()

	sums := make([][]float64, len(items))
	counts := make([][]int, len(items))
	for i, it := range items {
		sums[i] = make([]float64, it.ElementCount)
		counts[i] = make([]int, it.ElementCount)
	}
	for step := 0; step < nSteps; step++ {
		for i := range items {
			_, raw, err := d.ReadItemTimeStep(i+1, step)
			if err != nil {
				return err
			}
			for j, v := range raw {
				if v != del {
					sums[i][j] += float64(v)
					counts[i][j]++
				}
			}
		}
	}

	for i := range items {
		avg := make([]float64, len(sums[i]))
		for j := range avg {
			valid := counts[i][j] > 0
			if skipna {
				valid = counts[i][j] == nSteps
			}
			if valid {
				avg[j] = sums[i][j] / float64(counts[i][j])
			} else {
				avg[j] = math.NaN()
			}
		}
		if err := out.WriteItemTimeStepNext(0, fromNaN(avg, del)); err != nil {
			return err
		}
	}
	return nil
}

// Quantile writes temporal quantiles of every item to a single-step
// file: one output item per input item per quantile, named
// "Quantile q, name". Elements with a missing value at any step yield a
// missing quantile. bufferSize caps the memory used for the per-element
// time series, in bytes; large files are processed in element chunks.
func Quantile(infile, outfile string, qs []float64, bufferSize float64) error {
	if len(qs) == 0 {
		return fmt.Errorf("generic: no quantiles given")
	}
	for _, q := range qs {
		if q < 0 || q > 1 {
			return fmt.Errorf("generic: quantile %g outside [0,1]", q)
		}
	}
	if bufferSize <= 0 {
		bufferSize = 1e9
	}

	d, err := dfs.Open(infile)
	if err != nil {
		return err
	}
	defer d.Close()

	items := d.Items()
	nSteps := d.NSteps()
	nData := 0
	for _, it := range items {
		nData += it.ElementCount
	}
	memNeed := 8 * float64(nSteps) * float64(nData)
	nChunks := int(math.Ceil(memNeed / bufferSize))
	if nChunks < 1 {
		nChunks = 1
	}

	outItems := make([]dfs.ItemInfo, 0, len(items)*len(qs))
	for _, it := range items {
		for _, q := range qs {
			qit := it
			qit.Name = fmt.Sprintf("Quantile %v, %s", q, it.Name)
			outItems = append(outItems, qit)
		}
	}
	out, err := cloneOpen(infile, outfile, CloneOptions{NewItems: outItems})
	if err != nil {
		return err
	}
	defer out.Close()

	del := d.FileInfo().DeleteValue
	results := make([][]float64, len(outItems))
	for i, it := range outItems {
		results[i] = make([]float64, it.ElementCount)
	}

	for i, it := range items {
		n := it.ElementCount
		chunkSize := (n + nChunks - 1) / nChunks

		for e1 := 0; e1 < n; e1 += chunkSize {
			e2 := e1 + chunkSize
			if e2 > n {
				e2 = n
			}
			// time series per element of this chunk
			buf := make([]float64, (e2-e1)*nSteps)
			for step := 0; step < nSteps; step++ {
				_, raw, err := d.ReadItemTimeStep(i+1, step)
				if err != nil {
					return err
				}
				for e := e1; e < e2; e++ {
					v := float64(raw[e])
					if raw[e] == del {
						v = math.NaN()
					}
					buf[(e-e1)*nSteps+step] = v
				}
			}
			for e := e1; e < e2; e++ {
				series := buf[(e-e1)*nSteps : (e-e1+1)*nSteps]
				sorted := sortValid(series)
				for j, q := range qs {
					if sorted == nil {
						results[i*len(qs)+j][e] = math.NaN()
					} else {
						results[i*len(qs)+j][e] = quantileSorted(sorted, q)
					}
				}
			}
		}
	}

	for _, res := range results {
		if err := out.WriteItemTimeStepNext(0, toFloat32(res)); err != nil {
			return err
		}
	}
	return nil
}

// sortValid returns a sorted copy of the series, or nil if it contains
// NaN.
func sortValid(series []float64) []float64 {
	for _, v := range series {
		if math.IsNaN(v) {
			return nil
		}
	}
	sorted := append([]float64(nil), series...)
	sort.Float64s(sorted)
	return sorted
}

// quantileSorted computes the linear-interpolation quantile of an
// ascending series.
func quantileSorted(sorted []float64, q float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (pos-float64(lo))*(sorted[hi]-sorted[lo])
}
