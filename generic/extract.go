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
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/spatialmodel/meshdata/dfs"
)

// Bound marks one end of a time-step extraction: a step index, elapsed
// seconds from the file start, or an absolute instant. The zero value
// means the start (or end) of the file.
type Bound struct {
	kind boundKind
	step int
	sec  float64
	inst time.Time
}

type boundKind int

const (
	boundNone boundKind = iota
	boundStep
	boundSeconds
	boundAt
)

// Step bounds extraction at a step index. A negative end index counts
// back from the end of the file, -1 meaning the last step.
func Step(i int) Bound { return Bound{kind: boundStep, step: i} }

// Seconds bounds extraction at an elapsed time from the file start.
func Seconds(s float64) Bound { return Bound{kind: boundSeconds, sec: s} }

// At bounds extraction at an absolute instant.
func At(t time.Time) Bound { return Bound{kind: boundAt, inst: t} }

// extractRange is the resolved extraction window: a step range to scan,
// a seconds window to filter by, and the start instant of the output
// file (zero when unchanged).
type extractRange struct {
	startStep, endStep int
	startSec, endSec   float64
	newStart           time.Time
}

func parseStartEnd(d *dfs.File, start, end Bound) (extractRange, error) {
	info := d.FileInfo()
	n := d.NSteps()
	offsets := d.TimeOffsets()

	fileStartSec := 0.0
	if len(offsets) > 0 {
		fileStartSec = offsets[0]
	}
	var timespan float64
	if info.TimeStep > 0 {
		timespan = info.TimeStep * float64(n-1)
	} else if len(offsets) > 0 {
		timespan = offsets[len(offsets)-1] - fileStartSec
	}
	fileEndSec := fileStartSec + timespan

	r := extractRange{startStep: 0, endStep: n, startSec: fileStartSec, endSec: fileEndSec}

	switch start.kind {
	case boundStep:
		r.startStep = start.step
	case boundSeconds:
		r.startSec = start.sec
	case boundAt:
		r.startSec = start.inst.Sub(info.StartTime).Seconds()
	}
	switch end.kind {
	case boundStep:
		e := end.step
		if e < 0 {
			e = n + e + 1
		}
		r.endStep = e
	case boundSeconds:
		r.endSec = end.sec
	case boundAt:
		r.endSec = end.inst.Sub(info.StartTime).Seconds()
	}

	if r.startStep < 0 {
		r.startStep = 0
		log.Warn("extraction start cannot be before the start of the file")
	}
	if r.startSec < fileStartSec {
		r.startSec = fileStartSec
		log.Warn("extraction start cannot be before the start of the file")
	}
	if r.endSec < r.startSec || r.endStep < r.startStep {
		return extractRange{}, fmt.Errorf("generic: %s: extraction end must be after start", d.Path())
	}
	if r.endStep > n {
		r.endStep = n
		log.Warn("extraction end cannot be after the end of the file")
	}
	if r.endSec > fileEndSec {
		r.endSec = fileEndSec
		log.Warn("extraction end cannot be after the end of the file")
	}

	if info.TimeStep > 0 {
		if r.startSec > fileStartSec && r.startStep == 0 {
			r.startStep = int(math.Floor((r.startSec - fileStartSec) / info.TimeStep))
		}
		r.newStart = info.StartTime.Add(time.Duration(float64(r.startStep) * info.TimeStep * float64(time.Second)))
	} else if r.startSec > fileStartSec {
		r.newStart = info.StartTime.Add(time.Duration(r.startSec * float64(time.Second)))
	}
	return r, nil
}

// Extract copies a window of time steps, and optionally a subset of
// items, to a new file. The time axis of the output is re-based so its
// first step is at the new start. Bounds outside the file are clamped
// with a warning; an empty window is an error.
func Extract(infile, outfile string, start, end Bound, items ItemSelection) error {
	d, err := dfs.Open(infile)
	if err != nil {
		return err
	}
	defer d.Close()

	r, err := parseStartEnd(d, start, end)
	if err != nil {
		return err
	}
	idx, err := items.resolve(d)
	if err != nil {
		return err
	}

	opts := CloneOptions{Items: ItemSelection{Numbers: idx}}
	if !r.newStart.IsZero() {
		opts.StartTime = &r.newStart
	}
	out, err := cloneOpen(infile, outfile, opts)
	if err != nil {
		return err
	}
	defer out.Close()

	shift := 0.0
	if !r.newStart.IsZero() {
		shift = r.newStart.Sub(d.FileInfo().StartTime).Seconds()
	}

	stepOut := -1
	for step := r.startStep; step < r.endStep; step++ {
		for itemOut, item := range idx {
			offsetSec, raw, err := d.ReadItemTimeStep(item+1, step)
			if err != nil {
				return err
			}
			if offsetSec > r.endSec {
				return nil
			}
			if offsetSec < r.startSec {
				continue
			}
			if itemOut == 0 {
				stepOut++
			}
			if err := out.WriteItemTimeStep(itemOut+1, stepOut, offsetSec-shift, raw); err != nil {
				return err
			}
		}
	}
	return nil
}
