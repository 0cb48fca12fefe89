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

package meshdatautil

import (
	"reflect"
	"testing"
	"time"

	"github.com/spatialmodel/meshdata/generic"
)

func TestParseItems(t *testing.T) {
	sel := parseItems([]string{"0", "2"})
	if !reflect.DeepEqual(sel.Numbers, []int{0, 2}) || sel.Names != nil {
		t.Errorf("numeric entries parsed as %+v", sel)
	}
	sel = parseItems([]string{"Surface elevation"})
	if sel.Numbers != nil || !reflect.DeepEqual(sel.Names, []string{"Surface elevation"}) {
		t.Errorf("name entry parsed as %+v", sel)
	}
	// mixed entries fall back to names only
	sel = parseItems([]string{"0", "Current speed"})
	if sel.Numbers != nil || !reflect.DeepEqual(sel.Names, []string{"Current speed"}) {
		t.Errorf("mixed entries parsed as %+v", sel)
	}
}

func TestParseBound(t *testing.T) {
	b, err := parseBound("")
	if err != nil || b != (generic.Bound{}) {
		t.Errorf("empty bound: %+v, %v", b, err)
	}
	if b, err = parseBound("3"); err != nil || b != generic.Step(3) {
		t.Errorf("step bound: %+v, %v", b, err)
	}
	if b, err = parseBound("-1"); err != nil || b != generic.Step(-1) {
		t.Errorf("negative step bound: %+v, %v", b, err)
	}
	if b, err = parseBound("1800.5"); err != nil || b != generic.Seconds(1800.5) {
		t.Errorf("seconds bound: %+v, %v", b, err)
	}
	want := time.Date(2018, 3, 7, 12, 0, 0, 0, time.UTC)
	if b, err = parseBound("2018-03-07 12:00:00"); err != nil || b != generic.At(want) {
		t.Errorf("timestamp bound: %+v, %v", b, err)
	}
	if _, err = parseBound("not-a-bound"); err == nil {
		t.Error("unparseable bound should fail")
	}
}
