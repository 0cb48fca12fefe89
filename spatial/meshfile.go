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

package spatial

import (
	"bufio"
	"fmt"
	"os"
)

// Quantity and unit tags written into the mesh container header. The node
// z values of an exported mesh carry bathymetry in meters.
const (
	meshQuantityBathymetry = 100079
	meshUnitMeter          = 1000
)

// Element type codes in the mesh container.
const (
	meshElementTri   = 21
	meshElementMixed = 25
)

// WriteMeshFile writes the mesh to an ASCII mesh container: a header line
// with the quantity tag, node count and projection; one line per node
// (id, x, y, z, code); an element section header; and one line per element
// with 1-based node connectivity (quadrilateral rows padded with 0 for
// triangles in mixed meshes).
func WriteMeshFile(path string, m *Mesh2D) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("spatial: creating mesh file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("spatial: closing mesh file: %w", cerr)
		}
	}()
	w := bufio.NewWriter(f)

	nodes := m.Nodes()
	fmt.Fprintf(w, "%d %d %d %s\n", meshQuantityBathymetry, meshUnitMeter, m.NNodes(), m.Projection())
	for i := range nodes.X {
		id := int32(i + 1)
		if nodes.ID != nil {
			id = nodes.ID[i]
		}
		code := int32(0)
		if nodes.Code != nil {
			code = nodes.Code[i]
		}
		fmt.Fprintf(w, "%d %.15g %.15g %.15g %d\n", id, nodes.X[i], nodes.Y[i], nodes.Z[i], code)
	}

	maxNodes := m.MaxNodesPerElement()
	elemType := meshElementMixed
	if m.IsTriOnly() {
		elemType = meshElementTri
	}
	elems := m.Elements()
	fmt.Fprintf(w, "%d %d %d\n", m.NElements(), maxNodes, elemType)
	for i, el := range elems.Table {
		id := int32(i + 1)
		if elems.ID != nil {
			id = elems.ID[i]
		}
		fmt.Fprintf(w, "%d", id)
		for _, ni := range el {
			fmt.Fprintf(w, " %d", ni+1)
		}
		for j := len(el); j < maxNodes; j++ {
			fmt.Fprint(w, " 0")
		}
		fmt.Fprintln(w)
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("spatial: writing mesh file: %w", err)
	}
	return nil
}
