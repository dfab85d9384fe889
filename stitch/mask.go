// Licensed to NASA JPL under one or more contributor
// license agreements. See the NOTICE file distributed with
// this work for additional information regarding copyright
// ownership. NASA JPL licenses this file to you under
// the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

package stitch

import (
	"math"
	"sort"

	"github.com/imctools/mcdstitch/mcd"
)

// rasterizeMask - scanline even-odd rasterization of a stage-space
// polygon onto a width x height pixel grid anchored at (minX, minY) with
// the given pixel size. A pixel is in if its center is in. Degenerate
// polygons (fewer than 3 points) mask nothing out.
func rasterizeMask(polygon []mcd.PointUM, minX float64, minY float64, pixelSize float64, width int, height int) []bool {
	mask := make([]bool, width*height)

	if len(polygon) < 3 {
		for i := range mask {
			mask[i] = true
		}
		return mask
	}

	crossings := []float64{}
	for y := 0; y < height; y++ {
		yc := minY + (float64(y)+0.5)*pixelSize

		crossings = crossings[:0]
		for i := range polygon {
			a := polygon[i]
			b := polygon[(i+1)%len(polygon)]
			if (a.Y <= yc) == (b.Y <= yc) {
				continue
			}
			t := (yc - a.Y) / (b.Y - a.Y)
			crossings = append(crossings, a.X+t*(b.X-a.X))
		}
		sort.Float64s(crossings)

		for i := 0; i+1 < len(crossings); i += 2 {
			x0 := int(math.Ceil((crossings[i]-minX)/pixelSize - 0.5))
			x1 := int(math.Floor((crossings[i+1]-minX)/pixelSize - 0.5))
			if x0 < 0 {
				x0 = 0
			}
			if x1 > width-1 {
				x1 = width - 1
			}
			for x := x0; x <= x1; x++ {
				mask[y*width+x] = true
			}
		}
	}

	return mask
}

// boundsOf - axis-aligned bounding box of a stage-space polygon
func boundsOf(points []mcd.PointUM) (mcd.PointUM, mcd.PointUM) {
	minPt := points[0]
	maxPt := points[0]
	for _, p := range points[1:] {
		minPt.X = math.Min(minPt.X, p.X)
		minPt.Y = math.Min(minPt.Y, p.Y)
		maxPt.X = math.Max(maxPt.X, p.X)
		maxPt.Y = math.Max(maxPt.Y, p.Y)
	}
	return minPt, maxPt
}
