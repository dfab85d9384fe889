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

	"github.com/imctools/mcdstitch/mcd"
)

// Canvas - the composited multi-channel output. Square pixels at the
// finest pixel size any input ROI carries; the stage-space origin of the
// canvas is its bottom-left corner (stage Y grows upward, canvas rows
// grow downward).
type Canvas struct {
	Channels  []mcd.ChannelInfo
	PixelSize float64 // microns

	MinX float64
	MinY float64

	Grid *mcd.PixelGrid
}

// planCanvas - sizes a canvas covering every entry's boundary polygon.
// Channel identity follows the first entry.
func planCanvas(entries []*ROIEntry) *Canvas {
	pixelSize := math.Min(entries[0].PixelSizeX, entries[0].PixelSizeY)
	minPt, maxPt := boundsOf(entries[0].Polygon)

	for _, entry := range entries[1:] {
		pixelSize = math.Min(pixelSize, math.Min(entry.PixelSizeX, entry.PixelSizeY))
		entryMin, entryMax := boundsOf(entry.Polygon)
		minPt.X = math.Min(minPt.X, entryMin.X)
		minPt.Y = math.Min(minPt.Y, entryMin.Y)
		maxPt.X = math.Max(maxPt.X, entryMax.X)
		maxPt.Y = math.Max(maxPt.Y, entryMax.Y)
	}

	width := int(math.Ceil((maxPt.X - minPt.X) / pixelSize))
	height := int(math.Ceil((maxPt.Y - minPt.Y) / pixelSize))

	return &Canvas{
		Channels:  entries[0].Channels,
		PixelSize: pixelSize,
		MinX:      minPt.X,
		MinY:      minPt.Y,
		Grid:      mcd.MakePixelGrid(len(entries[0].Channels), height, width),
	}
}

// prepareROI - brings a decoded grid to canvas resolution. Pixel sizes
// already within tolerance paste bit-exact without resampling.
func (c *Canvas) prepareROI(entry *ROIEntry, grid *mcd.PixelGrid) *mcd.PixelGrid {
	if !needsResample(entry.PixelSizeX, entry.PixelSizeY, c.PixelSize) {
		return grid
	}

	dstWidth := int(math.Round(float64(grid.Width) * entry.PixelSizeX / c.PixelSize))
	dstHeight := int(math.Round(float64(grid.Height) * entry.PixelSizeY / c.PixelSize))
	if dstWidth < 1 {
		dstWidth = 1
	}
	if dstHeight < 1 {
		dstHeight = 1
	}
	return ResampleGrid(grid, dstHeight, dstWidth)
}

// pasteROI - composites one canvas-resolution grid: pixels inside the
// entry's boundary polygon with a non-background value overwrite whatever
// is already on the canvas. Pixels falling off the canvas are dropped.
func (c *Canvas) pasteROI(entry *ROIEntry, grid *mcd.PixelGrid) {
	roiMin, _ := boundsOf(entry.Polygon)
	mask := rasterizeMask(entry.Polygon, roiMin.X, roiMin.Y, c.PixelSize, grid.Width, grid.Height)

	canvasX := int(math.Round((roiMin.X - c.MinX) / c.PixelSize))
	canvasY := c.Grid.Height - int(math.Round((roiMin.Y-c.MinY)/c.PixelSize)) - grid.Height

	channels := c.Grid.Channels
	if grid.Channels < channels {
		channels = grid.Channels
	}

	for y := 0; y < grid.Height; y++ {
		destY := canvasY + y
		if destY < 0 || destY >= c.Grid.Height {
			continue
		}
		for x := 0; x < grid.Width; x++ {
			destX := canvasX + x
			if destX < 0 || destX >= c.Grid.Width || !mask[y*grid.Width+x] {
				continue
			}
			for ch := 0; ch < channels; ch++ {
				if val := grid.At(ch, y, x); val > 0 {
					c.Grid.Set(ch, destY, destX, val)
				}
			}
		}
	}
}

// Uint16Plane - one channel as saturating clamp-and-round uint16, the
// usual representation for viewer-facing exports
func (c *Canvas) Uint16Plane(channel int) []uint16 {
	plane := c.Grid.Plane(channel)
	result := make([]uint16, len(plane))
	for i, val := range plane {
		switch {
		case val <= 0:
			result[i] = 0
		case val >= math.MaxUint16:
			result[i] = math.MaxUint16
		default:
			result[i] = uint16(math.Round(float64(val)))
		}
	}
	return result
}

// Float32Plane - one channel's raw composited values
func (c *Canvas) Float32Plane(channel int) []float32 {
	return c.Grid.Plane(channel)
}
