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

package mcd

import (
	"encoding/binary"
	"math"
)

// PixelGrid - the decoded (channel, height, width) buffer for exactly one
// acquisition. Created on demand and discarded once composited or
// serialized - for a many-acquisition container these must never
// accumulate.
type PixelGrid struct {
	Channels int
	Height   int
	Width    int
	Data     []float32 // channel-major, then row-major
}

func MakePixelGrid(channels int, height int, width int) *PixelGrid {
	return &PixelGrid{
		Channels: channels,
		Height:   height,
		Width:    width,
		Data:     make([]float32, channels*height*width),
	}
}

// MakeUnavailableGrid - the degenerate 1x1x1 grid an acquisition yields
// when every data source failed. Batch conversion continues past it.
func MakeUnavailableGrid() *PixelGrid {
	return MakePixelGrid(1, 1, 1)
}

// IsUnavailable - true for the degenerate grid made by MakeUnavailableGrid
func (g *PixelGrid) IsUnavailable() bool {
	return g.Channels == 1 && g.Height == 1 && g.Width == 1
}

func (g *PixelGrid) At(channel int, y int, x int) float32 {
	return g.Data[(channel*g.Height+y)*g.Width+x]
}

func (g *PixelGrid) Set(channel int, y int, x int, value float32) {
	g.Data[(channel*g.Height+y)*g.Width+x] = value
}

// Plane - one channel's (height*width) values, sharing the grid's backing
func (g *PixelGrid) Plane(channel int) []float32 {
	start := channel * g.Height * g.Width
	return g.Data[start : start+g.Height*g.Width]
}

// DecodeMode - how tolerant the acquisition payload decode is
type DecodeMode int

const (
	// DecodeStrict - declared byte range must divide exactly into rows and
	// every row's (x,y) must land inside the declared geometry
	DecodeStrict DecodeMode = iota

	// DecodeRecover - rows are read in bounded chunks and rows with
	// out-of-range (x,y) are discarded, tolerating truncated or partially
	// corrupt payloads
	DecodeRecover
)

// Rows are (x, y, z, ch0..chN-1) float32 values. Coordinates ride along
// with the data, so each row is scattered by its own (x,y) rather than
// assuming raster order - the instrument can emit rows out of order after
// a retune.
const coordValueCount = 3

// Payloads are read this many rows at a time so a large acquisition never
// needs its raw bytes fully resident alongside the decoded grid.
const decodeChunkRows = 50000

// DecodeAcquisitionPixels - decodes one acquisition's declared byte range
// into a (channel, height, width) grid
func DecodeAcquisitionPixels(container *RawContainer, q *AcquisitionDescriptor, mode DecodeMode) (*PixelGrid, error) {
	if q.DataStart >= q.DataEnd || q.DataStart+q.DataSize() > container.Size() {
		return nil, makeFormatError("acquisition %v byte range [%v,%v) invalid for container of %v bytes",
			q.ID, q.DataStart, q.DataEnd, container.Size())
	}
	if q.ValueBytes != 4 {
		return nil, makeFormatError("acquisition %v has unsupported value width %v", q.ID, q.ValueBytes)
	}
	if q.NumChannels() <= 0 || q.Width <= 0 || q.Height <= 0 {
		return nil, makeFormatError("acquisition %v has degenerate geometry %vx%vx%v", q.ID, q.NumChannels(), q.Height, q.Width)
	}

	stride := q.NumChannels() + coordValueCount
	rowBytes := int64(stride * q.ValueBytes)
	dataSize := q.DataSize()

	if mode == DecodeStrict && dataSize%rowBytes != 0 {
		return nil, &DataSizeMismatchError{AcquisitionID: q.ID, DataBytes: dataSize, RowBytes: rowBytes}
	}

	grid := MakePixelGrid(q.NumChannels(), q.Height, q.Width)

	numRows := dataSize / rowBytes
	offset := q.DataStart
	row := make([]float32, stride)

	for remaining := numRows; remaining > 0; {
		n := int64(decodeChunkRows)
		if remaining < n {
			n = remaining
		}

		chunk, err := container.ReadRange(offset, offset+n*rowBytes)
		if err != nil {
			return nil, err
		}

		for r := int64(0); r < n; r++ {
			base := int(r * rowBytes)
			for v := 0; v < stride; v++ {
				bits := binary.LittleEndian.Uint32(chunk[base+v*4 : base+v*4+4])
				row[v] = math.Float32frombits(bits)
			}

			x := int(row[0])
			y := int(row[1])
			if x < 0 || x >= q.Width || y < 0 || y >= q.Height {
				if mode == DecodeStrict {
					return nil, makeFormatError("acquisition %v row at offset %v has out-of-range position (%v,%v)",
						q.ID, offset+r*rowBytes, x, y)
				}
				continue
			}

			for c := 0; c < q.NumChannels(); c++ {
				grid.Set(c, y, x, row[coordValueCount+c])
			}
		}

		offset += n * rowBytes
		remaining -= n
	}

	return grid, nil
}
