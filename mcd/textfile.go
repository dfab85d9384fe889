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
	"fmt"
	"strconv"
	"strings"

	"github.com/imctools/mcdstitch/core/utils"
	"github.com/pkg/errors"
)

// Some instruments export each acquisition as a tab-separated text file
// alongside the container. These act as a side channel of last resort
// when the binary payload is unreadable.

// Channel columns start here; the leading columns are x, y, z
const textChannelStartColumn = 3

// A text export needs a header plus at least one data row to be usable
const textMinValidLines = 2

// MatchAcquisitionTextFile - returns the entry of fileNames matching the
// "<description>_<id>.txt" convention for this acquisition, or ""
func MatchAcquisitionTextFile(fileNames []string, q *AcquisitionDescriptor) string {
	suffix := fmt.Sprintf("%v_%v.txt", q.Description, q.ID)
	for _, name := range fileNames {
		if strings.HasSuffix(name, suffix) {
			return name
		}
	}
	return ""
}

// DecodeAcquisitionTextFile - reads a side-channel text export into a
// grid. Channel names come from the header row; the grid shape comes from
// the data itself (max coordinate + 1, with the usual trailing-partial-row
// height correction), not from the container metadata.
func DecodeAcquisitionTextFile(path string) (*PixelGrid, []string, error) {
	lines, err := utils.ReadFileLines(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to read acquisition text file %v", path)
	}
	if len(lines) < textMinValidLines {
		return nil, nil, fmt.Errorf("acquisition text file %v is empty", path)
	}

	header := strings.Split(lines[0], "\t")
	if len(header) <= textChannelStartColumn {
		return nil, nil, fmt.Errorf("acquisition text file %v header has no channel columns", path)
	}
	channelNames := header[textChannelStartColumn:]
	numChannels := len(channelNames)

	type textRow struct {
		x, y   int
		values []float32
	}

	rows := []textRow{}
	maxX := 0
	maxY := 0

	for lineNo, line := range lines[1:] {
		if len(line) == 0 {
			continue
		}
		cols := strings.Split(line, "\t")
		if len(cols) != len(header) {
			return nil, nil, fmt.Errorf("acquisition text file %v line %v has %v columns, expected %v", path, lineNo+2, len(cols), len(header))
		}

		row := textRow{values: make([]float32, numChannels)}
		for i, col := range cols {
			val, err := strconv.ParseFloat(col, 32)
			if err != nil {
				return nil, nil, fmt.Errorf("acquisition text file %v line %v has malformed value %v", path, lineNo+2, col)
			}
			switch {
			case i == 0:
				row.x = int(val)
			case i == 1:
				row.y = int(val)
			case i >= textChannelStartColumn:
				row.values[i-textChannelStartColumn] = float32(val)
			}
		}

		if row.x > maxX {
			maxX = row.x
		}
		if row.y > maxY {
			maxY = row.y
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("acquisition text file %v has no data rows", path)
	}

	width := maxX + 1
	height := maxY + 1
	// A scan abandoned mid-row leaves the last raster line partial; drop it
	if width*height > len(rows) {
		height--
	}
	if height <= 0 {
		return nil, nil, fmt.Errorf("acquisition text file %v has less than one full row", path)
	}

	grid := MakePixelGrid(numChannels, height, width)
	for i, row := range rows {
		if i >= width*height {
			break
		}
		y := i / width
		x := i % width
		for c := 0; c < numChannels; c++ {
			grid.Set(c, y, x, row.values[c])
		}
	}

	return grid, channelNames, nil
}
