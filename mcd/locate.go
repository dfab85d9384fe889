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
	"bytes"
)

const (
	metaStartMarker = "<MCDSchema"
	metaStopMarker  = "</MCDSchema>"

	// The document is appended by the instrument, so it sits at the tail
	// of the file. Search is bounded to the last 100MiB.
	metaSearchWindow = 100 * 1024 * 1024

	// Window size for the backward scan. Each window overlaps the next by
	// marker-length-1 bytes so a marker split across a boundary is found.
	searchWindowSize = 8192
)

// addNullBytes - the legacy document encoding interleaves a null byte
// after every marker character
func addNullBytes(s string) []byte {
	padded := make([]byte, 0, len(s)*2)
	for i := 0; i < len(s); i++ {
		padded = append(padded, s[i], 0)
	}
	return padded
}

// reverseFind - scans backward from the end of the container for the last
// occurrence of marker, reading fixed-size overlapping windows. Returns
// the offset of the occurrence, or -1. The scan stops once it has covered
// metaSearchWindow bytes.
func (c *RawContainer) reverseFind(marker []byte) (int64, error) {
	lowLimit := int64(0)
	if c.size > metaSearchWindow {
		lowLimit = c.size - metaSearchWindow
	}

	overlap := int64(len(marker) - 1)
	windowStart := c.size - searchWindowSize - overlap
	if windowStart < lowLimit {
		windowStart = lowLimit
	}

	for {
		windowEnd := windowStart + searchWindowSize + overlap
		if windowEnd > c.size {
			windowEnd = c.size
		}

		window, err := c.ReadRange(windowStart, windowEnd)
		if err != nil {
			return -1, err
		}

		if pos := bytes.LastIndex(window, marker); pos >= 0 {
			return windowStart + int64(pos), nil
		}

		if windowStart == lowLimit {
			return -1, nil
		}
		windowStart -= searchWindowSize
		if windowStart < lowLimit {
			windowStart = lowLimit
		}
	}
}

// findMarker - tries the plain-byte marker first, then retries with the
// null-padded legacy form. Returns offset and the byte form that matched.
func (c *RawContainer) findMarker(marker string) (int64, []byte, error) {
	plain := []byte(marker)
	pos, err := c.reverseFind(plain)
	if err != nil {
		return -1, nil, err
	}
	if pos >= 0 {
		return pos, plain, nil
	}

	padded := addNullBytes(marker)
	pos, err = c.reverseFind(padded)
	if err != nil {
		return -1, nil, err
	}
	return pos, padded, nil
}

// LocateMetadataDocument - finds the byte range [start,end) of the
// trailing metadata document. Fails with FormatError if either marker is
// absent, which is fatal for the whole file.
func (c *RawContainer) LocateMetadataDocument() (int64, int64, error) {
	start, _, err := c.findMarker(metaStartMarker)
	if err != nil {
		return 0, 0, err
	}
	if start < 0 {
		return 0, 0, makeFormatError("metadata document start tag not found in %v", c.Path)
	}

	stop, stopForm, err := c.findMarker(metaStopMarker)
	if err != nil {
		return 0, 0, err
	}
	if stop < 0 {
		return 0, 0, makeFormatError("metadata document stop tag not found in %v", c.Path)
	}

	end := stop + int64(len(stopForm))
	if end <= start {
		return 0, 0, makeFormatError("metadata document stop tag precedes start tag in %v", c.Path)
	}

	return start, end, nil
}

// ReadMetadataDocument - locates and reads the raw metadata document text
func (c *RawContainer) ReadMetadataDocument() (string, error) {
	start, end, err := c.LocateMetadataDocument()
	if err != nil {
		return "", err
	}

	data, err := c.ReadRange(start, end)
	if err != nil {
		return "", err
	}

	return string(data), nil
}
