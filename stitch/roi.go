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

// Compositing of one container's stage-positioned acquisitions (ROIs)
// onto a single multi-channel canvas.
package stitch

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/imctools/mcdstitch/mcd"
)

// ROIEntry - one stitchable acquisition, independent of where its pixels
// live. Pixel data loads lazily through Load so collecting ROIs stays
// cheap and decode can be fanned out.
type ROIEntry struct {
	ID          int
	Description string

	StartTimeStamp string
	Timestamp      time.Time

	// Stage-space boundary polygon, microns
	Polygon []mcd.PointUM

	PixelSizeX float64
	PixelSizeY float64

	Channels []mcd.ChannelInfo

	Load func() (*mcd.PixelGrid, error)
}

// NoROIsFoundError - the source yielded nothing stitchable. Fatal for the
// container per the batch contract.
type NoROIsFoundError struct {
	Source string
}

func (e *NoROIsFoundError) Error() string {
	return fmt.Sprintf("no stitchable ROIs found in %v", e.Source)
}

func IsNoROIsFound(err error) bool {
	var target *NoROIsFoundError
	return errors.As(err, &target)
}

// SortROIsByTimestamp - orders entries by descending acquisition start,
// the default compositing order. Compares the parsed Timestamp so UTC
// offsets and fractional-second widths order by instant, falling back to
// the raw string only where parsing failed. Callers wanting manual
// ordering or exclusion just pass their own slice to the engine instead.
func SortROIsByTimestamp(entries []*ROIEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.Timestamp.IsZero() && !b.Timestamp.IsZero() && !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.After(b.Timestamp)
		}
		return a.StartTimeStamp > b.StartTimeStamp
	})
}

// CollectContainerROIs - builds entries straight from an open container,
// skipping acquisitions without a boundary polygon. Each entry's Load
// runs the strict decode with recovery fallback.
func CollectContainerROIs(container *mcd.RawContainer, graph *mcd.MetadataGraph) ([]*ROIEntry, error) {
	descriptors, err := graph.AcquisitionDescriptors()
	if err != nil {
		return nil, err
	}

	entries := []*ROIEntry{}
	for _, q := range descriptors {
		if !q.HasROI() {
			continue
		}

		q := q
		entries = append(entries, &ROIEntry{
			ID:             q.ID,
			Description:    q.Description,
			StartTimeStamp: q.StartTimeStamp,
			Timestamp:      q.Timestamp,
			Polygon:        q.ROIPolygon,
			PixelSizeX:     q.PixelSizeX,
			PixelSizeY:     q.PixelSizeY,
			Channels:       q.Channels,
			Load: func() (*mcd.PixelGrid, error) {
				grid, err := mcd.DecodeAcquisitionPixels(container, q, mcd.DecodeStrict)
				if err == nil {
					return grid, nil
				}
				return mcd.DecodeAcquisitionPixels(container, q, mcd.DecodeRecover)
			},
		})
	}

	return entries, nil
}
