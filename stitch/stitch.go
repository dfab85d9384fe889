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
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/imctools/mcdstitch/core/logger"
	"github.com/imctools/mcdstitch/mcd"
)

// CompositeParams - engine knobs for one container's compositing run
type CompositeParams struct {
	// Workers bounds the decode+resample fan-out; <= 0 means serial
	Workers int

	// KeepOrder skips the default descending-timestamp sort, compositing
	// the entries exactly as given (manual ordering/exclusion)
	KeepOrder bool

	Log logger.ILogger
}

// Composite - composites a container's ROI entries onto one canvas.
// Decode and resample fan out to a bounded pool feeding a serial paste
// loop in processing order, so a later ROI always overwrites an earlier
// one where they overlap. A decoded grid is dropped as soon as it is
// pasted and its slot frees the next decode: at most Workers grids are
// resident however many ROIs the container has. A single undecodable or
// mismatched ROI is skipped with a warning; no usable ROI at all is a
// NoROIsFoundError.
func Composite(ctx context.Context, sourceName string, entries []*ROIEntry, params CompositeParams) (*Canvas, error) {
	if len(entries) == 0 {
		return nil, &NoROIsFoundError{Source: sourceName}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !params.KeepOrder {
		SortROIsByTimestamp(entries)
	}

	canvas := planCanvas(entries)
	params.Log.Infof("%v: canvas %vx%v px at %vum, %v channels, %v ROIs",
		sourceName, canvas.Grid.Width, canvas.Grid.Height, canvas.PixelSize, len(canvas.Channels), len(entries))

	workers := params.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(entries) {
		workers = len(entries)
	}

	// Hand-off of decoded grids to the paste loop; buffered so a worker
	// never blocks sending its one result
	ready := make([]chan *mcd.PixelGrid, len(entries))
	for i := range ready {
		ready[i] = make(chan *mcd.PixelGrid, 1)
	}

	// Workers take a residency slot, then the next entry index in
	// processing order. The slot for a decoded grid comes back only after
	// the paste loop has used and dropped it, so the slot holders are
	// always the lowest unpasted entries and the paste loop can never be
	// starved of the entry it is waiting on.
	slots := make(chan struct{}, workers)
	indexes := make(chan int)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		defer close(indexes)
		for i := range entries {
			select {
			case indexes <- i:
			case <-groupCtx.Done():
				return groupCtx.Err()
			}
		}
		return nil
	})

	for w := 0; w < workers; w++ {
		group.Go(func() error {
			for {
				select {
				case slots <- struct{}{}:
				case <-groupCtx.Done():
					return groupCtx.Err()
				}

				i, more := <-indexes
				if !more {
					<-slots
					return nil
				}
				entry := entries[i]

				grid, err := entry.Load()
				if err != nil {
					params.Log.Errorf("%v: ROI %v failed to load, skipping: %v", sourceName, entry.ID, err)
					grid = nil
				} else if grid.IsUnavailable() {
					params.Log.Errorf("%v: ROI %v has no pixel data, skipping", sourceName, entry.ID)
					grid = nil
				} else if !channelsMatch(canvas.Channels, entry.Channels) {
					params.Log.Errorf("%v: ROI %v channel layout differs from ROI %v's, skipping",
						sourceName, entry.ID, entries[0].ID)
					grid = nil
				}

				if grid == nil {
					<-slots
					ready[i] <- nil
					continue
				}
				ready[i] <- canvas.prepareROI(entry, grid)
			}
		})
	}

	pasted := 0
pasteLoop:
	for i, entry := range entries {
		var grid *mcd.PixelGrid
		select {
		case grid = <-ready[i]:
		case <-groupCtx.Done():
			break pasteLoop
		}
		if grid == nil {
			continue
		}
		canvas.pasteROI(entry, grid)
		pasted++
		<-slots
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}
	// The paste loop may have broken off early; never hand back a
	// partially composited canvas
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if pasted == 0 {
		return nil, &NoROIsFoundError{Source: sourceName}
	}
	params.Log.Infof("%v: composited %v of %v ROIs", sourceName, pasted, len(entries))

	return canvas, nil
}

// channelsMatch - same count and same labels in the same order. The
// first composited ROI's layout is authoritative for the canvas.
func channelsMatch(canvasChannels []mcd.ChannelInfo, entryChannels []mcd.ChannelInfo) bool {
	if len(canvasChannels) != len(entryChannels) {
		return false
	}
	for i := range canvasChannels {
		if canvasChannels[i].Label() != entryChannels[i].Label() {
			return false
		}
	}
	return true
}
