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
	"fmt"
	"runtime"
	"testing"
	"time"

	"github.com/imctools/mcdstitch/core/logger"
	"github.com/imctools/mcdstitch/mcd"
)

var testChannels = []mcd.ChannelInfo{
	{Metal: "Ir191", Target: "DNA1"},
	{Metal: "Ir193", Target: "DNA2"},
}

// makeRectEntry - a rectangular ROI at 1um pixels whose single loaded
// grid is filled with a constant per-channel value (value, value+100)
func makeRectEntry(id int, timestamp string, minX, minY float64, width, height int, value float32) *ROIEntry {
	return &ROIEntry{
		ID:             id,
		Description:    "ROI",
		StartTimeStamp: timestamp,
		Polygon: []mcd.PointUM{
			{X: minX, Y: minY},
			{X: minX + float64(width), Y: minY},
			{X: minX + float64(width), Y: minY + float64(height)},
			{X: minX, Y: minY + float64(height)},
		},
		PixelSizeX: 1,
		PixelSizeY: 1,
		Channels:   testChannels,
		Load: func() (*mcd.PixelGrid, error) {
			grid := mcd.MakePixelGrid(2, height, width)
			for i := range grid.Plane(0) {
				grid.Plane(0)[i] = value
				grid.Plane(1)[i] = value + 100
			}
			return grid, nil
		},
	}
}

func composite(t *testing.T, entries []*ROIEntry, params CompositeParams) *Canvas {
	t.Helper()
	if params.Log == nil {
		params.Log = &logger.NullLogger{}
	}
	canvas, err := Composite(context.Background(), "test", entries, params)
	if err != nil {
		t.Fatalf("composite failed: %v", err)
	}
	return canvas
}

func TestCompositeSideBySide(t *testing.T) {
	entries := []*ROIEntry{
		makeRectEntry(1, "2023-04-01T10:00:00Z", 0, 0, 10, 10, 5),
		makeRectEntry(2, "2023-04-01T10:05:00Z", 10, 0, 10, 10, 9),
	}

	canvas := composite(t, entries, CompositeParams{Workers: 2})

	if canvas.Grid.Width != 20 || canvas.Grid.Height != 10 {
		t.Fatalf("canvas size: got %vx%v, want 20x10", canvas.Grid.Width, canvas.Grid.Height)
	}
	if canvas.PixelSize != 1 {
		t.Errorf("pixel size: got %v", canvas.PixelSize)
	}
	if got := canvas.Grid.At(0, 5, 3); got != 5 {
		t.Errorf("left half: got %v, want 5", got)
	}
	if got := canvas.Grid.At(0, 5, 16); got != 9 {
		t.Errorf("right half: got %v, want 9", got)
	}
	if got := canvas.Grid.At(1, 5, 16); got != 109 {
		t.Errorf("right half ch1: got %v, want 109", got)
	}
}

func TestCompositeVerticalFlip(t *testing.T) {
	// Stage Y grows upward, canvas rows grow downward: the higher-Y ROI
	// must land in the top rows
	entries := []*ROIEntry{
		makeRectEntry(1, "2023-04-01T10:00:00Z", 0, 0, 10, 10, 5),
		makeRectEntry(2, "2023-04-01T10:05:00Z", 0, 10, 10, 10, 9),
	}

	canvas := composite(t, entries, CompositeParams{})

	if canvas.Grid.Width != 10 || canvas.Grid.Height != 20 {
		t.Fatalf("canvas size: got %vx%v, want 10x20", canvas.Grid.Width, canvas.Grid.Height)
	}
	if got := canvas.Grid.At(0, 2, 5); got != 9 {
		t.Errorf("top rows: got %v, want 9 (the higher-Y ROI)", got)
	}
	if got := canvas.Grid.At(0, 17, 5); got != 5 {
		t.Errorf("bottom rows: got %v, want 5", got)
	}
}

func TestCompositeOverlapLastWriteWins(t *testing.T) {
	// 5px horizontal overlap. Processing order is descending timestamp,
	// so the older ROI pastes last and owns the overlap.
	entries := []*ROIEntry{
		makeRectEntry(1, "2023-04-01T10:00:00Z", 0, 0, 10, 10, 5),
		makeRectEntry(2, "2023-04-01T10:05:00Z", 5, 0, 10, 10, 9),
	}

	canvas := composite(t, entries, CompositeParams{})

	if canvas.Grid.Width != 15 {
		t.Fatalf("canvas width: got %v, want 15", canvas.Grid.Width)
	}
	if got := canvas.Grid.At(0, 4, 7); got != 5 {
		t.Errorf("overlap: got %v, want 5 (older ROI pasted last)", got)
	}
	if got := canvas.Grid.At(0, 4, 2); got != 5 {
		t.Errorf("left only: got %v, want 5", got)
	}
	if got := canvas.Grid.At(0, 4, 12); got != 9 {
		t.Errorf("right only: got %v, want 9", got)
	}
}

func TestCompositeKeepOrder(t *testing.T) {
	// Caller-supplied order: the newer ROI listed last pastes last
	entries := []*ROIEntry{
		makeRectEntry(1, "2023-04-01T10:00:00Z", 0, 0, 10, 10, 5),
		makeRectEntry(2, "2023-04-01T10:05:00Z", 5, 0, 10, 10, 9),
	}

	canvas := composite(t, entries, CompositeParams{KeepOrder: true})

	if got := canvas.Grid.At(0, 4, 7); got != 9 {
		t.Errorf("overlap: got %v, want 9", got)
	}
}

func TestCompositeBackgroundDoesNotOverwrite(t *testing.T) {
	// The overlapping ROI pastes last but is all zeros there, so the
	// first ROI's values survive
	zeroEntry := makeRectEntry(2, "2023-04-01T09:00:00Z", 0, 0, 10, 10, 0)
	entries := []*ROIEntry{
		makeRectEntry(1, "2023-04-01T10:00:00Z", 0, 0, 10, 10, 5),
		zeroEntry,
	}

	canvas := composite(t, entries, CompositeParams{})

	if got := canvas.Grid.At(0, 4, 4); got != 5 {
		t.Errorf("background overwrite: got %v, want 5", got)
	}
}

func TestCompositeSkipsMismatchedChannels(t *testing.T) {
	odd := makeRectEntry(2, "2023-04-01T09:00:00Z", 10, 0, 10, 10, 9)
	odd.Channels = []mcd.ChannelInfo{{Metal: "Pt195", Target: "Other"}}

	entries := []*ROIEntry{
		makeRectEntry(1, "2023-04-01T10:00:00Z", 0, 0, 10, 10, 5),
		odd,
	}

	canvas := composite(t, entries, CompositeParams{})

	if got := canvas.Grid.At(0, 5, 15); got != 0 {
		t.Errorf("mismatched ROI was composited: got %v", got)
	}
	if got := canvas.Grid.At(0, 5, 5); got != 5 {
		t.Errorf("first ROI missing: got %v", got)
	}
}

func TestCompositeNoROIs(t *testing.T) {
	_, err := Composite(context.Background(), "empty", nil, CompositeParams{Log: &logger.NullLogger{}})
	if !IsNoROIsFound(err) {
		t.Errorf("expected NoROIsFoundError, got %v", err)
	}

	// All entries unusable counts as none found too
	bad := makeRectEntry(1, "2023-04-01T10:00:00Z", 0, 0, 4, 4, 5)
	bad.Load = func() (*mcd.PixelGrid, error) {
		return mcd.MakeUnavailableGrid(), nil
	}
	_, err = Composite(context.Background(), "unusable", []*ROIEntry{bad}, CompositeParams{Log: &logger.NullLogger{}})
	if !IsNoROIsFound(err) {
		t.Errorf("expected NoROIsFoundError, got %v", err)
	}
}

func TestCompositeGridResidency(t *testing.T) {
	// Eight co-located 1024x1024 ROIs (8MiB of pixels each) through a
	// single worker. Each decoded grid must be pasted and dropped before
	// the next decode is admitted, so by the time the last ROI loads the
	// earlier grids are collectable: live heap stays a couple of grids
	// plus the canvas, far below the ~64MiB of all eight at once.
	const n = 8
	const side = 1024

	var heapAtLastLoad uint64

	entries := []*ROIEntry{}
	for k := 0; k < n; k++ {
		entry := makeRectEntry(k+1, fmt.Sprintf("2023-04-01T10:00:%02vZ", k), 0, 0, side, side, 3)
		if k == n-1 {
			entry.Load = func() (*mcd.PixelGrid, error) {
				runtime.GC()
				var stats runtime.MemStats
				runtime.ReadMemStats(&stats)
				heapAtLastLoad = stats.HeapAlloc
				return mcd.MakePixelGrid(2, side, side), nil
			}
		}
		entries = append(entries, entry)
	}

	composite(t, entries, CompositeParams{Workers: 1, KeepOrder: true})

	const limit = 32 << 20
	if heapAtLastLoad > limit {
		t.Errorf("live heap before last decode: %v bytes, want under %v", heapAtLastLoad, limit)
	}
}

func TestSortROIsByTimestampInstants(t *testing.T) {
	// "09:00-03:00" is 12:00 UTC: later than "10:00Z" even though the raw
	// string compares lower. Descending order must put it first.
	early := makeRectEntry(1, "2023-04-01T10:00:00Z", 0, 0, 4, 4, 1)
	late := makeRectEntry(2, "2023-04-01T09:00:00-03:00", 0, 0, 4, 4, 2)
	for _, e := range []*ROIEntry{early, late} {
		e.Timestamp, _ = time.Parse(time.RFC3339Nano, e.StartTimeStamp)
	}

	entries := []*ROIEntry{early, late}
	SortROIsByTimestamp(entries)
	if entries[0].ID != 2 || entries[1].ID != 1 {
		t.Errorf("offset order: got %v,%v want 2,1", entries[0].ID, entries[1].ID)
	}

	// Unparseable stamps fall back to string comparison
	a := makeRectEntry(3, "scan-b", 0, 0, 4, 4, 1)
	b := makeRectEntry(4, "scan-a", 0, 0, 4, 4, 2)
	entries = []*ROIEntry{b, a}
	SortROIsByTimestamp(entries)
	if entries[0].ID != 3 || entries[1].ID != 4 {
		t.Errorf("fallback order: got %v,%v want 3,4", entries[0].ID, entries[1].ID)
	}
}

func TestCompositeCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	entries := []*ROIEntry{
		makeRectEntry(1, "2023-04-01T10:00:00Z", 0, 0, 10, 10, 5),
	}
	_, err := Composite(ctx, "cancelled", entries, CompositeParams{Log: &logger.NullLogger{}})
	if err == nil {
		t.Error("expected cancellation error")
	}
}
