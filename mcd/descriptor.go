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
	"strconv"
	"time"
)

// PointUM - a stage-space position in microns
type PointUM struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ChannelInfo - one measurement stream: the metal/mass tag and the target
// (marker) it reports
type ChannelInfo struct {
	Metal  string `json:"metal"`
	Target string `json:"target"`
}

// Label - the display label for the channel: target where set, else metal
func (c ChannelInfo) Label() string {
	if len(c.Target) > 0 {
		return c.Target
	}
	return c.Metal
}

// AcquisitionDescriptor - cheap derived view over an Acquisition node:
// everything the pixel decoder and the stitcher need, nothing decoded yet
type AcquisitionDescriptor struct {
	ID          int
	Order       int
	Description string

	StartTimeStamp string
	Timestamp      time.Time // zero if StartTimeStamp didn't parse

	DataStart  int64
	DataEnd    int64
	ValueBytes int

	Width  int // MaxX
	Height int // MaxY

	Channels []ChannelInfo

	// Stage-space boundary polygon from the parent AcquisitionROI's
	// ROIPoints, ordered by OrderNumber. Empty means this acquisition is
	// not stitchable (MissingROIData: excluded silently, not an error).
	ROIPolygon []PointUM

	// Stage position of the first boundary point
	StageX float64
	StageY float64

	PixelSizeX float64
	PixelSizeY float64

	AblationPower string
	PanoramaID    int
	ROIID         int
}

// DataSize - declared payload byte count
func (q *AcquisitionDescriptor) DataSize() int64 {
	return q.DataEnd - q.DataStart
}

// NumChannels - declared channel count
func (q *AcquisitionDescriptor) NumChannels() int {
	return len(q.Channels)
}

// ChannelLabels - display labels in channel order
func (q *AcquisitionDescriptor) ChannelLabels() []string {
	labels := make([]string, 0, len(q.Channels))
	for _, ch := range q.Channels {
		labels = append(labels, ch.Label())
	}
	return labels
}

// HasROI - true if the acquisition carries a stage boundary polygon
func (q *AcquisitionDescriptor) HasROI() bool {
	return len(q.ROIPolygon) > 0
}

// AcquisitionDescriptors - builds descriptor views for every Acquisition
// node in document order. A descriptor failing to build (offsets missing
// or malformed) fails the whole file: without a trustable byte range the
// container cannot be interpreted.
func (g *MetadataGraph) AcquisitionDescriptors() ([]*AcquisitionDescriptor, error) {
	result := []*AcquisitionDescriptor{}

	for _, node := range g.NodesOfType(NodeAcquisition) {
		desc, err := g.makeDescriptor(node)
		if err != nil {
			return nil, err
		}
		result = append(result, desc)
	}

	return result, nil
}

func (g *MetadataGraph) makeDescriptor(node *MetadataNode) (*AcquisitionDescriptor, error) {
	desc := &AcquisitionDescriptor{
		ID:             node.ID,
		Order:          node.Order,
		Description:    node.Property("Description", ""),
		StartTimeStamp: node.Property("StartTimeStamp", ""),
		AblationPower:  node.Property("AblationPower", ""),
		PixelSizeX:     1.0,
		PixelSizeY:     1.0,
	}

	if ts, err := time.Parse(time.RFC3339Nano, desc.StartTimeStamp); err == nil {
		desc.Timestamp = ts
	}

	var err error
	if desc.DataStart, err = requireInt64(node, "DataStartOffset"); err != nil {
		return nil, err
	}
	if desc.DataEnd, err = requireInt64(node, "DataEndOffset"); err != nil {
		return nil, err
	}

	valueBytes, err := requireInt64(node, "ValueBytes")
	if err != nil {
		return nil, err
	}
	if valueBytes < 0 {
		valueBytes = -valueBytes
	}
	desc.ValueBytes = int(valueBytes)

	maxX, err := requireInt64(node, "MaxX")
	if err != nil {
		return nil, err
	}
	maxY, err := requireInt64(node, "MaxY")
	if err != nil {
		return nil, err
	}
	desc.Width = int(maxX)
	desc.Height = int(maxY)

	for _, ch := range g.ChildrenOfType(node, NodeChannel) {
		metal := ch.Property("ChannelName", "")
		// The schema lists the X/Y/Z coordinate streams as channels too;
		// they are row coordinates, not measurements
		if metal == "X" || metal == "Y" || metal == "Z" {
			continue
		}
		desc.Channels = append(desc.Channels, ChannelInfo{
			Metal:  metal,
			Target: ch.Property("ChannelLabel", ""),
		})
	}

	// Boundary polygon comes from the parent AcquisitionROI, if any
	for _, parent := range node.Parents {
		if parent.Type != NodeAcquisitionROI {
			continue
		}
		roi := g.Node(NodeAcquisitionROI, parent.ID)
		if roi == nil {
			continue
		}
		desc.ROIID = roi.ID
		for _, grandparent := range roi.Parents {
			if grandparent.Type == NodePanorama {
				desc.PanoramaID = grandparent.ID
			}
		}
		for _, point := range g.ChildrenOfType(roi, NodeROIPoint) {
			x, errX := strconv.ParseFloat(point.Property("SlideXPosUm", ""), 64)
			y, errY := strconv.ParseFloat(point.Property("SlideYPosUm", ""), 64)
			if errX != nil || errY != nil {
				return nil, makeFormatError("ROIPoint %v of AcquisitionROI %v has malformed stage position", point.ID, roi.ID)
			}
			desc.ROIPolygon = append(desc.ROIPolygon, PointUM{X: x, Y: y})
		}
	}

	if len(desc.ROIPolygon) > 0 {
		desc.StageX = desc.ROIPolygon[0].X
		desc.StageY = desc.ROIPolygon[0].Y

		// Per-axis pixel size from the polygon's bounding extent over the
		// declared pixel extent. Degenerate values fall back to 1um, the
		// instrument's native resolution.
		minPt, maxPt := polygonBounds(desc.ROIPolygon)
		if desc.Width > 0 && maxPt.X > minPt.X {
			desc.PixelSizeX = (maxPt.X - minPt.X) / float64(desc.Width)
		}
		if desc.Height > 0 && maxPt.Y > minPt.Y {
			desc.PixelSizeY = (maxPt.Y - minPt.Y) / float64(desc.Height)
		}
	}

	return desc, nil
}

func polygonBounds(points []PointUM) (PointUM, PointUM) {
	minPt := points[0]
	maxPt := points[0]
	for _, p := range points[1:] {
		if p.X < minPt.X {
			minPt.X = p.X
		}
		if p.Y < minPt.Y {
			minPt.Y = p.Y
		}
		if p.X > maxPt.X {
			maxPt.X = p.X
		}
		if p.Y > maxPt.Y {
			maxPt.Y = p.Y
		}
	}
	return minPt, maxPt
}

func requireInt64(node *MetadataNode, name string) (int64, error) {
	text, ok := node.Properties[name]
	if !ok {
		return 0, makeFormatError("%v %v missing %v", node.Type, node.ID, name)
	}
	val, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return 0, makeFormatError("%v %v has malformed %v: %v", node.Type, node.ID, name, text)
	}
	return val, nil
}
