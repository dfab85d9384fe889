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
	"fmt"
	"path"
	"strconv"

	"github.com/fumiama/imgsz"

	"github.com/imctools/mcdstitch/core/fileaccess"
	"github.com/imctools/mcdstitch/core/logger"
)

// Slide, panorama and before/after-ablation camera snapshots are embedded
// in the container as ordinary image files at offsets the metadata
// declares. The declared start offset points at a fixed-size record
// header that precedes the image bytes.
const snapshotHeaderBytes = 161

// Snapshot - one embedded image to extract
type snapshotRange struct {
	name     string
	startKey string
	endKey   string
}

var snapshotRangesByType = map[NodeType][]snapshotRange{
	NodeSlide: {
		{name: "Slide", startKey: "ImageStartOffset", endKey: "ImageEndOffset"},
	},
	NodePanorama: {
		{name: "Panorama_%v", startKey: "ImageStartOffset", endKey: "ImageEndOffset"},
	},
	NodeAcquisition: {
		{name: "Acquisition_%v_Before", startKey: "BeforeAblationImageStartOffset", endKey: "BeforeAblationImageEndOffset"},
		{name: "Acquisition_%v_After", startKey: "AfterAblationImageStartOffset", endKey: "AfterAblationImageEndOffset"},
	},
}

// ExtractSnapshots - writes every embedded snapshot image to
// <outPath>/<name>.<ext> through the given file access. The image format
// is sniffed from the bytes; unsniffable or empty ranges are skipped.
// Returns the number of snapshots written.
func ExtractSnapshots(container *RawContainer, graph *MetadataGraph, fs fileaccess.FileAccess, bucket string, outPath string, log logger.ILogger) (int, error) {
	written := 0

	for _, nodeType := range []NodeType{NodeSlide, NodePanorama, NodeAcquisition} {
		for _, node := range graph.NodesOfType(nodeType) {
			for _, snap := range snapshotRangesByType[nodeType] {
				name := snap.name
				if nodeType != NodeSlide {
					name = fmt.Sprintf(snap.name, node.ID)
				}

				start, errStart := strconv.ParseInt(node.Property(snap.startKey, ""), 10, 64)
				end, errEnd := strconv.ParseInt(node.Property(snap.endKey, ""), 10, 64)
				if errStart != nil || errEnd != nil {
					continue
				}

				start += snapshotHeaderBytes
				if end <= start {
					continue
				}

				data, err := container.ReadRange(start, end)
				if err != nil {
					log.Errorf("Failed to read snapshot %v: %v", name, err)
					continue
				}

				sz, format, err := imgsz.DecodeSize(bytes.NewReader(data))
				if err != nil {
					log.Debugf("Skipping snapshot %v: unrecognized image data", name)
					continue
				}

				ext := "." + format
				if format == "jpeg" {
					ext = ".jpg"
				}

				log.Debugf("Snapshot %v: %v %vx%v", name, format, sz.Width, sz.Height)

				if err := fs.WriteObject(bucket, path.Join(outPath, name+ext), data); err != nil {
					return written, err
				}
				written++
			}
		}
	}

	return written, nil
}
