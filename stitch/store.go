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
	"path"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"

	"github.com/imctools/mcdstitch/core/fileaccess"
	"github.com/imctools/mcdstitch/mcd"
	"github.com/imctools/mcdstitch/mcdimport/output"
)

// CollectStoreROIs - builds entries from a converted container's store
// directory instead of the container itself. Groups marked invalid or
// without a boundary polygon are skipped. Each entry's Load reads and
// decompresses the group's data array.
func CollectStoreROIs(fs fileaccess.FileAccess, bucket string, containerPath string) ([]*ROIEntry, error) {
	files, err := fs.ListObjects(bucket, containerPath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list store %v", containerPath)
	}

	entries := []*ROIEntry{}
	for _, file := range files {
		if !isGroupMetaPath(containerPath, file) {
			continue
		}

		var meta output.AcquisitionMeta
		if err := fs.ReadJSON(bucket, file, &meta, false); err != nil {
			return nil, errors.Wrapf(err, "failed to read %v", file)
		}

		if meta.DataSource == output.DataSourceInvalid || len(meta.ROIPolygon) == 0 {
			continue
		}

		dataPath := path.Join(path.Dir(file), output.GroupDataFileName)
		groupMeta := meta // the closure below needs this iteration's copy
		entry := &ROIEntry{
			ID:             meta.ID,
			Description:    meta.Description,
			StartTimeStamp: meta.Timestamp,
			Polygon:        meta.ROIPolygon,
			PixelSizeX:     meta.PixelSizeX,
			PixelSizeY:     meta.PixelSizeY,
			Channels:       meta.Channels,
			Load: func() (*mcd.PixelGrid, error) {
				return readGroupData(fs, bucket, dataPath, &groupMeta)
			},
		}
		if ts, err := time.Parse(time.RFC3339Nano, meta.Timestamp); err == nil {
			entry.Timestamp = ts
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

// isGroupMetaPath - true for "<containerPath>/Q.../meta.json"
func isGroupMetaPath(containerPath string, file string) bool {
	if !strings.HasSuffix(file, "/"+output.GroupMetaFileName) {
		return false
	}
	rel := strings.TrimPrefix(file, containerPath+"/")
	parts := strings.Split(rel, "/")
	return len(parts) == 2 && strings.HasPrefix(parts[0], "Q")
}

func readGroupData(fs fileaccess.FileAccess, bucket string, dataPath string, meta *output.AcquisitionMeta) (*mcd.PixelGrid, error) {
	compressed, err := fs.ReadObject(bucket, dataPath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %v", dataPath)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer decoder.Close()

	raw, err := decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decompress %v", dataPath)
	}

	return output.DecodeGridData(raw, len(meta.Channels), meta.Height, meta.Width)
}
