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

// Writing of the intermediate store a converted container becomes: one
// directory per container holding the raw metadata document, extracted
// snapshots, and one group per acquisition with a JSON attribute document
// and a zstd-compressed float32 array.
package output

import (
	"encoding/binary"
	"math"
	"path"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"

	"github.com/imctools/mcdstitch/core/fileaccess"
	"github.com/imctools/mcdstitch/core/utils"
	"github.com/imctools/mcdstitch/mcd"
)

const (
	ContainerMetaFileName = "meta.json"
	SchemaFileName        = "mcd_schema.xml"
	SnapshotsDirName      = "snapshots"
	GroupMetaFileName     = "meta.json"
	GroupDataFileName     = "data.f32.zst"
)

// DataSource - which source an acquisition's pixel data actually came
// from, recorded in the group attributes so downstream consumers can
// tell recovered and fallback data apart
type DataSource string

const (
	// DataSourceContainer - decoded from the container's binary payload
	DataSourceContainer DataSource = "mcd"

	// DataSourceTextFile - the payload was unreadable, data came from the
	// sibling text export
	DataSourceTextFile DataSource = "txt"

	// DataSourceInvalid - every source failed; the stored grid is the
	// degenerate 1x1x1 placeholder
	DataSourceInvalid DataSource = "invalid"
)

// AcquisitionMeta - the attribute document written next to each
// acquisition's data array. Width/height describe the stored grid, which
// can differ from the container's declared geometry when the data came
// from a fallback source.
type AcquisitionMeta struct {
	ID          int             `json:"q_id"`
	Num         int             `json:"q_num"`
	Timestamp   string          `json:"q_timestamp"`
	Description string          `json:"q_description"`
	Width       int             `json:"q_width"`
	Height      int             `json:"q_height"`
	StageX      float64         `json:"q_stage_x"`
	StageY      float64         `json:"q_stage_y"`
	PixelSizeX  float64         `json:"q_pixel_size_x"`
	PixelSizeY  float64         `json:"q_pixel_size_y"`
	ROIPolygon  []mcd.PointUM   `json:"q_roi_polygon"`
	Channels    []mcd.ChannelInfo `json:"q_channels"`
	DataSource  DataSource      `json:"q_data_source"`
}

// PanoramaMeta - one panorama and the acquisitions under it
type PanoramaMeta struct {
	ID           int    `json:"id"`
	Description  string `json:"description"`
	Acquisitions []int  `json:"acquisitions"`
}

// ContainerMeta - the container-level summary document
type ContainerMeta struct {
	Name             string         `json:"name"`
	SoftwareVersion  string         `json:"software_version"`
	RunDate          string         `json:"run_date"`
	AcquisitionCount int            `json:"acquisition_count"`
	Panoramas        []PanoramaMeta `json:"panoramas"`
}

// StoreWriter - writes one container's store directory through a
// FileAccess, so the store can land on local disk or S3 unchanged
type StoreWriter struct {
	fs     fileaccess.FileAccess
	bucket string

	// <store-root>/<container-name>
	containerPath string

	encoder *zstd.Encoder
}

func MakeStoreWriter(fs fileaccess.FileAccess, bucket string, storeRoot string, containerName string) (*StoreWriter, error) {
	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create store compressor")
	}

	return &StoreWriter{
		fs:            fs,
		bucket:        bucket,
		containerPath: path.Join(storeRoot, containerName),
		encoder:       encoder,
	}, nil
}

// ContainerPath - the container's directory within the store
func (w *StoreWriter) ContainerPath() string {
	return w.containerPath
}

// SnapshotsPath - where extracted snapshot images go
func (w *StoreWriter) SnapshotsPath() string {
	return path.Join(w.containerPath, SnapshotsDirName)
}

// WriteSchema - persists the located raw metadata document text so later
// pipeline steps never need the container again
func (w *StoreWriter) WriteSchema(rawText string) error {
	return w.fs.WriteObject(w.bucket, path.Join(w.containerPath, SchemaFileName), []byte(rawText))
}

// WriteContainerMeta - persists the container-level summary
func (w *StoreWriter) WriteContainerMeta(meta *ContainerMeta) error {
	return w.fs.WriteJSON(w.bucket, path.Join(w.containerPath, ContainerMetaFileName), meta)
}

// WriteAcquisition - writes one acquisition group: the attribute document
// and the compressed data array
func (w *StoreWriter) WriteAcquisition(meta *AcquisitionMeta, grid *mcd.PixelGrid) error {
	groupPath := path.Join(w.containerPath, utils.AcquisitionGroupName(meta.ID))

	if err := w.fs.WriteJSON(w.bucket, path.Join(groupPath, GroupMetaFileName), meta); err != nil {
		return errors.Wrapf(err, "failed to write attributes for acquisition %v", meta.ID)
	}

	compressed := w.encoder.EncodeAll(EncodeGridData(grid), nil)
	if err := w.fs.WriteObject(w.bucket, path.Join(groupPath, GroupDataFileName), compressed); err != nil {
		return errors.Wrapf(err, "failed to write data for acquisition %v", meta.ID)
	}

	return nil
}

func (w *StoreWriter) Close() {
	w.encoder.Close()
}

// EncodeGridData - serializes a grid's values as little-endian float32 in
// (channel, y, x) order
func EncodeGridData(grid *mcd.PixelGrid) []byte {
	data := make([]byte, 0, len(grid.Data)*4)
	for _, val := range grid.Data {
		data = binary.LittleEndian.AppendUint32(data, math.Float32bits(val))
	}
	return data
}

// DecodeGridData - the inverse of EncodeGridData, into the given shape
func DecodeGridData(data []byte, channels int, height int, width int) (*mcd.PixelGrid, error) {
	if len(data) != channels*height*width*4 {
		return nil, errors.Errorf("data array is %v bytes, expected %v for %vx%vx%v",
			len(data), channels*height*width*4, channels, height, width)
	}

	grid := mcd.MakePixelGrid(channels, height, width)
	for i := range grid.Data {
		grid.Data[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4 : i*4+4]))
	}
	return grid, nil
}
