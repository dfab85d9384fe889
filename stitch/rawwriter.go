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

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"

	"github.com/imctools/mcdstitch/core/fileaccess"
	"github.com/imctools/mcdstitch/mcd"
	"github.com/imctools/mcdstitch/mcdimport/output"
)

// RawCanvasMeta - attribute document written next to a raw canvas array
type RawCanvasMeta struct {
	Name      string            `json:"name"`
	Width     int               `json:"width"`
	Height    int               `json:"height"`
	PixelSize float64           `json:"pixel_size_um"`
	Channels  []mcd.ChannelInfo `json:"channels"`
}

// RawCanvasWriter - keeps the composited values as float32: one zstd
// array in store layout plus a JSON attribute document, for pipelines
// that must not quantize
type RawCanvasWriter struct {
	FS      fileaccess.FileAccess
	Bucket  string
	OutPath string
}

func (w *RawCanvasWriter) WriteCanvas(name string, canvas *Canvas) error {
	meta := &RawCanvasMeta{
		Name:      name,
		Width:     canvas.Grid.Width,
		Height:    canvas.Grid.Height,
		PixelSize: canvas.PixelSize,
		Channels:  canvas.Channels,
	}
	if err := w.FS.WriteJSON(w.Bucket, path.Join(w.OutPath, name, "meta.json"), meta); err != nil {
		return errors.Wrapf(err, "failed to write canvas attributes for %v", name)
	}

	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return err
	}
	defer encoder.Close()

	compressed := encoder.EncodeAll(output.EncodeGridData(canvas.Grid), nil)
	outPath := path.Join(w.OutPath, name, "canvas.f32.zst")
	if err := w.FS.WriteObject(w.Bucket, outPath, compressed); err != nil {
		return errors.Wrapf(err, "failed to write %v", outPath)
	}

	return nil
}
