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
	"bytes"
	"fmt"
	"image"
	"path"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/image/tiff"

	"github.com/imctools/mcdstitch/core/fileaccess"
)

// CanvasWriter - hands a finished canvas to a serializer. The production
// pyramidal/tiled encoder lives outside this repo; TIFFCanvasWriter below
// is the reference implementation.
type CanvasWriter interface {
	WriteCanvas(name string, canvas *Canvas) error
}

// TIFFCanvasWriter - writes one deflate-compressed 16-bit grayscale TIFF
// per channel under <outPath>/<name>/
type TIFFCanvasWriter struct {
	FS      fileaccess.FileAccess
	Bucket  string
	OutPath string
}

func (w *TIFFCanvasWriter) WriteCanvas(name string, canvas *Canvas) error {
	for ch, info := range canvas.Channels {
		img := image.NewGray16(image.Rect(0, 0, canvas.Grid.Width, canvas.Grid.Height))
		plane := canvas.Uint16Plane(ch)
		for i, val := range plane {
			img.Pix[i*2] = byte(val >> 8)
			img.Pix[i*2+1] = byte(val)
		}

		var buf bytes.Buffer
		err := tiff.Encode(&buf, img, &tiff.Options{Compression: tiff.Deflate})
		if err != nil {
			return errors.Wrapf(err, "failed to encode channel %v of %v", info.Label(), name)
		}

		fileName := fmt.Sprintf("%02d_%v.tiff", ch, fileNameSafe(info.Label()))
		outPath := path.Join(w.OutPath, name, fileName)
		if err := w.FS.WriteObject(w.Bucket, outPath, buf.Bytes()); err != nil {
			return errors.Wrapf(err, "failed to write %v", outPath)
		}
	}

	return nil
}

// fileNameSafe - channel labels come from instrument panels and can carry
// separators
func fileNameSafe(label string) string {
	label = strings.ReplaceAll(label, "/", "_")
	label = strings.ReplaceAll(label, "\\", "_")
	label = strings.ReplaceAll(label, " ", "_")
	if len(label) == 0 {
		label = "unnamed"
	}
	return label
}
