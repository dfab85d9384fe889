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
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"sort"
	"testing"

	"github.com/imctools/mcdstitch/core/fileaccess"
	"github.com/imctools/mcdstitch/core/logger"
)

// minimalPNG - just enough of a PNG (signature + IHDR with a valid CRC,
// which the sniffer checks) for format and size detection
func minimalPNG(width, height uint32) []byte {
	chunk := []byte("IHDR")
	chunk = binary.BigEndian.AppendUint32(chunk, width)
	chunk = binary.BigEndian.AppendUint32(chunk, height)
	// bit depth, colour type, compression, filter, interlace
	chunk = append(chunk, 8, 0, 0, 0, 0)

	data := []byte("\x89PNG\r\n\x1a\n")
	data = binary.BigEndian.AppendUint32(data, 13)
	data = append(data, chunk...)
	data = binary.BigEndian.AppendUint32(data, crc32.ChecksumIEEE(chunk))
	return data
}

func TestExtractSnapshots(t *testing.T) {
	slideImg := minimalPNG(64, 16)
	panoImg := minimalPNG(32, 32)
	junk := bytes.Repeat([]byte{0x55}, 40)

	// Layout: header+slide image, header+panorama image, header+junk for
	// the before-ablation range, then the metadata document
	data := []byte{}
	appendRecord := func(img []byte) (int64, int64) {
		start := int64(len(data))
		data = append(data, bytes.Repeat([]byte{0}, snapshotHeaderBytes)...)
		data = append(data, img...)
		return start, int64(len(data))
	}
	slideStart, slideEnd := appendRecord(slideImg)
	panoStart, panoEnd := appendRecord(panoImg)
	junkStart, junkEnd := appendRecord(junk)

	doc := fmt.Sprintf(`<MCDSchema>
<Slide><ID>0</ID><ImageStartOffset>%v</ImageStartOffset><ImageEndOffset>%v</ImageEndOffset></Slide>
<Panorama><ID>1</ID><SlideID>0</SlideID><ImageStartOffset>%v</ImageStartOffset><ImageEndOffset>%v</ImageEndOffset></Panorama>
<AcquisitionROI><ID>1</ID><PanoramaID>1</PanoramaID></AcquisitionROI>
<Acquisition><ID>1</ID><AcquisitionROIID>1</AcquisitionROIID><BeforeAblationImageStartOffset>%v</BeforeAblationImageStartOffset><BeforeAblationImageEndOffset>%v</BeforeAblationImageEndOffset></Acquisition>
</MCDSchema>`, slideStart, slideEnd, panoStart, panoEnd, junkStart, junkEnd)
	data = append(data, []byte(doc)...)

	container := writeTestContainer(t, data)
	graph, err := DecodeMetadataDocument(doc)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	fs := fileaccess.MakeMemoryAccess()
	written, err := ExtractSnapshots(container, graph, fs, "", "out/snapshots", &logger.NullLogger{})
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}

	// The junk range doesn't sniff as an image, so only two are written
	if written != 2 {
		t.Errorf("written: got %v, want 2", written)
	}

	files, err := fs.ListObjects("", "out/snapshots")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	sort.Strings(files)
	want := []string{"out/snapshots/Panorama_1.png", "out/snapshots/Slide.png"}
	if len(files) != 2 || files[0] != want[0] || files[1] != want[1] {
		t.Errorf("files: got %v, want %v", files, want)
	}

	img, err := fs.ReadObject("", "out/snapshots/Slide.png")
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !bytes.Equal(img, slideImg) {
		t.Error("slide image bytes differ from embedded range")
	}
}
