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

package mcdimport

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/klauspost/compress/zstd"

	"github.com/imctools/mcdstitch/core/fileaccess"
	"github.com/imctools/mcdstitch/core/logger"
	"github.com/imctools/mcdstitch/mcdimport/output"
)

// writeFallbackChainContainer - a container with three acquisitions:
// 1 decodes cleanly, 2 has a broken byte range but a sibling text export,
// 3 has a broken byte range and nothing to fall back to
func writeFallbackChainContainer(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	// Acquisition 1: 2 channels, 2x2, rows (x,y,z,ch0,ch1)
	payload := []byte{}
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			for _, val := range []float32{float32(x), float32(y), 1, float32(10*y + x), float32(100 + 10*y + x)} {
				payload = binary.LittleEndian.AppendUint32(payload, math.Float32bits(val))
			}
		}
	}

	channels := func(qID, firstID int) string {
		return fmt.Sprintf(`<AcquisitionChannel><ID>%v</ID><AcquisitionID>%v</AcquisitionID><OrderNumber>0</OrderNumber><ChannelName>Ir191</ChannelName><ChannelLabel>DNA1</ChannelLabel></AcquisitionChannel>
<AcquisitionChannel><ID>%v</ID><AcquisitionID>%v</AcquisitionID><OrderNumber>1</OrderNumber><ChannelName>Ir193</ChannelName><ChannelLabel>DNA2</ChannelLabel></AcquisitionChannel>`,
			firstID, qID, firstID+1, qID)
	}

	doc := fmt.Sprintf(`<MCDSchema xmlns="http://www.fluidigm.com/IMC/MCDSchema.xsd">
<Slide><ID>0</ID><SwVersion>7.0.5189</SwVersion></Slide>
<Panorama><ID>1</ID><SlideID>0</SlideID><Description>Pano</Description></Panorama>
<AcquisitionROI><ID>1</ID><PanoramaID>1</PanoramaID></AcquisitionROI>
<ROIPoint><ID>1</ID><AcquisitionROIID>1</AcquisitionROIID><OrderNumber>1</OrderNumber><SlideXPosUm>10</SlideXPosUm><SlideYPosUm>20</SlideYPosUm></ROIPoint>
<ROIPoint><ID>2</ID><AcquisitionROIID>1</AcquisitionROIID><OrderNumber>2</OrderNumber><SlideXPosUm>12</SlideXPosUm><SlideYPosUm>20</SlideYPosUm></ROIPoint>
<ROIPoint><ID>3</ID><AcquisitionROIID>1</AcquisitionROIID><OrderNumber>3</OrderNumber><SlideXPosUm>12</SlideXPosUm><SlideYPosUm>22</SlideYPosUm></ROIPoint>
<ROIPoint><ID>4</ID><AcquisitionROIID>1</AcquisitionROIID><OrderNumber>4</OrderNumber><SlideXPosUm>10</SlideXPosUm><SlideYPosUm>22</SlideYPosUm></ROIPoint>
<Acquisition><ID>1</ID><AcquisitionROIID>1</AcquisitionROIID><OrderNumber>1</OrderNumber><Description>ROI_1</Description><StartTimeStamp>2023-04-01T10:00:00Z</StartTimeStamp><DataStartOffset>0</DataStartOffset><DataEndOffset>%v</DataEndOffset><ValueBytes>4</ValueBytes><MaxX>2</MaxX><MaxY>2</MaxY></Acquisition>
<Acquisition><ID>2</ID><OrderNumber>2</OrderNumber><Description>ROI_2</Description><StartTimeStamp>2023-04-01T10:05:00Z</StartTimeStamp><DataStartOffset>0</DataStartOffset><DataEndOffset>0</DataEndOffset><ValueBytes>4</ValueBytes><MaxX>2</MaxX><MaxY>2</MaxY></Acquisition>
<Acquisition><ID>3</ID><OrderNumber>3</OrderNumber><Description>ROI_3</Description><StartTimeStamp>2023-04-01T10:10:00Z</StartTimeStamp><DataStartOffset>0</DataStartOffset><DataEndOffset>0</DataEndOffset><ValueBytes>4</ValueBytes><MaxX>2</MaxX><MaxY>2</MaxY></Acquisition>
%v
%v
%v
</MCDSchema>`, len(payload), channels(1, 10), channels(2, 12), channels(3, 14))

	data := append([]byte{}, payload...)
	data = append(data, []byte(doc)...)

	containerPath := filepath.Join(dir, "sample_run.mcd")
	if err := os.WriteFile(containerPath, data, 0644); err != nil {
		t.Fatalf("failed to write container: %v", err)
	}

	// Text export for acquisition 2
	text := "X\tY\tZ\tIr191\tIr193\n" +
		"0\t0\t1\t5\t105\n" +
		"1\t0\t1\t6\t106\n" +
		"0\t1\t1\t7\t107\n" +
		"1\t1\t1\t8\t108\n"
	if err := os.WriteFile(filepath.Join(dir, "sample_run_ROI_2_2.txt"), []byte(text), 0644); err != nil {
		t.Fatalf("failed to write text export: %v", err)
	}

	return containerPath
}

func convertToMemory(t *testing.T, containerPath string) (*ConvertSummary, *fileaccess.MemoryAccess) {
	t.Helper()
	store := fileaccess.MakeMemoryAccess()
	summary, err := ConvertContainer(ConvertParams{
		ContainerPath: containerPath,
		Store:         store,
		StoreBucket:   "",
		StoreRoot:     "store",
		Log:           &logger.NullLogger{},
	})
	if err != nil {
		t.Fatalf("convert failed: %v", err)
	}
	return summary, store
}

func TestConvertContainerFallbackChain(t *testing.T) {
	containerPath := writeFallbackChainContainer(t)
	summary, store := convertToMemory(t, containerPath)

	if summary.ContainerName != "sample_run" {
		t.Errorf("container name: got %v", summary.ContainerName)
	}
	if summary.Acquisitions != 3 || summary.FromContainer != 1 || summary.FromTextFile != 1 || summary.Unavailable != 1 {
		t.Errorf("summary counts: got %+v", summary)
	}

	// Container-level artifacts
	schema, err := store.ReadObject("", "store/sample_run/mcd_schema.xml")
	if err != nil {
		t.Fatalf("schema missing: %v", err)
	}
	if bytes.Contains(schema, []byte("\n")) || bytes.Contains(schema, []byte("xmlns")) {
		t.Error("schema not cleaned/newline-stripped")
	}

	var containerMeta output.ContainerMeta
	if err := store.ReadJSON("", "store/sample_run/meta.json", &containerMeta, false); err != nil {
		t.Fatalf("container meta missing: %v", err)
	}
	if containerMeta.SoftwareVersion != "7.0.5189" || containerMeta.AcquisitionCount != 3 {
		t.Errorf("container meta: got %+v", containerMeta)
	}
	if containerMeta.RunDate != "2023-04-01T10:00:00Z" {
		t.Errorf("run date: got %v", containerMeta.RunDate)
	}
	if len(containerMeta.Panoramas) != 1 || !reflect.DeepEqual(containerMeta.Panoramas[0].Acquisitions, []int{1}) {
		t.Errorf("panorama tree: got %+v", containerMeta.Panoramas)
	}

	// Group 1: clean container decode
	var q1 output.AcquisitionMeta
	if err := store.ReadJSON("", "store/sample_run/Q001/meta.json", &q1, false); err != nil {
		t.Fatalf("Q001 meta missing: %v", err)
	}
	if q1.DataSource != output.DataSourceContainer || q1.Width != 2 || q1.Height != 2 {
		t.Errorf("Q001 meta: got %+v", q1)
	}
	if len(q1.ROIPolygon) != 4 || q1.StageX != 10 || q1.StageY != 20 {
		t.Errorf("Q001 polygon: got %+v", q1.ROIPolygon)
	}

	compressed, err := store.ReadObject("", "store/sample_run/Q001/data.f32.zst")
	if err != nil {
		t.Fatalf("Q001 data missing: %v", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		t.Fatalf("zstd reader: %v", err)
	}
	defer decoder.Close()
	raw, err := decoder.DecodeAll(compressed, nil)
	if err != nil {
		t.Fatalf("Q001 data decompress: %v", err)
	}
	grid, err := output.DecodeGridData(raw, 2, 2, 2)
	if err != nil {
		t.Fatalf("Q001 data decode: %v", err)
	}
	if grid.At(0, 1, 1) != 11 || grid.At(1, 0, 1) != 101 {
		t.Errorf("Q001 values: got %v, %v", grid.At(0, 1, 1), grid.At(1, 0, 1))
	}

	// Group 2: text export fallback
	var q2 output.AcquisitionMeta
	if err := store.ReadJSON("", "store/sample_run/Q002/meta.json", &q2, false); err != nil {
		t.Fatalf("Q002 meta missing: %v", err)
	}
	if q2.DataSource != output.DataSourceTextFile || q2.Width != 2 || q2.Height != 2 {
		t.Errorf("Q002 meta: got %+v", q2)
	}

	// Group 3: nothing worked, placeholder grid
	var q3 output.AcquisitionMeta
	if err := store.ReadJSON("", "store/sample_run/Q003/meta.json", &q3, false); err != nil {
		t.Fatalf("Q003 meta missing: %v", err)
	}
	if q3.DataSource != output.DataSourceInvalid || q3.Width != 1 || q3.Height != 1 {
		t.Errorf("Q003 meta: got %+v", q3)
	}
}

func TestConvertContainerIdempotent(t *testing.T) {
	containerPath := writeFallbackChainContainer(t)

	_, store1 := convertToMemory(t, containerPath)
	_, store2 := convertToMemory(t, containerPath)

	files1, _ := store1.ListObjects("", "store")
	files2, _ := store2.ListObjects("", "store")
	if !reflect.DeepEqual(files1, files2) {
		t.Fatalf("store listings differ: %v vs %v", files1, files2)
	}
	for _, file := range files1 {
		data1, _ := store1.ReadObject("", file)
		data2, _ := store2.ReadObject("", file)
		if !bytes.Equal(data1, data2) {
			t.Errorf("%v differs between runs", file)
		}
	}
}

func TestConvertContainerNoMetadata(t *testing.T) {
	dir := t.TempDir()
	containerPath := filepath.Join(dir, "junk.mcd")
	if err := os.WriteFile(containerPath, bytes.Repeat([]byte{0x99}, 4096), 0644); err != nil {
		t.Fatalf("failed to write container: %v", err)
	}

	_, err := ConvertContainer(ConvertParams{
		ContainerPath: containerPath,
		Store:         fileaccess.MakeMemoryAccess(),
		StoreRoot:     "store",
		Log:           &logger.NullLogger{},
	})
	if err == nil {
		t.Fatal("expected conversion of metadata-free container to fail")
	}
}
