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
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"
)

// writeTestContainer - writes raw bytes to a temp file and opens it
func writeTestContainer(t *testing.T, data []byte) *RawContainer {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.mcd")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to write test container: %v", err)
	}

	container, err := OpenContainer(path)
	if err != nil {
		t.Fatalf("failed to open test container: %v", err)
	}
	t.Cleanup(func() { container.Close() })

	return container
}

// encodeRows - encodes payload rows of (x, y, z, ch0..chN-1) float32
// values, little-endian, in the given order
func encodeRows(rows [][]float32) []byte {
	data := []byte{}
	for _, row := range rows {
		for _, val := range row {
			data = binary.LittleEndian.AppendUint32(data, math.Float32bits(val))
		}
	}
	return data
}

// testMetadataDoc - a two-acquisition document exercising the full record
// hierarchy. Acquisition 2 deliberately carries the lower OrderNumber and
// the later timestamp. Channel records include the X/Y/Z coordinate
// streams the instrument always writes.
func testMetadataDoc(dataStart1, dataEnd1, dataStart2, dataEnd2 int64) string {
	doc := `<MCDSchema xmlns="http://www.fluidigm.com/IMC/MCDSchema.xsd">
<Slide><ID>0</ID><Description>TestSlide</Description><WidthUm>75000</WidthUm><HeightUm>25000</HeightUm></Slide>
<Panorama><ID>1</ID><SlideID>0</SlideID><Description>Panorama_A</Description></Panorama>
<AcquisitionROI><ID>1</ID><PanoramaID>1</PanoramaID></AcquisitionROI>
<AcquisitionROI><ID>2</ID><PanoramaID>1</PanoramaID></AcquisitionROI>
<ROIPoint><ID>1</ID><AcquisitionROIID>1</AcquisitionROIID><OrderNumber>1</OrderNumber><SlideXPosUm>100</SlideXPosUm><SlideYPosUm>200</SlideYPosUm></ROIPoint>
<ROIPoint><ID>2</ID><AcquisitionROIID>1</AcquisitionROIID><OrderNumber>2</OrderNumber><SlideXPosUm>104</SlideXPosUm><SlideYPosUm>200</SlideYPosUm></ROIPoint>
<ROIPoint><ID>3</ID><AcquisitionROIID>1</AcquisitionROIID><OrderNumber>3</OrderNumber><SlideXPosUm>104</SlideXPosUm><SlideYPosUm>203</SlideYPosUm></ROIPoint>
<ROIPoint><ID>4</ID><AcquisitionROIID>1</AcquisitionROIID><OrderNumber>4</OrderNumber><SlideXPosUm>100</SlideXPosUm><SlideYPosUm>203</SlideYPosUm></ROIPoint>
<ROIPoint><ID>5</ID><AcquisitionROIID>2</AcquisitionROIID><OrderNumber>1</OrderNumber><SlideXPosUm>104</SlideXPosUm><SlideYPosUm>200</SlideYPosUm></ROIPoint>
<ROIPoint><ID>6</ID><AcquisitionROIID>2</AcquisitionROIID><OrderNumber>2</OrderNumber><SlideXPosUm>108</SlideXPosUm><SlideYPosUm>200</SlideYPosUm></ROIPoint>
<ROIPoint><ID>7</ID><AcquisitionROIID>2</AcquisitionROIID><OrderNumber>3</OrderNumber><SlideXPosUm>108</SlideXPosUm><SlideYPosUm>203</SlideYPosUm></ROIPoint>
<ROIPoint><ID>8</ID><AcquisitionROIID>2</AcquisitionROIID><OrderNumber>4</OrderNumber><SlideXPosUm>104</SlideXPosUm><SlideYPosUm>203</SlideYPosUm></ROIPoint>
<Acquisition><ID>1</ID><AcquisitionROIID>1</AcquisitionROIID><OrderNumber>2</OrderNumber><Description>ROI_1</Description><StartTimeStamp>2023-04-01T10:00:00.000Z</StartTimeStamp><DataStartOffset>` + itoa(dataStart1) + `</DataStartOffset><DataEndOffset>` + itoa(dataEnd1) + `</DataEndOffset><ValueBytes>4</ValueBytes><MaxX>4</MaxX><MaxY>3</MaxY><AblationPower>2.5</AblationPower></Acquisition>
<Acquisition><ID>2</ID><AcquisitionROIID>2</AcquisitionROIID><OrderNumber>1</OrderNumber><Description>ROI_2</Description><StartTimeStamp>2023-04-01T10:05:00.000Z</StartTimeStamp><DataStartOffset>` + itoa(dataStart2) + `</DataStartOffset><DataEndOffset>` + itoa(dataEnd2) + `</DataEndOffset><ValueBytes>4</ValueBytes><MaxX>4</MaxX><MaxY>3</MaxY><AblationPower>2.5</AblationPower></Acquisition>
<AcquisitionChannel><ID>1</ID><AcquisitionID>1</AcquisitionID><OrderNumber>0</OrderNumber><ChannelName>X</ChannelName><ChannelLabel></ChannelLabel></AcquisitionChannel>
<AcquisitionChannel><ID>2</ID><AcquisitionID>1</AcquisitionID><OrderNumber>1</OrderNumber><ChannelName>Y</ChannelName><ChannelLabel></ChannelLabel></AcquisitionChannel>
<AcquisitionChannel><ID>3</ID><AcquisitionID>1</AcquisitionID><OrderNumber>2</OrderNumber><ChannelName>Z</ChannelName><ChannelLabel></ChannelLabel></AcquisitionChannel>
<AcquisitionChannel><ID>5</ID><AcquisitionID>1</AcquisitionID><OrderNumber>4</OrderNumber><ChannelName>Ir193</ChannelName><ChannelLabel>DNA2</ChannelLabel></AcquisitionChannel>
<AcquisitionChannel><ID>4</ID><AcquisitionID>1</AcquisitionID><OrderNumber>3</OrderNumber><ChannelName>Ir191</ChannelName><ChannelLabel>DNA1</ChannelLabel></AcquisitionChannel>
<AcquisitionChannel><ID>6</ID><AcquisitionID>2</AcquisitionID><OrderNumber>0</OrderNumber><ChannelName>X</ChannelName><ChannelLabel></ChannelLabel></AcquisitionChannel>
<AcquisitionChannel><ID>7</ID><AcquisitionID>2</AcquisitionID><OrderNumber>1</OrderNumber><ChannelName>Y</ChannelName><ChannelLabel></ChannelLabel></AcquisitionChannel>
<AcquisitionChannel><ID>8</ID><AcquisitionID>2</AcquisitionID><OrderNumber>2</OrderNumber><ChannelName>Z</ChannelName><ChannelLabel></ChannelLabel></AcquisitionChannel>
<AcquisitionChannel><ID>9</ID><AcquisitionID>2</AcquisitionID><OrderNumber>3</OrderNumber><ChannelName>Ir191</ChannelName><ChannelLabel>DNA1</ChannelLabel></AcquisitionChannel>
<AcquisitionChannel><ID>10</ID><AcquisitionID>2</AcquisitionID><OrderNumber>4</OrderNumber><ChannelName>Ir193</ChannelName><ChannelLabel>DNA2</ChannelLabel></AcquisitionChannel>
</MCDSchema>`
	return doc
}

func itoa(v int64) string {
	return fmt.Sprintf("%v", v)
}
