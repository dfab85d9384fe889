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

// Orchestration of the convert step: one MCD container in, one
// intermediate store directory out.
package mcdimport

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/imctools/mcdstitch/core/fileaccess"
	"github.com/imctools/mcdstitch/core/logger"
	"github.com/imctools/mcdstitch/mcd"
	"github.com/imctools/mcdstitch/mcdimport/output"
)

// convertState - where a container is in its conversion. Failures before
// stateMetadataParsed abort the whole container; after that, failures are
// per-acquisition and conversion carries on.
type convertState int

const (
	stateOpened convertState = iota
	stateMetadataLocated
	stateMetadataParsed
	stateAcquisitionsDecoded
	stateAuxiliaryDataExtracted
	stateClosed
)

var convertStateName = map[convertState]string{
	stateOpened:                 "Opened",
	stateMetadataLocated:        "MetadataLocated",
	stateMetadataParsed:         "MetadataParsed",
	stateAcquisitionsDecoded:    "AcquisitionsDecoded",
	stateAuxiliaryDataExtracted: "AuxiliaryDataExtracted",
	stateClosed:                 "Closed",
}

func (s convertState) String() string {
	return convertStateName[s]
}

// ConvertParams - everything one container conversion needs
type ConvertParams struct {
	ContainerPath string

	Store       fileaccess.FileAccess
	StoreBucket string
	StoreRoot   string

	Log logger.ILogger
}

// ConvertSummary - per-container outcome counts
type ConvertSummary struct {
	ContainerName string
	Acquisitions  int
	FromContainer int
	FromTextFile  int
	Unavailable   int
	Snapshots     int
}

// ContainerName - the store directory name for a container path: the base
// file name without its extension
func ContainerName(containerPath string) string {
	base := filepath.Base(containerPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ConvertContainer - converts one container into its store directory.
// Returns an error only for failures that abort the whole container;
// per-acquisition decode failures degrade through the fallback chain and
// are reported in the summary instead.
func ConvertContainer(params ConvertParams) (*ConvertSummary, error) {
	name := ContainerName(params.ContainerPath)
	summary := &ConvertSummary{ContainerName: name}

	container, err := mcd.OpenContainer(params.ContainerPath)
	if err != nil {
		return nil, err
	}
	defer container.Close()

	state := stateOpened
	params.Log.Debugf("%v: %v (%v bytes)", name, state, container.Size())

	rawText, err := container.ReadMetadataDocument()
	if err != nil {
		return nil, err
	}
	state = stateMetadataLocated
	params.Log.Debugf("%v: %v (%v bytes of metadata)", name, state, len(rawText))

	graph, err := mcd.DecodeMetadataDocument(rawText)
	if err != nil {
		return nil, err
	}
	descriptors, err := graph.AcquisitionDescriptors()
	if err != nil {
		return nil, err
	}
	state = stateMetadataParsed
	params.Log.Infof("%v: %v, %v acquisitions", name, state, len(descriptors))

	writer, err := output.MakeStoreWriter(params.Store, params.StoreBucket, params.StoreRoot, name)
	if err != nil {
		return nil, err
	}
	defer writer.Close()

	if err := writer.WriteSchema(graph.RawText); err != nil {
		return nil, errors.Wrapf(err, "failed to write schema for %v", name)
	}

	textFiles := siblingTextFiles(params.ContainerPath)

	// Decode and write each acquisition in turn so only one grid is ever
	// resident
	summary.Acquisitions = len(descriptors)
	for _, q := range descriptors {
		grid, source := decodeWithFallback(container, q, textFiles, params.Log)

		switch source {
		case output.DataSourceContainer:
			summary.FromContainer++
		case output.DataSourceTextFile:
			summary.FromTextFile++
		default:
			summary.Unavailable++
		}

		meta := makeAcquisitionMeta(q, grid, source)
		if err := writer.WriteAcquisition(meta, grid); err != nil {
			return nil, err
		}
	}
	state = stateAcquisitionsDecoded
	params.Log.Debugf("%v: %v", name, state)

	snapshots, err := mcd.ExtractSnapshots(container, graph, params.Store, params.StoreBucket, writer.SnapshotsPath(), params.Log)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to extract snapshots for %v", name)
	}
	summary.Snapshots = snapshots
	state = stateAuxiliaryDataExtracted
	params.Log.Debugf("%v: %v (%v snapshots)", name, state, snapshots)

	if err := writer.WriteContainerMeta(makeContainerMeta(name, graph, descriptors)); err != nil {
		return nil, err
	}

	if err := container.Close(); err != nil {
		return nil, err
	}
	state = stateClosed
	params.Log.Infof("%v: %v (%v ok, %v from text, %v unavailable)",
		name, state, summary.FromContainer, summary.FromTextFile, summary.Unavailable)

	return summary, nil
}

// decodeWithFallback - the per-acquisition fallback chain: strict decode,
// then recovery decode, then the sibling text export, then the degenerate
// placeholder grid
func decodeWithFallback(container *mcd.RawContainer, q *mcd.AcquisitionDescriptor, textFiles []string, log logger.ILogger) (*mcd.PixelGrid, output.DataSource) {
	grid, err := mcd.DecodeAcquisitionPixels(container, q, mcd.DecodeStrict)
	if err == nil {
		return grid, output.DataSourceContainer
	}
	log.Errorf("Acquisition %v strict decode failed: %v", q.ID, err)

	grid, err = mcd.DecodeAcquisitionPixels(container, q, mcd.DecodeRecover)
	if err == nil {
		log.Infof("Acquisition %v recovered from partial payload", q.ID)
		return grid, output.DataSourceContainer
	}
	log.Errorf("Acquisition %v recovery decode failed: %v", q.ID, err)

	if textPath := mcd.MatchAcquisitionTextFile(textFiles, q); len(textPath) > 0 {
		grid, _, err = mcd.DecodeAcquisitionTextFile(textPath)
		if err == nil {
			log.Infof("Acquisition %v read from text export %v", q.ID, textPath)
			return grid, output.DataSourceTextFile
		}
		log.Errorf("Acquisition %v text export failed: %v", q.ID, err)
	}

	log.Errorf("Acquisition %v has no readable data source", q.ID)
	return mcd.MakeUnavailableGrid(), output.DataSourceInvalid
}

// siblingTextFiles - .txt files next to the container, candidates for the
// text export fallback. A listing failure just means no fallback.
func siblingTextFiles(containerPath string) []string {
	dir := filepath.Dir(containerPath)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	result := []string{}
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".txt") {
			result = append(result, filepath.Join(dir, entry.Name()))
		}
	}
	return result
}

func makeAcquisitionMeta(q *mcd.AcquisitionDescriptor, grid *mcd.PixelGrid, source output.DataSource) *output.AcquisitionMeta {
	meta := &output.AcquisitionMeta{
		ID:          q.ID,
		Num:         q.Order,
		Timestamp:   q.StartTimeStamp,
		Description: q.Description,
		Width:       grid.Width,
		Height:      grid.Height,
		StageX:      q.StageX,
		StageY:      q.StageY,
		PixelSizeX:  q.PixelSizeX,
		PixelSizeY:  q.PixelSizeY,
		ROIPolygon:  q.ROIPolygon,
		Channels:    q.Channels,
		DataSource:  source,
	}
	return meta
}

func makeContainerMeta(name string, graph *mcd.MetadataGraph, descriptors []*mcd.AcquisitionDescriptor) *output.ContainerMeta {
	meta := &output.ContainerMeta{
		Name:             name,
		AcquisitionCount: len(descriptors),
		Panoramas:        []output.PanoramaMeta{},
	}

	if slides := graph.NodesOfType(mcd.NodeSlide); len(slides) > 0 {
		meta.SoftwareVersion = slides[0].Property("SwVersion", "")
	}

	// Run date is the earliest acquisition start
	for _, q := range descriptors {
		if q.Timestamp.IsZero() {
			continue
		}
		if len(meta.RunDate) == 0 || q.StartTimeStamp < meta.RunDate {
			meta.RunDate = q.StartTimeStamp
		}
	}

	for _, panorama := range graph.NodesOfType(mcd.NodePanorama) {
		panoMeta := output.PanoramaMeta{
			ID:           panorama.ID,
			Description:  panorama.Property("Description", ""),
			Acquisitions: []int{},
		}
		for _, roi := range graph.ChildrenOfType(panorama, mcd.NodeAcquisitionROI) {
			for _, q := range graph.ChildrenOfType(roi, mcd.NodeAcquisition) {
				panoMeta.Acquisitions = append(panoMeta.Acquisitions, q.ID)
			}
		}
		meta.Panoramas = append(meta.Panoramas, panoMeta)
	}

	return meta
}
