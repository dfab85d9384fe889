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

package runner

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/imctools/mcdstitch/core/fileaccess"
	"github.com/imctools/mcdstitch/core/logger"
	"github.com/imctools/mcdstitch/mcd"
	"github.com/imctools/mcdstitch/mcdimport"
	"github.com/imctools/mcdstitch/mcdimport/output"
	"github.com/imctools/mcdstitch/stitch"
)

// Exit statuses of a batch run
const (
	StatusOK             = 0
	StatusFatal          = 1
	StatusPartialFailure = 2
)

// ItemResult - outcome for one container or store
type ItemResult struct {
	Name    string
	Skipped bool
	Err     error
}

// RunSummary - what a whole batch did. Per-item failures never abort the
// batch; they show up here and in the error log.
type RunSummary struct {
	Results []ItemResult

	Succeeded int
	Skipped   int
	Failed    int
}

func (s *RunSummary) record(name string, err error) {
	s.Results = append(s.Results, ItemResult{Name: name, Err: err})
	if err != nil {
		s.Failed++
	} else {
		s.Succeeded++
	}
}

func (s *RunSummary) recordSkipped(name string) {
	s.Results = append(s.Results, ItemResult{Name: name, Skipped: true})
	s.Skipped++
}

// ExitStatus - 0 when everything succeeded, 2 when some items failed
func (s *RunSummary) ExitStatus() int {
	if s.Failed > 0 {
		return StatusPartialFailure
	}
	return StatusOK
}

// Batch - shared plumbing for a batch run: the store-side file access,
// the console logger and the run-scoped error log
type Batch struct {
	Store       fileaccess.FileAccess
	StoreBucket string

	Config *Config
	Log    logger.ILogger

	// ErrorLog receives per-item failure detail; defaults to Log
	ErrorLog logger.ILogger

	report ErrorReporter
}

// MakeBatch - a batch writing its error log to cfg.ErrorLogPath. Close
// the returned batch when done.
func MakeBatch(store fileaccess.FileAccess, storeBucket string, cfg *Config, log logger.ILogger) (*Batch, error) {
	batch := &Batch{
		Store:       store,
		StoreBucket: storeBucket,
		Config:      cfg,
		Log:         log,
		ErrorLog:    logger.MakeFileLogger(cfg.ErrorLogPath, cfg.ErrorLogMaxMB, 30),
	}

	report, err := makeErrorReporter(cfg.SentryDSN)
	if err != nil {
		return nil, err
	}
	batch.report = report

	return batch, nil
}

func (b *Batch) Close() {
	if fileLog, ok := b.ErrorLog.(*logger.FileLogger); ok {
		fileLog.Close()
	}
	b.report.Flush()
}

func (b *Batch) itemFailed(name string, err error) {
	b.Log.Errorf("%v failed: %v", name, err)
	b.ErrorLog.Errorf("%v: %v", name, err)
	b.report.Capture(err)
}

// FindContainers - expands a container path or directory into the list
// of .mcd files to process
func FindContainers(inputPath string) ([]string, error) {
	info, err := os.Stat(inputPath)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{inputPath}, nil
	}

	entries, err := os.ReadDir(inputPath)
	if err != nil {
		return nil, err
	}

	result := []string{}
	for _, entry := range entries {
		if !entry.IsDir() && strings.EqualFold(filepath.Ext(entry.Name()), ".mcd") {
			result = append(result, filepath.Join(inputPath, entry.Name()))
		}
	}
	return result, nil
}

// FindStores - lists converted container directories under the store
// root, recognized by their mcd_schema.xml
func (b *Batch) FindStores(storeRoot string) ([]string, error) {
	files, err := b.Store.ListObjects(b.StoreBucket, storeRoot)
	if err != nil {
		return nil, err
	}

	result := []string{}
	for _, file := range files {
		if path.Base(file) == output.SchemaFileName {
			result = append(result, path.Dir(file))
		}
	}
	return result, nil
}

// ConvertBatch - converts every container, fanning out to a bounded
// worker pool. One container failing is recorded and the rest continue.
func (b *Batch) ConvertBatch(ctx context.Context, containerPaths []string, storeRoot string) *RunSummary {
	summary := &RunSummary{}
	var mu sync.Mutex

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(b.Config.Workers)

	for _, containerPath := range containerPaths {
		containerPath := containerPath
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return nil
			}

			name := mcdimport.ContainerName(containerPath)

			// Already-converted containers are skipped; delete the store
			// directory to force a reconvert
			existing := path.Join(storeRoot, name, output.SchemaFileName)
			if exists, err := b.Store.ObjectExists(b.StoreBucket, existing); err == nil && exists {
				b.Log.Infof("%v already converted, skipping", name)
				mu.Lock()
				summary.recordSkipped(name)
				mu.Unlock()
				return nil
			}

			_, err := mcdimport.ConvertContainer(mcdimport.ConvertParams{
				ContainerPath: containerPath,
				Store:         b.Store,
				StoreBucket:   b.StoreBucket,
				StoreRoot:     storeRoot,
				Log:           b.Log,
			})
			if err != nil {
				b.itemFailed(containerPath, err)
			}

			mu.Lock()
			summary.record(name, err)
			mu.Unlock()
			return nil
		})
	}

	group.Wait()
	b.Log.Infof("Convert finished: %v succeeded, %v skipped, %v failed", summary.Succeeded, summary.Skipped, summary.Failed)
	return summary
}

// StitchStores - composites every converted container under the store
// root and hands each canvas to the writer
func (b *Batch) StitchStores(ctx context.Context, storeRoot string, writer stitch.CanvasWriter) (*RunSummary, error) {
	stores, err := b.FindStores(storeRoot)
	if err != nil {
		return nil, err
	}

	summary := &RunSummary{}
	for _, storePath := range stores {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		name := path.Base(storePath)
		err := b.stitchOne(ctx, name, writer, func() ([]*stitch.ROIEntry, error) {
			return stitch.CollectStoreROIs(b.Store, b.StoreBucket, storePath)
		})
		if err != nil {
			b.itemFailed(name, err)
		}
		summary.record(name, err)
	}

	b.Log.Infof("Stitch finished: %v succeeded, %v failed", summary.Succeeded, summary.Failed)
	return summary, nil
}

// StitchContainers - composites straight from .mcd containers, without an
// intermediate store
func (b *Batch) StitchContainers(ctx context.Context, containerPaths []string, writer stitch.CanvasWriter) *RunSummary {
	summary := &RunSummary{}
	for _, containerPath := range containerPaths {
		name := mcdimport.ContainerName(containerPath)
		err := b.stitchContainer(ctx, containerPath, name, writer)
		if err != nil {
			b.itemFailed(name, err)
		}
		summary.record(name, err)
	}

	b.Log.Infof("Stitch finished: %v succeeded, %v failed", summary.Succeeded, summary.Failed)
	return summary
}

func (b *Batch) stitchContainer(ctx context.Context, containerPath string, name string, writer stitch.CanvasWriter) error {
	container, err := mcd.OpenContainer(containerPath)
	if err != nil {
		return err
	}
	defer container.Close()

	rawText, err := container.ReadMetadataDocument()
	if err != nil {
		return err
	}
	graph, err := mcd.DecodeMetadataDocument(rawText)
	if err != nil {
		return err
	}

	return b.stitchOne(ctx, name, writer, func() ([]*stitch.ROIEntry, error) {
		return stitch.CollectContainerROIs(container, graph)
	})
}

func (b *Batch) stitchOne(ctx context.Context, name string, writer stitch.CanvasWriter, collect func() ([]*stitch.ROIEntry, error)) error {
	entries, err := collect()
	if err != nil {
		return err
	}

	canvas, err := stitch.Composite(ctx, name, entries, stitch.CompositeParams{
		Workers: b.Config.Workers,
		Log:     b.Log,
	})
	if err != nil {
		return err
	}

	return writer.WriteCanvas(name, canvas)
}

// MakeCanvasWriter - the writer matching the configured output format.
// Output can land on a different file access than the store.
func MakeCanvasWriter(cfg *Config, fs fileaccess.FileAccess, bucket string, outPath string) stitch.CanvasWriter {
	if cfg.OutputFormat == OutputFloat32 {
		return &stitch.RawCanvasWriter{FS: fs, Bucket: bucket, OutPath: outPath}
	}
	return &stitch.TIFFCanvasWriter{FS: fs, Bucket: bucket, OutPath: outPath}
}
