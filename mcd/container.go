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

// Reading of Standard BioTools/Fluidigm MCD containers: one binary file
// holding raw per-pixel acquisition payloads, embedded snapshot images,
// and a trailing XML metadata document that describes all of them.
package mcd

import (
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
)

// RawContainer - an open handle to an MCD file plus its size. Owns no
// decoded state; all reads are byte-range reads driven by offsets from
// the metadata document.
type RawContainer struct {
	Path string

	file *os.File
	size int64
}

func OpenContainer(path string) (*RawContainer, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open container %v", path)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, errors.Wrapf(err, "failed to stat container %v", path)
	}

	return &RawContainer{Path: path, file: file, size: info.Size()}, nil
}

func (c *RawContainer) Size() int64 {
	return c.size
}

// ReadRange - reads [start,end) from the container. Range errors are
// reported as FormatError because offsets only ever come from the
// metadata document.
func (c *RawContainer) ReadRange(start int64, end int64) ([]byte, error) {
	if start < 0 || end < start || end > c.size {
		return nil, makeFormatError("byte range [%v,%v) outside container of %v bytes", start, end, c.size)
	}

	data := make([]byte, end-start)
	_, err := c.file.ReadAt(data, start)
	if err != nil && err != io.EOF {
		return nil, errors.Wrapf(err, "failed to read range [%v,%v)", start, end)
	}

	return data, nil
}

func (c *RawContainer) Close() error {
	if c.file == nil {
		return nil
	}
	err := c.file.Close()
	c.file = nil
	if err != nil {
		return fmt.Errorf("failed to close %v: %w", c.Path, err)
	}
	return nil
}
