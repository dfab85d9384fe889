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
	"errors"
	"fmt"
)

// FormatError - the container or its metadata document is malformed.
// Fatal for the whole file: nothing downstream can run without a parsed
// metadata graph.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string {
	return "invalid MCD: " + e.Reason
}

func makeFormatError(format string, a ...interface{}) *FormatError {
	return &FormatError{Reason: fmt.Sprintf(format, a...)}
}

// IsFormatError - true if err (or anything it wraps) is a FormatError
func IsFormatError(err error) bool {
	var fe *FormatError
	return errors.As(err, &fe)
}

// DataSizeMismatchError - an acquisition's declared byte range is not
// consistent with its channel/pixel geometry. Triggers the recovery
// decode; only fatal for the acquisition if that fails too.
type DataSizeMismatchError struct {
	AcquisitionID int
	DataBytes     int64
	RowBytes      int64
}

func (e *DataSizeMismatchError) Error() string {
	return fmt.Sprintf("acquisition %v: data size %v bytes is not a multiple of row size %v bytes", e.AcquisitionID, e.DataBytes, e.RowBytes)
}

// IsDataSizeMismatch - true if err (or anything it wraps) is a DataSizeMismatchError
func IsDataSizeMismatch(err error) bool {
	var de *DataSizeMismatchError
	return errors.As(err, &de)
}
