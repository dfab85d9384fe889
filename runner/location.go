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
	"strings"

	"github.com/pkg/errors"

	"github.com/imctools/mcdstitch/core/awsutil"
	"github.com/imctools/mcdstitch/core/fileaccess"
)

// Location - a store or output root, on local disk or S3
type Location struct {
	FS     fileaccess.FileAccess
	Bucket string
	Root   string
}

// ResolveLocation - "s3://bucket/prefix" becomes an S3 location,
// anything else is a local directory
func ResolveLocation(spec string) (*Location, error) {
	if !strings.HasPrefix(spec, "s3://") {
		return &Location{FS: &fileaccess.FSAccess{}, Bucket: spec, Root: ""}, nil
	}

	bucket, root := splitS3Spec(spec)
	if len(bucket) == 0 {
		return nil, errors.Errorf("invalid S3 location %v", spec)
	}

	sess, err := awsutil.GetSession()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create AWS session")
	}
	s3Api, err := awsutil.GetS3(sess)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create S3 client")
	}

	access := fileaccess.MakeS3Access(s3Api)
	return &Location{FS: &access, Bucket: bucket, Root: root}, nil
}

func splitS3Spec(spec string) (string, string) {
	trimmed := strings.TrimPrefix(spec, "s3://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], strings.TrimSuffix(parts[1], "/")
}
