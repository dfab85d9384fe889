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
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/pkg/errors"
)

// ErrorReporter - forwards per-item failures to an external service.
// A batch without a DSN gets the null reporter.
type ErrorReporter interface {
	Capture(err error)
	Flush()
}

type nullReporter struct{}

func (nullReporter) Capture(err error) {}
func (nullReporter) Flush()            {}

type sentryReporter struct{}

func (sentryReporter) Capture(err error) {
	sentry.CaptureException(err)
}

func (sentryReporter) Flush() {
	sentry.Flush(2 * time.Second)
}

func makeErrorReporter(dsn string) (ErrorReporter, error) {
	if len(dsn) == 0 {
		return nullReporter{}, nil
	}

	err := sentry.Init(sentry.ClientOptions{Dsn: dsn})
	if err != nil {
		return nil, errors.Wrap(err, "failed to init error reporting")
	}
	return sentryReporter{}, nil
}
