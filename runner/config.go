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

// Batch execution of the convert and stitch steps over many containers.
package runner

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Output format names accepted in configs
const (
	OutputUint16  = "uint16"
	OutputFloat32 = "float32"
)

// Config - batch run settings, loadable from a JSON or YAML file. Zero
// values get sensible defaults from ApplyDefaults.
type Config struct {
	// Workers bounds parallelism, both across containers and within one
	// container's ROI decode
	Workers int `json:"workers" yaml:"workers"`

	// OutputFormat is uint16 (saturating) or float32
	OutputFormat string `json:"outputFormat" yaml:"outputFormat"`

	// ErrorLogPath is where the run-scoped rotating error log goes
	ErrorLogPath  string `json:"errorLogPath" yaml:"errorLogPath"`
	ErrorLogMaxMB int    `json:"errorLogMaxMB" yaml:"errorLogMaxMB"`

	// SentryDSN enables error reporting when set
	SentryDSN string `json:"sentryDSN" yaml:"sentryDSN"`
}

// LoadConfig - reads a config file, picking the decoder by extension:
// .json is JSON, anything else is YAML
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config %v", path)
	}

	cfg := &Config{}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse config %v", path)
	}

	cfg.ApplyDefaults()
	if cfg.OutputFormat != OutputUint16 && cfg.OutputFormat != OutputFloat32 {
		return nil, errors.Errorf("config %v: unknown output format %v", path, cfg.OutputFormat)
	}

	return cfg, nil
}

func (c *Config) ApplyDefaults() {
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if len(c.OutputFormat) == 0 {
		c.OutputFormat = OutputUint16
	}
	if len(c.ErrorLogPath) == 0 {
		c.ErrorLogPath = "mcdstitch-errors.log"
	}
	if c.ErrorLogMaxMB <= 0 {
		c.ErrorLogMaxMB = 20
	}
}
