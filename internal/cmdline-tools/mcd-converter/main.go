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

package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/imctools/mcdstitch/core/logger"
	"github.com/imctools/mcdstitch/runner"
)

// os.Exit skips deferred calls, so the work lives in run and main only
// turns its status into the process exit code. That way the batch always
// closes (error log flushed, queued crash reports sent) before exiting.
func main() {
	os.Exit(run())
}

func run() int {
	fmt.Println("==============================")
	fmt.Println("=       MCD converter        =")
	fmt.Println("==============================")

	var argInPath = flag.String("inpath", "", "MCD container file, or directory of containers")
	var argStore = flag.String("store", "", "Store root: local directory or s3://bucket/prefix")
	var argConfig = flag.String("config", "", "Optional config file (JSON or YAML)")
	var argWorkers = flag.Int("workers", 0, "Worker count override, 0 = one per CPU")
	var argDebug = flag.Bool("debug", false, "Verbose logging")

	flag.Parse()

	if len(*argInPath) == 0 || len(*argStore) == 0 {
		flag.Usage()
		return runner.StatusFatal
	}

	log := &logger.StdOutLogger{}
	log.SetLogLevel(logger.LogInfo)
	if *argDebug {
		log.SetLogLevel(logger.LogDebug)
	}

	cfg, err := loadConfig(*argConfig)
	if err != nil {
		log.Errorf("%v", err)
		return runner.StatusFatal
	}
	if *argWorkers > 0 {
		cfg.Workers = *argWorkers
	}

	store, err := runner.ResolveLocation(*argStore)
	if err != nil {
		log.Errorf("%v", err)
		return runner.StatusFatal
	}

	containers, err := runner.FindContainers(*argInPath)
	if err != nil {
		log.Errorf("Failed to list containers: %v", err)
		return runner.StatusFatal
	}
	if len(containers) == 0 {
		log.Errorf("No MCD containers found at %v", *argInPath)
		return runner.StatusFatal
	}

	batch, err := runner.MakeBatch(store.FS, store.Bucket, cfg, log)
	if err != nil {
		log.Errorf("%v", err)
		return runner.StatusFatal
	}
	defer batch.Close()

	summary := batch.ConvertBatch(context.Background(), containers, store.Root)
	return summary.ExitStatus()
}

func loadConfig(path string) (*runner.Config, error) {
	if len(path) == 0 {
		cfg := &runner.Config{}
		cfg.ApplyDefaults()
		return cfg, nil
	}
	return runner.LoadConfig(path)
}
