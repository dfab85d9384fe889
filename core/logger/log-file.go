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

package logger

import (
	"fmt"
	"log"

	"github.com/natefinch/lumberjack"
)

// FileLogger - Logs to a rotating log file. Used for the run-scoped
// error log in batch conversions, where diagnostic detail must not
// flood the console.
type FileLogger struct {
	logLevel LogLevel
	output   *log.Logger
	file     *lumberjack.Logger
}

// MakeFileLogger - creates a logger appending to the given path, rotating
// at maxSizeMB and keeping maxAgeDays of history.
func MakeFileLogger(path string, maxSizeMB int, maxAgeDays int) *FileLogger {
	file := &lumberjack.Logger{
		Filename: path,
		MaxSize:  maxSizeMB,
		MaxAge:   maxAgeDays,
	}
	return &FileLogger{
		output: log.New(file, "", log.LstdFlags),
		file:   file,
	}
}

func (l *FileLogger) Printf(level LogLevel, format string, a ...interface{}) {
	txt := logLevelPrefix[level] + ": " + fmt.Sprintf(format, a...)
	l.output.Println(txt)
}
func (l *FileLogger) Debugf(format string, a ...interface{}) {
	if l.logLevel <= LogDebug {
		l.Printf(LogDebug, format, a...)
	}
}
func (l *FileLogger) Infof(format string, a ...interface{}) {
	if l.logLevel <= LogInfo {
		l.Printf(LogInfo, format, a...)
	}
}
func (l *FileLogger) Errorf(format string, a ...interface{}) {
	l.Printf(LogError, format, a...)
}

func (l *FileLogger) SetLogLevel(level LogLevel) {
	l.logLevel = level
}

func (l *FileLogger) Close() error {
	return l.file.Close()
}
