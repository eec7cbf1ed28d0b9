/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package dispatch

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
)

var levelToTag = map[log.Level]string{
	log.DebugLevel: "DEBUG",
	log.InfoLevel:  "INFO",
	log.WarnLevel:  "WARN",
	log.ErrorLevel: "ERR",
	log.FatalLevel: "FATAL",
}

// statusFormatter renders every log line as
// '[2006-01-02 15:04:05 UTC] [TAG] message'. The tag comes from the log
// level unless a 'tag' field overrides it (ACTION, CMD-ERR).
type statusFormatter struct{}

// Format implements logrus.Formatter
func (f *statusFormatter) Format(e *log.Entry) ([]byte, error) {
	tag, ok := levelToTag[e.Level]
	if !ok {
		tag = "INFO"
	}
	if v, ok := e.Data["tag"]; ok {
		tag = fmt.Sprintf("%v", v)
	}
	ts := e.Time.UTC().Format("2006-01-02 15:04:05")
	return []byte(fmt.Sprintf("[%s UTC] [%s] %s\n", ts, tag, e.Message)), nil
}

// SetupLogging points logrus at console plus the append-only status log
// file, with identical lines on both. A file that can't be opened is not
// fatal, the dispatcher keeps logging to console only. Returned closer
// flushes the file sink.
func SetupLogging(logPath string, verbose bool) func() {
	log.SetFormatter(&statusFormatter{})
	log.SetLevel(log.InfoLevel)
	if verbose {
		log.SetLevel(log.DebugLevel)
	}
	closer := func() {}
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		log.Warnf("status log dir unavailable, console only: %v", err)
		return closer
	}
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Warnf("status log file unavailable, console only: %v", err)
		return closer
	}
	log.SetOutput(io.MultiWriter(os.Stdout, f))
	return func() {
		log.SetOutput(os.Stdout)
		if err := f.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "closing status log: %v\n", err)
		}
	}
}
