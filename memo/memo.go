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

// Package memo persists the last observed clock skew across process
// restarts. One memo file per host; running multiple dispatcher instances
// against the same file keeps it intact (writes are atomic replaces) but
// the value then reflects whichever instance wrote last, which is an
// unsupported configuration.
package memo

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
)

// Memo is the durable single-value state we keep between runs.
// Unknown keys in the file are ignored on read for forward compatibility.
type Memo struct {
	LastSkewNS int64 `json:"last_skew_ns"`
}

// Store reads and writes a Memo at a fixed path
type Store struct {
	path string
}

// NewStore returns a Store backed by the file at path
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the canonical memo file location
func (s *Store) Path() string {
	return s.path
}

// Load reads the memo from disk. It never fails: a missing or corrupt
// file yields the zero value, logged at debug level.
func (s *Store) Load() Memo {
	m := Memo{}
	data, err := os.ReadFile(s.path)
	if err != nil {
		log.Debugf("no previous memo at %s: %v", s.path, err)
		return m
	}
	if err := json.Unmarshal(data, &m); err != nil {
		log.Debugf("ignoring corrupt memo at %s: %v", s.path, err)
		return Memo{}
	}
	return m
}

// Save writes the memo to a temporary file in the same directory and
// atomically renames it over the canonical path, so a reader never
// observes a partially written memo.
func (s *Store) Save(m Memo) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshalling memo: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating memo dir %s: %w", dir, err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing temp memo %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing memo %s: %w", s.path, err)
	}
	return nil
}
