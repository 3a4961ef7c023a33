/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"fmt"
	"strings"
)

// Backend kinds accepted by OpenBackend.
const (
	KindMemory = "memory"
	KindFile   = "file"
	KindSQLite = "sqlite"
)

// Backend is a key/text adapter that owns resources.
type Backend interface {
	Get(key string) (string, bool, error)
	Set(key, text string) error
	Remove(key string) error
	Close() error
}

var (
	_ Backend = (*Memory)(nil)
	_ Backend = (*File)(nil)
	_ Backend = (*SQLite)(nil)
)

// OpenBackend returns the backend named by kind rooted at dir. keep bounds
// file backups or sqlite revisions; <= 0 uses the backend default.
func OpenBackend(kind, dir string, keep int) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case KindMemory:
		return NewMemory(), nil
	case "", KindFile:
		return NewFile(dir, keep)
	case KindSQLite:
		return OpenSQLite(dir, keep)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", kind)
	}
}
