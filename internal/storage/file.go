/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	applog "goslides/internal/log"
)

const (
	BackupsDirName = "backups"
	// DefaultKeepBackups bounds the number of backups kept per key.
	DefaultKeepBackups = 10

	backupStamp = "20060102-150405.000000"
)

// ErrCorrupt is returned by File.Get when the main file holds invalid JSON and
// no valid backup exists.
var ErrCorrupt = errors.New("stored document is corrupt and no valid backup exists")

// File stores each key as <dir>/<key>.json. Writes go through a temp file in
// the same directory followed by a rename; the previous content is copied to
// backups/<key>.json.<stamp>.bak first.
type File struct {
	dir  string
	keep int
	now  func() time.Time
	mu   sync.Mutex
	log  *slog.Logger
}

// NewFile prepares dir (and its backups folder). keep <= 0 selects
// DefaultKeepBackups.
func NewFile(dir string, keep int) (*File, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("storage dir is required")
	}
	if err := os.MkdirAll(filepath.Join(dir, BackupsDirName), 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	if keep <= 0 {
		keep = DefaultKeepBackups
	}
	return &File{dir: dir, keep: keep, now: time.Now, log: applog.WithComponent("storage").With(slog.String("backend", "file"))}, nil
}

// Dir returns the root directory.
func (f *File) Dir() string { return f.dir }

// Path returns the main file for key.
func (f *File) Path(key string) string {
	return filepath.Join(f.dir, fileName(key))
}

// fileName maps a key onto a safe file name: anything outside [A-Za-z0-9._-]
// becomes '_' and leading dots are replaced so keys never hide or escape.
func fileName(key string) string {
	b := []byte(key)
	for i, c := range b {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		case c == '.' && i > 0:
		default:
			b[i] = '_'
		}
	}
	if len(b) == 0 {
		b = []byte("_")
	}
	return string(b) + ".json"
}

func (f *File) Get(key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	path := f.Path(key)
	data, err := os.ReadFile(path)
	switch {
	case err == nil && json.Valid(data):
		return string(data), true, nil
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		return "", false, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	corrupt := err == nil
	if b, name, ok := f.latestValidBackupLocked(key); ok {
		f.log.Warn("restored from backup", slog.String("key", key), slog.String("backup", name), slog.Bool("corrupt", corrupt))
		return string(b), true, nil
	}
	if corrupt {
		return "", false, ErrCorrupt
	}
	return "", false, nil
}

func (f *File) Set(key, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	path := f.Path(key)
	bdir := filepath.Join(f.dir, BackupsDirName)
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		return fmt.Errorf("ensure backups dir: %w", err)
	}
	if _, statErr := os.Stat(path); statErr == nil {
		bname := fmt.Sprintf("%s.%s.bak", filepath.Base(path), f.now().Format(backupStamp))
		if err := copyFile(path, filepath.Join(bdir, bname)); err != nil {
			return fmt.Errorf("backup current document: %w", err)
		}
		f.pruneBackupsLocked(key)
	}

	temp := filepath.Join(f.dir, fmt.Sprintf(".%s.tmp-%d-%d", filepath.Base(path), os.Getpid(), rand.Int()))
	if err := writeFileSync(temp, []byte(text)); err != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("write temp document: %w", err)
	}
	// Windows refuses to rename over an existing file.
	if _, err := os.Stat(path); err == nil {
		_ = os.Remove(path)
	}
	if err := os.Rename(temp, path); err != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("replace document: %w", err)
	}
	return nil
}

// Remove deletes the main file and every backup of key.
func (f *File) Remove(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var errs []error
	if err := os.Remove(f.Path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		errs = append(errs, err)
	}
	for _, p := range f.backupsLocked(key) {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Backups lists the backup files of key, oldest first.
func (f *File) Backups(key string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.backupsLocked(key)
}

func (f *File) Close() error { return nil }

func (f *File) backupsLocked(key string) []string {
	bdir := filepath.Join(f.dir, BackupsDirName)
	ents, err := os.ReadDir(bdir)
	if err != nil {
		return nil
	}
	prefix := fileName(key) + "."
	var out []string
	for _, e := range ents {
		name := e.Name()
		if !e.IsDir() && len(name) == len(prefix)+len(backupStamp)+len(".bak") &&
			strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ".bak") {
			out = append(out, filepath.Join(bdir, name))
		}
	}
	sort.Strings(out) // the stamp sorts lexicographically
	return out
}

func (f *File) latestValidBackupLocked(key string) ([]byte, string, bool) {
	cands := f.backupsLocked(key)
	for i := len(cands) - 1; i >= 0; i-- {
		b, err := os.ReadFile(cands[i])
		if err == nil && json.Valid(b) {
			return b, filepath.Base(cands[i]), true
		}
	}
	return nil, "", false
}

func (f *File) pruneBackupsLocked(key string) {
	cands := f.backupsLocked(key)
	for len(cands) > f.keep {
		if err := os.Remove(cands[0]); err != nil {
			f.log.Warn("prune backup failed", slog.String("path", cands[0]), slog.Any("err", err))
		}
		cands = cands[1:]
	}
}

func writeFileSync(path string, data []byte) (err error) {
	fh, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := fh.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := fh.Write(data); err != nil {
		return err
	}
	return fh.Sync()
}

func copyFile(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sf.Close(); err == nil {
			err = cerr
		}
	}()
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := df.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return err
	}
	return df.Sync()
}
