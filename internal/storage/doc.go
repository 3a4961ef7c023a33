/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package storage implements the key/text persistence adapters behind the
// document store.
//
// Three backends are provided: Memory for tests and throwaway sessions, File
// which keeps one <key>.json per document with transactional writes and
// timestamped backups, and SQLite which keeps the current text in a kv table at
// <dir>/goslides.sqlite together with a pruned archive of earlier revisions.
// All of them report a missing key as ok=false rather than an error.
package storage
