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
	"sync"
	"testing"
)

func TestMemory_RoundTripAndRemove(t *testing.T) {
	m := NewMemory()
	if _, ok, err := m.Get("k"); ok || err != nil {
		t.Fatalf("empty Get = ok %v err %v", ok, err)
	}
	if err := m.Set("k", `{"a":1}`); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, ok, err := m.Get("k")
	if err != nil || !ok || v != `{"a":1}` {
		t.Fatalf("Get = %q %v %v", v, ok, err)
	}
	if err := m.Remove("k"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := m.Remove("k"); err != nil {
		t.Fatalf("second Remove: %v", err)
	}
	if _, ok, _ := m.Get("k"); ok {
		t.Fatalf("key survived Remove")
	}
}

func TestMemory_ConcurrentWriters(t *testing.T) {
	m := NewMemory()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = m.Set(fmt.Sprintf("k%d", i), "v")
			_, _, _ = m.Get("k0")
		}(i)
	}
	wg.Wait()
	if n := len(m.Keys()); n != 16 {
		t.Fatalf("expected 16 keys, got %d", n)
	}
}

func TestOpenBackend_Kinds(t *testing.T) {
	dir := t.TempDir()
	for _, kind := range []string{"memory", "FILE", "", "sqlite"} {
		b, err := OpenBackend(kind, dir, 3)
		if err != nil {
			t.Fatalf("OpenBackend(%q): %v", kind, err)
		}
		if err := b.Set("deck", `{"slides":[]}`); err != nil {
			t.Fatalf("%q Set: %v", kind, err)
		}
		if v, ok, err := b.Get("deck"); err != nil || !ok || v != `{"slides":[]}` {
			t.Fatalf("%q Get = %q %v %v", kind, v, ok, err)
		}
		if err := b.Close(); err != nil {
			t.Fatalf("%q Close: %v", kind, err)
		}
	}
	if _, err := OpenBackend("redis", dir, 0); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}
