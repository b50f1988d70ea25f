/*
Copyright 2019 The Kubernetes Authors.
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

package lock

import (
	"k8s.io/apimachinery/pkg/util/sets"
	"sync"
)

// KeyMutex is a set of non-blocking per-key locks.
type KeyMutex struct {
	mux   sync.Mutex
	locks sets.String
}

func NewKeyMutex() *KeyMutex {
	return &KeyMutex{
		locks: sets.NewString(),
	}
}

// TryLockKey takes key and reports whether it was free.
func (mm *KeyMutex) TryLockKey(key string) bool {
	mm.mux.Lock()
	defer mm.mux.Unlock()
	if mm.locks.Has(key) {
		return false
	}
	mm.locks.Insert(key)
	return true
}

func (mm *KeyMutex) UnlockKey(key string) {
	mm.mux.Lock()
	defer mm.mux.Unlock()
	mm.locks.Delete(key)
}

// Held returns the keys currently locked, sorted.
func (mm *KeyMutex) Held() []string {
	mm.mux.Lock()
	defer mm.mux.Unlock()
	return mm.locks.List()
}
