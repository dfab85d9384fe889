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

package fileaccess

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/imctools/mcdstitch/core/utils"
)

// In-memory implementation of file access for unit tests. Safe for
// concurrent use: the batch runner's workers share one store.

type MemoryAccess struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func MakeMemoryAccess() *MemoryAccess {
	return &MemoryAccess{objects: map[string][]byte{}}
}

func (m *MemoryAccess) key(bucket string, path string) string {
	return bucket + "/" + path
}

func (m *MemoryAccess) ListObjects(bucket string, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := []string{}
	for k := range m.objects {
		if strings.HasPrefix(k, m.key(bucket, prefix)) {
			result = append(result, k[len(bucket)+1:])
		}
	}
	sort.Strings(result)
	return result, nil
}

func (m *MemoryAccess) ObjectExists(bucket string, path string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.objects[m.key(bucket, path)]
	return ok, nil
}

func (m *MemoryAccess) ReadObject(bucket string, path string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.objects[m.key(bucket, path)]
	if !ok {
		return nil, fmt.Errorf("%v does not exist", m.key(bucket, path))
	}
	return data, nil
}

func (m *MemoryAccess) WriteObject(bucket string, path string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	saved := make([]byte, len(data))
	copy(saved, data)
	m.objects[m.key(bucket, path)] = saved
	return nil
}

func (m *MemoryAccess) ReadJSON(bucket string, path string, itemsPtr interface{}, emptyIfNotFound bool) error {
	fileData, err := m.ReadObject(bucket, path)
	if err != nil {
		if emptyIfNotFound && m.IsNotFoundError(err) {
			return nil
		}
		return err
	}
	return json.Unmarshal(fileData, itemsPtr)
}

func (m *MemoryAccess) WriteJSON(bucket string, path string, itemsPtr interface{}) error {
	fileData, err := json.MarshalIndent(itemsPtr, "", utils.PrettyPrintIndentForJSON)
	if err != nil {
		return err
	}
	return m.WriteObject(bucket, path, fileData)
}

func (m *MemoryAccess) DeleteObject(bucket string, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.objects[m.key(bucket, path)]; !ok {
		return fmt.Errorf("%v does not exist", m.key(bucket, path))
	}
	delete(m.objects, m.key(bucket, path))
	return nil
}

func (m *MemoryAccess) IsNotFoundError(err error) bool {
	return err != nil && strings.HasSuffix(err.Error(), "does not exist")
}
