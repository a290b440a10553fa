// Copyright 2025 The foobardb Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package storage

import (
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/foobardb/foobardb/protocol/resp"
)

const defaultShards = 32

// ShardedMap 分片哈希表实现的 Storage
//
// key 经 xxhash 折算到固定分片 每个分片独立一把读写锁
// 锁粒度即隔离粒度 不同分片上的操作完全并行
type ShardedMap struct {
	shards []*shard
	mask   uint64
}

type shard struct {
	mut  sync.RWMutex
	data map[string]resp.Value
}

// NewShardedMap 创建 n 分片的 ShardedMap n 必须为 2 的幂
func NewShardedMap(n int) *ShardedMap {
	if n <= 0 || n&(n-1) != 0 {
		n = defaultShards
	}

	shards := make([]*shard, n)
	for i := range shards {
		shards[i] = &shard{data: make(map[string]resp.Value)}
	}
	return &ShardedMap{
		shards: shards,
		mask:   uint64(n - 1),
	}
}

func (m *ShardedMap) shardOf(key string) *shard {
	return m.shards[xxhash.Sum64String(key)&m.mask]
}

func (m *ShardedMap) Get(key string) (resp.Value, bool, error) {
	s := m.shardOf(key)
	s.mut.RLock()
	v, ok := s.data[key]
	s.mut.RUnlock()
	return v, ok, nil
}

func (m *ShardedMap) Set(key string, value resp.Value) (resp.Value, bool, error) {
	s := m.shardOf(key)
	s.mut.Lock()
	prior, ok := s.data[key]
	s.data[key] = value
	s.mut.Unlock()
	return prior, ok, nil
}

func (m *ShardedMap) Delete(key string) (resp.Value, bool, error) {
	s := m.shardOf(key)
	s.mut.Lock()
	prior, ok := s.data[key]
	if ok {
		delete(s.data, key)
	}
	s.mut.Unlock()
	return prior, ok, nil
}

func (m *ShardedMap) Clear() error {
	for _, s := range m.shards {
		s.mut.Lock()
		s.data = make(map[string]resp.Value)
		s.mut.Unlock()
	}
	return nil
}

func (m *ShardedMap) Len() int {
	var total int
	for _, s := range m.shards {
		s.mut.RLock()
		total += len(s.data)
		s.mut.RUnlock()
	}
	return total
}
