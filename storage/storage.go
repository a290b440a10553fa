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
	"github.com/foobardb/foobardb/confengine"
	"github.com/foobardb/foobardb/protocol/resp"
)

// Storage key -> RespValue 的映射 由所有连接共享
//
// 实现必须支持并发读写 单 key 操作原子 不承诺任何跨 key 的
// 快照语义 返回的 prior 为本次操作覆盖/删除前的旧值
type Storage interface {
	Get(key string) (resp.Value, bool, error)
	Set(key string, value resp.Value) (resp.Value, bool, error)
	Delete(key string) (resp.Value, bool, error)
	Clear() error
	Len() int
}

type Config struct {
	// Shards 分片数 要求为 2 的幂
	Shards int `config:"shards"`
}

func (c Config) GetShards() int {
	if c.Shards <= 0 || c.Shards&(c.Shards-1) != 0 {
		return defaultShards
	}
	return c.Shards
}

// New 根据配置创建存储实例
func New(conf *confengine.Config) (Storage, error) {
	var config Config
	if err := conf.UnpackChild("storage", &config); err != nil {
		return nil, err
	}
	return NewShardedMap(config.GetShards()), nil
}
