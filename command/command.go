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

package command

import (
	"strings"

	"github.com/foobardb/foobardb/protocol/resp"
	"github.com/foobardb/foobardb/storage"
)

// Name 命令动词 统一为大写 ASCII
type Name string

const (
	Get  Name = "GET"
	Set  Name = "SET"
	Del  Name = "DEL"
	Ping Name = "PING"
	Echo Name = "ECHO"
	Info Name = "INFO"
	Cmd  Name = "COMMAND"

	// 以下动词仅保留解析 执行时回复 NotImplemented
	LPush Name = "LPUSH"
	RPush Name = "RPUSH"
	LPop  Name = "LPOP"
	RPop  Name = "RPOP"
	SAdd  Name = "SADD"
	SRem  Name = "SREM"
	HSet  Name = "HSET"
	HGet  Name = "HGET"

	// Unknown 未识别动词 解析放行 执行时报错
	Unknown Name = "UNKNOWN"
)

// arity 命令元数判定 exact 与 min 二选一生效
type arity struct {
	exact int
	min   int
}

func (a arity) allow(n int) bool {
	if a.exact > 0 {
		return n == a.exact
	}
	return n >= a.min
}

// arityTable 各命令的元数表 计数包含动词本身
var arityTable = map[Name]arity{
	Get:   {exact: 2},
	Set:   {exact: 3},
	Del:   {min: 2},
	Ping:  {exact: 1},
	Echo:  {exact: 2},
	Info:  {exact: 1},
	Cmd:   {exact: 1},
	LPush: {min: 3},
	RPush: {min: 3},
	LPop:  {exact: 2},
	RPop:  {exact: 2},
	SAdd:  {min: 3},
	SRem:  {min: 3},
	HSet:  {exact: 4},
	HGet:  {exact: 3},
}

// Command 一条已通过元数校验的命令
//
// args 不含动词本身 各参数保持解析时的字节原样
type Command struct {
	name Name
	raw  string // 未识别动词的原始名称
	args [][]byte
}

func (c Command) Name() Name {
	return c.name
}

func (c Command) argText(i int) string {
	return string(c.args[i])
}

// FromResp 将一个 RESP 值转换为 Command
//
// 客户端命令必须是非空数组 元素为 BulkStrings 或 SimpleStrings 动词大小写不敏感
// 未识别的动词在此处放行 留到执行阶段报 UnknownCommand
// 这样元数错误与未知命令都能以 RESP 错误回复 而不是断开连接
func FromResp(v resp.Value) (Command, error) {
	if v.Type() != resp.Array || v.IsNull() {
		return Command{}, ErrInvalidCommandName
	}
	elems := v.Elems()
	if len(elems) == 0 {
		return Command{}, ErrEmptyCommand
	}

	nameText, ok := argumentText(elems[0])
	if !ok {
		return Command{}, ErrInvalidCommandName
	}
	name := Name(strings.ToUpper(nameText))

	spec, known := arityTable[name]
	if !known {
		return Command{name: Unknown, raw: nameText}, nil
	}
	if !spec.allow(len(elems)) {
		return Command{}, &WrongArityError{Command: strings.ToLower(string(name))}
	}

	args := make([][]byte, 0, len(elems)-1)
	for _, elem := range elems[1:] {
		text, ok := argumentText(elem)
		if !ok {
			return Command{}, ErrInvalidArgumentType
		}
		args = append(args, []byte(text))
	}
	return Command{name: name, args: args}, nil
}

// argumentText 提取 BulkStrings / SimpleStrings 载荷
func argumentText(v resp.Value) (string, bool) {
	switch v.Type() {
	case resp.BulkStrings, resp.SimpleStrings:
		return v.Text(), true
	default:
		return "", false
	}
}

const infoPayload = "foobardb_version:1.0.0\r\nmode:standalone"

// Exec 在共享存储上执行命令并返回 RESP 响应
//
// 所有错误都是请求级别的 由连接方序列化为 "-ERR ..." 回复
// 连接本身保持存活
func (c Command) Exec(store storage.Storage) (resp.Value, error) {
	switch c.name {
	case Get:
		v, ok, err := store.Get(c.argText(0))
		if err != nil {
			return resp.Value{}, &StorageError{Err: err}
		}
		if !ok {
			return resp.NullValue, nil
		}
		return v, nil

	case Set:
		if _, _, err := store.Set(c.argText(0), resp.NewBulkString(c.args[1])); err != nil {
			return resp.Value{}, &StorageError{Err: err}
		}
		return resp.NewSimpleString("OK"), nil

	case Del:
		for i := range c.args {
			if _, _, err := store.Delete(c.argText(i)); err != nil {
				return resp.Value{}, &StorageError{Err: err}
			}
		}
		return resp.NewSimpleString("OK"), nil

	case Ping:
		return resp.NewSimpleString("PONG"), nil

	case Echo:
		return resp.NewBulkString(c.args[0]), nil

	case Info:
		return resp.NewBulkString([]byte(infoPayload)), nil

	case Cmd:
		return resp.NewSimpleString("OK"), nil

	case Unknown:
		return resp.Value{}, &UnknownCommandError{Name: c.raw}

	default:
		return resp.Value{}, ErrNotImplemented
	}
}
