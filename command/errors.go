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
	"fmt"

	"github.com/pkg/errors"

	"github.com/foobardb/foobardb/protocol/resp"
)

var (
	ErrEmptyCommand        = errors.New("empty command")
	ErrInvalidCommandName  = errors.New("invalid command name")
	ErrInvalidArgumentType = errors.New("invalid argument type")
	ErrNotImplemented      = errors.New("command not implemented")
)

// WrongArityError 元数不符
type WrongArityError struct {
	Command string
}

func (e *WrongArityError) Error() string {
	return fmt.Sprintf("wrong number of arguments for '%s' command", e.Command)
}

// UnknownCommandError 未识别的命令动词
type UnknownCommandError struct {
	Name string
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("unknown command '%s'", e.Name)
}

// StorageError 存储层错误
type StorageError struct {
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: %v", e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// ErrorReply 将命令层错误映射为 RESP 错误回复
//
// 文案前缀保持稳定 便于客户端按前缀匹配 其余部分不作为契约
func ErrorReply(err error) resp.Value {
	var (
		arityErr   *WrongArityError
		unknownErr *UnknownCommandError
		storageErr *StorageError
	)

	switch {
	case errors.As(err, &arityErr):
		return resp.NewError("ERR " + arityErr.Error())
	case errors.As(err, &unknownErr):
		return resp.NewError("ERR " + unknownErr.Error())
	case errors.As(err, &storageErr):
		return resp.NewError("ERR storage error")
	case errors.Is(err, ErrNotImplemented):
		return resp.NewError("ERR command not implemented")
	case errors.Is(err, ErrEmptyCommand):
		return resp.NewError("ERR empty command")
	case errors.Is(err, ErrInvalidCommandName):
		return resp.NewError("ERR invalid command name")
	case errors.Is(err, ErrInvalidArgumentType):
		return resp.NewError("ERR invalid argument type")
	default:
		return resp.NewError(fmt.Sprintf("ERR %v", err))
	}
}
