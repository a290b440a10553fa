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

package common

const (
	// App 应用程序名称
	App = "foobardb"

	// Version 应用程序版本
	Version = "v1.0.0"

	// ReadBlockSize 单次 socket Read 的块大小
	//
	// RESP 命令普遍较小 一条命令通常在几十个字节以内
	// 4K 的块在 Pipeline 场景下单次也能携带上百条命令
	ReadBlockSize = 4096

	// WriteBufferSize 每条连接写缓冲区的大小
	WriteBufferSize = 4096

	// MaxBatchSize 单个批次可容纳的最大命令数
	//
	// 批次越大 响应首字节延迟越高 内存中悬挂的执行结果也越多
	// 达到上限后立即执行并刷写 不做动态调整
	MaxBatchSize = 1024
)
