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

package resp

import (
	"math"

	"github.com/pkg/errors"

	"github.com/foobardb/foobardb/common"
	"github.com/foobardb/foobardb/internal/bufbytes"
)

func newError(format string, args ...any) error {
	format = "resp/parser: " + format
	return errors.Errorf(format, args...)
}

var (
	ErrInvalidPrefix  = newError("invalid type prefix")
	ErrInvalidLength  = newError("invalid length")
	ErrInvalidInteger = newError("invalid integer format")
	ErrMissingCRLF    = newError("missing CRLF")
	ErrOverflow       = newError("integer overflow")
	ErrDepthExceeded  = newError("max depth exceeded")
	ErrLengthExceeded = newError("max length exceeded")
	ErrIterationLimit = newError("iteration limit exceeded")
)

const (
	// DefaultMaxDepth 数组默认最大嵌套深度
	DefaultMaxDepth = 16

	// DefaultMaxLength BulkStrings 默认长度上限
	//
	// RESP 协议上限为 512MB 部署时应按实际 value 大小收紧
	DefaultMaxLength = 4 << 20

	// DefaultMaxIterations 单次 TryParse 状态迁移次数上限
	//
	// 正常请求的迁移次数与 token 数同阶 每个 BulkStrings 参数约 4 到 6 次
	// 常规命令远不及此 参数在八百个左右以上的单条命令会触达该上限
	// 该值仅作为畸形输入的保险丝
	DefaultMaxIterations = 4096
)

type parseState uint8

const (
	// stateIdle 位于 pos 处等待一个类型前缀字节
	stateIdle parseState = iota

	// stateReadingLength 逐字节累加 "$" / "*" 的十进制长度
	stateReadingLength

	// stateReadingLine 扫描 "+" / "-" / ":" 的单行内容直至 CRLF
	stateReadingLine

	// stateReadingBulkBody 等待 BulkStrings 载荷及其结尾 CRLF
	stateReadingBulkBody
)

// frame 记录一个未闭合数组的解析进度
//
// RESP 允许数组嵌套 且 TCP 层不保证单次 Read 能拿到完整请求
// 解析可能在任意元素边界甚至元素内部中断 然后在下一次 Read 续接
// 参考【函数栈】的设计 每开启一个数组便入栈一帧
// 任何挂起点都可以由 (state, stack) 完整还原 无需递归调用栈
// 帧数受 maxDepth 约束 内存随深度线性增长
type frame struct {
	total int
	count int
	elems []Value
}

// Parser 增量式 RESP 流解析器
//
// 调用方通过 Append 追加字节 通过 TryParse 推进解析
// 每次成功的 TryParse 恰好产出一个完整的顶层 Value
// 并从缓冲区中移除其已消费的字节 后续报文的字节原样保留
//
// Parser 为纯同步状态机 由单条连接独占 不做任何加锁
type Parser struct {
	buf   *bufbytes.Bytes
	stack []*frame

	// 解析寄存器 记录当前 state 下的中间进度
	state     parseState
	pos       int
	typeChar  byte
	lenAcc    int64
	lenNeg    bool
	lenDigit  bool
	bulkStart int
	bulkLen   int

	maxDepth      int
	maxLength     int64
	maxIterations int
}

// NewParser 创建并返回 Parser 实例
//
// opts 支持 maxDepth / maxLength / maxIterations 三个键
// 零值或非法值回退到各自默认值
func NewParser(opts common.Options) *Parser {
	p := &Parser{
		buf:           bufbytes.New(common.ReadBlockSize),
		maxDepth:      DefaultMaxDepth,
		maxLength:     DefaultMaxLength,
		maxIterations: DefaultMaxIterations,
	}
	if v, err := opts.GetInt("maxDepth"); err == nil && v > 0 {
		p.maxDepth = v
	}
	if v, err := opts.GetInt64("maxLength"); err == nil && v > 0 {
		p.maxLength = v
	}
	if v, err := opts.GetInt("maxIterations"); err == nil && v > 0 {
		p.maxIterations = v
	}
	return p
}

// Append 追加来自 socket 的字节
func (p *Parser) Append(b []byte) {
	p.buf.Append(b)
}

// Buffered 返回缓冲区中尚未消费的字节数
func (p *Parser) Buffered() int {
	return p.buf.Len()
}

// TryParse 推进解析 三种结果
//
// - (value, nil): 产出一个完整顶层值 其字节已从缓冲区移除
// - (nil, nil): 数据不足 状态原样保留 等待下一次 Append
// - (nil, err): 终止错误 缓冲区与状态均被丢弃
//
// RESP 流一旦出错便丢失了帧边界 无法从流中间恢复
// 因此所有终止错误都应由连接方断开链接处理
func (p *Parser) TryParse() (*Value, error) {
	var iterations int

	for {
		iterations++
		if iterations > p.maxIterations {
			return nil, p.fail(ErrIterationLimit)
		}

		switch p.state {
		case stateIdle:
			if p.pos >= p.buf.Len() {
				return nil, nil
			}
			switch c := p.buf.At(p.pos); c {
			case '+', '-', ':':
				p.typeChar = c
				p.state = stateReadingLine
				p.pos++

			case '$', '*':
				p.typeChar = c
				p.state = stateReadingLength
				p.pos++
				p.lenAcc = 0
				p.lenNeg = false
				p.lenDigit = false

			default:
				return nil, p.fail(ErrInvalidPrefix)
			}

		case stateReadingLine:
			idx := p.findCRLF(p.pos)
			if idx < 0 {
				return nil, nil
			}
			raw := p.buf.Slice(p.pos, idx)
			end := idx + 2

			var v Value
			switch p.typeChar {
			case '+':
				v = NewSimpleString(string(raw))
			case '-':
				v = NewError(string(raw))
			case ':':
				n, err := parseInteger(raw)
				if err != nil {
					return nil, p.fail(err)
				}
				v = NewInteger(n)
			}
			if out := p.completeValue(v, end); out != nil {
				return out, nil
			}

		case stateReadingLength:
			if p.pos >= p.buf.Len() {
				return nil, nil
			}
			c := p.buf.At(p.pos)
			switch {
			case c >= '0' && c <= '9':
				d := int64(c - '0')
				if p.lenNeg {
					if p.lenAcc < (math.MinInt64+d)/10 {
						return nil, p.fail(ErrOverflow)
					}
					p.lenAcc = p.lenAcc*10 - d
				} else {
					if p.lenAcc > (math.MaxInt64-d)/10 {
						return nil, p.fail(ErrOverflow)
					}
					p.lenAcc = p.lenAcc*10 + d
				}
				p.lenDigit = true
				p.pos++

			case c == '-':
				if p.lenNeg || p.lenDigit {
					return nil, p.fail(ErrInvalidLength)
				}
				p.lenNeg = true
				p.pos++

			case c == '\r':
				if p.pos+1 >= p.buf.Len() {
					return nil, nil
				}
				if p.buf.At(p.pos+1) != '\n' {
					return nil, p.fail(ErrMissingCRLF)
				}
				if !p.lenDigit {
					return nil, p.fail(ErrInvalidLength)
				}
				if out, err := p.finishLength(p.pos + 2); err != nil {
					return nil, err
				} else if out != nil {
					return out, nil
				}

			default:
				return nil, p.fail(ErrInvalidLength)
			}

		case stateReadingBulkBody:
			tail := p.bulkStart + p.bulkLen
			if p.buf.Len() < tail+2 {
				return nil, nil
			}
			if p.buf.At(tail) != '\r' || p.buf.At(tail+1) != '\n' {
				return nil, p.fail(ErrMissingCRLF)
			}
			// 缓冲区随后会被压缩 载荷必须拷贝
			payload := append([]byte(nil), p.buf.Slice(p.bulkStart, tail)...)
			if out := p.completeValue(NewBulkString(payload), tail+2); out != nil {
				return out, nil
			}
		}
	}
}

// finishLength 长度行读取完毕 按 typeChar 解释 lenAcc
//
// 返回非 nil Value 表示产出了顶层值 返回 (nil, nil) 表示继续推进
func (p *Parser) finishLength(end int) (*Value, error) {
	n := p.lenAcc

	switch p.typeChar {
	case '$':
		switch {
		case n == -1:
			return p.completeValue(NullValue, end), nil
		case n < -1:
			return nil, p.fail(ErrInvalidLength)
		case n > p.maxLength:
			// 在分配载荷之前就拒绝 避免恶意长度打爆内存
			return nil, p.fail(ErrLengthExceeded)
		}
		p.state = stateReadingBulkBody
		p.bulkStart = end
		p.bulkLen = int(n)
		return nil, nil

	default: // '*'
		switch {
		case n == -1:
			return p.completeValue(NewNullArray(), end), nil
		case n < -1:
			return nil, p.fail(ErrInvalidLength)
		case n == 0:
			return p.completeValue(NewArray(nil), end), nil
		}
		if len(p.stack) >= p.maxDepth {
			return nil, p.fail(ErrDepthExceeded)
		}
		capHint := int(n)
		if capHint > 64 {
			capHint = 64
		}
		p.stack = append(p.stack, &frame{
			total: int(n),
			elems: make([]Value, 0, capHint),
		})
		p.state = stateIdle
		p.pos = end
		return nil, nil
	}
}

// completeValue 处理一个解析完成的值
//
// 栈非空时并入栈顶数组帧 数组收满则闭合该帧
// 并把得到的数组继续向外层帧传递 直至栈空产出顶层值
// 顶层产出时丢弃缓冲区已消费前缀 寄存器复位为扫描态
func (p *Parser) completeValue(v Value, end int) *Value {
	for {
		if len(p.stack) == 0 {
			p.buf.Discard(end)
			p.resetRegisters()
			out := v
			return &out
		}

		f := p.stack[len(p.stack)-1]
		f.elems = append(f.elems, v)
		f.count++
		if f.count < f.total {
			p.state = stateIdle
			p.pos = end
			return nil
		}

		p.stack = p.stack[:len(p.stack)-1]
		v = NewArray(f.elems)
	}
}

func (p *Parser) findCRLF(from int) int {
	b := p.buf.Bytes()
	for i := from; i+1 < len(b); i++ {
		if b[i] == '\r' && b[i+1] == '\n' {
			return i
		}
	}
	return -1
}

func (p *Parser) resetRegisters() {
	p.state = stateIdle
	p.pos = 0
	p.typeChar = 0
	p.lenAcc = 0
	p.lenNeg = false
	p.lenDigit = false
	p.bulkStart = 0
	p.bulkLen = 0
}

// fail 终止本条流的解析 丢弃缓冲与全部挂起状态
func (p *Parser) fail(err error) error {
	p.buf.Reset()
	p.stack = p.stack[:0]
	p.resetRegisters()
	return err
}

// parseInteger 解析 ":" 后的带符号十进制 要求在 int64 范围内
func parseInteger(b []byte) (int64, error) {
	if len(b) == 0 {
		return 0, ErrInvalidInteger
	}

	var negative bool
	if b[0] == '-' {
		negative = true
		b = b[1:]
		if len(b) == 0 {
			return 0, ErrInvalidInteger
		}
	}

	var acc int64
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, ErrInvalidInteger
		}
		d := int64(c - '0')
		if negative {
			if acc < (math.MinInt64+d)/10 {
				return 0, ErrOverflow
			}
			acc = acc*10 - d
		} else {
			if acc > (math.MaxInt64-d)/10 {
				return 0, ErrOverflow
			}
			acc = acc*10 + d
		}
	}
	return acc, nil
}
