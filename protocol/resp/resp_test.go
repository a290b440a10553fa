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
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/foobardb/foobardb/common"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name  string
		value Value
		want  string
	}{
		{
			name:  "SimpleStrings",
			value: NewSimpleString("OK"),
			want:  "+OK\r\n",
		},
		{
			name:  "Errors",
			value: NewError("ERR unknown command"),
			want:  "-ERR unknown command\r\n",
		},
		{
			name:  "Integers positive",
			value: NewInteger(1000),
			want:  ":1000\r\n",
		},
		{
			name:  "Integers negative",
			value: NewInteger(-42),
			want:  ":-42\r\n",
		},
		{
			name:  "BulkStrings",
			value: NewBulkString([]byte("foobar")),
			want:  "$6\r\nfoobar\r\n",
		},
		{
			name:  "BulkStrings empty",
			value: NewBulkString(nil),
			want:  "$0\r\n\r\n",
		},
		{
			name:  "Null",
			value: NullValue,
			want:  "$-1\r\n",
		},
		{
			name:  "Array empty",
			value: NewArray(nil),
			want:  "*0\r\n",
		},
		{
			name:  "Array null",
			value: NewNullArray(),
			want:  "*-1\r\n",
		},
		{
			name: "Array nested",
			value: NewArray([]Value{
				NewInteger(1),
				NewArray([]Value{NewSimpleString("a"), NullValue}),
				NewBulkString([]byte("tail")),
			}),
			want: "*3\r\n:1\r\n*2\r\n+a\r\n$-1\r\n$4\r\ntail\r\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, string(tt.value.Encode()))
		})
	}
}

// TestEncodeDecodeRoundTrip 全变体编码再解码 必须得到恒等值
func TestEncodeDecodeRoundTrip(t *testing.T) {
	values := []Value{
		NewSimpleString("OK"),
		NewSimpleString(""),
		NewError("ERR boom"),
		NewInteger(0),
		NewInteger(9223372036854775807),
		NewInteger(-9223372036854775808),
		NewBulkString([]byte("value")),
		NewBulkString(nil),
		NewBulkString([]byte{0x00, 0x01, 0xFF}),
		NullValue,
		NewArray(nil),
		NewNullArray(),
		NewArray([]Value{
			NewInteger(1),
			NullValue,
			NewArray([]Value{NewBulkString([]byte("x")), NewNullArray()}),
		}),
	}

	for _, v := range values {
		p := NewParser(common.NewOptions())
		p.Append(v.Encode())
		got, err := p.TryParse()
		assert.NoError(t, err)
		assert.NotNil(t, got)
		assert.Equal(t, v, *got)
		assert.Equal(t, 0, p.Buffered())
	}
}

func TestAppendReuse(t *testing.T) {
	buf := make([]byte, 0, 64)
	buf = NewSimpleString("OK").Append(buf)
	buf = NewInteger(7).Append(buf)
	assert.Equal(t, "+OK\r\n:7\r\n", string(buf))
}
