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

package server

import (
	"bufio"
	"io"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foobardb/foobardb/confengine"
	"github.com/foobardb/foobardb/storage"
)

const testConfig = `
server:
  host: 127.0.0.1
  port: 0
parser:
  maxDepth: 16
  maxLength: 1048576
`

func startTestServer(t *testing.T) *Server {
	t.Helper()

	conf, err := confengine.LoadContent([]byte(testConfig))
	require.NoError(t, err)

	svr, err := New(conf, storage.NewShardedMap(16))
	require.NoError(t, err)
	require.NoError(t, svr.Start())
	t.Cleanup(func() {
		_ = svr.Stop()
	})
	return svr
}

func dialTestServer(t *testing.T, svr *Server) (net.Conn, *bufio.Reader) {
	t.Helper()

	conn, err := net.Dial("tcp", svr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn, bufio.NewReader(conn)
}

func readLine(t *testing.T, rd *bufio.Reader) string {
	t.Helper()

	line, err := rd.ReadString('\n')
	require.NoError(t, err)
	return line
}

// readBulk 读取一个 BulkStrings 回复 包括 "$-1\r\n"
func readBulk(t *testing.T, rd *bufio.Reader) string {
	t.Helper()

	header := readLine(t, rd)
	require.True(t, strings.HasPrefix(header, "$"))
	if header == "$-1\r\n" {
		return header
	}

	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(header, "$"), "\r\n"))
	require.NoError(t, err)

	payload := make([]byte, n+2)
	_, err = io.ReadFull(rd, payload)
	require.NoError(t, err)
	return header + string(payload)
}

func TestSetThenGet(t *testing.T) {
	svr := startTestServer(t)
	conn, rd := dialTestServer(t, svr)

	conn.Write([]byte("*3\r\n$3\r\nSET\r\n$3\r\nkey\r\n$5\r\nvalue\r\n"))
	assert.Equal(t, "+OK\r\n", readLine(t, rd))

	conn.Write([]byte("*2\r\n$3\r\nGET\r\n$3\r\nkey\r\n"))
	assert.Equal(t, "$5\r\nvalue\r\n", readBulk(t, rd))
}

func TestGetMissing(t *testing.T) {
	svr := startTestServer(t)
	conn, rd := dialTestServer(t, svr)

	conn.Write([]byte("*2\r\n$3\r\nGET\r\n$7\r\nmissing\r\n"))
	assert.Equal(t, "$-1\r\n", readBulk(t, rd))
}

func TestPing(t *testing.T) {
	svr := startTestServer(t)
	conn, rd := dialTestServer(t, svr)

	conn.Write([]byte("*1\r\n$4\r\nPING\r\n"))
	assert.Equal(t, "+PONG\r\n", readLine(t, rd))
}

func TestInfo(t *testing.T) {
	svr := startTestServer(t)
	conn, rd := dialTestServer(t, svr)

	conn.Write([]byte("*1\r\n$4\r\nINFO\r\n"))
	assert.Contains(t, readBulk(t, rd), "mode:standalone")
}

// TestUnknownCommand 未知命令回复错误 连接保持可用
func TestUnknownCommand(t *testing.T) {
	svr := startTestServer(t)
	conn, rd := dialTestServer(t, svr)

	conn.Write([]byte("*1\r\n$7\r\nUNKNOWN\r\n"))
	assert.True(t, strings.HasPrefix(readLine(t, rd), "-ERR"))

	conn.Write([]byte("*1\r\n$4\r\nPING\r\n"))
	assert.Equal(t, "+PONG\r\n", readLine(t, rd))
}

// TestWrongArity 元数错误同样是请求级错误 不断开连接
func TestWrongArity(t *testing.T) {
	svr := startTestServer(t)
	conn, rd := dialTestServer(t, svr)

	conn.Write([]byte("*1\r\n$3\r\nGET\r\n"))
	reply := readLine(t, rd)
	assert.True(t, strings.HasPrefix(reply, "-ERR wrong number of arguments"))

	conn.Write([]byte("*2\r\n$4\r\nECHO\r\n$2\r\nhi\r\n"))
	assert.Equal(t, "$2\r\nhi\r\n", readBulk(t, rd))
}

// TestStreamedBytes SET 请求逐字节投递 语义与整体投递一致
func TestStreamedBytes(t *testing.T) {
	svr := startTestServer(t)
	conn, rd := dialTestServer(t, svr)

	request := "*3\r\n$3\r\nSET\r\n$3\r\nkey\r\n$5\r\nvalue\r\n"
	for i := 0; i < len(request); i++ {
		_, err := conn.Write([]byte{request[i]})
		require.NoError(t, err)
		time.Sleep(time.Millisecond)
	}
	assert.Equal(t, "+OK\r\n", readLine(t, rd))

	conn.Write([]byte("*2\r\n$3\r\nGET\r\n$3\r\nkey\r\n"))
	assert.Equal(t, "$5\r\nvalue\r\n", readBulk(t, rd))
}

// TestPipeline 单次写出多条命令 回复顺序与请求顺序一致
func TestPipeline(t *testing.T) {
	svr := startTestServer(t)
	conn, rd := dialTestServer(t, svr)

	var sb strings.Builder
	sb.WriteString("*3\r\n$3\r\nSET\r\n$1\r\na\r\n$1\r\n1\r\n")
	sb.WriteString("*3\r\n$3\r\nSET\r\n$1\r\nb\r\n$1\r\n2\r\n")
	sb.WriteString("*2\r\n$3\r\nGET\r\n$1\r\na\r\n")
	sb.WriteString("*1\r\n$4\r\nPING\r\n")
	sb.WriteString("*2\r\n$3\r\nGET\r\n$1\r\nb\r\n")
	conn.Write([]byte(sb.String()))

	assert.Equal(t, "+OK\r\n", readLine(t, rd))
	assert.Equal(t, "+OK\r\n", readLine(t, rd))
	assert.Equal(t, "$1\r\n1\r\n", readBulk(t, rd))
	assert.Equal(t, "+PONG\r\n", readLine(t, rd))
	assert.Equal(t, "$1\r\n2\r\n", readBulk(t, rd))
}

// TestMalformedStream 解析错误后服务端断开连接
func TestMalformedStream(t *testing.T) {
	svr := startTestServer(t)
	conn, rd := dialTestServer(t, svr)

	conn.Write([]byte("bogus\r\n"))

	_, err := rd.ReadString('\n')
	assert.Error(t, err)
}

func TestConcurrentClients(t *testing.T) {
	svr := startTestServer(t)

	done := make(chan struct{})
	for w := 0; w < 8; w++ {
		go func() {
			defer func() { done <- struct{}{} }()
			conn, err := net.Dial("tcp", svr.Addr())
			if err != nil {
				t.Errorf("dial failed: %v", err)
				return
			}
			defer conn.Close()
			rd := bufio.NewReader(conn)
			for i := 0; i < 50; i++ {
				conn.Write([]byte("*1\r\n$4\r\nPING\r\n"))
				line, err := rd.ReadString('\n')
				if err != nil || line != "+PONG\r\n" {
					t.Errorf("unexpected reply: %q err=%v", line, err)
					return
				}
			}
		}()
	}
	for w := 0; w < 8; w++ {
		<-done
	}
}

// TestShutdown 关闭广播后存量连接被断开 监听端口释放
func TestShutdown(t *testing.T) {
	conf, err := confengine.LoadContent([]byte(testConfig))
	require.NoError(t, err)

	svr, err := New(conf, storage.NewShardedMap(16))
	require.NoError(t, err)
	require.NoError(t, svr.Start())

	conn, rd := dialTestServer(t, svr)
	conn.Write([]byte("*1\r\n$4\r\nPING\r\n"))
	assert.Equal(t, "+PONG\r\n", readLine(t, rd))

	require.NoError(t, svr.Stop())

	_, err = rd.ReadString('\n')
	assert.Error(t, err)

	_, err = net.Dial("tcp", svr.Addr())
	assert.Error(t, err)
}
