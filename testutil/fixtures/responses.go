// =============================================================================
// 📦 测试数据工厂 - 响应测试数据
// =============================================================================
// 提供预定义的响应与响应体流，用于测试
// =============================================================================
package fixtures

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/BaSui01/httplistener/httpmsg"
)

// =============================================================================
// 🎯 Response 工厂
// =============================================================================

// TextResponse 返回带 Content-Length 的纯文本响应
func TextResponse(status int, body string) *httpmsg.Response {
	return httpmsg.NewResponseBuilder().
		Status(status).
		Header(httpmsg.HeaderContentType, "text/plain").
		Entity(httpmsg.NewByteArrayEntity([]byte(body))).
		Build()
}

// StreamingResponse 返回长度未知的流式响应，以分块编码发送
func StreamingResponse(stream io.Reader) *httpmsg.Response {
	return httpmsg.NewResponseBuilder().
		Status(http.StatusOK).
		Entity(httpmsg.NewInputStreamEntity(stream)).
		Build()
}

// Body 返回 n 字节的可预测内容
func Body(n int) []byte {
	const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	return bytes.Repeat([]byte(alphabet), n/len(alphabet)+1)[:n]
}

// =============================================================================
// 🌊 流工厂
// =============================================================================

// ClosingReader 记录 Close 调用次数的读取器
type ClosingReader struct {
	io.Reader
	closes atomic.Int32
}

// NewClosingReader 包装字符串内容
func NewClosingReader(content string) *ClosingReader {
	return &ClosingReader{Reader: strings.NewReader(content)}
}

// Close 实现 io.Closer
func (r *ClosingReader) Close() error {
	r.closes.Add(1)
	return nil
}

// Closes 返回 Close 被调用的次数
func (r *ClosingReader) Closes() int {
	return int(r.closes.Load())
}
