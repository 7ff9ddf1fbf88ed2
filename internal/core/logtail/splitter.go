package logtail

import "bytes"

// LineHandler 接收一行完整日志 (不含换行符)
type LineHandler func(line string)

// Splitter 在原始字节上切分行，未以换行结尾的尾部留作下次拼接
// 多字节字符跨块时只会在整行到齐后才被解码
type Splitter struct {
	buf  []byte
	emit LineHandler
}

// NewSplitter 创建行切分器
func NewSplitter(emit LineHandler) *Splitter {
	return &Splitter{emit: emit}
}

// Write 追加一块数据并输出其中所有完整行，实现 io.Writer
func (s *Splitter) Write(chunk []byte) (int, error) {
	s.buf = append(s.buf, chunk...)

	offset := 0
	for {
		idx := bytes.IndexByte(s.buf[offset:], '\n')
		if idx < 0 {
			break
		}
		line := s.buf[offset : offset+idx]
		if n := len(line); n > 0 && line[n-1] == '\r' {
			line = line[:n-1]
		}
		if len(bytes.TrimSpace(line)) > 0 && s.emit != nil {
			s.emit(string(line))
		}
		offset += idx + 1
	}

	s.buf = append(s.buf[:0], s.buf[offset:]...)
	return len(chunk), nil
}

// Pending 返回尚未遇到换行的残留字节
func (s *Splitter) Pending() []byte {
	return append([]byte(nil), s.buf...)
}

// Reset 丢弃残留的半行
func (s *Splitter) Reset() {
	s.buf = s.buf[:0]
}
