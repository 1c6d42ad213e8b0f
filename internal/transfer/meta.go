// =============================================================================
// 文件: internal/transfer/meta.go
// 描述: 传输元数据 - SYN 载荷携带的窗口大小、文件大小与文件名
// =============================================================================
package transfer

import (
	"encoding/binary"
	"fmt"
	"unicode/utf8"
)

// 元数据编码: Window(2) + Size(8) + Name(变长 UTF-8)
const (
	metaFixedSize = 10

	// MaxNameLen 文件名长度上限，保证元数据装进一个 SYN 载荷
	MaxNameLen = 255
)

// 错误定义
var (
	ErrBadMetadata = fmt.Errorf("元数据无效")
)

// Metadata 传输元数据
type Metadata struct {
	Window uint16 // 客户端要求的窗口大小
	Size   uint64 // 文件总字节数
	Name   string // 文件基名
}

// Encode 编码元数据
func (m *Metadata) Encode() ([]byte, error) {
	if m.Name == "" || len(m.Name) > MaxNameLen || !utf8.ValidString(m.Name) {
		return nil, fmt.Errorf("%w: 文件名 %q", ErrBadMetadata, m.Name)
	}
	if m.Window == 0 {
		return nil, fmt.Errorf("%w: 窗口大小为 0", ErrBadMetadata)
	}

	buf := make([]byte, metaFixedSize+len(m.Name))
	binary.BigEndian.PutUint16(buf[0:2], m.Window)
	binary.BigEndian.PutUint64(buf[2:10], m.Size)
	copy(buf[metaFixedSize:], m.Name)
	return buf, nil
}

// DecodeMetadata 解码元数据
func DecodeMetadata(data []byte) (*Metadata, error) {
	if len(data) < metaFixedSize+1 {
		return nil, fmt.Errorf("%w: 数据太短 %d", ErrBadMetadata, len(data))
	}
	if len(data) > metaFixedSize+MaxNameLen {
		return nil, fmt.Errorf("%w: 文件名过长", ErrBadMetadata)
	}

	m := &Metadata{
		Window: binary.BigEndian.Uint16(data[0:2]),
		Size:   binary.BigEndian.Uint64(data[2:10]),
		Name:   string(data[metaFixedSize:]),
	}
	if m.Window == 0 || !utf8.ValidString(m.Name) {
		return nil, fmt.Errorf("%w: 字段非法", ErrBadMetadata)
	}
	return m, nil
}
