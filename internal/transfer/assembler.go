// =============================================================================
// 文件: internal/transfer/assembler.go
// 描述: 文件重组 - 按交付顺序追加段并做字节精确校验
// =============================================================================
package transfer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// ErrIncomplete 终结时写入字节数与声明大小不符
var ErrIncomplete = fmt.Errorf("重组不完整: 写入字节数与声明大小不符")

// Assembler 重组器
// 接收端保证交付已经有序，这里只做严格顺序追加和完整性核对。
type Assembler struct {
	w        io.Writer
	declared int64
	written  int64
	segments uint64
}

// NewAssembler 创建重组器 (declared 为握手声明的文件大小)
func NewAssembler(w io.Writer, declared int64) *Assembler {
	return &Assembler{w: w, declared: declared}
}

// Append 按交付顺序追加一段载荷
func (a *Assembler) Append(payload []byte) error {
	n, err := a.w.Write(payload)
	a.written += int64(n)
	if err != nil {
		return errors.Wrap(err, "写入目标失败")
	}
	if n != len(payload) {
		return errors.Errorf("短写: %d < %d", n, len(payload))
	}
	a.segments++
	return nil
}

// Written 已写入字节数
func (a *Assembler) Written() int64 {
	return a.written
}

// Segments 已追加段数
func (a *Assembler) Segments() uint64 {
	return a.segments
}

// Finalize 终结重组
// 只有写入字节数与声明大小完全一致才算成功，部分交付不得冒充完成
func (a *Assembler) Finalize() error {
	if a.written != a.declared {
		return errors.Wrapf(ErrIncomplete, "got %d, want %d", a.written, a.declared)
	}
	return nil
}

// ResolvePath 解析目标路径，已存在同名文件时生成 base(n).ext
// 只取 name 的基名，拒绝携带路径的文件名穿越到 dir 之外
func ResolvePath(dir, name string) string {
	name = filepath.Base(name)
	candidate := filepath.Join(dir, name)
	if _, err := os.Stat(candidate); os.IsNotExist(err) {
		return candidate
	}

	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for i := 0; ; i++ {
		candidate = filepath.Join(dir, fmt.Sprintf("%s(%d)%s", base, i, ext))
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}

// ThroughputMbps 计算吞吐量 (Mbps)
func ThroughputMbps(seconds float64, bytes int64) float64 {
	if seconds <= 0 {
		return 0
	}
	return float64(bytes) * 8 / 1_000_000 / seconds
}
