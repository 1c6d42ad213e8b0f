// =============================================================================
// 文件: internal/transfer/chunker.go
// 描述: 文件分块 - 把源字节流切成定长段 (单遍、不可重启)
// =============================================================================
package transfer

import (
	"io"

	"github.com/pkg/errors"
)

// Disassembler 分块器
// 顺序读取源一次，产出不超过 mss 字节的段，最后一段可以更短。
type Disassembler struct {
	r    io.Reader
	mss  int
	size int64 // 声明的总字节数
	read int64
	done bool
}

// NewDisassembler 创建分块器
func NewDisassembler(r io.Reader, size int64, mss int) *Disassembler {
	return &Disassembler{r: r, mss: mss, size: size}
}

// Next 返回下一段；源耗尽时返回 io.EOF
// 每段都是独立的拷贝，可以安全地保存在发送窗口里等待重传
func (d *Disassembler) Next() ([]byte, error) {
	if d.done {
		return nil, io.EOF
	}

	buf := make([]byte, d.mss)
	n, err := io.ReadFull(d.r, buf)
	switch {
	case err == io.EOF:
		d.done = true
		return nil, io.EOF
	case err == io.ErrUnexpectedEOF:
		// 最后一段不足 mss
		d.done = true
	case err != nil:
		d.done = true
		return nil, errors.Wrap(err, "读取源字节流失败")
	}

	d.read += int64(n)
	return buf[:n], nil
}

// BytesRead 已读取的字节数
func (d *Disassembler) BytesRead() int64 {
	return d.read
}

// SegmentCount 按声明大小计算的总段数
func (d *Disassembler) SegmentCount() uint32 {
	if d.size <= 0 {
		return 0
	}
	return uint32((d.size + int64(d.mss) - 1) / int64(d.mss))
}
