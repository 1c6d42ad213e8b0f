// =============================================================================
// 文件: internal/arq/window.go
// 描述: Go-Back-N ARQ - 发送端滑动窗口
// =============================================================================
package arq

import (
	"fmt"
	"sync"

	"github.com/mrcgq/drtp/internal/protocol"
)

// SendWindow 发送窗口
// 不变量: 0 <= nextSeq-base <= size，在途段数永不超过 N。
// outstanding 按序保存 [base, nextSeq) 的段，下标 0 对应 base。
type SendWindow struct {
	base    uint32 // 最老未确认段的序列号
	nextSeq uint32 // 下一个待分配的序列号
	size    uint32 // 窗口大小 N，会话期间恒定

	outstanding []*protocol.Packet

	mu sync.RWMutex
}

// NewSendWindow 创建发送窗口
func NewSendWindow(size int, initialSeq uint32) *SendWindow {
	return &SendWindow{
		base:        initialSeq,
		nextSeq:     initialSeq,
		size:        uint32(size),
		outstanding: make([]*protocol.Packet, 0, size),
	}
}

// Full 窗口是否已满 (满时发送路径停滞，这就是隐式流控)
func (w *SendWindow) Full() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.nextSeq-w.base >= w.size
}

// Empty 是否没有在途段
func (w *SendWindow) Empty() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.outstanding) == 0
}

// InFlight 在途段数
func (w *SendWindow) InFlight() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.outstanding)
}

// Base 最老未确认序列号
func (w *SendWindow) Base() uint32 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.base
}

// NextSeq 下一个待分配序列号
func (w *SendWindow) NextSeq() uint32 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.nextSeq
}

// Add 把新组帧的段加入窗口
// 段必须携带 nextSeq，窗口满时拒绝
func (w *SendWindow) Add(pkt *protocol.Packet) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.nextSeq-w.base >= w.size {
		return ErrWindowFull
	}
	if pkt.Seq != w.nextSeq {
		return fmt.Errorf("序列号不连续: got %d, want %d", pkt.Seq, w.nextSeq)
	}

	w.outstanding = append(w.outstanding, pkt)
	w.nextSeq++
	return nil
}

// Ack 处理累积确认 k: 确认 [base, k] 的全部段
// k < base 的旧确认/重复确认被忽略 (不是错误)，base 永不回退。
// 返回 (是否推进, 推进后窗口是否已空)
func (w *SendWindow) Ack(k uint32) (advanced bool, empty bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if k < w.base || k >= w.nextSeq {
		return false, len(w.outstanding) == 0
	}

	n := k - w.base + 1
	w.outstanding = w.outstanding[n:]
	w.base = k + 1
	return true, len(w.outstanding) == 0
}

// Outstanding 按原始序列号顺序快照全部在途段
// 超时后整窗重传使用 (Go-Back-N 的定义性行为)
func (w *SendWindow) Outstanding() []*protocol.Packet {
	w.mu.RLock()
	defer w.mu.RUnlock()

	snapshot := make([]*protocol.Packet, len(w.outstanding))
	copy(snapshot, w.outstanding)
	return snapshot
}

// Seqs 在途序列号列表 (日志用)
func (w *SendWindow) Seqs() []uint32 {
	w.mu.RLock()
	defer w.mu.RUnlock()

	seqs := make([]uint32, len(w.outstanding))
	for i, pkt := range w.outstanding {
		seqs[i] = pkt.Seq
	}
	return seqs
}
