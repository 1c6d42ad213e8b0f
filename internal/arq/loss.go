// =============================================================================
// 文件: internal/arq/loss.go
// 描述: Go-Back-N ARQ - 确定性丢包注入钩子
// =============================================================================
package arq

import (
	"sync/atomic"

	"github.com/mrcgq/drtp/internal/protocol"
)

// DropFilter 丢包过滤器
// 放置在数据报接收与解码验证之间，可整体替换或禁用而不触碰 ARQ 逻辑。
// 返回 true 时该数据报被静默丢弃，效果与真实信道丢包无法区分。
type DropFilter interface {
	ShouldDrop(raw []byte) bool
}

// NopFilter 不丢任何包
type NopFilter struct{}

func (NopFilter) ShouldDrop([]byte) bool { return false }

// OrdinalDropFilter 按序列号一次性丢包
// 只命中第一个匹配的数据报；同序列号的重传副本放行。
// 否则协议会被无限重丢卡死，也无法验证重传路径。
type OrdinalDropFilter struct {
	target  uint32
	dropped int32
}

// NewOrdinalDropFilter 创建一次性丢包过滤器 (target 为 0 表示禁用)
func NewOrdinalDropFilter(target uint32) *OrdinalDropFilter {
	return &OrdinalDropFilter{target: target}
}

// ShouldDrop 判定是否丢弃；命中通过 CAS 保证恰好一次
func (f *OrdinalDropFilter) ShouldDrop(raw []byte) bool {
	if f == nil || f.target == 0 {
		return false
	}

	seq, ok := protocol.PeekSeq(raw)
	if !ok || seq != f.target {
		return false
	}

	return atomic.CompareAndSwapInt32(&f.dropped, 0, 1)
}

// Dropped 是否已经命中过
func (f *OrdinalDropFilter) Dropped() bool {
	return atomic.LoadInt32(&f.dropped) != 0
}
