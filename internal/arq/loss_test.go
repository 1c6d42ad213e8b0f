// =============================================================================
// 文件: internal/arq/loss_test.go
// 描述: 丢包注入钩子测试
// =============================================================================
package arq

import (
	"testing"

	"github.com/mrcgq/drtp/internal/protocol"
)

func encodeSeq(t *testing.T, seq uint32) []byte {
	t.Helper()
	raw, err := protocol.NewDataPacket(seq, []byte("payload")).Encode()
	if err != nil {
		t.Fatalf("编码失败: %v", err)
	}
	return raw
}

func TestOrdinalDropFilterOneShot(t *testing.T) {
	f := NewOrdinalDropFilter(4)

	if f.ShouldDrop(encodeSeq(t, 3)) {
		t.Error("不匹配的序列号不应该被丢弃")
	}

	// 第一次匹配: 丢弃
	if !f.ShouldDrop(encodeSeq(t, 4)) {
		t.Error("目标序列号第一次出现应该被丢弃")
	}
	if !f.Dropped() {
		t.Error("Dropped 应该为 true")
	}

	// 同序列号的重传副本: 放行，否则协议会被卡死
	if f.ShouldDrop(encodeSeq(t, 4)) {
		t.Error("重传副本不应该再被丢弃")
	}
}

func TestOrdinalDropFilterDisabled(t *testing.T) {
	f := NewOrdinalDropFilter(0)
	if f.ShouldDrop(encodeSeq(t, 1)) {
		t.Error("target=0 时过滤器应该禁用")
	}

	var nilFilter *OrdinalDropFilter
	if nilFilter.ShouldDrop(encodeSeq(t, 1)) {
		t.Error("nil 过滤器不应该丢包")
	}
}

func TestOrdinalDropFilterShortDatagram(t *testing.T) {
	f := NewOrdinalDropFilter(4)
	if f.ShouldDrop([]byte{0x00, 0x01}) {
		t.Error("过短数据报无法读出序列号，不应该被丢弃")
	}
}

func TestNopFilter(t *testing.T) {
	var f DropFilter = NopFilter{}
	if f.ShouldDrop(encodeSeq(t, 1)) {
		t.Error("NopFilter 不应该丢任何包")
	}
}
