// =============================================================================
// 文件: internal/arq/timer_test.go
// 描述: 重传计时器测试
// =============================================================================
package arq

import (
	"testing"
	"time"
)

func TestRetransmitTimerFires(t *testing.T) {
	rt := NewRetransmitTimer(20 * time.Millisecond)
	rt.Start()

	select {
	case <-rt.C():
		rt.Consumed()
	case <-time.After(time.Second):
		t.Fatal("计时器没有触发")
	}

	if rt.Running() {
		t.Error("消费到期事件后不应该处于运行状态")
	}
}

func TestRetransmitTimerStopDrainsExpiry(t *testing.T) {
	rt := NewRetransmitTimer(10 * time.Millisecond)
	rt.Start()

	// 等到它已经到期但未被消费
	time.Sleep(30 * time.Millisecond)
	rt.Stop()

	// 停止之后绝不能观察到过期的触发
	select {
	case <-rt.C():
		t.Fatal("Stop 后不应该收到到期事件")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRetransmitTimerReset(t *testing.T) {
	rt := NewRetransmitTimer(40 * time.Millisecond)
	rt.Start()

	// 触发前不断重置，计时器不应该到期
	for i := 0; i < 3; i++ {
		time.Sleep(20 * time.Millisecond)
		rt.Reset()
	}

	select {
	case <-rt.C():
		t.Fatal("重置期间不应该到期")
	default:
	}

	// 停止重置后按时到期
	select {
	case <-rt.C():
		rt.Consumed()
	case <-time.After(time.Second):
		t.Fatal("重置后计时器没有触发")
	}
}

func TestRetransmitTimerNewIsStopped(t *testing.T) {
	rt := NewRetransmitTimer(5 * time.Millisecond)
	if rt.Running() {
		t.Error("新建计时器应该处于停止状态")
	}

	select {
	case <-rt.C():
		t.Fatal("未启动的计时器不应该触发")
	case <-time.After(30 * time.Millisecond):
	}
}
