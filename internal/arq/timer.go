// =============================================================================
// 文件: internal/arq/timer.go
// 描述: Go-Back-N ARQ - 重传计时器 (单计时器覆盖整个窗口)
// =============================================================================
package arq

import "time"

// RetransmitTimer 重传计时器
// 绑定到最老的未确认段；整个窗口共用这一个计时器。
// 仅由发送端事件循环这一个 goroutine 访问，因此无需加锁。
type RetransmitTimer struct {
	d       time.Duration
	t       *time.Timer
	running bool
}

// NewRetransmitTimer 创建停止状态的重传计时器
func NewRetransmitTimer(d time.Duration) *RetransmitTimer {
	t := time.NewTimer(d)
	if !t.Stop() {
		<-t.C
	}
	return &RetransmitTimer{d: d, t: t}
}

// C 到期通知通道
// 消费到期事件后必须调用 Consumed、Reset 或 Stop 之一
func (rt *RetransmitTimer) C() <-chan time.Time {
	return rt.t.C
}

// Start 启动计时器；已在运行则不动
func (rt *RetransmitTimer) Start() {
	if rt.running {
		return
	}
	rt.t.Reset(rt.d)
	rt.running = true
}

// Stop 停止计时器并排空未消费的到期事件
// 保证停止之后不会再观察到过期的触发
func (rt *RetransmitTimer) Stop() {
	if !rt.running {
		return
	}
	if !rt.t.Stop() {
		select {
		case <-rt.t.C:
		default:
		}
	}
	rt.running = false
}

// Reset 重新开始计时 (最老未确认段发生变化时)
func (rt *RetransmitTimer) Reset() {
	rt.Stop()
	rt.t.Reset(rt.d)
	rt.running = true
}

// Consumed 标记到期事件已从 C 消费
// 之后计时器处于停止状态，需要 Start/Reset 才会再次触发
func (rt *RetransmitTimer) Consumed() {
	rt.running = false
}

// Running 是否在计时
func (rt *RetransmitTimer) Running() bool {
	return rt.running
}
