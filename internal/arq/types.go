// =============================================================================
// 文件: internal/arq/types.go
// 描述: Go-Back-N ARQ - 统一类型与常量定义
// =============================================================================
package arq

import (
	"fmt"
	"time"
)

// 默认参数
const (
	// DefaultWindowSize 默认滑动窗口大小 (段数)
	DefaultWindowSize = 3

	// DefaultTimeout 固定重传超时 (不做 RTT 自适应估算)
	DefaultTimeout = 500 * time.Millisecond

	// DefaultHandshakeRetries 握手阶段 SYN 最大重试次数
	// 数据阶段重传不设上限，握手阶段有界以便尽早上报失败
	DefaultHandshakeRetries = 5

	// recvBufSize 单次 ReadFrom 的缓冲区大小 (大于最大数据报)
	recvBufSize = 1500
)

// 错误定义
var (
	ErrHandshakeTimeout = fmt.Errorf("握手超时: SYN 重试次数耗尽")
	ErrTransferAborted  = fmt.Errorf("传输中止: 信道已关闭")
	ErrWindowFull       = fmt.Errorf("发送窗口已满")
	ErrInvalidState     = fmt.Errorf("无效状态")
)

// State 会话状态
type State uint8

const (
	StateClosed State = iota
	StateSynSent
	StateListen
	StateEstablished
	StateFinWait
	StateClosedFinal
)

func (s State) String() string {
	names := []string{
		"CLOSED", "SYN_SENT", "LISTEN",
		"ESTABLISHED", "FIN_WAIT", "CLOSED_FINAL",
	}
	if int(s) < len(names) {
		return names[s]
	}
	return "UNKNOWN"
}

// SenderConfig 发送端配置
type SenderConfig struct {
	WindowSize       int           // 窗口大小 N，会话期间恒定
	Timeout          time.Duration // 固定重传超时
	HandshakeRetries int           // SYN 重试上限
}

// DefaultSenderConfig 默认发送端配置
func DefaultSenderConfig() *SenderConfig {
	return &SenderConfig{
		WindowSize:       DefaultWindowSize,
		Timeout:          DefaultTimeout,
		HandshakeRetries: DefaultHandshakeRetries,
	}
}

// ReceiverConfig 接收端配置
type ReceiverConfig struct {
	Timeout time.Duration // 挥手滞留时长基准 (与发送端超时同量级)
	Once    bool          // true: 完成一次传输后退出; false: 回到 LISTEN
}

// DefaultReceiverConfig 默认接收端配置
func DefaultReceiverConfig() *ReceiverConfig {
	return &ReceiverConfig{
		Timeout: DefaultTimeout,
		Once:    true,
	}
}
