// =============================================================================
// 文件: internal/arq/receiver.go
// 描述: Go-Back-N ARQ - 接收端
//       严格按序交付；任何乱序/重复到达只回重复 ACK，不做重组缓冲
// =============================================================================
package arq

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mrcgq/drtp/internal/protocol"
	"github.com/mrcgq/drtp/internal/transfer"
)

// SinkFactory 按握手元数据打开目标字节流
// 核心不管理路径/权限/覆盖策略，由调用方决定写到哪里
type SinkFactory func(meta *transfer.Metadata) (io.WriteCloser, error)

// Receiver 接收端会话
// 单循环驱动: 读数据报、丢包注入过滤、解码验证、按标志位分派。
// 所有会话状态只被这一个循环触碰。
type Receiver struct {
	conn        net.PacketConn
	cfg         *ReceiverConfig
	filter      DropFilter
	sinkFactory SinkFactory

	state   State
	stateMu sync.RWMutex

	// 当前会话
	peer     net.Addr
	expected uint32 // 期望的下一个按序序列号
	meta     *transfer.Metadata
	asm      *transfer.Assembler
	sink     io.WriteCloser

	// 统计 (原子访问)
	segmentsDelivered uint64
	acksSent          uint64
	dupAcksSent       uint64
	outOfOrder        uint64
	corruptDropped    uint64
	injectedDrops     uint64
	bytesDelivered    uint64
	completed         uint64
}

// NewReceiver 创建接收端会话
func NewReceiver(conn net.PacketConn, cfg *ReceiverConfig, factory SinkFactory) *Receiver {
	if cfg == nil {
		cfg = DefaultReceiverConfig()
	}

	return &Receiver{
		conn:        conn,
		cfg:         cfg,
		filter:      NopFilter{},
		sinkFactory: factory,
		state:       StateClosed,
	}
}

// SetDropFilter 安装丢包注入过滤器 (测试重传路径用)
func (r *Receiver) SetDropFilter(f DropFilter) {
	if f != nil {
		r.filter = f
	}
}

// Run 监听并重建传输
// Once 模式完成一次传输后返回 nil；否则回到 LISTEN 继续服务。
// 信道被外部关闭或 ctx 取消发生在会话中途时返回 ErrTransferAborted。
func (r *Receiver) Run(ctx context.Context) error {
	// ctx 取消时用过期读截止时间解除 ReadFrom 阻塞
	unblock := context.AfterFunc(ctx, func() {
		_ = r.conn.SetReadDeadline(time.Now())
	})
	defer unblock()

	r.setState(StateListen)

	buf := make([]byte, recvBufSize)
	for {
		n, addr, err := r.conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return r.abort(ctx.Err())
			}
			if isTimeout(err) {
				continue
			}
			return r.abort(err)
		}

		if r.filter.ShouldDrop(buf[:n]) {
			// 注入丢包: 在校验和验证之前静默丢弃，
			// 行为上与真实信道丢包无法区分
			atomic.AddUint64(&r.injectedDrops, 1)
			continue
		}

		pkt, err := protocol.Decode(buf[:n])
		if err != nil {
			atomic.AddUint64(&r.corruptDropped, 1)
			continue
		}

		switch {
		case pkt.IsSYN() && !pkt.IsACK():
			r.handleSyn(pkt, addr)

		case pkt.IsDATA():
			if err := r.handleData(pkt, addr); err != nil {
				return r.abort(err)
			}

		case pkt.IsFIN():
			done, err := r.handleFin(pkt, addr)
			if err != nil {
				return r.abort(err)
			}
			if done {
				r.linger(ctx)
				r.setState(StateClosedFinal)
				atomic.AddUint64(&r.completed, 1)
				if r.cfg.Once {
					return nil
				}
				r.resetSession()
			}
		}
	}
}

// handleSyn 会话建立: LISTEN -> (收到 SYN, 发 SYN-ACK) -> ESTABLISHED
func (r *Receiver) handleSyn(pkt *protocol.Packet, from net.Addr) {
	switch r.getState() {
	case StateListen:
		meta, err := transfer.DecodeMetadata(pkt.Payload)
		if err != nil {
			return
		}
		sink, err := r.sinkFactory(meta)
		if err != nil {
			return
		}

		r.peer = from
		r.meta = meta
		r.sink = sink
		r.asm = transfer.NewAssembler(sink, int64(meta.Size))
		r.expected = 1
		r.setState(StateEstablished)
		r.sendSynAck()

	case StateEstablished:
		// SYN-ACK 丢失导致的 SYN 重发: 重新应答即可
		if r.samePeer(from) {
			r.sendSynAck()
		}
	}
}

// handleData 数据段: 按序交付或回重复 ACK
func (r *Receiver) handleData(pkt *protocol.Packet, from net.Addr) error {
	if r.getState() != StateEstablished || !r.samePeer(from) {
		return nil
	}

	if pkt.Seq != r.expected {
		// 乱序或重复段: 丢弃载荷，重发累积确认 (无重组缓冲)
		atomic.AddUint64(&r.outOfOrder, 1)
		r.sendDupAck()
		return nil
	}

	if err := r.asm.Append(pkt.Payload); err != nil {
		return err
	}
	atomic.AddUint64(&r.segmentsDelivered, 1)
	atomic.AddUint64(&r.bytesDelivered, uint64(len(pkt.Payload)))

	r.sendAck(pkt.Seq)
	r.expected++
	return nil
}

// handleFin 结束段: 定序/确认与数据段完全一致，然后触发挥手
func (r *Receiver) handleFin(pkt *protocol.Packet, from net.Addr) (bool, error) {
	if r.getState() != StateEstablished || !r.samePeer(from) {
		return false, nil
	}

	if pkt.Seq != r.expected {
		// FIN 之前还有缺口: 和乱序数据一样只回重复 ACK
		atomic.AddUint64(&r.outOfOrder, 1)
		r.sendDupAck()
		return false, nil
	}

	r.sendAck(pkt.Seq)
	r.expected++
	r.setState(StateFinWait)

	// 全部在先数据已交付，终结目标汇
	// 字节数与声明不符绝不冒充成功
	err := r.asm.Finalize()
	if cerr := r.sink.Close(); err == nil {
		err = cerr
	}
	r.sink = nil
	if err != nil {
		return false, err
	}
	return true, nil
}

// linger 挥手滞留
// 对 FIN 的确认也可能丢失；在 2 倍超时内继续应答对端的重传，
// 避免发送端最后的 FIN 永远等不到确认。
func (r *Receiver) linger(ctx context.Context) {
	deadline := time.Now().Add(2 * r.cfg.Timeout)
	_ = r.conn.SetReadDeadline(deadline)
	defer func() { _ = r.conn.SetReadDeadline(time.Time{}) }()

	buf := make([]byte, recvBufSize)
	for {
		if ctx.Err() != nil {
			return
		}
		n, addr, err := r.conn.ReadFrom(buf)
		if err != nil {
			return
		}
		if r.filter.ShouldDrop(buf[:n]) {
			atomic.AddUint64(&r.injectedDrops, 1)
			continue
		}
		pkt, err := protocol.Decode(buf[:n])
		if err != nil {
			atomic.AddUint64(&r.corruptDropped, 1)
			continue
		}
		if r.samePeer(addr) && (pkt.IsDATA() || pkt.IsFIN()) {
			// 一切重传都用最终累积值应答
			r.sendAck(r.expected - 1)
		}
	}
}

// resetSession 回到 LISTEN 服务下一次传输
func (r *Receiver) resetSession() {
	r.peer = nil
	r.meta = nil
	r.asm = nil
	r.expected = 0
	r.setState(StateListen)
}

// abort 会话中途的不可恢复失败
func (r *Receiver) abort(cause error) error {
	if r.sink != nil {
		_ = r.sink.Close()
		r.sink = nil
	}
	state := r.getState()
	r.setState(StateClosed)

	// 空闲监听时的取消是正常停机，不算传输失败
	if state == StateListen {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrTransferAborted, cause)
}

func (r *Receiver) sendSynAck() {
	raw, err := protocol.NewSynAckPacket().Encode()
	if err != nil {
		return
	}
	_, _ = r.conn.WriteTo(raw, r.peer)
}

// sendAck 发送累积确认: 确认到 v 为止的全部序列号
func (r *Receiver) sendAck(v uint32) {
	raw, err := protocol.NewAckPacket(v).Encode()
	if err != nil {
		return
	}
	if _, err := r.conn.WriteTo(raw, r.peer); err == nil {
		atomic.AddUint64(&r.acksSent, 1)
	}
}

// sendDupAck 重发当前累积确认 (expected-1)
func (r *Receiver) sendDupAck() {
	r.sendAck(r.expected - 1)
	atomic.AddUint64(&r.dupAcksSent, 1)
}

func (r *Receiver) samePeer(addr net.Addr) bool {
	return r.peer != nil && addr != nil && r.peer.String() == addr.String()
}

func (r *Receiver) setState(st State) {
	r.stateMu.Lock()
	r.state = st
	r.stateMu.Unlock()
}

func (r *Receiver) getState() State {
	r.stateMu.RLock()
	defer r.stateMu.RUnlock()
	return r.state
}

// Meta 当前/最近一次会话的元数据
func (r *Receiver) Meta() *transfer.Metadata {
	return r.meta
}

// Completed 已完成的传输次数
func (r *Receiver) Completed() uint64 {
	return atomic.LoadUint64(&r.completed)
}

// =============================================================================
// 指标采集接口 (internal/metrics.TransferStats)
// =============================================================================

func (r *Receiver) GetRole() string  { return "server" }
func (r *Receiver) GetState() string { return r.getState().String() }

func (r *Receiver) GetSegmentsSent() uint64      { return 0 }
func (r *Receiver) GetSegmentsDelivered() uint64 { return atomic.LoadUint64(&r.segmentsDelivered) }
func (r *Receiver) GetRetransmits() uint64       { return 0 }
func (r *Receiver) GetTimeouts() uint64          { return 0 }
func (r *Receiver) GetAcksSent() uint64          { return atomic.LoadUint64(&r.acksSent) }
func (r *Receiver) GetAcksReceived() uint64      { return 0 }
func (r *Receiver) GetDupAcks() uint64           { return atomic.LoadUint64(&r.dupAcksSent) }
func (r *Receiver) GetOutOfOrder() uint64        { return atomic.LoadUint64(&r.outOfOrder) }
func (r *Receiver) GetCorruptDropped() uint64    { return atomic.LoadUint64(&r.corruptDropped) }
func (r *Receiver) GetInjectedDrops() uint64     { return atomic.LoadUint64(&r.injectedDrops) }
func (r *Receiver) GetBytesSent() uint64         { return 0 }
func (r *Receiver) GetBytesDelivered() uint64    { return atomic.LoadUint64(&r.bytesDelivered) }
func (r *Receiver) GetInFlight() int             { return 0 }
