// =============================================================================
// 文件: internal/arq/sender.go
// 描述: Go-Back-N ARQ - 发送端窗口管理器
//       单计时器覆盖整个窗口；超时整窗重传；累积确认推进 base
// =============================================================================
package arq

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mrcgq/drtp/internal/protocol"
	"github.com/mrcgq/drtp/internal/transfer"
)

// Sender 发送端会话
// 两个并发活动共享窗口状态: 接收循环只把有效 ACK 投递到 acks 通道，
// 事件循环在一个 select 里仲裁 ACK 到达与计时器到期，
// 因此对 base/nextSeq/outstanding/计时器的修改天然串行化。
type Sender struct {
	conn net.PacketConn
	peer net.Addr

	cfg    *SenderConfig
	win    *SendWindow
	timer  *RetransmitTimer
	src    *transfer.Disassembler
	meta   *transfer.Metadata
	filter DropFilter

	acks chan uint32

	state   State
	stateMu sync.RWMutex

	finQueued bool
	srcDone   bool

	// 统计 (原子访问，指标采集器并发读取)
	segmentsSent   uint64
	retransmits    uint64
	timeouts       uint64
	acksReceived   uint64
	dupAcks        uint64
	corruptDropped uint64
	bytesSent      uint64
}

// NewSender 创建发送端会话
func NewSender(conn net.PacketConn, peer net.Addr, cfg *SenderConfig,
	src *transfer.Disassembler, meta *transfer.Metadata) *Sender {
	if cfg == nil {
		cfg = DefaultSenderConfig()
	}

	return &Sender{
		conn:   conn,
		peer:   peer,
		cfg:    cfg,
		win:    NewSendWindow(cfg.WindowSize, 1),
		timer:  NewRetransmitTimer(cfg.Timeout),
		src:    src,
		meta:   meta,
		filter: NopFilter{},
		acks:   make(chan uint32, cfg.WindowSize*2),
		state:  StateClosed,
	}
}

// SetDropFilter 替换丢包注入过滤器 (默认不丢包)
func (s *Sender) SetDropFilter(f DropFilter) {
	if f != nil {
		s.filter = f
	}
}

// Run 执行完整会话: 握手、数据流、FIN 挥手
// 全部段 (含 FIN) 被确认后返回 nil；握手失败返回 ErrHandshakeTimeout，
// 信道被外部关闭返回 ErrTransferAborted。
func (s *Sender) Run(ctx context.Context) error {
	if err := s.handshake(ctx); err != nil {
		return err
	}

	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(loopCtx)

	g.Go(func() error {
		return s.recvLoop(gctx)
	})

	g.Go(func() error {
		defer s.unblockRecv()
		defer cancel()
		return s.transferLoop(gctx)
	})

	return g.Wait()
}

// handshake 有界重试的 SYN 交换
// 每次尝试等待与数据相同的固定超时；重试耗尽即失败上报，
// 不像数据阶段那样无限重传。
func (s *Sender) handshake(ctx context.Context) error {
	metaBuf, err := s.meta.Encode()
	if err != nil {
		return err
	}
	synRaw, err := protocol.NewSynPacket(metaBuf).Encode()
	if err != nil {
		return err
	}

	s.setState(StateSynSent)

	buf := make([]byte, recvBufSize)
	for attempt := 0; attempt < s.cfg.HandshakeRetries; attempt++ {
		if ctx.Err() != nil {
			s.setState(StateClosed)
			return fmt.Errorf("%w: %v", ErrTransferAborted, ctx.Err())
		}

		if _, err := s.conn.WriteTo(synRaw, s.peer); err != nil {
			s.setState(StateClosed)
			return fmt.Errorf("%w: %v", ErrTransferAborted, err)
		}

		_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.Timeout))
		for {
			n, _, err := s.conn.ReadFrom(buf)
			if err != nil {
				if isTimeout(err) {
					break // 本次等待超时，重发 SYN
				}
				s.setState(StateClosed)
				return fmt.Errorf("%w: %v", ErrTransferAborted, err)
			}

			pkt, err := protocol.Decode(buf[:n])
			if err != nil {
				atomic.AddUint64(&s.corruptDropped, 1)
				continue
			}

			if pkt.IsSYNACK() {
				_ = s.conn.SetReadDeadline(time.Time{})
				s.setState(StateEstablished)
				return nil
			}
		}
	}

	s.setState(StateClosed)
	return ErrHandshakeTimeout
}

// transferLoop 事件循环: 填窗、等待 ACK 或超时
func (s *Sender) transferLoop(ctx context.Context) error {
	if err := s.fill(); err != nil {
		return err
	}

	for {
		if s.win.Empty() && s.finQueued {
			// 含 FIN 在内的全部段都已确认
			s.timer.Stop()
			s.setState(StateClosedFinal)
			return nil
		}

		select {
		case <-ctx.Done():
			s.timer.Stop()
			return fmt.Errorf("%w: %v", ErrTransferAborted, ctx.Err())

		case k := <-s.acks:
			atomic.AddUint64(&s.acksReceived, 1)
			advanced, empty := s.win.Ack(k)
			if !advanced {
				// 旧确认或重复确认: base 永不回退
				atomic.AddUint64(&s.dupAcks, 1)
				continue
			}
			if empty {
				s.timer.Stop()
			} else {
				// 最老未确认段变了，重新计时
				s.timer.Reset()
			}

		case <-s.timer.C():
			s.timer.Consumed()
			atomic.AddUint64(&s.timeouts, 1)
			if err := s.retransmitAll(); err != nil {
				return err
			}
		}

		if err := s.fill(); err != nil {
			return err
		}
	}
}

// fill 窗口有空位就组帧发送新段；源耗尽后入队 FIN
// 窗口满时返回，发送路径停滞直到确认释放容量 (隐式流控)
func (s *Sender) fill() error {
	for !s.win.Full() {
		if s.srcDone {
			if s.finQueued {
				return nil
			}
			fin := protocol.NewFinPacket(s.win.NextSeq())
			if err := s.win.Add(fin); err != nil {
				return err
			}
			if err := s.transmit(fin); err != nil {
				return err
			}
			s.finQueued = true
			s.setState(StateFinWait)
			if !s.timer.Running() {
				s.timer.Start()
			}
			return nil
		}

		chunk, err := s.src.Next()
		if err == io.EOF {
			s.srcDone = true
			continue
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrTransferAborted, err)
		}

		pkt := protocol.NewDataPacket(s.win.NextSeq(), chunk)
		if err := s.win.Add(pkt); err != nil {
			return err
		}
		if err := s.transmit(pkt); err != nil {
			return err
		}
		if !s.timer.Running() {
			// 窗口此前为空，启动计时器
			s.timer.Start()
		}
	}
	return nil
}

// retransmitAll 整窗重传 (Go-Back-N 的定义性行为)
// 按原始序列号顺序重发每一个在途段，然后重新计时
func (s *Sender) retransmitAll() error {
	outstanding := s.win.Outstanding()
	if len(outstanding) == 0 {
		return nil
	}

	for _, pkt := range outstanding {
		if err := s.transmit(pkt); err != nil {
			return err
		}
		atomic.AddUint64(&s.retransmits, 1)
	}

	s.timer.Reset()
	return nil
}

// transmit 编码并写入信道
func (s *Sender) transmit(pkt *protocol.Packet) error {
	raw, err := pkt.Encode()
	if err != nil {
		return err
	}
	if _, err := s.conn.WriteTo(raw, s.peer); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferAborted, err)
	}

	atomic.AddUint64(&s.segmentsSent, 1)
	atomic.AddUint64(&s.bytesSent, uint64(len(pkt.Payload)))
	return nil
}

// recvLoop 接收循环: 阻塞读取、丢包过滤、解码、投递 ACK
func (s *Sender) recvLoop(ctx context.Context) error {
	buf := make([]byte, recvBufSize)
	for {
		n, _, err := s.conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if isTimeout(err) {
				continue
			}
			return fmt.Errorf("%w: %v", ErrTransferAborted, err)
		}

		if s.filter.ShouldDrop(buf[:n]) {
			continue
		}

		pkt, err := protocol.Decode(buf[:n])
		if err != nil {
			// 损坏包直接丢弃，协议靠重传自愈
			atomic.AddUint64(&s.corruptDropped, 1)
			continue
		}

		if pkt.IsSYNACK() {
			// 服务器重发的 SYN-ACK，握手已完成
			continue
		}

		if pkt.IsACK() {
			select {
			case s.acks <- pkt.Ack:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

// unblockRecv 用过期的读截止时间解除接收循环的阻塞
func (s *Sender) unblockRecv() {
	_ = s.conn.SetReadDeadline(time.Now())
}

func (s *Sender) setState(st State) {
	s.stateMu.Lock()
	s.state = st
	s.stateMu.Unlock()
}

// isTimeout 判断是否为读截止时间超时
func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// =============================================================================
// 指标采集接口 (internal/metrics.TransferStats)
// =============================================================================

func (s *Sender) GetRole() string  { return "client" }
func (s *Sender) GetState() string { s.stateMu.RLock(); defer s.stateMu.RUnlock(); return s.state.String() }

func (s *Sender) GetSegmentsSent() uint64      { return atomic.LoadUint64(&s.segmentsSent) }
func (s *Sender) GetSegmentsDelivered() uint64 { return 0 }
func (s *Sender) GetRetransmits() uint64       { return atomic.LoadUint64(&s.retransmits) }
func (s *Sender) GetTimeouts() uint64          { return atomic.LoadUint64(&s.timeouts) }
func (s *Sender) GetAcksSent() uint64          { return 0 }
func (s *Sender) GetAcksReceived() uint64      { return atomic.LoadUint64(&s.acksReceived) }
func (s *Sender) GetDupAcks() uint64           { return atomic.LoadUint64(&s.dupAcks) }
func (s *Sender) GetOutOfOrder() uint64        { return 0 }
func (s *Sender) GetCorruptDropped() uint64    { return atomic.LoadUint64(&s.corruptDropped) }
func (s *Sender) GetBytesSent() uint64         { return atomic.LoadUint64(&s.bytesSent) }
func (s *Sender) GetBytesDelivered() uint64    { return 0 }
func (s *Sender) GetInFlight() int             { return s.win.InFlight() }
