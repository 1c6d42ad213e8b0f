// =============================================================================
// 文件: internal/protocol/packet.go
// 描述: DRTP 线路协议 - 包编解码与校验和验证
// =============================================================================
package protocol

import (
	"encoding/binary"
	"fmt"

	"github.com/google/netstack/tcpip/header"
)

// DRTP 协议常量
const (
	// 包头大小: Seq(4) + Ack(4) + Flags(2) + Checksum(2) + Len(2) = 14 bytes
	HeaderSize = 14

	// 最大载荷: 整个数据报恰好 1000 字节
	MaxPayloadSize = 1000 - HeaderSize

	// 标志位 (2 bytes)
	FlagACK  uint16 = 0x0001 // 确认包
	FlagSYN  uint16 = 0x0002 // 同步包 (连接建立)
	FlagFIN  uint16 = 0x0004 // 结束包 (连接关闭)
	FlagDATA uint16 = 0x0008 // 数据包
)

// 错误定义
var (
	ErrCorruptPacket = fmt.Errorf("包损坏: 校验和或长度不匹配")
	ErrPayloadTooBig = fmt.Errorf("载荷超过最大段大小")
)

// Packet DRTP 数据包
type Packet struct {
	Seq     uint32 // 序列号 (每个数据段递增)
	Ack     uint32 // 累积确认号
	Flags   uint16 // 标志位
	Payload []byte // 有效载荷
}

// Encode 编码 DRTP 包
// 校验和覆盖整个包头 (校验和字段置零) 加载荷
func (p *Packet) Encode() ([]byte, error) {
	if len(p.Payload) > MaxPayloadSize {
		return nil, ErrPayloadTooBig
	}

	buf := make([]byte, HeaderSize+len(p.Payload))

	binary.BigEndian.PutUint32(buf[0:4], p.Seq)
	binary.BigEndian.PutUint32(buf[4:8], p.Ack)
	binary.BigEndian.PutUint16(buf[8:10], p.Flags)
	// buf[10:12] 校验和字段先置零
	binary.BigEndian.PutUint16(buf[12:14], uint16(len(p.Payload)))

	if len(p.Payload) > 0 {
		copy(buf[HeaderSize:], p.Payload)
	}

	csum := header.Checksum(buf, 0)
	binary.BigEndian.PutUint16(buf[10:12], csum)

	return buf, nil
}

// Decode 解码 DRTP 包
// 校验和或长度不匹配时返回 ErrCorruptPacket，调用方直接丢弃该数据报
func Decode(data []byte) (*Packet, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("%w: 数据太短 %d < %d", ErrCorruptPacket, len(data), HeaderSize)
	}

	payloadLen := binary.BigEndian.Uint16(data[12:14])
	if len(data) != HeaderSize+int(payloadLen) {
		return nil, fmt.Errorf("%w: 声明长度 %d 与实际 %d 不符",
			ErrCorruptPacket, payloadLen, len(data)-HeaderSize)
	}

	// 重新计算校验和 (字段置零后)
	wire := binary.BigEndian.Uint16(data[10:12])
	scratch := make([]byte, len(data))
	copy(scratch, data)
	scratch[10], scratch[11] = 0, 0
	if header.Checksum(scratch, 0) != wire {
		return nil, fmt.Errorf("%w: 校验和不匹配", ErrCorruptPacket)
	}

	p := &Packet{
		Seq:   binary.BigEndian.Uint32(data[0:4]),
		Ack:   binary.BigEndian.Uint32(data[4:8]),
		Flags: binary.BigEndian.Uint16(data[8:10]),
	}
	if payloadLen > 0 {
		p.Payload = make([]byte, payloadLen)
		copy(p.Payload, data[HeaderSize:])
	}

	return p, nil
}

// PeekSeq 不经验证读取原始数据报的序列号
// 供丢包注入过滤器使用 (过滤器位于校验和验证之前)
func PeekSeq(data []byte) (uint32, bool) {
	if len(data) < HeaderSize {
		return 0, false
	}
	return binary.BigEndian.Uint32(data[0:4]), true
}

// IsSYN 是否带 SYN 标志
func (p *Packet) IsSYN() bool { return p.Flags&FlagSYN != 0 }

// IsACK 是否带 ACK 标志
func (p *Packet) IsACK() bool { return p.Flags&FlagACK != 0 }

// IsFIN 是否带 FIN 标志
func (p *Packet) IsFIN() bool { return p.Flags&FlagFIN != 0 }

// IsDATA 是否带 DATA 标志
func (p *Packet) IsDATA() bool { return p.Flags&FlagDATA != 0 }

// IsSYNACK 是否为 SYN-ACK
func (p *Packet) IsSYNACK() bool { return p.IsSYN() && p.IsACK() }

func (p *Packet) String() string {
	return fmt.Sprintf("{seq=%d ack=%d flags=%s len=%d}", p.Seq, p.Ack, flagString(p.Flags), len(p.Payload))
}

func flagString(flags uint16) string {
	s := ""
	if flags&FlagSYN != 0 {
		s += "S"
	}
	if flags&FlagACK != 0 {
		s += "A"
	}
	if flags&FlagFIN != 0 {
		s += "F"
	}
	if flags&FlagDATA != 0 {
		s += "D"
	}
	if s == "" {
		s = "-"
	}
	return s
}

// NewSynPacket 创建 SYN 包 (载荷携带传输元数据)
func NewSynPacket(meta []byte) *Packet {
	return &Packet{Seq: 0, Ack: 0, Flags: FlagSYN, Payload: meta}
}

// NewSynAckPacket 创建 SYN-ACK 包
func NewSynAckPacket() *Packet {
	return &Packet{Seq: 0, Ack: 0, Flags: FlagSYN | FlagACK}
}

// NewDataPacket 创建数据包
func NewDataPacket(seq uint32, payload []byte) *Packet {
	return &Packet{Seq: seq, Flags: FlagDATA, Payload: payload}
}

// NewAckPacket 创建累积确认包
func NewAckPacket(ack uint32) *Packet {
	return &Packet{Seq: 0, Ack: ack, Flags: FlagACK}
}

// NewFinPacket 创建 FIN 包 (携带最终序列号)
func NewFinPacket(seq uint32) *Packet {
	return &Packet{Seq: seq, Flags: FlagFIN}
}
