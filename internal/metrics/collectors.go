// =============================================================================
// 文件: internal/metrics/collectors.go
// 描述: Prometheus 指标收集器定义
// =============================================================================
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// TransferStats 传输统计数据接口
// 发送端与接收端会话都实现它；不适用的计数返回 0
type TransferStats interface {
	GetRole() string
	GetState() string
	GetSegmentsSent() uint64
	GetSegmentsDelivered() uint64
	GetRetransmits() uint64
	GetTimeouts() uint64
	GetAcksSent() uint64
	GetAcksReceived() uint64
	GetDupAcks() uint64
	GetOutOfOrder() uint64
	GetCorruptDropped() uint64
	GetBytesSent() uint64
	GetBytesDelivered() uint64
	GetInFlight() int
}

// TransferCollector 传输指标收集器
type TransferCollector struct {
	statsProvider TransferStats

	// 描述符
	segmentsSentDesc      *prometheus.Desc
	segmentsDeliveredDesc *prometheus.Desc
	retransmitsDesc       *prometheus.Desc
	timeoutsDesc          *prometheus.Desc
	acksSentDesc          *prometheus.Desc
	acksReceivedDesc      *prometheus.Desc
	dupAcksDesc           *prometheus.Desc
	outOfOrderDesc        *prometheus.Desc
	corruptDroppedDesc    *prometheus.Desc
	bytesSentDesc         *prometheus.Desc
	bytesDeliveredDesc    *prometheus.Desc
	inFlightDesc          *prometheus.Desc
	stateDesc             *prometheus.Desc
}

// NewTransferCollector 创建传输指标收集器
func NewTransferCollector(stats TransferStats) *TransferCollector {
	labels := []string{"role"}

	return &TransferCollector{
		statsProvider: stats,

		segmentsSentDesc: prometheus.NewDesc(
			"drtp_segments_sent_total", "发送的段总数 (含重传)", labels, nil),
		segmentsDeliveredDesc: prometheus.NewDesc(
			"drtp_segments_delivered_total", "按序交付的段总数", labels, nil),
		retransmitsDesc: prometheus.NewDesc(
			"drtp_retransmits_total", "重传的段总数", labels, nil),
		timeoutsDesc: prometheus.NewDesc(
			"drtp_timeouts_total", "重传计时器超时次数", labels, nil),
		acksSentDesc: prometheus.NewDesc(
			"drtp_acks_sent_total", "发送的累积确认总数", labels, nil),
		acksReceivedDesc: prometheus.NewDesc(
			"drtp_acks_received_total", "收到的累积确认总数", labels, nil),
		dupAcksDesc: prometheus.NewDesc(
			"drtp_duplicate_acks_total", "重复确认总数", labels, nil),
		outOfOrderDesc: prometheus.NewDesc(
			"drtp_out_of_order_total", "乱序丢弃的段总数", labels, nil),
		corruptDroppedDesc: prometheus.NewDesc(
			"drtp_corrupt_dropped_total", "校验失败丢弃的包总数", labels, nil),
		bytesSentDesc: prometheus.NewDesc(
			"drtp_bytes_sent_total", "发送的载荷字节总数", labels, nil),
		bytesDeliveredDesc: prometheus.NewDesc(
			"drtp_bytes_delivered_total", "交付的载荷字节总数", labels, nil),
		inFlightDesc: prometheus.NewDesc(
			"drtp_segments_in_flight", "当前在途段数", labels, nil),
		stateDesc: prometheus.NewDesc(
			"drtp_session_state", "会话状态 (值恒为 1)", []string{"role", "state"}, nil),
	}
}

// Describe 实现 prometheus.Collector
func (c *TransferCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.segmentsSentDesc
	ch <- c.segmentsDeliveredDesc
	ch <- c.retransmitsDesc
	ch <- c.timeoutsDesc
	ch <- c.acksSentDesc
	ch <- c.acksReceivedDesc
	ch <- c.dupAcksDesc
	ch <- c.outOfOrderDesc
	ch <- c.corruptDroppedDesc
	ch <- c.bytesSentDesc
	ch <- c.bytesDeliveredDesc
	ch <- c.inFlightDesc
	ch <- c.stateDesc
}

// Collect 实现 prometheus.Collector
func (c *TransferCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.statsProvider
	role := s.GetRole()

	counter := func(desc *prometheus.Desc, v uint64) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(v), role)
	}

	counter(c.segmentsSentDesc, s.GetSegmentsSent())
	counter(c.segmentsDeliveredDesc, s.GetSegmentsDelivered())
	counter(c.retransmitsDesc, s.GetRetransmits())
	counter(c.timeoutsDesc, s.GetTimeouts())
	counter(c.acksSentDesc, s.GetAcksSent())
	counter(c.acksReceivedDesc, s.GetAcksReceived())
	counter(c.dupAcksDesc, s.GetDupAcks())
	counter(c.outOfOrderDesc, s.GetOutOfOrder())
	counter(c.corruptDroppedDesc, s.GetCorruptDropped())
	counter(c.bytesSentDesc, s.GetBytesSent())
	counter(c.bytesDeliveredDesc, s.GetBytesDelivered())

	ch <- prometheus.MustNewConstMetric(
		c.inFlightDesc, prometheus.GaugeValue, float64(s.GetInFlight()), role)
	ch <- prometheus.MustNewConstMetric(
		c.stateDesc, prometheus.GaugeValue, 1, role, s.GetState())
}
