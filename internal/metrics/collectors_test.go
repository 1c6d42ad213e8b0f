// =============================================================================
// 文件: internal/metrics/collectors_test.go
// 描述: 指标收集器测试
// =============================================================================
package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

// stubStats 固定统计值
type stubStats struct{}

func (stubStats) GetRole() string             { return "client" }
func (stubStats) GetState() string            { return "ESTABLISHED" }
func (stubStats) GetSegmentsSent() uint64     { return 10 }
func (stubStats) GetSegmentsDelivered() uint64 { return 0 }
func (stubStats) GetRetransmits() uint64      { return 3 }
func (stubStats) GetTimeouts() uint64         { return 1 }
func (stubStats) GetAcksSent() uint64         { return 0 }
func (stubStats) GetAcksReceived() uint64     { return 7 }
func (stubStats) GetDupAcks() uint64          { return 2 }
func (stubStats) GetOutOfOrder() uint64       { return 0 }
func (stubStats) GetCorruptDropped() uint64   { return 0 }
func (stubStats) GetBytesSent() uint64        { return 9860 }
func (stubStats) GetBytesDelivered() uint64   { return 0 }
func (stubStats) GetInFlight() int            { return 3 }

func TestTransferCollectorGather(t *testing.T) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(NewTransferCollector(stubStats{}))

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather 失败: %v", err)
	}
	if len(mfs) != 13 {
		t.Fatalf("指标族数量不正确: got %d, want 13", len(mfs))
	}

	found := map[string]float64{}
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			v := m.GetCounter().GetValue() + m.GetGauge().GetValue()
			found[mf.GetName()] = v
		}
	}

	if found["drtp_segments_sent_total"] != 10 {
		t.Errorf("segments_sent 不正确: got %f, want 10", found["drtp_segments_sent_total"])
	}
	if found["drtp_retransmits_total"] != 3 {
		t.Errorf("retransmits 不正确: got %f, want 3", found["drtp_retransmits_total"])
	}
	if found["drtp_segments_in_flight"] != 3 {
		t.Errorf("in_flight 不正确: got %f, want 3", found["drtp_segments_in_flight"])
	}
	if found["drtp_session_state"] != 1 {
		t.Errorf("session_state 不正确: got %f, want 1", found["drtp_session_state"])
	}
}
