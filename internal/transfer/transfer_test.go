// =============================================================================
// 文件: internal/transfer/transfer_test.go
// 描述: 文件分块/重组与元数据测试
// =============================================================================
package transfer

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestDisassemblerChunks(t *testing.T) {
	data := []byte("abcdefghij") // 10 字节, mss=4 -> 4+4+2
	d := NewDisassembler(bytes.NewReader(data), int64(len(data)), 4)

	if d.SegmentCount() != 3 {
		t.Errorf("SegmentCount 不正确: got %d, want 3", d.SegmentCount())
	}

	var segs [][]byte
	for {
		seg, err := d.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next 失败: %v", err)
		}
		segs = append(segs, seg)
	}

	if len(segs) != 3 {
		t.Fatalf("段数不正确: got %d, want 3", len(segs))
	}
	if string(segs[0]) != "abcd" || string(segs[1]) != "efgh" || string(segs[2]) != "ij" {
		t.Errorf("段内容不正确: %q %q %q", segs[0], segs[1], segs[2])
	}
	if d.BytesRead() != 10 {
		t.Errorf("BytesRead 不正确: got %d, want 10", d.BytesRead())
	}

	// 耗尽后保持 EOF (单遍、不可重启)
	if _, err := d.Next(); err != io.EOF {
		t.Errorf("耗尽后应该持续返回 EOF: got %v", err)
	}
}

func TestDisassemblerExactMultiple(t *testing.T) {
	data := make([]byte, 8)
	d := NewDisassembler(bytes.NewReader(data), 8, 4)

	n := 0
	for {
		if _, err := d.Next(); err == io.EOF {
			break
		}
		n++
	}
	if n != 2 {
		t.Errorf("恰好整除时段数不正确: got %d, want 2", n)
	}
}

func TestDisassemblerEmpty(t *testing.T) {
	d := NewDisassembler(bytes.NewReader(nil), 0, 4)
	if d.SegmentCount() != 0 {
		t.Errorf("空源 SegmentCount 应该为 0: got %d", d.SegmentCount())
	}
	if _, err := d.Next(); err != io.EOF {
		t.Errorf("空源应该立即 EOF: got %v", err)
	}
}

func TestDisassemblerSegmentsAreCopies(t *testing.T) {
	data := []byte("aaaabbbb")
	d := NewDisassembler(bytes.NewReader(data), 8, 4)

	first, err := d.Next()
	if err != nil {
		t.Fatalf("Next 失败: %v", err)
	}
	second, err := d.Next()
	if err != nil {
		t.Fatalf("Next 失败: %v", err)
	}

	// 窗口会长期持有段等待重传，段之间不能共享底层数组
	first[0] = 'x'
	if second[0] != 'b' {
		t.Error("段之间共享了缓冲区")
	}
}

func TestAssemblerByteExact(t *testing.T) {
	var buf bytes.Buffer
	a := NewAssembler(&buf, 9)

	for _, seg := range [][]byte{[]byte("abc"), []byte("def"), []byte("ghi")} {
		if err := a.Append(seg); err != nil {
			t.Fatalf("Append 失败: %v", err)
		}
	}

	if err := a.Finalize(); err != nil {
		t.Fatalf("字节精确时 Finalize 不应该失败: %v", err)
	}
	if buf.String() != "abcdefghi" {
		t.Errorf("重组内容不正确: %q", buf.String())
	}
	if a.Segments() != 3 {
		t.Errorf("段计数不正确: got %d, want 3", a.Segments())
	}
}

func TestAssemblerIncomplete(t *testing.T) {
	var buf bytes.Buffer
	a := NewAssembler(&buf, 100)
	if err := a.Append([]byte("short")); err != nil {
		t.Fatalf("Append 失败: %v", err)
	}

	// 部分交付绝不能冒充成功
	if err := a.Finalize(); !errors.Is(err, ErrIncomplete) {
		t.Fatalf("不完整重组应该返回 ErrIncomplete: got %v", err)
	}
}

func TestMetadataRoundTrip(t *testing.T) {
	m := &Metadata{Window: 3, Size: 123456, Name: "照片.jpg"}

	encoded, err := m.Encode()
	if err != nil {
		t.Fatalf("编码失败: %v", err)
	}
	decoded, err := DecodeMetadata(encoded)
	if err != nil {
		t.Fatalf("解码失败: %v", err)
	}

	if decoded.Window != m.Window || decoded.Size != m.Size || decoded.Name != m.Name {
		t.Errorf("元数据不匹配: got %+v, want %+v", decoded, m)
	}
}

func TestMetadataInvalid(t *testing.T) {
	cases := []struct {
		name string
		meta *Metadata
	}{
		{"空文件名", &Metadata{Window: 3, Size: 1, Name: ""}},
		{"窗口为零", &Metadata{Window: 0, Size: 1, Name: "a.bin"}},
		{"文件名过长", &Metadata{Window: 3, Size: 1, Name: string(make([]byte, 300))}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := tc.meta.Encode(); !errors.Is(err, ErrBadMetadata) {
				t.Errorf("应该返回 ErrBadMetadata: got %v", err)
			}
		})
	}

	if _, err := DecodeMetadata([]byte{0x01}); !errors.Is(err, ErrBadMetadata) {
		t.Errorf("过短元数据应该返回 ErrBadMetadata: got %v", err)
	}
}

func TestResolvePathDedup(t *testing.T) {
	dir := t.TempDir()

	first := ResolvePath(dir, "file.txt")
	if first != filepath.Join(dir, "file.txt") {
		t.Errorf("首次解析不正确: %s", first)
	}
	if err := os.WriteFile(first, []byte("x"), 0o644); err != nil {
		t.Fatalf("写文件失败: %v", err)
	}

	second := ResolvePath(dir, "file.txt")
	if second != filepath.Join(dir, "file(0).txt") {
		t.Errorf("重名解析不正确: %s", second)
	}
	if err := os.WriteFile(second, []byte("x"), 0o644); err != nil {
		t.Fatalf("写文件失败: %v", err)
	}

	third := ResolvePath(dir, "file.txt")
	if third != filepath.Join(dir, "file(1).txt") {
		t.Errorf("再次重名解析不正确: %s", third)
	}
}

func TestResolvePathStripsDirectories(t *testing.T) {
	dir := t.TempDir()
	got := ResolvePath(dir, "../../etc/passwd")
	if got != filepath.Join(dir, "passwd") {
		t.Errorf("携带路径的文件名应该被剥离: %s", got)
	}
}

func TestThroughputMbps(t *testing.T) {
	// 1_000_000 字节 / 1 秒 = 8 Mbps
	if got := ThroughputMbps(1, 1_000_000); got != 8 {
		t.Errorf("吞吐量不正确: got %f, want 8", got)
	}
	if got := ThroughputMbps(0, 100); got != 0 {
		t.Errorf("零时长应该返回 0: got %f", got)
	}
}
