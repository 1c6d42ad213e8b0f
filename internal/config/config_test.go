// =============================================================================
// 文件: internal/config/config_test.go
// 描述: 配置鲁棒性测试 - 确保错误配置能在启动前被拦截
// =============================================================================
package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Addr != "127.0.0.1:8080" {
		t.Errorf("Addr 默认值错误: got %s, want 127.0.0.1:8080", cfg.Addr)
	}
	if cfg.Client.Window != 3 {
		t.Errorf("Window 默认值错误: got %d, want 3", cfg.Client.Window)
	}
	if cfg.Client.TimeoutMs != 500 {
		t.Errorf("TimeoutMs 默认值错误: got %d, want 500", cfg.Client.TimeoutMs)
	}
	if cfg.Client.HandshakeRetries != 5 {
		t.Errorf("HandshakeRetries 默认值错误: got %d, want 5", cfg.Client.HandshakeRetries)
	}
	if !cfg.Server.Once {
		t.Error("Server.Once 默认应为 true")
	}
	if cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled 默认应为 false")
	}
}

func tempFile(t *testing.T, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "src.bin")
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatalf("写临时文件失败: %v", err)
	}
	return path
}

func validClientConfig(t *testing.T) *Config {
	cfg := DefaultConfig()
	cfg.Mode = "client"
	cfg.Client.File = tempFile(t, 128)
	return cfg
}

func TestValidateClientOK(t *testing.T) {
	cfg := validClientConfig(t)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("合法客户端配置不应该报错: %v", err)
	}
}

func TestValidateServerOK(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mode = "server"
	cfg.Server.OutputDir = t.TempDir()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("合法服务器配置不应该报错: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(t *testing.T, cfg *Config)
		want   string
	}{
		{"缺少模式", func(t *testing.T, cfg *Config) { cfg.Mode = "" }, "运行模式"},
		{"无效模式", func(t *testing.T, cfg *Config) { cfg.Mode = "proxy" }, "无效的运行模式"},
		{"无效IP", func(t *testing.T, cfg *Config) { cfg.Addr = "999.1.1.1:8080" }, "IP 地址无效"},
		{"缺少端口", func(t *testing.T, cfg *Config) { cfg.Addr = "127.0.0.1" }, "地址格式无效"},
		{"特权端口", func(t *testing.T, cfg *Config) { cfg.Addr = "127.0.0.1:80" }, "端口无效"},
		{"端口越界", func(t *testing.T, cfg *Config) { cfg.Addr = "127.0.0.1:70000" }, "端口无效"},
		{"窗口为零", func(t *testing.T, cfg *Config) { cfg.Client.Window = 0 }, "窗口大小"},
		{"超时为零", func(t *testing.T, cfg *Config) { cfg.Client.TimeoutMs = 0 }, "重传超时"},
		{"缺少文件", func(t *testing.T, cfg *Config) { cfg.Client.File = "" }, "待发送文件"},
		{"文件不存在", func(t *testing.T, cfg *Config) { cfg.Client.File = "/no/such/file" }, "无法访问文件"},
		{"文件过大", func(t *testing.T, cfg *Config) { cfg.Client.File = tempFile(t, MaxFileSize+1) }, "文件太大"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validClientConfig(t)
			tc.mutate(t, cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("错误配置应该被拦截")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("错误信息不含 %q: %v", tc.want, err)
			}
		})
	}
}

func TestValidateServerBadOutputDir(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mode = "server"
	cfg.Server.OutputDir = "/no/such/dir"
	if err := cfg.Validate(); err == nil {
		t.Fatal("不存在的输出目录应该被拦截")
	}
}

func TestLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := WriteExampleConfig(path); err != nil {
		t.Fatalf("生成示例配置失败: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("加载示例配置失败: %v", err)
	}
	if cfg.Mode != "client" {
		t.Errorf("示例配置 Mode 不正确: %s", cfg.Mode)
	}
	if cfg.Client.Window != 3 || cfg.Client.TimeoutMs != 500 {
		t.Errorf("示例配置客户端参数不正确: %+v", cfg.Client)
	}
}

func TestLoadKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("mode: server\n"), 0o644); err != nil {
		t.Fatalf("写配置失败: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("加载失败: %v", err)
	}
	if cfg.Addr != DefaultAddr {
		t.Errorf("未指定字段应该保留默认值: got %s", cfg.Addr)
	}
	if cfg.Client.Window != 3 {
		t.Errorf("未指定字段应该保留默认值: got %d", cfg.Client.Window)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/no/such/config.yaml"); err == nil {
		t.Fatal("缺失的配置文件应该报错")
	}
}

func TestSplitAddr(t *testing.T) {
	host, port := SplitAddr("127.0.0.1:8080")
	if host != "127.0.0.1" || port != 8080 {
		t.Errorf("SplitAddr 结果不正确: %s %d", host, port)
	}
}
