// =============================================================================
// 文件: internal/config/config.go
// 描述: 配置管理 - YAML 配置加载与启动前校验
// =============================================================================
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// 默认常量
const (
	DefaultAddr = "127.0.0.1:8080"

	// MaxFileSize 客户端可发送的文件大小上限
	MaxFileSize = 60_000_000

	// 端口必须落在非特权区间
	MinPort = 1024
	MaxPort = 65535
)

// Config 主配置
type Config struct {
	Mode string `yaml:"mode"` // server / client
	Addr string `yaml:"addr"` // 服务器监听地址 / 客户端目标地址

	Client  ClientConfig  `yaml:"client"`
	Server  ServerConfig  `yaml:"server"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// ClientConfig 客户端配置
type ClientConfig struct {
	File             string `yaml:"file"`              // 待发送文件路径
	Window           int    `yaml:"window"`            // 滑动窗口大小 N
	TimeoutMs        int    `yaml:"timeout_ms"`        // 固定重传超时 (毫秒)
	HandshakeRetries int    `yaml:"handshake_retries"` // SYN 重试上限
}

// ServerConfig 服务器配置
type ServerConfig struct {
	OutputDir string `yaml:"output_dir"` // 重建文件的输出目录
	Discard   uint32 `yaml:"discard"`    // 测试用: 一次性丢弃的序列号 (0 = 关闭)
	Once      bool   `yaml:"once"`       // 完成一次传输后退出
}

// MetricsConfig 监控配置
type MetricsConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Listen     string `yaml:"listen"`
	Path       string `yaml:"path"`
	HealthPath string `yaml:"health_path"`
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		Mode: "",
		Addr: DefaultAddr,
		Client: ClientConfig{
			Window:           3,
			TimeoutMs:        500,
			HandshakeRetries: 5,
		},
		Server: ServerConfig{
			OutputDir: ".",
			Discard:   0,
			Once:      true,
		},
		Metrics: MetricsConfig{
			Enabled:    false,
			Listen:     "127.0.0.1:9090",
			Path:       "/metrics",
			HealthPath: "/health",
		},
	}
}

// Load 读取并校验配置文件
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置失败: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	return cfg, nil
}

// Validate 启动前校验，尽早拦截错误配置
func (c *Config) Validate() error {
	switch c.Mode {
	case "server", "client":
	case "":
		return fmt.Errorf("必须指定运行模式: server 或 client")
	default:
		return fmt.Errorf("无效的运行模式: %s", c.Mode)
	}

	if err := validateAddr(c.Addr); err != nil {
		return err
	}

	if c.Mode == "client" {
		return c.validateClient()
	}
	return c.validateServer()
}

func (c *Config) validateClient() error {
	if c.Client.Window < 1 {
		return fmt.Errorf("窗口大小必须 >= 1: got %d", c.Client.Window)
	}
	if c.Client.TimeoutMs <= 0 {
		return fmt.Errorf("重传超时必须为正: got %d ms", c.Client.TimeoutMs)
	}
	if c.Client.HandshakeRetries < 1 {
		return fmt.Errorf("握手重试次数必须 >= 1: got %d", c.Client.HandshakeRetries)
	}

	if c.Client.File == "" {
		return fmt.Errorf("客户端必须指定待发送文件 (-f)")
	}
	info, err := os.Stat(c.Client.File)
	if err != nil {
		return fmt.Errorf("无法访问文件 %s: %w", c.Client.File, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s 是目录，不是文件", c.Client.File)
	}
	if info.Size() > MaxFileSize {
		return fmt.Errorf("文件太大: %d 字节，上限 %d", info.Size(), MaxFileSize)
	}
	return nil
}

func (c *Config) validateServer() error {
	info, err := os.Stat(c.Server.OutputDir)
	if err != nil {
		return fmt.Errorf("无法访问输出目录 %s: %w", c.Server.OutputDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s 不是目录", c.Server.OutputDir)
	}

	if c.Metrics.Enabled {
		if err := validateAddr(c.Metrics.Listen); err != nil {
			return fmt.Errorf("metrics 监听地址无效: %w", err)
		}
	}
	return nil
}

// validateAddr 校验 host:port 形式的地址
func validateAddr(addr string) error {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("地址格式无效 (host:port): %s", addr)
	}

	if host != "" && net.ParseIP(host) == nil {
		return fmt.Errorf("IP 地址无效: %s (示例: 127.0.0.1)", host)
	}

	port, err := strconv.Atoi(portStr)
	if err != nil || port < MinPort || port > MaxPort {
		return fmt.Errorf("端口无效: %s，必须在 [%d,%d] 区间", portStr, MinPort, MaxPort)
	}
	return nil
}

// SplitAddr 拆出已校验地址的主机与端口
func SplitAddr(addr string) (string, int) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0
	}
	port, _ := strconv.Atoi(portStr)
	return host, port
}

// WriteExampleConfig 生成示例配置文件
func WriteExampleConfig(path string) error {
	example := strings.TrimLeft(`
# DRTP 文件传输配置示例
mode: client            # server / client
addr: 127.0.0.1:8080    # 服务器监听地址 / 客户端目标地址

client:
  file: ./example.bin   # 待发送文件
  window: 3             # 滑动窗口大小 N
  timeout_ms: 500       # 固定重传超时 (毫秒)
  handshake_retries: 5  # SYN 重试上限

server:
  output_dir: .         # 重建文件的输出目录
  discard: 0            # 测试用: 一次性丢弃的序列号 (0 = 关闭)
  once: true            # 完成一次传输后退出

metrics:
  enabled: false
  listen: 127.0.0.1:9090
  path: /metrics
  health_path: /health
`, "\n")
	return os.WriteFile(path, []byte(example), 0o644)
}
