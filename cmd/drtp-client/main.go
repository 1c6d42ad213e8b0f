// =============================================================================
// 文件: cmd/drtp-client/main.go
// 描述: DRTP 客户端入口 - 通过 Go-Back-N ARQ 发送文件
// =============================================================================
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/pkg/errors"

	"github.com/mrcgq/drtp/internal/arq"
	"github.com/mrcgq/drtp/internal/config"
	"github.com/mrcgq/drtp/internal/metrics"
	"github.com/mrcgq/drtp/internal/protocol"
	"github.com/mrcgq/drtp/internal/transfer"
)

var (
	Version   = "1.0.0"
	BuildTime = "unknown"
)

func main() {
	configPath := flag.String("c", "", "配置文件路径 (可选)")
	ip := flag.String("i", "", "服务器 IPv4 地址 (默认 127.0.0.1)")
	port := flag.Int("p", 0, "服务器端口 [1024,65535] (默认 8080)")
	file := flag.String("f", "", "待发送文件路径")
	window := flag.Int("w", 0, "滑动窗口大小 (默认 3)")
	timeoutMs := flag.Int("t", 0, "重传超时毫秒 (默认 500)")
	metricsListen := flag.String("m", "", "启用并监听 Prometheus 指标 (host:port)")
	showVersion := flag.Bool("v", false, "显示版本")
	genConfig := flag.Bool("gen-config", false, "生成示例配置文件")
	flag.Parse()

	if *showVersion {
		printVersion()
		return
	}

	if *genConfig {
		if err := config.WriteExampleConfig("config.example.yaml"); err != nil {
			fmt.Fprintf(os.Stderr, "[ERROR] 生成配置失败: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("已生成示例配置文件: config.example.yaml")
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[ERROR] 配置错误: %v\n", err)
		os.Exit(1)
	}

	// 命令行参数覆盖配置文件
	cfg.Mode = "client"
	if *ip != "" || *port != 0 {
		host, p := config.SplitAddr(cfg.Addr)
		if *ip != "" {
			host = *ip
		}
		if *port != 0 {
			p = *port
		}
		cfg.Addr = fmt.Sprintf("%s:%d", host, p)
	}
	if *file != "" {
		cfg.Client.File = *file
	}
	if *window != 0 {
		cfg.Client.Window = *window
	}
	if *timeoutMs != 0 {
		cfg.Client.TimeoutMs = *timeoutMs
	}
	if *metricsListen != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Listen = *metricsListen
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "[ERROR] 配置错误: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "[ERROR] 传输失败: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.DefaultConfig(), nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	fmt.Printf("[INFO] 已加载配置文件: %s\n", path)
	return cfg, nil
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	f, err := os.Open(cfg.Client.File)
	if err != nil {
		return errors.Wrap(err, "打开源文件失败")
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return errors.Wrap(err, "读取文件信息失败")
	}

	peer, err := net.ResolveUDPAddr("udp", cfg.Addr)
	if err != nil {
		return errors.Wrapf(err, "解析目标地址 %s 失败", cfg.Addr)
	}
	conn, err := net.ListenUDP("udp", nil)
	if err != nil {
		return errors.Wrap(err, "创建 UDP 套接字失败")
	}
	defer conn.Close()

	src := transfer.NewDisassembler(f, info.Size(), protocol.MaxPayloadSize)
	meta := &transfer.Metadata{
		Window: uint16(cfg.Client.Window),
		Size:   uint64(info.Size()),
		Name:   filepath.Base(cfg.Client.File),
	}
	sender := arq.NewSender(conn, peer, &arq.SenderConfig{
		WindowSize:       cfg.Client.Window,
		Timeout:          time.Duration(cfg.Client.TimeoutMs) * time.Millisecond,
		HandshakeRetries: cfg.Client.HandshakeRetries,
	}, src, meta)

	if cfg.Metrics.Enabled {
		ms := metrics.NewMetricsServer(cfg.Metrics.Listen, cfg.Metrics.Path, cfg.Metrics.HealthPath)
		ms.MustRegisterCollector(metrics.NewTransferCollector(sender))
		if err := ms.Start(); err != nil {
			return errors.Wrap(err, "启动指标服务失败")
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = ms.Stop(shutdownCtx)
		}()
		fmt.Printf("[INFO] 指标服务: http://%s%s\n", cfg.Metrics.Listen, cfg.Metrics.Path)
	}

	fmt.Printf("[INFO] DRTP 客户端 v%s\n", Version)
	fmt.Printf("[INFO] 目标: %s | 文件: %s (%d 字节) | 窗口: %d | 超时: %d ms\n",
		cfg.Addr, meta.Name, info.Size(), cfg.Client.Window, cfg.Client.TimeoutMs)

	start := time.Now()
	if err := sender.Run(ctx); err != nil {
		return err
	}
	elapsed := time.Since(start)

	fmt.Printf("[INFO] 传输完成: %d 字节 用时 %v\n", info.Size(), elapsed.Round(time.Millisecond))
	fmt.Printf("[INFO] 吞吐量: %.2f Mbps\n",
		transfer.ThroughputMbps(elapsed.Seconds(), info.Size()))
	fmt.Printf("[STATS] 发送段: %d | 重传: %d | 超时: %d | 收到 ACK: %d | 重复 ACK: %d\n",
		sender.GetSegmentsSent(), sender.GetRetransmits(), sender.GetTimeouts(),
		sender.GetAcksReceived(), sender.GetDupAcks())
	return nil
}

func printVersion() {
	fmt.Printf("DRTP Client v%s\n", Version)
	fmt.Printf("Build: %s\n", BuildTime)
	fmt.Printf("Go: %s\n", runtime.Version())
	fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
}
