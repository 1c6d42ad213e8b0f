// =============================================================================
// 文件: cmd/drtp-server/main.go
// 描述: DRTP 服务器入口 - 接收文件并按序重建
// =============================================================================
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/pkg/errors"

	"github.com/mrcgq/drtp/internal/arq"
	"github.com/mrcgq/drtp/internal/config"
	"github.com/mrcgq/drtp/internal/metrics"
	"github.com/mrcgq/drtp/internal/transfer"
)

var (
	Version   = "1.0.0"
	BuildTime = "unknown"
)

func main() {
	configPath := flag.String("c", "", "配置文件路径 (可选)")
	ip := flag.String("i", "", "监听 IPv4 地址 (默认 127.0.0.1)")
	port := flag.Int("p", 0, "监听端口 [1024,65535] (默认 8080)")
	outputDir := flag.String("o", "", "重建文件的输出目录 (默认当前目录)")
	discard := flag.Uint("d", 0, "测试用: 一次性丢弃指定序列号的数据段")
	keepServing := flag.Bool("keep", false, "完成一次传输后继续等待下一个客户端")
	metricsListen := flag.String("m", "", "启用并监听 Prometheus 指标 (host:port)")
	showVersion := flag.Bool("v", false, "显示版本")
	flag.Parse()

	if *showVersion {
		printVersion()
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[ERROR] 配置错误: %v\n", err)
		os.Exit(1)
	}

	// 命令行参数覆盖配置文件
	cfg.Mode = "server"
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
	if *outputDir != "" {
		cfg.Server.OutputDir = *outputDir
	}
	if *discard != 0 {
		cfg.Server.Discard = uint32(*discard)
	}
	if *keepServing {
		cfg.Server.Once = false
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
		fmt.Fprintf(os.Stderr, "[ERROR] 服务器退出: %v\n", err)
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

	laddr, err := net.ResolveUDPAddr("udp", cfg.Addr)
	if err != nil {
		return errors.Wrapf(err, "解析监听地址 %s 失败", cfg.Addr)
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return errors.Wrapf(err, "监听 %s 失败", cfg.Addr)
	}
	defer conn.Close()

	sink := func(meta *transfer.Metadata) (io.WriteCloser, error) {
		path := transfer.ResolvePath(cfg.Server.OutputDir, meta.Name)
		fmt.Printf("[INFO] 接收中: %s (%d 字节, 窗口 %d) -> %s\n",
			meta.Name, meta.Size, meta.Window, path)
		return os.Create(path)
	}

	rcfg := arq.DefaultReceiverConfig()
	rcfg.Once = cfg.Server.Once
	receiver := arq.NewReceiver(conn, rcfg, sink)

	if cfg.Server.Discard != 0 {
		receiver.SetDropFilter(arq.NewOrdinalDropFilter(cfg.Server.Discard))
		fmt.Printf("[INFO] 丢包注入已启用: 将丢弃一次序列号 %d\n", cfg.Server.Discard)
	}

	if cfg.Metrics.Enabled {
		ms := metrics.NewMetricsServer(cfg.Metrics.Listen, cfg.Metrics.Path, cfg.Metrics.HealthPath)
		ms.MustRegisterCollector(metrics.NewTransferCollector(receiver))
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

	fmt.Printf("[INFO] DRTP 服务器 v%s\n", Version)
	fmt.Printf("[INFO] 监听: %s | 输出目录: %s | 单次模式: %v\n",
		conn.LocalAddr(), cfg.Server.OutputDir, cfg.Server.Once)

	start := time.Now()
	if err := receiver.Run(ctx); err != nil {
		return err
	}
	elapsed := time.Since(start)

	if meta := receiver.Meta(); meta != nil {
		fmt.Printf("[INFO] 传输完成: %s (%d 字节) 用时 %v\n",
			meta.Name, meta.Size, elapsed.Round(time.Millisecond))
		fmt.Printf("[INFO] 吞吐量: %.2f Mbps\n",
			transfer.ThroughputMbps(elapsed.Seconds(), int64(meta.Size)))
	}
	fmt.Printf("[STATS] 交付段: %d | 发送 ACK: %d | 重复 ACK: %d | 乱序: %d | 校验丢弃: %d | 注入丢弃: %d\n",
		receiver.GetSegmentsDelivered(), receiver.GetAcksSent(), receiver.GetDupAcks(),
		receiver.GetOutOfOrder(), receiver.GetCorruptDropped(), receiver.GetInjectedDrops())
	return nil
}

func printVersion() {
	fmt.Printf("DRTP Server v%s\n", Version)
	fmt.Printf("Build: %s\n", BuildTime)
	fmt.Printf("Go: %s\n", runtime.Version())
	fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
}
