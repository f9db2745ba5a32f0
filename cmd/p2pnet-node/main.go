// Package main 提供 p2pnet-node 命令行入口
//
// 启动一个节点，可选连接到其他节点，并把标准输入的每一行发送给所有已建立的连接：
//
//	p2pnet-node -listen /ip4/0.0.0.0/tcp/4001
//	p2pnet-node -listen /ip4/0.0.0.0/tcp/4002 -connect /ip4/127.0.0.1/tcp/4001
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dep2p/go-p2pnet"
	"github.com/dep2p/go-p2pnet/config"
	netif "github.com/dep2p/go-p2pnet/pkg/interfaces/network"
	"github.com/dep2p/go-p2pnet/pkg/lib/log"
)

var logger = log.Logger("p2pnet/cmd")

// ═══════════════════════════════════════════════════════════════════════════
// 命令行参数
// ═══════════════════════════════════════════════════════════════════════════
//
//	命令行参数：运行时覆盖（「这次运行」想怎么跑）
//	JSON 配置文件：持久化配置（「这个节点」的固定配置）
//
// ═══════════════════════════════════════════════════════════════════════════
var (
	configFile   = flag.String("config", "", "配置文件路径")
	identityFile = flag.String("identity", "", "身份密钥文件路径（不存在时生成）")
	listenAddrs  = flag.String("listen", "", "监听地址，逗号分隔（覆盖配置文件）")
	metricsAddr  = flag.String("metrics", "", "/metrics 端点地址，如 127.0.0.1:9100")
	logLevel     = flag.String("log-level", "", "日志级别 (debug/info/warn/error)")
	writeConfig  = flag.String("write-config", "", "把生效的配置写入文件后退出")

	connects connectTargets
)

func init() {
	flag.Var(&connects, "connect", "启动后连接的节点 [<node-id>@]<multiaddr>，可重复")
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flag.Parse()

	cfg, err := buildConfig()
	if err != nil {
		return fmt.Errorf("配置错误: %w", err)
	}
	if *writeConfig != "" {
		return cfg.SaveFile(*writeConfig)
	}

	logFile, err := setupLogging(cfg.Log)
	if err != nil {
		return err
	}
	if logFile != nil {
		defer func() { _ = logFile.Close() }()
	}

	priv, pub, err := p2pnet.LoadIdentity(cfg.Identity)
	if err != nil {
		return fmt.Errorf("加载身份失败: %w", err)
	}
	addrs, err := p2pnet.ParseListenAddrs(cfg)
	if err != nil {
		return err
	}

	opts := []p2pnet.Option{p2pnet.WithConfig(cfg)}
	var reg *prometheus.Registry
	if cfg.Metrics.Enable {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		opts = append(opts, p2pnet.WithRegisterer(reg))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	node, incoming, err := p2pnet.Init(ctx, netif.NetConfig{
		PrivateKey:  priv,
		PublicKey:   pub,
		ListenAddrs: addrs,
	}, opts...)
	if err != nil {
		return fmt.Errorf("启动失败: %w", err)
	}
	defer func() { _ = node.Close() }()

	printNodeInfo(node)

	if reg != nil && cfg.Metrics.ListenAddr != "" {
		srv := serveMetrics(cfg.Metrics.ListenAddr, reg)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	for _, t := range connects {
		node.Connect(t.id, t.addr, nil, nil)
	}

	c := newChat(os.Stdout)
	go c.readInput(ctx, os.Stdin)

	fmt.Println("节点已启动，输入文字回车发送，按 Ctrl+C 退出")
	err = c.serve(ctx, incoming)
	fmt.Println("\n正在关闭节点...")
	if errors.Is(err, context.Canceled) || errors.Is(err, netif.ErrStreamClosed) {
		return nil
	}
	return err
}

// buildConfig 构建生效的配置
//
// 优先级（从高到低）：命令行参数、环境变量（P2PNET_*）、配置文件、默认值。
func buildConfig() (*config.Config, error) {
	cfg := config.NewConfig()
	if *configFile != "" {
		loaded, err := config.LoadFile(*configFile)
		if err != nil {
			return nil, fmt.Errorf("加载配置文件失败: %w", err)
		}
		cfg = loaded
	}

	applyEnvOverrides(cfg)

	if *identityFile != "" {
		cfg.Identity.KeyFile = *identityFile
	}
	if *listenAddrs != "" {
		cfg.ListenAddrs = splitAndTrim(*listenAddrs, ",")
	}
	if *metricsAddr != "" {
		cfg.Metrics.Enable = true
		cfg.Metrics.ListenAddr = *metricsAddr
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setupLogging 按配置设置日志输出
func setupLogging(c config.LogConfig) (*os.File, error) {
	level, ok := log.ParseLevel(c.Level)
	if !ok {
		return nil, fmt.Errorf("无效的日志级别: %q", c.Level)
	}
	log.SetJSON(c.Format == "json")

	if c.File == "" {
		log.SetOutputWithLevel(os.Stderr, level)
		return nil, nil
	}
	file, err := os.OpenFile(c.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("打开日志文件失败: %w", err)
	}
	log.SetOutputWithLevel(file, level)
	return file, nil
}

// serveMetrics 启动 /metrics HTTP 端点
func serveMetrics(addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("指标端点退出", "addr", addr, "error", err)
		}
	}()
	logger.Info("指标端点已启动", "addr", addr)
	return srv
}

func printNodeInfo(node *p2pnet.Node) {
	fmt.Printf("节点 ID: %s\n", node.LocalID())
	for _, a := range node.ListenAddrs() {
		fmt.Printf("  监听: %s\n", a)
	}
}

func splitAndTrim(s, sep string) []string {
	parts := strings.Split(s, sep)
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			result = append(result, p)
		}
	}
	return result
}
