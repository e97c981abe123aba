// Package main 提供 msgrouter 演示命令
//
// 在同一进程中启动一个根路由器与若干子路由器，子路由器通过进程内传输连接父路由器，
// 然后发送一批请求与一条组播，打印统计后等待退出信号。
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dep2p/go-msgrouter"
	"github.com/dep2p/go-msgrouter/internal/core/loopback"
	"github.com/dep2p/go-msgrouter/internal/util/logger"
	"github.com/dep2p/go-msgrouter/pkg/types"
)

var log = logger.Logger("cmd")

// ═══════════════════════════════════════════════════════════════════════════
// 命令行参数
// ═══════════════════════════════════════════════════════════════════════════
var (
	configFile = flag.String("config", "", "配置文件路径（JSON）")
	preset     = flag.String("preset", "", "预设配置 (minimal/server/testing)")
	workers    = flag.Int("workers", 0, "并发发送数（0 = 使用配置）")
	children   = flag.Int("children", 2, "子路由器数量")
	messages   = flag.Int("messages", 100, "每个子路由器发送的请求数")
	ttl        = flag.Duration("ttl", time.Minute, "消息有效期")
	duration   = flag.Duration("duration", 0, "运行时长（0 = 等待 Ctrl+C）")
	logFile    = flag.String("log", "", "日志文件路径")
	fxLog      = flag.Bool("fx-log", false, "输出 Fx 容器日志")
	inspect    = flag.String("introspect", "", "根路由器诊断服务地址（如 127.0.0.1:6060，空 = 不启用）")

	showVersion = flag.Bool("version", false, "显示版本信息")
)

const (
	// backendID 根路由器上的后端参与者
	backendID = "backend"

	// newsPattern 子路由器参与者订阅的组播模式
	newsPattern = "backend/news/+"

	// newsID 后端发布的组播 ID
	newsID = "backend/news/eu"
)

var rootAddr = &types.WebSocketAddress{Protocol: "ws", Host: "root", Port: 4242, Path: "/"}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flag.Parse()

	if *showVersion {
		fmt.Println(msgrouter.VersionInfo())
		return nil
	}

	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("打开日志文件失败: %w", err)
		}
		defer func() { _ = f.Close() }()
		logger.SetOutput(f)
	}

	opts, err := buildOptions()
	if err != nil {
		return fmt.Errorf("配置错误: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("📦 %s\n", msgrouter.VersionInfo())
	log.Info("启动 msgrouter 演示", "version", msgrouter.Version, "children", *children)

	d, err := newDemo(ctx, opts)
	if err != nil {
		return err
	}
	defer d.close()

	start := time.Now()
	if err := d.exchange(ctx); err != nil {
		return err
	}
	d.printStats(time.Since(start))

	return waitForExit(ctx)
}

// buildOptions 构建选项，命令行参数覆盖配置文件
func buildOptions() ([]msgrouter.Option, error) {
	var opts []msgrouter.Option
	if *configFile != "" {
		opts = append(opts, msgrouter.WithConfigFile(*configFile))
	}
	if *preset != "" {
		opts = append(opts, msgrouter.WithPreset(*preset))
	}
	if *workers > 0 {
		opts = append(opts, msgrouter.WithMaxParallelSends(*workers))
	}
	if *fxLog {
		zl, err := zap.NewDevelopment()
		if err != nil {
			return nil, err
		}
		opts = append(opts, msgrouter.WithFxLogging(zl))
	}
	if *children < 0 || *messages < 0 {
		return nil, fmt.Errorf("children and messages must be >= 0")
	}
	return opts, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// 演示拓扑
// ═══════════════════════════════════════════════════════════════════════════

type demo struct {
	root     *msgrouter.Node
	children []*msgrouter.Node

	requests atomic.Int64
	news     atomic.Int64
}

// newDemo 启动根路由器与子路由器并连接
func newDemo(ctx context.Context, opts []msgrouter.Option) (*demo, error) {
	lb := loopback.NewTransport()
	d := &demo{}

	rootOpts := append(opts[:len(opts):len(opts)],
		msgrouter.WithStubFactory(types.KindWebSocketClient, lb),
	)
	if *inspect != "" {
		rootOpts = append(rootOpts, msgrouter.WithIntrospect(*inspect))
	}
	root, err := msgrouter.Start(ctx, rootOpts...)
	if err != nil {
		return nil, fmt.Errorf("启动根路由器失败: %w", err)
	}
	d.root = root
	lb.Bind(rootAddr, root)
	if addr := root.IntrospectAddr(); addr != "" {
		fmt.Printf("🔍 诊断服务: http://%s/debug/introspect\n", addr)
	}

	_, err = root.RegisterParticipant(ctx, backendID, msgrouter.DispatcherFunc(func(*msgrouter.Message) {
		d.requests.Add(1)
	}))
	if err != nil {
		d.close()
		return nil, err
	}

	for i := 0; i < *children; i++ {
		incoming := &types.WebSocketClientAddress{ID: fmt.Sprintf("child-%d", i)}
		child, err := msgrouter.Start(ctx, append(opts[:len(opts):len(opts)],
			msgrouter.WithStubFactory(types.KindWebSocket, lb),
			msgrouter.WithIncomingAddress(incoming),
		)...)
		if err != nil {
			d.close()
			return nil, fmt.Errorf("启动子路由器失败: %w", err)
		}
		d.children = append(d.children, child)
		lb.Bind(incoming, child)

		// 连接前注册，连接时重放到根路由器
		appID := appParticipant(i)
		if _, err := child.RegisterParticipant(ctx, appID, msgrouter.DispatcherFunc(func(*msgrouter.Message) {
			d.news.Add(1)
		})); err != nil {
			d.close()
			return nil, err
		}
		if err := child.AddMulticastReceiver(ctx, newsPattern, appID, backendID); err != nil {
			d.close()
			return nil, err
		}
		if err := child.SetParentRouter(ctx, root.AsParent(), rootAddr, fmt.Sprintf("proxy-%d", i)); err != nil {
			d.close()
			return nil, fmt.Errorf("连接父路由器失败: %w", err)
		}
	}

	log.Info("拓扑已建立", "children", len(d.children))
	return d, nil
}

// exchange 各子路由器并发发送请求，根路由器发布一条组播，等待全部送达
func (d *demo) exchange(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for i, child := range d.children {
		g.Go(func() error {
			for n := 0; n < *messages; n++ {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				msg, err := msgrouter.NewMessageBuilder().
					From(appParticipant(i)).
					To(backendID).
					OfType(msgrouter.MessageTypeRequest).
					ExpiresAt(time.Now().Add(*ttl)).
					WithPayload([]byte(fmt.Sprintf("request %d", n))).
					Build()
				if err != nil {
					return err
				}
				if err := child.Route(msg); err != nil {
					return fmt.Errorf("child %d: %w", i, err)
				}
			}
			return nil
		})
	}
	g.Go(func() error {
		msg, err := msgrouter.NewMessageBuilder().
			From(backendID).
			To(newsID).
			OfType(msgrouter.MessageTypeMulticast).
			ExpiresAt(time.Now().Add(*ttl)).
			WithPayload([]byte("news")).
			Build()
		if err != nil {
			return err
		}
		return d.root.Route(msg)
	})
	if err := g.Wait(); err != nil {
		return err
	}

	wantRequests := int64(len(d.children) * *messages)
	wantNews := int64(len(d.children))
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.After(*ttl)
	for d.requests.Load() < wantRequests || d.news.Load() < wantNews {
		select {
		case <-ctx.Done():
			return nil
		case <-deadline:
			log.Warn("等待送达超时", "requests", d.requests.Load(), "news", d.news.Load())
			return nil
		case <-ticker.C:
		}
	}
	return nil
}

func (d *demo) printStats(elapsed time.Duration) {
	s := d.root.Stats()
	fmt.Println("═══════════════════════════════════════════")
	fmt.Printf("  请求送达:   %d\n", d.requests.Load())
	fmt.Printf("  组播送达:   %d\n", d.news.Load())
	fmt.Printf("  耗时:       %s\n", elapsed.Round(time.Millisecond))
	fmt.Printf("  根路由器:   入站 %d / 出站 %d / 发送 %d / 重试 %d\n",
		s.RoutedIn, s.RoutedOut, s.TransmitAttempts, s.Retries)
	fmt.Printf("  路由表:     %d 项，队列 %d，worker %d\n", s.RoutingTableSize, s.QueueLength, s.Workers)
	fmt.Println("═══════════════════════════════════════════")
}

// close 先关闭子路由器再关闭根路由器
func (d *demo) close() {
	for _, child := range d.children {
		if err := child.Close(); err != nil {
			log.Warn("关闭子路由器出错", "err", err)
		}
	}
	if d.root != nil {
		if err := d.root.Close(); err != nil {
			log.Warn("关闭根路由器出错", "err", err)
		}
	}
}

func appParticipant(i int) string {
	return fmt.Sprintf("app-%d", i)
}

// waitForExit 等待退出信号或运行时长结束
func waitForExit(ctx context.Context) error {
	if *duration > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(*duration):
		}
	} else {
		fmt.Println("按 Ctrl+C 退出")
		<-ctx.Done()
	}
	fmt.Println("\n正在关闭...")
	return nil
}
