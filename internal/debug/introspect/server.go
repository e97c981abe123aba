package introspect

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/pprof"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dep2p/go-msgrouter/internal/core/metrics"
	"github.com/dep2p/go-msgrouter/internal/core/router"
	"github.com/dep2p/go-msgrouter/internal/util/logger"
)

var log = logger.Logger("introspect")

// DefaultAddr 默认监听地址
const DefaultAddr = "127.0.0.1:6060"

// ============================================================================
//                              配置
// ============================================================================

// Config 服务配置
type Config struct {
	// Addr 监听地址，默认 "127.0.0.1:6060"
	Addr string

	// Router 可选的路由器
	Router *router.Router

	// Child 子路由器模式下的子路由器
	Child *router.ChildRouter

	// Metrics 可选的指标
	Metrics *metrics.Metrics

	// Gatherer 为非 nil 时提供 /metrics 端点
	Gatherer prometheus.Gatherer

	// CustomHandlers 自定义处理器
	CustomHandlers map[string]http.HandlerFunc
}

// ============================================================================
//                              Server
// ============================================================================

// Server 本地自省 HTTP 服务
type Server struct {
	config Config

	// HTTP 服务器
	server   *http.Server
	listener net.Listener

	// 状态
	running   bool
	startTime time.Time

	mu sync.Mutex
}

// New 创建自省服务
func New(cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}

	return &Server{
		config: cfg,
	}
}

// Start 启动服务
func (s *Server) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	mux := http.NewServeMux()

	// 自省端点
	mux.HandleFunc("/debug/introspect", s.handleIntrospect)
	mux.HandleFunc("/debug/introspect/router", s.handleRouter)
	mux.HandleFunc("/debug/introspect/routes", s.handleRoutes)
	mux.HandleFunc("/debug/introspect/traffic", s.handleTraffic)
	mux.HandleFunc("/debug/introspect/runtime", s.handleRuntime)

	if s.config.Gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.config.Gatherer, promhttp.HandlerOpts{}))
	}

	// pprof 端点
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	mux.HandleFunc("/health", s.handleHealth)

	for path, handler := range s.config.CustomHandlers {
		mux.HandleFunc(path, handler)
	}

	listener, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}
	s.listener = listener

	s.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error("自省服务异常退出", "error", err)
		}
	}()

	s.running = true
	s.startTime = time.Now()
	log.Info("自省服务已启动", "addr", listener.Addr().String())
	return nil
}

// Stop 停止服务
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		log.Error("关闭自省服务失败", "error", err)
		return err
	}

	s.running = false
	log.Info("自省服务已停止")
	return nil
}

// Addr 返回实际监听地址
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.config.Addr
}

// ============================================================================
//                              响应结构
// ============================================================================

// IntrospectResponse 完整诊断响应
type IntrospectResponse struct {
	Timestamp time.Time    `json:"timestamp"`
	Uptime    string       `json:"uptime"`
	Router    *RouterInfo  `json:"router,omitempty"`
	Traffic   *TrafficInfo `json:"traffic,omitempty"`
	Runtime   *RuntimeInfo `json:"runtime,omitempty"`
}

// RouterInfo 路由器状态
type RouterInfo struct {
	Mode             string `json:"mode"`
	Stopped          bool   `json:"stopped"`
	Workers          int    `json:"workers"`
	QueueLength      int    `json:"queue_length"`
	RoutingTableSize int    `json:"routing_table_size"`

	// 子路由器
	IncomingAddress string `json:"incoming_address,omitempty"`
	Attached        bool   `json:"attached,omitempty"`
	PendingCalls    int    `json:"pending_calls,omitempty"`
}

// RouteInfo 路由表记录
type RouteInfo struct {
	ParticipantID string     `json:"participant_id"`
	Address       string     `json:"address"`
	Global        bool       `json:"global"`
	Sticky        bool       `json:"sticky,omitempty"`
	RegisteredAt  time.Time  `json:"registered_at"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

// TrafficInfo 消息统计
type TrafficInfo struct {
	RoutedIn         int64   `json:"routed_in"`
	RoutedOut        int64   `json:"routed_out"`
	PayloadRateIn    float64 `json:"payload_rate_in"`
	PayloadRateOut   float64 `json:"payload_rate_out"`
	TransmitAttempts int64   `json:"transmit_attempts"`
	TransmitFailures int64   `json:"transmit_failures"`
	Retries          int64   `json:"retries"`
}

// RuntimeInfo 运行时信息
type RuntimeInfo struct {
	GoVersion    string `json:"go_version"`
	NumGoroutine int    `json:"num_goroutine"`
	NumCPU       int    `json:"num_cpu"`
	MemAlloc     uint64 `json:"mem_alloc"`
	MemSys       uint64 `json:"mem_sys"`
	NumGC        uint32 `json:"num_gc"`
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    string    `json:"uptime,omitempty"`
}

// ============================================================================
//                              HTTP 处理器
// ============================================================================

// handleIntrospect 处理完整诊断请求
func (s *Server) handleIntrospect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.writeJSON(w, IntrospectResponse{
		Timestamp: time.Now(),
		Uptime:    time.Since(s.startTime).String(),
		Router:    s.collectRouterInfo(),
		Traffic:   s.collectTrafficInfo(),
		Runtime:   s.collectRuntimeInfo(),
	})
}

// handleRouter 处理路由器状态请求
func (s *Server) handleRouter(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	info := s.collectRouterInfo()
	if info == nil {
		http.Error(w, "Router info not available", http.StatusServiceUnavailable)
		return
	}
	s.writeJSON(w, info)
}

// handleRoutes 处理路由表请求
func (s *Server) handleRoutes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	routes := s.collectRoutes()
	if routes == nil {
		http.Error(w, "Routing table not available", http.StatusServiceUnavailable)
		return
	}
	s.writeJSON(w, routes)
}

// handleTraffic 处理消息统计请求
func (s *Server) handleTraffic(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	info := s.collectTrafficInfo()
	if info == nil {
		info = &TrafficInfo{} // 关闭指标时返回空数据
	}
	s.writeJSON(w, info)
}

// handleRuntime 处理运行时信息请求
func (s *Server) handleRuntime(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, s.collectRuntimeInfo())
}

// handleHealth 处理健康检查请求
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	health := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Uptime:    time.Since(s.startTime).String(),
	}

	switch {
	case s.config.Router == nil:
		health.Status = "degraded"
	case routerStopped(s.config.Router):
		health.Status = "stopped"
	}

	s.writeJSON(w, health)
}

// ============================================================================
//                              数据收集
// ============================================================================

// collectRouterInfo 收集路由器状态
func (s *Server) collectRouterInfo() *RouterInfo {
	rt := s.config.Router
	if rt == nil {
		return nil
	}

	info := &RouterInfo{
		Mode:             "root",
		Stopped:          routerStopped(rt),
		Workers:          rt.Workers(),
		QueueLength:      rt.QueueLen(),
		RoutingTableSize: rt.RoutingTable().Len(),
	}
	if child := s.config.Child; child != nil {
		info.Mode = "child"
		info.IncomingAddress = child.IncomingAddress().String()
		info.Attached = child.Attached()
		info.PendingCalls = child.PendingCalls()
	}
	return info
}

// collectRoutes 收集路由表，按参与者 ID 排序
func (s *Server) collectRoutes() []RouteInfo {
	if s.config.Router == nil {
		return nil
	}

	entries := s.config.Router.RoutingTable().Snapshot()
	routes := make([]RouteInfo, 0, len(entries))
	for _, e := range entries {
		ri := RouteInfo{
			ParticipantID: e.ParticipantID,
			Address:       e.Address.String(),
			Global:        e.IsGloballyVisible,
			Sticky:        e.IsSticky,
			RegisteredAt:  e.RegisteredAt,
		}
		if !e.ExpiryDate.IsZero() {
			expiry := e.ExpiryDate
			ri.ExpiresAt = &expiry
		}
		routes = append(routes, ri)
	}
	sort.Slice(routes, func(i, j int) bool {
		return routes[i].ParticipantID < routes[j].ParticipantID
	})
	return routes
}

// collectTrafficInfo 收集消息统计
func (s *Server) collectTrafficInfo() *TrafficInfo {
	if s.config.Metrics == nil {
		return nil
	}

	st := s.config.Metrics.Snapshot()
	return &TrafficInfo{
		RoutedIn:         st.RoutedIn,
		RoutedOut:        st.RoutedOut,
		PayloadRateIn:    st.PayloadRateIn,
		PayloadRateOut:   st.PayloadRateOut,
		TransmitAttempts: st.TransmitAttempts,
		TransmitFailures: st.TransmitFailures,
		Retries:          st.Retries,
	}
}

// collectRuntimeInfo 收集运行时信息
func (s *Server) collectRuntimeInfo() *RuntimeInfo {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return &RuntimeInfo{
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
		NumCPU:       runtime.NumCPU(),
		MemAlloc:     memStats.Alloc,
		MemSys:       memStats.Sys,
		NumGC:        memStats.NumGC,
	}
}

// ============================================================================
//                              辅助方法
// ============================================================================

func routerStopped(r *router.Router) bool {
	select {
	case <-r.Done():
		return true
	default:
		return false
	}
}

// writeJSON 写入 JSON 响应
func (s *Server) writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		log.Error("JSON 编码失败", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
