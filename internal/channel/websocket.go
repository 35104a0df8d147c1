package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"bizassist/internal/metrics"
)

const (
	kpiEventName = "kpi_update"
	writeWait    = 10 * time.Second
)

// KPIMetric is one entry of a dashboard snapshot.
type KPIMetric struct {
	Value       float64 `json:"value"`
	Trend       string  `json:"trend"` // up | down | neutral
	Description string  `json:"description"`
}

// KPISnapshot maps a metric key to its current value.
type KPISnapshot map[string]KPIMetric

type kpiEvent struct {
	Event string      `json:"event"`
	Data  KPISnapshot `json:"data"`
}

type RealtimeConfig struct {
	Host        string
	Port        int
	Path        string // websocket endpoint path (default: /)
	MinInterval time.Duration
	MaxInterval time.Duration

	// Snapshot produces the payload of one update; Interval picks the period
	// of a new connection. Both default to the synthetic dashboard feed.
	Snapshot func() KPISnapshot
	Interval func() time.Duration

	Logger *slog.Logger
}

// Realtime pushes periodic KPI snapshots to every connected dashboard. Each
// connection runs its own ticker, stopped when the connection ends.
type Realtime struct {
	host     string
	port     int
	path     string
	snapshot func() KPISnapshot
	interval func() time.Duration
	logger   *slog.Logger
	server   *http.Server

	active  atomic.Int64
	mu      sync.Mutex
	clients map[string]*websocket.Conn
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // dashboards are served from another origin
	},
}

func NewRealtime(cfg RealtimeConfig) *Realtime {
	if cfg.Path == "" {
		cfg.Path = "/"
	}
	if cfg.Port == 0 {
		cfg.Port = 3001
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = 7 * time.Second
	}
	if cfg.MaxInterval < cfg.MinInterval {
		cfg.MaxInterval = cfg.MinInterval
	}
	if cfg.Snapshot == nil {
		cfg.Snapshot = SyntheticSnapshot
	}
	if cfg.Interval == nil {
		minI, maxI := cfg.MinInterval, cfg.MaxInterval
		cfg.Interval = func() time.Duration { return randomInterval(minI, maxI) }
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Realtime{
		host:     cfg.Host,
		port:     cfg.Port,
		path:     cfg.Path,
		snapshot: cfg.Snapshot,
		interval: cfg.Interval,
		logger:   cfg.Logger,
		clients:  make(map[string]*websocket.Conn),
	}
}

// Active returns the number of open connections.
func (rt *Realtime) Active() int { return int(rt.active.Load()) }

func (rt *Realtime) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(rt.path, rt.handleUpgrade)
	return mux
}

// Start serves the websocket endpoint until ctx is cancelled.
func (rt *Realtime) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", rt.host, rt.port)
	rt.server = &http.Server{
		Addr:              addr,
		Handler:           rt.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	rt.logger.Info("realtime server starting", "addr", addr, "path", rt.path)

	errCh := make(chan error, 1)
	go func() {
		if err := rt.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		rt.closeAllClients()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return rt.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("realtime server: %w", err)
	}
}

func (rt *Realtime) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		rt.logger.Error("websocket upgrade failed", "err", err)
		return
	}

	id := uuid.NewString()
	interval := rt.interval()
	rt.mu.Lock()
	rt.clients[id] = conn
	rt.mu.Unlock()
	rt.active.Add(1)
	metrics.RealtimeConnections.Inc()

	logger := rt.logger.With("client_id", id)
	logger.Info("realtime client connected", "interval", interval)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		rt.publish(ctx, conn, interval, logger)
	}()

	// The read loop only detects disconnects; inbound frames are ignored.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("websocket read error", "err", err)
			}
			break
		}
	}

	cancel()
	<-done
	conn.Close()

	rt.mu.Lock()
	delete(rt.clients, id)
	rt.mu.Unlock()
	rt.active.Add(-1)
	metrics.RealtimeConnections.Dec()
	logger.Info("realtime client disconnected")
}

// publish sends a snapshot every interval until ctx is done or a write fails.
func (rt *Realtime) publish(ctx context.Context, conn *websocket.Conn, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(kpiEvent{Event: kpiEventName, Data: rt.snapshot()}); err != nil {
				logger.Debug("websocket write failed", "err", err)
				conn.Close()
				return
			}
		}
	}
}

func (rt *Realtime) closeAllClients() {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	for _, conn := range rt.clients {
		conn.Close()
	}
}

func randomInterval(minI, maxI time.Duration) time.Duration {
	if maxI <= minI {
		return minI
	}
	return minI + rand.N(maxI-minI)
}

// SyntheticSnapshot returns a randomized dashboard snapshot.
func SyntheticSnapshot() KPISnapshot {
	trend := func(threshold float64) string {
		if rand.Float64() > threshold {
			return "up"
		}
		return "down"
	}
	return KPISnapshot{
		"totalRevenue": {
			Value:       rand.Float64() * 20000,
			Trend:       trend(0.5),
			Description: "Updated: " + time.Now().Format("3:04:05 PM"),
		},
		"pendingOrders": {
			Value:       float64(rand.IntN(50)),
			Trend:       "neutral",
			Description: fmt.Sprintf("%d high priority", rand.IntN(10)),
		},
		"openSupportTickets": {
			Value:       float64(rand.IntN(20)),
			Trend:       trend(0.7),
			Description: fmt.Sprintf("%d critical", rand.IntN(5)),
		},
		"completedTasks": {
			Value:       float64(rand.IntN(150)),
			Trend:       "up",
			Description: "This week",
		},
	}
}
