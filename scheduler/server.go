package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/devskill-org/natural-time/cache"
	"github.com/devskill-org/natural-time/naturaltime"
	"github.com/devskill-org/natural-time/utils"
)

// WebServer provides HTTP endpoints for health checking, natural dates and almanacs
type WebServer struct {
	scheduler *AlmanacScheduler
	server    *http.Server
	port      int
	startTime time.Time
	upgrader  websocket.Upgrader
	clients   sync.Map
	broadcast chan []byte
	done      chan struct{}
	stopOnce  sync.Once
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string          `json:"status"`
	Timestamp string          `json:"timestamp"`
	Version   string          `json:"version,omitempty"`
	Scheduler SchedulerHealth `json:"scheduler"`
	System    SystemHealth    `json:"system"`
}

// SchedulerHealth represents scheduler-specific health information
type SchedulerHealth struct {
	IsRunning  bool        `json:"is_running"`
	HasAlmanac bool        `json:"has_almanac"`
	LastBuild  *time.Time  `json:"last_build,omitempty"`
	Latitude   float64     `json:"latitude"`
	Longitude  float64     `json:"longitude"`
	Cache      cache.Stats `json:"cache"`
}

// SystemHealth represents system-level health information
type SystemHealth struct {
	Uptime     string `json:"uptime"`
	Goroutines int    `json:"goroutines,omitempty"`
}

// wsMessage is the envelope of every websocket message
type wsMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// NewWebServer creates a new web server. It returns nil when port is not positive.
func NewWebServer(scheduler *AlmanacScheduler, port int) *WebServer {
	if port <= 0 {
		return nil
	}

	hs := &WebServer{
		scheduler: scheduler,
		port:      port,
		startTime: time.Now(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		broadcast: make(chan []byte, 256),
		done:      make(chan struct{}),
	}
	hs.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      hs.routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return hs
}

func (hs *WebServer) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", hs.healthHandler)
	mux.HandleFunc("/api/ready", hs.readinessHandler)
	mux.HandleFunc("/api/status", hs.statusHandler)
	mux.HandleFunc("/api/natural-date", hs.naturalDateHandler)
	mux.HandleFunc("/api/almanac", hs.almanacHandler)
	mux.HandleFunc("/api/cache/reset", hs.cacheResetHandler)
	mux.HandleFunc("/api/ws", hs.wsHandler)
	return mux
}

// Start starts the web server
func (hs *WebServer) Start() error {
	if hs == nil {
		return nil
	}

	go hs.handleBroadcasts()
	go hs.broadcastNaturalDate()

	go func() {
		if err := hs.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			hs.scheduler.logger.Printf("Web server error: %v", err)
		}
	}()

	return nil
}

// Stop gracefully stops the web server
func (hs *WebServer) Stop(ctx context.Context) error {
	if hs == nil {
		return nil
	}

	hs.stopOnce.Do(func() {
		close(hs.done)
	})

	hs.clients.Range(func(key, value any) bool {
		if conn, ok := key.(*websocket.Conn); ok {
			conn.Close()
		}
		return true
	})

	return hs.server.Shutdown(ctx)
}

// healthHandler handles the /api/health endpoint
func (hs *WebServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	health := hs.buildHealth()

	w.Header().Set("Content-Type", "application/json")
	if health.Status != "healthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(health); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// readinessHandler handles the /api/ready endpoint
func (hs *WebServer) readinessHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status := hs.scheduler.GetStatus()
	ready := status.IsRunning && status.HasAlmanac

	w.Header().Set("Content-Type", "application/json")
	if !ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(map[string]any{
		"ready":     ready,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// statusHandler handles the /api/status endpoint (detailed status)
func (hs *WebServer) statusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"scheduler_status": hs.scheduler.GetStatus(),
		"almanac":          hs.scheduler.GetLatestAlmanac(),
		"timestamp":        time.Now().UTC().Format(time.RFC3339),
	})
}

// naturalDateHandler handles /api/natural-date?t=&lon=
func (hs *WebServer) naturalDateHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	config := hs.scheduler.GetConfig()
	query := r.URL.Query()

	unixMs, err := utils.ParseInstant(query.Get("t"), hs.scheduler.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	lon, err := utils.ParseCoordinate(query.Get("lon"), config.Longitude)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	nd, err := hs.scheduler.engine.NaturalDate(unixMs, lon)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	hs.scheduler.debugf("Natural date %s for %s at %.4f", nd, utils.FormatUnixMilli(unixMs), lon)
	writeJSON(w, http.StatusOK, nd)
}

// almanacHandler handles /api/almanac?t=&lat=&lon=
func (hs *WebServer) almanacHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	config := hs.scheduler.GetConfig()
	query := r.URL.Query()

	unixMs, err := utils.ParseInstant(query.Get("t"), hs.scheduler.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	lat, err := utils.ParseCoordinate(query.Get("lat"), config.Latitude)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	lon, err := utils.ParseCoordinate(query.Get("lon"), config.Longitude)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	almanac, err := ComputeAlmanac(r.Context(), hs.scheduler.engine, unixMs, lat, lon)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, almanac)
}

// cacheResetHandler handles POST /api/cache/reset
func (hs *WebServer) cacheResetHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	hs.scheduler.runCacheReset()
	writeJSON(w, http.StatusOK, map[string]any{
		"cache":     hs.scheduler.engine.CacheStats(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// wsHandler handles WebSocket connections
func (hs *WebServer) wsHandler(w http.ResponseWriter, r *http.Request) {
	logger := hs.scheduler.logger

	conn, err := hs.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Printf("WebSocket upgrade error: %v", err)
		return
	}

	// Send initial data before registering so broadcasts never write concurrently
	if almanac := hs.scheduler.GetLatestAlmanac(); almanac != nil {
		if err := conn.WriteJSON(wsMessage{Type: "almanac_update", Data: almanac}); err != nil {
			logger.Printf("Failed to send initial almanac: %v", err)
		}
	}
	if msg, err := hs.naturalDateMessage(); err == nil {
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			logger.Printf("Failed to send initial natural date: %v", err)
		}
	}

	hs.clients.Store(conn, true)
	logger.Printf("New WebSocket client connected. Total clients: %d", hs.clientCount())

	defer func() {
		hs.clients.Delete(conn)
		conn.Close()
		logger.Printf("WebSocket client disconnected. Total clients: %d", hs.clientCount())
	}()

	// Read messages from client (ping/pong, close)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Printf("WebSocket error: %v", err)
			}
			break
		}
	}
}

// publish queues a message for all websocket clients
func (hs *WebServer) publish(msgType string, data any) {
	if hs == nil {
		return
	}

	message, err := json.Marshal(wsMessage{Type: msgType, Data: data})
	if err != nil {
		hs.scheduler.logger.Printf("Failed to marshal %s: %v", msgType, err)
		return
	}

	select {
	case hs.broadcast <- message:
	case <-hs.done:
	}
}

// handleBroadcasts sends messages to all connected clients
func (hs *WebServer) handleBroadcasts() {
	for {
		select {
		case message := <-hs.broadcast:
			hs.clients.Range(func(key, value any) bool {
				conn, ok := key.(*websocket.Conn)
				if !ok {
					return true
				}

				if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
					hs.scheduler.logger.Printf("WebSocket write error: %v", err)
					conn.Close()
					hs.clients.Delete(conn)
				}
				return true
			})
		case <-hs.done:
			return
		}
	}
}

// broadcastNaturalDate periodically pushes the live natural date
func (hs *WebServer) broadcastNaturalDate() {
	ticker := time.NewTicker(hs.scheduler.GetConfig().BroadcastInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if hs.clientCount() == 0 {
				continue
			}
			message, err := hs.naturalDateMessage()
			if err != nil {
				hs.scheduler.logger.Printf("Failed to build natural date: %v", err)
				continue
			}
			select {
			case hs.broadcast <- message:
			case <-hs.done:
				return
			}
		case <-hs.done:
			return
		}
	}
}

// naturalDateMessage encodes the current natural date at the configured longitude
func (hs *WebServer) naturalDateMessage() ([]byte, error) {
	config := hs.scheduler.GetConfig()
	nd, err := hs.scheduler.engine.NaturalDate(hs.scheduler.now().UnixMilli(), config.Longitude)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wsMessage{Type: "natural_date", Data: nd})
}

func (hs *WebServer) buildHealth() HealthResponse {
	status := hs.scheduler.GetStatus()
	config := hs.scheduler.GetConfig()

	health := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   "1.0.0",
		Scheduler: SchedulerHealth{
			IsRunning:  status.IsRunning,
			HasAlmanac: status.HasAlmanac,
			LastBuild:  status.LastBuild,
			Latitude:   config.Latitude,
			Longitude:  config.Longitude,
			Cache:      status.Cache,
		},
		System: SystemHealth{
			Uptime:     formatUptime(time.Since(hs.startTime)),
			Goroutines: runtime.NumGoroutine(),
		},
	}
	if !status.IsRunning {
		health.Status = "unhealthy"
	}
	return health
}

func (hs *WebServer) clientCount() int {
	count := 0
	hs.clients.Range(func(key, value any) bool {
		count++
		return true
	})
	return count
}

// Helper functions

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// statusFor maps engine errors to HTTP status codes
func statusFor(err error) int {
	var ve *naturaltime.ValidationError
	if errors.As(err, &ve) {
		return http.StatusBadRequest
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// formatUptime formats a duration as a string with seconds rounded to integer
func formatUptime(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
