// Package webadmin is the HTTP admin surface: query and allowlist
// CRUD, config, status, metrics and the live-dashboard websocket.
package webadmin

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/killmongerinheret/vinted-watch/internal/governor"
	"github.com/killmongerinheret/vinted-watch/internal/model"
)

// Store is the subset of store.Store the admin surface needs.
type Store interface {
	Queries(ctx context.Context) ([]model.Query, error)
	AddQuery(ctx context.Context, q model.Query) (int64, error)
	RemoveQuery(ctx context.Context, id int64) error
	RemoveAllQueries(ctx context.Context) error
	EditQuery(ctx context.Context, id int64, name string, threadID *int64, priority bool) error
	UpdateThreadID(ctx context.Context, id int64, threadID *int64) error
	ClearAllItems(ctx context.Context) error
	ItemsForQuery(ctx context.Context, queryID int64, limit int) ([]model.Item, error)
	Parameters(ctx context.Context) (map[string]string, error)
	SetParameter(ctx context.Context, key, value string) error
	Allowlist(ctx context.Context) ([]string, error)
	AddCountry(ctx context.Context, code string) error
	RemoveCountry(ctx context.Context, code string) error
	ClearAllowlist(ctx context.Context) error
}

// GovernorStatus is the subset of governor.Governor the status endpoints
// read.
type GovernorStatus interface {
	Snapshot() governor.Snapshot
}

// ProxyStatus is the subset of proxypool.Pool the status endpoint reads.
type ProxyStatus interface {
	Size() int
}

// TelegramControl lets the dashboard start/stop the bot sender.
type TelegramControl interface {
	Start()
	Stop()
	Running() bool
}

// ForceRedeploy triggers the same restart chain the governor would fire
// on its own trigger.
type ForceRedeploy func(ctx context.Context)

// Server wires the admin HTTP surface.
type Server struct {
	router    chi.Router
	store     Store
	governor  GovernorStatus
	proxies   ProxyStatus
	telegram  TelegramControl
	redeploy  ForceRedeploy
	cacheMode func() string
	validate  *validator.Validate

	hub *hub
}

// New constructs the admin router.
func New(store Store, gov GovernorStatus, proxies ProxyStatus, telegram TelegramControl, redeploy ForceRedeploy, cacheMode func() string) *Server {
	s := &Server{
		store:     store,
		governor:  gov,
		proxies:   proxies,
		telegram:  telegram,
		redeploy:  redeploy,
		cacheMode: cacheMode,
		validate:  validator.New(),
		hub:       newHub(),
	}
	s.router = s.routes()
	go s.hub.run()
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
	}))
	r.Use(httprate.LimitByIP(100, time.Minute))

	r.Get("/", s.handleDashboard)
	r.Get("/queries", s.handleListQueries)
	r.Post("/add_query", s.handleAddQuery)
	r.Post("/remove_query/{id}", s.handleRemoveQuery)
	r.Post("/remove_query/all", s.handleRemoveAllQueries)
	r.Post("/edit_query/{id}", s.handleEditQuery)
	r.Post("/update_thread_id", s.handleUpdateThreadID)
	r.Post("/clear_all_items", s.handleClearAllItems)
	r.Get("/items", s.handleItems)
	r.Get("/config", s.handleGetConfig)
	r.Post("/update_config", s.handleUpdateConfig)
	r.Post("/control/telegram/{action}", s.handleTelegramControl)
	r.Get("/control/status", s.handleControlStatus)
	r.Get("/allowlist", s.handleGetAllowlist)
	r.Post("/allowlist/add_country", s.handleAddCountry)
	r.Post("/allowlist/remove_country", s.handleRemoveCountry)
	r.Post("/allowlist/clear_allowlist", s.handleClearAllowlist)
	r.Get("/logs", s.handleLogsPage)
	r.Get("/api/logs", s.handleAPILogs)
	r.Get("/redeploy_status", s.handleRedeployStatus)
	r.Get("/proxy_status", s.handleProxyStatus)
	r.Post("/force_redeploy", s.handleForceRedeploy)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws", s.handleWebSocket)

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("⚠️ webadmin: failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// Broadcast pushes a JSON event to every connected dashboard (wired
// from the orchestrator's ingestion tick).
func (s *Server) Broadcast(event string, payload any) {
	data, err := json.Marshal(map[string]any{"event": event, "payload": payload})
	if err != nil {
		return
	}
	s.hub.broadcast(data)
}

// hub fans out messages to every connected dashboard websocket.
type hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]bool
	send    chan []byte
}

func newHub() *hub {
	return &hub{clients: make(map[*websocket.Conn]bool), send: make(chan []byte, 64)}
}

func (h *hub) run() {
	for msg := range h.send {
		h.mu.Lock()
		for c := range h.clients {
			if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.Close()
				delete(h.clients, c)
			}
		}
		h.mu.Unlock()
	}
}

func (h *hub) broadcast(data []byte) {
	select {
	case h.send <- data:
	default:
	}
}

func (h *hub) register(c *websocket.Conn) {
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
}

func (h *hub) unregister(c *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("⚠️ webadmin: websocket upgrade failed: %v", err)
		return
	}
	s.hub.register(conn)
	defer func() {
		s.hub.unregister(conn)
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
