// Package hostchannel is the method channel between the agent and host
// applications. Hosts connect over WebSocket to /channel/{name} and call
// agent methods; the agent invokes host methods such as onBarcodeScanned
// on every connected host. A REST bridge exposes the same methods at
// /api/v1/methods/{method}.
package hostchannel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/grandcat/zeroconf"
)

// DefaultChannel is the channel name hosts connect to.
const DefaultChannel = "scanner_channel"

// mDNS service parameters.
const (
	MDNSServiceType = "_scanbridge._tcp"
	MDNSDomain      = "local."
)

const writeTimeout = 5 * time.Second

// ErrNoListeners is returned by InvokeMethod when no host is connected.
var ErrNoListeners = errors.New("no host connected to channel")

// Config holds host channel settings.
type Config struct {
	Listen      string `yaml:"listen"`       // e.g. ":8765"; empty disables the server
	Channel     string `yaml:"channel"`      // default "scanner_channel"
	MDNS        bool   `yaml:"mdns"`         // advertise over mDNS
	ServiceName string `yaml:"service_name"` // mDNS instance name, default hostname
}

type client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (cl *client) writeJSON(v any) error {
	cl.writeMu.Lock()
	defer cl.writeMu.Unlock()

	cl.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return cl.conn.WriteJSON(v)
}

// Channel serves the host method channel.
type Channel struct {
	Logger *log.Logger

	cfg      Config
	name     string
	registry *Registry
	router   *mux.Router
	upgrader websocket.Upgrader

	ctx    context.Context
	cancel context.CancelFunc

	httpServer *http.Server
	mdnsServer *zeroconf.Server

	clients map[*client]bool
	mu      sync.RWMutex
}

// New creates a Channel serving the methods in registry.
func New(cfg Config, registry *Registry) *Channel {
	name := cfg.Channel
	if name == "" {
		name = DefaultChannel
	}
	ctx, cancel := context.WithCancel(context.Background())

	c := &Channel{
		Logger:   log.New(os.Stderr, "[channel] ", log.LstdFlags),
		cfg:      cfg,
		name:     name,
		registry: registry,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		ctx:     ctx,
		cancel:  cancel,
		clients: make(map[*client]bool),
	}

	r := mux.NewRouter()
	r.HandleFunc("/channel/{name}", c.handleWebSocket).Methods("GET")
	r.HandleFunc("/api/v1/methods/{method}", c.handleMethod).Methods("POST")
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"status":  "ok",
			"channel": c.name,
			"clients": c.Clients(),
		})
	}).Methods("GET")
	r.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("scanbridge host channel"))
	}).Methods("GET")
	c.router = r

	return c
}

// Name returns the channel name.
func (c *Channel) Name() string {
	return c.name
}

// Handler returns the HTTP handler serving the channel.
func (c *Channel) Handler() http.Handler {
	return c.router
}

// Handle adds an extra route, e.g. a metrics endpoint.
func (c *Channel) Handle(path string, h http.Handler) {
	c.router.Handle(path, h)
}

// Start starts serving and, if configured, registers the mDNS service.
// It returns once the listener is open. No-op if no listen address is
// configured.
func (c *Channel) Start() error {
	if c.cfg.Listen == "" {
		c.Logger.Println("Host channel disabled (no listen address configured)")
		return nil
	}

	ln, err := net.Listen("tcp", c.cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", c.cfg.Listen, err)
	}
	c.httpServer = &http.Server{Handler: c.router}

	go func() {
		c.Logger.Printf("Listening on %s (channel %s)", ln.Addr(), c.name)
		if err := c.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			c.Logger.Printf("HTTP server error: %v", err)
		}
	}()

	if c.cfg.MDNS {
		port := ln.Addr().(*net.TCPAddr).Port
		if err := c.startMDNS(port); err != nil {
			c.Logger.Printf("Warning: Failed to start mDNS: %v", err)
		}
	}
	return nil
}

// Stop shuts down the server and disconnects every host.
func (c *Channel) Stop() {
	c.cancel()

	if c.mdnsServer != nil {
		c.mdnsServer.Shutdown()
		c.mdnsServer = nil
	}

	if c.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		c.httpServer.Shutdown(ctx)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for cl := range c.clients {
		cl.conn.Close()
		delete(c.clients, cl)
	}
}

// Clients returns the number of connected hosts.
func (c *Channel) Clients() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.clients)
}

// InvokeMethod calls method on every connected host. It fails when no
// host could be reached.
func (c *Channel) InvokeMethod(method string, arguments any) error {
	msg := Message{
		ID:        uuid.NewString(),
		Type:      TypeInvoke,
		Method:    method,
		Arguments: arguments,
	}

	c.mu.RLock()
	clients := make([]*client, 0, len(c.clients))
	for cl := range c.clients {
		clients = append(clients, cl)
	}
	c.mu.RUnlock()

	if len(clients) == 0 {
		return ErrNoListeners
	}

	var errs []error
	for _, cl := range clients {
		if err := cl.writeJSON(msg); err != nil {
			c.Logger.Printf("WebSocket write error: %v", err)
			c.unregister(cl)
			errs = append(errs, err)
		}
	}
	if len(errs) == len(clients) {
		return fmt.Errorf("invoke %s: %w", method, errors.Join(errs...))
	}
	return nil
}

func (c *Channel) register(cl *client) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clients[cl] = true
}

func (c *Channel) unregister(cl *client) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.clients[cl] {
		cl.conn.Close()
		delete(c.clients, cl)
	}
}

// handleWebSocket serves a host connection on /channel/{name}.
func (c *Channel) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if mux.Vars(r)["name"] != c.name {
		http.NotFound(w, r)
		return
	}

	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.Logger.Printf("WebSocket upgrade error: %v", err)
		return
	}

	cl := &client{conn: conn}
	c.register(cl)
	defer c.unregister(cl)

	c.Logger.Printf("Host connected from %s", r.RemoteAddr)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.Logger.Printf("WebSocket read error: %v", err)
			}
			break
		}

		var call Call
		if err := json.Unmarshal(data, &call); err != nil {
			c.Logger.Printf("Failed to parse message: %v", err)
			cl.writeJSON(Message{Type: TypeError, Code: CodeInvalidArgument, Message: "malformed message"})
			continue
		}
		if call.Type != TypeCall {
			// Replies to our own invocations need no answer.
			continue
		}

		reply := c.registry.Dispatch(c.ctx, call)
		if reply.Type == TypeNotImplemented {
			c.Logger.Printf("No handler for method: %s", call.Method)
		}
		if err := cl.writeJSON(reply); err != nil {
			c.Logger.Printf("WebSocket write error: %v", err)
			break
		}
	}

	c.Logger.Printf("Host disconnected from %s", r.RemoteAddr)
}

// handleMethod serves POST /api/v1/methods/{method}. The request body is
// the arguments value and may be empty.
func (c *Channel) handleMethod(w http.ResponseWriter, r *http.Request) {
	method := mux.Vars(r)["method"]

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	call := Call{
		ID:     r.Header.Get("X-Request-ID"),
		Type:   TypeCall,
		Method: method,
	}
	if len(body) > 0 {
		if !json.Valid(body) {
			c.writeReply(w, Message{ID: call.ID, Type: TypeError, Method: method, Code: CodeInvalidArgument, Message: "arguments are not valid JSON"})
			return
		}
		call.Arguments = body
	}

	c.writeReply(w, c.registry.Dispatch(r.Context(), call))
}

func (c *Channel) writeReply(w http.ResponseWriter, msg Message) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus(msg))
	json.NewEncoder(w).Encode(msg)
}

// startMDNS advertises the channel for auto-discovery.
func (c *Channel) startMDNS(port int) error {
	instance := c.cfg.ServiceName
	if instance == "" {
		instance, _ = os.Hostname()
	}

	var err error
	c.mdnsServer, err = zeroconf.Register(
		instance,
		MDNSServiceType,
		MDNSDomain,
		port,
		[]string{
			"version=1.0",
			"protocol=websocket",
			"path=/channel/" + c.name,
			"port=" + strconv.Itoa(port),
		},
		nil,
	)
	if err != nil {
		return fmt.Errorf("register mDNS service: %w", err)
	}
	c.Logger.Printf("mDNS service registered: %s on port %d", MDNSServiceType, port)
	return nil
}
