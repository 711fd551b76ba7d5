// Package alertfeed streams the audit logger's severity-gated alert ring
// to an external collector over a reconnecting WebSocket connection.
package alertfeed

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/breeze-rmm/control-server/internal/audit"
	"github.com/breeze-rmm/control-server/internal/logging"
)

var log = logging.L("alertfeed")

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024
	initialBackoff = 1 * time.Second
	maxBackoff     = 60 * time.Second
	backoffFactor  = 2.0
	jitterFactor   = 0.3

	pollInterval = 2 * time.Second
)

// Config points the relay at a collector endpoint.
type Config struct {
	URL string
}

// Relay polls a Logger's alert ring and forwards newly seen entries to an
// external collector, reconnecting with exponential backoff on failure.
type Relay struct {
	cfg     Config
	monitor *audit.RealTimeMonitor

	connMu sync.RWMutex
	conn   *websocket.Conn

	sendChan chan []byte
	done     chan struct{}
	stopOnce sync.Once

	seenMu sync.Mutex
	seen   map[string]struct{}
}

// New returns a Relay forwarding monitor's alerts to cfg.URL once Start is
// called.
func New(cfg Config, monitor *audit.RealTimeMonitor) *Relay {
	return &Relay{
		cfg:      cfg,
		monitor:  monitor,
		sendChan: make(chan []byte, 256),
		done:     make(chan struct{}),
		seen:     make(map[string]struct{}),
	}
}

// Start runs the relay until Stop is called. It blocks; call it in its own
// goroutine.
func (r *Relay) Start() {
	go r.pollLoop()
	r.reconnectLoop()
}

// Stop closes the relay's connection and stops its loops.
func (r *Relay) Stop() {
	r.stopOnce.Do(func() {
		close(r.done)
		r.connMu.Lock()
		if r.conn != nil {
			_ = r.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			_ = r.conn.Close()
			r.conn = nil
		}
		r.connMu.Unlock()
		log.Info("alert relay stopped")
	})
}

// pollLoop periodically checks the monitor's alert ring for entries not
// yet forwarded and queues them for send.
func (r *Relay) pollLoop() {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			r.queueNewAlerts()
		}
	}
}

func (r *Relay) queueNewAlerts() {
	for _, entry := range r.monitor.GetRecentAlerts() {
		key := entry.EntryHash
		r.seenMu.Lock()
		_, known := r.seen[key]
		if !known {
			r.seen[key] = struct{}{}
		}
		r.seenMu.Unlock()
		if known {
			continue
		}

		data, err := json.Marshal(entry)
		if err != nil {
			log.Warn("marshal alert failed", "error", err)
			continue
		}
		select {
		case r.sendChan <- data:
		default:
			log.Warn("alert send channel full, dropping alert", "eventType", entry.EventType)
		}
	}
}

func (r *Relay) connect() error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.Dial(r.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("dial alert collector: %w", err)
	}
	conn.SetReadLimit(maxMessageSize)

	r.connMu.Lock()
	r.conn = conn
	r.connMu.Unlock()

	log.Info("alert relay connected", "url", r.cfg.URL)
	return nil
}

func (r *Relay) reconnectLoop() {
	backoff := initialBackoff
	for {
		select {
		case <-r.done:
			return
		default:
		}

		if err := r.connect(); err != nil {
			log.Warn("alert relay connect failed", "error", err)
			jitter := time.Duration(float64(backoff) * jitterFactor * (rand.Float64()*2 - 1))
			sleep := backoff + jitter
			if sleep < 0 {
				sleep = backoff
			}
			select {
			case <-r.done:
				return
			case <-time.After(sleep):
			}
			backoff = time.Duration(float64(backoff) * backoffFactor)
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		backoff = initialBackoff
		r.writePump()

		select {
		case <-r.done:
			return
		default:
		}
	}
}

func (r *Relay) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-r.done:
			return
		case data := <-r.sendChan:
			r.connMu.RLock()
			conn := r.conn
			r.connMu.RUnlock()
			if conn == nil {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Warn("alert relay write failed", "error", err)
				return
			}
		case <-ticker.C:
			r.connMu.RLock()
			conn := r.conn
			r.connMu.RUnlock()
			if conn == nil {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
