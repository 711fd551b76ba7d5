package audit

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/breeze-rmm/control-server/internal/config"
	"github.com/breeze-rmm/control-server/internal/logging"
)

var log = logging.L("audit")

// Event types for audit logging.
const (
	EventCommandReceived = "command_received"
	EventCommandExecuted = "command_executed"
	EventAuthSuccess     = "auth_success"
	EventAuthFailure     = "auth_failure"
	EventPermissionDenied = "permission_denied"
	EventRateLimited     = "rate_limited"
	EventSessionCreated  = "session_created"
	EventSessionExpired  = "session_expired"
	EventConfigChange    = "config_change"
	EventServerStart     = "server_start"
	EventServerStop      = "server_stop"
	EventLogRotated      = "log_rotated"
)

// Severity levels. Only error and critical events feed the alert ring.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// criticalEvents are event types that require fsync after writing,
// independent of the per-entry severity field.
var criticalEvents = map[string]bool{
	EventConfigChange: true,
	EventServerStart:  true,
	EventServerStop:   true,
}

// alertRingCapacity bounds RealTimeMonitor's source ring.
const alertRingCapacity = 100

// recentAlertsCapacity bounds what GetRecentAlerts returns.
const recentAlertsCapacity = 50

// Entry is a single audit log record. The hash-chain fields
// (PrevHash/EntryHash) are additions layered onto the persisted shape;
// everything else is written and read back verbatim.
type Entry struct {
	TimestampUnix int64          `json:"timestamp"`
	EventType     string         `json:"event_type"`
	UserID        string         `json:"user_id,omitempty"`
	ClientIP      string         `json:"client_ip,omitempty"`
	Details       map[string]any `json:"details,omitempty"`
	Severity      string         `json:"severity"`
	PrevHash      string         `json:"prevHash"`
	EntryHash     string         `json:"entryHash"`
}

// Logger writes tamper-evident JSONL audit logs with a SHA-256 hash chain
// and maintains a bounded in-memory ring of high-severity alerts.
type Logger struct {
	mu         sync.Mutex
	file       *os.File
	filePath   string
	maxSize    int64
	maxBackups int
	written    int64
	prevHash   string
	dropped    atomic.Int64

	alertMu sync.Mutex
	alerts  []Entry
}

// NewLogger creates an audit logger writing to {dataDir}/audit.jsonl, or
// to cfg.AuditPath if set.
func NewLogger(cfg *config.Config) (*Logger, error) {
	filePath := cfg.AuditPath
	if filePath == "" {
		dataDir := config.GetDataDir()
		if err := os.MkdirAll(dataDir, 0700); err != nil {
			return nil, fmt.Errorf("create audit data dir: %w", err)
		}
		filePath = filepath.Join(dataDir, "audit.jsonl")
	} else if err := os.MkdirAll(filepath.Dir(filePath), 0700); err != nil {
		return nil, fmt.Errorf("create audit log dir: %w", err)
	}

	maxSize := cfg.AuditMaxSizeMB
	if maxSize <= 0 {
		maxSize = 50
	}
	maxBackups := cfg.AuditMaxBackups
	if maxBackups <= 0 {
		maxBackups = 3
	}

	l := &Logger{
		filePath:   filePath,
		maxSize:    int64(maxSize) * 1024 * 1024,
		maxBackups: maxBackups,
		prevHash:   "genesis",
	}

	if err := l.openFile(); err != nil {
		return nil, err
	}

	log.Info("audit logger started", "path", filePath)
	return l, nil
}

// Log writes a single audit entry with hash chain linking and, for
// error/critical severities, records it into the bounded alert ring. The
// hash chain is only advanced after a successful write to prevent gaps:
// if the write fails, the next entry will re-link to the same prevHash.
// Safe to call on a nil receiver (no-op).
func (l *Logger) Log(eventType, severity, userID, clientIP string, details map[string]any) {
	if l == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entry := Entry{
		TimestampUnix: time.Now().Unix(),
		EventType:     eventType,
		UserID:        userID,
		ClientIP:      clientIP,
		Details:       details,
		Severity:      severity,
		PrevHash:      l.prevHash,
	}

	entryHash, err := l.computeHash(entry)
	if err != nil {
		log.Error("failed to compute audit entry hash", "error", err, "eventType", eventType)
		l.dropped.Add(1)
		return
	}
	entry.EntryHash = entryHash

	data, err := json.Marshal(entry)
	if err != nil {
		log.Error("failed to marshal audit entry", "error", err, "eventType", eventType)
		l.dropped.Add(1)
		return
	}
	data = append(data, '\n')

	if l.written+int64(len(data)) > l.maxSize {
		if err := l.rotate(); err != nil {
			log.Error("audit log rotation failed", "error", err)
			l.dropped.Add(1)
			return
		}
	}

	n, err := l.file.Write(data)
	if err != nil {
		log.Error("failed to write audit entry", "error", err, "eventType", eventType)
		l.dropped.Add(1)
		return
	}
	l.written += int64(n)

	l.prevHash = entry.EntryHash

	if criticalEvents[eventType] {
		if err := l.file.Sync(); err != nil {
			log.Error("failed to fsync critical audit entry — durability not guaranteed", "error", err, "eventType", eventType)
		}
	}

	if severity == SeverityError || severity == SeverityCritical {
		l.pushAlert(entry)
	}
}

// pushAlert appends to the bounded alert ring, dropping the oldest entry
// once full.
func (l *Logger) pushAlert(entry Entry) {
	l.alertMu.Lock()
	defer l.alertMu.Unlock()
	l.alerts = append(l.alerts, entry)
	if len(l.alerts) > alertRingCapacity {
		l.alerts = l.alerts[len(l.alerts)-alertRingCapacity:]
	}
}

// RecentAlerts returns up to the most recent recentAlertsCapacity
// error/critical entries, newest last.
func (l *Logger) RecentAlerts() []Entry {
	if l == nil {
		return nil
	}
	l.alertMu.Lock()
	defer l.alertMu.Unlock()

	n := len(l.alerts)
	if n > recentAlertsCapacity {
		n = recentAlertsCapacity
	}
	out := make([]Entry, n)
	copy(out, l.alerts[len(l.alerts)-n:])
	return out
}

// SearchFilter restricts Search to entries matching every non-zero field.
type SearchFilter struct {
	EventType string
	StartUnix int64
	EndUnix   int64
}

// Search performs a linear scan of the current on-disk log file, returning
// entries matching the filter. An empty EventType matches any event type;
// a zero StartUnix/EndUnix leaves that bound open.
func (l *Logger) Search(filter SearchFilter) ([]Entry, error) {
	l.mu.Lock()
	path := l.filePath
	l.mu.Unlock()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open audit log for search: %w", err)
	}
	defer f.Close()

	var matches []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		var entry Entry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue
		}
		if filter.EventType != "" && entry.EventType != filter.EventType {
			continue
		}
		if filter.StartUnix != 0 && entry.TimestampUnix < filter.StartUnix {
			continue
		}
		if filter.EndUnix != 0 && entry.TimestampUnix > filter.EndUnix {
			continue
		}
		matches = append(matches, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan audit log: %w", err)
	}
	return matches, nil
}

// Close flushes and closes the audit log file.
// Safe to call on a nil receiver (no-op).
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// DroppedCount returns the number of audit entries that failed to write.
// Returns -1 if the logger is nil (not initialized), distinguishing
// "logger not available" from "logger working with zero drops".
func (l *Logger) DroppedCount() int64 {
	if l == nil {
		return -1
	}
	return l.dropped.Load()
}

// computeHash produces the SHA-256 hash for an audit entry.
// Fields are length-prefixed to prevent delimiter injection attacks
// (e.g., a client IP containing a separator colliding with another field
// combination).
func (l *Logger) computeHash(entry Entry) (string, error) {
	h := sha256.New()
	fmt.Fprintf(h, "%d:", entry.TimestampUnix)
	for _, field := range []string{entry.EventType, entry.UserID, entry.ClientIP, entry.Severity, entry.PrevHash} {
		fmt.Fprintf(h, "%d:%s", len(field), field)
	}
	if entry.Details != nil {
		detailBytes, err := json.Marshal(entry.Details)
		if err != nil {
			return "", fmt.Errorf("marshal details for hash: %w", err)
		}
		fmt.Fprintf(h, "%d:", len(detailBytes))
		h.Write(detailBytes)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (l *Logger) openFile() error {
	f, err := os.OpenFile(l.filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat audit log: %w", err)
	}

	l.file = f
	l.written = info.Size()
	return nil
}

func (l *Logger) rotate() error {
	prevHashBeforeRotation := l.prevHash

	if l.file != nil {
		l.file.Close()
	}

	for i := l.maxBackups; i >= 2; i-- {
		src := l.backupName(i - 1)
		dst := l.backupName(i)
		if i == l.maxBackups {
			if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
				log.Warn("audit log rotation: failed to remove oldest backup", "path", dst, "error", err)
			}
		}
		if err := os.Rename(src, dst); err != nil && !os.IsNotExist(err) {
			log.Warn("audit log rotation: failed to rename backup", "src", src, "dst", dst, "error", err)
		}
	}

	if err := os.Rename(l.filePath, l.backupName(1)); err != nil && !os.IsNotExist(err) {
		log.Warn("audit log rotation: failed to rename current log", "error", err)
	}

	if err := l.openFile(); err != nil {
		return err
	}

	sentinel := Entry{
		TimestampUnix: time.Now().Unix(),
		EventType:     EventLogRotated,
		Severity:      SeverityInfo,
		PrevHash:      prevHashBeforeRotation,
		Details: map[string]any{
			"previousFile": l.backupName(1),
		},
	}
	sentinelHash, err := l.computeHash(sentinel)
	if err != nil {
		log.Error("rotation sentinel hash failed — hash chain broken", "error", err)
		l.dropped.Add(1)
		l.prevHash = "chain-broken"
		return nil
	}
	sentinel.EntryHash = sentinelHash

	data, err := json.Marshal(sentinel)
	if err != nil {
		log.Error("rotation sentinel marshal failed — hash chain broken", "error", err)
		l.dropped.Add(1)
		l.prevHash = "chain-broken"
		return nil
	}
	data = append(data, '\n')

	n, writeErr := l.file.Write(data)
	if writeErr != nil {
		log.Error("rotation sentinel write failed — hash chain broken", "error", writeErr)
		l.dropped.Add(1)
		l.prevHash = "chain-broken"
		return nil
	}
	l.written += int64(n)
	l.prevHash = sentinel.EntryHash

	return nil
}

func (l *Logger) backupName(index int) string {
	if index == 0 {
		return l.filePath
	}
	return fmt.Sprintf("%s.%d", l.filePath, index)
}
