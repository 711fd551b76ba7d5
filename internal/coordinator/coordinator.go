// Package coordinator wires authentication, permissions, sessions,
// auditing, rate limiting, batching, and the display engine behind one
// entry point: process one command for one session.
package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/breeze-rmm/control-server/internal/audit"
	"github.com/breeze-rmm/control-server/internal/auth"
	"github.com/breeze-rmm/control-server/internal/batcher"
	"github.com/breeze-rmm/control-server/internal/capability"
	"github.com/breeze-rmm/control-server/internal/config"
	"github.com/breeze-rmm/control-server/internal/display"
	"github.com/breeze-rmm/control-server/internal/inputstate"
	"github.com/breeze-rmm/control-server/internal/logging"
	"github.com/breeze-rmm/control-server/internal/permission"
	"github.com/breeze-rmm/control-server/internal/platform"
	"github.com/breeze-rmm/control-server/internal/protocol"
	"github.com/breeze-rmm/control-server/internal/ratelimit"
	"github.com/breeze-rmm/control-server/internal/session"
	"github.com/breeze-rmm/control-server/internal/validator"
)

var log = logging.L("coordinator")

// IntegratedResponse is the coordinator's complete answer to one Process
// call: the wire response, the session it was attributed to, how long it
// took, and a snapshot of system-wide counters.
type IntegratedResponse struct {
	Response       protocol.Response
	BinaryTrailer  []byte
	SessionID      string
	ProcessingTime time.Duration
	SystemStats    inputstate.MetricsSnapshot
}

// Coordinator owns one instance each of the gating/execution components
// and exposes the single "process a command" entry point every connection
// goes through.
type Coordinator struct {
	cfg *config.Config

	Auth       *auth.Manager
	Permission *permission.Manager
	Sessions   *session.Manager
	Audit      *audit.Logger

	cmdLimiter     *ratelimit.CommandLimiter
	sessionLimiter *ratelimit.SessionLimiter
	adaptive       *ratelimit.AdaptiveLimiter

	gate    *capability.Gate
	state   *inputstate.State
	metrics *inputstate.Metrics

	batcher  *batcher.Batcher
	executor *gateExecutor
	Display  *display.Engine
}

// New wires a Coordinator around gate, sizing its rate limiters, batcher,
// and session timeout from cfg.
func New(cfg *config.Config, gate *capability.Gate) (*Coordinator, error) {
	authMgr, err := auth.New()
	if err != nil {
		return nil, fmt.Errorf("init auth manager: %w", err)
	}

	auditLogger, err := audit.NewLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("init audit logger: %w", err)
	}

	cmdLimiter := ratelimit.NewCommandLimiter()
	cmdLimiter.SetLimit("default", cfg.CommandRateLimitMax, time.Duration(cfg.CommandRateLimitWindowSeconds)*time.Second)

	sessionTimeout := time.Duration(cfg.SessionTimeoutSeconds) * time.Second
	batcherCfg := batcher.DefaultConfig()
	batcherCfg.BatchSize = cfg.BatchSize
	batcherCfg.MinInterval = time.Duration(cfg.BatchMinIntervalMS) * time.Millisecond
	batcherCfg.MaxAge = time.Duration(cfg.BatchMaxAgeMS) * time.Millisecond
	batcherCfg.MaxMemoryBytes = int64(cfg.BatchMaxMemoryMB) * 1024 * 1024

	exec := &gateExecutor{gate: gate}
	strategy := batcher.SelectStrategy(platformTag(gate.Capabilities()))

	c := &Coordinator{
		cfg:            cfg,
		Auth:           authMgr,
		Permission:     permission.New(),
		Sessions:       session.NewManager(sessionTimeout),
		Audit:          auditLogger,
		cmdLimiter:     cmdLimiter,
		sessionLimiter: ratelimit.NewSessionLimiter(cfg.SessionRateLimitMax, time.Duration(cfg.SessionRateLimitWindowSeconds)*time.Second),
		adaptive:       ratelimit.NewAdaptiveLimiter(),
		gate:           gate,
		state:          inputstate.New(),
		metrics:        inputstate.NewMetrics(),
		batcher:        batcher.New(batcherCfg, strategy, batcher.SampleCPUPercent),
		executor:       exec,
		Display:        display.New(gate),
	}
	return c, nil
}

// platformTag derives the rough platform family a capability record
// describes, for batcher.SelectStrategy, mirroring how the backend itself
// was chosen.
func platformTag(caps platform.Capabilities) string {
	if !caps.HasGUI {
		if caps.SupportsRealInput {
			return "headless"
		}
		return "headless-silent"
	}
	return "native"
}

// gateExecutor adapts the CapabilityGate to batcher.Executor: each queued
// operation carries its own dispatch closure under the "action" key.
type gateExecutor struct {
	gate *capability.Gate
}

func (e *gateExecutor) Execute(_ context.Context, op batcher.QueuedOperation) error {
	action, ok := op.Parameters["action"].(func() error)
	if !ok {
		return batcher.ErrUnknownOperation
	}
	return action()
}

// enqueueAndWait queues an action through the batcher and blocks until it
// has actually run, nudging the batcher to flush while it waits since no
// background ticker drives MaxAge-triggered flushes on its own.
func (c *Coordinator) enqueueAndWait(ctx context.Context, operationType string, priority uint8, action func() error) error {
	done := make(chan error, 1)
	c.batcher.Enqueue(batcher.QueuedOperation{
		OperationType: operationType,
		Priority:      priority,
		Parameters:    map[string]any{"action": action},
		Callback:      func(err error) { done <- err },
	})

	ticker := time.NewTicker(2 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case err := <-done:
			return err
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			_ = c.batcher.MaybeFlush(ctx, c.executor)
		}
	}
}

// Maintenance runs the coordinator's periodic upkeep: expiring idle
// sessions and retuning the display engine and batcher from observed
// load. It is idempotent and safe to call on a timer.
func (c *Coordinator) Maintenance(observedMemoryBytes int64) {
	for _, id := range c.Sessions.ExpireIdle() {
		c.Audit.Log(audit.EventSessionExpired, audit.SeverityInfo, "", "", map[string]any{"sessionId": id})
	}
	c.Display.AutoOptimizeSettings()
	c.batcher.MaybeAdapt(observedMemoryBytes)
}
