package coordinator

import (
	"context"
	"time"

	"github.com/breeze-rmm/control-server/internal/audit"
	"github.com/breeze-rmm/control-server/internal/batcher"
	"github.com/breeze-rmm/control-server/internal/display"
	"github.com/breeze-rmm/control-server/internal/permission"
	"github.com/breeze-rmm/control-server/internal/protocol"
	"github.com/breeze-rmm/control-server/internal/session"
	"github.com/breeze-rmm/control-server/internal/validator"
)

// AuthenticateSession verifies username/password, mints a token, and
// promotes sess's permission set by union with the default session
// permissions and the role permissions granted to username. It is
// independent of the CommandType pipeline: there is no "authenticate"
// command, and the network layer never calls it; a caller holding the
// *session.Session invokes it directly.
func (c *Coordinator) AuthenticateSession(sess *session.Session, username, password string) (string, error) {
	token, err := c.Auth.Authenticate(username, password, time.Duration(c.cfg.TokenTTLSeconds)*time.Second)
	if err != nil {
		c.Audit.Log(audit.EventAuthFailure, audit.SeverityWarning, username, sess.ClientInfo().RemoteAddr, nil)
		return "", err
	}

	granted := append(permission.DefaultSessionPermissions(), c.Permission.UserPermissions(username)...)
	sess.Authenticate(username, granted)
	c.Audit.Log(audit.EventAuthSuccess, audit.SeverityInfo, username, sess.ClientInfo().RemoteAddr, nil)
	return token, nil
}

// resolveSession returns the session registered under sessionID, creating
// one with default permissions if none exists yet (the first command on a
// new connection).
func (c *Coordinator) resolveSession(sessionID string, info session.ClientInfo) *session.Session {
	if sessionID != "" {
		if sess := c.Sessions.Get(sessionID); sess != nil {
			return sess
		}
	}
	sess := c.Sessions.Create(info)
	c.Audit.Log(audit.EventSessionCreated, audit.SeverityInfo, "", info.RemoteAddr, nil)
	return sess
}

// Process runs one command through the full gating pipeline and returns a
// complete IntegratedResponse. sessionID may be empty to request a fresh
// session.
func (c *Coordinator) Process(ctx context.Context, sessionID string, info session.ClientInfo, cmd protocol.Command) IntegratedResponse {
	start := time.Now()
	sess := c.resolveSession(sessionID, info)
	sess.Touch()

	resp, trailer := c.dispatch(ctx, sess, cmd)

	elapsed := time.Since(start)
	user := sess.Username()
	if user == "" {
		user = sess.ID()
	}
	c.adaptive.RecordLatency(user, elapsed)
	c.metrics.RecordOperation(resp.Status == protocol.StatusSuccess, elapsed)

	return IntegratedResponse{
		Response:       resp,
		BinaryTrailer:  trailer,
		SessionID:      sess.ID(),
		ProcessingTime: elapsed,
		SystemStats:    c.metrics.Snapshot(),
	}
}

// ProcessBatch runs every command in commands against the same session,
// fanning out concurrently and joining results in input order.
func (c *Coordinator) ProcessBatch(ctx context.Context, sessionID string, info session.ClientInfo, commands []protocol.Command) []IntegratedResponse {
	results := make([]IntegratedResponse, len(commands))
	if len(commands) == 0 {
		return results
	}
	sessionID = c.resolveSession(sessionID, info).ID()

	done := make(chan struct{}, len(commands))
	for i, cmd := range commands {
		go func(i int, cmd protocol.Command) {
			results[i] = c.Process(ctx, sessionID, info, cmd)
			done <- struct{}{}
		}(i, cmd)
	}
	for range commands {
		<-done
	}
	return results
}

func nowStamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func errorResponse(cmd protocol.Command, msg string) protocol.Response {
	return protocol.ErrorResponse(cmd.ID, msg, nowStamp())
}

// dispatch validates, rate-limits, authorizes, and executes one command,
// returning its response and optional binary trailer.
func (c *Coordinator) dispatch(ctx context.Context, sess *session.Session, cmd protocol.Command) (protocol.Response, []byte) {
	if err := cmd.Validate(); err != nil {
		return errorResponse(cmd, err.Error()), nil
	}

	user := sess.Username()
	if user == "" {
		user = sess.ID()
	}

	if !c.sessionLimiter.Allow(sess.ID()) {
		c.Audit.Log(audit.EventRateLimited, audit.SeverityWarning, user, sess.ClientInfo().RemoteAddr, map[string]any{"scope": "session"})
		return errorResponse(cmd, "Rate limit exceeded"), nil
	}
	if !c.cmdLimiter.Allow(user, string(cmd.Type)) {
		c.Audit.Log(audit.EventRateLimited, audit.SeverityWarning, user, sess.ClientInfo().RemoteAddr, map[string]any{"scope": "command", "commandType": string(cmd.Type)})
		return errorResponse(cmd, "Rate limit exceeded"), nil
	}
	if !c.adaptive.CheckRateLimit(user) {
		c.Audit.Log(audit.EventRateLimited, audit.SeverityWarning, user, sess.ClientInfo().RemoteAddr, map[string]any{"scope": "adaptive"})
		return errorResponse(cmd, "Rate limit exceeded"), nil
	}

	authorized, err := permission.SessionAuthorized(sess.Permissions(), cmd.Type)
	if err != nil {
		return errorResponse(cmd, err.Error()), nil
	}
	if !authorized {
		c.Audit.Log(audit.EventPermissionDenied, audit.SeverityWarning, user, sess.ClientInfo().RemoteAddr, map[string]any{"commandType": string(cmd.Type)})
		return errorResponse(cmd, "Permission denied"), nil
	}

	c.Audit.Log(audit.EventCommandReceived, audit.SeverityInfo, user, sess.ClientInfo().RemoteAddr, map[string]any{"commandType": string(cmd.Type), "commandId": cmd.ID})

	resp, trailer := c.execute(ctx, cmd)

	severity := audit.SeverityInfo
	if resp.Status == protocol.StatusError {
		severity = audit.SeverityWarning
	}
	c.Audit.Log(audit.EventCommandExecuted, severity, user, sess.ClientInfo().RemoteAddr, map[string]any{"commandType": string(cmd.Type), "commandId": cmd.ID, "status": string(resp.Status)})

	return resp, trailer
}

// execute validates payload shape, runs mutating operations through the
// Batcher and reads directly against the CapabilityGate, and returns the
// response/trailer pair.
func (c *Coordinator) execute(ctx context.Context, cmd protocol.Command) (protocol.Response, []byte) {
	caps := c.gate.Capabilities()
	p := cmd.Payload

	switch cmd.Type {
	case protocol.CommandMouseMove:
		x, y := derefInt(p.X), derefInt(p.Y)
		if err := boundsCheck(caps.CanControlMouse, x, y); err != nil {
			return errorResponse(cmd, err.Error()), nil
		}
		err := c.enqueueAndWait(ctx, "mouse_move", batcher.PriorityMouseMove, func() error {
			c.state.RecordMouseMove(x, y)
			return c.gate.MouseMove(x, y)
		})
		return resultResponse(cmd, err), nil

	case protocol.CommandMouseClick:
		x, y := derefInt(p.X), derefInt(p.Y)
		if err := boundsCheck(caps.CanControlMouse, x, y); err != nil {
			return errorResponse(cmd, err.Error()), nil
		}
		button := p.Button
		err := c.enqueueAndWait(ctx, "mouse_click", batcher.PriorityMouseClick, func() error {
			c.state.RecordButtonDown(string(button))
			defer c.state.RecordButtonUp(string(button))
			return c.gate.MouseClick(button, x, y)
		})
		return resultResponse(cmd, err), nil

	case protocol.CommandMouseScroll:
		dx, dy := derefInt(p.DX), derefInt(p.DY)
		err := c.enqueueAndWait(ctx, "mouse_scroll", batcher.PriorityMouseMove, func() error {
			return c.gate.MouseScroll(dx, dy)
		})
		return resultResponse(cmd, err), nil

	case protocol.CommandKeyPress:
		if err := validator.Key(p.Key); err != nil {
			return errorResponse(cmd, err.Error()), nil
		}
		key := p.Key
		err := c.enqueueAndWait(ctx, "key_press", batcher.PriorityKeyPress, func() error {
			c.state.RecordKeyPress(key)
			return c.gate.KeyPress(key)
		})
		return resultResponse(cmd, err), nil

	case protocol.CommandKeyRelease:
		if err := validator.Key(p.Key); err != nil {
			return errorResponse(cmd, err.Error()), nil
		}
		key := p.Key
		err := c.enqueueAndWait(ctx, "key_release", batcher.PriorityKeyPress, func() error {
			c.state.RecordKeyRelease(key)
			return c.gate.KeyRelease(key)
		})
		return resultResponse(cmd, err), nil

	case protocol.CommandTypeText:
		if err := validator.Text(p.Text); err != nil {
			return errorResponse(cmd, err.Error()), nil
		}
		for _, chunk := range batcher.ChunkText(p.Text) {
			chunk := chunk
			if err := c.enqueueAndWait(ctx, "type_text", batcher.PriorityTypeText, func() error {
				return c.gate.TypeText(chunk)
			}); err != nil {
				return resultResponse(cmd, err), nil
			}
		}
		return resultResponse(cmd, nil), nil

	case protocol.CommandCaptureScreen:
		displayID := uint32(0)
		if p.DisplayID != nil {
			displayID = *p.DisplayID
		}
		res, err := c.Display.EnhancedCaptureScreen(display.CaptureOptions{DisplayID: displayID})
		if err != nil {
			return errorResponse(cmd, err.Error()), nil
		}
		data := protocol.ResponseData{Type: "screen_capture", Size: len(res.Data), Format: string(res.Format)}
		return protocol.SuccessResponse(cmd.ID, &data, nowStamp()), res.Data

	case protocol.CommandGetDisplays:
		displays, err := c.Display.GetDisplaysCached()
		if err != nil {
			return errorResponse(cmd, err.Error()), nil
		}
		data := protocol.ResponseData{Type: "display_info", Displays: displays}
		return protocol.SuccessResponse(cmd.ID, &data, nowStamp()), nil

	case protocol.CommandGetWindowInfo:
		win, err := c.gate.GetWindowAt(derefInt(p.X), derefInt(p.Y))
		if err != nil {
			return errorResponse(cmd, err.Error()), nil
		}
		data := protocol.ResponseData{Type: "window_info"}
		if win != nil {
			data.Windows = []protocol.WindowInfo{*win}
		}
		return protocol.SuccessResponse(cmd.ID, &data, nowStamp()), nil

	case protocol.CommandListWindows:
		windows, err := c.gate.ListWindows()
		if err != nil {
			return errorResponse(cmd, err.Error()), nil
		}
		data := protocol.ResponseData{Type: "window_info", Windows: windows}
		return protocol.SuccessResponse(cmd.ID, &data, nowStamp()), nil

	default:
		return errorResponse(cmd, "unsupported command type"), nil
	}
}

func derefInt(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}

func boundsCheck(enhanced bool, x, y int64) error {
	if enhanced {
		return validator.EnhancedMouseCoordinates(x, y)
	}
	return validator.MouseCoordinates(x, y)
}

func resultResponse(cmd protocol.Command, err error) protocol.Response {
	if err != nil {
		return errorResponse(cmd, err.Error())
	}
	return protocol.SuccessResponse(cmd.ID, nil, nowStamp())
}
