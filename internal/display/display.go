// Package display caches enumerated displays and captured frames on top of
// a capability.Gate, applying rate limiting, optional compression and
// differential capture, and retuning its own quality settings from observed
// capture performance.
package display

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"github.com/breeze-rmm/control-server/internal/capability"
	"github.com/breeze-rmm/control-server/internal/logging"
	"github.com/breeze-rmm/control-server/internal/protocol"
)

var log = logging.L("display")

const (
	displayListTTL  = 30 * time.Second
	frameCacheTTL   = 1 * time.Second
	captureRateGate = 16 * time.Millisecond
)

// Settings are the engine's current capture/compression tunables, adjusted
// over time by AutoOptimizeSettings.
type Settings struct {
	AutoCompression          bool
	PreferredFormat          Format
	QualityLevel             int
	MaxResolutionWidth       int
	MaxResolutionHeight      int
	EnableDifferentialCapture bool
}

// DefaultSettings matches the values the enhanced capture controller this
// engine is modeled on starts with.
func DefaultSettings() Settings {
	return Settings{
		AutoCompression:     true,
		PreferredFormat:     FormatJPEG,
		QualityLevel:        80,
		MaxResolutionWidth:  1920,
		MaxResolutionHeight: 1080,
	}
}

// CaptureStats accumulates running totals across every capture attempt.
type CaptureStats struct {
	TotalCaptures      uint64
	SuccessfulCaptures uint64
	FailedCaptures     uint64
	TotalBytesCaptured uint64
	TotalBytesCompressed uint64
	AverageCaptureTime time.Duration
	FastestCaptureTime time.Duration
	SlowestCaptureTime time.Duration
	LastCaptureTime    time.Time
}

// cachedDisplay tracks a single display's last captured frame alongside its
// own running capture-time average.
type cachedDisplay struct {
	info               protocol.DisplayInfo
	lastFrame          []byte
	lastFormat         Format
	lastCaptureAt      time.Time
	captureCount       uint64
	averageCaptureTime time.Duration
}

// CaptureOptions parameterizes one EnhancedCaptureScreen call.
type CaptureOptions struct {
	DisplayID          uint32
	ForceRefresh       bool
	CompressionFormat  Format
	Quality            int
	Differential       bool
	MaxWidth           int
	MaxHeight          int
}

// CaptureResult is the outcome of one capture, including whether the
// returned data is a differential encoding against the previous frame.
type CaptureResult struct {
	Data         []byte
	Format       Format
	HasChanges   bool
	Differential bool
}

// Engine is the enhanced display controller: cached display enumeration,
// per-display frame caching and rate limiting, compression, and
// self-tuning quality settings.
type Engine struct {
	gate *capability.Gate

	mu       sync.Mutex
	settings Settings
	stats    CaptureStats

	displaysMu   sync.Mutex
	displays     []protocol.DisplayInfo
	displaysAt   time.Time

	framesMu sync.Mutex
	frames   map[uint32]*cachedDisplay
}

// New wraps gate with a fresh Engine using DefaultSettings.
func New(gate *capability.Gate) *Engine {
	return &Engine{
		gate:     gate,
		settings: DefaultSettings(),
		frames:   make(map[uint32]*cachedDisplay),
	}
}

// Settings returns a copy of the engine's current tunables.
func (e *Engine) Settings() Settings {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.settings
}

// Stats returns a copy of the engine's running capture statistics.
func (e *Engine) Stats() CaptureStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// GetDisplaysCached returns the last enumerated display list if it is
// younger than displayListTTL, otherwise refreshes it first.
func (e *Engine) GetDisplaysCached() ([]protocol.DisplayInfo, error) {
	e.displaysMu.Lock()
	if len(e.displays) > 0 && time.Since(e.displaysAt) < displayListTTL {
		defer e.displaysMu.Unlock()
		out := make([]protocol.DisplayInfo, len(e.displays))
		copy(out, e.displays)
		return out, nil
	}
	e.displaysMu.Unlock()
	return e.RefreshDisplayCache()
}

// RefreshDisplayCache unconditionally re-enumerates displays from the
// backend and replaces the cached list.
func (e *Engine) RefreshDisplayCache() ([]protocol.DisplayInfo, error) {
	displays, err := e.gate.GetDisplays()
	if err != nil {
		return nil, fmt.Errorf("refresh display cache: %w", err)
	}

	e.displaysMu.Lock()
	e.displays = displays
	e.displaysAt = time.Now()
	e.displaysMu.Unlock()

	out := make([]protocol.DisplayInfo, len(displays))
	copy(out, displays)
	return out, nil
}

func (e *Engine) cachedFrame(displayID uint32) *cachedDisplay {
	e.framesMu.Lock()
	defer e.framesMu.Unlock()
	cd, ok := e.frames[displayID]
	if !ok {
		cd = &cachedDisplay{}
		e.frames[displayID] = cd
	}
	return cd
}

// checkRateLimit blocks until captureRateGate has elapsed since the
// display's last capture, the same throttle the backend capture command is
// subject to regardless of caching.
func checkRateLimit(cd *cachedDisplay) {
	if cd.lastCaptureAt.IsZero() {
		return
	}
	elapsed := time.Since(cd.lastCaptureAt)
	if elapsed < captureRateGate {
		time.Sleep(captureRateGate - elapsed)
	}
}

// EnhancedCaptureScreen captures opts.DisplayID, honoring the 1s frame
// cache unless ForceRefresh is set, applying a resize and/or compression
// pass, and optionally producing a byte-diff against the previous full
// frame when opts.Differential or the EnableDifferentialCapture setting
// is on.
func (e *Engine) EnhancedCaptureScreen(opts CaptureOptions) (*CaptureResult, error) {
	cd := e.cachedFrame(opts.DisplayID)

	e.framesMu.Lock()
	if !opts.ForceRefresh && cd.lastFrame != nil && time.Since(cd.lastCaptureAt) < frameCacheTTL {
		cached := append([]byte(nil), cd.lastFrame...)
		cachedFormat := cd.lastFormat
		e.framesMu.Unlock()
		return &CaptureResult{Data: cached, Format: cachedFormat, HasChanges: true}, nil
	}
	e.framesMu.Unlock()

	checkRateLimit(cd)

	start := time.Now()
	raw, err := e.gate.CaptureScreen(opts.DisplayID, true)
	if err != nil {
		e.recordFailure()
		return nil, fmt.Errorf("capture screen: %w", err)
	}

	settings := e.Settings()
	format := opts.CompressionFormat
	if format == "" {
		format = settings.PreferredFormat
	}
	quality := opts.Quality
	if quality == 0 {
		quality = settings.QualityLevel
	}
	maxW, maxH := opts.MaxWidth, opts.MaxHeight
	if maxW == 0 {
		maxW = settings.MaxResolutionWidth
	}
	if maxH == 0 {
		maxH = settings.MaxResolutionHeight
	}

	out := raw
	// actualFormat tracks what out really is, which only matches the
	// requested format once an encode pass actually succeeds; otherwise
	// out is a passthrough of raw bytes and must be reported as such.
	actualFormat := sniffFormat(raw)
	shouldCompress := settings.AutoCompression || opts.CompressionFormat != ""
	if shouldCompress || maxW > 0 || maxH > 0 {
		img, decErr := decodeToRGBA(raw)
		if decErr != nil {
			log.Warn("capture decode failed, returning raw bytes", "error", decErr, "displayId", opts.DisplayID)
		} else {
			img = scaleToFit(img, maxW, maxH)
			if shouldCompress {
				encoded, encErr := encode(img, format, quality)
				if encErr != nil {
					log.Warn("capture encode failed, returning raw bytes", "error", encErr, "displayId", opts.DisplayID)
				} else {
					out = encoded
					actualFormat = format
				}
			}
		}
	}

	elapsed := time.Since(start)

	differential := false
	resultData := out
	if (opts.Differential || settings.EnableDifferentialCapture) && cd.lastFrame != nil {
		resultData = diffAgainst(cd.lastFrame, out)
		differential = true
	}

	e.framesMu.Lock()
	hasChanges := cd.lastFrame == nil || !bytes.Equal(cd.lastFrame, out)
	cd.lastFrame = append([]byte(nil), out...)
	cd.lastFormat = actualFormat
	cd.lastCaptureAt = time.Now()
	cd.captureCount++
	n := time.Duration(cd.captureCount)
	cd.averageCaptureTime += (elapsed - cd.averageCaptureTime) / n
	e.framesMu.Unlock()

	e.recordSuccess(len(raw), len(out), elapsed)

	return &CaptureResult{Data: resultData, Format: actualFormat, HasChanges: hasChanges, Differential: differential}, nil
}

// diffAgainst returns a minimal byte-diff marker: the new frame verbatim
// when it differs from prev, since the underlying compressed encodings are
// not byte-aligned and cannot be diffed meaningfully below the frame level.
func diffAgainst(prev, next []byte) []byte {
	if bytes.Equal(prev, next) {
		return nil
	}
	return next
}

func (e *Engine) recordSuccess(rawLen, outLen int, elapsed time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stats.TotalCaptures++
	e.stats.SuccessfulCaptures++
	e.stats.TotalBytesCaptured += uint64(rawLen)
	e.stats.TotalBytesCompressed += uint64(outLen)
	e.stats.LastCaptureTime = time.Now()

	if e.stats.FastestCaptureTime == 0 || elapsed < e.stats.FastestCaptureTime {
		e.stats.FastestCaptureTime = elapsed
	}
	if elapsed > e.stats.SlowestCaptureTime {
		e.stats.SlowestCaptureTime = elapsed
	}
	n := time.Duration(e.stats.SuccessfulCaptures)
	e.stats.AverageCaptureTime += (elapsed - e.stats.AverageCaptureTime) / n
}

func (e *Engine) recordFailure() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stats.TotalCaptures++
	e.stats.FailedCaptures++
}

// MultiCaptureResult pairs a display ID with its capture outcome so a
// caller can tell which display an error belongs to.
type MultiCaptureResult struct {
	DisplayID uint32
	Result    *CaptureResult
	Err       error
}

// CaptureMultipleDisplays captures every display concurrently. A failure on
// one display is isolated to its own result and does not prevent the
// others from completing.
func (e *Engine) CaptureMultipleDisplays(displayIDs []uint32, opts CaptureOptions) []MultiCaptureResult {
	results := make([]MultiCaptureResult, len(displayIDs))
	var wg sync.WaitGroup
	for i, id := range displayIDs {
		wg.Add(1)
		go func(i int, id uint32) {
			defer wg.Done()
			perDisplay := opts
			perDisplay.DisplayID = id
			res, err := e.EnhancedCaptureScreen(perDisplay)
			if err != nil {
				log.Warn("display capture failed, continuing with remaining displays", "displayId", id, "error", err)
			}
			results[i] = MultiCaptureResult{DisplayID: id, Result: res, Err: err}
		}(i, id)
	}
	wg.Wait()
	return results
}

// AutoOptimizeSettings retunes quality, resolution cap, and differential
// capture from the engine's own running statistics: a slow average capture
// time lowers quality and caps resolution, a consistently fast one raises
// quality, and enough capture history turns on differential capture.
func (e *Engine) AutoOptimizeSettings() {
	e.mu.Lock()
	defer e.mu.Unlock()

	avg := e.stats.AverageCaptureTime
	total := e.stats.TotalCaptures

	if avg > 100*time.Millisecond {
		e.settings.QualityLevel -= 10
		if e.settings.QualityLevel < 30 {
			e.settings.QualityLevel = 30
		}
		e.settings.MaxResolutionWidth = 1280
		e.settings.MaxResolutionHeight = 720
	} else if avg > 0 && avg < 16*time.Millisecond {
		e.settings.QualityLevel += 5
		if e.settings.QualityLevel > 95 {
			e.settings.QualityLevel = 95
		}
	}

	if total > 10 {
		e.settings.EnableDifferentialCapture = true
	}
}
