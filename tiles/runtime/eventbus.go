// Package runtime provides the conversion driver's progress/log/warning/
// error event bus: structured logging via go.uber.org/zap, the same
// dependency the teacher's Caddy proxy module wires up for its request
// logger (caddy/pmtiles_proxy.go's zap.Logger field), plus human-readable
// byte-count formatting via github.com/dustin/go-humanize and an optional
// terminal progress bar via github.com/schollz/progressbar/v3, both
// grounded on the teacher's extract.go/sync.go/makesync.go progress
// reporting. None of this is required for conversion correctness (spec
// section 4.9): a nil EventBus is a valid, silent EventBus.
package runtime

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
)

// EventBus is the conversion driver's sole channel for progress, log,
// warning, and error events. Implementations must be safe for concurrent
// use: the driver may emit Step/Progress from multiple transform workers.
type EventBus interface {
	// Log emits an informational message.
	Log(msg string, fields ...Field)
	// Warn emits a recoverable-condition message (e.g. a skipped chunk).
	Warn(msg string, fields ...Field)
	// Error emits a fatal-condition message before the driver aborts.
	Error(msg string, fields ...Field)
	// Step announces the start of a named phase (e.g. "writing block
	// z=4 bx=2 by=1") with a total item count, returning a Progress
	// handle for per-item advancement.
	Step(name string, total int64) Progress
}

// Progress tracks a single phase's completion, backed by a terminal
// progress bar when the bus was built with showBars=true.
type Progress interface {
	Add(n int64)
	Finish()
}

// Field is a structured log field, re-exported so callers don't need to
// import zap directly to build an EventBus call.
type Field = zap.Field

// String, Int, and Uint64 mirror the zap constructors most conversion
// call sites need, saving callers an extra import.
func String(key, value string) Field { return zap.String(key, value) }
func Int(key string, value int) Field { return zap.Int(key, value) }
func Uint64(key string, value uint64) Field { return zap.Uint64(key, value) }

// ZapBus is the default EventBus, logging through a *zap.Logger and
// optionally rendering a terminal progress bar per Step.
type ZapBus struct {
	logger   *zap.Logger
	showBars bool
}

var _ EventBus = (*ZapBus)(nil)

// NewZapBus builds an EventBus around logger. Pass showBars=true for
// interactive CLI use (cmd/versatiles); server-style callers that already
// have their own request logging should pass false.
func NewZapBus(logger *zap.Logger, showBars bool) *ZapBus {
	return &ZapBus{logger: logger, showBars: showBars}
}

// NewDevelopmentBus builds a ZapBus around zap's development logger
// (console-encoded, human-readable), the configuration the teacher's CLI
// tools favor over the production JSON encoder used by long-running
// servers.
func NewDevelopmentBus(showBars bool) *ZapBus {
	logger, err := zap.NewDevelopment()
	if err != nil {
		logger = zap.NewNop()
	}
	return &ZapBus{logger: logger, showBars: showBars}
}

func (b *ZapBus) Log(msg string, fields ...Field)   { b.logger.Info(msg, fields...) }
func (b *ZapBus) Warn(msg string, fields ...Field)   { b.logger.Warn(msg, fields...) }
func (b *ZapBus) Error(msg string, fields ...Field)  { b.logger.Error(msg, fields...) }

func (b *ZapBus) Step(name string, total int64) Progress {
	if !b.showBars {
		b.logger.Info(name, zap.Int64("total", total), zap.String("total_human", humanize.Comma(total)))
		return noopProgress{}
	}
	bar := progressbar.NewOptions64(total,
		progressbar.OptionSetDescription(name),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
	)
	return &barProgress{bar: bar}
}

type barProgress struct{ bar *progressbar.ProgressBar }

func (p *barProgress) Add(n int64) { p.bar.Add64(n) }
func (p *barProgress) Finish()     { p.bar.Finish() }

type noopProgress struct{}

func (noopProgress) Add(int64) {}
func (noopProgress) Finish()   {}

// NopBus discards every event, for library callers that don't want any
// conversion-time logging.
var NopBus EventBus = nopBus{}

type nopBus struct{}

func (nopBus) Log(string, ...Field)          {}
func (nopBus) Warn(string, ...Field)         {}
func (nopBus) Error(string, ...Field)        {}
func (nopBus) Step(string, int64) Progress   { return noopProgress{} }

// FormatBytes renders a byte count the way the teacher's sync/makesync
// progress output does (humanize.Bytes), used by log fields that report
// transfer sizes.
func FormatBytes(n uint64) string { return humanize.Bytes(n) }

// FormatBytesf is FormatBytes for a fmt.Stringer-style call site that
// already has a formatted prefix to attach.
func FormatBytesf(format string, n uint64) string { return fmt.Sprintf(format, humanize.Bytes(n)) }
