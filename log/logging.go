package log

import (
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tevino/abool"
)

// concept
/*
- Logging function:
  - check if package-based levelling enabled
    - if yes, check if level is active for this package
  - check if level is active
  - send data to backend via big buffered channel
- Backend:
  - single writer goroutine, woken up when there are logs waiting
  - writes everything in the buffer to the configured output
- Channel overbuffering protection:
  - if buffer is full, wake the writer and block until there is space
*/

// Severity describes a log level.
type Severity uint32

type logLine struct {
	msg       string
	level     Severity
	timestamp time.Time
	file      string
	line      int
}

// Log Levels.
const (
	TraceLevel    Severity = 1
	DebugLevel    Severity = 2
	InfoLevel     Severity = 3
	WarningLevel  Severity = 4
	ErrorLevel    Severity = 5
	CriticalLevel Severity = 6
)

var (
	logBuffer     chan *logLine
	flushRequests = make(chan chan struct{})

	logLevelInt = uint32(InfoLevel)
	logLevel    = &logLevelInt

	pkgLevelsActive = abool.NewBool(false)
	pkgLevels       = make(map[string]Severity)
	pkgLevelsLock   sync.Mutex

	logsWaiting     = make(chan struct{}, 1)
	logsWaitingFlag = abool.NewBool(false)

	output     io.Writer = os.Stdout
	outputLock sync.Mutex

	warnLogLines     atomic.Uint64
	errLogLines      atomic.Uint64
	critLogLines     atomic.Uint64
	droppedLogLines  atomic.Uint64
	writerRunning    = abool.NewBool(false)
	writerStartOnce  sync.Once
	writerStopSignal = make(chan struct{})
)

func init() {
	logBuffer = make(chan *logLine, 1024)
	startWriter()
}

// SetPkgLevels sets individual log levels for packages. Keys are the
// package (directory) names as they appear in the caller's file path.
func SetPkgLevels(levels map[string]Severity) {
	pkgLevelsLock.Lock()
	pkgLevels = levels
	pkgLevelsLock.Unlock()
	pkgLevelsActive.Set()
}

// UnSetPkgLevels removes all individual log levels for packages.
func UnSetPkgLevels() {
	pkgLevelsActive.UnSet()
}

// SetLogLevel sets a new log level.
func SetLogLevel(level Severity) {
	atomic.StoreUint32(logLevel, uint32(level))
}

// GetLogLevel returns the current log level.
func GetLogLevel() Severity {
	return Severity(atomic.LoadUint32(logLevel))
}

// SetOutput sets the writer log lines are written to. A nil writer resets
// the output to stdout.
func SetOutput(w io.Writer) {
	outputLock.Lock()
	defer outputLock.Unlock()
	if w == nil {
		w = os.Stdout
	}
	output = w
}

// ParseLevel returns the level severity of a log level name.
func ParseLevel(level string) Severity {
	switch strings.ToLower(level) {
	case "trace":
		return TraceLevel
	case "debug":
		return DebugLevel
	case "info":
		return InfoLevel
	case "warning", "warn":
		return WarningLevel
	case "error":
		return ErrorLevel
	case "critical":
		return CriticalLevel
	}
	return 0
}

// TotalWarningLogLines returns the total amount of warning log lines since
// start of the program.
func TotalWarningLogLines() uint64 {
	return warnLogLines.Load()
}

// TotalErrorLogLines returns the total amount of error log lines since start
// of the program.
func TotalErrorLogLines() uint64 {
	return errLogLines.Load()
}

// TotalCriticalLogLines returns the total amount of critical log lines since
// start of the program.
func TotalCriticalLogLines() uint64 {
	return critLogLines.Load()
}
