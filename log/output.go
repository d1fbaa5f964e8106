package log

import (
	"fmt"
	"time"
)

func writeLine(line *logLine) {
	outputLock.Lock()
	defer outputLock.Unlock()

	fmt.Fprintln(output, formatLine(line))
}

func startWriter() {
	writerStartOnce.Do(func() {
		writerRunning.Set()
		go writer()
	})
}

func writer() {
	defer writerRunning.UnSet()

	for {
		// wait until logs need to be processed
		select {
		case <-logsWaiting:
			logsWaitingFlag.UnSet()
			drainBuffer()
		case done := <-flushRequests:
			logsWaitingFlag.UnSet()
			drainBuffer()
			close(done)
		case <-writerStopSignal:
			drainBuffer()
			writeLine(&logLine{
				msg:       "===== LOGGING STOPPED =====",
				level:     WarningLevel,
				timestamp: time.Now(),
			})
			return
		}
	}
}

func drainBuffer() {
	for {
		select {
		case line := <-logBuffer:
			writeLine(line)
		default:
			return
		}
	}
}

// Flush blocks until all log lines logged before the call are written.
func Flush() {
	if !writerRunning.IsSet() {
		return
	}

	done := make(chan struct{})
	select {
	case flushRequests <- done:
		<-done
	case <-writerStopSignal:
	}
}

// Shutdown writes all remaining log lines and stops the writer. Log lines
// logged after shutdown are dropped once the buffer is full.
func Shutdown() {
	if writerRunning.IsSet() {
		select {
		case <-writerStopSignal:
		default:
			close(writerStopSignal)
		}
	}
}
