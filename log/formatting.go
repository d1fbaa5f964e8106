package log

import (
	"strconv"
	"strings"
)

const (
	timeLayout = "060102 15:04:05.000"
	// fileWidth is how many trailing characters of the source file name are
	// kept in a line.
	fileWidth = 10
)

var severityNames = [...]string{
	TraceLevel:    "TRAC",
	DebugLevel:    "DEBU",
	InfoLevel:     "INFO",
	WarningLevel:  "WARN",
	ErrorLevel:    "ERRO",
	CriticalLevel: "CRIT",
}

func (s Severity) String() string {
	if int(s) < len(severityNames) && severityNames[s] != "" {
		return severityNames[s]
	}
	return "NONE"
}

// formatLine renders a line as
// "<time> <file>:<line> ▶ <LEVEL> <message>".
func formatLine(line *logLine) string {
	var b strings.Builder
	b.Grow(len(timeLayout) + fileWidth + len(line.msg) + 16)

	b.WriteString(line.timestamp.Format(timeLayout))
	b.WriteByte(' ')
	if line.line == 0 {
		b.WriteByte('?')
	} else {
		b.WriteString(shortFile(line.file))
		b.WriteByte(':')
		if line.line < 100 {
			b.WriteString(strings.Repeat("0", 3-len(strconv.Itoa(line.line))))
		}
		b.WriteString(strconv.Itoa(line.line))
	}
	b.WriteString(" ▶ ")
	b.WriteString(line.level.String())
	b.WriteByte(' ')
	b.WriteString(line.msg)
	return b.String()
}

func shortFile(file string) string {
	if len(file) > fileWidth {
		return file[len(file)-fileWidth:]
	}
	return file
}
