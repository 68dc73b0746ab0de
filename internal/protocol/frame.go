package protocol

import (
	"bytes"
	"fmt"
	"strings"
)

// Frame delimiters for the stderr log channel.
const (
	StartOfHeader = '\x01'
	StartOfText   = '\x02'
)

// Level tags a log record on the stderr channel. The wire protocol defines no
// ordering between levels; severity is the host's business.
type Level string

const (
	// NoLevel has an empty wire code. Emitting it is a no-op.
	NoLevel       Level = ""
	TraceLevel    Level = "trace"
	DebugLevel    Level = "debug"
	InfoLevel     Level = "info"
	WarningLevel  Level = "warning"
	ErrorLevel    Level = "error"
	ProgressLevel Level = "progress"
)

var levelCodes = map[Level]byte{
	TraceLevel:    't',
	DebugLevel:    'd',
	InfoLevel:     'i',
	WarningLevel:  'w',
	ErrorLevel:    'e',
	ProgressLevel: 'p',
}

// Levels lists every level that has a wire code.
var Levels = []Level{TraceLevel, DebugLevel, InfoLevel, WarningLevel, ErrorLevel, ProgressLevel}

// Code returns the single-character wire code, or "" for NoLevel and
// unknown levels.
func (l Level) Code() string {
	c, ok := levelCodes[l]
	if !ok {
		return ""
	}
	return string(c)
}

// LevelFromCode maps a wire code back to its level.
func LevelFromCode(c byte) (Level, bool) {
	for l, code := range levelCodes {
		if code == c {
			return l, true
		}
	}
	return NoLevel, false
}

// ParseLevel resolves a configured level name. Besides the canonical names it
// accepts "warn" and "none" (NoLevel).
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return TraceLevel, nil
	case "debug":
		return DebugLevel, nil
	case "info":
		return InfoLevel, nil
	case "warn", "warning":
		return WarningLevel, nil
	case "error":
		return ErrorLevel, nil
	case "progress":
		return ProgressLevel, nil
	case "none", "":
		return NoLevel, nil
	}
	return NoLevel, fmt.Errorf("unknown log level %q", s)
}

// AppendFrame appends one framed record to dst. It returns dst unchanged when
// the level has no code.
func AppendFrame(dst []byte, level Level, msg string) []byte {
	code, ok := levelCodes[level]
	if !ok {
		return dst
	}
	dst = append(dst, StartOfHeader, code, StartOfText)
	dst = append(dst, msg...)
	return append(dst, '\n')
}

// EncodeFrame returns the framed bytes for one record.
func EncodeFrame(level Level, msg string) []byte {
	return AppendFrame(make([]byte, 0, len(msg)+4), level, msg)
}

// DecodeFrame parses one stderr line. Anything before the SOH byte is noise
// and is ignored; the text after STX up to the line end is the message. ok is
// false when the line carries no frame.
func DecodeFrame(line []byte) (level Level, msg string, ok bool) {
	line = bytes.TrimRight(line, "\r\n")
	i := bytes.IndexByte(line, StartOfHeader)
	if i < 0 {
		return NoLevel, "", false
	}
	rest := line[i+1:]
	if len(rest) < 2 || rest[1] != StartOfText {
		return NoLevel, "", false
	}
	level, ok = LevelFromCode(rest[0])
	if !ok {
		return NoLevel, "", false
	}
	return level, string(rest[2:]), true
}
