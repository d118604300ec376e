package logbus

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
)

var levelRank = map[string]int{
	"debug": 0,
	"info":  1,
	"warn":  2,
	"error": 3,
}

// ConsoleSink renders log messages as timestamped human-readable lines.
// Messages below minLevel and non-log messages are skipped.
func ConsoleSink(w io.Writer, minLevel string) Sink {
	min, ok := levelRank[strings.ToLower(minLevel)]
	if !ok {
		min = levelRank["info"]
	}
	return func(msg Message) {
		data, ok := msg.Data.(LogData)
		if !ok || msg.Type != "log" {
			return
		}
		rank, ok := levelRank[data.Level]
		if ok && rank < min {
			return
		}
		_, _ = io.WriteString(w, FormatLine(time.UnixMilli(msg.Time), data)+"\n")
	}
}

// FormatLine renders one log entry; fields are sorted by key.
func FormatLine(at time.Time, data LogData) string {
	var sb strings.Builder
	sb.WriteString("[")
	sb.WriteString(at.Format("2006-01-02 15:04:05"))
	sb.WriteString("] ")
	sb.WriteString(fmt.Sprintf("%-5s ", strings.ToUpper(data.Level)))
	sb.WriteString(data.Msg)

	keys := make([]string, 0, len(data.Fields))
	for k := range data.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := fmt.Sprint(data.Fields[k])
		if strings.ContainsAny(v, " \t") {
			v = fmt.Sprintf("%q", v)
		}
		sb.WriteString(" ")
		sb.WriteString(k)
		sb.WriteString("=")
		sb.WriteString(v)
	}
	return sb.String()
}
