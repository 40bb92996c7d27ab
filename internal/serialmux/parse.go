package serialmux

import (
	"strings"

	"github.com/banshee-data/stroke.report/internal/ingest"
)

const (
	LineBlank   = "blank"
	LineReading = "reading"
	LineUnknown = "unknown"
)

// ClassifyLine sorts a raw serial line. The firmware prints boot banners and
// Wi-Fi chatter between readings; only JSON objects are readings.
func ClassifyLine(line string) string {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return LineBlank
	case strings.HasPrefix(line, "{"):
		return LineReading
	default:
		return LineUnknown
	}
}

// ParseLine decodes a reading line. It fails with a *telemetry.DecodeError
// when the line is not JSON or is missing a motion field.
func ParseLine(line string) (ingest.Reading, error) {
	return ingest.DecodeReading([]byte(strings.TrimSpace(line)))
}
