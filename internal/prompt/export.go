package prompt

import "time"

// ExportFormatVersion is written into every export envelope.
const ExportFormatVersion = "1.0.0"

// Export is the envelope used for export files and the EXPORT_DATA message.
type Export struct {
	// ExportDate is an ISO-8601 timestamp
	ExportDate string `json:"exportDate"`
	Version    string `json:"version"`
	Data       *Data  `json:"data"`
}

// NewExport wraps a copy of d in an export envelope.
func NewExport(d *Data, now time.Time) *Export {
	return &Export{
		ExportDate: now.UTC().Format(time.RFC3339Nano),
		Version:    ExportFormatVersion,
		Data:       d.Clone(),
	}
}

// Millis converts t to Unix milliseconds, the unit used for all stored instants.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}
