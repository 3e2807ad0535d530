package exports

import (
	"errors"
	"time"
)

const (
	FormatPDF = "pdf"
	FormatCSV = "csv"
)

var ErrInvalidFormat = errors.New("format must be 'pdf' or 'csv'")

// Result is either a link to an uploaded file or the file itself.
type Result struct {
	URL         string
	ExpiresAt   time.Time
	ObjectKey   string
	Filename    string
	ContentType string
	Data        []byte
}

func contentType(format string) string {
	if format == FormatCSV {
		return "text/csv; charset=utf-8"
	}
	return "application/pdf"
}
