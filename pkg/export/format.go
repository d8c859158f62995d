package export

import (
	"fmt"
	"strings"
	"time"
)

// Format is an export file type.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
	FormatPDF  Format = "pdf"
)

// Renderer turns a dataset into file bytes. title is the sheet name for
// spreadsheets and the heading for PDFs.
type Renderer interface {
	Render(data Dataset, title string) ([]byte, error)
}

// ParseFormat validates a format name, case-insensitively.
func ParseFormat(raw string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(raw))); f {
	case FormatXLSX, FormatCSV, FormatPDF:
		return f, nil
	}
	return "", fmt.Errorf("unsupported export format %q", raw)
}

// ContentType returns the MIME type served for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatPDF:
		return "application/pdf"
	default:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
}

// FileName builds "<prefix>_YYYY-MM-DD.<ext>".
func FileName(prefix string, date time.Time, f Format) string {
	return fmt.Sprintf("%s_%s.%s", prefix, date.Format("2006-01-02"), f)
}

// Renderers returns the built-in renderer for every format.
func Renderers() map[Format]Renderer {
	return map[Format]Renderer{
		FormatXLSX: NewXLSXExporter(),
		FormatCSV:  NewCSVExporter(),
		FormatPDF:  NewPDFExporter(),
	}
}
