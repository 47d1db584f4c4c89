package export

import "strings"

// NormalizeFormat coerces format values into known aliases with defaults applied.
func NormalizeFormat(format Format) Format {
	normalized := strings.ToLower(strings.TrimSpace(string(format)))
	switch normalized {
	case "", string(FormatCSV):
		return FormatCSV
	case "excel", "xls":
		return FormatXLSX
	case "html", "htm":
		return FormatTemplate
	case "sqlite", "sqlite3", "db":
		return FormatSQLite
	default:
		return Format(normalized)
	}
}

// Extension returns the file extension used for the format.
func Extension(format Format) string {
	switch format {
	case FormatTemplate:
		return "html"
	case "":
		return string(FormatCSV)
	default:
		return string(format)
	}
}

// ContentTypeForFormat returns the MIME type served for the format.
func ContentTypeForFormat(format Format) string {
	switch format {
	case FormatCSV:
		return "text/csv"
	case FormatJSON:
		return "application/json"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatTemplate:
		return "text/html"
	case FormatPDF:
		return "application/pdf"
	case FormatSQLite:
		return "application/vnd.sqlite3"
	default:
		return "application/octet-stream"
	}
}
