package export

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"
)

type filenameData struct {
	Format    string
	Source    string
	Timestamp string
	Date      string
}

// Filename renders the download name for a request. The base defaults to
// DefaultFilename and may reference {{.Timestamp}}, {{.Date}}, {{.Format}}
// and {{.Source}}.
func Filename(base string, format Format, source string, now time.Time) (string, error) {
	name := strings.TrimSpace(base)
	if name == "" {
		name = DefaultFilename
	}

	data := filenameData{
		Format:    string(format),
		Source:    source,
		Timestamp: now.UTC().Format("20060102T150405Z"),
		Date:      now.UTC().Format("20060102"),
	}

	tmpl, err := template.New("filename").Parse(name)
	if err != nil {
		return "", NewError(KindValidation, "invalid filename template", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", NewError(KindValidation, "invalid filename template", err)
	}

	result := strings.TrimSpace(buf.String())
	if result == "" {
		return "", NewError(KindValidation, "empty filename", fmt.Errorf("template %q rendered empty", name))
	}

	ext := Extension(format)
	if !strings.HasSuffix(strings.ToLower(result), "."+ext) {
		result = result + "." + ext
	}
	return result, nil
}
