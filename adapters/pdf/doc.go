// Package exportpdf renders the fetched table as a PDF document.
//
// The HTML stage is the pongo2 "document" template; a pluggable Engine
// (headless Chromium or wkhtmltopdf) converts that HTML to PDF bytes.
package exportpdf
