// Package exporttemplate renders record sets through HTML templates.
//
// Renderer is disabled by default; set Renderer.Enabled to true and supply
// Templates (TemplateExecutor). The default template name is "table", which
// the pongo2 subpackage ships as an embedded template.
//
// Templates receive TemplateData. Cells holds every value pre-formatted as
// display text (numbers keep their source literal, booleans print true/false,
// null prints empty, nested values print as compact JSON), so templates never
// need engine-specific value formatting. BufferedStrategy is the only
// strategy and bounds buffering with DefaultMaxBufferedRows.
//
// The same renderer produces the page table, the "template" (HTML) export and
// the HTML stage of the PDF export.
package exporttemplate
