// Package viewerapi serves the table viewer page and its JSON API over any
// transport that can satisfy Request and Response. adapters/http binds it to
// net/http and adapters/router to go-router.
//
// Routes, relative to Config.BasePath:
//
//	GET  /                 viewer page
//	POST /fetch            form field "url"; starts a fetch, 303 to the page
//	GET  /export/{format}  download table_data.{ext}; 204 when no data is held
//	GET  /api/state        JSON snapshot of the session
//	POST /api/fetch        {"url": "..."}; waits for the fetch to resolve
//
// Each browser session owns one viewer.Controller, keyed by a cookie.
package viewerapi
