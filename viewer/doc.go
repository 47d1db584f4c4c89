// Package viewer holds the table page state for one browser session.
//
// A Controller owns the URL text, the current record set and the in-flight
// flag. Every fetch gets a sequence token and cancels the fetch it replaces,
// so only the most recently started fetch can change the displayed data.
package viewer
