// Package dataset holds fetched record sets.
//
// A Record keeps the key order of the JSON object it was decoded from, so the
// first record of a set can define column order for rendering and exports.
// Scalar values decode to string, json.Number, bool or nil. Nested objects
// and arrays are kept as compact json.RawMessage text.
package dataset
