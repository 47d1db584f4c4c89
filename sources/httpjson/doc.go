// Package exporthttpjson fetches JSON arrays of objects over HTTP.
//
// Example:
//
//	fetcher := exporthttpjson.NewFetcher(exporthttpjson.Config{Timeout: 10 * time.Second})
//	set, err := fetcher.Fetch(ctx, "https://api.example.com/items")
//	switch export.KindFromError(err) {
//	case export.KindNetwork, export.KindStatus, export.KindDecode, export.KindHeterogeneous:
//		// no data
//	}
//
// Source wraps a fetcher as an export.RowSource so a URL can be exported
// directly through export.Runner.
package exporthttpjson
