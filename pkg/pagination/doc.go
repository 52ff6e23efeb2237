// Package pagination walks the pages of the listing endpoint for one
// location, one request at a time.
//
// Offsets start at 0 and increase by one until the configured StopStrategy
// ends the walk or MaxPages is reached, whichever comes first. Every
// non-empty batch is handed to the caller before the next page is requested.
//
// Example usage:
//
//	p := pagination.NewPaginator(fetcher, pagination.DefaultConfig(), logger)
//	res, err := p.Run(ctx, loc, func(offset int, batch []listing.Record) error {
//		return write(batch)
//	})
//
// FirstEmpty, the default strategy, stops at the first empty page. That is a
// heuristic rather than a completeness guarantee: the endpoint could return
// an empty page followed by more data. ConsecutiveEmpty tolerates a number
// of empty pages for endpoints where that is observed.
package pagination
