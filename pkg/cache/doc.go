// Package cache stores place-resolution responses in Redis.
//
// Resolving a city takes two sequential calls (autocomplete, then
// recommend) whose answers rarely change. Caching them keeps repeated runs
// from hitting the platform's misc endpoints for every city.
//
// # Basic Usage
//
//	manager := cache.NewManager(redisClient)
//
//	key := cache.CacheKey{
//		Host:        "www.swiggy.com",
//		Endpoint:    "/dapi/misc/place-autocomplete",
//		QueryParams: url.Values{"input": []string{"Pune"}},
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch, then
//		manager.Set(ctx, key, cache.NewEntry(body, 200, cache.DefaultTTL))
//	}
//
// Remember wraps the same flow and stores only 200 responses. A failed store
// is logged at debug level and the loaded response is still returned:
//
//	body, status, err := manager.Remember(ctx, key, load)
//
// # Metrics
//
//   - places_cache_hits_total{layer="redis"} - Cache hits
//   - places_cache_misses_total - Cache misses
//   - places_cache_size_bytes{layer="redis"} - Bytes read from and written to the cache
//   - places_cache_errors_total{operation} - Cache operation errors
package cache
