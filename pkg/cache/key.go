package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// KeyPrefix namespaces all cache keys.
const KeyPrefix = "places"

// CacheKey identifies a cached response.
type CacheKey struct {
	// Host is the upstream host (e.g., "www.swiggy.com"). Empty omits it.
	Host string

	// Endpoint is the request path (e.g., "/dapi/misc/place-autocomplete")
	Endpoint string

	// QueryParams are the query parameters (e.g., {"input": "Pune"})
	QueryParams url.Values
}

// String generates a deterministic cache key string.
// Format: places:host:endpoint:query1=val1:query2=val2
//
// Example:
//
//	places:www.swiggy.com:dapi/misc/place-autocomplete:input=Pune:types=
func (k CacheKey) String() string {
	parts := []string{KeyPrefix}
	if k.Host != "" {
		parts = append(parts, k.Host)
	}

	endpoint := strings.Trim(k.Endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	if len(k.QueryParams) > 0 {
		queryKeys := make([]string, 0, len(k.QueryParams))
		for key := range k.QueryParams {
			queryKeys = append(queryKeys, key)
		}
		sort.Strings(queryKeys)

		for _, key := range queryKeys {
			parts = append(parts, fmt.Sprintf("%s=%s", key, k.QueryParams.Get(key)))
		}
	}

	return strings.Join(parts, ":")
}
