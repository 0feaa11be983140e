// Package cache stores merged and per-provider offer lists for a bounded
// time so repeated searches and provider failures can be served locally.
package cache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sells-group/travelsearch/internal/model"
)

// DefaultTTL applies when Set is called with a non-positive ttl.
const DefaultTTL = 5 * time.Minute

// keyPrefix namespaces offer list keys.
const keyPrefix = "offers:"

// Cache is a time-bounded key to offer list store. Backend failures are
// logged and reported as misses; callers never see an error.
type Cache interface {
	// Get returns the cached offers, or false on a miss or expired entry.
	Get(ctx context.Context, key string) ([]model.Offer, bool)
	// Set stores data under key. A ttl <= 0 uses DefaultTTL.
	Set(ctx context.Context, key string, data []model.Offer, ttl time.Duration)
	// Clear removes every entry.
	Clear(ctx context.Context)
	// Size returns the number of stored entries, including expired entries
	// that have not been read since they expired.
	Size(ctx context.Context) int
}

// Entry is one cached offer list.
type Entry struct {
	Key       string        `json:"key"`
	Data      []model.Offer `json:"data"`
	Timestamp time.Time     `json:"timestamp"`
	TTL       time.Duration `json:"ttl"`
}

// Expired reports whether the entry is stale at now.
func (e Entry) Expired(now time.Time) bool {
	return now.Sub(e.Timestamp) > e.TTL
}

// Key builds the cache key for a search. Logically identical searches always
// produce the same key: the provider filter is sorted and deduplicated and
// text fields are case-folded.
func Key(vertical model.Vertical, params model.SearchParams, providers []string) string {
	travelers := params.Travelers
	if travelers <= 0 {
		travelers = 1
	}

	normalized := fmt.Sprintf("%s|%s|%s|%s|%s|%d|%s",
		strings.ToLower(string(vertical)),
		strings.ToUpper(strings.TrimSpace(params.Origin)),
		strings.ToUpper(strings.TrimSpace(params.Destination)),
		strings.TrimSpace(params.StartDate),
		strings.TrimSpace(params.EndDate),
		travelers,
		strings.Join(sortedUnique(providers), ","),
	)
	h := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("%s%x", keyPrefix, h)
}

// ProviderKey builds the key holding a single provider's last good result,
// used as a fallback when that provider fails.
func ProviderKey(vertical model.Vertical, params model.SearchParams, provider string) string {
	return Key(vertical, params, []string{provider})
}

// ShortKey trims a key for log fields.
func ShortKey(key string) string {
	key = strings.TrimPrefix(key, keyPrefix)
	if len(key) > 12 {
		return key[:12]
	}
	return key
}

func sortedUnique(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func effectiveTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return DefaultTTL
	}
	return ttl
}

// cloneOffers copies the slice so callers cannot mutate stored entries.
func cloneOffers(in []model.Offer) []model.Offer {
	if in == nil {
		return nil
	}
	out := make([]model.Offer, len(in))
	copy(out, in)
	return out
}
