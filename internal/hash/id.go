// Package hash provides the fast name-to-id primitive used by convert.Index
// for channel-name lookups. Ported from mebo/internal/hash.
package hash

import "github.com/cespare/xxhash/v2"

// ID computes the xxHash64 of a channel name, used as the key for the
// convert.Index name-lookup map.
func ID(name string) uint64 {
	return xxhash.Sum64String(name)
}
