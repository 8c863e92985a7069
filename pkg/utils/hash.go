package utils

import (
	"crypto/md5"
	"fmt"
	"strings"
)

func HashString(input string) string {
	hash := md5.Sum([]byte(input))
	return fmt.Sprintf("%x", hash)
}

// CacheKey builds a namespaced cache key from its parts, lowercased.
func CacheKey(parts ...string) string {
	lowered := make([]string, len(parts))
	for i, p := range parts {
		lowered[i] = strings.ToLower(strings.TrimSpace(p))
	}
	return strings.Join(lowered, ":")
}

// AnonymizeUsername replaces a username with a stable opaque token so
// snapshots can be stored without the raw handle.
func AnonymizeUsername(username string) string {
	return "anon-" + HashString(strings.ToLower(username))[:12]
}
