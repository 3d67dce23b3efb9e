package utils

import (
	"crypto/md5"
	"fmt"
)

func HashString(input string) string {
	hash := md5.Sum([]byte(input))
	return fmt.Sprintf("%x", hash)
}

// CacheKey builds a namespaced cache key from arbitrary-length input without
// leaking the input itself into the keyspace.
func CacheKey(prefix, input string) string {
	return fmt.Sprintf("%s:%s", prefix, HashString(input))
}
