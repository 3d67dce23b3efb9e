package utils

import "testing"

func TestHashString(t *testing.T) {
	if got := HashString("resource based view"); got != "8d82fc38cfccfbbd1c718d0107676ce9" {
		t.Errorf("HashString() = %q", got)
	}
	if got := HashString(""); got != "d41d8cd98f00b204e9800998ecf8427e" {
		t.Errorf("HashString(empty) = %q", got)
	}
}

func TestCacheKey(t *testing.T) {
	key := CacheKey("resolution:Theory", "resource based view")
	want := "resolution:Theory:8d82fc38cfccfbbd1c718d0107676ce9"
	if key != want {
		t.Errorf("CacheKey() = %q, want %q", key, want)
	}
}
