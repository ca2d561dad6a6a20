package urlutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"strips fragment", "https://www.apple.com/shop/refurbished/mac#top", "https://www.apple.com/shop/refurbished/mac", true},
		{"strips trailing slash", "https://www.apple.com/de/shop/refurbished/", "https://www.apple.com/de/shop/refurbished", true},
		{"keeps query", "https://www.apple.com/shop/product/FK0C3LL/A?fnode=abc", "https://www.apple.com/shop/product/FK0C3LL/A?fnode=abc", true},
		{"lowercases host and scheme", "HTTPS://WWW.Apple.COM/Shop", "https://www.apple.com/Shop", true},
		{"root path", "https://www.apple.com/", "https://www.apple.com", true},
		{"drops user info", "https://user:pw@example.com/a", "https://example.com/a", true},
		{"relative rejected", "/shop/refurbished", "", false},
		{"mailto rejected", "mailto:someone@example.com", "", false},
		{"javascript rejected", "javascript:void(0)", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Normalize(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve(t *testing.T) {
	got, ok := Resolve("https://www.apple.com/de/shop/refurbished", "/de/shop/product/FK0C3D/A/macbook-air#specs")
	assert.True(t, ok)
	assert.Equal(t, "https://www.apple.com/de/shop/product/FK0C3D/A/macbook-air", got)

	got, ok = Resolve("https://www.apple.com/de/shop/refurbished/mac", "ipad/")
	assert.True(t, ok)
	assert.Equal(t, "https://www.apple.com/de/shop/refurbished/ipad", got)
}

func TestSameHost(t *testing.T) {
	assert.True(t, SameHost("https://www.apple.com/a", "http://WWW.APPLE.COM:443/b"))
	assert.False(t, SameHost("https://www.apple.com/a", "https://support.apple.com/b"))
	assert.False(t, SameHost("", ""))
}

func TestHashURL(t *testing.T) {
	a := HashURL("https://www.apple.com/a")
	assert.Len(t, a, 64)
	assert.Equal(t, a, HashURL("https://www.apple.com/a"))
	assert.NotEqual(t, a, HashURL("https://www.apple.com/b"))
}
