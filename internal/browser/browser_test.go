package browser

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/maltedev/refurb-crawler/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	assert.True(t, opts.Headless)
	assert.Equal(t, 30*time.Second, opts.Timeout)
	assert.Equal(t, "Mozilla/5.0 (compatible; RefurbCrawler/1.0)", opts.UserAgent)
	assert.Equal(t, "en-US", opts.Locale)
}

func TestMatchesMoreButton(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"Load more", true},
		{"  Weitere Produkte anzeigen ", true},
		{"Voir plus de produits", true},
		{"Cargar más", true},
		{"Carica altro", true},
		{"VIEW MORE", true},
		{"Add to Bag", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, matchesMoreButton(tt.text))
		})
	}
}

func TestRenderer_Integration(t *testing.T) {
	if os.Getenv("INTEGRATION_TEST") != "true" {
		t.Skip("Skipping integration test. Set INTEGRATION_TEST=true to run")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
<ul id="items"><li><a href="/shop/product/FAAA1/A">one</a></li></ul>
<button onclick="document.getElementById('items').insertAdjacentHTML('beforeend','<li><a href=&quot;/shop/product/FBBB2/A&quot;>two</a></li>');this.remove()">Load more</button>
</body></html>`)
	}))
	defer srv.Close()

	b, err := New(DefaultOptions(), nil)
	require.NoError(t, err)
	defer b.Close()

	r := NewRenderer(b, ratelimit.NewJitterDelay(0, 0), nil)
	ctx := context.Background()

	page, err := r.Open(ctx, srv.URL+"/shop/refurbished")
	require.NoError(t, err)
	defer page.Close()

	assert.True(t, r.RevealMore(ctx, page))

	links, err := r.ExtractLinks(ctx, page, srv.URL+"/shop/refurbished")
	require.NoError(t, err)
	assert.Equal(t, []string{
		srv.URL + "/shop/product/FAAA1/A",
		srv.URL + "/shop/product/FBBB2/A",
	}, links)
}
