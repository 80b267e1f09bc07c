package googleshopping

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/stylematch/internal/domain"
)

const resultsPage = `<html><body>
<div class="sh-dgr__grid-result">
  <a href="/shopping/product/1?q=x">
    <div class="ArOc1c"><img src="https://img.example.com/1.jpg"></div>
    <h3>Red Linen Shirt</h3>
  </a>
  <span class="a8Pemb">$29.99</span>
  <span class="Rsc7Yb">4.5</span>
</div>
<div class="sh-dgr__grid-result">
  <a href="https://shop.example.com/p/2">
    <div class="ArOc1c"><img data-src="https://img.example.com/2.jpg"></div>
    <h3> Blue Denim Shirt </h3>
  </a>
</div>
<div class="sh-dgr__grid-result">
  <a href="/shopping/product/3"></a>
</div>
<div class="sh-dgr__grid-result">
  <h3>Green Shirt</h3>
</div>
</body></html>`

type seenRequest struct {
	query     url.Values
	userAgent string
}

func newTestServer(t *testing.T) (*httptest.Server, *seenRequest) {
	t.Helper()
	last := &seenRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		last.query = r.URL.Query()
		last.userAgent = r.Header.Get("User-Agent")
		if r.URL.Path != "/search" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(resultsPage))
	}))
	t.Cleanup(srv.Close)
	return srv, last
}

func TestSearchParsesListings(t *testing.T) {
	srv, last := newTestServer(t)
	a, err := NewAdapter(srv.URL, "test-agent", 5*time.Second)
	require.NoError(t, err)

	got, err := a.Search(context.Background(), domain.Query("red shirt"), 10)
	require.NoError(t, err)

	assert.Equal(t, "red shirt", last.query.Get("q"))
	assert.Equal(t, "shop", last.query.Get("tbm"))
	assert.Equal(t, "test-agent", last.userAgent)

	require.Len(t, got, 3)

	first := got[0]
	assert.Equal(t, "Red Linen Shirt", first.Name)
	assert.Equal(t, "$29.99", domain.Deref(first.Price))
	assert.Equal(t, srv.URL+"/shopping/product/1?q=x", domain.Deref(first.SourceURL))
	assert.Equal(t, "https://img.example.com/1.jpg", domain.Deref(first.ImageURL))
	assert.Equal(t, "4.5", domain.Deref(first.Rating))

	second := got[1]
	assert.Equal(t, "Blue Denim Shirt", second.Name)
	assert.Nil(t, second.Price)
	assert.Nil(t, second.Rating)
	assert.Equal(t, "https://img.example.com/2.jpg", domain.Deref(second.ImageURL))

	third := got[2]
	assert.Equal(t, "Green Shirt", third.Name)
	assert.False(t, third.HasImage())
	assert.Nil(t, third.SourceURL)
}

func TestSearchRespectsMaxResults(t *testing.T) {
	srv, _ := newTestServer(t)
	a, err := NewAdapter(srv.URL, "", 5*time.Second)
	require.NoError(t, err)

	got, err := a.Search(context.Background(), "shirt", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Red Linen Shirt", got[0].Name)
}

func TestSearchErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	a, err := NewAdapter(srv.URL, "", 5*time.Second)
	require.NoError(t, err)

	_, err = a.Search(context.Background(), "shirt", 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}
