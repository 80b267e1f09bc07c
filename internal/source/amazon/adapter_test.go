package amazon

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/stylematch/internal/domain"
)

const resultsPage = `<html><body>
<div data-component-type="s-search-result">
  <h2 class="a-size-base-plus"><span>Men's Slim Fit Shirt</span></h2>
  <span class="a-price"><span class="a-price-symbol">₹</span><span class="a-price-whole">1,299<span class="a-price-decimal">.</span></span></span>
  <img class="s-image" src="https://m.media-amazon.com/images/1.jpg">
  <i><span class="a-icon-alt">4.2 out of 5 stars</span></i>
  <a class="a-link-normal" href="/dp/B000001?ref=sr_1_1">link</a>
</div>
<div data-component-type="s-search-result">
  <h2 class="a-size-base-plus"><span>Plain Tee</span></h2>
  <span class="a-price-symbol">₹</span>
  <a class="a-link-normal" href="https://www.amazon.in/dp/B000002">link</a>
</div>
<div data-component-type="s-search-result">
  <img class="s-image" src="https://m.media-amazon.com/images/3.jpg">
</div>
<div class="ad-slot"><h2 class="a-size-base-plus"><span>Sponsored</span></h2></div>
</body></html>`

func TestSearchParsesListings(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/s" {
			http.NotFound(w, r)
			return
		}
		gotQuery = r.URL.Query().Get("k")
		_, _ = w.Write([]byte(resultsPage))
	}))
	defer srv.Close()

	a, err := NewAdapter(srv.URL, "", 5*time.Second)
	require.NoError(t, err)

	got, err := a.Search(context.Background(), domain.Query("slim fit shirt"), 0)
	require.NoError(t, err)
	assert.Equal(t, "slim fit shirt", gotQuery)
	require.Len(t, got, 3)

	first := got[0]
	assert.Equal(t, "Men's Slim Fit Shirt", first.Name)
	assert.Equal(t, "₹1,299", domain.Deref(first.Price))
	assert.Equal(t, "https://m.media-amazon.com/images/1.jpg", domain.Deref(first.ImageURL))
	assert.Equal(t, "4.2 out of 5 stars", domain.Deref(first.Rating))
	assert.Equal(t, srv.URL+"/dp/B000001?ref=sr_1_1", domain.Deref(first.SourceURL))

	second := got[1]
	assert.Nil(t, second.Price, "symbol without a whole part is no price")
	assert.Equal(t, "https://www.amazon.in/dp/B000002", domain.Deref(second.SourceURL))
	assert.False(t, second.HasImage())

	third := got[2]
	assert.Empty(t, third.Name)
	assert.True(t, third.HasImage())
}

func TestSearchCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	a, err := NewAdapter(srv.URL, "", 5*time.Second)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = a.Search(ctx, "shirt", 10)
	require.Error(t, err)
}
