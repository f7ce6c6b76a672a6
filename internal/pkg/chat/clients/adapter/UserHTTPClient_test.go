package adapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cacheadapter "chatwire/internal/infrastructure/cache/adapter"
)

func TestMyRolesNormalizesAndMemoizes(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/my-roles", r.URL.Path)
		hits.Add(1)
		w.Write([]byte(`{"id":"u1","email":"U@Example.com","name":"Uma","roles":["student","Tutor"]}`))
	}))
	defer srv.Close()

	c := NewUserHTTPClient(srv.URL, "/public", cacheadapter.NewMemoryCache(), time.Minute, time.Minute, nil)
	ctx := context.Background()

	me, err := c.MyRoles(ctx, "Bearer tok")
	require.NoError(t, err)
	assert.Equal(t, "u1", me.ID)
	assert.Equal(t, []string{"STUDENT", "TUTOR"}, me.Roles)

	// Second lookup with the same token is served from cache.
	_, err = c.MyRoles(ctx, "Bearer tok")
	require.NoError(t, err)
	assert.Equal(t, int64(1), hits.Load())

	// A different token misses the cache.
	_, err = c.MyRoles(ctx, "Bearer other")
	require.NoError(t, err)
	assert.Equal(t, int64(2), hits.Load())
}

func TestMyRolesUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewUserHTTPClient(srv.URL, "/public", nil, time.Minute, time.Minute, nil)
	_, err := c.MyRoles(context.Background(), "Bearer tok")
	assert.Error(t, err)
}

func TestPublicProfileLookups(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/public/by-id/u1":
			w.Write([]byte(`{"id":"u1","sub":"sub-1","name":"Uma","email":"  Uma@Example.com "}`))
		case "/public/sub-1":
			w.Write([]byte(`{"id":"u1","sub":"sub-1","name":"Uma","email":"uma@example.com"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewUserHTTPClient(srv.URL, "/public", cacheadapter.NewMemoryCache(), time.Minute, time.Minute, nil)
	ctx := context.Background()

	byID, err := c.PublicProfileByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "uma@example.com", byID.Email)

	bySub, err := c.PublicProfileBySub(ctx, "sub-1")
	require.NoError(t, err)
	assert.Equal(t, "u1", bySub.ID)

	// Repeats hit the cache, not the upstream.
	_, err = c.PublicProfileByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), hits.Load())

	_, err = c.PublicProfileByID(ctx, "unknown")
	assert.Error(t, err)
}

func TestUserClientWorksWithoutCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"u1","roles":[]}`))
	}))
	defer srv.Close()

	c := NewUserHTTPClient(srv.URL, "/public", nil, time.Minute, time.Minute, nil)
	me, err := c.MyRoles(context.Background(), "Bearer tok")
	require.NoError(t, err)
	assert.Equal(t, "u1", me.ID)
}
