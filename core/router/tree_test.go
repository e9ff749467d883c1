package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ceapa-git/anidle/core/document"
	"github.com/Ceapa-git/anidle/core/http"
)

func named(name string) http.HandlerFunc {
	return func(*http.Request) http.Response {
		return http.Text(http.StatusOK, name)
	}
}

func call(t *testing.T, tree *Tree, method http.Method, path string) (string, bool) {
	t.Helper()
	h, ok := tree.Find(method, path)
	if !ok {
		return "", false
	}
	resp := h(&http.Request{Method: method, Path: path})
	text, isText := resp.Body.(document.Scalar)
	require.True(t, isText)
	return string(text), true
}

func TestFindSiblings(t *testing.T) {
	tree, err := New(Route{
		Method:  http.MethodGet,
		Handler: named("H0"),
		Children: []Route{
			{Segment: "login", Method: http.MethodPost, Handler: named("H1")},
			{Segment: "register", Method: http.MethodPost, Handler: named("H2")},
		},
	})
	require.NoError(t, err)

	tests := []struct {
		method http.Method
		path   string
		want   string
		found  bool
	}{
		{http.MethodPost, "/login", "H1", true},
		{http.MethodPost, "/register", "H2", true},
		{http.MethodGet, "/login", "", false},
		{http.MethodGet, "/unknown", "", false},
		{http.MethodGet, "/", "H0", true},
		{http.MethodGet, "", "H0", true},
		{http.MethodPost, "/", "", false},
		{http.MethodPost, "/login/", "", false},
		{http.MethodPost, "/Login", "", false},
		{http.MethodPost, "login", "H1", true},
		{http.MethodUnknown, "/login", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.method.String()+" "+tt.path, func(t *testing.T) {
			got, found := call(t, tree, tt.method, tt.path)
			assert.Equal(t, tt.found, found)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFindNested(t *testing.T) {
	tree := MustNew(Route{
		Children: []Route{
			{Segment: "api", Children: []Route{
				{Segment: "v1", Method: http.MethodGet, Handler: named("v1"), Children: []Route{
					{Segment: "users", Method: http.MethodDelete, Handler: named("users")},
				}},
			}},
		},
	})

	got, ok := call(t, tree, http.MethodGet, "/api/v1")
	assert.True(t, ok)
	assert.Equal(t, "v1", got)

	got, ok = call(t, tree, http.MethodDelete, "/api/v1/users")
	assert.True(t, ok)
	assert.Equal(t, "users", got)

	// intermediate node without handler
	_, ok = tree.Find(http.MethodGet, "/api")
	assert.False(t, ok)
	_, ok = tree.Find(http.MethodGet, "/")
	assert.False(t, ok)
	_, ok = tree.Find(http.MethodGet, "/api/v1/users/extra")
	assert.False(t, ok)
	_, ok = tree.Find(http.MethodGet, "//api")
	assert.False(t, ok)
}

func TestDuplicateSiblingKeepsFirst(t *testing.T) {
	tree := MustNew(Route{Children: []Route{
		{Segment: "a", Method: http.MethodGet, Handler: named("first")},
		{Segment: "a", Method: http.MethodPost, Handler: named("second")},
	}})

	got, ok := call(t, tree, http.MethodGet, "/a")
	assert.True(t, ok)
	assert.Equal(t, "first", got)

	_, ok = tree.Find(http.MethodPost, "/a")
	assert.False(t, ok)
}

func TestNewRejectsSlashSegment(t *testing.T) {
	_, err := New(Route{Children: []Route{
		{Segment: "ok", Children: []Route{{Segment: "a/b"}}},
	}})
	assert.Error(t, err)
	assert.Panics(t, func() { MustNew(Route{Children: []Route{{Segment: "/x"}}}) })
}

func TestRoutes(t *testing.T) {
	tree := MustNew(Route{
		Method:  http.MethodGet,
		Handler: named("status"),
		Children: []Route{
			{Segment: "refresh", Method: http.MethodPost, Handler: named("r")},
			{Segment: "daily", Method: http.MethodGet, Handler: named("d")},
			{Segment: "group", Children: []Route{
				{Segment: "x", Method: http.MethodPut, Handler: named("x")},
			}},
		},
	})

	assert.Equal(t, []string{
		"GET /",
		"GET /daily",
		"PUT /group/x",
		"POST /refresh",
	}, tree.Routes())

	var empty *Tree
	assert.Nil(t, empty.Routes())
	_, ok := empty.Find(http.MethodGet, "/")
	assert.False(t, ok)
}

func TestWrap(t *testing.T) {
	tree := MustNew(Route{
		Method:  http.MethodGet,
		Handler: named("status"),
		Children: []Route{
			{Segment: "group", Children: []Route{
				{Segment: "x", Method: http.MethodPut, Handler: named("x")},
			}},
		},
	})

	wraps := 0
	wrapped := tree.Wrap(func(next http.HandlerFunc) http.HandlerFunc {
		wraps++
		return func(r *http.Request) http.Response {
			resp := next(r)
			return http.Text(resp.Status, "wrapped "+string(resp.Body.(document.Scalar)))
		}
	})
	assert.Equal(t, 2, wraps, "bound handlers are wrapped once each")

	text, ok := call(t, wrapped, http.MethodPut, "/group/x")
	require.True(t, ok)
	assert.Equal(t, "wrapped x", text)
	text, ok = call(t, wrapped, http.MethodGet, "/")
	require.True(t, ok)
	assert.Equal(t, "wrapped status", text)

	_, ok = wrapped.Find(http.MethodGet, "/group")
	assert.False(t, ok)
	assert.Equal(t, tree.Routes(), wrapped.Routes())

	text, ok = call(t, tree, http.MethodPut, "/group/x")
	require.True(t, ok)
	assert.Equal(t, "x", text, "the original tree is unchanged")

	for i := 0; i < 3; i++ {
		call(t, wrapped, http.MethodPut, "/group/x")
	}
	assert.Equal(t, 2, wraps)

	var empty *Tree
	assert.Nil(t, empty.Wrap(func(h http.HandlerFunc) http.HandlerFunc { return h }))
}
