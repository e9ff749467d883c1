package app

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ceapa-git/anidle/api"
	"github.com/Ceapa-git/anidle/config"
	"github.com/Ceapa-git/anidle/core"
	"github.com/Ceapa-git/anidle/core/document"
	"github.com/Ceapa-git/anidle/core/http"
	"github.com/Ceapa-git/anidle/logging"
	"github.com/Ceapa-git/anidle/store"
)

func testConfig(port int) *config.Config {
	return &config.Config{
		Port:  port,
		Store: config.StoreConfig{Driver: "memory"},
		JWT:   config.JWTConfig{Issuer: "anidle", TTL: 30 * time.Minute},
		Server: config.ServerConfig{
			MaxRequestSize: core.DefaultMaxRequestSize,
		},
	}
}

func TestSigningKeyIsGeneratedOnce(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()

	_, err := NewWithStore(ctx, testConfig(8080), logging.Nop(), mem)
	require.NoError(t, err)
	first, err := signingKey(ctx, mem, logging.Nop())
	require.NoError(t, err)
	assert.Len(t, first, 32)

	_, err = NewWithStore(ctx, testConfig(8080), logging.Nop(), mem)
	require.NoError(t, err)
	second, err := signingKey(ctx, mem, logging.Nop())
	require.NoError(t, err)
	assert.Equal(t, first, second)

	n, err := mem.Count(ctx, api.CollectionJWT, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	assert.ElementsMatch(t, api.Collections, mem.Collections())
}

func TestSigningKeyMissingField(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	_, err := mem.InsertOne(ctx, api.CollectionJWT, document.Object{"other": document.Scalar("x")})
	require.NoError(t, err)

	_, err = NewWithStore(ctx, testConfig(8080), logging.Nop(), mem)
	assert.Error(t, err)
}

func TestSigningKeyRecordShape(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	key, err := signingKey(ctx, mem, logging.Nop())
	require.NoError(t, err)

	doc, err := mem.FindOne(ctx, api.CollectionJWT, nil)
	require.NoError(t, err)
	stored, ok := doc.Scalar("key")
	require.True(t, ok)
	assert.Equal(t, key, string(stored))
}

func TestSigningKeyReadsExistingRecord(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	_, err := mem.InsertOne(ctx, api.CollectionJWT, document.Object{"key": document.Scalar("kept-from-before")})
	require.NoError(t, err)

	key, err := signingKey(ctx, mem, logging.Nop())
	require.NoError(t, err)
	assert.Equal(t, "kept-from-before", key)
}

func TestSigningKeyRejectsNonStringKey(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	_, err := mem.InsertOne(ctx, api.CollectionJWT, document.Object{"key": document.Object{"nested": document.Scalar("x")}})
	require.NoError(t, err)

	_, err = signingKey(ctx, mem, logging.Nop())
	assert.ErrorContains(t, err, "load signing key")
}

func TestNewUnknownDriver(t *testing.T) {
	cfg := testConfig(8080)
	cfg.Store.Driver = "sqlite"
	_, err := New(context.Background(), cfg, logging.Nop())
	assert.Error(t, err)
}

// runApp starts an app on a random free port and stops it on cleanup.
func runApp(t *testing.T, mutate ...func(*config.Config)) *App {
	t.Helper()
	for attempt := 0; attempt < 20; attempt++ {
		if a := tryRun(t, 5000+rand.Intn(5000), mutate...); a != nil {
			return a
		}
	}
	t.Fatal("no free port found")
	return nil
}

// tryRun returns nil when the port could not be bound.
func tryRun(t *testing.T, port int, mutate ...func(*config.Config)) *App {
	t.Helper()
	cfg := testConfig(port)
	for _, m := range mutate {
		m(cfg)
	}
	a, err := New(context.Background(), cfg, logging.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- a.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for a.Engine().Port() == 0 {
		select {
		case err := <-errc:
			cancel()
			require.ErrorIs(t, err, core.ErrSetup)
			return nil
		case <-deadline:
			cancel()
			t.Fatal("app did not start")
		case <-time.After(5 * time.Millisecond):
		}
	}

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-errc:
			assert.NoError(t, err)
		case <-time.After(3 * time.Second):
			t.Error("app did not stop")
		}
	})
	return a
}

func send(t *testing.T, port int, raw string) *http.ClientResponse {
	t.Helper()
	conn, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", port), 2*time.Second)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))

	_, err = conn.Write([]byte(raw))
	require.NoError(t, err)
	data, err := io.ReadAll(conn)
	require.NoError(t, err)

	resp, err := http.ParseResponse(data)
	require.NoError(t, err)
	return resp
}

func TestRunServesAccountFlow(t *testing.T) {
	a := runApp(t)
	port := a.Engine().Port()

	resp := send(t, port, "GET / HTTP/1.1\r\n\r\n")
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, document.Scalar("running"), resp.Body)

	resp = send(t, port, "POST /register HTTP/1.1\r\n\r\n{\"username\":\"alice\",\"password\":\"pw\"}")
	require.Equal(t, http.StatusOK, resp.Status)
	token, ok := resp.Body.(document.Scalar)
	require.True(t, ok)

	resp = send(t, port, "POST /validate HTTP/1.1\r\nAuthorization: Bearer "+string(token)+"\r\n\r\n")
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, document.Scalar("jwt valid"), resp.Body)

	resp = send(t, port, "POST /refresh HTTP/1.1\r\nAuthorization: Bearer "+string(token)+"\r\n\r\n{\"username\":\"alice\"}")
	assert.Equal(t, http.StatusOK, resp.Status)

	resp = send(t, port, "POST /login HTTP/1.1\r\n\r\n{\"username\":\"alice\",\"password\":\"bad\"}")
	assert.Equal(t, http.StatusUnauthorized, resp.Status)

	resp = send(t, port, "GET /daily HTTP/1.1\r\n\r\n")
	assert.Equal(t, http.StatusNotFound, resp.Status)
}

func TestRunFetchesDailyFromUpstream(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	hits := make(chan string, 4)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			buf := make([]byte, 4096)
			n, _ := conn.Read(buf)
			if req, err := http.ParseRequest(buf[:n]); err == nil {
				hits <- req.Path + "?" + req.Query["day"]
			}
			_, _ = conn.Write(http.CreateResponse(http.StatusOK, document.Object{"anime": document.Scalar("Frieren")}))
			conn.Close()
		}
	}()

	a := runApp(t, func(cfg *config.Config) {
		cfg.Upstream = config.UpstreamConfig{Host: ln.Addr().String(), Path: "/v1/daily", Timeout: 2 * time.Second}
	})
	port := a.Engine().Port()

	resp := send(t, port, "GET /daily HTTP/1.1\r\n\r\n")
	require.Equal(t, http.StatusOK, resp.Status)
	body, ok := resp.Body.(document.Object)
	require.True(t, ok)
	assert.Equal(t, document.Scalar("Frieren"), body["anime"])
	assert.Equal(t, document.Scalar(time.Now().Format(api.DayLayout)), body["day"])
	assert.Equal(t, "/v1/daily?"+time.Now().Format(api.DayLayout), <-hits)

	// served from the store the second time
	resp = send(t, port, "GET /daily HTTP/1.1\r\n\r\n")
	require.Equal(t, http.StatusOK, resp.Status)
	assert.Empty(t, hits)
}
