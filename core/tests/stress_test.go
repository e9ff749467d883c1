package tests

import (
	"fmt"
	"io"
	"math/rand"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ceapa-git/anidle/core"
	"github.com/Ceapa-git/anidle/core/http"
	"github.com/Ceapa-git/anidle/core/router"
)

func startEngine(t testing.TB, workers int) *core.Engine {
	t.Helper()
	routes := router.MustNew(router.Route{
		Method: http.MethodGet,
		Handler: func(*http.Request) http.Response {
			return http.Text(http.StatusOK, "running")
		},
	})
	for attempt := 0; attempt < 20; attempt++ {
		e := core.NewEngine(core.Options{
			Port:    5000 + rand.Intn(core.MaxPort-5000+1),
			Routes:  routes,
			Workers: workers,
		})
		if err := e.Start(); err == nil {
			t.Cleanup(func() {
				e.Shutdown()
				e.Wait()
			})
			return e
		}
	}
	t.Fatal("no free port found")
	return nil
}

func hit(port int) error {
	conn, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", port), 2*time.Second)
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := conn.SetDeadline(time.Now().Add(5 * time.Second)); err != nil {
		return err
	}
	if _, err := conn.Write([]byte("GET / HTTP/1.1\r\n\r\n")); err != nil {
		return err
	}
	data, err := io.ReadAll(conn)
	if err != nil {
		return err
	}
	resp, err := http.ParseResponse(data)
	if err != nil {
		return err
	}
	if resp.Status != http.StatusOK {
		return fmt.Errorf("status %d", resp.Status)
	}
	return nil
}

func TestStressConcurrentClients(t *testing.T) {
	if testing.Short() {
		t.Skip("stress test")
	}
	for _, workers := range []int{0, 8} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			e := startEngine(t, workers)

			const clients, perClient = 32, 25
			var failed atomic.Int64
			var wg sync.WaitGroup
			for i := 0; i < clients; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for j := 0; j < perClient; j++ {
						if err := hit(e.Port()); err != nil {
							failed.Add(1)
						}
					}
				}()
			}
			wg.Wait()

			require.Zero(t, failed.Load())
			assert.Equal(t, uint64(clients*perClient), e.Monitor().Total())
		})
	}
}

func BenchmarkRoundTrip(b *testing.B) {
	e := startEngine(b, 0)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := hit(e.Port()); err != nil {
			b.Fatal(err)
		}
	}
}
