package core

import (
	"net/netip"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"github.com/Ceapa-git/anidle/core/http"
)

// Monitor labels for requests that never reach a handler.
const (
	routeMalformed = "malformed"
	routeUnmatched = "unmatched"
)

// conn is one accepted connection. It serves exactly one request.
type conn struct {
	fd    int
	peer  string
	id    ulid.ULID
	start time.Time
}

func peerAddress(sa unix.Sockaddr) string {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return netip.AddrFrom4(a.Addr).String()
	case *unix.SockaddrInet6:
		return netip.AddrFrom16(a.Addr).Unmap().String()
	default:
		return ""
	}
}

func (e *Engine) serve(c *conn) {
	log := e.log.With().Str("request_id", c.id.String()).Str("peer", c.peer).Logger()
	defer func() {
		if err := unix.Close(c.fd); err != nil {
			log.Error().Err(err).Msg("close connection")
		}
	}()

	if err := unix.SetNonblock(c.fd, false); err != nil {
		log.Error().Err(err).Msg("set blocking")
		return
	}
	if e.opts.ReadTimeout > 0 {
		tv := unix.NsecToTimeval(e.opts.ReadTimeout.Nanoseconds())
		if err := unix.SetsockoptTimeval(c.fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
			log.Error().Err(err).Msg("set read timeout")
			return
		}
	}

	buf := e.buffers.Get(e.opts.MaxRequestSize)
	defer e.buffers.Put(buf)

	n, err := readRequest(c.fd, buf)
	if err != nil {
		log.Error().Err(err).Int("bytes", n).Msg("read failed")
		return
	}

	resp, route := e.handle(buf[:n], c.peer, log)
	status := resp.Status.Normalize()

	if err := writeAll(c.fd, resp.Bytes()); err != nil {
		log.Error().Err(err).Msg("write failed")
	}

	elapsed := time.Since(c.start)
	e.monitor.Record(route, int(status), elapsed)
	log.Debug().
		Str("route", route).
		Int("status", int(status)).
		Dur("duration", elapsed).
		Msg("request served")
}

// handle parses and routes one request. It never panics.
func (e *Engine) handle(raw []byte, peer string, log zerolog.Logger) (http.Response, string) {
	req, err := http.ParseRequest(raw, e.parseOpts...)
	if err != nil {
		log.Debug().Err(err).Msg("malformed request")
		return http.Text(http.StatusBadRequest, "request not valid"), routeMalformed
	}
	req.Source = peer

	h, ok := e.routes.Find(req.Method, req.Path)
	if !ok {
		log.Debug().Str("method", req.MethodText).Str("path", req.Path).Msg("no route")
		return http.NotFound(), routeUnmatched
	}

	ctx := log.WithContext(e.baseCtx)
	return h(req.WithContext(ctx)), req.Method.String() + " " + req.Path
}

// readRequest fills buf in readChunk pieces until a read comes back short,
// the peer closes, or buf is full.
func readRequest(fd int, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		want := readChunk
		if rest := len(buf) - total; rest < want {
			want = rest
		}

		n, err := unix.Read(fd, buf[total:total+want])
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return total, err
		}
		total += n
		if n < want {
			break
		}
	}
	return total, nil
}

func writeAll(fd int, data []byte) error {
	for len(data) > 0 {
		n, err := unix.Write(fd, data)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}
