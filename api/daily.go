package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Ceapa-git/anidle/core/document"
	"github.com/Ceapa-git/anidle/core/http"
	"github.com/Ceapa-git/anidle/store"
)

// DayLayout is the dd/mm/yyyy form of the day query parameter.
const DayLayout = "02/01/2006"

const minYear = 1900

// parseDay accepts a real calendar date in DayLayout with a year of at
// least minYear.
func parseDay(s string) (time.Time, bool) {
	if len(s) != len(DayLayout) {
		return time.Time{}, false
	}
	d, err := time.Parse(DayLayout, s)
	if err != nil || d.Year() < minYear {
		return time.Time{}, false
	}
	return d, true
}

// before reports whether day a falls strictly before day b, ignoring the
// time of day and location.
func before(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay*10000+int(am)*100+ad < by*10000+int(bm)*100+bd
}

// daily serves the puzzle of a past day, or today's when no day is given.
func (s *Server) daily(req *http.Request) http.Response {
	today := s.now()
	day := today.Format(DayLayout)

	if q, ok := req.QueryValue("day"); ok {
		d, valid := parseDay(q)
		if !valid || !before(d, today) {
			return http.Text(http.StatusBadRequest, textInvalid)
		}
		day = q
	}

	doc, err := s.store.FindOne(req.Context(), CollectionDailies, document.Object{"day": document.Scalar(day)})
	if errors.Is(err, store.ErrNotFound) {
		return s.fetchDaily(req, day)
	}
	if err != nil {
		return internalError(req, err, "find daily")
	}
	return http.JSON(http.StatusOK, doc)
}

// fetchDaily asks the upstream source for a day missing from the store and
// keeps what it returns.
func (s *Server) fetchDaily(req *http.Request, day string) http.Response {
	if s.dailies == nil {
		return http.Text(http.StatusNotFound, textNoDaily)
	}

	ctx := req.Context()
	doc, err := s.dailies.FetchDaily(ctx, day)
	if errors.Is(err, ErrNoDaily) {
		return http.Text(http.StatusNotFound, textNoDaily)
	}
	if err != nil {
		return internalError(req, err, "fetch daily")
	}

	// the store assigns the id
	doc = doc.Clone()
	delete(doc, "_id")
	doc["day"] = document.Scalar(day)
	id, err := s.store.InsertOne(ctx, CollectionDailies, doc)
	if err != nil {
		return internalError(req, err, "insert daily")
	}
	doc["_id"] = id
	zerolog.Ctx(ctx).Info().Str("day", day).Msg("daily stored")
	return http.JSON(http.StatusOK, doc)
}

// ErrNoDaily is returned by a DailySource that has nothing for a day.
var ErrNoDaily = errors.New("daily not available")

// DailySource supplies puzzles for days the store does not hold yet.
type DailySource interface {
	FetchDaily(ctx context.Context, day string) (document.Object, error)
}

// Upstream fetches dailies from a remote HTTP service with
// GET <path>?day=dd/mm/yyyy.
type Upstream struct {
	client *http.Client
	path   string
}

// NewUpstream creates a DailySource over client.
func NewUpstream(client *http.Client, path string) *Upstream {
	if path == "" {
		path = "/"
	}
	return &Upstream{client: client, path: path}
}

// FetchDaily implements DailySource. A 404 from the upstream is ErrNoDaily;
// any other non-200 status or a non-object body is an error.
func (u *Upstream) FetchDaily(ctx context.Context, day string) (document.Object, error) {
	resp, err := u.client.Do(ctx, &http.Request{
		Method: http.MethodGet,
		Path:   u.path,
		Query:  map[string]string{"day": day},
	})
	if err != nil {
		return nil, fmt.Errorf("upstream %s: %w", u.client.Host(), err)
	}

	switch resp.Status {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrNoDaily
	default:
		return nil, fmt.Errorf("upstream %s: status %d", u.client.Host(), int(resp.Status))
	}

	obj, ok := resp.Body.(document.Object)
	if !ok {
		return nil, fmt.Errorf("upstream %s: body is %s, want object", u.client.Host(), resp.Body.Kind())
	}
	return obj, nil
}
