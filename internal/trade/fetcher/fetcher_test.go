package fetcher

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"tradesync/internal/platform/config"
	"tradesync/pkg/platform/sentinel"
)

type staticToken string

func (t staticToken) Token(context.Context) (string, error) { return string(t), nil }

type FetcherSuite struct {
	suite.Suite
	calls   atomic.Int32
	handler http.HandlerFunc
	server  *httptest.Server
	client  *Client
	date    time.Time
}

func TestFetcherSuite(t *testing.T) {
	suite.Run(t, new(FetcherSuite))
}

func (s *FetcherSuite) SetupTest() {
	s.calls.Store(0)
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.calls.Add(1)
		s.handler(w, r)
	}))
	client, err := New(config.Trade{
		DataURL:       s.server.URL + "/trade",
		SenderPIN:     "30101010101010",
		TransactionID: "545645645645645645",
		PageSize:      500,
		Timeout:       time.Second,
		MaxRetries:    3,
		BackoffBase:   time.Millisecond,
	}, staticToken("tok"),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithHTTPClient(s.server.Client()),
	)
	s.Require().NoError(err)
	s.client = client
	s.date = time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
}

func (s *FetcherSuite) TearDownTest() {
	s.server.Close()
}

func (s *FetcherSuite) TestRequestShape() {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		s.Equal("Bearer tok", r.Header.Get("Authorization"))
		q := r.URL.Query()
		s.Equal("545645645645645645", q.Get("transaction_id"))
		s.Equal("30101010101010", q.Get("sender_pin"))
		s.Equal("1", q.Get("consent"))
		s.Equal("2024-03-05", q.Get("reqDate"))
		s.Equal("2", q.Get("page"))
		s.Equal("500", q.Get("size"))
		_, _ = w.Write([]byte(`{"resList":[{"g01A":"ИМ","inn":"123456789"}],"totalPages":4,"totalElements":1600}`))
	}

	page, err := s.client.Fetch(context.Background(), PageRequest{Date: s.date, Page: 2})
	s.Require().NoError(err)
	s.Len(page.Records, 1)
	s.Equal(4, page.TotalPages)
	s.EqualValues(1, s.calls.Load())
}

func (s *FetcherSuite) TestRetriesTransientFailures() {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		switch s.calls.Load() {
		case 1:
			w.WriteHeader(http.StatusBadGateway)
		case 2:
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			_, _ = w.Write([]byte(`{"resList":[],"totalPages":1}`))
		}
	}

	page, err := s.client.Fetch(context.Background(), PageRequest{Date: s.date, Page: 1})
	s.Require().NoError(err)
	s.True(page.IsEmpty())
	s.EqualValues(3, s.calls.Load())
}

func (s *FetcherSuite) TestExhaustedRetriesReturnEmptyAndUnavailable() {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	page, err := s.client.Fetch(context.Background(), PageRequest{Date: s.date, Page: 1})
	s.Require().ErrorIs(err, ErrPageUnavailable)
	s.ErrorIs(err, sentinel.ErrUnavailable)
	s.NotNil(page)
	s.True(page.IsEmpty())
	s.EqualValues(4, s.calls.Load(), "one attempt plus three retries")
}

func (s *FetcherSuite) TestClientErrorsAreNotRetried() {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}

	_, err := s.client.Fetch(context.Background(), PageRequest{Date: s.date, Page: 1})
	s.Require().ErrorIs(err, ErrPageUnavailable)
	s.EqualValues(1, s.calls.Load())
}

func (s *FetcherSuite) TestUndecodableBodyIsNotRetried() {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>maintenance</html>`))
	}

	_, err := s.client.Fetch(context.Background(), PageRequest{Date: s.date, Page: 1})
	s.Require().ErrorIs(err, ErrPageUnavailable)
	s.EqualValues(1, s.calls.Load())
}

func (s *FetcherSuite) TestCancelledContextStopsRetrying() {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.client.Fetch(ctx, PageRequest{Date: s.date, Page: 1})
	s.Require().ErrorIs(err, ErrPageUnavailable)
	s.LessOrEqual(s.calls.Load(), int32(1))
}

func (s *FetcherSuite) TestNew() {
	_, err := New(config.Trade{}, staticToken("t"))
	s.Require().Error(err)

	_, err = New(config.Trade{DataURL: "http://x"}, nil)
	s.Require().Error(err)
}

func (s *FetcherSuite) TestParseRetryAfter() {
	resp := &http.Response{Header: http.Header{}}
	s.Equal(time.Duration(0), parseRetryAfter(resp))

	resp.Header.Set("Retry-After", "3")
	s.Equal(3*time.Second, parseRetryAfter(resp))
}
