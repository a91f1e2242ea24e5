package httptransport_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	"agentwallet/internal/platform/metrics"
	"agentwallet/internal/platform/middleware"
	httptransport "agentwallet/internal/transport/http"
)

type RouterSuite struct {
	suite.Suite
	registry *prometheus.Registry
	logger   *slog.Logger
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	s.registry = prometheus.NewRegistry()
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (s *RouterSuite) serve(h http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func (s *RouterSuite) TestHealthz() {
	rec := s.serve(httptransport.NewRouter(s.logger, s.registry, nil), "/healthz")
	s.Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"status":"ok"}`, rec.Body.String())
	s.NotEmpty(rec.Header().Get(middleware.HeaderRequestID))
}

func (s *RouterSuite) TestReadyz() {
	s.Run("all checks pass", func() {
		h := httptransport.NewRouter(s.logger, s.registry, map[string]httptransport.Check{
			"wallet": func(context.Context) error { return nil },
		})
		rec := s.serve(h, "/readyz")
		s.Equal(http.StatusOK, rec.Code)
		s.JSONEq(`{"status":"ready","checks":{"wallet":"ok"}}`, rec.Body.String())
	})

	s.Run("one failing check", func() {
		h := httptransport.NewRouter(s.logger, s.registry, map[string]httptransport.Check{
			"wallet": func(context.Context) error { return nil },
			"kafka":  func(context.Context) error { return errors.New("no brokers") },
		})
		rec := s.serve(h, "/readyz")
		s.Equal(http.StatusServiceUnavailable, rec.Code)

		var body struct {
			Status string            `json:"status"`
			Checks map[string]string `json:"checks"`
		}
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
		s.Equal("not ready", body.Status)
		s.Equal("no brokers", body.Checks["kafka"])
		s.Equal("ok", body.Checks["wallet"])
	})
}

func (s *RouterSuite) TestMetrics() {
	m := metrics.New(s.registry)
	m.WalletsOpen.Set(1)

	rec := s.serve(httptransport.NewRouter(s.logger, s.registry, nil), "/metrics")
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "agentwallet_wallets_open 1")
}

func (s *RouterSuite) TestRequestIDIsEchoed() {
	h := httptransport.NewRouter(s.logger, s.registry, nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(middleware.HeaderRequestID, "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	s.Equal("abc-123", rec.Header().Get(middleware.HeaderRequestID))
}

func (s *RouterSuite) TestUnknownRoute() {
	rec := s.serve(httptransport.NewRouter(s.logger, s.registry, nil), "/nope")
	s.Equal(http.StatusNotFound, rec.Code)
}
