package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/txguard/pkg/explain"
	"github.com/code-payments/txguard/pkg/inspect"
	"github.com/code-payments/txguard/pkg/metrics"
	"github.com/code-payments/txguard/pkg/rate"
	"github.com/code-payments/txguard/pkg/relay"
	"github.com/code-payments/txguard/pkg/solana"
	"github.com/code-payments/txguard/pkg/trustlist"
)

const (
	v1PathPrefix         = "/v1"
	v1AnalyzePath        = v1PathPrefix + "/analyze"
	v1RelayPath          = v1PathPrefix + "/relay/{session}"
	v1SessionPath        = v1PathPrefix + "/session"
	v1SessionByIdPath    = v1PathPrefix + "/session/{session}"
	v1LatestTxPath       = v1PathPrefix + "/session/{session}/latest"
	v1DownloadLatestPath = v1PathPrefix + "/session/{session}/download"

	metricsPath = "/metrics"
)

type Server struct {
	log *logrus.Entry

	conf      *conf
	analyzer  *inspect.Analyzer
	lists     *trustlist.Lists
	explainer *explain.Explainer
	sessions  relay.Store
	relay     *relay.Handler
	limiter   rate.Limiter
}

// NewServer returns the HTTP surface over an analyzer and relay session store.
// explainer may be nil, in which case explanations are reported as disabled.
func NewServer(
	analyzer *inspect.Analyzer,
	lists *trustlist.Lists,
	explainer *explain.Explainer,
	sessions relay.Store,
	configProvider ConfigProvider,
) *Server {
	conf := configProvider()

	return &Server{
		log:       logrus.StandardLogger().WithField("type", "server/web"),
		conf:      conf,
		analyzer:  analyzer,
		lists:     lists,
		explainer: explainer,
		sessions:  sessions,
		relay:     relay.NewHandler(sessions),
		limiter:   rate.NewLimiter(conf.requestsPerSecond.Get(context.Background())),
	}
}

func (s *Server) analyzeHandler(path string) http.HandlerFunc {
	return s.jsonHandler(path, func(r *http.Request, log *logrus.Entry) (int, GenericApiResponseBody) {
		ctx := r.Context()

		message, err := newMessageFromHttpContext(r)
		if err != nil {
			return http.StatusBadRequest, NewGenericApiFailureResponseBody(err)
		}

		analysis, err := s.analyzer.Analyze(ctx, message, s.lists)
		if errors.Cause(err) == inspect.ErrTooManyInstructions {
			return http.StatusBadRequest, NewGenericApiFailureResponseBody(err)
		} else if err != nil {
			log.WithError(err).Warn("failure analyzing transaction")
			return http.StatusInternalServerError, NewGenericApiFailureResponseBody(errors.New("internal server error"))
		}

		respBody := NewGenericApiSuccessResponseBody()
		respBody["records"] = analysis.Records
		respBody["findings"] = analysis.Findings

		if explainRequested(r) {
			explanation, err := s.explain(ctx, analysis)
			if err != nil {
				log.WithError(err).Info("explanation unavailable")
				respBody["explanationError"] = err.Error()
			} else {
				respBody["explanation"] = explanation
			}
		}

		return http.StatusOK, respBody
	})
}

func (s *Server) relayHandler(path string) http.HandlerFunc {
	return s.jsonHandler(path, func(r *http.Request, log *logrus.Entry) (int, GenericApiResponseBody) {
		sessionId, err := sessionIdFromHttpContext(r)
		if err != nil {
			return http.StatusBadRequest, NewGenericApiFailureResponseBody(err)
		}

		envelope, err := newEnvelopeFromHttpContext(r)
		if err != nil {
			return http.StatusBadRequest, NewGenericApiFailureResponseBody(err)
		}

		reply, err := s.relay.Handle(r.Context(), sessionId, envelope)
		switch errors.Cause(err) {
		case nil:
		case relay.ErrUnknownMessageType, solana.ErrMalformedMessage:
			return http.StatusBadRequest, NewGenericApiFailureResponseBody(err)
		case relay.ErrNoLatestTransaction:
			return http.StatusNotFound, NewGenericApiFailureResponseBody(err)
		default:
			log.WithError(err).Warn("failure handling relay message")
			return http.StatusInternalServerError, NewGenericApiFailureResponseBody(errors.New("internal server error"))
		}

		respBody := NewGenericApiSuccessResponseBody()
		respBody["reply"] = reply
		return http.StatusOK, respBody
	})
}

func (s *Server) createSessionHandler(path string) http.HandlerFunc {
	return s.jsonHandler(path, func(r *http.Request, log *logrus.Entry) (int, GenericApiResponseBody) {
		sessionId := uuid.New()
		if err := s.sessions.Init(r.Context(), sessionId); err != nil {
			log.WithError(err).Warn("failure creating session")
			return http.StatusInternalServerError, NewGenericApiFailureResponseBody(errors.New("internal server error"))
		}

		respBody := NewGenericApiSuccessResponseBody()
		respBody["id"] = sessionId.String()
		return http.StatusOK, respBody
	})
}

func (s *Server) clearSessionHandler(path string) http.HandlerFunc {
	return s.jsonHandler(path, func(r *http.Request, log *logrus.Entry) (int, GenericApiResponseBody) {
		sessionId, err := sessionIdFromHttpContext(r)
		if err != nil {
			return http.StatusBadRequest, NewGenericApiFailureResponseBody(err)
		}

		if err := s.sessions.Clear(r.Context(), sessionId); err != nil {
			log.WithError(err).Warn("failure clearing session")
			return http.StatusInternalServerError, NewGenericApiFailureResponseBody(errors.New("internal server error"))
		}
		return http.StatusOK, NewGenericApiSuccessResponseBody()
	})
}

func (s *Server) getLatestTxHandler(path string) http.HandlerFunc {
	return s.jsonHandler(path, func(r *http.Request, log *logrus.Entry) (int, GenericApiResponseBody) {
		session, statusCode, err := s.getSessionWithTx(r, log)
		if err != nil {
			return statusCode, NewGenericApiFailureResponseBody(err)
		}

		respBody := NewGenericApiSuccessResponseBody()
		respBody["transaction"] = json.RawMessage(session.LatestTx)
		return http.StatusOK, respBody
	})
}

func (s *Server) downloadLatestTxHandler(path string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := s.log.WithField("path", path)

		session, statusCode, err := s.getSessionWithTx(r, log)
		if err != nil {
			writeBody(w, log, statusCode, NewGenericApiFailureResponseBody(err))
			return
		}

		document, err := session.Document()
		if err != nil {
			log.WithError(err).Warn("failure rendering transaction document")
			writeBody(w, log, http.StatusInternalServerError, NewGenericApiFailureResponseBody(errors.New("internal server error")))
			return
		}

		w.Header().Set(contentTypeHeaderName, jsonContentTypeHeaderValue)
		w.Header().Set(contentDispositionHeaderName, fmt.Sprintf(`attachment; filename="transaction-%s.json"`, session.Id))
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(document); err != nil {
			log.WithError(err).Info("failed to write body")
		}
	}
}

func (s *Server) getSessionWithTx(r *http.Request, log *logrus.Entry) (*relay.Session, int, error) {
	sessionId, err := sessionIdFromHttpContext(r)
	if err != nil {
		return nil, http.StatusBadRequest, err
	}

	session, err := s.sessions.Get(r.Context(), sessionId)
	if err == relay.ErrSessionNotFound {
		return nil, http.StatusNotFound, err
	} else if err != nil {
		log.WithError(err).Warn("failure getting session")
		return nil, http.StatusInternalServerError, errors.New("internal server error")
	}

	if !session.HasLatestTx() {
		return nil, http.StatusNotFound, relay.ErrNoLatestTransaction
	}
	return session, http.StatusOK, nil
}

func (s *Server) explain(ctx context.Context, analysis *inspect.Analysis) (*explain.Explanation, error) {
	if s.explainer == nil {
		return nil, explain.ErrExplanationDisabled
	}
	return s.explainer.Explain(ctx, analysis.Records, analysis.Findings)
}

func (s *Server) jsonHandler(path string, fn func(r *http.Request, log *logrus.Entry) (int, GenericApiResponseBody)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := s.log.WithField("path", path)
		statusCode, body := fn(r, log)
		writeBody(w, log, statusCode, body)
	}
}

// GetHandlers returns the API routes keyed by method and path pattern.
func (s *Server) GetHandlers() map[string]http.HandlerFunc {
	return map[string]http.HandlerFunc{
		"POST " + v1AnalyzePath:       s.analyzeHandler(v1AnalyzePath),
		"POST " + v1RelayPath:         s.relayHandler(v1RelayPath),
		"POST " + v1SessionPath:       s.createSessionHandler(v1SessionPath),
		"DELETE " + v1SessionByIdPath: s.clearSessionHandler(v1SessionByIdPath),
		"GET " + v1LatestTxPath:       s.getLatestTxHandler(v1LatestTxPath),
		"GET " + v1DownloadLatestPath: s.downloadLatestTxHandler(v1DownloadLatestPath),
	}
}

// Handler returns a mux serving every route from GetHandlers behind per
// client rate limiting and request metrics, plus Prometheus metrics.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	for pattern, handler := range s.GetHandlers() {
		mux.Handle(pattern, s.instrument(pattern, handler))
	}
	mux.Handle("GET "+metricsPath, promhttp.Handler())
	return mux
}

func (s *Server) instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w}

		defer func() {
			status := recorder.status
			if status == 0 {
				status = http.StatusOK
			}
			metrics.RequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
			metrics.RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		}()

		ip := clientIP(r, s.conf.trustForwardedFor.Get(ctx))
		allowed, err := s.limiter.Allow(ip)
		if err != nil {
			s.log.WithError(err).Warn("failure checking rate limit")
		} else if !allowed {
			metrics.RateLimitExceeded.WithLabelValues("http").Inc()
			writeBody(recorder, s.log.WithField("path", route), http.StatusTooManyRequests, NewGenericApiFailureResponseBody(errors.New("rate limit exceeded")))
			return
		}

		r.Body = http.MaxBytesReader(recorder, r.Body, int64(s.conf.maxBodySize.Get(ctx)))
		next.ServeHTTP(recorder, r)
	})
}

func explainRequested(r *http.Request) bool {
	explain, _ := strconv.ParseBool(r.URL.Query().Get(explainQueryParam))
	return explain
}

func writeBody(w http.ResponseWriter, log *logrus.Entry, statusCode int, body GenericApiResponseBody) {
	w.Header().Set(contentTypeHeaderName, jsonContentTypeHeaderValue)
	w.WriteHeader(statusCode)
	if _, err := w.Write([]byte(body.ToString())); err != nil {
		log.WithError(err).Info("failed to write body")
	}
}
