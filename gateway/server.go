// Copyright 2025 b1link
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package gateway

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"b1link/sapb1"
	"b1link/shared/logger"
)

// RequestIDHeader carries the request id in both directions
const RequestIDHeader = "X-Request-ID"

// maxBodyBytes caps request bodies
const maxBodyBytes = 1 << 20

// Service is the set of SAP B1 operations the gateway exposes.
// *sapb1.Adaptor implements it.
type Service interface {
	Info(ctx context.Context) (*sapb1.Info, error)
	GetMainCurrency(ctx context.Context) (string, error)
	GetOrders(ctx context.Context, num int, columns []string, filter sapb1.Filter) ([]sapb1.Record, error)
	InsertOrder(ctx context.Context, order *sapb1.OrderRequest) (string, error)
	CancelOrder(ctx context.Context, req sapb1.CancelRequest) (string, error)
	GetContacts(ctx context.Context, num int, columns []string, cardCode string, contact map[string]interface{}) ([]sapb1.Record, error)
	InsertContact(ctx context.Context, cardCode string, contact sapb1.Contact) (string, error)
	GetContactPersonCode(ctx context.Context, order *sapb1.OrderRequest) (string, error)
	GetExpnsCode(ctx context.Context, expnsName string) (string, error)
	GetTrnspCode(ctx context.Context, trnspName string) (string, error)
	GetShipments(ctx context.Context, num int, columns []string, filter sapb1.Filter, itemColumns []string) ([]sapb1.Shipment, error)
}

// Options configures a Server
type Options struct {
	Auth           *Authenticator
	RateLimiter    RateLimiter
	AllowedOrigins []string
	Logger         *logger.Logger
}

// Server routes HTTP requests to a Service
type Server struct {
	service Service
	auth    *Authenticator
	limiter RateLimiter
	logger  *logger.Logger
	router  *mux.Router
	handler http.Handler
}

type ctxKey string

const (
	ctxKeyRequestID ctxKey = "request_id"
	ctxKeyCaller    ctxKey = "caller"
)

// NewServer builds the router
func NewServer(service Service, opts Options) *Server {
	s := &Server{
		service: service,
		auth:    opts.Auth,
		limiter: opts.RateLimiter,
		logger:  opts.Logger,
		router:  mux.NewRouter(),
	}
	if s.logger == nil {
		s.logger = logger.New("gateway")
	}

	s.router.Use(s.requestIDMiddleware, s.metricsMiddleware)
	s.router.HandleFunc("/health", s.healthHandler).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.Use(s.authMiddleware, s.rateLimitMiddleware)
	api.HandleFunc("/info", s.infoHandler).Methods(http.MethodGet)
	api.HandleFunc("/currency", s.currencyHandler).Methods(http.MethodGet)
	api.HandleFunc("/orders/search", s.searchOrdersHandler).Methods(http.MethodPost)
	api.HandleFunc("/orders/cancel", s.cancelOrderHandler).Methods(http.MethodPost)
	api.HandleFunc("/orders", s.insertOrderHandler).Methods(http.MethodPost)
	api.HandleFunc("/contacts/search", s.searchContactsHandler).Methods(http.MethodPost)
	api.HandleFunc("/contacts/resolve", s.resolveContactHandler).Methods(http.MethodPost)
	api.HandleFunc("/contacts", s.insertContactHandler).Methods(http.MethodPost)
	api.HandleFunc("/expenses/{name}", s.expenseCodeHandler).Methods(http.MethodGet)
	api.HandleFunc("/transports/{name}", s.transportCodeHandler).Methods(http.MethodGet)
	api.HandleFunc("/shipments/search", s.searchShipmentsHandler).Methods(http.MethodPost)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, r, "route not found", http.StatusNotFound)
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, r, "method not allowed", http.StatusMethodNotAllowed)
	})

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader},
	})
	s.handler = c.Handler(s.router)

	return s
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" || len(requestID) > 128 {
			requestID = uuid.New().String()
		}
		w.Header().Set(RequestIDHeader, requestID)

		ctx := context.WithValue(r.Context(), ctxKeyRequestID, requestID)
		ctx = logger.WithRequest(ctx, "", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if current := mux.CurrentRoute(r); current != nil {
			if tpl, err := current.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		durationMS := float64(time.Since(start).Microseconds()) / 1000

		promRequestsTotal.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		promRequestDuration.WithLabelValues(route).Observe(durationMS)

		if route != "/health" && route != "/metrics" {
			clientID, requestID := logger.FromContext(r.Context())
			s.logger.InfoWithDuration(clientID, requestID, r.Method+" "+route, durationMS, map[string]interface{}{
				"status": rec.status,
			})
		}
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, err := s.auth.Authenticate(r.Header.Get("Authorization"))
		if err != nil {
			_, requestID := logger.FromContext(r.Context())
			s.logger.Warn("", requestID, "Authentication failed", map[string]interface{}{
				"error": err.Error(),
			})
			writeJSONError(w, r, "unauthorized", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyCaller, caller)
		ctx = logger.WithRequest(ctx, caller, requestIDFrom(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter == nil {
			next.ServeHTTP(w, r)
			return
		}

		caller, _ := r.Context().Value(ctxKeyCaller).(string)
		allowed, err := s.limiter.Allow(r.Context(), caller)
		if err != nil {
			clientID, requestID := logger.FromContext(r.Context())
			s.logger.Warn(clientID, requestID, "Rate limit check failed, allowing request", map[string]interface{}{
				"error": err.Error(),
			})
		}
		if !allowed {
			promRateLimited.Inc()
			w.Header().Set("Retry-After", "60")
			writeJSONError(w, r, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestIDFrom(r *http.Request) string {
	if r == nil {
		return ""
	}
	id, _ := r.Context().Value(ctxKeyRequestID).(string)
	return id
}
