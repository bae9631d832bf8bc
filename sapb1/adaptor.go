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

package sapb1

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"b1link/archive"
	"b1link/connectors/base"
	"b1link/connectors/config"
	"b1link/connectors/mssql"
	"b1link/connectors/servicelayer"
	"b1link/ledger"
	"b1link/shared/logger"
)

// Company is the business object API of one SAP B1 company.
// *servicelayer.Client implements it.
type Company interface {
	CompanyName() string
	GetBusinessPartner(ctx context.Context, cardCode string) (*servicelayer.BusinessPartner, error)
	AddContactEmployee(ctx context.Context, cardCode string, contact servicelayer.ContactEmployee) error
	AddOrder(ctx context.Context, doc *servicelayer.Document) (int, error)
	CancelOrder(ctx context.Context, docEntry int) error
	Close(ctx context.Context) error
}

// Querier runs read statements against the company database.
// *mssql.MSSQLConnector implements it.
type Querier interface {
	Query(ctx context.Context, query *base.Query) (*base.QueryResult, error)
}

// OrderLedger remembers which front-end orders reached SAP B1.
// *ledger.Store implements it. Reserve and Claim must be atomic across
// every process sharing the ledger.
type OrderLedger interface {
	Lookup(ctx context.Context, feOrderID string) (*ledger.Entry, error)
	Reserve(ctx context.Context, feOrderID string) (bool, error)
	Claim(ctx context.Context, entry *ledger.Entry) (bool, error)
	Release(ctx context.Context, feOrderID string) error
	RecordInsert(ctx context.Context, feOrderID, docEntry string) error
	RecordCancel(ctx context.Context, feOrderID, docEntry string) error
}

// Session pairs the business object API with the company database
type Session struct {
	Company Company
	DB      Querier
}

// Close logs out of the company and disconnects the database
func (s *Session) Close(ctx context.Context) error {
	var errs []error
	if s.Company != nil {
		if err := s.Company.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close company: %w", err))
		}
	}
	if d, ok := s.DB.(interface{ Disconnect(context.Context) error }); ok {
		if err := d.Disconnect(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Dialer opens a new Session
type Dialer func(ctx context.Context) (*Session, error)

// Dial connects to the company database and logs in to the Service Layer
func Dial(settings *config.Settings) Dialer {
	return func(ctx context.Context) (*Session, error) {
		db := mssql.NewMSSQLConnector()
		if err := db.Connect(ctx, settings.DatabaseConfig()); err != nil {
			return nil, fmt.Errorf("company database: %w", err)
		}

		company := servicelayer.NewClient()
		if err := company.Connect(ctx, settings.ServiceLayerConfig()); err != nil {
			_ = db.Disconnect(ctx)
			return nil, fmt.Errorf("business object API: %w", err)
		}

		return &Session{Company: company, DB: db}, nil
	}
}

// Info describes the connected company
type Info struct {
	CompanyName string `json:"company_name"`
	DIAPI       string `json:"diapi"`
	Server      string `json:"server"`
	CompanyDB   string `json:"company_db"`
}

// Adaptor runs SAP B1 operations over a lazily opened Session. It is safe
// for concurrent use.
type Adaptor struct {
	settings *config.Settings
	dial     Dialer

	mu      sync.Mutex
	session *Session

	cache          LookupCache
	cacheTTL       time.Duration
	ledger         OrderLedger
	pendingTimeout time.Duration
	archive        archive.Store
	logger         *logger.Logger
	now            func() time.Time

	// inserts collapses concurrent InsertOrder calls per front-end id
	inserts singleflight.Group
}

// Option configures an Adaptor
type Option func(*Adaptor)

// WithDialer replaces the default Dial(settings)
func WithDialer(d Dialer) Option {
	return func(a *Adaptor) { a.dial = d }
}

// WithCache caches main currency, expense and shipping type codes
func WithCache(c LookupCache) Option {
	return func(a *Adaptor) { a.cache = c }
}

// WithCacheTTL sets the lifetime of cached lookups
func WithCacheTTL(ttl time.Duration) Option {
	return func(a *Adaptor) { a.cacheTTL = ttl }
}

// WithLedger makes InsertOrder idempotent per front-end order id
func WithLedger(l OrderLedger) Option {
	return func(a *Adaptor) { a.ledger = l }
}

// WithPendingTimeout sets how long a ledger reservation may stay pending
// before another request may take it over
func WithPendingTimeout(d time.Duration) Option {
	return func(a *Adaptor) { a.pendingTimeout = d }
}

// WithArchive keeps a copy of every order insert and cancel payload
func WithArchive(s archive.Store) Option {
	return func(a *Adaptor) { a.archive = s }
}

// WithLogger sets the structured logger
func WithLogger(l *logger.Logger) Option {
	return func(a *Adaptor) { a.logger = l }
}

// WithClock overrides time.Now, used for contact names and archive keys
func WithClock(now func() time.Time) Option {
	return func(a *Adaptor) { a.now = now }
}

// New creates an Adaptor. No connection is made until the first operation.
func New(settings *config.Settings, opts ...Option) *Adaptor {
	if settings == nil {
		settings = &config.Settings{}
	}

	a := &Adaptor{
		settings:       settings,
		cacheTTL:       DefaultCacheTTL,
		pendingTimeout: DefaultPendingTimeout,
		archive:        archive.Nop{},
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.dial == nil {
		a.dial = Dial(settings)
	}
	if a.logger == nil {
		a.logger = logger.New("sapb1")
	}
	return a
}

// Session returns the open session, dialing on first use
func (a *Adaptor) Session(ctx context.Context) (*Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.session != nil {
		return a.session, nil
	}

	start := time.Now()
	s, err := a.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open SAP B1 session: %w", err)
	}
	a.session = s

	clientID, requestID := logger.FromContext(ctx)
	a.logger.InfoWithDuration(clientID, requestID, "Opened SAP B1 session",
		float64(time.Since(start).Milliseconds()), map[string]interface{}{
			"company_name": s.Company.CompanyName(),
			"company_db":   a.settings.CompanyDB,
		})
	return s, nil
}

// Close ends the current session. The next operation opens a new one.
func (a *Adaptor) Close(ctx context.Context) error {
	a.mu.Lock()
	s := a.session
	a.session = nil
	a.mu.Unlock()

	if s == nil {
		return nil
	}

	clientID, requestID := logger.FromContext(ctx)
	a.logger.Info(clientID, requestID, "Closing SAP B1 session", nil)
	return s.Close(ctx)
}

// Info returns the company name and connection settings
func (a *Adaptor) Info(ctx context.Context) (*Info, error) {
	s, err := a.Session(ctx)
	if err != nil {
		return nil, err
	}

	return &Info{
		CompanyName: s.Company.CompanyName(),
		DIAPI:       a.settings.DIAPI,
		Server:      a.settings.Server,
		CompanyDB:   a.settings.CompanyDB,
	}, nil
}

// query runs a statement and renders the rows as Records
func (a *Adaptor) query(ctx context.Context, statement string, params map[string]interface{}) ([]Record, error) {
	s, err := a.Session(ctx)
	if err != nil {
		return nil, err
	}

	result, err := s.DB.Query(ctx, &base.Query{
		Statement:  statement,
		Parameters: params,
	})
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(result.Rows))
	for _, row := range result.Rows {
		records = append(records, toRecord(row))
	}

	clientID, requestID := logger.FromContext(ctx)
	a.logger.Debug(clientID, requestID, "Query executed", map[string]interface{}{
		"statement":   statement,
		"rows":        len(records),
		"duration_ms": result.Duration.Milliseconds(),
	})
	return records, nil
}

// cached returns the cached value for key or loads and stores it. Cache
// failures are logged and the value is loaded from the database.
func (a *Adaptor) cached(ctx context.Context, key string, load func(context.Context) (string, error)) (string, error) {
	clientID, requestID := logger.FromContext(ctx)

	if a.cache != nil {
		value, ok, err := a.cache.Get(ctx, key)
		if err != nil {
			a.logger.Warn(clientID, requestID, "Lookup cache read failed", map[string]interface{}{
				"key":   key,
				"error": err.Error(),
			})
		} else if ok {
			return value, nil
		}
	}

	value, err := load(ctx)
	if err != nil {
		return "", err
	}

	if a.cache != nil {
		if err := a.cache.Set(ctx, key, value, a.cacheTTL); err != nil {
			a.logger.Warn(clientID, requestID, "Lookup cache write failed", map[string]interface{}{
				"key":   key,
				"error": err.Error(),
			})
		}
	}
	return value, nil
}
