// Copyright 2025 b1link
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package servicelayer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"b1link/connectors/base"
)

// fakeServiceLayer mimics the session handling of the Service Layer: a
// login sets B1SESSION and every other call must present it.
type fakeServiceLayer struct {
	mu       sync.Mutex
	logins   int
	logouts  int
	session  string
	lastBody map[string][]byte
	calls    map[string]int
	routes   map[string]http.HandlerFunc
}

func newFakeServiceLayer() *fakeServiceLayer {
	f := &fakeServiceLayer{
		lastBody: make(map[string][]byte),
		calls:    make(map[string]int),
		routes:   make(map[string]http.HandlerFunc),
	}
	f.routes["POST /CompanyService_GetAdminInfo"] = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"CompanyName":"OEC Computers","Country":"US"}`)
	}
	return f
}

func (f *fakeServiceLayer) expireSession() {
	f.mu.Lock()
	f.session = "expired"
	f.mu.Unlock()
}

func (f *fakeServiceLayer) callCount(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

func (f *fakeServiceLayer) body(key string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastBody[key]
}

func (f *fakeServiceLayer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/b1s/v1")
	key := r.Method + " " + path
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	f.calls[key]++
	f.lastBody[key] = body

	switch key {
	case "POST /Login":
		var login struct {
			CompanyDB string
			UserName  string
			Password  string
		}
		_ = json.Unmarshal(body, &login)
		if login.Password != "secret" {
			f.mu.Unlock()
			writeJSON(w, http.StatusUnauthorized,
				`{"error":{"code":-304,"message":{"lang":"en-us","value":"Fail to get DB Credentials from SLD"}}}`)
			return
		}
		f.logins++
		f.session = fmt.Sprintf("session-%d", f.logins)
		http.SetCookie(w, &http.Cookie{Name: "B1SESSION", Value: f.session, Path: "/"})
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, `{"SessionId":"`+f.session+`","Version":"1000190","SessionTimeout":30}`)
		return
	}

	cookie, err := r.Cookie("B1SESSION")
	if err != nil || cookie.Value != f.session {
		f.mu.Unlock()
		writeJSON(w, http.StatusUnauthorized,
			`{"error":{"code":301,"message":{"lang":"en-us","value":"Invalid session or session already timeout."}}}`)
		return
	}

	if key == "POST /Logout" {
		f.logouts++
		f.session = ""
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
		return
	}

	handler, ok := f.routes[key]
	f.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound,
			`{"error":{"code":-2028,"message":{"lang":"en-us","value":"No matching records found (ODBC -2028)"}}}`)
		return
	}
	handler(w, r)
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func testConfig(serverURL string) *base.ConnectorConfig {
	return &base.ConnectorConfig{
		Name:          "b1-sl",
		Type:          "servicelayer",
		ConnectionURL: serverURL + "/b1s/v1",
		Credentials:   map[string]string{"username": "manager", "password": "secret"},
		Options: map[string]interface{}{
			"company_db":          "SBODEMOUS",
			"language":            "ln_English",
			"retry_delay":         "1ms",
			"requests_per_second": float64(1000),
		},
	}
}

func newConnectedClient(t *testing.T, fake *fakeServiceLayer) *Client {
	t.Helper()

	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	client := NewClient()
	if err := client.Connect(context.Background(), testConfig(server.URL)); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	return client
}

func TestNewClient(t *testing.T) {
	client := NewClient()
	if client.logger == nil {
		t.Error("expected logger to be initialized")
	}
	if client.limiter == nil {
		t.Error("expected limiter to be initialized")
	}
	if got := client.Name(); got != "servicelayer" {
		t.Errorf("Name() = %q, want servicelayer", got)
	}
	if got := client.Type(); got != "servicelayer" {
		t.Errorf("Type() = %q, want servicelayer", got)
	}
}

func TestClient_Connect(t *testing.T) {
	fake := newFakeServiceLayer()
	client := newConnectedClient(t, fake)

	if fake.logins != 1 {
		t.Errorf("expected 1 login, got %d", fake.logins)
	}
	if got := client.CompanyName(); got != "OEC Computers" {
		t.Errorf("CompanyName() = %q", got)
	}

	var login map[string]interface{}
	if err := json.Unmarshal(fake.body("POST /Login"), &login); err != nil {
		t.Fatalf("invalid login body: %v", err)
	}
	if login["CompanyDB"] != "SBODEMOUS" || login["UserName"] != "manager" {
		t.Errorf("unexpected login body: %v", login)
	}
	if login["Language"] != float64(3) {
		t.Errorf("Language = %v, want 3", login["Language"])
	}
}

func TestClient_Connect_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*base.ConnectorConfig)
		want   string
	}{
		{
			name:   "missing base url",
			mutate: func(c *base.ConnectorConfig) { c.ConnectionURL = "" },
			want:   "base_url is required",
		},
		{
			name:   "bad scheme",
			mutate: func(c *base.ConnectorConfig) { c.ConnectionURL = "ftp://b1/b1s/v1" },
			want:   "invalid base_url",
		},
		{
			name:   "missing company db",
			mutate: func(c *base.ConnectorConfig) { delete(c.Options, "company_db") },
			want:   "company_db is required",
		},
		{
			name:   "missing username",
			mutate: func(c *base.ConnectorConfig) { c.Credentials = map[string]string{} },
			want:   "username is required",
		},
		{
			name:   "unknown language",
			mutate: func(c *base.ConnectorConfig) { c.Options["language"] = "ln_Klingon" },
			want:   "invalid language",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig("http://127.0.0.1:50000")
			tt.mutate(cfg)

			err := NewClient().Connect(context.Background(), cfg)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestClient_Connect_LoginRejected(t *testing.T) {
	fake := newFakeServiceLayer()
	server := httptest.NewServer(fake)
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.Credentials["password"] = "wrong"

	client := NewClient()
	err := client.Connect(context.Background(), cfg)
	if err == nil {
		t.Fatal("expected login error")
	}

	var b1err *B1Error
	if !errors.As(err, &b1err) {
		t.Fatalf("expected *B1Error in chain, got %T: %v", err, err)
	}
	if b1err.Code != -304 {
		t.Errorf("Code = %d, want -304", b1err.Code)
	}

	status, _ := client.HealthCheck(context.Background())
	if status.Healthy {
		t.Error("expected unhealthy client after failed login")
	}
}

func TestClient_SessionExpiredRelogin(t *testing.T) {
	fake := newFakeServiceLayer()
	fake.routes["GET /BusinessPartners('C20000')"] = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"CardCode":"C20000","CardName":"Norm Thompson","ContactEmployees":[]}`)
	}
	client := newConnectedClient(t, fake)

	fake.expireSession()

	bp, err := client.GetBusinessPartner(context.Background(), "C20000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bp.CardName != "Norm Thompson" {
		t.Errorf("CardName = %q", bp.CardName)
	}
	if fake.logins != 2 {
		t.Errorf("expected re-login, got %d logins", fake.logins)
	}
	if got := fake.callCount("GET /BusinessPartners('C20000')"); got != 2 {
		t.Errorf("expected request to be replayed once, got %d calls", got)
	}
}

func TestClient_Query_RetriesTransientErrors(t *testing.T) {
	fake := newFakeServiceLayer()
	attempts := 0
	fake.routes["GET /Items"] = func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			writeJSON(w, http.StatusServiceUnavailable, `{"error":{"code":-1,"message":"busy"}}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"value":[{"ItemCode":"A0001","OnHand":12.5},{"ItemCode":"A0002","OnHand":0}]}`)
	}
	client := newConnectedClient(t, fake)

	result, err := client.Query(context.Background(), &base.Query{Statement: "Items"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
	if result.RowCount != 2 {
		t.Fatalf("expected 2 rows, got %d", result.RowCount)
	}
	if result.Rows[0]["ItemCode"] != "A0001" || result.Rows[0]["OnHand"] != 12.5 {
		t.Errorf("unexpected first row: %v", result.Rows[0])
	}
}

func TestClient_Query_OptionsAndLimit(t *testing.T) {
	fake := newFakeServiceLayer()
	var gotQuery string
	fake.routes["GET /Orders"] = func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		writeJSON(w, http.StatusOK, `{"odata.metadata":"x","value":[{"DocEntry":1},{"DocEntry":2},{"DocEntry":3}],"odata.nextLink":"Orders?$skip=3"}`)
	}
	client := newConnectedClient(t, fake)

	result, err := client.Query(context.Background(), &base.Query{
		Statement:  "/Orders",
		Parameters: map[string]interface{}{"$filter": "CardCode eq 'C20000'"},
		Limit:      2,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.RowCount != 2 {
		t.Errorf("expected limit to cap rows at 2, got %d", result.RowCount)
	}
	if !strings.Contains(gotQuery, "%24top=2") || !strings.Contains(gotQuery, "%24filter=") {
		t.Errorf("unexpected query string %q", gotQuery)
	}
	if result.Metadata["next_link"] != "Orders?$skip=3" {
		t.Errorf("next_link = %v", result.Metadata["next_link"])
	}
}

func TestClient_Query_SingleEntity(t *testing.T) {
	fake := newFakeServiceLayer()
	fake.routes["GET /Orders(12)"] = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"odata.metadata":"x","DocEntry":12,"DocNum":112,"CardCode":"C20000"}`)
	}
	client := newConnectedClient(t, fake)

	result, err := client.Query(context.Background(), &base.Query{Statement: "Orders(12)"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.RowCount != 1 {
		t.Fatalf("expected 1 row, got %d", result.RowCount)
	}
	if _, ok := result.Rows[0]["odata.metadata"]; ok {
		t.Error("expected odata annotations to be dropped")
	}
	if result.Rows[0]["DocNum"] != float64(112) {
		t.Errorf("DocNum = %v", result.Rows[0]["DocNum"])
	}
}

func TestClient_Execute(t *testing.T) {
	fake := newFakeServiceLayer()
	fake.routes["POST /Orders"] = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, `{"DocEntry":812,"DocNum":1812}`)
	}
	client := newConnectedClient(t, fake)

	result, err := client.Execute(context.Background(), &base.Command{
		Action:     "post",
		Statement:  "Orders",
		Parameters: map[string]interface{}{"CardCode": "C20000"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success || result.Metadata["DocEntry"] != int64(812) {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestClient_Execute_NoRetryOnWrite(t *testing.T) {
	fake := newFakeServiceLayer()
	fake.routes["POST /Orders"] = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusServiceUnavailable, `{"error":{"code":-1,"message":{"value":"busy"}}}`)
	}
	client := newConnectedClient(t, fake)

	_, err := client.Execute(context.Background(), &base.Command{Statement: "/Orders"})
	if err == nil {
		t.Fatal("expected error")
	}
	if got := fake.callCount("POST /Orders"); got != 1 {
		t.Errorf("expected a single attempt for POST, got %d", got)
	}
}

func TestClient_Execute_UnsupportedMethod(t *testing.T) {
	client := newConnectedClient(t, newFakeServiceLayer())

	_, err := client.Execute(context.Background(), &base.Command{Action: "PUT", Statement: "/Orders(1)"})
	if err == nil || !strings.Contains(err.Error(), "unsupported HTTP method") {
		t.Fatalf("expected unsupported method error, got %v", err)
	}
}

func TestClient_GetBusinessPartner_QuotesKey(t *testing.T) {
	fake := newFakeServiceLayer()
	fake.routes["GET /BusinessPartners('O''Neil')"] = func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("$select") != "CardCode,CardName,ContactEmployees" {
			t.Errorf("unexpected $select: %q", r.URL.RawQuery)
		}
		writeJSON(w, http.StatusOK, `{"CardCode":"O'Neil","ContactEmployees":[{"InternalCode":4,"Name":"Ann Lee","E_Mail":"ann@example.com"}]}`)
	}
	client := newConnectedClient(t, fake)

	bp, err := client.GetBusinessPartner(context.Background(), "O'Neil")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bp.ContactEmployees) != 1 || bp.ContactEmployees[0].EMail != "ann@example.com" {
		t.Errorf("unexpected contacts: %+v", bp.ContactEmployees)
	}
}

func TestClient_GetBusinessPartner_NotFound(t *testing.T) {
	client := newConnectedClient(t, newFakeServiceLayer())

	_, err := client.GetBusinessPartner(context.Background(), "NOPE")
	var b1err *B1Error
	if !errors.As(err, &b1err) {
		t.Fatalf("expected *B1Error, got %v", err)
	}
	if b1err.Code != -2028 || b1err.StatusCode != http.StatusNotFound {
		t.Errorf("unexpected B1Error: %+v", b1err)
	}
}

func TestClient_AddContactEmployee(t *testing.T) {
	fake := newFakeServiceLayer()
	fake.routes["PATCH /BusinessPartners('C20000')"] = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}
	client := newConnectedClient(t, fake)

	err := client.AddContactEmployee(context.Background(), "C20000", ContactEmployee{
		InternalCode: 9,
		Name:         "Ann Lee 1700000000.5",
		FirstName:    "Ann",
		LastName:     "Lee",
		Phone1:       "555-0100",
		EMail:        "ann@example.com",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var body struct {
		ContactEmployees []map[string]interface{}
	}
	if err := json.Unmarshal(fake.body("PATCH /BusinessPartners('C20000')"), &body); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	if len(body.ContactEmployees) != 1 {
		t.Fatalf("expected one contact line, got %d", len(body.ContactEmployees))
	}
	line := body.ContactEmployees[0]
	if _, ok := line["InternalCode"]; ok {
		t.Error("new contact line must not carry an InternalCode")
	}
	if line["E_Mail"] != "ann@example.com" || line["Phone1"] != "555-0100" {
		t.Errorf("unexpected line: %v", line)
	}
}

func TestClient_AddOrder(t *testing.T) {
	fake := newFakeServiceLayer()
	fake.routes["POST /Orders"] = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, `{"DocEntry":812,"DocNum":1812,"CardCode":"C20000"}`)
	}
	client := newConnectedClient(t, fake)

	docEntry, err := client.AddOrder(context.Background(), &Document{
		CardCode:      "C20000",
		DocDueDate:    "2024-03-01",
		DocumentLines: []DocumentLine{{ItemCode: "A0001", Quantity: "2"}},
		UserFields:    map[string]string{"U_FEOrderId": "100000123"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if docEntry != 812 {
		t.Errorf("DocEntry = %d, want 812", docEntry)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(fake.body("POST /Orders"), &body); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	if body["U_FEOrderId"] != "100000123" {
		t.Errorf("expected UDF in body, got %v", body)
	}
}

func TestClient_AddOrder_LogsSanitizedCardCode(t *testing.T) {
	fake := newFakeServiceLayer()
	fake.routes["POST /Orders"] = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, `{"DocEntry":812}`)
	}
	client := newConnectedClient(t, fake)

	var logs bytes.Buffer
	client.logger = log.New(&logs, "", 0)

	_, err := client.AddOrder(context.Background(), &Document{
		CardCode:      "C20000\n[B1_SERVICE_LAYER] Cancelled order DocEntry=1",
		DocumentLines: []DocumentLine{{ItemCode: "A0001", Quantity: "2"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := strings.TrimRight(logs.String(), "\n")
	if strings.Contains(out, "\n") {
		t.Errorf("caller input split the log line: %q", out)
	}
	if !strings.Contains(out, `C20000\n[B1_SERVICE_LAYER]`) {
		t.Errorf("expected escaped line break in log, got %q", out)
	}
}

func TestClient_AddOrder_VendorError(t *testing.T) {
	fake := newFakeServiceLayer()
	fake.routes["POST /Orders"] = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest,
			`{"error":{"code":-5002,"message":{"lang":"en-us","value":"Item 'A9999' not found"}}}`)
	}
	client := newConnectedClient(t, fake)

	_, err := client.AddOrder(context.Background(), &Document{CardCode: "C20000"})
	var b1err *B1Error
	if !errors.As(err, &b1err) {
		t.Fatalf("expected *B1Error, got %v", err)
	}
	if b1err.Code != -5002 || b1err.Message != "Item 'A9999' not found" {
		t.Errorf("unexpected B1Error: %+v", b1err)
	}
}

func TestClient_CancelOrder(t *testing.T) {
	fake := newFakeServiceLayer()
	fake.routes["POST /Orders(812)/Cancel"] = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}
	client := newConnectedClient(t, fake)

	if err := client.CancelOrder(context.Background(), 812); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := fake.callCount("POST /Orders(812)/Cancel"); got != 1 {
		t.Errorf("expected one cancel call, got %d", got)
	}
}

func TestClient_HealthCheckAndClose(t *testing.T) {
	fake := newFakeServiceLayer()
	client := newConnectedClient(t, fake)
	ctx := context.Background()

	status, err := client.HealthCheck(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !status.Healthy || status.Details["company_name"] != "OEC Computers" {
		t.Errorf("unexpected status: %+v", status)
	}

	if err := client.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if fake.logouts != 1 {
		t.Errorf("expected 1 logout, got %d", fake.logouts)
	}

	status, _ = client.HealthCheck(ctx)
	if status.Healthy {
		t.Error("expected unhealthy after Close")
	}
	if _, err := client.GetBusinessPartner(ctx, "C20000"); err == nil {
		t.Error("expected error after Close")
	}
}
