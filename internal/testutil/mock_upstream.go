// Package testutil provides testing utilities for the fare scanner.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// MockResponse defines the behavior of the mock pricing endpoint for one
// travel date.
type MockResponse struct {
	StatusCode int
	Body       string
	Delay      time.Duration

	// RateLimitFirst rejects this many initial requests with 429 before
	// serving the configured response.
	RateLimitFirst int
}

// MockPricing is a configurable mock best-price upstream for testing.
type MockPricing struct {
	server *httptest.Server

	mu        sync.Mutex
	responses map[string]*MockResponse
	fallback  MockResponse

	// Tracking
	RequestCount int
	DateCounts   map[string]int
}

// NewMockPricing creates a mock pricing server. By default every date
// answers with an empty priced response.
func NewMockPricing() *MockPricing {
	mock := &MockPricing{
		responses:  make(map[string]*MockResponse),
		DateCounts: make(map[string]int),
		fallback: MockResponse{
			StatusCode: http.StatusOK,
			Body:       `{"status": "ok", "connections": []}`,
		},
	}

	mock.server = httptest.NewServer(http.HandlerFunc(mock.handle))
	return mock
}

// URL returns the mock server URL.
func (m *MockPricing) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockPricing) Close() {
	m.server.Close()
}

// Reset clears tracking counters and configured responses.
func (m *MockPricing) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.DateCounts = make(map[string]int)
	m.responses = make(map[string]*MockResponse)
}

// SetResponse configures the answer for one travel date (ISO format).
func (m *MockPricing) SetResponse(date string, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if resp.StatusCode == 0 {
		resp.StatusCode = http.StatusOK
	}
	m.responses[date] = &resp
}

// SetPriced configures a single-connection priced answer for a date.
func (m *MockPricing) SetPriced(date string, priceEuros float64) {
	body := fmt.Sprintf(`{
		"status": "ok",
		"connections": [
			{"price": %.2f, "transfers": 0, "legs": [
				{"from": "Frankfurt(Main)Hbf", "to": "Berlin Hbf", "line": "ICE 1537",
				 "departure": "%sT06:15:00+02:00", "arrival": "%sT10:30:00+02:00"}
			]}
		]
	}`, priceEuros, date, date)
	m.SetResponse(date, MockResponse{StatusCode: http.StatusOK, Body: body})
}

// SetNoPrice configures the explicit no-price answer for a date.
func (m *MockPricing) SetNoPrice(date string) {
	m.SetResponse(date, MockResponse{StatusCode: http.StatusOK, Body: `{"status": "no_price"}`})
}

// Requests returns the total number of requests served.
func (m *MockPricing) Requests() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.RequestCount
}

// RequestsFor returns the number of requests served for one date.
func (m *MockPricing) RequestsFor(date string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.DateCounts[date]
}

func (m *MockPricing) handle(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")

	m.mu.Lock()
	m.RequestCount++
	m.DateCounts[date]++

	resp := m.fallback
	if configured, ok := m.responses[date]; ok {
		if configured.RateLimitFirst > 0 {
			configured.RateLimitFirst--
			m.mu.Unlock()
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		resp = *configured
	}
	m.mu.Unlock()

	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}
