package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/farescout/farescout/pkg/fare"
)

// Prometheus metrics for upstream calls.
var (
	upstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "farescout_upstream_requests_total",
		Help: "Total upstream best-price requests by status",
	}, []string{"status"})

	upstreamRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "farescout_upstream_request_duration_seconds",
		Help:    "Upstream best-price request duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	})

	upstreamErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "farescout_upstream_errors_total",
		Help: "Total upstream errors by class",
	}, []string{"class"})
)

// RawLeg is one travelled segment of an upstream connection.
type RawLeg struct {
	From      string    `json:"from"`
	To        string    `json:"to"`
	Line      string    `json:"line"`
	Departure time.Time `json:"departure"`
	Arrival   time.Time `json:"arrival"`
}

// RawConnection is one priced connection option returned by the upstream.
type RawConnection struct {
	// Price in euros as reported by the upstream.
	Price     float64  `json:"price"`
	Transfers int      `json:"transfers"`
	Legs      []RawLeg `json:"legs"`
}

// RawResponse is the upstream best-price answer for a single day.
type RawResponse struct {
	// Status is "ok" or "no_price".
	Status      string          `json:"status"`
	Connections []RawConnection `json:"connections"`
}

// StatusNoPrice is the upstream's explicit no-price-available answer.
const StatusNoPrice = "no_price"

// Upstream performs one raw best-price call. Failures may be tagged as
// rate-limited (recognized by the admission queue) or generic.
type Upstream interface {
	QueryBestPrice(ctx context.Context, q fare.Query) (*RawResponse, error)
}

// HTTPConfig holds the upstream client configuration.
type HTTPConfig struct {
	// BaseURL of the pricing service, e.g. "https://pricing.example.com".
	BaseURL string

	// Timeout per request.
	Timeout time.Duration

	// UserAgent header sent with every request.
	UserAgent string
}

// DefaultHTTPConfig returns a safe default configuration.
func DefaultHTTPConfig(baseURL string) HTTPConfig {
	return HTTPConfig{
		BaseURL:   baseURL,
		Timeout:   30 * time.Second,
		UserAgent: "farescout/0.1.0",
	}
}

// HTTPUpstream is the production Upstream implementation.
type HTTPUpstream struct {
	httpClient *http.Client
	cfg        HTTPConfig
	logger     zerolog.Logger
}

// NewHTTPUpstream creates an upstream client.
func NewHTTPUpstream(cfg HTTPConfig, logger zerolog.Logger) (*HTTPUpstream, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("upstream base URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &HTTPUpstream{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		logger:     logger,
	}, nil
}

// QueryBestPrice performs one best-price request for a single day and
// classifies any failure.
func (u *HTTPUpstream) QueryBestPrice(ctx context.Context, q fare.Query) (*RawResponse, error) {
	start := time.Now()
	defer func() {
		upstreamRequestDuration.Observe(time.Since(start).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.cfg.BaseURL+"/bestprice?"+queryParams(q).Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", u.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := u.httpClient.Do(req)
	if err != nil {
		upstreamErrorsTotal.WithLabelValues(string(ErrorClassTransport)).Inc()
		upstreamRequestsTotal.WithLabelValues("network_error").Inc()
		u.logger.Error().Err(err).Str("date", q.Date.Format("2006-01-02")).Msg("Upstream request failed")
		return nil, &UpstreamError{Class: ErrorClassTransport, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	upstreamRequestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode != http.StatusOK {
		class := classifyStatus(resp.StatusCode)
		upstreamErrorsTotal.WithLabelValues(string(class)).Inc()

		u.logger.Warn().
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Str("date", q.Date.Format("2006-01-02")).
			Msg("Upstream request error")

		if class == ErrorClassRateLimit {
			return nil, newRateLimitError(resp.StatusCode, resp.Status)
		}
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Class: class, Message: resp.Status}
	}

	var raw RawResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		upstreamErrorsTotal.WithLabelValues(string(ErrorClassMalformed)).Inc()
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Class: ErrorClassMalformed, Message: "decode response", Err: err}
	}

	u.logger.Debug().
		Str("date", q.Date.Format("2006-01-02")).
		Int("connections", len(raw.Connections)).
		Dur("duration", time.Since(start)).
		Msg("Upstream request complete")

	return &raw, nil
}

// classifyStatus categorizes an HTTP status for handling and observability.
func classifyStatus(statusCode int) ErrorClass {
	switch {
	case statusCode == http.StatusTooManyRequests || statusCode == 420:
		return ErrorClassRateLimit
	case statusCode >= 500:
		return ErrorClassTransport
	default:
		return ErrorClassClient
	}
}

func queryParams(q fare.Query) url.Values {
	params := url.Values{}
	params.Set("from", q.Origin.ID)
	params.Set("to", q.Destination.ID)
	params.Set("date", q.Date.Format("2006-01-02"))
	params.Set("age_group", q.AgeGroup)
	params.Set("class", strconv.Itoa(q.TravelClass))
	params.Set("max_transfers", strconv.Itoa(q.MaxTransfers))
	params.Set("fast_only", strconv.FormatBool(q.FastOnly))
	params.Set("regional_only", strconv.FormatBool(q.RegionalOnly))
	if q.DiscountType != "" {
		params.Set("discount", q.DiscountType)
		params.Set("discount_class", strconv.Itoa(q.DiscountClass))
	}
	return params
}

// ParseIntervals converts an upstream response into interval records
// sorted ascending by price. The first leg supplies the displayed
// departure, the last leg the displayed arrival.
func ParseIntervals(raw *RawResponse) ([]fare.IntervalRecord, error) {
	intervals := make([]fare.IntervalRecord, 0, len(raw.Connections))
	for i, conn := range raw.Connections {
		if len(conn.Legs) == 0 {
			return nil, &UpstreamError{Class: ErrorClassMalformed, Message: fmt.Sprintf("connection %d has no legs", i)}
		}
		if conn.Price < 0 {
			return nil, &UpstreamError{Class: ErrorClassMalformed, Message: fmt.Sprintf("connection %d has negative price", i)}
		}

		first := conn.Legs[0]
		last := conn.Legs[len(conn.Legs)-1]

		lines := make([]string, 0, len(conn.Legs))
		for _, leg := range conn.Legs {
			lines = append(lines, leg.Line)
		}

		intervals = append(intervals, fare.IntervalRecord{
			Price:            int64(math.Round(conn.Price * 100)),
			DepartureAt:      first.Departure,
			ArrivalAt:        last.Arrival,
			DepartureStation: first.From,
			ArrivalStation:   last.To,
			Summary:          strings.Join(lines, ", "),
			Transfers:        conn.Transfers,
		})
	}

	sort.Slice(intervals, func(i, j int) bool {
		return intervals[i].Price < intervals[j].Price
	})

	return intervals, nil
}
