// Package positionfeed polls the OpenSky states/all endpoint and turns
// it into the durable position snapshot the matcher reads each cycle.
// Responses are cached for one poll interval, rate limiting honours
// Retry-After, and each raw state is validated through
// internal/position before the whole batch is published as one
// model.Snapshot.
package positionfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/avbind/flightbind/internal/model"
	"github.com/avbind/flightbind/internal/position"
	"github.com/avbind/flightbind/internal/store"
	"github.com/avbind/flightbind/monitoring"
)

// statesResponse is the subset of the OpenSky /api/states/all response
// the feed consumes.
type statesResponse struct {
	States [][]interface{} `json:"states"`
}

// Feed polls OpenSky and publishes validated snapshots into Store.
type Feed struct {
	Store    *store.Store
	Options  position.Options
	Interval time.Duration // polling period, default 45s
	MaxAge   time.Duration // drop observations older than this, default 60s
	User     string
	Pass     string

	proxyOverride string
	clientMu      sync.Mutex
	httpClient    *http.Client

	cacheMu   sync.Mutex
	cacheData *statesResponse
	cacheAt   time.Time
}

// New builds a Feed with the default polling period and max age.
func New(st *store.Store) *Feed {
	return &Feed{
		Store:    st,
		Options:  position.DefaultOptions(),
		Interval: 45 * time.Second,
		MaxAge:   60 * time.Second,
	}
}

// SetProxy overrides the proxy used for outbound requests; empty
// restores environment-variable-driven proxy resolution.
func (f *Feed) SetProxy(p string) {
	f.clientMu.Lock()
	defer f.clientMu.Unlock()
	f.proxyOverride = strings.TrimSpace(p)
	f.httpClient = nil
}

func noProxyMatch(host string) bool {
	if host == "" {
		return false
	}
	noProxy := os.Getenv("NO_PROXY")
	if noProxy == "" {
		noProxy = os.Getenv("no_proxy")
	}
	if noProxy == "" {
		return false
	}
	host = strings.ToLower(host)
	for _, token := range strings.Split(noProxy, ",") {
		t := strings.ToLower(strings.TrimSpace(token))
		if t == "" {
			continue
		}
		if t == "*" {
			return true
		}
		if h, _, err := net.SplitHostPort(t); err == nil {
			t = h
		}
		if h, _, err := net.SplitHostPort(host); err == nil {
			host = h
		}
		if strings.HasPrefix(t, ".") {
			if strings.HasSuffix(host, t) || host == strings.TrimPrefix(t, ".") {
				return true
			}
			continue
		}
		if host == t || strings.HasSuffix(host, "."+t) {
			return true
		}
	}
	return false
}

func (f *Feed) buildHTTPClient(target string) *http.Client {
	f.clientMu.Lock()
	defer f.clientMu.Unlock()
	if f.httpClient != nil {
		return f.httpClient
	}

	dialer := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}
	tr := &http.Transport{
		DialContext:         dialer.DialContext,
		ForceAttemptHTTP2:   true,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	source, mode, bypass := "none", "direct", false
	thost := ""
	if u, err := url.Parse(target); err == nil {
		thost = u.Hostname()
	}

	if f.proxyOverride != "" {
		source = "cli"
		if purl, err := url.Parse(f.proxyOverride); err == nil && purl.Host != "" {
			bypass = noProxyMatch(thost)
			if !bypass {
				mode = strings.ToLower(purl.Scheme)
				fixed := purl
				tr.Proxy = func(req *http.Request) (*url.URL, error) {
					if noProxyMatch(req.URL.Hostname()) {
						return nil, nil
					}
					return fixed, nil
				}
			}
		}
	} else {
		source = "env"
		tr.Proxy = http.ProxyFromEnvironment
		if req, _ := http.NewRequest("GET", target, nil); req != nil {
			if purl, _ := http.ProxyFromEnvironment(req); purl != nil {
				mode = strings.ToLower(purl.Scheme)
			}
		}
	}

	f.httpClient = &http.Client{Transport: tr, Timeout: 15 * time.Second}
	monitoring.Debugf("positionfeed http_client configured source=%s mode=%s bypass=%t", source, mode, bypass)
	return f.httpClient
}

// resetClient drops the cached HTTP client so the next fetch rebuilds
// transport state from scratch after an I/O failure.
func (f *Feed) resetClient() {
	f.clientMu.Lock()
	f.httpClient = nil
	f.clientMu.Unlock()
}

// RateLimitError indicates OpenSky rate limiting with a suggested retry delay.
type RateLimitError struct {
	Status     int
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited: status=%d retry_after=%s", e.Status, e.RetryAfter)
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// fetch calls OpenSky /api/states/all, serving a cached response while
// it is fresher than the poll interval.
func (f *Feed) fetch() (*statesResponse, error) {
	const endpoint = "https://opensky-network.org/api/states/all"
	client := f.buildHTTPClient(endpoint)

	ttl := f.Interval
	if ttl <= 0 {
		ttl = 45 * time.Second
	}

	f.cacheMu.Lock()
	if f.cacheData != nil && time.Since(f.cacheAt) < ttl {
		cached := f.cacheData
		f.cacheMu.Unlock()
		monitoring.Debugf("positionfeed cache hit states=%d", len(cached.States))
		return cached, nil
	}
	f.cacheMu.Unlock()

	start := time.Now()
	ctx, span := monitoring.StartClientSpan(context.Background(), "opensky.states_all", endpoint, http.MethodGet)
	defer span.End()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if f.User != "" && f.Pass != "" {
		req.SetBasicAuth(f.User, f.Pass)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 5<<20))
	monitoring.Debugf("positionfeed request status=%d duration=%s body_len=%d", resp.StatusCode, time.Since(start), len(body))

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
		ra := parseRetryAfter(resp.Header.Get("Retry-After"))
		if ra <= 0 {
			ra = 30 * time.Second
		}
		return nil, &RateLimitError{Status: resp.StatusCode, RetryAfter: ra}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("opensky status %d", resp.StatusCode)
	}

	var data statesResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, err
	}
	f.cacheMu.Lock()
	f.cacheData = &data
	f.cacheAt = time.Now()
	f.cacheMu.Unlock()
	return &data, nil
}

// toRaw converts one OpenSky state vector row into a position.Raw.
// Index layout: 0=icao24 1=callsign 3=time_position 4=last_contact
// 5=lon 6=lat 7=baro_altitude 8=on_ground 9=velocity 10=true_track
// 11=vertical_rate.
func toRaw(st []interface{}) (position.Raw, bool) {
	if len(st) < 12 {
		return position.Raw{}, false
	}
	icao, _ := st[0].(string)
	icao = strings.ToLower(strings.TrimSpace(icao))
	if icao == "" {
		return position.Raw{}, false
	}
	callsign, _ := st[1].(string)

	lon, lok := toFloat(st[5])
	lat, aok := toFloat(st[6])
	if !lok || !aok {
		return position.Raw{}, false
	}

	var ts int64
	if v, ok := toInt64(st[4]); ok && v > 0 {
		ts = v
	} else if v, ok := toInt64(st[3]); ok {
		ts = v
	}
	if ts <= 0 {
		return position.Raw{}, false
	}
	observedAt := time.Unix(ts, 0).UTC()

	alt, _ := toFloat(st[7])
	onGround, _ := st[8].(bool)
	speed, _ := toFloat(st[9])
	track, _ := toFloat(st[10])
	vrate, _ := toFloat(st[11])

	return position.Raw{
		Callsign:     callsign,
		HardwareID:   icao,
		Lat:          &lat,
		Lon:          &lon,
		AltitudeM:    &alt,
		Heading:      &track,
		VerticalRate: &vrate,
		GroundSpeed:  &speed,
		OnGround:     &onGround,
		ObservedAt:   &observedAt,
	}, true
}

func toFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func toInt64(v interface{}) (int64, bool) {
	switch t := v.(type) {
	case float64:
		return int64(t), true
	case json.Number:
		n, err := t.Int64()
		return n, err == nil
	default:
		return 0, false
	}
}

// buildSnapshot validates every raw state and assembles a model.Snapshot.
// Observations that fail validation are dropped; a validator rejection
// is not an ingest error.
func (f *Feed) buildSnapshot(data *statesResponse) model.Snapshot {
	positions := make(map[string]model.Observation, len(data.States))
	for _, st := range data.States {
		raw, ok := toRaw(st)
		if !ok {
			continue
		}
		obs, ok := position.Validate(raw, f.Options)
		if !ok {
			continue
		}
		if f.MaxAge > 0 && time.Since(obs.ObservedAt) > f.MaxAge {
			continue
		}
		positions[obs.Callsign] = *obs
	}
	return model.Snapshot{Positions: positions, StatesTime: time.Now().UTC()}
}

// pollOnce fetches, validates and publishes one snapshot, returning the
// delay before the next attempt.
func (f *Feed) pollOnce() time.Duration {
	interval := f.Interval
	if interval <= 0 {
		interval = 45 * time.Second
	}

	data, err := f.fetch()
	if err != nil {
		if rl, ok := err.(*RateLimitError); ok {
			delay := rl.RetryAfter
			if delay < interval {
				delay = interval
			}
			monitoring.Debugf("positionfeed rate-limited status=%d retry_after=%s applied_backoff=%s", rl.Status, rl.RetryAfter, delay)
			return delay
		}
		log.Printf("positionfeed fetch error: %v", err)
		f.resetClient()
		return interval
	}

	snap := f.buildSnapshot(data)
	if err := f.Store.PublishSnapshot(snap); err != nil {
		log.Printf("positionfeed publish snapshot: %v", err)
	} else {
		monitoring.Debugf("positionfeed published positions=%d", len(snap.Positions))
	}
	return interval
}

// Run polls until stop is closed, publishing one snapshot per cycle.
// The first fetch happens immediately to minimize startup latency.
func (f *Feed) Run(stop <-chan struct{}) {
	sleep := f.pollOnce()
	for {
		select {
		case <-stop:
			return
		case <-time.After(sleep):
			sleep = f.pollOnce()
		}
	}
}
