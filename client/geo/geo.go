// Package geo acquires the location fix attached to an emergency trigger.
// A fix is mandatory (latitude+longitude); the street address is best-effort
// via reverse geocoding and falls back to a plain coordinate string, so a
// geocoder outage can never block an alert.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/aegisalert/aegis/shared"
	"github.com/pkg/errors"
)

const (
	// fixes older than this are useless for an emergency; no caching
	defaultFixTimeout   = 10 * time.Second
	defaultGeocoderURL  = "https://nominatim.openstreetmap.org/reverse"
	geocodeBudget       = 5 * time.Second
	geocoderUserAgent   = "aegis-client"
	geocoderQueryFormat = "jsonv2"
)

// GeolocationError is always recoverable: callers surface it as a retry
// prompt, never as a fatal failure.
type GeolocationError struct {
	Reason string
}

func (e *GeolocationError) Error() string {
	return fmt.Sprintf("unable to acquire location: %v", e.Reason)
}

type Fix struct {
	Latitude  float64
	Longitude float64
	Address   string
}

// CoordinateString is the fallback address when reverse geocoding fails.
func (f Fix) CoordinateString() string {
	return fmt.Sprintf("%.4f, %.4f", f.Latitude, f.Longitude)
}

// Provider yields the device's current position. Implementations must not
// cache stale fixes and must honour context cancellation.
type Provider interface {
	CurrentFix(ctx context.Context) (*Fix, error)
}

// ProviderFunc adapts a function to a Provider.
type ProviderFunc func(ctx context.Context) (*Fix, error)

func (f ProviderFunc) CurrentFix(ctx context.Context) (*Fix, error) {
	return f(ctx)
}

// StaticProvider serves a fix from configuration, for hosts with no
// positioning hardware.
type StaticProvider struct {
	Latitude  float64
	Longitude float64
}

func (p StaticProvider) CurrentFix(ctx context.Context) (*Fix, error) {
	if p.Latitude == 0 && p.Longitude == 0 {
		return nil, &GeolocationError{Reason: "no location configured - set location.latitude & location.longitude"}
	}

	return &Fix{Latitude: p.Latitude, Longitude: p.Longitude}, nil
}

// Resolver acquires a fix within a bounded time budget and decorates it
// with a reverse-geocoded address when it can.
type Resolver struct {
	provider    Provider
	geocoderURL string
	fixTimeout  time.Duration
	httpClient  *http.Client
}

func NewResolver(provider Provider, config shared.LocationConfig) *Resolver {
	geocoderURL := config.GeocoderURL
	if geocoderURL == "" {
		geocoderURL = defaultGeocoderURL
	}

	fixTimeout := defaultFixTimeout
	if config.FixTimeoutMs > 0 {
		fixTimeout = time.Duration(config.FixTimeoutMs) * time.Millisecond
	}

	return &Resolver{
		provider:    provider,
		geocoderURL: geocoderURL,
		fixTimeout:  fixTimeout,
		httpClient:  &http.Client{Timeout: geocodeBudget},
	}
}

// Resolve acquires the current fix. Acquisition is abandonable: the provider
// is cut off at the fix timeout, and a timeout comes back as a recoverable
// GeolocationError. Reverse geocoding failure downgrades to the coordinate
// string, never an error.
func (r *Resolver) Resolve(ctx context.Context) (*Fix, error) {
	fixCtx, cancel := context.WithTimeout(ctx, r.fixTimeout)
	defer cancel()

	fix, err := r.provider.CurrentFix(fixCtx)
	if err != nil {
		geoErr := &GeolocationError{}
		if errors.As(err, &geoErr) {
			return nil, geoErr
		}

		return nil, &GeolocationError{Reason: err.Error()}
	}

	if fix.Address == "" {
		fix.Address = r.reverseGeocode(ctx, fix)
	}

	return fix, nil
}

func (r *Resolver) reverseGeocode(ctx context.Context, fix *Fix) string {
	query := url.Values{}
	query.Set("format", geocoderQueryFormat)
	query.Set("lat", fmt.Sprintf("%v", fix.Latitude))
	query.Set("lon", fmt.Sprintf("%v", fix.Longitude))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.geocoderURL+"?"+query.Encode(), nil)
	if err != nil {
		return fix.CoordinateString()
	}
	req.Header.Set("User-Agent", geocoderUserAgent)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fix.CoordinateString()
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fix.CoordinateString()
	}

	body := struct {
		DisplayName string `json:"display_name"`
	}{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.DisplayName == "" {
		return fix.CoordinateString()
	}

	return body.DisplayName
}
