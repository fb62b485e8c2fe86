package geo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aegisalert/aegis/shared"
	"github.com/stretchr/testify/assert"
)

func TestResolveWithReverseGeocoding(t *testing.T) {
	geocoder := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "28.6139", r.URL.Query().Get("lat"))
		rw.Write([]byte(`{"display_name": "Connaught Place, New Delhi"}`))
	}))
	defer geocoder.Close()

	resolver := NewResolver(
		StaticProvider{Latitude: 28.6139, Longitude: 77.209},
		shared.LocationConfig{GeocoderURL: geocoder.URL},
	)

	fix, err := resolver.Resolve(context.Background())
	assert.Nil(t, err)
	assert.Equal(t, 28.6139, fix.Latitude)
	assert.Equal(t, "Connaught Place, New Delhi", fix.Address)
}

func TestResolveFallsBackToCoordinateString(t *testing.T) {
	geocoder := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusInternalServerError)
	}))
	defer geocoder.Close()

	resolver := NewResolver(
		StaticProvider{Latitude: 28.6139, Longitude: 77.209},
		shared.LocationConfig{GeocoderURL: geocoder.URL},
	)

	fix, err := resolver.Resolve(context.Background())
	assert.Nil(t, err, "a geocoder outage must never block the fix")
	assert.Equal(t, "28.6139, 77.2090", fix.Address)
}

func TestResolveWithUnreachableGeocoder(t *testing.T) {
	resolver := NewResolver(
		StaticProvider{Latitude: 28.6139, Longitude: 77.209},
		shared.LocationConfig{GeocoderURL: "http://127.0.0.1:1"},
	)

	fix, err := resolver.Resolve(context.Background())
	assert.Nil(t, err)
	assert.Equal(t, "28.6139, 77.2090", fix.Address)
}

func TestResolveWithNoConfiguredLocation(t *testing.T) {
	resolver := NewResolver(StaticProvider{}, shared.LocationConfig{})

	_, err := resolver.Resolve(context.Background())
	assert.NotNil(t, err)

	geoErr, ok := err.(*GeolocationError)
	assert.True(t, ok, "failure should be a recoverable GeolocationError")
	assert.Contains(t, geoErr.Reason, "no location configured")
}

func TestResolveHonoursFixTimeout(t *testing.T) {
	slowProvider := ProviderFunc(func(ctx context.Context) (*Fix, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Second):
			return &Fix{Latitude: 1, Longitude: 1}, nil
		}
	})

	resolver := NewResolver(slowProvider, shared.LocationConfig{FixTimeoutMs: 20})

	start := time.Now()
	_, err := resolver.Resolve(context.Background())
	assert.NotNil(t, err)
	assert.IsType(t, &GeolocationError{}, err)
	assert.True(t, time.Since(start) < time.Second, "acquisition should be abandoned at the timeout")
}

func TestProviderSuppliedAddressSkipsGeocoder(t *testing.T) {
	called := false
	geocoder := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer geocoder.Close()

	provider := ProviderFunc(func(ctx context.Context) (*Fix, error) {
		return &Fix{Latitude: 1, Longitude: 2, Address: "221B Baker Street"}, nil
	})

	resolver := NewResolver(provider, shared.LocationConfig{GeocoderURL: geocoder.URL})

	fix, err := resolver.Resolve(context.Background())
	assert.Nil(t, err)
	assert.Equal(t, "221B Baker Street", fix.Address)
	assert.False(t, called)
}
