package location

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"storefront-service/internal/models"
)

// Geolocation failure classes. Callers must not collapse these into one
// generic failure: each maps to a distinct user-facing reason.
var (
	ErrLocatePermission  = errors.New("location permission denied")
	ErrLocateUnavailable = errors.New("location position unavailable")
	ErrLocateTimeout     = errors.New("location request timed out")
)

// FailureMessage translates a locator failure class into the message
// shown to the user.
func FailureMessage(err error) string {
	switch {
	case errors.Is(err, ErrLocatePermission):
		return "Location access was denied. Enter your pincode instead."
	case errors.Is(err, ErrLocateUnavailable):
		return "Your position could not be determined. Enter your pincode instead."
	case errors.Is(err, ErrLocateTimeout):
		return "Locating you took too long. Enter your pincode instead."
	default:
		return "Location detection failed. Enter your pincode instead."
	}
}

// FailureReason labels a locator failure class for metrics.
func FailureReason(err error) string {
	switch {
	case errors.Is(err, ErrLocatePermission):
		return "permission_denied"
	case errors.Is(err, ErrLocateUnavailable):
		return "unavailable"
	case errors.Is(err, ErrLocateTimeout):
		return "timeout"
	default:
		return "unknown"
	}
}

// Locator resolves a position from a client hint (an IP address or
// device token). Implementations must honor ctx cancellation.
type Locator interface {
	Locate(ctx context.Context, hint string) (models.Coordinates, string, error)
}

// HTTPLocator resolves positions against a geolocation HTTP endpoint.
type HTTPLocator struct {
	httpClient *http.Client
	endpoint   string
}

// NewHTTPLocator creates a locator for the given endpoint.
func NewHTTPLocator(endpoint string) *HTTPLocator {
	return &HTTPLocator{
		httpClient: &http.Client{},
		endpoint:   endpoint,
	}
}

type locateResponse struct {
	Success bool    `json:"success"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Name    string  `json:"name"`
	Error   string  `json:"error,omitempty"`
}

// Locate asks the geolocation endpoint to resolve the hint. Transport
// timeouts map to ErrLocateTimeout; a denied or unresolvable hint maps
// to its own failure class.
func (l *HTTPLocator) Locate(ctx context.Context, hint string) (models.Coordinates, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s?hint=%s", l.endpoint, hint), nil)
	if err != nil {
		return models.Coordinates{}, "", fmt.Errorf("%w: %v", ErrLocateUnavailable, err)
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			return models.Coordinates{}, "", ErrLocateTimeout
		}
		return models.Coordinates{}, "", fmt.Errorf("%w: %v", ErrLocateUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusForbidden, http.StatusUnauthorized:
		return models.Coordinates{}, "", ErrLocatePermission
	default:
		return models.Coordinates{}, "", fmt.Errorf("%w: status %d", ErrLocateUnavailable, resp.StatusCode)
	}

	var body locateResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return models.Coordinates{}, "", fmt.Errorf("%w: %v", ErrLocateUnavailable, err)
	}
	if !body.Success {
		return models.Coordinates{}, "", fmt.Errorf("%w: %s", ErrLocateUnavailable, body.Error)
	}

	return models.Coordinates{Lat: body.Lat, Lng: body.Lng}, body.Name, nil
}

// DetectOptions mirror the position-request contract: a bounded timeout
// and a cache window inside which a previous position is reused.
type DetectOptions struct {
	Timeout time.Duration
	MaxAge  time.Duration
}

// DefaultDetectOptions: 10s timeout, 5 minute position cache.
func DefaultDetectOptions() DetectOptions {
	return DetectOptions{
		Timeout: 10 * time.Second,
		MaxAge:  5 * time.Minute,
	}
}
