// Package upstream builds the retrying HTTP clients used to talk to
// external services.
package upstream

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
)

// MaxBody is the largest upstream response body accepted.
const MaxBody = 4 << 20

var ErrPayloadTooLarge = errors.New("payload too large")

// StatusError is a non-2xx upstream response.
type StatusError struct {
	Service string
	Status  int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s error %d", e.Service, e.Status)
}

// NewClient returns a retrying client logging through log.
func NewClient(log zerolog.Logger, timeout time.Duration) *retryablehttp.Client {
	rc := retryablehttp.NewClient()
	rc.RetryWaitMin = 100 * time.Millisecond
	rc.RetryWaitMax = 900 * time.Millisecond
	rc.RetryMax = 3
	if timeout <= 0 {
		timeout = 6 * time.Second
	}
	rc.HTTPClient.Timeout = timeout
	rc.Logger = leveledLogger{log: log}
	return rc
}

// ReadAllLimit reads r fully, failing with ErrPayloadTooLarge past limit.
func ReadAllLimit(r io.Reader, limit int64) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > limit {
		return nil, ErrPayloadTooLarge
	}
	return b, nil
}

// CheckStatus maps a non-2xx response to a StatusError. The body is left
// for the caller to close.
func CheckStatus(service string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return &StatusError{Service: service, Status: resp.StatusCode}
}

// leveledLogger adapts zerolog to retryablehttp.LeveledLogger.
type leveledLogger struct {
	log zerolog.Logger
}

func (l leveledLogger) Error(msg string, kv ...interface{}) { l.log.Error().Fields(kv).Msg(msg) }
func (l leveledLogger) Info(msg string, kv ...interface{})  { l.log.Debug().Fields(kv).Msg(msg) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { l.log.Trace().Fields(kv).Msg(msg) }
func (l leveledLogger) Warn(msg string, kv ...interface{})  { l.log.Warn().Fields(kv).Msg(msg) }
