package errutil

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/getsentry/sentry-go"
	"github.com/m-mizutani/goerr/v2"

	"github.com/chapterkit/doorman/pkg/utils/logging"
)

var sentryEnabled atomic.Bool

// EnableSentry marks Sentry as initialized so Handle forwards errors there.
func EnableSentry() {
	sentryEnabled.Store(true)
}

// Handle logs the error with its goerr values and stack, forwards it to
// Sentry when configured, and returns it unchanged for the caller to
// propagate.
func Handle(ctx context.Context, err error, msg string) error {
	if err == nil {
		return nil
	}

	logger := logging.From(ctx)

	var ge *goerr.Error
	if errors.As(err, &ge) {
		logger.Error(msg,
			"error", err.Error(),
			"values", ge.Values(),
			"stack", ge.Stacks(),
		)
	} else {
		logger.Error(msg, "error", err.Error())
	}

	if sentryEnabled.Load() {
		sentry.CaptureException(err)
	}

	return err
}

// HandleHTTP logs the error and writes an HTTP error response. The response
// body carries only the generic status text, never internal error detail.
func HandleHTTP(ctx context.Context, w http.ResponseWriter, err error, statusCode int) {
	if err == nil {
		return
	}

	logger := logging.From(ctx)

	var ge *goerr.Error
	if errors.As(err, &ge) {
		logger.Error("HTTP error",
			"status", statusCode,
			"error", err.Error(),
			"values", ge.Values(),
			"stack", ge.Stacks(),
		)
	} else {
		logger.Error("HTTP error",
			"status", statusCode,
			"error", err.Error(),
		)
	}

	if sentryEnabled.Load() && statusCode >= http.StatusInternalServerError {
		sentry.CaptureException(err)
	}

	http.Error(w, http.StatusText(statusCode), statusCode)
}
