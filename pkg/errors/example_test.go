// Package errors provides examples of structured error handling in cbase2influxdb.
package errors_test

import (
	"fmt"
	"io"
	"net/http"

	"github.com/heiparta/cbase2influxdb/pkg/errors"
)

// Example demonstrates basic error creation and wrapping.
func Example() {
	// Create a new error with type
	err := errors.New(errors.ErrorTypeConnection, "failed to connect to influxdb")

	// Add context details
	err = err.WithDetail("host", "localhost").
		WithDetail("port", 8086).
		WithDetail("database", "cbase")

	fmt.Println(err.Error())

	// Output:
	// connection: failed to connect to influxdb
}

// ExampleWrap shows how to wrap existing errors with context.
func ExampleWrap() {
	originalErr := io.EOF

	err := errors.Wrap(originalErr, errors.ErrorTypeFile, "failed to read CSV file").
		WithDetail("file", "forecast.csv")

	if errors.IsType(err, errors.ErrorTypeFile) {
		fmt.Println("This is a file error")
	}

	if errors.Is(err, io.EOF) {
		fmt.Println("Original error was EOF")
	}

	// Output:
	// This is a file error
	// Original error was EOF
}

// ExampleIsRetryable shows how to check if an error is retryable.
func ExampleIsRetryable() {
	tempErr := errors.New(errors.ErrorTypeTimeout, "forecast API timed out")
	authErr := errors.New(errors.ErrorTypeAuthentication, "invalid API key")

	if errors.IsRetryable(tempErr) {
		fmt.Println("Timeout error is retryable")
	}

	if !errors.IsRetryable(authErr) {
		fmt.Println("Authentication error is not retryable")
	}

	// Output:
	// Timeout error is retryable
	// Authentication error is not retryable
}

// ExampleFromHTTPStatus demonstrates classifying HTTP responses.
func ExampleFromHTTPStatus() {
	for _, code := range []int{http.StatusUnauthorized, http.StatusTooManyRequests, http.StatusBadGateway, http.StatusBadRequest} {
		fmt.Printf("%d -> %s\n", code, errors.FromHTTPStatus(code))
	}

	// Output:
	// 401 -> authentication
	// 429 -> rate_limit
	// 502 -> connection
	// 400 -> validation
}

// Example_errorChain shows how to chain multiple error contexts.
func Example_errorChain() {
	err := errors.Wrap(
		errors.New(errors.ErrorTypeConnection, "connection timeout"),
		errors.ErrorTypeWrite, "batch 2 failed",
	)

	fmt.Println(err)
	fmt.Println(errors.TypeOf(err))
	fmt.Println(errors.TypeOf(io.EOF))

	// Output:
	// write: batch 2 failed: connection: connection timeout
	// write
	// internal
}
