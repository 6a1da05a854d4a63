// Package retry provides a retry executor with exponential backoff and
// jitter for fallible upstream operations.
//
// A Policy fixes the total number of attempts, the backoff curve, and the
// conditions under which an error is retried. Waits between attempts are
// non-blocking timed waits that honor context cancellation, so worker
// goroutines are not starved during backoff. When every attempt fails, the
// executor returns the last observed error.
package retry
