// Package httpx provides JSON and RFC7807 problem response helpers.
package httpx

import "errors"

// ErrValidation wraps request-shape failures from handler layers. Domain
// packages map their own errors onto problem responses; httpx stays agnostic.
var ErrValidation = errors.New("validation failed")
