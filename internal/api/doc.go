// Package api contains API service implementations organized by transport.
//
// The http subpackage serves the JSON HTTP API: contract lifecycle, invite
// issuance and redemption, and signing session coordination. Handlers stay
// thin; authorization guards and state transitions live in the domain and
// app packages, and handlers only translate between HTTP and those layers.
package api
