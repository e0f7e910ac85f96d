// Package gateway is the HTTP client for the recording backend.
//
// Every JSON call carries an X-Request-ID header and runs under the fixed
// request timeout. Failures are classified with the markers from the services
// package: network, timeout and undecodable bodies wrap ErrTransport, while
// non-2xx replies surface as *StatusError, which matches ErrServerDeclined and
// exposes the backend's detail text. Replies with success:false are returned
// as-is; the containers decide what they mean.
package gateway
