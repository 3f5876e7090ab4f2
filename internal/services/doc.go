// Package services implements the client for the music library REST API.
//
// # Library Interface
//
// [Library] lists every server operation the client uses. [APIService] implements it over net/http;
// tests and the interactive front ends depend on the interface, or on the narrower [BatchAPI] and [ScanAPI].
//
// # Response Envelope
//
// The server wraps responses as {code, message, data}. Code 0 is success. Paged endpoints put
// total, page and page_size beside data, and scan logs return their rows in a top-level list.
// The liveness probe lives at the server root and is not enveloped.
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrAPIRequest] : the request never completed or the body could not be decoded
//   - [shared.APIError] : the server answered with a non-zero code; its message is the server's
//   - [shared.ErrInvalidTrack], [shared.ErrEmptySelection] : rejected before any request is made
//   - [shared.ErrServiceUnavailable] : the liveness probe failed
package services
