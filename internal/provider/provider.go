// Package provider holds the outbound clients for third-party APIs: the
// video-metadata API, the async scrape provider, the sentiment classifier
// and the summarization models.
package provider

import "errors"

// ErrNotFound is returned when a provider answered but had no match.
var ErrNotFound = errors.New("provider: no match")
