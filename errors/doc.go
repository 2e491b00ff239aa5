// Package errors provides the framework's error handling conventions.
//
// Errors are classified into three classes that callers dispatch on:
//
//   - Transient: temporary failures (socket send/receive, broker reconnect)
//     that a caller may retry.
//   - Invalid: malformed input or misuse (payload too large, unknown request
//     key, bad configuration values) that retrying will not fix.
//   - Fatal: unrecoverable conditions that should stop processing.
//
// Primitive operations wrap failures with component and method context:
//
//	return errors.WrapTransient(err, "udp-client", "SendRequest", "datagram send")
//
// Sentinel variables (ErrUnknownKey, ErrBufferTooSmall, ...) remain reachable
// through errors.Is after wrapping.
package errors
