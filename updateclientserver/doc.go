// Package updateclientserver extends keyed request/response messaging
// with streamed intermediate updates.
//
// After accepting a request, a server may send any number of updates
// for its key before the final response. The client retrieves updates
// in FIFO order per key, and the response is withheld until every
// retrievable update for the key has been consumed, so a client never
// observes the conclusion of a request before its progress.
//
// Local (in-process channel) and UDP variants are provided. On UDP the
// update ordering holds for updates that arrive; datagram loss or
// reordering can still drop or delay individual updates.
package updateclientserver
