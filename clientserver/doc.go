// Package clientserver provides keyed request/response messaging.
//
// A client submits a request and receives a key; the response is later
// collected by polling that key. Both sides are poll-driven and
// non-blocking, which lets a node service its requests and responses
// from its periodic update without dedicating a goroutine to I/O.
//
// Three transports are provided:
//
//   - LocalServer/LocalClient: in-process, buffered channels. The server
//     key pairs the client's identity with its request sequence.
//   - SerialClient/SerialServer: fixed-size frames over any byte stream
//     implementing Port, suited to serial device links.
//   - UDPClient/UDPServer: one packed message per datagram. The server
//     key carries the request's source address for response routing.
//
// Keys are released when their response is consumed. Polling a key that
// is not outstanding returns errors.ErrUnknownKey.
package clientserver
