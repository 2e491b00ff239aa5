package clientserver

// Client issues requests and later collects their responses by key.
// Keys are scoped to the client: a key is valid from SendRequest until
// the response for it is consumed, after which it may be reused.
type Client[Req, Res any] interface {
	// SendRequest submits a request and returns the key that will
	// identify its response.
	SendRequest(req Req) (uint64, error)

	// PollResponse checks for the response to an outstanding key
	// without blocking. The boolean is false while the response has
	// not arrived. Consuming a response releases the key.
	PollResponse(key uint64) (Res, bool, error)
}

// Server accepts requests and sends responses addressed by key. The key
// type varies by transport: local servers identify the requesting
// client, network servers fold in the source address.
type Server[K comparable, Req, Res any] interface {
	// PollRequest checks for a pending request without blocking.
	// Accepting a request records its key for SendResponse.
	PollRequest() (K, Req, bool, error)

	// SendResponse routes a response back to the requester. Keys not
	// previously accepted by PollRequest are rejected.
	SendResponse(key K, res Res) error
}
