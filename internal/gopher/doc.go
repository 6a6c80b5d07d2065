// Package gopher implements the client side of the Gopher protocol (RFC 1436).
//
// # Architecture
//
// The package is split into three small pieces that the crawler composes:
//   - Client: opens one TCP connection per request, sends a selector and
//     reads the response until the server closes the connection
//   - ParseLine: turns one line of a directory listing into an Item
//   - DecodeText: converts response bytes to text with an ISO-8859-1 fallback
//
// A request is the selector followed by CRLF. The response is everything the
// server sends before closing the connection, optionally followed by a
// terminator line ("." on its own line), which Client strips.
//
// # Usage
//
//	client := gopher.NewClient(gopher.WithReadTimeout(10 * time.Second))
//	data, err := client.Fetch(ctx, "gopher.floodgap.com", 70, "")
//	if err != nil {
//	    var fe *gopher.FetchError
//	    if errors.As(err, &fe) && fe.Kind == gopher.KindReadTimeout {
//	        // ...
//	    }
//	}
//	text, _ := gopher.DecodeText(data)
//	for _, line := range strings.Split(text, "\n") {
//	    item, err := gopher.ParseLine(line)
//	    // ...
//	}
//
// # Limits
//
// Every request is bounded by a connect timeout, an idle read timeout that is
// re-armed before each read, and a response size ceiling. A response that
// exceeds the ceiling is discarded, never truncated.
package gopher
