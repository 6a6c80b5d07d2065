// Package tor routes Gopher connections through the Tor network.
//
// A Proxy wraps a SOCKS5 dialer for an existing Tor daemon and can verify
// that the daemon actually speaks SOCKS5. EmbeddedTor launches a private Tor
// daemon with tornago when no external one is available. The onion helpers
// validate v3 hidden service addresses before any connection is attempted.
package tor
