// Package domain defines the core types of the nethead mote bridge.
//
// A Host is a mote that announced itself with a hello request. Each Host owns
// one Service per neighbor it reports signal strength for; the service key is
// derived from the neighbor's short key ("rss-AB12"). Readings are transient:
// they are turned into a RelayRequest and forwarded to the monitoring backend
// without being stored.
//
// # Requests
//
// Request is the transport-independent form of an inbound resource request.
// Handlers never return errors to the transport; they write a ResultClass and
// ResultCode onto the request instead. Classify maps the typed errors of this
// package onto those result fields.
//
// # Names
//
// CanonicalName and NeighborKey derive identifiers from the trailing 16 bits
// of a network address. Both are pure functions.
package domain
