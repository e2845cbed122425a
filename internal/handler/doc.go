// Package handler dispatches parsed mote requests to the directory service.
//
// The Router owns a static route table:
//
//	POST /nh/lo   registration (hello)
//	POST /nh/rss  neighbor signal-strength telemetry
//
// GET requests are acknowledged with Content and change nothing. Unknown
// paths get NotFound. Every outcome, including a recovered panic, is written
// back onto the request as a result class and code; nothing escapes to the
// transport.
package handler
