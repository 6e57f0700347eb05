// Creditline - Credit Report Retrieval Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/creditline

/*
Package services provides suture.Service wrappers for Creditline components.

HTTP Server (HTTPServerService):
  - Wraps *http.Server, translating ListenAndServe into Serve
  - Drains connections on cancellation within a shutdown timeout

Janitor (JanitorService):
  - Calls Sweep on the session manager every interval
  - Releases artifacts past their TTL and prunes finished submissions

Return values determine supervisor behavior:

	nil         -> service stopped cleanly, will not restart
	error       -> service crashed, supervisor will restart
	ctx.Err()   -> shutdown requested, normal termination
*/
package services
