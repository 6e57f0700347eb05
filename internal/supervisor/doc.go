// Creditline - Credit Report Retrieval Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/creditline

/*
Package supervisor provides process supervision for Creditline using suture v4.

The tree keeps the long-running parts of the process alive with automatic
restart and failure isolation:

	RootSupervisor ("creditline")
	├── SessionSupervisor ("session-layer")
	│   └── JanitorService (artifact TTL sweep, submission retention)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

A crash of the janitor does not interrupt the HTTP server, and a failing
listener does not stop expired report files from being released.

Workflow runs are not supervised services. Each run is a goroutine owned by
the session manager and ends with its own terminal state; the manager is
closed by main after the tree has stopped.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddSessionService(services.NewJanitorService(sessions, services.JanitorConfig{Interval: time.Minute}))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))

	errCh := tree.ServeBackground(ctx)

# Failure Handling

Each layer counts failures with exponential decay (FailureDecay seconds).
Past FailureThreshold the layer waits FailureBackoff before the next
restart. Return values follow suture:

	nil         -> service stopped cleanly, not restarted
	error       -> service crashed, restarted
	ctx.Err()   -> shutdown requested
*/
package supervisor
