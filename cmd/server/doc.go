// Creditline - Credit Report Retrieval Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/creditline

/*
Package main is the entry point for the Creditline server.

Creditline drives the four-step credit-report workflow against the upstream
API (broker connection, company information, report request, file polling)
and exposes it to a browser shell over a small JSON API.

# Application Architecture

	RootSupervisor ("creditline")
	├── SessionSupervisor ("session-layer")
	│   └── Janitor (artifact TTL, submission retention)
	└── APISupervisor ("api-layer")
	    └── HTTP Server (shell API, optional CORS proxy)

Component initialization order:

 1. Configuration: Koanf v2 with defaults, config.yaml and environment
 2. Logging: zerolog with JSON/console output modes
 3. Upstream: paced HTTP client, optional gobreaker circuit breaker
 4. Workflow: report orchestrator with poll budget and warm-up wait
 5. Artifacts: sealed in-memory BadgerDB store with TTL
 6. Sessions: per-caller submissions, one active run per session key
 7. HTTP Server: Chi router with CORS, rate limiting and Prometheus metrics
 8. Supervisor Tree: Suture v4 process supervision

# Configuration

	CREDITLINE_API_BASE_URL=https://203.0.113.7   # required
	CREDITLINE_TOKEN=<session token>              # required, never logged
	CREDITLINE_INSECURE_SKIP_VERIFY=false
	POLL_MAX_ATTEMPTS=5
	POLL_DELAY=10s
	POLL_INITIAL_WAIT=60s                         # negative disables
	HTTP_PORT=8080
	CORS_ORIGINS=https://shell.example.com
	PROXY_ENABLED=false
	PROXY_ALLOWED_ORIGINS=https://shell.example.com
	ARTIFACT_TTL=1h
	ARTIFACT_SEALING_SECRET=<optional>
	LOG_LEVEL=info
	LOG_FORMAT=json

# Signal Handling

SIGINT and SIGTERM stop the tree: the listener drains within
SHUTDOWN_TIMEOUT, then running workflows are cancelled and every stored
report file is released.
*/
package main
