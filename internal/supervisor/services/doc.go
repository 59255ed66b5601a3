// Crescendo - Contextual-Bandit Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crescendo

/*
Package services provides suture.Service wrappers for Crescendo components.

Each wrapper implements the suture v4 Service interface and fmt.Stringer:

	type Service interface {
	    Serve(ctx context.Context) error
	}

HTTPServerService wraps *http.Server, translating ListenAndServe into Serve
with graceful shutdown on cancellation.

RecoveryService retries bandit.Registry.Recover on an interval after a
degraded start and returns suture.ErrDoNotRestart once recovery succeeds or
is preempted by local writes.
*/
package services
