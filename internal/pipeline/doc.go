// Package pipeline provides the staged execution engine behind the generic
// create and update actions.
//
// A flow is an ordered list of stages sharing one ports.State. The executor
// runs them one after another and stops at the first error or at a stage
// that halts the flow with a terminal status such as not-found.
//
// # Flows
//
// Create:
//
//	persist -> link -> interrupt:create -> populate -> assemble [-> announce]
//
// Update:
//
//	load -> interrupt:beforeUpdate -> persist -> link -> interrupt:afterUpdate
//	     -> populate -> assemble [-> announce]
//
// The link stage replaces every prepared collection concurrently and waits
// for all of them. The populate stage re-fetches the record and computes the
// identifier index concurrently. Announce is only present when a notifier is
// configured.
package pipeline
