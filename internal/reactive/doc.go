// Package reactive binds push-based external sources to observable values.
//
// A binding resolves a source descriptor (an auth provider, a document
// reference, a query, or a pending computation), holds exactly one live
// subscription for it, and publishes translated results into a Value.
// Whenever the descriptor changes the previous subscription is torn down
// before the next one is opened.
//
// Single-writer runtime:
// All binding state lives on the Runtime goroutine. Provider callbacks may
// arrive on any goroutine; they are re-posted to the runtime and checked
// against the binding's generation before anything is published.
//
// Generation tokens:
// Every subscription is opened with the binding's current generation. Any
// callback that arrives after the generation moved on (supersession or
// disposal) is dropped without touching the published value, even if it
// arrives out of order in real time. Transport-level cancellation (an
// unsubscribe, an abort hook) is best effort; the generation check is what
// guarantees correctness.
package reactive
