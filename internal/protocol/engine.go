// Package protocol defines the contract between an authoritative game engine
// and the per-viewer clients that mirror it.
//
// The engine is generic over a concrete game's seven cooperating types. For
// every reachable state, legal action, and viewer, the following diagram must
// commute:
//
//	Intent
//	   |    \
//	listen    predict
//	   |            \
//	   v             v
//	Action --redact_action--> Effect
//	   |                        |
//	 apply                  apply_client
//	   |                        |
//	   v                        v
//	 State ------redact----> ClientState
//
// that is, a viewer that applies every server-confirmed effect to its redacted
// state ends up in exactly the state a fresh redaction of the authoritative
// state would produce. Predictions are a latency-hiding overlay only and are
// always superseded by the authoritative effect.
package protocol

// UserID identifies a connected viewer.
type UserID string

// Engine is the generic contract a concrete game implements.
//
// C is the game configuration, I an untrusted viewer intent, S the
// authoritative state, A a validated action, CS the per-viewer state, EF the
// per-viewer consequence of an action, and E the game's error type (its zero
// value must mean "no error").
type Engine[C, I, S, A, CS, EF any, E error] interface {
	// Init constructs the initial authoritative state.
	Init(cfg C) S

	// Listen validates and lifts a viewer-submitted intent into an
	// authoritative action, or rejects it.
	Listen(state S, intent I, who UserID) (A, E)

	// Apply performs the authoritative transition. Rejected actions leave no
	// observable mutation.
	Apply(state S, act A) (S, E)

	// Redact produces the subset of authoritative state who is entitled to
	// observe.
	Redact(state S, who UserID) CS

	// RedactAction produces the version of an action's consequence that who
	// is entitled to observe.
	RedactAction(state S, act A, who UserID) EF

	// Predict computes, from information already visible to me, the most
	// likely authoritative answer to me's own intent. An unknown prediction
	// means the outcome depends on hidden information and no optimistic
	// update should be shown.
	Predict(state CS, intent I, me UserID) Prediction[EF, E]

	// ApplyClient reconciles a viewer's state with a confirmed effect.
	ApplyClient(state CS, eff EF, me UserID) (CS, E)
}

// Prediction is the outcome of Engine.Predict.
type Prediction[EF any, E error] struct {
	// Known is false when the outcome depends on information the viewer
	// cannot see; Effect and Err are meaningless in that case.
	Known  bool
	Effect EF
	Err    E
}

// Unknown is the no-prediction value.
func Unknown[EF any, E error]() Prediction[EF, E] {
	return Prediction[EF, E]{}
}

// Predicted wraps a successful prediction.
func Predicted[EF any, E error](eff EF) Prediction[EF, E] {
	return Prediction[EF, E]{Known: true, Effect: eff}
}

// Rejected wraps a predicted rejection.
func Rejected[EF any, E error](err E) Prediction[EF, E] {
	return Prediction[EF, E]{Known: true, Err: err}
}
