// Package quota decides whether an upload fits an owner's storage ceiling.
//
// Evaluate is a pure function over (size, quota, used); Guard wires it to a
// Source that recomputes used bytes from persisted assets on every call.
package quota
