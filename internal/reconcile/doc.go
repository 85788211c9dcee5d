// Package reconcile computes the operations that make the managed events of a
// calendar match the lessons published by the portal.
//
// Reconcile is a pure function of the two canonical event sets. Running it
// again after its operations have been applied yields an empty plan, which is
// what makes an interrupted sync safe to repeat.
package reconcile
