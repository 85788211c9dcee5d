// Package syncer runs one reconciliation cycle between the portal and the
// calendar.
//
// A cycle fetches the lessons for a date range, persists them as the
// snapshot, reads the snapshot back, lists the managed calendar events day by
// day, reconciles the two sides and applies the resulting operations in plan
// order. Failing to fetch, persist or list aborts the cycle; a failing
// individual operation is logged, audited and counted, and the cycle goes on.
package syncer
