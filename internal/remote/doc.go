// Package remote reads and writes the lesson events of a Google Calendar.
//
// Only managed events are ever returned by List: those whose summary starts
// with one of lesson.ManagedPrefixes. Anything else on the calendar is
// invisible to the sync and therefore never updated or deleted.
package remote
