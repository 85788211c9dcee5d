// Package calendar renders lessons for calendar consumers: the Google Calendar
// event payload written by the sync, and an iCalendar export of the snapshot.
package calendar
