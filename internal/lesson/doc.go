// Package lesson provides the lesson types shared by the portal and calendar
// sides of a sync, and normalizes both into a canonical form.
//
// A lesson scraped from the portal and the Google Calendar event created for it
// share an identity key: the course code in front of the first " - " of the
// subject, paired with the start timestamp stripped of any UTC offset. The key is
// what lets records from the two independently-shaped sources be matched.
package lesson
