// Package portal talks to the GEOP school portal (registrodiclasse.it).
//
// A Client logs in with a form POST, keeps the session cookie in a cookie jar
// and then requests the student's calendar feed for a date range. The feed is
// a JSON array of lesson.Raw records; the portal labels it text/html, so the
// body is decoded regardless of the declared content type. A login that the
// portal refuses is recognised by the login form being rendered again.
package portal
