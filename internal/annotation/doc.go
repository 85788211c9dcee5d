// Package annotation extracts structured fields from the tooltip text the GEOP
// portal attaches to every lesson.
//
// A tooltip is a "<br>"-separated blob whose first line is the attendance status
// (for example "PRESENTE") followed by "Field: value" pairs drawn from a small
// closed set of field names. Values may contain arbitrary punctuation, so a value
// runs until the next known field marker rather than to the next separator.
package annotation
