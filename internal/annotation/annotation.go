package annotation

import (
	"html"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Field is one of the recognized tooltip field names.
type Field string

const (
	Subject  Field = "Materia"
	Room     Field = "Aula"
	Course   Field = "Corsi"
	Teacher  Field = "Docente"
	Topic    Field = "Argomento"
	Modality Field = "Modalità"
)

// All lists every recognized field in the order the portal usually emits them.
var All = []Field{Subject, Room, Course, Teacher, Topic, Modality}

// marker is one spelling of a field name as it appears in raw portal text.
type marker struct {
	token string
	field Field
}

// The portal sends "Modalit&agrave;" but the decoded spelling is accepted too.
var markers = []marker{
	{"Materia", Subject},
	{"Aula", Room},
	{"Corsi", Course},
	{"Docente", Teacher},
	{"Argomento", Topic},
	{"Modalit&agrave;", Modality},
	{"Modalità", Modality},
}

var lineBreak = regexp.MustCompile(`(?i)<br\s*/?>`)

// Annotation is the parsed form of a tooltip.
type Annotation struct {
	// Status is the first non-empty line, empty only for an empty blob.
	Status string
	// Fields holds the recognized fields that were present. Absent fields have no key.
	Fields map[Field]string
}

// Get returns the value of a field and whether it was present.
func (a Annotation) Get(f Field) (string, bool) {
	v, ok := a.Fields[f]
	return v, ok
}

// Value returns the value of a field, or "" when absent.
func (a Annotation) Value(f Field) string {
	return a.Fields[f]
}

// Extract parses a tooltip blob. It never fails: text that carries no
// recognized marker simply yields fewer fields.
func Extract(blob string) Annotation {
	out := Annotation{Fields: make(map[Field]string)}

	lines := make([]string, 0)
	for _, line := range lineBreak.Split(blob, -1) {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return out
	}

	out.Status = html.UnescapeString(lines[0])
	buf := strings.Join(lines[1:], " ")

	hits := scan(buf)
	for i, h := range hits {
		end := len(buf)
		if i+1 < len(hits) {
			end = hits[i+1].start
		}
		value := html.UnescapeString(strings.TrimSpace(buf[h.valueStart:end]))
		if h.field == Modality {
			value = strings.TrimSpace(strings.TrimPrefix(value, "-"))
		}
		out.Fields[h.field] = value
	}

	return out
}

// hit is a marker occurrence in the search buffer.
type hit struct {
	field      Field
	start      int // index of the first byte of the marker
	valueStart int // index just past the ':'
}

// scan finds every "<marker>:" occurrence in buf, left to right.
// A marker only counts at the start of buf or after whitespace, so a field
// name embedded in a word or wrapped in punctuation is part of the value.
func scan(buf string) []hit {
	hits := make([]hit, 0)

	for i := 0; i < len(buf); {
		if !atWordStart(buf, i) {
			i++
			continue
		}

		matched := false
		for _, m := range markers {
			n := len(m.token)
			if i+n >= len(buf) || buf[i+n] != ':' {
				continue
			}
			if !strings.EqualFold(buf[i:i+n], m.token) {
				continue
			}
			hits = append(hits, hit{field: m.field, start: i, valueStart: i + n + 1})
			i += n + 1
			matched = true
			break
		}
		if !matched {
			i++
		}
	}

	return hits
}

func atWordStart(buf string, i int) bool {
	if i == 0 {
		return true
	}
	if !utf8.RuneStart(buf[i]) {
		return false
	}
	prev, _ := utf8.DecodeLastRuneInString(buf[:i])
	return unicode.IsSpace(prev)
}
