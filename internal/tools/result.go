package tools

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Shape tells Format how to render a Result.
type Shape int

const (
	// ShapeRecord is a single object rendered as "Key: value" lines.
	ShapeRecord Shape = iota
	// ShapeRepos is a repository listing.
	ShapeRepos
	// ShapeIssues is an issue listing.
	ShapeIssues
	// ShapeList is any other list, one record per line.
	ShapeList
)

// Field is one key/value pair of a record.
type Field struct {
	Key   string
	Value string
}

// Record is an ordered set of fields.
type Record []Field

// Get returns the value of key, or "".
func (r Record) Get(key string) string {
	for _, f := range r {
		if f.Key == key {
			return f.Value
		}
	}
	return ""
}

// Result is what a tool returns: either one record or a list of records.
type Result struct {
	Shape  Shape
	Record Record
	Items  []Record
}

// Format renders r for embedding in a prompt and for terminal display.
func Format(r *Result) string {
	if r == nil || (r.Shape == ShapeRecord && len(r.Record) == 0) {
		return "No data found."
	}
	if r.Shape == ShapeRecord {
		lines := make([]string, len(r.Record))
		for i, f := range r.Record {
			lines[i] = capitalize(f.Key) + ": " + f.Value
		}
		return strings.Join(lines, "\n")
	}

	if len(r.Items) == 0 {
		return "No data found."
	}
	lines := make([]string, len(r.Items))
	for i, it := range r.Items {
		switch r.Shape {
		case ShapeRepos:
			lines[i] = "- " + it.Get("name") +
				" | Stars: " + it.Get("stars") +
				" | Forks: " + it.Get("forks") +
				" | Language: " + it.Get("language") +
				" | Last update: " + it.Get("last_update")
		case ShapeIssues:
			lines[i] = "- " + it.Get("title") + " (by " + it.Get("author") + ")"
		default:
			parts := make([]string, len(it))
			for j, f := range it {
				parts[j] = f.Key + ": " + f.Value
			}
			lines[i] = strings.Join(parts, ", ")
		}
	}
	return strings.Join(lines, "\n")
}

// capitalize upper-cases the first letter and turns underscores into spaces.
func capitalize(key string) string {
	key = strings.ReplaceAll(key, "_", " ")
	r, n := utf8.DecodeRuneInString(key)
	if r == utf8.RuneError {
		return key
	}
	return string(unicode.ToUpper(r)) + key[n:]
}
