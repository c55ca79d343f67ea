package model

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Document is the generic key/value form a record takes in the store.
type Document = map[string]interface{}

// ParseError reports a document that cannot be decoded into an entity.
type ParseError struct {
	Kind   string
	Field  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: field %q %s", e.Kind, e.Field, e.Reason)
}

// ValidationError reports an entity that may not be written.
type ValidationError struct {
	Entity string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s %s", e.Entity, e.Field, e.Reason)
}

// EpochSeconds encodes t the way timestamps are stored.
func EpochSeconds(t time.Time) float64 {
	return float64(t.Unix()) + float64(t.Nanosecond())/1e9
}

// FromEpochSeconds decodes a stored timestamp, rounded to the microsecond.
func FromEpochSeconds(f float64) time.Time {
	sec := math.Floor(f)
	usec := math.Round((f - sec) * 1e6)
	return time.Unix(int64(sec), int64(usec)*int64(time.Microsecond))
}

// NormalizeTags trims every tag, drops blanks and removes duplicates,
// keeping the first occurrence.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

// decoder reads typed fields out of a Document and remembers the first
// failure so callers can check once at the end.
type decoder struct {
	kind string
	doc  Document
	err  error
}

func newDecoder(kind string, doc Document) *decoder {
	return &decoder{kind: kind, doc: doc}
}

func (d *decoder) fail(field, reason string) {
	if d.err == nil {
		d.err = &ParseError{Kind: d.kind, Field: field, Reason: reason}
	}
}

// lookup returns the value for field; nil values count as absent.
func (d *decoder) lookup(field string) (interface{}, bool) {
	v, ok := d.doc[field]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

func (d *decoder) requireString(field string) string {
	v, ok := d.lookup(field)
	if !ok {
		d.fail(field, "is missing")
		return ""
	}
	s, ok := v.(string)
	if !ok {
		d.fail(field, "is not a string")
	}
	return s
}

func (d *decoder) optionalString(field string) string {
	v, ok := d.lookup(field)
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		d.fail(field, "is not a string")
	}
	return s
}

func (d *decoder) requireBool(field string) bool {
	v, ok := d.lookup(field)
	if !ok {
		d.fail(field, "is missing")
		return false
	}
	b, ok := v.(bool)
	if !ok {
		d.fail(field, "is not a bool")
	}
	return b
}

func (d *decoder) optionalNumber(field string) (float64, bool) {
	v, ok := d.lookup(field)
	if !ok {
		return 0, false
	}
	f, ok := toFloat(v)
	if !ok {
		d.fail(field, "is not a number")
		return 0, false
	}
	return f, true
}

func (d *decoder) requireTime(field string) time.Time {
	f, ok := d.optionalNumber(field)
	if !ok {
		if _, present := d.lookup(field); !present {
			d.fail(field, "is missing")
		}
		return time.Time{}
	}
	return FromEpochSeconds(f)
}

func (d *decoder) optionalTime(field string) *time.Time {
	f, ok := d.optionalNumber(field)
	if !ok {
		return nil
	}
	t := FromEpochSeconds(f)
	return &t
}

func (d *decoder) requireStrings(field string) []string {
	v, ok := d.lookup(field)
	if !ok {
		d.fail(field, "is missing")
		return nil
	}
	list, ok := toStrings(v)
	if !ok {
		d.fail(field, "is not a list of strings")
	}
	return list
}

func (d *decoder) optionalDocuments(field string) []interface{} {
	v, ok := d.lookup(field)
	if !ok {
		return nil
	}
	list, ok := toList(v)
	if !ok {
		d.fail(field, "is not a list")
	}
	return list
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func toList(v interface{}) ([]interface{}, bool) {
	switch list := v.(type) {
	case []interface{}:
		return list, true
	case []string:
		out := make([]interface{}, len(list))
		for i, s := range list {
			out[i] = s
		}
		return out, true
	case []Document:
		out := make([]interface{}, len(list))
		for i, doc := range list {
			out[i] = doc
		}
		return out, true
	}
	return nil, false
}

func toStrings(v interface{}) ([]string, bool) {
	list, ok := toList(v)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

func stringList(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, s := range values {
		out[i] = s
	}
	return out
}
