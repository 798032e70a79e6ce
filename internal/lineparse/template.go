package lineparse

import (
	"fmt"
	"strings"
	"time"
)

// Template selects one of the supported timestamp layouts.
type Template int

const (
	// TemplateDateDash matches "2024-07-26 17:56:56.532".
	TemplateDateDash Template = iota
	// TemplateDateSlash matches "2024/07/26 17:56:56.532".
	TemplateDateSlash
	// TemplateTimeOnly matches "17:56:56.532".
	TemplateTimeOnly
)

// DefaultTemplate is used when nothing else is configured.
const DefaultTemplate = TemplateDateDash

type templateSpec struct {
	pattern string // user facing
	short   string
	parse   string // time layout; a trailing fraction is accepted while parsing
	format  string
}

var templateSpecs = [...]templateSpec{
	TemplateDateDash: {
		pattern: "YYYY-MM-DD HH:MM:SS.ffffff",
		short:   "type1",
		parse:   "2006-01-02 15:04:05",
		format:  "2006-01-02 15:04:05.000000",
	},
	TemplateDateSlash: {
		pattern: "YYYY/MM/DD HH:MM:SS.ffffff",
		short:   "type2",
		parse:   "2006/01/02 15:04:05",
		format:  "2006/01/02 15:04:05.000000",
	},
	TemplateTimeOnly: {
		pattern: "HH:MM:SS.ffffff",
		short:   "type3",
		parse:   "15:04:05",
		format:  "15:04:05.000000",
	},
}

// Templates returns the selectable templates in menu order.
func Templates() []Template {
	return []Template{TemplateDateDash, TemplateDateSlash, TemplateTimeOnly}
}

// ParseTemplate resolves a template from its pattern ("YYYY-MM-DD ...") or
// short name ("type1"). Matching ignores case and surrounding whitespace.
func ParseTemplate(name string) (Template, error) {
	trimmed := strings.TrimSpace(name)
	for _, t := range Templates() {
		spec := templateSpecs[t]
		if strings.EqualFold(trimmed, spec.pattern) || strings.EqualFold(trimmed, spec.short) {
			return t, nil
		}
	}
	return DefaultTemplate, fmt.Errorf("unknown timestamp template %q", name)
}

// Valid reports whether t is one of the supported templates.
func (t Template) Valid() bool {
	return t >= TemplateDateDash && t <= TemplateTimeOnly
}

// String returns the user facing pattern.
func (t Template) String() string {
	if !t.Valid() {
		return fmt.Sprintf("Template(%d)", int(t))
	}
	return templateSpecs[t].pattern
}

// Short returns the compact name used in config files.
func (t Template) Short() string {
	if !t.Valid() {
		return ""
	}
	return templateSpecs[t].short
}

// Next returns the following template, wrapping around.
func (t Template) Next() Template {
	all := Templates()
	for i, candidate := range all {
		if candidate == t {
			return all[(i+1)%len(all)]
		}
	}
	return DefaultTemplate
}

// Format renders ts in the template layout with microsecond precision.
func (t Template) Format(ts time.Time) string {
	if !t.Valid() {
		t = DefaultTemplate
	}
	return ts.Format(templateSpecs[t].format)
}

// parse interprets value in the local zone. Go accepts a fractional second
// after the seconds field even though the layout omits it.
func (t Template) parse(value string) (time.Time, error) {
	if !t.Valid() {
		return time.Time{}, fmt.Errorf("unsupported template %d", int(t))
	}
	return time.ParseInLocation(templateSpecs[t].parse, value, time.Local)
}
