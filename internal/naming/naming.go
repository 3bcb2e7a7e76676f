// Package naming expands the path and file name templates of recordings.
package naming

import (
	"fmt"
	"strings"
	"time"
)

// Default templates.
const (
	DefaultLabel    = "logger"
	DefaultPath     = "LABELID2-SDATETIMEM"
	DefaultFileName = "LABELID2-SDATETIME"
)

// Values holds the token replacements of a template.
type Values struct {
	Label string

	// ID is the device id. Negative ids expand to empty strings.
	ID int

	// Count is the session counter expanded by COUNT.
	Count int

	Time time.Time
}

type token struct {
	name   string
	expand func(v Values) string
}

func idString(v Values, width int) string {
	if v.ID < 0 {
		return ""
	}
	return fmt.Sprintf("%0*d", width, v.ID)
}

// tokens are matched longest first so that SDATETIME wins over DATETIME and SDATE.
var tokens = []token{
	{"SDATETIME", func(v Values) string { return v.Time.Format("20060102T150405") }},
	{"DATETIME", func(v Values) string { return v.Time.Format("2006-01-02T15-04-05") }},
	{"SDATE", func(v Values) string { return v.Time.Format("20060102") }},
	{"STIME", func(v Values) string { return v.Time.Format("150405") }},
	{"LABEL", func(v Values) string { return v.Label }},
	{"COUNT", func(v Values) string { return fmt.Sprintf("%04d", v.Count) }},
	{"DATE", func(v Values) string { return v.Time.Format("2006-01-02") }},
	{"TIME", func(v Values) string { return v.Time.Format("15-04-05") }},
	{"ID3", func(v Values) string { return idString(v, 3) }},
	{"ID2", func(v Values) string { return idString(v, 2) }},
	{"ID", func(v Values) string { return idString(v, 1) }},
}

// Expand replaces the tokens of template. Replacement text is never expanded
// again, so labels may contain token names. NUM and ANUM are left in place for
// the storage device.
func Expand(template string, v Values) string {
	var b strings.Builder
	for i := 0; i < len(template); {
		if strings.HasPrefix(template[i:], "ANUM") {
			b.WriteString("ANUM")
			i += 4
			continue
		}
		matched := false
		for _, t := range tokens {
			if strings.HasPrefix(template[i:], t.name) {
				b.WriteString(t.expand(v))
				i += len(t.name)
				matched = true
				break
			}
		}
		if !matched {
			b.WriteByte(template[i])
			i++
		}
	}
	return b.String()
}

// HasToken reports whether template contains a token whose value changes
// between sessions.
func HasToken(template string) bool {
	for _, name := range []string{"COUNT", "TIME", "DATE"} {
		if strings.Contains(template, name) {
			return true
		}
	}
	return false
}

// Sanitize makes an expanded template usable as a single path element.
func Sanitize(s string) string {
	r := strings.NewReplacer("/", "-", "\\", "-", ":", "-", " ", "_")
	return strings.Trim(r.Replace(s), ".")
}
