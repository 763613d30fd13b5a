package views

import (
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/pitabwire/bazaar/model"
)

// Formatter turns record values into display text. Every method returns a
// placeholder for absent values and never fails.
type Formatter struct {
	p *message.Printer
}

// NewFormatter formats numbers for the given BCP 47 locale. Unknown or
// empty locales fall back to English.
func NewFormatter(locale string) Formatter {
	tag, err := language.Parse(locale)
	if err != nil || locale == "" {
		tag = language.English
	}
	return Formatter{p: message.NewPrinter(tag)}
}

// Text returns s, or the placeholder when s is blank.
func (f Formatter) Text(s string) string {
	if strings.TrimSpace(s) == "" {
		return model.Placeholder
	}
	return s
}

// Money formats an amount as "$1,234.50".
func (f Formatter) Money(v *float64) string {
	if v == nil {
		return model.NotAvailable
	}
	if *v < 0 {
		return f.p.Sprintf("-$%.2f", -*v)
	}
	return f.p.Sprintf("$%.2f", *v)
}

// Amount formats a plain amount as "$1,234.50".
func (f Formatter) Amount(v float64) string {
	return f.Money(&v)
}

// Count formats a count with digit grouping.
func (f Formatter) Count(v *int) string {
	if v == nil {
		return model.NotAvailable
	}
	return f.p.Sprintf("%d", *v)
}

// Number formats a plain count with digit grouping.
func (f Formatter) Number(v int) string {
	return f.p.Sprintf("%d", v)
}

// Percent formats a percentage as "7.5%".
func (f Formatter) Percent(v *float64) string {
	if v == nil {
		return model.NotAvailable
	}
	return f.p.Sprintf("%v%%", *v)
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.DateOnly,
}

// Date formats backend timestamps as "Jan 15, 2025". Values that are not
// recognisable timestamps are shown as they are.
func (f Formatter) Date(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return model.Placeholder
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("Jan 2, 2006")
		}
	}
	return s
}

// Name joins first and last name, or returns the placeholder.
func (f Formatter) Name(first, last string) string {
	return f.Text(strings.TrimSpace(first + " " + last))
}

// Initial is the avatar letter for name.
func Initial(name string) string {
	name = strings.TrimSpace(name)
	if name == "" || name == model.Placeholder {
		return "?"
	}
	r := []rune(name)
	return strings.ToUpper(string(r[0]))
}
