package views

import (
	"strings"

	"github.com/pitabwire/bazaar/internal/table"
	"github.com/pitabwire/bazaar/model"
)

// Action styles.
const (
	StyleDanger  = "danger"
	StylePrimary = "primary"
)

// Status pill tones.
const (
	ToneSuccess = "success"
	ToneWarning = "warning"
	ToneDanger  = "danger"
	ToneNeutral = "neutral"
	ToneInfo    = "info"
)

var statusTones = map[string]string{
	"pending":    ToneWarning,
	"processing": ToneInfo,
	"shipped":    ToneInfo,
	"published":  ToneSuccess,
	"active":     ToneSuccess,
	"approved":   ToneSuccess,
	"delivered":  ToneSuccess,
	"paid":       ToneSuccess,
	"suspended":  ToneDanger,
	"rejected":   ToneDanger,
	"blocked":    ToneDanger,
	"cancelled":  ToneDanger,
	"inactive":   ToneNeutral,
}

// StatusTone is the pill tone of a status value. Unknown statuses are
// neutral.
func StatusTone(status string) string {
	if t, ok := statusTones[strings.ToLower(strings.TrimSpace(status))]; ok {
		return t
	}
	return ToneNeutral
}

func textColumn[R any](key, label string, value func(R) string) table.Column[R] {
	return table.Column[R]{
		Key:   key,
		Label: label,
		Value: func(r R) any { return value(r) },
	}
}

func statusColumn[R any](value func(R) string) table.Column[R] {
	return table.Column[R]{
		Key:   "status",
		Label: "Status",
		Value: func(r R) any { return value(r) },
		Render: func(v any, _ R, _ int) model.Cell {
			s := table.Stringify(v)
			if s == "" {
				s = model.Placeholder
			}
			return model.Cell{Text: s, Kind: model.CellStatus, Tone: StatusTone(s)}
		},
	}
}

// avatarColumn shows a name with its initial and a secondary line, usually
// the email address.
func avatarColumn[R any](key, label string, name, secondary func(R) string) table.Column[R] {
	return table.Column[R]{
		Key:   key,
		Label: label,
		Value: func(r R) any { return name(r) },
		Render: func(v any, r R, _ int) model.Cell {
			n := table.Stringify(v)
			return model.Cell{Text: n, Kind: model.CellAvatar, Secondary: secondary(r), Initial: Initial(n)}
		},
	}
}

func statusField(status string) model.DetailField {
	if strings.TrimSpace(status) == "" {
		status = model.Placeholder
	}
	return model.DetailField{Label: "Status", Value: status, Kind: model.CellStatus, Tone: StatusTone(status)}
}

func field(label, value string) model.DetailField {
	return model.DetailField{Label: label, Value: value}
}
