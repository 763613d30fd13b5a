// Package table renders tabular console views: the table renderer, the
// paginator strip, and the filter bar state shared by every resource list.
package table

import (
	"fmt"
	"reflect"
	"strconv"

	"github.com/pitabwire/bazaar/model"
)

// Column describes one table column over display rows of type R.
//
// Value reads the raw cell value from a row; a nil Value marks a synthetic
// column (row number, actions) whose Render works from the row alone.
// Render, when set, produces the cell and receives the value, the row, and
// the row's index within the rendered slice.
type Column[R any] struct {
	Key    string
	Label  string
	Value  func(row R) any
	Render func(value any, row R, rowIndex int) model.Cell
}

// Render produces one header per column and one row per record, in the
// order given. Records are never reordered.
func Render[R any](columns []Column[R], rows []R) model.TableView {
	view := model.TableView{
		Headers: make([]model.HeaderCell, len(columns)),
		Rows:    make([]model.RowView, len(rows)),
	}
	for i, col := range columns {
		view.Headers[i] = model.HeaderCell{Key: col.Key, Label: col.Label}
	}
	for ri, row := range rows {
		cells := make([]model.Cell, len(columns))
		for ci, col := range columns {
			var value any
			if col.Value != nil {
				value = col.Value(row)
			}
			if col.Render != nil {
				cells[ci] = col.Render(value, row, ri)
				continue
			}
			cells[ci] = model.Cell{Text: Stringify(value)}
		}
		view.Rows[ri] = model.RowView{Cells: cells}
	}
	return view
}

// ValidateColumns reports duplicate or empty column keys.
func ValidateColumns[R any](columns []Column[R]) error {
	seen := make(map[string]bool, len(columns))
	for i, col := range columns {
		if col.Key == "" {
			return fmt.Errorf("table: column %d has an empty key", i)
		}
		if seen[col.Key] {
			return fmt.Errorf("table: duplicate column key %q", col.Key)
		}
		seen[col.Key] = true
	}
	return nil
}

// Stringify converts a cell value to display text. Absent values, including
// typed nil pointers, render as the empty string.
func Stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case fmt.Stringer:
		if isNilPointer(v) {
			return ""
		}
		return x.String()
	}
	if isNilPointer(v) {
		return ""
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		return Stringify(rv.Elem().Interface())
	}
	return fmt.Sprint(v)
}

func isNilPointer(v any) bool {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
