/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package records

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"golang.org/x/text/cases"
)

// Layout is the rule set used to translate a collection between rows and a
// RecordSet.
type Layout int

const (
	// LayoutDetect picks key-value or columnar from the header on read and
	// writes key-value.
	LayoutDetect Layout = iota
	LayoutKeyValue
	LayoutColumnar
	LayoutBets
	LayoutCodeLinks
	LayoutIdentities
	LayoutReveals
)

func (l Layout) String() string {
	switch l {
	case LayoutKeyValue:
		return "key-value"
	case LayoutColumnar:
		return "columnar"
	case LayoutBets:
		return "bets"
	case LayoutCodeLinks:
		return "code-links"
	case LayoutIdentities:
		return "identities"
	case LayoutReveals:
		return "reveals"
	default:
		return "detect"
	}
}

// Schema declares the layout of each collection by name.
type Schema map[string]Layout

// Layout returns the declared layout of name, or LayoutDetect.
func (s Schema) Layout(name string) Layout {
	if l, ok := s[name]; ok {
		return l
	}
	return LayoutDetect
}

// DefaultHeader is written to sheets created on first access.
var DefaultHeader = []string{"key", "value"}

// Header returns the header row written for l. Columnar headers depend on
// the data and are nil here.
func (l Layout) Header() []string {
	switch l {
	case LayoutBets:
		return []string{"ID", "Character", "Person"}
	case LayoutCodeLinks:
		return []string{"ID", "Responsible"}
	case LayoutIdentities:
		return []string{"Character", "Real Name", "Photo URL"}
	case LayoutReveals:
		return []string{"Character", "Person"}
	case LayoutColumnar:
		return nil
	default:
		return DefaultHeader
	}
}

func fold(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// accepts reports whether header has the shape l decodes.
func (l Layout) accepts(header []string) bool {
	first := ""
	if len(header) > 0 {
		first = fold(header[0])
	}

	switch l {
	case LayoutBets:
		return len(header) >= 3 && first == "id"
	case LayoutCodeLinks:
		return len(header) >= 2 && first == "id"
	case LayoutIdentities, LayoutReveals:
		return len(header) >= 2 && (first == "character" || first == "personagem")
	case LayoutKeyValue:
		return len(header) >= 2 && (first == "key" || first == "chave")
	case LayoutColumnar:
		return true
	default:
		return false
	}
}

func detect(header []string) Layout {
	if LayoutKeyValue.accepts(header) {
		return LayoutKeyValue
	}
	return LayoutColumnar
}

// resolve returns the layout used to decode rows whose first row is header.
// A declared layout whose header shape does not match falls back to
// detection.
func (l Layout) resolve(header []string) Layout {
	if l != LayoutDetect && l.accepts(header) {
		return l
	}
	return detect(header)
}

// Decode translates rows, header first, into a RecordSet.
func Decode(l Layout, rows [][]string) RecordSet {
	if len(rows) == 0 {
		return RecordSet{}
	}

	header, data := rows[0], rows[1:]

	switch l.resolve(header) {
	case LayoutBets:
		return decodeBets(data)
	case LayoutCodeLinks:
		return decodeCodeLinks(data)
	case LayoutIdentities:
		return decodeIdentities(data)
	case LayoutReveals:
		return decodeReveals(data)
	case LayoutKeyValue:
		return decodeKeyValue(data)
	default:
		return decodeColumnar(header, data)
	}
}

// Encode translates set into rows, header first.
func Encode(l Layout, set RecordSet) [][]string {
	switch l {
	case LayoutBets:
		return encodeBets(set)
	case LayoutCodeLinks:
		return encodeCodeLinks(set)
	case LayoutIdentities:
		return encodeIdentities(set)
	case LayoutReveals:
		return encodeReveals(set)
	case LayoutColumnar:
		return encodeColumnar(set)
	default:
		return encodeKeyValue(set)
	}
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

func asMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case RecordSet:
		return t, true
	case map[string]string:
		m := make(map[string]any, len(t))
		for k, s := range t {
			m[k] = s
		}
		return m, true
	default:
		return nil, false
	}
}

func asList(v any) ([]string, bool) {
	switch t := v.(type) {
	case []any:
		out := make([]string, len(t))
		for i, e := range t {
			out[i] = text(e)
		}
		return out, true
	case []string:
		return t, true
	default:
		return nil, false
	}
}

func marshal(v any) (string, error) {
	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}

	return strings.TrimSuffix(buf.String(), "\n"), nil
}

func decodeBets(data [][]string) RecordSet {
	set := RecordSet{}

	for _, row := range data {
		id, character := cell(row, 0), cell(row, 1)
		if len(row) < 3 || id == "" || character == "" {
			continue
		}

		guesses, ok := set[id].(map[string]any)
		if !ok {
			guesses = map[string]any{}
			set[id] = guesses
		}
		guesses[character] = row[2]
	}

	return set
}

func encodeBets(set RecordSet) [][]string {
	rows := [][]string{LayoutBets.Header()}

	for _, id := range sortedKeys(set) {
		guesses, ok := asMap(set[id])
		if !ok {
			continue
		}
		for _, character := range sortedKeys(guesses) {
			person := text(guesses[character])
			if person == "" {
				continue
			}
			rows = append(rows, []string{id, character, person})
		}
	}

	return rows
}

func decodeCodeLinks(data [][]string) RecordSet {
	set := RecordSet{}

	for _, row := range data {
		id, responsible := cell(row, 0), cell(row, 1)
		if id == "" || responsible == "" {
			continue
		}
		set[id] = responsible
	}

	return set
}

func encodeCodeLinks(set RecordSet) [][]string {
	rows := [][]string{LayoutCodeLinks.Header()}

	for _, id := range sortedKeys(set) {
		responsible := text(set[id])
		if responsible == "" {
			continue
		}
		rows = append(rows, []string{id, responsible})
	}

	return rows
}

func decodeIdentities(data [][]string) RecordSet {
	set := RecordSet{}

	for _, row := range data {
		character := cell(row, 0)
		if character == "" {
			continue
		}
		info := map[string]any{}
		if name := cell(row, 1); name != "" {
			info["name"] = name
		}
		if photo := cell(row, 2); photo != "" {
			info["photo"] = photo
		}
		set[character] = info
	}

	return set
}

func encodeIdentities(set RecordSet) [][]string {
	rows := [][]string{LayoutIdentities.Header()}

	for _, character := range sortedKeys(set) {
		info, ok := asMap(set[character])
		if !ok {
			continue
		}
		rows = append(rows, []string{character, text(info["name"]), text(info["photo"])})
	}

	return rows
}

func decodeReveals(data [][]string) RecordSet {
	set := RecordSet{}

	for _, row := range data {
		character := cell(row, 0)
		if len(row) < 2 || character == "" {
			continue
		}
		set[character] = row[1]
	}

	return set
}

func encodeReveals(set RecordSet) [][]string {
	rows := [][]string{LayoutReveals.Header()}

	for _, character := range sortedKeys(set) {
		rows = append(rows, []string{character, text(set[character])})
	}

	return rows
}

// parseValue reads a key-value cell. Text that is not valid JSON is kept
// as is.
func parseValue(s string) any {
	if s == "" || !gjson.Valid(s) {
		return s
	}
	return gjson.Parse(s).Value()
}

// formatValue writes a key-value cell. Strings that would parse as JSON are
// quoted so they read back as strings.
func formatValue(v any) string {
	if s, ok := v.(string); ok {
		if s == "" || !gjson.Valid(s) {
			return s
		}
	}

	out, err := marshal(v)
	if err != nil {
		return text(v)
	}
	return out
}

func decodeKeyValue(data [][]string) RecordSet {
	set := RecordSet{}

	for _, row := range data {
		key := cell(row, 0)
		if key == "" {
			continue
		}
		set[key] = parseValue(cell(row, 1))
	}

	return set
}

func encodeKeyValue(set RecordSet) [][]string {
	rows := [][]string{LayoutKeyValue.Header()}

	for _, key := range sortedKeys(set) {
		rows = append(rows, []string{key, formatValue(set[key])})
	}

	return rows
}

func decodeColumnar(header []string, data [][]string) RecordSet {
	set := RecordSet{}

	for i, name := range header {
		if name == "" {
			continue
		}

		// Blank rows come back from the API as empty slices; they still
		// hold a cell in every column.
		column := make([]any, 0, len(data))
		for _, row := range data {
			column = append(column, cell(row, i))
		}

		for len(column) > 0 && column[len(column)-1] == "" {
			column = column[:len(column)-1]
		}

		set[name] = column
	}

	return set
}

func encodeColumnar(set RecordSet) [][]string {
	header := make([]string, 0, len(set))
	columns := make([][]string, 0, len(set))
	height := 0

	for _, name := range sortedKeys(set) {
		if name == "" {
			continue
		}

		column, ok := asList(set[name])
		if !ok {
			column = []string{text(set[name])}
		}

		header = append(header, name)
		columns = append(columns, column)
		height = max(height, len(column))
	}

	rows := make([][]string, 0, height+1)
	rows = append(rows, header)

	for r := range height {
		row := make([]string, len(columns))
		for c, column := range columns {
			row[c] = cell(column, r)
		}
		rows = append(rows, row)
	}

	return rows
}
