package domain

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// hourDigitsRe extracts the digits of an hour code such as "1300 UTC".
var hourDigitsRe = regexp.MustCompile(`\d+`)

// Encoding names the character set of a raw source.
type Encoding string

const (
	EncodingUTF8   Encoding = "utf-8"
	EncodingLatin1 Encoding = "latin1"
)

// Column selects a field by header name, or by zero-based position when Name is empty.
type Column struct {
	Name  string
	Index int
}

// ByName selects a column by its header text (case-insensitive, surrounding space ignored).
func ByName(name string) Column { return Column{Name: name} }

// ByIndex selects a column by position.
func ByIndex(i int) Column { return Column{Index: i} }

func (c Column) String() string {
	if c.Name != "" {
		return strconv.Quote(c.Name)
	}
	return "#" + strconv.Itoa(c.Index)
}

// Schema declares how one source's raw table maps to observations. Every
// source has exactly one header line, which follows SkipLines preamble lines.
type Schema struct {
	Name      string
	Delimiter rune     // field separator, used by extractors
	Encoding  Encoding // character set, used by extractors
	SkipLines int      // non-data lines before the header

	Date Column
	// Hour is an optional second timestamp field. Its text is appended to the
	// date text with a single space before TimeLayout is applied.
	Hour *Column
	// HourCode marks Hour as an HHMM code ("900", "1300 UTC") that must be
	// reduced to digits, zero-padded and given a colon before parsing.
	HourCode   bool
	TimeLayout string

	Value        Column
	DecimalComma bool
	UnitSuffix   string  // trailing unit token stripped before coercion, e.g. "m"
	Scale        float64 // multiplier applied to parsed values; zero means 1
}

func (s Schema) validate() error {
	switch {
	case s.TimeLayout == "":
		return fmt.Errorf("%w: schema %q has no time layout", ErrInvalidArgument, s.Name)
	case s.SkipLines < 0:
		return fmt.Errorf("%w: schema %q has negative skip lines", ErrInvalidArgument, s.Name)
	case s.Date.Name == "" && s.Date.Index < 0, s.Value.Name == "" && s.Value.Index < 0:
		return fmt.Errorf("%w: schema %q has a negative column index", ErrInvalidArgument, s.Name)
	}
	return nil
}

// ParseResult is the outcome of parsing one raw table.
type ParseResult struct {
	Observations []Observation
	Rows         int // data rows examined
	Dropped      int // rows rejected for an unparsable timestamp
	Absent       int // rows kept with an absent value
}

// Parse converts a raw table into observations according to schema.
//
// Rows whose timestamp cannot be parsed are dropped and counted. Rows whose
// value cannot be coerced are kept as absent observations. Parse fails with a
// *FormatError only when the header lacks a declared field or no row yields an
// observation.
func Parse(table RawTable, schema Schema) (ParseResult, error) {
	if err := schema.validate(); err != nil {
		return ParseResult{}, err
	}
	source := table.Source
	if source == "" {
		source = schema.Name
	}

	if len(table.Lines) <= schema.SkipLines {
		return ParseResult{}, &FormatError{Source: source, Err: errors.New("missing header line")}
	}
	cols, err := schema.resolve(table.Lines[schema.SkipLines])
	if err != nil {
		return ParseResult{}, &FormatError{Source: source, Err: err}
	}

	var (
		res      ParseResult
		firstErr error
	)
	for i, line := range table.Lines[schema.SkipLines+1:] {
		if blank(line) {
			continue
		}
		res.Rows++

		ts, err := schema.parseTime(line, cols)
		if err != nil {
			res.Dropped++
			if firstErr == nil {
				firstErr = fmt.Errorf("line %d: %w", schema.SkipLines+i+2, err)
			}
			continue
		}

		v, ok := ParseValue(field(line, cols.value), schema)
		if !ok {
			res.Absent++
		}
		res.Observations = append(res.Observations, Observation{Time: ts, Value: v, Absent: !ok})
	}

	if len(res.Observations) == 0 {
		if firstErr == nil {
			firstErr = errors.New("no data rows")
		}
		return res, &FormatError{Source: source, Rows: res.Rows, Dropped: res.Dropped, Err: firstErr}
	}
	return res, nil
}

// ParseValue coerces locale-formatted numeric text using the schema's decimal
// convention, unit suffix and scale. It reports false for text that is empty,
// non-numeric or not finite.
func ParseValue(text string, schema Schema) (float64, bool) {
	s := strings.TrimSpace(strings.Trim(strings.TrimSpace(text), `"`))
	if schema.UnitSuffix != "" {
		s = strings.TrimSpace(trimSuffixFold(s, schema.UnitSuffix))
	}
	if s == "" {
		return 0, false
	}
	if schema.DecimalComma {
		if strings.Contains(s, ",") {
			s = strings.ReplaceAll(s, ".", "")
		}
		s = strings.Replace(s, ",", ".", 1)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false
	}
	if schema.Scale != 0 && schema.Scale != 1 {
		d = d.Mul(decimal.NewFromFloat(schema.Scale))
	}
	v := d.InexactFloat64()
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// FormatDecimal renders v with the shortest exact decimal representation,
// using a comma as the decimal mark when decimalComma is set. Non-finite
// values render as the empty string, which parses back as absent.
func FormatDecimal(v float64, decimalComma bool) string {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return ""
	}
	s := decimal.NewFromFloat(v).String()
	if decimalComma {
		s = strings.Replace(s, ".", ",", 1)
	}
	return s
}

type resolvedColumns struct {
	date, hour, value int
}

// resolve maps the schema's columns onto positions in the header line.
func (s Schema) resolve(header []string) (resolvedColumns, error) {
	cols := resolvedColumns{hour: -1}
	var err error
	if cols.date, err = locate(header, s.Date); err != nil {
		return cols, err
	}
	if s.Hour != nil {
		if cols.hour, err = locate(header, *s.Hour); err != nil {
			return cols, err
		}
	}
	if cols.value, err = locate(header, s.Value); err != nil {
		return cols, err
	}
	return cols, nil
}

func locate(header []string, c Column) (int, error) {
	if c.Name == "" {
		if c.Index >= len(header) {
			return -1, fmt.Errorf("column %s beyond header width %d", c, len(header))
		}
		return c.Index, nil
	}
	for i, h := range header {
		if strings.EqualFold(cleanHeader(h), c.Name) {
			return i, nil
		}
	}
	return -1, fmt.Errorf("column %s not found in header", c)
}

func (s Schema) parseTime(line []string, cols resolvedColumns) (time.Time, error) {
	text := field(line, cols.date)
	if text == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	if cols.hour >= 0 {
		hour := field(line, cols.hour)
		if s.HourCode {
			var err error
			if hour, err = normalizeHourCode(hour); err != nil {
				return time.Time{}, err
			}
		}
		text += " " + hour
	}
	ts, err := time.ParseInLocation(s.TimeLayout, text, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", text, err)
	}
	return ts, nil
}

// normalizeHourCode turns an hour code into HH:MM: "1300 UTC" → "13:00",
// "930" → "09:30", "0" → "00:00".
func normalizeHourCode(code string) (string, error) {
	digits := hourDigitsRe.FindString(code)
	if digits == "" || len(digits) > 4 {
		return "", fmt.Errorf("invalid hour code %q", code)
	}
	digits = strings.Repeat("0", 4-len(digits)) + digits

	hour, _ := strconv.Atoi(digits[:2])
	mins, _ := strconv.Atoi(digits[2:])
	if hour > 23 || mins > 59 {
		return "", fmt.Errorf("hour code %q out of range", code)
	}
	return digits[:2] + ":" + digits[2:], nil
}

func field(line []string, i int) string {
	if i < 0 || i >= len(line) {
		return ""
	}
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(line[i]), `"`))
}

func cleanHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(h), `"`))
}

func blank(line []string) bool {
	for _, f := range line {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func trimSuffixFold(s, suffix string) string {
	if len(s) >= len(suffix) && strings.EqualFold(s[len(s)-len(suffix):], suffix) {
		return s[:len(s)-len(suffix)]
	}
	return s
}
