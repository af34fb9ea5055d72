// Package util provides small string helpers shared by the console surface.
package util

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// TrimQuotes removes leading and trailing double quotes from a string.
func TrimQuotes(s string) string {
	return strings.Trim(s, `"`)
}

// FixEscapeQuotes replaces escaped double quotes ("") with single double quotes (").
func FixEscapeQuotes(s string) string {
	return strings.ReplaceAll(s, `""`, `"`)
}

// SplitArgs splits a console line on whitespace. Double-quoted runs are kept
// together with the quotes removed; "" inside quotes is a literal quote.
func SplitArgs(line string) []string {
	var (
		args    []string
		cur     strings.Builder
		inQuote bool
		started bool
	)
	runes := []rune(line)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '"' && inQuote && i+1 < len(runes) && runes[i+1] == '"':
			cur.WriteRune('"')
			i++
		case r == '"':
			inQuote = !inQuote
			started = true
		case unicode.IsSpace(r) && !inQuote:
			if started {
				args = append(args, cur.String())
				cur.Reset()
				started = false
			}
		default:
			cur.WriteRune(r)
			started = true
		}
	}
	if started {
		args = append(args, cur.String())
	}
	return args
}

// ParseFloats parses a list of numbers written as separate args, a bracketed
// array "[1, 0.5, 0]" or a call form such as "RGBA(1, 0.5, 0, 1)".
func ParseFloats(args []string) ([]float64, error) {
	joined := strings.TrimSpace(strings.Join(args, " "))
	if open := strings.IndexAny(joined, "(["); open >= 0 {
		closer := ")"
		if joined[open] == '[' {
			closer = "]"
		}
		end := strings.LastIndex(joined, closer)
		if end < open {
			return nil, fmt.Errorf("unbalanced %q in %q", joined[open], joined)
		}
		joined = joined[open+1 : end]
	}

	fields := strings.FieldsFunc(joined, func(r rune) bool {
		return r == ',' || r == ';' || unicode.IsSpace(r)
	})
	out := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(TrimQuotes(f), 64)
		if err != nil {
			return nil, fmt.Errorf("parsing %q: %w", f, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// ParseFloat32 parses a single quoted or bare number.
func ParseFloat32(s string) (float32, error) {
	v, err := strconv.ParseFloat(TrimQuotes(strings.TrimSpace(s)), 32)
	if err != nil {
		return 0, err
	}
	return float32(v), nil
}
