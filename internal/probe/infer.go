package probe

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// Column type labels.
const (
	TypeInteger   = "integer"
	TypeFloat     = "float"
	TypeBoolean   = "boolean"
	TypeDate      = "date"
	TypeTimestamp = "timestamp"
	TypeText      = "text"
)

// inferTypes infers a coarse type per column from string cells. Empty and
// nil cells are ignored; a column with no values is text.
func inferTypes(ncols int, rows [][]any) []string {
	out := make([]string, ncols)
	for col := range out {
		var seen bool
		allInt, allFloat, allBool, allDate, allTS := true, true, true, true, true

		for _, r := range rows {
			v := cell(r, col)
			if v == "" {
				continue
			}
			seen = true

			if allInt {
				if _, err := strconv.ParseInt(v, 10, 64); err != nil {
					allInt = false
				}
			}
			if allFloat {
				if _, err := strconv.ParseFloat(v, 64); err != nil {
					allFloat = false
				}
			}
			if allBool {
				if _, ok := parseBoolLoose(v); !ok {
					allBool = false
				}
			}
			if allDate {
				if _, ok := parseLayout(v, dateLayouts); !ok {
					allDate = false
				}
			}
			if allTS {
				if _, ok := parseLayout(v, tsLayouts); !ok {
					allTS = false
				}
			}
		}

		// Prefer more specific types. Integers win over booleans so 0/1 ID
		// columns stay numeric.
		switch {
		case !seen:
			out[col] = TypeText
		case allInt:
			out[col] = TypeInteger
		case allBool:
			out[col] = TypeBoolean
		case allDate:
			out[col] = TypeDate
		case allTS:
			out[col] = TypeTimestamp
		case allFloat:
			out[col] = TypeFloat
		default:
			out[col] = TypeText
		}
	}
	return out
}

// detectColumnLayouts picks the most frequent layout per date or timestamp
// column. Other columns get "".
func detectColumnLayouts(rows [][]any, inferred []string) []string {
	out := make([]string, len(inferred))
	for i, typ := range inferred {
		var layouts []string
		switch typ {
		case TypeDate:
			layouts = dateLayouts
		case TypeTimestamp:
			layouts = tsLayouts
		default:
			continue
		}
		counts := map[string]int{}
		for _, r := range rows {
			v := cell(r, i)
			if v == "" {
				continue
			}
			if lay, ok := parseLayout(v, layouts); ok {
				counts[lay]++
			}
		}
		out[i] = majority(counts)
	}
	return out
}

// majority returns the key with the highest count; ties go to the smaller
// key so the result is stable.
func majority(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	best, bestN := "", 0
	for _, k := range keys {
		if counts[k] > bestN {
			best, bestN = k, counts[k]
		}
	}
	return best
}

func cell(r []any, i int) string {
	if i >= len(r) || r[i] == nil {
		return ""
	}
	s, _ := r[i].(string)
	return strings.TrimSpace(s)
}

func parseBoolLoose(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "t", "true", "yes", "y":
		return true, true
	case "0", "f", "false", "no", "n":
		return false, true
	default:
		return false, false
	}
}

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"02.01.2006",
	"1/2/2006",
}

var tsLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05.000Z07:00",
	"1/2/2006 15:04:05",
	"1/2/2006 3:04:05 PM",
}

func parseLayout(s string, layouts []string) (string, bool) {
	for _, lay := range layouts {
		if _, err := time.Parse(lay, s); err == nil {
			return lay, true
		}
	}
	return "", false
}
