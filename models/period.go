package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Period is a concrete (year, quarter) pair. Quarter is 1..4.
type Period struct {
	Year    int `json:"year"`
	Quarter int `json:"quarter"`
}

// Label renders the period the way the fact store and UI key it, e.g. "2024Q3".
func (p Period) Label() string {
	return fmt.Sprintf("%dQ%d", p.Year, p.Quarter)
}

// QuarterLabel renders just the quarter, e.g. "Q3".
func (p Period) QuarterLabel() string {
	return fmt.Sprintf("Q%d", p.Quarter)
}

// IsZero reports whether the period is unset.
func (p Period) IsZero() bool {
	return p.Year == 0 && p.Quarter == 0
}

// PrevQuarter returns the period one quarter earlier, rolling over year
// boundaries (Q1 minus one quarter is Q4 of the prior year).
func PrevQuarter(year, quarter int) (int, int) {
	if quarter == 1 {
		return year - 1, 4
	}
	return year, quarter - 1
}

// Quarter is a wire-flexible quarter value: requests may carry it as the
// number 3, the string "3", or the label "Q3". Zero means absent.
type Quarter int

// Valid reports whether the quarter is a concrete 1..4 value.
func (q Quarter) Valid() bool {
	return q >= 1 && q <= 4
}

// UnmarshalJSON accepts numeric and string encodings.
func (q *Quarter) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*q = Quarter(n)
		if !q.Valid() && n != 0 {
			return fmt.Errorf("quarter out of range: %d", n)
		}
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("quarter must be a number or string, got %s", data)
	}

	parsed, ok := ParseQuarter(s)
	if !ok {
		return fmt.Errorf("invalid quarter %q", s)
	}
	*q = Quarter(parsed)
	return nil
}

// MarshalJSON emits the numeric form.
func (q Quarter) MarshalJSON() ([]byte, error) {
	return json.Marshal(int(q))
}

// ParseQuarter normalizes "Q1".."Q4", "q1", and bare digits to 1..4.
// Empty or unparseable input returns ok=false.
func ParseQuarter(s string) (int, bool) {
	s = strings.TrimSpace(strings.ToUpper(s))
	if s == "" {
		return 0, false
	}
	s = strings.TrimPrefix(s, "Q")
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > 4 {
		return 0, false
	}
	return n, true
}
