// Package anomaly classifies log lines by keyword.
//
// Matching is a case-insensitive substring search, so "INF" also fires for
// "Inf", "INFO" and "inference". Categories are independent: one line can be
// an error, a numeric fault, a warning and a terminal marker at once.
package anomaly

import "strings"

var (
	errorKeywords    = []string{"ERROR"}
	numericKeywords  = []string{"NAN", "INF"}
	warningKeywords  = []string{"WARNING"}
	terminalKeywords = []string{"END", "FINISH"}
)

// Result reports which categories a line triggered.
type Result struct {
	Error        bool // "ERROR"
	NumericFault bool // "NAN" or "INF"
	Warning      bool
	Terminal     bool // "END" or "FINISH"
}

// IsError reports whether the line counts as an error of any kind.
func (r Result) IsError() bool {
	return r.Error || r.NumericFault
}

// ErrorHits is the amount the error counter grows by for this line.
func (r Result) ErrorHits() int {
	hits := 0
	if r.Error {
		hits++
	}
	if r.NumericFault {
		hits++
	}
	return hits
}

// Any reports whether anything matched.
func (r Result) Any() bool {
	return r.Error || r.NumericFault || r.Warning || r.Terminal
}

// Scan classifies line.
func Scan(line string) Result {
	upper := strings.ToUpper(line)
	return Result{
		Error:        containsAny(upper, errorKeywords),
		NumericFault: containsAny(upper, numericKeywords),
		Warning:      containsAny(upper, warningKeywords),
		Terminal:     containsAny(upper, terminalKeywords),
	}
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
