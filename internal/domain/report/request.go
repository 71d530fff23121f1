package report

import (
	"strings"

	"github.com/inzighted/report-service/internal/domain/shared"
)

// Type identifies which report page is rendered and which cache
// dimension the result lives in.
type Type string

const (
	TypeStudent Type = "student"
	TypeTeacher Type = "teacher"
	TypeOverall Type = "overall"
)

// IsValid reports whether the report type is one of the known values.
func (t Type) IsValid() bool {
	switch t {
	case TypeStudent, TypeTeacher, TypeOverall:
		return true
	}
	return false
}

// OverallTestID is the normalized test id for the aggregate "overall" report.
const OverallTestID = "0"

// ErrInvalidTestID is returned when a raw test id cannot be normalized
// to a numeric test number.
var ErrInvalidTestID = shared.NewDomainError("INVALID_TEST_ID", "Test id must contain a test number or be 'overall'")

// NormalizeTestID reduces the many spellings of a test identifier to a
// numeric string. The literal token "overall" (any case) maps to "0";
// otherwise any non-digit prefix is stripped ("Test7" -> "7"). The
// result must be a non-empty string of digits.
func NormalizeTestID(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if strings.EqualFold(s, "overall") {
		return OverallTestID, nil
	}

	start := 0
	for start < len(s) && !isDigit(s[start]) {
		start++
	}
	s = s[start:]
	if s == "" {
		return "", ErrInvalidTestID
	}
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return "", ErrInvalidTestID
		}
	}
	return s, nil
}

// DisplayTestID converts a normalized test id back to the label the
// report pages expect in their query string: "0" -> "Overall",
// anything else -> "Test <n>".
func DisplayTestID(normalized string) string {
	if normalized == OverallTestID {
		return "Overall"
	}
	return "Test " + normalized
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
