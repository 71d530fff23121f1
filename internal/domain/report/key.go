package report

import (
	"regexp"
	"strings"
)

var keyUnsafe = regexp.MustCompile(`[^A-Za-z0-9_-]`)
var allDigits = regexp.MustCompile(`^[0-9]+$`)

// sanitizeKeyPart replaces every character outside [A-Za-z0-9_-] with
// an underscore so identifiers are always safe object-store path segments.
func sanitizeKeyPart(s string) string {
	return keyUnsafe.ReplaceAllString(s, "_")
}

// CacheKey computes the deterministic object-store key for a report.
// Identical inputs always produce the identical key; the key is the
// entire cache-lookup contract, so this function must stay pure.
//
// A purely numeric test id is rewritten to "Test_<n>" so per-test
// folders sort next to each other. Teacher reports for the aggregate
// test ("0" or "overall") collapse to a single overall/ path: the
// overall teacher report is one artifact per class, not one per test.
func CacheKey(classID, testID string, reportType Type, userID string) string {
	class := sanitizeKeyPart(classID)
	user := sanitizeKeyPart(userID)
	test := sanitizeKeyPart(testID)

	if reportType == TypeTeacher && (test == OverallTestID || strings.EqualFold(test, "overall")) {
		return "reports/" + class + "/overall/teacher_" + user + ".pdf"
	}

	if allDigits.MatchString(testID) {
		test = sanitizeKeyPart("Test_" + testID)
	}

	return "reports/" + class + "/" + test + "/" + string(reportType) + "_" + user + ".pdf"
}

// Filename returns the download filename for a freshly rendered report,
// e.g. "student_S1_Test_3.pdf" or "teacher_T9_Overall.pdf".
func Filename(reportType Type, userID, testID string) string {
	token := strings.ReplaceAll(DisplayTestID(testID), " ", "_")
	return sanitizeKeyPart(string(reportType)+"_"+userID+"_"+token) + ".pdf"
}

// KeyFilename returns the basename of a cache key, used as the download
// filename when streaming a cached object.
func KeyFilename(key string) string {
	if i := strings.LastIndexByte(key, '/'); i >= 0 {
		return key[i+1:]
	}
	return key
}
