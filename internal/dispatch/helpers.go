package dispatch

import (
	"math"
	"strconv"
	"strings"
)

func parseInt(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

func parseFloat(s string) (float64, error) {
	switch strings.ToLower(s) {
	case "+inf", "inf", "infinity":
		return math.Inf(1), nil
	case "-inf", "-infinity":
		return math.Inf(-1), nil
	}
	return strconv.ParseFloat(s, 64)
}

// findOpt finds the first argv index (from start) whose string equals
// name case-insensitively, or -1.
func findOpt(argv [][]byte, start int, name string) int {
	for i := start; i < len(argv); i++ {
		if strings.EqualFold(string(argv[i]), name) {
			return i
		}
	}
	return -1
}

func upper(b []byte) string { return strings.ToUpper(string(b)) }

func parseUintCursor(s string) (uint64, error) {
	return strconv.ParseUint(s, 10, 64)
}

func formatCursor(c uint64) string {
	return strconv.FormatUint(c, 10)
}
