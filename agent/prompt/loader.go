package prompt

import (
	_ "embed"
	"strings"
)

//go:embed template/analyst.txt
var analystRaw string

// Analyst returns the system prompt for the reasoning engine, trimmed.
func Analyst() string {
	return strings.TrimSpace(analystRaw)
}
