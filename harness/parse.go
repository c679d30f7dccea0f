package harness

import (
	"strings"
)

// DataPrefix marks the solver's structured result line.
const DataPrefix = "DATA,"

// ParseDataLine returns the comma-separated fields of the first line in
// stdout that starts with DataPrefix. Fields are not converted or counted.
// Lines of any length are accepted.
func ParseDataLine(stdout string) ([]string, bool) {
	for _, line := range strings.Split(stdout, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if !strings.HasPrefix(line, DataPrefix) {
			continue
		}

		rest := strings.TrimPrefix(strings.TrimSpace(line), DataPrefix)

		return strings.Split(rest, ","), true
	}

	return nil, false
}
