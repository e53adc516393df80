package diagnostics

import (
	"regexp"
	"strconv"
	"strings"
)

// buildLogLineRegexp is part of the contract: it must match the shape
// OpenCL drivers emit in build logs, e.g.
// "<program source>:13:5: warning: no previous prototype for function 'getChannel'".
var buildLogLineRegexp = regexp.MustCompile(`^(.*):(\d+):(\d+): ((fatal )?error|warning): (.*)$`)

// ParseBuildLog scans a compiler build log line by line and converts
// recognized error/warning lines into diagnostics. sourceName, when
// non-empty, overrides the source token captured from each line (it is the
// basename of the file that was compiled, when known). At most maxProblems
// diagnostics are returned; scanning stops once the cap is reached.
func ParseBuildLog(buildLog, sourceName string, maxProblems int) []Diagnostic {
	var diagnostics []Diagnostic
	for _, line := range strings.Split(buildLog, "\n") {
		if line == "" {
			continue
		}
		if len(diagnostics) >= maxProblems {
			break
		}

		match := buildLogLineRegexp.FindStringSubmatch(line)
		if match == nil {
			continue
		}

		severity := parseSeverity(match[4])
		if severity == 0 {
			continue
		}

		lineNumber, err := strconv.Atoi(match[2])
		if err != nil {
			continue
		}
		column, err := strconv.Atoi(match[3])
		if err != nil {
			continue
		}

		source := match[1]
		if sourceName != "" {
			source = sourceName
		}

		pos := Position{Line: lineNumber - 1, Character: column}
		diagnostics = append(diagnostics, Diagnostic{
			Source:   source,
			Range:    Range{Start: pos, End: pos},
			Severity: severity,
			Message:  match[6],
		})
	}
	return diagnostics
}

func parseSeverity(phrase string) int {
	switch phrase {
	case "error", "fatal error":
		return SeverityError
	case "warning":
		return SeverityWarning
	default:
		return 0
	}
}
