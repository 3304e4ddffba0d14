package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"labcore/internal/core"
)

var (
	okColor   = color.New(color.FgHiGreen)
	warnColor = color.New(color.FgYellow)
	idColor   = color.New(color.FgCyan)
)

func okMark() string { return okColor.Sprint("✓") }

// statusColor renders a sample, order or report status. The status enums
// share some names (PENDING, ISSUED), so the switch works on the text.
func statusColor(status string) string {
	upper := strings.ToUpper(status)
	switch upper {
	case "PENDING":
		return color.New(color.FgWhite).Sprint(upper)
	case "IN_LAB", "TESTING", "IN_PROGRESS":
		return color.New(color.FgYellow).Sprint(upper)
	case "TEST_COMPLETED", "REPORT_READY", "REPORT_GENERATED", "DRAFT":
		return color.New(color.FgHiBlue).Sprint(upper)
	case "ISSUED":
		return color.New(color.FgHiGreen).Sprint(upper)
	default:
		return upper
	}
}

func printViolations(w io.Writer, res core.Result) {
	for _, v := range res.Violations {
		fmt.Fprintf(w, "  %s %s: %s\n", warnColor.Sprint("warning"), v.Rule, v.Message)
	}
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}
