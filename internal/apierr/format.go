package apierr

import (
	"fmt"
	"strings"
)

// FormatForUser renders a ServiceError for display. The layout is stable and
// parsed by downstream consumers:
//
//	<user message>
//
//	Estimated resolution time: <estimate>   (only when known)
//
//	What you can do:
//	1. <step>
//
//	Error Code: <CODE>
//
// A nil error renders as UNKNOWN_ERROR.
func FormatForUser(err *ServiceError) string {
	if err == nil {
		err = New(CodeUnknown, "", nil)
	}

	var b strings.Builder
	b.WriteString(err.UserMessage)
	b.WriteString("\n\n")

	if err.EstimatedFixTime != "" {
		fmt.Fprintf(&b, "Estimated resolution time: %s\n\n", err.EstimatedFixTime)
	}

	if len(err.Troubleshooting) > 0 {
		b.WriteString("What you can do:\n")
		for i, step := range err.Troubleshooting {
			fmt.Fprintf(&b, "%d. %s\n", i+1, step)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Error Code: %s", err.Code)
	return b.String()
}
