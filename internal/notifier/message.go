package notifier

import (
	"fmt"
	"strings"
	"time"

	"marlin/internal/order"
)

const maxMessageLen = 3800

// OrderMessage renders a human-readable summary of freshly created orders
// for one sizing decision.
func OrderMessage(symbol, state string, specs []*order.Spec) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📊 %s — %s\n\n", symbol, state))
	b.WriteString("```\n")
	for _, spec := range specs {
		line := fmt.Sprintf("- %s %.8g", spec.Type, spec.Quantity)
		if spec.Price > 0 {
			line += fmt.Sprintf(" @ %.8g", spec.Price)
		}
		if spec.LinkedTo != nil {
			line += " (linked)"
		}
		b.WriteString(line + "\n")
	}
	b.WriteString("```\n")
	b.WriteString("time: " + time.Now().Format("2006-01-02 15:04:05 MST"))

	body := b.String()
	if len(body) > maxMessageLen {
		body = body[:maxMessageLen] + "..."
	}
	return body
}
