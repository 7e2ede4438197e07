package notify

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/KINGliam254/Butcher-Sauce-UAT-Ready/internal/mailer"
)

// MailSink mails each alert as a short plain-text message.
type MailSink struct {
	Mailer   mailer.Service
	FromName string
	From     string
	To       []string
}

func (s MailSink) Notify(ctx context.Context, a Alert) error {
	if a.At.IsZero() {
		a.At = time.Now()
	}
	return s.Mailer.Send(ctx, mailer.Message{
		FromName: s.FromName,
		From:     s.From,
		To:       s.To,
		Subject:  fmt.Sprintf("[payments] %s %s", a.Kind, a.OrderID),
		Body:     mailBody(a),
		Headers:  map[string]string{"X-Alert-Kind": string(a.Kind)},
	})
}

func mailBody(a Alert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", a.Message)
	fmt.Fprintf(&b, "kind:           %s\n", a.Kind)
	if a.OrderID != "" {
		fmt.Fprintf(&b, "order:          %s\n", a.OrderID)
	}
	if a.CorrelationID != "" {
		fmt.Fprintf(&b, "correlation id: %s\n", a.CorrelationID)
	}
	fmt.Fprintf(&b, "at:             %s\n", a.At.UTC().Format(time.RFC3339))

	keys := make([]string, 0, len(a.Fields))
	for k := range a.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %v\n", k, a.Fields[k])
	}
	return b.String()
}
