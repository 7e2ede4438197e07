package mailer

import (
	"errors"
	"fmt"
	"mime"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	errNoRecipient = errors.New("mailer: at least one recipient required")
	errNoFrom      = errors.New("mailer: from address required")
	errNoSubject   = errors.New("mailer: subject required")
)

func formatAddress(name, addr string) string {
	if name == "" {
		return addr
	}
	return fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", name), addr)
}

// buildMessage renders m as an RFC 5322 text/plain message with CRLF line
// endings.
func buildMessage(m Message, domain string, now time.Time) (string, error) {
	switch {
	case len(m.To) == 0:
		return "", errNoRecipient
	case m.From == "":
		return "", errNoFrom
	case m.Subject == "":
		return "", errNoSubject
	}

	var b strings.Builder
	header := func(k, v string) { fmt.Fprintf(&b, "%s: %s\r\n", k, v) }

	header("Date", now.Format(time.RFC1123Z))
	header("Message-ID", fmt.Sprintf("<%s@%s>", uuid.NewString(), domain))
	header("From", formatAddress(m.FromName, m.From))
	header("To", strings.Join(m.To, ", "))
	header("Subject", mime.QEncoding.Encode("utf-8", m.Subject))
	header("MIME-Version", "1.0")

	keys := make([]string, 0, len(m.Headers))
	for k := range m.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if v := m.Headers[k]; k != "" && v != "" && !strings.ContainsAny(k+v, "\r\n") {
			header(k, v)
		}
	}

	header("Content-Type", "text/plain; charset=UTF-8")
	header("Content-Transfer-Encoding", "8bit")
	b.WriteString("\r\n")

	body := strings.ReplaceAll(m.Body, "\r\n", "\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	if !strings.HasSuffix(body, "\n") {
		b.WriteString("\r\n")
	}
	return b.String(), nil
}
