// Package mailer sends plain-text operator mail over SMTP.
package mailer

import "context"

type Service interface {
	Send(ctx context.Context, m Message) error
}

type Message struct {
	FromName string
	From     string
	To       []string

	Subject string
	Body    string

	Headers map[string]string
}
