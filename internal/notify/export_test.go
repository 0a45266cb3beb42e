package notify

import (
	"context"
	"net/smtp"
)

// SetSendMail swaps the SMTP sender of e.
func SetSendMail(e *Email, fn func(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error) {
	e.send = fn
}
