package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/smtp"
	"os"
	"strconv"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
)

type EmailConfig struct {
	Host     string
	Port     int
	From     string
	To       string
	Password string
}

type sendMailFunc func(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error

// sendTimeout bounds one SMTP exchange when ctx has no deadline.
const sendTimeout = 30 * time.Second

// Email sends alerts through an SMTP relay with STARTTLS and PLAIN auth.
type Email struct {
	cfg  EmailConfig
	send sendMailFunc
	now  func() time.Time
}

func NewEmail(cfg EmailConfig) (*Email, error) {
	if cfg.Host == "" || cfg.From == "" || cfg.To == "" {
		return nil, errors.New("email: host, from and to are required")
	}
	if cfg.Password == "" {
		return nil, errors.New("email: missing password")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &Email{cfg: cfg, send: sendMail, now: time.Now}, nil
}

func (e *Email) Name() string { return "email" }

func (e *Email) Notify(ctx context.Context, a Alert) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := e.compose(a)
	if err != nil {
		return fmt.Errorf("email: compose: %w", err)
	}
	addr := net.JoinHostPort(e.cfg.Host, strconv.Itoa(e.cfg.Port))
	auth := &saslAuth{host: e.cfg.Host, client: sasl.NewPlainClient("", e.cfg.From, e.cfg.Password)}
	if err := e.send(ctx, addr, auth, e.cfg.From, []string{e.cfg.To}, msg); err != nil {
		return fmt.Errorf("email: send via %s: %w", addr, err)
	}
	return nil
}

func (e *Email) compose(a Alert) ([]byte, error) {
	var h mail.Header
	h.SetDate(e.now())
	h.SetAddressList("From", []*mail.Address{{Name: "Job Watch", Address: e.cfg.From}})
	h.SetAddressList("To", []*mail.Address{{Address: e.cfg.To}})
	h.SetSubject(Subject(a))
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	// Keep apply links unwrapped.
	h.Set("Content-Transfer-Encoding", "8bit")
	if err := h.GenerateMessageID(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, err
	}
	if _, err := io.WriteString(w, Body(a)); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// sendMail is smtp.SendMail bounded by ctx. The dial and every read and
// write share one deadline; cancelling ctx closes the connection.
func sendMail(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(sendTimeout)
	}
	d := net.Dialer{Deadline: deadline}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return ctxErr(ctx, err)
	}
	defer conn.Close()
	if err := conn.SetDeadline(deadline); err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	c, err := smtp.NewClient(conn, host)
	if err != nil {
		return ctxErr(ctx, err)
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: host}); err != nil {
			return ctxErr(ctx, err)
		}
	}
	if a != nil {
		if ok, _ := c.Extension("AUTH"); !ok {
			return errors.New("smtp: server doesn't support AUTH")
		}
		if err := c.Auth(a); err != nil {
			return ctxErr(ctx, err)
		}
	}
	if err := c.Mail(from); err != nil {
		return ctxErr(ctx, err)
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return ctxErr(ctx, err)
		}
	}
	w, err := c.Data()
	if err != nil {
		return ctxErr(ctx, err)
	}
	if _, err := w.Write(msg); err != nil {
		return ctxErr(ctx, err)
	}
	if err := w.Close(); err != nil {
		return ctxErr(ctx, err)
	}
	return ctxErr(ctx, c.Quit())
}

// ctxErr reports a cancelled or timed-out send as a context error rather
// than a server rejection.
func ctxErr(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if cerr := ctx.Err(); cerr != nil {
		return fmt.Errorf("%w: %v", cerr, err)
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
	}
	return err
}

// saslAuth adapts a SASL client to net/smtp. Credentials are only sent
// over TLS, or to localhost.
type saslAuth struct {
	host   string
	client sasl.Client
}

func (a *saslAuth) Start(server *smtp.ServerInfo) (string, []byte, error) {
	if !server.TLS && !isLocalhost(server.Name) {
		return "", nil, errors.New("unencrypted connection")
	}
	if server.Name != a.host {
		return "", nil, errors.New("wrong host name")
	}
	return a.client.Start()
}

func (a *saslAuth) Next(fromServer []byte, more bool) ([]byte, error) {
	if !more {
		return nil, nil
	}
	return a.client.Next(fromServer)
}

func isLocalhost(name string) bool {
	return name == "localhost" || name == "127.0.0.1" || name == "::1"
}
