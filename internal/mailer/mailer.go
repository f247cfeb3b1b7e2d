// Package mailer delivers login codes over SMTP.
package mailer

import (
	"bytes"
	"context"
	"fmt"
	"text/template"

	"github.com/rs/zerolog/log"
	"github.com/wneessen/go-mail"
)

const loginSubject = "Your Skill Loop login code"

var loginBody = template.Must(template.New("login").Parse(`Hi {{.Name}},

Your Skill Loop login code is {{.Code}}. It expires shortly and can be used once.

Or sign in directly with this link:
{{.Link}}

If you did not ask for this code you can ignore this email.
`))

// sender is the part of the go-mail client the mailer needs.
type sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// Options configures the SMTP relay.
type Options struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPMailer sends messages through an SMTP relay.
type SMTPMailer struct {
	from   string
	client sender
}

// NewSMTP creates a mailer for the given relay. Authentication is used only when a username is set.
func NewSMTP(opts Options) (*SMTPMailer, error) {
	clientOpts := []mail.Option{
		mail.WithPort(opts.Port),
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
	}
	if opts.Username != "" {
		clientOpts = append(clientOpts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(opts.Username),
			mail.WithPassword(opts.Password),
		)
	}

	client, err := mail.NewClient(opts.Host, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create smtp client: %w", err)
	}
	return &SMTPMailer{from: opts.From, client: client}, nil
}

// SendLoginCode emails the one-time code and magic link to a user.
func (m *SMTPMailer) SendLoginCode(ctx context.Context, to, name, code, magicLink string) error {
	msg, err := m.loginMessage(to, name, code, magicLink)
	if err != nil {
		return err
	}
	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send login code: %w", err)
	}
	return nil
}

func (m *SMTPMailer) loginMessage(to, name, code, magicLink string) (*mail.Msg, error) {
	var body bytes.Buffer
	err := loginBody.Execute(&body, struct{ Name, Code, Link string }{name, code, magicLink})
	if err != nil {
		return nil, err
	}

	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return nil, fmt.Errorf("invalid sender address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject(loginSubject)
	msg.SetBodyString(mail.TypeTextPlain, body.String())
	return msg, nil
}

// LogMailer writes login codes to the log. It stands in when no SMTP relay is configured.
type LogMailer struct{}

// SendLoginCode logs the code instead of sending it.
func (LogMailer) SendLoginCode(_ context.Context, to, _, code, magicLink string) error {
	log.Warn().Str("email", to).Str("code", code).Str("link", magicLink).Msg("SMTP not configured, login code logged instead of mailed")
	return nil
}
