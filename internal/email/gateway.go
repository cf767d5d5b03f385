package email

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"

	"authflow/internal/config"
	"authflow/internal/i18n"
)

type Template string

const (
	ConfirmAccount Template = "emails.confirm_account"
	ResetPassword  Template = "emails.reset_password"
)

// Params is the bag handed to a template: the user's fields, the token and
// the application URL the link is built from.
type Params struct {
	Email     string
	FirstName string
	LastName  string
	Token     string
	AppURL    string
}

type Notification struct {
	Template Template
	To       string
	Locale   string
	Params   Params
}

// Gateway renders account notifications and hands them to a Transport.
type Gateway struct {
	transport Transport
	from      string
	appURL    string
	linkTTL   time.Duration
	logger    *slog.Logger
	sent      *prometheus.CounterVec
}

type GatewayOption func(*Gateway)

// WithCounter counts deliveries by template and status ("sent" or "failed").
func WithCounter(c *prometheus.CounterVec) GatewayOption {
	return func(g *Gateway) { g.sent = c }
}

func NewGateway(cfg config.Config, transport Transport, logger *slog.Logger, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		transport: transport,
		from:      cfg.Email.From,
		appURL:    cfg.BaseURL,
		linkTTL:   cfg.TokenTTL,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// AppURL is the base the emailed links point at.
func (g *Gateway) AppURL() string { return g.appURL }

// Deliver renders n and sends it. Transport failures are returned unchanged
// in meaning; there is no retry.
func (g *Gateway) Deliver(ctx context.Context, n Notification) error {
	if n.Params.AppURL == "" {
		n.Params.AppURL = g.appURL
	}

	content, err := g.render(n)
	if err != nil {
		return err
	}

	err = g.transport.Send(ctx, Message{
		From:    g.from,
		To:      n.To,
		Subject: content.Subject,
		Text:    content.Text,
		HTML:    content.HTML,
	})
	g.observe(n.Template, err)
	if err != nil {
		return oops.Code("EMAIL_SEND_FAILED").
			With("template", string(n.Template)).
			With("to", n.To).
			Wrap(err)
	}

	g.logger.DebugContext(ctx, "email sent", "template", string(n.Template), "to", n.To)
	return nil
}

func (g *Gateway) render(n Notification) (i18n.EmailContent, error) {
	p := i18n.LinkParams{
		FirstName: n.Params.FirstName,
		LastName:  n.Params.LastName,
		Email:     n.Params.Email,
		Link:      Link(n.Template, n.Params.AppURL, n.Params.Token),
		Hours:     int(g.linkTTL.Hours()),
	}
	switch n.Template {
	case ConfirmAccount:
		return i18n.ConfirmAccountEmail(n.Locale, p), nil
	case ResetPassword:
		return i18n.ResetPasswordEmail(n.Locale, p), nil
	default:
		return i18n.EmailContent{}, oops.Code("EMAIL_TEMPLATE_UNKNOWN").Errorf("unknown email template %q", n.Template)
	}
}

func (g *Gateway) observe(t Template, err error) {
	if g.sent == nil {
		return
	}
	status := "sent"
	if err != nil {
		status = "failed"
	}
	g.sent.WithLabelValues(string(t), status).Inc()
}

// Link builds the URL a template's token travels in. Confirmation links hit
// the API directly; reset links open the reset form page.
func Link(t Template, appURL, token string) string {
	base := strings.TrimRight(appURL, "/")
	escaped := url.PathEscape(token)
	switch t {
	case ConfirmAccount:
		return fmt.Sprintf("%s/api/confirm/%s", base, escaped)
	case ResetPassword:
		return fmt.Sprintf("%s/password/reset/%s", base, escaped)
	default:
		return base
	}
}
