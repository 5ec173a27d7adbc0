package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mailgun/mailgun-go/v4"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/partnerportal/portal/internal/metrics"
)

// Defaults for Mailgun delivery.
const (
	DefaultMailgunBaseURL = "https://api.mailgun.net"
	DefaultFromEmail      = "noreply@example.com"
	DefaultFromName       = "Partner Portal"
	DefaultFrontendURL    = "http://localhost:3000"

	defaultMaxRetries  = 2
	defaultRetryBase   = 250 * time.Millisecond
	maxErrorBodyLength = 512

	mailgunAPIVersion = "/v3"
)

// Notification outcomes recorded in metrics.
const (
	outcomeSent     = "sent"
	outcomeFailed   = "failed"
	outcomeDisabled = "disabled"
)

// MailgunConfig holds Mailgun delivery settings.
type MailgunConfig struct {
	APIKey      string
	Domain      string
	BaseURL     string
	FromEmail   string
	FromName    string
	FrontendURL string
}

// Configured reports whether the API key and sending domain are present.
func (c MailgunConfig) Configured() bool {
	return c.APIKey != "" && c.Domain != ""
}

func (c MailgunConfig) withDefaults() MailgunConfig {
	if c.BaseURL == "" {
		c.BaseURL = DefaultMailgunBaseURL
	}
	if c.FromEmail == "" {
		c.FromEmail = DefaultFromEmail
	}
	if c.FromName == "" {
		c.FromName = DefaultFromName
	}
	if c.FrontendURL == "" {
		c.FrontendURL = DefaultFrontendURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	c.FrontendURL = strings.TrimRight(c.FrontendURL, "/")
	return c
}

// Option configures a MailgunNotifier.
type Option func(*MailgunNotifier)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(n *MailgunNotifier) { n.client = client }
}

// WithBackoff overrides the retry policy. newBackoff is called once per message.
func WithBackoff(newBackoff func() retry.Backoff) Option {
	return func(n *MailgunNotifier) { n.newBackoff = newBackoff }
}

// MailgunNotifier sends email through the Mailgun messages API.
type MailgunNotifier struct {
	cfg        MailgunConfig
	client     *http.Client
	mg         *mailgun.MailgunImpl
	renderer   *Renderer
	newBackoff func() retry.Backoff
	metrics    metrics.Recorder
	logger     *slog.Logger
}

// New returns a Mailgun notifier, or a Disabled notifier when the API key
// or domain is missing.
func New(cfg MailgunConfig, recorder metrics.Recorder, logger *slog.Logger, opts ...Option) Notifier {
	if !cfg.Configured() {
		logger.Warn("mailgun configuration is incomplete, email delivery is disabled")
		return NewDisabled(recorder, logger)
	}
	return NewMailgun(cfg, recorder, logger, opts...)
}

// NewMailgun creates a MailgunNotifier.
func NewMailgun(cfg MailgunConfig, recorder metrics.Recorder, logger *slog.Logger, opts ...Option) *MailgunNotifier {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	n := &MailgunNotifier{
		cfg:      cfg.withDefaults(),
		client:   NewHTTPClient(),
		renderer: NewRenderer(),
		newBackoff: func() retry.Backoff {
			return retry.WithMaxRetries(defaultMaxRetries, retry.NewExponential(defaultRetryBase))
		},
		metrics: recorder,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(n)
	}

	n.mg = mailgun.NewMailgun(n.cfg.Domain, n.cfg.APIKey)
	n.mg.SetAPIBase(n.cfg.BaseURL + mailgunAPIVersion)
	n.mg.SetClient(n.client)
	return n
}

// SendWelcome sends the post-registration greeting.
func (n *MailgunNotifier) SendWelcome(ctx context.Context, email string) bool {
	return n.sendTemplate(ctx, KindWelcome, email, SubjectWelcome, map[string]any{
		"Email": email,
	})
}

// SendPasswordReset sends a reset link carrying token.
func (n *MailgunNotifier) SendPasswordReset(ctx context.Context, email, token string) bool {
	return n.sendTemplate(ctx, KindPasswordReset, email, SubjectPasswordReset, map[string]any{
		"Email":    email,
		"ResetURL": n.ResetURL(token),
	})
}

// SendPasswordResetConfirmation tells the user their password changed.
func (n *MailgunNotifier) SendPasswordResetConfirmation(ctx context.Context, email string) bool {
	return n.sendTemplate(ctx, KindPasswordResetConfirmation, email, SubjectPasswordResetConfirmation, map[string]any{
		"Email": email,
	})
}

// ResetURL builds the frontend link for a reset token.
func (n *MailgunNotifier) ResetURL(token string) string {
	return n.cfg.FrontendURL + "/reset-password?token=" + url.QueryEscape(token)
}

func (n *MailgunNotifier) sendTemplate(ctx context.Context, kind, to, subject string, data map[string]any) bool {
	html, err := n.renderer.Render(kind, data)
	if err != nil {
		n.logger.Error("failed to render email",
			"kind", kind,
			"error", err,
		)
		n.metrics.IncNotification(kind, outcomeFailed)
		return false
	}

	if err := n.send(ctx, to, subject, html); err != nil {
		n.logger.Error("failed to send email",
			"kind", kind,
			"error", err,
		)
		n.metrics.IncNotification(kind, outcomeFailed)
		return false
	}

	n.logger.Info("email sent", "kind", kind)
	n.metrics.IncNotification(kind, outcomeSent)
	return true
}

func (n *MailgunNotifier) send(ctx context.Context, to, subject, html string) error {
	from := fmt.Sprintf("%s <%s>", n.cfg.FromName, n.cfg.FromEmail)
	msg := n.mg.NewMessage(from, subject, StripHTML(html), to)
	msg.SetHtml(html)

	return retry.Do(ctx, n.newBackoff(), func(ctx context.Context) error {
		_, _, err := n.mg.Send(ctx, msg)
		if err == nil {
			return nil
		}
		if retryable(ctx, err) {
			return retry.RetryableError(err)
		}
		return rejected(err)
	})
}

// retryable reports whether a later attempt may succeed. Only 429 and 5xx
// responses qualify among provider replies.
func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var resp *mailgun.UnexpectedResponseError
	if errors.As(err, &resp) {
		return resp.Actual == http.StatusTooManyRequests || resp.Actual >= http.StatusInternalServerError
	}
	return true
}

func rejected(err error) error {
	var resp *mailgun.UnexpectedResponseError
	if !errors.As(err, &resp) {
		return oops.In("notify").With("operation", "send message").Wrap(err)
	}
	body := resp.Data
	if len(body) > maxErrorBodyLength {
		body = body[:maxErrorBodyLength]
	}
	return oops.In("notify").
		With("status", resp.Actual).
		With("body", string(body)).
		Errorf("mail provider rejected message")
}

// Disabled is used when no mail provider is configured. Every send fails.
type Disabled struct {
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewDisabled returns a notifier that never delivers.
func NewDisabled(recorder metrics.Recorder, logger *slog.Logger) *Disabled {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Disabled{logger: logger, metrics: recorder}
}

func (d *Disabled) fail(kind string) bool {
	d.logger.Error("mailgun is not configured", "kind", kind)
	d.metrics.IncNotification(kind, outcomeDisabled)
	return false
}

// SendWelcome always reports failure.
func (d *Disabled) SendWelcome(context.Context, string) bool {
	return d.fail(KindWelcome)
}

// SendPasswordReset always reports failure.
func (d *Disabled) SendPasswordReset(context.Context, string, string) bool {
	return d.fail(KindPasswordReset)
}

// SendPasswordResetConfirmation always reports failure.
func (d *Disabled) SendPasswordResetConfirmation(context.Context, string) bool {
	return d.fail(KindPasswordResetConfirmation)
}
