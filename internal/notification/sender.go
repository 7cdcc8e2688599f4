package notification

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/sakashimaa/electro-shop/pkg/config"
	"github.com/sakashimaa/electro-shop/pkg/mylogger"
	"github.com/sakashimaa/electro-shop/pkg/utils"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type Message struct {
	To      string
	Subject string
	HTML    string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type smtpSender struct {
	cfg    config.SMTP
	send   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
	logger *zap.Logger
	tracer trace.Tracer
}

// NewSender returns an SMTP sender guarded by a circuit breaker. Without a
// configured host mail is only logged.
func NewSender(cfg config.SMTP, logger *zap.Logger) Sender {
	if cfg.Host == "" {
		return &logSender{logger: logger}
	}

	return &breakerSender{
		next: &smtpSender{
			cfg:    cfg,
			send:   smtp.SendMail,
			logger: logger,
			tracer: otel.Tracer("notification/smtp"),
		},
		cb: utils.NewBreaker("smtp", logger),
	}
}

func (s *smtpSender) Send(ctx context.Context, msg Message) error {
	ctx, span := s.tracer.Start(ctx, "smtp.Send")
	defer span.End()

	span.SetAttributes(attribute.String("subject", msg.Subject))

	from := s.cfg.From
	if from == "" {
		from = s.cfg.User
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	b.WriteString(msg.HTML)

	addr := fmt.Sprintf("%s:%s", s.cfg.Host, s.cfg.Port)

	var auth smtp.Auth
	if s.cfg.User != "" {
		auth = smtp.PlainAuth("", s.cfg.User, s.cfg.Password, s.cfg.Host)
	}

	if err := s.send(addr, auth, from, []string{msg.To}, []byte(b.String())); err != nil {
		span.RecordError(err)
		mylogger.Error(ctx, s.logger, "Error sending email", zap.String("subject", msg.Subject), zap.Error(err))

		return fmt.Errorf("failed to send mail: %w", err)
	}

	mylogger.Info(ctx, s.logger, "Email sent", zap.String("subject", msg.Subject))
	return nil
}

type breakerSender struct {
	next Sender
	cb   *gobreaker.CircuitBreaker
}

func (s *breakerSender) Send(ctx context.Context, msg Message) error {
	_, err := utils.ExecuteWithBreaker(s.cb, func() (struct{}, error) {
		return struct{}{}, s.next.Send(ctx, msg)
	})
	return err
}

type logSender struct {
	logger *zap.Logger
}

func (s *logSender) Send(ctx context.Context, msg Message) error {
	mylogger.Info(ctx, s.logger, "SMTP is not configured, email skipped", zap.String("subject", msg.Subject))
	return nil
}
