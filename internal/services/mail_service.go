package services

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"html/template"
	"net"
	"net/mail"
	"net/smtp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"zapmenu/internal/config"
	dbm "zapmenu/internal/models/db_models"
	"zapmenu/pkg/utils"
)

// BillingMailer notifies merchants about billing events. Failures are logged
// by the callers and never reach the merchant.
type BillingMailer interface {
	SendPaymentReceipt(merchant dbm.Merchant, amount decimal.Decimal, method dbm.PaymentMethod, chargeID string) error
	SendDowngradeNotice(merchant dbm.Merchant, to dbm.SubscriptionStatus) error
}

type smtpBillingMailer struct {
	cfg     config.SMTPConfig
	htmlTpl *template.Template
	textTpl *template.Template
}

// NewBillingMailer returns a no-op mailer when no SMTP host is configured.
func NewBillingMailer(cfg config.SMTPConfig) BillingMailer {
	if cfg.Host == "" {
		return noopMailer{}
	}
	return &smtpBillingMailer{
		cfg:     cfg,
		htmlTpl: template.Must(template.New("billingHTML").Parse(billingHTMLTemplate)),
		textTpl: template.Must(template.New("billingText").Parse(billingTextTemplate)),
	}
}

type billingEmail struct {
	Title     string
	Lines     []string
	ButtonURL string
	ButtonTxt string
	AppName   string
	Year      int
}

func (s *smtpBillingMailer) SendPaymentReceipt(merchant dbm.Merchant, amount decimal.Decimal, method dbm.PaymentMethod, chargeID string) error {
	lines := []string{
		fmt.Sprintf("We received your %s payment of R$ %s.", methodLabel(method), amount.StringFixed(2)),
		fmt.Sprintf("Reference: %s", chargeID),
	}
	if due := merchant.Subscription.NextDueDate; due != nil {
		lines = append(lines, fmt.Sprintf("Your subscription is active until %s.", utils.FormatDateBR(*due)))
	}

	return s.deliver(merchant.Email, billingEmail{
		Title:     "Payment received",
		Lines:     lines,
		ButtonURL: s.billingURL(),
		ButtonTxt: "View subscription",
	})
}

func (s *smtpBillingMailer) SendDowngradeNotice(merchant dbm.Merchant, to dbm.SubscriptionStatus) error {
	var title, line string
	switch to {
	case dbm.SubStatusOverdue:
		title = "Your subscription is overdue"
		line = "Your payment is late. Your menu keeps working during the grace period, but please renew to avoid suspension."
	case dbm.SubStatusSuspended:
		title = "Your subscription was suspended"
		line = "Changes to your store are blocked until a payment is confirmed. Your customers can still see your menu."
	default:
		return nil
	}

	return s.deliver(merchant.Email, billingEmail{
		Title:     title,
		Lines:     []string{line},
		ButtonURL: s.billingURL(),
		ButtonTxt: "Renew now",
	})
}

func (s *smtpBillingMailer) billingURL() string {
	return strings.TrimRight(s.cfg.BaseURL, "/") + utils.BillingRedirect
}

func (s *smtpBillingMailer) deliver(to string, data billingEmail) error {
	if to == "" {
		return nil
	}
	data.AppName = s.cfg.AppName
	data.Year = time.Now().Year()

	var hb, tb bytes.Buffer
	if err := s.htmlTpl.Execute(&hb, data); err != nil {
		return err
	}
	if err := s.textTpl.Execute(&tb, data); err != nil {
		return err
	}
	return s.send(to, data.Title, hb.String(), tb.String())
}

func (s *smtpBillingMailer) send(to, subject, htmlBody, textBody string) error {
	from := (&mail.Address{Name: s.cfg.FromName, Address: s.cfg.From}).String()
	boundary := fmt.Sprintf("alt_%d", time.Now().UnixNano())

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary)
	fmt.Fprintf(&msg, "--%s\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s\r\n\r\n", boundary, textBody)
	fmt.Fprintf(&msg, "--%s\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s\r\n\r\n", boundary, htmlBody)
	fmt.Fprintf(&msg, "--%s--\r\n", boundary)

	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprint(s.cfg.Port))
	tlsCfg := &tls.Config{ServerName: s.cfg.Host, MinVersion: tls.VersionTLS12}

	var conn net.Conn
	var err error
	if s.cfg.Port == 465 {
		conn, err = tls.DialWithDialer(&net.Dialer{Timeout: 10 * time.Second}, "tcp", addr, tlsCfg)
	} else {
		conn, err = net.DialTimeout("tcp", addr, 10*time.Second)
	}
	if err != nil {
		return err
	}
	defer conn.Close()

	c, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		return err
	}
	defer c.Quit()

	if ok, _ := c.Extension("STARTTLS"); ok && s.cfg.Port != 465 {
		if err = c.StartTLS(tlsCfg); err != nil {
			return err
		}
	}
	if s.cfg.Username != "" {
		if err = c.Auth(smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)); err != nil {
			return err
		}
	}
	if err = c.Mail(s.cfg.From); err != nil {
		return err
	}
	if err = c.Rcpt(to); err != nil {
		return err
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err = w.Write(msg.Bytes()); err != nil {
		return err
	}
	return w.Close()
}

func methodLabel(m dbm.PaymentMethod) string {
	if m == dbm.PaymentMethodCreditCard {
		return "credit card"
	}
	return "PIX"
}

type noopMailer struct{}

func (noopMailer) SendPaymentReceipt(merchant dbm.Merchant, _ decimal.Decimal, _ dbm.PaymentMethod, chargeID string) error {
	log.Debug().Str("merchant_id", merchant.ID.String()).Str("charge_id", chargeID).Msg("mail disabled, receipt skipped")
	return nil
}

func (noopMailer) SendDowngradeNotice(merchant dbm.Merchant, to dbm.SubscriptionStatus) error {
	log.Debug().Str("merchant_id", merchant.ID.String()).Str("to", string(to)).Msg("mail disabled, notice skipped")
	return nil
}

const billingHTMLTemplate = `<!doctype html>
<html>
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width,initial-scale=1">
  <title>{{.Title}}</title>
  <style>
    body { margin: 0; padding: 0; background: #f8fafc; color: #0f172a; font-family: -apple-system, "Segoe UI", Roboto, Arial, sans-serif; }
    .container { max-width: 560px; margin: 32px auto; background: #ffffff; border-radius: 12px; padding: 32px; }
    .brand { font-weight: 700; font-size: 20px; color: #16a34a; margin-bottom: 24px; }
    h1 { font-size: 24px; margin: 0 0 16px; }
    p { line-height: 1.6; color: #334155; margin: 0 0 12px; }
    .btn { display: inline-block; margin-top: 16px; padding: 12px 24px; background: #16a34a; color: #ffffff !important; text-decoration: none; border-radius: 8px; font-weight: 600; }
    .footer { margin-top: 32px; color: #94a3b8; font-size: 12px; text-align: center; }
  </style>
</head>
<body>
  <div class="container">
    <div class="brand">{{.AppName}}</div>
    <h1>{{.Title}}</h1>
    {{range .Lines}}<p>{{.}}</p>{{end}}
    {{if .ButtonURL}}<a class="btn" href="{{.ButtonURL}}">{{.ButtonTxt}}</a>{{end}}
    <div class="footer">© {{.Year}} {{.AppName}}</div>
  </div>
</body>
</html>`

const billingTextTemplate = `{{.Title}}

{{range .Lines}}{{.}}
{{end}}
{{if .ButtonURL}}{{.ButtonTxt}}: {{.ButtonURL}}
{{end}}
{{.AppName}} (c) {{.Year}}
`
