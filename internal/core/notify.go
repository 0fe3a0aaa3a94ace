package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/seckatie/opinionwatch/internal/core/db"
	"github.com/wneessen/go-mail"
)

// ErrNoRecipient is returned when no recipient address is configured.
var ErrNoRecipient = errors.New("no recipient configured")

// Notifier delivers the summary of a run's new opinions.
type Notifier interface {
	Notify(ctx context.Context, opinions []db.Opinion, results []FetchResult) error
}

// Sender is the outbound mail transport. *mail.Client satisfies it.
type Sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// MailOptions configures the SMTP transport and envelope.
type MailOptions struct {
	From     string
	To       string
	Password string
	Server   string
	Port     int
	// Timeout bounds the SMTP dial and conversation. If <= 0,
	// DefaultSMTPTimeout is used.
	Timeout time.Duration
}

// smtpAuth lets the client pick the strongest mechanism the server offers
// after STARTTLS rather than assuming PLAIN.
const smtpAuth = mail.SMTPAuthAutoDiscover

// NewSMTPClient returns a client that logs in as opts.From over a
// connection that must be upgraded with STARTTLS.
func NewSMTPClient(opts MailOptions) (*mail.Client, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultSMTPTimeout
	}
	client, err := mail.NewClient(opts.Server,
		mail.WithPort(opts.Port),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithSMTPAuth(smtpAuth),
		mail.WithUsername(opts.From),
		mail.WithPassword(opts.Password),
		mail.WithTimeout(timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create SMTP client: %w", err)
	}
	return client, nil
}

// MailNotifier emails the summary with the fetched PDFs attached.
type MailNotifier struct {
	From   string
	To     []string
	Sender Sender
	Now    func() time.Time
}

// NewMailNotifier returns a notifier sending through SMTP as configured by opts.
// EMAIL_TO may list several addresses separated by commas.
func NewMailNotifier(opts MailOptions) (*MailNotifier, error) {
	client, err := NewSMTPClient(opts)
	if err != nil {
		return nil, err
	}
	return &MailNotifier{
		From:   opts.From,
		To:     splitAddresses(opts.To),
		Sender: client,
		Now:    time.Now,
	}, nil
}

// Notify sends one message for the whole run. Failed downloads are left
// out of the attachments; the summary still lists every opinion.
func (n *MailNotifier) Notify(ctx context.Context, opinions []db.Opinion, results []FetchResult) error {
	msg, attached, err := n.Compose(opinions, results)
	if err != nil {
		return fmt.Errorf("failed to compose email: %w", err)
	}
	if err := n.Sender.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	log.Printf("Email sent successfully with %d attachments", attached)
	return nil
}

// Compose builds the message and returns it with the attachment count.
func (n *MailNotifier) Compose(opinions []db.Opinion, results []FetchResult) (*mail.Msg, int, error) {
	if len(n.To) == 0 {
		return nil, 0, ErrNoRecipient
	}
	now := time.Now
	if n.Now != nil {
		now = n.Now
	}

	msg := mail.NewMsg()
	if err := msg.From(n.From); err != nil {
		return nil, 0, fmt.Errorf("invalid sender %q: %w", n.From, err)
	}
	if err := msg.To(n.To...); err != nil {
		return nil, 0, fmt.Errorf("invalid recipient: %w", err)
	}
	msg.Subject(Subject(now()))
	msg.SetDate()
	msg.SetBodyString(mail.TypeTextPlain, SummaryBody(opinions))

	attached := 0
	for _, r := range results {
		if !r.OK() {
			continue
		}
		err := msg.AttachReader(r.Document.Filename, bytes.NewReader(r.Document.Content),
			mail.WithFileContentType(mail.ContentType("application/pdf")))
		if err != nil {
			return nil, 0, fmt.Errorf("failed to attach %s: %w", r.Document.Filename, err)
		}
		attached++
	}
	return msg, attached, nil
}

// Subject returns the subject line for a run on day now.
func Subject(now time.Time) string {
	return "New Delaware Court of Chancery Opinions - " + now.Format("2006-01-02")
}

// SummaryBody lists each opinion's title and URL.
func SummaryBody(opinions []db.Opinion) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d new opinion(s):\n\n", len(opinions))
	for _, o := range opinions {
		fmt.Fprintf(&b, "- %s\n  %s\n\n", o.Title, o.URL)
	}
	return b.String()
}

func splitAddresses(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if addr := strings.TrimSpace(part); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}
