// Package notify renders the account emails and hands them to a mail
// transport.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/school-admin/internal/config"
	"github.com/iliyamo/school-admin/internal/mail"
	"github.com/iliyamo/school-admin/internal/utils"
)

const (
	subjectVerify = "Verify account"
	subjectSetup  = "Setup account password"
)

var (
	verifyTmpl = template.Must(template.New("verify").Parse(
		`<p>Welcome to School Admin.</p>` +
			`<p>Please <a href="{{.Link}}">verify your email address</a>. The link expires at {{.Expires}}.</p>`))
	setupTmpl = template.Must(template.New("setup").Parse(
		`<p>Your email address is verified.</p>` +
			`<p><a href="{{.Link}}">Set up your password</a> to finish activating your account. The link expires at {{.Expires}}.</p>`))
)

// Notifier mints single purpose tokens and mails the links that carry them.
type Notifier struct {
	Sender mail.Sender
	Verify config.TokenSettings
	Setup  config.TokenSettings
	APIURL string
	UIURL  string
	Log    logrus.FieldLogger
}

func New(cfg config.Config, sender mail.Sender, log logrus.FieldLogger) *Notifier {
	return &Notifier{
		Sender: sender,
		Verify: cfg.EmailVerificationToken,
		Setup:  cfg.PasswordSetupToken,
		APIURL: cfg.APIURL,
		UIURL:  cfg.UIURL,
		Log:    log,
	}
}

// SendAccountVerification mails a link to GET /api/v1/auth/verify-email/:token.
func (n *Notifier) SendAccountVerification(ctx context.Context, userID uint64, email string) error {
	tok, err := utils.IssueToken(utils.TokenClaims{UserID: userID}, n.Verify.Secret, n.Verify.TTL)
	if err != nil {
		return fmt.Errorf("issue verification token: %w", err)
	}
	link := n.APIURL + "/api/v1/auth/verify-email/" + tok.Token
	return n.send(ctx, email, subjectVerify, verifyTmpl, link, tok)
}

// SendPasswordSetup mails a link to the UI password setup page.
func (n *Notifier) SendPasswordSetup(ctx context.Context, userID uint64, email string) error {
	tok, err := utils.IssueToken(utils.TokenClaims{UserID: userID}, n.Setup.Secret, n.Setup.TTL)
	if err != nil {
		return fmt.Errorf("issue password setup token: %w", err)
	}
	link := n.UIURL + "/auth/setup-password/" + tok.Token
	return n.send(ctx, email, subjectSetup, setupTmpl, link, tok)
}

func (n *Notifier) send(ctx context.Context, to, subject string, tmpl *template.Template, link string, tok utils.SignedToken) error {
	var buf bytes.Buffer
	data := struct{ Link, Expires string }{link, tok.Exp.Format("2006-01-02 15:04 MST")}
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("render %q: %w", subject, err)
	}
	if err := n.Sender.Send(ctx, mail.Message{To: to, Subject: subject, HTML: buf.String()}); err != nil {
		return err
	}
	n.Log.WithFields(logrus.Fields{"to": to, "subject": subject}).Info("account email sent")
	return nil
}
