package email

import (
	"crypto/tls"
	"fmt"
	"log"
	"net/smtp"
	"net/url"
	"os"
	"strings"

	"github.com/lunamail/listserv-backend/models"
	"github.com/lunamail/listserv-backend/util"
)

// Config stores variables needed to submit emails for sending, as well as
// to generate the confirm and unsubscribe links they carry.
type Config struct {
	auth               smtp.Auth
	username           string
	password           string
	submissionHostname string
	port               string
	sender             string
	website            string // Base URL for links in outgoing mail.
}

// MakeConfigFromEnv initializes our email config object with
// environment variables. With no SMTP_ENDPOINT set the sender runs in
// log-only mode and never submits mail; the other SMTP variables are then
// not required.
func MakeConfigFromEnv() (Config, error) {
	// create config
	varErrs := util.Errors{}
	c := Config{
		sender:  util.RequireEnv("SMTP_FROM_ADDRESS", &varErrs),
		website: util.RequireEnv("WEBSITE_LINK", &varErrs),
	}
	c.submissionHostname = os.Getenv("SMTP_ENDPOINT")
	if c.submissionHostname == "" {
		if len(varErrs) > 0 {
			return c, varErrs
		}
		log.Println("Warning: SMTP_ENDPOINT not set, outgoing mail will only be logged")
		return c, nil
	}
	c.username = util.RequireEnv("SMTP_USERNAME", &varErrs)
	c.password = util.RequireEnv("SMTP_PASSWORD", &varErrs)
	c.port = util.RequireEnv("SMTP_PORT", &varErrs)
	if len(varErrs) > 0 {
		return c, varErrs
	}
	log.Printf("Establishing auth connection with SMTP server %s", c.submissionHostname)
	// create auth
	client, err := smtp.Dial(fmt.Sprintf("%s:%s", c.submissionHostname, c.port))
	if err != nil {
		return c, err
	}
	defer client.Close()
	err = client.StartTLS(&tls.Config{ServerName: c.submissionHostname})
	if err != nil {
		return c, fmt.Errorf("SMTP server doesn't support STARTTLS")
	}
	ok, auths := client.Extension("AUTH")
	if !ok {
		return c, fmt.Errorf("remote SMTP server doesn't support any authentication mechanisms")
	}
	if strings.Contains(auths, "PLAIN") {
		c.auth = smtp.PlainAuth("", c.username, c.password, c.submissionHostname)
	} else if strings.Contains(auths, "CRAM-MD5") {
		c.auth = smtp.CRAMMD5Auth(c.username, c.password)
	} else {
		return c, fmt.Errorf("SMTP server doesn't support PLAIN or CRAM-MD5 authentication")
	}
	return c, nil
}

// ConfirmLink returns the confirmation URL for a subscription's token.
func (c Config) ConfirmLink(token string) string {
	return fmt.Sprintf("%s/confirm?token=%s", c.website, url.QueryEscape(token))
}

// UnsubscribeLink returns the self-service removal URL for a subscription's
// token.
func (c Config) UnsubscribeLink(token string) string {
	return fmt.Sprintf("%s/unsubscribe?token=%s", c.website, url.QueryEscape(token))
}

// SendConfirmation sends the double-opt-in confirmation e-mail for a freshly
// created subscription. The link carries the record's token, which is the
// entire credential for the confirm step.
func (c Config) SendConfirmation(subscription models.Subscription) error {
	content := confirmationEmailText(subscription.List, c.ConfirmLink(subscription.Token))
	return c.sendEmail(confirmationEmailSubject, "text/plain", content, subscription.Email)
}

// SendBroadcast sends one broadcast message to one confirmed subscriber,
// with that subscriber's own unsubscribe link appended to the HTML body.
func (c Config) SendBroadcast(subscription models.Subscription, subject string, htmlBody string) error {
	content := htmlBody + broadcastFooter(c.UnsubscribeLink(subscription.Token))
	return c.sendEmail(subject, "text/html", content, subscription.Email)
}

func (c Config) sendEmail(subject string, contentType string, body string, address string) error {
	message := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: %s; charset=\"UTF-8\"\r\n\r\n%s",
		c.sender, address, subject, contentType, body)
	if c.submissionHostname == "" {
		log.Println("Warning: email host not configured, not sending email")
		log.Println(message)
		return nil
	}
	return smtp.SendMail(fmt.Sprintf("%s:%s", c.submissionHostname, c.port),
		c.auth,
		c.sender, []string{address}, []byte(message))
}
