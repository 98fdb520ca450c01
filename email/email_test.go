package email

import (
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/mhale/smtpd"

	"github.com/lunamail/listserv-backend/models"
	"github.com/lunamail/listserv-backend/util"
)

func TestConfirmationEmailText(t *testing.T) {
	content := confirmationEmailText("blog", "https://lists.example.com/confirm?token=abcd")
	if !strings.Contains(content, "https://lists.example.com/confirm?token=abcd") {
		t.Errorf("E-mail formatted incorrectly.")
	}
	if !strings.Contains(content, "*blog*") {
		t.Errorf("E-mail should name the list, got %s", content)
	}
}

func TestLinksEscapeToken(t *testing.T) {
	c := Config{website: "https://lists.example.com"}
	link := c.UnsubscribeLink("a token&x")
	if !strings.Contains(link, "a+token%26x") {
		t.Errorf("token not escaped in link: %s", link)
	}
}

func TestRequireEnvConfig(t *testing.T) {
	requiredVars := map[string]string{
		"SMTP_USERNAME":     "",
		"SMTP_PASSWORD":     "",
		"SMTP_ENDPOINT":     "",
		"SMTP_PORT":         "",
		"SMTP_FROM_ADDRESS": "",
		"WEBSITE_LINK":      ""}
	for varName := range requiredVars {
		requiredVars[varName] = os.Getenv(varName)
		os.Setenv(varName, "")
	}
	_, err := MakeConfigFromEnv()
	if err == nil {
		t.Errorf("should have received multiple error from unset env vars")
	}
	for varName, varValue := range requiredVars {
		os.Setenv(varName, varValue)
	}
}

func TestLogOnlyConfigNeedsNoSMTPCredentials(t *testing.T) {
	for _, varName := range []string{"SMTP_USERNAME", "SMTP_PASSWORD", "SMTP_ENDPOINT", "SMTP_PORT"} {
		t.Setenv(varName, "")
	}
	t.Setenv("SMTP_FROM_ADDRESS", "sender@example.com")
	t.Setenv("WEBSITE_LINK", "https://lists.example.com")
	c, err := MakeConfigFromEnv()
	if err != nil {
		t.Fatalf("log-only config should not need SMTP credentials: %v", err)
	}
	if c.submissionHostname != "" {
		t.Errorf("expected no submission host, got %s", c.submissionHostname)
	}
}

func TestRequireMissingEnvReportsError(t *testing.T) {
	varErrs := util.Errors{}
	util.RequireEnv("FAKE_ENV_VAR", &varErrs)
	if len(varErrs) == 0 {
		t.Errorf("should have received an error")
	}
}

func TestUnconfiguredSenderLogsInsteadOfSending(t *testing.T) {
	c := Config{sender: "sender@example.com", website: "https://lists.example.com"}
	subscription, err := models.NewSubscription("user@example.com", "blog")
	if err != nil {
		t.Fatal(err)
	}
	if err := c.SendConfirmation(subscription); err != nil {
		t.Errorf("unconfigured sender should be a no-op, got %v", err)
	}
}

// smtpListenAndServe creates a test smtp sink to deliver into. We use
// net.Listen rather than smtpd.ListenAndServe so that we can grab a random
// available port.
func smtpListenAndServe(t *testing.T, handler smtpd.Handler) net.Listener {
	srv := &smtpd.Server{
		Handler:  handler,
		Hostname: "localhost",
	}
	ln, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		t.Fatal(err)
	}
	go func() {
		if err := srv.Serve(ln); err != nil {
			if strings.Contains(err.Error(), "closed") {
				return
			}
			t.Error(err)
		}
	}()
	return ln
}

func TestSendBroadcastDelivers(t *testing.T) {
	received := make(chan []byte, 1)
	ln := smtpListenAndServe(t, func(_ net.Addr, _ string, _ []string, data []byte) error {
		received <- data
		return nil
	})
	defer ln.Close()

	_, port, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	c := Config{
		submissionHostname: "localhost",
		port:               port,
		sender:             "sender@example.com",
		website:            "https://lists.example.com",
	}
	subscription, err := models.NewSubscription("user@example.com", "blog")
	if err != nil {
		t.Fatal(err)
	}
	if err := c.SendBroadcast(subscription, "News", "<p>hello</p>"); err != nil {
		t.Fatalf("SendBroadcast failed: %v", err)
	}
	select {
	case data := <-received:
		body := string(data)
		if !strings.Contains(body, "<p>hello</p>") {
			t.Errorf("broadcast body missing, got %s", body)
		}
		if !strings.Contains(body, "/unsubscribe?token="+subscription.Token) {
			t.Errorf("unsubscribe link missing from %s", body)
		}
		if !strings.Contains(body, "Subject: News") {
			t.Errorf("subject missing from %s", body)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no message delivered to SMTP sink")
	}
}
