package main

import (
	"bytes"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testClient(serverURL string) (*client, *bytes.Buffer) {
	out := &bytes.Buffer{}
	return &client{baseURL: serverURL, secret: "cli-secret", out: out}, out
}

func TestDraftOutput(t *testing.T) {
	c, out := testClient("")
	if err := run([]string{"draft"}, c); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "<html>") {
		t.Errorf("draft should print an HTML skeleton, got %s", out.String())
	}
}

func TestSnippetOutput(t *testing.T) {
	c, out := testClient("https://lists.example.com")
	if err := run([]string{"snippet", "-list", "blog"}, c); err != nil {
		t.Fatal(err)
	}
	html := out.String()
	if !strings.Contains(html, "https://lists.example.com/subscribe") {
		t.Errorf("snippet should point at the server, got %s", html)
	}
	if !strings.Contains(html, "blog") {
		t.Errorf("snippet should name the list, got %s", html)
	}
}

func TestSnippetRequiresList(t *testing.T) {
	c, _ := testClient("")
	if err := run([]string{"snippet"}, c); err == nil {
		t.Error("snippet without -list should fail")
	}
}

func TestSendPostsFileContents(t *testing.T) {
	var gotAuth, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		body, _ := ioutil.ReadAll(r.Body)
		gotBody = string(body)
		w.Write([]byte(`{"sent": 2, "failed": 0}`))
	}))
	defer server.Close()

	htmlFile := filepath.Join(t.TempDir(), "body.html")
	if err := os.WriteFile(htmlFile, []byte("<p>news</p>"), 0o600); err != nil {
		t.Fatal(err)
	}

	c, out := testClient(server.URL)
	err := run([]string{"send", "-list", "blog", "-subject", "News", "-html", htmlFile}, c)
	if err != nil {
		t.Fatal(err)
	}
	if gotAuth != "Bearer cli-secret" {
		t.Errorf("expected bearer header, got %q", gotAuth)
	}
	if !strings.Contains(gotBody, "<p>news</p>") || !strings.Contains(gotBody, `"subject":"News"`) {
		t.Errorf("unexpected request body %s", gotBody)
	}
	if !strings.Contains(out.String(), `"sent": 2`) {
		t.Errorf("server reply should be echoed, got %s", out.String())
	}
}

func TestCallReportsServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": "unauthorized"}`))
	}))
	defer server.Close()

	c, _ := testClient(server.URL)
	err := run([]string{"list"}, c)
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Errorf("expected a 401 error, got %v", err)
	}
}

func TestUnknownCommand(t *testing.T) {
	c, _ := testClient("")
	if err := run([]string{"bogus"}, c); err == nil {
		t.Error("unknown command should fail")
	}
}
