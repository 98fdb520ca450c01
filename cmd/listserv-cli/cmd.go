package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"os"

	"github.com/joho/godotenv"
)

// Operator CLI for the listserv backend. The server-side commands (add,
// list, delete, send) are thin wrappers over the admin HTTP endpoints;
// draft and snippet are local conveniences with no server round-trip.

const usageText = `usage: listserv-cli <command> [flags]

commands talking to the server (need LISTSERV_URL and ADMIN_SECRET):
  add     -email <addr> -list <name>      add an already-confirmed subscriber
  list    [-list <name>]                  list subscribers, newest first
  delete  -email <addr> [-list <name>]    remove a subscriber (all lists if -list omitted)
  send    -list <name> -subject <text> -html <file>   broadcast an HTML e-mail

local helpers:
  draft                                   print an HTML e-mail skeleton
  snippet -list <name>                    print a subscribe-form HTML snippet
`

func usage() {
	fmt.Fprint(os.Stderr, usageText)
}

type client struct {
	baseURL string
	secret  string
	out     io.Writer
}

// call issues one admin API request and pretty-prints the JSON reply.
func (c *client) call(method string, path string, payload interface{}) error {
	var body *bytes.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	} else {
		body = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.secret)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	reply, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned %s: %s", resp.Status, bytes.TrimSpace(reply))
	}
	fmt.Fprintf(c.out, "%s", reply)
	return nil
}

func (c *client) add(args []string) error {
	flags := flag.NewFlagSet("add", flag.ExitOnError)
	email := flags.String("email", "", "subscriber address")
	list := flags.String("list", "", "list name")
	flags.Parse(args)
	if *email == "" || *list == "" {
		return fmt.Errorf("add requires -email and -list")
	}
	return c.call("POST", "/admin/add", map[string]string{"email": *email, "list": *list})
}

func (c *client) list(args []string) error {
	flags := flag.NewFlagSet("list", flag.ExitOnError)
	list := flags.String("list", "", "list name (all lists if empty)")
	flags.Parse(args)
	path := "/admin/list"
	if *list != "" {
		path += "?list=" + url.QueryEscape(*list)
	}
	return c.call("GET", path, nil)
}

func (c *client) delete(args []string) error {
	flags := flag.NewFlagSet("delete", flag.ExitOnError)
	email := flags.String("email", "", "subscriber address")
	list := flags.String("list", "", "list name (all lists if empty)")
	flags.Parse(args)
	if *email == "" {
		return fmt.Errorf("delete requires -email")
	}
	payload := map[string]string{"email": *email}
	if *list != "" {
		payload["list"] = *list
	}
	return c.call("POST", "/admin/delete", payload)
}

func (c *client) send(args []string) error {
	flags := flag.NewFlagSet("send", flag.ExitOnError)
	list := flags.String("list", "", "list to broadcast to")
	subject := flags.String("subject", "", "e-mail subject")
	htmlFile := flags.String("html", "", "file containing the HTML body")
	flags.Parse(args)
	if *list == "" || *subject == "" || *htmlFile == "" {
		return fmt.Errorf("send requires -list, -subject and -html")
	}
	html, err := ioutil.ReadFile(*htmlFile)
	if err != nil {
		return err
	}
	return c.call("POST", "/send", map[string]string{
		"list":    *list,
		"subject": *subject,
		"html":    string(html),
	})
}

const draftTemplate = `<html>
<body>
<h1>Your headline</h1>
<p>Write something worth reading.</p>
</body>
</html>
`

// draft prints an HTML skeleton suitable for the send command's -html file.
func (c *client) draft(args []string) error {
	fmt.Fprint(c.out, draftTemplate)
	return nil
}

const snippetTemplate = `<form method="POST" action="%[1]s/subscribe" onsubmit="fetch('%[1]s/subscribe',{method:'POST',headers:{'Content-Type':'application/json'},body:JSON.stringify({email:this.email.value,list:'%[2]s'})}).then(r=>alert(r.ok?'Check your inbox to confirm!':'Subscription failed.'));return false">
  <input type="email" name="email" placeholder="you@example.com" required>
  <button type="submit">Subscribe to %[2]s</button>
</form>
`

// snippet prints a copy-pasteable subscribe form pointed at the server.
func (c *client) snippet(args []string) error {
	flags := flag.NewFlagSet("snippet", flag.ExitOnError)
	list := flags.String("list", "", "list the form subscribes to")
	flags.Parse(args)
	if *list == "" {
		return fmt.Errorf("snippet requires -list")
	}
	fmt.Fprintf(c.out, snippetTemplate, c.baseURL, *list)
	return nil
}

func getEnvOrDefault(varName string, defaultValue string) string {
	envVar := os.Getenv(varName)
	if len(envVar) == 0 {
		envVar = defaultValue
	}
	return envVar
}

func run(args []string, c *client) error {
	if len(args) == 0 {
		usage()
		return fmt.Errorf("no command given")
	}
	switch args[0] {
	case "add":
		return c.add(args[1:])
	case "list":
		return c.list(args[1:])
	case "delete":
		return c.delete(args[1:])
	case "send":
		return c.send(args[1:])
	case "draft":
		return c.draft(args[1:])
	case "snippet":
		return c.snippet(args[1:])
	default:
		usage()
		return fmt.Errorf("unknown command %s", args[0])
	}
}

func main() {
	godotenv.Load()
	c := &client{
		baseURL: getEnvOrDefault("LISTSERV_URL", "http://localhost:8080"),
		secret:  os.Getenv("ADMIN_SECRET"),
		out:     os.Stdout,
	}
	if err := run(os.Args[1:], c); err != nil {
		fmt.Fprintf(os.Stderr, "listserv-cli: %v\n", err)
		os.Exit(1)
	}
}
