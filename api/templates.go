package api

import "html/template"

// Pages served to subscribers who click a link from their inbox. Inlined so
// the binary has no view directory to carry around.

const confirmedPage = `<!DOCTYPE html>
<html>
<head><title>Subscription confirmed</title></head>
<body>
<h1>You're subscribed!</h1>
<p>{{.Email}} is now confirmed on the <strong>{{.List}}</strong> list.</p>
</body>
</html>
`

const unsubscribedPage = `<!DOCTYPE html>
<html>
<head><title>Unsubscribed</title></head>
<body>
<h1>You've been unsubscribed</h1>
<p>{{.Email}} will no longer receive mail from the <strong>{{.List}}</strong> list.</p>
</body>
</html>
`

// ParseTemplates initializes our HTML template data.
func (api *API) ParseTemplates() {
	api.Templates = map[string]*template.Template{
		"confirmed":    template.Must(template.New("confirmed").Parse(confirmedPage)),
		"unsubscribed": template.Must(template.New("unsubscribed").Parse(unsubscribedPage)),
	}
}
