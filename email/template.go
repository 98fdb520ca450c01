package email

import "fmt"

const confirmationEmailSubject = "Please confirm your subscription"

const confirmationEmailTemplate = `
Hey there!

It looks like you asked to join the *%[1]s* mailing list. If this was you, visit

 %[2]s

to confirm! If this wasn't you, you can safely ignore this message and the
request will go nowhere.

Thanks!
`

const broadcastFooterTemplate = `
<hr>
<p style="font-size:small;color:#666">You are receiving this because you confirmed your subscription. <a href="%s">Unsubscribe</a>.</p>
`

func confirmationEmailText(list string, confirmLink string) string {
	return fmt.Sprintf(confirmationEmailTemplate, list, confirmLink)
}

func broadcastFooter(unsubscribeLink string) string {
	return fmt.Sprintf(broadcastFooterTemplate, unsubscribeLink)
}
