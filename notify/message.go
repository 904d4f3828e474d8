package notify

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"strings"
)

// ErrConfiguration marks a channel that cannot start because settings are missing.
var ErrConfiguration = errors.New("channel configuration error")

// Message is the content sent for one researcher and one batch of new publications.
type Message struct {
	OrcidID        string
	ResearcherName string
	Titles         []string
}

// Subject is used as email subject and push title.
func (m Message) Subject() string {
	return fmt.Sprintf("New publications from %s", m.ResearcherName)
}

func (m Message) summary() string {
	if len(m.Titles) == 1 {
		return fmt.Sprintf("We found 1 new publication for %s, whom you are monitoring:", m.ResearcherName)
	}
	return fmt.Sprintf("We found %d new publications for %s, whom you are monitoring:", len(m.Titles), m.ResearcherName)
}

// Text renders the plain text body.
func (m Message) Text() string {
	var b strings.Builder
	b.WriteString("Hello!\n")
	b.WriteString(m.summary())
	b.WriteString("\n")
	for _, t := range m.Titles {
		b.WriteString(" - ")
		b.WriteString(t)
		b.WriteString("\n")
	}
	return b.String()
}

var htmlBody = template.Must(template.New("email").Parse(`<div style="font-family: sans-serif; line-height: 1.6;">
  <h2>Monitoring alert - Projeto Orquídea</h2>
  <p>Hello!</p>
  <p>{{.Summary}}</p>
  <ul style="padding-left: 20px;">
    {{- range .Titles}}
    <li>{{.}}</li>
    {{- end}}
  </ul>
  <p>Open the researcher profile on the platform for details.</p>
</div>`))

// HTML renders the email body. Titles are escaped.
func (m Message) HTML() (string, error) {
	var buf bytes.Buffer
	err := htmlBody.Execute(&buf, struct {
		Summary string
		Titles  []string
	}{m.summary(), m.Titles})
	return buf.String(), err
}

type pushPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Tag   string `json:"tag"`
}

// PushPayload is the JSON document handed to the service worker.
func (m Message) PushPayload() ([]byte, error) {
	return json.Marshal(pushPayload{
		Title: m.Subject(),
		Body:  strings.TrimRight(m.Text(), "\n"),
		Tag:   "researcher-" + m.OrcidID,
	})
}
