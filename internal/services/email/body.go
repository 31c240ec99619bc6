// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package email

import (
	"context"
	"fmt"
	"io"
	"strings"

	"codeberg.org/oliverandrich/infographic-api/internal/i18n"
	"codeberg.org/oliverandrich/infographic-api/internal/models"
	"github.com/a-h/templ"
)

type content struct {
	Greeting  string
	Intro     string
	Action    string
	URL       string
	Ignore    string
	Signature string
}

// compose renders the mail identified by kind (the message ID prefix in
// the translation files) in the locale carried by ctx.
func compose(ctx context.Context, user *models.User, kind, link string) (*Message, error) {
	c := content{
		Greeting:  i18n.TData(ctx, "email_greeting", map[string]any{"Name": firstName(user.Name)}),
		Intro:     i18n.T(ctx, kind+"_intro"),
		Action:    i18n.T(ctx, kind+"_action"),
		URL:       link,
		Ignore:    i18n.T(ctx, kind+"_ignore"),
		Signature: i18n.T(ctx, "email_signature"),
	}

	buf := templ.GetBuffer()
	defer templ.ReleaseBuffer(buf)

	if err := htmlBody(c).Render(ctx, buf); err != nil {
		return nil, fmt.Errorf("rendering %s mail: %w", kind, err)
	}

	return &Message{
		To:       user.Email,
		Subject:  i18n.T(ctx, kind+"_subject"),
		Text:     textBody(c),
		HTML:     buf.String(),
		Language: i18n.Language(ctx).String(),
	}, nil
}

func textBody(c content) string {
	var b strings.Builder
	b.WriteString(c.Greeting + "\n\n")
	b.WriteString(c.Intro + "\n\n")
	b.WriteString(c.URL + "\n\n")
	b.WriteString(c.Ignore + "\n\n")
	b.WriteString("-- \n" + c.Signature + "\n")
	return b.String()
}

func htmlBody(c content) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w,
			`<!DOCTYPE html><html><body style="font-family:sans-serif">`+
				`<p>%s</p><p>%s</p>`+
				`<p><a href="%s" style="display:inline-block;padding:10px 16px;background:#2563eb;color:#fff;text-decoration:none;border-radius:4px">%s</a></p>`+
				`<p style="color:#6b7280">%s</p><p>%s</p>`+
				`</body></html>`,
			templ.EscapeString(c.Greeting),
			templ.EscapeString(c.Intro),
			templ.EscapeString(c.URL),
			templ.EscapeString(c.Action),
			templ.EscapeString(c.Ignore),
			templ.EscapeString(c.Signature),
		)
		return err
	})
}

func firstName(name string) string {
	first, _, _ := strings.Cut(strings.TrimSpace(name), " ")
	return first
}
