// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package i18n holds the translated texts of outgoing mails and the
// language negotiated for a request.
package i18n

import (
	"context"
	"embed"
	"sync"

	"codeberg.org/oliverandrich/infographic-api/internal/ctxkeys"
	"github.com/BurntSushi/toml"
	goi18n "github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed translations/*.toml
var translationFS embed.FS

// Supported lists the languages with translation files, default first.
var Supported = []language.Tag{
	language.English,
	language.German,
}

var (
	loadOnce   sync.Once
	loadErr    error
	localizers map[language.Tag]*goi18n.Localizer
	matcher    = language.NewMatcher(Supported)
)

// Init loads the embedded translations and prepares one localizer per
// supported language. Lookups call it implicitly.
func Init() error {
	loadOnce.Do(func() {
		bundle := goi18n.NewBundle(Supported[0])
		bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)

		loaded := make(map[language.Tag]*goi18n.Localizer, len(Supported))
		for _, tag := range Supported {
			file := "translations/active." + tag.String() + ".toml"
			if _, err := bundle.LoadMessageFileFS(translationFS, file); err != nil {
				loadErr = err
				return
			}
			loaded[tag] = goi18n.NewLocalizer(bundle, tag.String())
		}
		localizers = loaded
	})
	return loadErr
}

// Negotiate picks the supported language closest to an Accept-Language
// header. Unparseable or unsupported headers get the default.
func Negotiate(acceptLanguage string) language.Tag {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil {
		return Supported[0]
	}
	_, idx, _ := matcher.Match(tags...)
	return Supported[idx]
}

// WithLanguage returns a copy of ctx carrying lang.
func WithLanguage(ctx context.Context, lang language.Tag) context.Context {
	return context.WithValue(ctx, ctxkeys.Language{}, lang)
}

// Language returns the language carried by ctx, or the default.
func Language(ctx context.Context) language.Tag {
	if lang, ok := ctx.Value(ctxkeys.Language{}).(language.Tag); ok {
		return lang
	}
	return Supported[0]
}

// T translates messageID into the language of ctx.
func T(ctx context.Context, messageID string) string {
	return TData(ctx, messageID, nil)
}

// TData translates messageID with template data. Unknown IDs come back
// unchanged.
func TData(ctx context.Context, messageID string, data map[string]any) string {
	if err := Init(); err != nil {
		return messageID
	}
	localizer, ok := localizers[Language(ctx)]
	if !ok {
		localizer = localizers[Supported[0]]
	}
	msg, err := localizer.Localize(&goi18n.LocalizeConfig{
		MessageID:    messageID,
		TemplateData: data,
	})
	if err != nil {
		return messageID
	}
	return msg
}
