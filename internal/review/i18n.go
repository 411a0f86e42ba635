package review

import (
	"embed"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localesFS embed.FS

// defaultLanguage is used when the client asks for nothing we have.
var defaultLanguage = language.German

var locales = []string{"de", "en"}

func newBundle() (*i18n.Bundle, error) {
	bundle := i18n.NewBundle(defaultLanguage)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)
	for _, l := range locales {
		data, err := localesFS.ReadFile("locales/" + l + ".json")
		if err != nil {
			return nil, fmt.Errorf("read locale %s: %w", l, err)
		}
		if _, err := bundle.ParseMessageFileBytes(data, l+".json"); err != nil {
			return nil, fmt.Errorf("parse locale %s: %w", l, err)
		}
	}
	return bundle, nil
}

// localize renders messageID for the request's Accept-Language.
func (s *Server) localize(r *http.Request, messageID string, data map[string]any) string {
	loc := i18n.NewLocalizer(s.bundle, r.Header.Get("Accept-Language"))
	msg, err := loc.Localize(&i18n.LocalizeConfig{MessageID: messageID, TemplateData: data})
	if err != nil {
		return messageID
	}
	return msg
}

// pageLanguage picks the html lang attribute for the landing page.
func pageLanguage(r *http.Request) string {
	tags, _, err := language.ParseAcceptLanguage(r.Header.Get("Accept-Language"))
	if err != nil || len(tags) == 0 {
		return defaultLanguage.String()
	}
	matcher := language.NewMatcher([]language.Tag{language.German, language.English})
	_, idx, _ := matcher.Match(tags...)
	return []string{"de", "en"}[idx]
}
