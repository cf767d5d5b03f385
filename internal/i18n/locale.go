package i18n

import (
	"net/http"
	"strings"
)

const DefaultLocale = "en"

var supportedLocales = map[string]struct{}{
	"en": {},
	"de": {},
}

// LocaleFromRequest prefers an explicit ?lang= over Accept-Language.
func LocaleFromRequest(r *http.Request) string {
	if r == nil {
		return DefaultLocale
	}
	if lang := r.URL.Query().Get("lang"); lang != "" {
		if l, ok := supported(lang); ok {
			return l
		}
	}
	return NormalizeLocale(r.Header.Get("Accept-Language"))
}

// NormalizeLocale picks the first supported language from an
// Accept-Language style list, ignoring q-values and regions.
func NormalizeLocale(header string) string {
	for _, part := range strings.Split(header, ",") {
		lang, _, _ := strings.Cut(part, ";")
		if l, ok := supported(lang); ok {
			return l
		}
	}
	return DefaultLocale
}

func supported(tag string) (string, bool) {
	lang := strings.ToLower(strings.TrimSpace(tag))
	lang, _, _ = strings.Cut(lang, "-")
	if lang == "" {
		return "", false
	}
	_, ok := supportedLocales[lang]
	return lang, ok
}
