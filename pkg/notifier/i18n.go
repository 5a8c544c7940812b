package notifier

import (
	"embed"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed translations/*.yaml
var translationFS embed.FS

// DefaultLocale is used when a recipient's locale is empty or matches no
// loaded bundle.
const DefaultLocale = "en"

// Translator resolves localized strings for notification rendering. Bundles
// are nested YAML maps addressed by dot-separated keys, with %{name}
// placeholder substitution. A missing key falls back to the default locale
// and finally to the key itself, so rendering never produces an empty string
// for a typo'd key.
type Translator struct {
	mu       sync.RWMutex
	bundles  map[string]map[string]any
	matcher  language.Matcher
	locales  []string
	fallback string
}

// NewTranslator loads the embedded translation bundles. The default locale
// bundle must be present.
func NewTranslator() (*Translator, error) {
	return newTranslatorFromFS(translationFS, "translations")
}

func newTranslatorFromFS(fsys fs.FS, dir string) (*Translator, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read translation dir: %w", err)
	}

	bundles := make(map[string]map[string]any)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || (!strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml")) {
			continue
		}
		raw, err := fs.ReadFile(fsys, dir+"/"+name)
		if err != nil {
			return nil, fmt.Errorf("read bundle %s: %w", name, err)
		}
		var bundle map[string]any
		if err := yaml.Unmarshal(raw, &bundle); err != nil {
			return nil, fmt.Errorf("parse bundle %s: %w", name, err)
		}
		locale := strings.TrimSuffix(strings.TrimSuffix(name, ".yaml"), ".yml")
		bundles[locale] = bundle
	}

	if _, ok := bundles[DefaultLocale]; !ok {
		return nil, fmt.Errorf("default locale bundle %q missing", DefaultLocale)
	}

	locales := make([]string, 0, len(bundles))
	for l := range bundles {
		locales = append(locales, l)
	}
	sort.Strings(locales)

	// The default locale leads the tag list so the matcher falls back to it.
	tags := make([]language.Tag, 0, len(locales))
	tags = append(tags, language.Make(DefaultLocale))
	for _, l := range locales {
		if l != DefaultLocale {
			tags = append(tags, language.Make(l))
		}
	}

	return &Translator{
		bundles:  bundles,
		matcher:  language.NewMatcher(tags),
		locales:  locales,
		fallback: DefaultLocale,
	}, nil
}

// Locales returns the loaded bundle locales.
func (t *Translator) Locales() []string {
	return append([]string(nil), t.locales...)
}

// MatchLocale maps an arbitrary locale string ("de-AT", "pt_BR", "") to the
// closest loaded bundle.
func (t *Translator) MatchLocale(locale string) string {
	if locale == "" {
		return t.fallback
	}
	locale = strings.ReplaceAll(locale, "_", "-")
	tag, err := language.Parse(locale)
	if err != nil {
		return t.fallback
	}
	matched, _, conf := t.matcher.Match(tag)
	if conf == language.No {
		return t.fallback
	}
	base, _ := matched.Base()
	if _, ok := t.bundles[base.String()]; ok {
		return base.String()
	}
	return t.fallback
}

var placeholderRegex = regexp.MustCompile(`%\{([^}]+)\}`)

// T resolves key in the given locale, substituting %{name} placeholders from
// args (key, value pairs).
func (t *Translator) T(locale, key string, args ...string) string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	params := make(map[string]string, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		params[args[i]] = args[i+1]
	}

	tmpl, ok := t.lookup(locale, key)
	if !ok {
		tmpl, ok = t.lookup(t.fallback, key)
	}
	if !ok {
		tmpl = key
	}

	return placeholderRegex.ReplaceAllStringFunc(tmpl, func(match string) string {
		name := match[2 : len(match)-1]
		if val, ok := params[name]; ok {
			return val
		}
		return match
	})
}

func (t *Translator) lookup(locale, key string) (string, bool) {
	bundle, ok := t.bundles[locale]
	if !ok {
		return "", false
	}

	parts := strings.Split(key, ".")
	current := bundle
	for i, part := range parts {
		val, ok := current[part]
		if !ok {
			return "", false
		}
		if i == len(parts)-1 {
			s, ok := val.(string)
			return s, ok
		}
		next, ok := val.(map[string]any)
		if !ok {
			return "", false
		}
		current = next
	}
	return "", false
}

// FormatDate renders ts with the locale's long date layout, declared in the
// bundle under datetime.long.
func (t *Translator) FormatDate(locale string, ts time.Time) string {
	layout, ok := t.lookup(locale, "datetime.long")
	if !ok {
		layout, ok = t.lookup(t.fallback, "datetime.long")
	}
	if !ok {
		layout = "Mon, Jan 2, 2006 at 15:04"
	}
	return ts.Format(layout)
}

// FormatDateShort renders ts with the locale's short layout, declared under
// datetime.short.
func (t *Translator) FormatDateShort(locale string, ts time.Time) string {
	layout, ok := t.lookup(locale, "datetime.short")
	if !ok {
		layout, ok = t.lookup(t.fallback, "datetime.short")
	}
	if !ok {
		layout = "Jan 2, 15:04"
	}
	return ts.Format(layout)
}
