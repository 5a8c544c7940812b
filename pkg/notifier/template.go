package notifier

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"time"
)

// Attachment is a file included with an email rendering.
type Attachment struct {
	Bytes    []byte
	MIMEType string
}

// RenderContext carries everything a template needs to produce channel
// content for one recipient: the notification, the resolved recipient, the
// matched locale, the enriched context values, and a recipient-scoped
// unsubscribe link.
type RenderContext struct {
	Notification   *Notification
	Recipient      Recipient
	Locale         string
	Values         map[string]any
	UnsubscribeURL string

	translator *Translator
}

// T resolves a translation key in the render locale. Context values are
// available as placeholders; a value with a formatted counterpart
// ("starts_at_formatted") substitutes the formatted string for the base
// placeholder ("%{starts_at}").
func (rc *RenderContext) T(key string, extra ...string) string {
	args := rc.placeholderArgs()
	args = append(args, extra...)
	return rc.translator.T(rc.Locale, key, args...)
}

func (rc *RenderContext) placeholderArgs() []string {
	keys := make([]string, 0, len(rc.Values))
	for k := range rc.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	args := make([]string, 0, len(keys)*2+2)
	for _, k := range keys {
		if strings.HasSuffix(k, "_formatted") || strings.HasSuffix(k, "_short") {
			continue
		}
		v := rc.Values[k]
		if formatted, ok := rc.Values[k+"_formatted"]; ok {
			v = formatted
		}
		args = append(args, k, fmt.Sprintf("%v", v))
	}
	args = append(args, "recipient_name", rc.Recipient.Name)
	return args
}

// Template renders a notification for the in-app channel. Every registered
// template supports in-app; the other channels are optional capabilities
// detected with type assertions.
type Template interface {
	InAppTitle(rc *RenderContext) string
	InAppBody(rc *RenderContext) string
}

// EmailTemplate is implemented by templates that support the email channel.
type EmailTemplate interface {
	Template
	EmailSubject(rc *RenderContext) string
	EmailTextBody(rc *RenderContext) string
}

// EmailHTMLTemplate adds an HTML body to an email-capable template.
type EmailHTMLTemplate interface {
	EmailTemplate
	EmailHTMLBody(rc *RenderContext) string
}

// EmailAttachmentsTemplate adds attachments to an email-capable template.
type EmailAttachmentsTemplate interface {
	EmailTemplate
	EmailAttachments(rc *RenderContext) map[string]Attachment
}

// TelegramTemplate is implemented by templates that support the telegram
// channel. The returned body may use the Bot API HTML subset; it is
// sanitized before sending.
type TelegramTemplate interface {
	Template
	TelegramBody(rc *RenderContext) string
}

// BasicTemplate renders a type entirely from the translation bundles, using
// the keys types.<type>.title and types.<type>.body. It supports all three
// channels.
type BasicTemplate struct {
	NotificationType Type
}

func (t *BasicTemplate) key(part string) string {
	return "types." + string(t.NotificationType) + "." + part
}

func (t *BasicTemplate) InAppTitle(rc *RenderContext) string {
	return rc.T(t.key("title"))
}

func (t *BasicTemplate) InAppBody(rc *RenderContext) string {
	return rc.T(t.key("body"))
}

func (t *BasicTemplate) EmailSubject(rc *RenderContext) string {
	return rc.T(t.key("title"))
}

func (t *BasicTemplate) EmailTextBody(rc *RenderContext) string {
	var b strings.Builder
	b.WriteString(rc.T(t.key("body")))
	if rc.UnsubscribeURL != "" {
		b.WriteString("\n\n")
		b.WriteString(rc.T("unsubscribe.label"))
		b.WriteString(": ")
		b.WriteString(rc.UnsubscribeURL)
	}
	return b.String()
}

func (t *BasicTemplate) EmailHTMLBody(rc *RenderContext) string {
	var b strings.Builder
	b.WriteString("<h2>")
	b.WriteString(html.EscapeString(rc.T(t.key("title"))))
	b.WriteString("</h2>\n<p>")
	b.WriteString(html.EscapeString(rc.T(t.key("body"))))
	b.WriteString("</p>")
	if rc.UnsubscribeURL != "" {
		b.WriteString("\n<p><a href=\"")
		b.WriteString(html.EscapeString(rc.UnsubscribeURL))
		b.WriteString("\">")
		b.WriteString(html.EscapeString(rc.T("unsubscribe.label")))
		b.WriteString("</a></p>")
	}
	return b.String()
}

func (t *BasicTemplate) TelegramBody(rc *RenderContext) string {
	return "<b>" + html.EscapeString(rc.T(t.key("title"))) + "</b>\n" +
		html.EscapeString(rc.T(t.key("body")))
}

// Renderer builds render contexts. Enrichment happens here, once per
// dispatch, before any template method runs.
type Renderer struct {
	translator *Translator
	links      *UnsubscribeLinker
}

// NewRenderer wires a renderer. links may be nil when unsubscribe URLs are
// not wanted (tests, in-app only setups).
func NewRenderer(translator *Translator, links *UnsubscribeLinker) *Renderer {
	return &Renderer{translator: translator, links: links}
}

// Context assembles the render context for one notification and recipient.
// Time-like context values gain localized "<field>_formatted" and
// "<field>_short" counterparts; values already carrying a formatted
// counterpart are left untouched.
func (r *Renderer) Context(n *Notification, recipient Recipient) *RenderContext {
	locale := r.translator.MatchLocale(recipient.Locale)

	values := make(map[string]any, len(n.Context)+4)
	for k, v := range n.Context {
		values[k] = v
	}

	for k, v := range n.Context {
		if strings.HasSuffix(k, "_formatted") || strings.HasSuffix(k, "_short") {
			continue
		}
		ts, ok := asTime(v)
		if !ok {
			continue
		}
		if _, exists := values[k+"_formatted"]; !exists {
			values[k+"_formatted"] = r.translator.FormatDate(locale, ts)
			if _, short := values[k+"_short"]; !short {
				values[k+"_short"] = r.translator.FormatDateShort(locale, ts)
			}
		}
	}

	rc := &RenderContext{
		Notification: n,
		Recipient:    recipient,
		Locale:       locale,
		Values:       values,
		translator:   r.translator,
	}
	if r.links != nil {
		rc.UnsubscribeURL = r.links.URLForType(recipient.ID, n.Type)
	}
	return rc
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, true
	case string:
		if ts, err := time.Parse(time.RFC3339, t); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
