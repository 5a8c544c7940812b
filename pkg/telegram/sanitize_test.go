package telegram

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeHTML(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "plain text untouched",
			in:   "Potluck updated: bring plates",
			want: "Potluck updated: bring plates",
		},
		{
			name: "allowed subset kept",
			in:   "<b>Ticket</b> <i>confirmed</i> <u>now</u> <s>pending</s> <code>ABC</code>",
			want: "<b>Ticket</b> <i>confirmed</i> <u>now</u> <s>pending</s> <code>ABC</code>",
		},
		{
			name: "disallowed tags stripped not escaped",
			in:   "<div><h1>Event</h1> starts <em>soon</em></div>",
			want: "Event starts soon",
		},
		{
			name: "attributes dropped from allowed tags",
			in:   `<b style="color:red">bold</b>`,
			want: "<b>bold</b>",
		},
		{
			name: "anchor keeps href only",
			in:   `<a href="https://example.com/t/1" target="_blank">view ticket</a>`,
			want: `<a href="https://example.com/t/1">view ticket</a>`,
		},
		{
			name: "anchor without href stripped including closer",
			in:   `<a name="top">anchor</a>`,
			want: "anchor",
		},
		{
			name: "spoiler span kept",
			in:   `<span class="tg-spoiler">surprise venue</span>`,
			want: `<span class="tg-spoiler">surprise venue</span>`,
		},
		{
			name: "plain span stripped including closer",
			in:   `<span class="badge">VIP</span>`,
			want: "VIP",
		},
		{
			name: "br becomes newline",
			in:   "line one<br/>line two",
			want: "line one\nline two",
		},
		{
			name: "comments removed",
			in:   "before<!-- hidden -->after",
			want: "beforeafter",
		},
		{
			name: "orphan closing tag stripped",
			in:   "text</b> tail",
			want: "text tail",
		},
		{
			name: "nested disallowed inside allowed",
			in:   "<pre><span>x := 1</span></pre>",
			want: "<pre>x := 1</pre>",
		},
		{
			name: "misnested tags reclosed in order",
			in:   "<b><u>x</b></u>",
			want: "<b><u>x</u></b>",
		},
		{
			name: "unclosed tags closed at end",
			in:   "<b>bold <i>and italic",
			want: "<b>bold <i>and italic</i></b>",
		},
		{
			name: "mismatched closer ignored open tag kept",
			in:   "<b>x</i>y</b>",
			want: "<b>xy</b>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, SanitizeHTML(tt.in))
		})
	}
}
