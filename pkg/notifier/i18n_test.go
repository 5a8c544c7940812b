package notifier_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/letsrevel/revel-backend-sub006/pkg/notifier"
)

func newTranslator(t *testing.T) *notifier.Translator {
	t.Helper()
	tr, err := notifier.NewTranslator()
	require.NoError(t, err)
	return tr
}

func TestTranslatorLoadsBundles(t *testing.T) {
	t.Parallel()

	tr := newTranslator(t)
	locales := tr.Locales()
	assert.Contains(t, locales, "en")
	assert.Contains(t, locales, "de")
}

func TestTranslatorT(t *testing.T) {
	t.Parallel()

	tr := newTranslator(t)

	t.Run("substitutes placeholders", func(t *testing.T) {
		t.Parallel()

		got := tr.T("en", "types.event_reminder.title", "event_name", "Rooftop Party")
		assert.Equal(t, "Reminder: Rooftop Party", got)
	})

	t.Run("localized lookup", func(t *testing.T) {
		t.Parallel()

		got := tr.T("de", "types.event_reminder.title", "event_name", "Sommerfest")
		assert.Equal(t, "Erinnerung: Sommerfest", got)
	})

	t.Run("unknown locale falls back to default", func(t *testing.T) {
		t.Parallel()

		got := tr.T("fr", "types.event_reminder.title", "event_name", "Fête")
		assert.Equal(t, "Reminder: Fête", got)
	})

	t.Run("missing key falls back to key", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, "types.nonexistent.title", tr.T("en", "types.nonexistent.title"))
	})

	t.Run("unknown placeholder stays literal", func(t *testing.T) {
		t.Parallel()

		got := tr.T("en", "types.event_reminder.title")
		assert.Equal(t, "Reminder: %{event_name}", got)
	})
}

func TestTranslatorMatchLocale(t *testing.T) {
	t.Parallel()

	tr := newTranslator(t)

	cases := []struct {
		name   string
		locale string
		want   string
	}{
		{name: "exact", locale: "de", want: "de"},
		{name: "region variant", locale: "de-AT", want: "de"},
		{name: "underscore separator", locale: "de_CH", want: "de"},
		{name: "unsupported language", locale: "ja", want: "en"},
		{name: "empty", locale: "", want: "en"},
		{name: "garbage", locale: "not a locale!!", want: "en"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, tr.MatchLocale(tc.locale))
		})
	}
}

func TestTranslatorFormatDate(t *testing.T) {
	t.Parallel()

	tr := newTranslator(t)
	ts := time.Date(2026, time.September, 12, 18, 30, 0, 0, time.UTC)

	assert.Equal(t, "Sat, Sep 12, 2026 at 18:30", tr.FormatDate("en", ts))
	assert.Equal(t, "Sep 12, 18:30", tr.FormatDateShort("en", ts))
	assert.Equal(t, "Sat, 12. Sep 2026 um 18:30", tr.FormatDate("de", ts))
}
