package notifier_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/letsrevel/revel-backend-sub006/pkg/notifier"
)

func TestRegistry(t *testing.T) {
	t.Parallel()

	t.Run("get unregistered type fails loudly", func(t *testing.T) {
		t.Parallel()

		r := notifier.NewRegistry(nil)
		_, err := r.Get(notifier.TypeTicketConfirmed)
		require.Error(t, err)
		assert.ErrorIs(t, err, notifier.ErrTemplateNotRegistered)
	})

	t.Run("register and get", func(t *testing.T) {
		t.Parallel()

		r := notifier.NewRegistry(nil)
		tmpl := &notifier.BasicTemplate{NotificationType: notifier.TypeTicketConfirmed}
		r.Register(notifier.TypeTicketConfirmed, tmpl)

		got, err := r.Get(notifier.TypeTicketConfirmed)
		require.NoError(t, err)
		assert.Same(t, notifier.Template(tmpl), got)
	})

	t.Run("re-registration last wins", func(t *testing.T) {
		t.Parallel()

		r := notifier.NewRegistry(nil)
		first := &notifier.BasicTemplate{NotificationType: notifier.TypeTicketConfirmed}
		second := &notifier.BasicTemplate{NotificationType: notifier.TypeTicketConfirmed}

		r.Register(notifier.TypeTicketConfirmed, first)
		r.Register(notifier.TypeTicketConfirmed, second)

		got, err := r.Get(notifier.TypeTicketConfirmed)
		require.NoError(t, err)
		assert.Same(t, notifier.Template(second), got)
	})

	t.Run("defaults cover every known type", func(t *testing.T) {
		t.Parallel()

		r := notifier.NewRegistry(nil)
		r.RegisterDefaults()

		for _, typ := range notifier.KnownTypes() {
			assert.True(t, r.Registered(typ), "type %s", typ)
		}
	})
}
