package notifier_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/letsrevel/revel-backend-sub006/pkg/notifier"
)

func validEventContext() map[string]any {
	return map[string]any{
		"event_id":   uuid.NewString(),
		"event_name": "Summer Rooftop Party",
		"starts_at":  "2026-09-12T18:00:00Z",
	}
}

func TestValidateContext(t *testing.T) {
	t.Parallel()

	t.Run("valid event context", func(t *testing.T) {
		t.Parallel()

		err := notifier.ValidateContext(notifier.TypeEventPublished, validEventContext())
		assert.NoError(t, err)
	})

	t.Run("extra fields pass through", func(t *testing.T) {
		t.Parallel()

		ctx := validEventContext()
		ctx["venue"] = "Warehouse 9"
		ctx["starts_at_formatted"] = "Sat, Sep 12"

		err := notifier.ValidateContext(notifier.TypeEventPublished, ctx)
		assert.NoError(t, err)
	})

	t.Run("unknown type", func(t *testing.T) {
		t.Parallel()

		err := notifier.ValidateContext(notifier.Type("carrier_pigeon_dispatched"), validEventContext())
		require.Error(t, err)
		assert.ErrorIs(t, err, notifier.ErrUnknownType)
	})

	t.Run("missing required field", func(t *testing.T) {
		t.Parallel()

		ctx := validEventContext()
		delete(ctx, "event_name")

		err := notifier.ValidateContext(notifier.TypeEventPublished, ctx)
		require.Error(t, err)

		var schemaErr *notifier.SchemaError
		require.ErrorAs(t, err, &schemaErr)
		assert.Equal(t, notifier.TypeEventPublished, schemaErr.Type)
		assert.Contains(t, schemaErr.Fields, "event_name")
	})

	t.Run("nil context reports every required field", func(t *testing.T) {
		t.Parallel()

		err := notifier.ValidateContext(notifier.TypeEventPublished, nil)
		require.Error(t, err)

		var schemaErr *notifier.SchemaError
		require.ErrorAs(t, err, &schemaErr)
		assert.Len(t, schemaErr.Fields, 3)
	})

	t.Run("invalid field value", func(t *testing.T) {
		t.Parallel()

		ctx := validEventContext()
		ctx["event_id"] = "not-a-uuid"

		err := notifier.ValidateContext(notifier.TypeEventPublished, ctx)
		require.Error(t, err)

		var schemaErr *notifier.SchemaError
		require.ErrorAs(t, err, &schemaErr)
		assert.Contains(t, schemaErr.Fields, "event_id")
		assert.NotContains(t, schemaErr.Fields, "event_name")
	})

	t.Run("money context requires currency code", func(t *testing.T) {
		t.Parallel()

		ctx := validEventContext()
		ctx["amount"] = 25.50
		ctx["currency"] = "EURO"

		err := notifier.ValidateContext(notifier.TypePaymentReceived, ctx)
		require.Error(t, err)

		var schemaErr *notifier.SchemaError
		require.ErrorAs(t, err, &schemaErr)
		assert.Contains(t, schemaErr.Fields, "currency")
	})

	t.Run("every known type accepts a complete context", func(t *testing.T) {
		t.Parallel()

		full := map[string]any{
			"event_id":           uuid.NewString(),
			"event_name":         "Harvest Dinner",
			"starts_at":          "2026-10-01T19:00:00Z",
			"previous_starts_at": "2026-09-30T19:00:00Z",
			"deadline_at":        "2026-09-25T12:00:00Z",
			"changes":            "new venue",
			"ticket_id":          uuid.NewString(),
			"amount":             42,
			"currency":           "USD",
			"failure_reason":     "card declined",
			"item_name":          "apple pie",
			"questionnaire_id":   uuid.NewString(),
			"questionnaire_name": "Dietary restrictions",
			"actor_id":           uuid.NewString(),
			"actor_name":         "Dana",
			"organization_id":    uuid.NewString(),
			"organization_name":  "Supper Club",
			"role":               "organizer",
			"pending_count":      3,
			"subject":            "Heads up",
			"message":            "Doors open at six.",
		}

		for _, typ := range notifier.KnownTypes() {
			assert.NoError(t, notifier.ValidateContext(typ, full), "type %s", typ)
		}
	})
}

func TestKnownType(t *testing.T) {
	t.Parallel()

	assert.True(t, notifier.KnownType(notifier.TypeTicketConfirmed))
	assert.False(t, notifier.KnownType(notifier.Type("smoke_signal")))
	assert.Len(t, notifier.KnownTypes(), 42)
}
