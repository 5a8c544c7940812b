package notifier

import "context"

// InAppDriver fills in the notification's title and body for the recipient's
// locale. The persisted row is the delivery: there is no external transport,
// so an in-app attempt cannot fail transiently.
type InAppDriver struct{}

// NewInAppDriver returns the in-app channel driver.
func NewInAppDriver() *InAppDriver {
	return &InAppDriver{}
}

func (d *InAppDriver) Channel() Channel { return ChannelInApp }

func (d *InAppDriver) CanDeliver(ctx context.Context, r Recipient, t Type) bool {
	return true
}

func (d *InAppDriver) Deliver(ctx context.Context, rc *RenderContext, tmpl Template, rec *DeliveryRecord) error {
	rc.Notification.Title = tmpl.InAppTitle(rc)
	rc.Notification.Body = tmpl.InAppBody(rc)
	return nil
}

func (d *InAppDriver) ShouldRetry(err error) bool {
	return retryableError(err)
}
