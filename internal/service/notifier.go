package service

import (
	"context"
	"fmt"
	"time"

	"booking-service/internal/models"
	"booking-service/internal/util"

	"go.uber.org/zap"
)

// NotifyResult reports the two email sends independently.
type NotifyResult struct {
	CustomerSent bool
	AdminSent    bool
}

// NotificationDispatcher sends the customer confirmation and the tenant/admin
// notification for a booking. Each send is attempted and recorded on its own;
// one failing never suppresses the other. No retries here.
type NotificationDispatcher struct {
	mailer       Mailer
	adminAddress string
	logger       *zap.Logger
}

// NewNotificationDispatcher creates a new notification dispatcher
func NewNotificationDispatcher(mailer Mailer, adminAddress string) *NotificationDispatcher {
	return &NotificationDispatcher{
		mailer:       mailer,
		adminAddress: adminAddress,
		logger:       util.GetLogger(),
	}
}

// Notify sends both booking emails and reports which ones succeeded.
func (d *NotificationDispatcher) Notify(ctx context.Context, booking *models.Booking) NotifyResult {
	ctx, span := util.StartSpan(ctx, "NotificationDispatcher.Notify")
	defer span.End()

	if d.mailer == nil || !d.mailer.Configured() {
		// Missing delivery-service credential is a deployment configuration
		// gap, not a runtime error.
		d.logger.Warn("Email transport not configured, skipping notifications",
			zap.Int64("booking_id", booking.ID),
			zap.String("trace_id", booking.TraceID))
		return NotifyResult{}
	}

	result := NotifyResult{
		CustomerSent: d.send(ctx, booking, "customer", booking.CustomerEmail,
			fmt.Sprintf("Booking confirmed for %s", booking.StartAt.Format("Jan 2, 2006")),
			customerEmailBody(booking)),
	}

	if d.adminAddress == "" {
		d.logger.Warn("Admin notification address not configured",
			zap.Int64("booking_id", booking.ID),
			zap.String("trace_id", booking.TraceID))
		return result
	}

	result.AdminSent = d.send(ctx, booking, "admin", d.adminAddress,
		fmt.Sprintf("New booking: %s", booking.CustomerName),
		adminEmailBody(booking))

	return result
}

func (d *NotificationDispatcher) send(ctx context.Context, booking *models.Booking, recipient, to, subject, html string) bool {
	start := time.Now()
	messageID, err := d.mailer.Send(ctx, to, subject, html)
	util.EmailSendLatency.Observe(time.Since(start).Seconds())

	if err != nil {
		util.EmailsSentTotal.WithLabelValues(recipient, "failed").Inc()
		d.logger.Warn("Email send failed",
			zap.Int64("booking_id", booking.ID),
			zap.String("step", "notify"),
			zap.String("recipient", recipient),
			zap.String("trace_id", booking.TraceID),
			zap.Error(err))
		return false
	}

	util.EmailsSentTotal.WithLabelValues(recipient, "success").Inc()
	d.logger.Info("Email sent",
		zap.Int64("booking_id", booking.ID),
		zap.String("recipient", recipient),
		zap.String("message_id", messageID),
		zap.String("trace_id", booking.TraceID))
	return true
}

func customerEmailBody(booking *models.Booking) string {
	service := booking.ServiceName
	if service == "" {
		service = "your appointment"
	}
	return fmt.Sprintf(
		`<h2>Booking confirmed</h2>
<p>Hi %s,</p>
<p>Your booking for %s is confirmed.</p>
<p><strong>When:</strong> %s (%d minutes, %s)</p>`,
		booking.CustomerName, service,
		booking.StartAt.Format("Monday, Jan 2 2006 15:04"),
		booking.DurationMin, booking.Timezone)
}

func adminEmailBody(booking *models.Booking) string {
	body := fmt.Sprintf(
		`<h2>New booking</h2>
<p><strong>Customer:</strong> %s (%s)</p>
<p><strong>When:</strong> %s (%d minutes, %s)</p>`,
		booking.CustomerName, booking.CustomerEmail,
		booking.StartAt.Format("Monday, Jan 2 2006 15:04"),
		booking.DurationMin, booking.Timezone)
	if booking.CustomerPhone != "" {
		body += fmt.Sprintf("\n<p><strong>Phone:</strong> %s</p>", booking.CustomerPhone)
	}
	if booking.Notes != "" {
		body += fmt.Sprintf("\n<p><strong>Notes:</strong> %s</p>", booking.Notes)
	}
	return body
}
