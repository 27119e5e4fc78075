package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/logger"
	"carrental-backend/internal/utils"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

type EmailMessage struct {
	To        string
	ToName    string
	Subject   string
	PlainText string
	HTML      string
}

// Mailer delivers one message synchronously.
type Mailer interface {
	Send(ctx context.Context, msg EmailMessage) error
}

type sendGridMailer struct {
	client *sendgrid.Client
	from   *mail.Email
}

func NewSendGridMailer(apiKey, fromEmail, fromName string) Mailer {
	return &sendGridMailer{
		client: sendgrid.NewSendClient(apiKey),
		from:   mail.NewEmail(fromName, fromEmail),
	}
}

func (m *sendGridMailer) Send(ctx context.Context, msg EmailMessage) error {
	recipient := mail.NewEmail(msg.ToName, msg.To)
	message := mail.NewSingleEmail(m.from, msg.Subject, recipient, msg.PlainText, msg.HTML)

	logger.ExternalServiceCall("sendgrid", "send", "to", msg.To)
	response, err := m.client.SendWithContext(ctx, message)
	logger.ExternalServiceResult("sendgrid", "send", err)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid error: status %d, body: %s", response.StatusCode, response.Body)
	}
	return nil
}

type emailJob struct {
	msg     EmailMessage
	retries int
}

// EmailQueue sends mail from a bounded buffer with a fixed worker pool and
// retries failed deliveries with quadratic backoff.
type EmailQueue struct {
	mailer     Mailer
	jobs       chan emailJob
	workers    int
	maxRetries int
	backoff    time.Duration
	wg         sync.WaitGroup
}

func NewEmailQueue(mailer Mailer, workers, queueSize, maxRetries int) *EmailQueue {
	if workers <= 0 {
		workers = 1
	}
	return &EmailQueue{
		mailer:     mailer,
		jobs:       make(chan emailJob, queueSize),
		workers:    workers,
		maxRetries: maxRetries,
		backoff:    time.Second,
	}
}

// Start launches the workers. They stop when ctx is cancelled.
func (q *EmailQueue) Start(ctx context.Context) {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}
}

// Wait blocks until every worker has returned.
func (q *EmailQueue) Wait() {
	q.wg.Wait()
}

func (q *EmailQueue) worker(ctx context.Context, id int) {
	defer q.wg.Done()
	logger.Debug("Email worker started", "worker", id)

	for {
		select {
		case <-ctx.Done():
			logger.Debug("Email worker stopping", "worker", id)
			return
		case job := <-q.jobs:
			q.process(ctx, job)
		}
	}
}

func (q *EmailQueue) process(ctx context.Context, job emailJob) {
	err := q.mailer.Send(ctx, job.msg)
	if err == nil {
		logger.Info("Email sent", "to", job.msg.To, "subject", job.msg.Subject)
		return
	}

	if job.retries >= q.maxRetries {
		logger.Error("Email dropped after retries", "to", job.msg.To, "subject", job.msg.Subject, "retries", job.retries, "error", err)
		return
	}
	job.retries++
	delay := time.Duration(job.retries*job.retries) * q.backoff
	logger.Warn("Email send failed, retrying", "to", job.msg.To, "attempt", job.retries, "delay", delay, "error", err)
	time.AfterFunc(delay, func() {
		if err := q.enqueue(job); err != nil {
			logger.Error("Email dropped on retry", "to", job.msg.To, "error", err)
		}
	})
}

func (q *EmailQueue) enqueue(job emailJob) error {
	select {
	case q.jobs <- job:
		return nil
	default:
		return fmt.Errorf("email queue is full")
	}
}

// Enqueue schedules msg without blocking.
func (q *EmailQueue) Enqueue(msg EmailMessage) error {
	return q.enqueue(emailJob{msg: msg})
}

type emailService struct {
	queue *EmailQueue
	brand string
}

func NewEmailService(queue *EmailQueue, brand string) EmailService {
	if brand == "" {
		brand = "Car Rental"
	}
	return &emailService{queue: queue, brand: brand}
}

func (s *emailService) signature() string {
	return fmt.Sprintf("\n\nBest regards,\nThe %s Team", s.brand)
}

func (s *emailService) SendBookingConfirmation(ctx context.Context, c *domain.Customer, o *domain.Order, pickupCode string) error {
	body := fmt.Sprintf("Hello %s,\n\nWe received your booking %s for %s (%s).\n\nPickup: %s\nReturn: %s\nTotal: %s\n\nYour pickup code is %s. Show it at the counter when you collect the car.\n\nYour booking is now being reviewed.",
		c.Name, o.OrderNo, o.VehicleName, o.VehiclePlate,
		o.PickupTime.Format(time.DateTime), o.ReturnTime.Format(time.DateTime),
		utils.FormatCents(o.TotalAmountCents), pickupCode)

	return s.queue.Enqueue(EmailMessage{
		To:        c.Email,
		ToName:    c.Name,
		Subject:   fmt.Sprintf("Booking %s received", o.OrderNo),
		PlainText: body + s.signature(),
	})
}

func (s *emailService) SendOrderStatusUpdate(ctx context.Context, c *domain.Customer, o *domain.Order) error {
	body := fmt.Sprintf("Hello %s,\n\nYour booking %s is now %s.", c.Name, o.OrderNo, statusLabel(o.Status))
	switch o.Status {
	case domain.OrderStatusRejected:
		if o.ReviewReason != "" {
			body += fmt.Sprintf("\n\nReason: %s", o.ReviewReason)
		}
	case domain.OrderStatusAwaitingPayment:
		body += fmt.Sprintf("\n\nPlease pay %s to confirm it.", utils.FormatCents(o.TotalAmountCents))
	case domain.OrderStatusAwaitingReturn:
		body += fmt.Sprintf("\n\nThe scheduled return was %s. Late returns are billed by the hour.", o.ReturnTime.Format(time.DateTime))
	case domain.OrderStatusAwaitingSettlement, domain.OrderStatusCompleted:
		if o.ExtraAmountCents > 0 {
			body += fmt.Sprintf("\n\nA late return charge of %s was added.", utils.FormatCents(o.ExtraAmountCents))
		}
	}

	return s.queue.Enqueue(EmailMessage{
		To:        c.Email,
		ToName:    c.Name,
		Subject:   fmt.Sprintf("Booking %s update", o.OrderNo),
		PlainText: body + s.signature(),
	})
}

func (s *emailService) SendRefundNotice(ctx context.Context, c *domain.Customer, o *domain.Order, amountCents int64) error {
	body := fmt.Sprintf("Hello %s,\n\nWe refunded %s for booking %s. It will reach your original payment method within a few business days.",
		c.Name, utils.FormatCents(amountCents), o.OrderNo)

	return s.queue.Enqueue(EmailMessage{
		To:        c.Email,
		ToName:    c.Name,
		Subject:   fmt.Sprintf("Refund for booking %s", o.OrderNo),
		PlainText: body + s.signature(),
	})
}

func statusLabel(st domain.OrderStatus) string {
	switch st {
	case domain.OrderStatusCancelled:
		return "cancelled"
	case domain.OrderStatusPendingReview:
		return "pending review"
	case domain.OrderStatusRejected:
		return "rejected"
	case domain.OrderStatusAwaitingPayment:
		return "approved and awaiting payment"
	case domain.OrderStatusAwaitingPickup:
		return "paid and ready for pickup"
	case domain.OrderStatusInUse:
		return "in use"
	case domain.OrderStatusAwaitingReturn:
		return "overdue for return"
	case domain.OrderStatusAwaitingSettlement:
		return "returned and awaiting settlement"
	case domain.OrderStatusCompleted:
		return "completed"
	case domain.OrderStatusRefunded:
		return "refunded"
	}
	return st.String()
}
