package notification

import (
	"context"
	"fmt"
	"strconv"

	directoryRepo "schoolfees/database/repository/directory"
	"schoolfees/models"

	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
)

// Sender delivers one FCM message. *messaging.Client satisfies it.
type Sender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// GuardianNotifier pushes payment confirmations to a student's guardians.
type GuardianNotifier interface {
	PaymentReceived(ctx context.Context, payment *models.Payment, receipt *models.Receipt) error
}

// FCMGuardianNotifier is the production implementation.
type FCMGuardianNotifier struct {
	sender    Sender
	directory directoryRepo.DirectoryRepository
	logger    *zap.Logger
}

// NewFCMGuardianNotifier returns a notifier. A nil sender disables pushes.
func NewFCMGuardianNotifier(sender Sender, directory directoryRepo.DirectoryRepository, logger *zap.Logger) *FCMGuardianNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FCMGuardianNotifier{sender: sender, directory: directory, logger: logger}
}

// PaymentReceived sends one push per guardian device token. It fails only if every
// send fails, so one stale token does not keep the event retrying.
func (n *FCMGuardianNotifier) PaymentReceived(ctx context.Context, payment *models.Payment, receipt *models.Receipt) error {
	log := n.logger.With(zap.String("payment_id", payment.ID))
	if n.sender == nil {
		log.Debug("Push notifications disabled, skipping guardian notification")
		return nil
	}

	student, err := n.directory.GetStudent(ctx, payment.SchoolID, payment.StudentID)
	if err != nil {
		return fmt.Errorf("PaymentReceived: could not find student %s: %w", payment.StudentID, err)
	}
	if len(student.GuardianTokens) == 0 {
		log.Debug("Student has no guardian devices", zap.String("student_id", student.ID))
		return nil
	}

	amount := strconv.FormatFloat(payment.Amount, 'f', 2, 64)
	body := fmt.Sprintf("Payment of %s received for %s.", amount, student.FullName())
	data := map[string]string{
		"paymentId": payment.ID,
		"studentId": student.ID,
		"amount":    amount,
	}
	if receipt != nil {
		body = fmt.Sprintf("Payment of %s received for %s. Receipt %s.", amount, student.FullName(), receipt.ReceiptNo)
		data["receiptNo"] = receipt.ReceiptNo
	}

	var lastErr error
	sent := 0
	for _, token := range student.GuardianTokens {
		msg := &messaging.Message{
			Token: token,
			Notification: &messaging.Notification{
				Title: "Fee payment received",
				Body:  body,
			},
			Data: data,
		}
		if _, err := n.sender.Send(ctx, msg); err != nil {
			lastErr = err
			log.Warn("Failed to send guardian notification", zap.Error(err))
			continue
		}
		sent++
	}
	if sent == 0 && lastErr != nil {
		return fmt.Errorf("PaymentReceived: failed to send FCM message: %w", lastErr)
	}
	log.Info("Guardian notified", zap.Int("devices", sent))
	return nil
}
