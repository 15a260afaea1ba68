package notification

import (
	"context"
	"errors"
	"testing"

	memoryRepo "schoolfees/database/repository/memory"
	"schoolfees/models"

	"firebase.google.com/go/v4/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	sent    []*messaging.Message
	failFor map[string]bool
}

func (f *fakeSender) Send(_ context.Context, msg *messaging.Message) (string, error) {
	if f.failFor[msg.Token] {
		return "", errors.New("unregistered token")
	}
	f.sent = append(f.sent, msg)
	return "msg-" + msg.Token, nil
}

func directoryWithTokens(tokens ...string) *memoryRepo.Directory {
	dir := memoryRepo.NewDirectory()
	dir.PutStudent(models.Student{ID: "stu-1", SchoolID: "sch-1", FirstName: "Amina", GuardianTokens: tokens})
	return dir
}

var payment = &models.Payment{ID: "pay-1", SchoolID: "sch-1", StudentID: "stu-1", Amount: 1500}

func TestPaymentReceivedSendsToEveryGuardian(t *testing.T) {
	sender := &fakeSender{}
	n := NewFCMGuardianNotifier(sender, directoryWithTokens("t1", "t2"), nil)

	require.NoError(t, n.PaymentReceived(context.Background(), payment, &models.Receipt{ReceiptNo: "STM/REC/2024/000001"}))
	require.Len(t, sender.sent, 2)
	assert.Equal(t, "Payment of 1500.00 received for Amina. Receipt STM/REC/2024/000001.", sender.sent[0].Notification.Body)
	assert.Equal(t, "STM/REC/2024/000001", sender.sent[0].Data["receiptNo"])
	assert.Equal(t, "pay-1", sender.sent[1].Data["paymentId"])
}

func TestPaymentReceivedToleratesSomeFailures(t *testing.T) {
	sender := &fakeSender{failFor: map[string]bool{"stale": true}}
	n := NewFCMGuardianNotifier(sender, directoryWithTokens("stale", "t2"), nil)

	assert.NoError(t, n.PaymentReceived(context.Background(), payment, nil))
	assert.Len(t, sender.sent, 1)
}

func TestPaymentReceivedFailsWhenEverySendFails(t *testing.T) {
	sender := &fakeSender{failFor: map[string]bool{"stale": true}}
	n := NewFCMGuardianNotifier(sender, directoryWithTokens("stale"), nil)

	assert.Error(t, n.PaymentReceived(context.Background(), payment, nil))
}

func TestPaymentReceivedNoop(t *testing.T) {
	assert.NoError(t, NewFCMGuardianNotifier(nil, directoryWithTokens("t1"), nil).PaymentReceived(context.Background(), payment, nil))

	sender := &fakeSender{}
	assert.NoError(t, NewFCMGuardianNotifier(sender, directoryWithTokens(), nil).PaymentReceived(context.Background(), payment, nil))
	assert.Empty(t, sender.sent)
}
