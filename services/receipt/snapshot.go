package receipt

import (
	"context"
	"fmt"

	"schoolfees/models"

	"go.uber.org/zap"
)

// buildSnapshot freezes the student, payment, allocation and collector details. The
// student must resolve; the collector name and fee titles are cosmetic and best effort.
func (i *Issuer) buildSnapshot(ctx context.Context, payment *models.Payment, allocations []models.PaymentAllocation) (models.ReceiptSnapshot, error) {
	student, err := i.directory.GetStudent(ctx, payment.SchoolID, payment.StudentID)
	if err != nil {
		return models.ReceiptSnapshot{}, fmt.Errorf("receipt snapshot: %w", err)
	}

	snap := models.ReceiptSnapshot{
		School: models.SnapshotSchool{ID: payment.SchoolID, Code: payment.SchoolCode},
		Student: models.SnapshotStudent{
			ID:          student.ID,
			AdmissionNo: student.AdmissionNo,
			Name:        student.FullName(),
		},
		Payment: models.SnapshotPayment{
			ID:          payment.ID,
			Amount:      payment.Amount,
			PaymentMode: payment.PaymentMode,
			ReferenceNo: payment.ReferenceNo,
			Remarks:     payment.Remarks,
			PaidAt:      payment.PaidAt,
		},
		Collector: models.SnapshotCollector{ID: payment.CollectedBy},
	}

	if staff, err := i.directory.GetStaff(ctx, payment.CollectedBy); err == nil {
		snap.Collector.Name = staff.Name
	} else {
		i.logger.Debug("Collector name unavailable for receipt", zap.String("collector_id", payment.CollectedBy), zap.Error(err))
	}

	titles := make(map[string]string, len(allocations))
	ids := make([]string, 0, len(allocations))
	for _, a := range allocations {
		ids = append(ids, a.StudentFeeID)
	}
	if fees, err := i.ledger.GetObligations(ctx, payment.SchoolID, payment.StudentID, ids); err == nil {
		for _, f := range fees {
			titles[f.ID] = f.Title
		}
	}

	snap.Allocations = make([]models.SnapshotAllocation, 0, len(allocations))
	for _, a := range allocations {
		snap.Allocations = append(snap.Allocations, models.SnapshotAllocation{
			StudentFeeID:    a.StudentFeeID,
			Title:           titles[a.StudentFeeID],
			AllocatedAmount: a.AllocatedAmount,
		})
	}
	return snap, nil
}
