package directoryRepo

import (
	"context"
	"time"

	"schoolfees/models"
)

// DirectoryRepository resolves schools, students, staff and financial years.
// Every lookup returns database.ErrNotFound when nothing matches.
type DirectoryRepository interface {
	GetSchoolByCode(ctx context.Context, code string) (*models.School, error)
	GetStudent(ctx context.Context, schoolID, studentID string) (*models.Student, error)
	// GetStaffByAuthUser resolves the active staff row of an authenticated user.
	GetStaffByAuthUser(ctx context.Context, schoolID, authUserID string) (*models.Staff, error)
	GetStaff(ctx context.Context, staffID string) (*models.Staff, error)
	// GetFinancialYear returns the school's financial year that contains date.
	GetFinancialYear(ctx context.Context, schoolID string, date time.Time) (*models.FinancialYear, error)
}
