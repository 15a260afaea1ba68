package memoryRepo

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"schoolfees/database"
	"schoolfees/models"
)

// Directory is an in-memory DirectoryRepository.
type Directory struct {
	mu       sync.RWMutex
	schools  map[string]models.School // by upper-case code
	students map[string]models.Student
	staff    map[string]models.Staff
	years    []models.FinancialYear

	// SchoolLookups counts GetSchoolByCode calls.
	SchoolLookups atomic.Int64
}

func NewDirectory() *Directory {
	return &Directory{
		schools:  make(map[string]models.School),
		students: make(map[string]models.Student),
		staff:    make(map[string]models.Staff),
	}
}

func (d *Directory) PutSchool(s models.School) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.schools[strings.ToUpper(s.Code)] = s
}

func (d *Directory) PutStudent(s models.Student) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.students[s.ID] = s
}

func (d *Directory) PutStaff(s models.Staff) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.staff[s.ID] = s
}

func (d *Directory) PutFinancialYear(y models.FinancialYear) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.years = append(d.years, y)
}

func (d *Directory) GetSchoolByCode(_ context.Context, code string) (*models.School, error) {
	d.SchoolLookups.Add(1)
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.schools[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return nil, fmt.Errorf("school %q: %w", code, database.ErrNotFound)
	}
	return &s, nil
}

func (d *Directory) GetStudent(_ context.Context, schoolID, studentID string) (*models.Student, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.students[studentID]
	if !ok || s.SchoolID != schoolID {
		return nil, fmt.Errorf("student %s: %w", studentID, database.ErrNotFound)
	}
	return &s, nil
}

func (d *Directory) GetStaffByAuthUser(_ context.Context, schoolID, authUserID string) (*models.Staff, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, s := range d.staff {
		if s.SchoolID == schoolID && s.AuthUserID == authUserID && s.IsActive {
			found := s
			return &found, nil
		}
	}
	return nil, fmt.Errorf("staff for user %s: %w", authUserID, database.ErrNotFound)
}

func (d *Directory) GetStaff(_ context.Context, staffID string) (*models.Staff, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.staff[staffID]
	if !ok {
		return nil, fmt.Errorf("staff %s: %w", staffID, database.ErrNotFound)
	}
	return &s, nil
}

func (d *Directory) GetFinancialYear(_ context.Context, schoolID string, date time.Time) (*models.FinancialYear, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, y := range d.years {
		if y.SchoolID == schoolID && !date.Before(y.StartDate) && !date.After(y.EndDate) {
			found := y
			return &found, nil
		}
	}
	for _, y := range d.years {
		if y.SchoolID == schoolID && y.IsActive {
			found := y
			return &found, nil
		}
	}
	return nil, fmt.Errorf("financial year for school %s: %w", schoolID, database.ErrNotFound)
}
