package directoryRepo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"schoolfees/database"
	"schoolfees/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoDirectoryRepo implements DirectoryRepository using MongoDB.
type MongoDirectoryRepo struct {
	schoolColl  *mongo.Collection
	studentColl *mongo.Collection
	staffColl   *mongo.Collection
	yearColl    *mongo.Collection
}

// NewMongoDirectoryRepo creates a directory repository on db.
func NewMongoDirectoryRepo(db *mongo.Database) *MongoDirectoryRepo {
	return &MongoDirectoryRepo{
		schoolColl:  db.Collection("schools"),
		studentColl: db.Collection("students"),
		staffColl:   db.Collection("staff"),
		yearColl:    db.Collection("financial_years"),
	}
}

// EnsureIndexes creates indexes for fields frequently used in lookups.
func (r *MongoDirectoryRepo) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	specs := map[*mongo.Collection][]mongo.IndexModel{
		r.schoolColl: {
			{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "code", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		r.studentColl: {
			{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "school_id", Value: 1}, {Key: "admission_no", Value: 1}}},
		},
		r.staffColl: {
			{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "school_id", Value: 1}, {Key: "auth_user_id", Value: 1}}},
		},
		r.yearColl: {
			{Keys: bson.D{{Key: "school_id", Value: 1}, {Key: "start_date", Value: 1}, {Key: "end_date", Value: 1}}},
		},
	}
	for coll, indexes := range specs {
		if _, err := coll.Indexes().CreateMany(ctx, indexes); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", coll.Name(), err)
		}
	}
	return nil
}

// GetSchoolByCode looks a school up by its short code, case-insensitively.
func (r *MongoDirectoryRepo) GetSchoolByCode(ctx context.Context, code string) (*models.School, error) {
	var school models.School
	filter := bson.M{"code": strings.ToUpper(strings.TrimSpace(code))}
	if err := r.schoolColl.FindOne(ctx, filter).Decode(&school); err != nil {
		return nil, fmt.Errorf("school %q: %w", code, database.MapError(err))
	}
	return &school, nil
}

// GetStudent loads a student of the given school.
func (r *MongoDirectoryRepo) GetStudent(ctx context.Context, schoolID, studentID string) (*models.Student, error) {
	var student models.Student
	filter := bson.M{"id": studentID, "school_id": schoolID}
	if err := r.studentColl.FindOne(ctx, filter).Decode(&student); err != nil {
		return nil, fmt.Errorf("student %s: %w", studentID, database.MapError(err))
	}
	return &student, nil
}

func (r *MongoDirectoryRepo) GetStaffByAuthUser(ctx context.Context, schoolID, authUserID string) (*models.Staff, error) {
	var staff models.Staff
	filter := bson.M{"school_id": schoolID, "auth_user_id": authUserID, "is_active": true}
	if err := r.staffColl.FindOne(ctx, filter).Decode(&staff); err != nil {
		return nil, fmt.Errorf("staff for user %s: %w", authUserID, database.MapError(err))
	}
	return &staff, nil
}

func (r *MongoDirectoryRepo) GetStaff(ctx context.Context, staffID string) (*models.Staff, error) {
	var staff models.Staff
	if err := r.staffColl.FindOne(ctx, bson.M{"id": staffID}).Decode(&staff); err != nil {
		return nil, fmt.Errorf("staff %s: %w", staffID, database.MapError(err))
	}
	return &staff, nil
}

// GetFinancialYear prefers the year whose range contains date and falls back to the
// school's active year.
func (r *MongoDirectoryRepo) GetFinancialYear(ctx context.Context, schoolID string, date time.Time) (*models.FinancialYear, error) {
	var year models.FinancialYear
	filter := bson.M{
		"school_id":  schoolID,
		"start_date": bson.M{"$lte": date},
		"end_date":   bson.M{"$gte": date},
	}
	err := r.yearColl.FindOne(ctx, filter).Decode(&year)
	if err == nil {
		return &year, nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, fmt.Errorf("error fetching financial year: %w", err)
	}

	if err := r.yearColl.FindOne(ctx, bson.M{"school_id": schoolID, "is_active": true}).Decode(&year); err != nil {
		return nil, fmt.Errorf("financial year for school %s: %w", schoolID, database.MapError(err))
	}
	return &year, nil
}
