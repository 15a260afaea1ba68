package models

// School is a tenant of the system.
type School struct {
	ID   string `bson:"id" json:"id"`
	Code string `bson:"code" json:"code"`
	Name string `bson:"name" json:"name"`
}

// Student is the directory view of a student used by collection.
type Student struct {
	ID             string   `bson:"id" json:"id"`
	SchoolID       string   `bson:"school_id" json:"school_id"`
	AdmissionNo    string   `bson:"admission_no" json:"admission_no"`
	FirstName      string   `bson:"first_name" json:"first_name"`
	LastName       string   `bson:"last_name" json:"last_name"`
	GuardianTokens []string `bson:"guardian_tokens,omitempty" json:"-"` // FCM device tokens
}

// FullName joins first and last name.
func (s Student) FullName() string {
	if s.LastName == "" {
		return s.FirstName
	}
	return s.FirstName + " " + s.LastName
}

// Staff is a member of staff allowed to collect fees.
type Staff struct {
	ID         string `bson:"id" json:"id"`
	SchoolID   string `bson:"school_id" json:"school_id"`
	AuthUserID string `bson:"auth_user_id" json:"auth_user_id"`
	Name       string `bson:"name" json:"name"`
	IsActive   bool   `bson:"is_active" json:"is_active"`
}
