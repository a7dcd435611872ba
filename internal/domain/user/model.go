package user

import "time"

// Collection is the docstore collection holding user profiles.
const Collection = "users"

const (
	RolePatient = "patient"
	RoleDoctor  = "doctor"
)

// User is the profile of a signed-up account. Identity (ID, Role) comes from
// the identity provider; DoctorCode is assigned once at doctor registration
// and never changes afterwards.
type User struct {
	ID          string    `json:"userId" bson:"userId" firestore:"userId"`
	Role        string    `json:"role" bson:"role" firestore:"role"`
	DisplayName string    `json:"displayName" bson:"displayName" firestore:"displayName"`
	DoctorCode  string    `json:"doctorCode,omitempty" bson:"doctorCode,omitempty" firestore:"doctorCode,omitempty"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt" firestore:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt" bson:"updatedAt" firestore:"updatedAt"`
}

func (u *User) IsDoctor() bool { return u.Role == RoleDoctor }

func (u *User) IsPatient() bool { return u.Role == RolePatient }

// ValidRole reports whether role is one this service knows about.
func ValidRole(role string) bool {
	return role == RolePatient || role == RoleDoctor
}
