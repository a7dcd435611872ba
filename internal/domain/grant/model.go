package grant

import (
	"strings"
	"time"

	"github.com/carelink/carelink/internal/platform/apperr"
)

// Collection is the docstore collection holding grants.
const Collection = "grants"

const (
	StatusActive  = "active"
	StatusRevoked = "revoked"
)

const keySeparator = "_"

// Grant is the permission for one doctor to read one patient's profile and
// records. At most one grant exists per (doctor, patient) pair; it is never
// deleted, only flipped between active and revoked.
type Grant struct {
	PatientID   string     `json:"patientId" bson:"patientId" firestore:"patientId"`
	DoctorID    string     `json:"doctorId" bson:"doctorId" firestore:"doctorId"`
	DoctorCode  string     `json:"doctorCode" bson:"doctorCode" firestore:"doctorCode"`
	DoctorName  string     `json:"doctorName" bson:"doctorName" firestore:"doctorName"`
	PatientName string     `json:"patientName,omitempty" bson:"patientName,omitempty" firestore:"patientName,omitempty"`
	Status      string     `json:"status" bson:"status" firestore:"status"`
	CreatedAt   time.Time  `json:"createdAt" bson:"createdAt" firestore:"createdAt"`
	RevokedAt   *time.Time `json:"revokedAt,omitempty" bson:"revokedAt,omitempty" firestore:"revokedAt,omitempty"`
}

func (g *Grant) IsActive() bool { return g.Status == StatusActive }

// Reference is the share reference a doctor uses to address this grant.
func (g *Grant) Reference() string { return Key(g.DoctorID, g.PatientID) }

// Key is the storage key of the grant between doctorID and patientID.
func Key(doctorID, patientID string) string {
	return doctorID + keySeparator + patientID
}

// referenceable reports whether id can appear in a share reference.
func referenceable(id string) bool { return !strings.Contains(id, keySeparator) }

// ParseReference splits a share reference into its doctor and patient ids.
// Anything other than exactly two non-empty components is rejected.
func ParseReference(ref string) (doctorID, patientID string, err error) {
	parts := strings.Split(ref, keySeparator)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", apperr.ErrInvalidReference
	}
	return parts[0], parts[1], nil
}

// Summary is what the API shows for a grant.
type Summary struct {
	Reference   string    `json:"reference"`
	PatientID   string    `json:"patientId"`
	PatientName string    `json:"patientName,omitempty"`
	DoctorID    string    `json:"doctorId"`
	DoctorCode  string    `json:"doctorCode"`
	DoctorName  string    `json:"doctorName"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (g *Grant) Summary() Summary {
	return Summary{
		Reference:   g.Reference(),
		PatientID:   g.PatientID,
		PatientName: g.PatientName,
		DoctorID:    g.DoctorID,
		DoctorCode:  g.DoctorCode,
		DoctorName:  g.DoctorName,
		Status:      g.Status,
		CreatedAt:   g.CreatedAt,
	}
}
