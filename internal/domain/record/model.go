package record

import (
	"strings"
	"time"

	"github.com/carelink/carelink/internal/platform/apperr"
)

// Collection is the docstore collection holding medical records.
const Collection = "records"

// MedicalRecord is one clinical visit entry. Records are soft deleted by
// clearing IsActive.
type MedicalRecord struct {
	ID              string     `json:"recordId" bson:"recordId" firestore:"recordId"`
	PatientID       string     `json:"patientId" bson:"patientId" firestore:"patientId"`
	DoctorID        string     `json:"doctorId" bson:"doctorId" firestore:"doctorId"`
	DoctorName      string     `json:"doctorName" bson:"doctorName" firestore:"doctorName"`
	VisitDate       *time.Time `json:"visitDate,omitempty" bson:"visitDate,omitempty" firestore:"visitDate,omitempty"`
	Diagnosis       string     `json:"diagnosis" bson:"diagnosis" firestore:"diagnosis"`
	Symptoms        []string   `json:"symptoms" bson:"symptoms" firestore:"symptoms"`
	Medicines       []string   `json:"medicines" bson:"medicines" firestore:"medicines"`
	PrescribedTests []string   `json:"prescribedTests" bson:"prescribedTests" firestore:"prescribedTests"`
	FollowUpNotes   string     `json:"followUpNotes" bson:"followUpNotes" firestore:"followUpNotes"`
	CreatedAt       time.Time  `json:"createdAt" bson:"createdAt" firestore:"createdAt"`
	IsActive        bool       `json:"isActive" bson:"isActive" firestore:"isActive"`
	DeactivatedAt   *time.Time `json:"deactivatedAt,omitempty" bson:"deactivatedAt,omitempty" firestore:"deactivatedAt,omitempty"`
}

// SortTime is the visit date, or the creation time for records without one.
func (r *MedicalRecord) SortTime() time.Time {
	if r.VisitDate != nil && !r.VisitDate.IsZero() {
		return *r.VisitDate
	}
	return r.CreatedAt
}

// NewRecord is the doctor-supplied content of a record.
type NewRecord struct {
	VisitDate       *time.Time `json:"visit_date"`
	Diagnosis       string     `json:"diagnosis"`
	Symptoms        []string   `json:"symptoms"`
	Medicines       []string   `json:"medicines"`
	PrescribedTests []string   `json:"prescribed_tests"`
	FollowUpNotes   string     `json:"follow_up_notes"`
}

const maxListItems = 50

func cleanList(field string, items []string) ([]string, error) {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			out = append(out, it)
		}
	}
	if len(out) > maxListItems {
		return nil, apperr.New(apperr.KindInvalidInput, field+" has too many entries")
	}
	return out, nil
}

// Validate trims the input in place and checks required fields.
func (n *NewRecord) Validate() error {
	n.Diagnosis = strings.TrimSpace(n.Diagnosis)
	n.FollowUpNotes = strings.TrimSpace(n.FollowUpNotes)
	if n.Diagnosis == "" {
		return apperr.New(apperr.KindInvalidInput, "diagnosis is required")
	}
	var err error
	if n.Symptoms, err = cleanList("symptoms", n.Symptoms); err != nil {
		return err
	}
	if n.Medicines, err = cleanList("medicines", n.Medicines); err != nil {
		return err
	}
	if n.PrescribedTests, err = cleanList("prescribed tests", n.PrescribedTests); err != nil {
		return err
	}
	return nil
}
