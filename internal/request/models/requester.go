package models

import (
	"encoding/json"
	"errors"
	"strings"

	dErrors "lifeflow/pkg/domain-errors"
)

type Patient struct {
	Name                string `json:"name" validate:"notblank" msg:"Patient name is required"`
	Age                 int    `json:"age,omitempty" validate:"min=0,max=150" msg:"Invalid patient age"`
	Gender              string `json:"gender,omitempty" validate:"omitempty,oneof=male female other" msg:"Invalid patient gender"`
	MedicalRecordNumber string `json:"medicalRecordNumber,omitempty"`
	Diagnosis           string `json:"diagnosis,omitempty"`
	Ward                string `json:"ward,omitempty"`
	Bed                 string `json:"bedNumber,omitempty"`
}

type InstitutionAddress struct {
	Street  string `json:"street,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	ZipCode string `json:"zipCode,omitempty"`
}

type Institution struct {
	Name          string             `json:"name" validate:"notblank" msg:"Institution name is required"`
	Type          string             `json:"type" validate:"omitempty,oneof=hospital clinic emergency surgical_center other" msg:"Invalid institution type"`
	Address       InstitutionAddress `json:"address"`
	ContactPerson string             `json:"contactPerson,omitempty"`
	Phone         string             `json:"phone,omitempty"`
	License       string             `json:"licenseNumber,omitempty"`
}

// RequesterKind discriminates Requester.
type RequesterKind string

const (
	RequesterPatient     RequesterKind = "patient"
	RequesterInstitution RequesterKind = "institution"
)

// Requester is either a patient, optionally referred by an institution, or
// an institution. The zero value is invalid; use the constructors.
type Requester struct {
	kind        RequesterKind
	patient     *Patient
	institution *Institution
}

var errNoRequester = dErrors.New(dErrors.CodeValidation, "Either patient or institution information is required")

func NewPatientRequester(p Patient, referredBy *Institution) (Requester, error) {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return Requester{}, dErrors.New(dErrors.CodeInvariantViolation, "Patient name is required")
	}
	r := Requester{kind: RequesterPatient, patient: &p}
	if referredBy != nil {
		inst := normalizeInstitution(*referredBy)
		r.institution = &inst
	}
	return r, nil
}

func NewInstitutionRequester(inst Institution) (Requester, error) {
	inst = normalizeInstitution(inst)
	if inst.Name == "" {
		return Requester{}, dErrors.New(dErrors.CodeInvariantViolation, "Institution name is required")
	}
	return Requester{kind: RequesterInstitution, institution: &inst}, nil
}

func normalizeInstitution(inst Institution) Institution {
	inst.Name = strings.TrimSpace(inst.Name)
	if inst.Type == "" {
		inst.Type = "hospital"
	}
	return inst
}

// RequesterFrom picks the variant from the optional payload blocks. A
// patient wins; an institution sent alongside becomes the referrer.
func RequesterFrom(p *Patient, inst *Institution) (Requester, error) {
	switch {
	case p != nil:
		return NewPatientRequester(*p, inst)
	case inst != nil:
		return NewInstitutionRequester(*inst)
	default:
		return Requester{}, errNoRequester
	}
}

func (r Requester) Kind() RequesterKind { return r.kind }

func (r Requester) IsZero() bool { return r.kind == "" }

// Patient returns the patient for patient requesters.
func (r Requester) Patient() (Patient, bool) {
	if r.kind != RequesterPatient {
		return Patient{}, false
	}
	return *r.patient, true
}

// Institution returns the requesting institution, or the referring one for
// a patient requester.
func (r Requester) Institution() (Institution, bool) {
	if r.institution == nil {
		return Institution{}, false
	}
	return *r.institution, true
}

// Name is the label shown in lists and activity feeds.
func (r Requester) Name() string {
	switch r.kind {
	case RequesterPatient:
		return r.patient.Name
	case RequesterInstitution:
		return r.institution.Name
	}
	return ""
}

type requesterJSON struct {
	Kind        RequesterKind `json:"kind"`
	Patient     *Patient      `json:"patient,omitempty"`
	Institution *Institution  `json:"institution,omitempty"`
}

func (r Requester) MarshalJSON() ([]byte, error) {
	return json.Marshal(requesterJSON{Kind: r.kind, Patient: r.patient, Institution: r.institution})
}

func (r *Requester) UnmarshalJSON(b []byte) error {
	var raw requesterJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	var (
		decoded Requester
		err     error
	)
	switch raw.Kind {
	case RequesterPatient:
		if raw.Patient == nil {
			return errors.New("patient requester without patient")
		}
		decoded, err = NewPatientRequester(*raw.Patient, raw.Institution)
	case RequesterInstitution:
		if raw.Institution == nil {
			return errors.New("institution requester without institution")
		}
		decoded, err = NewInstitutionRequester(*raw.Institution)
	default:
		decoded, err = RequesterFrom(raw.Patient, raw.Institution)
	}
	if err != nil {
		return err
	}
	*r = decoded
	return nil
}
