package domain

import (
	dErrors "lifeflow/pkg/domain-errors"
)

// BloodType is an ABO/Rh group.
type BloodType string

const (
	APositive  BloodType = "A+"
	ANegative  BloodType = "A-"
	BPositive  BloodType = "B+"
	BNegative  BloodType = "B-"
	ABPositive BloodType = "AB+"
	ABNegative BloodType = "AB-"
	OPositive  BloodType = "O+"
	ONegative  BloodType = "O-"
)

var bloodTypes = []BloodType{
	APositive, ANegative, BPositive, BNegative,
	ABPositive, ABNegative, OPositive, ONegative,
}

// BloodTypes returns all eight groups in display order.
func BloodTypes() []BloodType {
	return append([]BloodType(nil), bloodTypes...)
}

func (b BloodType) IsValid() bool {
	for _, bt := range bloodTypes {
		if b == bt {
			return true
		}
	}
	return false
}

func (b BloodType) String() string {
	return string(b)
}

func ParseBloodType(s string) (BloodType, error) {
	bt := BloodType(s)
	if !bt.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "Please provide a valid blood type")
	}
	return bt, nil
}
