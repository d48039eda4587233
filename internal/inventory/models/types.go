package models

import (
	"time"

	id "lifeflow/pkg/domain"
)

// Component is the blood product a unit carries.
type Component string

const (
	ComponentWholeBlood      Component = "whole_blood"
	ComponentPlasma          Component = "plasma"
	ComponentPlatelets       Component = "platelets"
	ComponentRedCells        Component = "red_cells"
	ComponentCryoprecipitate Component = "cryoprecipitate"
)

// shelfLifeDays per component.
var shelfLifeDays = map[Component]int{
	ComponentWholeBlood:      35,
	ComponentRedCells:        42,
	ComponentPlasma:          365,
	ComponentPlatelets:       5,
	ComponentCryoprecipitate: 365,
}

func (c Component) IsValid() bool {
	_, ok := shelfLifeDays[c]
	return ok
}

// ShelfLife returns the storage lifetime; unknown components get whole
// blood's.
func (c Component) ShelfLife() time.Duration {
	days, ok := shelfLifeDays[c]
	if !ok {
		days = shelfLifeDays[ComponentWholeBlood]
	}
	return time.Duration(days) * 24 * time.Hour
}

func (c Component) ExpirationFrom(collected time.Time) time.Time {
	return collected.Add(c.ShelfLife())
}

// Status is the unit lifecycle state.
type Status string

const (
	StatusAvailable   Status = "available"
	StatusReserved    Status = "reserved"
	StatusIssued      Status = "issued"
	StatusExpired     Status = "expired"
	StatusDiscarded   Status = "discarded"
	StatusQuarantined Status = "quarantined"
)

// Location is the storage site.
type Location string

const (
	LocationMainBank   Location = "main_bank"
	LocationSatellite1 Location = "satellite_1"
	LocationSatellite2 Location = "satellite_2"
	LocationMobileUnit Location = "mobile_unit"
)

func (l Location) IsValid() bool {
	switch l {
	case LocationMainBank, LocationSatellite1, LocationSatellite2, LocationMobileUnit:
		return true
	}
	return false
}

// TestResult is the outcome of one screening test.
type TestResult string

const (
	TestNegative  TestResult = "negative"
	TestPositive  TestResult = "positive"
	TestPending   TestResult = "pending"
	TestNotTested TestResult = "not_tested"
)

type TestResults struct {
	HIV        TestResult `json:"hiv"`
	HepatitisB TestResult `json:"hepatitisB"`
	HepatitisC TestResult `json:"hepatitisC"`
	Syphilis   TestResult `json:"syphilis"`
	Malaria    TestResult `json:"malaria"`
	Chagas     TestResult `json:"chagas"`
}

func DefaultTestResults() TestResults {
	return TestResults{
		HIV:        TestPending,
		HepatitisB: TestPending,
		HepatitisC: TestPending,
		Syphilis:   TestPending,
		Malaria:    TestPending,
		Chagas:     TestPending,
	}
}

// HasCriticalPositive checks HIV, hepatitis B/C and syphilis only.
func (t TestResults) HasCriticalPositive() bool {
	return t.HIV == TestPositive ||
		t.HepatitisB == TestPositive ||
		t.HepatitisC == TestPositive ||
		t.Syphilis == TestPositive
}

// ListFilter narrows the available-units listing.
type ListFilter struct {
	BloodType id.BloodType
	Location  Location
}

// ComponentCount is one (blood type, component) group of available units.
type ComponentCount struct {
	BloodType id.BloodType
	Component Component
	Units     int
	Count     int
}
