package models

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "lifeflow/pkg/domain"
	dErrors "lifeflow/pkg/domain-errors"
)

var now = time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)

func newAvailable(t *testing.T) *Unit {
	t.Helper()
	u, err := NewUnit(id.OPositive, ComponentWholeBlood, LocationMainBank, now.AddDate(0, 0, -3), time.Time{}, now)
	require.NoError(t, err)
	return u
}

func TestNewUnitDerivesExpiryFromShelfLife(t *testing.T) {
	collected := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cases := map[Component]int{
		ComponentWholeBlood:      35,
		ComponentRedCells:        42,
		ComponentPlasma:          365,
		ComponentPlatelets:       5,
		ComponentCryoprecipitate: 365,
	}
	for component, days := range cases {
		t.Run(string(component), func(t *testing.T) {
			u, err := NewUnit(id.APositive, component, "", collected, time.Time{}, now)
			require.NoError(t, err)
			assert.Equal(t, collected.AddDate(0, 0, days), u.ExpirationDate)
			assert.Equal(t, LocationMainBank, u.Location)
			assert.Equal(t, StatusAvailable, u.Status)
			assert.Equal(t, DefaultTestResults(), u.TestResults)
		})
	}
}

func TestNewUnitKeepsSuppliedExpiry(t *testing.T) {
	collected := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	expires := time.Date(2024, 2, 5, 0, 0, 0, 0, time.UTC)
	u, err := NewUnit(id.OPositive, "", "", collected, expires, now)
	require.NoError(t, err)
	assert.Equal(t, expires, u.ExpirationDate)
	assert.Equal(t, ComponentWholeBlood, u.Component)
	assert.True(t, strings.HasPrefix(u.SerialNumber, "O+-WHOLE_BLOOD-"))
}

func TestNewUnitRejectsInvalidInput(t *testing.T) {
	collected := now.AddDate(0, 0, -1)
	_, err := NewUnit("Z+", ComponentPlasma, "", collected, time.Time{}, now)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	_, err = NewUnit(id.APositive, "serum", "", collected, time.Time{}, now)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	_, err = NewUnit(id.APositive, ComponentPlasma, "garage", collected, time.Time{}, now)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	_, err = NewUnit(id.APositive, ComponentPlasma, "", collected, collected.Add(-time.Hour), now)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}

func TestSerialNumbersAreDistinct(t *testing.T) {
	seen := map[string]bool{}
	for range 100 {
		s := NewSerialNumber(id.ABNegative, ComponentPlatelets, now)
		assert.False(t, seen[s], "duplicate serial %s", s)
		assert.Equal(t, strings.ToUpper(s), s)
		seen[s] = true
	}
}

func TestComputedAccessors(t *testing.T) {
	u := newAvailable(t)
	u.ExpirationDate = now.Add(36 * time.Hour)

	assert.Equal(t, 2, u.DaysUntilExpiration(now))
	assert.False(t, u.IsExpired(now))
	assert.Equal(t, 3, u.StorageDays(now))
	assert.True(t, u.IsSafe(now))

	later := now.Add(48 * time.Hour)
	assert.True(t, u.IsExpired(later))
	assert.False(t, u.IsSafe(later))
	assert.True(t, u.IsOverdue(later))
}

func TestIsSafe(t *testing.T) {
	t.Run("critical positive result is unsafe", func(t *testing.T) {
		for _, mutate := range []func(*TestResults){
			func(r *TestResults) { r.HIV = TestPositive },
			func(r *TestResults) { r.HepatitisB = TestPositive },
			func(r *TestResults) { r.HepatitisC = TestPositive },
			func(r *TestResults) { r.Syphilis = TestPositive },
		} {
			u := newAvailable(t)
			mutate(&u.TestResults)
			assert.False(t, u.IsSafe(now))
		}
	})

	t.Run("non-critical positive result stays safe", func(t *testing.T) {
		u := newAvailable(t)
		u.TestResults.Malaria = TestPositive
		u.TestResults.Chagas = TestPositive
		assert.True(t, u.IsSafe(now))
	})

	t.Run("reserved unit is not safe", func(t *testing.T) {
		u := newAvailable(t)
		u.ApplyReserve(id.NewRequestID(), now)
		assert.False(t, u.IsSafe(now))
	})
}

func TestLifecycleTransitions(t *testing.T) {
	requestID := id.NewRequestID()
	staff := id.NewUserID()

	t.Run("reserve then issue then return", func(t *testing.T) {
		u := newAvailable(t)
		require.NoError(t, u.CanReserve())
		u.ApplyReserve(requestID, now)
		assert.Equal(t, StatusReserved, u.Status)

		require.NoError(t, u.CanIssue())
		u.ApplyIssue(requestID, staff, now)
		assert.Equal(t, StatusIssued, u.Status)
		require.NotNil(t, u.IssuedTo)
		assert.Equal(t, requestID, *u.IssuedTo)
		assert.Equal(t, staff, *u.IssuedBy)
		assert.Nil(t, u.ReservedFor)

		require.NoError(t, u.CanReturn())
		u.ApplyReturn("not needed", now)
		assert.Equal(t, StatusAvailable, u.Status)
		assert.Nil(t, u.IssuedTo)
		assert.Nil(t, u.IssuedDate)
		assert.Nil(t, u.IssuedBy)
		assert.Equal(t, "not needed", u.ReturnReason)
		require.NotNil(t, u.ReturnDate)
	})

	t.Run("issue directly from available", func(t *testing.T) {
		u := newAvailable(t)
		require.NoError(t, u.CanIssue())
	})

	t.Run("invalid transitions name the current status", func(t *testing.T) {
		u := newAvailable(t)
		err := u.CanReturn()
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		assert.Equal(t, "Cannot return unit with status available", dErrors.MessageOf(err))

		u.ApplyReserve(requestID, now)
		assert.Equal(t, "Cannot reserve unit with status reserved", dErrors.MessageOf(u.CanReserve()))

		u.ApplyDiscard("broken bag", now)
		assert.Equal(t, "Cannot issue unit with status discarded", dErrors.MessageOf(u.CanIssue()))
	})

	t.Run("discard appends to notes", func(t *testing.T) {
		u := newAvailable(t)
		u.Notes = "intake ok"
		u.ApplyDiscard("hemolysis", now)
		assert.Equal(t, StatusDiscarded, u.Status)
		assert.Equal(t, "intake ok\nDiscarded: hemolysis (2024-01-10T09:00:00Z)", u.Notes)
	})
}

func TestBuildSummary(t *testing.T) {
	summary := BuildSummary([]ComponentCount{
		{BloodType: id.OPositive, Component: ComponentPlasma, Units: 2, Count: 2},
		{BloodType: id.APositive, Component: ComponentWholeBlood, Units: 3, Count: 3},
		{BloodType: id.OPositive, Component: ComponentWholeBlood, Units: 5, Count: 5},
	})
	require.Len(t, summary, 2)
	assert.Equal(t, id.APositive, summary[0].BloodType)
	assert.Equal(t, id.OPositive, summary[1].BloodType)
	assert.Equal(t, 7, summary[1].TotalUnits)
	assert.Equal(t, ComponentPlasma, summary[1].Components[0].Component)
	assert.Equal(t, ComponentWholeBlood, summary[1].Components[1].Component)
}
