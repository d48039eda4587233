package models

import (
	"sort"
	"time"

	id "lifeflow/pkg/domain"
)

// UnitView is a unit with its derived values evaluated at read time.
type UnitView struct {
	*Unit
	DaysUntilExpiration int  `json:"daysUntilExpiration"`
	IsExpired           bool `json:"isExpired"`
	StorageDays         int  `json:"storageDays"`
	IsSafe              bool `json:"isSafe"`
}

func NewUnitView(u *Unit, now time.Time) UnitView {
	return UnitView{
		Unit:                u,
		DaysUntilExpiration: u.DaysUntilExpiration(now),
		IsExpired:           u.IsExpired(now),
		StorageDays:         u.StorageDays(now),
		IsSafe:              u.IsSafe(now),
	}
}

func NewUnitViews(units []*Unit, now time.Time) []UnitView {
	views := make([]UnitView, 0, len(units))
	for _, u := range units {
		views = append(views, NewUnitView(u, now))
	}
	return views
}

type UnitList struct {
	Items      []UnitView    `json:"items"`
	Pagination id.Pagination `json:"pagination"`
}

type AddUnitsResponse struct {
	Message string     `json:"message"`
	Units   []UnitView `json:"units"`
}

// ComponentSummary is one component's share of a blood type's stock.
type ComponentSummary struct {
	Component Component `json:"component"`
	Units     int       `json:"units"`
	Count     int       `json:"count"`
}

// TypeSummary groups a blood type's available stock by component.
type TypeSummary struct {
	BloodType  id.BloodType       `json:"bloodType"`
	TotalUnits int                `json:"totalUnits"`
	Components []ComponentSummary `json:"components"`
}

// BuildSummary folds per-component counts into per-type groups ordered by
// blood type, with components ordered by name.
func BuildSummary(counts []ComponentCount) []TypeSummary {
	byType := make(map[id.BloodType]*TypeSummary)
	for _, c := range counts {
		ts, ok := byType[c.BloodType]
		if !ok {
			ts = &TypeSummary{BloodType: c.BloodType, Components: []ComponentSummary{}}
			byType[c.BloodType] = ts
		}
		ts.TotalUnits += c.Units
		ts.Components = append(ts.Components, ComponentSummary{Component: c.Component, Units: c.Units, Count: c.Count})
	}
	out := make([]TypeSummary, 0, len(byType))
	for _, bt := range id.BloodTypes() {
		ts, ok := byType[bt]
		if !ok {
			continue
		}
		sort.Slice(ts.Components, func(i, j int) bool {
			return ts.Components[i].Component < ts.Components[j].Component
		})
		out = append(out, *ts)
	}
	return out
}

type ExpireResult struct {
	Expired int `json:"expired"`
}
