package models

import (
	"time"

	id "lifeflow/pkg/domain"
)

// RequestView adds the derived fields to a request.
type RequestView struct {
	*Request
	TotalUnitsRequested   int  `json:"totalUnitsRequested"`
	TotalUnitsFulfilled   int  `json:"totalUnitsFulfilled"`
	FulfillmentPercentage int  `json:"fulfillmentPercentage"`
	DaysUntilRequired     int  `json:"daysUntilRequired"`
	IsUrgent              bool `json:"isUrgent"`
}

func NewRequestView(r *Request, now time.Time) RequestView {
	return RequestView{
		Request:               r,
		TotalUnitsRequested:   r.TotalUnitsRequested(),
		TotalUnitsFulfilled:   r.TotalUnitsFulfilled(),
		FulfillmentPercentage: r.FulfillmentPercentage(),
		DaysUntilRequired:     r.DaysUntilRequired(now),
		IsUrgent:              r.IsUrgent(),
	}
}

func NewRequestViews(requests []*Request, now time.Time) []RequestView {
	out := make([]RequestView, 0, len(requests))
	for _, r := range requests {
		out = append(out, NewRequestView(r, now))
	}
	return out
}

type RequestList struct {
	Items      []RequestView `json:"items"`
	Pagination id.Pagination `json:"pagination"`
}

type RequestResponse struct {
	Message string      `json:"message"`
	Request RequestView `json:"request"`
}

type MessageResponse struct {
	Message string `json:"message"`
}
