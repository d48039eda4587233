package models

import (
	activity "lifeflow/internal/activity/models"
	id "lifeflow/pkg/domain"
)

// AuthResult is returned by register and login.
type AuthResult struct {
	Message string `json:"message"`
	Token   string `json:"token"`
	User    *User  `json:"user"`
}

type ProfileStats struct {
	TotalDonors   int `json:"totalDonors"`
	TotalRequests int `json:"totalRequests"`
	DaysActive    int `json:"daysActive"`
}

type Profile struct {
	User  *User        `json:"user"`
	Stats ProfileStats `json:"stats"`
}

type UserList struct {
	Items      []*User       `json:"items"`
	Pagination id.Pagination `json:"pagination"`
}

type ActivityList struct {
	Items      []activity.Entry `json:"items"`
	Pagination id.Pagination    `json:"pagination"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type UserResponse struct {
	Message string `json:"message"`
	User    *User  `json:"user"`
}
