package model

import "time"

type User struct {
	ID           int64      `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Name         string     `json:"name"`
	Role         string     `json:"role"`
	ContractorID *int64     `json:"contractor_id,omitempty"`
	Active       bool       `json:"active"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Actor 是一次请求的已认证身份，由 JWT claims 还原
type Actor struct {
	UserID       int64
	Role         string
	ContractorID *int64
}
