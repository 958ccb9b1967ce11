package domain

import (
	"time"

	"github.com/google/uuid"
)

type UserRole string

const (
	RoleClient  UserRole = "client"
	RoleManager UserRole = "manager"
	RoleAdmin   UserRole = "admin"
)

func (r UserRole) IsValid() bool {
	switch r {
	case RoleClient, RoleManager, RoleAdmin:
		return true
	}
	return false
}

type User struct {
	ID        uuid.UUID
	Phone     string
	Name      string
	PinHash   string
	Role      UserRole
	CreatedAt time.Time
}
