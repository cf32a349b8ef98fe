package model

import "time"

// SuperAdminRoleID is the distinguished role that bypasses every
// permission check.
const SuperAdminRoleID uint64 = 1

// User represents an account record as stored in the `users` table.  The
// json tags are omitted because these structs are used by the repository
// layer; handlers define their own response types.
//
// Fields:
//
//	ID              – primary key identifier of the user.
//	Name            – display name.
//	Email           – unique email address, used as the login identifier.
//	PasswordHash    – argon2id PHC string; empty until password setup.
//	RoleID          – foreign key into the roles table.
//	RoleName        – joined roles.name (only filled by queries that join).
//	IsActive        – whether the account may log in.
//	IsEmailVerified – whether the verification link was followed.
//	LastLogin       – timestamp of the last successful login (nullable).
type User struct {
	ID              uint64
	Name            string
	Email           string
	PasswordHash    string
	RoleID          uint64
	RoleName        string
	IsActive        bool
	IsEmailVerified bool
	LastLogin       *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Role represents a row in the `roles` table.  Role 1 is the super-admin
// and is never editable.
type Role struct {
	ID         uint64 `json:"id"`
	Name       string `json:"name"`
	IsActive   bool   `json:"isActive"`
	IsEditable bool   `json:"isEditable"`
	UsersCount int    `json:"usersCount"`
}

// RoleUser is a compact user listing used by the role administration pages.
type RoleUser struct {
	ID        uint64     `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	IsActive  bool       `json:"isActive"`
	LastLogin *time.Time `json:"lastLogin"`
	RoleID    uint64     `json:"roleId"`
}

// RefreshToken models an entry in the `user_refresh_tokens` table.  The
// plain token is not stored; only its SHA-256 hash.
type RefreshToken struct {
	ID        uint64
	UserID    uint64
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}
