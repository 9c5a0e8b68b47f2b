// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data, similar to classes in other languages,
// but without inheritance. Go favours composition over inheritance.
package model

import "time"

// DefaultProfileImage is assigned to accounts that have no picture of their own.
const DefaultProfileImage = "https://via.placeholder.com/100"

// User represents an account, either local (username + password) or
// provisioned through Google sign-in.
//
// WHY Password *string?
// OAuth-only accounts never set a password. A nil pointer keeps "no password"
// distinct from "empty password" and is stored as NULL / JSON null.
// The json:"-" tag keeps the hash out of every API response; the stores
// persist it through their own record types.
//
// WHY GoogleID *string?
// Google subject ids are opaque strings and only present for federated
// accounts. Uniqueness is enforced only when the value is set.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Password     *string   `json:"-"`
	Name         string    `json:"name"`
	ProfileImage string    `json:"profileImage"`
	Verified     bool      `json:"verified"`
	GoogleID     *string   `json:"googleId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// SessionUser is the identity snapshot held by a session and attached to the
// request context by the auth middleware. It is captured at login and not
// refreshed afterwards.
type SessionUser struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Verified bool   `json:"verified"`
}

// SessionUser returns the session snapshot of u.
func (u *User) SessionUser() SessionUser {
	return SessionUser{
		ID:       u.ID,
		Name:     u.Name,
		Username: u.Username,
		Verified: u.Verified,
	}
}

// PublicProfile is the subset of a user exposed by GET /api/users/{id}.
type PublicProfile struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Username     string `json:"username"`
	ProfileImage string `json:"profileImage"`
}

// PublicProfile returns the publicly visible fields of u.
func (u *User) PublicProfile() PublicProfile {
	return PublicProfile{
		ID:           u.ID,
		Name:         u.Name,
		Username:     u.Username,
		ProfileImage: u.ProfileImage,
	}
}
