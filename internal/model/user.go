package model

import "time"

// Profile represents an application user record as stored in the
// `profiles` table.  Each field corresponds to a column in the
// database.  The json tags are omitted here because these structs
// are primarily used internally by the repository layer; handlers
// define separate response types with appropriate JSON tags.
// A profile does not carry its role directly: roles live in the
// `user_roles` table and the absence of a row means role "user".
//
// Fields:
//  ID           – primary key identifier of the user.
//  FullName     – optional display name (empty when never set).
//  Email        – unique email address.
//  PasswordHash – bcrypt hashed password.
//  CreatedAt    – timestamp of creation.
type Profile struct {
	ID           uint64    // profiles.id
	FullName     string    // profiles.full_name (empty when NULL)
	Email        string    // profiles.email
	PasswordHash string    // profiles.password_hash
	CreatedAt    time.Time // profiles.created_at
}

// Role names accepted by the `user_roles` table.  RoleUser is the
// implicit default: a user with no role row is treated as a plain
// user for authorization purposes.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// ValidRole reports whether the given string is a recognized role name.
func ValidRole(role string) bool {
	return role == RoleAdmin || role == RoleUser
}

// UserRole represents a row in the `user_roles` table.  The application
// maintains at most one row per user; role changes replace the previous
// rows inside a single transaction.
//
// Fields:
//  ID     – primary key identifier.
//  UserID – owner of the role.
//  Role   – role name ("admin" or "user").
type UserRole struct {
	ID     uint64 // user_roles.id
	UserID uint64 // user_roles.user_id
	Role   string // user_roles.role
}

// RefreshToken models an entry in the `refresh_tokens` table.  Each
// refresh token belongs to a user and contains metadata for expiry
// and revocation.  The plain token is not stored; only its
// SHA‑256 hash.
//
// Fields:
//  ID        – primary key identifier.
//  UserID    – owner of the token.
//  TokenHash – SHA‑256 hex digest of the token value.
//  ExpiresAt – expiration timestamp of the token.
//  RevokedAt – when the token was revoked (null if still active).
//  CreatedAt – timestamp of creation.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    uint64     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}
