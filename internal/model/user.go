package model

// User represents an admin account as stored in the `users` table.  The
// json tags are omitted because handlers define their own response shapes
// and PasswordHash must never leave the repository layer.
//
// Fields:
//
//	ID            – primary key identifier of the user.
//	Username      – unique login name.
//	PasswordHash  – bcrypt hashed password.
//	RecoveryEmail – contact address for password recovery.
//	Role          – role name written into issued tokens (Admin).
type User struct {
	ID            uint64
	Username      string
	PasswordHash  string
	RecoveryEmail string
	Role          string
}

// RoleAdmin is the only role the panel knows about.
const RoleAdmin = "Admin"
