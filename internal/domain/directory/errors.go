package directory

import "errors"

var (
	// ErrSlugTaken is returned when creating a tenant record whose slug
	// is already registered in the directory.
	ErrSlugTaken = errors.New("tenant slug already taken")

	// ErrUsernameTaken is returned when registering with a username that
	// already exists.
	ErrUsernameTaken = errors.New("username already taken")

	// ErrEmailTaken is returned when registering with an email that
	// already exists.
	ErrEmailTaken = errors.New("email already registered")

	// ErrInvalidCredentials is returned for unknown users and wrong
	// passwords alike so login probing cannot tell them apart.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrAccountLocked is returned when too many failed logins have
	// temporarily locked the account.
	ErrAccountLocked = errors.New("account temporarily locked")

	// ErrAccountInactive is returned when the principal has been disabled.
	ErrAccountInactive = errors.New("account is inactive")

	// ErrPrincipalNotFound is returned when the referenced principal
	// record does not exist.
	ErrPrincipalNotFound = errors.New("principal not found")

	// ErrMembershipExists is returned when inviting a principal that
	// already holds an active membership in the tenant.
	ErrMembershipExists = errors.New("principal already has an active membership")

	// ErrMembershipNotFound is returned when the referenced membership
	// does not exist.
	ErrMembershipNotFound = errors.New("membership not found")
)
