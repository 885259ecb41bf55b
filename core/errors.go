package core

import "errors"

// ErrNotFound is returned when a requested object does not exist in storage.
var ErrNotFound = errors.New("not found")

// ErrBlockHash means a block's Hash field does not match its header.
var ErrBlockHash = errors.New("block hash does not match header")

// Precondition violations. The caller can correct these and retry.
var (
	ErrNotEnoughPoints         = errors.New("not enough points")
	ErrNoPractise              = errors.New("no practice round played yet")
	ErrTooManyPractise         = errors.New("practice round limit reached")
	ErrNoActiveRound           = errors.New("no active round")
	ErrUserNotRegistered       = errors.New("user not registered")
	ErrPlayerAlreadyRegistered = errors.New("player already registered")
	ErrNoPermission            = errors.New("no permission")
	ErrNoThePlayer             = errors.New("caller is not the player of this game")
	ErrNotAdmin                = errors.New("not an admin")
	ErrAccountAlreadyAdmin     = errors.New("account is already an admin")
	ErrBadOrigin               = errors.New("bad origin")
	ErrTokenRequestTooEarly    = errors.New("token request too early")
	ErrItemLocked              = errors.New("item transfer is locked")
	ErrStringTooLong           = errors.New("string exceeds limit")
)

// Resource not found.
var (
	ErrNoActiveGame        = errors.New("no active game")
	ErrListingDoesNotExist = errors.New("listing does not exist")
	ErrOfferDoesNotExist   = errors.New("offer does not exist")
	ErrNoProperty          = errors.New("no property")
	ErrCollectionUnknown   = errors.New("collection color unknown")
	ErrUnknownCollection   = errors.New("unknown collection")
	ErrUnknownItem         = errors.New("unknown item")
)

// Capacity exhaustion. These point at bound misconfiguration or abuse.
var (
	ErrTooManyGames  = errors.New("too many games expiring in block")
	ErrTooManyTest   = errors.New("too many properties")
	ErrTooManyAdmins = errors.New("too many admins")
	ErrInvalidIndex  = errors.New("invalid index")
)

// Arithmetic failures. Never clamped.
var (
	ErrArithmeticOverflow  = errors.New("arithmetic overflow")
	ErrArithmeticUnderflow = errors.New("arithmetic underflow")
	ErrMultiply            = errors.New("multiply error")
	ErrDivision            = errors.New("division error")
	ErrConversion          = errors.New("conversion error")
)
