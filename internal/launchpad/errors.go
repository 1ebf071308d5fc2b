// internal/launchpad/errors.go
package launchpad

import (
	"errors"
	"fmt"

	"github.com/rovshanmuradov/launchpad/internal/curve"
	"github.com/rovshanmuradov/launchpad/internal/storage"
)

// Kind groups protocol errors by how a caller should react.
type Kind uint8

const (
	KindValidation Kind = iota
	KindState
	KindEconomic
	KindArithmetic
	KindAuthorization
	KindExternal
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindState:
		return "state_conflict"
	case KindEconomic:
		return "economic"
	case KindArithmetic:
		return "arithmetic"
	case KindAuthorization:
		return "authorization"
	case KindExternal:
		return "external"
	default:
		return "unknown"
	}
}

// Error is a protocol error with a stable numeric code.
type Error struct {
	Code uint32
	Name string
	Msg  string
	Kind Kind
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Name, e.Code, e.Msg)
}

const errorCodeBase = 6000

var registry = map[uint32]*Error{}

func newError(offset uint32, name, msg string, kind Kind) *Error {
	e := &Error{Code: errorCodeBase + offset, Name: name, Msg: msg, Kind: kind}
	registry[e.Code] = e
	return e
}

var (
	ErrInsufficientFunds           = newError(0, "InsufficientFunds", "not enough lamports to buy tokens", KindEconomic)
	ErrInsufficientVaultBalance    = newError(1, "InsufficientVaultBalance", "vault does not hold enough funds", KindEconomic)
	ErrArithmeticOverflow          = newError(2, "ArithmeticOverflow", "numerical overflow occurred", KindArithmetic)
	ErrAlreadyMigrated             = newError(3, "AlreadyMigrated", "liquidity has already been migrated", KindState)
	ErrTargetNotReached            = newError(4, "TargetNotReached", "funds raised have not reached the migration threshold", KindState)
	ErrExceedsSupply               = newError(5, "ExceedsSupply", "token amount exceeds available supply", KindValidation)
	ErrSlippageExceeded            = newError(6, "SlippageExceeded", "slippage tolerance exceeded", KindEconomic)
	ErrInvalidAmount               = newError(7, "InvalidAmount", "invalid amount specified", KindValidation)
	ErrSoldOut                     = newError(8, "SoldOut", "all tokens have been sold", KindState)
	ErrInsufficientTokensSold      = newError(9, "InsufficientTokensSold", "insufficient tokens sold to support this sale", KindValidation)
	ErrAwaitingGraduation          = newError(10, "AwaitingGraduation", "sale reached its target and awaits migration", KindState)
	ErrUnauthorizedAdmin           = newError(11, "UnauthorizedAdmin", "only admin can perform this action", KindAuthorization)
	ErrInsufficientFeeVaultBalance = newError(12, "InsufficientFeeVaultBalance", "fee vault does not have enough balance", KindEconomic)
	ErrWrongVault                  = newError(13, "WrongVault", "wrong vault account provided", KindValidation)
	ErrWrongCreator                = newError(14, "WrongCreator", "only the creator or admin can migrate", KindAuthorization)
	ErrInsufficientTokenBalance    = newError(15, "InsufficientTokenBalance", "seller does not hold enough tokens", KindEconomic)
	ErrInvalidTokenOrdering        = newError(16, "InvalidTokenOrdering", "pool mints cannot be ordered", KindValidation)
	ErrInvalidAmmConfig            = newError(17, "InvalidAmmConfig", "invalid amm config", KindValidation)
	ErrWrongMint                   = newError(18, "WrongMint", "wrong mint provided", KindValidation)
	ErrInvalidMigrationFee         = newError(19, "InvalidMigrationFee", "migration fee above 1 SOL", KindValidation)
	ErrInvalidTradingFee           = newError(20, "InvalidTradingFee", "trading fee above 1000 bps", KindValidation)
	ErrInvalidStartingMcap         = newError(21, "InvalidStartingMcap", "starting market cap outside platform bounds", KindValidation)
	ErrInvalidTargetMcap           = newError(22, "InvalidTargetMcap", "target funds outside platform bounds", KindValidation)
	ErrAlreadyInitialized          = newError(23, "AlreadyInitialized", "platform already initialized", KindState)
	ErrNotInitialized              = newError(24, "NotInitialized", "platform not initialized", KindState)
	ErrAssetExists                 = newError(25, "AssetExists", "asset already launched", KindState)
	ErrAssetNotFound               = newError(26, "AssetNotFound", "asset not found", KindValidation)
	ErrInvalidSignature            = newError(27, "InvalidSignature", "request signature does not verify", KindAuthorization)
	ErrInvalidMetadata             = newError(28, "InvalidMetadata", "invalid asset metadata", KindValidation)
	ErrPoolCreationFailed          = newError(29, "PoolCreationFailed", "external pool creation failed", KindExternal)
	ErrRequestReplayed             = newError(30, "RequestReplayed", "signed request was already executed", KindAuthorization)
)

// ErrorByCode returns the protocol error registered under code.
func ErrorByCode(code uint32) (*Error, bool) {
	e, ok := registry[code]
	return e, ok
}

// CodeOf extracts the protocol error from err.
func CodeOf(err error) (*Error, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// fail wraps a protocol error with detail.
func fail(e *Error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", e, fmt.Sprintf(format, args...))
}

// translate maps lower layer errors onto protocol errors.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := CodeOf(err); ok {
		return err
	}
	switch {
	case errors.Is(err, curve.ErrArithmeticOverflow), errors.Is(err, storage.ErrOverflow):
		return fmt.Errorf("%w: %v", ErrArithmeticOverflow, err)
	case errors.Is(err, curve.ErrExceedsSupply):
		return fmt.Errorf("%w: %v", ErrExceedsSupply, err)
	case errors.Is(err, curve.ErrInsufficientSold):
		return fmt.Errorf("%w: %v", ErrInsufficientTokensSold, err)
	case errors.Is(err, curve.ErrInvalidParams):
		return fmt.Errorf("%w: %v", ErrInvalidTargetMcap, err)
	}
	return err
}
