package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Contract validation errors
	CodeContractAddressEmpty   Code = "CONTRACT_ADDRESS_EMPTY"
	CodeContractPeriodInvalid  Code = "CONTRACT_PERIOD_INVALID"
	CodeContractRentInvalid    Code = "CONTRACT_RENT_INVALID"
	CodeContractDepositInvalid Code = "CONTRACT_DEPOSIT_INVALID"
	CodeContractRoleInvalid    Code = "CONTRACT_ROLE_INVALID"
	CodeContractIDInvalid      Code = "CONTRACT_ID_INVALID"
	CodeInviteTokenInvalid     Code = "INVITE_TOKEN_INVALID"
	CodeRequestInvalid         Code = "REQUEST_INVALID"

	// Authorization errors
	CodeUnauthenticated        Code = "UNAUTHENTICATED"
	CodeNotContractCreator     Code = "NOT_CONTRACT_CREATOR"
	CodeNotContractParty       Code = "NOT_CONTRACT_PARTY"
	CodeCreatorCannotRedeem    Code = "CREATOR_CANNOT_REDEEM_OWN_INVITE"
	CodeAccessTokenInvalid     Code = "ACCESS_TOKEN_INVALID"
	CodeAccessTokenExpired     Code = "ACCESS_TOKEN_EXPIRED"
	CodeAccessTokenMismatch    Code = "ACCESS_TOKEN_MISMATCH"
	CodeParticipantNameMissing Code = "PARTICIPANT_NAME_MISSING"

	// Conflict errors
	CodeRoleAlreadyBound      Code = "ROLE_ALREADY_BOUND"
	CodeInviteAlreadyRedeemed Code = "INVITE_ALREADY_REDEEMED"

	// Lifecycle state errors
	CodeContractStatusDisallowsOp       Code = "CONTRACT_STATUS_DISALLOWS_OPERATION"
	CodeContractInvalidStatusTransition Code = "CONTRACT_INVALID_STATUS_TRANSITION"
	CodeSigningNotAllowed               Code = "SIGNING_NOT_ALLOWED"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"

	// Signing provider errors
	CodeProviderUnavailable Code = "SIGNING_PROVIDER_UNAVAILABLE"
	CodeProviderTimeout     Code = "SIGNING_PROVIDER_TIMEOUT"
)

// Kind groups codes into the coarse failure categories callers branch on.
type Kind string

const (
	// KindValidation marks malformed input rejected before any write.
	KindValidation Kind = "VALIDATION"
	// KindAuthorization marks a caller identity lacking rights for an operation.
	KindAuthorization Kind = "AUTHORIZATION"
	// KindConflict marks a uniqueness or single-use invariant violation.
	KindConflict Kind = "CONFLICT"
	// KindState marks an operation disallowed in the current lifecycle state.
	KindState Kind = "STATE"
	// KindNotFound marks a missing contract or invite.
	KindNotFound Kind = "NOT_FOUND"
	// KindProvider marks a transient external signing provider failure.
	KindProvider Kind = "PROVIDER"
	// KindUnknown marks everything else.
	KindUnknown Kind = "UNKNOWN"
)

// Kind maps a code to its failure category.
func (c Code) Kind() Kind {
	switch c {
	case CodeContractAddressEmpty, CodeContractPeriodInvalid, CodeContractRentInvalid,
		CodeContractDepositInvalid, CodeContractRoleInvalid, CodeContractIDInvalid,
		CodeInviteTokenInvalid, CodeParticipantNameMissing, CodeRequestInvalid:
		return KindValidation
	case CodeUnauthenticated, CodeNotContractCreator, CodeNotContractParty,
		CodeCreatorCannotRedeem, CodeAccessTokenInvalid, CodeAccessTokenExpired,
		CodeAccessTokenMismatch:
		return KindAuthorization
	case CodeRoleAlreadyBound, CodeInviteAlreadyRedeemed:
		return KindConflict
	case CodeContractStatusDisallowsOp, CodeContractInvalidStatusTransition,
		CodeSigningNotAllowed:
		return KindState
	case CodeNotFound:
		return KindNotFound
	case CodeProviderUnavailable, CodeProviderTimeout:
		return KindProvider
	default:
		return KindUnknown
	}
}

// Retryable reports whether retrying without a state change can succeed.
// Only provider failures are transient; every other kind reproduces the same
// failure until the contract state changes.
func (k Kind) Retryable() bool {
	return k == KindProvider
}

// HTTPStatus maps a code to the HTTP status rendered at the API boundary.
func (c Code) HTTPStatus() int {
	switch c.Kind() {
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindAuthorization:
		if c == CodeUnauthenticated || c == CodeAccessTokenInvalid || c == CodeAccessTokenExpired {
			return http.StatusUnauthorized
		}
		return http.StatusForbidden
	case KindConflict, KindState:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindProvider:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
