package domain

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedRequest     = errors.New("malformed_request")
	ErrSignatureRejected    = errors.New("signature_rejected")
	ErrUpstreamUnavailable  = errors.New("upstream_unavailable")
	ErrStorageUnavailable   = errors.New("storage_unavailable")
	ErrCustomizationFailure = errors.New("customization_failure")
	ErrDeliveryInFlight     = errors.New("delivery_in_flight")
	ErrSessionNotFound      = errors.New("session_not_found")
	ErrPayloadTooLarge      = errors.New("payload_too_large")
)

// Signature rejections. All of them match ErrSignatureRejected.
var (
	ErrEmptyPayload              = fmt.Errorf("%w: empty_payload", ErrSignatureRejected)
	ErrMalformedHeader           = fmt.Errorf("%w: malformed_header", ErrSignatureRejected)
	ErrInvalidSignature          = fmt.Errorf("%w: invalid_signature", ErrSignatureRejected)
	ErrTimestampOutsideTolerance = fmt.Errorf("%w: timestamp_outside_tolerance", ErrSignatureRejected)
	ErrMalformedEvent            = fmt.Errorf("%w: malformed_event", ErrSignatureRejected)
)
