package domain

import (
	"context"
	"errors"
	"fmt"
)

// Category sentinels. Use with NewSubSystemError for subsystem-specific errors.
var (
	ErrNotFound      = fmt.Errorf("not found")
	ErrDuplicate     = fmt.Errorf("duplicate")
	ErrTimeout       = fmt.Errorf("operation timed out")
	ErrInvalidInput  = fmt.Errorf("invalid input")
	ErrProviderError = fmt.Errorf("provider error")
	ErrNotSupported  = fmt.Errorf("not supported")
)

// Sentinel errors for the domain layer.
var (
	ErrProviderNotFound    = fmt.Errorf("llm provider not found")
	ErrProviderUnavailable = fmt.Errorf("no llm provider available")
	ErrSessionNotFound     = fmt.Errorf("session not found")
	ErrConfigLoad          = fmt.Errorf("failed to load configuration")
	ErrDecryption          = fmt.Errorf("decryption failed")

	// Resilience errors.
	ErrContextOverflow = fmt.Errorf("context window exceeded")
	ErrRateLimit       = fmt.Errorf("rate limit exceeded")
	ErrAuthInvalid     = fmt.Errorf("authentication failed")
	ErrCircuitOpen     = fmt.Errorf("circuit breaker open")

	// Embedding errors.
	ErrEmbeddingFailed = fmt.Errorf("embedding generation failed")
)

// DomainError wraps a sentinel error with context.
type DomainError struct {
	Op        string // operation name (e.g., "Registry.Resolve")
	Err       error  // underlying sentinel or wrapped error
	Detail    string // human-readable detail
	SubSystem string // subsystem identifier (e.g., "analytics", "embedding"); used for ErrorCode dispatch
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// NewSubSystemError creates a DomainError tagged with a subsystem for ErrorCode dispatch.
func NewSubSystemError(subsystem, op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail, SubSystem: subsystem}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// ProviderError is returned by every LLM adapter when the backing service
// answers with a non-success status or cannot be reached. Err carries the
// category sentinel (ErrRateLimit, ErrAuthInvalid, ErrTimeout, ...).
type ProviderError struct {
	Provider   string
	Op         string
	StatusCode int // 0 for transport failures
	Retryable  bool
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: status %d: %s", e.Provider, e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %s", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// NewProviderError builds a ProviderError, deriving Retryable from err.
func NewProviderError(provider, op string, status int, err error) *ProviderError {
	return &ProviderError{
		Provider:   provider,
		Op:         op,
		StatusCode: status,
		Retryable:  IsRetryableError(err),
		Err:        err,
	}
}

// TransportError classifies a failed round trip. Deadline and client timeouts
// become ErrTimeout so callers can tell them apart from hard failures.
func TransportError(provider, op string, err error) *ProviderError {
	if errors.Is(err, context.DeadlineExceeded) || isNetTimeout(err) {
		return &ProviderError{
			Provider:  provider,
			Op:        op,
			Retryable: true,
			Err:       fmt.Errorf("%w: %w", ErrTimeout, err),
		}
	}
	return &ProviderError{
		Provider: provider,
		Op:       op,
		Err:      fmt.Errorf("%w: %w", ErrProviderError, err),
	}
}

func isNetTimeout(err error) bool {
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}

// IsRetryableError reports whether err is a transient error that may succeed on retry.
func IsRetryableError(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) && pe.Retryable {
		return true
	}
	return errors.Is(err, ErrRateLimit) || errors.Is(err, ErrTimeout)
}

// ErrorCode is a machine-parseable error category for callers serializing
// failures at an HTTP boundary.
type ErrorCode string

const (
	CodeUnknown             ErrorCode = "UNKNOWN"
	CodeProviderNotFound    ErrorCode = "PROVIDER_NOT_FOUND"
	CodeProviderUnavailable ErrorCode = "PROVIDER_UNAVAILABLE"
	CodeSessionNotFound     ErrorCode = "SESSION_NOT_FOUND"
	CodeConfigLoad          ErrorCode = "CONFIG_LOAD"
	CodeDecryption          ErrorCode = "DECRYPTION"
	CodeContextOverflow     ErrorCode = "CONTEXT_OVERFLOW"
	CodeRateLimit           ErrorCode = "RATE_LIMIT"
	CodeAuthInvalid         ErrorCode = "AUTH_INVALID"
	CodeCircuitOpen         ErrorCode = "CIRCUIT_OPEN"
	CodeEmbeddingFailed     ErrorCode = "EMBEDDING_FAILED"

	// Subsystem-specific codes used by subSystemCodeMap.
	CodeAnalyticsInput   ErrorCode = "ANALYTICS_INVALID_INPUT"
	CodeNarrativeFailed  ErrorCode = "NARRATIVE_FAILED"
	CodeNarrativeTimeout ErrorCode = "NARRATIVE_TIMEOUT"

	// Category error codes: fallback codes when no subsystem-specific code matches.
	CodeNotFound      ErrorCode = "NOT_FOUND"
	CodeDuplicate     ErrorCode = "DUPLICATE"
	CodeTimeout       ErrorCode = "TIMEOUT"
	CodeInvalidInput  ErrorCode = "INVALID_INPUT"
	CodeProviderError ErrorCode = "PROVIDER_ERROR"
	CodeNotSupported  ErrorCode = "NOT_SUPPORTED"
)

var errorCodeMap = map[error]ErrorCode{
	ErrNotFound:      CodeNotFound,
	ErrDuplicate:     CodeDuplicate,
	ErrTimeout:       CodeTimeout,
	ErrInvalidInput:  CodeInvalidInput,
	ErrProviderError: CodeProviderError,
	ErrNotSupported:  CodeNotSupported,

	ErrProviderNotFound:    CodeProviderNotFound,
	ErrProviderUnavailable: CodeProviderUnavailable,
	ErrSessionNotFound:     CodeSessionNotFound,
	ErrConfigLoad:          CodeConfigLoad,
	ErrDecryption:          CodeDecryption,
	ErrContextOverflow:     CodeContextOverflow,
	ErrRateLimit:           CodeRateLimit,
	ErrAuthInvalid:         CodeAuthInvalid,
	ErrCircuitOpen:         CodeCircuitOpen,
	ErrEmbeddingFailed:     CodeEmbeddingFailed,
}

// specificity order for chain walking: more specific sentinels first, so a
// ProviderError wrapping ErrRateLimit resolves to RATE_LIMIT, not PROVIDER_ERROR.
var chainOrder = []error{
	ErrProviderUnavailable,
	ErrProviderNotFound,
	ErrSessionNotFound,
	ErrRateLimit,
	ErrAuthInvalid,
	ErrContextOverflow,
	ErrCircuitOpen,
	ErrEmbeddingFailed,
	ErrDecryption,
	ErrConfigLoad,
	ErrTimeout,
	ErrNotSupported,
	ErrInvalidInput,
	ErrNotFound,
	ErrDuplicate,
	ErrProviderError,
}

var subSystemCodeMap = map[error]map[string]ErrorCode{
	ErrInvalidInput: {
		"analytics": CodeAnalyticsInput,
	},
	ErrProviderError: {
		"narrative": CodeNarrativeFailed,
		"embedding": CodeEmbeddingFailed,
	},
	ErrTimeout: {
		"narrative": CodeNarrativeTimeout,
	},
}

// ErrorCodeOf returns the machine-parseable error code for the given error.
// DomainErrors with a SubSystem are resolved through subSystemCodeMap first.
// Returns CodeUnknown if no matching sentinel is found.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}

	if code, ok := errorCodeMap[err]; ok {
		return code
	}

	var de *DomainError
	if errors.As(err, &de) {
		if code := de.Code(); code != CodeUnknown {
			return code
		}
	}

	for _, sentinel := range chainOrder {
		if errors.Is(err, sentinel) {
			return errorCodeMap[sentinel]
		}
	}
	return CodeUnknown
}

// Code returns the ErrorCode for this DomainError's underlying sentinel.
func (e *DomainError) Code() ErrorCode {
	if e.SubSystem != "" {
		if subsysMap, ok := subSystemCodeMap[e.Err]; ok {
			if code, ok := subsysMap[e.SubSystem]; ok {
				return code
			}
		}
	}
	if code, ok := errorCodeMap[e.Err]; ok {
		return code
	}
	return CodeUnknown
}
