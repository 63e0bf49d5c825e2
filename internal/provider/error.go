package provider

import "fmt"

// ErrorKind is the closed provider error surface from spec.md §4.1, mapped
// one-to-one onto the RPC error taxonomy (spec.md §7) by internal/rpc.
type ErrorKind int

const (
	Network ErrorKind = iota
	AuthRequired
	RateLimited
	ItemNotFound
	StreamNotFound
	ProviderFailure
	NotSupported
)

// Error is the typed error every provider method returns on failure,
// grounded on the teacher's content.Error/ErrNoContent pattern of a small
// sentinel-bearing value the calling layer switches on, generalized here
// to carry a Kind discriminator dispatched via errors.As.
type Error struct {
	Kind    ErrorKind
	Message string
	// RetryAfterSeconds is set only for Kind == RateLimited.
	RetryAfterSeconds int
	// ID is set for ItemNotFound/StreamNotFound.
	ID string
	// Op is set for NotSupported, naming the unimplemented operation.
	Op string
}

func (e *Error) Error() string {
	switch e.Kind {
	case RateLimited:
		return fmt.Sprintf("rate limited: retry after %ds", e.RetryAfterSeconds)
	case ItemNotFound:
		return fmt.Sprintf("item not found: %s", e.ID)
	case StreamNotFound:
		return fmt.Sprintf("stream not found: %s", e.ID)
	case NotSupported:
		return fmt.Sprintf("not supported: %s", e.Op)
	default:
		return e.Message
	}
}

func NewNetworkError(msg string) error    { return &Error{Kind: Network, Message: msg} }
func NewAuthRequired(msg string) error    { return &Error{Kind: AuthRequired, Message: msg} }
func NewRateLimited(seconds int) error    { return &Error{Kind: RateLimited, RetryAfterSeconds: seconds} }
func NewItemNotFound(id string) error     { return &Error{Kind: ItemNotFound, ID: id} }
func NewStreamNotFound(id string) error   { return &Error{Kind: StreamNotFound, ID: id} }
func NewProviderError(msg string) error   { return &Error{Kind: ProviderFailure, Message: msg} }
func NewNotSupported(op string) error     { return &Error{Kind: NotSupported, Op: op} }
