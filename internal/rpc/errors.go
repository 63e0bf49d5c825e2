package rpc

import (
	"errors"

	"scryforge/internal/cachestore"
	"scryforge/internal/model"
	"scryforge/internal/provider"
)

// codeForError maps an internal error to the RPC error taxonomy from
// spec.md §7. Provider Network/RateLimited/AuthRequired surface as
// ResourceUnavailable with the message carrying retry hints; NotSupported
// never auto-retries; cache misses surface as NotFound.
func codeForError(err error) (code int, message string) {
	var perr *provider.Error
	if errors.As(err, &perr) {
		switch perr.Kind {
		case provider.Network:
			return CodeResourceUnavailable, perr.Error()
		case provider.RateLimited:
			return CodeResourceUnavailable, perr.Error()
		case provider.AuthRequired:
			return CodeResourceUnavailable, perr.Error()
		case provider.ItemNotFound, provider.StreamNotFound:
			return CodeNotFound, perr.Error()
		case provider.NotSupported:
			return CodeNotSupported, perr.Error()
		default:
			return CodeInternal, perr.Error()
		}
	}

	if errors.Is(err, cachestore.ErrNotFound) {
		return CodeNotFound, err.Error()
	}

	var invErr *model.InvariantError
	if errors.As(err, &invErr) {
		return CodeInvalidID, err.Error()
	}

	return CodeInternal, err.Error()
}
