package interfaces

import (
	"context"

	domaintypes "nyx/internal/domain/types"
)

// Unsubscribe releases a watch. It is safe to call more than once.
type Unsubscribe func()

// SignalingStore is the shared, eventually consistent document store carrying
// call records and their candidate sub-collections. Watches first deliver the
// current state, then every later change, in order, on a single goroutine
// per watch.
type SignalingStore interface {
	NewCallID() domaintypes.CallID
	CreateCall(ctx context.Context, rec domaintypes.CallRecord) error
	UpdateCall(ctx context.Context, id domaintypes.CallID, u domaintypes.CallUpdate) error
	GetCall(ctx context.Context, id domaintypes.CallID) (domaintypes.CallRecord, bool, error)
	DeleteCall(ctx context.Context, id domaintypes.CallID) error
	AddCandidate(
		ctx context.Context,
		id domaintypes.CallID,
		side domaintypes.CandidateSide,
		c domaintypes.ICECandidate,
	) error

	WatchCall(
		ctx context.Context,
		id domaintypes.CallID,
		fn func(domaintypes.CallChange),
	) (Unsubscribe, error)
	WatchIncoming(
		ctx context.Context,
		callee domaintypes.UserID,
		fn func(domaintypes.CallChange),
	) (Unsubscribe, error)
	WatchCandidates(
		ctx context.Context,
		id domaintypes.CallID,
		side domaintypes.CandidateSide,
		fn func(domaintypes.CandidateChange),
	) (Unsubscribe, error)
}

// Directory publishes and resolves user profiles.
type Directory interface {
	Publish(ctx context.Context, p domaintypes.Profile) error
	Lookup(ctx context.Context, id domaintypes.UserID) (domaintypes.Profile, bool, error)
}
