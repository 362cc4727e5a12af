package service

import "context"

// AccessPolicy answers the membership questions that gate every band-scoped
// operation.
type AccessPolicy interface {
	IsMember(ctx context.Context, bandID, userID int64) (bool, error)
	IsOwner(ctx context.Context, bandID, userID int64) (bool, error)
	// CanMutate reports whether userID may change band-scoped state of bandID.
	CanMutate(ctx context.Context, bandID, userID int64) (bool, error)
}

func requireMember(ctx context.Context, policy AccessPolicy, bandID, userID int64) error {
	ok, err := policy.IsMember(ctx, bandID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return newError(ErrForbidden, "not a member of this band")
	}
	return nil
}

func requireMutate(ctx context.Context, policy AccessPolicy, bandID, userID int64) error {
	ok, err := policy.CanMutate(ctx, bandID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return newError(ErrForbidden, "not a member of this band")
	}
	return nil
}
