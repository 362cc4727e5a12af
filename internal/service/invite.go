package service

import (
	"context"
	"errors"

	"github.com/odvcencio/songlist/internal/database"
	"github.com/odvcencio/songlist/internal/models"
)

// InviteInfo describes an invite to the user holding its link.
type InviteInfo struct {
	BandID        int64  `json:"band_id"`
	BandName      string `json:"band_name"`
	AlreadyMember bool   `json:"already_member"`
}

// InviteService issues and redeems band invite links. Invites are reusable
// and never expire; they die with their band.
type InviteService struct {
	db     database.DB
	access AccessPolicy
}

func NewInviteService(db database.DB, access AccessPolicy) *InviteService {
	return &InviteService{db: db, access: access}
}

func (s *InviteService) Create(ctx context.Context, bandID, userID int64) (*models.BandInvite, error) {
	band, err := s.db.GetBand(ctx, bandID)
	if err != nil {
		return nil, classify(err, "band")
	}
	if err := requireMember(ctx, s.access, bandID, userID); err != nil {
		return nil, err
	}
	token, err := newToken()
	if err != nil {
		return nil, err
	}
	inv := &models.BandInvite{BandID: bandID, Token: token, CreatedBy: userID}
	if err := s.db.CreateInvite(ctx, inv); err != nil {
		return nil, classify(err, "invite")
	}
	inv.BandName = band.Name
	return inv, nil
}

func (s *InviteService) lookup(ctx context.Context, token string) (*models.BandInvite, error) {
	if token == "" {
		return nil, newError(ErrNotFound, "invite not found")
	}
	inv, err := s.db.GetInviteByToken(ctx, token)
	if err != nil {
		return nil, classify(err, "invite")
	}
	return inv, nil
}

// Resolve describes the invite to userID without changing anything.
func (s *InviteService) Resolve(ctx context.Context, token string, userID int64) (*InviteInfo, error) {
	inv, err := s.lookup(ctx, token)
	if err != nil {
		return nil, err
	}
	member, err := s.access.IsMember(ctx, inv.BandID, userID)
	if err != nil {
		return nil, err
	}
	return &InviteInfo{BandID: inv.BandID, BandName: inv.BandName, AlreadyMember: member}, nil
}

// Accept makes userID a member of the invite's band. Accepting again is a
// successful no-op reported with AlreadyMember set.
func (s *InviteService) Accept(ctx context.Context, token string, userID int64) (*InviteInfo, error) {
	info, err := s.Resolve(ctx, token, userID)
	if err != nil {
		return nil, err
	}
	if info.AlreadyMember {
		return info, nil
	}
	m := &models.Membership{BandID: info.BandID, UserID: userID, Role: models.RoleMember}
	if err := s.db.AddMembership(ctx, m); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			// Lost a race with a concurrent accept from the same account.
			info.AlreadyMember = true
			return info, nil
		}
		return nil, classify(err, "membership")
	}
	return info, nil
}
