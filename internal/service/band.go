package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/odvcencio/songlist/internal/database"
	"github.com/odvcencio/songlist/internal/models"
)

const maxNameLength = 200

// BandService is the membership registry. It is also the AccessPolicy the
// other services consult.
type BandService struct {
	db database.DB
}

var _ AccessPolicy = (*BandService)(nil)

func NewBandService(db database.DB) *BandService {
	return &BandService{db: db}
}

func (s *BandService) role(ctx context.Context, bandID, userID int64) (string, error) {
	m, err := s.db.GetMembership(ctx, bandID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return m.Role, nil
}

func (s *BandService) IsMember(ctx context.Context, bandID, userID int64) (bool, error) {
	role, err := s.role(ctx, bandID, userID)
	return role != "", err
}

func (s *BandService) IsOwner(ctx context.Context, bandID, userID int64) (bool, error) {
	role, err := s.role(ctx, bandID, userID)
	return role == models.RoleOwner, err
}

// CanMutate grants band-scoped writes to every member regardless of role.
func (s *BandService) CanMutate(ctx context.Context, bandID, userID int64) (bool, error) {
	return s.IsMember(ctx, bandID, userID)
}

func cleanName(name, what string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", newError(ErrValidation, "%s is required", what)
	}
	if len(name) > maxNameLength {
		return "", newError(ErrValidation, "%s must be at most %d characters", what, maxNameLength)
	}
	return name, nil
}

// Create inserts the band and the creator's owner membership atomically.
func (s *BandService) Create(ctx context.Context, name string, ownerID int64) (*models.BandSummary, error) {
	name, err := cleanName(name, "band name")
	if err != nil {
		return nil, err
	}
	band := &models.Band{Name: name, CreatedBy: ownerID}
	if err := s.db.CreateBandWithOwner(ctx, band); err != nil {
		return nil, classify(err, "band")
	}
	return &models.BandSummary{Band: *band, UserRole: models.RoleOwner, MemberCount: 1}, nil
}

func (s *BandService) List(ctx context.Context, userID int64) ([]models.BandSummary, error) {
	return s.db.ListUserBands(ctx, userID)
}

// Get returns the band as seen by userID, who must be a member.
func (s *BandService) Get(ctx context.Context, bandID, userID int64) (*models.BandSummary, error) {
	if _, err := s.db.GetBand(ctx, bandID); err != nil {
		return nil, classify(err, "band")
	}
	summary, err := s.db.GetBandSummary(ctx, bandID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, newError(ErrForbidden, "not a member of this band")
	}
	if err != nil {
		return nil, err
	}
	return summary, nil
}

func (s *BandService) Rename(ctx context.Context, bandID int64, name string, userID int64) (*models.BandSummary, error) {
	name, err := cleanName(name, "band name")
	if err != nil {
		return nil, err
	}
	if _, err := s.Get(ctx, bandID, userID); err != nil {
		return nil, err
	}
	if err := s.db.RenameBand(ctx, bandID, name); err != nil {
		return nil, classify(err, "band")
	}
	return s.Get(ctx, bandID, userID)
}

// Delete removes the band. Only the owner may do this; songlists bound to the
// band survive unbound.
func (s *BandService) Delete(ctx context.Context, bandID, userID int64) error {
	if _, err := s.db.GetBand(ctx, bandID); err != nil {
		return classify(err, "band")
	}
	owner, err := s.IsOwner(ctx, bandID, userID)
	if err != nil {
		return err
	}
	if !owner {
		return newError(ErrForbidden, "only the band owner can delete the band")
	}
	return classify(s.db.DeleteBand(ctx, bandID), "band")
}

// Leave removes userID's membership. The owner cannot leave.
func (s *BandService) Leave(ctx context.Context, bandID, userID int64) error {
	role, err := s.role(ctx, bandID, userID)
	if err != nil {
		return err
	}
	switch role {
	case "":
		return newError(ErrNotFound, "membership not found")
	case models.RoleOwner:
		return newError(ErrConflict, "owner cannot leave the band")
	}
	return classify(s.db.RemoveMembership(ctx, bandID, userID), "membership")
}

// Members lists the band's members owner first, then by name.
func (s *BandService) Members(ctx context.Context, bandID, userID int64) ([]models.BandMember, error) {
	if err := requireMember(ctx, s, bandID, userID); err != nil {
		return nil, err
	}
	return s.db.ListBandMembers(ctx, bandID)
}
