package user

import (
	"context"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/dormportal/core"
)

var (
	// errors
	ErrNotFound     = errors.New("user not found")
	ErrEmailExists  = errors.New("a user with this email already exists")
	ErrEmailMissing = errors.New("identity claim has no email")
)

type (
	Repository interface {
		GetUserByEmail(ctx context.Context, email string) (DormUser, error)
		// CreateUser returns ErrEmailExists when the email is already taken.
		CreateUser(ctx context.Context, usr DormUser) (DormUser, error)
		// UpdateUserProfile overwrites the name and picture of the user with the given ID.
		UpdateUserProfile(ctx context.Context, usr DormUser) (DormUser, error)
	}

	Service interface {
		Upsert(ctx context.Context, claim Claim) (DormUser, error)
		GetByEmail(ctx context.Context, email string) (DormUser, error)
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil) // interface compliance check

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) GetByEmail(ctx context.Context, email string) (DormUser, error) {
	return svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
}

// Upsert creates or refreshes the DormUser matching the claim's normalized email.
// A concurrent first login losing the race on the unique email is treated as an update.
func (svc *service) Upsert(ctx context.Context, claim Claim) (DormUser, error) {
	claim = claim.Clean()
	if claim.Email == "" {
		return DormUser{}, ErrEmailMissing
	}

	existing, err := svc.repo.GetUserByEmail(ctx, claim.Email)
	switch {
	case err == nil:
		return svc.refresh(ctx, existing, claim)
	case errors.Cause(err) != ErrNotFound:
		return DormUser{}, errors.Wrap(err, "finding user by email")
	}

	usr, err := svc.repo.CreateUser(ctx, DormUser{
		Email:      claim.Email,
		Name:       claim.Name,
		PictureURL: null.NewString(claim.Picture, claim.Picture != ""),
		CreatedAt:  core.NowFunc(),
	})
	if err == nil {
		return usr, nil
	}
	if errors.Cause(err) != ErrEmailExists {
		return DormUser{}, errors.Wrap(err, "creating user")
	}

	// lost the race: someone else created it in between
	existing, err = svc.repo.GetUserByEmail(ctx, claim.Email)
	if err != nil {
		return DormUser{}, errors.Wrap(err, "re-reading user by email")
	}
	return svc.refresh(ctx, existing, claim)
}

func (svc *service) refresh(ctx context.Context, usr DormUser, claim Claim) (DormUser, error) {
	usr.Name = claim.Name
	usr.PictureURL = null.NewString(claim.Picture, claim.Picture != "")
	usr, err := svc.repo.UpdateUserProfile(ctx, usr)
	return usr, errors.Wrap(err, "updating user")
}
