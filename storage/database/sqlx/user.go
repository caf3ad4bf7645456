package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/dormportal/core/user"
)

const userColumns = "id, email, name, picture_url, created_at"

type userRepository struct {
	db sqlx.ExtContext
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) GetUserByEmail(ctx context.Context, email string) (user.DormUser, error) {
	var usr user.DormUser
	err := sqlx.GetContext(ctx, repo.db, &usr, `SELECT `+userColumns+` FROM dorm_user WHERE email = $1`, email)
	if err == sql.ErrNoRows {
		return user.DormUser{}, user.ErrNotFound
	}
	return usr, errors.Wrap(err, "selecting user")
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.DormUser) (user.DormUser, error) {
	err := repo.db.QueryRowxContext(ctx,
		`INSERT INTO dorm_user (email, name, picture_url, created_at) VALUES ($1, $2, $3, $4) RETURNING id`,
		usr.Email, usr.Name, usr.PictureURL, usr.CreatedAt,
	).Scan(&usr.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return user.DormUser{}, user.ErrEmailExists
		}
		return user.DormUser{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo *userRepository) UpdateUserProfile(ctx context.Context, usr user.DormUser) (user.DormUser, error) {
	var updated user.DormUser
	err := sqlx.GetContext(ctx, repo.db, &updated,
		`UPDATE dorm_user SET name = $1, picture_url = $2 WHERE id = $3 RETURNING `+userColumns,
		usr.Name, usr.PictureURL, usr.ID,
	)
	if err == sql.ErrNoRows {
		return user.DormUser{}, user.ErrNotFound
	}
	return updated, errors.Wrap(err, "updating user")
}
