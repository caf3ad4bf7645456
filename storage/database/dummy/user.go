package dummydb

import (
	"context"

	"github.com/trezcool/dormportal/core/user"
)

type userRepository struct {
	db *userTable
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db.user}
}

func (repo *userRepository) GetUserByEmail(_ context.Context, email string) (user.DormUser, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, usr := range repo.db.table {
		if usr.Email == email {
			return *usr, nil
		}
	}
	return user.DormUser{}, user.ErrNotFound
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.DormUser) (user.DormUser, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	// unique index on email
	for _, u := range repo.db.table {
		if u.Email == usr.Email {
			return user.DormUser{}, user.ErrEmailExists
		}
	}

	repo.db.pkCount++
	usr.ID = repo.db.pkCount
	repo.db.table[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) UpdateUserProfile(_ context.Context, usr user.DormUser) (user.DormUser, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	existing, ok := repo.db.table[usr.ID]
	if !ok {
		return user.DormUser{}, user.ErrNotFound
	}
	existing.Name = usr.Name
	existing.PictureURL = usr.PictureURL
	return *existing, nil
}
