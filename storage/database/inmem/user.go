package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/edupulse/core"
	"github.com/trezcool/edupulse/core/user"
)

type userRepository struct {
	db *userTable
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db.user}
}

func (repo *userRepository) query() []user.User {
	users := make([]user.User, 0, len(repo.db.table))
	for _, u := range repo.db.table {
		users = append(users, *u)
	}
	return users
}

func (repo *userRepository) CheckUsernameUniqueness(
	_ context.Context,
	username, email string,
	excludedUsers []user.User,
	_ ...core.DBExecutor,
) error {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	excluded := make(map[string]bool, len(excludedUsers))
	for _, u := range excludedUsers {
		excluded[u.ID] = true
	}

	for _, usr := range repo.query() {
		if excluded[usr.ID] {
			continue
		}
		sameUname := username != "" && usr.Username == username
		sameEmail := email != "" && usr.Email == email
		switch {
		case sameUname && sameEmail:
			return user.ErrUserExists
		case sameUname:
			return user.ErrUsernameExists
		case sameEmail:
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	usr.ID = newID()
	repo.db.table[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) QueryUsers(
	_ context.Context,
	filter *user.QueryFilter,
	ordering []core.DBOrdering,
	_ ...core.DBExecutor,
) ([]user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	users := make([]user.User, 0, len(repo.db.table))
	for _, usr := range repo.query() {
		if filter == nil || matches(usr, filter) {
			users = append(users, usr)
		}
	}

	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at"}}
	}
	sort.SliceStable(users, func(i, j int) bool {
		for _, ord := range ordering {
			a, b := sortKey(users[i], ord.Field), sortKey(users[j], ord.Field)
			if a == b {
				continue
			}
			if ord.Ascending {
				return a < b
			}
			return a > b
		}
		return false
	})
	return users, nil
}

func matches(usr user.User, filter *user.QueryFilter) bool {
	if filter.Search != "" {
		s := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(usr.Name), s) &&
			!strings.Contains(usr.Username, s) &&
			!strings.Contains(usr.Email, s) {
			return false
		}
	}
	if len(filter.Roles) > 0 {
		var found bool
		for _, role := range filter.Roles {
			if usr.RoleStartsWith(role) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.IsActive != nil && usr.Active() != *filter.IsActive {
		return false
	}
	if !filter.CreatedFrom.IsZero() && usr.CreatedAt.Before(filter.CreatedFrom) {
		return false
	}
	if !filter.CreatedTo.IsZero() && usr.CreatedAt.After(filter.CreatedTo) {
		return false
	}
	return true
}

func sortKey(usr user.User, field string) string {
	switch field {
	case "name":
		return strings.ToLower(usr.Name)
	case "username":
		return usr.Username
	case "email":
		return usr.Email
	case "updated_at":
		return usr.UpdatedAt.Format("20060102150405.000000000")
	case "last_login":
		return usr.LastLogin.Format("20060102150405.000000000")
	default:
		return usr.CreatedAt.Format("20060102150405.000000000")
	}
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter, _ ...core.DBExecutor) (user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.get(filter)
}

func (repo *userRepository) get(filter user.GetFilter) (user.User, error) {
	if filter.ID != "" {
		if usr, ok := repo.db.table[filter.ID]; ok {
			return *usr, nil
		}
		return user.User{}, user.ErrNotFound
	}

	for _, usr := range repo.query() {
		switch {
		case filter.Username != "":
			if usr.Username == filter.Username {
				return usr, nil
			}
		case filter.Email != "":
			if usr.Email == filter.Email {
				return usr, nil
			}
		case len(filter.UsernameOrEmail) > 0:
			for _, v := range filter.UsernameOrEmail {
				if v != "" && (usr.Username == v || usr.Email == v) {
					return usr, nil
				}
			}
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.table[usr.ID]; !ok {
		return user.User{}, user.ErrNotFound
	}
	repo.db.table[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) UpdateOrCreateUser(_ context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if usr.ID == "" {
		usr.ID = newID()
	}
	repo.db.table[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) DeleteUsersByID(_ context.Context, ids []string, _ ...core.DBExecutor) (int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	var n int
	for _, id := range ids {
		if _, ok := repo.db.table[id]; ok {
			delete(repo.db.table, id)
			n++
		}
	}
	return n, nil
}
