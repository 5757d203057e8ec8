package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/edupulse/core"
	"github.com/trezcool/edupulse/core/user"
)

const userColumns = "id, name, username, email, is_active, roles, password_hash, created_at, updated_at, last_login"

type userRow struct {
	ID           string      `db:"id"`
	Name         string      `db:"name"`
	Username     null.String `db:"username"`
	Email        null.String `db:"email"`
	IsActive     bool        `db:"is_active"`
	Roles        string      `db:"roles"`
	PasswordHash []byte      `db:"password_hash"`
	CreatedAt    time.Time   `db:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at"`
	LastLogin    null.Time   `db:"last_login"`
}

type userRepository struct {
	exec core.DBExecutor
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(exec core.DBExecutor) user.Repository {
	return &userRepository{exec: exec}
}

func (repo userRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.exec
}

func (repo userRepository) toRow(usr user.User) (userRow, error) {
	roles := usr.Roles
	if roles == nil {
		roles = []string{}
	}
	rolesJSON, err := json.Marshal(roles)
	if err != nil {
		return userRow{}, errors.Wrap(err, "encoding roles")
	}
	return userRow{
		ID:           usr.ID,
		Name:         usr.Name,
		Username:     null.NewString(usr.Username, usr.Username != ""),
		Email:        null.NewString(usr.Email, usr.Email != ""),
		IsActive:     usr.Active(),
		Roles:        string(rolesJSON),
		PasswordHash: usr.PasswordHash,
		CreatedAt:    usr.CreatedAt.UTC(),
		UpdatedAt:    usr.UpdatedAt.UTC(),
		LastLogin:    null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}, nil
}

func (repo userRepository) fromRow(row userRow) user.User {
	var roles []string
	if err := json.Unmarshal([]byte(row.Roles), &roles); err != nil || roles == nil {
		roles = []string{}
	}
	usr := user.User{
		ID:           row.ID,
		Name:         row.Name,
		Username:     row.Username.String,
		Email:        row.Email.String,
		Roles:        roles,
		PasswordHash: row.PasswordHash,
		CreatedAt:    row.CreatedAt.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
	}
	if row.LastLogin.Valid {
		usr.LastLogin = row.LastLogin.Time.UTC()
	}
	usr.SetActive(row.IsActive)
	return usr
}

// trapNoRowsErr maps the sql "no rows" err to user.ErrNotFound
func (repo userRepository) trapNoRowsErr(err error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return user.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo userRepository) CheckUsernameUniqueness(
	ctx context.Context,
	username, email string,
	excludedUsers []user.User,
	exec ...core.DBExecutor,
) error {
	q := "SELECT username, email FROM users WHERE (username = ? OR email = ?)"
	args := []interface{}{username, email}
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		var err error
		q, args, err = sqlx.In(q+" AND id NOT IN (?)", username, email, ids)
		if err != nil {
			return errors.Wrap(err, "building uniqueness query")
		}
	}

	exe := repo.getExec(exec)
	var rows []struct {
		Username null.String `db:"username"`
		Email    null.String `db:"email"`
	}
	if err := sqlx.SelectContext(ctx, exe, &rows, exe.Rebind(q), args...); err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}

	var unameTaken, emailTaken bool
	for _, r := range rows {
		unameTaken = unameTaken || (username != "" && r.Username.String == username)
		emailTaken = emailTaken || (email != "" && r.Email.String == email)
	}
	switch {
	case unameTaken && emailTaken:
		return user.ErrUserExists
	case unameTaken:
		return user.ErrUsernameExists
	case emailTaken:
		return user.ErrEmailExists
	}
	return nil
}

func (repo userRepository) insert(ctx context.Context, exe core.DBExecutor, usr user.User) (user.User, error) {
	row, err := repo.toRow(usr)
	if err != nil {
		return user.User{}, err
	}
	q := "INSERT INTO users (" + userColumns + ") VALUES " +
		"(:id, :name, :username, :email, :is_active, :roles, :password_hash, :created_at, :updated_at, :last_login)"
	if _, err := sqlx.NamedExecContext(ctx, exe, q, row); err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return repo.fromRow(row), nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	usr.ID = newID()
	return repo.insert(ctx, repo.getExec(exec), usr)
}

var userOrderFields = map[string]bool{
	"name": true, "username": true, "email": true, "created_at": true, "updated_at": true, "last_login": true,
}

func (repo userRepository) QueryUsers(
	ctx context.Context,
	filter *user.QueryFilter,
	ordering []core.DBOrdering,
	exec ...core.DBExecutor,
) ([]user.User, error) {
	var (
		where []string
		args  []interface{}
	)

	if filter != nil {
		// users with Name, Username or Email matching the search keyword
		if filter.Search != "" {
			val := "%" + strings.ToLower(filter.Search) + "%"
			where = append(where, "(LOWER(name) LIKE ? OR LOWER(username) LIKE ? OR LOWER(email) LIKE ?)")
			args = append(args, val, val, val)
		}
		// users with any role that starts with any of the provided roles
		if len(filter.Roles) > 0 {
			roleConds := make([]string, 0, len(filter.Roles))
			for _, role := range filter.Roles {
				roleConds = append(roleConds, "roles LIKE ?")
				args = append(args, `%"`+role+`%`)
			}
			where = append(where, "("+strings.Join(roleConds, " OR ")+")")
		}
		if filter.IsActive != nil {
			where = append(where, "is_active = ?")
			args = append(args, *filter.IsActive)
		}
		if !filter.CreatedFrom.IsZero() {
			where = append(where, "created_at >= ?")
			args = append(args, filter.CreatedFrom.UTC())
		}
		if !filter.CreatedTo.IsZero() {
			where = append(where, "created_at <= ?")
			args = append(args, filter.CreatedTo.UTC())
		}
	}

	q := "SELECT " + userColumns + " FROM users"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}

	orderList := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		if userOrderFields[ord.Field] {
			orderList = append(orderList, ord.String())
		}
	}
	if len(orderList) == 0 {
		orderList = append(orderList, "created_at DESC")
	}
	q += " ORDER BY " + strings.Join(orderList, ", ")

	exe := repo.getExec(exec)
	var rows []userRow
	if err := sqlx.SelectContext(ctx, exe, &rows, exe.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, repo.fromRow(r))
	}
	return users, nil
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter, exec ...core.DBExecutor) (user.User, error) {
	q := "SELECT " + userColumns + " FROM users WHERE "
	var args []interface{}

	switch {
	case filter.ID != "":
		q += "id = ?"
		args = append(args, filter.ID)
	case filter.Username != "":
		q += "username = ?"
		args = append(args, filter.Username)
	case filter.Email != "":
		q += "email = ?"
		args = append(args, filter.Email)
	case len(filter.UsernameOrEmail) > 0:
		var email string
		uname := filter.UsernameOrEmail[0]
		if len(filter.UsernameOrEmail) == 2 {
			email = filter.UsernameOrEmail[1]
		}
		if email == "" {
			email = uname
		} else if uname == "" {
			uname = email
		}
		q += "(username = ? OR email = ?)"
		args = append(args, uname, email)
	default:
		return user.User{}, user.ErrNotFound
	}
	q += " LIMIT 1"

	exe := repo.getExec(exec)
	var row userRow
	if err := sqlx.GetContext(ctx, exe, &row, exe.Rebind(q), args...); err != nil {
		return user.User{}, repo.trapNoRowsErr(err, "finding user")
	}
	return repo.fromRow(row), nil
}

func (repo userRepository) update(ctx context.Context, exe core.DBExecutor, usr user.User) (int64, error) {
	row, err := repo.toRow(usr)
	if err != nil {
		return 0, err
	}
	q := "UPDATE users SET name = :name, username = :username, email = :email, is_active = :is_active, " +
		"roles = :roles, password_hash = :password_hash, updated_at = :updated_at, last_login = :last_login " +
		"WHERE id = :id"
	res, err := sqlx.NamedExecContext(ctx, exe, q, row)
	if err != nil {
		return 0, errors.Wrap(err, "updating user")
	}
	return res.RowsAffected()
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	n, err := repo.update(ctx, repo.getExec(exec), usr)
	if err != nil {
		return user.User{}, err
	}
	if n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}

func (repo userRepository) UpdateOrCreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	exe := repo.getExec(exec)
	if usr.ID != "" {
		n, err := repo.update(ctx, exe, usr)
		if err != nil {
			return user.User{}, err
		}
		if n > 0 {
			return usr, nil
		}
	} else {
		usr.ID = newID()
	}
	return repo.insert(ctx, exe, usr)
}

func (repo userRepository) DeleteUsersByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	q, args, err := sqlx.In("DELETE FROM users WHERE id IN (?)", ids)
	if err != nil {
		return 0, errors.Wrap(err, "building delete query")
	}
	exe := repo.getExec(exec)
	res, err := exe.ExecContext(ctx, exe.Rebind(q), args...)
	if err != nil {
		return 0, errors.Wrap(err, "deleting users")
	}
	n, err := res.RowsAffected()
	return int(n), errors.Wrap(err, "deleting users")
}
