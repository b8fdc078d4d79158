package services

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/jacksonlee411/worklog/modules/iam/domain/ports"
	"github.com/jacksonlee411/worklog/modules/iam/domain/types"
	"github.com/jacksonlee411/worklog/pkg/httperr"
	"github.com/jacksonlee411/worklog/pkg/paging"
)

const (
	errUserNameRequired     = "USER_NAME_REQUIRED"
	errUserNotFound         = "USER_NOT_FOUND"
	errUserEmployeeNoExists = "USER_EMPLOYEE_NO_EXISTS"
	errUserInvalidArgument  = "USER_INVALID_ARGUMENT"

	DefaultUserPageLimit = 50
	MaxUserPageLimit     = 200
)

type CreateUserRequest struct {
	Name       string
	EmployeeNo string
	Email      string
	Phone      string
	JobTitle   string
	Grade      string
	Active     *bool
}

type UserService struct {
	store ports.UserStore
}

func NewUserService(store ports.UserStore) UserService {
	return UserService{store: store}
}

func (s UserService) CreateUser(ctx context.Context, req CreateUserRequest) (types.User, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return types.User{}, httperr.NewBadRequest(errUserNameRequired)
	}
	u := types.User{
		Name:       name,
		EmployeeNo: trimmed(req.EmployeeNo),
		Email:      trimmed(req.Email),
		Phone:      trimmed(req.Phone),
		JobTitle:   trimmed(req.JobTitle),
		Grade:      trimmed(req.Grade),
		Active:     true,
	}
	if req.Active != nil {
		u.Active = *req.Active
	}
	created, err := s.store.CreateUser(ctx, u)
	return created, mapUserError(err)
}

func (s UserService) UpdateUser(ctx context.Context, id int64, patch types.UserPatch) (types.User, error) {
	if id <= 0 {
		return types.User{}, httperr.NewBadRequest(errUserInvalidArgument)
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return types.User{}, httperr.NewBadRequest(errUserNameRequired)
		}
		patch.Name = &name
	}
	for _, f := range []**string{&patch.EmployeeNo, &patch.Email, &patch.Phone, &patch.JobTitle, &patch.Grade} {
		if *f != nil {
			v := strings.TrimSpace(**f)
			*f = &v
		}
	}
	updated, err := s.store.UpdateUser(ctx, id, patch)
	return updated, mapUserError(err)
}

func (s UserService) GetUser(ctx context.Context, id int64) (types.User, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return types.User{}, err
	}
	i := slices.IndexFunc(users, func(u types.User) bool { return u.ID == id })
	if i < 0 {
		return types.User{}, httperr.NewNotFound(errUserNotFound)
	}
	return users[i], nil
}

// ListUsers filters by keyword (case-insensitive substring of name, email or
// employee number) and pages the result in id order.
func (s UserService) ListUsers(ctx context.Context, keyword string, limit int, offset int) (types.UserPage, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return types.UserPage{}, err
	}
	kw := strings.ToLower(strings.TrimSpace(keyword))
	if kw != "" {
		users = slices.DeleteFunc(users, func(u types.User) bool { return !matchesKeyword(u, kw) })
	}
	slices.SortFunc(users, func(a, b types.User) int { return cmp.Compare(a.ID, b.ID) })

	limit = paging.Limit(limit, DefaultUserPageLimit, MaxUserPageLimit)
	offset = max(offset, 0)
	return types.UserPage{Items: paging.Slice(users, limit, offset), Total: len(users), Limit: limit, Offset: offset}, nil
}

// UsersByIDs returns the users among ids that exist, ordered by id.
func (s UserService) UsersByIDs(ctx context.Context, ids []int64) ([]types.User, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	want := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	users = slices.DeleteFunc(users, func(u types.User) bool {
		_, ok := want[u.ID]
		return !ok
	})
	slices.SortFunc(users, func(a, b types.User) int { return cmp.Compare(a.ID, b.ID) })
	return users, nil
}

// ActiveUsers is UsersByIDs restricted to active users.
func (s UserService) ActiveUsers(ctx context.Context, ids []int64) ([]types.User, error) {
	users, err := s.UsersByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(users, func(u types.User) bool { return !u.Active }), nil
}

func matchesKeyword(u types.User, kw string) bool {
	for _, field := range []*string{&u.Name, u.Email, u.EmployeeNo} {
		if field != nil && strings.Contains(strings.ToLower(*field), kw) {
			return true
		}
	}
	return false
}

func trimmed(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

func mapUserError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ports.ErrUserNotFound):
		return httperr.NewNotFound(errUserNotFound)
	case errors.Is(err, ports.ErrEmployeeNoConflict):
		return httperr.NewConflict(errUserEmployeeNoExists)
	default:
		return err
	}
}
