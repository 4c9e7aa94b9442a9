package service

import (
	"context"

	"blogapi/internal/models"
	"blogapi/internal/policy"
	"blogapi/internal/presenter"
	"blogapi/internal/repository"
)

type UserService struct {
	userRepo repository.UserRepository
}

func NewUserService(userRepo repository.UserRepository) *UserService {
	return &UserService{userRepo: userRepo}
}

// ListUsers is the staff directory of accounts.
func (s *UserService) ListUsers(ctx context.Context, actor policy.Actor, page int) (presenter.Page[presenter.UserView], error) {
	if err := policy.Check(policy.UserList, actor, policy.Resource{}); err != nil {
		return presenter.Page[presenter.UserView]{}, err
	}
	count, err := s.userRepo.Count(ctx)
	if err != nil {
		return presenter.Page[presenter.UserView]{}, err
	}
	p := Paginate(count, page, DefaultPageSize)
	users, err := s.userRepo.List(ctx, p.PageSize, p.Offset)
	if err != nil {
		return presenter.Page[presenter.UserView]{}, err
	}
	views := make([]presenter.UserView, 0, len(users))
	for i := range users {
		views = append(views, presenter.NewUserView(&users[i]))
	}
	return NewPage(p, views), nil
}

// GetUser returns a profile. Private profiles are visible to their owner and staff only.
func (s *UserService) GetUser(ctx context.Context, actor policy.Actor, id uint) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	res := policy.Resource{OwnerID: user.ID, Public: user.Profile == nil || user.Profile.IsPublic}
	if err := policy.Check(policy.UserView, actor, res); err != nil {
		return nil, err
	}
	return user, nil
}
