package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/moimhub/club-system/models"
	"github.com/moimhub/club-system/repositories"
)

type GroupService interface {
	CreateGroup(ctx context.Context, actorID, clubID int, name string) (*models.Group, error)
	ListGroups(ctx context.Context, actorID, clubID int) ([]*models.Group, error)
	RenameGroup(ctx context.Context, actorID, groupID int, name string) error
	DeleteGroup(ctx context.Context, actorID, groupID int) error

	// AddMember требует approved club-membership у добавляемого: строка в
	// group_members без клубного членства не создается.
	AddMember(ctx context.Context, actorID, groupID, userID int) (*models.GroupMembership, error)
	RemoveMember(ctx context.Context, actorID, groupID, userID int) error
	PromoteLeader(ctx context.Context, actorID, groupID, userID int) error
	DemoteLeader(ctx context.Context, actorID, groupID, userID int) error
	ListGroupMembers(ctx context.Context, actorID, groupID int) ([]*models.GroupMembership, error)
}

type groupService struct {
	groupRepo       repositories.GroupRepository
	groupMemberRepo repositories.GroupMembershipRepository
	membership      MembershipService
}

func NewGroupService(
	groupRepo repositories.GroupRepository,
	groupMemberRepo repositories.GroupMembershipRepository,
	membership MembershipService,
) GroupService {
	return &groupService{
		groupRepo:       groupRepo,
		groupMemberRepo: groupMemberRepo,
		membership:      membership,
	}
}

func (s *groupService) CreateGroup(ctx context.Context, actorID, clubID int, name string) (*models.Group, error) {
	if err := s.requireAdmin(ctx, actorID, clubID); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrGroupNameRequired
	}

	group := &models.Group{ClubID: clubID, Name: name}
	if err := s.groupRepo.Create(ctx, group); err != nil {
		switch {
		case errors.Is(err, repositories.ErrGroupNameConflict):
			return nil, ErrGroupNameConflict
		case errors.Is(err, repositories.ErrGroupClubInvalid):
			return nil, ErrClubNotFound
		}
		return nil, fmt.Errorf("failed to create group: %w", err)
	}
	return group, nil
}

func (s *groupService) ListGroups(ctx context.Context, actorID, clubID int) ([]*models.Group, error) {
	actor := s.membership.ResolveMembership(ctx, clubID, actorID)
	if actor == nil || actor.Status != models.MembershipStatusApproved {
		return nil, ErrPermissionDenied
	}
	groups, err := s.groupRepo.ListByClub(ctx, clubID)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups of club %d: %w", clubID, err)
	}
	return groups, nil
}

func (s *groupService) RenameGroup(ctx context.Context, actorID, groupID int, name string) error {
	group, err := s.getGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if err := s.requireAdmin(ctx, actorID, group.ClubID); err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrGroupNameRequired
	}
	if err := s.groupRepo.Rename(ctx, groupID, name); err != nil {
		switch {
		case errors.Is(err, repositories.ErrGroupNotFound):
			return ErrGroupNotFound
		case errors.Is(err, repositories.ErrGroupNameConflict):
			return ErrGroupNameConflict
		}
		return fmt.Errorf("failed to rename group %d: %w", groupID, err)
	}
	return nil
}

func (s *groupService) DeleteGroup(ctx context.Context, actorID, groupID int) error {
	group, err := s.getGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if err := s.requireAdmin(ctx, actorID, group.ClubID); err != nil {
		return err
	}
	if err := s.groupRepo.Delete(ctx, groupID); err != nil {
		if errors.Is(err, repositories.ErrGroupNotFound) {
			return ErrGroupNotFound
		}
		return fmt.Errorf("failed to delete group %d: %w", groupID, err)
	}
	return nil
}

func (s *groupService) AddMember(ctx context.Context, actorID, groupID, userID int) (*models.GroupMembership, error) {
	group, err := s.getGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if err := s.requireLeaderOrAdmin(ctx, actorID, group); err != nil {
		return nil, err
	}

	target := s.membership.ResolveMembership(ctx, group.ClubID, userID)
	if target == nil || target.Status != models.MembershipStatusApproved {
		return nil, ErrMemberNotApproved
	}

	gm := &models.GroupMembership{
		GroupID: groupID,
		UserID:  userID,
		Role:    models.GroupRoleMember,
	}
	if err := s.groupMemberRepo.Create(ctx, gm); err != nil {
		if errors.Is(err, repositories.ErrGroupMembershipConflict) {
			return nil, ErrAlreadyInGroup
		}
		return nil, fmt.Errorf("failed to add user %d to group %d: %w", userID, groupID, err)
	}
	return gm, nil
}

func (s *groupService) RemoveMember(ctx context.Context, actorID, groupID, userID int) error {
	group, err := s.getGroup(ctx, groupID)
	if err != nil {
		return err
	}
	// Выйти из группы можно самому; чужих убирают лидеры и админы.
	if actorID != userID {
		if err := s.requireLeaderOrAdmin(ctx, actorID, group); err != nil {
			return err
		}
	}
	gm, err := s.groupMemberRepo.GetByGroupAndUser(ctx, groupID, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrGroupMembershipNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to get group membership: %w", err)
	}
	if err := s.groupMemberRepo.Delete(ctx, gm.ID); err != nil {
		if errors.Is(err, repositories.ErrGroupMembershipNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to remove group member: %w", err)
	}
	return nil
}

func (s *groupService) PromoteLeader(ctx context.Context, actorID, groupID, userID int) error {
	return s.setGroupRole(ctx, actorID, groupID, userID, models.GroupRoleLeader)
}

func (s *groupService) DemoteLeader(ctx context.Context, actorID, groupID, userID int) error {
	return s.setGroupRole(ctx, actorID, groupID, userID, models.GroupRoleMember)
}

func (s *groupService) setGroupRole(ctx context.Context, actorID, groupID, userID int, role models.GroupRole) error {
	group, err := s.getGroup(ctx, groupID)
	if err != nil {
		return err
	}
	// Лидеров назначают только клубные админы.
	if err := s.requireAdmin(ctx, actorID, group.ClubID); err != nil {
		return err
	}
	gm, err := s.groupMemberRepo.GetByGroupAndUser(ctx, groupID, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrGroupMembershipNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to get group membership: %w", err)
	}
	if err := s.groupMemberRepo.UpdateRole(ctx, gm.ID, role); err != nil {
		return fmt.Errorf("failed to update group role: %w", err)
	}
	return nil
}

func (s *groupService) ListGroupMembers(ctx context.Context, actorID, groupID int) ([]*models.GroupMembership, error) {
	group, err := s.getGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	actor := s.membership.ResolveMembership(ctx, group.ClubID, actorID)
	if actor == nil || actor.Status != models.MembershipStatusApproved {
		return nil, ErrPermissionDenied
	}
	members, err := s.groupMemberRepo.ListByGroup(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members of group %d: %w", groupID, err)
	}
	return members, nil
}

func (s *groupService) getGroup(ctx context.Context, groupID int) (*models.Group, error) {
	group, err := s.groupRepo.GetByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, repositories.ErrGroupNotFound) {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("failed to get group %d: %w", groupID, err)
	}
	return group, nil
}

func (s *groupService) requireAdmin(ctx context.Context, actorID, clubID int) error {
	actor := s.membership.ResolveMembership(ctx, clubID, actorID)
	if actor == nil || actor.Status != models.MembershipStatusApproved || !IsClubAdmin(actor.Role) {
		return ErrClubAdminRequired
	}
	return nil
}

func (s *groupService) requireLeaderOrAdmin(ctx context.Context, actorID int, group *models.Group) error {
	actor := s.membership.ResolveMembership(ctx, group.ClubID, actorID)
	if actor == nil || actor.Status != models.MembershipStatusApproved {
		return ErrPermissionDenied
	}
	memberships := s.membership.ResolveGroupMemberships(ctx, group.ClubID, actorID)
	if !IsGroupLeader(memberships, group.ID, actor.Role) {
		return ErrGroupLeaderRequired
	}
	return nil
}
