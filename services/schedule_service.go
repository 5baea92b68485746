package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/moimhub/club-system/models"
	"github.com/moimhub/club-system/repositories"
)

type ScheduleService interface {
	CreateSchedule(ctx context.Context, actorID int, input ScheduleInput) (*models.Schedule, error)
	ListSchedules(ctx context.Context, actorID, clubID int, from, to time.Time) ([]*models.Schedule, error)
	UpdateSchedule(ctx context.Context, actorID, scheduleID int, input ScheduleInput) (*models.Schedule, error)
	DeleteSchedule(ctx context.Context, actorID, scheduleID int) error
}

type ScheduleInput struct {
	ClubID   int       `json:"club_id"`
	Title    string    `json:"title"`
	Place    *string   `json:"place"`
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
}

type scheduleService struct {
	scheduleRepo repositories.ScheduleRepository
	membership   MembershipService
}

func NewScheduleService(scheduleRepo repositories.ScheduleRepository, membership MembershipService) ScheduleService {
	return &scheduleService{scheduleRepo: scheduleRepo, membership: membership}
}

func (s *scheduleService) CreateSchedule(ctx context.Context, actorID int, input ScheduleInput) (*models.Schedule, error) {
	if err := s.requireAdmin(ctx, actorID, input.ClubID); err != nil {
		return nil, err
	}
	if err := validateScheduleInput(&input); err != nil {
		return nil, err
	}

	schedule := &models.Schedule{
		ClubID:   input.ClubID,
		Title:    input.Title,
		Place:    input.Place,
		StartsAt: input.StartsAt,
		EndsAt:   input.EndsAt,
	}
	if err := s.scheduleRepo.Create(ctx, schedule); err != nil {
		if errors.Is(err, repositories.ErrScheduleClubInvalid) {
			return nil, ErrClubNotFound
		}
		return nil, fmt.Errorf("failed to create schedule: %w", err)
	}
	return schedule, nil
}

func (s *scheduleService) ListSchedules(ctx context.Context, actorID, clubID int, from, to time.Time) ([]*models.Schedule, error) {
	actor := s.membership.ResolveMembership(ctx, clubID, actorID)
	if actor == nil || actor.Status != models.MembershipStatusApproved {
		return nil, ErrPermissionDenied
	}
	if to.IsZero() {
		to = from.AddDate(0, 1, 0) // месяц по умолчанию
	}
	schedules, err := s.scheduleRepo.ListByClub(ctx, clubID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}
	return schedules, nil
}

func (s *scheduleService) UpdateSchedule(ctx context.Context, actorID, scheduleID int, input ScheduleInput) (*models.Schedule, error) {
	schedule, err := s.getSchedule(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	if err := s.requireAdmin(ctx, actorID, schedule.ClubID); err != nil {
		return nil, err
	}
	input.ClubID = schedule.ClubID
	if err := validateScheduleInput(&input); err != nil {
		return nil, err
	}

	schedule.Title = input.Title
	schedule.Place = input.Place
	schedule.StartsAt = input.StartsAt
	schedule.EndsAt = input.EndsAt
	if err := s.scheduleRepo.Update(ctx, schedule); err != nil {
		if errors.Is(err, repositories.ErrScheduleNotFound) {
			return nil, ErrScheduleNotFound
		}
		return nil, fmt.Errorf("failed to update schedule %d: %w", scheduleID, err)
	}
	return schedule, nil
}

func (s *scheduleService) DeleteSchedule(ctx context.Context, actorID, scheduleID int) error {
	schedule, err := s.getSchedule(ctx, scheduleID)
	if err != nil {
		return err
	}
	if err := s.requireAdmin(ctx, actorID, schedule.ClubID); err != nil {
		return err
	}
	if err := s.scheduleRepo.Delete(ctx, scheduleID); err != nil {
		if errors.Is(err, repositories.ErrScheduleNotFound) {
			return ErrScheduleNotFound
		}
		return fmt.Errorf("failed to delete schedule %d: %w", scheduleID, err)
	}
	return nil
}

func (s *scheduleService) getSchedule(ctx context.Context, scheduleID int) (*models.Schedule, error) {
	schedule, err := s.scheduleRepo.GetByID(ctx, scheduleID)
	if err != nil {
		if errors.Is(err, repositories.ErrScheduleNotFound) {
			return nil, ErrScheduleNotFound
		}
		return nil, fmt.Errorf("failed to get schedule %d: %w", scheduleID, err)
	}
	return schedule, nil
}

func (s *scheduleService) requireAdmin(ctx context.Context, actorID, clubID int) error {
	actor := s.membership.ResolveMembership(ctx, clubID, actorID)
	if actor == nil || actor.Status != models.MembershipStatusApproved || !IsClubAdmin(actor.Role) {
		return ErrClubAdminRequired
	}
	return nil
}

func validateScheduleInput(input *ScheduleInput) error {
	input.Title = strings.TrimSpace(input.Title)
	if input.Title == "" {
		return ErrValidationFailed
	}
	if input.StartsAt.IsZero() || input.EndsAt.IsZero() {
		return ErrValidationFailed
	}
	if !input.EndsAt.After(input.StartsAt) {
		return ErrScheduleInvalidRange
	}
	return nil
}
