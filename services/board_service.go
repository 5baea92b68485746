package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/moimhub/club-system/models"
	"github.com/moimhub/club-system/repositories"
)

type BoardService interface {
	CreatePost(ctx context.Context, actorID int, input CreatePostInput) (*models.Post, error)
	GetPost(ctx context.Context, actorID, postID int) (*models.Post, error)
	ListPosts(ctx context.Context, actorID, clubID int, groupID *int) ([]*models.Post, error)
	DeletePost(ctx context.Context, actorID, postID int) error

	AddComment(ctx context.Context, actorID, postID int, body string) (*models.PostComment, error)
	DeleteComment(ctx context.Context, actorID, postID, commentID int) error

	Vote(ctx context.Context, actorID, postID, optionID int) error
}

type CreatePostInput struct {
	ClubID  int      `json:"club_id"`
	GroupID *int     `json:"group_id"`
	Kind    string   `json:"kind"`
	Title   string   `json:"title"`
	Body    string   `json:"body"`
	Options []string `json:"options"`
}

type boardService struct {
	postRepo   repositories.PostRepository
	groupRepo  repositories.GroupRepository
	membership MembershipService
	sanitizer  *bluemonday.Policy
}

func NewBoardService(
	postRepo repositories.PostRepository,
	groupRepo repositories.GroupRepository,
	membership MembershipService,
) BoardService {
	return &boardService{
		postRepo:   postRepo,
		groupRepo:  groupRepo,
		membership: membership,
		sanitizer:  bluemonday.UGCPolicy(),
	}
}

// CreatePost: право дает CanWriteBoard; пост в конкретную группу требует
// лидерства в этой группе (или admin).
func (s *boardService) CreatePost(ctx context.Context, actorID int, input CreatePostInput) (*models.Post, error) {
	actor := s.membership.ResolveMembership(ctx, input.ClubID, actorID)
	if actor == nil || actor.Status != models.MembershipStatusApproved {
		return nil, ErrPermissionDenied
	}
	groupMemberships := s.membership.ResolveGroupMemberships(ctx, input.ClubID, actorID)
	if !CanWriteBoard(actor.Role, LeaderGroupIDs(groupMemberships)) {
		return nil, ErrPermissionDenied
	}

	if input.GroupID != nil {
		group, err := s.groupRepo.GetByID(ctx, *input.GroupID)
		if err != nil {
			if errors.Is(err, repositories.ErrGroupNotFound) {
				return nil, ErrGroupNotFound
			}
			return nil, fmt.Errorf("failed to get group %d: %w", *input.GroupID, err)
		}
		if group.ClubID != input.ClubID {
			return nil, ErrGroupNotFound
		}
		if !IsGroupLeader(groupMemberships, group.ID, actor.Role) {
			return nil, ErrGroupLeaderRequired
		}
	}

	input.Title = strings.TrimSpace(input.Title)
	if input.Title == "" {
		return nil, ErrPostTitleRequired
	}

	kind := models.PostKind(input.Kind)
	if kind == "" {
		kind = models.PostKindNotice
	}
	if kind != models.PostKindNotice && kind != models.PostKindActivity {
		return nil, ErrValidationFailed
	}
	if kind == models.PostKindActivity && len(input.Options) < 2 {
		return nil, ErrVoteOptionsRequired
	}

	post := &models.Post{
		ClubID:   input.ClubID,
		GroupID:  input.GroupID,
		AuthorID: actorID,
		Kind:     kind,
		Title:    input.Title,
		Body:     s.sanitizer.Sanitize(input.Body),
	}
	for _, label := range input.Options {
		label = strings.TrimSpace(label)
		if label == "" {
			return nil, ErrVoteOptionsRequired
		}
		post.Options = append(post.Options, models.VoteOption{Label: label})
	}

	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, fmt.Errorf("failed to create post: %w", err)
	}
	return post, nil
}

func (s *boardService) GetPost(ctx context.Context, actorID, postID int) (*models.Post, error) {
	post, err := s.getPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if err := s.requireMember(ctx, actorID, post.ClubID); err != nil {
		return nil, err
	}

	if post.Kind == models.PostKindActivity {
		options, err := s.postRepo.ListOptions(ctx, post.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list vote options: %w", err)
		}
		post.Options = make([]models.VoteOption, 0, len(options))
		for _, o := range options {
			post.Options = append(post.Options, *o)
		}
	}

	comments, err := s.postRepo.ListComments(ctx, post.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	post.Comments = make([]models.PostComment, 0, len(comments))
	for _, c := range comments {
		post.Comments = append(post.Comments, *c)
	}
	return post, nil
}

func (s *boardService) ListPosts(ctx context.Context, actorID, clubID int, groupID *int) ([]*models.Post, error) {
	if err := s.requireMember(ctx, actorID, clubID); err != nil {
		return nil, err
	}
	posts, err := s.postRepo.ListByClub(ctx, clubID, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts of club %d: %w", clubID, err)
	}
	return posts, nil
}

func (s *boardService) DeletePost(ctx context.Context, actorID, postID int) error {
	post, err := s.getPost(ctx, postID)
	if err != nil {
		return err
	}
	if post.AuthorID != actorID {
		actor := s.membership.ResolveMembership(ctx, post.ClubID, actorID)
		if actor == nil || actor.Status != models.MembershipStatusApproved || !IsClubAdmin(actor.Role) {
			return ErrPermissionDenied
		}
	}
	if err := s.postRepo.Delete(ctx, postID); err != nil {
		if errors.Is(err, repositories.ErrPostNotFound) {
			return ErrPostNotFound
		}
		return fmt.Errorf("failed to delete post %d: %w", postID, err)
	}
	return nil
}

func (s *boardService) AddComment(ctx context.Context, actorID, postID int, body string) (*models.PostComment, error) {
	post, err := s.getPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if err := s.requireMember(ctx, actorID, post.ClubID); err != nil {
		return nil, err
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, ErrValidationFailed
	}

	comment := &models.PostComment{
		PostID:   postID,
		AuthorID: actorID,
		Body:     s.sanitizer.Sanitize(body),
	}
	if err := s.postRepo.CreateComment(ctx, comment); err != nil {
		if errors.Is(err, repositories.ErrPostNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, fmt.Errorf("failed to add comment: %w", err)
	}
	return comment, nil
}

func (s *boardService) DeleteComment(ctx context.Context, actorID, postID, commentID int) error {
	post, err := s.getPost(ctx, postID)
	if err != nil {
		return err
	}
	comments, err := s.postRepo.ListComments(ctx, postID)
	if err != nil {
		return fmt.Errorf("failed to list comments: %w", err)
	}
	var target *models.PostComment
	for _, c := range comments {
		if c.ID == commentID {
			target = c
			break
		}
	}
	if target == nil {
		return ErrNotFound
	}
	if target.AuthorID != actorID {
		actor := s.membership.ResolveMembership(ctx, post.ClubID, actorID)
		if actor == nil || actor.Status != models.MembershipStatusApproved || !IsClubAdmin(actor.Role) {
			return ErrPermissionDenied
		}
	}
	if err := s.postRepo.DeleteComment(ctx, commentID); err != nil {
		if errors.Is(err, repositories.ErrCommentNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete comment %d: %w", commentID, err)
	}
	return nil
}

func (s *boardService) Vote(ctx context.Context, actorID, postID, optionID int) error {
	post, err := s.getPost(ctx, postID)
	if err != nil {
		return err
	}
	if err := s.requireMember(ctx, actorID, post.ClubID); err != nil {
		return err
	}
	if post.Kind != models.PostKindActivity {
		return ErrValidationFailed
	}

	vote := &models.PostVote{
		PostID:   postID,
		OptionID: optionID,
		UserID:   actorID,
	}
	if err := s.postRepo.CreateVote(ctx, vote); err != nil {
		switch {
		case errors.Is(err, repositories.ErrVoteConflict):
			return ErrAlreadyVoted
		case errors.Is(err, repositories.ErrOptionNotFound):
			return ErrNotFound
		case errors.Is(err, repositories.ErrPostNotFound):
			return ErrPostNotFound
		}
		return fmt.Errorf("failed to record vote: %w", err)
	}
	return nil
}

func (s *boardService) getPost(ctx context.Context, postID int) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		if errors.Is(err, repositories.ErrPostNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, fmt.Errorf("failed to get post %d: %w", postID, err)
	}
	return post, nil
}

func (s *boardService) requireMember(ctx context.Context, actorID, clubID int) error {
	actor := s.membership.ResolveMembership(ctx, clubID, actorID)
	if actor == nil || actor.Status != models.MembershipStatusApproved {
		return ErrPermissionDenied
	}
	return nil
}
