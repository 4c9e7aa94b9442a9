package service

import (
	"context"
	"fmt"
	"strconv"

	"blogapi/internal/cache"
	"blogapi/internal/featureflags"
	"blogapi/internal/models"
	"blogapi/internal/observability"
	"blogapi/internal/policy"
	"blogapi/internal/presenter"
	"blogapi/internal/repository"
	"blogapi/internal/validation"

	"go.opentelemetry.io/otel/attribute"
)

type CommentService struct {
	commentRepo repository.CommentRepository
	postRepo    repository.PostRepository
	notifier    Notifier
	flags       *featureflags.Manager
	validate    *validation.Validator
	maxDepth    int
}

type CreateCommentInput struct {
	PostID   uint   `json:"post" validate:"required"`
	ParentID *uint  `json:"parent"`
	Content  string `json:"content" validate:"required,notblank,max=10000"`
}

type UpdateCommentInput struct {
	Content string `json:"content" validate:"required,notblank,max=10000"`
}

// Moderation is the approval state a new comment starts in.
type Moderation struct {
	Approved bool
	Reason   string
}

// Moderation reasons.
const (
	ReasonStaff       = "staff"
	ReasonAutoApprove = "auto_approve"
	ReasonQueued      = "moderation_queue"
)

func NewCommentService(
	commentRepo repository.CommentRepository,
	postRepo repository.PostRepository,
	notifier Notifier,
	flags *featureflags.Manager,
	validate *validation.Validator,
	maxDepth int,
) *CommentService {
	if maxDepth < 1 {
		maxDepth = presenter.DefaultMaxDepth
	}
	return &CommentService{
		commentRepo: commentRepo,
		postRepo:    postRepo,
		notifier:    notifier,
		flags:       flags,
		validate:    validate,
		maxDepth:    maxDepth,
	}
}

// Moderate decides whether a comment by actor is visible immediately. Staff
// are always trusted; everyone else is queued while comment_moderation is on
// for them.
func (s *CommentService) Moderate(actor policy.Actor) Moderation {
	if actor.Privileged() {
		return Moderation{Approved: true, Reason: ReasonStaff}
	}
	if s.flags.Enabled(featureflags.CommentModeration, actor.UserID) {
		return Moderation{Approved: false, Reason: ReasonQueued}
	}
	return Moderation{Approved: true, Reason: ReasonAutoApprove}
}

func (s *CommentService) CreateComment(ctx context.Context, actor policy.Actor, in CreateCommentInput) (_ *models.Comment, err error) {
	ctx, finish := observability.StartSpan(ctx, "comment", "create", attribute.Int("post.id", int(in.PostID)))
	defer func() { finish(err) }()

	if err := policy.Check(policy.CommentCreate, actor, policy.Resource{}); err != nil {
		return nil, err
	}
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}
	post, err := s.postRepo.GetByID(ctx, in.PostID)
	if err != nil {
		return nil, err
	}
	if !post.IsPublished() {
		return nil, models.NewNotFoundError("Post", in.PostID)
	}

	var parent *models.Comment
	if in.ParentID != nil {
		parent, err = s.commentRepo.GetByID(ctx, *in.ParentID)
		if models.HasCode(err, models.CodeNotFound) {
			return nil, models.NewFieldError("parent", fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", *in.ParentID))
		}
		if err != nil {
			return nil, err
		}
		if parent.PostID != post.ID {
			return nil, models.NewFieldError("parent", "Parent comment must belong to the same post.")
		}
	}

	mod := s.Moderate(actor)
	comment := &models.Comment{
		PostID:     post.ID,
		AuthorID:   actor.UserID,
		ParentID:   in.ParentID,
		Content:    in.Content,
		IsApproved: mod.Approved,
	}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, err
	}
	observability.CommentsCreatedTotal.WithLabelValues(strconv.FormatBool(mod.Approved)).Inc()

	if mod.Approved {
		cache.InvalidatePostLists(ctx)
		s.announce(ctx, comment, post, parent)
	}
	return comment, nil
}

// announce tells the post author and, for replies, the parent's author.
func (s *CommentService) announce(ctx context.Context, c *models.Comment, post *models.Post, parent *models.Comment) {
	if s.notifier == nil {
		return
	}
	sender := &c.Author
	if sender.ID == 0 {
		sender = &models.User{ID: c.AuthorID}
	}
	link := postLink(post.Slug)
	if parent != nil {
		s.notifier.Notify(ctx, NotifyInput{
			RecipientID: parent.AuthorID,
			Sender:      sender,
			Type:        models.NotificationReply,
			Title:       "New reply",
			Message:     fmt.Sprintf("%s replied to your comment on %q", sender.Username, post.Title),
			Link:        link,
		})
		if parent.AuthorID == post.AuthorID {
			return
		}
	}
	s.notifier.Notify(ctx, NotifyInput{
		RecipientID: post.AuthorID,
		Sender:      sender,
		Type:        models.NotificationComment,
		Title:       "New comment",
		Message:     fmt.Sprintf("%s commented on your post %q", sender.Username, post.Title),
		Link:        link,
	})
}

func (s *CommentService) UpdateComment(ctx context.Context, actor policy.Actor, id uint, in UpdateCommentInput) (*models.Comment, error) {
	comment, err := s.commentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := policy.Check(policy.CommentUpdate, actor, policy.Owned(comment.AuthorID)); err != nil {
		return nil, err
	}
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}
	comment.Content = in.Content
	if err := s.commentRepo.Update(ctx, comment); err != nil {
		return nil, err
	}
	return s.commentRepo.GetByID(ctx, comment.ID)
}

// DeleteComment removes the comment and its whole reply subtree.
func (s *CommentService) DeleteComment(ctx context.Context, actor policy.Actor, id uint) error {
	comment, err := s.commentRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := policy.Check(policy.CommentDelete, actor, policy.Owned(comment.AuthorID)); err != nil {
		return err
	}
	if err := s.commentRepo.Delete(ctx, id); err != nil {
		return err
	}
	cache.InvalidatePostLists(ctx)
	return nil
}

// Approve publishes a queued comment. Approving twice is harmless and
// notifies only the first time.
func (s *CommentService) Approve(ctx context.Context, actor policy.Actor, id uint) (*models.Comment, error) {
	if err := policy.Check(policy.CommentModerate, actor, policy.Resource{}); err != nil {
		return nil, err
	}
	comment, err := s.commentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if comment.IsApproved {
		return comment, nil
	}
	if err := s.commentRepo.SetApproved(ctx, id, true); err != nil {
		return nil, err
	}
	comment.IsApproved = true
	cache.InvalidatePostLists(ctx)

	post, err := s.postRepo.GetByID(ctx, comment.PostID)
	if err != nil {
		return nil, err
	}
	var parent *models.Comment
	if comment.ParentID != nil {
		if parent, err = s.commentRepo.GetByID(ctx, *comment.ParentID); err != nil {
			return nil, err
		}
	}
	s.announce(ctx, comment, post, parent)
	return comment, nil
}

// Reject deletes a comment and its replies.
func (s *CommentService) Reject(ctx context.Context, actor policy.Actor, id uint) error {
	if err := policy.Check(policy.CommentModerate, actor, policy.Resource{}); err != nil {
		return err
	}
	if _, err := s.commentRepo.GetByID(ctx, id); err != nil {
		return err
	}
	if err := s.commentRepo.Delete(ctx, id); err != nil {
		return err
	}
	cache.InvalidatePostLists(ctx)
	return nil
}

// Pending lists comments waiting for moderation, oldest first.
func (s *CommentService) Pending(ctx context.Context, actor policy.Actor, page int) ([]*presenter.CommentNode, error) {
	if err := policy.Check(policy.ModerationQueue, actor, policy.Resource{}); err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	list, err := s.commentRepo.ListPending(ctx, DefaultPageSize, (page-1)*DefaultPageSize)
	if err != nil {
		return nil, err
	}
	return presenter.NewCommentNodes(list), nil
}

// ListTopLevel pages through a post's approved top-level comments, newest
// first, each with its approved reply tree.
func (s *CommentService) ListTopLevel(ctx context.Context, postID uint, page int) (presenter.Page[*presenter.CommentNode], error) {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return presenter.Page[*presenter.CommentNode]{}, err
	}
	if !post.IsPublished() {
		return presenter.Page[*presenter.CommentNode]{}, models.NewNotFoundError("Post", postID)
	}
	count, err := s.commentRepo.CountTopLevel(ctx, postID)
	if err != nil {
		return presenter.Page[*presenter.CommentNode]{}, err
	}
	p := Paginate(count, page, DefaultPageSize)
	roots, err := s.commentRepo.ListTopLevel(ctx, postID, p.PageSize, p.Offset)
	if err != nil {
		return presenter.Page[*presenter.CommentNode]{}, err
	}
	all, err := s.commentRepo.ListApprovedByPost(ctx, postID)
	if err != nil {
		return presenter.Page[*presenter.CommentNode]{}, err
	}

	trees := make(map[uint]*presenter.CommentNode)
	for _, n := range presenter.BuildCommentTree(all, s.maxDepth) {
		trees[n.ID] = n
	}
	nodes := make([]*presenter.CommentNode, 0, len(roots))
	for i := range roots {
		if n, ok := trees[roots[i].ID]; ok {
			nodes = append(nodes, n)
			continue
		}
		nodes = append(nodes, presenter.NewCommentNode(&roots[i]))
	}
	return NewPage(p, nodes), nil
}

// PostTree is the full approved comment tree of the post at slug.
func (s *CommentService) PostTree(ctx context.Context, slug string) ([]*presenter.CommentNode, error) {
	post, err := s.postRepo.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !post.IsPublished() {
		return nil, models.NewNotFoundError("Post", slug)
	}
	all, err := s.commentRepo.ListApprovedByPost(ctx, post.ID)
	if err != nil {
		return nil, err
	}
	return presenter.BuildCommentTree(all, s.maxDepth), nil
}
