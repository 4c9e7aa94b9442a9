package presenter

import (
	"sort"
	"time"

	"blogapi/internal/models"
)

// DefaultMaxDepth bounds comment trees when no configuration is given.
const DefaultMaxDepth = 10

// CommentNode is one comment with its approved replies.
type CommentNode struct {
	ID             uint           `json:"id"`
	Post           uint           `json:"post"`
	Author         UserSummary    `json:"author"`
	AuthorUsername string         `json:"author_username"`
	Parent         *uint          `json:"parent"`
	Content        string         `json:"content"`
	IsApproved     bool           `json:"is_approved"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	Replies        []*CommentNode `json:"replies"`
	RepliesCount   int            `json:"replies_count"`
}

// NewCommentNode projects a single comment without descending into replies.
func NewCommentNode(c *models.Comment) *CommentNode {
	return &CommentNode{
		ID:             c.ID,
		Post:           c.PostID,
		Author:         NewUserSummary(&c.Author),
		AuthorUsername: c.Author.Username,
		Parent:         c.ParentID,
		Content:        c.Content,
		IsApproved:     c.IsApproved,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
		Replies:        []*CommentNode{},
	}
}

func NewCommentNodes(cs []models.Comment) []*CommentNode {
	out := make([]*CommentNode, 0, len(cs))
	for i := range cs {
		out = append(out, NewCommentNode(&cs[i]))
	}
	return out
}

// BuildCommentTree arranges comments into top-level threads, newest thread
// first and replies oldest first. Unapproved comments, and everything only
// reachable through them, are dropped. Nodes deeper than maxDepth (top level
// is depth 1) are cut from Replies but still counted in their parent's
// RepliesCount. The walk is iterative and visits each comment at most once.
func BuildCommentTree(comments []models.Comment, maxDepth int) []*CommentNode {
	if maxDepth < 1 {
		maxDepth = DefaultMaxDepth
	}

	children := make(map[uint][]*models.Comment)
	var roots []*models.Comment
	for i := range comments {
		c := &comments[i]
		if !c.IsApproved {
			continue
		}
		if c.ParentID == nil {
			roots = append(roots, c)
		} else {
			children[*c.ParentID] = append(children[*c.ParentID], c)
		}
	}

	sort.SliceStable(roots, func(i, j int) bool { return newer(roots[i], roots[j]) })
	for _, list := range children {
		sort.SliceStable(list, func(i, j int) bool { return newer(list[j], list[i]) })
	}

	type frame struct {
		node  *CommentNode
		depth int
	}
	out := make([]*CommentNode, 0, len(roots))
	visited := make(map[uint]bool, len(comments))
	var stack []frame
	for _, r := range roots {
		n := NewCommentNode(r)
		visited[r.ID] = true
		out = append(out, n)
		stack = append(stack, frame{n, 1})
	}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		kids := children[f.node.ID]
		f.node.RepliesCount = len(kids)
		if f.depth >= maxDepth {
			continue
		}
		for _, k := range kids {
			if visited[k.ID] {
				continue
			}
			visited[k.ID] = true
			child := NewCommentNode(k)
			f.node.Replies = append(f.node.Replies, child)
			stack = append(stack, frame{child, f.depth + 1})
		}
	}
	return out
}

func newer(a, b *models.Comment) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}
