// Package presenter projects models into the JSON shapes served by the API.
// Derived fields (read time, rendered content, comment trees) are computed here.
package presenter

import (
	"bytes"
	"strings"
	"time"

	"blogapi/internal/models"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// WordsPerMinute is the reading speed behind ReadTime.
const WordsPerMinute = 200

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// ReadTime is whole minutes to read content, never less than one.
func ReadTime(content string) int {
	minutes := len(strings.Fields(content)) / WordsPerMinute
	if minutes < 1 {
		return 1
	}
	return minutes
}

// RenderMarkdown converts post content to HTML. Raw HTML in the source is not passed through.
func RenderMarkdown(content string) string {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(content), &buf); err != nil {
		return ""
	}
	return buf.String()
}

// UserSummary is the minimal nested author shape.
type UserSummary struct {
	ID        uint   `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Avatar    string `json:"avatar"`
}

func NewUserSummary(u *models.User) UserSummary {
	if u == nil {
		return UserSummary{}
	}
	return UserSummary{ID: u.ID, Username: u.Username, FirstName: u.FirstName, LastName: u.LastName, Avatar: u.Avatar}
}

// ProfileView exposes the settings of a UserProfile.
type ProfileView struct {
	PhoneNumber         string `json:"phone_number"`
	NotificationEnabled bool   `json:"notification_enabled"`
	EmailVerified       bool   `json:"email_verified"`
	IsPublic            bool   `json:"is_public"`
}

// UserView is the full account shape returned by profile endpoints.
type UserView struct {
	ID        uint         `json:"id"`
	Username  string       `json:"username"`
	Email     string       `json:"email"`
	FirstName string       `json:"first_name"`
	LastName  string       `json:"last_name"`
	Bio       string       `json:"bio"`
	Avatar    string       `json:"avatar"`
	Website   string       `json:"website"`
	Location  string       `json:"location"`
	BirthDate *string      `json:"birth_date"`
	CreatedAt time.Time    `json:"created_at"`
	Profile   *ProfileView `json:"profile"`
}

// DateLayout is the wire format of dates without time.
const DateLayout = "2006-01-02"

func NewUserView(u *models.User) UserView {
	v := UserView{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Bio:       u.Bio,
		Avatar:    u.Avatar,
		Website:   u.Website,
		Location:  u.Location,
		CreatedAt: u.CreatedAt,
	}
	if u.BirthDate != nil {
		d := u.BirthDate.Format(DateLayout)
		v.BirthDate = &d
	}
	if p := u.Profile; p != nil {
		v.Profile = &ProfileView{
			PhoneNumber:         p.PhoneNumber,
			NotificationEnabled: p.NotificationEnabled,
			EmailVerified:       p.EmailVerified,
			IsPublic:            p.IsPublic,
		}
	}
	return v
}

// LoginUser is the user block embedded in login responses.
type LoginUser struct {
	ID          uint   `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	IsStaff     bool   `json:"is_staff"`
	IsSuperuser bool   `json:"is_superuser"`
}

func NewLoginUser(u *models.User) LoginUser {
	return LoginUser{ID: u.ID, Username: u.Username, Email: u.Email, IsStaff: u.IsStaff, IsSuperuser: u.IsSuperuser}
}

type CategoryView struct {
	ID          uint      `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description"`
	PostCount   int64     `json:"post_count"`
	CreatedAt   time.Time `json:"created_at"`
}

func NewCategoryView(c *models.Category) CategoryView {
	return CategoryView{ID: c.ID, Name: c.Name, Slug: c.Slug, Description: c.Description, PostCount: c.PostCount, CreatedAt: c.CreatedAt}
}

func NewCategoryViews(cs []models.Category) []CategoryView {
	out := make([]CategoryView, 0, len(cs))
	for i := range cs {
		out = append(out, NewCategoryView(&cs[i]))
	}
	return out
}

type TagView struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	Slug      string `json:"slug"`
	PostCount int64  `json:"post_count"`
}

func NewTagView(t *models.Tag) TagView {
	return TagView{ID: t.ID, Name: t.Name, Slug: t.Slug, PostCount: t.PostCount}
}

func NewTagViews(ts []models.Tag) []TagView {
	out := make([]TagView, 0, len(ts))
	for i := range ts {
		out = append(out, NewTagView(&ts[i]))
	}
	return out
}

// PostListItem is the listing projection of a post.
type PostListItem struct {
	ID             uint        `json:"id"`
	Title          string      `json:"title"`
	Slug           string      `json:"slug"`
	Author         UserSummary `json:"author"`
	AuthorUsername string      `json:"author_username"`
	Excerpt        string      `json:"excerpt"`
	FeaturedImage  string      `json:"featured_image"`
	Category       *uint       `json:"category"`
	CategoryName   *string     `json:"category_name"`
	Tags           []TagView   `json:"tags"`
	Status         string      `json:"status"`
	ViewsCount     int64       `json:"views_count"`
	IsFeatured     bool        `json:"is_featured"`
	PublishedAt    *time.Time  `json:"published_at"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
	LikesCount     int64       `json:"likes_count"`
	CommentsCount  int64       `json:"comments_count"`
	ReadTime       int         `json:"read_time"`
}

func NewPostListItem(p *models.Post) PostListItem {
	item := PostListItem{
		ID:             p.ID,
		Title:          p.Title,
		Slug:           p.Slug,
		Author:         NewUserSummary(&p.Author),
		AuthorUsername: p.Author.Username,
		Excerpt:        p.Excerpt,
		FeaturedImage:  p.FeaturedImage,
		Category:       p.CategoryID,
		Tags:           NewTagViews(p.Tags),
		Status:         p.Status,
		ViewsCount:     p.ViewsCount,
		IsFeatured:     p.IsFeatured,
		PublishedAt:    p.PublishedAt,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
		LikesCount:     p.LikesCount,
		CommentsCount:  p.CommentsCount,
		ReadTime:       ReadTime(p.Content),
	}
	if p.Category != nil {
		name := p.Category.Name
		item.CategoryName = &name
	}
	return item
}

func NewPostList(posts []*models.Post) []PostListItem {
	out := make([]PostListItem, 0, len(posts))
	for _, p := range posts {
		out = append(out, NewPostListItem(p))
	}
	return out
}

// PostDetail is the single-post projection. Category replaces the list's id with the full object.
type PostDetail struct {
	PostListItem
	Content      string         `json:"content"`
	ContentHTML  string         `json:"content_html"`
	Category     *CategoryView  `json:"category"`
	Comments     []*CommentNode `json:"comments"`
	UserHasLiked bool           `json:"user_has_liked"`
}

// NewPostDetail builds the detail view from the post, its approved comments
// (any order) and whether the viewer likes it.
func NewPostDetail(p *models.Post, approved []models.Comment, maxDepth int, liked bool) PostDetail {
	d := PostDetail{
		PostListItem: NewPostListItem(p),
		Content:      p.Content,
		ContentHTML:  RenderMarkdown(p.Content),
		Comments:     BuildCommentTree(approved, maxDepth),
		UserHasLiked: liked,
	}
	if p.Category != nil {
		c := NewCategoryView(p.Category)
		d.Category = &c
	}
	return d
}

// PostStats is the engagement summary of one post.
type PostStats struct {
	ID            uint   `json:"id"`
	Title         string `json:"title"`
	Slug          string `json:"slug"`
	LikesCount    int64  `json:"likes_count"`
	CommentsCount int64  `json:"comments_count"`
	ViewsCount    int64  `json:"views_count"`
}

func NewPostStats(p *models.Post) PostStats {
	return PostStats{ID: p.ID, Title: p.Title, Slug: p.Slug, LikesCount: p.LikesCount, CommentsCount: p.CommentsCount, ViewsCount: p.ViewsCount}
}

type LikeView struct {
	ID        uint        `json:"id"`
	User      UserSummary `json:"user"`
	Post      uint        `json:"post"`
	PostTitle string      `json:"post_title"`
	CreatedAt time.Time   `json:"created_at"`
}

func NewLikeViews(likes []models.Like, post *models.Post) []LikeView {
	out := make([]LikeView, 0, len(likes))
	for i := range likes {
		l := &likes[i]
		out = append(out, LikeView{ID: l.ID, User: NewUserSummary(&l.User), Post: l.PostID, PostTitle: post.Title, CreatedAt: l.CreatedAt})
	}
	return out
}

// LikeResult is the outcome of a like toggle.
type LikeResult struct {
	Message    string `json:"message"`
	Liked      bool   `json:"liked"`
	LikesCount int64  `json:"likes_count"`
}

type NotificationView struct {
	ID        uint         `json:"id"`
	Type      string       `json:"type"`
	Title     string       `json:"title"`
	Message   string       `json:"message"`
	Link      string       `json:"link"`
	IsRead    bool         `json:"is_read"`
	Sender    *UserSummary `json:"sender"`
	CreatedAt time.Time    `json:"created_at"`
}

func NewNotificationView(n *models.Notification) NotificationView {
	v := NotificationView{ID: n.ID, Type: n.Type, Title: n.Title, Message: n.Message, Link: n.Link, IsRead: n.IsRead, CreatedAt: n.CreatedAt}
	if n.Sender != nil {
		s := NewUserSummary(n.Sender)
		v.Sender = &s
	}
	return v
}

func NewNotificationViews(ns []models.Notification) []NotificationView {
	out := make([]NotificationView, 0, len(ns))
	for i := range ns {
		out = append(out, NewNotificationView(&ns[i]))
	}
	return out
}

// Page is the paginated list envelope.
type Page[T any] struct {
	Count      int64 `json:"count"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
	Results    []T   `json:"results"`
}

// SearchResult is the unpaginated envelope of /search.
type SearchResult[T any] struct {
	Count   int `json:"count"`
	Results []T `json:"results"`
}
