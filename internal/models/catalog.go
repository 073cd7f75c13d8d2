package models

import "encoding/json"

// Page is one page of a paginated listing.
type Page[T any] struct {
	Items   []T  `json:"items"`
	Page    int  `json:"page"`
	Size    int  `json:"size"`
	Total   int  `json:"total"`
	HasNext bool `json:"hasNext"`
}

// ArticleQuery filters GET /api/articles. Zero fields fall back to the
// server defaults.
type ArticleQuery struct {
	Page    int
	Size    int
	Tag     string
	Keyword string
}

// Article is a health-education article. BodyHTML is only set on the
// detail endpoint.
type Article struct {
	ID           ID     `json:"id"`
	Title        string `json:"title"`
	Summary      string `json:"summary,omitempty"`
	Tag          string `json:"tag,omitempty"`
	CoverURL     string `json:"coverUrl,omitempty"`
	AuthorName   string `json:"authorName,omitempty"`
	AuthorAvatar string `json:"authorAvatar,omitempty"`
	BodyHTML     string `json:"bodyHtml,omitempty"`
	LikeCount    int    `json:"likeCount"`
	ViewCount    int    `json:"viewCount"`
	IsLiked      bool   `json:"isLiked"`
	IsFavorited  bool   `json:"isFavorited"`
	PublishAt    string `json:"publishAt,omitempty"`
}

// Comment is one article comment.
type Comment struct {
	ID        ID     `json:"id"`
	ParentID  ID     `json:"parentId,omitempty"`
	Content   string `json:"content"`
	Nickname  string `json:"nickname,omitempty"`
	Avatar    string `json:"avatar,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// CommentRequest is the body of POST /api/articles/{id}/comments.
// ParentID is set when replying to another comment.
type CommentRequest struct {
	Content  string `json:"content"`
	ParentID string `json:"parentId,omitempty"`
}

// CourseTag is a catalog filter tag. Primary tags carry their
// secondary tags as children.
type CourseTag struct {
	Code     string      `json:"code"`
	Name     string      `json:"name"`
	Children []CourseTag `json:"children,omitempty"`
}

// Course is a catalog course. Sections are only set on the detail
// endpoints.
type Course struct {
	ID               ID        `json:"id"`
	Title            string    `json:"title"`
	Description      string    `json:"description,omitempty"`
	CoverURL         string    `json:"coverUrl,omitempty"`
	PrimaryTag       string    `json:"primaryTag,omitempty"`
	SecondaryTag     string    `json:"secondaryTag,omitempty"`
	InstructorName   string    `json:"instructorName,omitempty"`
	InstructorAvatar string    `json:"instructorAvatar,omitempty"`
	Price            float64   `json:"price"`
	TotalDuration    int       `json:"totalDuration"`
	SectionCount     int       `json:"sectionCount"`
	FirstSectionID   ID        `json:"firstSectionId,omitempty"`
	Sections         []Section `json:"sections,omitempty"`
}

// Section is one lesson of a course.
type Section struct {
	ID          ID     `json:"id"`
	Seq         int    `json:"seq"`
	Title       string `json:"title"`
	ContentType string `json:"contentType"`
	Duration    int    `json:"duration"`
	Preview     bool   `json:"preview"`
	Available   bool   `json:"available"`
}

// Enrollment is the caller's enrollment in one course.
type Enrollment struct {
	Enrolled bool `json:"enrolled"`
	Progress int  `json:"progress"`
}

// ProgressRequest is the body of the progress update endpoint.
type ProgressRequest struct {
	Progress int `json:"progress"`
}

// Highlight is a home-page highlight card.
type Highlight struct {
	Name            string `json:"name"`
	Type            string `json:"type"`
	CourseSectionID ID     `json:"courseSectionId,omitempty"`
}

// HomeCourseTag is a home-page tag with its featured courses.
type HomeCourseTag struct {
	TagName string   `json:"tagName"`
	Courses []Course `json:"courses"`
}

// DialogScenario is a preset AI conversation offered on the home page.
type DialogScenario struct {
	Tag         string          `json:"tag"`
	TemplateID  ID              `json:"templateId"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Doctor      json.RawMessage `json:"doctor,omitempty"`
	Messages    []ChatMessage   `json:"messages,omitempty"`
}

// LeadAssistant is the customer-acquisition assistant link.
type LeadAssistant struct {
	Enabled bool   `json:"enabled"`
	URL     string `json:"url"`
}

// HealthProfile and MembershipStatus are rendered as-is; their fields
// are owned by the server.
type (
	HealthProfile    map[string]any
	MembershipStatus map[string]any
)
