package backend

import (
	"context"
	"net/url"

	apperrors "github.com/alexjbarnes/tmc-client/internal/errors"
	"github.com/alexjbarnes/tmc-client/internal/models"
	"github.com/alexjbarnes/tmc-client/internal/request"
)

const coursesPath = "/api/courses"

// CourseQuery filters GET /api/courses.
type CourseQuery struct {
	Page         int
	Size         int
	PrimaryTag   string
	SecondaryTag string
	Keyword      string
}

// Courses covers the course catalog and enrollment.
type Courses struct {
	api API
}

// CourseTags lists the catalog filter tags.
func (c *Courses) CourseTags(ctx context.Context) ([]models.CourseTag, error) {
	return request.Decode[[]models.CourseTag](c.api.Get(ctx, "/api/course-tags", nil))
}

// Courses lists catalog courses.
func (c *Courses) Courses(ctx context.Context, q CourseQuery) (*models.Page[models.Course], error) {
	params := url.Values{}
	setPositive(params, "page", q.Page)
	setPositive(params, "size", min(q.Size, MaxPageSize))
	setNonEmpty(params, "primaryTag", q.PrimaryTag)
	setNonEmpty(params, "secondaryTag", q.SecondaryTag)
	setNonEmpty(params, "keyword", q.Keyword)

	return decodeRequired[models.Page[models.Course]](c.api.Get(ctx, coursesPath, params))
}

// Course fetches one course with its sections.
func (c *Courses) Course(ctx context.Context, id string) (*models.Course, error) {
	path, err := resourcePath(coursesPath, id)
	if err != nil {
		return nil, err
	}

	return decodeRequired[models.Course](c.api.Get(ctx, path, nil))
}

// CoursesBySection fetches the course a section belongs to.
func (c *Courses) CoursesBySection(ctx context.Context, sectionID string) (*models.Course, error) {
	path, err := resourcePath(coursesPath+"/by-section", sectionID)
	if err != nil {
		return nil, err
	}

	return decodeRequired[models.Course](c.api.Get(ctx, path, nil))
}

// Enroll signs the caller up for a course.
func (c *Courses) Enroll(ctx context.Context, id string) error {
	path, err := resourcePath(coursesPath, id, "enrollments")
	if err != nil {
		return err
	}

	return discard(c.api.Post(ctx, path, nil))
}

// EnrollmentStatus reports whether the caller is enrolled and how far
// along they are.
func (c *Courses) EnrollmentStatus(ctx context.Context, id string) (*models.Enrollment, error) {
	path, err := resourcePath(coursesPath, id, "enrollments", "me")
	if err != nil {
		return nil, err
	}

	return decodeRequired[models.Enrollment](c.api.Get(ctx, path, nil))
}

// UpdateProgress records study progress as a percentage.
func (c *Courses) UpdateProgress(ctx context.Context, id string, progress int) error {
	if progress < 0 || progress > 100 {
		return apperrors.ErrInvalidProgress
	}

	path, err := resourcePath(coursesPath, id, "enrollments", "progress", "update")
	if err != nil {
		return err
	}

	return discard(c.api.Post(ctx, path, models.ProgressRequest{Progress: progress}))
}
