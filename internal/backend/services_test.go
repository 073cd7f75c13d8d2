package backend

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/alexjbarnes/tmc-client/internal/errors"
	"github.com/alexjbarnes/tmc-client/internal/models"
)

func query(t *testing.T, raw string) url.Values {
	t.Helper()

	v, err := url.ParseQuery(raw)
	require.NoError(t, err)

	return v
}

func TestProfile_MergesIntoCache(t *testing.T) {
	fake := newFakeServer()
	fake.data("GET /api/me", map[string]any{"userId": "7", "nickname": "Lin"})
	s, store := newTestServices(t, fake, "a1", "r1")
	require.NoError(t, store.SetUserInfo(models.UserInfo{UserID: "7", Phone: "13800138000"}))

	info, err := s.Profile.Profile(context.Background())
	require.NoError(t, err)

	want := &models.UserInfo{UserID: "7", Phone: "13800138000", Nickname: "Lin"}
	assert.Equal(t, want, info)
	assert.Equal(t, want, store.UserInfo())
}

func TestProfile_HealthProfileRoundTrip(t *testing.T) {
	fake := newFakeServer()
	fake.data("GET /api/me/health-profile", map[string]any{"height": 170, "allergies": "none"})
	fake.data("POST /api/me/health-profile", nil)
	s, _ := newTestServices(t, fake, "a1", "r1")

	hp, err := s.Profile.HealthProfile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "none", hp["allergies"])

	require.NoError(t, s.Profile.SaveHealthProfile(context.Background(), nil))
	assert.JSONEq(t, `{}`, fake.last().Body)

	require.NoError(t, s.Profile.SaveHealthProfile(context.Background(), models.HealthProfile{"height": 171}))
	assert.JSONEq(t, `{"height":171}`, fake.last().Body)
}

func TestProfile_MembershipStatus(t *testing.T) {
	fake := newFakeServer()
	fake.data("GET /api/membership/status", map[string]any{"active": true})
	s, _ := newTestServices(t, fake, "a1", "r1")

	ms, err := s.Profile.MembershipStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, true, ms["active"])
}

func TestContent_ArticlesDefaults(t *testing.T) {
	fake := newFakeServer()
	fake.data("GET /api/articles", map[string]any{
		"items":   []map[string]any{{"id": 1, "title": "Sleep well", "likeCount": 3}},
		"page":    1,
		"size":    10,
		"hasNext": false,
	})
	s, _ := newTestServices(t, fake, "a1", "r1")

	page, err := s.Content.Articles(context.Background(), models.ArticleQuery{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, models.ID("1"), page.Items[0].ID)
	assert.Equal(t, 3, page.Items[0].LikeCount)

	q := query(t, fake.last().Query)
	assert.Equal(t, "1", q.Get("page"))
	assert.Equal(t, "10", q.Get("size"))
	assert.False(t, q.Has("tag"))
	assert.False(t, q.Has("keyword"))
}

func TestContent_ArticlesFilters(t *testing.T) {
	fake := newFakeServer()
	fake.data("GET /api/articles", map[string]any{"items": []any{}})
	s, _ := newTestServices(t, fake, "a1", "r1")

	_, err := s.Content.Articles(context.Background(), models.ArticleQuery{Page: 3, Size: 500, Tag: "sleep", Keyword: "tea"})
	require.NoError(t, err)

	q := query(t, fake.last().Query)
	assert.Equal(t, "3", q.Get("page"))
	assert.Equal(t, "50", q.Get("size"))
	assert.Equal(t, "sleep", q.Get("tag"))
	assert.Equal(t, "tea", q.Get("keyword"))
}

func TestContent_ArticleAndComments(t *testing.T) {
	fake := newFakeServer()
	fake.data("GET /api/articles/9", map[string]any{"id": 9, "title": "T", "bodyHtml": "<p>x</p>"})
	fake.data("GET /api/articles/9/comments", map[string]any{"items": []map[string]any{{"id": 1, "content": "hi"}}})
	fake.data("POST /api/articles/9/comments", map[string]any{"id": 2, "content": "reply", "parentId": 1})
	s, _ := newTestServices(t, fake, "a1", "r1")
	ctx := context.Background()

	a, err := s.Content.Article(ctx, "9")
	require.NoError(t, err)
	assert.Equal(t, "<p>x</p>", a.BodyHTML)

	comments, err := s.Content.ArticleComments(ctx, "9", 0, 0)
	require.NoError(t, err)
	assert.Len(t, comments.Items, 1)
	assert.Equal(t, "page=1&size=20", fake.last().Query)

	c, err := s.Content.PostComment(ctx, "9", models.CommentRequest{Content: "reply", ParentID: "1"})
	require.NoError(t, err)
	assert.Equal(t, models.ID("1"), c.ParentID)
	assert.JSONEq(t, `{"content":"reply","parentId":"1"}`, fake.last().Body)
}

func TestContent_Interactions(t *testing.T) {
	fake := newFakeServer()
	for _, p := range []string{
		"POST /api/articles/5/likes",
		"DELETE /api/articles/5/likes",
		"POST /api/articles/5/favorites",
		"DELETE /api/articles/5/favorites",
		"POST /api/articles/5/views/increment",
	} {
		fake.data(p, nil)
	}
	s, _ := newTestServices(t, fake, "a1", "r1")
	ctx := context.Background()

	require.NoError(t, s.Content.LikeArticle(ctx, "5"))
	require.NoError(t, s.Content.UnlikeArticle(ctx, "5"))
	require.NoError(t, s.Content.FavoriteArticle(ctx, "5"))
	require.NoError(t, s.Content.UnfavoriteArticle(ctx, "5"))
	require.NoError(t, s.Content.IncrementViews(ctx, "5"))

	assert.Equal(t, []string{
		"POST /api/articles/5/likes",
		"DELETE /api/articles/5/likes",
		"POST /api/articles/5/favorites",
		"DELETE /api/articles/5/favorites",
		"POST /api/articles/5/views/increment",
	}, fake.paths())
}

func TestContent_MissingID(t *testing.T) {
	fake := newFakeServer()
	s, _ := newTestServices(t, fake, "a1", "r1")

	assert.ErrorIs(t, s.Content.LikeArticle(context.Background(), ""), apperrors.ErrMissingID)
	_, err := s.Content.Article(context.Background(), "")
	assert.ErrorIs(t, err, apperrors.ErrMissingID)
	assert.Empty(t, fake.paths())
}

func TestCourses_Catalog(t *testing.T) {
	fake := newFakeServer()
	fake.data("GET /api/course-tags", []map[string]any{{"code": "tcm", "name": "TCM", "children": []map[string]any{{"code": "diet", "name": "Diet"}}}})
	fake.data("GET /api/courses", map[string]any{"items": []map[string]any{{"id": 3, "title": "Tea", "price": 9.9}}})
	fake.data("GET /api/courses/3", map[string]any{"id": 3, "sections": []map[string]any{{"id": 31, "seq": 1, "title": "Intro"}}})
	fake.data("GET /api/courses/by-section/31", map[string]any{"id": 3})
	s, _ := newTestServices(t, fake, "a1", "r1")
	ctx := context.Background()

	tags, err := s.Courses.CourseTags(ctx)
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, "diet", tags[0].Children[0].Code)

	page, err := s.Courses.Courses(ctx, CourseQuery{PrimaryTag: "tcm", Size: 80})
	require.NoError(t, err)
	assert.InDelta(t, 9.9, page.Items[0].Price, 0.001)
	q := query(t, fake.last().Query)
	assert.Equal(t, "tcm", q.Get("primaryTag"))
	assert.Equal(t, "50", q.Get("size"))
	assert.False(t, q.Has("page"))

	course, err := s.Courses.Course(ctx, "3")
	require.NoError(t, err)
	require.Len(t, course.Sections, 1)
	assert.Equal(t, "Intro", course.Sections[0].Title)

	bySection, err := s.Courses.CoursesBySection(ctx, "31")
	require.NoError(t, err)
	assert.Equal(t, models.ID("3"), bySection.ID)
}

func TestCourses_Enrollment(t *testing.T) {
	fake := newFakeServer()
	fake.data("POST /api/courses/3/enrollments", nil)
	fake.data("GET /api/courses/3/enrollments/me", map[string]any{"enrolled": true, "progress": 40})
	fake.data("POST /api/courses/3/enrollments/progress/update", nil)
	s, _ := newTestServices(t, fake, "a1", "r1")
	ctx := context.Background()

	require.NoError(t, s.Courses.Enroll(ctx, "3"))

	status, err := s.Courses.EnrollmentStatus(ctx, "3")
	require.NoError(t, err)
	assert.Equal(t, &models.Enrollment{Enrolled: true, Progress: 40}, status)

	require.NoError(t, s.Courses.UpdateProgress(ctx, "3", 60))
	assert.JSONEq(t, `{"progress":60}`, fake.last().Body)

	assert.ErrorIs(t, s.Courses.UpdateProgress(ctx, "3", 101), apperrors.ErrInvalidProgress)
	assert.ErrorIs(t, s.Courses.UpdateProgress(ctx, "3", -1), apperrors.ErrInvalidProgress)
}

func TestHome_Overview(t *testing.T) {
	fake := newFakeServer()
	fake.data("GET /api/home/highlights", []map[string]any{{"name": "Keep learning", "type": "COURSE", "courseSectionId": 31}})
	fake.data("GET /api/home/course-tags", []map[string]any{{"tagName": "TCM", "courses": []any{}}})
	fake.data("GET /api/home/dialog-scenarios", []map[string]any{{"tag": "sleep", "templateId": 4, "title": "Sleep"}})
	fake.data("GET /api/home/lead-assistant", map[string]any{"enabled": true, "url": "https://work.weixin.qq.com/x"})
	s, _ := newTestServices(t, fake, "a1", "r1")

	ov, err := s.Home.Overview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.ID("31"), ov.Highlights[0].CourseSectionID)
	assert.Equal(t, "TCM", ov.CourseTags[0].TagName)
	assert.Equal(t, models.ID("4"), ov.DialogScenarios[0].TemplateID)
	assert.True(t, ov.LeadAssistant.Enabled)
	assert.Len(t, fake.paths(), 4)
}

func TestHome_OverviewToleratesSectionFailure(t *testing.T) {
	fake := newFakeServer()
	fake.mux.HandleFunc("GET /api/home/highlights", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	fake.fail("GET /api/home/course-tags", "maintenance")
	fake.data("GET /api/home/dialog-scenarios", []map[string]any{{"tag": "sleep"}})
	fake.data("GET /api/home/lead-assistant", nil)
	s, _ := newTestServices(t, fake, "a1", "r1")

	ov, err := s.Home.Overview(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ov.Highlights)
	assert.NotNil(t, ov.Highlights)
	assert.Empty(t, ov.CourseTags)
	assert.Len(t, ov.DialogScenarios, 1)
	assert.Nil(t, ov.LeadAssistant)
}

func TestHome_OverviewFailsWhenSessionExpired(t *testing.T) {
	fake := newFakeServer()
	fake.mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	s, _ := newTestServices(t, fake, "a1", "")

	_, err := s.Home.Overview(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrAuthExpired)
}

func TestAI_InitDialogAndHistory(t *testing.T) {
	fake := newFakeServer()
	fake.data("GET /api/ai/dialogs/initial", map[string]any{
		"dialogId": 8, "tag": "sleep", "templateId": 4,
		"history":        []map[string]any{{"messageId": 1, "role": "user", "content": "hi"}},
		"historyHasMore": true, "nextCursor": 1,
	})
	fake.data("GET /api/ai/dialogs/history", map[string]any{"items": []any{}, "hasMore": false})
	s, _ := newTestServices(t, fake, "a1", "r1")
	ctx := context.Background()

	page, err := s.AI.InitDialog(ctx, "4", 0)
	require.NoError(t, err)
	assert.True(t, page.HistoryHasMore)
	assert.Equal(t, models.ID("1"), page.NextCursor)
	q := query(t, fake.last().Query)
	assert.Equal(t, "4", q.Get("templateId"))
	assert.Equal(t, "20", q.Get("historySize"))

	_, err = s.AI.InitDialog(ctx, "4", 80)
	require.NoError(t, err)
	assert.Equal(t, "50", query(t, fake.last().Query).Get("historySize"))

	hist, err := s.AI.LoadHistory(ctx, "sleep", "1", 0)
	require.NoError(t, err)
	assert.False(t, hist.HasMore)
	q = query(t, fake.last().Query)
	assert.Equal(t, "sleep", q.Get("tag"))
	assert.Equal(t, "1", q.Get("cursor"))
	assert.Equal(t, "20", q.Get("size"))
}

func TestAI_SendMessage(t *testing.T) {
	fake := newFakeServer()
	fake.data("POST /api/consult/ai/messages", map[string]any{"reply": "Drink warm water.", "sessionId": "s1"})
	s, _ := newTestServices(t, fake, "a1", "r1")

	reply, err := s.AI.SendMessage(context.Background(), models.ChatRequest{Question: "  can't sleep  ", Tag: "sleep"})
	require.NoError(t, err)
	assert.Equal(t, &models.ChatReply{Reply: "Drink warm water.", SessionID: "s1"}, reply)
	assert.JSONEq(t, `{"question":"can't sleep","history":[],"tag":"sleep","temperature":0.7}`, fake.last().Body)
}
