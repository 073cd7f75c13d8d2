package backend

import (
	"context"
	"net/url"

	"github.com/alexjbarnes/tmc-client/internal/models"
	"github.com/alexjbarnes/tmc-client/internal/request"
)

// Listing limits for articles and comments.
const (
	DefaultArticlePageSize = 10
	DefaultCommentPageSize = 20
	MaxPageSize            = 50
)

const articlesPath = "/api/articles"

// Content covers articles and their interactions.
type Content struct {
	api API
}

// Articles lists articles, newest first.
func (c *Content) Articles(ctx context.Context, q models.ArticleQuery) (*models.Page[models.Article], error) {
	params := url.Values{}
	setPositive(params, "page", max(q.Page, 1))
	setPositive(params, "size", clamp(q.Size, DefaultArticlePageSize, MaxPageSize))
	setNonEmpty(params, "tag", q.Tag)
	setNonEmpty(params, "keyword", q.Keyword)

	return decodeRequired[models.Page[models.Article]](c.api.Get(ctx, articlesPath, params))
}

// Article fetches one article including its body.
func (c *Content) Article(ctx context.Context, id string) (*models.Article, error) {
	path, err := resourcePath(articlesPath, id)
	if err != nil {
		return nil, err
	}

	return decodeRequired[models.Article](c.api.Get(ctx, path, nil))
}

// ArticleComments lists an article's comments.
func (c *Content) ArticleComments(ctx context.Context, id string, page, size int) (*models.Page[models.Comment], error) {
	path, err := resourcePath(articlesPath, id, "comments")
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	setPositive(params, "page", max(page, 1))
	setPositive(params, "size", clamp(size, DefaultCommentPageSize, MaxPageSize))

	return decodeRequired[models.Page[models.Comment]](c.api.Get(ctx, path, params))
}

// PostComment adds a comment, or a reply when req.ParentID is set.
func (c *Content) PostComment(ctx context.Context, id string, req models.CommentRequest) (*models.Comment, error) {
	path, err := resourcePath(articlesPath, id, "comments")
	if err != nil {
		return nil, err
	}

	return request.Decode[*models.Comment](c.api.Post(ctx, path, req))
}

// LikeArticle likes an article.
func (c *Content) LikeArticle(ctx context.Context, id string) error {
	return c.post(ctx, id, "likes")
}

// UnlikeArticle removes the caller's like.
func (c *Content) UnlikeArticle(ctx context.Context, id string) error {
	return c.delete(ctx, id, "likes")
}

// FavoriteArticle bookmarks an article.
func (c *Content) FavoriteArticle(ctx context.Context, id string) error {
	return c.post(ctx, id, "favorites")
}

// UnfavoriteArticle removes the caller's bookmark.
func (c *Content) UnfavoriteArticle(ctx context.Context, id string) error {
	return c.delete(ctx, id, "favorites")
}

// IncrementViews records a page view. It works signed out too.
func (c *Content) IncrementViews(ctx context.Context, id string) error {
	return c.post(ctx, id, "views", "increment")
}

func (c *Content) post(ctx context.Context, id string, segments ...string) error {
	path, err := resourcePath(articlesPath, id, segments...)
	if err != nil {
		return err
	}

	return discard(c.api.Post(ctx, path, nil))
}

func (c *Content) delete(ctx context.Context, id string, segments ...string) error {
	path, err := resourcePath(articlesPath, id, segments...)
	if err != nil {
		return err
	}

	return discard(c.api.Delete(ctx, path, nil))
}
