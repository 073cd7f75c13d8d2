package backend

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/alexjbarnes/tmc-client/internal/errors"
	"github.com/alexjbarnes/tmc-client/internal/models"
	"github.com/alexjbarnes/tmc-client/internal/request"
)

// Home covers the landing-page sections.
type Home struct {
	api    API
	logger *slog.Logger
}

// Overview is every home section fetched together. A section that
// failed to load is left empty.
type Overview struct {
	Highlights      []models.Highlight      `json:"highlights" yaml:"highlights"`
	CourseTags      []models.HomeCourseTag  `json:"courseTags" yaml:"courseTags"`
	DialogScenarios []models.DialogScenario `json:"dialogScenarios" yaml:"dialogScenarios"`
	LeadAssistant   *models.LeadAssistant   `json:"leadAssistant,omitempty" yaml:"leadAssistant,omitempty"`
}

// Highlights fetches the highlight cards.
func (h *Home) Highlights(ctx context.Context) ([]models.Highlight, error) {
	return request.Decode[[]models.Highlight](h.api.Get(ctx, "/api/home/highlights", nil))
}

// CourseTags fetches the featured tags with their courses.
func (h *Home) CourseTags(ctx context.Context) ([]models.HomeCourseTag, error) {
	return request.Decode[[]models.HomeCourseTag](h.api.Get(ctx, "/api/home/course-tags", nil))
}

// DialogScenarios fetches the preset AI conversations.
func (h *Home) DialogScenarios(ctx context.Context) ([]models.DialogScenario, error) {
	return request.Decode[[]models.DialogScenario](h.api.Get(ctx, "/api/home/dialog-scenarios", nil))
}

// LeadAssistant fetches the assistant link configuration.
func (h *Home) LeadAssistant(ctx context.Context) (*models.LeadAssistant, error) {
	return request.Decode[*models.LeadAssistant](h.api.Get(ctx, "/api/home/lead-assistant", nil))
}

// Overview loads all home sections concurrently. Section failures are
// logged and leave that section empty; only an expired session fails
// the whole call.
func (h *Home) Overview(ctx context.Context) (*Overview, error) {
	var ov Overview

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return h.section("highlights", func() (err error) {
			ov.Highlights, err = h.Highlights(ctx)
			return err
		})
	})
	g.Go(func() error {
		return h.section("course-tags", func() (err error) {
			ov.CourseTags, err = h.CourseTags(ctx)
			return err
		})
	})
	g.Go(func() error {
		return h.section("dialog-scenarios", func() (err error) {
			ov.DialogScenarios, err = h.DialogScenarios(ctx)
			return err
		})
	})
	g.Go(func() error {
		return h.section("lead-assistant", func() (err error) {
			ov.LeadAssistant, err = h.LeadAssistant(ctx)
			return err
		})
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if ov.Highlights == nil {
		ov.Highlights = []models.Highlight{}
	}

	if ov.CourseTags == nil {
		ov.CourseTags = []models.HomeCourseTag{}
	}

	if ov.DialogScenarios == nil {
		ov.DialogScenarios = []models.DialogScenario{}
	}

	return &ov, nil
}

func (h *Home) section(name string, load func() error) error {
	err := load()
	if err == nil {
		return nil
	}

	if errors.Is(err, apperrors.ErrAuthExpired) {
		return err
	}

	h.logger.Warn("loading home section failed",
		slog.String("section", name),
		slog.String("error", err.Error()),
	)

	return nil
}
