package backend

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/alexjbarnes/tmc-client/internal/models"
)

// Dialog defaults.
const (
	DefaultHistorySize = 20
	MaxHistorySize     = 50
	DefaultTemperature = 0.7
)

// AI covers the assistant dialogs.
type AI struct {
	api API
}

// InitDialog opens a dialog for templateID with up to historySize
// recent messages.
func (a *AI) InitDialog(ctx context.Context, templateID string, historySize int) (*models.DialogPage, error) {
	params := url.Values{}
	setNonEmpty(params, "templateId", templateID)
	params.Set("historySize", strconv.Itoa(clamp(historySize, DefaultHistorySize, MaxHistorySize)))

	return decodeRequired[models.DialogPage](a.api.Get(ctx, "/api/ai/dialogs/initial", params))
}

// LoadHistory pages backwards through a dialog. cursor is the
// NextCursor of the previous page, empty for the newest page.
func (a *AI) LoadHistory(ctx context.Context, tag, cursor string, size int) (*models.HistoryPage, error) {
	params := url.Values{}
	setNonEmpty(params, "tag", tag)
	setNonEmpty(params, "cursor", cursor)
	params.Set("size", strconv.Itoa(clamp(size, DefaultHistorySize, MaxHistorySize)))

	return decodeRequired[models.HistoryPage](a.api.Get(ctx, "/api/ai/dialogs/history", params))
}

// SendMessage asks the assistant a question. A non-positive temperature
// selects DefaultTemperature.
func (a *AI) SendMessage(ctx context.Context, req models.ChatRequest) (*models.ChatReply, error) {
	req.Question = strings.TrimSpace(req.Question)

	if req.Temperature <= 0 {
		req.Temperature = DefaultTemperature
	}

	if req.History == nil {
		req.History = []models.ChatTurn{}
	}

	return decodeRequired[models.ChatReply](a.api.Post(ctx, "/api/consult/ai/messages", req))
}
