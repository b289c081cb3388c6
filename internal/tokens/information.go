package tokens

import (
	"context"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/smartdevs17/xltoken-dashboard/internal/models"
	"github.com/smartdevs17/xltoken-dashboard/pkg/utils"
)

// InfoBoard manages announcement entries. Mutations refetch the list.
type InfoBoard struct {
	api    API
	logger *logrus.Entry
}

// NewInfoBoard creates an information board
func NewInfoBoard(api API) *InfoBoard {
	return &InfoBoard{api: api, logger: utils.ComponentLogger("info_board")}
}

// List returns announcements newest first
func (ib *InfoBoard) List(ctx context.Context, public bool) ([]models.Information, error) {
	infos, err := ib.api.GetInformation(ctx, public)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(infos, func(i, j int) bool {
		return infos[i].CreatedAt.After(infos[j].CreatedAt)
	})
	return infos, nil
}

// Create posts an announcement and returns the refreshed list
func (ib *InfoBoard) Create(ctx context.Context, text string) ([]models.Information, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, utils.NewAppError(utils.ErrCodeValidation, "information must not be empty")
	}
	if err := ib.api.CreateInformation(ctx, text); err != nil {
		return nil, err
	}
	ib.logger.Info("Information created")
	return ib.List(ctx, false)
}

// Update edits an announcement and returns the refreshed list
func (ib *InfoBoard) Update(ctx context.Context, id, text string) ([]models.Information, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, utils.NewAppError(utils.ErrCodeValidation, "information must not be empty")
	}
	if err := ib.api.UpdateInformation(ctx, id, text); err != nil {
		return nil, err
	}
	ib.logger.WithField("information_id", id).Info("Information updated")
	return ib.List(ctx, false)
}

// Delete removes an announcement and returns the refreshed list
func (ib *InfoBoard) Delete(ctx context.Context, id string) ([]models.Information, error) {
	if err := ib.api.DeleteInformation(ctx, id); err != nil {
		return nil, err
	}
	ib.logger.WithField("information_id", id).Info("Information deleted")
	return ib.List(ctx, false)
}
