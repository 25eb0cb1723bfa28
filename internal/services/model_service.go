package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"gorm.io/gorm"

	"github.com/charlesng35/voiceclone/internal/models"
	apperrors "github.com/charlesng35/voiceclone/pkg/errors"
)

var (
	// ErrModelNotFound indicates the requested voice model does not exist.
	ErrModelNotFound = apperrors.New(apperrors.ErrNotFound.Code, "Voice model not found", http.StatusNotFound)
	// ErrDuplicateTitle signals another model already uses the requested title.
	ErrDuplicateTitle = apperrors.New(apperrors.ErrConflict.Code, "A voice model with this title already exists", http.StatusConflict)
)

// CreateModelInput captures the metadata persisted alongside a freshly
// trained voice.
type CreateModelInput struct {
	Title         string
	Description   string
	RemoteModelID string
	State         string
	ProviderMeta  []byte
}

// ModelService owns the local registry of trained voice models. Rows map
// local identifiers to the remote provider's model identifiers; the service
// never talks to the provider itself.
type ModelService struct {
	db *gorm.DB
}

// NewModelService constructs a ModelService instance.
func NewModelService(db *gorm.DB) (*ModelService, error) {
	if db == nil {
		return nil, errors.New("model service: db is required")
	}
	return &ModelService{db: db}, nil
}

// TitleExists reports whether any model already uses the given title.
func (s *ModelService) TitleExists(ctx context.Context, title string) (bool, error) {
	ctx = ensureContext(ctx)

	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.VoiceModel{}).
		Where("title = ?", strings.TrimSpace(title)).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check title: %w", err)
	}
	return count > 0, nil
}

// Create registers a trained voice in the local registry. The unique index
// on title backstops the pre-insert existence check, so a losing writer in a
// title race still comes back as a duplicate rather than a server error.
func (s *ModelService) Create(ctx context.Context, input CreateModelInput) (*models.VoiceModel, error) {
	ctx = ensureContext(ctx)

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewValidation("model title is required")
	}
	if strings.TrimSpace(input.RemoteModelID) == "" {
		return nil, errors.New("model service: remote model id is required")
	}

	model := &models.VoiceModel{
		Title:         title,
		Description:   strings.TrimSpace(input.Description),
		RemoteModelID: strings.TrimSpace(input.RemoteModelID),
		State:         input.State,
		ProviderMeta:  input.ProviderMeta,
	}

	if err := s.db.WithContext(ctx).Create(model).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrDuplicateTitle
		}
		return nil, fmt.Errorf("failed to create voice model: %w", err)
	}

	return model, nil
}

// List returns all registered models, newest first.
func (s *ModelService) List(ctx context.Context) ([]models.VoiceModel, error) {
	ctx = ensureContext(ctx)

	var records []models.VoiceModel
	if err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list voice models: %w", err)
	}
	return records, nil
}

// Get fetches a model by its local identifier.
func (s *ModelService) Get(ctx context.Context, id string) (*models.VoiceModel, error) {
	ctx = ensureContext(ctx)

	var model models.VoiceModel
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrModelNotFound
		}
		return nil, fmt.Errorf("failed to load voice model: %w", err)
	}
	return &model, nil
}

// Resolve looks a model up by local identifier first, then by exact title.
// Synthesis requests may reference a voice either way.
func (s *ModelService) Resolve(ctx context.Context, idOrTitle string) (*models.VoiceModel, error) {
	ctx = ensureContext(ctx)

	key := strings.TrimSpace(idOrTitle)
	if key == "" {
		return nil, ErrModelNotFound
	}

	var model models.VoiceModel
	err := s.db.WithContext(ctx).
		Where("id = ? OR title = ?", key, key).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrModelNotFound
		}
		return nil, fmt.Errorf("failed to resolve voice model: %w", err)
	}
	return &model, nil
}

// UpdateModelInput describes the mutable model fields.
type UpdateModelInput struct {
	Title       *string
	Description *string
}

// Update renames or re-describes an existing model.
func (s *ModelService) Update(ctx context.Context, id string, input UpdateModelInput) (*models.VoiceModel, error) {
	ctx = ensureContext(ctx)

	model, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, apperrors.NewValidation("model title is required")
		}
		updates["title"] = title
	}
	if input.Description != nil {
		updates["description"] = strings.TrimSpace(*input.Description)
	}
	if len(updates) == 0 {
		return model, nil
	}

	if err := s.db.WithContext(ctx).
		Model(model).
		Updates(updates).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrDuplicateTitle
		}
		return nil, fmt.Errorf("failed to update voice model: %w", err)
	}

	return s.Get(ctx, id)
}

// UpdateState records the provider's latest training state for a model.
func (s *ModelService) UpdateState(ctx context.Context, id, state string) error {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).
		Model(&models.VoiceModel{}).
		Where("id = ?", id).
		Update("state", state)
	if result.Error != nil {
		return fmt.Errorf("failed to update model state: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrModelNotFound
	}
	return nil
}

// Delete removes a model from the local registry.
func (s *ModelService) Delete(ctx context.Context, id string) (*models.VoiceModel, error) {
	ctx = ensureContext(ctx)

	model, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Delete(model).Error; err != nil {
		return nil, fmt.Errorf("failed to delete voice model: %w", err)
	}
	return model, nil
}
