package service

import (
	"context"
	"errors"
	"strings"

	"pid_tuner/internal/models"
	"pid_tuner/internal/repository"
)

// ErrEmptyKey is returned for a blank parameter key.
var ErrEmptyKey = errors.New("parameter key is empty")

type ParameterService struct {
	loop     *IngestionLoop
	registry *ParameterRegistry
	stored   repository.ParameterRepo
}

func NewParameterService(loop *IngestionLoop, registry *ParameterRegistry, stored repository.ParameterRepo) *ParameterService {
	return &ParameterService{loop: loop, registry: registry, stored: stored}
}

func (s *ParameterService) ListParameters() []models.Parameter {
	return s.registry.List()
}

// StageParameter records an operator edit without sending it.
func (s *ParameterService) StageParameter(key, value string) {
	s.registry.StageUserEdit(strings.TrimSpace(key), value)
}

// SendParameter writes key:value to the device as typed.
func (s *ParameterService) SendParameter(ctx context.Context, key, value string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrEmptyKey
	}
	return s.loop.Write(ctx, key, value)
}

// SendStaged writes the staged value of key.
func (s *ParameterService) SendStaged(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrEmptyKey
	}
	return s.loop.WritePending(ctx, key)
}

// StoredParameters returns the last device values persisted across runs.
func (s *ParameterService) StoredParameters(ctx context.Context) ([]models.StoredParameter, error) {
	if s.stored == nil {
		return nil, nil
	}
	return s.stored.List(ctx)
}
