package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/synclist/internal/models"
	"github.com/Kerhoff/synclist/internal/repository"
)

// maxJoinCodeAttempts bounds retries when a generated join code collides
const maxJoinCodeAttempts = 5

var (
	// ErrInvalidInput is returned when a required argument is blank
	ErrInvalidInput = errors.New("invalid input")
)

// Service is the list business logic used by the REST API.
type Service struct {
	logger  *logrus.Logger
	Lists   repository.ListRepository
	Items   repository.ItemRepository
	newCode func() (string, error)
}

// New creates a new Service with all required dependencies.
func New(logger *logrus.Logger, lists repository.ListRepository, items repository.ItemRepository) *Service {
	return &Service{
		logger:  logger,
		Lists:   lists,
		Items:   items,
		newCode: GenerateJoinCode,
	}
}

// CreateList stores a new list owned by deviceID. A fresh join code is
// generated for every attempt until one is accepted.
func (s *Service) CreateList(ctx context.Context, name, deviceID string) (*models.List, error) {
	name = strings.TrimSpace(name)
	deviceID = strings.TrimSpace(deviceID)
	if name == "" || deviceID == "" {
		return nil, fmt.Errorf("%w: name and deviceId are required", ErrInvalidInput)
	}

	id := uuid.NewString()
	var lastErr error
	for attempt := 0; attempt < maxJoinCodeAttempts; attempt++ {
		code, err := s.newCode()
		if err != nil {
			return nil, fmt.Errorf("failed to generate join code: %w", err)
		}

		list, err := s.Lists.Create(ctx, &models.List{
			ID:        id,
			Name:      name,
			JoinCode:  code,
			CreatedBy: deviceID,
		})
		if err == nil {
			s.logger.WithFields(logrus.Fields{
				"list_id":   list.ID,
				"device_id": deviceID,
			}).Info("Created list")
			return list, nil
		}
		if !errors.Is(err, repository.ErrDuplicateJoinCode) {
			return nil, err
		}
		s.logger.Debugf("Join code collision on attempt %d", attempt+1)
		lastErr = err
	}

	return nil, fmt.Errorf("failed to allocate a join code after %d attempts: %w", maxJoinCodeAttempts, lastErr)
}

// GetList returns the list with its items ordered by position, or nil when
// the list does not exist.
func (s *Service) GetList(ctx context.Context, id string) (*models.ListWithItems, error) {
	list, err := s.Lists.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to lookup list %s: %w", id, err)
	}
	if list == nil {
		return nil, nil
	}

	items, err := s.Items.GetByListID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load items of list %s: %w", id, err)
	}

	return &models.ListWithItems{List: *list, Items: items}, nil
}

// JoinList looks a list up by its join code. Codes are matched
// case-insensitively. Returns nil when no list has the code.
func (s *Service) JoinList(ctx context.Context, joinCode, deviceID string) (*models.List, error) {
	joinCode = strings.ToUpper(strings.TrimSpace(joinCode))
	if joinCode == "" || strings.TrimSpace(deviceID) == "" {
		return nil, fmt.Errorf("%w: joinCode and deviceId are required", ErrInvalidInput)
	}

	list, err := s.Lists.GetByJoinCode(ctx, joinCode)
	if err != nil {
		return nil, fmt.Errorf("failed to lookup join code: %w", err)
	}
	if list != nil {
		s.logger.WithFields(logrus.Fields{
			"list_id":   list.ID,
			"device_id": deviceID,
		}).Info("Device joined list")
	}
	return list, nil
}
