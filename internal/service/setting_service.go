package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	domain "course-enrollment/internal/domain/enrollment"
	interfaces "course-enrollment/internal/interfaces/infrastructure"
	serviceInterfaces "course-enrollment/internal/interfaces/service"
	"course-enrollment/pkg/logger"
)

var _ serviceInterfaces.SettingService = (*SettingService)(nil)

// SettingService is a read-through cache over the settings table. The first
// read loads every row; Reload replaces the snapshot atomically.
type SettingService struct {
	settingRepo  interfaces.SettingRepository
	semesterRepo interfaces.SemesterRepository

	mu     sync.RWMutex
	values map[string]json.RawMessage
	loaded bool
}

func NewSettingService(settingRepo interfaces.SettingRepository, semesterRepo interfaces.SemesterRepository) *SettingService {
	return &SettingService{
		settingRepo:  settingRepo,
		semesterRepo: semesterRepo,
	}
}

func (s *SettingService) Reload(ctx context.Context) error {
	settings, err := s.settingRepo.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	values := make(map[string]json.RawMessage, len(settings))
	for _, setting := range settings {
		values[setting.Key] = json.RawMessage(setting.Value)
	}

	s.mu.Lock()
	s.values = values
	s.loaded = true
	s.mu.Unlock()

	logger.Info("Loaded %d settings", len(values))
	return nil
}

// Get returns the raw JSON value of key.
func (s *SettingService) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	s.mu.RLock()
	loaded := s.loaded
	s.mu.RUnlock()

	if !loaded {
		if err := s.Reload(ctx); err != nil {
			return nil, false, err
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

// CurrentSemesterID resolves the current_semester setting, which holds either
// a numeric semester id or a semester code.
func (s *SettingService) CurrentSemesterID(ctx context.Context) (int64, bool, error) {
	raw, ok, err := s.Get(ctx, domain.SettingCurrentSemester)
	if err != nil || !ok {
		return 0, false, err
	}

	var id int64
	if err := json.Unmarshal(raw, &id); err == nil {
		return id, id > 0, nil
	}

	var code string
	if err := json.Unmarshal(raw, &code); err != nil {
		logger.Warn("Setting %s has an unsupported value: %s", domain.SettingCurrentSemester, string(raw))
		return 0, false, nil
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return 0, false, nil
	}
	if n, err := strconv.ParseInt(code, 10, 64); err == nil {
		return n, n > 0, nil
	}

	semester, err := s.semesterRepo.GetByCode(ctx, code)
	if err != nil {
		return 0, false, fmt.Errorf("failed to resolve semester %s: %w", code, err)
	}
	if semester == nil {
		logger.Warn("Current semester %s does not exist", code)
		return 0, false, nil
	}
	return semester.ID, true, nil
}

func (s *SettingService) IsMaintenanceMode(ctx context.Context) (bool, error) {
	raw, ok, err := s.Get(ctx, domain.SettingSystemMaintenanceMode)
	if err != nil || !ok {
		return false, err
	}

	var on bool
	if err := json.Unmarshal(raw, &on); err == nil {
		return on, nil
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return strings.EqualFold(strings.TrimSpace(text), "true"), nil
	}
	return false, nil
}
