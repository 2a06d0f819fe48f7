package storage

import (
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/chochsentinel/sentinel/model"
)

// SQLAlertStore is the GORM-backed AlertStore implementation. Filtering is
// done in memory over the set GORM loads, mirroring the teacher's
// OrderFilter composition idiom rather than building dynamic SQL per filter
// combination.
type SQLAlertStore struct {
	db *gorm.DB
}

// FromSQL opens a GORM connection with dialect and migrates the Alert table.
func FromSQL(dialect gorm.Dialector, opts ...gorm.Option) (AlertStore, error) {
	db, err := gorm.Open(dialect, opts...)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&model.Alert{}); err != nil {
		return nil, err
	}

	return &SQLAlertStore{db: db}, nil
}

func (s *SQLAlertStore) Save(alert *model.Alert) error {
	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}
	return s.db.Create(alert).Error
}

func (s *SQLAlertStore) Archive(id string, reason string) error {
	now := time.Now().UTC()
	result := s.db.Model(&model.Alert{}).Where("id = ?", id).Updates(map[string]interface{}{
		"archived_at":    &now,
		"archive_reason": &reason,
	})
	return result.Error
}

func (s *SQLAlertStore) Recent(limit int, filters ...AlertFilter) ([]*model.Alert, error) {
	if limit <= 0 || limit > 500 {
		limit = 500
	}
	all, err := s.load()
	if err != nil {
		return nil, err
	}
	filters = append(filters, WithoutArchived())
	matched := applyFilters(all, filters)
	// newest first
	for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
		matched[i], matched[j] = matched[j], matched[i]
	}
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (s *SQLAlertStore) Filter(filters ...AlertFilter) ([]*model.Alert, error) {
	all, err := s.load()
	if err != nil {
		return nil, err
	}
	return applyFilters(all, filters), nil
}

func (s *SQLAlertStore) Stats(filters ...AlertFilter) (Stats, error) {
	filters = append(filters, WithoutArchived())
	matched, err := s.Filter(filters...)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{
		ByDirection:  map[string]int{},
		BySignalType: map[string]int{},
		BySymbol:     map[string]int{},
	}
	for _, a := range matched {
		stats.Total++
		stats.ByDirection[string(a.Direction)]++
		stats.BySignalType[a.SignalType]++
		stats.BySymbol[a.Symbol]++
	}
	return stats, nil
}

func (s *SQLAlertStore) UniqueValues(field string) ([]string, error) {
	all, err := s.load()
	if err != nil {
		return nil, err
	}
	all = applyFilters(all, []AlertFilter{WithoutArchived()})

	seen := map[string]struct{}{}
	for _, a := range all {
		var v string
		switch field {
		case "symbol":
			v = a.Symbol
		case "timeframe":
			v = a.Timeframe
		case "direction":
			v = string(a.Direction)
		case "signal_type":
			v = a.SignalType
		default:
			continue
		}
		seen[v] = struct{}{}
	}

	values := make([]string, 0, len(seen))
	for v := range seen {
		values = append(values, v)
	}
	return values, nil
}

func (s *SQLAlertStore) load() ([]*model.Alert, error) {
	alerts := make([]*model.Alert, 0)
	result := s.db.Order("signal_timestamp asc").Find(&alerts)
	if result.Error != nil && result.Error != gorm.ErrRecordNotFound {
		return nil, result.Error
	}
	return alerts, nil
}

func applyFilters(alerts []*model.Alert, filters []AlertFilter) []*model.Alert {
	return lo.Filter(alerts, func(a *model.Alert, _ int) bool {
		for _, filter := range filters {
			if !filter(*a) {
				return false
			}
		}
		return true
	})
}
