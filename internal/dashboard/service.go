package dashboard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"merchcheck-backend/internal/apperr"
	"merchcheck-backend/internal/audit"
	"merchcheck-backend/internal/database"
	"merchcheck-backend/internal/media"
	"merchcheck-backend/internal/models"

	"github.com/charmbracelet/log"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

const DateLayout = "2006-01-02"

// Filters select entries for the dashboard and the export. Text filters are
// case-insensitive substrings; the date range is inclusive on both ends.
type Filters struct {
	Employee string
	Branch   string
	Model    string
	DateFrom string
	DateTo   string
	Limit    int

	from, to time.Time
}

// ParseFilters trims and validates raw filter values.
func ParseFilters(employee, branch, model, dateFrom, dateTo string) (Filters, error) {
	f := Filters{
		Employee: strings.TrimSpace(employee),
		Branch:   strings.TrimSpace(branch),
		Model:    strings.TrimSpace(model),
		DateFrom: strings.TrimSpace(dateFrom),
		DateTo:   strings.TrimSpace(dateTo),
	}

	var err error
	if f.DateFrom != "" {
		if f.from, err = time.ParseInLocation(DateLayout, f.DateFrom, time.Local); err != nil {
			return Filters{}, apperr.Validation("Invalid date_from %q, expected YYYY-MM-DD", f.DateFrom)
		}
	}
	if f.DateTo != "" {
		if f.to, err = time.ParseInLocation(DateLayout, f.DateTo, time.Local); err != nil {
			return Filters{}, apperr.Validation("Invalid date_to %q, expected YYYY-MM-DD", f.DateTo)
		}
	}
	if !f.from.IsZero() && !f.to.IsZero() && f.to.Before(f.from) {
		return Filters{}, apperr.Validation("date_to must not be before date_from")
	}
	return f, nil
}

func (f Filters) apply(q *gorm.DB) *gorm.DB {
	const like = `LOWER(%s) LIKE LOWER(?) ESCAPE '\'`
	if f.Employee != "" {
		q = q.Where(fmt.Sprintf(like, "employee_name"), database.ContainsPattern(f.Employee))
	}
	if f.Branch != "" {
		q = q.Where(fmt.Sprintf(like, "branch_name"), database.ContainsPattern(f.Branch))
	}
	if f.Model != "" {
		q = q.Where(fmt.Sprintf(like, "model"), database.ContainsPattern(f.Model))
	}
	if !f.from.IsZero() {
		q = q.Where("created_at >= ?", f.from)
	}
	if !f.to.IsZero() {
		q = q.Where("created_at < ?", f.to.AddDate(0, 0, 1))
	}
	return q
}

// FilterOptions are the distinct values present in stored entries.
type FilterOptions struct {
	Employees []string `json:"employees"`
	Branches  []string `json:"branches"`
	Models    []string `json:"models"`
}

type Stats struct {
	Entries   int `json:"entries"`
	Photos    int `json:"photos"`
	Employees int `json:"employees"`
	Branches  int `json:"branches"`
}

// PhotoRemover deletes stored photo files.
type PhotoRemover interface {
	DeleteAll(ctx context.Context, objs []media.Object)
}

type Service struct {
	db     *gorm.DB
	photos PhotoRemover
	logger *log.Logger
}

func NewService(db *gorm.DB, photos PhotoRemover) *Service {
	return &Service{db: db, photos: photos, logger: log.WithPrefix("dashboard")}
}

// Entries returns matching entries newest first, photos in upload order.
func (s *Service) Entries(ctx context.Context, f Filters) ([]models.DataEntry, error) {
	q := f.apply(s.db.WithContext(ctx).Model(&models.DataEntry{})).
		Preload("Photos", func(db *gorm.DB) *gorm.DB { return db.Order("position asc") }).
		Order("created_at desc").Order("id desc")
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var entries []models.DataEntry
	if err := q.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	return entries, nil
}

func (s *Service) FilterOptions(ctx context.Context) (*FilterOptions, error) {
	db := s.db.WithContext(ctx)
	var opts FilterOptions
	for col, dst := range map[string]*[]string{
		"employee_name": &opts.Employees,
		"branch_name":   &opts.Branches,
		"model":         &opts.Models,
	} {
		if err := db.Model(&models.DataEntry{}).Distinct(col).Where(col+" <> ''").Order(col+" asc").Pluck(col, dst).Error; err != nil {
			return nil, fmt.Errorf("failed to load %s options: %w", col, err)
		}
	}
	return &opts, nil
}

// Stats aggregates every entry matching f. Limit is ignored so the totals
// stay correct when the listing is cut.
func (s *Service) Stats(ctx context.Context, f Filters) (Stats, error) {
	db := s.db.WithContext(ctx)

	var row struct {
		Entries   int
		Employees int
		Branches  int
	}
	err := f.apply(db.Model(&models.DataEntry{})).
		Select("COUNT(*) AS entries, COUNT(DISTINCT employee_code) AS employees, COUNT(DISTINCT branch_name) AS branches").
		Scan(&row).Error
	if err != nil {
		return Stats{}, fmt.Errorf("failed to count entries: %w", err)
	}

	var photos int64
	ids := f.apply(db.Model(&models.DataEntry{})).Select("id")
	if err := db.Model(&models.EntryPhoto{}).Where("entry_id IN (?)", ids).Count(&photos).Error; err != nil {
		return Stats{}, fmt.Errorf("failed to count photos: %w", err)
	}

	return Stats{Entries: row.Entries, Photos: int(photos), Employees: row.Employees, Branches: row.Branches}, nil
}

// Summarize counts entries, photos, employees and branches of a result set.
func Summarize(entries []models.DataEntry) Stats {
	photos := lo.SumBy(entries, func(e models.DataEntry) int { return len(e.Photos) })
	return Stats{
		Entries:   len(entries),
		Photos:    photos,
		Employees: len(lo.UniqBy(entries, func(e models.DataEntry) string { return e.EmployeeCode })),
		Branches:  len(lo.UniqBy(entries, func(e models.DataEntry) string { return e.BranchName })),
	}
}

// Delete removes an entry and its photo rows, then the stored photo files.
func (s *Service) Delete(ctx context.Context, actor *models.User, id uint) error {
	var entry models.DataEntry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Preload("Photos").Take(&entry, id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("Entry not found")
		}
		if err != nil {
			return err
		}

		if err := tx.Where("entry_id = ?", id).Delete(&models.EntryPhoto{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.DataEntry{}, id).Error; err != nil {
			return err
		}
		return audit.WriteLog(tx, audit.LogOptions{
			User:        actor,
			EntityType:  "data_entry",
			EntityID:    id,
			Action:      models.AuditActionDelete,
			Description: fmt.Sprintf("Deleted entry of %s at %s (%s)", entry.EmployeeName, entry.BranchName, entry.Model),
		})
	})
	if err != nil {
		return err
	}

	s.photos.DeleteAll(context.WithoutCancel(ctx), PhotoObjects(entry.Photos))
	return nil
}

func PhotoObjects(photos []models.EntryPhoto) []media.Object {
	return lo.Map(photos, func(p models.EntryPhoto, _ int) media.Object {
		return media.Object{URL: p.URL, PublicID: p.PublicID, Backend: p.Backend}
	})
}
