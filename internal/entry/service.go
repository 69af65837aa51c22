package entry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"merchcheck-backend/internal/apperr"
	"merchcheck-backend/internal/database"
	"merchcheck-backend/internal/media"
	"merchcheck-backend/internal/models"
	"merchcheck-backend/internal/taxonomy"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	MaxPhotosPerGroup = 10
	uploadConcurrency = 4
	branchSearchLimit = 20
)

// Photo is one uploaded file, opened lazily.
type Photo struct {
	Name string
	Open func() (io.ReadCloser, error)
}

// Group is one model block of a submission.
type Group struct {
	Index       int
	Branch      string
	ShopCode    string
	Category    string
	Model       string
	DisplayType string
	Materials   []string
	Photos      []Photo
}

type Result struct {
	Entries  []models.DataEntry
	Warnings []string
}

// Storage is the part of the media service entries need.
type Storage interface {
	Upload(ctx context.Context, r io.Reader, name, folder string) (media.Object, error)
	DeleteAll(ctx context.Context, objs []media.Object)
}

type Service struct {
	db      *gorm.DB
	storage Storage
	logger  *log.Logger
}

func NewService(db *gorm.DB, storage Storage) *Service {
	return &Service{db: db, storage: storage, logger: log.WithPrefix("entry")}
}

// validated is a group whose names resolved against the taxonomy.
type validated struct {
	group    Group
	res      *taxonomy.Resolution
	selected []string
	missing  []string
	photos   []models.EntryPhoto
	failures int
}

// Submit stores one entry per group. Every group is validated before any
// photo is uploaded or any row written; an invalid group rejects the whole
// submission. Photos that fail to store are reported as warnings.
func (s *Service) Submit(ctx context.Context, user *models.User, groups []Group) (*Result, error) {
	if len(groups) == 0 {
		return nil, apperr.Validation("At least one model entry is required")
	}

	items := make([]*validated, 0, len(groups))
	for _, g := range groups {
		v, err := s.validate(ctx, g)
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}

	warnings, uploaded := s.uploadPhotos(ctx, items)

	entries, err := s.persist(ctx, user, items)
	if err != nil {
		s.storage.DeleteAll(context.WithoutCancel(ctx), uploaded)
		return nil, err
	}

	s.logger.Info("Stored submission", "user_id", user.ID, "entries", len(entries), "photos", len(uploaded), "warnings", len(warnings))
	return &Result{Entries: entries, Warnings: warnings}, nil
}

func (s *Service) validate(ctx context.Context, g Group) (*validated, error) {
	label := fmt.Sprintf("Entry %d", g.Index+1)

	g.Branch = strings.TrimSpace(g.Branch)
	g.ShopCode = strings.TrimSpace(g.ShopCode)
	g.Category = strings.TrimSpace(g.Category)
	g.Model = strings.TrimSpace(g.Model)
	g.DisplayType = strings.TrimSpace(g.DisplayType)

	switch {
	case g.Branch == "":
		return nil, apperr.Validation("%s: branch is required", label)
	case g.Category == "":
		return nil, apperr.Validation("%s: category is required", label)
	case g.Model == "":
		return nil, apperr.Validation("%s: model is required", label)
	case g.DisplayType == "":
		return nil, apperr.Validation("%s: display type is required", label)
	case len(g.Photos) > MaxPhotosPerGroup:
		return nil, apperr.Validation("%s: at most %d images are allowed", label, MaxPhotosPerGroup)
	}

	res, err := taxonomy.Resolve(s.db.WithContext(ctx), g.Category, g.Model, g.DisplayType)
	if err != nil {
		return nil, prefix(label, err)
	}
	selected, missing, err := res.Split(g.Materials)
	if err != nil {
		return nil, prefix(label, err)
	}
	return &validated{group: g, res: res, selected: selected, missing: missing}, nil
}

func prefix(label string, err error) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return &apperr.Error{Kind: ae.Kind, Message: label + ": " + ae.Message, Err: ae.Err}
	}
	return err
}

// uploadPhotos stores every photo of every group with bounded concurrency.
func (s *Service) uploadPhotos(ctx context.Context, items []*validated) ([]string, []media.Object) {
	type slot struct {
		item *validated
		pos  int
		obj  media.Object
		err  error
	}

	var slots []*slot
	for _, it := range items {
		for i := range it.group.Photos {
			slots = append(slots, &slot{item: it, pos: i})
		}
	}

	var g errgroup.Group
	g.SetLimit(uploadConcurrency)
	for _, sl := range slots {
		g.Go(func() error {
			photo := sl.item.group.Photos[sl.pos]
			sl.obj, sl.err = s.uploadOne(ctx, photo)
			return nil
		})
	}
	_ = g.Wait()

	var (
		warnings []string
		uploaded []media.Object
	)
	for _, sl := range slots {
		if sl.err != nil {
			name := sl.item.group.Photos[sl.pos].Name
			s.logger.Warn("Photo upload failed", "entry", sl.item.group.Index+1, "file", name, "err", sl.err)
			warnings = append(warnings, fmt.Sprintf("Entry %d: image %q could not be stored", sl.item.group.Index+1, name))
			sl.item.failures++
		} else {
			uploaded = append(uploaded, sl.obj)
			sl.item.photos = append(sl.item.photos, models.EntryPhoto{
				Position: len(sl.item.photos),
				URL:      sl.obj.URL,
				PublicID: sl.obj.PublicID,
				Backend:  sl.obj.Backend,
			})
		}
	}
	return warnings, uploaded
}

func (s *Service) uploadOne(ctx context.Context, p Photo) (media.Object, error) {
	rc, err := p.Open()
	if err != nil {
		return media.Object{}, err
	}
	defer rc.Close()
	return s.storage.Upload(ctx, rc, p.Name, media.FolderPhotos)
}

func (s *Service) persist(ctx context.Context, user *models.User, items []*validated) ([]models.DataEntry, error) {
	entries := make([]models.DataEntry, 0, len(items))

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, it := range items {
			g := it.group
			e := models.DataEntry{
				UserID:            &user.ID,
				EmployeeName:      user.DisplayName(),
				EmployeeCode:      user.EmployeeCode,
				BranchName:        g.Branch,
				ShopCode:          g.ShopCode,
				Category:          it.res.Category.Name,
				Model:             it.res.Model.Name,
				DisplayType:       it.res.DisplayType.Name,
				SelectedMaterials: it.selected,
				MissingMaterials:  it.missing,
				PhotoFailures:     it.failures,
				Photos:            it.photos,
			}
			if err := tx.Omit("User").Create(&e).Error; err != nil {
				return fmt.Errorf("failed to save entry: %w", err)
			}

			if g.ShopCode != "" {
				branch := models.Branch{Name: g.Branch, Code: g.ShopCode, CreatedByID: &user.ID}
				if err := tx.Clauses(clause.OnConflict{
					Columns:   []clause.Column{{Name: "code"}},
					DoNothing: true,
				}).Create(&branch).Error; err != nil {
					return fmt.Errorf("failed to save branch: %w", err)
				}
			}

			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "user_id"}, {Name: "branch_name"}},
				DoNothing: true,
			}).Create(&models.UserBranch{UserID: user.ID, BranchName: g.Branch}).Error; err != nil {
				return fmt.Errorf("failed to save user branch: %w", err)
			}

			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// BranchView is the JSON shape of a branch suggestion.
type BranchView struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

// SearchBranches returns branches matching search by name or code. Field users
// only see branches they are assigned to; admins see all.
func (s *Service) SearchBranches(ctx context.Context, user *models.User, search string) ([]BranchView, error) {
	q := s.db.WithContext(ctx).Model(&models.Branch{})
	if !user.IsAdmin {
		q = q.Where("name IN (?)", s.db.Model(&models.UserBranch{}).Select("branch_name").Where("user_id = ?", user.ID))
	}
	if search = strings.TrimSpace(search); search != "" {
		p := database.ContainsPattern(search)
		q = q.Where(`(LOWER(name) LIKE LOWER(?) ESCAPE '\' OR LOWER(code) LIKE LOWER(?) ESCAPE '\')`, p, p)
	}

	var rows []models.Branch
	if err := q.Order("name asc").Limit(branchSearchLimit).Find(&rows).Error; err != nil {
		return nil, err
	}
	res := make([]BranchView, 0, len(rows))
	for _, b := range rows {
		res = append(res, BranchView{Name: b.Name, Code: b.Code})
	}
	return res, nil
}

func (s *Service) BranchByCode(ctx context.Context, code string) (*BranchView, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, apperr.Validation("Shop code is required")
	}
	var b models.Branch
	err := s.db.WithContext(ctx).Where("code = ?", code).Take(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("Branch not found")
	}
	if err != nil {
		return nil, err
	}
	return &BranchView{Name: b.Name, Code: b.Code}, nil
}
