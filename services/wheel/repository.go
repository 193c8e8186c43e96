package wheel

import (
	"context"
	"time"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"loyaltyplane/pkg/db/option"
	"loyaltyplane/pkg/repository"
)

// WheelWithItems is a wheel plus its configured outcomes, items in position
// order.
type WheelWithItems struct {
	Wheel *Wheel
	Items []WheelItem
}

// Store is the persistence surface the spin orchestrator consumes.
type Store interface {
	WithTrx(tx *gorm.DB) Store
	FindWithItems(ctx context.Context, wheelID string) (*WheelWithItems, error)
	// CountMemberSpinsToday counts the member's spins on this wheel in the
	// server wall-clock calendar day containing now.
	CountMemberSpinsToday(ctx context.Context, memberID, wheelID string, now time.Time) (int64, error)
	LastMemberSpin(ctx context.Context, memberID, wheelID string) (*Spin, error)
	CreateSpin(ctx context.Context, spin *Spin) error
}

type gormStore struct {
	db     *gorm.DB
	wheels repository.Repository[Wheel]
	items  repository.Repository[WheelItem]
	spins  repository.Repository[Spin]
}

type StoreParams struct {
	fx.In
	DB *gorm.DB
}

func NewStore(p StoreParams) Store {
	return newGormStore(p.DB)
}

func newGormStore(db *gorm.DB) *gormStore {
	return &gormStore{
		db:     db,
		wheels: repository.ProvideStore[Wheel](db),
		items:  repository.ProvideStore[WheelItem](db),
		spins:  repository.ProvideStore[Spin](db),
	}
}

func (s *gormStore) WithTrx(tx *gorm.DB) Store {
	if tx == nil {
		return s
	}
	return newGormStore(tx)
}

func (s *gormStore) FindWithItems(ctx context.Context, wheelID string) (*WheelWithItems, error) {
	w, err := s.wheels.FindOne(ctx, &Wheel{ID: wheelID})
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, nil
	}

	items, err := s.items.Find(ctx, &WheelItem{WheelID: wheelID}, option.WithSortBy(option.QuerySortBy{
		SortBy:  "position",
		OrderBy: "asc",
		Allow:   map[string]bool{"position": true},
	}))
	if err != nil {
		return nil, err
	}

	out := &WheelWithItems{Wheel: w, Items: make([]WheelItem, 0, len(items))}
	for _, item := range items {
		out.Items = append(out.Items, *item)
	}
	return out, nil
}

func (s *gormStore) CountMemberSpinsToday(ctx context.Context, memberID, wheelID string, now time.Time) (int64, error) {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	dayEnd := dayStart.Add(24 * time.Hour)

	var count int64
	err := s.db.WithContext(ctx).
		Model(&Spin{}).
		Where("member_id = ? AND wheel_id = ?", memberID, wheelID).
		Where("created_at >= ? AND created_at < ?", dayStart, dayEnd).
		Count(&count).Error
	return count, err
}

func (s *gormStore) LastMemberSpin(ctx context.Context, memberID, wheelID string) (*Spin, error) {
	return s.spins.FindOne(ctx, &Spin{MemberID: memberID, WheelID: wheelID}, option.WithSortBy(option.QuerySortBy{
		SortBy:  "created_at",
		OrderBy: "desc",
		Allow:   map[string]bool{"created_at": true},
	}))
}

func (s *gormStore) CreateSpin(ctx context.Context, spin *Spin) error {
	return s.spins.Create(ctx, spin)
}
