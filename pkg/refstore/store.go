package refstore

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/elettra-ics/inau/pkg/storage"
)

// Store provides lookup and maintenance of the reference catalog. All
// resolution methods return storage.ErrNotFound when the key does not
// resolve; the engine above treats reference rows as opaque.
type Store struct {
	db *gorm.DB
}

// NewStore creates a Store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate creates or updates every reference table.
func (s *Store) AutoMigrate() error {
	for _, m := range models() {
		if err := s.db.AutoMigrate(m); err != nil {
			return fmt.Errorf("auto-migrate reference tables: %w", err)
		}
	}
	return nil
}

func getByID[T any](ctx context.Context, db *gorm.DB, what string, id int64) (*T, error) {
	var row T
	if err := db.WithContext(ctx).First(&row, id).Error; err != nil {
		return nil, storage.ClassifyRead(fmt.Sprintf("%s %d", what, id), err)
	}
	return &row, nil
}

func getByName[T any](ctx context.Context, db *gorm.DB, what, name string) (*T, error) {
	var row T
	if err := db.WithContext(ctx).Where("name = ?", name).First(&row).Error; err != nil {
		return nil, storage.ClassifyRead(fmt.Sprintf("%s %q", what, name), err)
	}
	return &row, nil
}

// Host resolution.

func (s *Store) HostByID(ctx context.Context, id int64) (*Host, error) {
	return getByID[Host](ctx, s.db, "host", id)
}

func (s *Store) HostByName(ctx context.Context, name string) (*Host, error) {
	return getByName[Host](ctx, s.db, "host", name)
}

// HostsByFacility returns every host of a facility, by facility name.
func (s *Store) HostsByFacility(ctx context.Context, facility string) ([]Host, error) {
	fac, err := getByName[Facility](ctx, s.db, "facility", facility)
	if err != nil {
		return nil, err
	}
	var hosts []Host
	if err := s.db.WithContext(ctx).Where("facility_id = ?", fac.ID).Order("name ASC").Find(&hosts).Error; err != nil {
		return nil, storage.Storagef("hosts of facility %q: %v", facility, err)
	}
	return hosts, nil
}

// User resolution.

func (s *Store) UserByID(ctx context.Context, id int64) (*User, error) {
	return getByID[User](ctx, s.db, "user", id)
}

func (s *Store) UserByName(ctx context.Context, name string) (*User, error) {
	return getByName[User](ctx, s.db, "user", name)
}

// Admins returns every user with the admin flag set.
func (s *Store) Admins(ctx context.Context) ([]User, error) {
	var users []User
	if err := s.db.WithContext(ctx).Where("admin = ?", true).Find(&users).Error; err != nil {
		return nil, storage.Storagef("list admins: %v", err)
	}
	return users, nil
}

// Repository resolution.

func (s *Store) RepositoryByID(ctx context.Context, id int64) (*Repository, error) {
	return getByID[Repository](ctx, s.db, "repository", id)
}

func (s *Store) RepositoryByName(ctx context.Context, name string) (*Repository, error) {
	return getByName[Repository](ctx, s.db, "repository", name)
}

// Remaining lookups used by the admin API and reporting joins.

func (s *Store) FacilityByID(ctx context.Context, id int64) (*Facility, error) {
	return getByID[Facility](ctx, s.db, "facility", id)
}

func (s *Store) PlatformByID(ctx context.Context, id int64) (*Platform, error) {
	return getByID[Platform](ctx, s.db, "platform", id)
}

func (s *Store) ServerByID(ctx context.Context, id int64) (*Server, error) {
	return getByID[Server](ctx, s.db, "server", id)
}

func (s *Store) ProviderByID(ctx context.Context, id int64) (*Provider, error) {
	return getByID[Provider](ctx, s.db, "provider", id)
}

// List helpers for the read-only catalog endpoints.

func list[T any](ctx context.Context, db *gorm.DB, what, order string) ([]T, error) {
	var rows []T
	if err := db.WithContext(ctx).Order(order).Find(&rows).Error; err != nil {
		return nil, storage.Storagef("list %s: %v", what, err)
	}
	return rows, nil
}

func (s *Store) Architectures(ctx context.Context) ([]Architecture, error) {
	return list[Architecture](ctx, s.db, "architectures", "name ASC")
}

func (s *Store) Distributions(ctx context.Context) ([]Distribution, error) {
	return list[Distribution](ctx, s.db, "distributions", "name ASC, version ASC")
}

func (s *Store) Platforms(ctx context.Context) ([]Platform, error) {
	return list[Platform](ctx, s.db, "platforms", "id ASC")
}

func (s *Store) Providers(ctx context.Context) ([]Provider, error) {
	return list[Provider](ctx, s.db, "providers", "url ASC")
}

func (s *Store) Repositories(ctx context.Context) ([]Repository, error) {
	return list[Repository](ctx, s.db, "repositories", "name ASC")
}

func (s *Store) Servers(ctx context.Context) ([]Server, error) {
	return list[Server](ctx, s.db, "servers", "name ASC")
}

func (s *Store) Facilities(ctx context.Context) ([]Facility, error) {
	return list[Facility](ctx, s.db, "facilities", "name ASC")
}

func (s *Store) Hosts(ctx context.Context) ([]Host, error) {
	return list[Host](ctx, s.db, "hosts", "name ASC")
}

func (s *Store) Users(ctx context.Context) ([]User, error) {
	return list[User](ctx, s.db, "users", "name ASC")
}

// Create inserts a reference row of any catalog type. Uniqueness violations
// surface as integrity errors.
func (s *Store) Create(ctx context.Context, row any) error {
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return storage.ClassifyWrite(fmt.Sprintf("create %T", row), err)
	}
	return nil
}
