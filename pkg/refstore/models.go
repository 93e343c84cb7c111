// Package refstore holds the reference catalog: the plain lookup tables the
// storage engine resolves foreign keys against (architectures, distributions,
// platforms, providers, repositories, builders, servers, facilities, hosts,
// users). These tables have no behavior beyond referential integrity.
package refstore

// RepositoryType classifies what a repository builds.
type RepositoryType int

const (
	RepositoryCPlusPlus RepositoryType = iota
	RepositoryPython
	RepositoryConfiguration
	RepositoryShellScript
	RepositoryLibrary
)

// Architecture is a CPU architecture, e.g. x86_64.
type Architecture struct {
	ID   int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Name string `gorm:"size:255;not null;uniqueIndex" json:"name"`
}

// Distribution is an OS distribution at a specific version.
type Distribution struct {
	ID      int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Name    string `gorm:"size:255;not null;uniqueIndex:idx_distributions_name_version" json:"name"`
	Version string `gorm:"size:255;not null;uniqueIndex:idx_distributions_name_version" json:"version"`
}

// Platform pairs a distribution with an architecture.
type Platform struct {
	ID             int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	DistributionID int64 `gorm:"not null;index" json:"distributionId"`
	ArchitectureID int64 `gorm:"not null;index" json:"architectureId"`
}

// Provider is a source-hosting endpoint repositories come from.
type Provider struct {
	ID  int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	URL string `gorm:"size:255;not null;uniqueIndex" json:"url"`
}

// Repository is a tracked source repository built for one platform.
type Repository struct {
	ID          int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	ProviderID  int64          `gorm:"not null;index" json:"providerId"`
	PlatformID  int64          `gorm:"not null;index" json:"platformId"`
	Type        RepositoryType `gorm:"not null" json:"type"`
	Name        string         `gorm:"size:255;not null;uniqueIndex" json:"name"`
	Destination string         `gorm:"size:255;not null" json:"destination"`
	Enabled     bool           `gorm:"not null;default:true" json:"enabled"`
}

// Builder is a machine that compiles for one platform.
type Builder struct {
	ID         int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	PlatformID int64  `gorm:"not null;index" json:"platformId"`
	Name       string `gorm:"size:255;not null" json:"name"`
}

// Server is a deployment server fronting a set of hosts.
type Server struct {
	ID         int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	PlatformID int64  `gorm:"not null;index" json:"platformId"`
	Name       string `gorm:"size:255;not null" json:"name"`
	Prefix     string `gorm:"size:255;not null" json:"prefix"`
}

// Facility is a physical location hosts belong to.
type Facility struct {
	ID   int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Name string `gorm:"size:255;not null;uniqueIndex" json:"name"`
}

// Host is a machine software gets installed on.
type Host struct {
	ID         int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	FacilityID int64  `gorm:"not null;index" json:"facilityId"`
	ServerID   int64  `gorm:"not null;index" json:"serverId"`
	PlatformID int64  `gorm:"not null;index" json:"platformId"`
	Name       string `gorm:"size:255;not null;uniqueIndex" json:"name"`
}

// User is an operator allowed to record installations.
type User struct {
	ID     int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Name   string `gorm:"size:255;not null;uniqueIndex" json:"name"`
	Admin  bool   `gorm:"not null;default:false" json:"admin"`
	Notify bool   `gorm:"not null;default:false" json:"notify"`
}

func models() []any {
	return []any{
		&Architecture{}, &Distribution{}, &Platform{}, &Provider{},
		&Repository{}, &Builder{}, &Server{}, &Facility{}, &Host{}, &User{},
	}
}
