package main

import "time"

// Wire types mirrored from the server API. Kept local so the CLI does not
// depend on server internals.

type repository struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Type        int    `json:"type"`
	Destination string `json:"destination"`
	Enabled     bool   `json:"enabled"`
}

type host struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	FacilityID int64  `json:"facilityId"`
	ServerID   int64  `json:"serverId"`
	PlatformID int64  `json:"platformId"`
}

type facility struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type user struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Admin  bool   `json:"admin"`
	Notify bool   `json:"notify"`
}

type buildRef struct {
	ID   int64     `json:"id"`
	Date time.Time `json:"date"`
}

type buildRecord struct {
	ID           int64     `json:"id"`
	RepositoryID int64     `json:"repositoryId"`
	PlatformID   int64     `json:"platformId"`
	Tag          string    `json:"tag"`
	Date         time.Time `json:"date"`
	Status       string    `json:"status"`
	Output       string    `json:"output,omitempty"`
}

type artifact struct {
	ID            int64   `json:"id"`
	Filename      string  `json:"filename"`
	Hash          *string `json:"hash,omitempty"`
	SymlinkTarget *string `json:"symlinkTarget,omitempty"`
}

type versionRecord struct {
	EntityID    string     `json:"entityId"`
	HostID      int64      `json:"hostId"`
	UserID      int64      `json:"userId"`
	BuildID     int64      `json:"buildId"`
	BuildDate   time.Time  `json:"buildDate"`
	Kind        string     `json:"kind"`
	InstalledAt time.Time  `json:"installedAt"`
	ValidFrom   time.Time  `json:"validFrom"`
	ValidTo     *time.Time `json:"validTo,omitempty"`
}

type versionEntry struct {
	versionRecord
	// Duration travels as nanoseconds.
	Duration time.Duration `json:"duration"`
}

type facilityCount struct {
	Facility string `json:"facility"`
	Active   int64  `json:"active"`
}
