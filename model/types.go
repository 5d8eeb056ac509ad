// Package model defines the core data structures for the GZM GTFS pipeline.
package model

import (
	"errors"
	"time"
)

// RemoteResource is one downloadable archive advertised by the catalog.
// It is reconstructed from the catalog API on every run and never persisted.
type RemoteResource struct {
	URL          string
	Name         string
	LastModified time.Time
	PackageDate  Date
}

// Validate checks that the resource carries everything a fetch needs.
func (r *RemoteResource) Validate() error {
	if r.URL == "" {
		return errors.New("resource URL is required")
	}
	if r.Name == "" {
		return errors.New("resource name is required")
	}
	return nil
}

// LocalFile is one archive found in the cache directory, with the package
// date recovered from its filename.
type LocalFile struct {
	Path        string
	PackageDate Date
	ModifiedAt  time.Time
}

// FeedDescriptor identifies one feed handed to the merge pipeline: the
// archive on disk, a version tag derived from its filename, and the earliest
// date its schedules become effective. Descriptors are immutable once
// created; the merge consumes them ordered ascending by StartDate.
type FeedDescriptor struct {
	Path      string `json:"path"`
	Name      string `json:"name"`
	Version   string `json:"version"`
	StartDate Date   `json:"start_date"`
}
