// Package feed decides which GTFS archives a pipeline run needs and derives
// per-feed metadata for the downstream merge.
package feed

import (
	"errors"
	"log"
	"path/filepath"
	"sort"
	"time"

	"github.com/MKuranowski/GZMGTFS/cache"
	"github.com/MKuranowski/GZMGTFS/model"
)

// ErrNotModified signals that the remote publication matches the local
// cache and the run can be skipped without doing any work. It is a normal
// outcome, not a failure.
var ErrNotModified = errors.New("remote data not modified")

// Catalog lists remote archive resources grouped by package date.
// *catalog.Client implements it.
type Catalog interface {
	Resources() (map[model.Date][]model.RemoteResource, error)
}

// Provider compares remote and local state, fetches new packages when
// needed, and hands out feed descriptors ordered for the merge.
type Provider struct {
	Catalog    Catalog
	Cache      cache.Dir
	Downloader cache.Downloader

	// Force re-fetches even when the cache looks current. FromCache skips
	// the catalog entirely and uses whatever is cached.
	Force     bool
	FromCache bool

	pkgDate model.Date
}

// PackageDate returns the package date of the release resolved by the last
// Needed call.
func (p *Provider) PackageDate() model.Date { return p.pkgDate }

// Needed returns one descriptor per feed required this run, ordered
// ascending by start date (ties keep their discovery order). Returns
// ErrNotModified when the cache is already up to date.
func (p *Provider) Needed() ([]model.FeedDescriptor, error) {
	paths, err := p.neededPaths()
	if err != nil {
		return nil, err
	}

	feeds := make([]model.FeedDescriptor, 0, len(paths))
	for _, path := range paths {
		desc, err := describe(path)
		if err != nil {
			return nil, err
		}
		feeds = append(feeds, desc)
	}

	sort.SliceStable(feeds, func(i, j int) bool {
		return feeds[i].StartDate.Before(feeds[j].StartDate)
	})
	return feeds, nil
}

func (p *Provider) neededPaths() ([]string, error) {
	if p.FromCache {
		pkgDate, files, err := p.Cache.Scan()
		if err != nil {
			return nil, err
		}
		if len(files) == 0 {
			return nil, errors.New("cached run requested, but no input feeds are cached")
		}
		p.pkgDate = pkgDate

		paths := make([]string, len(files))
		for i, f := range files {
			paths[i] = f.Path
		}
		return paths, nil
	}
	return p.fetch()
}

// fetch applies the staleness rule against the newest remote package and
// atomically replaces the cache when a re-sync is due.
func (p *Provider) fetch() ([]string, error) {
	byDate, err := p.Catalog.Resources()
	if err != nil {
		return nil, err
	}
	if len(byDate) == 0 {
		return nil, errors.New("catalog lists no archive resources")
	}

	remotePkg, remoteFiles := newestPackage(byDate)
	var remoteMod time.Time
	for _, r := range remoteFiles {
		if r.LastModified.After(remoteMod) {
			remoteMod = r.LastModified
		}
	}

	localPkg, localFiles, err := p.Cache.Scan()
	if err != nil {
		return nil, err
	}
	localMod := cache.MaxModTime(localFiles)

	p.pkgDate = remotePkg
	if !p.Force && localPkg == remotePkg && !remoteMod.After(localMod) {
		return nil, ErrNotModified
	}

	log.Printf("feed: syncing package %s (%d archives)", remotePkg, len(remoteFiles))
	return p.Cache.Replace(remoteFiles, p.Downloader)
}

// newestPackage picks the group with the maximum package date; older groups
// are never considered, publications only move forward.
func newestPackage(byDate map[model.Date][]model.RemoteResource) (model.Date, []model.RemoteResource) {
	newest := model.DateMin
	for d := range byDate {
		newest = model.MaxDate(newest, d)
	}
	return newest, byDate[newest]
}

func describe(path string) (model.FeedDescriptor, error) {
	name := filepath.Base(path)

	version, err := Version(name)
	if err != nil {
		return model.FeedDescriptor{}, err
	}
	startDate, err := StartDate(path)
	if err != nil {
		return model.FeedDescriptor{}, err
	}

	return model.FeedDescriptor{
		Path:      path,
		Name:      name,
		Version:   version,
		StartDate: startDate,
	}, nil
}
