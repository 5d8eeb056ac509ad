// Package cache manages the local archive cache directory: scanning it for
// previously downloaded feeds and atomically replacing its contents with a
// freshly downloaded package.
//
// The directory is the pipeline's only durable state. Between runs it always
// holds one complete package; Replace either swaps in a whole new package or
// leaves the directory untouched. Single-writer access is assumed.
package cache

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MKuranowski/GZMGTFS/model"
)

const archiveSuffix = ".zip"

// Downloader streams the content of a URL into a writer. The HTTP
// implementation is HTTPDownloader; tests substitute fakes to exercise the
// atomic-swap contract without the network.
type Downloader interface {
	Download(url string, dst io.Writer) error
}

// HTTPDownloader fetches resources over plain GET.
type HTTPDownloader struct {
	Client *http.Client
}

// Download streams the response body into dst. Any transport error or
// non-2xx status fails the download.
func (d *HTTPDownloader) Download(url string, dst io.Writer) error {
	log.Printf("cache: downloading %s", url)

	resp, err := d.Client.Get(url)
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to download %s: status %d", url, resp.StatusCode)
	}

	if _, err := io.Copy(dst, resp.Body); err != nil {
		return fmt.Errorf("failed to save %s: %w", url, err)
	}
	return nil
}

// Dir is the live cache directory.
type Dir struct {
	Path string
}

// Scan lists every archive in the cache (non-recursively) and returns the
// maximum package date found together with per-file modification times in
// UTC. An empty or missing directory is a valid "nothing cached yet" state
// and yields model.DateMin with no files. An archive whose name carries no
// package date means the cache has been tampered with and is an error.
func (d Dir) Scan() (model.Date, []model.LocalFile, error) {
	log.Printf("cache: scanning %s", d.Path)

	entries, err := os.ReadDir(d.Path)
	if os.IsNotExist(err) {
		return model.DateMin, nil, nil
	}
	if err != nil {
		return model.Date{}, nil, fmt.Errorf("failed to scan cache directory: %w", err)
	}

	pkgDate := model.DateMin
	var files []model.LocalFile
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), archiveSuffix) {
			continue
		}

		filePkgDate, err := model.ExtractPackageDate(entry.Name())
		if err != nil {
			return model.Date{}, nil, err
		}
		pkgDate = model.MaxDate(pkgDate, filePkgDate)

		info, err := entry.Info()
		if err != nil {
			return model.Date{}, nil, fmt.Errorf("failed to stat %s: %w", entry.Name(), err)
		}

		files = append(files, model.LocalFile{
			Path:        filepath.Join(d.Path, entry.Name()),
			PackageDate: filePkgDate,
			ModifiedAt:  info.ModTime().UTC(),
		})
	}
	return pkgDate, files, nil
}

// MaxModTime returns the latest modification time among files, or the zero
// time when there are none.
func MaxModTime(files []model.LocalFile) time.Time {
	var max time.Time
	for _, f := range files {
		if f.ModifiedAt.After(max) {
			max = f.ModifiedAt
		}
	}
	return max
}

// Replace downloads every resource into a staging directory and, only once
// all of them succeed, swaps the staging directory in as the live cache.
// On any failure the live directory is left exactly as it was. The staging
// directory is removed in every case. Returns the now-live archive paths.
func (d Dir) Replace(resources []model.RemoteResource, dl Downloader) ([]string, error) {
	// All filenames are validated before anything touches the disk.
	for _, res := range resources {
		if err := validateFilename(res.Name); err != nil {
			return nil, err
		}
	}

	// A leftover staging directory from an interrupted run holds archives
	// from a different package and must not survive into the swap.
	staging := d.Path + ".new"
	if err := os.RemoveAll(staging); err != nil {
		return nil, fmt.Errorf("failed to clear stale staging directory: %w", err)
	}
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	var paths []string
	for _, res := range resources {
		if err := downloadTo(dl, res.URL, filepath.Join(staging, res.Name)); err != nil {
			return nil, err
		}
		paths = append(paths, filepath.Join(d.Path, res.Name))
	}

	// Remove+rename is not one atomic step: a crash between the two leaves
	// no live directory, which Scan treats as "nothing cached yet".
	if err := os.RemoveAll(d.Path); err != nil {
		return nil, fmt.Errorf("failed to remove old cache directory: %w", err)
	}
	if err := os.Rename(staging, d.Path); err != nil {
		return nil, fmt.Errorf("failed to swap in new cache directory: %w", err)
	}
	return paths, nil
}

// validateFilename rejects names that could escape the cache directory or
// that do not look like feed archives. The catalog is external input.
func validateFilename(name string) error {
	if strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("unsafe feed filename: %q", name)
	}
	if !strings.HasSuffix(name, archiveSuffix) {
		return fmt.Errorf("feed filename does not end in %s: %q", archiveSuffix, name)
	}
	return nil
}

func downloadTo(dl Downloader, url, dst string) error {
	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if err := dl.Download(url, f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to finish writing %s: %w", dst, err)
	}
	return nil
}
