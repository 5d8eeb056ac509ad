package feed

import (
	"archive/zip"
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"regexp"

	"github.com/MKuranowski/GZMGTFS/model"
	"github.com/jszwec/csvutil"
)

// The numeric run id sits between an underscore and the trailing _NNNN.zip
// segment, e.g. GZM_17_2024.zip -> "17".
var versionPattern = regexp.MustCompile(`(?i)_([0-9]+)_[0-9]{4}\.zip`)

// Version derives the feed version tag from an archive filename.
func Version(filename string) (string, error) {
	m := versionPattern.FindStringSubmatch(filename)
	if m == nil {
		return "", fmt.Errorf("failed to extract feed version from %q", filename)
	}
	return m[1], nil
}

type feedInfoRow struct {
	StartDate string `csv:"feed_start_date"`
}

// StartDate opens a GTFS archive and returns the minimum feed_start_date
// across all feed_info.txt rows. An archive without that table, or with an
// empty one, yields model.DateMax so the feed sorts last.
func StartDate(path string) (model.Date, error) {
	arch, err := zip.OpenReader(path)
	if err != nil {
		return model.Date{}, fmt.Errorf("failed to open archive %s: %w", path, err)
	}
	defer arch.Close()

	f, err := arch.Open("feed_info.txt")
	if err != nil {
		return model.DateMax, nil
	}
	defer f.Close()

	rows, err := decodeFeedInfo(f)
	if err != nil {
		return model.Date{}, fmt.Errorf("failed to read feed_info.txt in %s: %w", path, err)
	}

	start := model.DateMax
	for _, row := range rows {
		d, err := model.ParseGTFSDate(row.StartDate)
		if err != nil {
			return model.Date{}, fmt.Errorf("bad feed_start_date in %s: %w", path, err)
		}
		start = model.MinDate(start, d)
	}
	return start, nil
}

func decodeFeedInfo(r io.Reader) ([]feedInfoRow, error) {
	dec, err := csvutil.NewDecoder(csv.NewReader(skipBOM(r)))
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, err
	}

	var rows []feedInfoRow
	for {
		var row feedInfoRow
		if err := dec.Decode(&row); err == io.EOF {
			break
		} else if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// skipBOM drops a UTF-8 byte order mark; GZM archives carry one.
func skipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if b, err := br.Peek(3); err == nil && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		br.Discard(3)
	}
	return br
}
