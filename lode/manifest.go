package lode

import (
	"fmt"
	"path"
	"regexp"
	"sort"
	"strconv"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/justapithecus/gridcap/types"
)

var manifestName = regexp.MustCompile(`^page-(\d+)\.msgpack$`)

// EncodeManifest serializes a page report with msgpack.
func EncodeManifest(report *types.PageReport) ([]byte, error) {
	if report.ManifestVersion == "" {
		report.ManifestVersion = types.ManifestVersion
	}
	data, err := msgpack.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("encode manifest for page %d: %w", report.Page, err)
	}
	return data, nil
}

// DecodeManifest parses a msgpack page report.
func DecodeManifest(data []byte) (*types.PageReport, error) {
	var report types.PageReport
	if err := msgpack.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if report.ManifestVersion != types.ManifestVersion {
		return nil, fmt.Errorf("unsupported manifest version %q (want %q)", report.ManifestVersion, types.ManifestVersion)
	}
	return &report, nil
}

// manifestPages extracts sorted page numbers from manifest keys.
// Keys that do not look like manifests are ignored.
func manifestPages(keys []string) []int {
	pages := make([]int, 0, len(keys))
	for _, k := range keys {
		m := manifestName.FindStringSubmatch(path.Base(k))
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		pages = append(pages, n)
	}
	sort.Ints(pages)
	return pages
}
