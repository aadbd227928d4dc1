package ecp

import (
	"crypto/md5"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

var (
	chartNameRe = regexp.MustCompile(`(?i)^([A-Z]{4}-[0-9A-Z]+)-(.+)\.pdf$`)
	runwayRe    = regexp.MustCompile(`(?i)RWY\s*([0-9LRC-]+)`)
	procedureRe = regexp.MustCompile(`\(([^)]+)\)`)
)

// scannedFile is the pre-seal description of one source PDF, the
// intermediate shape _process_file turns into a sealed FileEntry.
type scannedFile struct {
	Path        string
	Airport     string
	Category    string
	FileName    string
	Title       string
	ChartNumber string
	Runway      string
	Procedure   string
}

// entryID forms the stable identifier for a chart: lowercase airport,
// lowercase category, and the first 8 hex characters of MD5(filename). MD5
// is used here only as a short, non-cryptographic collision-resistant tag
// for the id, never for anything security-relevant.
func entryID(airport, category, fileName string) string {
	sum := md5.Sum([]byte(fileName))
	return fmt.Sprintf("%s_%s_%x", strings.ToLower(airport), strings.ToLower(category), sum[:4])
}

// parseChartFilename extracts chart-number/title/runway/procedure from a
// chart PDF's filename. A filename that doesn't match the chart pattern
// still produces an entry, with title falling back to the bare filename.
func parseChartFilename(airport, category, fileName string) scannedFile {
	sf := scannedFile{
		Airport:  airport,
		Category: category,
		FileName: fileName,
	}

	m := chartNameRe.FindStringSubmatch(fileName)
	if m == nil {
		sf.Title = strings.TrimSuffix(fileName, filepath.Ext(fileName))
		return sf
	}

	sf.ChartNumber = strings.ToUpper(m[1])
	sf.Title = m[2]

	if rm := runwayRe.FindStringSubmatch(sf.Title); rm != nil {
		sf.Runway = rm[1]
	}
	if pm := procedureRe.FindStringSubmatch(sf.Title); pm != nil {
		sf.Procedure = pm[1]
	}

	return sf
}

// normalizeCategory upper-cases a category directory name and replaces
// spaces with underscores, matching the taxonomy in StandardCategories.
func normalizeCategory(dirName string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(dirName), " ", "_"))
}

// scanSourceTree walks sourceDir/<airport>/<category>/*.pdf, where airport
// directory names are exactly 4 characters. Results are sorted by
// (airport, category, file name) for deterministic builder output.
func scanSourceTree(sourceDir string) ([]scannedFile, error) {
	airportDirs, err := os.ReadDir(sourceDir)
	if err != nil {
		return nil, fmt.Errorf("ecp: read source dir: %w", err)
	}

	var files []scannedFile

	for _, airportDir := range airportDirs {
		if !airportDir.IsDir() || len(airportDir.Name()) != 4 {
			continue
		}
		airport := airportDir.Name()
		airportPath := filepath.Join(sourceDir, airport)

		categoryDirs, err := os.ReadDir(airportPath)
		if err != nil {
			return nil, fmt.Errorf("ecp: read airport dir %s: %w", airport, err)
		}

		for _, categoryDir := range categoryDirs {
			if !categoryDir.IsDir() {
				continue
			}
			category := normalizeCategory(categoryDir.Name())
			categoryPath := filepath.Join(airportPath, categoryDir.Name())

			entries, err := os.ReadDir(categoryPath)
			if err != nil {
				return nil, fmt.Errorf("ecp: read category dir %s/%s: %w", airport, category, err)
			}

			for _, entry := range entries {
				if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".pdf") {
					continue
				}
				sf := parseChartFilename(airport, category, entry.Name())
				sf.Path = filepath.Join(categoryPath, entry.Name())
				files = append(files, sf)
			}
		}
	}

	sort.Slice(files, func(i, j int) bool {
		if files[i].Airport != files[j].Airport {
			return files[i].Airport < files[j].Airport
		}
		if files[i].Category != files[j].Category {
			return files[i].Category < files[j].Category
		}
		return files[i].FileName < files[j].FileName
	})

	return files, nil
}

// extractAirports aggregates per-airport file counts from the scanned list,
// sorted by ICAO code.
func extractAirports(files []scannedFile) []AirportSummary {
	counts := make(map[string]int)
	var order []string
	for _, f := range files {
		if _, seen := counts[f.Airport]; !seen {
			order = append(order, f.Airport)
		}
		counts[f.Airport]++
	}
	sort.Strings(order)

	summaries := make([]AirportSummary, 0, len(order))
	for _, code := range order {
		summaries = append(summaries, AirportSummary{Code: code, FileCount: counts[code]})
	}
	return summaries
}

// detectEAIPVersion infers an eAIP version tag from the source directory's
// ancestors (a directory literally prefixed "EAIP" two or three levels up),
// falling back to a synthesized tag using the given timestamp.
func detectEAIPVersion(sourceDir string, now int64) string {
	abs, err := filepath.Abs(sourceDir)
	if err != nil {
		abs = sourceDir
	}
	parent := filepath.Base(filepath.Dir(abs))
	if strings.HasPrefix(parent, "EAIP") {
		return parent
	}
	grandparent := filepath.Base(filepath.Dir(filepath.Dir(abs)))
	if strings.HasPrefix(grandparent, "EAIP") {
		return grandparent
	}
	return fmt.Sprintf("EAIP%s.V1.0", monthTag(now))
}
