package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/domain"
)

// header maps lower-cased column names to their index.
type header map[string]int

func (h header) get(row []string, col string) string {
	i, ok := h[col]
	if !ok || i >= len(row) {
		return ""
	}
	v := strings.TrimSpace(row[i])
	if strings.EqualFold(v, "nan") {
		return ""
	}
	return v
}

func readCSV(r io.Reader, required ...string) (header, [][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	head, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, domain.MalformedData("empty csv", nil)
		}
		return nil, nil, domain.MalformedData("read csv header", err)
	}

	h := make(header, len(head))
	for i, name := range head {
		h[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	for _, col := range required {
		if _, ok := h[col]; !ok {
			return nil, nil, domain.MalformedData(fmt.Sprintf("missing column %q", col), nil)
		}
	}

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, nil, domain.MalformedData("read csv rows", err)
	}
	return h, rows, nil
}

// ReadParts parses a parts_dataset.csv stream.
func ReadParts(r io.Reader) ([]Part, error) {
	h, rows, err := readCSV(r, "part_id")
	if err != nil {
		return nil, err
	}

	parts := make([]Part, 0, len(rows))
	for _, row := range rows {
		id := strings.ToUpper(h.get(row, "part_id"))
		if id == "" {
			continue
		}
		parts = append(parts, Part{
			PartID:             id,
			Name:               h.get(row, "part_name"),
			ManufacturerNumber: h.get(row, "mpn_id"),
			Price:              h.get(row, "part_price"),
			Brand:              h.get(row, "brand"),
			ApplianceTypes:     h.get(row, "appliance_types"),
			Symptoms:           h.get(row, "symptoms"),
			ProductURL:         h.get(row, "product_url"),
			Availability:       h.get(row, "availability"),
			InstallDifficulty:  h.get(row, "install_difficulty"),
			InstallTime:        h.get(row, "install_time"),
			InstallVideoURL:    h.get(row, "install_video_url"),
			ReplaceParts:       h.get(row, "replace_parts"),
			CompatibleModels:   SplitList(h.get(row, "compatible_models")),
		})
	}
	return parts, nil
}

// ReadRepairs parses a repairs CSV stream.
func ReadRepairs(r io.Reader) ([]RepairGuide, error) {
	h, rows, err := readCSV(r, "symptom")
	if err != nil {
		return nil, err
	}

	repairs := make([]RepairGuide, 0, len(rows))
	for i, row := range rows {
		symptom := h.get(row, "symptom")
		if symptom == "" {
			continue
		}
		repairs = append(repairs, RepairGuide{
			ID:            fmt.Sprintf("repair_%d", i),
			Title:         symptom,
			ApplianceType: h.get(row, "product"),
			Symptom:       symptom,
			Description:   h.get(row, "description"),
			Difficulty:    h.get(row, "difficulty"),
			PartsNeeded:   splitNames(h.get(row, "parts")),
			URL:           h.get(row, "symptom_detail_url"),
		})
	}
	return repairs, nil
}

// ReadArticles parses a blogs CSV stream.
func ReadArticles(r io.Reader) ([]Article, error) {
	h, rows, err := readCSV(r, "title")
	if err != nil {
		return nil, err
	}

	articles := make([]Article, 0, len(rows))
	for i, row := range rows {
		title := h.get(row, "title")
		if title == "" {
			continue
		}
		articles = append(articles, Article{
			ID:          fmt.Sprintf("blog_%d", i),
			Title:       title,
			URL:         h.get(row, "url"),
			Description: h.get(row, "description"),
		})
	}
	return articles, nil
}

// LoadDataset reads the three CSV files. A missing repairs or blogs file is
// tolerated; a missing parts file is not.
func LoadDataset(partsPath, repairsPath, blogsPath string) (*Dataset, error) {
	ds := &Dataset{}

	if err := withFile(partsPath, func(r io.Reader) (err error) {
		ds.Parts, err = ReadParts(r)
		return err
	}); err != nil {
		return nil, fmt.Errorf("load parts: %w", err)
	}

	if err := withFile(repairsPath, func(r io.Reader) (err error) {
		ds.Repairs, err = ReadRepairs(r)
		return err
	}); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load repairs: %w", err)
	}

	if err := withFile(blogsPath, func(r io.Reader) (err error) {
		ds.Articles, err = ReadArticles(r)
		return err
	}); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load articles: %w", err)
	}

	return ds, nil
}

func withFile(path string, fn func(io.Reader) error) error {
	if path == "" {
		return os.ErrNotExist
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return fn(f)
}

// SplitList splits a catalog multi-value cell on commas, semicolons, pipes
// and whitespace.
func SplitList(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == '|' || r == ' ' || r == '\t' || r == '\n'
	})
	if len(fields) == 0 {
		return nil
	}
	return fields
}

func splitNames(s string) []string {
	var out []string
	for _, name := range strings.Split(s, ",") {
		if name = strings.TrimSpace(name); name != "" {
			out = append(out, name)
		}
	}
	return out
}
