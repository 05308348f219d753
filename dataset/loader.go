package dataset

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/techthiyanes/langtest/sample"
)

// Load reads a reference dataset from a file, detecting the format by
// extension: .conll (NER), .csv (classification), .jsonl (QA,
// summarization, generation).
func Load(path string, task sample.Task) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".conll", ".txt":
		return ReadCoNLL(f)
	case ".csv":
		return ReadCSV(f)
	case ".jsonl":
		return ReadJSONL(f, task)
	default:
		return nil, fmt.Errorf("unsupported dataset format: %s (supported: .conll, .csv, .jsonl)", ext)
	}
}

// ReadCoNLL parses CoNLL-format NER data: one token per line with its
// BIO tag in the last column, sentences separated by blank lines.
// Lines starting with "-DOCSTART-" are document markers and skipped.
func ReadCoNLL(r io.Reader) ([]Record, error) {
	var records []Record
	var tokens, labels []string

	flush := func() error {
		if len(tokens) == 0 {
			return nil
		}
		entities, err := entitiesFromBIO(tokens, labels)
		if err != nil {
			return err
		}
		records = append(records, Record{
			Text:     strings.Join(tokens, " "),
			Tokens:   tokens,
			Labels:   labels,
			Entities: entities,
		})
		tokens, labels = nil, nil
		return nil
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			if err := flush(); err != nil {
				return nil, err
			}
			continue
		}
		if strings.HasPrefix(line, "-DOCSTART-") {
			continue
		}
		fields := strings.Fields(line)
		tokens = append(tokens, fields[0])
		labels = append(labels, fields[len(fields)-1])
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read conll: %w", err)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return records, nil
}

// ReadCSV parses classification data with a "text" and "label" column.
// Column order is taken from the header row; extra columns are ignored.
func ReadCSV(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	textIdx, labelIdx := -1, -1
	for i, col := range header {
		switch strings.ToLower(strings.TrimSpace(col)) {
		case "text", "sentence":
			textIdx = i
		case "label", "class":
			labelIdx = i
		}
	}
	if textIdx < 0 || labelIdx < 0 {
		return nil, fmt.Errorf("csv must have text and label columns, got header %v", header)
	}

	var records []Record
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		if textIdx >= len(row) || labelIdx >= len(row) {
			continue
		}
		records = append(records, Record{Text: row[textIdx], Label: row[labelIdx]})
	}
	return records, nil
}

// ReadJSONL parses one JSON record per line. Field names follow the
// Record JSON tags; which fields are required depends on the task.
func ReadJSONL(r io.Reader, task sample.Task) ([]Record, error) {
	var records []Record
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("parse jsonl line %d: %w", line, err)
		}
		if err := rec.Validate(task); err != nil {
			return nil, fmt.Errorf("jsonl line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read jsonl: %w", err)
	}
	return records, nil
}
