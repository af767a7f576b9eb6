package batch

import (
	"path/filepath"
	"strings"
)

// Source describes where a raw URL list came from, which decides how
// strictly lines are filtered.
type Source int

const (
	// SourcePasted is free text typed or pasted by the user. Lines are kept
	// as-is; bad URLs are rejected per-item by the extraction service.
	SourcePasted Source = iota
	// SourceCSV is an uploaded CSV file. Only the first column is read.
	SourceCSV
	// SourcePlain is an uploaded plain-text file.
	SourcePlain
)

// DetectSource picks a Source based on a file extension.
func DetectSource(filename string) Source {
	if strings.EqualFold(filepath.Ext(filename), ".csv") {
		return SourceCSV
	}
	return SourcePlain
}

// ParseURLs normalizes raw text into an ordered list of candidate URLs.
// Duplicates are kept on purpose: a URL appearing twice becomes two
// independent batch items at two different indices.
func ParseURLs(raw string, src Source) []string {
	var urls []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(strings.TrimSuffix(line, "\r"))
		if line == "" {
			continue
		}

		switch src {
		case SourcePasted:
			urls = append(urls, line)
		case SourceCSV:
			value, _, _ := strings.Cut(line, ",")
			value = stripQuotes(strings.TrimSpace(value))
			if strings.HasPrefix(value, "http") {
				urls = append(urls, value)
			}
		case SourcePlain:
			if strings.HasPrefix(line, "http") {
				urls = append(urls, line)
			}
		}
	}
	return urls
}

// stripQuotes removes a single matching pair of surrounding quotes.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if first == last && (first == '"' || first == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
