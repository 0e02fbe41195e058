package constants

import (
	"path/filepath"
	"strings"
)

// Filesystem layout conventions for sample pairs and generated parsers.
const (
	DefaultDataDir   = "data"
	DefaultParserDir = "_custom_parser"

	SampleSuffix = "_sample"
	ParserSuffix = "_parser.go"
)

// NormalizeBank lowercases and trims a bank identifier ("ICICI " -> "icici").
func NormalizeBank(bank string) string {
	return strings.ToLower(strings.TrimSpace(bank))
}

// SamplePDFPath returns data/<bank>/<bank>_sample.pdf under dataDir.
func SamplePDFPath(dataDir, bank string) string {
	return filepath.Join(dataDir, bank, bank+SampleSuffix+".pdf")
}

// SampleCSVPath returns data/<bank>/<bank>_sample.csv under dataDir.
func SampleCSVPath(dataDir, bank string) string {
	return filepath.Join(dataDir, bank, bank+SampleSuffix+".csv")
}

// ParserPath returns <parserDir>/<bank>_parser.go.
func ParserPath(parserDir, bank string) string {
	return filepath.Join(parserDir, bank+ParserSuffix)
}
