package constants

// The only third-party module a generated parser may import, pinned so every
// evaluation builds against the same code.
const (
	ParserPDFModule  = "github.com/ledongthuc/pdf"
	ParserPDFVersion = "v0.0.0-20250511090121-5959a4027728"
)

// ParserGoVersion is written into the go.mod of each isolated parser build.
// It must not be lower than the go line of ParserPDFVersion's own go.mod.
const ParserGoVersion = "1.24.1"
