package agent

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joseph-ayodele/statement-agent/constants"
	"github.com/joseph-ayodele/statement-agent/internal/common"
)

// Target is the resolved set of paths for one bank. It does not change during a run.
type Target struct {
	Bank       string
	PDFPath    string
	CSVPath    string
	ParserPath string
}

// ResolveTarget maps a bank identifier onto the data and parser directories and checks
// that both sample files exist.
func ResolveTarget(bank, dataDir, parserDir string) (Target, error) {
	bank = constants.NormalizeBank(bank)
	v := common.NewValidator().
		Field("target", bank, common.Required, common.BankIdentifier, common.MaxLength(64))
	if err := common.ValidateAndReturnError(v); err != nil {
		return Target{}, err
	}

	t := Target{
		Bank:       bank,
		PDFPath:    constants.SamplePDFPath(dataDir, bank),
		CSVPath:    constants.SampleCSVPath(dataDir, bank),
		ParserPath: constants.ParserPath(parserDir, bank),
	}
	for _, p := range []string{t.PDFPath, t.CSVPath} {
		if err := requireFile(p); err != nil {
			return Target{}, err
		}
	}
	return t, nil
}

func requireFile(path string) error {
	st, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return common.NewAppError("SAMPLE_NOT_FOUND", "not found: "+path, common.ErrNotFound)
		}
		return common.NewAppError("SAMPLE_INVALID", "cannot access "+path, errors.Join(common.ErrInvalidInput, err))
	}
	if st.IsDir() {
		return common.NewAppError("SAMPLE_INVALID", "is a directory: "+path, common.ErrInvalidInput)
	}
	return nil
}
