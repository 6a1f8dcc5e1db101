package gnucross

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"lukechampine.com/blake3"
)

// stampName marks a work directory whose configure step completed.
const stampName = ".gnucross-configured"

func hashString(s string) string {
	h := blake3.New(32, nil)
	h.Write([]byte(s))
	return fmt.Sprintf("%x", h.Sum(nil))
}

// readStamp returns the recorded configure digest and whether the work
// directory has been configured at all.
func readStamp(workDir string) (string, bool) {
	data, err := os.ReadFile(filepath.Join(workDir, stampName))
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(string(data)), true
}

// writeStamp records a successful configure. The file is renamed into
// place so an interrupted write never looks like a finished configure.
func writeStamp(workDir, configureLine string) error {
	tmp, err := os.CreateTemp(workDir, stampName+".*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := fmt.Fprintln(tmp, hashString(configureLine)); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, filepath.Join(workDir, stampName)); err != nil {
		os.Remove(tmpPath)
		return errors.Join(errors.New("failed to record configure stamp"), err)
	}
	return nil
}
