package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/nsf/jsondiff"
	"github.com/yudai/gojsondiff"
	"github.com/yudai/gojsondiff/formatter"
)

// fragmentDump is the JSON form of every clean block reachable in a story,
// keyed by hex address.
type fragmentDump struct {
	Version uint8             `json:"version"`
	Entry   string            `json:"entry"`
	Blocks  map[string]string `json:"blocks"`
}

func newFragmentDump(version uint8, entry uint32, report *scanReport) *fragmentDump {
	dump := &fragmentDump{
		Version: version,
		Entry:   fmt.Sprintf("0x%x", entry),
		Blocks:  make(map[string]string, len(report.Fragments)),
	}
	for _, frag := range report.Fragments {
		dump.Blocks[fmt.Sprintf("0x%x", frag.Addr)] = frag.Code
	}
	return dump
}

func writeDump(path string, dump *fragmentDump) error {
	data, err := json.MarshalIndent(dump, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// compareDumps reports whether two dumps hold the same blocks, along with a
// readable difference when they do not. With full set the difference is the
// whole old document annotated with changes; otherwise only the changed
// blocks are listed.
func compareDumps(oldPath, newPath string, full bool) (bool, string, error) {
	a, err := os.ReadFile(oldPath)
	if err != nil {
		return false, "", err
	}
	b, err := os.ReadFile(newPath)
	if err != nil {
		return false, "", err
	}
	var left map[string]interface{}
	if err := json.Unmarshal(a, &left); err != nil {
		return false, "", fmt.Errorf("%s is not a fragment dump: %w", oldPath, err)
	}
	if !json.Valid(b) {
		return false, "", fmt.Errorf("%s is not a fragment dump", newPath)
	}

	if full {
		opts := jsondiff.DefaultConsoleOptions()
		diff, explanation := jsondiff.Compare(a, b, &opts)
		if diff == jsondiff.FullMatch {
			return true, "", nil
		}
		return false, explanation, nil
	}

	differ := gojsondiff.New()
	delta, err := differ.Compare(a, b)
	if err != nil {
		return false, "", fmt.Errorf("%s is not a fragment dump: %w", newPath, err)
	}
	if !delta.Modified() {
		return true, "", nil
	}
	asciiFmt := formatter.NewAsciiFormatter(left, formatter.AsciiFormatterConfig{
		ShowArrayIndex: true,
	})
	diff, err := asciiFmt.Format(delta)
	if err != nil {
		return false, "", err
	}
	return false, diff, nil
}
