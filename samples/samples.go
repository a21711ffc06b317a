// Package samples holds the demonstration programs.
package samples

import (
	"embed"
	"io/fs"
	"slices"
	"strings"

	"github.com/ezrec/x86lite/translate"
)

//go:embed *.asm
var sources embed.FS

// ErrSample is returned for an unknown sample name.
type ErrSample string

func (err ErrSample) Error() string {
	return translate.From("sample %v not found", string(err))
}

// Names returns the sorted sample names.
func Names() (names []string) {
	entries, _ := fs.ReadDir(sources, ".")
	for _, entry := range entries {
		names = append(names, strings.TrimSuffix(entry.Name(), ".asm"))
	}
	slices.Sort(names)
	return
}

// Source returns the assembly text of a sample.
func Source(name string) (text string, err error) {
	data, err := sources.ReadFile(name + ".asm")
	if err != nil {
		err = ErrSample(name)
		return
	}

	text = string(data)
	return
}
