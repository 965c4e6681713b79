package compiler

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/procflow/internal/ir"
)

// LoadGraphFile compiles one authored graph file. Each file holds exactly one
// project type; positions in errors carry the file name.
func LoadGraphFile(path string) (*ir.ProcessGraph, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading graph file: %w", err)
	}
	return LoadGraphBytes(path, src)
}

// LoadGraphBytes compiles CUE source; filename is used for error positions only.
func LoadGraphBytes(filename string, src []byte) (*ir.ProcessGraph, error) {
	v := cuecontext.New().CompileBytes(src, cue.Filename(filename))
	return CompileGraph(v)
}
