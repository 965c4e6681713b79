package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"cuelang.org/go/cue/token"

	"github.com/roach88/procflow/internal/compiler"
	"github.com/roach88/procflow/internal/ir"
)

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric       = "E001" // Generic/unknown error
	ErrCodeScanError     = "E002" // Directory scan error
	ErrCodeNoFiles       = "E003" // No CUE files found
	ErrCodeCompileFailed = "E004" // Graph file did not compile
	ErrCodeNotFound      = "E005" // Path, run or record not found
	ErrCodeDuplicateType = "E006" // Two files declare the same project type
	ErrCodeWriteFailed   = "E007" // File write error
)

// LoadMode controls how errors are handled during graph loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll loads every file and collects all errors.
	LoadModeCollectAll
)

// LoadedGraph is one compiled graph file.
type LoadedGraph struct {
	File  string
	Graph *ir.ProcessGraph
}

// LoadError represents an error that occurred while loading graph files.
type LoadError struct {
	Code    string
	Message string
	File    string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	if e.File != "" {
		return fmt.Sprintf("%s: %s: %s", e.File, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// FindCUEFiles returns path itself when it is a file, or every .cue file
// below it, sorted.
func FindCUEFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("path not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing %s: %v", path, err)}
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(p) == ".cue" {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
	}
	if len(files) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", path)}
	}
	sort.Strings(files)
	return files, nil
}

// LoadGraphs compiles every graph file under path. Each file holds one
// project type; two files declaring the same type is an error.
//
// In LoadModeFailFast the first error stops loading. In LoadModeCollectAll
// every file is compiled and the graphs that did compile are returned with
// the errors of the others.
func LoadGraphs(path string, mode LoadMode) ([]LoadedGraph, []error) {
	files, err := FindCUEFiles(path)
	if err != nil {
		return nil, []error{err}
	}

	var (
		graphs []LoadedGraph
		errs   []error
		seen   = make(map[string]string)
	)
	for _, file := range files {
		g, err := compiler.LoadGraphFile(file)
		if err != nil {
			errs = append(errs, compileLoadError(file, err))
		} else if prev, dup := seen[g.ProjectTypeID]; dup {
			errs = append(errs, &LoadError{
				Code:    ErrCodeDuplicateType,
				File:    file,
				Message: fmt.Sprintf("project type %q declared in %s and %s", g.ProjectTypeID, prev, file),
			})
		} else {
			seen[g.ProjectTypeID] = file
			graphs = append(graphs, LoadedGraph{File: file, Graph: g})
		}
		if len(errs) > 0 && mode == LoadModeFailFast {
			return nil, errs
		}
	}
	return graphs, errs
}

func compileLoadError(file string, err error) *LoadError {
	var cErr *compiler.CompileError
	if errors.As(err, &cErr) {
		return &LoadError{
			Code:    ErrCodeCompileFailed,
			Message: fmt.Sprintf("%s: %s", cErr.Field, cErr.Message),
			File:    file,
			Pos:     cErr.Pos,
		}
	}
	return &LoadError{Code: ErrCodeCompileFailed, File: file, Message: err.Error()}
}

// outputLoadError reports a load failure and returns it as a command error.
func outputLoadError(formatter *OutputFormatter, err error) error {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		_ = formatter.Error(loadErr.Code, loadErr.Message, nil)
		return NewExitError(ExitCommandError, loadErr.Error())
	}
	_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
	return WrapExitError(ExitCommandError, ErrCodeGeneric, err)
}
