package project

import (
	"os"
	"path/filepath"
	"runtime"
)

// PythonEnvInfo contains Python environment information.
type PythonEnvInfo struct {
	ActiveVenv      string   `json:"activeVenv,omitempty"`
	IsActive        bool     `json:"isActive"`
	DetectedVenvs   []string `json:"detectedVenvs,omitempty"`
	HasPyproject    bool     `json:"hasPyproject"`
	HasRequirements bool     `json:"hasRequirements"`
	HasPipfile      bool     `json:"hasPipfile"`
}

var venvDirs = []string{".venv", "venv", "env", ".env"}

// DetectPythonEnvironment returns information about the Python environment
// of the project rooted at root.
func DetectPythonEnvironment(root string) *PythonEnvInfo {
	info := &PythonEnvInfo{}

	if venv := os.Getenv("VIRTUAL_ENV"); venv != "" {
		info.ActiveVenv = venv
		info.IsActive = true
	}

	for _, vp := range venvDirs {
		fullPath := filepath.Join(root, vp)
		if VenvInterpreter(fullPath) != "" {
			info.DetectedVenvs = append(info.DetectedVenvs, fullPath)
		}
	}

	if _, err := os.Stat(filepath.Join(root, "pyproject.toml")); err == nil {
		info.HasPyproject = true
	}
	if _, err := os.Stat(filepath.Join(root, "requirements.txt")); err == nil {
		info.HasRequirements = true
	}
	if _, err := os.Stat(filepath.Join(root, "Pipfile")); err == nil {
		info.HasPipfile = true
	}

	return info
}

// Interpreter returns the python executable of the active venv, else of
// the first venv found in the project. Empty when there is none.
func (i *PythonEnvInfo) Interpreter() string {
	if i == nil {
		return ""
	}
	if i.IsActive {
		if p := VenvInterpreter(i.ActiveVenv); p != "" {
			return p
		}
	}
	for _, v := range i.DetectedVenvs {
		if p := VenvInterpreter(v); p != "" {
			return p
		}
	}
	return ""
}

// VenvInterpreter returns the python executable inside venv, or "".
func VenvInterpreter(venv string) string {
	candidates := []string{filepath.Join(venv, "bin", "python")}
	if runtime.GOOS == "windows" {
		candidates = []string{filepath.Join(venv, "Scripts", "python.exe")}
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c
		}
	}
	return ""
}
