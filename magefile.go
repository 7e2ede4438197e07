//go:build mage
// +build mage

package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

var (
	binDir = "bin"
	tmpDir = "tmp"
	apps   = []string{"web", "paytool"}
)

var Default = Build

// Run starts the API with go run; MPESA_ENVIRONMENT=mock avoids Daraja.
func Run() error {
	fmt.Println("Running ./cmd/web ...")
	return sh.RunV("go", "run", "./cmd/web")
}

// Build compiles every command into bin/.
func Build() error {
	mg.Deps(Tidy)

	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return err
	}
	env := map[string]string{"CGO_ENABLED": "0"}
	for _, app := range apps {
		out := filepath.Join(binDir, app+exeSuffix())
		fmt.Println("Building:", out)
		if err := sh.RunWithV(env, "go", "build", "-trimpath", "-o", out, "./cmd/"+app); err != nil {
			return err
		}
	}
	return nil
}

// Test runs the unit tests. SQLite-backed tests need cgo.
func Test() error {
	fmt.Println("Testing...")
	return sh.RunWithV(map[string]string{"CGO_ENABLED": "1"}, "go", "test", "./...", "-count=1")
}

func TestRace() error {
	fmt.Println("Testing with -race...")
	return sh.RunWithV(map[string]string{"CGO_ENABLED": "1"}, "go", "test", "./...", "-race", "-count=1")
}

func Fmt() error {
	fmt.Println("Formatting...")
	return sh.RunV("gofmt", "-w", "./cmd", "./internal", "./magefile.go")
}

func Lint() error {
	fmt.Println("Linting (golangci-lint)...")
	if _, err := exec.LookPath("golangci-lint"); err != nil {
		return fmt.Errorf("golangci-lint not found. Install with: mage Tools")
	}
	return sh.RunV("golangci-lint", "run", "--timeout=3m", "./...")
}

func Check() error {
	mg.Deps(Fmt, Lint, Test)
	fmt.Println("Check OK.")
	return nil
}

func Tidy() error {
	fmt.Println("Tidying go.mod/go.sum...")
	return sh.RunV("go", "mod", "tidy")
}

// Migrate creates or updates the schema on $DB_DSN.
func Migrate() error {
	if os.Getenv("DB_DSN") == "" {
		return fmt.Errorf("DB_DSN is not set")
	}
	return sh.RunV("go", "run", "./cmd/paytool", "migrate")
}

func Clean() error {
	fmt.Println("Cleaning...")
	_ = os.RemoveAll(binDir)
	_ = os.RemoveAll(tmpDir)
	return nil
}

// Tools installs golangci-lint.
func Tools() error {
	fmt.Println("Installing golangci-lint...")
	return sh.RunV("go", "install", "github.com/golangci/golangci-lint/v2/cmd/golangci-lint@latest")
}

func exeSuffix() string {
	if runtime.GOOS == "windows" {
		return ".exe"
	}
	return ""
}
