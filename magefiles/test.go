//go:build mage

// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Test groups test targets (all, unit, integration, cover).
type Test mg.Namespace

// integrationPkgs drive the engine through its outer surfaces.
var integrationPkgs = []string{"/internal/cli", "/internal/server"}

// All runs every test.
func (Test) All() error {
	return sh.RunV(binGo, "test", "-v", "./...")
}

// Unit runs the engine and storage tests, skipping the CLI and HTTP
// packages.
func (Test) Unit() error {
	pkgs, err := listPackages(false)
	if err != nil {
		return err
	}
	if len(pkgs) == 0 {
		fmt.Println("No unit test packages found.")
		return nil
	}
	return sh.RunV(binGo, append([]string{"test"}, pkgs...)...)
}

// Integration runs the CLI and HTTP tests.
func (Test) Integration() error {
	pkgs, err := listPackages(true)
	if err != nil {
		return err
	}
	return sh.RunV(binGo, append([]string{"test", "-v"}, pkgs...)...)
}

// Cover writes a coverage profile to bin/coverage.out and prints the
// per-function summary.
func (Test) Cover() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	profile := filepath.Join(binaryDir, "coverage.out")
	if err := sh.RunV(binGo, "test", "-coverprofile="+profile, "./..."); err != nil {
		return err
	}
	return sh.RunV(binGo, "tool", "cover", "-func="+profile)
}

// listPackages returns the module packages that are (or are not)
// integration packages.
func listPackages(integration bool) ([]string, error) {
	out, err := sh.Output(binGo, "list", "./...")
	if err != nil {
		return nil, err
	}
	var pkgs []string
	for _, pkg := range strings.Split(out, "\n") {
		if pkg == "" || strings.HasSuffix(pkg, "/magefiles") {
			continue
		}
		if isIntegration(pkg) == integration {
			pkgs = append(pkgs, pkg)
		}
	}
	return pkgs, nil
}

func isIntegration(pkg string) bool {
	for _, suffix := range integrationPkgs {
		if strings.HasSuffix(pkg, suffix) {
			return true
		}
	}
	return false
}
