//go:build mage

// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package main provides build targets for the charmsmith project using Mage.
//
// Usage:
//
//	mage build             Compile the charmsmith binary to bin/
//	mage test:all          Run all tests
//	mage test:unit         Run engine and storage tests
//	mage test:integration  Run CLI and HTTP tests
//	mage test:cover        Write a coverage profile to bin/
//	mage lint              Run golangci-lint
//	mage serve             Build and start the HTTP API
//	mage clean             Remove build artifacts
//	mage install           Install charmsmith to GOPATH/bin
package main

import (
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binGo      = "go"
	binaryName = "charmsmith"
	binaryDir  = "bin"
	cmdDir     = "./cmd/charmsmith"
)

// Build compiles the charmsmith binary to bin/.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	return sh.RunV(binGo, "build", "-v", "-o", filepath.Join(binaryDir, binaryName), cmdDir)
}

// Clean removes build artifacts.
func Clean() error {
	if err := os.RemoveAll(binaryDir); err != nil {
		return err
	}
	return sh.RunV(binGo, "clean")
}

// Install builds and copies the binary to GOPATH/bin.
func Install() error {
	mg.Deps(Build)
	gopath, err := sh.Output(binGo, "env", "GOPATH")
	if err != nil {
		return err
	}
	src := filepath.Join(binaryDir, binaryName)
	dst := filepath.Join(gopath, "bin", binaryName)
	return sh.Copy(dst, src)
}

// Serve builds the binary and starts the HTTP API on the default address.
// CHARMSMITH_DATA_DIR selects the history directory.
func Serve() error {
	mg.Deps(Build)
	return sh.RunV(filepath.Join(binaryDir, binaryName), "serve", "--verbose")
}
