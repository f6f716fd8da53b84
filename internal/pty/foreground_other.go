//go:build !linux && !darwin

package pty

import (
	"errors"
	"os"
)

var errUnsupported = errors.New("foreground process lookup not supported on this platform")

func foregroundPgrp(*os.File) (int, error) { return 0, errUnsupported }

func processName(int) (string, error) { return "", errUnsupported }
