package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/srg/glitch/internal/auth"
	"github.com/srg/glitch/internal/device"
	"github.com/srg/glitch/scanner"
)

func TestFormatUserError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		contains string
	}{
		{"permission", fmt.Errorf("start: %w", scanner.ErrPermissionDenied), "permission denied"},
		{"bluetooth off", device.ErrBluetoothOff, "turn it on"},
		{"unsupported", device.ErrUnsupported, "not supported"},
		{"duplicate user", fmt.Errorf("register: %w", auth.ErrUserExists), "already exists"},
		{"other", errors.New("something odd"), "something odd"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, FormatUserError(tt.err), tt.contains)
		})
	}
}

func TestFormatVersion(t *testing.T) {
	assert.Equal(t, "v1.2.3", formatVersion("1.2.3"))
	assert.Equal(t, "dev", formatVersion("dev"))
	assert.Equal(t, "", formatVersion(""))
}
