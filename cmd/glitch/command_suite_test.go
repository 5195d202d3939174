package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/suite"

	"github.com/srg/glitch/internal/config"
	"github.com/srg/glitch/internal/device"
	"github.com/srg/glitch/internal/devicefactory"
	"github.com/srg/glitch/internal/testutils"
)

// Test device addresses for consistent fake device identification
const (
	TestDeviceAddress1 = "aa:bb:cc:00:00:01"
	TestDeviceAddress2 = "aa:bb:cc:00:00:02"
)

// steadyPower reports the adapter as on and stays quiet until cancelled.
type steadyPower struct{}

func (steadyPower) WatchPower(ctx context.Context, fn func(device.PowerState)) error {
	fn(device.PoweredOn)
	<-ctx.Done()
	return nil
}

func (steadyPower) Reset() {}

// CommandTestSuite swaps the platform factories for fakes and gives every
// test its own config file.
type CommandTestSuite struct {
	suite.Suite
	Scanner *testutils.FakeScanner

	configPath      string
	originalScanner func() (device.Scanner, error)
	originalMonitor func(time.Duration, *logrus.Logger) devicefactory.PowerMonitor
}

func (s *CommandTestSuite) SetupSuite() {
	s.originalScanner = devicefactory.ScannerFactory
	s.originalMonitor = devicefactory.PowerMonitorFactory
}

func (s *CommandTestSuite) TearDownSuite() {
	devicefactory.ScannerFactory = s.originalScanner
	devicefactory.PowerMonitorFactory = s.originalMonitor
}

func (s *CommandTestSuite) SetupTest() {
	s.T().Setenv(config.EnvDatabaseURL, "")

	s.Scanner = testutils.NewFakeScanner(
		testutils.Adv(TestDeviceAddress1, "Foo", -55),
		testutils.Adv(TestDeviceAddress2, "", -80),
	)
	devicefactory.ScannerFactory = func() (device.Scanner, error) { return s.Scanner, nil }
	devicefactory.PowerMonitorFactory = func(time.Duration, *logrus.Logger) devicefactory.PowerMonitor {
		return steadyPower{}
	}

	s.WriteConfig("scan:\n  permissions: granted\n")
}

// WriteConfig replaces the config file used by ExecuteCommand.
func (s *CommandTestSuite) WriteConfig(content string) {
	s.configPath = filepath.Join(s.T().TempDir(), "config.yaml")
	s.Require().NoError(os.WriteFile(s.configPath, []byte(content), 0o600))
}

// ExecuteCommand runs the root command with args and the test config,
// returns output and error.
func (s *CommandTestSuite) ExecuteCommand(args ...string) (string, error) {
	return executeCommand(rootCmd, append(args, "--config", s.configPath)...)
}

func executeCommand(cmd *cobra.Command, args ...string) (string, error) {
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}
