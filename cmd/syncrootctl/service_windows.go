//go:build windows

package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/windows/svc"
	"golang.org/x/sys/windows/svc/mgr"

	"github.com/fruitsalade/syncroot/internal/logging"
)

const serviceName = "SyncRoot"
const serviceDisplayName = "Sync Root Registration"
const serviceDescription = "Holds a cloud sync root registration for the configured provider"

// rootService hosts one CLI invocation (normally run) under the service
// control manager. Stop and Shutdown cancel its context.
type rootService struct {
	args []string
}

func (s *rootService) Execute(_ []string, r <-chan svc.ChangeRequest, changes chan<- svc.Status) (bool, uint32) {
	changes <- svc.Status{State: svc.StartPending}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- execute(ctx, s.args, io.Discard, io.Discard)
	}()

	changes <- svc.Status{State: svc.Running, Accepts: svc.AcceptStop | svc.AcceptShutdown}

	for {
		select {
		case c := <-r:
			switch c.Cmd {
			case svc.Stop, svc.Shutdown:
				changes <- svc.Status{State: svc.StopPending}
				cancel()
				return false, serviceExit(<-errCh)
			case svc.Interrogate:
				changes <- c.CurrentStatus
			}
		case err := <-errCh:
			return false, serviceExit(err)
		}
	}
}

func serviceExit(err error) uint32 {
	if err == nil {
		return 0
	}
	logging.L().Error("service command failed", logging.Err(err))
	return uint32(exitCode(err))
}

func isWindowsService() bool {
	isService, err := svc.IsWindowsService()
	if err != nil {
		return false
	}
	return isService
}

func runAsService(args []string) error {
	return svc.Run(serviceName, &rootService{args: args})
}

func installService(args []string) error {
	exePath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("cannot determine executable path: %w", err)
	}

	m, err := mgr.Connect()
	if err != nil {
		return fmt.Errorf("cannot connect to service manager: %w", err)
	}
	defer m.Disconnect()

	s, err := m.CreateService(serviceName, exePath, mgr.Config{
		DisplayName: serviceDisplayName,
		Description: serviceDescription,
		StartType:   mgr.StartAutomatic,
	}, args...)
	if err != nil {
		return fmt.Errorf("cannot create service: %w", err)
	}
	defer s.Close()
	return nil
}

func uninstallService() error {
	m, err := mgr.Connect()
	if err != nil {
		return fmt.Errorf("cannot connect to service manager: %w", err)
	}
	defer m.Disconnect()

	s, err := m.OpenService(serviceName)
	if err != nil {
		return fmt.Errorf("cannot open service: %w", err)
	}
	defer s.Close()

	if err := s.Delete(); err != nil {
		return fmt.Errorf("cannot delete service: %w", err)
	}
	return nil
}
