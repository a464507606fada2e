package libmarket

import (
	"fmt"

	"github.com/KarpelesLab/apirouter"
	"github.com/TheQuantumChronicle/libmarket/mktbase"
)

// Methods exposed to the application to setup an environment

// MakeRPC generates and return a socket
func MakeRPC(dataDir string) (int, error) {
	e, err := mktbase.InitEnv(dataDir)
	if err != nil {
		return -1, fmt.Errorf("failed to init env: %w", err)
	}

	return apirouter.MakeJsonSocketFD(map[string]any{"@env": e})
}

// MakeSocket creates a socket
func MakeSocket(dataDir, socketName string) error {
	e, err := mktbase.InitEnv(dataDir)
	if err != nil {
		return fmt.Errorf("failed to init env: %w", err)
	}

	return apirouter.MakeJsonUnixListener(socketName, map[string]any{"@env": e})
}
