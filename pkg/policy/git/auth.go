package git

import (
	"fmt"
	"os"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"

	"mercator-hq/certify/pkg/config"
)

// AuthMethod resolves git credentials from configuration.
// Supported types: "token", "ssh" and "none" (or empty) for public
// repositories, which yields a nil method.
func AuthMethod(cfg config.GitAuthConfig) (transport.AuthMethod, error) {
	switch cfg.Type {
	case "token":
		if cfg.Token == "" {
			return nil, fmt.Errorf("token auth requires non-empty token")
		}
		// The username is ignored by token-based HTTPS remotes.
		return &http.BasicAuth{Username: "git", Password: cfg.Token}, nil

	case "ssh":
		return sshAuth(cfg.SSHKeyPath, cfg.SSHKeyPassphrase)

	case "none", "":
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown auth type: %s", cfg.Type)
	}
}

func sshAuth(keyPath, passphrase string) (transport.AuthMethod, error) {
	if keyPath == "" {
		return nil, fmt.Errorf("ssh auth requires ssh_key_path")
	}

	info, err := os.Stat(keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to access SSH key file: %w", err)
	}
	if mode := info.Mode().Perm(); mode&0077 != 0 {
		return nil, fmt.Errorf("SSH key file permissions too open (%o), should be 0600", mode)
	}

	auth, err := ssh.NewPublicKeysFromFile("git", keyPath, passphrase)
	if err != nil {
		return nil, fmt.Errorf("failed to load SSH key: %w", err)
	}
	return auth, nil
}
