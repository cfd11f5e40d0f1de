package source

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"

	"git.home.luguber.info/inful/docpipe/internal/config"
)

// authMethod returns the go-git transport auth for cfg. A nil config or type
// "none" yields nil, which lets go-git fall back to anonymous access.
func authMethod(cfg *config.AuthConfig) (transport.AuthMethod, error) {
	if cfg == nil {
		return nil, nil
	}
	switch cfg.Type {
	case "", "none":
		return nil, nil
	case "token":
		if cfg.Token == "" {
			return nil, fmt.Errorf("token authentication requires a token")
		}
		return &http.BasicAuth{Username: "token", Password: cfg.Token}, nil
	case "basic":
		if cfg.Username == "" || cfg.Password == "" {
			return nil, fmt.Errorf("basic authentication requires username and password")
		}
		return &http.BasicAuth{Username: cfg.Username, Password: cfg.Password}, nil
	case "ssh":
		keyPath := cfg.KeyPath
		if keyPath == "" {
			home, _ := os.UserHomeDir()
			keyPath = filepath.Join(home, ".ssh", "id_rsa")
		}
		keys, err := ssh.NewPublicKeysFromFile("git", keyPath, cfg.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to load SSH key from %s: %w", keyPath, err)
		}
		return keys, nil
	default:
		return nil, fmt.Errorf("unsupported authentication type %q", cfg.Type)
	}
}
