package rubyshd

import (
	"fmt"
	"net"
	"os"
	"path/filepath"

	env "github.com/caarlos0/env/v11"
)

// Config is the immutable, validated set of filesystem roots, TLS material
// paths and listener settings.  It is built once from the environment at
// startup and shared by reference for the process lifetime.
type Config struct {
	PublicRootPath                    string `env:"PUBLIC_ROOT_PATH" envDefault:"public_root"`
	PartialsPath                      string `env:"PARTIALS_PATH" envDefault:"partials"`
	DataPath                          string `env:"DATA_PATH" envDefault:"data"`
	ErrdocsPath                       string `env:"ERRDOCS_PATH" envDefault:"errdocs"`
	MaxRequestHeaderSize              int    `env:"MAX_REQUEST_HEADER_SIZE" envDefault:"2048"`
	TLSListenBind                     string `env:"TLS_LISTEN_BIND" envDefault:"127.0.0.1:4443"`
	TLSClientCACertificatePEMFilename string `env:"TLS_CLIENT_CA_CERTIFICATE_PEM_FILENAME" envDefault:"ca.cert.pem"`
	TLSServerCertificatePEMFilename   string `env:"TLS_SERVER_CERTIFICATE_PEM_FILENAME" envDefault:"localhost.cert.pem"`
	TLSServerPrivateKeyPEMFilename    string `env:"TLS_SERVER_PRIVATE_KEY_PEM_FILENAME" envDefault:"localhost.pem"`
	DefaultHostname                   string `env:"DEFAULT_HOSTNAME" envDefault:"localhost"`
}

// NewConfigFromEnv reads the environment into an unvalidated Config.  Callers
// may override fields before calling Validate.
func NewConfigFromEnv() (*Config, error) {
	var config Config

	if err := env.Parse(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate canonicalizes every path field and verifies it exists as the
// expected type.  A Config that fails validation must not be used.
func (self *Config) Validate() error {
	var err error

	if self.PublicRootPath, err = checkDirectoryPath(self.PublicRootPath); err != nil {
		return fmt.Errorf("invalid PUBLIC_ROOT_PATH: %v", err)
	}

	if self.PartialsPath, err = checkDirectoryPath(self.PartialsPath); err != nil {
		return fmt.Errorf("invalid PARTIALS_PATH: %v", err)
	}

	if self.DataPath, err = checkDirectoryPath(self.DataPath); err != nil {
		return fmt.Errorf("invalid DATA_PATH: %v", err)
	}

	if self.ErrdocsPath, err = checkDirectoryPath(self.ErrdocsPath); err != nil {
		return fmt.Errorf("invalid ERRDOCS_PATH: %v", err)
	}

	if self.TLSClientCACertificatePEMFilename, err = checkFilePath(self.TLSClientCACertificatePEMFilename); err != nil {
		return fmt.Errorf("invalid TLS_CLIENT_CA_CERTIFICATE_PEM_FILENAME: %v", err)
	}

	if self.TLSServerCertificatePEMFilename, err = checkFilePath(self.TLSServerCertificatePEMFilename); err != nil {
		return fmt.Errorf("invalid TLS_SERVER_CERTIFICATE_PEM_FILENAME: %v", err)
	}

	if self.TLSServerPrivateKeyPEMFilename, err = checkFilePath(self.TLSServerPrivateKeyPEMFilename); err != nil {
		return fmt.Errorf("invalid TLS_SERVER_PRIVATE_KEY_PEM_FILENAME: %v", err)
	}

	if self.MaxRequestHeaderSize <= 0 {
		return fmt.Errorf("invalid MAX_REQUEST_HEADER_SIZE: must be positive")
	}

	if _, _, err := net.SplitHostPort(self.TLSListenBind); err != nil {
		return fmt.Errorf("invalid TLS_LISTEN_BIND: %v", err)
	}

	if self.DefaultHostname == `` {
		return fmt.Errorf("invalid DEFAULT_HOSTNAME: must not be empty")
	}

	return nil
}

func checkFilePath(path string) (string, error) {
	return checkPath(path, false)
}

func checkDirectoryPath(path string) (string, error) {
	return checkPath(path, true)
}

// checkPath resolves a path to its canonical, symlink-free absolute form and
// verifies that it exists as the expected type.
func checkPath(path string, isDirectory bool) (string, error) {
	var resolved, err = filepath.EvalSymlinks(path)

	if err != nil {
		return ``, err
	}

	if resolved, err = filepath.Abs(resolved); err != nil {
		return ``, err
	}

	if info, err := os.Stat(resolved); err != nil {
		return ``, err
	} else if info.IsDir() != isDirectory {
		if isDirectory {
			return ``, fmt.Errorf("%s: not a directory", path)
		} else {
			return ``, fmt.Errorf("%s: not a regular file", path)
		}
	}

	return resolved, nil
}
