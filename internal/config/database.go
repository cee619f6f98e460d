package config

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
)

// tlsConfigName is the name the custom TLS config is registered under.
const tlsConfigName = "gql2sql-custom"

// DriverConfig returns the go-sql-driver configuration for d. An explicit
// DSN is parsed; otherwise the discrete fields are used. Times are parsed
// as UTC and the TLS mode is applied unless the DSN already chose one.
func (d *DatabaseConfig) DriverConfig() (*mysql.Config, error) {
	var cfg *mysql.Config
	if d.DSN != "" {
		parsed, err := mysql.ParseDSN(d.DSN)
		if err != nil {
			return nil, fmt.Errorf("database.dsn is invalid: %w", err)
		}
		cfg = parsed
	} else {
		cfg = mysql.NewConfig()
		cfg.User = d.User
		cfg.Passwd = d.Password
		cfg.Net = "tcp"
		cfg.Addr = net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
		cfg.DBName = d.Database
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	if cfg.TLSConfig == "" {
		cfg.TLSConfig = d.tlsParam()
	}
	return cfg, nil
}

// FormatDSN renders DriverConfig as a DSN string.
func (d *DatabaseConfig) FormatDSN() (string, error) {
	cfg, err := d.DriverConfig()
	if err != nil {
		return "", err
	}
	return cfg.FormatDSN(), nil
}

// DatabaseName returns the database statements and introspection target:
// the configured name, or the one named in the DSN.
func (d *DatabaseConfig) DatabaseName() (string, error) {
	cfg, err := d.DriverConfig()
	if err != nil {
		return "", err
	}
	switch {
	case d.Database != "" && cfg.DBName != "" && d.Database != cfg.DBName:
		return "", fmt.Errorf("database mismatch: database.database=%q but database.dsn targets %q", d.Database, cfg.DBName)
	case d.Database != "":
		return d.Database, nil
	case cfg.DBName != "":
		return cfg.DBName, nil
	}
	return "", errors.New("no database configured: set database.database or include /<database> in database.dsn")
}

func (d *DatabaseConfig) tlsParam() string {
	switch d.TLS.Mode {
	case "":
		return ""
	case "off":
		return "false"
	case "verify-ca", "verify-full":
		return tlsConfigName
	default:
		return d.TLS.Mode
	}
}

// RegisterTLS registers the custom TLS config with the driver. It must run
// before the connection is opened and is a no-op for modes that need none.
func (d *DatabaseConfig) RegisterTLS() error {
	if d.TLS.Mode != "verify-ca" && d.TLS.Mode != "verify-full" {
		return nil
	}
	tlsCfg, err := d.TLS.build()
	if err != nil {
		return fmt.Errorf("failed to build TLS config: %w", err)
	}
	if err := mysql.RegisterTLSConfig(tlsConfigName, tlsCfg); err != nil {
		return fmt.Errorf("failed to register TLS config: %w", err)
	}
	return nil
}

func (t DatabaseTLSConfig) build() (*tls.Config, error) {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if t.CAFile != "" {
		pem, err := os.ReadFile(t.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA file %q: %w", t.CAFile, err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("failed to parse CA certificate from %q", t.CAFile)
		}
		cfg.RootCAs = pool
	}
	switch {
	case t.CertFile != "" && t.KeyFile != "":
		cert, err := tls.LoadX509KeyPair(t.CertFile, t.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	case t.CertFile != "" || t.KeyFile != "":
		return nil, errors.New("both cert_file and key_file must be specified for client certificate authentication")
	}
	if t.Mode == "verify-ca" {
		// Chain is checked against RootCAs without matching the host name.
		cfg.InsecureSkipVerify = true
		roots := cfg.RootCAs
		cfg.VerifyPeerCertificate = func(raw [][]byte, _ [][]*x509.Certificate) error {
			return verifyChain(raw, roots)
		}
	} else if t.ServerName != "" {
		cfg.ServerName = t.ServerName
	}
	return cfg, nil
}

func verifyChain(raw [][]byte, roots *x509.CertPool) error {
	if len(raw) == 0 {
		return errors.New("server presented no certificate")
	}
	certs := make([]*x509.Certificate, len(raw))
	for i, der := range raw {
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			return fmt.Errorf("failed to parse server certificate: %w", err)
		}
		certs[i] = cert
	}
	intermediates := x509.NewCertPool()
	for _, cert := range certs[1:] {
		intermediates.AddCert(cert)
	}
	_, err := certs[0].Verify(x509.VerifyOptions{Roots: roots, Intermediates: intermediates})
	return err
}
