package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"

	"github.com/spf13/viper"
)

var ErrSecretNotFound = errors.New("config: database secret not found")

// DatabaseSecret is one databases.<name> entry of .secrets.json.
type DatabaseSecret struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
}

func (s DatabaseSecret) URL() string {
	host := s.Host
	if host == "" {
		host = "localhost"
	}
	port := s.Port
	if port == 0 {
		port = 5432
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(host, strconv.Itoa(port)),
		Path:   "/" + s.Database,
	}
	if s.Password != "" {
		u.User = url.UserPassword(s.Username, s.Password)
	} else if s.Username != "" {
		u.User = url.User(s.Username)
	}
	return u.String()
}

// LoadDatabaseSecret reads databases.<name> from a JSON secrets file. The
// file is only read, never written.
func LoadDatabaseSecret(path, name string) (DatabaseSecret, error) {
	if _, err := os.Stat(path); err != nil {
		return DatabaseSecret{}, fmt.Errorf("config: secrets file %s: %w", path, err)
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return DatabaseSecret{}, fmt.Errorf("config: read secrets %s: %w", path, err)
	}
	key := "databases." + name
	if !v.IsSet(key) {
		return DatabaseSecret{}, fmt.Errorf("%w: %s in %s", ErrSecretNotFound, name, path)
	}
	var secret DatabaseSecret
	if err := v.UnmarshalKey(key, &secret); err != nil {
		return DatabaseSecret{}, fmt.Errorf("config: decode %s: %w", key, err)
	}
	if secret.Database == "" {
		secret.Database = name
	}
	return secret, nil
}
