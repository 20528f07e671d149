package rpcclient

import (
	"errors"
	"fmt"
	"net/url"
	"path"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/rpcclient"
)

// ConnConfig describes a Bitcoin Core JSON-RPC endpoint.
type ConnConfig struct {
	URL      string
	User     string
	Password string
	// Wallet scopes the connection to /wallet/<name> when set.
	Wallet string
	Params *chaincfg.Params
}

// Dial builds an HTTP POST mode client. No connection is made until the first call.
func Dial(cfg ConnConfig) (*rpcclient.Client, error) {
	conn, err := connConfig(cfg)
	if err != nil {
		return nil, err
	}
	return rpcclient.New(conn, nil)
}

func connConfig(cfg ConnConfig) (*rpcclient.ConnConfig, error) {
	parsed, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse rpc url: %w", err)
	}
	if parsed.Scheme != "http" {
		return nil, fmt.Errorf("rpc url scheme %q not supported, use http", parsed.Scheme)
	}
	if parsed.Host == "" {
		return nil, errors.New("rpc url missing host")
	}
	if cfg.Params == nil {
		return nil, errors.New("chain params are required")
	}

	host := parsed.Host
	if cfg.Wallet != "" {
		host += path.Join("/wallet", url.PathEscape(cfg.Wallet))
	}

	return &rpcclient.ConnConfig{
		Host:         host,
		User:         cfg.User,
		Pass:         cfg.Password,
		Params:       cfg.Params.Name,
		HTTPPostMode: true,
		DisableTLS:   true,
	}, nil
}
