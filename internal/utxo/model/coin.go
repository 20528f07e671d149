// Package model defines domain models for transaction reporting.
package model

type Coin string
type Network string

var (
	BTC Coin = "BTC"
)

var (
	Mainnet Network = "mainnet"
	Testnet Network = "testnet"
	Regtest Network = "regtest"
	Signet  Network = "signet"
)
