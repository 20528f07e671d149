package bitcoin

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/goodnatureofminers/blockinsight7000-txreport/internal/utxo/model"
)

// scriptDecoder extracts human-readable addresses from output scripts.
type scriptDecoder struct{}

// NewScriptDecoder returns a decoder that resolves standard single-address scripts.
func NewScriptDecoder() ScriptDecoder {
	return &scriptDecoder{}
}

// DecodeAddress prefers the address already decoded by the node as long as it belongs to the
// network, then falls back to parsing the script hex. Scripts without exactly one address
// resolve to an empty string.
func (d *scriptDecoder) DecodeAddress(script model.ScriptPubKey, network model.Network) (string, error) {
	params, err := chainParamsForNetwork(network)
	if err != nil {
		return "", err
	}

	if script.Address != "" {
		addr, err := btcutil.DecodeAddress(script.Address, params)
		if err != nil || !addr.IsForNet(params) {
			return "", nil
		}
		return addr.EncodeAddress(), nil
	}
	if script.Hex == "" {
		return "", nil
	}

	scriptBytes, err := hex.DecodeString(script.Hex)
	if err != nil {
		return "", fmt.Errorf("decode script hex: %w", err)
	}
	_, addrs, _, err := txscript.ExtractPkScriptAddrs(scriptBytes, params)
	if err != nil {
		return "", fmt.Errorf("extract script addresses: %w", err)
	}
	if len(addrs) != 1 {
		return "", nil
	}
	return addrs[0].EncodeAddress(), nil
}

func chainParamsForNetwork(network model.Network) (*chaincfg.Params, error) {
	switch strings.ToLower(string(network)) {
	case "main", "mainnet", "bitcoin":
		return &chaincfg.MainNetParams, nil
	case "testnet", "testnet3":
		return &chaincfg.TestNet3Params, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	case "signet":
		return &chaincfg.SigNetParams, nil
	default:
		return nil, fmt.Errorf("unsupported network %q", network)
	}
}

// ChainParams exposes the network parameters used for address handling.
func ChainParams(network model.Network) (*chaincfg.Params, error) {
	return chainParamsForNetwork(network)
}
