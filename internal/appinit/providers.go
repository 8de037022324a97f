package appinit

import (
	"encoding/hex"
	"fmt"

	"github.com/12Omega/blockchain-doc-sub002/internal/localstore"
	"github.com/12Omega/blockchain-doc-sub002/internal/storage"
	"github.com/12Omega/blockchain-doc-sub002/internal/utils/cipherutils"
	"github.com/pkg/errors"
)

// BuildProviders turns the provider table from server.yaml into storage
// drivers. A `local` entry is bound to the local store; at most one is
// allowed since the router keeps a single fallback store.
//
// Parameters:
//   the provider table
//   the local fallback store
//
// Returns:
//   the storage drivers to hand to the router
func BuildProviders(infos []*StorageProviderInfo, store *localstore.LocalStore) ([]storage.Provider, error) {
	var providers []storage.Provider
	localSeen := false

	for _, info := range infos {
		if !info.IsEnabled() {
			continue
		}

		switch info.Kind {
		case "ipfs":
			providers = append(providers, storage.NewIPFSProvider(info.Name, info.Priority, info.Endpoint))
		case "pinner":
			providers = append(providers, storage.NewPinnerProvider(info.Name, info.Priority, info.Endpoint, info.APIKey, info.APISecret))
		case "tokenvault":
			providers = append(providers, storage.NewTokenVaultProvider(info.Name, info.Priority, info.Endpoint, info.Token))
		case "local":
			if localSeen {
				return nil, fmt.Errorf("存储提供方表中最多只能有一个 local 条目")
			}
			localSeen = true
			providers = append(providers, storage.NewLocalProvider(info.Priority, store))
		default:
			return nil, fmt.Errorf("未知的存储提供方类型 '%v'", info.Kind)
		}
	}

	return providers, nil
}

// DecodeMasterKey decodes the hex master key from the config and checks it
// against the key size of the configured suite.
func DecodeMasterKey(hexKey string, suite cipherutils.Suite) ([]byte, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, errors.Wrap(err, "主密钥不是合法的十六进制字符串")
	}

	if len(key) != suite.KeySize() {
		return nil, fmt.Errorf("套件 %v 的主密钥长度应为 %v 字节，实际为 %v 字节", suite, suite.KeySize(), len(key))
	}

	return key, nil
}
