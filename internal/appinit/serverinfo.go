package appinit

import (
	"io/ioutil"

	errors "github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"
)

// ServerInfo is the Go struct for contents in server.yaml.
type ServerInfo struct {
	User             *OperatingIdentity     `yaml:"user"`
	Ledger           *LedgerInfo            `yaml:"ledger"`
	Port             int                    `yaml:"port"`
	LogLevel         string                 `yaml:"logLevel"`
	MySQLDSN         string                 `yaml:"mysqlDsn"`
	CipherSuite      string                 `yaml:"cipherSuite"`
	MasterKey        string                 `yaml:"masterKey"` // 十六进制编码的 32 字节主密钥
	MaxUploadBytes   int64                  `yaml:"maxUploadBytes"`
	AllowedMimeTypes []string               `yaml:"allowedMimeTypes"` // 缺省使用内置的允许列表
	GatewayPrefix    string                 `yaml:"gatewayPrefix"`
	LocalStorePath   string                 `yaml:"localStorePath"`
	Queue            *QueueInfo             `yaml:"queue"`
	StorageProviders []*StorageProviderInfo `yaml:"storageProviders"`
}

// OperatingIdentity represents the client / user that performs the operation.
type OperatingIdentity struct {
	OrgName string `yaml:"orgName"` // The name of the organization to which the user that performs the operation belongs
	UserID  string `yaml:"userID"`  // The ID of the user
}

// LedgerInfo contains info needed to reach the anchor chaincode.
type LedgerInfo struct {
	ChannelID   string `yaml:"channelID"`   // The ID of the channel on which the anchor chaincode is instantiated
	ChaincodeID string `yaml:"chaincodeID"` // The ID of the anchor chaincode
}

// QueueInfo contains the retry queue policy.
type QueueInfo struct {
	Path         string `yaml:"path"`         // The directory of the Badger store backing the queue
	MaxAttempts  int    `yaml:"maxAttempts"`  // The number of replay failures before an entry is dropped
	PauseSeconds int    `yaml:"pauseSeconds"` // The pause between two drain rounds
}

// StorageProviderInfo describes one entry of the storage provider table.
type StorageProviderInfo struct {
	Name      string `yaml:"name"`
	Kind      string `yaml:"kind"` // ipfs / pinner / tokenvault / local
	Endpoint  string `yaml:"endpoint"`
	APIKey    string `yaml:"apiKey"`
	APISecret string `yaml:"apiSecret"`
	Token     string `yaml:"token"`
	Priority  int    `yaml:"priority"`
	Enabled   *bool  `yaml:"enabled"` // 缺省视为启用
}

// IsEnabled treats an absent `enabled` field as true.
func (i *StorageProviderInfo) IsEnabled() bool {
	return i.Enabled == nil || *i.Enabled
}

// LoadServerInfo loads the server config file (in YAML) which contains info needed to start a server.
//
// Parameters:
//   the path to the config file
//
// Returns:
//   the `ServerInfo` struct containing the info needed to start a server
func LoadServerInfo(configFilePath string) (ret ServerInfo, err error) {
	yamlStr, err := ioutil.ReadFile(configFilePath)
	if err != nil {
		err = errors.Wrap(err, "读取服务器配置文件失败")
		return
	}

	err = yaml.Unmarshal(yamlStr, &ret)
	if err != nil {
		err = errors.Wrap(err, "解析 YAML 文件时出现错误")
		return
	}

	return
}
