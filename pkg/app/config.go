package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lk2023060901/cargorelay/pkg/config"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀，CARGORELAY_BRIDGE_TRANSPORT 对应 bridge.transport
const EnvPrefix = "CARGORELAY"

var configPath string

// LoadConfig 加载配置到 target
// 优先级：环境变量 > 配置文件 > target 中已有的默认值
// 配置文件路径：--config/-c > CARGORELAY_CONFIG > <执行目录>/config.yaml（不存在时跳过）
func LoadConfig(target any, opts ...config.Option) (config.Manager, error) {
	execDir, err := GetExecDir()
	if err != nil {
		return nil, fmt.Errorf("app: resolve executable directory: %w", err)
	}
	defaultPath := filepath.Join(execDir, "config.yaml")

	if pflag.Lookup("config") == nil {
		pflag.StringVarP(&configPath, "config", "c", defaultPath, "path to config file")
	}
	if !pflag.Parsed() {
		pflag.Parse()
	}

	explicit := pflag.CommandLine.Changed("config")
	path := configPath
	if !explicit {
		if env := os.Getenv(EnvPrefix + "_CONFIG"); env != "" {
			path, explicit = env, true
		}
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	mgr := config.NewManager(append(opts, config.WithViper(v))...)

	if _, statErr := os.Stat(path); statErr == nil {
		if err := mgr.LoadFile(path); err != nil {
			return nil, err
		}
		configPath = path
	} else if explicit || !errors.Is(statErr, os.ErrNotExist) {
		return nil, fmt.Errorf("app: config file %s: %w", path, statErr)
	} else {
		configPath = ""
	}

	if err := mgr.Unmarshal(target); err != nil {
		return nil, err
	}
	return mgr, nil
}

// GetExecDir 可执行文件所在目录（解析符号链接）
func GetExecDir() (string, error) {
	execPath, err := os.Executable()
	if err != nil {
		return "", err
	}
	if real, err := filepath.EvalSymlinks(execPath); err == nil {
		execPath = real
	}
	return filepath.Dir(execPath), nil
}

// GetConfigPath 实际加载的配置文件路径，未加载文件时为空
func GetConfigPath() string {
	return configPath
}
