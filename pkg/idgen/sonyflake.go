package idgen

import (
	"os"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
	"github.com/sony/sonyflake"
)

// Config Sonyflake 配置
type Config struct {
	// MachineID 为 0 时取私网 IP 低 16 位，取不到时用主机名哈希
	MachineID uint16    `mapstructure:"machine_id"`
	StartTime time.Time `mapstructure:"start_time"`
}

type sonyflakeGenerator struct {
	sf *sonyflake.Sonyflake
}

// NewSonyflake 创建基于 Sonyflake 的 ID 生成器
func NewSonyflake(cfg Config) (Generator, error) {
	if cfg.StartTime.IsZero() {
		cfg.StartTime = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	}

	settings := sonyflake.Settings{StartTime: cfg.StartTime}
	if cfg.MachineID != 0 {
		id := cfg.MachineID
		settings.MachineID = func() (uint16, error) { return id, nil }
	}

	sf, err := sonyflake.New(settings)
	if err != nil && cfg.MachineID == 0 {
		// 容器内常见：没有私网地址
		settings.MachineID = hostMachineID
		sf, err = sonyflake.New(settings)
	}
	if err != nil {
		return nil, errors.Wrap(err, "idgen: create sonyflake")
	}
	return &sonyflakeGenerator{sf: sf}, nil
}

func hostMachineID() (uint16, error) {
	host, err := os.Hostname()
	if err != nil {
		return 0, errors.Wrap(err, "idgen: hostname")
	}
	return uint16(xxhash.Sum64String(host)), nil
}

func (g *sonyflakeGenerator) NextID() (uint64, error) {
	id, err := g.sf.NextID()
	if err != nil {
		return 0, errors.Wrap(err, "idgen: next id")
	}
	return id, nil
}
