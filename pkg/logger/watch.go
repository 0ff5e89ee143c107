package logger

import "github.com/lk2023060901/cargorelay/pkg/config"

// WatchLevel 监听配置文件，key 对应的等级变化后立即生效
//
// 未加载配置文件时返回 config.ErrNoConfigFile
func WatchLevel(mgr config.Manager, key string, l *BaseLogger) error {
	return mgr.Watch(func() {
		level := Level(mgr.GetString(key))
		if level == "" || level == l.GetLevel() {
			return
		}
		if err := l.SetLevel(level); err != nil {
			l.Warn("ignore log level change", "key", key, "error", err)
			return
		}
		l.Info("log level changed", "level", string(level))
	})
}
