package prometheus

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Register 注册采集器，重复注册同一指标时返回已有实例
func Register[T prometheus.Collector](r prometheus.Registerer, c T) (T, error) {
	if err := r.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
			return c, ErrMetricExists
		}
		return c, err
	}
	return c, nil
}

// MustRegister 同 Register，失败时 panic
func MustRegister[T prometheus.Collector](r prometheus.Registerer, c T) T {
	v, err := Register(r, c)
	if err != nil {
		panic(err)
	}
	return v
}
