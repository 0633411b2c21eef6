package breaker

import (
	"time"

	"canteen/internal/logger"

	"github.com/sony/gobreaker/v2"
)

// New 熔断器：至少 3 次请求且失败率达到 60% 时打开，30 秒后半开探测
func New(name string) *gobreaker.CircuitBreaker[struct{}] {
	var st gobreaker.Settings
	st.Name = name
	st.Timeout = 30 * time.Second
	st.ReadyToTrip = func(counts gobreaker.Counts) bool {
		failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
		return counts.Requests >= 3 && failureRatio >= 0.6
	}
	st.OnStateChange = func(name string, from, to gobreaker.State) {
		logger.Warnw("熔断器状态变化", "name", name, "from", from.String(), "to", to.String())
	}
	return gobreaker.NewCircuitBreaker[struct{}](st)
}
