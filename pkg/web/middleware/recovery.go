package middleware

import (
	"errors"
	"net"
	"net/http"
	"net/http/httputil"
	"os"
	"runtime/debug"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/cargorelay/pkg/logger"
)

// Recovery 适配 pkg/logger 的异常恢复中间件，onPanic 可为 nil
func Recovery(l logger.Logger, onPanic func(any)) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}

			httpRequest, _ := httputil.DumpRequest(c.Request, false)
			if isBrokenPipe(rec) {
				l.Warn("http broken pipe", "error", rec, "request", string(httpRequest))
				c.Abort()
				return
			}

			l.Error("http recovery from panic",
				"error", rec,
				"request", string(httpRequest),
				"stack", string(debug.Stack()),
			)
			if onPanic != nil {
				onPanic(rec)
			}
			c.AbortWithStatus(http.StatusInternalServerError)
		}()
		c.Next()
	}
}

func isBrokenPipe(rec any) bool {
	err, ok := rec.(error)
	if !ok {
		return false
	}
	var ne *net.OpError
	if !errors.As(err, &ne) {
		return false
	}
	var se *os.SyscallError
	if !errors.As(ne.Err, &se) {
		return false
	}
	msg := strings.ToLower(se.Error())
	return strings.Contains(msg, "broken pipe") || strings.Contains(msg, "connection reset by peer")
}
