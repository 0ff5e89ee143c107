package web

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// 常见业务错误码
const (
	CodeOK            = 0
	CodeInvalidParams = 40001
	CodeUnauthorized  = 40002
	CodeForbidden     = 40003
	CodeNotFound      = 40004
	CodeInternalError = 50000
	CodeUnavailable   = 50003
)

// ErrorBody 错误响应结构
type ErrorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// JSON 原样输出数据
// 诊断接口的响应结构由调用方定义，不做统一包装
func JSON(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

// Error 错误响应
func Error(c *gin.Context, httpStatus int, code int, message string) {
	c.JSON(httpStatus, ErrorBody{Code: code, Message: message})
}

// AbortWithError 中断并返回错误
func AbortWithError(c *gin.Context, httpStatus int, code int, message string) {
	c.AbortWithStatusJSON(httpStatus, ErrorBody{Code: code, Message: message})
}
