package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// StatusError 可映射为 HTTP 状态码的业务错误
type StatusError interface {
	error
	HTTPStatus() int
	PublicMessage() string
}

const genericMessage = "服务器内部错误"

// Success 200 + 业务数据
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Created 201 + 业务数据
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

// Error 统一错误体 {"error": message}
func Error(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}

func ParamError(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

// Fail 按错误类型决定状态码；未识别的错误一律 500，且不暴露内部信息
func Fail(c *gin.Context, err error) {
	var se StatusError
	if errors.As(err, &se) {
		status := se.HTTPStatus()
		if status >= http.StatusInternalServerError {
			_ = c.Error(err)
		}
		Error(c, status, se.PublicMessage())
		return
	}
	_ = c.Error(err)
	Error(c, http.StatusInternalServerError, genericMessage)
}
