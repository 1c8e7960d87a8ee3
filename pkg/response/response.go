package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	CodeSuccess     = 0
	CodeParamError  = 400
	CodeNotFound    = 404
	CodeServerError = 500
)

const (
	CodeInvalidAmount          = 1001 // 金额不合法（非正数或超出欠款）
	CodeInvalidOperation       = 1002 // 操作不合法（如冲正退款流水）
	CodeRecordNotFound         = 1003 // 客户/赊购单/流水不存在
	CodeOperationInProgress    = 1004 // 该客户已有在途操作
	CodeConflictRetryExhausted = 1005 // 并发冲突重试耗尽
	CodeStoreUnavailable       = 1006 // 存储暂不可用
)

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(http.StatusOK, Response{
		Code:    code,
		Message: message,
	})
}

func ParamError(c *gin.Context, message string) {
	Error(c, CodeParamError, message)
}

func ServerError(c *gin.Context, message string) {
	Error(c, CodeServerError, message)
}

func BusinessError(c *gin.Context, code int, message string) {
	Error(c, code, message)
}
