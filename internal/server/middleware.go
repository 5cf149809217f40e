package server

import (
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/paysite/internal/payment/domain"
)

func requestMeta(c *gin.Context) domain.RequestMeta {
	return domain.RequestMeta{
		Method:    c.Request.Method,
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}
