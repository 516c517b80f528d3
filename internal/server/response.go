package server

import "github.com/gin-gonic/gin"

// Response is the JSON envelope for every endpoint.
type Response struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

func success(c *gin.Context, statusCode int, data any) {
	c.JSON(statusCode, Response{Status: "success", Data: data})
}

func fail(c *gin.Context, statusCode int, err error, message string) {
	resp := Response{Status: "error", Message: message}
	if err != nil {
		resp.Error = err.Error()
	}
	c.JSON(statusCode, resp)
}
