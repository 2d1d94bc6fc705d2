package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type errorBody struct {
	Detail string `json:"detail"`
}

// Success writes data as the bare JSON body. Clients of /chat and /stats
// decode the payload directly, so no envelope is added.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

func Error(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, errorBody{Detail: detail})
}
