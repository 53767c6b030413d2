package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/campusvault/internal/common"
	"github.com/gin-gonic/gin"
)

// errorBody is the only shape an error takes on the wire. Kind is stable
// for clients; Message is safe to display.
type errorBody struct {
	Kind    common.Kind `json:"kind"`
	Message string      `json:"message"`
}

var kindStatus = map[common.Kind]int{
	common.KindValidation:        http.StatusBadRequest,
	common.KindInvalidAmount:     http.StatusBadRequest,
	common.KindNotFound:          http.StatusNotFound,
	common.KindUnauthorized:      http.StatusUnauthorized,
	common.KindPermission:        http.StatusForbidden,
	common.KindInsufficientFunds: http.StatusPaymentRequired,
	common.KindInsufficientQuota: http.StatusInsufficientStorage,
	common.KindQuotaExhausted:    http.StatusInsufficientStorage,
	common.KindNoActivePlan:      http.StatusPaymentRequired,
	common.KindConflict:          http.StatusConflict,
	common.KindExternalService:   http.StatusBadGateway,
	common.KindInternal:          http.StatusInternalServerError,
}

func statusFor(kind common.Kind) int {
	if s, ok := kindStatus[kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// writeError renders err and aborts the chain. Internal details are
// logged by the access log through c.Error, never sent.
func writeError(c *gin.Context, err error) {
	e := common.AsError(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(statusFor(e.Kind), errorBody{Kind: e.Kind, Message: e.Message})
}

func badRequest(c *gin.Context, msg string) {
	writeError(c, common.Validation(msg))
}
