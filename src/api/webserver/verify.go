package webserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stake-plus/validai/src/types"
	"github.com/stake-plus/validai/src/verification"
)

type Verify struct {
	verifier Verifier
}

func NewVerify(v Verifier) Verify {
	return Verify{verifier: v}
}

// Create runs a verification. Validation failures answer 400 with an ErrorResponse;
// every other outcome answers with the envelope and its status code.
func (h Verify) Create(c *gin.Context) {
	var req types.VerificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, codeInvalidJSON, "request body must be a JSON object with \"text\" and/or \"url\": "+err.Error())
		return
	}

	ctx := verification.WithRequestID(c.Request.Context(), c.GetString(requestIDKey))
	resp := h.verifier.Verify(ctx, req)
	if resp.Status() == types.StatusError && resp.StatusCode() == http.StatusBadRequest {
		c.JSON(http.StatusBadRequest, newErrorResponse(http.StatusBadRequest, resp.ErrorCode(), resp.ErrorMessage()))
		return
	}
	c.JSON(resp.StatusCode(), resp)
}
