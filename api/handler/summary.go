package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/trawlkit/trawl/models"
)

// SummaryReader loads the last published run summary.
// *store.FileStore satisfies it.
type SummaryReader interface {
	ReadSummary(ctx context.Context) (models.RunSummary, error)
}

// Summary returns a handler for GET /api/v1/summary: the metadata of
// the last published run, 404 before anything has been published.
func Summary(st SummaryReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		sum, err := st.ReadSummary(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{
				"error": models.ErrorDetail{
					Code:    models.ErrCodeStore,
					Message: "no run summary published yet",
				},
			})
			return
		}
		c.JSON(http.StatusOK, sum)
	}
}
