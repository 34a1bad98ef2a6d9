package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/newrelic"
)

// NewRelicMiddleware returns a gin middleware for New Relic tracing
func NewRelicMiddleware(app *newrelic.Application) gin.HandlerFunc {
	return func(c *gin.Context) {
		txn := app.StartTransaction(c.Request.Method + " " + c.FullPath())
		defer txn.End()

		txn.SetWebRequestHTTP(c.Request)
		c.Writer = &txnWriter{ResponseWriter: c.Writer, txn: txn}
		c.Request = c.Request.WithContext(newrelic.NewContext(c.Request.Context(), txn))

		c.Next()
	}
}

type txnWriter struct {
	gin.ResponseWriter
	txn *newrelic.Transaction
}

func (w *txnWriter) WriteHeader(statusCode int) {
	w.txn.SetWebResponse(nil).WriteHeader(statusCode)
	w.ResponseWriter.WriteHeader(statusCode)
}
