package handlers

import (
	"github.com/99designs/gqlgen/graphql/handler"
	"github.com/99designs/gqlgen/graphql/handler/extension"
	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/wholesale_backend/graph"
	"github.com/ravilushqa/otelgqlgen"
)

const graphqlComplexityLimit = 20000

// graphqlHandler serves the read-only catalog, stock and order queries.
func (h *Handler) graphqlHandler() gin.HandlerFunc {
	srv := handler.NewDefaultServer(graph.NewExecutableSchema(&graph.Resolver{Store: h.Store}))
	srv.Use(extension.FixedComplexityLimit(graphqlComplexityLimit))
	srv.Use(otelgqlgen.Middleware())

	return func(c *gin.Context) {
		srv.ServeHTTP(c.Writer, c.Request)
	}
}
