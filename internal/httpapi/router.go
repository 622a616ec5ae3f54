// Package httpapi is the read-only status API (SPEC_FULL.md DOMAIN STACK
// item 2), grounded on the teacher's internal/server/router.go but
// stripped to its observational surface: it never issues an Instruction
// or otherwise mutates supervisor state, only reads the published
// snapshot (supervisor.Supervisor.Snapshot).
package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arashiyama/supervisr/internal/metrics"
	"github.com/arashiyama/supervisr/internal/supervisor"
)

// Router serves GET-only endpoints over a supervisor's published
// snapshot.
type Router struct {
	sup *supervisor.Supervisor
}

// NewRouter builds a Router reading from sup.
func NewRouter(sup *supervisor.Supervisor) *Router {
	return &Router{sup: sup}
}

// Handler returns an http.Handler mountable in any server/mux (gin's own,
// or any other framework that accepts a plain http.Handler).
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	g.GET("/status", r.handleStatus)
	g.GET("/status/:program", r.handleStatusOne)
	g.GET("/metrics", gin.WrapH(metrics.Handler()))
	return g
}

func (r *Router) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, r.sup.Snapshot())
}

func (r *Router) handleStatusOne(c *gin.Context) {
	name := c.Param("program")
	var out []supervisor.ChildView
	for _, v := range r.sup.Snapshot() {
		if v.ProgramName == name {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown program", "program": name})
		return
	}
	c.JSON(http.StatusOK, out)
}
