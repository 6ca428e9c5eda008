package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/Pariharx7/CivicTrack/controllers"
)

// IssueRoutes sets up the issue routes. The general listing is public;
// everything else requires authentication, and status updates and
// deletes are admin only.
func IssueRoutes(r *gin.Engine, ic *controllers.IssueController, auth, adminOnly, reportLimit gin.HandlerFunc) {
	issues := r.Group("/api/issues")
	{
		issues.POST("/report", auth, reportLimit, ic.ReportIssue)
		issues.GET("/nearby", auth, ic.ListNearbyIssues)
		issues.GET("", ic.ListIssues)
		issues.GET("/:id", auth, ic.GetIssueDetail)
		issues.PATCH("/:id", auth, adminOnly, ic.UpdateIssueStatus)
		issues.POST("/:id/flag", auth, ic.FlagIssue)
		issues.DELETE("/:id", auth, adminOnly, ic.DeleteIssue)
	}
}
