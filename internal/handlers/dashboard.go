package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/studhelper/studhelper/internal/services"
	"github.com/studhelper/studhelper/pkg/errors"
	"github.com/studhelper/studhelper/pkg/response"
)

// DashboardHandler serves the read-only reporting API.
type DashboardHandler struct {
	domain    *services.Domain
	host      string
	botHandle string
}

// NewDashboardHandler constructs the dashboard handler. host and botHandle build invite links.
func NewDashboardHandler(domain *services.Domain, host, botHandle string) *DashboardHandler {
	return &DashboardHandler{domain: domain, host: host, botHandle: botHandle}
}

// GET /api/dashboard/teams
func (h *DashboardHandler) Teams(c *gin.Context) {
	teams, err := h.domain.Dashboard.Teams(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, teams)
}

// GET /api/dashboard/teams/:id
func (h *DashboardHandler) Team(c *gin.Context) {
	teamID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	team, err := h.domain.Dashboard.Team(requestContext(c), teamID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"team":        team,
		"invite_link": services.InviteLink(h.host, h.botHandle, team.InviteCode),
	})
}

// GET /api/dashboard/teams/:id/stats
func (h *DashboardHandler) TeamStats(c *gin.Context) {
	teamID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	ctx := requestContext(c)
	if _, err := h.domain.Teams.GetByID(ctx, teamID); err != nil {
		response.Error(c, err)
		return
	}
	stats, err := h.domain.Stats.TeamStats(ctx, teamID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, stats)
}

// GET /api/dashboard/teams/:id/invite.png
func (h *DashboardHandler) InviteQR(c *gin.Context) {
	teamID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	team, err := h.domain.Teams.GetByID(requestContext(c), teamID)
	if err != nil {
		response.Error(c, err)
		return
	}
	png, err := services.InviteQRCode(h.host, h.botHandle, team.InviteCode)
	if err != nil {
		response.Error(c, errors.ErrInternalServer.WithInternal(err))
		return
	}
	c.Header("Cache-Control", "private, max-age=300")
	c.Data(http.StatusOK, "image/png", png)
}

// GET /api/dashboard/reports?team=&student=&sprint=&page=&per_page=
// team accepts either a numeric id or a name fragment.
func (h *DashboardHandler) Reports(c *gin.Context) {
	filter := services.ReportFilter{
		Student: strings.TrimSpace(c.Query("student")),
		Sprint:  parseIntQuery(c, "sprint", 0),
		Page:    parseIntQuery(c, "page", 1),
		PerPage: parseIntQuery(c, "per_page", 0),
	}
	if team := strings.TrimSpace(c.Query("team")); team != "" {
		if id, err := strconv.ParseInt(team, 10, 64); err == nil && id > 0 {
			filter.TeamID = id
		} else {
			filter.Team = team
		}
	}
	if filter.Sprint < 0 || filter.Sprint > h.domain.Config.MaxSprint {
		response.Error(c, services.ErrInvalidSprint)
		return
	}

	reports, total, err := h.domain.Dashboard.Reports(requestContext(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	page, perPage := filter.Pagination()
	response.SuccessWithMeta(c, http.StatusOK, reports, response.NewMeta(page, perPage, total))
}

// GET /api/dashboard/statistics
func (h *DashboardHandler) Statistics(c *gin.Context) {
	ctx := requestContext(c)
	reports, err := h.domain.Dashboard.ReportStatistics(ctx)
	if err != nil {
		response.Error(c, err)
		return
	}
	counts, err := h.domain.Dashboard.Counts(ctx)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"reports": reports,
		"totals":  counts,
	})
}
