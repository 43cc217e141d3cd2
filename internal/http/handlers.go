package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/cortex/internal/journal"
	"github.com/fyrsmithlabs/cortex/internal/reflection"
	"github.com/fyrsmithlabs/cortex/internal/session"
)

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleStatus(c echo.Context) error {
	st, err := s.journal.Status(c.Request().Context())
	if err != nil {
		return s.toHTTPError(c, err)
	}

	resp := StatusResponse{
		Status:   "ok",
		Version:  s.registry.Version(),
		Sessions: st.Sessions,
		Tensions: st.Tensions,
		Access:   st.Access,
		Pattern:  st.Pattern,
	}
	if tel := s.registry.Telemetry(); tel != nil {
		h := tel.Health()
		resp.Telemetry = &h
		if h.Degraded {
			resp.Status = "degraded"
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleSubmit(c echo.Context) error {
	var req ThoughtRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid thought request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	res, err := s.journal.Submit(c.Request().Context(), req.Text)
	if err != nil {
		return s.toHTTPError(c, err)
	}
	return c.JSON(http.StatusCreated, res)
}

func (s *Server) handleSessions(c echo.Context) error {
	order := c.QueryParam("order")
	switch order {
	case "", "recent":
		order = "recent"
	case "chronological":
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "order must be recent or chronological")
	}

	sessions, err := s.journal.Sessions(c.Request().Context(), order == "chronological")
	if err != nil {
		return s.toHTTPError(c, err)
	}
	return c.JSON(http.StatusOK, SessionsResponse{Order: order, Count: len(sessions), Sessions: sessions})
}

// handleImport accepts the JSON array a browser export contains.
func (s *Server) handleImport(c echo.Context) error {
	var sessions []session.Session
	if err := json.NewDecoder(c.Request().Body).Decode(&sessions); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "body must be a JSON array of sessions")
	}

	res, err := s.journal.Import(c.Request().Context(), sessions)
	if err != nil {
		return s.toHTTPError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) handleClear(c echo.Context) error {
	if err := s.journal.Clear(c.Request().Context()); err != nil {
		return s.toHTTPError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handlePattern(c echo.Context) error {
	label, ok, err := s.journal.Pattern(c.Request().Context())
	if err != nil {
		return s.toHTTPError(c, err)
	}
	return c.JSON(http.StatusOK, PatternResponse{Found: ok, CoreTension: label})
}

func (s *Server) handleDrift(c echo.Context) error {
	d, ok, err := s.journal.Drift(c.Request().Context())
	if err != nil {
		return s.toHTTPError(c, err)
	}
	resp := DriftResponse{Found: ok}
	if ok {
		resp.Drift = &d
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) tensionMap(c echo.Context) (*journal.TensionMap, error) {
	opts, err := mapOptions(c)
	if err != nil {
		return nil, err
	}
	m, err := s.journal.TensionMap(c.Request().Context(), opts)
	if err != nil {
		return nil, s.toHTTPError(c, err)
	}
	return m, nil
}

func (s *Server) handleTensionMap(c echo.Context) error {
	m, err := s.tensionMap(c)
	if err != nil {
		return err
	}
	if c.QueryParam("format") == reflection.FormatDOT {
		dot := reflection.FormatDOTGraph(m.Nodes, m.Edges, m.Clusters)
		return c.Blob(http.StatusOK, reflection.ContentType(reflection.FormatDOT), []byte(dot))
	}
	return c.JSON(http.StatusOK, m)
}

func (s *Server) handleNodes(c echo.Context) error {
	m, err := s.tensionMap(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, m.Nodes)
}

func (s *Server) handleEdges(c echo.Context) error {
	m, err := s.tensionMap(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, m.Edges)
}

func (s *Server) handleClusters(c echo.Context) error {
	m, err := s.tensionMap(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, m.Clusters)
}

func (s *Server) handleTimeline(c echo.Context) error {
	tl, err := s.journal.Timeline(c.Request().Context())
	if err != nil {
		return s.toHTTPError(c, err)
	}
	return c.JSON(http.StatusOK, tl)
}

func (s *Server) handleReport(c echo.Context) error {
	opts, err := mapOptions(c)
	if err != nil {
		return err
	}
	format := c.QueryParam("format")
	if format == "" {
		format = reflection.FormatJSON
	}
	if !knownFormat(format) {
		return echo.NewHTTPError(http.StatusBadRequest,
			fmt.Sprintf("format must be one of %s", strings.Join(reflection.Formats(), ", ")))
	}

	report, err := s.journal.Report(c.Request().Context(), reflection.ReportOptions{
		Until:     opts.Until,
		Threshold: opts.Threshold,
	})
	if err != nil {
		return s.toHTTPError(c, err)
	}

	out, err := reflection.FormatReport(report, format)
	if err != nil {
		return s.toHTTPError(c, err)
	}
	return c.Blob(http.StatusOK, reflection.ContentType(format), out)
}

func knownFormat(format string) bool {
	for _, f := range reflection.Formats() {
		if f == format {
			return true
		}
	}
	return false
}

func nodeID(c echo.Context) (string, error) {
	id, err := url.PathUnescape(c.Param("id"))
	if err != nil || strings.TrimSpace(id) == "" {
		return "", echo.NewHTTPError(http.StatusBadRequest, "invalid node id")
	}
	return id, nil
}

func (s *Server) handleGetNote(c echo.Context) error {
	id, err := nodeID(c)
	if err != nil {
		return err
	}
	note, err := s.journal.Note(c.Request().Context(), id)
	if err != nil {
		return s.toHTTPError(c, err)
	}
	return c.JSON(http.StatusOK, NoteResponse{NodeID: id, Note: note})
}

func (s *Server) handleSetNote(c echo.Context) error {
	id, err := nodeID(c)
	if err != nil {
		return err
	}
	var req NoteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	if err := s.journal.SetNote(c.Request().Context(), id, req.Note); err != nil {
		return s.toHTTPError(c, err)
	}
	note := req.Note
	if strings.TrimSpace(note) == "" {
		note = ""
	}
	return c.JSON(http.StatusOK, NoteResponse{NodeID: id, Note: note})
}

func (s *Server) handleInvite(c echo.Context) error {
	code, err := url.PathUnescape(c.Param("code"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid invite code")
	}
	if err := s.journal.RedeemInvite(c.Request().Context(), code); err != nil {
		return s.toHTTPError(c, err)
	}
	return c.JSON(http.StatusOK, InviteResponse{Access: true})
}

// mapOptions parses the until and threshold query parameters.
func mapOptions(c echo.Context) (journal.MapOptions, error) {
	var opts journal.MapOptions

	if v := c.QueryParam("until"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return opts, echo.NewHTTPError(http.StatusBadRequest, "until must be an RFC 3339 timestamp")
		}
		opts.Until = &t
	}

	if v := c.QueryParam("threshold"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return opts, echo.NewHTTPError(http.StatusBadRequest, "threshold must be an integer of at least 1")
		}
		opts.Threshold = n
	}
	return opts, nil
}
