package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"remcon/pkg/errors"
	"remcon/pkg/feature"
	"remcon/pkg/protocol"
	"remcon/pkg/session"

	"github.com/gin-gonic/gin"
)

// agentInfo is one row of the roster response
type agentInfo struct {
	ID          string    `json:"id"`
	Hostname    string    `json:"hostname"`
	OS          string    `json:"os"`
	Arch        string    `json:"arch"`
	IP          string    `json:"ip"`
	PublicIP    string    `json:"public_ip"`
	Status      string    `json:"status"`
	Connected   bool      `json:"connected"`
	ConnectedAt time.Time `json:"connected_at"`
	LastSeen    time.Time `json:"last_seen"`
}

// handleAgents lists the persisted roster, overlaying live session state
func (s *Server) handleAgents(c *gin.Context) {
	agents, err := s.store.GetAllAgents()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	response := make([]agentInfo, 0, len(agents))
	seen := make(map[string]bool, len(agents))
	for _, meta := range agents {
		_, live := s.registry.Get(meta.ID)
		seen[meta.ID] = true
		response = append(response, agentInfo{
			ID:          meta.ID,
			Hostname:    meta.Hostname,
			OS:          meta.OS,
			Arch:        meta.Arch,
			IP:          meta.IP,
			PublicIP:    meta.PublicIP,
			Status:      meta.Status,
			Connected:   live,
			ConnectedAt: meta.ConnectedAt,
			LastSeen:    meta.LastSeen,
		})
	}

	// Sessions not yet persisted still show up
	for _, sess := range s.registry.All() {
		if seen[sess.ID()] {
			continue
		}
		meta := sess.Metadata()
		response = append(response, agentInfo{
			ID:          meta.ID,
			Hostname:    meta.Hostname,
			OS:          meta.OS,
			Arch:        meta.Arch,
			IP:          meta.IP,
			PublicIP:    meta.PublicIP,
			Status:      meta.Status,
			Connected:   true,
			ConnectedAt: meta.ConnectedAt,
			LastSeen:    meta.LastSeen,
		})
	}

	c.JSON(http.StatusOK, response)
}

// handleStats reports roster counts
func (s *Server) handleStats(c *gin.Context) {
	total, online, offline, err := s.store.GetStats()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"total":    total,
		"online":   online,
		"offline":  offline,
		"sessions": s.registry.Count(),
	})
}

// handleDeleteAgent removes an agent from the roster, disconnecting it
// first if live.
func (s *Server) handleDeleteAgent(c *gin.Context) {
	id := c.Param("id")
	s.registry.Unregister(id)
	if err := s.store.DeleteAgent(id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

// liveSession resolves the path agent id to a live session, writing the
// error response itself when there is none.
func (s *Server) liveSession(c *gin.Context) (*session.Session, bool) {
	sess, ok := s.registry.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": errors.ErrAgentNotFound.Error()})
		return nil, false
	}
	return sess, true
}

func (s *Server) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), s.cfg.Transport.RequestTimeout())
}

// handleProcesses refreshes and returns the agent's process snapshot
func (s *Server) handleProcesses(c *gin.Context) {
	sess, ok := s.liveSession(c)
	if !ok {
		return
	}

	tm := feature.AttachTaskManager(s.router, sess)

	snapshot := make(chan []protocol.ProcessEntry, 1)
	unsubscribe := tm.OnProcesses(func(entries []protocol.ProcessEntry) {
		select {
		case snapshot <- entries:
		default:
		}
	})
	defer unsubscribe()

	if err := tm.RefreshProcesses(); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	select {
	case entries := <-snapshot:
		c.JSON(http.StatusOK, gin.H{"processes": entries})
	case <-ctx.Done():
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": errors.ErrRequestTimeout.Error()})
	}
}

// processActionRequest is the body of a process action call
type processActionRequest struct {
	Action string `json:"action" binding:"required"`
	PID    int32  `json:"pid"`
	Name   string `json:"name"`
}

// handleProcessAction starts or ends a process on the agent
func (s *Server) handleProcessAction(c *gin.Context) {
	sess, ok := s.liveSession(c)
	if !ok {
		return
	}

	var req processActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tm := feature.AttachTaskManager(s.router, sess)

	results := make(chan protocol.ProcessActionResultPayload, 1)
	unsubscribe := tm.OnActionResult(func(r protocol.ProcessActionResultPayload) {
		if string(r.Action) != req.Action {
			return
		}
		select {
		case results <- r:
		default:
		}
	})
	defer unsubscribe()

	var err error
	switch protocol.ProcessAction(req.Action) {
	case protocol.ActionStart:
		if req.Name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "start requires a process name"})
			return
		}
		err = tm.StartProcess(req.Name)
	case protocol.ActionEnd:
		if req.PID <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "end requires a pid"})
			return
		}
		err = tm.EndProcess(req.PID)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown action: " + req.Action})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	select {
	case r := <-results:
		c.JSON(http.StatusOK, gin.H{
			"action":  r.Action,
			"success": r.Success,
			"pid":     r.PID,
			"name":    r.Name,
		})
	case <-ctx.Done():
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": errors.ErrRequestTimeout.Error()})
	}
}

// dumpRequest is the body of a memory dump call
type dumpRequest struct {
	PID int32 `json:"pid" binding:"required"`
}

// handleDump writes a memory dump of one process on the agent
func (s *Server) handleDump(c *gin.Context) {
	sess, ok := s.liveSession(c)
	if !ok {
		return
	}

	var req dumpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	d := feature.AttachDump(s.router, sess, 0)

	result, err := d.RequestDump(c.Request.Context(), req.PID)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      result.Success,
		"pid":          result.PID,
		"process_name": result.ProcessName,
		"dump_path":    result.DumpPath,
		"message":      result.Message(),
	})
}

// handlePreview captures one screen frame from the agent
func (s *Server) handlePreview(c *gin.Context) {
	sess, ok := s.liveSession(c)
	if !ok {
		return
	}

	quality := int32(80)
	if q, err := paramInt32(c.Query("quality")); err == nil && q != 0 {
		quality = q
	}
	monitor := int32(0)
	if m, err := paramInt32(c.Query("monitor")); err == nil {
		monitor = m
	}

	pv := feature.AttachPreview(s.router, sess, s.cfg.Transport.RequestTimeout())

	ctx, cancel := s.requestContext(c)
	defer cancel()

	frame, err := pv.RequestPreview(ctx, quality, monitor)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"image":      frame.Image,
		"quality":    frame.Quality,
		"monitor":    frame.Monitor,
		"resolution": frame.Resolution,
	})
}

// execRequest is the body of a shell execution call
type execRequest struct {
	Command string `json:"command" binding:"required"`
}

// handleExec runs a shell command on the agent
func (s *Server) handleExec(c *gin.Context) {
	sess, ok := s.liveSession(c)
	if !ok {
		return
	}

	var req execRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sh := feature.AttachShell(s.router, sess, s.cfg.Transport.RequestTimeout())

	ctx, cancel := s.requestContext(c)
	defer cancel()

	result, err := sh.Run(ctx, req.Command)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   result.Success,
		"output":    result.Output,
		"error":     result.Error,
		"exit_code": result.ExitCode,
	})
}

func paramInt32(s string) (int32, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(s, 10, 32)
	return int32(v), err
}
