// ABOUTME: MCP resource implementations for the Garmin session and today's data.
// ABOUTME: Provides garmin://session and garmin://today resources.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/harperreed/garmin-mcp/internal/models"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	sessionURI = "garmin://session"
	todayURI   = "garmin://today"
)

func (s *Server) registerResources() {
	// garmin://session - authentication state, never contacts Garmin
	s.mcpServer.AddResource(&mcp.Resource{
		URI:         sessionURI,
		Name:        "Garmin Session",
		Description: "Whether the server is authenticated, how, and when the access token expires",
		MIMEType:    "application/json",
	}, s.handleSessionResource)

	// garmin://today - today's daily summary
	s.mcpServer.AddResource(&mcp.Resource{
		URI:         todayURI,
		Name:        "Today's Garmin Summary",
		Description: "The daily summary for today",
		MIMEType:    "application/json",
	}, s.handleTodayResource)
}

// Resource handlers

func (s *Server) handleSessionResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	return jsonResource(sessionURI, s.sessions.Status())
}

func (s *Server) handleTodayResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	sess, err := s.sessions.Session(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	today := s.now().Format(models.DateLayout)
	summary, err := sess.Client.UserSummary(ctx, sess.Profile.DisplayName, today)
	if err != nil {
		return nil, fmt.Errorf("failed to get daily summary: %w", err)
	}

	return jsonResource(todayURI, map[string]any{
		"date":         today,
		"display_name": sess.Profile.DisplayName,
		"summary":      summary,
	})
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}
