package mcp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"demand-matrix/internal/config"
	"demand-matrix/internal/matrix"
	"demand-matrix/internal/period"
	"demand-matrix/internal/resolve"
	"demand-matrix/internal/tasks"

	"github.com/google/uuid"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
)

// Version is reported to MCP clients.
var Version = "0.1.0"

// maxHistory bounds how many built or filtered matrices the server keeps addressable.
const maxHistory = 16

// Server holds the state for the MCP server.
type Server struct {
	cfg      *config.AppConfig
	engine   *matrix.Engine
	resolver *resolve.Service
	tasks    tasks.Source
	periods  period.Source

	mu       sync.RWMutex
	matrices map[string]*storedMatrix
	order    []string
	activeID string
}

type storedMatrix struct {
	ID       string
	ParentID string
	Matrix   matrix.Matrix
	BuiltAt  time.Time
}

// NewServer creates a new MCP server. periods may be nil, in which case
// requests without explicit months get the engine's synthesized axis.
func NewServer(cfg *config.AppConfig, engine *matrix.Engine, resolver *resolve.Service, source tasks.Source, periods period.Source) *Server {
	if cfg == nil {
		cfg = &config.AppConfig{}
	}
	return &Server{
		cfg:      cfg,
		engine:   engine,
		resolver: resolver,
		tasks:    source,
		periods:  periods,
		matrices: make(map[string]*storedMatrix),
	}
}

// Serve runs the MCP protocol over stdio until ctx is done or the client disconnects.
func (s *Server) Serve(ctx context.Context) error {
	server := s.MCPServer()
	log.Info().Str("version", Version).Msg("Demand matrix MCP server listening on stdio")
	if err := server.Run(ctx, &sdk.StdioTransport{}); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}

// MCPServer returns a protocol server with every tool registered.
func (s *Server) MCPServer() *sdk.Server {
	server := sdk.NewServer(&sdk.Implementation{Name: "demand-matrix", Version: Version}, nil)
	s.registerTools(server)
	return server
}

// remember stores m and returns its id. An empty parentID marks a fresh build.
func (s *Server) remember(m matrix.Matrix, parentID string) string {
	id := uuid.New().String()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.matrices[id] = &storedMatrix{ID: id, ParentID: parentID, Matrix: m, BuiltAt: s.engine.Now()}
	s.order = append(s.order, id)
	if len(s.order) > maxHistory {
		evicted := s.order[0]
		s.order = s.order[1:]
		delete(s.matrices, evicted)
		log.Debug().Str("matrix", evicted).Msg("Evicted matrix from history")
	}
	if parentID == "" {
		s.activeID = id
	}
	return id
}

// lookup returns the matrix with id, or the most recent build when id is empty.
func (s *Server) lookup(id string) (*storedMatrix, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if id == "" {
		id = s.activeID
	}
	if id == "" {
		return nil, fmt.Errorf("no matrix built yet; call build_demand_matrix first")
	}
	sm, ok := s.matrices[id]
	if !ok {
		return nil, fmt.Errorf("unknown matrix_id %q; it may have been evicted, rebuild the matrix", id)
	}
	return sm, nil
}
