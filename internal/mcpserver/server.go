// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes SageNote tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/sagenote/internal/apperr"
	"github.com/starford/sagenote/internal/assets"
	"github.com/starford/sagenote/internal/media"
	"github.com/starford/sagenote/internal/models"
	"github.com/starford/sagenote/internal/repository"
)

const guideURI = "sagenote://note-guide"

// Server wraps the MCP server with SageNote tools.
type Server struct {
	mcp      *server.MCPServer
	repo     *repository.Repository
	files    *assets.Dir
	renderer media.Renderer
	fetch    func(string) ([]byte, string, error)
}

// New creates a new MCP server with all SageNote tools registered.
func New(repo *repository.Repository, files *assets.Dir) *Server {
	s := &Server{repo: repo, files: files, renderer: media.PNGRenderer{}, fetch: fetchHTTP}

	s.mcp = server.NewMCPServer(
		"SageNote",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Case-insensitive substring search through note titles and content."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search text")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read a note as JSON, including checklist items."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Note id")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List every note, pinned first, most recently updated first. One line per note."),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("create_note",
		mcp.WithDescription("Create a text note. Read the guide first via get_note_guide or the "+guideURI+" resource."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Note title, must not be blank")),
		mcp.WithString("content", mcp.Description("Note body")),
		mcp.WithNumber("color", mcp.Description("Packed 0xAARRGGBB background color")),
	), s.createNote)

	s.mcp.AddTool(mcp.NewTool("create_list_note",
		mcp.WithDescription("Create a checklist note. Items start unchecked."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Note title, must not be blank")),
		mcp.WithArray("items", mcp.Required(), mcp.Description("Checklist entries in order"),
			mcp.Items(map[string]any{"type": "string"})),
		mcp.WithNumber("color", mcp.Description("Packed 0xAARRGGBB background color")),
	), s.createListNote)

	s.mcp.AddTool(mcp.NewTool("create_drawing_note",
		mcp.WithDescription("Create a drawing note from strokes. strokes is a JSON array of "+
			`{"color": 4278190080, "width": 5, "points": [{"x": 1, "y": 2}]} objects on an 800x800 canvas.`),
		mcp.WithString("title", mcp.Required(), mcp.Description("Note title, must not be blank")),
		mcp.WithString("strokes", mcp.Required(), mcp.Description("JSON array of strokes")),
		mcp.WithNumber("color", mcp.Description("Packed 0xAARRGGBB background color")),
	), s.createDrawingNote)

	s.mcp.AddTool(mcp.NewTool("create_audio_note",
		mcp.WithDescription("Create a voice note from a 3GP or AMR recording given as a base64 data URI or an http(s) URL."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Note title, must not be blank")),
		mcp.WithString("url", mcp.Required(), mcp.Description("data:audio/3gpp;base64,... or https://...")),
		mcp.WithNumber("color", mcp.Description("Packed 0xAARRGGBB background color")),
	), s.createAudioNote)

	s.mcp.AddTool(mcp.NewTool("toggle_pin",
		mcp.WithDescription("Flip the pinned flag of a note."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Note id")),
	), s.togglePin)

	s.mcp.AddTool(mcp.NewTool("delete_note",
		mcp.WithDescription("Delete a note and its drawing or audio file. Deleting a missing note succeeds."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Note id")),
	), s.deleteNote)

	s.mcp.AddTool(mcp.NewTool("get_note_guide",
		mcp.WithDescription("Returns the SageNote note kinds and field rules."),
	), s.getNoteGuide)

	s.mcp.AddResource(
		mcp.NewResource(guideURI, "Note Guide",
			mcp.WithResourceDescription("Note kinds and field rules."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readGuideResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func requireID(req mcp.CallToolRequest) (int64, error) {
	id, err := req.RequireInt("id")
	if err != nil {
		return 0, err
	}
	if id <= 0 {
		return 0, fmt.Errorf("invalid note id: %d", id)
	}
	return int64(id), nil
}

func requireTitle(req mcp.CallToolRequest) (string, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(title) == "" {
		return "", errors.New("title must not be blank")
	}
	return title, nil
}

// color reads the optional packed ARGB background. Values that are not a
// whole number in the uint32 range are rejected.
func color(req mcp.CallToolRequest) (models.Color, error) {
	v := req.GetFloat("color", float64(models.ColorWhite))
	if v < 0 || v > math.MaxUint32 || v != math.Trunc(v) {
		return 0, fmt.Errorf("color must be an integer between 0 and %d", uint32(math.MaxUint32))
	}
	return models.Color(uint32(v)), nil
}

// save inserts n and returns the stored note.
func (s *Server) save(ctx context.Context, n models.Note) (*mcp.CallToolResult, error) {
	id, err := s.repo.Insert(ctx, n)
	if err != nil {
		return nil, err
	}
	saved, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return jsonResult(saved), nil
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if strings.TrimSpace(query) == "" {
		return jsonResult([]models.Note{}), nil
	}
	notes, err := s.repo.SearchOnce(ctx, query)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if notes == nil {
		notes = []models.Note{}
	}
	return jsonResult(notes), nil
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireID(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %d", id)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(n), nil
}

func (s *Server) listNotes(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	notes, err := s.repo.List(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(notes) == 0 {
		return mcp.NewToolResultText("no notes"), nil
	}
	lines := make([]string, len(notes))
	for i, n := range notes {
		pin := ""
		if n.IsPinned {
			pin = " [pinned]"
		}
		lines[i] = fmt.Sprintf("%d\t%s\t%s%s", n.ID, n.Type, n.Title, pin)
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) createNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := requireTitle(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	bg, err := color(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content := req.GetString("content", "")
	res, err := s.save(ctx, models.NewTextNote(title, content, bg))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return res, nil
}

func (s *Server) createListNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := requireTitle(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	bg, err := color(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	texts, err := req.RequireStringSlice("items")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	items := make([]models.ListItem, 0, len(texts))
	for _, t := range texts {
		if strings.TrimSpace(t) == "" {
			continue
		}
		items = append(items, models.ListItem{Text: t})
	}
	res, err := s.save(ctx, models.NewListNote(title, items, bg))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return res, nil
}

func (s *Server) createDrawingNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := requireTitle(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	bg, err := color(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	raw, err := req.RequireString("strokes")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var strokes []media.Stroke
	if err := json.Unmarshal([]byte(raw), &strokes); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid strokes: %v", err)), nil
	}

	canvas := media.NewCanvas(0, 0)
	for _, st := range strokes {
		canvas.Add(st)
	}
	name, err := media.SaveDrawing(canvas, s.renderer, s.files)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.save(ctx, models.NewDrawingNote(title, name, bg))
	if err != nil {
		_ = s.files.Remove(name)
		return mcp.NewToolResultError(err.Error()), nil
	}
	return res, nil
}

func (s *Server) togglePin(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireID(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := s.repo.TogglePin(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %d", id)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(n), nil
}

func (s *Server) deleteNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireID(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.repo.DeleteByID(ctx, id); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %d", id)), nil
}

func (s *Server) getNoteGuide(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteGuide), nil
}

func (s *Server) readGuideResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      guideURI,
			MIMEType: "text/markdown",
			Text:     NoteGuide,
		},
	}, nil
}
