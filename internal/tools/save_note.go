package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/scriptoria/deepresearch/internal/notes"
	"github.com/scriptoria/deepresearch/internal/validation"
)

type SaveNote struct {
	store  notes.Store
	logger *zap.Logger
}

// NewSaveNote builds save_note. Appends are not retried since a partial
// write followed by a retry would duplicate text.
func NewSaveNote(store notes.Store, logger *zap.Logger) *SaveNote {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SaveNote{store: store, logger: logger}
}

func (t *SaveNote) Name() string { return NameSaveNote }

func (t *SaveNote) Spec() mcp.Tool {
	return mcp.NewTool(NameSaveNote,
		mcp.WithDescription("Append text to a markdown note. Existing notes are never overwritten."),
		mcp.WithString("filename",
			mcp.Required(),
			mcp.Description("Filename for the note (will be sanitized, .md enforced)"),
			mcp.MaxLength(100),
		),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("Text content to append"),
			mcp.MinLength(1),
		),
	)
}

func (t *SaveNote) Invoke(ctx context.Context, args Args) Result {
	filename, err := validation.Filename(args.String("filename"))
	if err != nil {
		return failure(NameSaveNote, KindValidation, "Save error: "+err.Error())
	}
	text, err := validation.NoteText(args.String("text"))
	if err != nil {
		return failure(NameSaveNote, KindValidation, "Save error: "+err.Error())
	}
	if t.store == nil {
		return failure(NameSaveNote, KindConfiguration, "Save error: no note storage configured")
	}

	location, err := t.store.Append(ctx, filename, text)
	if err != nil {
		t.logger.Error("saving note failed", zap.String("filename", filename), zap.String("backend", t.store.Backend()), zap.Error(err))
		return failure(NameSaveNote, KindTransient, "File save error: "+err.Error())
	}
	t.logger.Info("saved note", zap.String("location", location))
	return Result{Tool: NameSaveNote, OK: true, Message: fmt.Sprintf("Saved to %s", location), Data: location}
}
