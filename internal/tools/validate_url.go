package tools

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/scriptoria/deepresearch/internal/fetch"
)

type URLChecker interface {
	Check(ctx context.Context, rawURL string) fetch.URLCheck
}

// ValidateURL reports whether a url answers. A dead url is still a
// successful call; the outcome is in the fetch.URLCheck payload.
type ValidateURL struct {
	checker URLChecker
}

func NewValidateURL(checker URLChecker) *ValidateURL {
	return &ValidateURL{checker: checker}
}

func (t *ValidateURL) Name() string { return NameValidateURL }

func (t *ValidateURL) Spec() mcp.Tool {
	return mcp.NewTool(NameValidateURL,
		mcp.WithDescription("Check whether a url is reachable. Returns accessibility, status code, content type and final url."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("http or https url to check"),
		),
	)
}

func (t *ValidateURL) Invoke(ctx context.Context, args Args) Result {
	check := t.checker.Check(ctx, args.String("url"))
	encoded, _ := json.Marshal(check)
	return Result{Tool: NameValidateURL, OK: true, Message: string(encoded), Data: check}
}
