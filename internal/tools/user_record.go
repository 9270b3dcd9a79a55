package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// PersonLookup resolves a workspace user ID to a preferred display name.
type PersonLookup interface {
	PreferredName(ctx context.Context, userID string) (string, error)
}

// UserRecordTool lets the backend look up who it is talking to, so replies
// can address people by their directory name.
type UserRecordTool struct {
	lookup PersonLookup
}

// NewUserRecordTool creates the directory lookup tool.
func NewUserRecordTool(lookup PersonLookup) *UserRecordTool {
	return &UserRecordTool{lookup: lookup}
}

func (t *UserRecordTool) Name() string { return "user_record" }

func (t *UserRecordTool) Description() string {
	return "Looks up a workspace member's preferred display name by their user ID."
}

func (t *UserRecordTool) ParameterSchema() string {
	s := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"user_id": map[string]any{
				"type":        "string",
				"description": "Workspace user ID, e.g. U0123456789.",
			},
		},
		"required": []string{"user_id"},
	}
	b, _ := json.MarshalIndent(s, "", "  ")
	return string(b)
}

func (t *UserRecordTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	userID, _ := params["user_id"].(string)
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", fmt.Errorf("user_id is required")
	}

	name, err := t.lookup.PreferredName(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("looking up user %s: %w", userID, err)
	}

	out := map[string]string{"user_id": userID, "preferred_name": name}
	if name == "" {
		out["preferred_name"] = ""
		out["note"] = "no directory record found"
	}
	b, _ := json.Marshal(out)
	return string(b), nil
}
