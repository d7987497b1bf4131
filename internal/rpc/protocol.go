// Package rpc implements the daemon transport: newline-delimited JSON
// requests over a unix domain socket, one JSON object per line, plus a
// streaming watch_events channel for change notifications.
package rpc

import (
	"encoding/json"
	"time"

	"github.com/avickers/tempo/internal/types"
)

// ProtocolVersion is sent by clients and echoed in health responses so
// mismatched binaries can be diagnosed.
const ProtocolVersion = "1"

// Operation constants for every request a client can send.
const (
	OpPing     = "ping"
	OpHealth   = "health"
	OpShutdown = "shutdown"

	OpGetActivities     = "get_activities"
	OpGetActivityByName = "get_activity_by_name"
	OpAddActivity       = "add_activity"
	OpUpdateActivity    = "update_activity"
	OpRemoveActivity    = "remove_activity"
	OpChangeCategory    = "change_category"

	OpGetCategories  = "get_categories"
	OpGetCategoryID  = "get_category_id"
	OpAddCategory    = "add_category"
	OpUpdateCategory = "update_category"
	OpRemoveCategory = "remove_category"

	OpGetFact       = "get_fact"
	OpGetFacts      = "get_facts"
	OpGetOpenFact   = "get_open_fact"
	OpAddFact       = "add_fact"
	OpUpdateFact    = "update_fact"
	OpRemoveFact    = "remove_fact"
	OpStopTracking  = "stop_tracking"
	OpStopOrRestart = "stop_or_restart_tracking"
	OpToggle        = "toggle"

	OpGetTags                = "get_tags"
	OpGetTagIDs              = "get_tag_ids"
	OpUpdateAutocompleteTags = "update_autocomplete_tags"

	OpWatchEvents = "watch_events"
)

// Request is one client-to-daemon message.
type Request struct {
	Operation     string          `json:"operation"`
	Args          json.RawMessage `json:"args,omitempty"`
	ClientVersion string          `json:"client_version,omitempty"`
}

// Response is one daemon-to-client message. Code carries a machine-readable
// error class so clients can map failures back onto sentinel errors.
type Response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
	Code    string          `json:"code,omitempty"`
}

// Error codes carried in Response.Code.
const (
	CodeNotFound  = "not_found"
	CodeIntegrity = "integrity"
	CodeInternal  = "internal"
)

// HealthResult is the payload of a health response.
type HealthResult struct {
	Version       string `json:"version"`
	DBPath        string `json:"db_path"`
	PID           int    `json:"pid"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// GetActivitiesArgs selects whether soft-deleted activities are included.
type GetActivitiesArgs struct {
	IncludeDeleted bool `json:"include_deleted,omitempty"`
}

// GetActivityByNameArgs looks an activity up by name within a category
// (0 = uncategorized).
type GetActivityByNameArgs struct {
	Name       string `json:"name"`
	CategoryID int64  `json:"category_id,omitempty"`
	Resurrect  bool   `json:"resurrect,omitempty"`
}

// AddActivityArgs creates an activity.
type AddActivityArgs struct {
	Name       string `json:"name"`
	CategoryID int64  `json:"category_id,omitempty"`
}

// UpdateActivityArgs renames or recategorizes an activity.
type UpdateActivityArgs struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	CategoryID int64  `json:"category_id,omitempty"`
}

// ChangeCategoryArgs moves an activity between categories.
type ChangeCategoryArgs struct {
	ID         int64 `json:"id"`
	CategoryID int64 `json:"category_id"`
}

// IDArgs addresses an entity by id (remove_activity, remove_category,
// get_fact, remove_fact).
type IDArgs struct {
	ID int64 `json:"id"`
}

// NameArgs addresses an entity by name (get_category_id, add_category).
type NameArgs struct {
	Name string `json:"name"`
}

// UpdateCategoryArgs renames a category.
type UpdateCategoryArgs struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// GetFactsArgs selects facts overlapping a time span.
type GetFactsArgs struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// UpdateFactArgs replaces the fact with the given id.
type UpdateFactArgs struct {
	ID   int64         `json:"id"`
	Fact types.NewFact `json:"fact"`
}

// StopTrackingArgs closes the open fact at End.
type StopTrackingArgs struct {
	End time.Time `json:"end"`
}

// ToggleArgs closes the open fact, if any, at Now.
type ToggleArgs struct {
	Now time.Time `json:"now"`
}

// StopOrRestartArgs stops or restarts tracking at Now.
type StopOrRestartArgs struct {
	Now time.Time `json:"now"`
}

// RemoveFactResult reports whether a row was deleted.
type RemoveFactResult struct {
	Removed bool `json:"removed"`
}

// StopOrRestartResult carries the affected fact (nil on an empty database)
// and whether the call stopped tracking (false = restarted).
type StopOrRestartResult struct {
	Fact    *types.Fact `json:"fact,omitempty"`
	Stopped bool        `json:"stopped"`
}

// GetTagsArgs selects tags, optionally restricted to the autocomplete set.
type GetTagsArgs struct {
	AutocompleteOnly bool `json:"autocomplete_only,omitempty"`
}

// TagNamesArgs carries tag names (get_tag_ids, update_autocomplete_tags).
type TagNamesArgs struct {
	Names []string `json:"names"`
}

// GetTagIDsResult carries resolved tags and whether the tag set changed.
type GetTagIDsResult struct {
	Tags    []*types.Tag `json:"tags"`
	Mutated bool         `json:"mutated"`
}
