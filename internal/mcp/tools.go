package mcp

// SceneReadInput defines the input schema for the scene_read tool.
type SceneReadInput struct {
	Project     string `json:"project" jsonschema:"project or show name"`
	SceneNumber int    `json:"scene_number" jsonschema:"the scene number to read"`
	Season      *int   `json:"season,omitempty" jsonschema:"season number, for serialized shows"`
	Episode     *int   `json:"episode,omitempty" jsonschema:"episode number, for serialized shows"`
}

// SceneReadOutput defines the output schema for the scene_read tool.
type SceneReadOutput struct {
	Heading      string `json:"heading"`
	Location     string `json:"location"`
	TimeOfDay    string `json:"time_of_day"`
	Content      string `json:"content"`
	SessionToken string `json:"session_token" jsonschema:"pass this to scene_update to prove no one else changed the scene first"`
	ExpiresAt    string `json:"expires_at" jsonschema:"RFC3339 timestamp the session token stops being valid"`
}

// SceneAddInput defines the input schema for the scene_add tool.
type SceneAddInput struct {
	Project     string `json:"project" jsonschema:"project or show name"`
	SceneNumber int    `json:"scene_number" jsonschema:"the reference scene number to insert before or after"`
	Season      *int   `json:"season,omitempty" jsonschema:"season number, for serialized shows"`
	Episode     *int   `json:"episode,omitempty" jsonschema:"episode number, for serialized shows"`
	Content     string `json:"content" jsonschema:"the new scene's full Fountain text, including its scene heading"`
	Position    string `json:"position" jsonschema:"before or after the reference scene_number"`
}

// SceneAddOutput defines the output schema for the scene_add tool.
type SceneAddOutput struct {
	SceneNumber int   `json:"scene_number" jsonschema:"the number assigned to the new scene"`
	Renumbered  []int `json:"renumbered" jsonschema:"scene numbers of scenes shifted to make room"`
}

// SceneUpdateInput defines the input schema for the scene_update tool.
type SceneUpdateInput struct {
	Project      string `json:"project" jsonschema:"project or show name"`
	SceneNumber  int    `json:"scene_number" jsonschema:"the scene number to update"`
	Season       *int   `json:"season,omitempty" jsonschema:"season number, for serialized shows"`
	Episode      *int   `json:"episode,omitempty" jsonschema:"episode number, for serialized shows"`
	Content      string `json:"content" jsonschema:"the scene's new full Fountain text, including its scene heading"`
	SessionToken string `json:"session_token" jsonschema:"the token returned by a prior scene_read of this scene"`
}

// SceneUpdateOutput defines the output schema for the scene_update tool.
type SceneUpdateOutput struct {
	Heading   string `json:"heading"`
	Location  string `json:"location"`
	TimeOfDay string `json:"time_of_day"`
	Content   string `json:"content"`
}

// SceneDeleteInput defines the input schema for the scene_delete tool.
type SceneDeleteInput struct {
	Project     string `json:"project" jsonschema:"project or show name"`
	SceneNumber int    `json:"scene_number" jsonschema:"the scene number to delete"`
	Season      *int   `json:"season,omitempty" jsonschema:"season number, for serialized shows"`
	Episode     *int   `json:"episode,omitempty" jsonschema:"episode number, for serialized shows"`
	Confirm     bool   `json:"confirm" jsonschema:"must be true; deletion compacts following scene numbers and cannot be undone"`
}

// SceneDeleteOutput defines the output schema for the scene_delete tool.
type SceneDeleteOutput struct {
	Renumbered []int `json:"renumbered" jsonschema:"scene numbers of scenes compacted to fill the gap"`
}
