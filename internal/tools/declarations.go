package tools

// Tool names as declared to the assistant. "generate_learing_journey" keeps
// the spelling clients already send.
const (
	ToolGetSkills       = "get_skills"
	ToolGenerateJourney = "generate_learing_journey"
	ToolSearchContent   = "search_learning_content"
	ToolStartLab        = "start_lab"
)

// Declaration describes one callable tool. Parameters is a JSON Schema
// object, or nil when the tool takes no arguments.
type Declaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

func stringParam(name, description string) map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			name: map[string]any{
				"type":        "string",
				"description": description,
			},
		},
		"required": []string{name},
	}
}

// Declarations returns the tools the dispatcher serves, in a stable order.
func Declarations() []Declaration {
	return []Declaration{
		{
			Name:        ToolGetSkills,
			Description: "Get the skills from Google Cloud Skill Boost.",
		},
		{
			Name:        ToolGenerateJourney,
			Description: "Generate learning instructions, steps and journey from Google Cloud Skill Boost for the user with a specific goal.",
			Parameters:  stringParam("goal", "The goal which learner want to achieve in the learning journey."),
		},
		{
			Name:        ToolSearchContent,
			Description: "Search the learning contents, including labs and courses, from Google Cloud Skill Boost with a specific concept.",
			Parameters:  stringParam("concept", "The concept which learner want to learn."),
		},
		{
			Name:        ToolStartLab,
			Description: "Open a lab or course template with specific name and start learning.",
			Parameters:  stringParam("name", "The title of the lab or course template."),
		},
	}
}
