package skillboost

import (
	"context"
	"errors"
	"net/http"
)

// Concept is one high-leverage concept of a generated learning path. The
// percentage and time fields are relayed exactly as the generator sends them.
type Concept struct {
	Title            string `json:"title"`
	EffortPercentage any    `json:"effortPercentage"`
	ImpactPercentage any    `json:"impactPercentage"`
	TimeToLearn      any    `json:"timeToLearn"`
}

type pathRequest struct {
	Data pathRequestData `json:"data"`
}

type pathRequestData struct {
	Topic        string `json:"topic"`
	Level        string `json:"level"`
	SpecificGoal string `json:"specificGoal"`
}

type pathResponse struct {
	Data struct {
		LearningPath *struct {
			HighLeverageConcepts []Concept `json:"highLeverageConcepts"`
		} `json:"learningPath"`
	} `json:"data"`
}

// GenerateLearningPath asks the generator for a learning path toward goal and
// returns its high-leverage concepts. The rest of the response is ignored.
func (c *Client) GenerateLearningPath(ctx context.Context, goal string) ([]Concept, error) {
	req, err := newJSONRequest(ctx, http.MethodPost, c.cfg.PathURL, pathRequest{
		Data: pathRequestData{
			Topic:        c.cfg.PathTopic,
			Level:        c.cfg.PathLevel,
			SpecificGoal: goal,
		},
	})
	if err != nil {
		return nil, mapError(EndpointPath, err)
	}

	var resp pathResponse
	if err := c.do(req, EndpointPath, &resp); err != nil {
		return nil, err
	}
	if resp.Data.LearningPath == nil {
		return nil, invalidResponse(EndpointPath, errors.New("response has no data.learningPath"))
	}

	concepts := resp.Data.LearningPath.HighLeverageConcepts
	if concepts == nil {
		concepts = []Concept{}
	}
	return concepts, nil
}
