package entity

type QueryRequest struct {
	QueryID   string `json:"query_id"`
	Repo      string `json:"repo"`
	QueryText string `json:"query"`
}

type QueryResponse struct {
	QueryID    string `json:"query_id"`
	Repo       string `json:"repo"`
	QueryText  string `json:"query"`
	AnswerText string `json:"answer"`
}

// CompletionRequest is what the completion service receives for one question.
type CompletionRequest struct {
	SystemPrompt string
	Context      string
	Question     string
	Temperature  float32
}
