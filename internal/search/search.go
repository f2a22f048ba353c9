package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultTag      ResultType = "tag"
	ResultQuestion ResultType = "question"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type     ResultType `json:"type"`
	ID       string     `json:"id"`
	CourseID int64      `json:"courseId"`
	Title    string     `json:"title"`
	Snippet  string     `json:"snippet"`
	Color    string     `json:"color,omitempty"`
}

// Query describes a search request.
type Query struct {
	Text           string
	FilterType     ResultType // empty = all types
	FilterCourseID int64      // zero = all courses
	Limit          int
	Offset         int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push entities into a search index.
type Indexer interface {
	IndexTags(tags []TagRecord) error
	IndexQuestions(questions []QuestionRecord) error
	DeleteTag(id string) error
	DeleteQuestion(id string) error
}

// TagRecord is the data we index for a course tag.
type TagRecord struct {
	ID          string `json:"id"`
	CourseID    int64  `json:"courseId"`
	Name        string `json:"name"`
	Color       string `json:"color"`
	Description string `json:"description"`
}

// QuestionRecord is the data we index for a question.
type QuestionRecord struct {
	ID        string   `json:"id"`
	CourseID  int64    `json:"courseId"`
	WorkingID string   `json:"workingId"`
	Title     string   `json:"title"`
	Tags      []string `json:"tags"`
}
