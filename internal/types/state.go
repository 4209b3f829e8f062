package types

// ReportState is the single message payload the workflow advances. It grows
// monotonically: each field except ID, UserInput, LastStage and
// GenerationResults is written by exactly one stage and is read-only after.
type ReportState struct {
	ID        string `json:"id"`
	UserInput string `json:"user_input"`
	LastStage Stage  `json:"last_stage"`

	Validation *Validation `json:"validation,omitempty"`

	Title       string     `json:"title,omitempty"`
	Sections    []string   `json:"sections,omitempty"`
	SubSections [][]string `json:"sub_sections,omitempty"`

	Searches   []string `json:"searches,omitempty"`
	SearchURLs []string `json:"search_urls,omitempty"`

	HTMLSources []PageSource `json:"html_sources,omitempty"`
	MDSources   []PageSource `json:"md_sources,omitempty"`
	Sources     []Source     `json:"sources,omitempty"`

	Chunks          []Chunk          `json:"chunks,omitempty"`
	ChunkEmbeddings []ChunkEmbedding `json:"chunk_embeddings,omitempty"`

	SubSectionQuestions [][][]string `json:"sub_section_questions,omitempty"`
	QuestionAnswerPairs [][][]QAPair `json:"question_answer_pairs,omitempty"`
	SubSectionContents  [][]string   `json:"sub_section_contents,omitempty"`

	CSVSources            []string     `json:"csv_sources,omitempty"`
	ClassifiedDataSources []DataSource `json:"classified_data_sources,omitempty"`

	Visuals        []Visual        `json:"visuals,omitempty"`
	Charts         []Chart         `json:"charts,omitempty"`
	Tables         []TableSpec     `json:"tables,omitempty"`
	ChartPositions []ChartPosition `json:"chart_positions,omitempty"`
	TablePositions []TablePosition `json:"table_positions,omitempty"`

	Report  string `json:"report,omitempty"`
	Preview string `json:"preview,omitempty"`

	GenerationResults []GenerationResult `json:"generation_results,omitempty"`
}

type Validation struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// PageSource is a scraped page, first as raw HTML and later as markdown.
type PageSource struct {
	URL     string `json:"url"`
	Content string `json:"content"`
}

// Source is a classified page with its per-report id (website<index>).
type Source struct {
	ID             string `json:"id"`
	URL            string `json:"url"`
	Title          string `json:"title"`
	Author         string `json:"author"`
	Date           string `json:"date"`
	PublishedAfter bool   `json:"published_after"`
	Content        string `json:"content"`
}

type Chunk struct {
	SourceID string `json:"source_id"`
	Content  string `json:"content"`
}

type ChunkEmbedding struct {
	SourceID  string    `json:"source_id"`
	Chunk     string    `json:"chunk"`
	Embedding []float32 `json:"embedding"`
}

type QAPair struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// DataSource is a tabular source classified with column-level descriptions.
type DataSource struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Columns     []DataColumn `json:"columns"`
}

type DataColumn struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Values      []string `json:"values"`
}

type VisualType string

const (
	VisualLine  VisualType = "line"
	VisualBar   VisualType = "bar"
	VisualPie   VisualType = "pie"
	VisualStock VisualType = "stock"
	VisualTable VisualType = "table"
)

// Visual binds a classified data source to the visual type chosen for it.
type Visual struct {
	DataSourceIndex int        `json:"data_source_index"`
	Type            VisualType `json:"type"`
}

// Chart is a rendered image on disk.
type Chart struct {
	Title string `json:"title"`
	Path  string `json:"path"`
}

// TableSpec is a structured table handed to the renderer as-is.
type TableSpec struct {
	Title   string     `json:"title"`
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// ChartPosition places a chart after a given sub-section.
type ChartPosition struct {
	ChartIndex int `json:"chart_index"`
	Section    int `json:"section"`
	SubSection int `json:"sub_section"`
}

type TablePosition struct {
	TableIndex int `json:"table_index"`
	Section    int `json:"section"`
	SubSection int `json:"sub_section"`
}

// GenerationResult is the per-LLM-call cost record appended by every stage
// that talks to a model.
type GenerationResult struct {
	APITag           APITag `json:"api_tag"`
	PromptTokens     int    `json:"prompt_tokens"`
	GeneratedTokens  int    `json:"generated_tokens"`
	CacheReadTokens  int    `json:"cache_read_tokens"`
	CacheWriteTokens int    `json:"cache_write_tokens"`
	DurationMicros   int64  `json:"duration_us"`
}

// APITag identifies which model API served a call; pricing is keyed on it.
type APITag string

const (
	APILocal  APITag = "local"
	APIOpenAI APITag = "openai"
	APIGroq   APITag = "groq"
)
